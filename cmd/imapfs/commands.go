package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func lsCmd(a *app) *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "ls [folder]",
		Short: "List child folders and messages",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			infos, err := a.fs.ScanDir(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, info := range infos {
				switch {
				case long:
					fmt.Fprintln(out, info)
				case info.IsDir:
					fmt.Fprintln(out, info.Name+"/")
				default:
					fmt.Fprintln(out, info.Name)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "show size, age and flags")
	return cmd
}

func catCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <message>",
		Short: "Print the raw content of a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.fs.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()
			_, err = io.Copy(cmd.OutOrStdout(), r)
			return err
		},
	}
}

func putCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "put <local file|-> <folder/name.eml>",
		Short: "Store a local file as a new message and print its path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			w, err := a.fs.Create(args[1])
			if err != nil {
				return err
			}
			if _, err = io.Copy(w, in); err != nil {
				return err
			}
			if err = w.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), w.Name())
			return nil
		},
	}
}

func mvCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mv <message> <folder>",
		Short: "Move a message and print its new path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stored, err := a.fs.Move(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stored)
			return nil
		},
	}
}

func cpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cp <message> <folder>",
		Short: "Copy a message and print the path of the copy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stored, err := a.fs.Copy(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stored)
			return nil
		},
	}
}

func rmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <message>...",
		Short: "Delete messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			for _, p := range args {
				if err := a.fs.Remove(p); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func mkdirCmd(a *app) *cobra.Command {
	var parents bool
	cmd := &cobra.Command{
		Use:   "mkdir <folder>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if parents {
				return a.fs.MakeDirs(args[0])
			}
			return a.fs.MakeDir(args[0], false)
		},
	}
	cmd.Flags().BoolVarP(&parents, "parents", "p", false, "create missing parents, no error if the folder exists")
	return cmd
}

func rmdirCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rmdir <folder>",
		Short: "Delete a folder; the server decides whether it may hold messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.fs.RemoveDir(args[0])
		},
	}
}

func mvdirCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mvdir <folder> <new folder>",
		Short: "Rename a folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.fs.MoveDir(args[0], args[1])
		},
	}
}

func statCmd(a *app) *cobra.Command {
	var envelope bool
	cmd := &cobra.Command{
		Use:   "stat <path>",
		Short: "Describe a folder or message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.fs.GetInfo(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, info)
			if !envelope || info.IsDir {
				return nil
			}
			env, err := a.fs.Envelope(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(out, env)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&envelope, "envelope", "e", false, "also print the parsed message header")
	return cmd
}

func flagsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   `flags <message> [flag]...`,
		Short: `Replace the flags of a message, e.g. flags INBOX/4.eml '\Seen' '$Work'`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.fs.SetFlags(args[0], args[1:]); err != nil {
				return err
			}
			info, err := a.fs.GetInfo(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), info)
			return nil
		},
	}
}

func refreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reload the folder tree and list the top-level folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.fs.Refresh(); err != nil {
				return err
			}
			names, err := a.fs.ListDir("")
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n+"/")
			}
			return nil
		},
	}
}
