package imapfs

import (
	"fmt"
	"strings"
)

type leafKind int

const (
	leafDirectory  leafKind = iota // every segment is a folder
	leafMessage                    // last segment is "{UID}.eml"
	leafNewContent                 // last segment names content to be written
)

// intent tells the resolver how the caller will use the last segment.
type intent int

const (
	intentDirectory intent = iota
	intentExisting
	intentWrite
)

// resolvedPath is a parsed path. For message and new content leaves,
// folders excludes the leaf.
type resolvedPath struct {
	raw      string
	folders  []string
	leaf     string
	kind     leafKind
	uid      uint32
	trailing bool
}

// all returns every segment including the leaf.
func (r resolvedPath) all() []string {
	if r.kind == leafDirectory {
		return r.folders
	}
	return append(append([]string(nil), r.folders...), r.leaf)
}

// resolvePath parses p without any server I/O.
func resolvePath(p string, in intent) (resolvedPath, error) {
	r := resolvedPath{raw: p}
	if strings.ContainsRune(p, 0) {
		return r, fmt.Errorf("%w: NUL character", ErrInvalidPath)
	}

	trimmed := strings.TrimLeft(p, "/")
	r.trailing = strings.HasSuffix(trimmed, "/")
	trimmed = strings.TrimRight(trimmed, "/")

	var segs []string
	if trimmed != "" {
		segs = strings.Split(trimmed, "/")
	}
	for _, s := range segs {
		switch s {
		case "":
			return r, fmt.Errorf("%w: empty segment", ErrInvalidPath)
		case ".", "..":
			return r, fmt.Errorf("%w: relative segment %q", ErrInvalidPath, s)
		}
	}

	switch in {
	case intentDirectory:
		r.folders = segs

	case intentExisting:
		if len(segs) == 0 || r.trailing {
			r.folders = segs
			break
		}
		last := segs[len(segs)-1]
		if uid, ok := parseDisplayName(last); ok {
			r.folders = segs[:len(segs)-1]
			r.leaf = last
			r.kind = leafMessage
			r.uid = uid
			break
		}
		r.folders = segs

	case intentWrite:
		if len(segs) == 0 || r.trailing {
			return r, fmt.Errorf("%w: %q names a directory", ErrFileExpected, p)
		}
		last := segs[len(segs)-1]
		if err := checkNewContentName(last); err != nil {
			return r, err
		}
		r.folders = segs[:len(segs)-1]
		r.leaf = last
		r.kind = leafNewContent
	}
	return r, nil
}

// joinPath renders segments as a root-relative path.
func joinPath(segs ...string) string {
	return strings.Join(segs, "/")
}
