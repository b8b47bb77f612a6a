package imapfs

import (
	"errors"
	"fmt"
	"slices"
)

// directoryExpected turns a missing-folder error into ErrDirectoryExpected
// when segs actually names a message.
func (fs *FS) directoryExpected(segs []string, err error) error {
	if !errors.Is(err, ErrNotFound) || len(segs) == 0 {
		return err
	}
	uid, ok := parseDisplayName(segs[len(segs)-1])
	if !ok {
		return err
	}
	rp := resolvedPath{folders: segs[:len(segs)-1], leaf: segs[len(segs)-1], kind: leafMessage, uid: uid}
	if _, _, merr := fs.messageFor(rp); merr == nil {
		return fmt.Errorf("%w: %q is a message", ErrDirectoryExpected, joinPath(segs...))
	}
	return err
}

func (fs *FS) scanDir(path string) ([]Info, error) {
	rp, err := resolvePath(path, intentDirectory)
	if err != nil {
		return nil, err
	}
	node, err := fs.lookupFolder(rp.folders)
	if err != nil {
		return nil, fs.directoryExpected(rp.folders, err)
	}

	infos := make([]Info, 0, len(node.children))
	for _, c := range node.children {
		infos = append(infos, folderInfo(c))
	}
	idx, _, err := fs.syncFolder(node)
	if err != nil {
		return nil, err
	}
	for _, u := range idx.uids {
		infos = append(infos, messageInfo(idx.entries[u]))
	}
	return infos, nil
}

func (fs *FS) makeDir(segs []string, recreate bool) error {
	if len(segs) == 0 {
		if recreate {
			return nil
		}
		return fmt.Errorf("%w: the root always exists", ErrAlreadyExists)
	}
	parent, err := fs.lookupFolder(segs[:len(segs)-1])
	if err != nil {
		return fs.directoryExpected(segs[:len(segs)-1], err)
	}
	if existing, _ := fs.tree.find(segs); existing != nil {
		if recreate {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrAlreadyExists, joinPath(segs...))
	}
	if parent.hasAttr(`\Noinferiors`) {
		return fmt.Errorf("%w: %q cannot have child folders", ErrServerRejected, parent.path())
	}

	mailbox, err := fs.tree.mailboxFor(parent, segs[len(segs)-1])
	if err != nil {
		return err
	}
	err = fs.sess.CreateMailbox(mailbox)
	if err != nil && !(recreate && classify(err) == ErrAlreadyExists) {
		return err
	}
	parent.dirty = true
	return nil
}

func (fs *FS) removeDir(segs []string) error {
	if len(segs) == 0 {
		return fmt.Errorf("%w: the root cannot be removed", ErrInvalidPath)
	}
	node, err := fs.lookupFolder(segs)
	if err != nil {
		return fs.directoryExpected(segs, err)
	}
	if err = fs.sess.DeleteMailbox(node.mailbox); err != nil {
		return err
	}
	node.parent.dirty = true
	node.index = nil
	return nil
}

func (fs *FS) moveDir(from, to []string) error {
	if len(from) == 0 || len(to) == 0 {
		return fmt.Errorf("%w: the root cannot be moved", ErrInvalidPath)
	}
	if len(to) > len(from) && slices.Equal(to[:len(from)], from) {
		return fmt.Errorf("%w: cannot move %q into itself", ErrInvalidPath, joinPath(from...))
	}

	node, err := fs.lookupFolder(from)
	if err != nil {
		return fs.directoryExpected(from, err)
	}
	_, exists, err := fs.folderExists(to)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %q", ErrAlreadyExists, joinPath(to...))
	}
	parent, err := fs.lookupFolder(to[:len(to)-1])
	if err != nil {
		return err
	}
	if node, err = fs.current(node); err != nil {
		return err
	}
	if parent.hasAttr(`\Noinferiors`) {
		return fmt.Errorf("%w: %q cannot have child folders", ErrServerRejected, parent.path())
	}

	mailbox, err := fs.tree.mailboxFor(parent, to[len(to)-1])
	if err != nil {
		return err
	}
	if err = fs.sess.RenameMailbox(node.mailbox, mailbox); err != nil {
		return err
	}
	node.parent.dirty = true
	parent.dirty = true
	return nil
}
