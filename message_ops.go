package imapfs

import (
	"errors"
	"fmt"

	"github.com/BrianLeishman/go-imapfs/session"
)

// existingMessage resolves a path that must name an existing message.
func (fs *FS) existingMessage(path string) (resolvedPath, error) {
	rp, err := resolvePath(path, intentExisting)
	if err != nil {
		return rp, err
	}
	if rp.kind == leafMessage {
		return rp, nil
	}
	if len(rp.folders) == 0 {
		return rp, fmt.Errorf("%w: the root is a directory", ErrFileExpected)
	}
	_, ok, err := fs.folderExists(rp.folders)
	if err != nil {
		return rp, err
	}
	if ok {
		return rp, fmt.Errorf("%w: %q is a directory", ErrFileExpected, path)
	}
	return rp, fmt.Errorf("%w: %q", ErrNotFound, path)
}

// messageFor selects the folder of rp and looks its message up. A miss on
// a reused index is retried once against a fresh one.
func (fs *FS) messageFor(rp resolvedPath) (*folderNode, *messageEntry, error) {
	node, err := fs.lookupFolder(rp.folders)
	if err != nil {
		return nil, nil, err
	}
	idx, fresh, err := fs.syncFolder(node)
	if err != nil {
		return nil, nil, err
	}
	e, ok := idx.lookup(rp.leaf)
	if !ok && !fresh {
		fs.metrics.staleRetries.Inc()
		fs.invalidate(node)
		if idx, _, err = fs.syncFolder(node); err != nil {
			return nil, nil, err
		}
		e, ok = idx.lookup(rp.leaf)
	}
	if !ok {
		return node, nil, fmt.Errorf("%w: message %q", ErrNotFound, joinPath(rp.all()...))
	}
	return node, e, nil
}

// fetchMessage runs fetch for the message of rp. When the server no longer
// has the UID the index is refreshed and fetch retried once.
func (fs *FS) fetchMessage(rp resolvedPath, fetch func(uid uint32) ([]byte, error)) ([]byte, error) {
	node, e, err := fs.messageFor(rp)
	if err != nil {
		return nil, err
	}
	data, err := fetch(e.UID)
	if !errors.Is(err, session.ErrNoSuchMessage) {
		return data, err
	}

	fs.metrics.staleRetries.Inc()
	fs.invalidate(node)
	if _, e, err = fs.messageFor(rp); err != nil {
		return nil, err
	}
	data, err = fetch(e.UID)
	if errors.Is(err, session.ErrNoSuchMessage) {
		return nil, fmt.Errorf("%w: message %q: %w", ErrNotFound, joinPath(rp.all()...), err)
	}
	return data, err
}

func errNotSelectable(node *folderNode) error {
	if node.isRoot() {
		return fmt.Errorf("%w: the root cannot hold messages", ErrInvalidPath)
	}
	return fmt.Errorf("%w: folder %q cannot hold messages", ErrInvalidPath, node.path())
}

func (fs *FS) readMessage(rp resolvedPath) ([]byte, error) {
	return fs.fetchMessage(rp, fs.sess.FetchBody)
}

func (fs *FS) writeMessage(rp resolvedPath, data []byte) (string, error) {
	node, err := fs.lookupFolder(rp.folders)
	if err != nil {
		return "", err
	}
	if !node.selectable() {
		return "", errNotSelectable(node)
	}
	prior, _, err := fs.syncFolder(node)
	if err != nil {
		return "", err
	}

	if len(data) == 0 {
		data = emptyBody
	}
	res, err := fs.sess.Append(node.mailbox, nil, data)
	fs.invalidate(node)
	if err != nil {
		fs.forgetIfGone(node, err)
		return "", err
	}

	e, err := fs.resolveNewUID(node, prior, res.UIDValidity, res.UID)
	if err != nil {
		return "", err
	}
	if e.name() != rp.leaf {
		fs.debugLog("stored under server-assigned name", "requested", rp.leaf, "stored", e.name(), "mailbox", node.mailbox)
	}
	return joinPath(append(node.segments(), e.name())...), nil
}

// destFolder resolves the destination of a move or copy. A last segment
// ending in ".eml" names new content in its parent folder.
func (fs *FS) destFolder(dst string) (*folderNode, error) {
	rp, err := resolvePath(dst, intentDirectory)
	if err != nil {
		return nil, err
	}
	segs := rp.folders
	if n := len(segs); n > 0 && !rp.trailing && checkNewContentName(segs[n-1]) == nil {
		segs = segs[:n-1]
	}
	return fs.lookupFolder(segs)
}

// current returns the node for the same folder in the current tree; an
// earlier node may belong to a tree replaced since.
func (fs *FS) current(n *folderNode) (*folderNode, error) {
	if c, _ := fs.tree.find(n.segments()); c != nil {
		return c, nil
	}
	return nil, fmt.Errorf("%w: folder %q", ErrNotFound, n.path())
}

// prepareTransfer syncs the destination (its listing is the baseline for
// resolving the new UID) and then selects the source message. A missing
// source is reported ahead of an unusable destination.
func (fs *FS) prepareTransfer(rp resolvedPath, dest *folderNode) (src, dst *folderNode, e *messageEntry, prior *messageIndex, err error) {
	if !dest.selectable() {
		if _, _, err = fs.messageFor(rp); err != nil {
			return nil, nil, nil, nil, err
		}
		return nil, nil, nil, nil, errNotSelectable(dest)
	}
	if prior, _, err = fs.syncFolder(dest); err != nil {
		return nil, nil, nil, nil, err
	}
	if src, e, err = fs.messageFor(rp); err != nil {
		return nil, nil, nil, nil, err
	}
	if dst, err = fs.current(dest); err != nil {
		return nil, nil, nil, nil, err
	}
	return src, dst, e, prior, nil
}

func (fs *FS) copyMessage(rp resolvedPath, dest *folderNode) (string, error) {
	_, dst, e, prior, err := fs.prepareTransfer(rp, dest)
	if err != nil {
		return "", err
	}
	res, err := fs.sess.Copy(e.UID, dst.mailbox)
	fs.invalidate(dst)
	if err != nil {
		fs.forgetIfGone(dst, err)
		return "", err
	}
	ne, err := fs.resolveNewUID(dst, prior, res.UIDValidity, res.DestUID)
	if err != nil {
		return "", err
	}
	return joinPath(append(dst.segments(), ne.name())...), nil
}

// moveMessage copies and then deletes the source. Once the copy exists a
// failure to delete the source is reported as ErrPartialMove.
func (fs *FS) moveMessage(rp resolvedPath, dest *folderNode) (string, error) {
	src, dst, e, prior, err := fs.prepareTransfer(rp, dest)
	if err != nil {
		return "", err
	}
	if src.mailbox == dst.mailbox {
		return joinPath(append(src.segments(), e.name())...), nil
	}

	res, err := fs.sess.Copy(e.UID, dst.mailbox)
	fs.invalidate(dst)
	if err != nil {
		fs.forgetIfGone(dst, err)
		return "", err
	}

	if err := fs.sess.StoreFlags(e.UID, session.Flags{Deleted: session.FlagAdd}); err != nil {
		fs.invalidate(src)
		return "", fs.partialMove(rp, dst, err)
	}
	if err := fs.sess.Expunge(e.UID); err != nil {
		if rerr := fs.sess.StoreFlags(e.UID, session.Flags{Deleted: session.FlagRemove}); rerr != nil {
			fs.warnLog("could not clear \\Deleted after failed expunge", "mailbox", src.mailbox, "uid", e.UID, "error", rerr)
		}
		fs.invalidate(src)
		return "", fs.partialMove(rp, dst, err)
	}
	fs.invalidate(src)

	ne, err := fs.resolveNewUID(dst, prior, res.UIDValidity, res.DestUID)
	if err != nil {
		return "", err
	}
	return joinPath(append(dst.segments(), ne.name())...), nil
}

func (fs *FS) partialMove(rp resolvedPath, dst *folderNode, cause error) error {
	fs.metrics.partialMoves.Inc()
	fs.warnLog("move left a copy behind", "src", rp.raw, "dst", dst.path(), "error", cause)
	return fmt.Errorf("%w: %q was copied to %q but not removed: %w", ErrPartialMove, rp.raw, dst.path(), cause)
}

func (fs *FS) deleteMessage(rp resolvedPath) error {
	node, e, err := fs.messageFor(rp)
	if err != nil {
		return err
	}
	if err = fs.sess.StoreFlags(e.UID, session.Flags{Deleted: session.FlagAdd}); err != nil {
		fs.invalidate(node)
		return err
	}
	if err = fs.sess.Expunge(e.UID); err != nil {
		if rerr := fs.sess.StoreFlags(e.UID, session.Flags{Deleted: session.FlagRemove}); rerr != nil {
			fs.warnLog("could not clear \\Deleted after failed expunge", "mailbox", node.mailbox, "uid", e.UID, "error", rerr)
		}
	}
	fs.invalidate(node)
	return err
}

func (fs *FS) setFlags(rp resolvedPath, flags []string) error {
	node, e, err := fs.messageFor(rp)
	if err != nil {
		return err
	}
	err = fs.sess.ReplaceFlags(e.UID, flags)
	fs.invalidate(node)
	return err
}
