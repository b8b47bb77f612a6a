package imapfs

import (
	"errors"
	"fmt"
	"sync"
)

// FS is an IMAP account seen as a filesystem. It is safe for concurrent use;
// calls are serialized over the one session.
type FS struct {
	mu      sync.Mutex
	sess    Session
	tree    *folderTree
	closed  bool
	metrics *metrics
	log     Logger
}

// New returns an FS over an authenticated session and loads the mailbox
// tree.
func New(sess Session, opts ...Option) (*FS, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	m, err := newMetrics(o.registerer)
	if err != nil {
		return nil, fmt.Errorf("imapfs: registering metrics: %w", err)
	}
	fs := &FS{
		sess:    sess,
		metrics: m,
		log:     o.logger,
	}
	if err := fs.reloadTree(); err != nil {
		return nil, translate("new", "", err)
	}
	return fs, nil
}

// observe translates *errp and records the outcome of op.
func (fs *FS) observe(op, path string, errp *error) {
	if *errp != nil {
		*errp = translate(op, path, *errp)
	}
	result := resultLabel(*errp)
	fs.metrics.operations.WithLabelValues(op, result).Inc()
	if *errp != nil {
		fs.debugLog("operation failed", "op", op, "path", path, "error", *errp)
	} else {
		fs.debugLog("operation done", "op", op, "path", path)
	}
}

func (fs *FS) checkOpen() error {
	if fs.closed {
		return ErrClosed
	}
	return nil
}

// reloadTree rebuilds the folder tree from a fresh LIST and swaps it in.
func (fs *FS) reloadTree() error {
	mailboxes, err := fs.sess.ListMailboxes()
	if err != nil {
		return err
	}
	t, err := buildTree(mailboxes, fs.tree, fs.warnLog)
	if err != nil {
		return err
	}
	fs.tree = t
	fs.debugLog("loaded folder tree", "mailboxes", len(mailboxes), "delimiter", t.delim)
	return nil
}

// lookupFolder resolves folder segments. A miss is confirmed against a
// fresh LIST before it becomes ErrNotFound.
func (fs *FS) lookupFolder(segs []string) (*folderNode, error) {
	node, dirty := fs.tree.find(segs)
	if node != nil && !dirty {
		return node, nil
	}
	if err := fs.reloadTree(); err != nil {
		return nil, err
	}
	if node, _ = fs.tree.find(segs); node == nil {
		return nil, fmt.Errorf("%w: folder %q", ErrNotFound, joinPath(segs...))
	}
	return node, nil
}

// folderExists is lookupFolder without the error for a missing folder.
func (fs *FS) folderExists(segs []string) (*folderNode, bool, error) {
	node, err := fs.lookupFolder(segs)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return node, true, nil
}

// ListDir lists child folders in server order followed by messages in
// ascending UID order.
func (fs *FS) ListDir(path string) (names []string, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer fs.observe("listdir", path, &err)
	if err = fs.checkOpen(); err != nil {
		return nil, err
	}

	infos, err := fs.scanDir(path)
	if err != nil {
		return nil, err
	}
	names = make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names, nil
}

// ScanDir is ListDir with the Info of every entry.
func (fs *FS) ScanDir(path string) (infos []Info, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer fs.observe("scandir", path, &err)
	if err = fs.checkOpen(); err != nil {
		return nil, err
	}
	return fs.scanDir(path)
}

// MakeDir creates a folder whose parent exists. With recreate an existing
// folder is not an error.
func (fs *FS) MakeDir(path string, recreate bool) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer fs.observe("makedir", path, &err)
	if err = fs.checkOpen(); err != nil {
		return err
	}
	rp, err := resolvePath(path, intentDirectory)
	if err != nil {
		return err
	}
	return fs.makeDir(rp.folders, recreate)
}

// MakeDirs creates a folder and every missing ancestor.
func (fs *FS) MakeDirs(path string) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer fs.observe("makedirs", path, &err)
	if err = fs.checkOpen(); err != nil {
		return err
	}
	rp, err := resolvePath(path, intentDirectory)
	if err != nil {
		return err
	}
	for i := 1; i <= len(rp.folders); i++ {
		if err = fs.makeDir(rp.folders[:i], true); err != nil {
			return err
		}
	}
	return nil
}

// RemoveDir deletes a folder with IMAP DELETE. Whether a folder that still
// holds messages or children can be deleted is up to the server.
func (fs *FS) RemoveDir(path string) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer fs.observe("removedir", path, &err)
	if err = fs.checkOpen(); err != nil {
		return err
	}
	rp, err := resolvePath(path, intentDirectory)
	if err != nil {
		return err
	}
	return fs.removeDir(rp.folders)
}

// MoveDir renames a folder with a single IMAP RENAME. dst must not exist and
// its parent must.
func (fs *FS) MoveDir(src, dst string) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer fs.observe("movedir", src, &err)
	if err = fs.checkOpen(); err != nil {
		return err
	}
	from, err := resolvePath(src, intentDirectory)
	if err != nil {
		return err
	}
	to, err := resolvePath(dst, intentDirectory)
	if err != nil {
		return err
	}
	return fs.moveDir(from.folders, to.folders)
}

// ReadBytes returns the raw content of a message.
func (fs *FS) ReadBytes(path string) (data []byte, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer fs.observe("readbytes", path, &err)
	if err = fs.checkOpen(); err != nil {
		return nil, err
	}
	rp, err := fs.existingMessage(path)
	if err != nil {
		return nil, err
	}
	return fs.readMessage(rp)
}

// WriteBytes stores data as a new message in the folder of path and returns
// the path it was stored under. The file name in path must end in ".eml"
// but is otherwise ignored: the stored name is "{UID}.eml" for the UID the
// server assigned. Writing never replaces an existing message.
func (fs *FS) WriteBytes(path string, data []byte) (stored string, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer fs.observe("writebytes", path, &err)
	if err = fs.checkOpen(); err != nil {
		return "", err
	}
	rp, err := resolvePath(path, intentWrite)
	if err != nil {
		return "", err
	}
	return fs.writeMessage(rp, data)
}

// Move moves a message into the folder dst, or into the folder of dst when
// dst names new content. It returns the message's new path.
func (fs *FS) Move(src, dst string) (stored string, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer fs.observe("move", src, &err)
	if err = fs.checkOpen(); err != nil {
		return "", err
	}
	rp, err := fs.existingMessage(src)
	if err != nil {
		return "", err
	}
	dest, err := fs.destFolder(dst)
	if err != nil {
		return "", err
	}
	return fs.moveMessage(rp, dest)
}

// Copy copies a message like Move without removing the source.
func (fs *FS) Copy(src, dst string) (stored string, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer fs.observe("copy", src, &err)
	if err = fs.checkOpen(); err != nil {
		return "", err
	}
	rp, err := fs.existingMessage(src)
	if err != nil {
		return "", err
	}
	dest, err := fs.destFolder(dst)
	if err != nil {
		return "", err
	}
	return fs.copyMessage(rp, dest)
}

// Remove deletes a message.
func (fs *FS) Remove(path string) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer fs.observe("remove", path, &err)
	if err = fs.checkOpen(); err != nil {
		return err
	}
	rp, err := fs.existingMessage(path)
	if err != nil {
		return err
	}
	return fs.deleteMessage(rp)
}

// SetFlags replaces the flags of a message.
func (fs *FS) SetFlags(path string, flags []string) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer fs.observe("setflags", path, &err)
	if err = fs.checkOpen(); err != nil {
		return err
	}
	rp, err := fs.existingMessage(path)
	if err != nil {
		return err
	}
	return fs.setFlags(rp, flags)
}

// GetInfo describes a folder or message. The root is a directory with an
// empty name.
func (fs *FS) GetInfo(path string) (info Info, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer fs.observe("getinfo", path, &err)
	if err = fs.checkOpen(); err != nil {
		return Info{}, err
	}
	return fs.getInfo(path)
}

// Exists reports whether path names a folder or message.
func (fs *FS) Exists(path string) (bool, error) {
	info, err := fs.GetInfo(path)
	return existsResult(info, err, func(Info) bool { return true })
}

// IsDir reports whether path names a folder.
func (fs *FS) IsDir(path string) (bool, error) {
	info, err := fs.GetInfo(path)
	return existsResult(info, err, func(i Info) bool { return i.IsDir })
}

// IsFile reports whether path names a message.
func (fs *FS) IsFile(path string) (bool, error) {
	info, err := fs.GetInfo(path)
	return existsResult(info, err, func(i Info) bool { return !i.IsDir })
}

func existsResult(info Info, err error, match func(Info) bool) (bool, error) {
	switch {
	case err == nil:
		return match(info), nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidPath):
		return false, nil
	default:
		return false, err
	}
}

// Envelope parses the header of a message.
func (fs *FS) Envelope(path string) (env *Envelope, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer fs.observe("envelope", path, &err)
	if err = fs.checkOpen(); err != nil {
		return nil, err
	}
	rp, err := fs.existingMessage(path)
	if err != nil {
		return nil, err
	}
	return fs.envelope(rp)
}

// Refresh reloads the folder tree and marks every message index for
// reconciliation.
func (fs *FS) Refresh() (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer fs.observe("refresh", "", &err)
	if err = fs.checkOpen(); err != nil {
		return err
	}
	if err = fs.reloadTree(); err != nil {
		return err
	}
	fs.tree.root.walk(fs.invalidate)
	return nil
}

// Close logs out. Every later call fails with ErrClosed.
func (fs *FS) Close() (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer fs.observe("close", "", &err)
	if err = fs.checkOpen(); err != nil {
		return err
	}
	fs.closed = true
	return fs.sess.Logout()
}
