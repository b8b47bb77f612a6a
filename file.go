package imapfs

import (
	"bytes"
	"io"
)

// Open returns the content of a message as a stream.
func (fs *FS) Open(path string) (io.ReadCloser, error) {
	data, err := fs.ReadBytes(path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Create returns a file whose content is stored as a new message when it is
// closed. The path is checked up front; Name reports where the message was
// stored once Close succeeded.
func (fs *FS) Create(path string) (f *File, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer fs.observe("create", path, &err)
	if err = fs.checkOpen(); err != nil {
		return nil, err
	}
	rp, err := resolvePath(path, intentWrite)
	if err != nil {
		return nil, err
	}
	node, err := fs.lookupFolder(rp.folders)
	if err != nil {
		return nil, err
	}
	if !node.selectable() {
		return nil, errNotSelectable(node)
	}
	return &File{fs: fs, path: path}, nil
}

// File buffers a message being written.
type File struct {
	fs     *FS
	path   string
	buf    bytes.Buffer
	stored string
	closed bool
}

// Write appends to the buffered content.
func (f *File) Write(p []byte) (int, error) {
	if f.closed {
		return 0, translate("write", f.path, ErrClosed)
	}
	return f.buf.Write(p)
}

// Close stores the content. Closing twice is a no-op.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	stored, err := f.fs.WriteBytes(f.path, f.buf.Bytes())
	if err != nil {
		return err
	}
	f.stored = stored
	return nil
}

// Name returns the stored path after a successful Close and the requested
// path before.
func (f *File) Name() string {
	if f.stored != "" {
		return f.stored
	}
	return f.path
}
