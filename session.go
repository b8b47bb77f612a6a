package imapfs

import (
	"github.com/BrianLeishman/go-imapfs/session"
)

// Session is the IMAP session an FS runs on. *session.Dialer implements it;
// tests use an in-memory fake.
//
// Message commands act on the mailbox chosen by the last Select.
type Session interface {
	ListMailboxes() ([]session.Mailbox, error)
	Select(mailbox string) (session.SelectData, error)
	FetchMeta(uidSet string) ([]session.MessageMeta, error)
	FetchBody(uid uint32) ([]byte, error)
	FetchHeader(uid uint32) ([]byte, error)
	Append(mailbox string, flags []string, body []byte) (session.AppendData, error)
	Copy(uid uint32, dest string) (session.CopyData, error)
	StoreFlags(uid uint32, flags session.Flags) error
	ReplaceFlags(uid uint32, flags []string) error
	Expunge(uids ...uint32) error
	CreateMailbox(mailbox string) error
	DeleteMailbox(mailbox string) error
	RenameMailbox(from, to string) error
	HasCapability(name string) bool
	Logout() error
}

var _ Session = (*session.Dialer)(nil)

// Dial connects with LOGIN and returns an FS over the new session.
func Dial(username, password, host string, port int, opts ...Option) (*FS, error) {
	d, err := session.New(username, password, host, port)
	if err != nil {
		return nil, translate("dial", "", err)
	}
	return newDialed(d, opts)
}

// DialOAuth2 connects with XOAUTH2 and returns an FS over the new session.
func DialOAuth2(username, accessToken, host string, port int, opts ...Option) (*FS, error) {
	d, err := session.NewWithOAuth2(username, accessToken, host, port)
	if err != nil {
		return nil, translate("dial", "", err)
	}
	return newDialed(d, opts)
}

func newDialed(d *session.Dialer, opts []Option) (*FS, error) {
	fsys, err := New(d, opts...)
	if err != nil {
		_ = d.Logout()
		return nil, err
	}
	return fsys, nil
}
