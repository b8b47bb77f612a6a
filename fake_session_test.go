package imapfs

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/BrianLeishman/go-imapfs/session"
)

type fakeMessage struct {
	uid   uint32
	flags []string
	body  []byte
	date  time.Time
}

type fakeMailbox struct {
	name     string
	attrs    []string
	validity uint32
	uidNext  uint32
	msgs     []*fakeMessage // ascending UID
	frozen   *session.SelectData
}

func (b *fakeMailbox) find(uid uint32) *fakeMessage {
	for _, m := range b.msgs {
		if m.uid == uid {
			return m
		}
	}
	return nil
}

func (b *fakeMailbox) add(body []byte, flags []string) *fakeMessage {
	m := &fakeMessage{uid: b.uidNext, flags: flags, body: body, date: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)}
	b.uidNext++
	b.msgs = append(b.msgs, m)
	return m
}

// fakeSession is an in-memory IMAP server with fault injection.
type fakeSession struct {
	delim        string
	boxes        []*fakeMailbox // LIST order
	selected     *fakeMailbox
	nextValidity uint32
	uidplus      bool

	omitAppendUID    bool
	omitCopyUID      bool
	concurrentAppend bool  // another client appends right before each APPEND
	staleSelect      bool  // SELECT keeps reporting the first values it reported
	rejectNonEmpty   bool  // DELETE of a mailbox with messages fails
	failExpunge      error // returned by Expunge
	failStore        error // returned by StoreFlags when adding \Deleted
	unavailable      bool  // every call fails like a dropped connection

	loggedOut bool
	calls     []string
}

func newFakeSession(names ...string) *fakeSession {
	f := &fakeSession{delim: "/", nextValidity: 1, uidplus: true}
	for _, n := range names {
		f.addMailbox(n)
	}
	return f
}

func (f *fakeSession) addMailbox(name string, attrs ...string) *fakeMailbox {
	b := &fakeMailbox{name: name, attrs: attrs, validity: f.nextValidity, uidNext: 1}
	f.nextValidity++
	f.boxes = append(f.boxes, b)
	return b
}

func (f *fakeSession) box(name string) *fakeMailbox {
	for _, b := range f.boxes {
		if b.name == name {
			return b
		}
	}
	return nil
}

// bumpValidity starts a new UID epoch and renumbers every message.
func (f *fakeSession) bumpValidity(name string) {
	b := f.box(name)
	b.validity = f.nextValidity
	f.nextValidity++
	b.uidNext = 1
	for _, m := range b.msgs {
		m.uid = b.uidNext
		b.uidNext++
	}
}

func (f *fakeSession) count(call string) int {
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func no(command, code, text string) error {
	return &session.StatusError{Command: command, Status: "NO", Code: code, Text: text}
}

func (f *fakeSession) call(name string) error {
	f.calls = append(f.calls, name)
	if f.unavailable {
		return fmt.Errorf("%w: %s: EOF", session.ErrConnection, name)
	}
	return nil
}

func (f *fakeSession) ListMailboxes() ([]session.Mailbox, error) {
	if err := f.call("LIST"); err != nil {
		return nil, err
	}
	out := make([]session.Mailbox, len(f.boxes))
	for i, b := range f.boxes {
		out[i] = session.Mailbox{Name: b.name, Delimiter: f.delim, Attributes: b.attrs}
	}
	return out, nil
}

func (f *fakeSession) Select(mailbox string) (session.SelectData, error) {
	if err := f.call("SELECT"); err != nil {
		return session.SelectData{}, err
	}
	f.selected = nil
	b := f.box(mailbox)
	if b == nil || slices.Contains(b.attrs, `\Noselect`) {
		return session.SelectData{}, no("SELECT", "NONEXISTENT", "Mailbox doesn't exist")
	}
	f.selected = b
	data := session.SelectData{Exists: uint32(len(b.msgs)), UIDValidity: b.validity, UIDNext: b.uidNext}
	if f.staleSelect {
		if b.frozen == nil {
			b.frozen = &data
		}
		return *b.frozen, nil
	}
	b.frozen = &data
	return data, nil
}

func (f *fakeSession) FetchMeta(uidSet string) ([]session.MessageMeta, error) {
	if err := f.call("FETCH"); err != nil {
		return nil, err
	}
	if uidSet != "1:*" {
		return nil, fmt.Errorf("unexpected uid set %q", uidSet)
	}
	out := make([]session.MessageMeta, 0, len(f.selected.msgs))
	for i, m := range f.selected.msgs {
		out = append(out, session.MessageMeta{
			Seq:          uint32(i + 1),
			UID:          m.uid,
			Flags:        slices.Clone(m.flags),
			Size:         int64(len(m.body)),
			InternalDate: m.date,
		})
	}
	return out, nil
}

func (f *fakeSession) FetchBody(uid uint32) ([]byte, error) {
	if err := f.call("FETCH BODY"); err != nil {
		return nil, err
	}
	m := f.selected.find(uid)
	if m == nil {
		return nil, fmt.Errorf("uid %d: %w", uid, session.ErrNoSuchMessage)
	}
	return slices.Clone(m.body), nil
}

func (f *fakeSession) FetchHeader(uid uint32) ([]byte, error) {
	if err := f.call("FETCH HEADER"); err != nil {
		return nil, err
	}
	m := f.selected.find(uid)
	if m == nil {
		return nil, fmt.Errorf("uid %d: %w", uid, session.ErrNoSuchMessage)
	}
	header, _, _ := bytes.Cut(m.body, []byte("\r\n\r\n"))
	return append(slices.Clone(header), "\r\n\r\n"...), nil
}

func (f *fakeSession) Append(mailbox string, flags []string, body []byte) (session.AppendData, error) {
	if err := f.call("APPEND"); err != nil {
		return session.AppendData{}, err
	}
	b := f.box(mailbox)
	if b == nil {
		return session.AppendData{}, no("APPEND", "TRYCREATE", "Mailbox doesn't exist")
	}
	if len(body) == 0 {
		return session.AppendData{}, &session.StatusError{Command: "APPEND", Status: "BAD", Text: "Empty message"}
	}
	if f.concurrentAppend {
		b.add([]byte("someone else"), nil)
	}
	m := b.add(slices.Clone(body), flags)
	if f.omitAppendUID {
		return session.AppendData{}, nil
	}
	return session.AppendData{UIDValidity: b.validity, UID: m.uid}, nil
}

func (f *fakeSession) Copy(uid uint32, dest string) (session.CopyData, error) {
	if err := f.call("COPY"); err != nil {
		return session.CopyData{}, err
	}
	m := f.selected.find(uid)
	if m == nil {
		return session.CopyData{}, no("UID COPY", "", "No messages copied")
	}
	b := f.box(dest)
	if b == nil {
		return session.CopyData{}, no("UID COPY", "TRYCREATE", "Mailbox doesn't exist")
	}
	c := b.add(slices.Clone(m.body), slices.Clone(m.flags))
	if f.omitCopyUID {
		return session.CopyData{}, nil
	}
	return session.CopyData{UIDValidity: b.validity, DestUID: c.uid}, nil
}

func (f *fakeSession) StoreFlags(uid uint32, flags session.Flags) error {
	if err := f.call("STORE"); err != nil {
		return err
	}
	if flags.Deleted == session.FlagAdd && f.failStore != nil {
		return f.failStore
	}
	m := f.selected.find(uid)
	if m == nil {
		return nil
	}
	switch flags.Deleted {
	case session.FlagAdd:
		if !slices.Contains(m.flags, `\Deleted`) {
			m.flags = append(m.flags, `\Deleted`)
		}
	case session.FlagRemove:
		m.flags = slices.DeleteFunc(m.flags, func(s string) bool { return s == `\Deleted` })
	}
	return nil
}

func (f *fakeSession) ReplaceFlags(uid uint32, flags []string) error {
	if err := f.call("STORE"); err != nil {
		return err
	}
	if m := f.selected.find(uid); m != nil {
		m.flags = slices.Clone(flags)
	}
	return nil
}

func (f *fakeSession) Expunge(uids ...uint32) error {
	if err := f.call("EXPUNGE"); err != nil {
		return err
	}
	if f.failExpunge != nil {
		return f.failExpunge
	}
	f.selected.msgs = slices.DeleteFunc(f.selected.msgs, func(m *fakeMessage) bool {
		if f.uidplus && len(uids) > 0 && !slices.Contains(uids, m.uid) {
			return false
		}
		return slices.Contains(m.flags, `\Deleted`)
	})
	return nil
}

func (f *fakeSession) CreateMailbox(mailbox string) error {
	if err := f.call("CREATE"); err != nil {
		return err
	}
	if f.box(mailbox) != nil {
		return no("CREATE", "ALREADYEXISTS", "Mailbox already exists")
	}
	f.addMailbox(mailbox)
	return nil
}

func (f *fakeSession) DeleteMailbox(mailbox string) error {
	if err := f.call("DELETE"); err != nil {
		return err
	}
	b := f.box(mailbox)
	if b == nil {
		return no("DELETE", "NONEXISTENT", "Mailbox doesn't exist")
	}
	if f.rejectNonEmpty && len(b.msgs) > 0 {
		return no("DELETE", "", "Mailbox is not empty")
	}
	f.boxes = slices.DeleteFunc(f.boxes, func(x *fakeMailbox) bool { return x == b })
	if f.selected == b {
		f.selected = nil
	}
	return nil
}

func (f *fakeSession) RenameMailbox(from, to string) error {
	if err := f.call("RENAME"); err != nil {
		return err
	}
	if f.box(from) == nil {
		return no("RENAME", "NONEXISTENT", "Mailbox doesn't exist")
	}
	if f.box(to) != nil {
		return no("RENAME", "ALREADYEXISTS", "Mailbox already exists")
	}
	for _, b := range f.boxes {
		switch {
		case b.name == from:
			b.name = to
		case f.delim != "" && strings.HasPrefix(b.name, from+f.delim):
			b.name = to + strings.TrimPrefix(b.name, from)
		}
	}
	return nil
}

func (f *fakeSession) HasCapability(name string) bool {
	return strings.EqualFold(name, "UIDPLUS") && f.uidplus
}

func (f *fakeSession) Logout() error {
	f.loggedOut = true
	return nil
}
