package imapfs

import (
	"bytes"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/jhillyerd/enmime/v2"
)

// Info describes a folder or a message.
type Info struct {
	Name       string
	IsDir      bool
	Size       int64
	UID        uint32
	Flags      []string
	Received   time.Time
	Attributes []string // mailbox attributes of folders
}

// String returns a formatted string representation of an Info
func (i Info) String() string {
	if i.IsDir {
		if len(i.Attributes) != 0 {
			return fmt.Sprintf("%s/ %s", i.Name, strings.Join(i.Attributes, " "))
		}
		return i.Name + "/"
	}
	s := fmt.Sprintf("%s %s", i.Name, humanize.Bytes(uint64(i.Size)))
	if !i.Received.IsZero() {
		s += " " + humanize.Time(i.Received)
	}
	if len(i.Flags) != 0 {
		s += " (" + strings.Join(i.Flags, " ") + ")"
	}
	return s
}

func folderInfo(n *folderNode) Info {
	return Info{
		Name:       n.name,
		IsDir:      true,
		Attributes: n.attrs,
	}
}

func messageInfo(e *messageEntry) Info {
	return Info{
		Name:     e.name(),
		Size:     e.Size,
		UID:      e.UID,
		Flags:    e.Flags,
		Received: e.Received,
	}
}

func (fs *FS) getInfo(path string) (Info, error) {
	rp, err := resolvePath(path, intentExisting)
	if err != nil {
		return Info{}, err
	}
	if rp.kind == leafMessage {
		_, e, err := fs.messageFor(rp)
		if err == nil {
			return messageInfo(e), nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Info{}, err
		}
		// a folder may carry a message-like name
		node, ok, ferr := fs.folderExists(rp.all())
		if ferr != nil {
			return Info{}, ferr
		}
		if !ok {
			return Info{}, err
		}
		return folderInfo(node), nil
	}

	node, err := fs.lookupFolder(rp.folders)
	if err != nil {
		return Info{}, err
	}
	return folderInfo(node), nil
}

// Envelope holds the parsed header of a message.
type Envelope struct {
	Subject   string
	From      []*mail.Address
	To        []*mail.Address
	CC        []*mail.Address
	BCC       []*mail.Address
	ReplyTo   []*mail.Address
	Date      time.Time
	MessageID string
	Header    map[string][]string
}

// String returns a formatted string representation of an Envelope
func (e Envelope) String() string {
	env := strings.Builder{}
	env.WriteString(fmt.Sprintf("Subject: %s\n", e.Subject))
	if len(e.From) != 0 {
		env.WriteString(fmt.Sprintf("From: %s\n", addressList(e.From)))
	}
	if len(e.To) != 0 {
		env.WriteString(fmt.Sprintf("To: %s\n", addressList(e.To)))
	}
	if len(e.CC) != 0 {
		env.WriteString(fmt.Sprintf("CC: %s\n", addressList(e.CC)))
	}
	if len(e.BCC) != 0 {
		env.WriteString(fmt.Sprintf("BCC: %s\n", addressList(e.BCC)))
	}
	if len(e.ReplyTo) != 0 {
		env.WriteString(fmt.Sprintf("ReplyTo: %s\n", addressList(e.ReplyTo)))
	}
	if !e.Date.IsZero() {
		env.WriteString(fmt.Sprintf("Date: %s\n", e.Date.Format(time.RFC1123Z)))
	}
	if e.MessageID != "" {
		env.WriteString(fmt.Sprintf("Message-ID: %s\n", e.MessageID))
	}
	return env.String()
}

func addressList(addrs []*mail.Address) string {
	s := make([]string, len(addrs))
	for i, a := range addrs {
		s[i] = a.String()
	}
	return strings.Join(s, ", ")
}

func (fs *FS) envelope(rp resolvedPath) (*Envelope, error) {
	header, err := fs.fetchMessage(rp, fs.sess.FetchHeader)
	if err != nil {
		return nil, err
	}
	return parseEnvelope(header)
}

// parseEnvelope reads a raw header block. Malformed address lists are left
// empty rather than failing the whole envelope.
func parseEnvelope(header []byte) (*Envelope, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(header))
	if err != nil {
		return nil, fmt.Errorf("parsing message header: %w", err)
	}

	e := &Envelope{
		Subject:   env.GetHeader("Subject"),
		MessageID: strings.Trim(env.GetHeader("Message-Id"), "<>"),
		Header:    make(map[string][]string),
	}
	lists := []struct {
		key  string
		dest *[]*mail.Address
	}{
		{"From", &e.From},
		{"To", &e.To},
		{"Cc", &e.CC},
		{"Bcc", &e.BCC},
		{"Reply-To", &e.ReplyTo},
	}
	for _, l := range lists {
		if addrs, err := env.AddressList(l.key); err == nil {
			*l.dest = addrs
		}
	}
	if d := env.GetHeader("Date"); d != "" {
		if t, err := mail.ParseDate(d); err == nil {
			e.Date = t
		}
	}
	for _, k := range env.GetHeaderKeys() {
		e.Header[k] = env.GetHeaderValues(k)
	}
	return e, nil
}
