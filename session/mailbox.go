package session

import (
	"fmt"
)

// Mailbox is one entry of a LIST response. Name is the raw name as sent by
// the server (modified UTF-7 for non-ASCII names).
type Mailbox struct {
	Name       string
	Delimiter  string // empty when the server reports NIL
	Attributes []string
}

// SelectData is what SELECT reports about a mailbox.
type SelectData struct {
	Exists      uint32
	UIDValidity uint32
	UIDNext     uint32
}

// ListMailboxes retrieves every mailbox with its hierarchy delimiter
func (d *Dialer) ListMailboxes() (mailboxes []Mailbox, err error) {
	mailboxes = make([]Mailbox, 0)
	_, err = d.Exec(`LIST "" "*"`, false, RetryCount, func(line []byte) error {
		mb, ok, err := parseListLine(line)
		if err != nil {
			return err
		}
		if ok {
			mailboxes = append(mailboxes, mb)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mailboxes, nil
}

// Select selects a mailbox in read-write mode
func (d *Dialer) Select(mailbox string) (SelectData, error) {
	return d.selectMailbox(mailbox, RetryCount)
}

func (d *Dialer) selectMailbox(mailbox string, retries int) (SelectData, error) {
	r, err := d.Exec(`SELECT `+quote(mailbox), true, retries, nil)
	if err != nil {
		d.Folder = ""
		return SelectData{}, err
	}
	d.Folder = mailbox
	data, err := parseSelectResponse(r)
	if err != nil {
		return SelectData{}, fmt.Errorf("imap select %s: %w", mailbox, err)
	}
	debugLog(d.ConnNum, d.Folder, "selected", "exists", data.Exists, "uidvalidity", data.UIDValidity, "uidnext", data.UIDNext)
	return data, nil
}

// CreateMailbox creates a mailbox
func (d *Dialer) CreateMailbox(mailbox string) error {
	_, err := d.Exec(`CREATE `+quote(mailbox), false, 0, nil)
	return err
}

// DeleteMailbox deletes a mailbox. Whether a mailbox that still holds
// messages may be deleted is up to the server.
func (d *Dialer) DeleteMailbox(mailbox string) error {
	_, err := d.Exec(`DELETE `+quote(mailbox), false, 0, nil)
	if err != nil {
		return err
	}
	if d.Folder == mailbox {
		d.Folder = ""
	}
	return nil
}

// RenameMailbox renames a mailbox with a single RENAME command
func (d *Dialer) RenameMailbox(from, to string) error {
	_, err := d.Exec(`RENAME `+quote(from)+` `+quote(to), false, 0, nil)
	if err != nil {
		return err
	}
	if d.Folder == from {
		d.Folder = to
	}
	return nil
}
