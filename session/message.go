package session

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MessageMeta is the per-message data fetched for listings.
type MessageMeta struct {
	Seq          uint32
	UID          uint32
	Flags        []string
	Size         int64
	InternalDate time.Time
}

// AppendData is the result of APPEND. UID is zero when the server did not
// answer with APPENDUID.
type AppendData struct {
	UIDValidity uint32
	UID         uint32
}

// CopyData is the result of UID COPY. DestUID is zero when the server did
// not answer with COPYUID.
type CopyData struct {
	UIDValidity uint32
	DestUID     uint32
}

// FetchMeta fetches UID, flags, size and internal date for the UID set
// (e.g. "1:*") of the selected mailbox.
func (d *Dialer) FetchMeta(uidSet string) (messages []MessageMeta, err error) {
	messages = make([]MessageMeta, 0)
	_, err = d.Exec(`UID FETCH `+uidSet+` (UID FLAGS RFC822.SIZE INTERNALDATE)`, false, RetryCount, func(line []byte) error {
		if !fetchLineStartRE.Match(line) {
			return nil
		}
		rec, err := parseFetchLine(strings.TrimSpace(string(line)))
		if err != nil {
			return err
		}
		m, err := d.messageMeta(rec)
		if err != nil {
			return err
		}
		// unsolicited FETCH responses (flag updates) carry no UID
		if m.UID != 0 {
			messages = append(messages, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].UID < messages[j].UID })
	return messages, nil
}

func (d *Dialer) messageMeta(rec fetchRecord) (m MessageMeta, err error) {
	m.Seq = uint32(rec.Seq)
	tks := rec.Tokens
	for i := 0; i+1 < len(tks); i += 2 {
		if err = d.CheckType(tks[i], []TType{TLiteral}, tks, "in root"); err != nil {
			return m, err
		}
		switch strings.ToUpper(tks[i].Str) {
		case "UID":
			if err = d.CheckType(tks[i+1], []TType{TNumber}, tks, "after UID"); err != nil {
				return m, err
			}
			m.UID = uint32(tks[i+1].Num)
		case "FLAGS":
			if err = d.CheckType(tks[i+1], []TType{TContainer}, tks, "after FLAGS"); err != nil {
				return m, err
			}
			m.Flags = make([]string, 0, len(tks[i+1].Tokens))
			for _, t := range tks[i+1].Tokens {
				if err = d.CheckType(t, []TType{TLiteral}, tks, "for FLAGS[n]"); err != nil {
					return m, err
				}
				m.Flags = append(m.Flags, t.Str)
			}
		case "RFC822.SIZE":
			if err = d.CheckType(tks[i+1], []TType{TNumber}, tks, "after RFC822.SIZE"); err != nil {
				return m, err
			}
			m.Size = int64(tks[i+1].Num)
		case "INTERNALDATE":
			if err = d.CheckType(tks[i+1], []TType{TQuoted}, tks, "after INTERNALDATE"); err != nil {
				return m, err
			}
			m.InternalDate, err = time.Parse(TimeFormat, tks[i+1].Str)
			if err != nil {
				return m, err
			}
		}
	}
	return m, nil
}

// FetchBody fetches the full raw message without setting \Seen.
func (d *Dialer) FetchBody(uid uint32) ([]byte, error) {
	return d.fetchSection(uid, "BODY.PEEK[]", "BODY[]")
}

// FetchHeader fetches the raw message header without setting \Seen.
func (d *Dialer) FetchHeader(uid uint32) ([]byte, error) {
	return d.fetchSection(uid, "BODY.PEEK[HEADER]", "BODY[HEADER]")
}

func (d *Dialer) fetchSection(uid uint32, item, key string) (body []byte, err error) {
	found := false
	_, err = d.Exec(fmt.Sprintf("UID FETCH %d (UID %s)", uid, item), false, RetryCount, func(line []byte) error {
		if !fetchLineStartRE.Match(line) {
			return nil
		}
		rec, err := parseFetchLine(strings.TrimSpace(string(line)))
		if err != nil {
			return err
		}
		var recUID uint32
		var data []byte
		var hasData bool
		tks := rec.Tokens
		for i := 0; i+1 < len(tks); i += 2 {
			if tks[i].Type != TLiteral {
				continue
			}
			switch name := strings.ToUpper(tks[i].Str); {
			case name == "UID" && tks[i+1].Type == TNumber:
				recUID = uint32(tks[i+1].Num)
			case name == key:
				switch tks[i+1].Type {
				case TAtom, TQuoted:
					data = []byte(tks[i+1].Str)
					hasData = true
				case TNil:
					hasData = true
				default:
					return fmt.Errorf("unexpected %s token after %s", GetTokenName(tks[i+1].Type), key)
				}
			}
		}
		if recUID == uid && hasData {
			body = data
			found = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("uid %d in %s: %w", uid, d.Folder, ErrNoSuchMessage)
	}
	return body, nil
}

// Append stores a new message in mailbox. The body is sent as a
// synchronizing literal and the command is never retried.
func (d *Dialer) Append(mailbox string, flags []string, body []byte) (AppendData, error) {
	if body == nil {
		body = []byte{}
	}
	cmd := `APPEND ` + quote(mailbox)
	if len(flags) > 0 {
		cmd += ` (` + strings.Join(flags, " ") + `)`
	}
	cmd += fmt.Sprintf(" {%d}", len(body))

	_, done, err := d.exec(cmd, body, false, 0, nil)
	if err != nil {
		return AppendData{}, err
	}
	var data AppendData
	if validity, uid, ok := parseUIDCode(done.Code); ok {
		data.UIDValidity, data.UID = validity, uid
	}
	return data, nil
}

// Copy copies one message of the selected mailbox to dest.
func (d *Dialer) Copy(uid uint32, dest string) (CopyData, error) {
	_, done, err := d.exec(fmt.Sprintf("UID COPY %d %s", uid, quote(dest)), nil, false, 0, nil)
	if err != nil {
		return CopyData{}, err
	}
	var data CopyData
	if validity, dst, ok := parseUIDCode(done.Code); ok {
		data.UIDValidity, data.DestUID = validity, dst
	}
	return data, nil
}

// StoreFlags adds and removes flags on one message. Additions and removals
// go out as separate STORE commands.
func (d *Dialer) StoreFlags(uid uint32, flags Flags) (err error) {
	addFlags := []string{}
	removeFlags := []string{}

	v := reflect.ValueOf(flags)
	t := reflect.TypeOf(flags)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		value := v.Field(i)

		if field.Type == reflect.TypeOf(FlagUnset) {
			switch FlagSet(value.Int()) {
			case FlagAdd:
				addFlags = append(addFlags, `\`+field.Name)
			case FlagRemove:
				removeFlags = append(removeFlags, `\`+field.Name)
			}
		}
	}

	keywords := make([]string, 0, len(flags.Keywords))
	for keyword := range flags.Keywords {
		keywords = append(keywords, keyword)
	}
	sort.Strings(keywords)
	for _, keyword := range keywords {
		if flags.Keywords[keyword] {
			addFlags = append(addFlags, keyword)
		} else {
			removeFlags = append(removeFlags, keyword)
		}
	}

	if len(addFlags) > 0 {
		query := fmt.Sprintf("UID STORE %d +FLAGS.SILENT (%s)", uid, strings.Join(addFlags, " "))
		if _, err = d.Exec(query, false, RetryCount, nil); err != nil {
			return err
		}
	}
	if len(removeFlags) > 0 {
		query := fmt.Sprintf("UID STORE %d -FLAGS.SILENT (%s)", uid, strings.Join(removeFlags, " "))
		if _, err = d.Exec(query, false, RetryCount, nil); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceFlags sets the complete flag list of one message.
func (d *Dialer) ReplaceFlags(uid uint32, flags []string) error {
	_, err := d.Exec(fmt.Sprintf("UID STORE %d FLAGS.SILENT (%s)", uid, strings.Join(flags, " ")), false, RetryCount, nil)
	return err
}

// Expunge permanently removes messages flagged \Deleted from the selected
// mailbox. With UIDs and UIDPLUS support only those messages are expunged.
func (d *Dialer) Expunge(uids ...uint32) error {
	cmd := "EXPUNGE"
	if len(uids) > 0 && d.HasCapability("UIDPLUS") {
		set := make([]string, len(uids))
		for i, u := range uids {
			set[i] = strconv.FormatUint(uint64(u), 10)
		}
		cmd = "UID EXPUNGE " + strings.Join(set, ",")
	}
	_, err := d.Exec(cmd, false, 0, nil)
	return err
}
