package session

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	retry "github.com/StirlingMarketingGroup/go-retry"
	"github.com/rs/xid"
)

// completion is the parsed tagged line that ends a command.
type completion struct {
	Status string // OK, NO or BAD
	Code   string // response code without brackets
	Text   string
}

// Exec executes an IMAP command with retry logic and response building
func (d *Dialer) Exec(command string, buildResponse bool, retryCount int, processLine func(line []byte) error) (response string, err error) {
	response, _, err = d.exec(command, nil, buildResponse, retryCount, processLine)
	return response, err
}

// exec runs one command. When literal is non-nil the command line must end
// with the literal size marker; the literal is sent after the server's
// continuation request.
func (d *Dialer) exec(command string, literal []byte, buildResponse bool, retryCount int, processLine func(line []byte) error) (response string, done completion, err error) {
	var resp strings.Builder
	var rejected *StatusError
	verb := commandVerb(command)

	err = retry.Retry(func() (err error) {
		rejected = nil
		if !d.Connected || d.conn == nil {
			return errNotConnected
		}

		tag := []byte(d.nextTag())

		if CommandTimeout != 0 {
			_ = d.conn.SetDeadline(time.Now().Add(CommandTimeout))
			defer func() { _ = d.conn.SetDeadline(time.Time{}) }()
		}

		c := fmt.Sprintf("%s %s\r\n", tag, command)

		if Verbose {
			sanitized := strings.ReplaceAll(strings.TrimSpace(c), quote(d.Password), `"****"`)
			debugLog(d.ConnNum, d.Folder, "sending command", "command", sanitized)
		}

		_, err = d.conn.Write([]byte(c))
		if err != nil {
			return err
		}

		if buildResponse {
			resp = strings.Builder{}
		}
		var sink *strings.Builder
		if buildResponse {
			sink = &resp
		}

		if literal != nil {
			var ready bool
			ready, done, err = d.readResponse(tag, true, processLine, sink)
			if err != nil {
				return err
			}
			if ready {
				if Verbose {
					debugLog(d.ConnNum, d.Folder, "sending literal", "bytes", len(literal))
				}
				if _, err = d.conn.Write(literal); err != nil {
					return err
				}
				if _, err = d.conn.Write([]byte(nl)); err != nil {
					return err
				}
				_, done, err = d.readResponse(tag, false, processLine, sink)
				if err != nil {
					return err
				}
			}
		} else {
			_, done, err = d.readResponse(tag, false, processLine, sink)
			if err != nil {
				return err
			}
		}

		if done.Status != "OK" {
			// NO and BAD are answers, not transport failures: never retried.
			rejected = &StatusError{Command: verb, Status: done.Status, Code: done.Code, Text: done.Text}
		}
		return nil
	}, retryCount, func(err error) error {
		warnLog(d.ConnNum, d.Folder, "command failed, closing connection", "command", verb, "error", err)
		_ = d.Close()
		return nil
	}, func() error {
		return d.Reconnect()
	})
	if err != nil {
		errorLog(d.ConnNum, d.Folder, "command retries exhausted", "command", verb, "error", err)
		return "", completion{}, fmt.Errorf("%w: %s: %w", ErrConnection, verb, err)
	}
	if rejected != nil {
		debugLog(d.ConnNum, d.Folder, "command rejected", "command", verb, "status", rejected.Status, "code", rejected.Code)
		return "", done, rejected
	}

	if buildResponse {
		return resp.String(), done, nil
	}
	return "", done, nil
}

// readResponse reads lines until the tagged completion for tag, or until a
// continuation request when continuation is set (reported as true).
func (d *Dialer) readResponse(tag []byte, continuation bool, processLine func(line []byte) error, sink *strings.Builder) (bool, completion, error) {
	for {
		line, err := d.readLine()
		if err != nil {
			return false, completion{}, err
		}

		if Verbose && !SkipResponses {
			debugLog(d.ConnNum, d.Folder, "server response", "response", string(dropNl(line)))
		}

		if continuation && len(line) > 0 && line[0] == '+' {
			return true, completion{}, nil
		}

		// XID tags are 20 uppercase base32hex characters (0-9, A-V).
		taglen := len(tag)
		if len(line) > taglen && bytes.Equal(line[:taglen], tag) && line[taglen] == ' ' {
			return false, parseCompletion(string(dropNl(line[taglen+1:]))), nil
		}

		if processLine != nil {
			if err = processLine(line); err != nil {
				return false, completion{}, err
			}
		}
		if sink != nil {
			sink.Write(line)
		}
	}
}

// readLine reads one response line, inlining any literals it announces.
func (d *Dialer) readLine() (line []byte, err error) {
	line, err = d.reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	for {
		a := atom.Find(dropNl(line))
		if a == nil {
			return line, nil
		}
		var n int
		n, err = strconv.Atoi(string(a[1 : len(a)-1]))
		if err != nil {
			return nil, err
		}

		buf := make([]byte, n)
		if _, err = io.ReadFull(d.reader, buf); err != nil {
			return nil, err
		}
		line = append(line, buf...)

		buf, err = d.reader.ReadBytes('\n')
		if err != nil {
			return nil, err
		}
		line = append(line, buf...)
	}
}

func (d *Dialer) nextTag() string {
	return strings.ToUpper(xid.New().String())
}

// commandVerb returns the command name used in errors and logs, keeping the
// UID prefix ("UID FETCH").
func commandVerb(command string) string {
	fields := strings.Fields(command)
	switch {
	case len(fields) == 0:
		return ""
	case strings.EqualFold(fields[0], "UID") && len(fields) > 1:
		return strings.ToUpper(fields[0] + " " + fields[1])
	default:
		return strings.ToUpper(fields[0])
	}
}

// parseCompletion splits "OK [APPENDUID 1 2] APPEND completed".
func parseCompletion(s string) completion {
	var c completion
	status, rest, _ := strings.Cut(s, " ")
	c.Status = strings.ToUpper(status)
	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, "[") {
		if end := strings.IndexByte(rest, ']'); end != -1 {
			c.Code = rest[1:end]
			rest = strings.TrimSpace(rest[end+1:])
		}
	}
	c.Text = rest
	return c
}

func codeName(code string) string {
	name, _, _ := strings.Cut(code, " ")
	return strings.ToUpper(name)
}
