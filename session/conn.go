package session

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	retry "github.com/StirlingMarketingGroup/go-retry"
	"golang.org/x/net/idna"
)

var (
	nextConnNum      = 0
	nextConnNumMutex = sync.Mutex{}
)

// Dialer represents an IMAP connection
type Dialer struct {
	conn      *tls.Conn
	reader    *bufio.Reader
	Folder    string
	Username  string
	Password  string
	Host      string
	Port      int
	Connected bool
	ConnNum   int
	caps      map[string]bool
	// useXOAUTH2 indicates whether XOAUTH2 authentication should be used
	// on (re)connection instead of LOGIN. It is set by NewWithOAuth2.
	useXOAUTH2 bool
}

// dialHost establishes a TLS connection to the IMAP server and consumes the
// server greeting.
func dialHost(host string, port int) (*tls.Conn, *bufio.Reader, error) {
	if net.ParseIP(host) == nil {
		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			return nil, nil, fmt.Errorf("imap dial: invalid host %q: %w", host, err)
		}
		host = ascii
	}
	dialer := &net.Dialer{Timeout: DialTimeout}
	cfg := &tls.Config{ServerName: host}
	if TLSSkipVerify {
		cfg.InsecureSkipVerify = true
	}
	conn, err := tls.DialWithDialer(dialer, "tcp", net.JoinHostPort(host, strconv.Itoa(port)), cfg)
	if err != nil {
		return nil, nil, err
	}
	r := bufio.NewReader(conn)
	greeting, err := r.ReadBytes('\n')
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("imap greeting: %w", err)
	}
	if bytes.HasPrefix(greeting, []byte("* BYE")) {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("imap greeting: server refused connection: %s", dropNl(greeting))
	}
	return conn, r, nil
}

// NewWithOAuth2 creates a new IMAP connection using OAuth2 authentication
func NewWithOAuth2(username string, accessToken string, host string, port int) (d *Dialer, err error) {
	return dial(username, accessToken, host, port, true)
}

// New creates a new IMAP connection using username/password authentication
func New(username string, password string, host string, port int) (d *Dialer, err error) {
	return dial(username, password, host, port, false)
}

func dial(username, secret, host string, port int, xoauth2 bool) (d *Dialer, err error) {
	nextConnNumMutex.Lock()
	connNum := nextConnNum
	nextConnNum++
	nextConnNumMutex.Unlock()

	// Retry only the connection establishment, not authentication
	err = retry.Retry(func() error {
		debugLog(connNum, "", "establishing connection", "host", host, "port", port)
		conn, r, err := dialHost(host, port)
		if err != nil {
			debugLog(connNum, "", "failed to connect", "error", err)
			return err
		}
		d = &Dialer{
			conn:       conn,
			reader:     r,
			Username:   username,
			Password:   secret,
			Host:       host,
			Port:       port,
			Connected:  true,
			ConnNum:    connNum,
			useXOAUTH2: xoauth2,
		}
		return nil
	}, RetryCount, func(err error) error {
		debugLog(connNum, "", "failed to connect, retrying shortly", "error", err)
		return nil
	}, func() error {
		debugLog(connNum, "", "retrying connection now")
		return nil
	})
	if err != nil {
		errorLog(connNum, "", "failed to establish connection", "host", host, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	// Authenticate after connection is established - no retry for auth failures
	if err = d.authenticate(); err != nil {
		warnLog(connNum, "", "authentication failed", "error", err)
		_ = d.Close()
		return nil, err
	}

	if err = d.refreshCapabilities(); err != nil {
		_ = d.Close()
		return nil, err
	}

	return d, nil
}

func (d *Dialer) authenticate() error {
	if d.useXOAUTH2 {
		return d.Authenticate(d.Username, d.Password)
	}
	return d.Login(d.Username, d.Password)
}

// refreshCapabilities asks the server for its capability list.
func (d *Dialer) refreshCapabilities() error {
	caps := make(map[string]bool)
	_, err := d.Exec("CAPABILITY", false, RetryCount, func(line []byte) error {
		fields := strings.Fields(string(dropNl(line)))
		if len(fields) < 2 || fields[0] != "*" || !strings.EqualFold(fields[1], "CAPABILITY") {
			return nil
		}
		for _, f := range fields[2:] {
			caps[strings.ToUpper(f)] = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	d.caps = caps
	return nil
}

// HasCapability reports whether the server advertised the capability.
func (d *Dialer) HasCapability(name string) bool {
	return d.caps[strings.ToUpper(name)]
}

// Close closes the IMAP connection
func (d *Dialer) Close() (err error) {
	if d.Connected {
		debugLog(d.ConnNum, d.Folder, "closing connection")
		d.Connected = false
		err = d.conn.Close()
		if err != nil {
			return fmt.Errorf("imap close: %s", err)
		}
	}
	return err
}

// Logout ends the session politely and closes the connection.
func (d *Dialer) Logout() error {
	if !d.Connected {
		return nil
	}
	if _, err := d.Exec("LOGOUT", false, 0, nil); err != nil {
		debugLog(d.ConnNum, d.Folder, "logout failed", "error", err)
	}
	return d.Close()
}

// Reconnect closes and reopens the IMAP connection with re-authentication
func (d *Dialer) Reconnect() (err error) {
	_ = d.Close()
	debugLog(d.ConnNum, d.Folder, "reopening connection")

	conn, r, err := dialHost(d.Host, d.Port)
	if err != nil {
		return fmt.Errorf("imap reconnect dial: %s", err)
	}
	d.conn = conn
	d.reader = r
	d.Connected = true

	// Re-authenticate using the original method
	if err := d.authenticate(); err != nil {
		_ = d.conn.Close()
		d.Connected = false
		return fmt.Errorf("imap reconnect auth: %s", err)
	}

	// Restore selected folder state if any
	if d.Folder != "" {
		if _, err := d.selectMailbox(d.Folder, 0); err != nil {
			return fmt.Errorf("imap reconnect select: %s", err)
		}
	}

	return nil
}
