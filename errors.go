package imapfs

import (
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"

	"github.com/BrianLeishman/go-imapfs/session"
)

// Error kinds. Every error returned by FS is a *PathError matching exactly
// one of them with errors.Is.
var (
	ErrInvalidPath       = errors.New("invalid path")
	ErrNotFound          = errors.New("resource not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrNotEmpty          = errors.New("directory not empty")
	ErrFileExpected      = errors.New("file expected")
	ErrDirectoryExpected = errors.New("directory expected")
	ErrAmbiguousResult   = errors.New("ambiguous result")
	ErrPartialMove       = errors.New("partial move")
	ErrUnavailable       = errors.New("server unavailable")
	ErrServerRejected    = errors.New("rejected by server")
	ErrUnsupportedServer = errors.New("unsupported server")
	ErrClosed            = errors.New("filesystem closed")

	// ErrPermissionDenied and ErrQuotaExceeded also match ErrServerRejected.
	ErrPermissionDenied = &refinedError{msg: "permission denied", parent: ErrServerRejected}
	ErrQuotaExceeded    = &refinedError{msg: "quota exceeded", parent: ErrServerRejected}

	// Aliases used by filesystem contracts.
	ErrDirectoryExists   = ErrAlreadyExists
	ErrDirectoryNotEmpty = ErrNotEmpty
)

type refinedError struct {
	msg    string
	parent error
}

func (e *refinedError) Error() string { return e.msg }

func (e *refinedError) Unwrap() error { return e.parent }

// PathError records the operation and path that failed.
type PathError struct {
	Op   string
	Path string
	Kind error // one of the Err* kinds
	Err  error // underlying cause
}

func (e *PathError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("imapfs %s %q: %v", e.Op, e.Path, e.Kind)
	}
	if errors.Is(e.Err, e.Kind) {
		return fmt.Sprintf("imapfs %s %q: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("imapfs %s %q: %v: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *PathError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// kinds is checked in order; refinements precede ErrServerRejected.
var kinds = []error{
	ErrClosed,
	ErrPartialMove,
	ErrAmbiguousResult,
	ErrInvalidPath,
	ErrUnsupportedServer,
	ErrFileExpected,
	ErrDirectoryExpected,
	ErrNotFound,
	ErrAlreadyExists,
	ErrNotEmpty,
	ErrUnavailable,
	ErrPermissionDenied,
	ErrQuotaExceeded,
	ErrServerRejected,
}

var statusCodeKinds = map[string]error{
	"NONEXISTENT":          ErrNotFound,
	"TRYCREATE":            ErrNotFound,
	"ALREADYEXISTS":        ErrAlreadyExists,
	"HASCHILDREN":          ErrNotEmpty,
	"OVERQUOTA":            ErrQuotaExceeded,
	"LIMIT":                ErrQuotaExceeded,
	"NOPERM":               ErrPermissionDenied,
	"AUTHORIZATIONFAILED":  ErrPermissionDenied,
	"AUTHENTICATIONFAILED": ErrPermissionDenied,
	"UNAVAILABLE":          ErrUnavailable,
}

// Servers without response codes only explain themselves in text.
var statusTextKinds = []struct {
	re   *regexp.Regexp
	kind error
}{
	{regexp.MustCompile(`(?i)(does ?n[o']t exist|no such|not found|unknown mailbox|nonexistent)`), ErrNotFound},
	{regexp.MustCompile(`(?i)already exists`), ErrAlreadyExists},
	{regexp.MustCompile(`(?i)(has (inferior|children|child)|not empty)`), ErrNotEmpty},
	{regexp.MustCompile(`(?i)(quota|over ?limit|mailbox (is )?full)`), ErrQuotaExceeded},
	{regexp.MustCompile(`(?i)(permission|not allowed|denied|read-only|forbidden)`), ErrPermissionDenied},
}

// classify maps an engine or session error to its kind.
func classify(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}

	var se *session.StatusError
	if errors.As(err, &se) {
		if kind, ok := statusCodeKinds[se.CodeName()]; ok {
			return kind
		}
		for _, t := range statusTextKinds {
			if t.re.MatchString(se.Text) {
				return t.kind
			}
		}
		return ErrServerRejected
	}

	if errors.Is(err, session.ErrNoSuchMessage) {
		return ErrNotFound
	}

	var ne net.Error
	if errors.Is(err, session.ErrConnection) ||
		errors.As(err, &ne) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) {
		return ErrUnavailable
	}

	return ErrServerRejected
}

// translate wraps err into a *PathError for op and path.
func translate(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PathError
	if errors.As(err, &pe) {
		return pe
	}
	return &PathError{Op: op, Path: path, Kind: classify(err), Err: err}
}
