package session

import (
	"bufio"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var literalSizeRE = regexp.MustCompile(`{(\d+)}$`)

// mockIMAPServer is a scripted IMAP server for testing
type mockIMAPServer struct {
	listener     net.Listener
	address      string
	authAttempts int32
	connections  int32
	validUser    string
	validPass    string
	failAuth     bool
	noUIDPlus    bool

	mu       sync.Mutex
	commands []string          // verbs in arrival order
	untagged map[string]string // verb -> untagged lines written before OK
	replies  map[string]string // verb -> tagged completion (without tag)
	dropOnce map[string]bool   // verb -> close the connection instead of answering, once
	appended [][]byte
}

func newMockIMAPServer(validUser, validPass string) (*mockIMAPServer, error) {
	cert, err := generateSelfSignedCertificate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate certificate: %v", err)
	}

	listener, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS listener: %v", err)
	}

	server := &mockIMAPServer{
		listener:  listener,
		address:   listener.Addr().String(),
		validUser: validUser,
		validPass: validPass,
		untagged:  make(map[string]string),
		replies:   make(map[string]string),
		dropOnce:  make(map[string]bool),
	}

	go server.serve()
	return server, nil
}

// startMockServer starts a server and a logged in Dialer against it.
func startMockServer(t *testing.T) (*mockIMAPServer, *Dialer) {
	t.Helper()

	originalVerbose := Verbose
	originalTLSSkipVerify := TLSSkipVerify
	Verbose = false
	TLSSkipVerify = true
	t.Cleanup(func() {
		Verbose = originalVerbose
		TLSSkipVerify = originalTLSSkipVerify
	})

	server, err := newMockIMAPServer("testuser", "testpass")
	if err != nil {
		t.Fatalf("Failed to create mock server: %v", err)
	}
	t.Cleanup(server.Close)

	d, err := New("testuser", "testpass", server.GetHost(), server.GetPort())
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return server, d
}

// script sets the untagged lines and tagged completion for a verb.
func (s *mockIMAPServer) script(verb, untagged, completion string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.untagged[verb] = untagged
	s.replies[verb] = completion
}

func (s *mockIMAPServer) drop(verb string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropOnce[verb] = true
}

func (s *mockIMAPServer) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *mockIMAPServer) Appended() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.appended...)
}

func (s *mockIMAPServer) count(verb string) int {
	n := 0
	for _, c := range s.Commands() {
		if c == verb {
			n++
		}
	}
	return n
}

func (s *mockIMAPServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		atomic.AddInt32(&s.connections, 1)
		go s.handleConnection(conn)
	}
}

func (s *mockIMAPServer) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	writer.WriteString("* OK IMAP4rev1 Mock Server Ready\r\n")
	writer.Flush()

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		line = strings.TrimRight(line, "\r\n")
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		tag := parts[0]
		command := strings.ToUpper(parts[1])
		if command == "UID" && len(parts) > 2 {
			command += " " + strings.ToUpper(parts[2])
		}

		s.mu.Lock()
		s.commands = append(s.commands, command)
		drop := s.dropOnce[command]
		delete(s.dropOnce, command)
		untagged, scripted := s.untagged[command]
		reply := s.replies[command]
		s.mu.Unlock()

		if drop {
			return
		}

		switch command {
		case "LOGIN":
			atomic.AddInt32(&s.authAttempts, 1)
			if len(parts) < 4 {
				writer.WriteString(fmt.Sprintf("%s BAD Invalid LOGIN command\r\n", tag))
				break
			}
			username := strings.Trim(parts[2], `"`)
			password := strings.Trim(parts[3], `"`)
			if !s.failAuth && username == s.validUser && password == s.validPass {
				writer.WriteString(fmt.Sprintf("%s OK LOGIN completed\r\n", tag))
			} else {
				writer.WriteString(fmt.Sprintf("%s NO [AUTHENTICATIONFAILED] Authentication failed\r\n", tag))
			}

		case "AUTHENTICATE":
			atomic.AddInt32(&s.authAttempts, 1)
			if s.failAuth {
				writer.WriteString(fmt.Sprintf("%s NO AUTHENTICATE failed\r\n", tag))
			} else {
				writer.WriteString(fmt.Sprintf("%s OK AUTHENTICATE completed\r\n", tag))
			}

		case "CAPABILITY":
			if s.noUIDPlus {
				writer.WriteString("* CAPABILITY IMAP4rev1 AUTH=XOAUTH2\r\n")
			} else {
				writer.WriteString("* CAPABILITY IMAP4rev1 UIDPLUS AUTH=XOAUTH2\r\n")
			}
			writer.WriteString(fmt.Sprintf("%s OK CAPABILITY completed\r\n", tag))

		case "LOGOUT":
			writer.WriteString("* BYE IMAP4rev1 Server logging out\r\n")
			writer.WriteString(fmt.Sprintf("%s OK LOGOUT completed\r\n", tag))
			writer.Flush()
			return

		case "APPEND":
			m := literalSizeRE.FindStringSubmatch(line)
			if m == nil {
				writer.WriteString(fmt.Sprintf("%s BAD missing literal\r\n", tag))
				break
			}
			if scripted && strings.HasPrefix(reply, "NO") {
				// reject before the continuation
				writer.WriteString(fmt.Sprintf("%s %s\r\n", tag, reply))
				break
			}
			n, _ := strconv.Atoi(m[1])
			writer.WriteString("+ Ready for literal data\r\n")
			writer.Flush()
			body := make([]byte, n)
			if _, err := io.ReadFull(reader, body); err != nil {
				return
			}
			if _, err := reader.ReadString('\n'); err != nil {
				return
			}
			s.mu.Lock()
			s.appended = append(s.appended, body)
			uid := len(s.appended)
			s.mu.Unlock()
			if scripted {
				writer.WriteString(untagged)
				writer.WriteString(fmt.Sprintf("%s %s\r\n", tag, reply))
			} else {
				writer.WriteString(fmt.Sprintf("%s OK [APPENDUID 7 %d] APPEND completed\r\n", tag, uid))
			}

		default:
			if scripted {
				writer.WriteString(untagged)
				writer.WriteString(fmt.Sprintf("%s %s\r\n", tag, reply))
			} else {
				writer.WriteString(fmt.Sprintf("%s OK %s completed\r\n", tag, command))
			}
		}

		writer.Flush()
	}
}

func (s *mockIMAPServer) GetAuthAttempts() int {
	return int(atomic.LoadInt32(&s.authAttempts))
}

func (s *mockIMAPServer) ResetAuthAttempts() {
	atomic.StoreInt32(&s.authAttempts, 0)
}

func (s *mockIMAPServer) Close() {
	s.listener.Close()
}

func (s *mockIMAPServer) GetHost() string {
	host, _, _ := net.SplitHostPort(s.address)
	return host
}

func (s *mockIMAPServer) GetPort() int {
	_, portStr, _ := net.SplitHostPort(s.address)
	port, _ := strconv.Atoi(portStr)
	return port
}

// generateSelfSignedCertificate generates a self-signed certificate for testing
func generateSelfSignedCertificate() (tls.Certificate, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Test Co"},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1)},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	return tls.X509KeyPair(certPEM, keyPEM)
}
