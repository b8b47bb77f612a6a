package session

import (
	"errors"
	"testing"
	"time"
)

// TestAuthenticationNoRecursion verifies that authentication failures don't cause recursion
func TestAuthenticationNoRecursion(t *testing.T) {
	originalVerbose := Verbose
	originalRetryCount := RetryCount
	originalTLSSkipVerify := TLSSkipVerify

	Verbose = false
	RetryCount = 3       // Set retry count to verify it's not used for auth
	TLSSkipVerify = true // Skip verification for test cert

	defer func() {
		Verbose = originalVerbose
		RetryCount = originalRetryCount
		TLSSkipVerify = originalTLSSkipVerify
	}()

	server, err := newMockIMAPServer("testuser", "testpass")
	if err != nil {
		t.Fatalf("Failed to create mock server: %v", err)
	}
	defer server.Close()

	t.Run("SuccessfulAuth", func(t *testing.T) {
		server.ResetAuthAttempts()

		d, err := New("testuser", "testpass", server.GetHost(), server.GetPort())
		if err != nil {
			t.Fatalf("Expected successful connection, got error: %v", err)
		}
		defer d.Close()

		if attempts := server.GetAuthAttempts(); attempts != 1 {
			t.Errorf("Expected 1 auth attempt, got %d", attempts)
		}
		if !d.HasCapability("uidplus") {
			t.Error("Expected UIDPLUS capability to be recorded")
		}
	})

	t.Run("FailedAuthNoRetry", func(t *testing.T) {
		server.ResetAuthAttempts()

		done := make(chan bool, 1)
		var connErr error

		go func() {
			_, connErr = New("testuser", "wrongpass", server.GetHost(), server.GetPort())
			done <- true
		}()

		select {
		case <-done:
			if connErr == nil {
				t.Error("Expected authentication error, got nil")
			}
			var se *StatusError
			if !errors.As(connErr, &se) || se.CodeName() != "AUTHENTICATIONFAILED" {
				t.Errorf("Expected AUTHENTICATIONFAILED status error, got %v", connErr)
			}
		case <-time.After(2 * time.Second):
			t.Error("Authentication appears to be stuck in recursion")
		}

		if attempts := server.GetAuthAttempts(); attempts != 1 {
			t.Errorf("Expected 1 auth attempt (no retry), got %d", attempts)
		}
	})

	t.Run("XOAuth2NoRetry", func(t *testing.T) {
		server.ResetAuthAttempts()
		server.failAuth = true
		defer func() { server.failAuth = false }()

		done := make(chan bool, 1)
		var connErr error

		go func() {
			_, connErr = NewWithOAuth2("testuser", "token", server.GetHost(), server.GetPort())
			done <- true
		}()

		select {
		case <-done:
			if connErr == nil {
				t.Error("Expected authentication error, got nil")
			}
		case <-time.After(2 * time.Second):
			t.Error("XOAUTH2 authentication appears to be stuck in recursion")
		}

		if attempts := server.GetAuthAttempts(); attempts != 1 {
			t.Errorf("Expected 1 XOAUTH2 auth attempt (no retry), got %d", attempts)
		}
	})
}

// TestConnectionRetry verifies that connection failures still retry
func TestConnectionRetry(t *testing.T) {
	originalVerbose := Verbose
	originalRetryCount := RetryCount
	originalDialTimeout := DialTimeout

	Verbose = false
	RetryCount = 2
	DialTimeout = 1 * time.Second

	defer func() {
		Verbose = originalVerbose
		RetryCount = originalRetryCount
		DialTimeout = originalDialTimeout
	}()

	start := time.Now()
	_, err := New("user", "pass", "127.0.0.1", 59999) // Use unlikely port
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("Expected connection error, got nil")
	}
	if !errors.Is(err, ErrConnection) {
		t.Errorf("Expected ErrConnection, got %v", err)
	}

	if elapsed < 100*time.Millisecond {
		t.Error("Connection failed too quickly, retries may not be working")
	}
	if elapsed > 30*time.Second {
		t.Error("Connection took too long, possible infinite loop")
	}
}

// TestReconnectWithBadCredentials verifies Reconnect handles auth failures properly
func TestReconnectWithBadCredentials(t *testing.T) {
	server, d := startMockServer(t)

	d.Password = "wrongpass"
	server.ResetAuthAttempts()

	if err := d.Reconnect(); err == nil {
		t.Error("Expected reconnect to fail with bad credentials")
	}

	if attempts := server.GetAuthAttempts(); attempts != 1 {
		t.Errorf("Expected 1 auth attempt on reconnect, got %d", attempts)
	}
	if d.Connected {
		t.Error("Connection should be closed after failed reconnect")
	}
}

func TestLogoutClosesConnection(t *testing.T) {
	server, d := startMockServer(t)

	if err := d.Logout(); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if d.Connected {
		t.Error("Connection should be closed after logout")
	}
	if server.count("LOGOUT") != 1 {
		t.Errorf("Expected one LOGOUT, got commands %v", server.Commands())
	}
	// a second logout is a no-op
	if err := d.Logout(); err != nil {
		t.Errorf("second Logout error: %v", err)
	}
}
