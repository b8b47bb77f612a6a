package session

import (
	"testing"
)

func TestTagFormat(t *testing.T) {
	d := &Dialer{}
	for range 100 {
		tag := d.nextTag()

		if len(tag) != 20 {
			t.Fatalf("expected tag length 20, got %d: %q", len(tag), tag)
		}

		for _, c := range tag {
			if !((c >= '0' && c <= '9') || (c >= 'A' && c <= 'V')) {
				t.Fatalf("tag contains invalid character %q in %q", string(c), tag)
			}
		}
	}
}

func TestTagUniqueness(t *testing.T) {
	d := &Dialer{}
	seen := make(map[string]struct{})
	for range 1000 {
		tag := d.nextTag()
		if _, ok := seen[tag]; ok {
			t.Fatalf("duplicate tag generated: %q", tag)
		}
		seen[tag] = struct{}{}
	}
}

func TestCommandVerb(t *testing.T) {
	tests := map[string]string{
		`SELECT "INBOX"`:       "SELECT",
		`uid copy 4 "Archive"`: "UID COPY",
		`UID EXPUNGE 4`:        "UID EXPUNGE",
		`APPEND "INBOX" {4}`:   "APPEND",
		`UID`:                  "UID",
		``:                     "",
	}
	for command, want := range tests {
		if got := commandVerb(command); got != want {
			t.Errorf("commandVerb(%q) = %q, want %q", command, got, want)
		}
	}
}
