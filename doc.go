// Package imapfs exposes an IMAP account as a hierarchical filesystem.
//
// Mailboxes are directories and messages are files. A message is always
// named "{UID}.eml" after the UID the server assigned to it, so the name a
// caller passes when writing is advisory only:
//
//	name, err := fsys.WriteBytes("INBOX/TEST/2.eml", []byte("Test"))
//	// name == "INBOX/TEST/1.eml" when the server assigned UID 1
//
// The engine keeps an in-memory tree of mailboxes (built from LIST) and a
// per-mailbox index of messages keyed by UID. Indexes are checked against
// the UIDVALIDITY, UIDNEXT and EXISTS values reported by every SELECT and
// rebuilt or reconciled when they differ.
//
// IMAP has no atomic move. Move copies the message and then deletes the
// source; when the delete half fails the error matches ErrPartialMove and
// both copies stay readable.
//
// All operations on one FS are serialized: an IMAP session has a single
// selected mailbox.
package imapfs
