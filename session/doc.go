// Package session is the IMAP session used by imapfs.
//
// A Dialer owns one TLS connection and exposes the handful of command
// primitives the filesystem engine needs:
//
//   - LOGIN or XOAUTH2 authentication, CAPABILITY
//   - LIST, SELECT, CREATE, DELETE, RENAME
//   - UID FETCH of metadata, headers and bodies
//   - APPEND, UID COPY, UID STORE, EXPUNGE / UID EXPUNGE
//
// Idempotent commands are retried after transport failures with a fresh
// connection, re-authentication and mailbox restore. Commands that change
// server state (APPEND, COPY, EXPUNGE, CREATE, DELETE, RENAME) are sent
// exactly once. Tagged NO and BAD responses are returned as *StatusError and
// never retried.
//
// A Dialer is not safe for concurrent use.
package session
