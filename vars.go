package imapfs

// Verbose logs every filesystem operation and cache decision at debug level
var Verbose = false

// messageExt is the extension of every message file
const messageExt = ".eml"

// emptyBody is stored in place of empty content; servers reject empty
// APPEND literals.
var emptyBody = []byte("\r\n")
