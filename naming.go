package imapfs

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// displayName is the file name of the message with the given UID.
func displayName(uid uint32) string {
	return strconv.FormatUint(uint64(uid), 10) + messageExt
}

// parseDisplayName accepts only the canonical form displayName produces,
// so "01.eml" or "+1.eml" never alias "1.eml".
func parseDisplayName(name string) (uint32, bool) {
	stem, ok := strings.CutSuffix(name, messageExt)
	if !ok || stem == "" || stem[0] == '0' {
		return 0, false
	}
	for _, c := range stem {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	uid, err := strconv.ParseUint(stem, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(uid), true
}

// checkNewContentName validates the name a caller wants to write to. The
// name itself is never stored.
func checkNewContentName(name string) error {
	stem, ok := strings.CutSuffix(name, messageExt)
	if !ok {
		return fmt.Errorf("%w: %q lacks the %s extension", ErrInvalidPath, name, messageExt)
	}
	if stem == "" {
		return fmt.Errorf("%w: %q has an empty name", ErrInvalidPath, name)
	}
	return nil
}

// resolveNewUID finds the entry a successful APPEND or COPY created in node.
// A UID confirmed by the server (APPENDUID/COPYUID) under the current
// UIDVALIDITY wins. Otherwise the refreshed index is diffed against prior
// and exactly one new UID must show up.
func (fs *FS) resolveNewUID(node *folderNode, prior *messageIndex, validity, uid uint32) (*messageEntry, error) {
	fs.invalidate(node)
	idx, _, err := fs.syncFolder(node)
	if err != nil {
		return nil, err
	}

	if uid != 0 && (validity == 0 || validity == idx.validity) {
		if e, ok := idx.entries[uid]; ok {
			return e, nil
		}
		// expunged by someone else already; the UID is still the answer
		fs.debugLog("confirmed uid not listed", "mailbox", node.mailbox, "uid", uid)
		return &messageEntry{UID: uid}, nil
	}

	if prior == nil || prior.validity != idx.validity {
		return nil, fmt.Errorf("%w: uid validity of %s changed during the operation", ErrAmbiguousResult, node.mailbox)
	}
	added := make([]uint32, 0, 1)
	for _, u := range idx.uids {
		if _, ok := prior.entries[u]; !ok {
			added = append(added, u)
		}
	}
	if len(added) != 1 {
		return nil, fmt.Errorf("%w: %d new messages in %s", ErrAmbiguousResult, len(added), node.mailbox)
	}
	return idx.entries[added[0]], nil
}

// sortedUIDs returns the keys of entries in ascending order.
func sortedUIDs(entries map[uint32]*messageEntry) []uint32 {
	uids := make([]uint32, 0, len(entries))
	for u := range entries {
		uids = append(uids, u)
	}
	slices.Sort(uids)
	return uids
}
