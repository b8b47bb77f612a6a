package imapfs

import (
	"errors"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/BrianLeishman/go-imapfs/session"
)

// messageEntry is one message of a mailbox.
type messageEntry struct {
	UID      uint32
	Seq      uint32
	Flags    []string
	Size     int64
	Received time.Time
}

func (e *messageEntry) name() string { return displayName(e.UID) }

// messageIndex is the listing of one mailbox as of one SELECT. It is never
// modified after construction; refreshes build a new index and swap it in.
type messageIndex struct {
	validity uint32
	uidNext  uint32
	exists   uint32
	entries  map[uint32]*messageEntry
	uids     []uint32 // ascending
}

var emptyIndex = &messageIndex{entries: map[uint32]*messageEntry{}}

func newIndex(sel session.SelectData, metas []session.MessageMeta) *messageIndex {
	idx := &messageIndex{
		validity: sel.UIDValidity,
		uidNext:  sel.UIDNext,
		exists:   sel.Exists,
		entries:  make(map[uint32]*messageEntry, len(metas)),
	}
	for _, m := range metas {
		idx.entries[m.UID] = &messageEntry{
			UID:      m.UID,
			Seq:      m.Seq,
			Flags:    m.Flags,
			Size:     m.Size,
			Received: m.InternalDate,
		}
	}
	idx.uids = sortedUIDs(idx.entries)
	return idx
}

// lookup maps a display name to its entry without scanning.
func (idx *messageIndex) lookup(name string) (*messageEntry, bool) {
	uid, ok := parseDisplayName(name)
	if !ok {
		return nil, false
	}
	e, ok := idx.entries[uid]
	return e, ok
}

// forgetIfGone marks the parent of node for reload when the server said the
// mailbox does not exist, so the next lookup drops it from the tree.
func (fs *FS) forgetIfGone(node *folderNode, err error) {
	var se *session.StatusError
	if node == nil || node.isRoot() || !errors.As(err, &se) || classify(err) != ErrNotFound {
		return
	}
	node.parent.dirty = true
	node.index = nil
	fs.debugLog("mailbox vanished from server", "mailbox", node.mailbox)
}

// invalidate marks the index of node for reconciliation on next use.
func (fs *FS) invalidate(node *folderNode) {
	if node != nil {
		node.stale = true
	}
}

// syncFolder selects node and returns an index consistent with what the
// server just reported. fresh is false when the cached index was reused.
func (fs *FS) syncFolder(node *folderNode) (idx *messageIndex, fresh bool, err error) {
	if !node.selectable() {
		return emptyIndex, true, nil
	}

	sel, err := fs.sess.Select(node.mailbox)
	if err != nil {
		fs.forgetIfGone(node, err)
		return nil, false, err
	}

	prev := node.index
	var reason string
	switch {
	case prev == nil:
		reason = "initial"
	case prev.validity != sel.UIDValidity:
		reason = "uidvalidity"
		fs.warnLog("uid validity changed, rebuilding index",
			"mailbox", node.mailbox, "old", prev.validity, "new", sel.UIDValidity)
	case node.stale:
		reason = "invalidated"
	case prev.uidNext != sel.UIDNext || prev.exists != sel.Exists:
		reason = "changed"
	default:
		return prev, false, nil
	}

	metas := []session.MessageMeta{}
	if sel.Exists > 0 {
		if metas, err = fs.sess.FetchMeta("1:*"); err != nil {
			return nil, false, err
		}
	}
	idx = newIndex(sel, metas)

	if prev != nil && reason != "uidvalidity" {
		added, removed := diffUIDs(prev, idx)
		fs.debugLog("reconciled index", "mailbox", node.mailbox, "reason", reason,
			"added", added, "removed", removed, "messages", len(idx.uids))
	} else {
		fs.debugLog("built index", "mailbox", node.mailbox, "reason", reason, "messages", len(idx.uids))
	}
	if Verbose {
		fs.debugLog("index state", "mailbox", node.mailbox, "dump", spew.Sdump(sel))
	}
	fs.metrics.rebuilds.WithLabelValues(reason).Inc()

	node.index = idx
	node.stale = false
	return idx, true, nil
}

// diffUIDs counts UIDs that appeared in and disappeared from next.
func diffUIDs(prev, next *messageIndex) (added, removed int) {
	for _, u := range next.uids {
		if _, ok := prev.entries[u]; !ok {
			added++
		}
	}
	for _, u := range prev.uids {
		if _, ok := next.entries[u]; !ok {
			removed++
		}
	}
	return added, removed
}
