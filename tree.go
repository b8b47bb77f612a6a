package imapfs

import (
	"fmt"
	"strings"

	"github.com/emersion/go-imap/utf7"

	"github.com/BrianLeishman/go-imapfs/session"
)

// folderNode is one mailbox, or an ancestor the server only implied.
type folderNode struct {
	name     string // decoded path segment, "" for the root
	mailbox  string // name on the wire, "" for the root
	attrs    []string
	implied  bool
	parent   *folderNode
	children []*folderNode // server listing order
	byName   map[string]*folderNode

	index *messageIndex
	stale bool // index must be reconciled on next use
	dirty bool // children must be reloaded on next use
}

func (n *folderNode) isRoot() bool { return n.parent == nil }

func (n *folderNode) hasAttr(attr string) bool {
	for _, a := range n.attrs {
		if strings.EqualFold(a, attr) {
			return true
		}
	}
	return false
}

// selectable reports whether the mailbox can hold messages.
func (n *folderNode) selectable() bool {
	return !n.isRoot() && !n.implied && !n.hasAttr(`\Noselect`) && !n.hasAttr(`\NonExistent`)
}

func (n *folderNode) child(name string) *folderNode {
	if n.byName == nil {
		return nil
	}
	return n.byName[name]
}

func (n *folderNode) addChild(c *folderNode) {
	if n.byName == nil {
		n.byName = make(map[string]*folderNode)
	}
	c.parent = n
	n.children = append(n.children, c)
	n.byName[c.name] = c
}

// segments returns the path of n from the root.
func (n *folderNode) segments() []string {
	var segs []string
	for c := n; !c.isRoot(); c = c.parent {
		segs = append(segs, c.name)
	}
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return segs
}

func (n *folderNode) path() string { return joinPath(n.segments()...) }

func (n *folderNode) walk(fn func(*folderNode)) {
	fn(n)
	for _, c := range n.children {
		c.walk(fn)
	}
}

// folderTree is a snapshot of the mailbox hierarchy. Only per-node cache
// state changes in place; structural changes build a new tree.
type folderTree struct {
	root  *folderNode
	delim string // "" when the server reports a flat namespace
}

// buildTree builds the hierarchy from a LIST response. Message indexes of
// prev are carried over by mailbox name.
func buildTree(mailboxes []session.Mailbox, prev *folderTree, log func(msg string, args ...any)) (*folderTree, error) {
	t := &folderTree{root: &folderNode{}}
	for _, mb := range mailboxes {
		if mb.Delimiter == "" {
			continue
		}
		if len(mb.Delimiter) != 1 {
			return nil, fmt.Errorf("%w: hierarchy delimiter %q", ErrUnsupportedServer, mb.Delimiter)
		}
		if t.delim == "" {
			t.delim = mb.Delimiter
		} else if t.delim != mb.Delimiter {
			return nil, fmt.Errorf("%w: mixed hierarchy delimiters %q and %q", ErrUnsupportedServer, t.delim, mb.Delimiter)
		}
	}

	for _, mb := range mailboxes {
		raw := []string{mb.Name}
		if t.delim != "" {
			raw = strings.Split(mb.Name, t.delim)
		}
		segs, err := decodeSegments(raw)
		if err != nil {
			log("skipping mailbox", "mailbox", mb.Name, "error", err)
			continue
		}
		if strings.EqualFold(segs[0], "INBOX") {
			segs[0] = "INBOX"
		}

		node := t.root
		for i, seg := range segs {
			c := node.child(seg)
			if c == nil {
				c = &folderNode{name: seg, mailbox: strings.Join(raw[:i+1], t.delim), implied: true}
				node.addChild(c)
			}
			node = c
		}
		node.implied = false
		node.mailbox = mb.Name
		node.attrs = mb.Attributes
	}

	if prev != nil {
		old := make(map[string]*folderNode)
		prev.root.walk(func(n *folderNode) {
			if !n.isRoot() {
				old[n.mailbox] = n
			}
		})
		t.root.walk(func(n *folderNode) {
			if o, ok := old[n.mailbox]; ok && !n.isRoot() {
				n.index = o.index
				n.stale = o.stale
			}
		})
	}
	return t, nil
}

func decodeSegments(raw []string) ([]string, error) {
	segs := make([]string, len(raw))
	dec := utf7.Encoding.NewDecoder()
	for i, r := range raw {
		s, err := dec.String(r)
		if err != nil {
			return nil, fmt.Errorf("invalid modified UTF-7 %q: %w", r, err)
		}
		switch {
		case s == "", s == ".", s == "..":
			return nil, fmt.Errorf("segment %q cannot be a path segment", s)
		case strings.ContainsAny(s, "/\x00"):
			return nil, fmt.Errorf("segment %q contains a path separator", s)
		}
		segs[i] = s
	}
	return segs, nil
}

// find walks segs from the root. dirty reports whether a node on the way
// has pending child changes.
func (t *folderTree) find(segs []string) (node *folderNode, dirty bool) {
	node = t.root
	dirty = node.dirty
	for _, s := range segs {
		if node.isRoot() && strings.EqualFold(s, "INBOX") {
			s = "INBOX"
		}
		node = node.child(s)
		if node == nil {
			return nil, dirty
		}
		dirty = dirty || node.dirty
	}
	return node, dirty
}

// mailboxFor returns the wire name of a new child called name under parent.
func (t *folderTree) mailboxFor(parent *folderNode, name string) (string, error) {
	enc, err := utf7.Encoding.NewEncoder().String(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidPath, name, err)
	}
	if t.delim != "" && strings.Contains(enc, t.delim) {
		return "", fmt.Errorf("%w: %q contains the server hierarchy delimiter %q", ErrInvalidPath, name, t.delim)
	}
	if parent.isRoot() {
		return enc, nil
	}
	if t.delim == "" {
		return "", fmt.Errorf("%w: server has a flat mailbox namespace", ErrUnsupportedServer)
	}
	return parent.mailbox + t.delim + enc, nil
}
