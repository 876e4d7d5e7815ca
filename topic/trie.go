package topic

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/embermq/broker/packet"
)

// node is one level of the subscription trie. Nodes are immutable once
// published: a writer never mutates a node another goroutine might be
// reading, it clones it first. children and subscribers are therefore
// only ever written right after a clone, before the node is linked
// into the tree that readers see.
type node struct {
	children    map[string]*node
	subscribers map[string]Subscriber // keyed by SessionKey
}

func newNode() *node {
	return &node{
		children:    make(map[string]*node),
		subscribers: make(map[string]Subscriber),
	}
}

func cloneNode(n *node) *node {
	c := newNode()
	if n == nil {
		return c
	}
	for k, v := range n.children {
		c.children[k] = v
	}
	for k, v := range n.subscribers {
		c.subscribers[k] = v
	}
	return c
}

// Tree is the copy-on-write subscription index: filters and their
// subscribers, indexed by topic level for wildcard matching. Readers
// (Match) take an atomic, lock-free snapshot of the root and
// walk it without ever blocking; a single writer mutex serializes
// Subscribe/Unsubscribe transactions, each of which clones only the
// root-to-leaf path it touches and then atomically swaps the root.
//
// Grounded on hook/manager.go's atomic.Pointer + single-writer-mutex
// discipline (itself grounded on the acatl original's
// SubscriptionTreeManager/WritableTree), generalized from a flat slice
// to a trie.
type Tree struct {
	root    atomic.Pointer[node]
	writeMu sync.Mutex
}

// NewTree returns an empty subscription tree.
func NewTree() *Tree {
	t := &Tree{}
	t.root.Store(newNode())
	return t
}

// Subscribe inserts or replaces sub under filter. If the session already
// has an entry at this filter, its MaxQoS is replaced.
func (t *Tree) Subscribe(filter string, sub Subscriber) error {
	if err := packet.ValidateTopicFilter(filter); err != nil {
		return err
	}
	levels := packet.SplitTopicLevels(filter)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	oldRoot := t.root.Load()
	newRoot := insertPath(oldRoot, levels, 0, sub)
	t.root.Store(newRoot)
	return nil
}

func insertPath(n *node, levels []string, depth int, sub Subscriber) *node {
	clone := cloneNode(n)
	if depth == len(levels) {
		clone.subscribers[sub.SessionKey] = sub
		return clone
	}
	level := levels[depth]
	clone.children[level] = insertPath(clone.children[level], levels, depth+1, sub)
	return clone
}

// Unsubscribe removes sessionKey's entry at filter, reporting whether
// an entry was actually present. Nodes left with no children and no
// subscribers are pruned from the cloned path.
func (t *Tree) Unsubscribe(filter, sessionKey string) bool {
	levels := packet.SplitTopicLevels(filter)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	oldRoot := t.root.Load()
	newRoot, removed := removePath(oldRoot, levels, 0, sessionKey)
	if newRoot == nil {
		newRoot = newNode()
	}
	t.root.Store(newRoot)
	return removed
}

// removePath returns the rebuilt subtree (nil if it became empty) and
// whether an entry was removed anywhere along the path.
func removePath(n *node, levels []string, depth int, sessionKey string) (*node, bool) {
	if n == nil {
		return nil, false
	}
	clone := cloneNode(n)
	removed := false

	if depth == len(levels) {
		if _, ok := clone.subscribers[sessionKey]; ok {
			delete(clone.subscribers, sessionKey)
			removed = true
		}
	} else {
		level := levels[depth]
		if child, ok := clone.children[level]; ok {
			newChild, didRemove := removePath(child, levels, depth+1, sessionKey)
			removed = didRemove
			if newChild == nil {
				delete(clone.children, level)
			} else {
				clone.children[level] = newChild
			}
		}
	}

	if len(clone.children) == 0 && len(clone.subscribers) == 0 {
		return nil, removed
	}
	return clone, removed
}

// RemoveSession drops every subscription belonging to sessionKey,
// wherever in the tree they live. Used when a session is destroyed
// (clean_session CONNECT, or explicit removal).
func (t *Tree) RemoveSession(sessionKey string) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	oldRoot := t.root.Load()
	newRoot := pruneSession(oldRoot, sessionKey)
	if newRoot == nil {
		newRoot = newNode()
	}
	t.root.Store(newRoot)
}

func pruneSession(n *node, sessionKey string) *node {
	if n == nil {
		return nil
	}
	clone := cloneNode(n)
	delete(clone.subscribers, sessionKey)
	for level, child := range clone.children {
		newChild := pruneSession(child, sessionKey)
		if newChild == nil {
			delete(clone.children, level)
		} else {
			clone.children[level] = newChild
		}
	}
	if len(clone.children) == 0 && len(clone.subscribers) == 0 {
		return nil
	}
	return clone
}

// Match resolves the subscribers whose filter matches topic, capping
// each subscriber's delivery QoS at publishQoS. When one session is
// reachable by multiple matching filters, the highest granted QoS
// wins, capped by the publish's own QoS.
func (t *Tree) Match(topic string, publishQoS packet.QoS) []Match {
	levels := packet.SplitTopicLevels(topic)
	root := t.root.Load()

	best := make(map[string]Subscriber)
	matchWalk(root, levels, 0, strings.HasPrefix(topic, "$"), best)

	out := make([]Match, 0, len(best))
	for _, sub := range best {
		qos := sub.MaxQoS
		if publishQoS < qos {
			qos = publishQoS
		}
		out = append(out, Match{Subscriber: sub, QoS: qos})
	}
	return out
}

func matchWalk(n *node, levels []string, depth int, reservedRoot bool, best map[string]Subscriber) {
	if n == nil {
		return
	}

	skipWildcards := depth == 0 && reservedRoot

	// '#' matches zero or more remaining segments from here, at any
	// depth, and terminates that branch.
	if !skipWildcards {
		if multi, ok := n.children["#"]; ok {
			collectAll(multi, best)
		}
	}

	if depth == len(levels) {
		mergeBest(best, n.subscribers)
		return
	}

	level := levels[depth]
	if child, ok := n.children[level]; ok {
		matchWalk(child, levels, depth+1, reservedRoot, best)
	}
	if !skipWildcards {
		if plus, ok := n.children["+"]; ok {
			matchWalk(plus, levels, depth+1, reservedRoot, best)
		}
	}
}

// collectAll gathers every subscriber at or below n (used once a '#'
// wildcard has matched; everything beneath it is in scope).
func collectAll(n *node, best map[string]Subscriber) {
	if n == nil {
		return
	}
	mergeBest(best, n.subscribers)
	for _, child := range n.children {
		collectAll(child, best)
	}
}

func mergeBest(best map[string]Subscriber, subs map[string]Subscriber) {
	for key, sub := range subs {
		if existing, ok := best[key]; !ok || sub.MaxQoS > existing.MaxQoS {
			best[key] = sub
		}
	}
}

// Count returns the total number of (filter, session) subscription
// entries currently held, for diagnostics/metrics.
func (t *Tree) Count() int {
	return countNode(t.root.Load())
}

func countNode(n *node) int {
	if n == nil {
		return 0
	}
	c := len(n.subscribers)
	for _, child := range n.children {
		c += countNode(child)
	}
	return c
}
