package retained

import (
	"strings"
	"sync"
	"time"

	"github.com/embermq/broker/packet"
)

type trieNode struct {
	children map[string]*trieNode
	message  *Message
	mu       sync.RWMutex
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[string]*trieNode)}
}

// MemoryBackend indexes retained messages in a per-node-locked trie
// keyed by topic level, so Match can walk only the branches a wildcard
// filter actually touches instead of scanning every retained topic.
type MemoryBackend struct {
	mu     sync.RWMutex
	root   *trieNode
	count  int
	closed bool
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{root: newTrieNode()}
}

func (r *MemoryBackend) Set(topic string, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	if len(msg.Payload) == 0 {
		return r.deleteLocked(topic)
	}

	levels := packet.SplitTopicLevels(topic)
	node := r.root
	for _, level := range levels {
		node.mu.Lock()
		if node.children[level] == nil {
			node.children[level] = newTrieNode()
		}
		next := node.children[level]
		node.mu.Unlock()
		node = next
	}

	node.mu.Lock()
	if node.message == nil {
		r.count++
	}
	stored := msg
	node.message = &stored
	node.mu.Unlock()
	return nil
}

func (r *MemoryBackend) Delete(topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	return r.deleteLocked(topic)
}

func (r *MemoryBackend) deleteLocked(topic string) error {
	levels := packet.SplitTopicLevels(topic)
	if len(levels) == 0 {
		return nil
	}

	path := make([]*trieNode, 0, len(levels)+1)
	path = append(path, r.root)
	node := r.root
	for _, level := range levels {
		node.mu.RLock()
		next := node.children[level]
		node.mu.RUnlock()
		if next == nil {
			return nil
		}
		path = append(path, next)
		node = next
	}

	leaf := path[len(path)-1]
	leaf.mu.Lock()
	if leaf.message != nil {
		leaf.message = nil
		r.count--
	}
	leaf.mu.Unlock()

	for i := len(path) - 1; i > 0; i-- {
		current, parent := path[i], path[i-1]
		current.mu.RLock()
		empty := current.message == nil && len(current.children) == 0
		current.mu.RUnlock()
		if !empty {
			break
		}
		parent.mu.Lock()
		for key, child := range parent.children {
			if child == current {
				delete(parent.children, key)
				break
			}
		}
		parent.mu.Unlock()
	}
	return nil
}

func (r *MemoryBackend) Match(filter string) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}

	levels := packet.SplitTopicLevels(filter)
	var matched []Message
	now := time.Now()
	r.matchWalk(r.root, levels, 0, &matched, now)
	return matched, nil
}

func (r *MemoryBackend) matchWalk(n *trieNode, levels []string, depth int, matched *[]Message, now time.Time) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if depth == len(levels) {
		if n.message != nil && !n.message.expired(now) {
			*matched = append(*matched, *n.message)
		}
		return
	}

	level := levels[depth]
	switch level {
	case "#":
		if depth == 0 {
			// A leading '#' never matches a '$'-prefixed topic.
			for name, child := range n.children {
				if strings.HasPrefix(name, "$") {
					continue
				}
				child.mu.RLock()
				r.collectAll(child, matched, now)
				child.mu.RUnlock()
			}
			return
		}
		r.collectAll(n, matched, now)
	case "+":
		for name, child := range n.children {
			if depth == 0 && strings.HasPrefix(name, "$") {
				continue
			}
			r.matchWalk(child, levels, depth+1, matched, now)
		}
	default:
		if child := n.children[level]; child != nil {
			r.matchWalk(child, levels, depth+1, matched, now)
		}
	}
}

func (r *MemoryBackend) collectAll(n *trieNode, matched *[]Message, now time.Time) {
	if n.message != nil && !n.message.expired(now) {
		*matched = append(*matched, *n.message)
	}
	for _, child := range n.children {
		child.mu.RLock()
		r.collectAll(child, matched, now)
		child.mu.RUnlock()
	}
}

func (r *MemoryBackend) CleanupExpired() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ErrClosed
	}

	count := 0
	now := time.Now()
	r.cleanupWalk(r.root, now, &count)
	return count, nil
}

func (r *MemoryBackend) cleanupWalk(n *trieNode, now time.Time, count *int) {
	n.mu.Lock()
	if n.message != nil && n.message.expired(now) {
		n.message = nil
		*count++
		r.count--
	}
	children := make([]*trieNode, 0, len(n.children))
	for _, child := range n.children {
		children = append(children, child)
	}
	n.mu.Unlock()

	for _, child := range children {
		r.cleanupWalk(child, now, count)
	}
}

func (r *MemoryBackend) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return 0, ErrClosed
	}
	return r.count, nil
}

func (r *MemoryBackend) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.closed = true
	r.root = nil
	r.count = 0
	return nil
}
