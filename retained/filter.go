package retained

import (
	"strings"

	"github.com/embermq/broker/packet"
)

// matchesFilter reports whether topic (a literal, previously-published
// topic name) is matched by filter (a possibly-wildcarded SUBSCRIBE
// filter). Used by the key-value backends, which hold retained
// messages as a flat map and must test each stored topic individually
// rather than walking a trie the way MemoryBackend does.
func matchesFilter(filter, topic string) bool {
	if strings.HasPrefix(topic, "$") && !strings.HasPrefix(filter, "$") {
		return false
	}
	fl := packet.SplitTopicLevels(filter)
	tl := packet.SplitTopicLevels(topic)

	for i, f := range fl {
		if f == "#" {
			return true
		}
		if i >= len(tl) {
			return false
		}
		if f == "+" {
			continue
		}
		if f != tl[i] {
			return false
		}
	}
	return len(fl) == len(tl)
}
