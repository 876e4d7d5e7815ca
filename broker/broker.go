// Package broker wires session management, topic subscription matching
// and retained-message persistence into MQTT control-packet handling.
// It is the one place in the module that knows about all three.
package broker

import (
	"log/slog"
	"os"
	"time"

	"github.com/embermq/broker/metrics"
	"github.com/embermq/broker/network"
	"github.com/embermq/broker/retained"
	"github.com/embermq/broker/session"
	"github.com/embermq/broker/topic"
)

// Config bounds the broker's protocol-level behavior, independent of
// how its collaborators (session.Manager, topic.Tree, retained.Backend)
// are themselves configured.
type Config struct {
	// AllowAnonymous permits a CONNECT with no username/password. When
	// false, any such CONNECT is refused with ConnectRefusedNotAuthorized.
	AllowAnonymous bool

	// MaxKeepAliveSeconds caps the keep-alive a client may request; 0
	// leaves the client's request untouched.
	MaxKeepAliveSeconds uint16
}

// Broker is the protocol-level glue between a connection actor and the
// broker's session, topic and retained-message state.
type Broker struct {
	sessions  *session.Manager
	tree      *topic.Tree
	retained  retained.Backend
	idgen     func() string
	log       *slog.Logger
	cfg       Config
	metrics   *metrics.Metrics
	keepAlive *network.KeepAliveManager
}

// New builds a Broker. idgen supplies a broker-assigned client ID when
// a CONNECT arrives with an empty one; log defaults to a text logger on
// stderr when nil; m is optional and every metrics update is skipped
// when nil.
func New(sessions *session.Manager, tree *topic.Tree, backend retained.Backend, idgen func() string, log *slog.Logger, m *metrics.Metrics, cfg Config) *Broker {
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Broker{
		sessions:  sessions,
		tree:      tree,
		retained:  backend,
		idgen:     idgen,
		log:       log,
		cfg:       cfg,
		metrics:   m,
		keepAlive: network.NewKeepAliveManager(nil),
	}
}

// Close stops every connection's keep-alive monitor. Call it during
// server shutdown, after listeners have stopped accepting.
func (b *Broker) Close() {
	b.keepAlive.Close()
}

func (b *Broker) keepAliveFor(requested uint16) time.Duration {
	if b.cfg.MaxKeepAliveSeconds > 0 && requested > b.cfg.MaxKeepAliveSeconds {
		requested = b.cfg.MaxKeepAliveSeconds
	}
	return time.Duration(requested) * time.Second
}
