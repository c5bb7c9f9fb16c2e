package mesh

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/clipmesh/clipmesh/internal/message"
	"github.com/clipmesh/clipmesh/internal/metrics"
)

const (
	dialTimeout = 10 * time.Second
	// redialDelay is the fixed backoff between outbound connection attempts.
	// Peers in a mesh go away and come back all the time; a flat retry keeps
	// reconnection prompt without hammering a host that is briefly down.
	redialDelay = 3 * time.Second
)

// PeerLink supervises the connection to one configured peer address. It
// dials, runs the connection until it dies, and redials forever. The rest of
// the node never holds a stale handle: Broadcast sees whatever connection is
// currently registered, or none while the link is down.
type PeerLink struct {
	node *Node
	addr string

	mu      sync.Mutex
	current *Conn // nil while disconnected
}

func newPeerLink(n *Node, addr string) *PeerLink {
	return &PeerLink{node: n, addr: addr}
}

// run is the link's supervision loop. It exits only when ctx is cancelled.
func (l *PeerLink) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		nc, err := net.DialTimeout("tcp", l.addr, dialTimeout)
		if err != nil {
			slog.Debug("dial failed", "peer", l.addr, "retry_in", redialDelay, "err", err)
			if !sleepCtx(ctx, redialDelay) {
				return
			}
			continue
		}

		l.runConn(ctx, nc)

		if !sleepCtx(ctx, redialDelay) {
			return
		}
	}
}

// runConn handshakes and serves one established connection until it dies.
func (l *PeerLink) runConn(ctx context.Context, nc net.Conn) {
	c := newConn(nc, l.node.cfg.Key, "outbound")

	// Introduce ourselves; carries the shared secret when one is configured.
	if err := c.wc.WriteMsg(&message.Message{
		Type:   message.TypeHello,
		Source: l.node.cfg.Origin,
		Token:  l.node.cfg.Secret,
	}); err != nil {
		slog.Warn("handshake failed", "peer", l.addr, "err", err)
		c.Close()
		return
	}

	metrics.PeerConnects.WithLabelValues("outbound").Inc()
	slog.Info("peer connected", "peer", l.addr, "direction", "outbound")

	l.setCurrent(c)
	l.node.register(c)

	go c.writeLoop()
	go c.pingLoop()

	// Close the conn when the node shuts down mid-session.
	stop := context.AfterFunc(ctx, c.Close)
	defer stop()

	c.readLoop(l.node)

	l.node.unregister(c)
	l.setCurrent(nil)
	slog.Info("peer disconnected", "peer", l.addr)
}

func (l *PeerLink) setCurrent(c *Conn) {
	l.mu.Lock()
	l.current = c
	l.mu.Unlock()
}

// info describes the link for STATUS responses, whether or not it is
// currently connected.
func (l *PeerLink) info() message.PeerInfo {
	l.mu.Lock()
	c := l.current
	l.mu.Unlock()

	if c != nil {
		return c.Info()
	}
	return message.PeerInfo{
		Addr:      l.addr,
		Direction: "outbound",
		Connected: false,
	}
}

// sleepCtx sleeps for d, returning false if ctx was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
