package mesh

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clipmesh/clipmesh/internal/message"
	"github.com/clipmesh/clipmesh/internal/wire"
)

const (
	pingInterval = 15 * time.Second
	pongDeadline = 10 * time.Second
	sendBuffer   = 64
)

// Conn is one live mesh connection, inbound or outbound. The pointer is the
// connection's identity: Broadcast's exclude parameter compares pointers, so
// a reconnected peer is a new Conn and can never be confused with its
// predecessor.
type Conn struct {
	wc        *wire.Conn
	direction string // "inbound" or "outbound"
	addr      string

	sendCh chan *message.Message
	pongCh chan struct{}

	closeOnce sync.Once
	closed    chan struct{}

	mu          sync.RWMutex
	source      string
	connectedAt time.Time
	lastSeen    atomic.Int64 // UnixNano
}

func newConn(nc net.Conn, key *[32]byte, direction string) *Conn {
	now := time.Now()
	c := &Conn{
		wc:          wire.New(nc, key),
		direction:   direction,
		addr:        nc.RemoteAddr().String(),
		sendCh:      make(chan *message.Message, sendBuffer),
		pongCh:      make(chan struct{}, 1),
		closed:      make(chan struct{}),
		connectedAt: now,
	}
	c.lastSeen.Store(now.UnixNano())
	return c
}

// Addr returns the remote address of the connection.
func (c *Conn) Addr() string { return c.addr }

// Source returns the peer's self-reported origin ID, if it sent a HELLO.
func (c *Conn) Source() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source
}

func (c *Conn) setSource(s string) {
	c.mu.Lock()
	c.source = s
	c.mu.Unlock()
}

// Info returns a snapshot of the connection's metadata for STATUS responses.
func (c *Conn) Info() message.PeerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return message.PeerInfo{
		Addr:        c.addr,
		Source:      c.source,
		Direction:   c.direction,
		Connected:   true,
		ConnectedAt: c.connectedAt,
		LastSeen:    time.Unix(0, c.lastSeen.Load()),
	}
}

// Send queues msg for delivery, reporting whether it was accepted. It never
// blocks: when the peer cannot drain its queue the message is dropped and
// the peer catches up via later snapshots — the mesh promises best effort,
// not backlog.
func (c *Conn) Send(msg *message.Message) bool {
	select {
	case c.sendCh <- msg:
		return true
	case <-c.closed:
		return false
	default:
		slog.Warn("send queue full, dropping message", "peer", c.addr)
		return false
	}
}

// Close tears the connection down. Safe to call from any goroutine and more
// than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.wc.Close()
	})
}

func (c *Conn) notifyAlive() {
	c.lastSeen.Store(time.Now().UnixNano())
	select {
	case c.pongCh <- struct{}{}:
	default:
	}
}

// writeLoop drains sendCh onto the wire. Runs until the conn closes.
func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.sendCh:
			if err := c.wc.WriteMsg(msg); err != nil {
				slog.Debug("write failed", "peer", c.addr, "err", err)
				c.Close()
				return
			}
		}
	}
}

// pingLoop keeps the connection honest: a peer that stops answering PINGs is
// closed so the reconnect logic can take over.
func (c *Conn) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.Send(&message.Message{Type: message.TypePing})
			select {
			case <-c.pongCh:
			case <-c.closed:
				return
			case <-time.After(pongDeadline):
				slog.Warn("pong timeout, closing", "peer", c.addr)
				c.Close()
				return
			}
		}
	}
}

// readLoop dispatches inbound messages until the connection dies. SYNC
// messages failing validation are dropped without logging — a peer running a
// newer protocol may send kinds we do not know.
func (c *Conn) readLoop(n *Node) {
	for {
		msg, err := c.wc.ReadMsg()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				slog.Info("connection closed", "peer", c.addr, "err", err)
			}
			c.Close()
			return
		}
		c.notifyAlive()

		switch msg.Type {
		case message.TypeSync:
			if !msg.ValidSync() {
				continue
			}
			n.handler.HandleSync(msg, c)

		case message.TypePing:
			c.Send(&message.Message{Type: message.TypePong})

		case message.TypePong:
			// handled by notifyAlive

		case message.TypeHello:
			// Late HELLO just refreshes the peer's display name.
			c.setSource(msg.Source)

		case message.TypeError:
			slog.Warn("peer reported error", "peer", c.addr, "error", msg.Error)
			c.Close()
			return

		default:
			slog.Debug("unexpected message type", "peer", c.addr, "type", msg.Type)
		}
	}
}
