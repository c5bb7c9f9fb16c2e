// Package mesh maintains the node's peer connections: one listener accepting
// any number of inbound peers, plus one supervised outbound link per
// configured peer address. Both directions carry the same newline-JSON
// message stream, so the mesh is symmetric — it does not matter who dialed
// whom.
//
// The package moves messages; it does not interpret them. Inbound SYNC
// messages go to the Handler, and Broadcast fans a message out to every live
// connection except an optional origin. Loop prevention lives in the handler
// (hash dedup), not here.
package mesh

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/clipmesh/clipmesh/internal/message"
	"github.com/clipmesh/clipmesh/internal/metrics"
)

const authTimeout = 10 * time.Second

// Handler consumes validated inbound SYNC messages. origin is the connection
// the message arrived on, for exclusion during re-broadcast.
type Handler interface {
	HandleSync(msg *message.Message, origin *Conn)
}

// Config parameterises a Node.
type Config struct {
	// Origin is this node's identifier, sent in HELLOs.
	Origin string
	// Secret gates inbound connections and keys the wire encryption.
	// Empty disables both.
	Secret string
	// Key is the secretbox key derived from Secret; nil when Secret is empty.
	Key *[32]byte
	// Peers are the configured outbound targets (host:port).
	Peers []string
}

// Node is the peer mesh transport and fanout broadcaster.
type Node struct {
	cfg     Config
	handler Handler

	mu    sync.Mutex
	conns map[*Conn]struct{}
	links []*PeerLink
}

// NewNode creates a Node. Wire a Handler with SetHandler, then call Start to
// dial peers and Serve to accept inbound connections.
func NewNode(cfg Config) *Node {
	n := &Node{
		cfg:   cfg,
		conns: make(map[*Conn]struct{}),
	}
	for _, addr := range cfg.Peers {
		n.links = append(n.links, newPeerLink(n, addr))
	}
	return n
}

// SetHandler wires the inbound SYNC consumer. Must be called before Start and
// Serve; the handler and the node reference each other, so neither can take
// the other at construction.
func (n *Node) SetHandler(h Handler) {
	n.handler = h
}

// Start launches the reconnect loop for every configured peer.
func (n *Node) Start(ctx context.Context) {
	for _, l := range n.links {
		go l.run(ctx)
	}
}

// Serve accepts inbound peer connections on ln until it is closed.
func (n *Node) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go n.serveInbound(conn)
	}
}

// serveInbound gates, registers and runs one inbound connection.
func (n *Node) serveInbound(nc net.Conn) {
	c := newConn(nc, n.cfg.Key, "inbound")
	log := slog.With("peer", c.addr)

	// Shared-secret gate: the first message must be a HELLO carrying the
	// secret, before any SYNC is accepted. With a secret configured the wire
	// is also encrypted, so a stranger cannot even frame the HELLO — but the
	// explicit check gives a clean rejection instead of a decode error.
	c.wc.SetReadDeadline(authTimeout)
	first, err := c.wc.ReadMsg()
	if err != nil {
		if n.cfg.Secret != "" {
			metrics.AuthRejects.Inc()
		}
		log.Warn("handshake failed", "err", err)
		c.Close()
		return
	}
	c.wc.SetReadDeadline(0)

	if first.Type != message.TypeHello ||
		(n.cfg.Secret != "" && first.Token != n.cfg.Secret) {
		metrics.AuthRejects.Inc()
		log.Warn("auth failed")
		_ = c.wc.WriteMsg(&message.Message{Type: message.TypeError, Error: "auth_failed"})
		c.Close()
		return
	}
	c.setSource(first.Source)

	c.Send(&message.Message{Type: message.TypeHello, Source: n.cfg.Origin})
	metrics.PeerConnects.WithLabelValues("inbound").Inc()
	log.Info("peer connected", "direction", "inbound", "source", first.Source)

	n.register(c)
	defer n.unregister(c)

	go c.writeLoop()
	go c.pingLoop()
	c.readLoop(n)
}

// Broadcast sends msg to every live connection except exclude. Fire and
// forget: a slow or dead connection drops the message locally and is the
// reconnect logic's problem, never the caller's.
func (n *Node) Broadcast(msg *message.Message, exclude *Conn) {
	// Iterate over a snapshot so connection churn during fanout cannot race
	// the registry.
	n.mu.Lock()
	targets := make([]*Conn, 0, len(n.conns))
	for c := range n.conns {
		if c != exclude {
			targets = append(targets, c)
		}
	}
	n.mu.Unlock()

	for _, c := range targets {
		if c.Send(msg) {
			metrics.MessagesSent.Inc()
		}
	}
}

// Peers reports every configured link and live inbound connection.
func (n *Node) Peers() []message.PeerInfo {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]message.PeerInfo, 0, len(n.links)+len(n.conns))
	for _, l := range n.links {
		out = append(out, l.info())
	}
	for c := range n.conns {
		if c.direction == "inbound" {
			out = append(out, c.Info())
		}
	}
	return out
}

// Close tears down every live connection.
func (n *Node) Close() {
	n.mu.Lock()
	conns := make([]*Conn, 0, len(n.conns))
	for c := range n.conns {
		conns = append(conns, c)
	}
	n.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (n *Node) register(c *Conn) {
	n.mu.Lock()
	n.conns[c] = struct{}{}
	total := len(n.conns)
	n.mu.Unlock()
	slog.Debug("connection registered", "peer", c.addr, "total", total)
}

func (n *Node) unregister(c *Conn) {
	n.mu.Lock()
	delete(n.conns, c)
	total := len(n.conns)
	n.mu.Unlock()
	c.Close()
	slog.Debug("connection unregistered", "peer", c.addr, "total", total)
}
