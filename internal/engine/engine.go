// Package engine ties the clipboard, the dedup ledger and the mesh together.
//
// Two event sources drive it: the fixed-interval poll tick (local clipboard →
// mesh) and inbound SYNC messages (mesh → local clipboard → rest of mesh).
// Both serialise on the ledger, which is the single authority on whether a
// hash has been seen; everything else is plumbing around that check.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/clipmesh/clipmesh/internal/clip"
	"github.com/clipmesh/clipmesh/internal/ledger"
	"github.com/clipmesh/clipmesh/internal/message"
	"github.com/clipmesh/clipmesh/internal/mesh"
	"github.com/clipmesh/clipmesh/internal/metrics"
	"github.com/clipmesh/clipmesh/internal/snapshot"
)

// DefaultPollInterval is the clipboard poll cadence when none is configured.
const DefaultPollInterval = 900 * time.Millisecond

// Broadcaster fans a message out to the mesh, skipping exclude. Satisfied by
// *mesh.Node.
type Broadcaster interface {
	Broadcast(msg *message.Message, exclude *mesh.Conn)
}

// Config parameterises an Engine.
type Config struct {
	// Origin is this node's identifier, stamped on locally originated messages.
	Origin string
	// MaxBytes is the payload size ceiling. Non-positive means unlimited.
	MaxBytes int
	// PollInterval is the clipboard poll cadence; zero means DefaultPollInterval.
	PollInterval time.Duration
}

// Engine owns the poll loop and the apply-on-receive path.
type Engine struct {
	cfg  Config
	cap  clip.Capability
	led  *ledger.Ledger
	mesh Broadcaster

	mu           sync.Mutex
	lastObserved string // fast-path short circuit; the ledger stays authoritative
	lastText     string // most recent text snapshot, for IPC paste
}

// New wires an Engine. The ledger is shared state: the caller may also hand
// it to diagnostics, but only the engine writes to it.
func New(cfg Config, cap clip.Capability, led *ledger.Ledger, b Broadcaster) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Engine{cfg: cfg, cap: cap, led: led, mesh: b}
}

// Run polls the clipboard until ctx is cancelled. A bad tick is logged and
// the next tick happens regardless.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	slog.Info("poll loop started",
		"interval", e.cfg.PollInterval,
		"backend", e.cap.Name(),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Tick runs one capture → dedup → broadcast cycle.
func (e *Engine) Tick() {
	snap, ok := snapshot.Capture(e.cap)
	if !ok {
		return
	}

	e.mu.Lock()
	if snap.Hash == e.lastObserved {
		e.mu.Unlock()
		return
	}
	e.lastObserved = snap.Hash
	if snap.Kind == message.KindText {
		e.lastText = string(snap.Data)
	}
	e.mu.Unlock()

	if !e.led.MarkIfNew(snap.Hash) {
		// Already travelled through this node (usually our own apply of a
		// received snapshot). Nothing to do.
		return
	}

	if e.overLimit(len(snap.Data)) {
		// Local capture stays marked so the same oversized item is not
		// rehashed every tick, but it must not reach the mesh.
		slog.Warn("clipboard content exceeds size ceiling, not broadcasting",
			"kind", snap.Kind, "bytes", len(snap.Data), "max_bytes", e.cfg.MaxBytes)
		metrics.OversizedDropped.Inc()
		return
	}

	metrics.SnapshotsCaptured.WithLabelValues(string(snap.Kind)).Inc()
	slog.Info("clipboard changed, broadcasting",
		"kind", snap.Kind, "bytes", len(snap.Data), "hash", short(snap.Hash))

	e.mesh.Broadcast(message.NewSync(snap.Kind, snap.Hash, snap.Data, snap.Meta, e.cfg.Origin), nil)
}

// HandleSync implements mesh.Handler: dedup, apply locally, fan out to the
// rest of the mesh.
func (e *Engine) HandleSync(msg *message.Message, origin *mesh.Conn) {
	metrics.MessagesReceived.Inc()

	// MarkIfNew is atomic: when the same snapshot arrives on two connections
	// at once, exactly one delivery proceeds past this point.
	if !e.led.MarkIfNew(msg.Hash) {
		metrics.DuplicatesSuppressed.Inc()
		return
	}

	if e.overLimit(len(msg.Data)) {
		// Marked but never applied or forwarded: the ceiling protects every
		// node downstream of us as well as our own clipboard.
		slog.Warn("received payload exceeds size ceiling, dropping",
			"kind", msg.Kind, "bytes", len(msg.Data), "source", msg.Source,
			"max_bytes", e.cfg.MaxBytes)
		metrics.OversizedDropped.Inc()
		return
	}

	if err := e.apply(msg); err != nil {
		slog.Error("clipboard apply failed", "kind", msg.Kind, "err", err)
	} else {
		metrics.ClipboardWrites.Inc()
		slog.Info("applied snapshot from mesh",
			"kind", msg.Kind, "bytes", len(msg.Data),
			"source", msg.Source, "hash", short(msg.Hash))
	}

	e.mesh.Broadcast(msg, origin)
}

// apply writes a received payload to the local clipboard and absorbs the
// resulting local state so the next poll tick does not mistake our own write
// for a fresh change.
func (e *Engine) apply(msg *message.Message) error {
	var err error
	switch msg.Kind {
	case message.KindText:
		err = e.cap.WriteText(string(msg.Data))
	case message.KindImage:
		err = e.cap.WriteImage(msg.Data)
	case message.KindFiles:
		err = e.applyFiles(msg)
	default:
		// ValidSync filtered unknown kinds already.
		return fmt.Errorf("unknown kind %q", msg.Kind)
	}
	if err != nil {
		return err
	}

	e.absorb(msg)
	return nil
}

// applyFiles expands the archive payload into a fresh temporary directory and
// puts the resulting paths on the clipboard.
func (e *Engine) applyFiles(msg *message.Message) error {
	dir, err := os.MkdirTemp("", "clipmesh-*")
	if err != nil {
		return fmt.Errorf("temp dir: %w", err)
	}
	paths, err := snapshot.Extract(msg.Data, dir)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	slog.Debug("file payload extracted", "dir", dir, "count", msg.Meta.Count)
	return e.cap.WriteFiles(paths)
}

// absorb records the post-apply clipboard state. Re-capturing (instead of
// trusting msg.Hash) covers backends that normalise on write: a file set
// applied as a path list re-captures as text with a different hash, and that
// hash must be in the ledger before the next tick sees it.
func (e *Engine) absorb(msg *message.Message) {
	hash := msg.Hash
	var text string

	if snap, ok := snapshot.Capture(e.cap); ok {
		hash = snap.Hash
		if snap.Kind == message.KindText {
			text = string(snap.Data)
		}
	}
	e.led.Mark(hash)

	e.mu.Lock()
	e.lastObserved = hash
	if msg.Kind == message.KindText {
		e.lastText = string(msg.Data)
	} else if text != "" {
		e.lastText = text
	}
	e.mu.Unlock()
}

// InjectText places text on the local clipboard as if the user had copied it.
// The next poll tick picks it up and broadcasts it. Used by the IPC copy path.
func (e *Engine) InjectText(s string) error {
	return e.cap.WriteText(s)
}

// LastText returns the most recent text snapshot seen by this node, whether
// captured locally or applied from the mesh.
func (e *Engine) LastText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastText
}

func (e *Engine) overLimit(n int) bool {
	return e.cfg.MaxBytes > 0 && n > e.cfg.MaxBytes
}

// short truncates a hash for log lines.
func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
