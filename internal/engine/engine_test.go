package engine

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/clipmesh/clipmesh/internal/clip"
	"github.com/clipmesh/clipmesh/internal/ledger"
	"github.com/clipmesh/clipmesh/internal/message"
	"github.com/clipmesh/clipmesh/internal/mesh"
	"github.com/clipmesh/clipmesh/internal/snapshot"
)

// fakeMesh records broadcasts instead of sending them anywhere.
type fakeMesh struct {
	mu   sync.Mutex
	sent []*message.Message
}

func (f *fakeMesh) Broadcast(msg *message.Message, _ *mesh.Conn) {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
}

func (f *fakeMesh) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeMesh) last() *message.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

// countingClip wraps a Memory clipboard and counts writes.
type countingClip struct {
	*clip.Memory
	mu     sync.Mutex
	writes int
}

func (c *countingClip) WriteText(s string) error {
	c.mu.Lock()
	c.writes++
	c.mu.Unlock()
	return c.Memory.WriteText(s)
}

func (c *countingClip) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

func newTestEngine(cfg Config) (*Engine, *clip.Memory, *fakeMesh) {
	cb := clip.NewMemory()
	fm := &fakeMesh{}
	return New(cfg, cb, ledger.New(0), fm), cb, fm
}

func TestTickBroadcastsNewContent(t *testing.T) {
	e, cb, fm := newTestEngine(Config{Origin: "node-a"})
	_ = cb.WriteText("hello")

	e.Tick()

	if fm.count() != 1 {
		t.Fatalf("broadcasts = %d, want 1", fm.count())
	}
	msg := fm.last()
	if msg.Kind != message.KindText || string(msg.Data) != "hello" {
		t.Errorf("broadcast = %+v, want text hello", msg)
	}
	if msg.Hash != snapshot.HashBytes([]byte("hello")) {
		t.Errorf("Hash = %q, want content hash", msg.Hash)
	}
	if msg.Source != "node-a" {
		t.Errorf("Source = %q, want node-a", msg.Source)
	}
}

func TestTickUnchangedContentBroadcastsOnce(t *testing.T) {
	e, cb, fm := newTestEngine(Config{Origin: "node-a"})
	_ = cb.WriteText("hello")

	for i := 0; i < 5; i++ {
		e.Tick()
	}
	if fm.count() != 1 {
		t.Errorf("broadcasts = %d for unchanged clipboard, want 1", fm.count())
	}

	_ = cb.WriteText("world")
	e.Tick()
	if fm.count() != 2 {
		t.Errorf("broadcasts = %d after a real change, want 2", fm.count())
	}
}

func TestTickEmptyClipboard(t *testing.T) {
	e, _, fm := newTestEngine(Config{Origin: "node-a"})
	e.Tick()
	if fm.count() != 0 {
		t.Errorf("broadcasts = %d from empty clipboard, want 0", fm.count())
	}
}

func TestTickSizeCeiling(t *testing.T) {
	e, cb, fm := newTestEngine(Config{Origin: "node-a", MaxBytes: 8})

	_ = cb.WriteText("this is far longer than eight bytes")
	e.Tick()
	if fm.count() != 0 {
		t.Errorf("oversized snapshot was broadcast")
	}

	_ = cb.WriteText("tiny")
	e.Tick()
	if fm.count() != 1 {
		t.Errorf("under-limit snapshot was not broadcast")
	}
}

func TestHandleSyncAppliesAndForwards(t *testing.T) {
	e, cb, fm := newTestEngine(Config{Origin: "node-b"})

	data := []byte("from the mesh")
	msg := message.NewSync(message.KindText, snapshot.HashBytes(data), data, message.Meta{}, "node-a")
	e.HandleSync(msg, nil)

	if got, ok := cb.Text(); !ok || got != "from the mesh" {
		t.Errorf("clipboard = %q (%v), want applied text", got, ok)
	}
	if fm.count() != 1 {
		t.Errorf("forwards = %d, want 1", fm.count())
	}
	if fm.last() != msg {
		t.Error("forwarded message should be the original, unmodified")
	}
}

func TestHandleSyncIdempotent(t *testing.T) {
	cc := &countingClip{Memory: clip.NewMemory()}
	fm := &fakeMesh{}
	e := New(Config{Origin: "node-b"}, cc, ledger.New(0), fm)

	data := []byte("once only")
	msg := message.NewSync(message.KindText, snapshot.HashBytes(data), data, message.Meta{}, "node-a")

	e.HandleSync(msg, nil)
	e.HandleSync(msg, nil)

	if got := cc.writeCount(); got != 1 {
		t.Errorf("clipboard writes = %d for duplicate hash, want 1", got)
	}
	if fm.count() != 1 {
		t.Errorf("forwards = %d for duplicate hash, want 1", fm.count())
	}
}

func TestHandleSyncConcurrentDuplicates(t *testing.T) {
	cc := &countingClip{Memory: clip.NewMemory()}
	fm := &fakeMesh{}
	e := New(Config{Origin: "node-c"}, cc, ledger.New(0), fm)

	data := []byte("delivered twice at once")
	msg := message.NewSync(message.KindText, snapshot.HashBytes(data), data, message.Meta{}, "node-a")

	// The same snapshot arrives on two connections at the same moment, the
	// normal case for a multiply connected node. Only one delivery may make
	// it past the ledger.
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			e.HandleSync(msg, nil)
		}()
	}
	close(start)
	wg.Wait()

	if got := cc.writeCount(); got != 1 {
		t.Errorf("clipboard writes = %d for concurrent duplicates, want 1", got)
	}
	if got := fm.count(); got != 1 {
		t.Errorf("forwards = %d for concurrent duplicates, want 1", got)
	}
}

func TestHandleSyncOversized(t *testing.T) {
	e, cb, fm := newTestEngine(Config{Origin: "node-b", MaxBytes: 4})

	data := []byte("way past the four byte ceiling")
	msg := message.NewSync(message.KindText, snapshot.HashBytes(data), data, message.Meta{}, "node-a")
	e.HandleSync(msg, nil)

	if _, ok := cb.Text(); ok {
		t.Error("oversized payload reached the clipboard")
	}
	if fm.count() != 0 {
		t.Error("oversized payload was forwarded")
	}

	// Policy: the hash is marked anyway, so a resend is a cheap no-op.
	e.HandleSync(msg, nil)
	if fm.count() != 0 {
		t.Error("resent oversized payload was forwarded")
	}
}

func TestHandleSyncFiles(t *testing.T) {
	src := t.TempDir()
	f := filepath.Join(src, "note.txt")
	if err := os.WriteFile(f, []byte("bundled"), 0o644); err != nil {
		t.Fatal(err)
	}
	blob, err := snapshot.Bundle([]string{f})
	if err != nil {
		t.Fatal(err)
	}

	e, cb, fm := newTestEngine(Config{Origin: "node-b"})
	msg := message.NewSync(message.KindFiles, snapshot.HashBytes(blob), blob,
		message.Meta{Count: 1}, "node-a")
	e.HandleSync(msg, nil)

	paths, ok := cb.Files()
	if !ok || len(paths) != 1 {
		t.Fatalf("clipboard files = %v (%v), want one extracted path", paths, ok)
	}
	got, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "bundled" {
		t.Errorf("extracted content = %q, want bundled", got)
	}
	if fm.count() != 1 {
		t.Errorf("forwards = %d, want 1", fm.count())
	}
}

// TestRoundTripNoEcho is the two-node scenario: B applies A's snapshot, then
// B's own poll tick observes the applied content and must stay quiet.
func TestRoundTripNoEcho(t *testing.T) {
	e, cb, fm := newTestEngine(Config{Origin: "node-b"})

	data := []byte("hello")
	msg := message.NewSync(message.KindText, snapshot.HashBytes(data), data, message.Meta{}, "node-a")
	e.HandleSync(msg, nil)

	if fm.count() != 1 {
		t.Fatalf("forwards = %d after apply, want 1", fm.count())
	}
	if got, _ := cb.Text(); got != "hello" {
		t.Fatalf("clipboard = %q, want hello", got)
	}

	// B's next poll ticks see "hello" already on the clipboard.
	e.Tick()
	e.Tick()
	if fm.count() != 1 {
		t.Errorf("poll tick re-broadcast an applied snapshot (forwards = %d)", fm.count())
	}
}

func TestLastText(t *testing.T) {
	e, cb, _ := newTestEngine(Config{Origin: "node-a"})

	_ = cb.WriteText("local copy")
	e.Tick()
	if got := e.LastText(); got != "local copy" {
		t.Errorf("LastText = %q after local capture, want local copy", got)
	}

	data := []byte("remote copy")
	e.HandleSync(message.NewSync(message.KindText, snapshot.HashBytes(data), data,
		message.Meta{}, "node-b"), nil)
	if got := e.LastText(); got != "remote copy" {
		t.Errorf("LastText = %q after apply, want remote copy", got)
	}
}

func TestInjectText(t *testing.T) {
	e, cb, fm := newTestEngine(Config{Origin: "node-a"})

	if err := e.InjectText("pasted via ipc"); err != nil {
		t.Fatal(err)
	}
	// The injection itself does not broadcast; the next tick does.
	if fm.count() != 0 {
		t.Errorf("InjectText broadcast directly")
	}
	e.Tick()
	if fm.count() != 1 {
		t.Errorf("broadcasts = %d after tick, want 1", fm.count())
	}
	if got, _ := cb.Text(); got != "pasted via ipc" {
		t.Errorf("clipboard = %q", got)
	}
}
