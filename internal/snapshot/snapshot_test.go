package snapshot

import (
	"testing"

	"github.com/clipmesh/clipmesh/internal/clip"
	"github.com/clipmesh/clipmesh/internal/message"
)

func TestCaptureEmpty(t *testing.T) {
	if snap, ok := Capture(clip.NewMemory()); ok {
		t.Errorf("Capture from empty clipboard = %+v, want none", snap)
	}
}

func TestCaptureText(t *testing.T) {
	c := clip.NewMemory()
	if err := c.WriteText("hello"); err != nil {
		t.Fatal(err)
	}

	snap, ok := Capture(c)
	if !ok {
		t.Fatal("Capture returned none")
	}
	if snap.Kind != message.KindText {
		t.Errorf("Kind = %q, want text", snap.Kind)
	}
	if string(snap.Data) != "hello" {
		t.Errorf("Data = %q, want hello", snap.Data)
	}
	if snap.Hash != HashBytes([]byte("hello")) {
		t.Errorf("Hash = %q, want content hash", snap.Hash)
	}
}

func TestCaptureHashIsIdentity(t *testing.T) {
	c := clip.NewMemory()
	_ = c.WriteText("same bytes")

	s1, _ := Capture(c)
	s2, _ := Capture(c)
	if s1.Hash != s2.Hash {
		t.Errorf("equal bytes must hash equally: %q vs %q", s1.Hash, s2.Hash)
	}
}

func TestCaptureImageBeatsText(t *testing.T) {
	// A real clipboard can expose several formats at once; Memory only holds
	// one, so stack them via a layered fake.
	c := &layered{
		text:  "caption",
		image: []byte{0x89, 0x50},
	}

	snap, ok := Capture(c)
	if !ok {
		t.Fatal("Capture returned none")
	}
	if snap.Kind != message.KindImage {
		t.Errorf("Kind = %q, want image (image outranks text)", snap.Kind)
	}
}

func TestCaptureFilesBeatAll(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", "contents")

	c := &layered{
		text:  "caption",
		image: []byte{0x89, 0x50},
		files: []string{dir + "/a.txt"},
	}

	snap, ok := Capture(c)
	if !ok {
		t.Fatal("Capture returned none")
	}
	if snap.Kind != message.KindFiles {
		t.Errorf("Kind = %q, want files (files outrank image and text)", snap.Kind)
	}
	if snap.Meta.Count != 1 {
		t.Errorf("Meta.Count = %d, want 1", snap.Meta.Count)
	}
}

func TestCaptureFilesErrorFallsThrough(t *testing.T) {
	// The listed path no longer exists: Bundle fails and Capture must fall
	// through to the text tier rather than give up.
	c := &layered{
		text:  "still here",
		files: []string{"/nonexistent/path/gone.txt"},
	}

	snap, ok := Capture(c)
	if !ok {
		t.Fatal("Capture returned none")
	}
	if snap.Kind != message.KindText {
		t.Errorf("Kind = %q, want text after files tier failed", snap.Kind)
	}
}

// layered is a Capability fake exposing several formats simultaneously.
type layered struct {
	text  string
	image []byte
	files []string
}

func (l *layered) Name() string { return "layered fake" }

func (l *layered) Text() (string, bool)    { return l.text, l.text != "" }
func (l *layered) Image() ([]byte, bool)   { return l.image, len(l.image) > 0 }
func (l *layered) Files() ([]string, bool) { return l.files, len(l.files) > 0 }

func (l *layered) WriteText(string) error    { return nil }
func (l *layered) WriteImage([]byte) error   { return nil }
func (l *layered) WriteFiles([]string) error { return nil }
func (l *layered) Close()                    {}
