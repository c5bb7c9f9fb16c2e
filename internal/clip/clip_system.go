package clip

import (
	"log/slog"
	"strings"

	"golang.design/x/clipboard"
)

// New returns the system clipboard backend, or the in-memory backend if the
// display environment is unavailable (e.g. a headless server without X11 or
// Wayland). clipboard.Init is called here rather than in init() so that CLI
// sub-commands (status, copy, paste) don't trigger the probe.
func New() Capability {
	if err := clipboard.Init(); err != nil {
		slog.Warn("system clipboard unavailable, using in-memory backend", "err", err)
		return NewMemory()
	}
	return &systemBackend{}
}

// systemBackend reads and writes the OS clipboard via golang.design/x/clipboard.
type systemBackend struct{}

func (b *systemBackend) Name() string { return "system clipboard" }

func (b *systemBackend) Text() (string, bool) {
	data := clipboard.Read(clipboard.FmtText)
	if len(data) == 0 {
		return "", false
	}
	return string(data), true
}

func (b *systemBackend) Image() ([]byte, bool) {
	data := clipboard.Read(clipboard.FmtImage)
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

// Files is not served by this backend: golang.design/x/clipboard exposes only
// the text and image formats. File-set payloads received from peers still
// materialise locally — WriteFiles puts the extracted paths on the clipboard
// as text, one per line, which every file manager accepts for pasting.
func (b *systemBackend) Files() ([]string, bool) { return nil, false }

func (b *systemBackend) WriteText(s string) error {
	clipboard.Write(clipboard.FmtText, []byte(s))
	return nil
}

func (b *systemBackend) WriteImage(data []byte) error {
	clipboard.Write(clipboard.FmtImage, data)
	return nil
}

func (b *systemBackend) WriteFiles(paths []string) error {
	clipboard.Write(clipboard.FmtText, []byte(strings.Join(paths, "\n")))
	return nil
}

func (b *systemBackend) Close() {}
