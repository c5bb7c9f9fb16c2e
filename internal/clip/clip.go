// Package clip provides a unified interface to the system clipboard.
//
// The OS clipboard is inherently racy: content can change between format
// queries, and a format that was present a moment ago may be gone by the time
// it is read. Every query therefore reports presence with an ok bool instead
// of an error — callers treat "not ok" as "format absent right now" and move
// on.
//
// New selects the golang.design/x/clipboard backend when a display
// environment is available and falls back to an in-memory backend otherwise
// (headless servers, containers, tests).
package clip

// Capability is the platform clipboard as seen by the sync engine.
//
// The three queries are optional: a backend that cannot serve a format
// answers ok=false. Writes must be idempotent-safe — writing bytes that are
// already on the clipboard is harmless. All methods must be cheap enough to
// call on every poll tick.
type Capability interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// Text returns the clipboard's plain-text content, if any.
	Text() (string, bool)

	// Image returns the clipboard's encoded raster image (PNG), if any.
	Image() ([]byte, bool)

	// Files returns the list of filesystem paths on the clipboard, if any.
	Files() ([]string, bool)

	WriteText(s string) error
	WriteImage(data []byte) error
	WriteFiles(paths []string) error

	// Close releases any resources held by the backend.
	Close()
}
