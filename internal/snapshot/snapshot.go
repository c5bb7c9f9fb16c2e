// Package snapshot normalises whatever is on the local clipboard into a
// single hashed payload that the rest of the node can dedup, apply and
// broadcast without caring which format it came from.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/clipmesh/clipmesh/internal/clip"
	"github.com/clipmesh/clipmesh/internal/message"
)

// Snapshot is one normalised observation of clipboard content. Two snapshots
// with equal Data have equal Hash and are the same event; Meta and Kind never
// enter the identity.
type Snapshot struct {
	Kind message.Kind
	Data []byte
	Meta message.Meta
	Hash string // hex SHA-256 of Data
}

// HashBytes returns the hex SHA-256 content hash used as snapshot identity.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Capture polls cap and normalises the richest available format into a
// Snapshot. Formats are tried in fixed precedence — files, then image, then
// text — and the first success wins. A tier that errors or reports absent
// falls through to the next; only when every tier comes up empty does Capture
// return false. The per-tier tolerance matters because the OS clipboard can
// change between format queries.
func Capture(cap clip.Capability) (*Snapshot, bool) {
	if paths, ok := cap.Files(); ok && len(paths) > 0 {
		blob, err := Bundle(paths)
		if err != nil {
			// Paths can vanish between the clipboard query and the read.
			slog.Debug("file bundle failed, falling through", "err", err)
		} else {
			return &Snapshot{
				Kind: message.KindFiles,
				Data: blob,
				Meta: message.Meta{Count: len(paths)},
				Hash: HashBytes(blob),
			}, true
		}
	}

	if img, ok := cap.Image(); ok && len(img) > 0 {
		return &Snapshot{
			Kind: message.KindImage,
			Data: img,
			Hash: HashBytes(img),
		}, true
	}

	if text, ok := cap.Text(); ok && text != "" {
		data := []byte(text)
		return &Snapshot{
			Kind: message.KindText,
			Data: data,
			Hash: HashBytes(data),
		}, true
	}

	return nil, false
}
