// Package message defines the clipmesh wire protocol.
//
// All messages are newline-delimited JSON. The clipboard payload travels in
// Data, which encoding/json base64-encodes, so binary content (images, file
// archives) is safe to embed. Each message is exactly one line: <json>\n
package message

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies the kind of message.
type Type string

const (
	// TypeHello is the first message on a connection: it introduces the
	// sender and, when the mesh is secret-gated, carries the shared secret.
	TypeHello Type = "HELLO"
	// TypeSync carries one clipboard snapshot through the mesh.
	TypeSync Type = "SYNC"
	// TypePaste asks a node (over IPC) for its last text snapshot.
	TypePaste          Type = "PASTE"
	TypePing           Type = "PING"
	TypePong           Type = "PONG"
	TypeStatus         Type = "STATUS"
	TypeStatusResponse Type = "STATUS_RESPONSE"
	TypeError          Type = "ERROR"
)

// Kind identifies what a snapshot payload contains. The set is closed:
// adding a kind is a protocol change, not a configuration option.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindFiles Kind = "files"
)

// KnownKind reports whether k is one of the three payload kinds.
func KnownKind(k Kind) bool {
	return k == KindText || k == KindImage || k == KindFiles
}

// Meta carries kind-specific auxiliary data. It is opaque to the transport
// and to the dedup ledger.
type Meta struct {
	// Count is the number of top-level paths bundled into a files payload.
	Count int `json:"count,omitempty"`
}

// PeerInfo describes one mesh connection, used in STATUS responses.
type PeerInfo struct {
	Addr        string    `json:"addr"`
	Source      string    `json:"source,omitempty"`
	Direction   string    `json:"direction"` // "inbound" or "outbound"
	Connected   bool      `json:"connected"`
	ConnectedAt time.Time `json:"connected_at,omitzero"`
	LastSeen    time.Time `json:"last_seen,omitzero"`
}

// Message is the top-level wire envelope.
type Message struct {
	Type   Type   `json:"type"`
	Source string `json:"source,omitempty"`

	// SYNC — one clipboard snapshot
	Kind Kind   `json:"kind,omitempty"`
	Hash string `json:"hash,omitempty"` // hex SHA-256 of the raw payload
	Data []byte `json:"data,omitempty"` // base64 on the wire
	Meta Meta   `json:"meta,omitzero"`
	TS   int64  `json:"ts,omitempty"` // epoch millis at first observation

	// HELLO — base64 shared secret
	Token string `json:"token,omitempty"`

	// STATUS_RESPONSE
	Origin string     `json:"origin,omitempty"`
	Peers  []PeerInfo `json:"peers,omitempty"`

	// ERROR
	Error string `json:"error,omitempty"`
}

// NewSync builds a SYNC message for a snapshot first observed by source now.
func NewSync(kind Kind, hash string, data []byte, meta Meta, source string) *Message {
	return &Message{
		Type:   TypeSync,
		Kind:   kind,
		Hash:   hash,
		Data:   data,
		Meta:   meta,
		TS:     time.Now().UnixMilli(),
		Source: source,
	}
}

// ValidSync reports whether m is a well-formed SYNC message. Messages failing
// this check are discarded without logging — version-mismatched peers may
// legitimately send fields we do not understand.
func (m *Message) ValidSync() bool {
	return m.Type == TypeSync && KnownKind(m.Kind) && m.Hash != "" && len(m.Data) > 0
}

// Encode serialises the message to JSON without a trailing newline.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode deserialises a message from raw JSON bytes.
func Decode(b []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("message decode: %w", err)
	}
	return &m, nil
}
