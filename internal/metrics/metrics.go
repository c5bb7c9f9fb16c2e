// Package metrics defines the prometheus counters exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SnapshotsCaptured = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipmesh_snapshots_captured_total",
			Help: "Locally captured clipboard snapshots that entered the mesh",
		},
		[]string{"kind"}, // "text", "image", "files"
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clipmesh_messages_sent_total",
			Help: "Sync messages accepted into peer send queues",
		},
	)

	MessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clipmesh_messages_received_total",
			Help: "Valid sync messages read from peer connections",
		},
	)

	DuplicatesSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clipmesh_duplicates_suppressed_total",
			Help: "Sync messages dropped because their hash was already in the ledger",
		},
	)

	OversizedDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clipmesh_oversized_dropped_total",
			Help: "Payloads dropped for exceeding the configured size ceiling",
		},
	)

	ClipboardWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clipmesh_clipboard_writes_total",
			Help: "Received snapshots written to the local clipboard",
		},
	)

	PeerConnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipmesh_peer_connects_total",
			Help: "Peer connections established",
		},
		[]string{"direction"}, // "inbound" or "outbound"
	)

	AuthRejects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clipmesh_auth_rejects_total",
			Help: "Inbound connections refused by the shared-secret gate",
		},
	)
)
