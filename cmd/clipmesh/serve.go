package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soheilhy/cmux"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clipmesh/clipmesh/internal/clip"
	"github.com/clipmesh/clipmesh/internal/crypto"
	"github.com/clipmesh/clipmesh/internal/engine"
	"github.com/clipmesh/clipmesh/internal/ipc"
	"github.com/clipmesh/clipmesh/internal/ledger"
	"github.com/clipmesh/clipmesh/internal/mesh"
	"github.com/clipmesh/clipmesh/internal/message"
	"github.com/clipmesh/clipmesh/internal/wire"
)

// shutdownGrace is how long shutdown waits for in-flight sends to drain
// before the process exits.
const shutdownGrace = 200 * time.Millisecond

func newServeCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a clipmesh node (listener + configured peer links)",
		Long: `Starts a clipmesh node. The node polls the local clipboard, broadcasts
changes to every connected peer, and applies snapshots received from the mesh.

The listen port carries both the peer protocol and a small HTTP surface:
GET /status (JSON) and GET /metrics (prometheus).

Config file search order:
  /etc/clipmesh/clipmesh.toml
  $HOME/.config/clipmesh/clipmesh.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → CLIPMESH_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runServe(v) },
	}

	f := cmd.Flags()
	f.String("listen", "0.0.0.0:8537", "TCP listen address")
	f.String("secret", "", "shared secret (empty = no auth, no encryption)")
	f.StringSlice("peer", nil, "peer address to dial (host:port); repeatable")
	f.Int("max-mb", 16, "maximum payload size in megabytes")
	f.Duration("poll-interval", engine.DefaultPollInterval, "clipboard poll interval")
	f.Int("dedup-cap", ledger.DefaultCapacity, "recent-hash ledger capacity")
	f.String("origin", defaultOrigin(), "name for this node in peer lists")
	f.Bool("no-clipboard", false, "disable system clipboard integration (relay mode)")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runServe(v *viper.Viper) error {
	setupLogging(v)

	listen := v.GetString("listen")
	secret := v.GetString("secret")
	peers := v.GetStringSlice("peer")
	origin := v.GetString("origin")

	var key *[32]byte
	if secret != "" {
		var err error
		key, err = crypto.DeriveKey(secret)
		if err != nil {
			return fmt.Errorf("key derivation: %w", err)
		}
	}

	slog.Info("clipmesh node starting",
		"version", Version,
		"origin", origin,
		"listen", listen,
		"peers", len(peers),
		"encrypted", key != nil,
	)

	var backend clip.Capability
	if v.GetBool("no-clipboard") {
		backend = clip.NewMemory()
	} else {
		backend = clip.New()
	}
	defer backend.Close()
	slog.Info("clipboard backend", "name", backend.Name())

	node := mesh.NewNode(mesh.Config{
		Origin: origin,
		Secret: secret,
		Key:    key,
		Peers:  peers,
	})
	eng := engine.New(engine.Config{
		Origin:       origin,
		MaxBytes:     v.GetInt("max-mb") * 1024 * 1024,
		PollInterval: v.GetDuration("poll-interval"),
	}, backend, ledger.New(v.GetInt("dedup-cap")), node)
	node.SetHandler(eng)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A node that cannot accept inbound peers cannot usefully run.
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", listen, err)
	}
	slog.Info("listening", "addr", ln.Addr())

	// IPC socket for copy/paste/status CLI tools
	if ipcLn, err := ipc.Listen(); err != nil {
		slog.Warn("IPC socket unavailable", "err", err)
	} else {
		slog.Info("IPC socket listening", "path", ipc.SocketPath())
		defer ipcLn.Close()
		go serveIPC(ipcLn, eng, node, origin)
	}

	// One port, two protocols: HTTP/1.1 for status and metrics, everything
	// else is the peer protocol.
	mux := cmux.New(ln)
	httpLn := mux.Match(cmux.HTTP1Fast())
	meshLn := mux.Match(cmux.Any())

	go serveHTTP(httpLn, node, origin)
	go func() { _ = node.Serve(meshLn) }()
	node.Start(ctx)
	go eng.Run(ctx)

	serveErr := make(chan error, 1)
	go func() { serveErr <- mux.Serve() }()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		_ = ln.Close()
		node.Close()
		time.Sleep(shutdownGrace)
		return nil
	case err := <-serveErr:
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	}
}

// statusPayload is the GET /status response body.
type statusPayload struct {
	Origin  string             `json:"origin"`
	Version string             `json:"version"`
	Peers   []message.PeerInfo `json:"peers"`
}

func serveHTTP(ln net.Listener, node *mesh.Node, origin string) {
	hmux := http.NewServeMux()
	hmux.HandleFunc("GET /status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statusPayload{
			Origin:  origin,
			Version: Version,
			Peers:   node.Peers(),
		})
	})
	hmux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{Handler: hmux, ReadHeaderTimeout: 5 * time.Second}
	_ = srv.Serve(ln)
}

func serveIPC(ln net.Listener, eng *engine.Engine, node *mesh.Node, origin string) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go handleIPCConn(conn, eng, node, origin)
	}
}

func handleIPCConn(conn net.Conn, eng *engine.Engine, node *mesh.Node, origin string) {
	defer conn.Close()
	wc := wire.New(conn, nil)

	msg, err := wc.ReadMsg()
	if err != nil {
		return
	}

	switch msg.Type {
	case message.TypeSync:
		// "clipmesh copy": place text on the clipboard; the poll loop
		// broadcasts it like any other local change.
		if msg.Kind != message.KindText || len(msg.Data) == 0 {
			return
		}
		if err := eng.InjectText(string(msg.Data)); err != nil {
			slog.Error("ipc: inject failed", "err", err)
			return
		}
		slog.Debug("ipc: text injected", "bytes", len(msg.Data))

	case message.TypePaste:
		_ = wc.WriteMsg(&message.Message{
			Type:   message.TypeSync,
			Kind:   message.KindText,
			Data:   []byte(eng.LastText()),
			Source: origin,
		})

	case message.TypeStatus:
		_ = wc.WriteMsg(&message.Message{
			Type:   message.TypeStatusResponse,
			Origin: origin,
			Peers:  node.Peers(),
		})
	}
}
