package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/clipmesh/clipmesh/internal/ipc"
	"github.com/clipmesh/clipmesh/internal/message"
	"github.com/clipmesh/clipmesh/internal/wire"
)

func newStatusCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the local node's peer connections",
		Long: `Queries a running clipmesh node and prints its peer list.

Talks to the local node over its IPC socket when one is present, otherwise
falls back to GET /status on --addr.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if ipc.IsRunning() {
				return statusViaIPC()
			}
			return statusViaHTTP(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8537", "node address for the HTTP fallback")
	return cmd
}

func statusViaIPC() error {
	conn, err := ipc.Dial()
	if err != nil {
		return fmt.Errorf("ipc dial: %w", err)
	}
	defer conn.Close()

	wc := wire.New(conn, nil)
	if err := wc.WriteMsg(&message.Message{Type: message.TypeStatus}); err != nil {
		return fmt.Errorf("status request: %w", err)
	}
	reply, err := wc.ReadMsg()
	if err != nil {
		return fmt.Errorf("status response: %w", err)
	}
	printStatus(reply.Origin, reply.Peers)
	return nil
}

func statusViaHTTP(addr string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/status", addr))
	if err != nil {
		return fmt.Errorf("status request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status request: %s", resp.Status)
	}

	var payload statusPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("status decode: %w", err)
	}
	printStatus(payload.Origin, payload.Peers)
	return nil
}

func printStatus(origin string, peers []message.PeerInfo) {
	fmt.Printf("node:  %s\n", origin)
	fmt.Printf("peers: %d\n", len(peers))
	for _, p := range peers {
		state := "disconnected"
		if p.Connected {
			state = fmt.Sprintf("connected, last seen %s ago",
				time.Since(p.LastSeen).Round(time.Second))
		}
		name := p.Source
		if name == "" {
			name = "-"
		}
		fmt.Printf("  %-9s %-22s %-20s %s\n", p.Direction, p.Addr, name, state)
	}
}
