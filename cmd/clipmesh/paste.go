package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clipmesh/clipmesh/internal/ipc"
	"github.com/clipmesh/clipmesh/internal/message"
	"github.com/clipmesh/clipmesh/internal/wire"
)

func newPasteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paste",
		Short: "Print the mesh clipboard's current text",
		Long: `Asks the locally running clipmesh node for its most recent text snapshot
(whether captured locally or received from the mesh) and prints it to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			conn, err := ipc.Dial()
			if err != nil {
				return fmt.Errorf("no clipmesh node running here (%w)", err)
			}
			defer conn.Close()

			wc := wire.New(conn, nil)
			if err := wc.WriteMsg(&message.Message{Type: message.TypePaste}); err != nil {
				return fmt.Errorf("paste request: %w", err)
			}
			reply, err := wc.ReadMsg()
			if err != nil {
				return fmt.Errorf("paste response: %w", err)
			}
			if reply.Type != message.TypeSync || len(reply.Data) == 0 {
				// Empty clipboard — exit 0, print nothing (pbpaste behaviour).
				return nil
			}
			fmt.Println(string(reply.Data))
			return nil
		},
	}
}
