package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clipmesh/clipmesh/internal/ipc"
	"github.com/clipmesh/clipmesh/internal/message"
	"github.com/clipmesh/clipmesh/internal/snapshot"
	"github.com/clipmesh/clipmesh/internal/wire"
)

func newCopyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy [text]",
		Short: "Put text on the mesh clipboard",
		Long: `Sends text to the locally running clipmesh node, which places it on the
clipboard and broadcasts it to the mesh on its next poll tick.

Reads from stdin when no argument is given:

  echo "hello" | clipmesh copy
  clipmesh copy "hello"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var text string
			if len(args) == 1 {
				text = args[0]
			} else {
				b, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				text = strings.TrimSuffix(string(b), "\n")
			}
			if text == "" {
				return fmt.Errorf("nothing to copy")
			}
			return sendCopy(text)
		},
	}
}

func sendCopy(text string) error {
	conn, err := ipc.Dial()
	if err != nil {
		return fmt.Errorf("no clipmesh node running here (%w)", err)
	}
	defer conn.Close()

	data := []byte(text)
	wc := wire.New(conn, nil)
	return wc.WriteMsg(&message.Message{
		Type:   message.TypeSync,
		Kind:   message.KindText,
		Hash:   snapshot.HashBytes(data),
		Data:   data,
		Source: "ipc:copy",
	})
}
