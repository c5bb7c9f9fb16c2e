// clipmesh: clipboard replication across a peer mesh.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clipmesh/clipmesh/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "clipmesh",
		Short: "Clipboard replication across a peer mesh",
		Long: `clipmesh keeps the system clipboard in sync across a mesh of machines,
with no central server. Every node listens for inbound peers and dials the
peers it is configured with, so the mesh can be a ring, a star, a full mesh,
or anything in between — content-hash deduplication stops messages from
looping no matter how the graph is wired.

Run "clipmesh serve" on each machine and point --peer at one or more other
nodes. Use "clipmesh copy/paste/status" as CLI tools against the local node.

Config file search order (first found wins):
  /etc/clipmesh/clipmesh.toml
  $HOME/.config/clipmesh/clipmesh.toml
  path supplied via --config

All flags can be set via CLIPMESH_<FLAG> env vars or config-file keys.
See "clipmesh serve --help" for the full flag reference.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newStatusCmd(),
		newCopyCmd(),
		newPasteCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("clipmesh %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(format, level)
}
