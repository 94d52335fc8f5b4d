// bepaste: clipboard history daemon and CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "bepaste",
		Short: "Clipboard history",
		Long: `bepaste keeps a deduplicated, most-recent-first history of everything
copied to the system clipboard: text, images, and image files copied from a
file manager. The history survives restarts.

Run "bepaste daemon" once per desktop session. The other commands talk to it
over a local socket, or over TCP with --server.

Config file search order (first found wins):
  /etc/bepaste/bepaste.toml
  $HOME/.config/bepaste/bepaste.toml
  path supplied via --config

All flags can be set via BEPASTE_<FLAG> env vars or config-file keys.
See "bepaste daemon --help" for the full flag reference.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newDaemonCmd(),
		newHistoryCmd(),
		newCopyCmd(),
		newClearCmd(),
		newWatchCmd(),
		newShortcutCmd(),
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
			fmt.Printf("bepaste %s\n", Version)
		},
	}
}
