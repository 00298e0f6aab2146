// Command nachos is the kernel's own entry point: it boots the
// cooperative scheduler, mounts a disk-backed file system, and either
// formats a fresh disk, checks an existing one's structural invariants,
// or loads and runs a user executable against it. original_source's
// nachos binary parses a single hand-rolled flag string in main.cc; this
// rebuild splits that into three Cobra subcommands, the command layout
// kubeadm's cmd/kubeadm/app/cmd tree uses for its own subcommand-per-file
// construction.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "nachos",
		Short:         "a cooperative-threading kernel simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newFormatCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newRunCmd())

	return root
}
