// Command tuiplug is a standalone host for inspecting and exercising
// plugins: validate a manifest, show what a plugin declares and requests,
// or load it into a sandboxed runtime and send it events.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "tuiplug",
		Short:         "Sandboxed plugin host for terminal applications",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newValidateCmd())
	root.AddCommand(newInfoCmd())
	root.AddCommand(newRunCmd(&verbose))
	return root
}
