// agentflow validates, runs and serves workflow graphs.
//
// Usage:
//
//	agentflow serve [--addr=:8080]
//	agentflow validate <workflow.yaml>
//	agentflow run <workflow.yaml> [--input id=value]... [--api-url=URL] [--outputs-only]
//	agentflow ir <workflow.yaml>
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agentflow",
		Short: "Validate and execute agent workflow graphs",
		Long: "agentflow checks workflow graphs for structural soundness and resolves\n" +
			"them, calling model, search and HTTP adapters along the way.",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version: version,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newIRCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
