package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"agentflow-runner/services/graph"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <workflow>",
		Short: "Check a workflow document for structural soundness",
		Long: `Validate reports the first structural problem of a workflow: empty,
duplicate or whitespace ids, references to missing nodes, or a cycle.
Pass "-" to read the document from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := graph.Validate(doc.Graph()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "workflow %q is sound (%d nodes)\n", doc.Name, len(doc.Nodes))
			return nil
		},
	}
}
