package main

import (
	"github.com/spf13/cobra"

	"agentflow-runner/services/graph"
)

func newIRCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ir <workflow>",
		Short: "Print the intermediate representation of a sound workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			ir, err := graph.BuildIR(doc.Name, doc.Graph())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), ir)
		},
	}
}
