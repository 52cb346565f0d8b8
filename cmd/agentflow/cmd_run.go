package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"agentflow-runner/pkg/config"
	"agentflow-runner/services/graph"
	"agentflow-runner/services/nodes"
	"agentflow-runner/services/workflow"
)

type runFlags struct {
	inputs      []string
	apiURL      string
	outputsOnly bool
}

func newRunCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Validate and execute a workflow, printing the resolved values",
		Long: `Run validates a workflow and resolves every node. Input nodes are bound
with --input id=value; values that parse as JSON are bound decoded.

Model and search nodes call the configured provider directly (GENAI_API_KEY),
or a running agentflow server when --api-url is set.

Usage:
  agentflow run greet.yaml --input names='["alpha","beta"]'
  agentflow run summarize.json --api-url=http://localhost:8080 --outputs-only`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			slog.SetDefault(cliLogger(cmd.ErrOrStderr(), cfg.LogLevel))

			adapters, err := newAdapters(cfg, flags.apiURL)
			if err != nil {
				return err
			}
			return runWorkflow(cmd, args[0], flags, cfg, adapters)
		},
	}
	f := cmd.Flags()
	f.StringArrayVarP(&flags.inputs, "input", "i", nil, "Input binding id=value (repeatable)")
	f.StringVar(&flags.apiURL, "api-url", "", "Send adapter calls to an agentflow server at this URL")
	f.BoolVar(&flags.outputsOnly, "outputs-only", false, "Print only the values of output nodes")
	return cmd
}

func runWorkflow(cmd *cobra.Command, path string, flags runFlags, cfg config.Config, adapters nodes.Adapters) error {
	doc, err := loadDocument(path, cmd.InOrStdin())
	if err != nil {
		return err
	}
	inputs, err := parseInputs(flags.inputs)
	if err != nil {
		return err
	}

	g := doc.Graph()
	if err := graph.Validate(g); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ExecutionTimeout)
	defer cancel()

	executor := workflow.NewExecutor(adapters, workflow.WithDefaults(nodeDefaults(cfg)))
	result, err := executor.Execute(ctx, g, inputs)
	if err != nil {
		return err
	}
	slog.Debug("workflow executed", "name", doc.Name, "nodes", g.Len())

	if flags.outputsOnly {
		return writeJSON(cmd.OutOrStdout(), workflow.Outputs(g, result))
	}
	return writeJSON(cmd.OutOrStdout(), result)
}
