package cmd

import (
	"pluginrunner/internal/formatting"
	"pluginrunner/internal/intent"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List discovered plugins with their intents and requirements",
		Long: `Lists every discovered component in discovery order with its version,
effective intent, runtime state, provided and required services, the
components requiring it, and the reason it cannot start, if any.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd.Context())
	if err != nil {
		return err
	}
	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}

	plan, g := env.orchestrator.Plan()
	intents := intent.Snapshot(env.intents, g.Nodes())
	return f.FormatStatus(formatting.NewStatusView(env.catalog, g, intents, env.orchestrator.States(), plan))
}
