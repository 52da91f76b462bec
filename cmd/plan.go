package cmd

import (
	"pluginrunner/internal/formatting"

	"github.com/spf13/cobra"
)

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show what apply would start and stop",
		Long: `Computes the activation plan for the current manifests and intents without
running any hook. Stops are listed before starts, each in execution order,
followed by the components whose requirements cannot be met.`,
		Args: cobra.NoArgs,
		RunE: runPlan,
	}
}

func runPlan(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd.Context())
	if err != nil {
		return err
	}
	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}

	plan, g := env.orchestrator.Plan()
	return f.FormatPlan(formatting.NewPlanView(plan, g))
}
