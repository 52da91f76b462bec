package cmd

import (
	"fmt"

	"pluginrunner/internal/intent"

	"github.com/spf13/cobra"
)

var intentSystem bool

func newIntentCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "intent <component> <start|stop|unset>",
		Short: "Record a start or stop intent for a plugin",
		Long: `Records the intent of a component, named by id or name, in intents.yaml.
Nothing is started or stopped until the next apply (or right away under
watch).

With --system the value is a system status instead (manual, automaticStart
or disabled) and is written to system.yaml. A disabled component is always
stopped; otherwise the user intent wins over automaticStart.

Examples:
  pluginrunner intent PluginNeedsServiceC start
  pluginrunner intent --system 4e69383e-044d-4786-9077-5f8e5b259793 disabled`,
		Args: cobra.ExactArgs(2),
		RunE: runIntent,
	}
	c.Flags().BoolVar(&intentSystem, "system", false, "Set the system status instead of the user intent")
	return c
}

func runIntent(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd.Context())
	if err != nil {
		return err
	}

	id, ok := env.catalog.Lookup(args[0])
	if !ok {
		return fmt.Errorf("no discovered component matches %q", args[0])
	}
	name := env.componentName(id)

	if intentSystem {
		status, err := intent.ParseStatus(args[1])
		if err != nil {
			return err
		}
		env.system.SetStatus(id, status)
		if err := intent.SaveSystemFile(env.config.SystemPath(), env.system, env.componentName); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "System status of %s set to %s\n", name, status)
		return nil
	}

	i, err := intent.ParseIntent(args[1])
	if err != nil {
		return err
	}
	if err := env.user.Set(id, i); err != nil {
		return err
	}
	if err := intent.SaveUserFile(env.config.IntentsPath(), env.user, env.componentName); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Intent of %s set to %s\n", name, i)
	return nil
}
