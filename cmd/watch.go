package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"pluginrunner/internal/discovery"
	"pluginrunner/internal/formatting"
	"pluginrunner/pkg/logging"

	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Apply, then re-apply whenever manifests or intents change",
		Long: `Runs Apply once, then watches the manifest directory, intents.yaml and
system.yaml. Changes are debounced (watchDebounce in config.yaml) and each
burst triggers a rediscovery and a new Apply. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := loadEnvironment(ctx)
	if err != nil {
		return err
	}
	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}

	changes := make(chan struct{}, 1)
	w := discovery.NewWatcher(discovery.WatcherConfig{
		ManifestDir: env.config.ManifestPath(),
		Files:       []string{env.config.IntentsPath(), env.config.SystemPath()},
		Debounce:    env.config.WatchDebounce.Std(),
		OnChange: func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		},
	})
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	return watchLoop(ctx, env, f, changes)
}

// watchLoop applies once, then once per change notification, until ctx is
// done.
func watchLoop(ctx context.Context, env *environment, f formatting.Formatter, changes <-chan struct{}) error {
	apply := func() {
		report := env.orchestrator.ApplyWithReport(ctx)
		if err := f.FormatReport(formatting.NewReportView(report)); err != nil {
			logging.Error("Watcher", err, "Failed to print apply report")
		}
		summary := env.metrics.Summary()
		logging.Debug("Watcher", "Applies: %d (%d failed), starts: %d ok, %d failed, %d skipped, stops: %d",
			summary.ApplyAttempts, summary.ApplyFailures, summary.StartsOK, summary.StartsFailed, summary.StartsSkipped, summary.Stops)
	}

	events := env.orchestrator.SubscribeToStateChanges()
	defer env.orchestrator.UnsubscribeFromStateChanges(events)
	go func() {
		for event := range events {
			logging.Debug("Watcher", "%s: %s -> %s", env.componentName(event.Component), event.OldState, event.NewState)
		}
	}()

	apply()
	for {
		select {
		case <-ctx.Done():
			logging.Info("Watcher", "Interrupted, leaving components in their current state")
			return nil
		case <-changes:
			if err := env.reload(ctx); err != nil {
				logging.Error("Watcher", err, "Failed to reload manifests or intents, keeping the previous ones")
				continue
			}
			apply()
		}
	}
}
