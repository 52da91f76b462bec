package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pluginrunner/internal/catalog"
	"pluginrunner/internal/formatting"
	"pluginrunner/internal/intent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const (
	idProvider = "11111111-1111-1111-1111-111111111111"
	idConsumer = "22222222-2222-2222-2222-222222222222"
	idOrphaned = "33333333-3333-3333-3333-333333333333"
)

// setupConfigDir writes a config directory with two healthy manifests and
// one whose required service nobody provides.
func setupConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	plugins := filepath.Join(dir, "plugins")
	require.NoError(t, os.Mkdir(plugins, 0755))

	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(plugins, name), []byte(content), 0644))
	}
	write("10-provider.yaml", `
id: `+idProvider+`
name: Provider
version: 1.0.0
provides: [ServiceA]
hooks:
  start: "test -n '{{ .Name | lower }}'"
`)
	write("20-consumer.yaml", `
id: `+idConsumer+`
name: Consumer
requires:
  - service: ServiceA
    level: MustExistAndRun
`)
	write("30-lonely.yaml", `
id: `+idOrphaned+`
name: Lonely
requires:
  - service: ServiceZ
    level: MustExist
`)
	return dir
}

// run executes the root command with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, debug, outputFormat, intentSystem = "", false, "table", false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestIntentCommand(t *testing.T) {
	dir := setupConfigDir(t)

	out, err := run(t, "--config-path", dir, "intent", "consumer", "start")
	require.NoError(t, err)
	assert.Equal(t, "Intent of Consumer set to start\n", out)

	data, err := os.ReadFile(filepath.Join(dir, "intents.yaml"))
	require.NoError(t, err)
	var entries map[string]string
	require.NoError(t, yaml.Unmarshal(data, &entries))
	assert.Equal(t, map[string]string{"Consumer": "start"}, entries)

	out, err = run(t, "--config-path", dir, "intent", "--system", idProvider, "disabled")
	require.NoError(t, err)
	assert.Equal(t, "System status of Provider set to disabled\n", out)
	assert.FileExists(t, filepath.Join(dir, "system.yaml"))

	_, err = run(t, "--config-path", dir, "intent", "Nobody", "start")
	assert.ErrorContains(t, err, "no discovered component")

	_, err = run(t, "--config-path", dir, "intent", "Consumer", "maybe")
	assert.Error(t, err)
}

func TestPlanCommand(t *testing.T) {
	dir := setupConfigDir(t)
	_, err := run(t, "--config-path", dir, "intent", "Consumer", "start")
	require.NoError(t, err)

	out, err := run(t, "--config-path", dir, "-o", "json", "plan")
	require.NoError(t, err)

	var plan formatting.PlanView
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	require.Len(t, plan.Starts, 2)
	assert.Equal(t, "Provider", plan.Starts[0].Name, "providers start first")
	assert.Equal(t, "Consumer", plan.Starts[1].Name)
	assert.Empty(t, plan.Unsatisfiable, "Lonely has no intent so it is never checked")
}

func TestApplyCommand(t *testing.T) {
	dir := setupConfigDir(t)
	_, err := run(t, "--config-path", dir, "intent", "Consumer", "start")
	require.NoError(t, err)

	out, err := run(t, "--config-path", dir, "-o", "json", "apply")
	require.NoError(t, err)

	var report formatting.ReportView
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Success)
	assert.Len(t, report.Started, 2)
	assert.Len(t, report.Transitions, 2)
}

func TestApplyCommandFailure(t *testing.T) {
	dir := setupConfigDir(t)
	_, err := run(t, "--config-path", dir, "intent", "Lonely", "start")
	require.NoError(t, err)

	out, err := run(t, "--config-path", dir, "apply")
	require.Error(t, err)
	assert.ErrorIs(t, err, errApplyFailed)
	assert.Equal(t, ExitCodeError, getExitCode(err))
	assert.Contains(t, out, "MissingProvider")
	assert.Contains(t, out, "Apply failed")
}

func TestStatusCommand(t *testing.T) {
	dir := setupConfigDir(t)

	out, err := run(t, "--config-path", dir, "-o", "yaml", "status")
	require.NoError(t, err)

	var status struct {
		Components []struct {
			Name     string   `yaml:"name"`
			Intent   string   `yaml:"intent"`
			State    string   `yaml:"state"`
			Requires []string `yaml:"requires"`
		} `yaml:"components"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &status))
	require.Len(t, status.Components, 3)
	assert.Equal(t, "Provider", status.Components[0].Name)
	assert.Equal(t, "unset", status.Components[0].Intent)
	assert.Equal(t, "Stopped", status.Components[0].State)
	assert.Equal(t, []string{"ServiceA (MustExistAndRun)"}, status.Components[1].Requires)
}

func TestInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("logLevel: loud\n"), 0644))

	_, err := run(t, "--config-path", dir, "plan")
	require.Error(t, err)
	assert.Equal(t, ExitCodeConfigError, getExitCode(err))

	_, err = run(t, "--config-path", t.TempDir(), "-o", "xml", "plan")
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestReloadKeepsPreviousOnError(t *testing.T) {
	dir := setupConfigDir(t)
	intents := filepath.Join(dir, "intents.yaml")
	require.NoError(t, os.WriteFile(intents, []byte("Consumer: start\n"), 0644))

	configPath, debug = dir, false
	env, err := loadEnvironment(context.Background())
	require.NoError(t, err)
	consumer := catalog.MustParseComponentID(idConsumer)
	provider := catalog.MustParseComponentID(idProvider)
	require.Equal(t, 3, env.catalog.Len())
	require.Equal(t, intent.Start, env.intents.GetIntent(consumer))

	// A manifest goes away and the intents file is broken in the same burst
	require.NoError(t, os.Remove(filepath.Join(dir, "plugins", "30-lonely.yaml")))
	require.NoError(t, os.WriteFile(intents, []byte("Consumer: maybe\n"), 0644))
	require.Error(t, env.reload(context.Background()))
	assert.Equal(t, 3, env.catalog.Len())
	assert.Equal(t, intent.Start, env.intents.GetIntent(consumer))

	require.NoError(t, os.WriteFile(intents, []byte("Provider: stop\n"), 0644))
	require.NoError(t, env.reload(context.Background()))
	assert.Equal(t, 2, env.catalog.Len())
	assert.Equal(t, intent.Unset, env.intents.GetIntent(consumer))
	assert.Equal(t, intent.Stop, env.intents.GetIntent(provider))
	assert.Same(t, env.user, env.intents.User)
}

func TestWatchLoop(t *testing.T) {
	dir := setupConfigDir(t)
	configPath, debug = dir, false
	env, err := loadEnvironment(context.Background())
	require.NoError(t, err)

	var out bytes.Buffer
	f, err := formatting.New(formatting.Options{Format: formatting.FormatJSON, Writer: &out})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() { done <- watchLoop(ctx, env, f, changes) }()

	// The first apply has nothing to start
	require.Eventually(t, func() bool { return env.metrics.Summary().ApplyAttempts == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "intents.yaml"), []byte("Consumer: start\n"), 0644))
	changes <- struct{}{}
	require.Eventually(t, func() bool { return env.metrics.Summary().ApplyAttempts == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return env.metrics.Summary().StartsOK == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch loop did not stop")
	}
}
