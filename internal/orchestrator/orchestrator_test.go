package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"pluginrunner/internal/catalog"
	"pluginrunner/internal/executor"
	"pluginrunner/internal/intent"
	"pluginrunner/internal/metrics"
	"pluginrunner/internal/planner"
	"pluginrunner/internal/state"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeActivator starts everything except the components listed in refuse.
type fakeActivator struct {
	mu     sync.Mutex
	refuse map[catalog.ComponentID]bool
	starts int
	stops  int
}

func (f *fakeActivator) TryStart(_ context.Context, id catalog.ComponentID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return !f.refuse[id], nil
}

func (f *fakeActivator) Stop(_ context.Context, _ catalog.ComponentID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

var (
	idR = catalog.MustParseComponentID("4e69383e-044d-4786-9077-5f8e5b259793")
	idP = catalog.MustParseComponentID("c8b7ed6b-3a5f-4f51-b3b4-5a1b0a3e8f10")
)

func requirer(level catalog.RequirementLevel) catalog.ComponentDescriptor {
	return catalog.ComponentDescriptor{
		ID:           idR,
		Name:         "R",
		Requirements: []catalog.Requirement{{Service: "ServiceP", Level: level}},
	}
}

func provider() catalog.ComponentDescriptor {
	return catalog.ComponentDescriptor{ID: idP, Name: "P", Provides: []catalog.ServiceID{"ServiceP"}}
}

type fixture struct {
	orch    *Orchestrator
	intents *intent.Store
	act     *fakeActivator
}

func newFixture(t *testing.T, components ...catalog.ComponentDescriptor) *fixture {
	t.Helper()
	cat, err := catalog.NewMemory(components...)
	require.NoError(t, err)

	f := &fixture{
		intents: intent.NewStore(),
		act:     &fakeActivator{refuse: make(map[catalog.ComponentID]bool)},
	}
	f.orch, err = New(Config{Catalog: cat, Intents: f.intents, Activator: f.act})
	require.NoError(t, err)
	return f
}

func (f *fixture) set(t *testing.T, id catalog.ComponentID, i intent.Intent) {
	t.Helper()
	require.NoError(t, f.intents.Set(id, i))
}

func TestNewRequiresCollaborators(t *testing.T) {
	cat, _ := catalog.NewMemory()
	_, err := New(Config{Intents: intent.NewStore(), Activator: &fakeActivator{}})
	assert.Error(t, err)
	_, err = New(Config{Catalog: cat, Activator: &fakeActivator{}})
	assert.Error(t, err)
	_, err = New(Config{Catalog: cat, Intents: intent.NewStore()})
	assert.Error(t, err)
}

func TestMustExistAndRunProviderPresent(t *testing.T) {
	f := newFixture(t, requirer(catalog.MustExistAndRun), provider())
	ctx := context.Background()

	f.set(t, idR, intent.Start)
	assert.True(t, f.orch.Apply(ctx))
	assert.True(t, f.orch.IsRunning(idR))
	assert.True(t, f.orch.IsRunning(idP))

	f.set(t, idR, intent.Stop)
	assert.True(t, f.orch.Apply(ctx))
	assert.False(t, f.orch.IsRunning(idR))
	assert.True(t, f.orch.IsRunning(idP), "stopping the requirer leaves the provider running")
}

func TestMustExistAndRunProviderAbsent(t *testing.T) {
	f := newFixture(t, requirer(catalog.MustExistAndRun))
	f.set(t, idR, intent.Start)

	assert.False(t, f.orch.Apply(context.Background()))
	assert.False(t, f.orch.IsRunning(idR))

	report := f.orch.LastReport()
	require.NotNil(t, report)
	assert.False(t, report.Success)
	assert.True(t, planner.IsKind(report.Failures[idR], planner.MissingProvider))
}

func TestMustExistProviderNotRun(t *testing.T) {
	f := newFixture(t, requirer(catalog.MustExist), provider())
	f.set(t, idR, intent.Start)

	assert.True(t, f.orch.Apply(context.Background()))
	assert.True(t, f.orch.IsRunning(idR))
	assert.False(t, f.orch.IsRunning(idP))
}

func TestOptionalProviderAbsent(t *testing.T) {
	f := newFixture(t, requirer(catalog.Optional))
	f.set(t, idR, intent.Start)

	assert.True(t, f.orch.Apply(context.Background()))
	assert.True(t, f.orch.IsRunning(idR))
}

func TestOptionalTryStartProviderPresent(t *testing.T) {
	f := newFixture(t, requirer(catalog.OptionalTryStart), provider())
	ctx := context.Background()

	f.set(t, idR, intent.Start)
	assert.True(t, f.orch.Apply(ctx))
	assert.True(t, f.orch.IsRunning(idR))
	assert.True(t, f.orch.IsRunning(idP))

	f.set(t, idR, intent.Stop)
	assert.True(t, f.orch.Apply(ctx))
	assert.False(t, f.orch.IsRunning(idR))
	assert.True(t, f.orch.IsRunning(idP))
}

func TestMustExistTryStartToleratesFailedProvider(t *testing.T) {
	f := newFixture(t, requirer(catalog.MustExistTryStart), provider())
	f.act.refuse[idP] = true
	f.set(t, idR, intent.Start)

	assert.True(t, f.orch.Apply(context.Background()))
	assert.True(t, f.orch.IsRunning(idR))
	assert.False(t, f.orch.IsRunning(idP))
	assert.Contains(t, f.orch.LastReport().Failures, idP, "the failed provider is still reported")
}

func TestMustExistAndRunFailsWithFailedProvider(t *testing.T) {
	f := newFixture(t, requirer(catalog.MustExistAndRun), provider())
	f.act.refuse[idP] = true
	f.set(t, idR, intent.Start)

	assert.False(t, f.orch.Apply(context.Background()))
	assert.False(t, f.orch.IsRunning(idR))

	var providerErr *executor.ProviderFailedError
	assert.True(t, errors.As(f.orch.LastReport().Failures[idR], &providerErr))
}

func TestStopIntentWins(t *testing.T) {
	f := newFixture(t, requirer(catalog.MustExistAndRun), provider())
	ctx := context.Background()

	f.set(t, idR, intent.Start)
	require.True(t, f.orch.Apply(ctx))

	// The provider is asked to stop while R still needs it.
	f.set(t, idP, intent.Stop)
	assert.False(t, f.orch.Apply(ctx))
	assert.False(t, f.orch.IsRunning(idP))
	assert.False(t, f.orch.IsRunning(idR))
}

func TestApplyIsIdempotent(t *testing.T) {
	f := newFixture(t, requirer(catalog.MustExistAndRun))
	ctx := context.Background()
	f.set(t, idR, intent.Start)

	first := f.orch.Apply(ctx)
	running := f.orch.IsRunning(idR)
	second := f.orch.Apply(ctx)
	assert.Equal(t, first, second)
	assert.Equal(t, running, f.orch.IsRunning(idR))

	g := newFixture(t, requirer(catalog.OptionalTryStart), provider())
	g.set(t, idR, intent.Start)
	require.True(t, g.orch.Apply(ctx))
	starts := g.act.starts
	require.True(t, g.orch.Apply(ctx))
	assert.Equal(t, starts, g.act.starts, "a second Apply starts nothing")
	assert.True(t, g.orch.LastReport().Plan.IsEmpty())
}

func TestLayeredIntents(t *testing.T) {
	cat, err := catalog.NewMemory(requirer(catalog.OptionalTryStart), provider())
	require.NoError(t, err)
	system := intent.NewSystemConfig()
	user := intent.NewStore()
	act := &fakeActivator{refuse: make(map[catalog.ComponentID]bool)}

	orch, err := New(Config{Catalog: cat, Intents: intent.NewLayered(system, user), Activator: act})
	require.NoError(t, err)
	ctx := context.Background()

	system.SetStatus(idR, intent.StatusAutomaticStart)
	system.SetStatus(idP, intent.StatusDisabled)
	assert.True(t, orch.Apply(ctx))
	assert.True(t, orch.IsRunning(idR))
	assert.False(t, orch.IsRunning(idP), "disabled providers are never auto-started")

	require.NoError(t, user.Set(idR, intent.Stop))
	assert.True(t, orch.Apply(ctx))
	assert.False(t, orch.IsRunning(idR))
}

func TestOrphanIsStopped(t *testing.T) {
	cat, err := catalog.NewMemory(provider())
	require.NoError(t, err)
	user := intent.NewStore()
	act := &fakeActivator{refuse: make(map[catalog.ComponentID]bool)}
	orch, err := New(Config{Catalog: cat, Intents: user, Activator: act})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, user.Set(idP, intent.Start))
	require.True(t, orch.Apply(ctx))

	cat.Remove(idP)
	assert.True(t, orch.Apply(ctx))
	assert.False(t, orch.IsRunning(idP))
	assert.Equal(t, []catalog.ComponentID{idP}, orch.LastReport().Plan.Orphans)
	assert.NotContains(t, orch.States().Snapshot(), idP, "stopped orphans are forgotten")
}

func TestPlanIsDryRun(t *testing.T) {
	f := newFixture(t, requirer(catalog.MustExistAndRun), provider())
	f.set(t, idR, intent.Start)

	plan, g := f.orch.Plan()
	assert.Equal(t, []catalog.ComponentID{idP, idR}, plan.Starts)
	assert.Equal(t, 2, g.Len())
	assert.Zero(t, f.act.starts)
	assert.Nil(t, f.orch.LastReport())
}

func TestMetricsAndEvents(t *testing.T) {
	cat, err := catalog.NewMemory(requirer(catalog.MustExistAndRun), provider())
	require.NoError(t, err)
	user := intent.NewStore()
	m := metrics.New(prometheus.NewRegistry())
	states := state.NewStore()
	orch, err := New(Config{
		Catalog:   cat,
		Intents:   user,
		Activator: &fakeActivator{refuse: make(map[catalog.ComponentID]bool)},
		States:    states,
		Metrics:   m,
	})
	require.NoError(t, err)
	events := orch.SubscribeToStateChanges()

	require.NoError(t, user.Set(idR, intent.Start))
	require.True(t, orch.Apply(context.Background()))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ApplyTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ComponentsRunning))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("start", "ok")))
	assert.Same(t, states, orch.States())

	require.Len(t, events, 2)
	first := <-events
	assert.Equal(t, idP, first.Component)
	assert.Equal(t, state.Started, first.NewState)

	orch.UnsubscribeFromStateChanges(events)
	<-events
	_, open := <-events
	assert.False(t, open)
}

func TestConcurrentIsRunningDuringApply(t *testing.T) {
	var components []catalog.ComponentDescriptor
	for i := 0; i < 20; i++ {
		components = append(components, catalog.ComponentDescriptor{
			ID:   catalog.MustParseComponentID(fmt.Sprintf("00000000-0000-0000-0000-%012d", i+1)),
			Name: fmt.Sprintf("C%d", i),
		})
	}
	f := newFixture(t, components...)
	for _, c := range components {
		f.set(t, c.ID, intent.Start)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					for _, c := range components {
						_ = f.orch.IsRunning(c.ID)
					}
				}
			}
		}()
	}

	var applies sync.WaitGroup
	for i := 0; i < 3; i++ {
		applies.Add(1)
		go func() {
			defer applies.Done()
			assert.True(t, f.orch.Apply(context.Background()))
		}()
	}
	applies.Wait()
	close(stop)
	wg.Wait()

	for _, c := range components {
		assert.True(t, f.orch.IsRunning(c.ID))
	}
	assert.Equal(t, len(components), f.act.starts, "serialized applies start each component once")
}
