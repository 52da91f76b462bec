package formatting

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"pluginrunner/internal/catalog"
	"pluginrunner/internal/dependency"
	"pluginrunner/internal/executor"
	"pluginrunner/internal/intent"
	"pluginrunner/internal/orchestrator"
	"pluginrunner/internal/planner"
	"pluginrunner/internal/state"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
)

var (
	idA = catalog.MustParseComponentID("11111111-1111-1111-1111-111111111111")
	idB = catalog.MustParseComponentID("22222222-2222-2222-2222-222222222222")
	idC = catalog.MustParseComponentID("33333333-3333-3333-3333-333333333333")
)

func fixture(t *testing.T) (*catalog.Memory, *dependency.Graph) {
	t.Helper()
	cat, err := catalog.NewMemory(
		catalog.ComponentDescriptor{ID: idA, Name: "ProviderA", Version: "1.0.0", Provides: []catalog.ServiceID{"ServiceA"},
			Description: "Provides ServiceA\nto everyone who asks for it, with a description long enough to be cut"},
		catalog.ComponentDescriptor{ID: idB, Name: "NeedsA", Requirements: []catalog.Requirement{{Service: "ServiceA", Level: catalog.MustExistAndRun}}},
		catalog.ComponentDescriptor{ID: idC, Name: "NeedsZ", Requirements: []catalog.Requirement{{Service: "ServiceZ", Level: catalog.MustExist}}},
	)
	require.NoError(t, err)
	return cat, dependency.Build(cat)
}

func testPlan() *planner.Plan {
	return &planner.Plan{
		Stops:  []catalog.ComponentID{},
		Starts: []catalog.ComponentID{idA, idB},
		Wanted: []catalog.ComponentID{idA, idB},
		Unsatisfiable: map[catalog.ComponentID]*planner.RequirementError{
			idC: {Kind: planner.MissingProvider, Component: idC, Service: "ServiceZ", Level: catalog.MustExist},
		},
		Passes: 2,
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": FormatTable, "TABLE": FormatTable, "json": FormatJSON, " yaml ": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)

	_, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestNewPlanView(t *testing.T) {
	_, g := fixture(t)
	v := NewPlanView(testPlan(), g)

	assert.Equal(t, []ComponentRef{{ID: idA.String(), Name: "ProviderA"}, {ID: idB.String(), Name: "NeedsA"}}, v.Starts)
	assert.Empty(t, v.Stops)
	require.Len(t, v.Unsatisfiable, 1)
	assert.Equal(t, "NeedsZ", v.Unsatisfiable[0].Name)
	assert.Equal(t, "MissingProvider", v.Unsatisfiable[0].Kind)
	assert.Equal(t, 2, v.Passes)

	empty := NewPlanView(nil, g)
	assert.NotNil(t, empty.Starts)
}

func TestNewReportView(t *testing.T) {
	_, g := fixture(t)
	r := &orchestrator.Report{
		Success:   false,
		StartedAt: time.Unix(1700000000, 0),
		Duration:  1234 * time.Microsecond,
		Started:   []catalog.ComponentID{idA},
		Failures: map[catalog.ComponentID]error{
			idB: &executor.ActivationError{Component: idB, Err: executor.ErrStartRefused},
			idC: testPlan().Unsatisfiable[idC],
		},
		Transitions: []executor.Transition{
			{Component: idA, Op: executor.OpStart, Outcome: executor.OutcomeOK, Duration: time.Millisecond},
			{Component: idB, Op: executor.OpStart, Outcome: executor.OutcomeFailed, Error: "refused"},
		},
		Plan:  testPlan(),
		Graph: g,
	}

	v := NewReportView(r)
	assert.False(t, v.Success)
	assert.Equal(t, "1ms", v.Duration)
	require.Len(t, v.Failures, 2)
	assert.Equal(t, "NeedsA", v.Failures[0].Name, "failures follow discovery order")
	assert.Equal(t, "ActivationFailed", v.Failures[0].Kind)
	assert.Equal(t, "MissingProvider", v.Failures[1].Kind)
	require.Len(t, v.Transitions, 2)
	assert.Equal(t, "failed", v.Transitions[1].Outcome)
}

func TestFailureKind(t *testing.T) {
	assert.Equal(t, "ProviderFailed", failureKind(&executor.ProviderFailedError{Component: idB, Service: "ServiceA", Provider: idA}))
	assert.Equal(t, "ActivationFailed", failureKind(errors.New("boom")))
}

func TestNewStatusView(t *testing.T) {
	cat, g := fixture(t)
	states := state.NewStore()
	states.Set(idA, state.Started, nil)
	states.Set(idB, state.Stopped, errors.New("stop hook failed"))

	v := NewStatusView(cat, g, map[catalog.ComponentID]intent.Intent{idB: intent.Start}, states, testPlan())
	require.Len(t, v.Components, 3)

	assert.Equal(t, "Started", v.Components[0].State)
	assert.Equal(t, []string{"ServiceA"}, v.Components[0].Provides)
	assert.Equal(t, "unset", v.Components[0].Intent)
	assert.Equal(t, []string{"NeedsA"}, v.Components[0].RequiredBy)
	assert.Empty(t, v.Components[1].RequiredBy)
	assert.Equal(t, "start", v.Components[1].Intent)
	assert.Equal(t, []string{"ServiceA (MustExistAndRun)"}, v.Components[1].Requires)
	assert.Equal(t, "stop hook failed", v.Components[1].Problem)
	assert.Contains(t, v.Components[2].Problem, "no provider for service ServiceZ")
}

func TestTableFormatter(t *testing.T) {
	cat, g := fixture(t)
	var buf bytes.Buffer
	f, err := New(Options{Format: FormatTable, Writer: &buf})
	require.NoError(t, err)

	require.NoError(t, f.FormatPlan(NewPlanView(testPlan(), g)))
	out := buf.String()
	assert.Contains(t, out, "ACTION")
	assert.Contains(t, out, "ProviderA")
	assert.Contains(t, out, "MissingProvider")
	assert.Less(t, strings.Index(out, "ProviderA"), strings.Index(out, "NeedsA"), "steps are printed in order")
	assert.NotContains(t, out, "\x1b[", "no colors unless enabled")

	buf.Reset()
	require.NoError(t, f.FormatPlan(PlanView{}))
	assert.Contains(t, buf.String(), "Nothing to do")

	buf.Reset()
	require.NoError(t, f.FormatStatus(NewStatusView(cat, g, nil, nil, nil)))
	out = buf.String()
	assert.Contains(t, out, "DESCRIPTION")
	assert.Contains(t, out, "REQUIRED BY")
	assert.Contains(t, out, "Provides ServiceA to everyone")
	assert.NotContains(t, out, "cut", "descriptions are truncated")

	buf.Reset()
	require.NoError(t, f.FormatReport(ReportView{Success: true, Duration: "2ms", Started: []ComponentRef{{Name: "A"}}}))
	assert.Contains(t, buf.String(), "Apply succeeded: 1 started, 0 stopped, 0 failed in 2ms")
}

func TestTableFormatterColor(t *testing.T) {
	text.EnableColors()
	var buf bytes.Buffer
	f := NewTableFormatter(Options{Writer: &buf, Color: true})
	require.NoError(t, f.FormatReport(ReportView{Success: false}))
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestStructuredFormatters(t *testing.T) {
	_, g := fixture(t)
	view := NewPlanView(testPlan(), g)

	var jsonBuf bytes.Buffer
	jf, err := New(Options{Format: FormatJSON, Writer: &jsonBuf})
	require.NoError(t, err)
	require.NoError(t, jf.FormatPlan(view))

	var fromJSON map[string]interface{}
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &fromJSON))
	assert.Contains(t, fromJSON, "starts")
	assert.Contains(t, fromJSON, "unsatisfiable")

	var yamlBuf bytes.Buffer
	yf, err := New(Options{Format: FormatYAML, Writer: &yamlBuf})
	require.NoError(t, err)
	require.NoError(t, yf.FormatPlan(view))

	var fromYAML map[string]interface{}
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML))
	assert.Equal(t, fromJSON, fromYAML, "YAML keys follow the json tags")
}
