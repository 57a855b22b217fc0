package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name, "scenario name should match file name")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario failed: %v", result.Errors)
			assert.Len(t, result.Trace, len(scenario.Flow))
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/compaction.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := MarshalTrace(scenario.Name, first)
	require.NoError(t, err)
	b, err := MarshalTrace(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	scenario := mustParse(t, `
name: wrong_value
description: expects the wrong value
flow:
  - op: store
    key: k
    value: v1
  - op: read
    key: k
    expect:
      value: v2
  - op: read
    key: nope
`)
	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], `expected value "v2", got "v1"`)
	assert.Contains(t, result.Errors[1], "unexpected error NOT_FOUND")
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	scenario := mustParse(t, `
name: missing_error
description: expects an error that never happens
flow:
  - op: store
    key: k
    value: v
  - op: read
    key: k
    expect:
      error: NOT_FOUND
`)
	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected NOT_FOUND, got success")
}

func TestRun_HistoryCount(t *testing.T) {
	scenario := mustParse(t, `
name: history_count
description: counts records
flow:
  - op: store
    key: k
    value: a
  - op: history
    key: k
    raw: true
    expect:
      count: 2
`)
	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected 2 records, got 1")
	assert.Equal(t, "1", result.Trace[1].Result)
}

func TestRun_ScenariosAreIsolated(t *testing.T) {
	scenario := mustParse(t, `
name: isolated
description: each run starts from empty relays
flow:
  - op: store
    key: k
    value: v
  - op: read_singleton
    key: k
    expect:
      value: v
`)
	for range 2 {
		result, err := Run(scenario)
		require.NoError(t, err)
		assert.True(t, result.Pass, "errors: %v", result.Errors)
	}
}

func mustParse(t *testing.T, doc string) *Scenario {
	t.Helper()
	scenario, err := ParseScenario([]byte(strings.TrimSpace(doc)))
	require.NoError(t, err)
	return scenario
}
