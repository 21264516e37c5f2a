package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	scenarioPath := filepath.Join(t.TempDir(), "test.yaml")

	content := `
name: test_scenario
description: "Test scenario for validation"
config:
  enable_update_jobs: false
  id_retention: always-free
steps:
  - update:
      subject: Berlin
      facts:
        - property: Population
          values: [{number: 3}]
    update_jobs: true
  - delete: Berlin
  - advance: 2h
  - concepts:
      action: status
      concept: Big cities
`
	require.NoError(t, os.WriteFile(scenarioPath, []byte(content), 0644))

	scenario, err := LoadScenario(scenarioPath)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	require.NotNil(t, scenario.Config.EnableUpdateJobs)
	assert.False(t, *scenario.Config.EnableUpdateJobs)
	assert.Equal(t, "always-free", scenario.Config.IDRetention)

	require.Len(t, scenario.Steps, 4)
	assert.Equal(t, StepUpdate, scenario.Steps[0].Kind())
	assert.Equal(t, "Berlin", scenario.Steps[0].Update.Subject)
	require.NotNil(t, scenario.Steps[0].UpdateJobs)
	assert.True(t, *scenario.Steps[0].UpdateJobs)
	assert.Equal(t, StepDelete, scenario.Steps[1].Kind())
	assert.Equal(t, StepAdvance, scenario.Steps[2].Kind())
	assert.Equal(t, StepConcepts, scenario.Steps[3].Kind())
	assert.Equal(t, "Big cities", scenario.Steps[3].Concepts.Concept)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: "Misspelt steps key"
step:
  - delete: Berlin
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing name",
			body: "description: d\nsteps: [{delete: X}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			body: "name: n\nsteps: [{delete: X}]\n",
			want: "description is required",
		},
		{
			name: "no steps",
			body: "name: n\ndescription: d\n",
			want: "steps list is required",
		},
		{
			name: "empty step",
			body: "name: n\ndescription: d\nsteps: [{}]\n",
			want: "step 1 must set exactly one of",
		},
		{
			name: "two operations",
			body: "name: n\ndescription: d\nsteps: [{delete: X, advance: 1m}]\n",
			want: "step 1 must set exactly one of",
		},
		{
			name: "concepts without action",
			body: "name: n\ndescription: d\nsteps: [{concepts: {concept: C}}]\n",
			want: "concepts action is required",
		},
		{
			name: "bad duration",
			body: "name: n\ndescription: d\nsteps: [{advance: soon}]\n",
			want: "step 1: advance",
		},
		{
			name: "change_prop on delete",
			body: "name: n\ndescription: d\nsteps: [{delete: X, change_prop: true}]\n",
			want: "apply to update steps only",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_Testdata(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadScenario(path)
			require.NoError(t, err)
		})
	}
}
