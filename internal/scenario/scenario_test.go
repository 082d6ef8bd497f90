package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func writeScenario(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_YAML(t *testing.T) {
	s, err := LoadScenario("testdata/tea_steeping.yaml")
	require.NoError(t, err)

	assert.Equal(t, "tea_steeping", s.Name)
	assert.Equal(t, 3, s.Ticks)
	assert.Equal(t, 1, s.SnapshotEvery)
	require.Len(t, s.Entities, 1)
	assert.Equal(t, "container", s.Entities[0].Kind)
	require.NotNil(t, s.Entities[0].Tea)
	assert.Equal(t, 8.0, *s.Entities[0].Tea.StartParticleCount)
	assert.Nil(t, s.Entities[0].VolInit, "unset fields stay nil")
	require.Len(t, s.Expect, 2)
}

func TestLoadScenario_CUEMatchesYAML(t *testing.T) {
	fromYAML, err := LoadScenario("testdata/tea_steeping.yaml")
	require.NoError(t, err)

	fromCUE, err := LoadScenario("testdata/tea_steeping.cue")
	require.NoError(t, err)

	assert.Equal(t, fromYAML, fromCUE)
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario("testdata/missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseYAML_UnknownField(t *testing.T) {
	_, err := ParseYAML([]byte(`
name: typo
entities:
  - kind: container
    id: c
    temp_int: 50
ticks: 1
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temp_int")
}

func TestParseCUE_RejectsUnknownField(t *testing.T) {
	path := writeScenario(t, "typo.cue", `
name: "typo"
entities: [{kind: "container", id: "c", temp_int: 50}]
ticks: 1
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse CUE")
}

func TestParseCUE_RejectsConstraintViolation(t *testing.T) {
	path := writeScenario(t, "cold.cue", `
name: "cold"
entities: [{kind: "cup", id: "c", temp_init: -300}]
ticks: 1
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	_, err := ParseYAML([]byte(`
ticks: -1
snapshot_every: -5
environment:
  time_tick: -1
entities:
  - kind: kettle
    id: env
    vol_init: -1
    tea:
      volume: -2
  - kind: cup
    id: ""
expect:
  - entity: c
    field: temp_curr
  - entity: c
    field: temp_curr
    min: 10
    max: 5
failure:
  code: TOO_HOT
`))
	require.Error(t, err)

	msg := err.Error()
	for _, want := range []string{
		"name is required",
		"ticks must be non-negative",
		"snapshot_every must be non-negative",
		"environment.time_tick",
		`unknown kind "kettle"`,
		`id "env" is reserved`,
		"entities[0].vol_init",
		"entities[0].tea.volume",
		"entities[1]: id is required",
		"expect[0]: one of approx, min or max is required",
		"expect[1]: INCONSISTENT_BOUNDS",
		`unknown error code "TOO_HOT"`,
	} {
		assert.Contains(t, msg, want)
	}
}

func TestValidate_DuplicateIDs(t *testing.T) {
	s := &Scenario{
		Name: "dup",
		Entities: []EntitySpec{
			{Kind: "container", ID: "c1"},
			{Kind: "cup", ID: "c1"},
		},
	}

	err := Validate(s)
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 1)
	assert.True(t, strings.Contains(errs[0].Error(), "already used by entities[0]"))
}

func TestValidate_NoEntities(t *testing.T) {
	err := Validate(&Scenario{Name: "empty"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entities list is required")
}

func TestValidate_ApproxWithRange(t *testing.T) {
	approx, lo := 1.0, 0.0
	err := Validate(&Scenario{
		Name:     "x",
		Entities: []EntitySpec{{Kind: "cup", ID: "c"}},
		Expect:   []Expectation{{Entity: "c", Field: "temp_curr", Approx: &approx, Min: &lo}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "approx cannot be combined")
}
