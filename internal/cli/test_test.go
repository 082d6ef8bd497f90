package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runTestCommand(format string, args ...string) (string, error) {
	out, _, err := execute(NewTestCommand(&RootOptions{Format: format}), args...)
	return out, err
}

func TestTestCommand_RequiresDir(t *testing.T) {
	_, err := runTestCommand("text")
	require.Error(t, err)
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := runTestCommand("text", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommand_FileIsNotDir(t *testing.T) {
	_, err := runTestCommand("text", steepingScenario)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_EmptyDir(t *testing.T) {
	out, err := runTestCommand("text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_EmptyDirJSON(t *testing.T) {
	out, err := runTestCommand("json", t.TempDir())
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
	assert.NotNil(t, resp.Data.Scenarios)
}

func TestTestCommand_PassesWithGolden(t *testing.T) {
	dir := copyScenarios(t)

	out, err := runTestCommand("text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ shallow_cup")
	assert.Contains(t, out, "✓ tea_steeping")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	dir := copyScenarios(t)
	writeFile(t, dir, "golden/tea_steeping.golden", `{"scenario":"tea_steeping","snapshots":[]}`+"\n")

	out, err := runTestCommand("text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ tea_steeping")
	assert.Contains(t, out, "does not match golden file")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommand_Update(t *testing.T) {
	dir := copyScenarios(t)
	goldenPath := filepath.Join(dir, "golden", "shallow_cup.golden")
	_, err := os.Stat(goldenPath)
	require.True(t, os.IsNotExist(err))

	out, err := runTestCommand("text", "--update", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ shallow_cup (golden updated)")

	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"code":"LOWER_BOUND"`)

	// The freshly written golden file must match on the next run.
	out, err = runTestCommand("text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
}

func TestTestCommand_Filter(t *testing.T) {
	dir := copyScenarios(t)

	out, err := runTestCommand("text", "--filter", "tea_*", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ tea_steeping")
	assert.NotContains(t, out, "shallow_cup")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommand_FailingExpectation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hot.yaml", `name: hot
entities:
  - kind: cup
    id: mug
ticks: 1
expect:
  - entity: mug
    field: temp_curr
    min: 50
`)

	out, err := runTestCommand("text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ hot")
	assert.Contains(t, out, "mug.temp_curr = 20, expected >= 50")
}

func TestTestCommand_LoadFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\nbogus: true\n")

	out, err := runTestCommand("text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommand_JSONOutput(t *testing.T) {
	dir := copyScenarios(t)
	writeFile(t, dir, "golden/tea_steeping.golden", "stale\n")

	out, err := runTestCommand("json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)

	require.Len(t, resp.Data.Scenarios, 2)
	assert.Equal(t, "shallow_cup", resp.Data.Scenarios[0].Name)
	assert.True(t, resp.Data.Scenarios[0].Pass)
	assert.Equal(t, "tea_steeping", resp.Data.Scenarios[1].Name)
	assert.False(t, resp.Data.Scenarios[1].Pass)
}
