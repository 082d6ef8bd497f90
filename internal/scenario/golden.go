package scenario

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/vfaabeso/tea-simulation/internal/record"
)

// goldenMap converts a result to the map encoded in golden files. Snapshot
// hashes and the fingerprint are left out so golden files stay readable
// and reviewable by hand.
func goldenMap(name string, result *Result) map[string]any {
	snaps := make([]any, len(result.Snapshots))
	for i, s := range result.Snapshots {
		snaps[i] = map[string]any{
			"tick":    s.Tick,
			"elapsed": s.Elapsed,
			"status":  s.Status,
		}
	}

	out := map[string]any{
		"scenario":  name,
		"snapshots": snaps,
	}
	if f := result.Failure; f != nil {
		out["failure"] = map[string]any{
			"tick": f.Tick,
			"code": string(f.Code),
		}
	}
	return out
}

// GoldenBytes returns the canonical JSON stored in a golden file.
func GoldenBytes(name string, result *Result) ([]byte, error) {
	return record.MarshalCanonical(goldenMap(name, result))
}

// RunWithGolden runs a scenario and compares its snapshot trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/scenario -update
func RunWithGolden(t *testing.T, s *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), s, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, s.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares result's snapshot trace against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := GoldenBytes(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
