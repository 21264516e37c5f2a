package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario on a temporary database and compares
// its snapshot against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	snap, err := Run(context.Background(), scenario, filepath.Join(t.TempDir(), "harness.db"))
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, snap)
}

// AssertGolden compares an existing snapshot against the golden file
// named after scenarioName.
func AssertGolden(t *testing.T, scenarioName string, snap *Snapshot) error {
	t.Helper()

	data, err := snap.Encode()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
