package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/pulse/internal/record"
)

// GoldenDir is where RunWithGolden keeps golden files, relative to the
// package under test.
const GoldenDir = "testdata/scenarios/golden"

// GoldenValue is the canonical form of a scenario run: the construction
// outcome, every tick and the final snapshot.
func GoldenValue(name string, r *Result) record.Object {
	obj := record.Object{
		"scenario": record.String(name),
	}
	if r.ConstructError != "" {
		obj["construct_error"] = record.String(r.ConstructError)
		return obj
	}

	ticks := make(record.Array, len(r.Trace))
	for i, ev := range r.Trace {
		t := record.Object{
			"tick":        record.Int(int64(ev.Tick)),
			"outcome":     record.String(ev.Outcome),
			"history_len": record.Int(int64(ev.HistoryLen)),
		}
		if ev.Seq != 0 {
			t["seq"] = record.Int(ev.Seq)
			t["elapsed_ns"] = record.Int(ev.ElapsedNs)
		}
		ticks[i] = t
	}
	obj["mode"] = record.String(r.Mode)
	obj["ticks"] = ticks
	obj["snapshot"] = record.FromStats(name, r.LastSeq(), r.Stats).Object()
	return obj
}

// GoldenBytes marshals GoldenValue as canonical JSON.
func GoldenBytes(name string, r *Result) ([]byte, error) {
	return record.MarshalCanonical(GoldenValue(name, r))
}

// RunWithGolden executes a scenario and compares the run against
// GoldenDir/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario cannot run. Expectation failures and
// golden mismatches fail t.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := GoldenBytes(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
