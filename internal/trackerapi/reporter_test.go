package trackerapi

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andr35/DS2-Project/internal/detect"
)

func TestWriteReportProducesExpectedJSONShape(t *testing.T) {
	dir := t.TempDir()

	exp := NewExperiment("000007", ExperimentSettings{
		Seed:          7,
		Repetition:    1,
		DurationMs:    5000,
		GossipDeltaMs: 100,
		Pick:          detect.PickLinear,
		NumberOfNodes: 4,
	}, []ExpectedCrash{{DeltaMs: 1200, Node: "n1"}})

	now := time.Unix(2000, 0)
	exp.Start(now)
	exp.AddCrash(now.Add(1300*time.Millisecond), "n1", "n2")
	exp.Stop(now.Add(5 * time.Second))

	report, err := exp.Report()
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if err := WriteReport(dir, report); err != nil {
		t.Fatalf("write report: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "000007.json"))
	if err != nil {
		t.Fatalf("read report file: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}

	for _, key := range []string{"id", "seed", "repetition", "settings", "result"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("report JSON missing top-level key %q", key)
		}
	}

	settings, ok := decoded["settings"].(map[string]any)
	if !ok {
		t.Fatal("settings is not an object")
	}
	if settings["pick_strategy"] != "LINEAR" {
		t.Errorf("pick_strategy = %v, want LINEAR", settings["pick_strategy"])
	}

	result, ok := decoded["result"].(map[string]any)
	if !ok {
		t.Fatal("result is not an object")
	}
	for _, key := range []string{"start_time_ms", "end_time_ms", "expected_crashes", "reported_crashes"} {
		if _, ok := result[key]; !ok {
			t.Errorf("report result missing key %q", key)
		}
	}
}
