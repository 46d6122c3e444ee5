package trackerapi

import (
	"testing"
	"time"

	"github.com/andr35/DS2-Project/internal/detect"
)

func TestExperimentLifecycleAccumulatesCrashesWithRelativeDeltas(t *testing.T) {
	exp := NewExperiment("000001", ExperimentSettings{NumberOfNodes: 3}, nil)

	t0 := time.Unix(1000, 0)
	exp.Start(t0)
	exp.AddCrash(t0.Add(50*time.Millisecond), "b", "a")
	exp.AddCrash(t0.Add(120*time.Millisecond), "c", "a")
	exp.Stop(t0.Add(200 * time.Millisecond))

	report, err := exp.Report()
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(report.Result.ReportedCrashes) != 2 {
		t.Fatalf("expected 2 reported crashes, got %d", len(report.Result.ReportedCrashes))
	}
	if report.Result.ReportedCrashes[0].Delta != 50 {
		t.Fatalf("first crash delta = %d, want 50", report.Result.ReportedCrashes[0].Delta)
	}
	if report.Result.ReportedCrashes[1].Delta != 120 {
		t.Fatalf("second crash delta = %d, want 120", report.Result.ReportedCrashes[1].Delta)
	}
}

func TestExperimentReportBeforeStopIsAnError(t *testing.T) {
	exp := NewExperiment("000002", ExperimentSettings{}, nil)
	exp.Start(time.Now())
	if _, err := exp.Report(); err == nil {
		t.Fatal("expected an error building a report before stop()")
	}
}

func TestExperimentStartTwicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Start called twice to panic")
		}
	}()
	exp := NewExperiment("000003", ExperimentSettings{}, nil)
	exp.Start(time.Now())
	exp.Start(time.Now())
}

func TestExperimentAddCrashAfterStopIsDroppedNotPanicking(t *testing.T) {
	exp := NewExperiment("000004", ExperimentSettings{}, nil)
	now := time.Now()
	exp.Start(now)
	exp.Stop(now.Add(time.Second))

	exp.AddCrash(now.Add(2*time.Second), detect.NodeID("x"), detect.NodeID("y"))

	report, err := exp.Report()
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(report.Result.ReportedCrashes) != 0 {
		t.Fatalf("expected a post-stop crash report to be dropped, got %d", len(report.Result.ReportedCrashes))
	}
}
