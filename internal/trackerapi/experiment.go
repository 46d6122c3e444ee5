// Package trackerapi implements the Tracker Orchestrator, the Experiment
// Generator and the Reporter (spec.md §4.4-§4.6): registration,
// sequencing experiments, crash injection, and JSON reporting.
package trackerapi

import (
	"fmt"
	"sync"
	"time"

	"github.com/andr35/DS2-Project/internal/detect"
)

// ExperimentSettings is the immutable tuning-parameter tuple fixed at
// generation time (spec.md §3).
type ExperimentSettings struct {
	Seed               int64
	Repetition         int
	Catastrophe        bool
	DurationMs         int64
	GossipDeltaMs      int64
	FailureDeltaMs     int64
	MissDeltaMs        int64
	PushPull           bool
	Pick               detect.PickStrategy
	Multicast          bool
	MulticastA         float64
	MulticastMaxWaitMs int64
	NumberOfNodes      int
}

// ExpectedCrash is one entry of an experiment's fixed crash schedule.
type ExpectedCrash struct {
	DeltaMs int64
	Node    detect.NodeID
}

// ReportedCrash is one CrashReport received from a node while an
// experiment was active.
type ReportedCrash struct {
	DeltaMs  int64
	Node     detect.NodeID
	Reporter detect.NodeID
}

// Experiment is mutable exactly as spec.md §3 describes: created at
// generation, then Start, AddCrash (any number of times) and Stop are
// each legal only in that partial order — Start once, AddCrash only
// in [Start, Stop), Stop once, Report only after Stop.
type Experiment struct {
	ID              string
	Settings        ExperimentSettings
	ExpectedCrashes []ExpectedCrash

	mu        sync.Mutex
	started   bool
	stopped   bool
	startedAt time.Time
	stoppedAt time.Time
	reported  []ReportedCrash
}

// NewExperiment creates an experiment record at generation time.
func NewExperiment(id string, settings ExperimentSettings, expected []ExpectedCrash) *Experiment {
	return &Experiment{ID: id, Settings: settings, ExpectedCrashes: expected}
}

// Start marks the experiment as begun. Calling it twice is a lifecycle
// misuse (spec.md §7.6): it panics so the Tracker aborts rather than
// silently corrupting timing data.
func (e *Experiment) Start(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		panic("trackerapi: experiment.Start called twice for " + e.ID)
	}
	e.started = true
	e.startedAt = now
}

// AddCrash appends one reported crash. Legal only between Start and Stop;
// a crash observed after Stop has already landed is dropped rather than
// panicking, since it is a benign race between a straggling RPC and the
// Tracker's own stop timer, not a caller misuse.
func (e *Experiment) AddCrash(now time.Time, node, reporter detect.NodeID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started || e.stopped {
		return
	}
	e.reported = append(e.reported, ReportedCrash{
		DeltaMs:  now.Sub(e.startedAt).Milliseconds(),
		Node:     node,
		Reporter: reporter,
	})
}

// Stop marks the experiment as ended. Calling it before Start, or twice,
// is a lifecycle misuse.
func (e *Experiment) Stop(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		panic("trackerapi: experiment.Stop called before Start for " + e.ID)
	}
	if e.stopped {
		panic("trackerapi: experiment.Stop called twice for " + e.ID)
	}
	e.stopped = true
	e.stoppedAt = now
}

// Report builds the JSON-serializable document for this experiment.
// Requires Stop to have already been called.
func (e *Experiment) Report() (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.stopped {
		return Report{}, fmt.Errorf("trackerapi: generateReport for %s requires stop() to have been called", e.ID)
	}

	expected := make([]ExpectedCrashJSON, len(e.ExpectedCrashes))
	for i, c := range e.ExpectedCrashes {
		expected[i] = ExpectedCrashJSON{Delta: c.DeltaMs, Node: string(c.Node)}
	}

	reported := make([]ReportedCrashJSON, len(e.reported))
	for i, c := range e.reported {
		reported[i] = ReportedCrashJSON{Delta: c.DeltaMs, Node: string(c.Node), Reporter: string(c.Reporter)}
	}

	return Report{
		ID:         e.ID,
		Seed:       e.Settings.Seed,
		Repetition: e.Settings.Repetition,
		Settings: ReportSettings{
			GossipDeltaMs:      e.Settings.GossipDeltaMs,
			FailureDeltaMs:     e.Settings.FailureDeltaMs,
			MissDeltaMs:        e.Settings.MissDeltaMs,
			PushPull:           e.Settings.PushPull,
			PickStrategy:       pickStrategyName(e.Settings.Pick),
			Multicast:          e.Settings.Multicast,
			MulticastA:         e.Settings.MulticastA,
			MulticastMaxWaitMs: e.Settings.MulticastMaxWaitMs,
			Catastrophe:        e.Settings.Catastrophe,
			DurationMs:         e.Settings.DurationMs,
			NumberOfNodes:      e.Settings.NumberOfNodes,
		},
		Result: ReportResult{
			StartTimeMs:     e.startedAt.UnixMilli(),
			EndTimeMs:       e.stoppedAt.UnixMilli(),
			ExpectedCrashes: expected,
			ReportedCrashes: reported,
		},
	}, nil
}

func pickStrategyName(p detect.PickStrategy) string {
	switch p {
	case detect.PickLinear:
		return "LINEAR"
	case detect.PickQuadratic:
		return "QUADRATIC"
	case detect.PickStrongest:
		return "STRONGEST"
	default:
		return "UNIFORM"
	}
}
