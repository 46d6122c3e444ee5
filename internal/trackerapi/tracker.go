package trackerapi

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/andr35/DS2-Project/internal/detect"
	"github.com/andr35/DS2-Project/internal/schedule"
)

// BroadcastClient is the Tracker's outbound surface, implemented by
// *transport.TrackerClient in production and faked in tests so the
// sequencing logic below can be exercised without a real RPC server.
type BroadcastClient interface {
	SendStart(addr string, bundle detect.StartBundle) error
	SendStop(addr string) error
	SendShutdown(addr string) error
}

// Tracker is the Orchestrator actor of spec.md §4.4: it collects
// registrations up to N, then drives the generated experiment matrix to
// completion one experiment at a time, broadcasting Start/Stop and
// writing a report after each.
type Tracker struct {
	logger               *zap.Logger
	client               BroadcastClient
	sched                *schedule.Scheduler
	genCfg               GeneratorConfig
	interExperimentDelay time.Duration
	reportDir            string

	mu         sync.Mutex
	registered map[detect.NodeID]string
	order      []detect.NodeID
	ready      bool

	experiments []*Experiment
	active      *Experiment

	done chan struct{}
}

// NewTracker constructs a Tracker awaiting genCfg.N registrations.
func NewTracker(logger *zap.Logger, client BroadcastClient, sched *schedule.Scheduler, genCfg GeneratorConfig, interExperimentDelay time.Duration, reportDir string) *Tracker {
	return &Tracker{
		logger:               logger,
		client:               client,
		sched:                sched,
		genCfg:               genCfg,
		interExperimentDelay: interExperimentDelay,
		reportDir:            reportDir,
		registered:           make(map[detect.NodeID]string),
		done:                 make(chan struct{}),
	}
}

// Done closes once the last experiment has been stopped and reported.
func (t *Tracker) Done() <-chan struct{} { return t.done }

// Register handles one node's Registration RPC. Registrations received
// after the Tracker has gone Ready, or past the expected count, are
// ignored rather than rejected with an error (spec.md §4.4): a late or
// duplicate registration is a harmless no-op, not a protocol fault.
func (t *Tracker) Register(node detect.NodeID, addr string) {
	t.mu.Lock()

	if t.ready {
		t.mu.Unlock()
		t.logger.Warn("registration received after tracker is ready; ignoring", zap.String("node", string(node)))
		return
	}
	if _, exists := t.registered[node]; exists {
		t.mu.Unlock()
		return
	}
	if len(t.registered) >= t.genCfg.N {
		t.mu.Unlock()
		t.logger.Warn("registration overflow; ignoring", zap.String("node", string(node)))
		return
	}

	t.registered[node] = addr
	t.order = append(t.order, node)
	count := len(t.registered)
	becameReady := count == t.genCfg.N
	if becameReady {
		t.ready = true
	}
	t.mu.Unlock()

	t.logger.Info("node registered", zap.String("node", string(node)), zap.Int("count", count), zap.Int("expected", t.genCfg.N))

	if becameReady {
		go t.beginExperiments()
	}
}

func (t *Tracker) beginExperiments() {
	t.mu.Lock()
	nodes := append([]detect.NodeID(nil), t.order...)
	t.mu.Unlock()

	experiments := GenerateExperiments(t.genCfg, nodes)

	t.mu.Lock()
	t.experiments = experiments
	t.mu.Unlock()

	t.logger.Info("experiment matrix generated, starting run", zap.Int("count", len(experiments)))
	t.startExperiment(0)
}

func (t *Tracker) snapshotAddrs() map[detect.NodeID]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	addrs := make(map[detect.NodeID]string, len(t.registered))
	for n, a := range t.registered {
		addrs[n] = a
	}
	return addrs
}

func (t *Tracker) startExperiment(i int) {
	t.mu.Lock()
	if i >= len(t.experiments) {
		t.mu.Unlock()
		return
	}
	exp := t.experiments[i]
	t.active = exp
	t.mu.Unlock()

	addrs := t.snapshotAddrs()
	nodeList := make([]detect.NodeID, 0, len(addrs))
	for n := range addrs {
		nodeList = append(nodeList, n)
	}
	sort.Slice(nodeList, func(a, b int) bool { return nodeList[a] < nodeList[b] })

	crashAt := make(map[detect.NodeID]time.Duration, len(exp.ExpectedCrashes))
	for _, c := range exp.ExpectedCrashes {
		crashAt[c.Node] = time.Duration(c.DeltaMs) * time.Millisecond
	}

	var sendErrs error
	for _, node := range nodeList {
		bundle := detect.StartBundle{
			Nodes:            nodeList,
			Addrs:            addrs,
			GossipDelta:      time.Duration(exp.Settings.GossipDeltaMs) * time.Millisecond,
			FailureDelta:     time.Duration(exp.Settings.FailureDeltaMs) * time.Millisecond,
			MissDelta:        time.Duration(exp.Settings.MissDeltaMs) * time.Millisecond,
			PushPull:         exp.Settings.PushPull,
			Pick:             exp.Settings.Pick,
			EnableMulticast:  exp.Settings.Multicast,
			MulticastParam:   exp.Settings.MulticastA,
			MulticastMaxWait: time.Duration(exp.Settings.MulticastMaxWaitMs) * time.Millisecond,
		}
		if d, marked := crashAt[node]; marked {
			delta := d
			bundle.SimulateCrashAt = &delta
		}
		if err := t.client.SendStart(addrs[node], bundle); err != nil {
			sendErrs = multierr.Append(sendErrs, err)
		}
	}
	if sendErrs != nil {
		t.logger.Warn("some nodes failed to receive Start", zap.String("experiment", exp.ID), zap.Error(sendErrs))
	}

	exp.Start(time.Now())
	t.logger.Info("experiment started", zap.String("experiment", exp.ID), zap.Int("index", i))

	duration := time.Duration(exp.Settings.DurationMs) * time.Millisecond
	t.sched.After(duration, func() { t.stopExperiment(i) })
}

func (t *Tracker) stopExperiment(i int) {
	t.mu.Lock()
	exp := t.experiments[i]
	t.mu.Unlock()

	addrs := t.snapshotAddrs()

	var sendErrs error
	for _, addr := range addrs {
		if err := t.client.SendStop(addr); err != nil {
			sendErrs = multierr.Append(sendErrs, err)
		}
	}
	if sendErrs != nil {
		t.logger.Warn("some nodes failed to receive Stop", zap.String("experiment", exp.ID), zap.Error(sendErrs))
	}

	t.mu.Lock()
	t.active = nil
	t.mu.Unlock()

	exp.Stop(time.Now())
	t.logger.Info("experiment stopped", zap.String("experiment", exp.ID))

	report, err := exp.Report()
	if err != nil {
		t.logger.Error("lifecycle misuse building report; aborting tracker", zap.String("experiment", exp.ID), zap.Error(err))
		panic(err)
	}
	if err := WriteReport(t.reportDir, report); err != nil {
		t.logger.Error("failed to write experiment report, continuing with the next experiment", zap.String("experiment", exp.ID), zap.Error(err))
	}

	t.mu.Lock()
	isLast := i+1 >= len(t.experiments)
	t.mu.Unlock()

	if isLast {
		for _, addr := range addrs {
			if err := t.client.SendShutdown(addr); err != nil {
				t.logger.Warn("shutdown send failed", zap.String("addr", addr), zap.Error(err))
			}
		}
		t.logger.Info("all experiments complete, tracker finished")
		close(t.done)
		return
	}

	t.sched.After(t.interExperimentDelay, func() { t.startExperiment(i + 1) })
}

// CrashReport records one node's suspicion of peer's failure during the
// currently active experiment. Reports with no active experiment (a
// straggler from a just-stopped run) are logged and dropped.
func (t *Tracker) CrashReport(peer, reporter detect.NodeID) {
	t.mu.Lock()
	exp := t.active
	t.mu.Unlock()

	if exp == nil {
		t.logger.Warn("crash report received with no active experiment", zap.String("peer", string(peer)), zap.String("reporter", string(reporter)))
		return
	}
	exp.AddCrash(time.Now(), peer, reporter)
}

// Crash logs a node's informational self-crash notification.
func (t *Tracker) Crash(node detect.NodeID) {
	t.logger.Debug("node self-crash notification received", zap.String("node", string(node)))
}
