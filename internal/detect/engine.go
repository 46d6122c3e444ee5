package detect

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/andr35/DS2-Project/internal/schedule"
)

// multicastReminderPeriod is the fixed cadence at which a node decides
// whether to fire a catastrophe multicast. Kept as a named constant per
// spec.md §9 rather than a magic literal scattered through the handler.
const multicastReminderPeriod = time.Second

type actorState int

const (
	stateNotReady actorState = iota
	stateReady
)

// Transport is everything the engine needs to talk to peers and the
// Tracker. internal/transport implements it over net/rpc.
type Transport interface {
	SendGossip(ctx context.Context, to NodeID, msg Gossip) error
	SendGossipReply(ctx context.Context, to NodeID, msg GossipReply) error
	SendCatastropheMulticast(ctx context.Context, to NodeID, msg CatastropheMulticast) error
	SendCatastropheReply(ctx context.Context, to NodeID, msg CatastropheReply) error
	ReportCrash(ctx context.Context, peer NodeID) error
	ReportSelfCrash(ctx context.Context) error
}

// Engine is the two-state actor described in spec.md §4.1: NOT_READY
// (initial, and after Stop/SelfCrash) and READY (during an active
// experiment). It processes its inbox serially; handlers never suspend.
type Engine struct {
	id        NodeID
	logger    *zap.Logger
	sched     *schedule.Scheduler
	transport Transport
	rng       *rand.Rand

	inbox chan any
	done  chan struct{}

	state actorState
	view  *HeartbeatView
	pick  *PeerSelector

	bundle        StartBundle
	cleanupDelay  time.Duration
	multicastWait time.Duration

	gossipHandle    schedule.Handle
	multicastHandle schedule.Handle
	selfCrashHandle schedule.Handle
}

// NewEngine creates a node actor in the NOT_READY state. Run must be
// called (typically in its own goroutine) to start processing the inbox.
func NewEngine(id NodeID, logger *zap.Logger, sched *schedule.Scheduler, transport Transport) *Engine {
	return &Engine{
		id:        id,
		logger:    logger,
		sched:     sched,
		transport: transport,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		inbox:     make(chan any, 64),
		done:      make(chan struct{}),
		pick:      NewPeerSelector(rand.New(rand.NewSource(time.Now().UnixNano()))),
	}
}

// Dispatch delivers msg to the actor's inbox. It is the only way external
// callers (the RPC receiver, the scheduler) interact with engine state.
func (e *Engine) Dispatch(msg any) {
	select {
	case e.inbox <- msg:
	case <-e.done:
	}
}

// Run processes the inbox until Shutdown is handled or the context is
// cancelled.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case msg := <-e.inbox:
			e.handle(msg)
		}
	}
}

// CurrentBeats exposes a read-only snapshot for diagnostics. Returns nil
// while NOT_READY.
func (e *Engine) CurrentBeats() Beats {
	if e.view == nil {
		return nil
	}
	return e.view.CurrentBeats()
}

func (e *Engine) handle(msg any) {
	switch m := msg.(type) {
	case Start:
		e.handleStart(m)
		return
	case Stop:
		e.handleStop()
		return
	case Shutdown:
		e.handleStop()
		close(e.done)
		return
	}

	if e.state != stateReady {
		e.logger.Debug("dropping message received while not ready",
			zap.String("node", string(e.id)), zap.String("type", fmt.Sprintf("%T", msg)))
		return
	}

	switch m := msg.(type) {
	case Gossip:
		e.handleGossip(m)
	case GossipReply:
		e.handleGossipReply(m)
	case CatastropheMulticast:
		e.handleCatastropheMulticast(m)
	case CatastropheReply:
		e.handleCatastropheReply(m)
	case gossipReminderMsg:
		e.handleGossipReminder()
	case multicastReminderMsg:
		e.handleMulticastReminder()
	case selfCrashMsg:
		e.handleSelfCrash()
	case failTimerMsg:
		e.handleFail(m)
	case missTimerMsg:
		e.handleMiss(m)
	case cleanupTimerMsg:
		e.handleCleanup(m)
	default:
		e.logger.Warn("unknown message kind dropped",
			zap.String("node", string(e.id)), zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (e *Engine) handleStart(m Start) {
	if e.state == stateReady {
		e.logger.Warn("start received while already ready; ignoring", zap.String("node", string(e.id)))
		return
	}

	e.state = stateReady
	e.bundle = m.Bundle
	e.view = NewHeartbeatView(e.id)
	e.view.Init(m.Bundle.Nodes)
	e.cleanupDelay = 2 * m.Bundle.FailureDelta
	e.multicastWait = 0

	for _, p := range m.Bundle.Nodes {
		if p == e.id {
			continue
		}
		e.armInitialFail(p)
	}

	if m.Bundle.SimulateCrashAt != nil {
		d := *m.Bundle.SimulateCrashAt
		e.selfCrashHandle = e.sched.After(d, func() { e.Dispatch(selfCrashMsg{}) })
	}

	e.gossipHandle = e.sched.After(m.Bundle.GossipDelta, func() { e.Dispatch(gossipReminderMsg{}) })

	if m.Bundle.EnableMulticast {
		e.multicastHandle = e.sched.After(multicastReminderPeriod, func() { e.Dispatch(multicastReminderMsg{}) })
	}

	e.logger.Info("node ready for experiment",
		zap.String("node", string(e.id)), zap.Int("peers", len(m.Bundle.Nodes)-1),
		zap.Duration("gossip_delta", m.Bundle.GossipDelta), zap.Duration("failure_delta", m.Bundle.FailureDelta))
}

func (e *Engine) handleStop() {
	if e.state != stateReady {
		return
	}
	e.sched.Cancel(e.gossipHandle)
	e.sched.Cancel(e.multicastHandle)
	e.sched.Cancel(e.selfCrashHandle)
	if e.view != nil {
		e.view.CancelAllTimers(e.sched)
	}
	e.view = nil
	e.state = stateNotReady
}

func (e *Engine) handleSelfCrash() {
	e.handleStop()
	if err := e.transport.ReportSelfCrash(context.Background()); err != nil {
		e.logger.Warn("failed to notify tracker of self-crash", zap.String("node", string(e.id)), zap.Error(err))
	}
}

// armInitialFail schedules the very first Fail timer for p at token 0,
// per spec.md §4.1 Start: "start a Fail timer for each peer at delay Δf
// with token t=0".
func (e *Engine) armInitialFail(p NodeID) {
	pi, ok := e.view.Get(p)
	if !ok {
		return
	}
	pi.TimeoutToken = 0
	pi.HasTimer = true
	token := pi.TimeoutToken
	pi.TimeoutHandle = e.sched.After(e.bundle.FailureDelta, func() { e.Dispatch(failTimerMsg{peer: p, token: token}) })
}

type timerKind int

const (
	timerFail timerKind = iota
	timerMiss
	timerCleanup
)

// rearm bumps p's timeout_token and schedules a fresh timer of kind at
// delay, cancelling any previous one first. Returns the new token.
func (e *Engine) rearm(p NodeID, kind timerKind, delay time.Duration) uint64 {
	pi, ok := e.view.Get(p)
	if !ok {
		return 0
	}
	if pi.HasTimer {
		e.sched.Cancel(pi.TimeoutHandle)
	}
	pi.TimeoutToken++
	token := pi.TimeoutToken
	pi.HasTimer = true

	switch kind {
	case timerFail:
		pi.TimeoutHandle = e.sched.After(delay, func() { e.Dispatch(failTimerMsg{peer: p, token: token}) })
	case timerMiss:
		pi.TimeoutHandle = e.sched.After(delay, func() { e.Dispatch(missTimerMsg{peer: p, token: token}) })
	case timerCleanup:
		pi.TimeoutHandle = e.sched.After(delay, func() { e.Dispatch(cleanupTimerMsg{peer: p, token: token}) })
	}
	return token
}

// merge applies an incoming heartbeat view, spec.md §4.1 merge(incoming).
func (e *Engine) merge(incoming Beats) {
	for p, pi := range e.view.All() {
		if pi.Status == StatusFailed {
			continue
		}
		val, ok := incoming[p]
		if !ok {
			continue
		}
		if val > pi.BeatCount {
			pi.BeatCount = val
			pi.Quiescence = 0
			if pi.Status == StatusMissing {
				e.view.UnsetMissing(p)
			}
			e.rearm(p, timerFail, e.bundle.FailureDelta)
		} else {
			pi.Quiescence++
		}
	}
}

func (e *Engine) handleGossipReminder() {
	e.view.Beat()

	target, ok := e.pick.Pick(e.bundle.Pick, e.view.Correct())
	if ok {
		msg := Gossip{From: e.id, Beats: e.view.CurrentBeats()}
		if err := e.transport.SendGossip(context.Background(), target, msg); err != nil {
			e.logger.Debug("gossip send failed", zap.String("node", string(e.id)), zap.String("target", string(target)), zap.Error(err))
		}
		e.view.ResetQuiescence(target)
	}

	e.gossipHandle = e.sched.After(e.bundle.GossipDelta, func() { e.Dispatch(gossipReminderMsg{}) })
}

func (e *Engine) handleGossip(m Gossip) {
	e.merge(m.Beats)
	if e.bundle.PushPull {
		reply := GossipReply{From: e.id, Beats: e.view.CurrentBeats()}
		if err := e.transport.SendGossipReply(context.Background(), m.From, reply); err != nil {
			e.logger.Debug("gossip reply failed", zap.String("node", string(e.id)), zap.String("target", string(m.From)), zap.Error(err))
		}
	}
}

func (e *Engine) handleGossipReply(m GossipReply) {
	e.merge(m.Beats)
}

func (e *Engine) handleMulticastReminder() {
	maxWait := e.bundle.MulticastMaxWait
	prob := 0.0
	if maxWait > 0 {
		ratio := float64(e.multicastWait) / float64(maxWait)
		if ratio > 1 {
			ratio = 1
		}
		prob = math.Pow(ratio, e.bundle.MulticastParam)
	}

	if e.rng.Float64() < prob {
		e.view.Beat()
		msg := CatastropheMulticast{From: e.id, Beats: e.view.CurrentBeats()}
		for p := range e.view.CorrectOrMissing() {
			if err := e.transport.SendCatastropheMulticast(context.Background(), p, msg); err != nil {
				e.logger.Debug("catastrophe multicast failed", zap.String("node", string(e.id)), zap.String("target", string(p)), zap.Error(err))
				continue
			}
			e.view.ResetQuiescence(p)
		}
		e.multicastWait = 0
	} else {
		e.multicastWait += multicastReminderPeriod
		if e.multicastWait > maxWait {
			e.multicastWait = maxWait
		}
	}

	e.multicastHandle = e.sched.After(multicastReminderPeriod, func() { e.Dispatch(multicastReminderMsg{}) })
}

func (e *Engine) handleCatastropheMulticast(m CatastropheMulticast) {
	e.merge(m.Beats)
	e.multicastWait = 0
	reply := CatastropheReply{From: e.id, Beats: e.view.CurrentBeats()}
	if err := e.transport.SendCatastropheReply(context.Background(), m.From, reply); err != nil {
		e.logger.Debug("catastrophe reply failed", zap.String("node", string(e.id)), zap.String("target", string(m.From)), zap.Error(err))
	}
}

func (e *Engine) handleCatastropheReply(m CatastropheReply) {
	e.merge(m.Beats)
}

func (e *Engine) handleFail(m failTimerMsg) {
	pi, ok := e.view.Get(m.peer)
	if !ok || pi.TimeoutToken != m.token {
		return
	}
	if e.bundle.EnableMulticast {
		e.view.SetMissing(m.peer)
		e.rearm(m.peer, timerMiss, e.bundle.MissDelta)
	} else {
		e.view.SetFailed(m.peer)
		e.reportCrash(m.peer)
		e.rearm(m.peer, timerCleanup, e.cleanupDelay)
	}
}

func (e *Engine) handleMiss(m missTimerMsg) {
	pi, ok := e.view.Get(m.peer)
	if !ok || pi.TimeoutToken != m.token {
		return
	}
	e.view.SetFailed(m.peer)
	e.reportCrash(m.peer)
	e.rearm(m.peer, timerCleanup, e.cleanupDelay)
}

func (e *Engine) handleCleanup(m cleanupTimerMsg) {
	pi, ok := e.view.Get(m.peer)
	if !ok || pi.TimeoutToken != m.token {
		return
	}
	e.view.Remove(m.peer)
}

func (e *Engine) reportCrash(peer NodeID) {
	e.logger.Info("peer suspected failed", zap.String("node", string(e.id)), zap.String("peer", string(peer)))
	if err := e.transport.ReportCrash(context.Background(), peer); err != nil {
		e.logger.Warn("failed to deliver crash report to tracker",
			zap.String("node", string(e.id)), zap.String("peer", string(peer)), zap.Error(err))
	}
}
