package detect

import "github.com/andr35/DS2-Project/internal/schedule"

// PeerInfo is the per-(owner, peer) record spec.md §3 describes. The node
// actor owns every PeerInfo exclusively; nothing outside this package
// holds a reference to one.
type PeerInfo struct {
	BeatCount     uint64
	Quiescence    uint64
	Status        Status
	TimeoutToken  uint64
	TimeoutHandle schedule.Handle
	HasTimer      bool
}

// HeartbeatView is the per-node collection of PeerInfo records plus the
// owner's own heartbeat counter. CORRECT, MISSING and FAILED are encoded
// as the single Status field of each PeerInfo, so the three sets are
// pairwise disjoint by construction.
type HeartbeatView struct {
	self     NodeID
	selfBeat uint64
	peers    map[NodeID]*PeerInfo
}

// NewHeartbeatView creates an empty view for the given owner.
func NewHeartbeatView(self NodeID) *HeartbeatView {
	return &HeartbeatView{self: self, peers: map[NodeID]*PeerInfo{}}
}

// Init populates the view with every peer in the node list except the
// owner, all CORRECT, matching "PeerInfo is created on Start for every
// peer" (spec.md §3). The owner's own counter resets to 0.
func (v *HeartbeatView) Init(nodes []NodeID) {
	v.selfBeat = 0
	v.peers = make(map[NodeID]*PeerInfo, len(nodes))
	for _, n := range nodes {
		if n == v.self {
			continue
		}
		v.peers[n] = &PeerInfo{Status: StatusCorrect}
	}
}

// Get returns the PeerInfo for p, if still present.
func (v *HeartbeatView) Get(p NodeID) (*PeerInfo, bool) {
	pi, ok := v.peers[p]
	return pi, ok
}

// All returns the live peer map for iteration by the engine. It is not a
// copy: callers outside this package must never receive it.
func (v *HeartbeatView) All() map[NodeID]*PeerInfo {
	return v.peers
}

// Beat increments the owner's own heartbeat counter and returns the new
// value.
func (v *HeartbeatView) Beat() uint64 {
	v.selfBeat++
	return v.selfBeat
}

// SelfBeat returns the owner's current heartbeat counter without
// incrementing it.
func (v *HeartbeatView) SelfBeat() uint64 {
	return v.selfBeat
}

// SetBeat sets the highest observed counter for p.
func (v *HeartbeatView) SetBeat(p NodeID, val uint64) {
	if pi, ok := v.peers[p]; ok {
		pi.BeatCount = val
	}
}

// ResetQuiescence zeroes p's staleness score, e.g. when p is picked as a
// gossip target or its counter advances.
func (v *HeartbeatView) ResetQuiescence(p NodeID) {
	if pi, ok := v.peers[p]; ok {
		pi.Quiescence = 0
	}
}

// SetMissing transitions p from CORRECT to MISSING (catastrophe mode's
// intermediate state, entered on Fail expiry).
func (v *HeartbeatView) SetMissing(p NodeID) {
	if pi, ok := v.peers[p]; ok {
		pi.Status = StatusMissing
	}
}

// UnsetMissing transitions p back to CORRECT, e.g. when a merge observes
// a higher counter for a MISSING peer.
func (v *HeartbeatView) UnsetMissing(p NodeID) {
	if pi, ok := v.peers[p]; ok && pi.Status == StatusMissing {
		pi.Status = StatusCorrect
	}
}

// SetFailed transitions p to FAILED, excluding it from gossip targeting,
// heartbeat broadcast and peer selection until Cleanup removes it.
func (v *HeartbeatView) SetFailed(p NodeID) {
	if pi, ok := v.peers[p]; ok {
		pi.Status = StatusFailed
	}
}

// Remove erases p's entry entirely, the terminal Cleanup transition.
func (v *HeartbeatView) Remove(p NodeID) {
	delete(v.peers, p)
}

// Correct returns the CORRECT subset of peers, the candidate pool for
// gossip target selection.
func (v *HeartbeatView) Correct() map[NodeID]*PeerInfo {
	out := map[NodeID]*PeerInfo{}
	for id, pi := range v.peers {
		if pi.Status == StatusCorrect {
			out[id] = pi
		}
	}
	return out
}

// CorrectOrMissing returns the CORRECT∪MISSING subset, the set that
// receives gossiped heartbeats and catastrophe multicasts.
func (v *HeartbeatView) CorrectOrMissing() map[NodeID]*PeerInfo {
	out := map[NodeID]*PeerInfo{}
	for id, pi := range v.peers {
		if pi.Status == StatusCorrect || pi.Status == StatusMissing {
			out[id] = pi
		}
	}
	return out
}

// CurrentBeats returns the heartbeat map for CORRECT∪MISSING∪self, the
// payload carried on the wire by Gossip, GossipReply and the catastrophe
// messages.
func (v *HeartbeatView) CurrentBeats() Beats {
	out := make(Beats, len(v.peers)+1)
	for id, pi := range v.peers {
		if pi.Status == StatusCorrect || pi.Status == StatusMissing {
			out[id] = pi.BeatCount
		}
	}
	out[v.self] = v.selfBeat
	return out
}

// CancelAllTimers cancels every outstanding per-peer timer, used when the
// node transitions back to NOT_READY. It is an optimization: stale
// firings are also filtered out by the token check in the engine.
func (v *HeartbeatView) CancelAllTimers(sched *schedule.Scheduler) {
	for _, pi := range v.peers {
		if pi.HasTimer {
			sched.Cancel(pi.TimeoutHandle)
			pi.HasTimer = false
		}
	}
}
