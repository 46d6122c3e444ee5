package detect

import (
	"math/rand"
	"sort"
)

// PeerSelector draws a gossip target from the CORRECT peer set under one
// of the distributions named by PickStrategy. Complexity is O(|CORRECT|).
type PeerSelector struct {
	rng *rand.Rand
}

// NewPeerSelector creates a selector backed by the given PRNG. Node-local
// randomness need not be deterministic across processes (spec.md §5).
func NewPeerSelector(rng *rand.Rand) *PeerSelector {
	return &PeerSelector{rng: rng}
}

// Pick returns a peer chosen under strategy, or ok=false if correct is
// empty.
func (s *PeerSelector) Pick(strategy PickStrategy, correct map[NodeID]*PeerInfo) (NodeID, bool) {
	if len(correct) == 0 {
		return "", false
	}
	switch strategy {
	case PickLinear:
		return s.pickWeighted(correct, func(q uint64) float64 { return float64(q) + 1 })
	case PickQuadratic:
		return s.pickWeighted(correct, func(q uint64) float64 { return float64(q*q) + 1 })
	case PickStrongest:
		return s.pickStrongest(correct)
	default:
		return s.pickUniform(correct)
	}
}

func (s *PeerSelector) pickUniform(correct map[NodeID]*PeerInfo) (NodeID, bool) {
	ids := sortedKeys(correct)
	return ids[s.rng.Intn(len(ids))], true
}

func (s *PeerSelector) pickWeighted(correct map[NodeID]*PeerInfo, weight func(uint64) float64) (NodeID, bool) {
	ids := sortedKeys(correct)
	weights := make([]float64, len(ids))
	total := 0.0
	for i, id := range ids {
		w := weight(correct[id].Quiescence)
		weights[i] = w
		total += w
	}

	r := s.rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r <= 0 {
			return ids[i], true
		}
	}
	return ids[len(ids)-1], true
}

// pickStrongest implements the historical "always pick among the argmax
// of quiescence" variant, ties broken uniformly among the argmax set.
func (s *PeerSelector) pickStrongest(correct map[NodeID]*PeerInfo) (NodeID, bool) {
	ids := sortedKeys(correct)
	var best []NodeID
	var bestQ uint64
	for _, id := range ids {
		q := correct[id].Quiescence
		switch {
		case len(best) == 0 || q > bestQ:
			best = []NodeID{id}
			bestQ = q
		case q == bestQ:
			best = append(best, id)
		}
	}
	return best[s.rng.Intn(len(best))], true
}

// sortedKeys gives weighted selection a stable iteration order so a
// seeded PRNG produces reproducible draws in tests; Go map iteration
// order by itself is not required to be, nor should be relied on, for
// this.
func sortedKeys(m map[NodeID]*PeerInfo) []NodeID {
	ids := make([]NodeID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
