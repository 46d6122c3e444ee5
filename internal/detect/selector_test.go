package detect

import (
	"math"
	"math/rand"
	"testing"
)

func buildCorrectSet(quiescences map[NodeID]uint64) map[NodeID]*PeerInfo {
	out := map[NodeID]*PeerInfo{}
	for id, q := range quiescences {
		out[id] = &PeerInfo{Status: StatusCorrect, Quiescence: q}
	}
	return out
}

func TestPickReturnsFalseOnEmptySet(t *testing.T) {
	s := NewPeerSelector(rand.New(rand.NewSource(1)))
	if _, ok := s.Pick(PickUniform, map[NodeID]*PeerInfo{}); ok {
		t.Fatal("expected ok=false for empty CORRECT set")
	}
}

func TestUniformConvergesToEqualFrequency(t *testing.T) {
	s := NewPeerSelector(rand.New(rand.NewSource(42)))
	correct := buildCorrectSet(map[NodeID]uint64{"a": 0, "b": 0, "c": 0})

	const draws = 60000
	counts := map[NodeID]int{}
	for i := 0; i < draws; i++ {
		id, _ := s.Pick(PickUniform, correct)
		counts[id]++
	}

	for id, c := range counts {
		freq := float64(c) / float64(draws)
		if math.Abs(freq-1.0/3.0) > 0.02 {
			t.Fatalf("peer %s frequency %.4f too far from 1/3", id, freq)
		}
	}
}

func TestLinearWeightingConvergesToQuiescencePlusOne(t *testing.T) {
	s := NewPeerSelector(rand.New(rand.NewSource(7)))
	correct := buildCorrectSet(map[NodeID]uint64{"a": 0, "b": 4, "c": 9})

	total := 1.0 + 5.0 + 10.0
	want := map[NodeID]float64{"a": 1.0 / total, "b": 5.0 / total, "c": 10.0 / total}

	const draws = 120000
	counts := map[NodeID]int{}
	for i := 0; i < draws; i++ {
		id, _ := s.Pick(PickLinear, correct)
		counts[id]++
	}

	for id, w := range want {
		freq := float64(counts[id]) / float64(draws)
		if math.Abs(freq-w) > 0.02 {
			t.Fatalf("peer %s frequency %.4f too far from expected %.4f", id, freq, w)
		}
	}
}

func TestQuadraticWeightingConvergesToQuiescenceSquaredPlusOne(t *testing.T) {
	s := NewPeerSelector(rand.New(rand.NewSource(99)))
	correct := buildCorrectSet(map[NodeID]uint64{"a": 0, "b": 2, "c": 3})

	total := 1.0 + 5.0 + 10.0
	want := map[NodeID]float64{"a": 1.0 / total, "b": 5.0 / total, "c": 10.0 / total}

	const draws = 120000
	counts := map[NodeID]int{}
	for i := 0; i < draws; i++ {
		id, _ := s.Pick(PickQuadratic, correct)
		counts[id]++
	}

	for id, w := range want {
		freq := float64(counts[id]) / float64(draws)
		if math.Abs(freq-w) > 0.02 {
			t.Fatalf("peer %s frequency %.4f too far from expected %.4f", id, freq, w)
		}
	}
}

func TestStrongestPicksAmongArgmaxQuiescence(t *testing.T) {
	s := NewPeerSelector(rand.New(rand.NewSource(3)))
	correct := buildCorrectSet(map[NodeID]uint64{"a": 1, "b": 9, "c": 9})

	for i := 0; i < 200; i++ {
		id, ok := s.Pick(PickStrongest, correct)
		if !ok {
			t.Fatal("expected a pick")
		}
		if id != "b" && id != "c" {
			t.Fatalf("expected argmax peer b or c, got %s", id)
		}
	}
}
