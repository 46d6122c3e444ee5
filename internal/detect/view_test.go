package detect

import (
	"testing"

	"github.com/andr35/DS2-Project/internal/schedule"
)

func newTestView() *HeartbeatView {
	v := NewHeartbeatView("n0")
	v.Init([]NodeID{"n0", "n1", "n2", "n3"})
	return v
}

func TestInitCreatesCorrectPeersExcludingSelf(t *testing.T) {
	v := newTestView()

	if _, ok := v.Get("n0"); ok {
		t.Fatal("view should not hold a PeerInfo entry for the owner itself")
	}
	for _, id := range []NodeID{"n1", "n2", "n3"} {
		pi, ok := v.Get(id)
		if !ok {
			t.Fatalf("expected peer %s in view", id)
		}
		if pi.Status != StatusCorrect {
			t.Fatalf("peer %s should start CORRECT, got %s", id, pi.Status)
		}
	}
}

func TestStatusSetsPairwiseDisjoint(t *testing.T) {
	v := newTestView()
	v.SetMissing("n1")
	v.SetFailed("n2")

	correct := v.Correct()
	correctOrMissing := v.CorrectOrMissing()

	if _, ok := correct["n1"]; ok {
		t.Fatal("MISSING peer must not appear in Correct()")
	}
	if _, ok := correct["n2"]; ok {
		t.Fatal("FAILED peer must not appear in Correct()")
	}
	if _, ok := correctOrMissing["n2"]; ok {
		t.Fatal("FAILED peer must not appear in CorrectOrMissing()")
	}
	if _, ok := correctOrMissing["n1"]; !ok {
		t.Fatal("MISSING peer must appear in CorrectOrMissing()")
	}
	if _, ok := correct["n3"]; !ok {
		t.Fatal("untouched peer should remain CORRECT")
	}
}

func TestCurrentBeatsIncludesSelfAndExcludesFailed(t *testing.T) {
	v := newTestView()
	v.Beat()
	v.Beat()
	v.SetBeat("n1", 5)
	v.SetFailed("n2")

	beats := v.CurrentBeats()
	if beats["n0"] != 2 {
		t.Fatalf("expected self beat 2, got %d", beats["n0"])
	}
	if beats["n1"] != 5 {
		t.Fatalf("expected n1 beat 5, got %d", beats["n1"])
	}
	if _, ok := beats["n2"]; ok {
		t.Fatal("FAILED peer must be excluded from CurrentBeats")
	}
}

func TestRemoveErasesEntry(t *testing.T) {
	v := newTestView()
	v.SetFailed("n1")
	v.Remove("n1")

	if _, ok := v.Get("n1"); ok {
		t.Fatal("removed peer should no longer be present")
	}
}

func TestUnsetMissingOnlyAffectsMissingPeers(t *testing.T) {
	v := newTestView()
	v.UnsetMissing("n3") // n3 is CORRECT, this must be a no-op
	pi, _ := v.Get("n3")
	if pi.Status != StatusCorrect {
		t.Fatal("UnsetMissing must not change a CORRECT peer")
	}

	v.SetMissing("n3")
	v.UnsetMissing("n3")
	pi, _ = v.Get("n3")
	if pi.Status != StatusCorrect {
		t.Fatal("UnsetMissing should transition MISSING back to CORRECT")
	}
}

func TestCancelAllTimersClearsHandles(t *testing.T) {
	v := newTestView()
	sched := schedule.New()
	defer sched.Stop()

	pi, _ := v.Get("n1")
	pi.HasTimer = true
	pi.TimeoutHandle = sched.After(0, func() {})

	v.CancelAllTimers(sched)

	pi, _ = v.Get("n1")
	if pi.HasTimer {
		t.Fatal("CancelAllTimers should clear HasTimer")
	}
}
