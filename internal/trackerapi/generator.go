package trackerapi

import (
	"fmt"
	"math"
	"sort"

	"github.com/andr35/DS2-Project/internal/detect"
	"github.com/andr35/DS2-Project/internal/randutil"
)

// GeneratorConfig is the Tracker's environment-supplied knob set that
// drives the experiment matrix enumeration (spec.md §4.5, §6).
type GeneratorConfig struct {
	N                   int
	DurationMs          int64
	NumberOfExperiments int
	Repetitions         int
	InitialSeed         int64
	GossipDeltaMs       int64
	MinFailureRounds    int
	MaxFailureRounds    int
	MissDeltaRounds     int
}

var (
	catastropheValues = []bool{false, true}
	pushPullValues    = []bool{false, true}
	pickValues        = []detect.PickStrategy{detect.PickUniform, detect.PickLinear, detect.PickQuadratic, detect.PickStrongest}
	multicastValues   = []bool{false, true}
	multicastAValues  = []float64{1, 2}
	multicastWaitSecs = []int64{1, 2}
)

// GenerateExperiments enumerates the full Cartesian product of tuning
// parameters (spec.md §4.5) against the given registered node set,
// producing one Experiment per combination in a fixed, deterministic
// order. nodes must already hold every node that registered with the
// Tracker; its length determines N for the crash-set draw.
func GenerateExperiments(cfg GeneratorConfig, nodes []detect.NodeID) []*Experiment {
	var out []*Experiment
	idx := 0

	for seed := cfg.InitialSeed; seed < cfg.InitialSeed+int64(cfg.NumberOfExperiments); seed++ {
		for rep := 0; rep < cfg.Repetitions; rep++ {
			for _, catastrophe := range catastropheValues {
				for round := cfg.MaxFailureRounds; round >= cfg.MinFailureRounds; round -= 2 {
					for _, pushPull := range pushPullValues {
						for _, pick := range pickValues {
							for _, multicast := range multicastValues {
								if !multicast {
									out = append(out, buildExperiment(cfg, nodes, seed, rep, catastrophe, round, pushPull, pick, false, 0, 0, idx))
									idx++
									continue
								}
								for _, a := range multicastAValues {
									for _, wait := range multicastWaitSecs {
										out = append(out, buildExperiment(cfg, nodes, seed, rep, catastrophe, round, pushPull, pick, true, a, wait, idx))
										idx++
									}
								}
							}
						}
					}
				}
			}
		}
	}

	return out
}

// buildExperiment fixes one combination's crash schedule. The crash set
// is drawn by sorting nodes lexicographically, shuffling with a PRNG
// seeded deterministically from seed alone (spec.md: "select the crash
// set with a PRNG seeded by seed"), then taking the first ceil(2N/3)
// entries under catastrophe or the first 1 otherwise (spec.md §9:
// "range(0, crashes)" semantics, not independent draws). repetition is
// not folded into the seed: every repetition of the same seed must
// replay the identical crash schedule, since repetitions exist to
// measure protocol-timing variance under identical ground truth.
func buildExperiment(cfg GeneratorConfig, nodes []detect.NodeID, seed int64, repetition int, catastrophe bool, round int, pushPull bool, pick detect.PickStrategy, multicast bool, multicastA float64, multicastWaitSec int64, idx int) *Experiment {
	shuffled := append([]detect.NodeID(nil), nodes...)
	sort.Slice(shuffled, func(i, j int) bool { return shuffled[i] < shuffled[j] })

	rng := randutil.NewSeeded(seed)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	numCrashes := 1
	if catastrophe {
		numCrashes = int(math.Ceil(2 * float64(len(shuffled)) / 3))
	}
	if numCrashes > len(shuffled) {
		numCrashes = len(shuffled)
	}

	var crashTimeMs int64
	if cfg.DurationMs > 1 {
		crashTimeMs = int64(rng.NextInt(int(cfg.DurationMs / 2)))
	}

	expected := make([]ExpectedCrash, 0, numCrashes)
	for i := 0; i < numCrashes; i++ {
		expected = append(expected, ExpectedCrash{DeltaMs: crashTimeMs, Node: shuffled[i]})
	}

	settings := ExperimentSettings{
		Seed:               seed,
		Repetition:         repetition,
		Catastrophe:        catastrophe,
		DurationMs:         cfg.DurationMs,
		GossipDeltaMs:      cfg.GossipDeltaMs,
		FailureDeltaMs:     cfg.GossipDeltaMs * int64(round),
		MissDeltaMs:        cfg.GossipDeltaMs * int64(cfg.MissDeltaRounds),
		PushPull:           pushPull,
		Pick:               pick,
		Multicast:          multicast,
		MulticastA:         multicastA,
		MulticastMaxWaitMs: multicastWaitSec * 1000,
		NumberOfNodes:      len(nodes),
	}

	return NewExperiment(fmt.Sprintf("%06d", idx), settings, expected)
}
