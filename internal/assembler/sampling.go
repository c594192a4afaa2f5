package assembler

import (
	"hash/fnv"
	"math"
	"math/rand"
)

// hash64 is the FNV-1a hash every derived-randomness decision goes through,
// so a run is fully reproducible from its seed strings.
func hash64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// newRand returns a PRNG seeded from a derivation string.
func newRand(derivation string) *rand.Rand {
	return rand.New(rand.NewSource(int64(hash64(derivation))))
}

// softmaxWeights converts scores to sampling weights at the given
// temperature. The max score is subtracted first so large scores cannot
// overflow exp. Lower temperature sharpens preference for top scores.
func softmaxWeights(scores []float64, temperature float64) []float64 {
	if temperature <= 0 {
		temperature = 1
	}
	maxScore := math.Inf(-1)
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	weights := make([]float64, len(scores))
	for i, s := range scores {
		weights[i] = math.Exp((s - maxScore) / temperature)
	}
	return weights
}

// drawWeighted picks an index proportionally to weights, skipping entries
// whose weight has been zeroed. Returns -1 when nothing remains.
func drawWeighted(rng *rand.Rand, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return -1
	}
	target := rng.Float64() * total
	var acc float64
	for i, w := range weights {
		acc += w
		if target < acc {
			return i
		}
	}
	// Float accumulation can land a hair past the end.
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}
	return -1
}
