package learning

import (
	"math"

	"github.com/nerdcore/filecore/internal/history"
)

// twoProportionZ computes the z statistic for the difference between two
// independent sample proportions (the standard two-proportion z-test).
func twoProportionZ(successA int, nA int, successB int, nB int) float64 {
	if nA == 0 || nB == 0 {
		return 0
	}
	pA := float64(successA) / float64(nA)
	pB := float64(successB) / float64(nB)
	pPooled := float64(successA+successB) / float64(nA+nB)
	se := math.Sqrt(pPooled * (1 - pPooled) * (1/float64(nA) + 1/float64(nB)))
	if se == 0 {
		return 0
	}
	return (pA - pB) / se
}

// evaluate splits held-out records by whether the proposal's field scored
// above or below the batch median in Analysis.Breakdown, and compares the
// outcome success rate of the two halves — the cheap observational proxy
// this package uses in place of a live A/B weight rollout.
func evaluate(proposal Proposal, records []history.Record, significanceZ float64, minSamples int) Experiment {
	type sample struct {
		score     float64
		succeeded bool
	}

	samples := make([]sample, 0, len(records))
	for _, rec := range records {
		if rec.Outcome == nil {
			continue
		}
		score, ok := rec.Analysis.Breakdown[proposal.Field]
		if !ok {
			continue
		}
		samples = append(samples, sample{score: score, succeeded: rec.Outcome.Succeeded})
	}

	exp := Experiment{Proposal: proposal, HeldOutSamples: len(samples)}
	if len(samples) < minSamples {
		return exp
	}

	median := medianScore(samples)

	var highSucceeded, highTotal, lowSucceeded, lowTotal int
	for _, s := range samples {
		if s.score >= median {
			highTotal++
			if s.succeeded {
				highSucceeded++
			}
		} else {
			lowTotal++
			if s.succeeded {
				lowSucceeded++
			}
		}
	}

	if highTotal == 0 || lowTotal == 0 {
		return exp
	}

	exp.TreatmentSuccess = float64(highSucceeded) / float64(highTotal)
	exp.ControlSuccess = float64(lowSucceeded) / float64(lowTotal)
	exp.ZScore = twoProportionZ(highSucceeded, highTotal, lowSucceeded, lowTotal)
	exp.Significant = math.Abs(exp.ZScore) >= significanceZ

	return exp
}

func medianScore(samples []struct {
	score     float64
	succeeded bool
}) float64 {
	scores := make([]float64, len(samples))
	for i, s := range samples {
		scores[i] = s.score
	}
	// insertion sort: held-out sample counts here are small (tens to low
	// hundreds), so an O(n^2) sort keeps this dependency-free.
	for i := 1; i < len(scores); i++ {
		for j := i; j > 0 && scores[j-1] > scores[j]; j-- {
			scores[j-1], scores[j] = scores[j], scores[j-1]
		}
	}
	if len(scores) == 0 {
		return 0
	}
	mid := len(scores) / 2
	if len(scores)%2 == 0 {
		return (scores[mid-1] + scores[mid]) / 2
	}
	return scores[mid]
}
