package history

import (
	"path/filepath"
	"strings"

	"github.com/nerdcore/filecore/internal/parser"
)

// similarityThreshold is how close two batches' path/extension signatures
// must be (per Open Question #1's resolution: 0.5*variantExtMatch +
// 0.5*jaccard) before a historical record counts as "similar" for the
// veto and learning-loop evaluation.
const similarityThreshold = 0.5

// SimilarSuccessRate implements decision.HistoryVetoer: it looks at recent
// records whose operation-extension signature resembles ops and reports
// their outcome success rate.
func (s *Store) SimilarSuccessRate(ops []parser.OperationWithMetadata) (float64, bool) {
	target := extensionSignature(ops)
	if len(target) == 0 {
		return 0, false
	}

	recent, err := s.Recent(200)
	if err != nil || len(recent) == 0 {
		return 0, false
	}

	var succeeded, total int
	for _, rec := range recent {
		if rec.Outcome == nil {
			continue
		}
		candidate := extensionSignature(rec.Operations)
		if similarity(target, candidate) < similarityThreshold {
			continue
		}
		total++
		if rec.Outcome.Succeeded {
			succeeded++
		}
	}

	if total == 0 {
		return 0, false
	}
	return float64(succeeded) / float64(total), true
}

// extensionSignature reduces a batch to the set of file extensions and
// operation kinds it touches, the cheap feature set used for historical
// similarity matching.
func extensionSignature(ops []parser.OperationWithMetadata) map[string]bool {
	sig := make(map[string]bool)
	for _, op := range ops {
		ext := strings.ToLower(filepath.Ext(op.Operation.Path))
		if ext == "" {
			ext = "<noext>"
		}
		sig[ext] = true
		sig["kind:"+op.Operation.Kind.String()] = true
	}
	return sig
}

// similarity combines an exact-variant-match bonus with a Jaccard
// coefficient over the two signature sets.
func similarity(a, b map[string]bool) float64 {
	variantMatch := 0.0
	if sameKeys(a, b) {
		variantMatch = 1.0
	}
	return 0.5*variantMatch + 0.5*jaccard(a, b)
}

func sameKeys(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	intersection := 0
	union := make(map[string]bool)
	for k := range a {
		union[k] = true
		if b[k] {
			intersection++
		}
	}
	for k := range b {
		union[k] = true
	}
	if len(union) == 0 {
		return 0
	}
	return float64(intersection) / float64(len(union))
}
