package learning

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nerdcore/filecore/internal/scoring"
)

// clampAdjustment bounds a proposed delta to [-maxAdjustment, maxAdjustment]
// and the resulting field value to [0.01, 0.9] so no single component can
// collapse to zero or dominate the weighted sum.
func clampAdjustment(current, delta, maxAdjustment float64) float64 {
	if delta > maxAdjustment {
		delta = maxAdjustment
	}
	if delta < -maxAdjustment {
		delta = -maxAdjustment
	}
	next := current + delta
	if next < 0.01 {
		next = 0.01
	}
	if next > 0.9 {
		next = 0.9
	}
	return next
}

// applyProposal returns a new, re-normalized Weights with proposal.Field
// adjusted by proposal.Delta (clamped), the remaining fields scaled down
// proportionally so the vector still sums to 1.
func applyProposal(current scoring.Weights, proposal Proposal, maxAdjustment float64) (scoring.Weights, error) {
	fields := weightFields(current)
	oldValue, ok := fields[proposal.Field]
	if !ok {
		return current, fmt.Errorf("unknown weight field: %s", proposal.Field)
	}

	newValue := clampAdjustment(oldValue, proposal.Delta, maxAdjustment)
	remainder := 1 - newValue
	oldRemainder := 1 - oldValue

	next := current
	setWeightField(&next, proposal.Field, newValue)

	if oldRemainder > 0 {
		scale := remainder / oldRemainder
		for name, value := range fields {
			if name == proposal.Field {
				continue
			}
			setWeightField(&next, name, value*scale)
		}
	}

	return next, nil
}

func weightFields(w scoring.Weights) map[string]float64 {
	return map[string]float64{
		"historical":  w.Historical,
		"pattern":     w.Pattern,
		"context":     w.Context,
		"quality":     w.Quality,
		"feasibility": w.Feasibility,
		"user_trust":  w.UserTrust,
		"complexity":  w.Complexity,
	}
}

func setWeightField(w *scoring.Weights, name string, value float64) {
	switch name {
	case "historical":
		w.Historical = value
	case "pattern":
		w.Pattern = value
	case "context":
		w.Context = value
	case "quality":
		w.Quality = value
	case "feasibility":
		w.Feasibility = value
	case "user_trust":
		w.UserTrust = value
	case "complexity":
		w.Complexity = value
	}
}

// persistedWeights is the on-disk shape of weights.json.
type persistedWeights struct {
	Historical  float64 `json:"historical"`
	Pattern     float64 `json:"pattern"`
	Context     float64 `json:"context"`
	Quality     float64 `json:"quality"`
	Feasibility float64 `json:"feasibility"`
	UserTrust   float64 `json:"user_trust"`
	Complexity  float64 `json:"complexity"`
}

// SaveWeights atomically persists w to <dir>/weights.json.
func SaveWeights(dir string, w scoring.Weights) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create weights directory: %w", err)
	}
	data, err := json.MarshalIndent(persistedWeights{
		Historical: w.Historical, Pattern: w.Pattern, Context: w.Context,
		Quality: w.Quality, Feasibility: w.Feasibility, UserTrust: w.UserTrust, Complexity: w.Complexity,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}

	path := filepath.Join(dir, "weights.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp weights file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename weights file into place: %w", err)
	}
	return nil
}

// LoadWeights reads <dir>/weights.json, falling back to defaults if absent.
func LoadWeights(dir string) (scoring.Weights, error) {
	path := filepath.Join(dir, "weights.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return scoring.DefaultWeights(), nil
		}
		return scoring.Weights{}, fmt.Errorf("failed to read weights file: %w", err)
	}

	var p persistedWeights
	if err := json.Unmarshal(data, &p); err != nil {
		return scoring.Weights{}, fmt.Errorf("failed to parse weights file: %w", err)
	}
	return scoring.Weights{
		Historical: p.Historical, Pattern: p.Pattern, Context: p.Context,
		Quality: p.Quality, Feasibility: p.Feasibility, UserTrust: p.UserTrust, Complexity: p.Complexity,
	}, nil
}
