// Copyright 2025 The email-checker authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/timujinne/email-checker-sub004/feats"
)

const (
	// neutralBaseline substitutes any missing input signal - the
	// scorer degrades gracefully instead of failing.
	neutralBaseline = 0.5

	weightTolerance = 1e-6

	notablyHigh = 0.8
	notablyLow  = 0.3
)

// quality factor names
const (
	FactorDeliverability = "deliverability"
	FactorReputation     = "reputation"
	FactorEngagement     = "engagement"
	FactorHygiene        = "hygiene"
	FactorRisk           = "risk"
)

// ScoreResult is a multi-factor score for one entity. The total is
// on a 0-100 scale; per-factor sub-scores stay in [0, 1].
type ScoreResult struct {
	EntityID       string             `json:"entityId"`
	Total          float64            `json:"total"`
	Factors        map[string]float64 `json:"factors"`
	Tier           string             `json:"tier"`
	Reasons        []string           `json:"reasons,omitempty"`
	Recommendation string             `json:"recommendation"`
}

// QualityClassifier combines independent quality factors as a
// weighted sum followed by multiplicative bonuses. Weights must
// sum to 1 within tolerance.
type QualityClassifier struct {
	weights map[string]float64
}

func NewQualityClassifier(weights map[string]float64) (*QualityClassifier, error) {
	if len(weights) == 0 {
		weights = map[string]float64{
			FactorDeliverability: 0.3,
			FactorReputation:     0.25,
			FactorEngagement:     0.2,
			FactorHygiene:        0.15,
			FactorRisk:           0.1,
		}
	}
	if err := validateWeights(weights); err != nil {
		return nil, fmt.Errorf("failed to create quality classifier: %w", err)
	}
	return &QualityClassifier{weights: weights}, nil
}

func validateWeights(weights map[string]float64) error {
	var sum float64
	for factor, w := range weights {
		if w < 0 {
			return fmt.Errorf("negative weight for factor %s", factor)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("weights sum to %.6f, expected 1.0", sum)
	}
	return nil
}

// Weights returns a copy of the configured factor weights.
func (qc *QualityClassifier) Weights() map[string]float64 {
	cp := make(map[string]float64, len(qc.weights))
	for k, v := range qc.weights {
		cp[k] = v
	}
	return cp
}

// Signals carries the available input signal per factor, each in
// [0, 1]. A factor absent from the map falls back to the neutral
// baseline.
type Signals map[string]float64

// Score computes the weighted multi-factor quality score of one
// email address. The feature vector supplies the bonus conditions
// (business domain, no disposable hit).
func (qc *QualityClassifier) Score(entityID string, signals Signals, vec feats.Vector) ScoreResult {
	factors := make(map[string]float64, len(qc.weights))
	var weighted float64
	for factor, weight := range qc.weights {
		value, ok := signals[factor]
		if !ok {
			value = neutralBaseline
		}
		value = clamp01(value)
		factors[factor] = value
		weighted += weight * value
	}
	total := weighted * 100

	// bonuses multiply the weighted sum and may push it above it,
	// never below zero
	if v, _ := vec.Get("isFreeProvider"); v == 0 && len(vec.Values) > 0 {
		total *= 1.05
	}
	if v, _ := vec.Get("isDisposable"); v == 1 {
		total *= 0.5
	}
	total = math.Min(100, math.Max(0, total))

	result := ScoreResult{
		EntityID: entityID,
		Total:    total,
		Factors:  factors,
		Tier:     qualityTier(total),
		Reasons:  factorReasons(factors),
	}
	result.Recommendation = qualityRecommendation(result.Tier)
	return result
}

func qualityTier(total float64) string {
	switch {
	case total >= 90:
		return "excellent"
	case total >= 75:
		return "good"
	case total >= 60:
		return "fair"
	case total >= 40:
		return "poor"
	}
	return "invalid"
}

func qualityRecommendation(tier string) string {
	switch tier {
	case "excellent", "good":
		return "safe to send"
	case "fair":
		return "send with monitoring"
	case "poor":
		return "verify before sending"
	}
	return "do not send"
}

// factorReasons derives human-readable notes by checking each factor
// against its notably-high/low thresholds.
func factorReasons(factors map[string]float64) []string {
	names := make([]string, 0, len(factors))
	for name := range factors {
		names = append(names, name)
	}
	sort.Strings(names)
	var reasons []string
	for _, name := range names {
		v := factors[name]
		if v >= notablyHigh {
			reasons = append(reasons, fmt.Sprintf("strong %s signal (%.2f)", name, v))

		} else if v <= notablyLow {
			reasons = append(reasons, fmt.Sprintf("weak %s signal (%.2f)", name, v))
		}
	}
	return reasons
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
