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

package anomaly

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/timujinne/email-checker-sub004/feats"
)

// Algorithm is the closed set of detection algorithms. Keeping it an
// enum gives the dispatch switch compile-time exhaustiveness instead
// of a runtime fallback on an unknown string.
type Algorithm int

const (
	AlgoIsolationForest Algorithm = iota
	AlgoLOF
	AlgoZScore
)

func (a Algorithm) String() string {
	switch a {
	case AlgoIsolationForest:
		return "isolationForest"
	case AlgoLOF:
		return "lof"
	case AlgoZScore:
		return "zscore"
	}
	return "unknown"
}

// ParseAlgorithm maps an external algorithm name onto the enum.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "isolationForest", "isolation-forest", "isolation":
		return AlgoIsolationForest, nil
	case "lof":
		return AlgoLOF, nil
	case "zscore", "z-score", "statistical":
		return AlgoZScore, nil
	}
	return 0, fmt.Errorf("unknown anomaly algorithm: %s", name)
}

// anomaly types
const (
	TypeStatistical = "statistical"
	TypeDisposable  = "disposableDomain"
	TypeSpamTrap    = "spamTrap"
	TypeBotPattern  = "botPattern"
	TypeNonASCII    = "nonAscii"
	TypeTypoSquat   = "typoSquat"
)

// Record is one flagged entity: its score, classification, severity
// tier and the textual reasons behind the flag.
type Record struct {
	EntityID   string   `json:"entityId"`
	Score      float64  `json:"score"`
	Confidence float64  `json:"confidence"`
	Type       string   `json:"type"`
	Severity   string   `json:"severity"`
	Reasons    []string `json:"reasons"`
}

// Report is the outcome of one detection run, sorted descending
// by score. It is not retained by the engine.
type Report struct {
	Algorithm string    `json:"algorithm"`
	Generated time.Time `json:"generated"`
	Evaluated int       `json:"evaluated"`
	Anomalies []Record  `json:"anomalies"`
}

// Engine runs one of three interchangeable detection algorithms plus
// an always-on set of pattern checks over a batch of feature vectors.
type Engine struct {
	// Sensitivity in [0, 1) sharpens the statistical detector:
	// the z threshold is 3*(1-sensitivity).
	Sensitivity float64

	// NumTrees and SampleSize parameterize the isolation ensemble.
	NumTrees   int
	SampleSize int

	// Neighbors is the k of the density-ratio detector.
	Neighbors int

	// FlagThreshold is the minimum score an entity needs to appear
	// in the report.
	FlagThreshold float64
}

func NewEngine() *Engine {
	return &Engine{
		Sensitivity:   0.5,
		NumTrees:      100,
		SampleSize:    256,
		Neighbors:     10,
		FlagThreshold: 0.5,
	}
}

// Detect scores every vector with the chosen algorithm, merges in
// the pattern-check results and returns the severity-ranked report.
// Scores are always clamped to [0, 1].
func (eng *Engine) Detect(vectors []feats.Vector, algo Algorithm) (Report, error) {
	report := Report{
		Algorithm: algo.String(),
		Generated: time.Now(),
		Evaluated: len(vectors),
	}
	if len(vectors) == 0 {
		return report, nil
	}
	names := featureNames(vectors)
	matrix := make([][]float64, len(vectors))
	for i, vec := range vectors {
		matrix[i] = vec.AsSlice(names)
	}

	var scores []float64
	reasons := make([][]string, len(vectors))
	switch algo {
	case AlgoIsolationForest:
		scores = eng.isolationScores(matrix)
	case AlgoLOF:
		scores = eng.lofScores(matrix)
	case AlgoZScore:
		scores = eng.zscoreScores(matrix, names, reasons)
	default:
		return Report{}, fmt.Errorf("failed to detect anomalies: unsupported algorithm %d", algo)
	}

	for i, vec := range vectors {
		rec := Record{
			EntityID:   vec.EntityID,
			Score:      clamp01(scores[i]),
			Confidence: clamp01(scores[i]),
			Type:       TypeStatistical,
			Reasons:    reasons[i],
		}
		// pattern checks run independently of the chosen algorithm
		// and can raise the score on their own; a pattern match always
		// names the record's type, since it carries the actual cause
		hits := checkPatterns(vec.EntityID)
		var topHit float64
		for _, hit := range hits {
			rec.Reasons = append(rec.Reasons, hit.reason)
			if hit.score > topHit {
				topHit = hit.score
				rec.Type = hit.anomalyType
			}
			if hit.score > rec.Score {
				rec.Score = hit.score
			}
		}
		rec.Score = clamp01(rec.Score)
		rec.Confidence = clamp01(rec.Score)
		if rec.Score < eng.FlagThreshold {
			continue
		}
		rec.Severity = severity(rec.Score)
		report.Anomalies = append(report.Anomalies, rec)
	}
	sort.SliceStable(report.Anomalies, func(i, j int) bool {
		return report.Anomalies[i].Score > report.Anomalies[j].Score
	})
	log.Debug().
		Str("algorithm", algo.String()).
		Int("evaluated", report.Evaluated).
		Int("flagged", len(report.Anomalies)).
		Msg("anomaly detection run finished")
	return report, nil
}

// severity tiers are fixed cutoffs over the [0, 1] score.
func severity(score float64) string {
	switch {
	case score >= 0.9:
		return "critical"
	case score >= 0.7:
		return "high"
	case score >= 0.5:
		return "medium"
	}
	return "low"
}

// featureNames derives the shared feature ordering from the union
// of all vectors in the batch.
func featureNames(vectors []feats.Vector) []string {
	seen := make(map[string]bool)
	for _, vec := range vectors {
		for name := range vec.Values {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
