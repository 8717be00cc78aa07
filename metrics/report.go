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

package metrics

import (
	"fmt"
	"sort"
	"time"
)

const (
	healthyPrimaryScore    = 0.85
	acceptablePrimaryScore = 0.7
	driftLookback          = 24 * time.Hour
)

type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Report aggregates the current state of one tracked model.
// It is a pure read - generating a report mutates nothing.
type Report struct {
	Model          string              `json:"model"`
	Generated      time.Time           `json:"generated"`
	Current        map[string]float64  `json:"current"`
	Trend          string              `json:"trend"`
	TopFeatures    []FeatureImportance `json:"topFeatures,omitempty"`
	RecentDrift    []DriftEvent        `json:"recentDrift,omitempty"`
	HealthScore    int                 `json:"healthScore"`
	SampleCount    int                 `json:"sampleCount"`
	SnapshotsTaken int                 `json:"snapshotsTaken"`
}

// GenerateReport aggregates current metrics, trend direction versus
// the prior snapshot, top feature-importance entries, recent drift
// events and a derived 0-100 health score.
func (t *Tracker) GenerateReport(model string) (Report, error) {
	t.mu.RLock()
	hist := t.history[model]
	importance := t.featureImportance[model]
	t.mu.RUnlock()
	if len(hist) == 0 {
		return Report{}, fmt.Errorf("failed to generate report for %s: %w", model, ErrNoHistory)
	}
	curr := hist[len(hist)-1]
	report := Report{
		Model:          model,
		Generated:      time.Now(),
		Current:        curr.Values,
		Trend:          "stable",
		SampleCount:    curr.SampleCount,
		SnapshotsTaken: len(hist),
	}
	if len(hist) > 1 {
		prev := hist[len(hist)-2]
		switch {
		case curr.PrimaryScore() > prev.PrimaryScore()+0.01:
			report.Trend = "improving"
		case curr.PrimaryScore() < prev.PrimaryScore()-0.01:
			report.Trend = "degrading"
		}
	}
	report.TopFeatures = topFeatures(importance, 5)
	cutoff := time.Now().Add(-driftLookback)
	for _, ev := range t.DriftEvents(model) {
		if ev.Created.After(cutoff) {
			report.RecentDrift = append(report.RecentDrift, ev)
		}
	}
	report.HealthScore = healthScore(curr, report.RecentDrift)
	return report, nil
}

// healthScore starts at 100 and deducts for a sub-threshold primary
// score and for each recent drift event; the floor is 0.
func healthScore(curr Snapshot, recentDrift []DriftEvent) int {
	score := 100
	primary := curr.PrimaryScore()
	if primary < acceptablePrimaryScore {
		score -= 30

	} else if primary < healthyPrimaryScore {
		score -= 15
	}
	for _, ev := range recentDrift {
		if ev.Severity == "high" {
			score -= 15

		} else {
			score -= 5
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

func topFeatures(importance map[string]float64, limit int) []FeatureImportance {
	if len(importance) == 0 {
		return nil
	}
	ans := make([]FeatureImportance, 0, len(importance))
	for k, v := range importance {
		ans = append(ans, FeatureImportance{Feature: k, Importance: v})
	}
	sort.Slice(ans, func(i, j int) bool {
		return ans[i].Importance > ans[j].Importance
	})
	if len(ans) > limit {
		ans = ans[:limit]
	}
	return ans
}
