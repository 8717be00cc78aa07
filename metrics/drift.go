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
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DriftEvent records a detected distribution shift between two
// snapshots' underlying prediction samples.
type DriftEvent struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	Statistic float64   `json:"statistic"`
	Severity  string    `json:"severity"`
	Created   time.Time `json:"created"`
}

// KSStatistic computes the two-sample Kolmogorov-Smirnov statistic:
// the maximum gap between the two empirical cumulative distributions.
func KSStatistic(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	sa := append([]float64{}, a...)
	sb := append([]float64{}, b...)
	sort.Float64s(sa)
	sort.Float64s(sb)
	var i, j int
	var maxGap float64
	for i < len(sa) && j < len(sb) {
		switch {
		case sa[i] < sb[j]:
			i++
		case sb[j] < sa[i]:
			j++
		default:
			// a value shared by both samples moves both empirical
			// CDFs at once; the gap is only meaningful after every
			// duplicate of it has been consumed on both sides
			v := sa[i]
			for i < len(sa) && sa[i] == v {
				i++
			}
			for j < len(sb) && sb[j] == v {
				j++
			}
		}
		gap := math.Abs(float64(i)/float64(len(sa)) - float64(j)/float64(len(sb)))
		maxGap = math.Max(maxGap, gap)
	}
	return maxGap
}

// DetectDrift runs the KS test between the prior and current
// prediction distributions. A statistic above the medium threshold
// (default 0.1) records a DriftEvent; above the high threshold
// (default 0.3) the event is high severity. Drift is a monitoring
// signal - the returned event is nil when no drift was found and
// never accompanied by an error.
func (t *Tracker) DetectDrift(model string, previous, current []float64) *DriftEvent {
	stat := KSStatistic(previous, current)
	if stat < t.driftMediumThreshold {
		return nil
	}
	severity := "medium"
	if stat >= t.driftHighThreshold {
		severity = "high"
	}
	event := DriftEvent{
		ID:        uuid.New().String(),
		Model:     model,
		Statistic: stat,
		Severity:  severity,
		Created:   time.Now(),
	}
	t.mu.Lock()
	t.driftEvents = append(t.driftEvents, event)
	t.mu.Unlock()

	if t.alertingEnabled {
		t.alerts.Publish(Alert{
			Kind:     AlertDrift,
			Model:    model,
			Severity: severity,
			Message: fmt.Sprintf(
				"prediction distribution drift detected for %s (KS=%.3f)", model, stat),
			Payload: map[string]any{"statistic": stat},
		})
	}
	return &event
}

// DriftEvents returns recorded drift events, optionally filtered
// by model name (empty matches all).
func (t *Tracker) DriftEvents(model string) []DriftEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ans := make([]DriftEvent, 0, len(t.driftEvents))
	for _, ev := range t.driftEvents {
		if model == "" || ev.Model == model {
			ans = append(ans, ev)
		}
	}
	return ans
}

// PruneDriftEvents drops events older than maxAge and reports
// how many were removed.
func (t *Tracker) PruneDriftEvents(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.driftEvents[:0]
	for _, ev := range t.driftEvents {
		if ev.Created.After(cutoff) {
			kept = append(kept, ev)
		}
	}
	removed := len(t.driftEvents) - len(kept)
	t.driftEvents = kept
	return removed
}
