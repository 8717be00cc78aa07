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

package registry

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/timujinne/email-checker-sub004/metrics"
)

// abTest partitions a model's traffic between two versions by a
// deterministic hash of the request fingerprint, so the same input
// always lands in the same arm.
type abTest struct {
	versionA   string
	versionB   string
	splitRatio float64

	servedA  int64
	servedB  int64
	correctA int64
	correctB int64
	totalA   int64
	totalB   int64
}

func (ab *abTest) pickArm(fingerprint string) string {
	h := fnv.New32a()
	h.Write([]byte(fingerprint))
	bucket := float64(h.Sum32()%1000) / 1000
	if bucket < ab.splitRatio {
		ab.servedA++
		return ab.versionA
	}
	ab.servedB++
	return ab.versionB
}

// ABOutcome is the durable record of a concluded A/B experiment.
type ABOutcome struct {
	Model     string    `json:"model"`
	VersionA  string    `json:"versionA"`
	VersionB  string    `json:"versionB"`
	Winner    string    `json:"winner"`
	AccuracyA float64   `json:"accuracyA"`
	AccuracyB float64   `json:"accuracyB"`
	Created   time.Time `json:"created"`
}

// ABOutcomeArchiver is an optional durable sink for concluded
// experiments. An archiving failure never fails the completion.
type ABOutcomeArchiver interface {
	InsertABOutcome(outcome ABOutcome) error
}

// ABTestStatus is the queryable state of a running test.
type ABTestStatus struct {
	Model      string  `json:"model"`
	VersionA   string  `json:"versionA"`
	VersionB   string  `json:"versionB"`
	SplitRatio float64 `json:"splitRatio"`
	ServedA    int64   `json:"servedA"`
	ServedB    int64   `json:"servedB"`
	AccuracyA  float64 `json:"accuracyA"`
	AccuracyB  float64 `json:"accuracyB"`
	OutcomesA  int64   `json:"outcomesA"`
	OutcomesB  int64   `json:"outcomesB"`
}

// SetupABTest partitions subsequent Predict calls for the model
// between two registered versions. splitRatio is the fraction of
// traffic routed to versionA and must lie in (0, 1).
func (r *Registry) SetupABTest(name, versionA, versionB string, splitRatio float64) error {
	if splitRatio <= 0 || splitRatio >= 1 {
		return fmt.Errorf("failed to set up A/B test for %s: split ratio must be in (0, 1)", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.models[name]
	if !ok {
		return fmt.Errorf("failed to set up A/B test for %s: %w", name, ErrModelNotFound)
	}
	for _, v := range []string{versionA, versionB} {
		if entry.findVersion(v) == nil {
			return fmt.Errorf("failed to set up A/B test for %s: version %s: %w",
				name, v, ErrVersionNotFound)
		}
	}
	entry.ab = &abTest{
		versionA:   versionA,
		versionB:   versionB,
		splitRatio: splitRatio,
	}
	return nil
}

// RecordABOutcome accumulates a correctness observation for one arm.
func (r *Registry) RecordABOutcome(name, version string, correct bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.models[name]
	if !ok {
		return fmt.Errorf("failed to record A/B outcome for %s: %w", name, ErrModelNotFound)
	}
	if entry.ab == nil {
		return fmt.Errorf("failed to record A/B outcome for %s: no running test", name)
	}
	switch version {
	case entry.ab.versionA:
		entry.ab.totalA++
		if correct {
			entry.ab.correctA++
		}
	case entry.ab.versionB:
		entry.ab.totalB++
		if correct {
			entry.ab.correctB++
		}
	default:
		return fmt.Errorf("failed to record A/B outcome for %s: version %s: %w",
			name, version, ErrVersionNotFound)
	}
	return nil
}

// ABTestStatus reports the running test's per-arm counters.
func (r *Registry) ABTestStatus(name string) (ABTestStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.models[name]
	if !ok {
		return ABTestStatus{}, fmt.Errorf("failed to get A/B status for %s: %w", name, ErrModelNotFound)
	}
	if entry.ab == nil {
		return ABTestStatus{}, fmt.Errorf("failed to get A/B status for %s: no running test", name)
	}
	ab := entry.ab
	status := ABTestStatus{
		Model:      name,
		VersionA:   ab.versionA,
		VersionB:   ab.versionB,
		SplitRatio: ab.splitRatio,
		ServedA:    ab.servedA,
		ServedB:    ab.servedB,
		OutcomesA:  ab.totalA,
		OutcomesB:  ab.totalB,
	}
	if ab.totalA > 0 {
		status.AccuracyA = float64(ab.correctA) / float64(ab.totalA)
	}
	if ab.totalB > 0 {
		status.AccuracyB = float64(ab.correctB) / float64(ab.totalB)
	}
	return status, nil
}

// CompleteABTest stops the test, activates the better-scoring arm
// and emits an abComplete alert. The losing arm stays registered
// so a rollback remains possible.
func (r *Registry) CompleteABTest(name string) (ABTestStatus, error) {
	status, err := r.ABTestStatus(name)
	if err != nil {
		return ABTestStatus{}, err
	}
	winner := status.VersionA
	if status.AccuracyB > status.AccuracyA {
		winner = status.VersionB
	}
	r.mu.Lock()
	r.models[name].ab = nil
	r.mu.Unlock()
	if err := r.SwitchVersion(name, winner); err != nil {
		return status, err
	}
	if r.alerts != nil {
		r.alerts.Publish(metrics.Alert{
			Kind:     metrics.AlertABComplete,
			Model:    name,
			Severity: "info",
			Message: fmt.Sprintf(
				"A/B test for %s completed, winner %s (%.3f vs %.3f)",
				name, winner, status.AccuracyA, status.AccuracyB),
			Payload: map[string]any{
				"winner":    winner,
				"accuracyA": status.AccuracyA,
				"accuracyB": status.AccuracyB,
			},
		})
	}
	if r.abArchive != nil {
		err := r.abArchive.InsertABOutcome(ABOutcome{
			Model:     name,
			VersionA:  status.VersionA,
			VersionB:  status.VersionB,
			Winner:    winner,
			AccuracyA: status.AccuracyA,
			AccuracyB: status.AccuracyB,
			Created:   time.Now(),
		})
		if err != nil {
			log.Error().Err(err).Str("model", name).Msg("failed to archive A/B outcome")
		}
	}
	return status, nil
}
