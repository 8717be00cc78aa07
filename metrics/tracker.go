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
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrShapeMismatch = errors.New("predictions and actuals differ in length")
	ErrNoHistory     = errors.New("no metric history for model")
)

type MetricType string

const (
	MetricClassification MetricType = "classification"
	MetricRegression     MetricType = "regression"

	dfltHistoryLimit         = 50
	dfltDegradationThreshold = 0.05
)

// Snapshot is one performance measurement of a model at a point
// in time. Samples keeps the raw prediction values of the measured
// batch so a later snapshot can be drift-tested against it.
type Snapshot struct {
	Model       string             `json:"model"`
	Type        MetricType         `json:"type"`
	Values      map[string]float64 `json:"values"`
	SampleCount int                `json:"sampleCount"`
	Created     time.Time          `json:"created"`
	Samples     []float64          `json:"-"`
}

// PrimaryScore is the single number degradation checks compare:
// accuracy for classifiers, R-squared for regressors.
func (s Snapshot) PrimaryScore() float64 {
	if s.Type == MetricClassification {
		return s.Values["accuracy"]
	}
	return s.Values["r2"]
}

// SnapshotArchiver is an optional durable sink for snapshots.
// The tracker's own contract does not change whether or not
// an archiver is attached.
type SnapshotArchiver interface {
	InsertSnapshot(s Snapshot) error
}

// Tracker records time-stamped performance snapshots per model,
// detects degradation and distributional drift, and derives health
// reports. Histories are bounded rings: the oldest snapshot drops
// once the configured limit is reached.
type Tracker struct {
	mu                   sync.RWMutex
	history              map[string][]Snapshot
	historyLimit         int
	degradationThreshold float64
	driftMediumThreshold float64
	driftHighThreshold   float64
	driftEvents          []DriftEvent
	featureImportance    map[string]map[string]float64
	alerts               *Notifier
	alertingEnabled      bool
	archive              SnapshotArchiver
}

type TrackerOptions struct {
	HistoryLimit         int
	DegradationThreshold float64
	DriftMediumThreshold float64
	DriftHighThreshold   float64
	Alerts               *Notifier
	Archive              SnapshotArchiver
}

func NewTracker(opts TrackerOptions) *Tracker {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = dfltHistoryLimit
	}
	if opts.DegradationThreshold <= 0 {
		opts.DegradationThreshold = dfltDegradationThreshold
	}
	if opts.DriftMediumThreshold <= 0 {
		opts.DriftMediumThreshold = 0.1
	}
	if opts.DriftHighThreshold <= 0 {
		opts.DriftHighThreshold = 0.3
	}
	return &Tracker{
		history:              make(map[string][]Snapshot),
		historyLimit:         opts.HistoryLimit,
		degradationThreshold: opts.DegradationThreshold,
		driftMediumThreshold: opts.DriftMediumThreshold,
		driftHighThreshold:   opts.DriftHighThreshold,
		featureImportance:    make(map[string]map[string]float64),
		alerts:               opts.Alerts,
		alertingEnabled:      opts.Alerts != nil,
	}
}

// AttachArchive plugs in a durable snapshot sink.
func (t *Tracker) AttachArchive(a SnapshotArchiver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.archive = a
}

// TrackClassification computes accuracy, precision, recall and F1
// over binary predictions (values >= 0.5 count as positive) and
// appends a snapshot to the model's history.
func (t *Tracker) TrackClassification(model string, predictions, actuals []float64) (Snapshot, error) {
	if len(predictions) != len(actuals) {
		return Snapshot{}, fmt.Errorf(
			"failed to track classification metrics for %s: %w", model, ErrShapeMismatch)
	}
	var tp, fp, tn, fn float64
	for i := range predictions {
		pred := predictions[i] >= 0.5
		actual := actuals[i] >= 0.5
		switch {
		case pred && actual:
			tp++
		case pred && !actual:
			fp++
		case !pred && !actual:
			tn++
		default:
			fn++
		}
	}
	values := map[string]float64{
		"accuracy":  safeDiv(tp+tn, tp+tn+fp+fn),
		"precision": safeDiv(tp, tp+fp),
		"recall":    safeDiv(tp, tp+fn),
	}
	values["f1"] = safeDiv(2*values["precision"]*values["recall"], values["precision"]+values["recall"])
	return t.append(Snapshot{
		Model:       model,
		Type:        MetricClassification,
		Values:      values,
		SampleCount: len(predictions),
		Created:     time.Now(),
		Samples:     append([]float64{}, predictions...),
	}), nil
}

// TrackRegression computes MSE, RMSE, MAE and R-squared and appends
// a snapshot to the model's history.
func (t *Tracker) TrackRegression(model string, predictions, actuals []float64) (Snapshot, error) {
	if len(predictions) != len(actuals) {
		return Snapshot{}, fmt.Errorf(
			"failed to track regression metrics for %s: %w", model, ErrShapeMismatch)
	}
	n := float64(len(predictions))
	var sse, sae, actualSum float64
	for i := range predictions {
		diff := predictions[i] - actuals[i]
		sse += diff * diff
		sae += math.Abs(diff)
		actualSum += actuals[i]
	}
	actualMean := safeDiv(actualSum, n)
	var sst float64
	for _, a := range actuals {
		sst += (a - actualMean) * (a - actualMean)
	}
	r2 := 0.0
	if sst > 0 {
		r2 = 1 - sse/sst
	}
	values := map[string]float64{
		"mse":  safeDiv(sse, n),
		"rmse": math.Sqrt(safeDiv(sse, n)),
		"mae":  safeDiv(sae, n),
		"r2":   r2,
	}
	return t.append(Snapshot{
		Model:       model,
		Type:        MetricRegression,
		Values:      values,
		SampleCount: len(predictions),
		Created:     time.Now(),
		Samples:     append([]float64{}, predictions...),
	}), nil
}

// append stores the snapshot, trims the ring, and runs the
// degradation and drift checks against the previous snapshot.
func (t *Tracker) append(snap Snapshot) Snapshot {
	t.mu.Lock()
	hist := t.history[snap.Model]
	var prev *Snapshot
	if len(hist) > 0 {
		prev = &hist[len(hist)-1]
	}
	hist = append(hist, snap)
	if len(hist) > t.historyLimit {
		hist = hist[len(hist)-t.historyLimit:]
	}
	t.history[snap.Model] = hist
	archive := t.archive
	t.mu.Unlock()

	if prev != nil {
		t.checkDegradation(*prev, snap)
		t.DetectDrift(snap.Model, prev.Samples, snap.Samples)
	}
	if archive != nil {
		if err := archive.InsertSnapshot(snap); err != nil {
			log.Error().Err(err).Str("model", snap.Model).Msg("failed to archive metric snapshot")
		}
	}
	return snap
}

// checkDegradation compares the two most recent snapshots' primary
// score; a drop beyond the threshold raises an advisory alert,
// never an error.
func (t *Tracker) checkDegradation(prev, curr Snapshot) {
	drop := prev.PrimaryScore() - curr.PrimaryScore()
	if drop <= t.degradationThreshold {
		return
	}
	log.Warn().
		Str("model", curr.Model).
		Float64("drop", drop).
		Msg("model performance degradation detected")
	if t.alertingEnabled {
		t.alerts.Publish(Alert{
			Kind:     AlertDegradation,
			Model:    curr.Model,
			Severity: "high",
			Message: fmt.Sprintf(
				"model %s primary score dropped by %.3f (%.3f -> %.3f)",
				curr.Model, drop, prev.PrimaryScore(), curr.PrimaryScore()),
			Payload: map[string]any{
				"previous": prev.PrimaryScore(),
				"current":  curr.PrimaryScore(),
			},
		})
	}
}

// History returns a copy of the model's snapshot history,
// oldest first.
func (t *Tracker) History(model string) []Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Snapshot{}, t.history[model]...)
}

// SetFeatureImportance attaches feature-importance weights used
// by GenerateReport.
func (t *Tracker) SetFeatureImportance(model string, importance map[string]float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make(map[string]float64, len(importance))
	for k, v := range importance {
		cp[k] = v
	}
	t.featureImportance[model] = cp
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
