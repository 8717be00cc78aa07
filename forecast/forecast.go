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

package forecast

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrInsufficientHistory = fmt.Errorf("insufficient history for forecasting")

// Algorithm is the closed set of forecasting techniques.
type Algorithm int

const (
	// AlgoAuto lets the forecaster pick based on series shape.
	AlgoAuto Algorithm = iota
	AlgoTrend
	AlgoExpSmoothing
	AlgoSeasonal
	AlgoEnsemble
)

func (a Algorithm) String() string {
	switch a {
	case AlgoAuto:
		return "auto"
	case AlgoTrend:
		return "trendExtrapolation"
	case AlgoExpSmoothing:
		return "exponentialSmoothing"
	case AlgoSeasonal:
		return "seasonalDecomposition"
	case AlgoEnsemble:
		return "ensemble"
	}
	return "unknown"
}

func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "", "auto":
		return AlgoAuto, nil
	case "trend", "trendExtrapolation":
		return AlgoTrend, nil
	case "expSmoothing", "exponentialSmoothing":
		return AlgoExpSmoothing, nil
	case "seasonal", "seasonalDecomposition":
		return AlgoSeasonal, nil
	case "ensemble":
		return AlgoEnsemble, nil
	}
	return 0, fmt.Errorf("unknown forecast algorithm: %s", name)
}

// smoothing constants of the level/trend state model
const (
	smoothingAlpha = 0.3
	smoothingBeta  = 0.1
)

// automatic selection cutoffs
const (
	strongSeasonalRatio = 0.5
	strongTrendRatio    = 0.3
)

// Step is one horizon step of a forecast with its confidence band.
// Components carries the per-technique values when the ensemble
// produced the step.
type Step struct {
	Forecast   float64            `json:"forecast"`
	Lower      float64            `json:"lower"`
	Upper      float64            `json:"upper"`
	Components map[string]float64 `json:"components,omitempty"`
}

// Result is a whole multi-step forecast for one entity. A later
// call for the same entity supersedes it.
type Result struct {
	EntityID  string    `json:"entityId"`
	Algorithm string    `json:"algorithm"`
	Steps     []Step    `json:"steps"`
	Generated time.Time `json:"generated"`
}

// Forecaster produces multi-step forecasts over per-entity series
// and retains the latest result per entity.
type Forecaster struct {
	mu         sync.RWMutex
	minHistory int
	confidence float64
	latest     map[string]Result
}

type ForecasterOptions struct {
	// MinHistory is the shortest series the forecaster accepts.
	// Zero means the default of 7 points.
	MinHistory int

	// Confidence is the interval level, one of 0.90, 0.95, 0.99.
	// Zero means 0.95.
	Confidence float64
}

func NewForecaster(opts ForecasterOptions) *Forecaster {
	if opts.MinHistory <= 0 {
		opts.MinHistory = 7
	}
	if opts.Confidence == 0 {
		opts.Confidence = 0.95
	}
	return &Forecaster{
		minHistory: opts.MinHistory,
		confidence: opts.Confidence,
		latest:     make(map[string]Result),
	}
}

// zScore maps the configured confidence level onto the normal
// quantile used for the interval half-width.
func zScore(confidence float64) float64 {
	switch {
	case confidence >= 0.99:
		return 2.576
	case confidence >= 0.95:
		return 1.96
	}
	return 1.645
}

// Forecast projects the series `horizon` steps ahead. History shorter
// than the configured minimum fails before any computation.
func (fc *Forecaster) Forecast(entityID string, series []Point, horizon int, algo Algorithm) (Result, error) {
	if len(series) < fc.minHistory {
		return Result{}, fmt.Errorf(
			"cannot forecast %s (%d points, need %d): %w",
			entityID, len(series), fc.minHistory, ErrInsufficientHistory)
	}
	if horizon < 1 {
		return Result{}, fmt.Errorf("cannot forecast %s: horizon must be positive", entityID)
	}

	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.Value
	}
	dec := decompose(values)
	if algo == AlgoAuto {
		algo = selectAlgorithm(values, dec)
	}

	var steps []Step
	switch algo {
	case AlgoTrend:
		steps = stepify(trendForecast(values, horizon))
	case AlgoExpSmoothing:
		steps = stepify(smoothingForecast(values, horizon))
	case AlgoSeasonal:
		steps = stepify(seasonalForecast(values, dec, horizon))
	case AlgoEnsemble:
		steps = ensembleForecast(values, dec, horizon)
	default:
		return Result{}, fmt.Errorf("cannot forecast %s: unsupported algorithm %d", entityID, algo)
	}

	halfWidth := dec.residualStddev() * zScore(fc.confidence)
	for i := range steps {
		steps[i].Lower = steps[i].Forecast - halfWidth
		steps[i].Upper = steps[i].Forecast + halfWidth
	}

	result := Result{
		EntityID:  entityID,
		Algorithm: algo.String(),
		Steps:     steps,
		Generated: time.Now(),
	}
	fc.mu.Lock()
	fc.latest[entityID] = result
	fc.mu.Unlock()
	log.Debug().
		Str("entity", entityID).
		Str("algorithm", algo.String()).
		Int("horizon", horizon).
		Msg("forecast generated")
	return result, nil
}

// Latest returns the most recent forecast for the entity, if any.
func (fc *Forecaster) Latest(entityID string) (Result, bool) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	result, ok := fc.latest[entityID]
	return result, ok
}

// selectAlgorithm prefers the seasonal technique when the weekly
// cycle explains a large share of the variance, trend extrapolation
// when the drift dominates, and smoothing otherwise.
func selectAlgorithm(values []float64, dec decomposition) Algorithm {
	stddev := seriesStddev(values)
	if stddev == 0 {
		return AlgoExpSmoothing
	}
	if dec.seasonalVariance() > strongSeasonalRatio*stddev*stddev {
		return AlgoSeasonal
	}
	totalDrift := drift(values) * float64(len(values)-1)
	if totalDrift < 0 {
		totalDrift = -totalDrift
	}
	if totalDrift > strongTrendRatio*stddev*float64(len(values)) {
		return AlgoTrend
	}
	return AlgoExpSmoothing
}

func stepify(forecasts []float64) []Step {
	steps := make([]Step, len(forecasts))
	for i, f := range forecasts {
		steps[i].Forecast = f
	}
	return steps
}

// trendForecast projects the mean first difference forward from the
// last observation.
func trendForecast(values []float64, horizon int) []float64 {
	d := drift(values)
	last := values[len(values)-1]
	out := make([]float64, horizon)
	for i := 0; i < horizon; i++ {
		out[i] = last + d*float64(i+1)
	}
	return out
}

// smoothingForecast runs a double-exponential level/trend state over
// the history and projects level + k*trend.
func smoothingForecast(values []float64, horizon int) []float64 {
	level := values[0]
	trendState := 0.0
	if len(values) > 1 {
		trendState = values[1] - values[0]
	}
	for i := 1; i < len(values); i++ {
		prevLevel := level
		level = smoothingAlpha*values[i] + (1-smoothingAlpha)*(level+trendState)
		trendState = smoothingBeta*(level-prevLevel) + (1-smoothingBeta)*trendState
	}
	out := make([]float64, horizon)
	for i := 0; i < horizon; i++ {
		out[i] = level + trendState*float64(i+1)
	}
	return out
}

// seasonalForecast projects the trend component linearly and
// re-applies the weekly offsets cyclically.
func seasonalForecast(values []float64, dec decomposition, horizon int) []float64 {
	n := len(values)
	lastTrend := dec.trend[n-1]
	trendSlope := 0.0
	if n > 1 {
		trendSlope = (dec.trend[n-1] - dec.trend[0]) / float64(n-1)
	}
	out := make([]float64, horizon)
	for i := 0; i < horizon; i++ {
		seasonIdx := (n + i) % seasonLength
		out[i] = lastTrend + trendSlope*float64(i+1) + dec.seasonal[seasonIdx]
	}
	return out
}

func ensembleForecast(values []float64, dec decomposition, horizon int) []Step {
	trendF := trendForecast(values, horizon)
	smoothF := smoothingForecast(values, horizon)
	seasonF := seasonalForecast(values, dec, horizon)
	steps := make([]Step, horizon)
	for i := 0; i < horizon; i++ {
		steps[i] = Step{
			Forecast: (trendF[i] + smoothF[i] + seasonF[i]) / 3,
			Components: map[string]float64{
				"trendExtrapolation":    trendF[i],
				"exponentialSmoothing":  smoothF[i],
				"seasonalDecomposition": seasonF[i],
			},
		}
	}
	return steps
}
