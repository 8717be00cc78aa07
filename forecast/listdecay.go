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
	"math"
	"sort"
	"sync"
	"time"
)

// DecayForecast models a contact list's validation rate as a linear
// decay and predicts when it will cross the health threshold.
type DecayForecast struct {
	ListID          string     `json:"listId"`
	CurrentRate     float64    `json:"currentRate"`
	DailyDecay      float64    `json:"dailyDecay"`
	HealthThreshold float64    `json:"healthThreshold"`
	CrossingDate    *time.Time `json:"crossingDate,omitempty"`
	DaysRemaining   int        `json:"daysRemaining"`
	Revalidation    string     `json:"revalidation"`
	Generated       time.Time  `json:"generated"`
}

// DecayTracker fits list validation-rate series and keeps the latest
// forecast per list, superseding earlier ones.
type DecayTracker struct {
	mu              sync.RWMutex
	minHistory      int
	healthThreshold float64
	forecasts       map[string]DecayForecast
}

func NewDecayTracker(minHistory int, healthThreshold float64) *DecayTracker {
	if minHistory <= 0 {
		minHistory = 3
	}
	if healthThreshold <= 0 || healthThreshold >= 1 {
		healthThreshold = 0.8
	}
	return &DecayTracker{
		minHistory:      minHistory,
		healthThreshold: healthThreshold,
		forecasts:       make(map[string]DecayForecast),
	}
}

// Track fits a least-squares line through the (day, rate) points and
// derives the crossing date and revalidation recommendation.
func (dt *DecayTracker) Track(listID string, series []Point) (DecayForecast, error) {
	if len(series) < dt.minHistory {
		return DecayForecast{}, fmt.Errorf(
			"cannot track list %s (%d points, need %d): %w",
			listID, len(series), dt.minHistory, ErrInsufficientHistory)
	}

	origin := series[0].Time
	n := float64(len(series))
	var sumX, sumY, sumXY, sumXX float64
	for _, p := range series {
		x := p.Time.Sub(origin).Hours() / 24
		sumX += x
		sumY += p.Value
		sumXY += x * p.Value
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	var slope float64
	if denom != 0 {
		slope = (n*sumXY - sumX*sumY) / denom
	}
	// rounding noise in the normal equations must not turn a flat
	// series into an epsilon decay with a bogus crossing date
	if math.Abs(slope) < 1e-9 {
		slope = 0
	}
	intercept := (sumY - slope*sumX) / n

	lastDay := series[len(series)-1].Time.Sub(origin).Hours() / 24
	fc := DecayForecast{
		ListID:          listID,
		CurrentRate:     intercept + slope*lastDay,
		DailyDecay:      -slope,
		HealthThreshold: dt.healthThreshold,
		Generated:       time.Now(),
	}

	switch {
	case fc.CurrentRate <= dt.healthThreshold:
		fc.DaysRemaining = 0
		now := time.Now()
		fc.CrossingDate = &now
	case slope >= 0:
		// stable or improving, never crosses
		fc.DaysRemaining = math.MaxInt32
	default:
		daysToCross := (dt.healthThreshold - fc.CurrentRate) / slope
		fc.DaysRemaining = int(daysToCross)
		crossing := series[len(series)-1].Time.Add(time.Duration(daysToCross*24) * time.Hour)
		fc.CrossingDate = &crossing
	}
	fc.Revalidation = revalidationBucket(fc.DaysRemaining)

	dt.mu.Lock()
	dt.forecasts[listID] = fc
	dt.mu.Unlock()
	return fc, nil
}

// revalidationBucket maps days-until-unhealthy onto a discrete
// revalidation interval recommendation.
func revalidationBucket(daysRemaining int) string {
	switch {
	case daysRemaining <= 0:
		return "immediate"
	case daysRemaining <= 14:
		return "weekly"
	case daysRemaining <= 60:
		return "monthly"
	case daysRemaining <= 180:
		return "quarterly"
	}
	return "semiannual"
}

// Forecast returns the latest decay forecast for a list, if any.
func (dt *DecayTracker) Forecast(listID string) (DecayForecast, bool) {
	dt.mu.RLock()
	defer dt.mu.RUnlock()
	fc, ok := dt.forecasts[listID]
	return fc, ok
}

// GetCriticalLists returns every tracked list whose crossing is due
// within the given number of days, most urgent first.
func (dt *DecayTracker) GetCriticalLists(withinDays int) []DecayForecast {
	dt.mu.RLock()
	defer dt.mu.RUnlock()
	var out []DecayForecast
	for _, fc := range dt.forecasts {
		if fc.DaysRemaining <= withinDays {
			out = append(out, fc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DaysRemaining != out[j].DaysRemaining {
			return out[i].DaysRemaining < out[j].DaysRemaining
		}
		return out[i].ListID < out[j].ListID
	})
	return out
}
