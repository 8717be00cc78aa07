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
	"math"
	"time"
)

// Point is one observation of a tracked entity's series.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

const seasonLength = 7 // weekly cycle, one point per day

// decomposition splits a series into a centered-moving-average trend,
// per-weekday seasonal offsets and the residuals left after removing
// both.
type decomposition struct {
	trend     []float64
	seasonal  [seasonLength]float64
	residuals []float64
}

func decompose(values []float64) decomposition {
	n := len(values)
	dec := decomposition{trend: make([]float64, n)}

	window := seasonLength
	if window > n {
		window = n
	}
	half := window / 2
	for i := range values {
		lo := i - half
		hi := i + half
		if lo < 0 {
			lo = 0
		}
		if hi >= n {
			hi = n - 1
		}
		var sum float64
		for j := lo; j <= hi; j++ {
			sum += values[j]
		}
		dec.trend[i] = sum / float64(hi-lo+1)
	}

	if n >= seasonLength {
		var counts [seasonLength]int
		for i := range values {
			idx := i % seasonLength
			dec.seasonal[idx] += values[i] - dec.trend[i]
			counts[idx]++
		}
		for idx := range dec.seasonal {
			if counts[idx] > 0 {
				dec.seasonal[idx] /= float64(counts[idx])
			}
		}
	}

	dec.residuals = make([]float64, n)
	for i := range values {
		dec.residuals[i] = values[i] - dec.trend[i] - dec.seasonal[i%seasonLength]
	}
	return dec
}

// seasonalVariance measures how much of the series the weekly cycle
// explains; used by automatic algorithm selection.
func (dec decomposition) seasonalVariance() float64 {
	var sum float64
	for _, off := range dec.seasonal {
		sum += off * off
	}
	return sum / seasonLength
}

func (dec decomposition) residualStddev() float64 {
	if len(dec.residuals) == 0 {
		return 0
	}
	var sqSum float64
	for _, r := range dec.residuals {
		sqSum += r * r
	}
	return math.Sqrt(sqSum / float64(len(dec.residuals)))
}

// drift is the mean first difference of the series, the constant
// step the trend-extrapolation technique projects forward.
func drift(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(values); i++ {
		sum += values[i] - values[i-1]
	}
	return sum / float64(len(values)-1)
}

func seriesStddev(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)
	var sqSum float64
	for _, v := range values {
		d := v - mean
		sqSum += d * d
	}
	return math.Sqrt(sqSum / float64(n))
}
