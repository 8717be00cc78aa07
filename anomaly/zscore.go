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
)

// zscoreScores flags records whose per-feature deviation from the
// batch mean exceeds a sensitivity-scaled threshold. Higher engine
// sensitivity lowers the cutoff, so more records get flagged.
func (eng *Engine) zscoreScores(matrix [][]float64, names []string, reasons [][]string) []float64 {
	n := len(matrix)
	scores := make([]float64, n)
	if n < 2 {
		return scores
	}

	threshold := 3 * (1 - eng.Sensitivity)
	if threshold < 0.5 {
		threshold = 0.5
	}

	numFeats := len(names)
	means := make([]float64, numFeats)
	stddevs := make([]float64, numFeats)
	for f := 0; f < numFeats; f++ {
		var sum float64
		for i := range matrix {
			sum += matrix[i][f]
		}
		means[f] = sum / float64(n)
		var sqSum float64
		for i := range matrix {
			d := matrix[i][f] - means[f]
			sqSum += d * d
		}
		stddevs[f] = math.Sqrt(sqSum / float64(n))
	}

	for i := range matrix {
		var maxZ float64
		for f := 0; f < numFeats; f++ {
			if stddevs[f] == 0 {
				continue
			}
			z := math.Abs(matrix[i][f]-means[f]) / stddevs[f]
			if z > threshold {
				reasons[i] = append(reasons[i], fmt.Sprintf(
					"feature %s deviates %.1f std devs from batch mean", names[f], z))
			}
			if z > maxZ {
				maxZ = z
			}
		}
		if maxZ > threshold {
			scores[i] = clamp01(maxZ / (2 * threshold))
		}
	}
	return scores
}
