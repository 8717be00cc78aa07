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

import "sort"

// The density-ratio detector is the naive LOF variant: exact
// all-pairs neighbor search, no spatial index. A point whose local
// reachability density is materially below its neighbors' average
// gets a ratio > 1 and maps onto a positive score.

type neighbor struct {
	index int
	dist  float64
}

func kNearest(matrix [][]float64, idx, k int) []neighbor {
	neighbors := make([]neighbor, 0, len(matrix)-1)
	for j := range matrix {
		if j == idx {
			continue
		}
		neighbors = append(neighbors, neighbor{index: j, dist: euclidean(matrix[idx], matrix[j])})
	}
	sort.Slice(neighbors, func(a, b int) bool {
		return neighbors[a].dist < neighbors[b].dist
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors
}

func (eng *Engine) lofScores(matrix [][]float64) []float64 {
	n := len(matrix)
	scores := make([]float64, n)
	k := eng.Neighbors
	if k >= n {
		k = n - 1
	}
	if k < 1 {
		return scores
	}

	allNeighbors := make([][]neighbor, n)
	kDist := make([]float64, n)
	for i := range matrix {
		allNeighbors[i] = kNearest(matrix, i, k)
		kDist[i] = allNeighbors[i][len(allNeighbors[i])-1].dist
	}

	// local reachability density per point
	lrd := make([]float64, n)
	for i := range matrix {
		var reachSum float64
		for _, nb := range allNeighbors[i] {
			reach := nb.dist
			if kDist[nb.index] > reach {
				reach = kDist[nb.index]
			}
			reachSum += reach
		}
		if reachSum == 0 {
			lrd[i] = 0

		} else {
			lrd[i] = float64(len(allNeighbors[i])) / reachSum
		}
	}

	for i := range matrix {
		if lrd[i] == 0 {
			// a zero own-density point sits in a dense duplicate
			// cluster, not an outlier
			continue
		}
		var neighborSum float64
		for _, nb := range allNeighbors[i] {
			neighborSum += lrd[nb.index]
		}
		avgNeighborLrd := neighborSum / float64(len(allNeighbors[i]))
		if avgNeighborLrd == 0 {
			continue
		}
		ratio := avgNeighborLrd / lrd[i]
		// ratio ~1 means inlier; map (1, 3] onto (0, 1]
		scores[i] = clamp01((ratio - 1) / 2)
	}
	return scores
}
