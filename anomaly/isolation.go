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
	"math"
	"math/rand"
)

// The isolation detector uses the simplified formulation: a fixed
// tree count over plain random subsamples. An entity isolated by few
// random splits scores close to 1; the score is 2^(-avgPath/c(n)).

type isoNode struct {
	feature    int
	split      float64
	left       *isoNode
	right      *isoNode
	size       int
	isExternal bool
}

func buildIsoTree(data [][]float64, depth, maxDepth int, rng *rand.Rand) *isoNode {
	if len(data) <= 1 || depth >= maxDepth {
		return &isoNode{isExternal: true, size: len(data)}
	}
	numFeatures := len(data[0])
	feature := rng.Intn(numFeatures)
	lo, hi := data[0][feature], data[0][feature]
	for _, row := range data {
		lo = math.Min(lo, row[feature])
		hi = math.Max(hi, row[feature])
	}
	if hi <= lo {
		return &isoNode{isExternal: true, size: len(data)}
	}
	split := lo + rng.Float64()*(hi-lo)
	var left, right [][]float64
	for _, row := range data {
		if row[feature] < split {
			left = append(left, row)

		} else {
			right = append(right, row)
		}
	}
	return &isoNode{
		feature: feature,
		split:   split,
		left:    buildIsoTree(left, depth+1, maxDepth, rng),
		right:   buildIsoTree(right, depth+1, maxDepth, rng),
	}
}

func (n *isoNode) pathLength(point []float64, depth int) float64 {
	if n.isExternal {
		return float64(depth) + avgPathC(n.size)
	}
	if point[n.feature] < n.split {
		return n.left.pathLength(point, depth+1)
	}
	return n.right.pathLength(point, depth+1)
}

// avgPathC is c(n): the expected path length of an unsuccessful
// search in a BST of n nodes, used both for the score normalization
// and to terminate paths at non-singleton external nodes.
func avgPathC(n int) float64 {
	if n <= 1 {
		return 0
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+0.5772156649) - 2*(fn-1)/fn
}

func (eng *Engine) isolationScores(matrix [][]float64) []float64 {
	n := len(matrix)
	scores := make([]float64, n)
	if n < 2 {
		return scores
	}
	sampleSize := eng.SampleSize
	if sampleSize > n {
		sampleSize = n
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sampleSize))))
	rng := rand.New(rand.NewSource(42))

	trees := make([]*isoNode, eng.NumTrees)
	for t := 0; t < eng.NumTrees; t++ {
		sample := make([][]float64, sampleSize)
		for i := range sample {
			sample[i] = matrix[rng.Intn(n)]
		}
		trees[t] = buildIsoTree(sample, 0, maxDepth, rng)
	}
	norm := avgPathC(sampleSize)
	if norm == 0 {
		return scores
	}
	for i, point := range matrix {
		var totalPath float64
		for _, tree := range trees {
			totalPath += tree.pathLength(point, 0)
		}
		avgPath := totalPath / float64(len(trees))
		scores[i] = math.Pow(2, -avgPath/norm)
	}
	return scores
}
