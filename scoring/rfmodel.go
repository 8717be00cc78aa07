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

package scoring

import (
	"fmt"

	randomforest "github.com/malaschitz/randomForest"
	"github.com/rs/zerolog/log"
	"github.com/timujinne/email-checker-sub004/feats"
	"github.com/timujinne/email-checker-sub004/registry"
)

const dfltNumTrees = 300

// RFQualityModel is a random-forest email quality classifier fitted
// from externally labeled feature vectors. It satisfies the registry
// Model contract, so a fitted forest can be registered and served
// like any other model.
type RFQualityModel struct {
	forest          randomforest.Forest
	featureNames    []string
	numTrees        int
	votingThreshold float64
	fitted          bool
}

func NewRFQualityModel(featureNames []string, numTrees int, votingThreshold float64) *RFQualityModel {
	if numTrees <= 0 {
		numTrees = dfltNumTrees
	}
	if votingThreshold <= 0 {
		votingThreshold = 0.5
	}
	return &RFQualityModel{
		featureNames:    featureNames,
		numTrees:        numTrees,
		votingThreshold: votingThreshold,
	}
}

// Fit trains the forest on labeled vectors (label 1 = good quality).
func (m *RFQualityModel) Fit(vectors []feats.Vector, labels []int) error {
	if len(vectors) == 0 {
		return fmt.Errorf("failed to fit RF quality model: no training data")
	}
	if len(vectors) != len(labels) {
		return fmt.Errorf("failed to fit RF quality model: %d vectors vs %d labels",
			len(vectors), len(labels))
	}
	xData := make([][]float64, len(vectors))
	for i, vec := range vectors {
		xData[i] = vec.AsSlice(m.featureNames)
	}
	m.forest = randomforest.Forest{}
	m.forest.Data = randomforest.ForestData{X: xData, Class: labels}
	m.forest.Train(m.numTrees)
	m.fitted = true
	log.Info().
		Int("trainingItems", len(vectors)).
		Int("numTrees", m.numTrees).
		Msg("fitted RF quality model")
	return nil
}

// Predict votes the forest over the input features. The positive
// vote share is the model's confidence.
func (m *RFQualityModel) Predict(input map[string]float64) (registry.Prediction, error) {
	if !m.fitted {
		return registry.Prediction{}, fmt.Errorf("RF quality model is not fitted")
	}
	vec := make([]float64, len(m.featureNames))
	for i, name := range m.featureNames {
		vec[i] = input[name]
	}
	votes := m.forest.Vote(vec)
	if len(votes) < 2 {
		return registry.Prediction{}, fmt.Errorf("unexpected vote shape from forest")
	}
	label := "poor"
	if votes[1] >= m.votingThreshold {
		label = "good"
	}
	return registry.Prediction{
		Value:      votes[1],
		Label:      label,
		Confidence: votes[1],
		Details: map[string]float64{
			"voteGood": votes[1],
			"votePoor": votes[0],
		},
	}, nil
}

func (m *RFQualityModel) Info() string {
	return fmt.Sprintf("RF quality model, num. trees: %d, voting threshold: %.2f",
		m.numTrees, m.votingThreshold)
}

// ----------------------------

// QualityModel adapts the deterministic quality classifier to the
// registry Model contract so it can be registered, cached and A/B
// tested like fitted models. Inputs are the per-factor signals.
type QualityModel struct {
	classifier *QualityClassifier
}

func NewQualityModel(classifier *QualityClassifier) *QualityModel {
	return &QualityModel{classifier: classifier}
}

func (m *QualityModel) Predict(input map[string]float64) (registry.Prediction, error) {
	signals := make(Signals, len(input))
	for k, v := range input {
		signals[k] = v
	}
	result := m.classifier.Score("", signals, feats.Vector{})
	return registry.Prediction{
		Value:      result.Total,
		Label:      result.Tier,
		Confidence: clamp01(result.Total / 100),
		Details:    result.Factors,
	}, nil
}

func (m *QualityModel) Info() string {
	return fmt.Sprintf("weighted quality classifier, %d factors", len(m.classifier.weights))
}
