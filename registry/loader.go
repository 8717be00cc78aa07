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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/czcorpus/cnc-gokit/httpclient"
	"github.com/rs/zerolog/log"
)

// Definition is the structured document an external model source
// returns: a named linear scorer with weights, a decision threshold
// and reported accuracy. It is the only model form that can be
// loaded remotely or persisted.
type Definition struct {
	Name      string             `json:"name" msgpack:"name"`
	Version   string             `json:"version" msgpack:"version"`
	Type      string             `json:"type" msgpack:"type"`
	Accuracy  float64            `json:"accuracy" msgpack:"accuracy"`
	Weights   map[string]float64 `json:"weights" msgpack:"weights"`
	Bias      float64            `json:"bias" msgpack:"bias"`
	Threshold float64            `json:"threshold" msgpack:"threshold"`
}

func (def *Definition) validate() error {
	if def.Name == "" || def.Version == "" {
		return fmt.Errorf("missing name or version")
	}
	if len(def.Weights) == 0 {
		return fmt.Errorf("missing weights")
	}
	return nil
}

// Build turns the definition into a servable model.
func (def *Definition) Build() (Model, error) {
	if err := def.validate(); err != nil {
		return nil, fmt.Errorf("invalid model definition: %w", err)
	}
	return &weightedModel{def: *def}, nil
}

// weightedModel scores an input as a weighted sum of its features
// plus bias, labeling by the definition's threshold.
type weightedModel struct {
	def Definition
}

func (m *weightedModel) Predict(input map[string]float64) (Prediction, error) {
	score := m.def.Bias
	details := make(map[string]float64, len(m.def.Weights))
	for feat, weight := range m.def.Weights {
		contrib := weight * input[feat]
		score += contrib
		details[feat] = contrib
	}
	label := "negative"
	if score >= m.def.Threshold {
		label = "positive"
	}
	confidence := score - m.def.Threshold
	if confidence < 0 {
		confidence = -confidence
	}
	if confidence > 1 {
		confidence = 1
	}
	return Prediction{
		Value:      score,
		Label:      label,
		Confidence: confidence,
		Details:    details,
	}, nil
}

func (m *weightedModel) Info() string {
	return fmt.Sprintf("weighted model %s@%s, %d features, reported accuracy %.3f",
		m.def.Name, m.def.Version, len(m.def.Weights), m.def.Accuracy)
}

// ----------------------------

// Loader fetches model definitions from an external source. The
// exchange is a single request/response; a non-success status or a
// malformed document is a load failure counted against the loader.
// There is no automatic retry - retrying is the caller's call.
type Loader struct {
	client   *http.Client
	failures atomic.Int64
}

func NewLoader(timeout time.Duration) *Loader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = httpclient.TransportMaxIdleConns
	transport.MaxConnsPerHost = httpclient.TransportMaxConnsPerHost
	transport.MaxIdleConnsPerHost = httpclient.TransportMaxIdleConnsPerHost
	return &Loader{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// FetchDefinition retrieves and validates one model definition.
func (ldr *Loader) FetchDefinition(ctx context.Context, url string) (*Definition, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		ldr.failures.Add(1)
		return nil, fmt.Errorf("failed to load model definition: %w", err)
	}
	resp, err := ldr.client.Do(req)
	if err != nil {
		ldr.failures.Add(1)
		return nil, fmt.Errorf("failed to load model definition: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		ldr.failures.Add(1)
		return nil, fmt.Errorf("failed to load model definition: status %d", resp.StatusCode)
	}
	rawData, err := io.ReadAll(resp.Body)
	if err != nil {
		ldr.failures.Add(1)
		return nil, fmt.Errorf("failed to load model definition: %w", err)
	}
	var def Definition
	if err := json.Unmarshal(rawData, &def); err != nil {
		ldr.failures.Add(1)
		return nil, fmt.Errorf("failed to load model definition: malformed document: %w", err)
	}
	if err := def.validate(); err != nil {
		ldr.failures.Add(1)
		return nil, fmt.Errorf("failed to load model definition: malformed document: %w", err)
	}
	log.Debug().Str("model", def.Name).Str("version", def.Version).Msg("loaded model definition")
	return &def, nil
}

// Failures reports how many load attempts have failed so far.
func (ldr *Loader) Failures() int64 {
	return ldr.failures.Load()
}
