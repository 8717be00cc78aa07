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

package feats

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// FeatureType distinguishes how a raw record field is turned
// into a numeric value and how it is treated during batch
// post-processing (normalization applies to numeric features only).
type FeatureType string

const (
	FeatureNumeric     FeatureType = "numeric"
	FeatureBinary      FeatureType = "binary"
	FeatureCategorical FeatureType = "categorical"

	// EntityEmail and friends are the built-in entity types
	// the pipeline knows how to extract features for.
	EntityEmail    = "email"
	EntityCompany  = "company"
	EntityCampaign = "campaign"
)

// FeatureDef describes a single named feature of an entity type.
type FeatureDef struct {
	Name     string      `json:"name"`
	Type     FeatureType `json:"type"`
	Required bool        `json:"required"`
	Min      float64     `json:"min"`
	Max      float64     `json:"max"`
}

// Vector is a numeric encoding of one raw record. Categorical
// features are stored as their numeric code.
type Vector struct {
	EntityID string             `json:"entityId"`
	Values   map[string]float64 `json:"values"`
}

func NewVector(entityID string) Vector {
	return Vector{
		EntityID: entityID,
		Values:   make(map[string]float64),
	}
}

// AsSlice exports the vector values in the order given by names.
// Missing features are exported as zero.
func (v Vector) AsSlice(names []string) []float64 {
	ans := make([]float64, len(names))
	for i, name := range names {
		ans[i] = v.Values[name]
	}
	return ans
}

// Get returns a feature value along with information
// whether the feature is present at all.
func (v Vector) Get(name string) (float64, bool) {
	val, ok := v.Values[name]
	return val, ok
}

// IsFinite tests that no stored value is NaN or infinite.
func (v Vector) IsFinite() bool {
	for _, val := range v.Values {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return false
		}
	}
	return true
}

// ----------------------------

// Pipeline is the feature extraction pipeline. It owns per-entity-type
// feature definitions and converts raw field-keyed records into
// normalized feature vectors. All methods are safe for concurrent use.
type Pipeline struct {
	mu   sync.RWMutex
	defs map[string][]FeatureDef
}

func NewPipeline() *Pipeline {
	p := &Pipeline{
		defs: make(map[string][]FeatureDef),
	}
	p.defs[EntityEmail] = emailFeatureDefs()
	p.defs[EntityCompany] = companyFeatureDefs()
	p.defs[EntityCampaign] = campaignFeatureDefs()
	return p
}

// DefineFeatures registers (or replaces) the feature definition set
// for an entity type. Scale bounds must be sane (min < max) for
// numeric features.
func (p *Pipeline) DefineFeatures(entityType string, featureList []FeatureDef) error {
	if entityType == "" {
		return fmt.Errorf("failed to define features: empty entity type")
	}
	for _, def := range featureList {
		if def.Name == "" {
			return fmt.Errorf("failed to define features for %s: feature with empty name", entityType)
		}
		if def.Type == FeatureNumeric && def.Min >= def.Max {
			return fmt.Errorf(
				"failed to define features for %s: feature %s has invalid scale bounds", entityType, def.Name)
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defs[entityType] = append([]FeatureDef{}, featureList...)
	return nil
}

// Definitions returns a copy of the feature definition set
// of the provided entity type.
func (p *Pipeline) Definitions(entityType string) ([]FeatureDef, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	defs, ok := p.defs[entityType]
	if !ok {
		return nil, false
	}
	return append([]FeatureDef{}, defs...), true
}

// FeatureNames lists the registered feature names of an entity type
// in a stable (sorted) order. The order is what models rely on when
// a vector is exported via AsSlice.
func (p *Pipeline) FeatureNames(entityType string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	defs := p.defs[entityType]
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	sort.Strings(names)
	return names
}
