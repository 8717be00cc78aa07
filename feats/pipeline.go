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
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog/log"
)

// ImputeStrategy selects how missing feature values are filled in
// during batch processing.
type ImputeStrategy string

const (
	ImputeMean     ImputeStrategy = "mean"
	ImputeMedian   ImputeStrategy = "median"
	ImputeDrop     ImputeStrategy = "drop"
	ImputeConstant ImputeStrategy = "constant"

	dfltOutlierThreshold = 3.0
	dfltChunkSize        = 200
)

// AugmentMode selects the synthetic augmentation technique. Both
// techniques are intentionally simple: noise adds small gaussian
// jitter, mixup takes a convex combination of two records.
type AugmentMode string

const (
	AugmentNone  AugmentMode = ""
	AugmentNoise AugmentMode = "noise"
	AugmentMixup AugmentMode = "mixup"
)

// BatchOptions configures one ProcessBatch call.
type BatchOptions struct {
	Imputation ImputeStrategy

	// ImputeValue is the fill-in value for ImputeConstant.
	ImputeValue float64

	// OutlierThreshold is the z-score above which a record is
	// rejected as an outlier. Zero means the default (3 sigma).
	OutlierThreshold float64

	// Augment, when non-empty, requests synthetic augmentation.
	Augment AugmentMode

	// AugmentCount is the number of synthetic records to add.
	AugmentCount int

	// ChunkSize bounds how many records are extracted between
	// context checks. Zero means the default.
	ChunkSize int
}

// ProcessingStats reports every reduction step of a batch run.
// Callers must inspect it - outlier rejection and record drops
// are otherwise invisible to downstream models.
type ProcessingStats struct {
	TotalRecords    int      `json:"totalRecords"`
	Processed       int      `json:"processed"`
	OutliersRemoved int      `json:"outliersRemoved"`
	ValuesImputed   int      `json:"valuesImputed"`
	RecordsDropped  int      `json:"recordsDropped"`
	Augmented       int      `json:"augmented"`
	Warnings        []string `json:"warnings,omitempty"`
}

// ProcessBatch extracts features from raw records and runs the full
// post-processing chain: missing-value imputation, z-score outlier
// rejection, per-feature min-max normalization and (when requested)
// synthetic augmentation. An empty batch is not an error - it yields
// zero vectors and zero stats.
func (p *Pipeline) ProcessBatch(
	ctx context.Context,
	entityType string,
	records []map[string]any,
	opts BatchOptions,
) ([]Vector, ProcessingStats, error) {

	stats := ProcessingStats{TotalRecords: len(records)}
	if len(records) == 0 {
		return []Vector{}, stats, nil
	}
	if opts.Imputation == "" {
		opts.Imputation = ImputeMean
	}
	if opts.OutlierThreshold == 0 {
		opts.OutlierThreshold = dfltOutlierThreshold
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = dfltChunkSize
	}

	vectors := make([]Vector, 0, len(records))
	for chunkStart := 0; chunkStart < len(records); chunkStart += chunkSize {
		select {
		case <-ctx.Done():
			return nil, stats, ctx.Err()
		default:
		}
		chunkEnd := min(chunkStart+chunkSize, len(records))
		for _, rec := range records[chunkStart:chunkEnd] {
			vec, err := p.ExtractFeatures(entityType, rec)
			if err != nil {
				return nil, stats, fmt.Errorf("failed to process batch: %w", err)
			}
			if !vec.IsFinite() {
				stats.Warnings = append(
					stats.Warnings, fmt.Sprintf("non-finite values in record %s", vec.EntityID))
				stats.RecordsDropped++
				continue
			}
			vectors = append(vectors, vec)
		}
	}

	defs, _ := p.Definitions(entityType)
	vectors = p.imputeMissing(vectors, defs, opts, &stats)
	vectors = p.rejectOutliers(vectors, defs, opts.OutlierThreshold, &stats)
	p.normalize(vectors, defs)
	if opts.Augment != AugmentNone && opts.AugmentCount > 0 {
		vectors = p.augment(vectors, defs, opts, &stats)
	}
	stats.Processed = len(vectors)
	log.Debug().
		Str("entityType", entityType).
		Int("processed", stats.Processed).
		Int("outliersRemoved", stats.OutliersRemoved).
		Int("valuesImputed", stats.ValuesImputed).
		Int("recordsDropped", stats.RecordsDropped).
		Msg("processed feature batch")
	return vectors, stats, nil
}

func (p *Pipeline) imputeMissing(
	vectors []Vector,
	defs []FeatureDef,
	opts BatchOptions,
	stats *ProcessingStats,
) []Vector {
	for _, def := range defs {
		present := make([]float64, 0, len(vectors))
		for _, vec := range vectors {
			if v, ok := vec.Get(def.Name); ok {
				present = append(present, v)
			}
		}
		if len(present) == len(vectors) {
			continue
		}
		var fill float64
		switch opts.Imputation {
		case ImputeMean:
			fill = mean(present)
		case ImputeMedian:
			fill = median(present)
		case ImputeConstant:
			fill = opts.ImputeValue
		case ImputeDrop:
			kept := vectors[:0]
			for _, vec := range vectors {
				if _, ok := vec.Get(def.Name); ok {
					kept = append(kept, vec)

				} else {
					stats.RecordsDropped++
				}
			}
			vectors = kept
			continue
		}
		for _, vec := range vectors {
			if _, ok := vec.Get(def.Name); !ok {
				vec.Values[def.Name] = fill
				stats.ValuesImputed++
			}
		}
	}
	return vectors
}

// rejectOutliers drops records whose z-score on any numeric feature
// exceeds the threshold, measured against the batch's own mean/stddev.
func (p *Pipeline) rejectOutliers(
	vectors []Vector,
	defs []FeatureDef,
	threshold float64,
	stats *ProcessingStats,
) []Vector {
	if len(vectors) < 3 {
		return vectors
	}
	outliers := make(map[int]bool)
	for _, def := range defs {
		if def.Type != FeatureNumeric {
			continue
		}
		vals := make([]float64, len(vectors))
		for i, vec := range vectors {
			vals[i] = vec.Values[def.Name]
		}
		m := mean(vals)
		sd := stddev(vals, m)
		if sd == 0 {
			continue
		}
		for i, v := range vals {
			if math.Abs(v-m)/sd > threshold {
				outliers[i] = true
			}
		}
	}
	if len(outliers) == 0 {
		return vectors
	}
	kept := make([]Vector, 0, len(vectors))
	for i, vec := range vectors {
		if outliers[i] {
			stats.OutliersRemoved++
			continue
		}
		kept = append(kept, vec)
	}
	return kept
}

// normalize rescales each numeric feature to [0, 1] over the batch
// (min-max). Constant features are left untouched.
func (p *Pipeline) normalize(vectors []Vector, defs []FeatureDef) {
	for _, def := range defs {
		if def.Type != FeatureNumeric {
			continue
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, vec := range vectors {
			v := vec.Values[def.Name]
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if hi <= lo {
			continue
		}
		for _, vec := range vectors {
			vec.Values[def.Name] = (vec.Values[def.Name] - lo) / (hi - lo)
		}
	}
}

// augment appends synthetic records. Note that both modes are the
// simple variants: gaussian jitter and pairwise convex combination.
func (p *Pipeline) augment(
	vectors []Vector,
	defs []FeatureDef,
	opts BatchOptions,
	stats *ProcessingStats,
) []Vector {
	if len(vectors) == 0 {
		return vectors
	}
	for i := 0; i < opts.AugmentCount; i++ {
		src := vectors[rand.Intn(len(vectors))]
		synth := NewVector(fmt.Sprintf("%s#synth%d", src.EntityID, i))
		switch opts.Augment {
		case AugmentNoise:
			for _, def := range defs {
				v := src.Values[def.Name]
				if def.Type == FeatureNumeric {
					v += rand.NormFloat64() * 0.05
					v = math.Max(0, math.Min(1, v))
				}
				synth.Values[def.Name] = v
			}
		case AugmentMixup:
			other := vectors[rand.Intn(len(vectors))]
			lambda := rand.Float64()
			for _, def := range defs {
				synth.Values[def.Name] = lambda*src.Values[def.Name] +
					(1-lambda)*other.Values[def.Name]
			}
		}
		vectors = append(vectors, synth)
		stats.Augmented++
	}
	return vectors
}

// ----------------------------

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func stddev(vals []float64, m float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(vals)))
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64{}, vals...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
