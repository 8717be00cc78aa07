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
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/timujinne/email-checker-sub004/metrics"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrModelNotFound   = errors.New("model not found")
	ErrVersionNotFound = errors.New("model version not found")
)

const (
	dfltBatchChunkSize  = 100
	recentPredictionCap = 200
)

// Model is a computational unit servable by the registry. Predict
// must be side-effect free; the registry handles caching, statistics
// and traffic splitting around it.
type Model interface {
	Predict(input map[string]float64) (Prediction, error)
	Info() string
}

// Prediction is the uniform inference output of registry-served models.
type Prediction struct {
	Value      float64            `json:"value"`
	Label      string             `json:"label"`
	Confidence float64            `json:"confidence"`
	Details    map[string]float64 `json:"details,omitempty"`
}

// Metadata describes one registered model version.
type Metadata struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	InputShape  []string `json:"inputShape,omitempty"`
	OutputShape string   `json:"outputShape,omitempty"`
	Accuracy    float64  `json:"accuracy,omitempty"`
}

// ModelVersion is an immutable version record. A new registration
// appends a version; it never mutates a prior one.
type ModelVersion struct {
	Version  string    `json:"version"`
	Metadata Metadata  `json:"metadata"`
	Created  time.Time `json:"created"`
	model    Model
}

// ModelStats carries per-model inference statistics.
type ModelStats struct {
	InferenceCount int64   `json:"inferenceCount"`
	ErrorCount     int64   `json:"errorCount"`
	CacheHits      int64   `json:"cacheHits"`
	MeanLatencyMs  float64 `json:"meanLatencyMs"`

	totalLatency time.Duration
}

type modelEntry struct {
	name       string
	versions   []*ModelVersion
	active     string
	prevActive []string
	stats      ModelStats
	ab         *abTest
}

func (e *modelEntry) findVersion(version string) *ModelVersion {
	for _, v := range e.versions {
		if v.Version == version {
			return v
		}
	}
	return nil
}

// PredictionRecord is one served prediction kept for the dashboard's
// getAllPredictions accessor.
type PredictionRecord struct {
	Model       string     `json:"model"`
	Version     string     `json:"version"`
	Result      Prediction `json:"result"`
	Cached      bool       `json:"cached"`
	Created     time.Time  `json:"created"`
	Fingerprint string     `json:"fingerprint"`
}

// Persister is an optional durable store for serializable model
// definitions. Attaching one does not change any registry contract.
type Persister interface {
	SaveModel(name, version string, payload []byte) error
	LoadModel(name, version string) ([]byte, error)
	ListModels() (map[string][]string, error)
}

// Registry owns named, versioned model entries and serves inference
// with result caching, A/B traffic splitting and version rollback.
// It is safe for concurrent use; every owned structure is guarded
// explicitly since none of the model logic is.
type Registry struct {
	mu        sync.RWMutex
	models    map[string]*modelEntry
	cache     *Cache
	alerts    *metrics.Notifier
	persist   Persister
	abArchive ABOutcomeArchiver

	globalInferences int64
	globalErrors     int64
	globalLatency    time.Duration

	recent []PredictionRecord
}

type Options struct {
	CacheMaxEntries int
	CacheTTL        time.Duration
	Alerts          *metrics.Notifier
	Persister       Persister
	ABArchiver      ABOutcomeArchiver
}

func New(opts Options) *Registry {
	return &Registry{
		models:    make(map[string]*modelEntry),
		cache:     NewCache(opts.CacheMaxEntries, opts.CacheTTL),
		alerts:    opts.Alerts,
		persist:   opts.Persister,
		abArchive: opts.ABArchiver,
	}
}

// Register creates an immutable version record for the model and,
// if no active version exists yet, activates it. Registering an
// already existing version of a model is an error.
func (r *Registry) Register(name string, model Model, metadata Metadata, version string) error {
	if name == "" || version == "" {
		return fmt.Errorf("failed to register model: empty name or version")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.models[name]
	if !ok {
		entry = &modelEntry{name: name}
		r.models[name] = entry
	}
	if entry.findVersion(version) != nil {
		return fmt.Errorf("failed to register model %s: version %s already exists", name, version)
	}
	entry.versions = append(entry.versions, &ModelVersion{
		Version:  version,
		Metadata: metadata,
		Created:  time.Now(),
		model:    model,
	})
	if entry.active == "" {
		entry.active = version
	}
	log.Info().
		Str("model", name).
		Str("version", version).
		Str("type", metadata.Type).
		Msg("registered model version")
	return nil
}

// RegisterDefinition builds a servable model from a loaded definition
// document, registers it and (when a persister is attached) saves the
// definition durably.
func (r *Registry) RegisterDefinition(def *Definition) error {
	model, err := def.Build()
	if err != nil {
		return fmt.Errorf("failed to register definition: %w", err)
	}
	err = r.Register(def.Name, model, Metadata{Type: def.Type, Accuracy: def.Accuracy}, def.Version)
	if err != nil {
		return err
	}
	if r.persist == nil {
		return nil
	}
	payload, err := msgpack.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to serialize definition %s: %w", def.Name, err)
	}
	if err := r.persist.SaveModel(def.Name, def.Version, payload); err != nil {
		return fmt.Errorf("failed to persist definition %s: %w", def.Name, err)
	}
	return nil
}

// RestoreDefinitions re-registers every definition found in the
// attached persister. Models already registered are skipped.
func (r *Registry) RestoreDefinitions() (int, error) {
	if r.persist == nil {
		return 0, nil
	}
	stored, err := r.persist.ListModels()
	if err != nil {
		return 0, fmt.Errorf("failed to restore definitions: %w", err)
	}
	var restored int
	for name, versions := range stored {
		for _, version := range versions {
			payload, err := r.persist.LoadModel(name, version)
			if err != nil {
				return restored, fmt.Errorf("failed to restore definitions: %w", err)
			}
			var def Definition
			if err := msgpack.Unmarshal(payload, &def); err != nil {
				return restored, fmt.Errorf("failed to restore definitions: %w", err)
			}
			model, err := def.Build()
			if err != nil {
				return restored, fmt.Errorf("failed to restore definitions: %w", err)
			}
			r.mu.RLock()
			entry, ok := r.models[name]
			exists := ok && entry.findVersion(version) != nil
			r.mu.RUnlock()
			if exists {
				continue
			}
			if err := r.Register(name, model, Metadata{Type: def.Type, Accuracy: def.Accuracy}, version); err != nil {
				return restored, err
			}
			restored++
		}
	}
	return restored, nil
}

// Fingerprint derives a deterministic cache key from model name and
// input. The key is independent of map iteration order.
func Fingerprint(name string, input map[string]float64) string {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := fnv.New64a()
	h.Write([]byte(name))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(strconv.FormatFloat(input[k], 'g', -1, 64)))
	}
	return name + "\x00" + strconv.FormatUint(h.Sum64(), 16)
}

// Predict resolves the model's active version (or an A/B arm when a
// test is configured), consults the inference cache and on miss runs
// the model, updating per-model and global statistics. An inference
// error increments the model's error counter and is returned to the
// caller, never swallowed.
func (r *Registry) Predict(name string, input map[string]float64) (Prediction, error) {
	r.mu.Lock()
	entry, ok := r.models[name]
	if !ok {
		r.mu.Unlock()
		return Prediction{}, fmt.Errorf("failed to predict with %s: %w", name, ErrModelNotFound)
	}
	fingerprint := Fingerprint(name, input)
	versionName := entry.active
	if entry.ab != nil {
		versionName = entry.ab.pickArm(fingerprint)
	}
	version := entry.findVersion(versionName)
	r.mu.Unlock()
	if version == nil {
		return Prediction{}, fmt.Errorf(
			"failed to predict with %s: active version %s: %w", name, versionName, ErrVersionNotFound)
	}

	if cached, ok := r.cache.Get(fingerprint); ok {
		r.mu.Lock()
		entry.stats.CacheHits++
		r.recordPrediction(PredictionRecord{
			Model: name, Version: versionName, Result: cached,
			Cached: true, Created: time.Now(), Fingerprint: fingerprint,
		})
		r.mu.Unlock()
		return cached, nil
	}

	t0 := time.Now()
	result, err := version.model.Predict(input)
	latency := time.Since(t0)

	r.mu.Lock()
	entry.stats.InferenceCount++
	entry.stats.totalLatency += latency
	entry.stats.MeanLatencyMs = float64(entry.stats.totalLatency.Microseconds()) /
		float64(entry.stats.InferenceCount) / 1000
	r.globalInferences++
	r.globalLatency += latency
	if err != nil {
		entry.stats.ErrorCount++
		r.globalErrors++
	}
	if err == nil {
		r.recordPrediction(PredictionRecord{
			Model: name, Version: versionName, Result: result,
			Created: time.Now(), Fingerprint: fingerprint,
		})
	}
	r.mu.Unlock()

	if err != nil {
		return Prediction{}, fmt.Errorf("inference failed for %s@%s: %w", name, versionName, err)
	}
	r.cache.Set(fingerprint, result)
	return result, nil
}

// recordPrediction must be called with r.mu held.
func (r *Registry) recordPrediction(rec PredictionRecord) {
	if len(r.recent) >= recentPredictionCap {
		copy(r.recent, r.recent[1:])
		r.recent = r.recent[:len(r.recent)-1]
	}
	r.recent = append(r.recent, rec)
}

// BatchResult is a single item outcome of BatchPredict. A failed
// item does not abort the rest of the batch.
type BatchResult struct {
	Index  int        `json:"index"`
	Result Prediction `json:"result"`
	Err    error      `json:"-"`
}

// BatchPredict processes inputs in fixed-size chunks, invoking the
// progress callback after each chunk. Chunking exists to bound work
// per scheduling slice, not for atomicity: a context cancellation
// mid-batch leaves earlier chunks' cache writes and statistics
// intact.
func (r *Registry) BatchPredict(
	ctx context.Context,
	name string,
	inputs []map[string]float64,
	chunkSize int,
	progress func(done, total int),
) ([]BatchResult, error) {

	if chunkSize <= 0 {
		chunkSize = dfltBatchChunkSize
	}
	results := make([]BatchResult, 0, len(inputs))
	for chunkStart := 0; chunkStart < len(inputs); chunkStart += chunkSize {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}
		chunkEnd := min(chunkStart+chunkSize, len(inputs))
		for i, input := range inputs[chunkStart:chunkEnd] {
			pred, err := r.Predict(name, input)
			if err != nil && errors.Is(err, ErrModelNotFound) {
				return results, err
			}
			results = append(results, BatchResult{Index: chunkStart + i, Result: pred, Err: err})
		}
		if progress != nil {
			progress(chunkEnd, len(inputs))
		}
	}
	return results, nil
}

// SwitchVersion repoints the model's active version and purges the
// model's cache entries - a stale cached result must never survive
// a version switch. Switching to the already active version is a
// no-op (cache and statistics stay untouched).
func (r *Registry) SwitchVersion(name, version string) error {
	r.mu.Lock()
	entry, ok := r.models[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("failed to switch version of %s: %w", name, ErrModelNotFound)
	}
	if entry.findVersion(version) == nil {
		r.mu.Unlock()
		return fmt.Errorf("failed to switch version of %s to %s: %w", name, version, ErrVersionNotFound)
	}
	if entry.active == version {
		r.mu.Unlock()
		return nil
	}
	entry.prevActive = append(entry.prevActive, entry.active)
	entry.active = version
	r.mu.Unlock()

	purged := r.cache.PurgePrefix(name + "\x00")
	log.Info().
		Str("model", name).
		Str("version", version).
		Int("purgedCacheEntries", purged).
		Msg("switched active model version")
	return nil
}

// Rollback repoints the active version to the previously active one.
// A model that never switched has nothing to roll back to.
func (r *Registry) Rollback(name string) error {
	r.mu.Lock()
	entry, ok := r.models[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("failed to rollback %s: %w", name, ErrModelNotFound)
	}
	if len(entry.prevActive) == 0 {
		r.mu.Unlock()
		return fmt.Errorf("failed to rollback %s: no prior version: %w", name, ErrVersionNotFound)
	}
	prev := entry.prevActive[len(entry.prevActive)-1]
	entry.prevActive = entry.prevActive[:len(entry.prevActive)-1]
	entry.active = prev
	r.mu.Unlock()

	purged := r.cache.PurgePrefix(name + "\x00")
	log.Info().
		Str("model", name).
		Str("version", prev).
		Int("purgedCacheEntries", purged).
		Msg("rolled back active model version")
	return nil
}

// ActiveVersion returns the currently serving version of a model.
func (r *Registry) ActiveVersion(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.models[name]
	if !ok {
		return "", fmt.Errorf("failed to resolve active version of %s: %w", name, ErrModelNotFound)
	}
	return entry.active, nil
}

// Versions lists a model's version records, oldest first.
func (r *Registry) Versions(name string) ([]ModelVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("failed to list versions of %s: %w", name, ErrModelNotFound)
	}
	ans := make([]ModelVersion, len(entry.versions))
	for i, v := range entry.versions {
		ans[i] = *v
	}
	return ans, nil
}

// Statistics is the pure dashboard accessor over registry state.
type Statistics struct {
	Models           map[string]ModelStats `json:"models"`
	GlobalInferences int64                 `json:"globalInferences"`
	GlobalErrors     int64                 `json:"globalErrors"`
	MeanLatencyMs    float64               `json:"meanLatencyMs"`
	CachedEntries    int                   `json:"cachedEntries"`
}

func (r *Registry) GetStatistics() Statistics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ans := Statistics{
		Models:           make(map[string]ModelStats, len(r.models)),
		GlobalInferences: r.globalInferences,
		GlobalErrors:     r.globalErrors,
		CachedEntries:    r.cache.Len(),
	}
	if r.globalInferences > 0 {
		ans.MeanLatencyMs = float64(r.globalLatency.Microseconds()) /
			float64(r.globalInferences) / 1000
	}
	for name, entry := range r.models {
		ans.Models[name] = entry.stats
	}
	return ans
}

// GetAllPredictions returns recently served predictions, oldest first.
func (r *Registry) GetAllPredictions() []PredictionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]PredictionRecord{}, r.recent...)
}
