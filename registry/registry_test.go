package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constModel struct {
	value float64
	label string
}

func (m constModel) Predict(input map[string]float64) (Prediction, error) {
	return Prediction{Value: m.value, Label: m.label, Confidence: 1}, nil
}

func (m constModel) Info() string { return "const model" }

type failingModel struct{}

func (m failingModel) Predict(input map[string]float64) (Prediction, error) {
	return Prediction{}, fmt.Errorf("inference blew up")
}

func (m failingModel) Info() string { return "failing model" }

func newTestRegistry() *Registry {
	return New(Options{CacheMaxEntries: 100, CacheTTL: time.Minute})
}

func TestPredictUnregistered(t *testing.T) {
	reg := newTestRegistry()
	_, err := reg.Predict("nope", map[string]float64{"x": 1})
	assert.True(t, errors.Is(err, ErrModelNotFound))
}

func TestRegisterActivatesFirstVersion(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("m", constModel{value: 1}, Metadata{Type: "const"}, "1.0.0"))
	active, err := reg.ActiveVersion("m")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", active)
}

func TestRegisterKeepsMetadata(t *testing.T) {
	reg := newTestRegistry()
	meta := Metadata{Type: "const", Description: "test scorer", Accuracy: 0.9}
	require.NoError(t, reg.Register("m", constModel{value: 1}, meta, "1.0.0"))
	versions, err := reg.Versions("m")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, meta, versions[0].Metadata)
}

func TestRegisterDuplicateVersion(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("m", constModel{}, Metadata{}, "1.0.0"))
	assert.Error(t, reg.Register("m", constModel{}, Metadata{}, "1.0.0"))
}

func TestPredictCachesSecondCall(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("M", constModel{value: 0.7, label: "ok"}, Metadata{}, "1.0.0"))
	input := map[string]float64{"x": 1, "y": 2}

	first, err := reg.Predict("M", input)
	require.NoError(t, err)
	second, err := reg.Predict("M", input)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stats := reg.GetStatistics()
	assert.Equal(t, int64(1), stats.Models["M"].InferenceCount)
	assert.Equal(t, int64(1), stats.Models["M"].CacheHits)
}

func TestFingerprintOrderIndependent(t *testing.T) {
	a := Fingerprint("m", map[string]float64{"x": 1, "y": 2})
	b := Fingerprint("m", map[string]float64{"y": 2, "x": 1})
	assert.Equal(t, a, b)
	c := Fingerprint("m", map[string]float64{"x": 1, "y": 3})
	assert.NotEqual(t, a, c)
}

func TestInferenceErrorCounted(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("m", failingModel{}, Metadata{}, "1.0.0"))
	_, err := reg.Predict("m", map[string]float64{"x": 1})
	assert.Error(t, err)
	stats := reg.GetStatistics()
	assert.Equal(t, int64(1), stats.Models["m"].ErrorCount)
	assert.Equal(t, int64(1), stats.GlobalErrors)
}

func TestSwitchVersionPurgesCache(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("m", constModel{value: 1, label: "v1"}, Metadata{}, "1.0.0"))
	require.NoError(t, reg.Register("m", constModel{value: 2, label: "v2"}, Metadata{}, "2.0.0"))
	input := map[string]float64{"x": 1}

	first, err := reg.Predict("m", input)
	require.NoError(t, err)
	assert.Equal(t, "v1", first.Label)

	require.NoError(t, reg.SwitchVersion("m", "2.0.0"))
	second, err := reg.Predict("m", input)
	require.NoError(t, err)
	assert.Equal(t, "v2", second.Label)
}

func TestSwitchVersionIdempotent(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("m", constModel{value: 1}, Metadata{}, "1.0.0"))
	input := map[string]float64{"x": 1}
	_, err := reg.Predict("m", input)
	require.NoError(t, err)
	statsBefore := reg.GetStatistics()

	require.NoError(t, reg.SwitchVersion("m", "1.0.0"))

	statsAfter := reg.GetStatistics()
	assert.Equal(t, statsBefore.CachedEntries, statsAfter.CachedEntries)
	assert.Equal(t, statsBefore.Models["m"], statsAfter.Models["m"])
}

func TestSwitchVersionUnknown(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("m", constModel{}, Metadata{}, "1.0.0"))
	err := reg.SwitchVersion("m", "9.9.9")
	assert.True(t, errors.Is(err, ErrVersionNotFound))
	err = reg.SwitchVersion("nope", "1.0.0")
	assert.True(t, errors.Is(err, ErrModelNotFound))
}

func TestRollback(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("m", constModel{label: "v1"}, Metadata{}, "1.0.0"))
	require.NoError(t, reg.Register("m", constModel{label: "v2"}, Metadata{}, "2.0.0"))
	require.NoError(t, reg.SwitchVersion("m", "2.0.0"))
	require.NoError(t, reg.Rollback("m"))
	active, err := reg.ActiveVersion("m")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", active)
}

func TestRollbackWithoutHistory(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("m", constModel{}, Metadata{}, "1.0.0"))
	err := reg.Rollback("m")
	assert.True(t, errors.Is(err, ErrVersionNotFound))
}

func TestBatchPredictChunksAndProgress(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("m", constModel{value: 1}, Metadata{}, "1.0.0"))
	inputs := make([]map[string]float64, 25)
	for i := range inputs {
		inputs[i] = map[string]float64{"x": float64(i)}
	}
	var calls []int
	results, err := reg.BatchPredict(
		context.Background(), "m", inputs, 10,
		func(done, total int) {
			calls = append(calls, done)
		})
	require.NoError(t, err)
	assert.Equal(t, 25, len(results))
	assert.Equal(t, []int{10, 20, 25}, calls)
}

func TestBatchPredictKeepsGoingOnItemError(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("m", failingModel{}, Metadata{}, "1.0.0"))
	inputs := []map[string]float64{{"x": 1}, {"x": 2}}
	results, err := reg.BatchPredict(context.Background(), "m", inputs, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, len(results))
	assert.Error(t, results[0].Err)
	assert.Error(t, results[1].Err)
}

func TestABTestRouting(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("m", constModel{label: "v1"}, Metadata{}, "1.0.0"))
	require.NoError(t, reg.Register("m", constModel{label: "v2"}, Metadata{}, "2.0.0"))
	require.NoError(t, reg.SetupABTest("m", "1.0.0", "2.0.0", 0.5))

	seen := make(map[string]int)
	for i := 0; i < 200; i++ {
		pred, err := reg.Predict("m", map[string]float64{"x": float64(i)})
		require.NoError(t, err)
		seen[pred.Label]++
	}
	assert.Greater(t, seen["v1"], 0)
	assert.Greater(t, seen["v2"], 0)
}

func TestABTestOutcomesAndCompletion(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("m", constModel{label: "v1"}, Metadata{}, "1.0.0"))
	require.NoError(t, reg.Register("m", constModel{label: "v2"}, Metadata{}, "2.0.0"))
	require.NoError(t, reg.SetupABTest("m", "1.0.0", "2.0.0", 0.5))

	for i := 0; i < 10; i++ {
		require.NoError(t, reg.RecordABOutcome("m", "1.0.0", i < 5))
		require.NoError(t, reg.RecordABOutcome("m", "2.0.0", i < 8))
	}
	status, err := reg.CompleteABTest("m")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, status.AccuracyA, 1e-9)
	assert.InDelta(t, 0.8, status.AccuracyB, 1e-9)

	active, err := reg.ActiveVersion("m")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", active)
}

type capturingArchiver struct {
	outcomes []ABOutcome
}

func (ca *capturingArchiver) InsertABOutcome(outcome ABOutcome) error {
	ca.outcomes = append(ca.outcomes, outcome)
	return nil
}

func TestCompleteABTestArchivesOutcome(t *testing.T) {
	arch := &capturingArchiver{}
	reg := New(Options{CacheMaxEntries: 100, CacheTTL: time.Minute, ABArchiver: arch})
	require.NoError(t, reg.Register("m", constModel{label: "v1"}, Metadata{}, "1.0.0"))
	require.NoError(t, reg.Register("m", constModel{label: "v2"}, Metadata{}, "2.0.0"))
	require.NoError(t, reg.SetupABTest("m", "1.0.0", "2.0.0", 0.5))

	for i := 0; i < 10; i++ {
		require.NoError(t, reg.RecordABOutcome("m", "1.0.0", i < 4))
		require.NoError(t, reg.RecordABOutcome("m", "2.0.0", i < 9))
	}
	_, err := reg.CompleteABTest("m")
	require.NoError(t, err)

	require.Len(t, arch.outcomes, 1)
	assert.Equal(t, "m", arch.outcomes[0].Model)
	assert.Equal(t, "2.0.0", arch.outcomes[0].Winner)
	assert.InDelta(t, 0.4, arch.outcomes[0].AccuracyA, 1e-9)
	assert.InDelta(t, 0.9, arch.outcomes[0].AccuracyB, 1e-9)
	assert.False(t, arch.outcomes[0].Created.IsZero())
}

func TestSetupABTestInvalidRatio(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("m", constModel{}, Metadata{}, "1.0.0"))
	assert.Error(t, reg.SetupABTest("m", "1.0.0", "1.0.0", 1.5))
}

func TestLoaderFetchDefinition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `{
			"name": "quality",
			"version": "1.0.0",
			"type": "linear",
			"accuracy": 0.91,
			"weights": {"x": 0.5, "y": 0.5},
			"threshold": 0.4
		}`)
	}))
	defer srv.Close()

	ldr := NewLoader(time.Second)
	def, err := ldr.FetchDefinition(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "quality", def.Name)
	assert.Equal(t, int64(0), ldr.Failures())

	model, err := def.Build()
	require.NoError(t, err)
	pred, err := model.Predict(map[string]float64{"x": 1, "y": 1})
	require.NoError(t, err)
	assert.Equal(t, "positive", pred.Label)
	assert.InDelta(t, 1.0, pred.Value, 1e-9)
}

func TestLoaderMalformedDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `{"name": "x"}`)
	}))
	defer srv.Close()

	ldr := NewLoader(time.Second)
	_, err := ldr.FetchDefinition(context.Background(), srv.URL)
	assert.Error(t, err)
	assert.Equal(t, int64(1), ldr.Failures())
}

func TestLoaderNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ldr := NewLoader(time.Second)
	_, err := ldr.FetchDefinition(context.Background(), srv.URL)
	assert.Error(t, err)
	assert.Equal(t, int64(1), ldr.Failures())
}

func TestCacheTTLExpiry(t *testing.T) {
	cache := NewCache(10, 10*time.Millisecond)
	cache.Set("k", Prediction{Value: 1})
	_, ok := cache.Get("k")
	assert.True(t, ok)
	time.Sleep(20 * time.Millisecond)
	_, ok = cache.Get("k")
	assert.False(t, ok)
}

func TestCacheLRUEviction(t *testing.T) {
	cache := NewCache(2, time.Minute)
	cache.Set("a", Prediction{Value: 1})
	cache.Set("b", Prediction{Value: 2})
	_, ok := cache.Get("a")
	assert.True(t, ok)
	cache.Set("c", Prediction{Value: 3})
	_, ok = cache.Get("b")
	assert.False(t, ok)
	_, ok = cache.Get("a")
	assert.True(t, ok)
}

func TestCachePurgePrefix(t *testing.T) {
	cache := NewCache(10, time.Minute)
	cache.Set("m\x00aaa", Prediction{})
	cache.Set("m\x00bbb", Prediction{})
	cache.Set("other\x00ccc", Prediction{})
	assert.Equal(t, 2, cache.PurgePrefix("m\x00"))
	assert.Equal(t, 1, cache.Len())
}
