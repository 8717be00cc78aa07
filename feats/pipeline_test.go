package feats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emailRecord(addr string) map[string]any {
	return map[string]any{"email": addr}
}

func TestProcessBatchEmpty(t *testing.T) {
	p := NewPipeline()
	vectors, stats, err := p.ProcessBatch(
		context.Background(), EntityEmail, []map[string]any{}, BatchOptions{})
	assert.NoError(t, err)
	assert.Equal(t, 0, len(vectors))
	assert.Equal(t, 0, stats.Processed)
	assert.Equal(t, 0, stats.OutliersRemoved)
	assert.Equal(t, 0, stats.ValuesImputed)
}

func TestProcessBatchNormalizes(t *testing.T) {
	p := NewPipeline()
	records := []map[string]any{
		emailRecord("a@foo.com"),
		emailRecord("somebody.longer@foo.com"),
		emailRecord("mid@foo.com"),
	}
	vectors, stats, err := p.ProcessBatch(
		context.Background(), EntityEmail, records, BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Processed)
	for _, vec := range vectors {
		v := vec.Values["localLength"]
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestProcessBatchRejectsOutliers(t *testing.T) {
	p := NewPipeline()
	err := p.DefineFeatures("probe", []FeatureDef{
		{Name: "x", Type: FeatureNumeric, Required: true, Min: 0, Max: 1000},
	})
	require.NoError(t, err)
	records := make([]map[string]any, 0, 21)
	for i := 0; i < 20; i++ {
		records = append(records, map[string]any{"id": "r", "x": 10.0})
	}
	records = append(records, map[string]any{"id": "out", "x": 100000.0})
	vectors, stats, err := p.ProcessBatch(
		context.Background(), "probe", records, BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.OutliersRemoved)
	assert.Equal(t, 20, len(vectors))
}

func TestProcessBatchImputesMean(t *testing.T) {
	p := NewPipeline()
	err := p.DefineFeatures("probe", []FeatureDef{
		{Name: "x", Type: FeatureNumeric, Required: true, Min: 0, Max: 100},
	})
	require.NoError(t, err)
	records := []map[string]any{
		{"id": "a", "x": 10.0},
		{"id": "b", "x": 20.0},
		{"id": "c"},
	}
	vectors, stats, err := p.ProcessBatch(
		context.Background(), "probe", records, BatchOptions{Imputation: ImputeMean})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ValuesImputed)
	assert.Equal(t, 3, len(vectors))
}

func TestProcessBatchImputeDrop(t *testing.T) {
	p := NewPipeline()
	err := p.DefineFeatures("probe", []FeatureDef{
		{Name: "x", Type: FeatureNumeric, Required: true, Min: 0, Max: 100},
	})
	require.NoError(t, err)
	records := []map[string]any{
		{"id": "a", "x": 10.0},
		{"id": "b"},
	}
	vectors, stats, err := p.ProcessBatch(
		context.Background(), "probe", records, BatchOptions{Imputation: ImputeDrop})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RecordsDropped)
	assert.Equal(t, 1, len(vectors))
}

func TestProcessBatchAugmentMixup(t *testing.T) {
	p := NewPipeline()
	records := []map[string]any{
		emailRecord("a@foo.com"),
		emailRecord("b@bar.com"),
	}
	vectors, stats, err := p.ProcessBatch(
		context.Background(), EntityEmail, records,
		BatchOptions{Augment: AugmentMixup, AugmentCount: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Augmented)
	assert.Equal(t, 5, len(vectors))
}

func TestDefineFeaturesInvalidBounds(t *testing.T) {
	p := NewPipeline()
	err := p.DefineFeatures("probe", []FeatureDef{
		{Name: "x", Type: FeatureNumeric, Min: 10, Max: 1},
	})
	assert.Error(t, err)
}
