package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timujinne/email-checker-sub004/feats"
)

func TestDefaultWeightsSumToOne(t *testing.T) {
	qc, err := NewQualityClassifier(nil)
	require.NoError(t, err)
	var sum float64
	for _, w := range qc.Weights() {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestWeightsValidation(t *testing.T) {
	_, err := NewQualityClassifier(map[string]float64{
		FactorDeliverability: 0.5,
		FactorReputation:     0.2,
	})
	assert.Error(t, err)

	_, err = NewQualityClassifier(map[string]float64{
		FactorDeliverability: 1.2,
		FactorReputation:     -0.2,
	})
	assert.Error(t, err)
}

func TestScoreAllStrongSignals(t *testing.T) {
	qc, err := NewQualityClassifier(nil)
	require.NoError(t, err)
	signals := Signals{
		FactorDeliverability: 1,
		FactorReputation:     1,
		FactorEngagement:     1,
		FactorHygiene:        1,
		FactorRisk:           1,
	}
	result := qc.Score("a@corp.io", signals, feats.Vector{})
	assert.Equal(t, "excellent", result.Tier)
	assert.Equal(t, "safe to send", result.Recommendation)
	assert.Equal(t, 5, len(result.Reasons))
}

func TestScoreMissingSignalsUseBaseline(t *testing.T) {
	qc, err := NewQualityClassifier(nil)
	require.NoError(t, err)
	result := qc.Score("a@corp.io", Signals{}, feats.Vector{})
	for _, v := range result.Factors {
		assert.InDelta(t, 0.5, v, 1e-9)
	}
	assert.InDelta(t, 50.0, result.Total, 1e-9)
	assert.Equal(t, "poor", result.Tier)
}

func TestScoreDisposablePenalty(t *testing.T) {
	qc, err := NewQualityClassifier(nil)
	require.NoError(t, err)
	vec := feats.NewVector("x@mailinator.com")
	vec.Values["isDisposable"] = 1
	vec.Values["isFreeProvider"] = 0
	signals := Signals{
		FactorDeliverability: 0.9,
		FactorReputation:     0.9,
		FactorEngagement:     0.9,
		FactorHygiene:        0.9,
		FactorRisk:           0.9,
	}
	withPenalty := qc.Score("x@mailinator.com", signals, vec)
	clean := qc.Score("x@corp.io", signals, feats.Vector{})
	assert.Less(t, withPenalty.Total, clean.Total)
}

func TestScoreNeverNegative(t *testing.T) {
	qc, err := NewQualityClassifier(nil)
	require.NoError(t, err)
	vec := feats.NewVector("x")
	vec.Values["isDisposable"] = 1
	result := qc.Score("x", Signals{
		FactorDeliverability: 0,
		FactorReputation:     0,
		FactorEngagement:     0,
		FactorHygiene:        0,
		FactorRisk:           0,
	}, vec)
	assert.GreaterOrEqual(t, result.Total, 0.0)
	assert.Equal(t, "invalid", result.Tier)
}

func TestScoreClampsOutOfRangeSignals(t *testing.T) {
	qc, err := NewQualityClassifier(nil)
	require.NoError(t, err)
	result := qc.Score("x", Signals{FactorDeliverability: 7.5}, feats.Vector{})
	assert.LessOrEqual(t, result.Factors[FactorDeliverability], 1.0)
	assert.False(t, math.IsNaN(result.Total))
}
