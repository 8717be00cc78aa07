package forecast

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dailySeries(start time.Time, values []float64) []Point {
	series := make([]Point, len(values))
	for i, v := range values {
		series[i] = Point{Time: start.AddDate(0, 0, i), Value: v}
	}
	return series
}

func flatSeries(value float64, days int) []Point {
	values := make([]float64, days)
	for i := range values {
		values[i] = value
	}
	return dailySeries(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), values)
}

func TestFlatSeriesStability(t *testing.T) {
	fc := NewForecaster(ForecasterOptions{})
	series := flatSeries(0.90, 14)
	for _, algo := range []Algorithm{AlgoTrend, AlgoExpSmoothing, AlgoSeasonal, AlgoEnsemble} {
		t.Run(algo.String(), func(t *testing.T) {
			result, err := fc.Forecast("list-1", series, 7, algo)
			require.NoError(t, err)
			require.Len(t, result.Steps, 7)
			for i, step := range result.Steps {
				assert.InDelta(t, 0.90, step.Forecast, 0.05,
					fmt.Sprintf("step %d", i))
			}
		})
	}
}

func TestInsufficientHistory(t *testing.T) {
	fc := NewForecaster(ForecasterOptions{MinHistory: 7})
	_, err := fc.Forecast("list-1", flatSeries(0.9, 3), 5, AlgoTrend)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestTrendExtrapolationFollowsDrift(t *testing.T) {
	values := make([]float64, 14)
	for i := range values {
		values[i] = 0.5 + 0.01*float64(i)
	}
	fc := NewForecaster(ForecasterOptions{})
	result, err := fc.Forecast("list-up", dailySeries(time.Now(), values), 5, AlgoTrend)
	require.NoError(t, err)
	last := values[len(values)-1]
	for i, step := range result.Steps {
		assert.InDelta(t, last+0.01*float64(i+1), step.Forecast, 1e-9)
	}
}

func TestEnsembleCarriesComponents(t *testing.T) {
	fc := NewForecaster(ForecasterOptions{})
	result, err := fc.Forecast("list-1", flatSeries(0.8, 14), 3, AlgoEnsemble)
	require.NoError(t, err)
	for _, step := range result.Steps {
		assert.Contains(t, step.Components, "trendExtrapolation")
		assert.Contains(t, step.Components, "exponentialSmoothing")
		assert.Contains(t, step.Components, "seasonalDecomposition")
	}
}

func TestConfidenceBands(t *testing.T) {
	values := []float64{0.8, 0.9, 0.7, 0.85, 0.75, 0.9, 0.8, 0.85, 0.7, 0.9, 0.8, 0.75, 0.85, 0.8}
	fc := NewForecaster(ForecasterOptions{Confidence: 0.95})
	result, err := fc.Forecast("list-1", dailySeries(time.Now(), values), 4, AlgoExpSmoothing)
	require.NoError(t, err)
	for _, step := range result.Steps {
		assert.Less(t, step.Lower, step.Forecast)
		assert.Greater(t, step.Upper, step.Forecast)
	}
}

func TestLatestForecastSuperseded(t *testing.T) {
	fc := NewForecaster(ForecasterOptions{})
	_, err := fc.Forecast("list-1", flatSeries(0.9, 14), 3, AlgoTrend)
	require.NoError(t, err)
	_, err = fc.Forecast("list-1", flatSeries(0.5, 14), 3, AlgoTrend)
	require.NoError(t, err)
	latest, ok := fc.Latest("list-1")
	require.True(t, ok)
	assert.InDelta(t, 0.5, latest.Steps[0].Forecast, 0.05)
}

func TestAutoSelection(t *testing.T) {
	fc := NewForecaster(ForecasterOptions{})
	result, err := fc.Forecast("flat", flatSeries(0.9, 14), 3, AlgoAuto)
	require.NoError(t, err)
	assert.Equal(t, AlgoExpSmoothing.String(), result.Algorithm)
}

func TestParseForecastAlgorithm(t *testing.T) {
	algo, err := ParseAlgorithm("ensemble")
	require.NoError(t, err)
	assert.Equal(t, AlgoEnsemble, algo)
	_, err = ParseAlgorithm("prophet")
	assert.Error(t, err)
}

// ----

func TestABTestSignificance(t *testing.T) {
	result := EvaluateABTest(50, 80, 1000)
	assert.True(t, result.Significant)
	assert.Equal(t, "treatment", result.Winner)
	assert.Greater(t, result.ZScore, 1.96)
}

func TestABTestInconclusive(t *testing.T) {
	result := EvaluateABTest(50, 55, 1000)
	assert.False(t, result.Significant)
	assert.Empty(t, result.Winner)
	assert.Contains(t, result.Recommendation, "continue testing")
}

func TestABTestIdenticalArms(t *testing.T) {
	result := EvaluateABTest(0, 0, 1000)
	assert.False(t, result.Significant)
}

// ----

func TestCampaignPredictionBaseline(t *testing.T) {
	pred := PredictCampaign(CampaignContent{
		Industry:   "software",
		Recipients: 10000,
	})
	assert.InDelta(t, 0.22, pred.Rates.OpenRate, 1e-9)
	assert.Equal(t, 2200, pred.ExpectedOpens)
	assert.Empty(t, pred.Adjustments)
}

func TestCampaignContentLift(t *testing.T) {
	pred := PredictCampaign(CampaignContent{
		Industry:      "software",
		SubjectLength: 45,
		Personalized:  true,
		CTACount:      1,
		ImageCount:    2,
		Segmented:     true,
		Recipients:    10000,
	})
	// 1.1 * 1.2 * 1.1 * 1.05 * 1.15
	assert.InDelta(t, 1.753, pred.ContentMultiplier, 0.001)
	assert.Len(t, pred.Adjustments, 5)
	assert.Greater(t, pred.Rates.OpenRate, 0.22)
}

func TestCampaignContentPenalties(t *testing.T) {
	pred := PredictCampaign(CampaignContent{
		Industry:      "ecommerce",
		SubjectLength: 120,
		CTACount:      6,
		ImageCount:    9,
		Recipients:    5000,
	})
	assert.Less(t, pred.ContentMultiplier, 1.0)
}

func TestCampaignROI(t *testing.T) {
	pred := PredictCampaign(CampaignContent{
		Industry:       "software",
		Recipients:     10000,
		RevenuePerConv: 500,
		CostPerEmail:   0.01,
	})
	// 120 conversions * 500 = 60000 revenue against 100 cost
	assert.Equal(t, 120, pred.ExpectedConvs)
	assert.InDelta(t, 599, pred.ROI, 0.01)
}

func TestCampaignUnknownIndustryUsesDefault(t *testing.T) {
	pred := PredictCampaign(CampaignContent{Industry: "zeppelin-repair", Recipients: 1000})
	assert.InDelta(t, defaultBenchmark.OpenRate, pred.Rates.OpenRate, 1e-9)
}

// ----

func TestDecayTrackerPredictsCrossing(t *testing.T) {
	dt := NewDecayTracker(3, 0.8)
	// 0.95 dropping 0.005/day: reaches 0.8 about 30 days after the
	// last observation
	values := make([]float64, 10)
	for i := range values {
		values[i] = 0.95 - 0.005*float64(i)
	}
	fc, err := dt.Track("list-a", dailySeries(time.Now().AddDate(0, 0, -9), values))
	require.NoError(t, err)
	assert.InDelta(t, 0.905, fc.CurrentRate, 0.001)
	assert.InDelta(t, 0.005, fc.DailyDecay, 0.0001)
	require.NotNil(t, fc.CrossingDate)
	assert.InDelta(t, 21, fc.DaysRemaining, 1)
	assert.Equal(t, "monthly", fc.Revalidation)
}

func TestDecayTrackerStableList(t *testing.T) {
	dt := NewDecayTracker(3, 0.8)
	fc, err := dt.Track("list-b", flatSeries(0.95, 10))
	require.NoError(t, err)
	assert.Nil(t, fc.CrossingDate)
	assert.Equal(t, "semiannual", fc.Revalidation)
}

func TestDecayTrackerRoundingNoise(t *testing.T) {
	dt := NewDecayTracker(3, 0.8)
	values := []float64{0.93, 0.93, 0.93, 0.93, 0.93, 0.93, 0.93}
	values[3] += 1e-12
	fc, err := dt.Track("list-noise", dailySeries(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), values))
	require.NoError(t, err)
	assert.Zero(t, fc.DailyDecay)
	assert.Nil(t, fc.CrossingDate)
}

func TestDecayTrackerAlreadyUnhealthy(t *testing.T) {
	dt := NewDecayTracker(3, 0.8)
	fc, err := dt.Track("list-c", flatSeries(0.6, 5))
	require.NoError(t, err)
	assert.Equal(t, 0, fc.DaysRemaining)
	assert.Equal(t, "immediate", fc.Revalidation)
}

func TestDecayTrackerInsufficientHistory(t *testing.T) {
	dt := NewDecayTracker(5, 0.8)
	_, err := dt.Track("list-d", flatSeries(0.9, 2))
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestGetCriticalLists(t *testing.T) {
	dt := NewDecayTracker(3, 0.8)
	_, err := dt.Track("healthy", flatSeries(0.95, 10))
	require.NoError(t, err)
	_, err = dt.Track("dying", flatSeries(0.6, 10))
	require.NoError(t, err)

	fast := make([]float64, 10)
	for i := range fast {
		fast[i] = 0.92 - 0.01*float64(i)
	}
	_, err = dt.Track("fading", dailySeries(time.Now().AddDate(0, 0, -9), fast))
	require.NoError(t, err)

	critical := dt.GetCriticalLists(30)
	require.Len(t, critical, 2)
	assert.Equal(t, "dying", critical[0].ListID)
	assert.Equal(t, "fading", critical[1].ListID)
}

func TestDecayForecastSuperseded(t *testing.T) {
	dt := NewDecayTracker(3, 0.8)
	_, err := dt.Track("list-a", flatSeries(0.95, 5))
	require.NoError(t, err)
	_, err = dt.Track("list-a", flatSeries(0.6, 5))
	require.NoError(t, err)
	fc, ok := dt.Forecast("list-a")
	require.True(t, ok)
	assert.Equal(t, "immediate", fc.Revalidation)
}
