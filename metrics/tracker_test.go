package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackClassificationShapeMismatch(t *testing.T) {
	tr := NewTracker(TrackerOptions{})
	_, err := tr.TrackClassification("m", []float64{1, 0}, []float64{1})
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestTrackClassificationMetrics(t *testing.T) {
	tr := NewTracker(TrackerOptions{})
	snap, err := tr.TrackClassification(
		"m",
		[]float64{1, 1, 0, 0},
		[]float64{1, 0, 0, 1},
	)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, snap.Values["accuracy"], 1e-9)
	assert.InDelta(t, 0.5, snap.Values["precision"], 1e-9)
	assert.InDelta(t, 0.5, snap.Values["recall"], 1e-9)
	assert.InDelta(t, 0.5, snap.Values["f1"], 1e-9)
}

func TestTrackRegressionMetrics(t *testing.T) {
	tr := NewTracker(TrackerOptions{})
	snap, err := tr.TrackRegression(
		"m",
		[]float64{1, 2, 3},
		[]float64{1, 2, 3},
	)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, snap.Values["mse"], 1e-9)
	assert.InDelta(t, 1.0, snap.Values["r2"], 1e-9)
}

func TestHistoryBounded(t *testing.T) {
	tr := NewTracker(TrackerOptions{HistoryLimit: 3})
	for i := 0; i < 10; i++ {
		_, err := tr.TrackClassification("m", []float64{1}, []float64{1})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, len(tr.History("m")))
}

func TestDegradationAlert(t *testing.T) {
	notifier := NewNotifier(10)
	tr := NewTracker(TrackerOptions{Alerts: notifier, DegradationThreshold: 0.1})
	_, err := tr.TrackClassification(
		"m",
		[]float64{1, 1, 1, 1},
		[]float64{1, 1, 1, 1},
	)
	require.NoError(t, err)
	_, err = tr.TrackClassification(
		"m",
		[]float64{1, 1, 1, 1},
		[]float64{0, 0, 0, 1},
	)
	require.NoError(t, err)
	alerts := notifier.Recent(10)
	var found bool
	for _, a := range alerts {
		if a.Kind == AlertDegradation && a.Model == "m" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestKSStatisticDisjoint(t *testing.T) {
	a := make([]float64, 50)
	b := make([]float64, 50)
	for i := range a {
		a[i] = 0.9
		b[i] = 0.5
	}
	assert.GreaterOrEqual(t, KSStatistic(a, b), 0.99)
}

func TestDetectDriftHighSeverity(t *testing.T) {
	notifier := NewNotifier(10)
	tr := NewTracker(TrackerOptions{Alerts: notifier})
	prev := make([]float64, 100)
	curr := make([]float64, 100)
	for i := range prev {
		prev[i] = 0.9
		curr[i] = 0.5
	}
	event := tr.DetectDrift("m", prev, curr)
	require.NotNil(t, event)
	assert.GreaterOrEqual(t, event.Statistic, 0.3)
	assert.Equal(t, "high", event.Severity)
	assert.Equal(t, 1, len(tr.DriftEvents("m")))

	var alerted bool
	for _, a := range notifier.Recent(10) {
		if a.Kind == AlertDrift {
			alerted = true
		}
	}
	assert.True(t, alerted)
}

func TestDetectDriftNoDrift(t *testing.T) {
	tr := NewTracker(TrackerOptions{})
	sample := []float64{0.5, 0.5, 0.5, 0.5}
	assert.Nil(t, tr.DetectDrift("m", sample, sample))
}

func TestKSStatisticIdenticalSamples(t *testing.T) {
	sample := []float64{0.5, 0.5, 0.5, 0.5}
	assert.InDelta(t, 0, KSStatistic(sample, sample), 1e-9)

	mixed := []float64{0.1, 0.4, 0.4, 0.9}
	assert.InDelta(t, 0, KSStatistic(mixed, mixed), 1e-9)
}

func TestKSStatisticSharedValues(t *testing.T) {
	// the same binary 40/60 split on both sides is zero drift even
	// though every value is tied across samples
	a := []float64{0, 0, 1, 1, 1}
	b := []float64{0, 0, 0, 0, 1, 1, 1, 1, 1, 1}
	assert.InDelta(t, 0, KSStatistic(a, b), 1e-9)

	// shifting the split to 80/20 moves the CDF gap to 0.4
	c := []float64{0, 0, 0, 0, 1}
	assert.InDelta(t, 0.4, KSStatistic(a, c), 1e-9)
}

func TestPruneDriftEvents(t *testing.T) {
	tr := NewTracker(TrackerOptions{})
	prev := make([]float64, 30)
	curr := make([]float64, 30)
	for i := range prev {
		prev[i] = 1
		curr[i] = 0
	}
	tr.DetectDrift("m", prev, curr)
	assert.Equal(t, 0, tr.PruneDriftEvents(time.Hour))
	assert.Equal(t, 1, tr.PruneDriftEvents(0))
	assert.Equal(t, 0, len(tr.DriftEvents("m")))
}

func TestGenerateReport(t *testing.T) {
	tr := NewTracker(TrackerOptions{})
	_, err := tr.TrackClassification("m", []float64{1, 1, 1, 1}, []float64{1, 1, 1, 1})
	require.NoError(t, err)
	tr.SetFeatureImportance("m", map[string]float64{"a": 0.7, "b": 0.3})
	report, err := tr.GenerateReport("m")
	require.NoError(t, err)
	assert.Equal(t, 100, report.HealthScore)
	assert.Equal(t, "stable", report.Trend)
	assert.Equal(t, "a", report.TopFeatures[0].Feature)
}

func TestGenerateReportUnknownModel(t *testing.T) {
	tr := NewTracker(TrackerOptions{})
	_, err := tr.GenerateReport("nope")
	assert.True(t, errors.Is(err, ErrNoHistory))
}

func TestGenerateReportDegradedHealth(t *testing.T) {
	tr := NewTracker(TrackerOptions{})
	_, err := tr.TrackClassification(
		"m",
		[]float64{1, 1, 1, 1},
		[]float64{0, 0, 0, 1},
	)
	require.NoError(t, err)
	report, err := tr.GenerateReport("m")
	require.NoError(t, err)
	assert.Less(t, report.HealthScore, 100)
}

func TestNotifierBounded(t *testing.T) {
	n := NewNotifier(3)
	for i := 0; i < 10; i++ {
		n.Publish(Alert{Kind: AlertDataQuality, Message: "x"})
	}
	assert.Equal(t, 3, len(n.Recent(0)))
}

func TestNotifierSubscribe(t *testing.T) {
	n := NewNotifier(5)
	ch := n.Subscribe(2)
	n.Publish(Alert{Kind: AlertDrift, Model: "m", Message: "drift"})
	select {
	case a := <-ch:
		assert.Equal(t, AlertDrift, a.Kind)
	default:
		t.Fatal("expected an alert on the subscription channel")
	}
}
