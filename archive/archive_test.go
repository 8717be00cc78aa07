package archive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timujinne/email-checker-sub004/metrics"
	"github.com/timujinne/email-checker-sub004/registry"
)

func testArchive(t *testing.T) *Archive {
	t.Helper()
	arch, err := NewArchive(filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	require.NoError(t, arch.Init())
	t.Cleanup(func() { arch.Close() })
	return arch
}

func TestInitIsIdempotent(t *testing.T) {
	arch := testArchive(t)
	assert.NoError(t, arch.Init())
}

func TestInsertAndGetSnapshots(t *testing.T) {
	arch := testArchive(t)
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := arch.InsertSnapshot(metrics.Snapshot{
			Model:       "email-quality",
			Type:        metrics.MetricClassification,
			Values:      map[string]float64{"accuracy": 0.9 - 0.01*float64(i)},
			SampleCount: 100,
			Created:     base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	snaps, err := arch.GetSnapshots("email-quality", 0)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.InDelta(t, 0.9, snaps[0].Values["accuracy"], 1e-9)
	assert.InDelta(t, 0.88, snaps[2].Values["accuracy"], 1e-9)
	assert.Equal(t, metrics.MetricClassification, snaps[0].Type)
	assert.True(t, snaps[0].Created.Before(snaps[2].Created))
}

func TestGetSnapshotsLimit(t *testing.T) {
	arch := testArchive(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, arch.InsertSnapshot(metrics.Snapshot{
			Model:   "m",
			Type:    metrics.MetricRegression,
			Values:  map[string]float64{"r2": 0.8},
			Created: time.Now(),
		}))
	}
	snaps, err := arch.GetSnapshots("m", 2)
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}

func TestGetSnapshotsUnknownModel(t *testing.T) {
	arch := testArchive(t)
	snaps, err := arch.GetSnapshots("nope", 0)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestABOutcomeRoundTrip(t *testing.T) {
	arch := testArchive(t)
	err := arch.InsertABOutcome(registry.ABOutcome{
		Model:     "email-quality",
		VersionA:  "1.0.0",
		VersionB:  "2.0.0",
		Winner:    "2.0.0",
		AccuracyA: 0.5,
		AccuracyB: 0.8,
		Created:   time.Now(),
	})
	require.NoError(t, err)

	outcomes, err := arch.GetABOutcomes("email-quality")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "2.0.0", outcomes[0].Winner)
	assert.InDelta(t, 0.8, outcomes[0].AccuracyB, 1e-9)
}
