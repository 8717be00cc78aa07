package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timujinne/email-checker-sub004/cnf"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine(&cnf.Conf{})
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

func TestEngineScoresPlainAddress(t *testing.T) {
	eng := testEngine(t)
	result, err := eng.ScoreEmail("alice.smith@acme-corp.com")
	require.NoError(t, err)
	assert.Greater(t, result.Total, 50.0)
	assert.NotEmpty(t, result.Tier)
}

func TestEngineDisposablePenalized(t *testing.T) {
	eng := testEngine(t)
	good, err := eng.ScoreEmail("alice@acme-corp.com")
	require.NoError(t, err)
	bad, err := eng.ScoreEmail("alice@mailinator.com")
	require.NoError(t, err)
	assert.Less(t, bad.Total, good.Total)
}

func TestEngineServesDefaultQualityModel(t *testing.T) {
	eng := testEngine(t)
	active, err := eng.Registry.ActiveVersion("email-quality")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", active)

	pred, err := eng.Registry.Predict("email-quality", map[string]float64{
		"deliverability": 0.9,
		"reputation":     0.9,
		"engagement":     0.9,
		"hygiene":        0.9,
		"risk":           0.9,
	})
	require.NoError(t, err)
	assert.Greater(t, pred.Value, 0.0)
}

func TestEngineLoadsModelFromSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `{
			"name": "lead-propensity",
			"version": "3.1.0",
			"type": "linear",
			"accuracy": 0.87,
			"weights": {"engagement": 0.6, "fit": 0.4},
			"threshold": 0.5
		}`)
	}))
	defer srv.Close()

	eng, err := NewEngine(&cnf.Conf{ModelSourceURL: srv.URL})
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })

	active, err := eng.Registry.ActiveVersion("lead-propensity")
	require.NoError(t, err)
	assert.Equal(t, "3.1.0", active)

	pred, err := eng.Registry.Predict("lead-propensity", map[string]float64{
		"engagement": 1, "fit": 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "positive", pred.Label)
}

func TestEngineUnreachableModelSourceIsNotFatal(t *testing.T) {
	eng, err := NewEngine(&cnf.Conf{ModelSourceURL: "http://127.0.0.1:1/def"})
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })

	_, err = eng.Registry.ActiveVersion("email-quality")
	assert.NoError(t, err)
}

func TestParseCompanySize(t *testing.T) {
	size, err := parseCompanySize("250")
	require.NoError(t, err)
	assert.InDelta(t, 250, size, 1e-9)

	size, err = parseCompanySize("large")
	require.NoError(t, err)
	assert.InDelta(t, 1000, size, 1e-9)

	_, err = parseCompanySize("gigantic")
	assert.Error(t, err)
}

func TestEngineCloseWithoutStores(t *testing.T) {
	eng, err := NewEngine(&cnf.Conf{})
	require.NoError(t, err)
	assert.NoError(t, eng.Close())
}
