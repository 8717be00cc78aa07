package cnf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityThresholdsValid(t *testing.T) {
	pt := PriorityThresholds{High: 0.9, Medium: 0.7, Low: 0.5}
	assert.NoError(t, pt.Validate())
}

func TestPriorityThresholdsOrderingEnforced(t *testing.T) {
	tests := []struct {
		name string
		pt   PriorityThresholds
	}{
		{"high below medium", PriorityThresholds{High: 0.6, Medium: 0.7, Low: 0.5}},
		{"medium below low", PriorityThresholds{High: 0.9, Medium: 0.4, Low: 0.5}},
		{"all equal", PriorityThresholds{High: 0.5, Medium: 0.5, Low: 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.pt.Validate())
		})
	}
}

func TestValidateAndDefaults(t *testing.T) {
	conf := &Conf{ListenAddress: "127.0.0.1"}
	ValidateAndDefaults(conf)
	assert.Equal(t, dfltServerWriteTimeoutSecs, conf.ServerWriteTimeoutSecs)
	assert.Equal(t, dfltCacheTTLSecs, conf.CacheTTLSecs)
	assert.Equal(t, dfltHistoryLimit, conf.MetricsHistoryLimit)
	assert.InDelta(t, 0.5, conf.AnomalySensitivity, 1e-9)
	assert.NoError(t, conf.Priority.Validate())
	assert.Equal(t, dfltForecastMinHistory, conf.Forecast.MinHistory)
}
