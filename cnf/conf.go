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

package cnf

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/rs/zerolog/log"
)

const (
	dfltServerWriteTimeoutSecs = 30
	dfltTimeZone               = "Europe/Prague"
	dfltCacheTTLSecs           = 300
	dfltCacheMaxEntries        = 10000
	dfltHistoryLimit           = 50
	dfltDegradationThreshold   = 0.05
	dfltForecastMinHistory     = 7
	dfltForecastConfidence     = 0.95
	dfltListHealthThreshold    = 0.8
)

// PriorityThresholds splits alert scores into three tiers. The
// values must be strictly descending; anything else is rejected.
type PriorityThresholds struct {
	High   float64 `json:"high"`
	Medium float64 `json:"medium"`
	Low    float64 `json:"low"`
}

func (pt PriorityThresholds) Validate() error {
	if !(pt.High > pt.Medium && pt.Medium > pt.Low) {
		return fmt.Errorf(
			"invalid priority thresholds: must satisfy high (%.2f) > medium (%.2f) > low (%.2f)",
			pt.High, pt.Medium, pt.Low)
	}
	return nil
}

type ForecastConf struct {
	MinHistory          int     `json:"minHistory"`
	Confidence          float64 `json:"confidence"`
	ListHealthThreshold float64 `json:"listHealthThreshold"`
}

type Conf struct {
	srcPath                string
	Logging                logging.LoggingConf `json:"logging"`
	ListenAddress          string              `json:"listenAddress"`
	PublicURL              string              `json:"publicUrl"`
	ListenPort             int                 `json:"listenPort"`
	ServerReadTimeoutSecs  int                 `json:"serverReadTimeoutSecs"`
	ServerWriteTimeoutSecs int                 `json:"serverWriteTimeoutSecs"`
	CorsAllowedOrigins     []string            `json:"corsAllowedOrigins"`
	TimeZone               string              `json:"timeZone"`

	// ModelStorePath is the badger directory holding durable model
	// definitions; empty disables persistence.
	ModelStorePath string `json:"modelStorePath"`

	// MetricsArchivePath is the sqlite file metric snapshots are
	// archived to; empty disables the archive.
	MetricsArchivePath string `json:"metricsArchivePath"`

	ModelSourceURL string `json:"modelSourceUrl"`

	CacheTTLSecs    int `json:"cacheTtlSecs"`
	CacheMaxEntries int `json:"cacheMaxEntries"`

	MetricsHistoryLimit  int     `json:"metricsHistoryLimit"`
	DegradationThreshold float64 `json:"degradationThreshold"`

	AnomalySensitivity float64            `json:"anomalySensitivity"`
	Priority           PriorityThresholds `json:"priorityThresholds"`

	Forecast ForecastConf `json:"forecast"`
}

func (conf *Conf) GetSourcePath() string {
	return conf.srcPath
}

func LoadConfig(path string) *Conf {
	if path == "" {
		log.Fatal().Msg("Cannot load config - path not specified")
	}
	rawData, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot load config")
	}
	var conf Conf
	conf.srcPath = path
	err = json.Unmarshal(rawData, &conf)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot load config")
	}
	return &conf
}

func ValidateAndDefaults(conf *Conf) {
	if conf.ServerWriteTimeoutSecs == 0 {
		conf.ServerWriteTimeoutSecs = dfltServerWriteTimeoutSecs
		log.Warn().Msgf(
			"serverWriteTimeoutSecs not specified, using default: %d",
			dfltServerWriteTimeoutSecs,
		)
	}
	if conf.PublicURL == "" {
		conf.PublicURL = fmt.Sprintf("http://%s", conf.ListenAddress)
		log.Warn().Str("address", conf.PublicURL).Msg("publicUrl not set, using listenAddress")
	}

	if conf.TimeZone == "" {
		conf.TimeZone = dfltTimeZone
		log.Warn().
			Str("timeZone", dfltTimeZone).
			Msg("time zone not specified, using default")
	}
	if _, err := time.LoadLocation(conf.TimeZone); err != nil {
		log.Fatal().Err(err).Msg("invalid time zone")
	}

	if conf.CacheTTLSecs == 0 {
		conf.CacheTTLSecs = dfltCacheTTLSecs
		log.Warn().Msgf("cacheTtlSecs not specified, using default: %d", dfltCacheTTLSecs)
	}
	if conf.CacheMaxEntries == 0 {
		conf.CacheMaxEntries = dfltCacheMaxEntries
	}
	if conf.MetricsHistoryLimit == 0 {
		conf.MetricsHistoryLimit = dfltHistoryLimit
	}
	if conf.DegradationThreshold == 0 {
		conf.DegradationThreshold = dfltDegradationThreshold
	}
	if conf.AnomalySensitivity < 0 || conf.AnomalySensitivity >= 1 {
		log.Fatal().
			Float64("sensitivity", conf.AnomalySensitivity).
			Msg("anomaly sensitivity must be in [0, 1)")
	}
	if conf.AnomalySensitivity == 0 {
		conf.AnomalySensitivity = 0.5
	}

	if conf.Priority == (PriorityThresholds{}) {
		conf.Priority = PriorityThresholds{High: 0.9, Medium: 0.7, Low: 0.5}
		log.Warn().Msg("priorityThresholds not specified, using defaults 0.9/0.7/0.5")
	}
	if err := conf.Priority.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if conf.Forecast.MinHistory == 0 {
		conf.Forecast.MinHistory = dfltForecastMinHistory
	}
	if conf.Forecast.Confidence == 0 {
		conf.Forecast.Confidence = dfltForecastConfidence
	}
	if conf.Forecast.ListHealthThreshold == 0 {
		conf.Forecast.ListHealthThreshold = dfltListHealthThreshold
	}
}
