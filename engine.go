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

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/timujinne/email-checker-sub004/anomaly"
	"github.com/timujinne/email-checker-sub004/archive"
	"github.com/timujinne/email-checker-sub004/cnf"
	"github.com/timujinne/email-checker-sub004/feats"
	"github.com/timujinne/email-checker-sub004/forecast"
	"github.com/timujinne/email-checker-sub004/metrics"
	"github.com/timujinne/email-checker-sub004/registry"
	"github.com/timujinne/email-checker-sub004/scoring"
	"github.com/timujinne/email-checker-sub004/store"
)

// Engine bundles every analytic component behind one façade so the
// HTTP layer, the CLI actions and the REPL share a single wiring.
type Engine struct {
	Pipeline   *feats.Pipeline
	Registry   *registry.Registry
	Tracker    *metrics.Tracker
	Notifier   *metrics.Notifier
	Quality    *scoring.QualityClassifier
	Leads      *scoring.LeadScorer
	Anomalies  *anomaly.Engine
	Forecaster *forecast.Forecaster
	Decay      *forecast.DecayTracker

	modelStore *store.DB
	archive    *archive.Archive
}

func NewEngine(conf *cnf.Conf) (*Engine, error) {
	notifier := metrics.NewNotifier(0)
	tracker := metrics.NewTracker(metrics.TrackerOptions{
		HistoryLimit:         conf.MetricsHistoryLimit,
		DegradationThreshold: conf.DegradationThreshold,
		Alerts:               notifier,
	})

	quality, err := scoring.NewQualityClassifier(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init engine: %w", err)
	}

	anomalies := anomaly.NewEngine()
	anomalies.Sensitivity = conf.AnomalySensitivity

	eng := &Engine{
		Pipeline:  feats.NewPipeline(),
		Tracker:   tracker,
		Notifier:  notifier,
		Quality:   quality,
		Leads:     scoring.NewLeadScorer(),
		Anomalies: anomalies,
		Forecaster: forecast.NewForecaster(forecast.ForecasterOptions{
			MinHistory: conf.Forecast.MinHistory,
			Confidence: conf.Forecast.Confidence,
		}),
		Decay: forecast.NewDecayTracker(
			conf.Forecast.MinHistory, conf.Forecast.ListHealthThreshold),
	}

	regOpts := registry.Options{
		CacheMaxEntries: conf.CacheMaxEntries,
		CacheTTL:        time.Duration(conf.CacheTTLSecs) * time.Second,
		Alerts:          notifier,
	}
	if conf.ModelStorePath != "" {
		eng.modelStore, err = store.Open(conf.ModelStorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to init engine: %w", err)
		}
		regOpts.Persister = eng.modelStore
	}
	if conf.MetricsArchivePath != "" {
		eng.archive, err = archive.NewArchive(conf.MetricsArchivePath)
		if err != nil {
			return nil, fmt.Errorf("failed to init engine: %w", err)
		}
		if err := eng.archive.Init(); err != nil {
			return nil, fmt.Errorf("failed to init engine: %w", err)
		}
		tracker.AttachArchive(eng.archive)
		regOpts.ABArchiver = eng.archive
	}
	eng.Registry = registry.New(regOpts)
	if eng.modelStore != nil {
		restored, err := eng.Registry.RestoreDefinitions()
		if err != nil {
			log.Error().Err(err).Msg("failed to restore stored model definitions")

		} else if restored > 0 {
			log.Info().Int("models", restored).Msg("restored stored model definitions")
		}
	}

	// the default quality model is servable through the registry
	// like any externally loaded one
	qm := scoring.NewQualityModel(quality)
	if err := eng.Registry.Register(
		"email-quality",
		qm,
		registry.Metadata{Description: "weighted multi-factor email quality classifier"},
		"1.0.0",
	); err != nil {
		return nil, fmt.Errorf("failed to init engine: %w", err)
	}

	// an unreachable model source must not prevent startup - the
	// engine still serves its built-in and restored models
	if conf.ModelSourceURL != "" {
		loader := registry.NewLoader(0)
		def, err := loader.FetchDefinition(context.Background(), conf.ModelSourceURL)
		if err != nil {
			log.Error().Err(err).Str("url", conf.ModelSourceURL).Msg("failed to load model definition")

		} else if err := eng.Registry.RegisterDefinition(def); err != nil {
			log.Error().Err(err).Str("model", def.Name).Msg("failed to register loaded model definition")

		} else {
			log.Info().
				Str("model", def.Name).
				Str("version", def.Version).
				Msg("registered model definition from external source")
		}
	}
	return eng, nil
}

// Close releases the durable stores. Safe to call on a partially
// initialized engine.
func (eng *Engine) Close() error {
	var firstErr error
	if err := eng.modelStore.Close(); err != nil {
		firstErr = err
	}
	if err := eng.archive.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// ScoreEmail extracts features from a single address and runs the
// quality classifier over signals derived from them.
func (eng *Engine) ScoreEmail(address string) (scoring.ScoreResult, error) {
	vec, err := eng.Pipeline.ExtractFeatures(
		feats.EntityEmail, map[string]any{"email": address})
	if err != nil {
		return scoring.ScoreResult{}, fmt.Errorf("failed to score email: %w", err)
	}
	return eng.Quality.Score(address, emailSignals(vec), vec), nil
}

// emailSignals derives the classifier's input signals from the
// extracted feature vector. Reputation and engagement need external
// data sources and stay at the neutral baseline when absent.
func emailSignals(vec feats.Vector) scoring.Signals {
	signals := scoring.Signals{}

	deliverability := 0.9
	if v, _ := vec.Get("isDisposable"); v == 1 {
		deliverability = 0.2
	}
	if v, _ := vec.Get("consonantRun"); v == 1 {
		deliverability -= 0.2
	}
	signals[scoring.FactorDeliverability] = deliverability

	hygiene := 1.0
	if v, _ := vec.Get("digitRatio"); v > 0.3 {
		hygiene -= 0.3
	}
	if v, _ := vec.Get("specialRatio"); v > 0.2 {
		hygiene -= 0.2
	}
	if v, _ := vec.Get("isRoleAccount"); v == 1 {
		hygiene -= 0.3
	}
	signals[scoring.FactorHygiene] = hygiene

	risk := 0.9
	if v, _ := vec.Get("isDisposable"); v == 1 {
		risk = 0.1
	}
	if v, _ := vec.Get("hasNonASCII"); v == 1 {
		risk -= 0.3
	}
	signals[scoring.FactorRisk] = risk

	return signals
}
