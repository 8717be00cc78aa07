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
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/czcorpus/cnc-gokit/unireq"
	"github.com/czcorpus/cnc-gokit/uniresp"
	"github.com/gin-gonic/gin"

	"github.com/timujinne/email-checker-sub004/anomaly"
	"github.com/timujinne/email-checker-sub004/feats"
	"github.com/timujinne/email-checker-sub004/forecast"
	"github.com/timujinne/email-checker-sub004/metrics"
	"github.com/timujinne/email-checker-sub004/registry"
	"github.com/timujinne/email-checker-sub004/scoring"
)

type Actions struct {
	eng *Engine
}

func (a *Actions) ScoreEmail(ctx *gin.Context) {
	address := ctx.Query("address")
	if address == "" {
		uniresp.RespondWithErrorJSON(
			ctx, fmt.Errorf("missing `address` argument"), http.StatusBadRequest)
		return
	}
	result, err := a.eng.ScoreEmail(address)
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	uniresp.WriteJSONResponse(ctx.Writer, result)
}

type scoreLeadBody struct {
	Profile string       `json:"profile"`
	Lead    scoring.Lead `json:"lead"`
}

func (a *Actions) ScoreLead(ctx *gin.Context) {
	var data scoreLeadBody
	if err := ctx.BindJSON(&data); err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusBadRequest)
		return
	}
	result, err := a.eng.Leads.Score(data.Profile, data.Lead)
	if err != nil {
		if errors.Is(err, scoring.ErrProfileNotFound) {
			uniresp.RespondWithErrorJSON(ctx, err, http.StatusNotFound)
			return
		}
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	uniresp.WriteJSONResponse(ctx.Writer, result)
}

func (a *Actions) Predict(ctx *gin.Context) {
	var input map[string]float64
	if err := ctx.BindJSON(&input); err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusBadRequest)
		return
	}
	prediction, err := a.eng.Registry.Predict(ctx.Param("model"), input)
	if err != nil {
		if errors.Is(err, registry.ErrModelNotFound) {
			uniresp.RespondWithErrorJSON(ctx, err, http.StatusNotFound)
			return
		}
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	uniresp.WriteJSONResponse(ctx.Writer, prediction)
}

func (a *Actions) SwitchVersion(ctx *gin.Context) {
	err := a.eng.Registry.SwitchVersion(ctx.Param("model"), ctx.Param("version"))
	if err != nil {
		if errors.Is(err, registry.ErrModelNotFound) || errors.Is(err, registry.ErrVersionNotFound) {
			uniresp.RespondWithErrorJSON(ctx, err, http.StatusNotFound)
			return
		}
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	active, _ := a.eng.Registry.ActiveVersion(ctx.Param("model"))
	uniresp.WriteJSONResponse(ctx.Writer, map[string]string{"activeVersion": active})
}

func (a *Actions) Rollback(ctx *gin.Context) {
	err := a.eng.Registry.Rollback(ctx.Param("model"))
	if err != nil {
		if errors.Is(err, registry.ErrModelNotFound) || errors.Is(err, registry.ErrVersionNotFound) {
			uniresp.RespondWithErrorJSON(ctx, err, http.StatusNotFound)
			return
		}
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	active, _ := a.eng.Registry.ActiveVersion(ctx.Param("model"))
	uniresp.WriteJSONResponse(ctx.Writer, map[string]string{"activeVersion": active})
}

type anomalyBody struct {
	EntityType string           `json:"entityType"`
	Records    []map[string]any `json:"records"`
}

func (a *Actions) DetectAnomalies(ctx *gin.Context) {
	algo, err := anomaly.ParseAlgorithm(
		ctx.DefaultQuery("algorithm", "isolationForest"))
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusBadRequest)
		return
	}
	var data anomalyBody
	if err := ctx.BindJSON(&data); err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusBadRequest)
		return
	}
	if data.EntityType == "" {
		data.EntityType = feats.EntityEmail
	}
	vectors := make([]feats.Vector, 0, len(data.Records))
	for _, rec := range data.Records {
		vec, err := a.eng.Pipeline.ExtractFeatures(data.EntityType, rec)
		if err != nil {
			uniresp.RespondWithErrorJSON(ctx, err, http.StatusUnprocessableEntity)
			return
		}
		vectors = append(vectors, vec)
	}
	report, err := a.eng.Anomalies.Detect(vectors, algo)
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	uniresp.WriteJSONResponse(ctx.Writer, report)
}

func (a *Actions) Forecast(ctx *gin.Context) {
	algo, err := forecast.ParseAlgorithm(ctx.Query("algorithm"))
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusBadRequest)
		return
	}
	horizon, ok := unireq.GetURLIntArgOrFail(ctx, "horizon", 7)
	if !ok {
		return
	}
	var series []forecast.Point
	if err := ctx.BindJSON(&series); err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusBadRequest)
		return
	}
	result, err := a.eng.Forecaster.Forecast(ctx.Param("entityId"), series, horizon, algo)
	if err != nil {
		if errors.Is(err, forecast.ErrInsufficientHistory) {
			uniresp.RespondWithErrorJSON(ctx, err, http.StatusUnprocessableEntity)
			return
		}
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	uniresp.WriteJSONResponse(ctx.Writer, result)
}

func (a *Actions) TrackListDecay(ctx *gin.Context) {
	var series []forecast.Point
	if err := ctx.BindJSON(&series); err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusBadRequest)
		return
	}
	fc, err := a.eng.Decay.Track(ctx.Param("listId"), series)
	if err != nil {
		if errors.Is(err, forecast.ErrInsufficientHistory) {
			uniresp.RespondWithErrorJSON(ctx, err, http.StatusUnprocessableEntity)
			return
		}
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	uniresp.WriteJSONResponse(ctx.Writer, fc)
}

func (a *Actions) CriticalLists(ctx *gin.Context) {
	withinDays, ok := unireq.GetURLIntArgOrFail(ctx, "withinDays", 30)
	if !ok {
		return
	}
	uniresp.WriteJSONResponse(ctx.Writer, a.eng.Decay.GetCriticalLists(withinDays))
}

func (a *Actions) PredictCampaign(ctx *gin.Context) {
	var content forecast.CampaignContent
	if err := ctx.BindJSON(&content); err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusBadRequest)
		return
	}
	uniresp.WriteJSONResponse(ctx.Writer, forecast.PredictCampaign(content))
}

func (a *Actions) EvaluateABTest(ctx *gin.Context) {
	control, ok := unireq.GetURLIntArgOrFail(ctx, "control", 0)
	if !ok {
		return
	}
	treatment, ok := unireq.GetURLIntArgOrFail(ctx, "treatment", 0)
	if !ok {
		return
	}
	sampleSize, ok := unireq.GetURLIntArgOrFail(ctx, "sampleSize", 0)
	if !ok {
		return
	}
	if sampleSize <= 0 {
		uniresp.RespondWithErrorJSON(
			ctx, fmt.Errorf("missing or invalid `sampleSize` argument"), http.StatusBadRequest)
		return
	}
	uniresp.WriteJSONResponse(
		ctx.Writer, forecast.EvaluateABTest(control, treatment, sampleSize))
}

func (a *Actions) ABOutcomes(ctx *gin.Context) {
	if a.eng.archive == nil {
		uniresp.RespondWithErrorJSON(
			ctx, fmt.Errorf("no metrics archive configured"), http.StatusNotFound)
		return
	}
	outcomes, err := a.eng.archive.GetABOutcomes(ctx.Param("model"))
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	uniresp.WriteJSONResponse(ctx.Writer, map[string]any{"outcomes": outcomes})
}

func (a *Actions) MetricsReport(ctx *gin.Context) {
	report, err := a.eng.Tracker.GenerateReport(ctx.Param("model"))
	if err != nil {
		if errors.Is(err, metrics.ErrNoHistory) {
			uniresp.RespondWithErrorJSON(ctx, err, http.StatusNotFound)
			return
		}
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	uniresp.WriteJSONResponse(ctx.Writer, report)
}

func (a *Actions) Statistics(ctx *gin.Context) {
	uniresp.WriteJSONResponse(ctx.Writer, a.eng.Registry.GetStatistics())
}

func (a *Actions) Predictions(ctx *gin.Context) {
	uniresp.WriteJSONResponse(
		ctx.Writer,
		map[string]any{
			"generated":   time.Now(),
			"predictions": a.eng.Registry.GetAllPredictions(),
		})
}

func (a *Actions) Alerts(ctx *gin.Context) {
	limit, ok := unireq.GetURLIntArgOrFail(ctx, "limit", 20)
	if !ok {
		return
	}
	uniresp.WriteJSONResponse(ctx.Writer, a.eng.Notifier.Recent(limit))
}
