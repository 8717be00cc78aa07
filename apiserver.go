package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/czcorpus/cnc-gokit/uniresp"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/timujinne/email-checker-sub004/cnf"
)

type service interface {
	Start(ctx context.Context)
	Stop(ctx context.Context) error
}

// ----------------------

func getRequestOrigin(ctx *gin.Context) string {
	currOrigin, ok := ctx.Request.Header["Origin"]
	if ok {
		return currOrigin[0]
	}
	return ""
}

func CORSMiddleware(conf *cnf.Conf) gin.HandlerFunc {
	return func(ctx *gin.Context) {

		var allowedOrigin string
		currOrigin := getRequestOrigin(ctx)
		for _, origin := range conf.CorsAllowedOrigins {
			if currOrigin == origin {
				allowedOrigin = origin
				break
			}
		}
		if allowedOrigin != "" {
			ctx.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			ctx.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			ctx.Writer.Header().Set(
				"Access-Control-Allow-Headers",
				"Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With",
			)
			ctx.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		}

		if ctx.Request.Method == "OPTIONS" {
			ctx.AbortWithStatus(204)
			return
		}
		ctx.Next()
	}
}

// ------

type apiServer struct {
	conf   *cnf.Conf
	server *http.Server
	eng    *Engine
}

func (api *apiServer) Start(ctx context.Context) {
	if !api.conf.Logging.Level.IsDebugMode() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logging.GinMiddleware())
	engine.Use(uniresp.AlwaysJSONContentType())
	engine.Use(CORSMiddleware(api.conf))
	engine.NoMethod(uniresp.NoMethodHandler)
	engine.NoRoute(uniresp.NotFoundHandler)

	actions := &Actions{eng: api.eng}

	engine.GET("/score/email", actions.ScoreEmail)
	engine.POST("/score/lead", actions.ScoreLead)
	engine.POST("/predict/:model", actions.Predict)
	engine.POST("/models/:model/versions/:version/activate", actions.SwitchVersion)
	engine.POST("/models/:model/rollback", actions.Rollback)
	engine.GET("/models/:model/abtest/outcomes", actions.ABOutcomes)
	engine.POST("/anomaly", actions.DetectAnomalies)
	engine.POST("/forecast/:entityId", actions.Forecast)
	engine.POST("/lists/:listId/decay", actions.TrackListDecay)
	engine.GET("/lists/critical", actions.CriticalLists)
	engine.POST("/campaign/predict", actions.PredictCampaign)
	engine.GET("/campaign/abtest", actions.EvaluateABTest)
	engine.GET("/metrics/report/:model", actions.MetricsReport)
	engine.GET("/statistics", actions.Statistics)
	engine.GET("/predictions", actions.Predictions)
	engine.GET("/alerts", actions.Alerts)

	log.Info().Msgf("starting to listen at %s:%d", api.conf.ListenAddress, api.conf.ListenPort)
	api.server = &http.Server{
		Handler:      engine,
		Addr:         fmt.Sprintf("%s:%d", api.conf.ListenAddress, api.conf.ListenPort),
		WriteTimeout: time.Duration(api.conf.ServerWriteTimeoutSecs) * time.Second,
		ReadTimeout:  time.Duration(api.conf.ServerReadTimeoutSecs) * time.Second,
	}
	go func() {
		if err := api.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()
}

func (api *apiServer) Stop(ctx context.Context) error {
	log.Warn().Msg("shutting down email-checker HTTP API server")
	return api.server.Shutdown(ctx)
}

// -------------------------

func runApiServer(
	ctx context.Context,
	conf *cnf.Conf,
) {
	eng, err := NewEngine(conf)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing engine")
		return
	}
	defer func() {
		if err := eng.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing engine stores")
		}
	}()

	server := &apiServer{
		conf: conf,
		eng:  eng,
	}

	services := []service{server}
	for _, m := range services {
		m.Start(ctx)
	}
	<-ctx.Done()
	log.Warn().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for _, s := range services {
		wg.Add(1)
		go func(srv service) {
			defer wg.Done()
			if err := srv.Stop(shutdownCtx); err != nil {
				log.Error().Err(err).Type("service", srv).Msg("Error shutting down service")
			}
		}(s)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("Graceful shutdown completed")
	case <-shutdownCtx.Done():
		log.Warn().Msg("Shutdown timed out")
	}
}
