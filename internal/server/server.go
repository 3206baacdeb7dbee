package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	bulkdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/bulkload/domain"
	"github.com/maburgos12/pollyanas-dolce-erp/internal/config"
	forecastdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/forecast/domain"
	mastersdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/masters/domain"
	"github.com/maburgos12/pollyanas-dolce-erp/internal/observability"
	obsmiddleware "github.com/maburgos12/pollyanas-dolce-erp/internal/observability/logger"
	obsmetrics "github.com/maburgos12/pollyanas-dolce-erp/internal/observability/metrics"
	obstracing "github.com/maburgos12/pollyanas-dolce-erp/internal/observability/tracing"
	historydomain "github.com/maburgos12/pollyanas-dolce-erp/internal/saleshistory/domain"
	requestdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/salesrequest/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	genID  *snowflake.Node

	mastersSvc  mastersdomain.Service
	historySvc  historydomain.Service
	forecastSvc forecastdomain.Service
	requestSvc  requestdomain.Service
	bulkSvc     bulkdomain.Service

	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin   *gin.Engine
	Cfg   config.Config
	DB    *gorm.DB
	GenID *snowflake.Node

	MastersSvc  mastersdomain.Service
	HistorySvc  historydomain.Service
	ForecastSvc forecastdomain.Service
	RequestSvc  requestdomain.Service
	BulkSvc     bulkdomain.Service

	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		genID:       p.GenID,
		mastersSvc:  p.MastersSvc,
		historySvc:  p.HistorySvc,
		forecastSvc: p.ForecastSvc,
		requestSvc:  p.RequestSvc,
		bulkSvc:     p.BulkSvc,
		obsMetrics:  p.ObsMetrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Masters --------
	api.GET("/branches", s.ListBranches)
	api.POST("/branches", s.CreateBranch)
	api.GET("/branches/:id", s.GetBranchByID)
	api.GET("/recipes", s.ListRecipes)
	api.POST("/recipes", s.CreateRecipe)
	api.GET("/recipes/:id", s.GetRecipeByID)
	api.POST("/masters/resolve", s.ResolveMasters)

	// -------- Sales history --------
	api.GET("/history", s.ListHistory)
	api.PUT("/history", s.UpsertHistory)

	// -------- Forecasting --------
	api.POST("/forecast", s.Forecast)
	api.POST("/forecast/batch", s.ForecastBatch)
	api.GET("/forecast/records", s.ListForecastRecords)
	api.POST("/backtest", s.Backtest)
	api.POST("/insights/seasonal", s.SeasonalInsights)

	// -------- Sales requests --------
	api.GET("/requests", s.ListRequests)
	api.POST("/requests", s.UpsertRequest)
	api.GET("/requests/:id", s.GetRequestByID)
	api.POST("/requests/reconcile", s.ReconcileRequest)
	api.POST("/requests/apply-forecast", s.ApplyForecast)

	// -------- Bulk ingestion --------
	api.POST("/bulk/preview", s.BulkPreview)
	api.POST("/bulk/confirm", s.BulkConfirm)
}
