// Package app assembles the HTTP surface from its dependencies.
package app

import (
	"log/slog"

	"github.com/caregrid/sentinel/internal/analytics"
	"github.com/caregrid/sentinel/internal/behavior"
	"github.com/caregrid/sentinel/internal/handler"
	"github.com/caregrid/sentinel/internal/infra"
	"github.com/caregrid/sentinel/internal/model"
	"github.com/caregrid/sentinel/internal/provider"
	"github.com/caregrid/sentinel/internal/repository"
	"github.com/caregrid/sentinel/internal/scoring"
	"github.com/caregrid/sentinel/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Deps holds everything the router and its services need.
type Deps struct {
	Cfg      *infra.Config
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Producer *infra.KafkaProducer
	Logger   *slog.Logger
}

// Services bundles the wired service layer so binaries other than the API
// server can reuse it.
type Services struct {
	Risk     *service.RiskService
	Training *service.TrainingService
	Models   *model.Provider
	Store    *behavior.Store
}

// BuildServices wires repositories, scoring and the profile store.
func BuildServices(deps Deps) *Services {
	cfg := deps.Cfg
	logger := deps.Logger

	// Repositories
	eventRepo := repository.NewEventRepository()
	assessmentRepo := repository.NewAssessmentRepository()
	anomalyRepo := repository.NewAnomalyRepository()
	profileRepo := repository.NewPgProfileRepository(deps.Pool)

	// Scoring pipeline
	models := model.NewProvider()
	weights := scoring.DefaultWeights()
	weights.Base = cfg.HeuristicBase
	weights.Sensitive = cfg.SensitiveOffset
	weights.Failed = cfg.FailedOffset
	weights.WeekendOffset = cfg.WeekendOffset
	weights.JitterBound = cfg.JitterBound
	heuristic := scoring.NewHeuristic(weights)
	blender := scoring.NewBlender(scoring.BlendConfig{
		ModelWeight:     cfg.ModelWeight,
		HeuristicWeight: cfg.HeuristicWeight,
		Amplification:   cfg.Amplification,
		AmplifyCap:      cfg.AmplifyCap,
		Epsilon:         cfg.DegeneracyEps,
	})
	scorer := scoring.NewScorer(models, heuristic, blender, logger)

	// Profile store
	var cache behavior.Cache
	if deps.Redis != nil {
		cache = behavior.NewRedisCache(deps.Redis, cfg.ProfileCacheTTL, logger)
	}
	detector := behavior.NewDetector(cfg.HighFrequencyThreshold)
	storeCfg := behavior.DefaultConfig()
	storeCfg.BaselineThreshold = cfg.BaselineThreshold
	storeCfg.HighFrequencyThreshold = cfg.HighFrequencyThreshold
	storeCfg.AnomalyHistoryCap = cfg.AnomalyHistoryCap
	storeCfg.AnomalyRetention = cfg.AnomalyRetention
	store := behavior.NewStore(profileRepo, cache, detector, storeCfg, logger)

	// External enrichment
	devices := provider.NewDeviceLookupClient(cfg.DeviceRegistryURL, cfg.DeviceLookupTimeout, logger)

	riskSvc := service.NewRiskService(
		deps.Pool, scorer, store,
		eventRepo, assessmentRepo, anomalyRepo, profileRepo,
		devices, deps.Producer, cfg.KafkaAssessmentTopic, logger,
	)
	trainingSvc := service.NewTrainingService(
		deps.Pool, eventRepo, assessmentRepo, store, models, scorer,
		model.Options{
			Trees:         cfg.ModelTrees,
			SubsampleSize: cfg.ModelSubsample,
			Contamination: cfg.ModelContamination,
			Seed:          cfg.ModelSeed,
		},
		cfg.TrainingSetLimit, logger,
	)

	return &Services{Risk: riskSvc, Training: trainingSvc, Models: models, Store: store}
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps Deps, svcs *Services) chi.Router {
	logger := deps.Logger

	anomalyRepo := repository.NewAnomalyRepository()
	aggregator := analytics.NewAggregator(deps.Pool)

	scoreHandler := handler.NewScoreHandler(svcs.Risk)
	profileHandler := handler.NewProfileHandler(svcs.Risk, svcs.Store, anomalyRepo, deps.Pool)
	trainingHandler := handler.NewTrainingHandler(svcs.Training)
	analyticsHandler := handler.NewAnalyticsHandler(aggregator)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORS)
	r.Use(handler.JSONContentType)

	r.Get("/health", handler.HealthHandler(deps.Pool, svcs.Models))

	r.Post("/score", scoreHandler.Score)
	r.Post("/score/batch", scoreHandler.ScoreBatch)

	r.Get("/summary", profileHandler.Summary)
	r.Route("/profiles", func(r chi.Router) {
		r.Post("/import", profileHandler.Import)
		r.Route("/{userID}", func(r chi.Router) {
			r.Get("/", profileHandler.Get)
			r.Get("/summary", profileHandler.UserSummary)
			r.Get("/export", profileHandler.Export)
			r.Post("/anomalies", profileHandler.AppendAnomaly)
			r.Post("/rebaseline", profileHandler.Rebaseline)
		})
	})

	r.Route("/model", func(r chi.Router) {
		r.Post("/train", trainingHandler.Train)
		r.Get("/status", trainingHandler.Status)
	})
	r.Post("/risk/recompute", trainingHandler.Recompute)

	r.Route("/analytics", func(r chi.Router) {
		r.Get("/overview", analyticsHandler.Overview)
		r.Get("/top-users", analyticsHandler.TopUsers)
		r.Get("/trend", analyticsHandler.Trend)
	})

	return r
}
