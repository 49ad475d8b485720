package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/caregrid/sentinel/internal/behavior"
	"github.com/caregrid/sentinel/internal/domain"
	"github.com/caregrid/sentinel/internal/feature"
	"github.com/caregrid/sentinel/internal/model"
	"github.com/caregrid/sentinel/internal/repository"
	"github.com/caregrid/sentinel/internal/scoring"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventSource is the slice of the event repository the trainer and the
// recompute pass read and update.
type EventSource interface {
	ListForTraining(ctx context.Context, db repository.DBTX, limit int) ([]repository.StoredEvent, error)
	ListUnscored(ctx context.Context, db repository.DBTX, limit int) ([]repository.StoredEvent, error)
	MarkScored(ctx context.Context, db repository.DBTX, id int64, a domain.RiskAssessment) error
	Count(ctx context.Context, db repository.DBTX) (int, error)
}

// AssessmentSink persists assessments produced by bulk recompute.
type AssessmentSink interface {
	Insert(ctx context.Context, db repository.DBTX, a domain.RiskAssessment) error
}

// TrainResult reports the outcome of a training run.
type TrainResult struct {
	Success            bool `json:"success"`
	ProfilesCreated    int  `json:"profilesCreated"`
	DatasetRecordCount int  `json:"datasetRecordCount"`
}

// RecomputeResult reports the outcome of a bulk recompute pass.
type RecomputeResult struct {
	Updated int `json:"updated"`
	Total   int `json:"total"`
}

// TrainingService retrains the outlier model from persisted history and runs
// bulk rescoring over unscored rows. Training is single-flight: a second
// request while one is running is rejected, not queued.
type TrainingService struct {
	pool        *pgxpool.Pool
	events      EventSource
	assessments AssessmentSink
	store       *behavior.Store
	models      *model.Provider
	scorer      *scoring.Scorer
	opts        model.Options
	setLimit    int
	logger      *slog.Logger

	mu sync.Mutex
}

// NewTrainingService wires the training pipeline.
func NewTrainingService(
	pool *pgxpool.Pool,
	events EventSource,
	assessments AssessmentSink,
	store *behavior.Store,
	models *model.Provider,
	scorer *scoring.Scorer,
	opts model.Options,
	setLimit int,
	logger *slog.Logger,
) *TrainingService {
	return &TrainingService{
		pool:        pool,
		events:      events,
		assessments: assessments,
		store:       store,
		models:      models,
		scorer:      scorer,
		opts:        opts,
		setLimit:    setLimit,
		logger:      logger,
	}
}

// Train fits a fresh forest on recent history and swaps it in atomically.
// Scoring requests keep using the previous model until the swap; rows whose
// timestamps never parsed are excluded from the training set.
func (t *TrainingService) Train(ctx context.Context) (*TrainResult, error) {
	if !t.mu.TryLock() {
		return nil, domain.ErrTrainingInProgress()
	}
	defer t.mu.Unlock()

	stored, err := t.events.ListForTraining(ctx, t.pool, t.setLimit)
	if err != nil {
		return nil, domain.ErrTrainingFailed("load training set", err)
	}

	vectors := make([]feature.Vector, 0, len(stored))
	actors := make(map[string]struct{})
	for i := range stored {
		ev := &stored[i].Event
		vec := feature.Extract(ev)
		if !vec.TimestampValid {
			continue
		}
		vectors = append(vectors, vec)
		actors[ev.ActorID] = struct{}{}
	}
	if len(vectors) < 2 {
		return nil, domain.ErrTrainingFailed("training set too small", nil)
	}

	enc := feature.FitEncoder(vectors)
	matrix := enc.EncodeAll(vectors)
	forest, err := model.Fit(matrix, enc, t.opts)
	if err != nil {
		return nil, domain.ErrTrainingFailed("fit model", err)
	}
	t.models.Swap(forest)

	created := 0
	for actorID := range actors {
		if _, wasNew, err := t.store.GetOrCreate(ctx, actorID); err != nil {
			t.logger.Warn("profile seed failed", "actor_id", actorID, "error", err)
		} else if wasNew {
			created++
		}
	}

	t.logger.Info("model trained",
		"records", len(vectors), "actors", len(actors), "profiles_created", created,
		"trees", forest.TreeCount())

	return &TrainResult{
		Success:            true,
		ProfilesCreated:    created,
		DatasetRecordCount: len(vectors),
	}, nil
}

// Recompute scores historical rows that were never assessed. Pure scoring
// backfill: profiles are not replayed.
func (t *TrainingService) Recompute(ctx context.Context) (*RecomputeResult, error) {
	total, err := t.events.Count(ctx, t.pool)
	if err != nil {
		return nil, domain.ErrInternal("count events", err)
	}

	stored, err := t.events.ListUnscored(ctx, t.pool, t.setLimit)
	if err != nil {
		return nil, domain.ErrInternal("load unscored events", err)
	}

	updated := 0
	for i := range stored {
		ev := &stored[i].Event
		a := t.scorer.ScoreEvent(ev)
		if err := t.events.MarkScored(ctx, t.pool, stored[i].ID, a); err != nil {
			t.logger.Error("mark event scored failed", "event_id", stored[i].ID, "error", err)
			continue
		}
		if err := t.assessments.Insert(ctx, t.pool, a); err != nil {
			t.logger.Error("persist assessment failed", "actor_id", ev.ActorID, "error", err)
		}
		updated++
	}

	t.logger.Info("recompute finished", "updated", updated, "total", total)
	return &RecomputeResult{Updated: updated, Total: total}, nil
}

// Status reports the live model's training state.
func (t *TrainingService) Status() model.Status {
	return t.models.Status()
}
