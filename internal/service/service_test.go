package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/caregrid/sentinel/internal/behavior"
	"github.com/caregrid/sentinel/internal/domain"
	"github.com/caregrid/sentinel/internal/model"
	"github.com/caregrid/sentinel/internal/repository"
	"github.com/caregrid/sentinel/internal/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProfileRepo is an in-memory behavior.ProfileRepository that counts
// every read and write.
type fakeProfileRepo struct {
	mu    sync.Mutex
	docs  map[string][]byte
	gets  int
	saves int
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{docs: map[string][]byte{}}
}

func (r *fakeProfileRepo) Get(_ context.Context, userID string) (*domain.BehaviorProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	raw, ok := r.docs[userID]
	if !ok {
		return nil, nil
	}
	var p domain.BehaviorProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *fakeProfileRepo) Save(_ context.Context, p *domain.BehaviorProfile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.docs[p.UserID] = raw
	return nil
}

func (r *fakeProfileRepo) WithUserLock(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

func (r *fakeProfileRepo) touched() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gets > 0 || r.saves > 0
}

// fakeEvents is an in-memory EventSource. When enter/release are set,
// ListForTraining parks until released, holding the training lock.
type fakeEvents struct {
	mu       sync.Mutex
	training []repository.StoredEvent
	unscored []repository.StoredEvent
	total    int
	marked   []int64

	enter   chan struct{}
	release chan struct{}
}

func (f *fakeEvents) ListForTraining(context.Context, repository.DBTX, int) ([]repository.StoredEvent, error) {
	f.mu.Lock()
	enter, release := f.enter, f.release
	f.enter, f.release = nil, nil
	f.mu.Unlock()
	if enter != nil {
		enter <- struct{}{}
		<-release
	}
	return f.training, nil
}

func (f *fakeEvents) ListUnscored(context.Context, repository.DBTX, int) ([]repository.StoredEvent, error) {
	return f.unscored, nil
}

func (f *fakeEvents) MarkScored(_ context.Context, _ repository.DBTX, id int64, _ domain.RiskAssessment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, id)
	return nil
}

func (f *fakeEvents) Count(context.Context, repository.DBTX) (int, error) {
	return f.total, nil
}

type fakeAssessments struct {
	mu       sync.Mutex
	inserted []domain.RiskAssessment
}

func (f *fakeAssessments) Insert(_ context.Context, _ repository.DBTX, a domain.RiskAssessment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, a)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(repo behavior.ProfileRepository) *behavior.Store {
	return behavior.NewStore(repo, nil, behavior.NewDetector(100), behavior.DefaultConfig(), testLogger())
}

func testScorer(models *model.Provider) *scoring.Scorer {
	return scoring.NewScorer(models, scoring.NewHeuristic(scoring.DefaultWeights()),
		scoring.NewBlender(scoring.DefaultBlendConfig()), testLogger())
}

func storedEvent(id int64, actor, ts string) repository.StoredEvent {
	return repository.StoredEvent{
		ID: id,
		Event: domain.ActionEvent{
			ActorID:         actor,
			Roles:           []string{"nurse"},
			Action:          "view_dashboard",
			Timestamp:       ts,
			SessionID:       "s-" + actor,
			SessionDuration: 45,
			DeviceType:      "desktop",
		},
	}
}

func TestIngestRejectsInvalidEventBeforeMutation(t *testing.T) {
	ctx := context.Background()
	repo := newFakeProfileRepo()
	svc := &RiskService{
		scorer:      testScorer(model.NewProvider()),
		store:       testStore(repo),
		events:      repository.NewEventRepository(),
		assessments: repository.NewAssessmentRepository(),
		anomalies:   repository.NewAnomalyRepository(),
		logger:      testLogger(),
	}

	ev := &domain.ActionEvent{ActorID: "u1", SessionID: "s1", Timestamp: "2025-03-04T10:00:00Z"}
	_, _, err := svc.Ingest(ctx, ev)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", err.(*domain.AppError).Code)

	// The rejection happened before any profile state was read or written.
	assert.False(t, repo.touched())
	p, err := svc.store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestIngestBatchReportsInvalidRecordsWithoutMutation(t *testing.T) {
	ctx := context.Background()
	repo := newFakeProfileRepo()
	svc := &RiskService{
		scorer:      testScorer(model.NewProvider()),
		store:       testStore(repo),
		events:      repository.NewEventRepository(),
		assessments: repository.NewAssessmentRepository(),
		anomalies:   repository.NewAnomalyRepository(),
		logger:      testLogger(),
	}

	records := svc.IngestBatch(ctx, []domain.ActionEvent{
		{ActorID: "u1", SessionID: "s1"},
		{Action: "view_dashboard", SessionID: "s2"},
	})
	require.Len(t, records, 2)
	assert.NotEmpty(t, records[0].Error)
	assert.NotEmpty(t, records[1].Error)
	assert.Nil(t, records[0].Assessment)
	assert.False(t, repo.touched())
}

func newTestTrainingService(fe *fakeEvents) (*TrainingService, *fakeAssessments, *model.Provider) {
	models := model.NewProvider()
	fa := &fakeAssessments{}
	store := testStore(newFakeProfileRepo())
	svc := NewTrainingService(nil, fe, fa, store, models, testScorer(models),
		model.DefaultOptions(), 1000, testLogger())
	return svc, fa, models
}

func TestTrainSingleFlight(t *testing.T) {
	ctx := context.Background()
	fe := &fakeEvents{
		enter:   make(chan struct{}),
		release: make(chan struct{}),
	}
	// ListForTraining nils fe.enter/fe.release once consumed, so keep our
	// own references for signalling.
	enter, release := fe.enter, fe.release
	svc, _, _ := newTestTrainingService(fe)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Train(ctx)
		done <- err
	}()
	<-enter

	// A second request while the first holds the lock is rejected, not queued.
	_, err := svc.Train(ctx)
	require.Error(t, err)
	assert.Equal(t, "TRAINING_IN_PROGRESS", err.(*domain.AppError).Code)

	close(release)
	err = <-done
	require.Error(t, err) // empty dataset
	assert.Equal(t, "TRAINING_FAILED", err.(*domain.AppError).Code)

	// The lock is free again once the first run finished.
	_, err = svc.Train(ctx)
	assert.Equal(t, "TRAINING_FAILED", err.(*domain.AppError).Code)
}

func TestTrainFitsModelAndSeedsProfiles(t *testing.T) {
	ctx := context.Background()
	fe := &fakeEvents{}
	for i := 0; i < 10; i++ {
		ts := fmt.Sprintf("2025-03-04T%02d:00:00Z", 8+i)
		fe.training = append(fe.training, storedEvent(int64(i+1), fmt.Sprintf("u%d", i%3), ts))
	}
	// A row whose timestamp never parsed is dropped from the dataset.
	bad := storedEvent(99, "u9", "not-a-timestamp")
	fe.training = append(fe.training, bad)

	svc, _, models := newTestTrainingService(fe)
	res, err := svc.Train(ctx)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 10, res.DatasetRecordCount)
	assert.Equal(t, 3, res.ProfilesCreated)
	status := models.Status()
	assert.True(t, status.Trained)
	assert.Equal(t, 100, status.Trees)
}

func TestTrainRejectsTinyDataset(t *testing.T) {
	ctx := context.Background()
	fe := &fakeEvents{training: []repository.StoredEvent{storedEvent(1, "u1", "2025-03-04T10:00:00Z")}}
	svc, _, models := newTestTrainingService(fe)

	_, err := svc.Train(ctx)
	require.Error(t, err)
	assert.Equal(t, "TRAINING_FAILED", err.(*domain.AppError).Code)
	assert.False(t, models.Status().Trained)
}

func TestRecomputeBackfillsUnscoredRows(t *testing.T) {
	ctx := context.Background()
	fe := &fakeEvents{
		unscored: []repository.StoredEvent{
			storedEvent(7, "u1", "2025-03-04T10:00:00Z"),
			storedEvent(8, "u2", "2025-03-04T11:00:00Z"),
		},
		total: 5,
	}
	svc, fa, _ := newTestTrainingService(fe)

	res, err := svc.Recompute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 5, res.Total)
	assert.ElementsMatch(t, []int64{7, 8}, fe.marked)
	require.Len(t, fa.inserted, 2)
	assert.False(t, fa.inserted[0].ModelContributed)
}
