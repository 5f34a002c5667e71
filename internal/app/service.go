// Package service wires the run store, the ingest pipeline and the analysis
// functions together and implements the dependencies of the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/trialstats/internal/adapters/mq/queue"
	"github.com/okian/trialstats/internal/adapters/mq/worker"
	"github.com/okian/trialstats/internal/adapters/repository"
	"github.com/okian/trialstats/internal/domain/dedupe"
	"github.com/okian/trialstats/internal/domain/model"
	"github.com/okian/trialstats/internal/domain/predict"
	"github.com/okian/trialstats/pkg/logger"
	"github.com/okian/trialstats/pkg/metrics"
)

// Submission outcomes.
const (
	StatusAccepted  = "accepted"
	StatusDuplicate = "duplicate"
)

// SubmitResult reports what happened to a submitted run.
type SubmitResult struct {
	Status       string `json:"status"`
	RunID        string `json:"run_id"`
	SubmissionID string `json:"submission_id"`
}

// settings is the predictor configuration swapped as a unit on reload.
type settings struct {
	k        int
	extended bool
	scales   predict.Scales
}

func newSettings(k int, extended bool, scales predict.Scales) *settings {
	if k < 1 {
		k = predict.DefaultK
	}
	return &settings{k: k, extended: extended, scales: scales}
}

// predictor builds a predictor from the defaults, applying per-request
// overrides when given.
func (st *settings) predictor(k int, extended *bool) *predict.Predictor {
	if k < 1 {
		k = st.k
	}
	ext := st.extended
	if extended != nil {
		ext = *extended
	}
	dims := predict.CoreDimensions
	if ext {
		dims = predict.ExtendedDimensions
	}
	return predict.New(predict.WithK(k), predict.WithDimensions(dims), predict.WithScales(st.scales))
}

// Service implements the API dependencies for the trial stats system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	deduper dedupe.Deduper
	queue   queue.Queue
	pool    *worker.Pool

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	maxRecent   int
	settings    atomic.Pointer[settings]
	now         func() time.Time

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service on top of store. The caller owns the store and
// closes it after Stop.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		workerCount: runtime.NumCPU(),
		queueSize:   10_000,
		dedupeSize:  50_000,
		maxRecent:   10,
		now:         time.Now,
	}
	s.settings.Store(newSettings(predict.DefaultK, false, predict.DefaultScales()))

	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	return s
}

// Start creates the ingest queue and starts the worker pool. Workers outlive
// ctx; use Stop to shut them down.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting trial stats service...")

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	q := queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.queue = q

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool = worker.NewPool(s.workerCount, q, s.store,
		worker.WithFailureHandler(s.onPersistFailure),
	)
	s.pool.Start(runCtx)

	if n, err := s.store.Count(ctx); err == nil {
		metrics.UpdateRunsStored(n)
	}

	s.started = true
	s.logger.Info(ctx, "trial stats service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
	)
	return nil
}

// Stop drains the ingest queue and stops the workers.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping trial stats service...")
	err := s.pool.Shutdown(ctx)
	s.cancel()
	s.started = false

	if err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
		return err
	}
	s.logger.Info(ctx, "trial stats service stopped")
	return nil
}

// onPersistFailure forgets the submission id so the client can retry.
func (s *Service) onPersistFailure(ctx context.Context, sub model.Submission, err error) {
	s.deduper.Unrecord(ctx, sub.SubmissionID)
	metrics.RecordRunRejected("store_error")
	s.logger.Error(ctx, "run could not be stored",
		logger.String("run_id", sub.Run.ID),
		logger.String("submission_id", sub.SubmissionID),
		logger.Error(err),
	)
}

// SubmitRun validates a run and hands it to the ingest workers. Retries with
// a known submission id are acknowledged without storing the run again.
func (s *Service) SubmitRun(ctx context.Context, sub model.Submission) (SubmitResult, error) { //nolint:gocritic // hugeParam: value semantics keep the caller's copy intact
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return SubmitResult{}, ErrNotStarted
	}

	run := sub.Run
	run.CharacterID = strings.TrimSpace(run.CharacterID)
	run.CharacterName = model.NormalizeName(run.CharacterName)
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Date.IsZero() {
		run.Date = s.now().UTC()
	}
	if err := run.Validate(); err != nil {
		metrics.RecordRunRejected("invalid")
		s.logger.Warn(ctx, "run rejected", logger.Error(err))
		return SubmitResult{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	sub.Run = run
	if sub.SubmissionID == "" {
		sub.SubmissionID = run.ID
	}
	result := SubmitResult{RunID: run.ID, SubmissionID: sub.SubmissionID}

	if s.deduper.SeenAndRecord(ctx, sub.SubmissionID) {
		metrics.RecordRunDuplicate()
		s.logger.Debug(ctx, "duplicate submission", logger.String("submission_id", sub.SubmissionID))
		result.Status = StatusDuplicate
		return result, nil
	}

	if err := s.queue.Enqueue(ctx, sub); err != nil {
		s.deduper.Unrecord(ctx, sub.SubmissionID)
		metrics.RecordRunRejected("backpressure")
		if errors.Is(err, queue.ErrQueueFull) || errors.Is(err, queue.ErrQueueClosed) {
			return SubmitResult{}, fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
		return SubmitResult{}, fmt.Errorf("enqueue run: %w", err)
	}

	result.Status = StatusAccepted
	return result, nil
}

// ListRuns returns stored runs matching f in date order.
func (s *Service) ListRuns(ctx context.Context, f repository.Filter) ([]model.RunRecord, error) {
	runs, err := s.store.List(ctx, f)
	if err != nil {
		s.logger.Error(ctx, "list runs failed", logger.Error(err))
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one stored run.
func (s *Service) GetRun(ctx context.Context, id string) (model.RunRecord, error) {
	run, err := s.store.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.RunRecord{}, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return model.RunRecord{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// DeleteRun removes one stored run.
func (s *Service) DeleteRun(ctx context.Context, id string) error {
	err := s.store.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, err := s.store.Count(ctx); err == nil {
		metrics.UpdateRunsStored(n)
	}
	s.logger.Info(ctx, "run deleted", logger.String("run_id", id))
	return nil
}

// TrainingData returns the feature rows and scores of the runs matching f.
func (s *Service) TrainingData(ctx context.Context, f repository.Filter) ([]model.TrainingSample, error) {
	runs, err := s.ListRuns(ctx, f)
	if err != nil {
		return nil, err
	}
	samples := make([]model.TrainingSample, len(runs))
	for i, r := range runs {
		samples[i] = model.TrainingSample{Features: r.Features, Score: r.Score, TrackType: r.TrackType}
	}
	return samples, nil
}

// UpdatePredictor replaces the prediction defaults. In-flight requests keep
// the settings they started with.
func (s *Service) UpdatePredictor(ctx context.Context, k int, extended bool, scales predict.Scales) {
	s.settings.Store(newSettings(k, extended, scales))
	s.logger.Info(ctx, "predictor defaults updated",
		logger.Int("k", k),
		logger.Bool("extended", extended),
	)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	st := s.settings.Load()
	stats := map[string]interface{}{
		"started":      s.started,
		"worker_count": s.workerCount,
		"queue_size":   s.queueSize,
		"dedupe_size":  s.dedupeSize,
		"neighbor_k":   st.k,
		"extended":     st.extended,
	}

	if s.started {
		stats["queue_length"] = s.queue.Len(ctx)
		stats["submissions_remembered"] = s.deduper.Size()
		stats["runs_processed"] = s.pool.Processed()
	}
	if n, err := s.store.Count(ctx); err == nil {
		stats["runs_stored"] = n
		metrics.UpdateRunsStored(n)
	}

	return stats
}
