package service

import (
	"time"

	"github.com/okian/trialstats/internal/domain/predict"
	"github.com/okian/trialstats/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of ingest workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the ingest queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many submission ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxRecentRuns caps the recent and best run lists.
func WithMaxRecentRuns(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRecent = n
		}
	}
}

// WithPredictorDefaults sets the neighbour count, dimension set and scales
// used when a request does not override them.
func WithPredictorDefaults(k int, extended bool, scales predict.Scales) Option {
	return func(s *Service) {
		s.settings.Store(newSettings(k, extended, scales))
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now, used to stamp runs that arrive without a date.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
