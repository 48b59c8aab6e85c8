// Package core implements the equipment custody service: the transition
// engine, configuration registry, queries and the document outbox.
package core

import (
	"context"
	"sync"
	"time"

	blobcore "custodycore/internal/blob/core"
	"custodycore/internal/cache"
	"custodycore/internal/infra/persistence/memory"
	"custodycore/pkg/domain"
)

// Service exposes the transactional custody operations.
type Service struct {
	store    domain.PersistentStore
	clock    Clock
	logger   Logger
	metrics  MetricsRecorder
	tracer   Tracer
	cache    cache.Cache
	cacheTTL time.Duration
	blobs    blobcore.Store
	notifier Notifier

	// cacheMu orders list cache writes against invalidations; cacheGen
	// counts invalidations.
	cacheMu  sync.Mutex
	cacheGen uint64
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{
		store:    store,
		clock:    o.clock,
		logger:   o.logger,
		metrics:  o.metrics,
		tracer:   o.tracer,
		cache:    o.cache,
		cacheTTL: o.cacheTTL,
		blobs:    o.blobs,
		notifier: o.notifier,
	}
}

// NewInMemoryService creates a service and in-memory store. A nil engine
// uses NewDefaultRulesEngine.
func NewInMemoryService(engine *domain.RulesEngine, opts ...ServiceOption) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// SetNotifier replaces the post-commit hook once the dispatcher exists.
func (s *Service) SetNotifier(n Notifier) {
	if n == nil {
		n = noopNotifier{}
	}
	s.notifier = n
}

func (s *Service) now() time.Time { return s.clock.Now() }

// observe wraps an operation with tracing, metrics and failure logging.
func (s *Service) observe(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	started := time.Now()
	err := fn(ctx)
	s.metrics.Observe(ctx, op, err == nil, time.Since(started))
	span.End(err)
	if err != nil {
		s.logger.Warn("operation failed", "operation", op, "error", err)
	}
	return err
}

// mutate runs fn in one transaction. After a successful commit the
// configuration cache is invalidated and the dispatcher notified.
func (s *Service) mutate(ctx context.Context, op string, fn func(domain.Transaction) error) error {
	return s.observe(ctx, op, func(ctx context.Context) error {
		if _, err := s.store.RunInTransaction(ctx, fn); err != nil {
			return err
		}
		s.Invalidate(ctx)
		s.notifier.Notify()
		s.logger.Info("operation committed", "operation", op)
		return nil
	})
}

// view runs fn against a read-only snapshot.
func (s *Service) view(ctx context.Context, op string, fn func(domain.TransactionView) error) error {
	return s.observe(ctx, op, func(ctx context.Context) error {
		return s.store.View(ctx, fn)
	})
}
