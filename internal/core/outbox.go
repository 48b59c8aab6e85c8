package core

import (
	"context"
	"sync"
	"time"

	"custodycore/pkg/domain"
)

// DocumentIssuer renders and delivers one queued document.
type DocumentIssuer interface {
	Issue(ctx context.Context, event domain.OutboxEvent) error
}

// DispatcherConfig tunes outbox delivery.
type DispatcherConfig struct {
	Interval    time.Duration
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	MaxAttempts int
	BatchSize   int
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 30 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	return c
}

// Backoff returns the delay before retry number attempts (1-based).
func (c DispatcherConfig) Backoff(attempts int) time.Duration {
	c = c.withDefaults()
	delay := c.BaseBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return min(delay, c.MaxBackoff)
}

// DispatchStats summarises one DispatchPending pass.
type DispatchStats struct {
	Delivered int `json:"delivered"`
	Retrying  int `json:"retrying"`
	Failed    int `json:"failed"`
}

// Dispatcher delivers pending outbox events with retry and backoff.
type Dispatcher struct {
	store   domain.PersistentStore
	issuer  DocumentIssuer
	cfg     DispatcherConfig
	clock   Clock
	logger  Logger
	metrics MetricsRecorder
	wake    chan struct{}
	mu      sync.Mutex
}

// NewDispatcher builds a dispatcher over the service store and registers it
// as the service's post-commit notifier.
func (s *Service) NewDispatcher(issuer DocumentIssuer, cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		store:   s.store,
		issuer:  issuer,
		cfg:     cfg.withDefaults(),
		clock:   s.clock,
		logger:  s.logger,
		metrics: s.metrics,
		wake:    make(chan struct{}, 1),
	}
	s.SetNotifier(d)
	return d
}

// Notify wakes Run without blocking.
func (d *Dispatcher) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run dispatches on every interval tick and Notify until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := d.DispatchPending(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("outbox dispatch failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-d.wake:
		}
	}
}

// DispatchPending attempts every due event once, oldest first. Delivery
// errors are recorded on the event and never returned.
func (d *Dispatcher) DispatchPending(ctx context.Context) (DispatchStats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	var due []domain.OutboxEvent
	if err := d.store.View(ctx, func(v domain.TransactionView) error {
		for _, event := range v.ListOutbox() {
			if event.Due(now) {
				due = append(due, event)
			}
			if len(due) == d.cfg.BatchSize {
				break
			}
		}
		return nil
	}); err != nil {
		return DispatchStats{}, err
	}

	var stats DispatchStats
	for _, event := range due {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		started := time.Now()
		issueErr := d.issuer.Issue(ctx, event)
		d.metrics.Observe(ctx, "deliver_document", issueErr == nil, time.Since(started))
		finished := d.clock.Now()

		var status domain.OutboxStatus
		_, err := d.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			updated, err := tx.UpdateOutbox(event.ID, func(e *domain.OutboxEvent) error {
				e.Attempts++
				if issueErr == nil {
					e.Status = domain.OutboxDelivered
					e.LastError = ""
					e.DeliveredAt = &finished
					return nil
				}
				e.LastError = issueErr.Error()
				if e.Attempts >= d.cfg.MaxAttempts {
					e.Status = domain.OutboxFailed
					return nil
				}
				e.NextAttemptAt = finished.Add(d.cfg.Backoff(e.Attempts))
				return nil
			})
			status = updated.Status
			return err
		})
		if err != nil {
			return stats, err
		}
		switch {
		case issueErr == nil:
			stats.Delivered++
			d.logger.Info("document delivered", "event", event.ID, "kind", event.Request.Kind, "recipient", event.Request.Recipient())
		case status == domain.OutboxFailed:
			stats.Failed++
			d.logger.Error("document delivery abandoned", "event", event.ID, "error", domain.ExternalServiceError{Service: "documents", Err: issueErr})
		default:
			stats.Retrying++
			d.logger.Warn("document delivery failed", "event", event.ID, "error", domain.ExternalServiceError{Service: "documents", Err: issueErr})
		}
	}
	return stats, nil
}

// Outbox lists queued documents, optionally filtered by status.
func (s *Service) Outbox(ctx context.Context, status domain.OutboxStatus) ([]domain.OutboxEvent, error) {
	out := make([]domain.OutboxEvent, 0)
	err := s.view(ctx, "list_outbox", func(v domain.TransactionView) error {
		for _, event := range v.ListOutbox() {
			if status == "" || event.Status == status {
				out = append(out, event)
			}
		}
		return nil
	})
	return out, err
}
