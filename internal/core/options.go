package core

import (
	"time"

	blobcore "custodycore/internal/blob/core"
	"custodycore/internal/cache"
)

// DefaultCacheTTL bounds how long configuration lists are served from cache.
const DefaultCacheTTL = 300 * time.Second

type serviceOptions struct {
	clock    Clock
	logger   Logger
	metrics  MetricsRecorder
	tracer   Tracer
	cache    cache.Cache
	cacheTTL time.Duration
	blobs    blobcore.Store
	notifier Notifier
}

// ServiceOption configures optional collaborators of the Service.
type ServiceOption func(*serviceOptions)

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:    ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:   noopLogger{},
		metrics:  noopMetricsRecorder{},
		tracer:   noopTracer{},
		cache:    cache.NewMemory(),
		cacheTTL: DefaultCacheTTL,
		notifier: noopNotifier{},
	}
}

// WithClock overrides the service time source.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRecorder sets the operation metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer sets the span tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithCache replaces the configuration list cache and its TTL. A
// non-positive ttl keeps DefaultCacheTTL.
func WithCache(c cache.Cache, ttl time.Duration) ServiceOption {
	return func(o *serviceOptions) {
		if c != nil {
			o.cache = c
		}
		if ttl > 0 {
			o.cacheTTL = ttl
		}
	}
}

// WithBlobStore enables signed certificate uploads.
func WithBlobStore(store blobcore.Store) ServiceOption {
	return func(o *serviceOptions) {
		o.blobs = store
	}
}

// WithNotifier registers the outbox dispatcher wake-up hook.
func WithNotifier(n Notifier) ServiceOption {
	return func(o *serviceOptions) {
		if n != nil {
			o.notifier = n
		}
	}
}
