package metadata

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub004/internal/core/ports"
)

// Option is a functional option for configuring metadata components.
type Option func(*options)

// Clock provides time functionality for testing.
type Clock interface {
	Now() time.Time
}

// RealClock uses the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

type options struct {
	logger          *zap.Logger
	metricsRecorder ports.MetricsRecorder
	clock           Clock
	httpClient      *http.Client
	rescanInterval  time.Duration
	fetchTimeout    time.Duration
	maxFetchBytes   int64
	onReload        func(error)
}

func defaultOptions() options {
	return options{
		metricsRecorder: ports.NoopMetricsRecorder{},
		clock:           RealClock{},
		rescanInterval:  24 * time.Hour,
		fetchTimeout:    20 * time.Second,
		maxFetchBytes:   1 << 20,
	}
}

// WithLogger returns an option that sets the logger.
// When set, load and watch events (success/failure) will be logged.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetricsRecorder returns an option that sets the metrics recorder.
func WithMetricsRecorder(recorder ports.MetricsRecorder) Option {
	return func(o *options) {
		o.metricsRecorder = recorder
	}
}

// WithClock returns an option that sets a custom clock for time operations.
// Used for testing validity expiration without time.Sleep.
func WithClock(clock Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithHTTPClient returns an option that sets the client used for live
// metadata retrieval.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithRescanInterval returns an option that sets the period of the full
// directory rescan that backs up the change watcher.
func WithRescanInterval(d time.Duration) Option {
	return func(o *options) {
		o.rescanInterval = d
	}
}

// WithFetchTimeout returns an option that bounds a single live retrieval.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) {
		o.fetchTimeout = d
	}
}

// WithMaxFetchBytes returns an option that bounds the size of a fetched
// metadata document.
func WithMaxFetchBytes(n int64) Option {
	return func(o *options) {
		o.maxFetchBytes = n
	}
}

// WithOnReload returns an option that sets a callback invoked after each
// directory load or rescan. The callback receives the error (nil on
// success). Used for testing synchronization.
func WithOnReload(fn func(error)) Option {
	return func(o *options) {
		o.onReload = fn
	}
}
