package eidasmirror

import (
	"github.com/willp-bl/eidas-mirror-sub004/internal/adapters/driven/metrics"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/ports"
)

// Re-export the metrics port and its implementations.
type MetricsRecorder = ports.MetricsRecorder
type NoopMetricsRecorder = ports.NoopMetricsRecorder
type PrometheusMetricsRecorder = metrics.PrometheusMetricsRecorder

var (
	NewPrometheusMetricsRecorder             = metrics.NewPrometheusMetricsRecorder
	NewPrometheusMetricsRecorderWithRegistry = metrics.NewPrometheusMetricsRecorderWithRegistry
)
