// Package metrics provides the Prometheus implementation of the engine's
// metrics recorder port.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/willp-bl/eidas-mirror-sub004/internal/core/ports"
)

// PrometheusMetricsRecorder records metrics using Prometheus.
type PrometheusMetricsRecorder struct {
	metadataReloadTotal      *prometheus.CounterVec
	metadataDescriptorCount  prometheus.Gauge
	liveFetchTotal           *prometheus.CounterVec
	signatureValidationTotal *prometheus.CounterVec
	assertionCryptoTotal     *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder creates a new Prometheus metrics recorder
// using the default Prometheus registry.
func NewPrometheusMetricsRecorder() *PrometheusMetricsRecorder {
	return NewPrometheusMetricsRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsRecorderWithRegistry creates a new Prometheus metrics
// recorder with a custom registry. Use this for testing.
func NewPrometheusMetricsRecorderWithRegistry(reg prometheus.Registerer) *PrometheusMetricsRecorder {
	metadataReloadTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trust_core_metadata_reload_total",
		Help: "Total static metadata directory loads and rescans",
	}, []string{"result"})

	metadataDescriptorCount := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trust_core_metadata_descriptor_count",
		Help: "Descriptors loaded by the last successful directory scan",
	})

	liveFetchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trust_core_metadata_live_fetch_total",
		Help: "Total live metadata retrieval attempts",
	}, []string{"entity_id", "result"})

	signatureValidationTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trust_core_signature_validation_total",
		Help: "Total signature validation attempts",
	}, []string{"kind", "result"})

	assertionCryptoTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trust_core_assertion_crypto_total",
		Help: "Total assertion encryption and decryption operations",
	}, []string{"op", "result"})

	reg.MustRegister(
		metadataReloadTotal,
		metadataDescriptorCount,
		liveFetchTotal,
		signatureValidationTotal,
		assertionCryptoTotal,
	)

	return &PrometheusMetricsRecorder{
		metadataReloadTotal:      metadataReloadTotal,
		metadataDescriptorCount:  metadataDescriptorCount,
		liveFetchTotal:           liveFetchTotal,
		signatureValidationTotal: signatureValidationTotal,
		assertionCryptoTotal:     assertionCryptoTotal,
	}
}

// RecordMetadataReload records a static directory load or rescan.
func (p *PrometheusMetricsRecorder) RecordMetadataReload(success bool, descriptorCount int) {
	p.metadataReloadTotal.WithLabelValues(result(success)).Inc()
	if success {
		p.metadataDescriptorCount.Set(float64(descriptorCount))
	}
}

// RecordLiveFetch records a dynamic metadata retrieval attempt.
func (p *PrometheusMetricsRecorder) RecordLiveFetch(entityID string, success bool) {
	p.liveFetchTotal.WithLabelValues(entityID, result(success)).Inc()
}

// RecordSignatureValidation records a signature check result.
func (p *PrometheusMetricsRecorder) RecordSignatureValidation(kind string, success bool) {
	p.signatureValidationTotal.WithLabelValues(kind, result(success)).Inc()
}

// RecordAssertionCrypto records an assertion encrypt or decrypt operation.
func (p *PrometheusMetricsRecorder) RecordAssertionCrypto(op string, success bool) {
	p.assertionCryptoTotal.WithLabelValues(op, result(success)).Inc()
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

var _ ports.MetricsRecorder = (*PrometheusMetricsRecorder)(nil)
