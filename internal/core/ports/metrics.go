package ports

// MetricsRecorder is the port interface for recording metrics.
// Implementations are adapters (PrometheusMetricsRecorder for production,
// NoopMetricsRecorder for disabled/testing).
type MetricsRecorder interface {
	// RecordMetadataReload records a static directory load or rescan.
	RecordMetadataReload(success bool, descriptorCount int)

	// RecordLiveFetch records a dynamic metadata retrieval attempt.
	RecordLiveFetch(entityID string, success bool)

	// RecordSignatureValidation records a message or metadata signature
	// check result.
	RecordSignatureValidation(kind string, success bool)

	// RecordAssertionCrypto records an assertion encrypt or decrypt
	// operation ("encrypt"/"decrypt").
	RecordAssertionCrypto(op string, success bool)
}

// NoopMetricsRecorder discards all recordings.
type NoopMetricsRecorder struct{}

func (NoopMetricsRecorder) RecordMetadataReload(bool, int) {}

func (NoopMetricsRecorder) RecordLiveFetch(string, bool) {}

func (NoopMetricsRecorder) RecordSignatureValidation(string, bool) {}

func (NoopMetricsRecorder) RecordAssertionCrypto(string, bool) {}

var _ MetricsRecorder = NoopMetricsRecorder{}
