package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
)

// Fetcher retrieves metadata live from an entity identifier that doubles as
// its URL. Responses are size-bounded and each retrieval is bounded by the
// configured timeout.
type Fetcher struct {
	opts options
}

// NewFetcher creates a live metadata fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.fetchTimeout}
	}
	return &Fetcher{opts: o}
}

// Fetch retrieves and parses the descriptor published at url. When the
// document is an aggregate, the record whose entityID equals the requested
// URL is selected; anything else is a failed retrieval.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*domain.DescriptorRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.NoMetadataError(url, err)
	}
	resp, err := f.opts.httpClient.Do(req)
	if err != nil {
		f.opts.metricsRecorder.RecordLiveFetch(url, false)
		return nil, domain.NoMetadataError(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.opts.metricsRecorder.RecordLiveFetch(url, false)
		return nil, domain.NoMetadataError(url,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.maxFetchBytes+1))
	if err != nil {
		f.opts.metricsRecorder.RecordLiveFetch(url, false)
		return nil, domain.NoMetadataError(url, err)
	}
	if int64(len(data)) > f.opts.maxFetchBytes {
		f.opts.metricsRecorder.RecordLiveFetch(url, false)
		return nil, domain.NoMetadataError(url,
			fmt.Errorf("response exceeds %d bytes", f.opts.maxFetchBytes))
	}

	records, err := ParseDescriptors(data)
	if err != nil {
		f.opts.metricsRecorder.RecordLiveFetch(url, false)
		return nil, domain.NoMetadataError(url, err)
	}

	rec := selectRecord(records, url)
	if rec == nil {
		f.opts.metricsRecorder.RecordLiveFetch(url, false)
		return nil, domain.NoMetadataError(url,
			fmt.Errorf("document does not describe %q", url))
	}

	f.opts.metricsRecorder.RecordLiveFetch(url, true)
	if f.opts.logger != nil {
		f.opts.logger.Info("metadata fetched",
			zap.String("entity_id", rec.EntityID),
			zap.Int("bytes", len(data)),
		)
	}
	return rec, nil
}

func selectRecord(records []*domain.DescriptorRecord, url string) *domain.DescriptorRecord {
	if len(records) == 1 {
		return records[0]
	}
	for _, rec := range records {
		if rec.EntityID == url {
			return rec
		}
	}
	return nil
}
