// File: internal/search/sync.go
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	platformElasticsearch "deals_marketplace/internal/platform/elasticsearch"
	"deals_marketplace/internal/product"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
)

// Source pages through every product for re-indexing.
type Source interface {
	FindAllForSync(ctx context.Context, offset, limit int) ([]product.Product, error)
}

// SyncStats summarizes a full re-index.
type SyncStats struct {
	Batches int
	Synced  int
	Failed  int
}

// Syncer bulk re-indexes the whole catalog.
type Syncer struct {
	source Source
	client *platformElasticsearch.ESClientWrapper
	logger *zap.Logger
}

// NewSyncer creates a new Syncer.
func NewSyncer(source Source, client *platformElasticsearch.ESClientWrapper, logger *zap.Logger) *Syncer {
	return &Syncer{source: source, client: client, logger: logger.Named("ProductSync")}
}

// Run walks the catalog in batches of batchSize and sends each batch through
// the bulk API. A failed batch is counted and skipped; the returned error
// reports how many products could not be indexed.
func (s *Syncer) Run(ctx context.Context, batchSize int, refresh string) (SyncStats, error) {
	if batchSize <= 0 {
		return SyncStats{}, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	s.logger.Info("Starting product synchronization to Elasticsearch",
		zap.Int("batchSize", batchSize),
		zap.String("esRefreshPolicy", refresh),
	)

	var stats SyncStats
	for offset := 0; ; {
		products, err := s.source.FindAllForSync(ctx, offset, batchSize)
		if err != nil {
			return stats, fmt.Errorf("fetch batch %d: %w", stats.Batches+1, err)
		}
		if len(products) == 0 {
			break
		}
		stats.Batches++
		offset += len(products)

		body, skipped := BuildBulkBody(products, s.logger)
		stats.Failed += skipped
		if body.Len() == 0 {
			continue
		}

		synced, failed := s.sendBatch(ctx, body, refresh, len(products)-skipped)
		stats.Synced += synced
		stats.Failed += failed
		s.logger.Info("Batch processed",
			zap.Int("batchNumber", stats.Batches),
			zap.Int("syncedInBatch", synced),
			zap.Int("failedInBatch", failed+skipped),
		)
	}

	s.logger.Info("Product synchronization finished",
		zap.Int("totalSynced", stats.Synced),
		zap.Int("totalFailed", stats.Failed),
	)
	if stats.Failed > 0 {
		return stats, fmt.Errorf("%d products failed to sync", stats.Failed)
	}
	return stats, nil
}

func (s *Syncer) sendBatch(ctx context.Context, body *bytes.Buffer, refresh string, docs int) (synced, failed int) {
	res, err := esapi.BulkRequest{Body: body, Refresh: refresh}.Do(ctx, s.client.Client)
	if err != nil {
		s.logger.Error("Failed to send bulk request to Elasticsearch", zap.Error(err))
		return 0, docs
	}
	defer res.Body.Close()

	if res.IsError() {
		s.logger.Error("Elasticsearch bulk request returned an error",
			zap.String("status", res.Status()),
			zap.Any("error_details", platformElasticsearch.DecodeErrorBody(res)),
		)
		return 0, docs
	}

	synced, failed, err = ParseBulkResponse(res.Body, s.logger)
	if err != nil {
		s.logger.Error("Failed to parse Elasticsearch bulk response body", zap.Error(err))
		return 0, docs
	}
	return synced, failed
}

// BuildBulkBody renders index actions for products in NDJSON form. Products
// that cannot be converted are logged and counted as skipped.
func BuildBulkBody(products []product.Product, logger *zap.Logger) (*bytes.Buffer, int) {
	var buf bytes.Buffer
	skipped := 0
	for i := range products {
		p := &products[i]
		doc, err := ProductDocument(p)
		if err != nil {
			logger.Error("Failed to convert product to Elasticsearch document", zap.Int64("productID", p.ID), zap.Error(err))
			skipped++
			continue
		}
		fmt.Fprintf(&buf, `{"index":{"_index":%q,"_id":%q}}`+"\n", platformElasticsearch.ProductsIndexName, documentID(p.ID))
		buf.Write(doc)
		buf.WriteByte('\n')
	}
	return &buf, skipped
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID     string                 `json:"_id"`
			Status int                    `json:"status"`
			Error  map[string]interface{} `json:"error,omitempty"`
		} `json:"index"`
	} `json:"items"`
}

// ParseBulkResponse counts per-item outcomes of a bulk response. A bulk call
// can succeed overall while individual items fail.
func ParseBulkResponse(r io.Reader, logger *zap.Logger) (synced, failed int, err error) {
	var resp bulkResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return 0, 0, err
	}
	for _, item := range resp.Items {
		if item.Index.Error != nil {
			logger.Error("Failed to index document in bulk batch",
				zap.String("productID", item.Index.ID),
				zap.Any("error", item.Index.Error),
				zap.Int("status", item.Index.Status),
			)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}
