// File: internal/search/indexer.go
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	platformElasticsearch "deals_marketplace/internal/platform/elasticsearch"
	"deals_marketplace/internal/product"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

// ProductDocument converts a product to its search document. Seller details
// are included only when the Seller association is loaded.
func ProductDocument(p *product.Product) ([]byte, error) {
	if p == nil {
		return nil, errors.New("product cannot be nil")
	}

	features := []string(p.Features)
	if features == nil {
		features = []string{}
	}
	doc := map[string]interface{}{
		"name":           p.Name,
		"description":    p.Description,
		"features":       features,
		"category":       p.Category,
		"category_slug":  slug.Make(p.Category),
		"seller_email":   p.SellerEmail,
		"free_shipping":  p.FreeShipping,
		"regular_price":  p.RegularPrice,
		"discount_price": p.DiscountPrice,
		"image_url":      p.ImageURL,
		"link":           p.Link,
		"publish_date":   p.PublishDate.UTC().Format(time.RFC3339Nano),
	}
	if p.Seller != nil {
		doc["seller_name"] = p.Seller.DisplayName()
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("error marshalling product %d to JSON for ES: %w", p.ID, err)
	}
	return body, nil
}

func documentID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Indexer mirrors product writes into the products index.
type Indexer struct {
	client *platformElasticsearch.ESClientWrapper
	logger *zap.Logger
}

var _ product.Indexer = (*Indexer)(nil)

// NewIndexer returns an Elasticsearch backed indexer, or a no-op one when
// no client is configured.
func NewIndexer(client *platformElasticsearch.ESClientWrapper, logger *zap.Logger) product.Indexer {
	if client == nil {
		return product.NopIndexer{}
	}
	return &Indexer{client: client, logger: logger.Named("ProductIndexer")}
}

// IndexProduct creates or replaces the document for p.
func (ix *Indexer) IndexProduct(ctx context.Context, p *product.Product) error {
	body, err := ProductDocument(p)
	if err != nil {
		return err
	}
	res, err := esapi.IndexRequest{
		Index:      platformElasticsearch.ProductsIndexName,
		DocumentID: documentID(p.ID),
		Body:       bytes.NewReader(body),
	}.Do(ctx, ix.client.Client)
	if err != nil {
		return fmt.Errorf("index product %d: %w", p.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		ix.logger.Error("Elasticsearch rejected product document",
			zap.Int64("productID", p.ID),
			zap.String("status", res.Status()),
			zap.Any("error_details", platformElasticsearch.DecodeErrorBody(res)),
		)
		return fmt.Errorf("index product %d: status %s", p.ID, res.Status())
	}
	return nil
}

// DeleteProduct removes the document for id. A missing document is not an error.
func (ix *Indexer) DeleteProduct(ctx context.Context, id int64) error {
	res, err := esapi.DeleteRequest{
		Index:      platformElasticsearch.ProductsIndexName,
		DocumentID: documentID(id),
	}.Do(ctx, ix.client.Client)
	if err != nil {
		return fmt.Errorf("delete product %d from index: %w", id, err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete product %d from index: status %s", id, res.Status())
	}
	return nil
}
