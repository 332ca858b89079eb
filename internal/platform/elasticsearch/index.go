// File: internal/platform/elasticsearch/index.go
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
)

const ProductsIndexName = "products"

func keywordSubfield() map[string]interface{} {
	return map[string]interface{}{
		"keyword": map[string]interface{}{"type": "keyword", "ignore_above": 256},
	}
}

// ProductsMapping returns the JSON body used to create the products index.
func ProductsMapping() ([]byte, error) {
	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"name":           map[string]interface{}{"type": "text", "fields": keywordSubfield()},
				"description":    map[string]interface{}{"type": "text"},
				"features":       map[string]interface{}{"type": "keyword"},
				"category":       map[string]interface{}{"type": "text", "fields": keywordSubfield()},
				"category_slug":  map[string]interface{}{"type": "keyword"},
				"seller_email":   map[string]interface{}{"type": "keyword"},
				"seller_name":    map[string]interface{}{"type": "text"},
				"free_shipping":  map[string]interface{}{"type": "boolean"},
				"regular_price":  map[string]interface{}{"type": "double"},
				"discount_price": map[string]interface{}{"type": "double"},
				"image_url":      map[string]interface{}{"type": "keyword", "index": false},
				"link":           map[string]interface{}{"type": "keyword", "index": false},
				"publish_date":   map[string]interface{}{"type": "date"},
			},
		},
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return nil, fmt.Errorf("error marshalling products mapping to JSON: %w", err)
	}
	return body, nil
}

// CreateProductsIndexIfNotExists creates the products index with its mapping
// unless it already exists.
func CreateProductsIndexIfNotExists(ctx context.Context, client *ESClientWrapper, logger *zap.Logger) error {
	log := logger.Named("elasticsearch_index_setup").With(zap.String("index_name", ProductsIndexName))

	res, err := esapi.IndicesExistsRequest{Index: []string{ProductsIndexName}}.Do(ctx, client.Client)
	if err != nil {
		log.Error("Error checking if products index exists", zap.Error(err))
		return fmt.Errorf("error checking if products index exists: %w", err)
	}
	res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		log.Info("Products index already exists")
		return nil
	case http.StatusNotFound:
	default:
		log.Error("Unexpected status checking products index", zap.String("status", res.Status()))
		return fmt.Errorf("error checking if products index exists: status %s", res.Status())
	}

	mapping, err := ProductsMapping()
	if err != nil {
		return err
	}

	createRes, err := esapi.IndicesCreateRequest{
		Index: ProductsIndexName,
		Body:  bytes.NewReader(mapping),
	}.Do(ctx, client.Client)
	if err != nil {
		log.Error("Error creating products index", zap.Error(err))
		return fmt.Errorf("error creating products index %s: %w", ProductsIndexName, err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		log.Error("Failed to create products index",
			zap.String("status", createRes.Status()),
			zap.Any("error_details", DecodeErrorBody(createRes)),
		)
		return fmt.Errorf("failed to create products index %s: status %s", ProductsIndexName, createRes.Status())
	}

	log.Info("Products index created successfully")
	return nil
}
