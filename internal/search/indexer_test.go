package search

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	platformElasticsearch "deals_marketplace/internal/platform/elasticsearch"
	"deals_marketplace/internal/product"
	"deals_marketplace/internal/user"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

// fakeCluster answers like an Elasticsearch node and records every request.
type fakeCluster struct {
	mu       sync.Mutex
	requests []recordedRequest
	handle   func(w http.ResponseWriter, body string)
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	if f.handle != nil {
		f.handle(w, string(body))
		return
	}
	_, _ = w.Write([]byte(`{"result":"ok"}`))
}

func newTestClient(t *testing.T, cluster *fakeCluster) *platformElasticsearch.ESClientWrapper {
	t.Helper()
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}, MaxRetries: 0})
	require.NoError(t, err)
	return &platformElasticsearch.ESClientWrapper{Client: client}
}

func sampleProduct() *product.Product {
	return &product.Product{
		ID:            7,
		SellerEmail:   "alice@example.com",
		Seller:        &user.User{Email: "alice@example.com", FirstName: "Alice", LastName: "Smith"},
		Name:          "Wireless Mouse",
		Features:      product.Features{"wireless", "ergonomic"},
		FreeShipping:  true,
		Category:      "Home Office",
		RegularPrice:  40,
		DiscountPrice: 25,
		PublishDate:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestProductDocument(t *testing.T) {
	body, err := ProductDocument(sampleProduct())
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, "Wireless Mouse", doc["name"])
	assert.Equal(t, "home-office", doc["category_slug"])
	assert.Equal(t, "Alice Smith", doc["seller_name"])
	assert.Equal(t, []interface{}{"wireless", "ergonomic"}, doc["features"])
	assert.Equal(t, "2024-03-01T12:00:00Z", doc["publish_date"])
	assert.Equal(t, true, doc["free_shipping"])
}

func TestProductDocument_WithoutSellerOrFeatures(t *testing.T) {
	p := sampleProduct()
	p.Seller = nil
	p.Features = nil

	body, err := ProductDocument(p)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.NotContains(t, doc, "seller_name")
	assert.Equal(t, []interface{}{}, doc["features"])

	_, err = ProductDocument(nil)
	assert.Error(t, err)
}

func TestNewIndexer_NilClientIsNop(t *testing.T) {
	ix := NewIndexer(nil, zap.NewNop())
	assert.IsType(t, product.NopIndexer{}, ix)
	assert.NoError(t, ix.IndexProduct(context.Background(), sampleProduct()))
}

func TestIndexer_IndexAndDelete(t *testing.T) {
	cluster := &fakeCluster{}
	ix := NewIndexer(newTestClient(t, cluster), zap.NewNop())

	require.NoError(t, ix.IndexProduct(context.Background(), sampleProduct()))
	require.NoError(t, ix.DeleteProduct(context.Background(), 7))

	require.Len(t, cluster.requests, 2)
	assert.Equal(t, http.MethodPut, cluster.requests[0].Method)
	assert.Equal(t, "/products/_doc/7", cluster.requests[0].Path)
	assert.Contains(t, cluster.requests[0].Body, `"category_slug":"home-office"`)
	assert.Equal(t, http.MethodDelete, cluster.requests[1].Method)
	assert.Equal(t, "/products/_doc/7", cluster.requests[1].Path)
}

func TestIndexer_DeleteMissingDocumentIsNotAnError(t *testing.T) {
	cluster := &fakeCluster{handle: func(w http.ResponseWriter, reqBody string) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"result":"not_found"}`))
	}}
	ix := NewIndexer(newTestClient(t, cluster), zap.NewNop())

	assert.NoError(t, ix.DeleteProduct(context.Background(), 99))
}

func TestIndexer_RejectedDocument(t *testing.T) {
	cluster := &fakeCluster{handle: func(w http.ResponseWriter, reqBody string) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"mapper_parsing_exception"}}`))
	}}
	ix := NewIndexer(newTestClient(t, cluster), zap.NewNop())

	err := ix.IndexProduct(context.Background(), sampleProduct())
	assert.ErrorContains(t, err, "400")
}

func TestBuildBulkBody(t *testing.T) {
	a := *sampleProduct()
	b := *sampleProduct()
	b.ID = 8
	b.Name = "Desk Lamp"

	buf, skipped := BuildBulkBody([]product.Product{a, b}, zap.NewNop())
	assert.Zero(t, skipped)

	var lines []string
	sc := bufio.NewScanner(strings.NewReader(buf.String()))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.Len(t, lines, 4)
	assert.Equal(t, `{"index":{"_index":"products","_id":"7"}}`, lines[0])
	assert.Contains(t, lines[1], `"name":"Wireless Mouse"`)
	assert.Equal(t, `{"index":{"_index":"products","_id":"8"}}`, lines[2])
	assert.Contains(t, lines[3], `"name":"Desk Lamp"`)
}

func TestParseBulkResponse(t *testing.T) {
	body := `{"errors":true,"items":[
		{"index":{"_id":"1","status":201}},
		{"index":{"_id":"2","status":400,"error":{"type":"mapper_parsing_exception"}}},
		{"index":{"_id":"3","status":200}}
	]}`

	synced, failed, err := ParseBulkResponse(strings.NewReader(body), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, synced)
	assert.Equal(t, 1, failed)

	_, _, err = ParseBulkResponse(strings.NewReader("not json"), zap.NewNop())
	assert.Error(t, err)
}

type sliceSource struct {
	products []product.Product
}

func (s sliceSource) FindAllForSync(_ context.Context, offset, limit int) ([]product.Product, error) {
	if offset >= len(s.products) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.products) {
		end = len(s.products)
	}
	return s.products[offset:end], nil
}

func TestSyncer_Run(t *testing.T) {
	var all []product.Product
	for i := int64(1); i <= 5; i++ {
		p := *sampleProduct()
		p.ID = i
		all = append(all, p)
	}

	cluster := &fakeCluster{handle: func(w http.ResponseWriter, reqBody string) {
		// Echo one successful item per action line.
		body := `{"errors":false,"items":[`
		n := 0
		for _, line := range strings.Split(strings.TrimSpace(reqBody), "\n") {
			if strings.HasPrefix(line, `{"index"`) {
				if n > 0 {
					body += ","
				}
				body += `{"index":{"status":201}}`
				n++
			}
		}
		_, _ = w.Write([]byte(body + "]}"))
	}}
	syncer := NewSyncer(sliceSource{products: all}, newTestClient(t, cluster), zap.NewNop())

	stats, err := syncer.Run(context.Background(), 2, "false")
	require.NoError(t, err)
	assert.Equal(t, SyncStats{Batches: 3, Synced: 5, Failed: 0}, stats)
	for _, req := range cluster.requests {
		assert.Equal(t, "/_bulk", req.Path)
	}

	_, err = syncer.Run(context.Background(), 0, "false")
	assert.Error(t, err)
}
