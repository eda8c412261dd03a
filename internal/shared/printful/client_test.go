package printful

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(url string) *Client {
	return NewClient(Config{
		BaseURL:      url,
		Token:        "test-token",
		StoreID:      "42",
		PageSize:     2,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
		MaxPages:     10,
	}, nil)
}

func writeEnvelope(w http.ResponseWriter, result interface{}, paging *Paging) {
	raw, _ := json.Marshal(result)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(envelope{Code: 200, Result: raw, Paging: paging})
}

func listingServer(t *testing.T, ids []int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/store/products" {
			http.NotFound(w, r)
			return
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		page := []ProductSummary{}
		for i := offset; i < len(ids) && i < offset+limit; i++ {
			page = append(page, ProductSummary{ID: ids[i], Name: fmt.Sprintf("Product %d", ids[i])})
		}
		writeEnvelope(w, page, &Paging{Total: len(ids), Offset: offset, Limit: limit})
	}))
}

func TestListAll_Pagination(t *testing.T) {
	srv := listingServer(t, []int64{1, 2, 3, 4, 5})
	defer srv.Close()

	products, err := newTestClient(srv.URL).ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(products) != 5 {
		t.Fatalf("expected 5 products, got %d", len(products))
	}
	for i, p := range products {
		if p.ID != int64(i+1) {
			t.Errorf("products[%d].ID = %d, want %d", i, p.ID, i+1)
		}
	}
}

func TestListAll_ExactMultipleStopsOnTotal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		page := []ProductSummary{{ID: int64(offset + 1)}, {ID: int64(offset + 2)}}
		writeEnvelope(w, page, &Paging{Total: 4, Offset: offset, Limit: 2})
	}))
	defer srv.Close()

	products, err := newTestClient(srv.URL).ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(products) != 4 {
		t.Errorf("expected 4 products, got %d", len(products))
	}
	if calls != 2 {
		t.Errorf("expected 2 page requests, got %d", calls)
	}
}

func TestListAll_Dedup(t *testing.T) {
	srv := listingServer(t, []int64{7, 8, 8, 9})
	defer srv.Close()

	products, err := newTestClient(srv.URL).ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("expected 3 unique products, got %d", len(products))
	}
	if products[0].ID != 7 || products[1].ID != 8 || products[2].ID != 9 {
		t.Errorf("unexpected order: %+v", products)
	}
}

func TestListAll_PageCeiling(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		// always a full page and no total, the remote never says stop
		page := []ProductSummary{{ID: int64(n*10 + 1)}, {ID: int64(n*10 + 2)}}
		writeEnvelope(w, page, nil)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.cfg.MaxPages = 3
	products, err := c.ListAll(context.Background())
	if !errors.Is(err, ErrListingTruncated) {
		t.Fatalf("expected ErrListingTruncated, got %v", err)
	}
	if products != nil {
		t.Errorf("a truncated listing must not be returned, got %d products", len(products))
	}
	if calls != 3 {
		t.Errorf("expected 3 requests, got %d", calls)
	}
}

func TestListAll_RetriesTransientFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeEnvelope(w, []ProductSummary{{ID: 1}}, &Paging{Total: 1})
	}))
	defer srv.Close()

	products, err := newTestClient(srv.URL).ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(products) != 1 || calls != 2 {
		t.Errorf("expected 1 product after 2 calls, got %d products / %d calls", len(products), calls)
	}
}

func TestListAll_RetryAfterOn429(t *testing.T) {
	var calls int32
	var first, second time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			first = time.Now()
			w.Header().Set("Retry-After", "0.05")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		second = time.Now()
		writeEnvelope(w, []ProductSummary{}, nil)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).ListAll(context.Background()); err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if gap := second.Sub(first); gap < 50*time.Millisecond {
		t.Errorf("expected Retry-After to be honoured, retried after %v", gap)
	}
}

func TestListAll_ExhaustedRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"code":500,"error":{"reason":"InternalError","message":"boom"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).ListAll(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if fe.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d", fe.StatusCode)
	}
	if fe.Attempts != 3 || calls != 3 {
		t.Errorf("expected 3 attempts, got %d (server saw %d)", fe.Attempts, calls)
	}
}

func TestListAll_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).ListAll(context.Background())
	var fe *FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 FetchError, got %v", err)
	}
	if fe.Temporary() {
		t.Error("401 must not be temporary")
	}
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestGetDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("missing bearer token")
		}
		if r.Header.Get("X-PF-Store-Id") != "42" {
			t.Errorf("missing store header")
		}
		if r.URL.Path != "/store/products/99" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"code":200,"result":{
			"sync_product":{"id":99,"name":"Tee","thumbnail_url":"https://files.cdn.printful.com/files/a1/tee.png","is_ignored":false},
			"sync_variants":[{"id":501,"sku":"A1_RED_S","retail_price":"19.50","currency":"EUR","size":"S","color":"Red",
				"main_category_id":24,"variant_id":4011,"product":{"variant_id":4011,"product_id":71,"image":"x.png","name":"Tee S"},
				"files":[{"id":9,"type":"preview","preview_url":"https://files.cdn.printful.com/files/b2/prev.png?v=3"}],
				"options":[{"id":"embroidery_type","value":"flat"},{"id":"thread_colors","value":["#FFFFFF"]}]}]}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	detail, err := c.GetDetail(context.Background(), 99)
	if err != nil {
		t.Fatalf("GetDetail: %v", err)
	}
	if detail.SyncProduct.Name != "Tee" {
		t.Errorf("Name = %q", detail.SyncProduct.Name)
	}
	primary := detail.Primary()
	if primary == nil || primary.SKU != "A1_RED_S" || primary.RetailPrice != "19.50" {
		t.Fatalf("unexpected primary variant: %+v", primary)
	}
	if primary.MainCategoryID != 24 || primary.Product.ProductID != 71 {
		t.Errorf("catalog references not decoded: %+v", primary)
	}
	if len(primary.Files) != 1 || primary.Files[0].Type != "preview" {
		t.Errorf("files not decoded: %+v", primary.Files)
	}
	if len(primary.Options) != 2 || string(primary.Options[1].Value) != `["#FFFFFF"]` {
		t.Errorf("options not decoded: %+v", primary.Options)
	}

	_, err = c.GetDetail(context.Background(), 100)
	if !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestGetCategory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, categoryResult{Category: Category{ID: 24, Title: "T-Shirts", ImageURL: "https://x/c.jpg"}}, nil)
	}))
	defer srv.Close()

	cat, err := newTestClient(srv.URL).GetCategory(context.Background(), 24)
	if err != nil {
		t.Fatalf("GetCategory: %v", err)
	}
	if cat.Title != "T-Shirts" || cat.ImageURL != "https://x/c.jpg" {
		t.Errorf("unexpected category: %+v", cat)
	}
}

func TestGetWithRetry_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.cfg.RetryBackoff = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GetDetail(ctx, 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
