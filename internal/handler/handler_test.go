package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/sentinnell/analytics_api/internal/config"
	"github.com/sentinnell/analytics_api/internal/database"
	"github.com/sentinnell/analytics_api/internal/models"
	"github.com/sentinnell/analytics_api/internal/repository"
	"github.com/sentinnell/analytics_api/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubFetcher struct {
	records []map[string]interface{}
}

func (f *stubFetcher) SearchProducts(context.Context, string, int, int) ([]map[string]interface{}, error) {
	return f.records, nil
}

func (f *stubFetcher) SimilarProducts(context.Context, string) ([]map[string]interface{}, error) {
	return nil, nil
}

func (f *stubFetcher) GenerateShortLink(context.Context, string, []string) (string, error) {
	return "https://s.example/short", nil
}

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
	Meta struct {
		RequestID  string `json:"requestId"`
		Pagination *struct {
			Page        int  `json:"page"`
			Limit       int  `json:"limit"`
			HasNextPage bool `json:"hasNextPage"`
		} `json:"pagination"`
	} `json:"meta"`
}

type testAPI struct {
	router *gin.Engine
	repo   *repository.ProductRepository
}

func newTestAPI(t *testing.T, readOnly bool, fetcher service.CatalogFetcher) *testAPI {
	t.Helper()
	cfg := &appconfig.DatabaseConfig{
		Path:            filepath.Join(t.TempDir(), "products.db"),
		LockWaitTimeout: 2 * time.Second,
		MaxRetries:      3,
		RetryBaseDelay:  5 * time.Millisecond,
		MaxOpenConns:    4,
	}
	rw, err := database.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, rw.RunMigrations(context.Background()))
	store := rw
	if readOnly {
		require.NoError(t, rw.Close())
		roCfg := *cfg
		roCfg.ReadOnly = true
		store, err = database.Open(&roCfg)
		require.NoError(t, err)
	}
	t.Cleanup(func() { _ = store.Close() })

	repo := repository.NewProductRepository(store)
	productSvc := service.NewProductService(repo)
	catalogSvc := service.NewCatalogService(fetcher, repo, nil, readOnly)

	products := NewProductHandler(productSvc)
	catalog := NewCatalogHandler(catalogSvc)
	health := NewHealthHandler(productSvc, "test", readOnly, fetcher != nil)

	r := gin.New()
	api := r.Group("/api")
	api.GET("/health", health.GetHealth)
	api.GET("/products", products.GetProducts)
	api.GET("/products/search", products.SearchProducts)
	api.POST("/search", catalog.Search)
	api.POST("/products", catalog.SaveProduct)
	api.POST("/update-categories", catalog.UpdateCategories)
	return &testAPI{router: r, repo: repo}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func (a *testAPI) seed(t *testing.T, ids ...string) {
	t.Helper()
	for i, id := range ids {
		_, err := a.repo.Upsert(context.Background(), &models.Product{ExternalID: id, Name: "Produto " + id, Price: float64(10 * (i + 1))})
		require.NoError(t, err)
	}
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, false, nil)
	api.seed(t, "1", "2")

	w, env := api.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Status   string `json:"status"`
		ReadOnly bool   `json:"readOnly"`
		Store    struct {
			Products int `json:"products"`
		} `json:"store"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "healthy", data.Status)
	assert.False(t, data.ReadOnly)
	assert.Equal(t, 2, data.Store.Products)
}

func TestProducts_ListAndSearch(t *testing.T) {
	api := newTestAPI(t, false, nil)
	api.seed(t, "1", "2", "3")

	w, env := api.do(t, http.MethodGet, "/api/products", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Products []models.Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.Products, 3)

	w, env = api.do(t, http.MethodGet, "/api/products/search?sortType=1&limit=2", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Products, 2)
	assert.Equal(t, "1", list.Products[0].ExternalID)
	require.NotNil(t, env.Meta.Pagination)
	assert.True(t, env.Meta.Pagination.HasNextPage)
	assert.Equal(t, 2, env.Meta.Pagination.Limit)

	w, env = api.do(t, http.MethodGet, "/api/products/search?category=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", env.Error.Code)
}

func TestCatalogSearch(t *testing.T) {
	fetcher := &stubFetcher{records: []map[string]interface{}{
		{"itemId": "1", "productName": "Fone", "sales": 100, "commissionRate": 0.1},
		{"itemId": "2", "productName": "Capa", "sales": 10},
	}}
	api := newTestAPI(t, false, fetcher)
	api.seed(t, "2")

	w, env := api.do(t, http.MethodPost, "/api/search", map[string]interface{}{"keyword": "fone"})
	assert.Equal(t, http.StatusOK, w.Code)
	var res struct {
		Products    []models.Product `json:"products"`
		HotProducts []struct {
			ItemID   string  `json:"itemId"`
			HotScore float64 `json:"hotScore"`
		} `json:"hotProducts"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.Len(t, res.Products, 2)
	assert.False(t, res.Products[0].ExistsInStore)
	assert.True(t, res.Products[1].ExistsInStore)
	require.Len(t, res.HotProducts, 1)
	assert.Equal(t, "1", res.HotProducts[0].ItemID)

	w, env = api.do(t, http.MethodPost, "/api/search", map[string]interface{}{"keyword": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestCatalogSearch_NotConfigured(t *testing.T) {
	api := newTestAPI(t, false, nil)
	w, env := api.do(t, http.MethodPost, "/api/search", map[string]interface{}{"keyword": "fone"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "UPSTREAM_NOT_CONFIGURED", env.Error.Code)
}

func TestSaveProduct(t *testing.T) {
	api := newTestAPI(t, false, &stubFetcher{})
	body := map[string]interface{}{
		"product":   map[string]interface{}{"itemId": 22912345678, "productName": "Mochila", "offerLink": "https://s.example/o"},
		"affiliate": map[string]interface{}{"subIds": []string{"home"}},
	}

	w, _ := api.do(t, http.MethodPost, "/api/products", body)
	assert.Equal(t, http.StatusCreated, w.Code)
	w, _ = api.do(t, http.MethodPost, "/api/products", body)
	assert.Equal(t, http.StatusOK, w.Code)

	stored, err := api.repo.GetByExternalID(context.Background(), "22912345678")
	require.NoError(t, err)
	require.NotNil(t, stored.ShortLink)
	assert.Equal(t, "https://s.example/short", *stored.ShortLink)

	w, env := api.do(t, http.MethodPost, "/api/products", map[string]interface{}{"product": map[string]interface{}{"productName": "x"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	w, env = api.do(t, http.MethodPost, "/api/products", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", env.Error.Code)
}

func TestReadOnlyDeployment(t *testing.T) {
	api := newTestAPI(t, true, &stubFetcher{})

	w, env := api.do(t, http.MethodPost, "/api/products", map[string]interface{}{"product": map[string]interface{}{"itemId": "1"}})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "READ_ONLY_VIOLATION", env.Error.Code)

	w, env = api.do(t, http.MethodPost, "/api/update-categories", map[string]interface{}{
		"products": []map[string]interface{}{{"itemId": "1", "categoryId": 3}},
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "READ_ONLY_VIOLATION", env.Error.Code)

	w, _ = api.do(t, http.MethodGet, "/api/products", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateCategories(t *testing.T) {
	api := newTestAPI(t, false, nil)
	api.seed(t, "1")

	w, env := api.do(t, http.MethodPost, "/api/update-categories", map[string]interface{}{
		"products": []map[string]interface{}{
			{"itemId": "1", "categoryId": 3},
			{"itemId": "404", "categoryId": 3},
		},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	var res service.CategoryUpdateResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Failed)

	w, _ = api.do(t, http.MethodPost, "/api/update-categories", map[string]interface{}{"products": []interface{}{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
