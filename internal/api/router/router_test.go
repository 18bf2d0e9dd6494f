package router_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gostocksync/internal/api/inventory"
	"gostocksync/internal/api/router"
	"gostocksync/internal/api/web"
	"gostocksync/internal/pkg/logger"
	"gostocksync/internal/pkg/metrics"
	"gostocksync/internal/repository/inventoryrepo"
	"gostocksync/internal/service/inventoryservice"
	"gostocksync/internal/store/memstore"
	"gostocksync/internal/viewmodel"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	log := logger.Nop()
	reg := prometheus.NewRegistry()
	repo := inventoryrepo.NewInventoryRepository(memstore.New(), "inventory", time.Second, log, metrics.New(reg))
	svc := inventoryservice.NewService(repo, inventoryservice.StrategyOverwrite, log)
	ctrl := viewmodel.NewController(repo, svc, log)
	require.NoError(t, ctrl.Mount(context.Background()))
	t.Cleanup(ctrl.Teardown)

	return router.NewRouter(router.Dependencies{
		Logger:    log,
		Inventory: inventory.NewHandler(svc, ctrl, log),
		Web:       web.NewHandler(ctrl, log),
		Gatherer:  reg,
	})
}

func TestRouter_Routes(t *testing.T) {
	h := newRouter(t)

	cases := []struct {
		method, path string
		status       int
	}{
		{http.MethodGet, "/ping", http.StatusOK},
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/items/table", http.StatusOK},
		{http.MethodGet, "/inventory.csv", http.StatusOK},
		{http.MethodGet, "/v1/inventory", http.StatusOK},
		{http.MethodGet, "/v1/inventory/export", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/swagger/doc.json", http.StatusOK},
		{http.MethodDelete, "/v1/inventory", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.status, rec.Code, "%s %s", tc.method, tc.path)
		assert.NotEmpty(t, rec.Header().Get("X-Request-Id"), "%s %s", tc.method, tc.path)
	}
}

func TestRouter_MetricsExposeStoreOperations(t *testing.T) {
	h := newRouter(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/inventory/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `inventory_store_operations_total{operation="read_all",result="success"} 1`)
	assert.Contains(t, rec.Body.String(), "inventory_snapshots_total 1")
}
