package inventory_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gostocksync/internal/api/inventory"
	"gostocksync/internal/domain"
	"gostocksync/internal/pkg/logger"
	"gostocksync/internal/repository/inventoryrepo"
	"gostocksync/internal/service/inventoryservice"
	"gostocksync/internal/store"
	"gostocksync/internal/store/memstore"
	"gostocksync/internal/viewmodel"
)

type readFailStore struct {
	*memstore.Store
}

func (readFailStore) ReadAll(context.Context, string) ([]store.Document, error) {
	return nil, errors.New("backend offline")
}

func setup(t *testing.T, s store.DocumentStore) (http.Handler, *viewmodel.Controller) {
	t.Helper()
	log := logger.Nop()
	repo := inventoryrepo.NewInventoryRepository(s, "inventory", time.Second, log, nil)
	svc := inventoryservice.NewService(repo, inventoryservice.StrategyOverwrite, log,
		inventoryservice.WithClock(func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }))
	ctrl := viewmodel.NewController(repo, svc, log)
	require.NoError(t, ctrl.Mount(context.Background()))
	t.Cleanup(ctrl.Teardown)

	h := inventory.NewHandler(svc, ctrl, log)
	r := chi.NewRouter()
	r.Route("/v1/inventory", h.Routes)
	return r, ctrl
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndList(t *testing.T) {
	h, _ := setup(t, memstore.New())

	rec := do(t, h, http.MethodPost, "/v1/inventory", `{"productId":"A1","productName":"Tee","quantity":"4"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.InventoryRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 4, created.Quantity)
	assert.Equal(t, "2024-05-01T12:00:00.000Z", created.LastUpdated)

	rec = do(t, h, http.MethodGet, "/v1/inventory", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view domain.InventoryView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.False(t, view.Loading)
	require.Len(t, view.Items, 1)
	assert.Equal(t, created.ID, view.Items[0].ID)
}

func TestCreate_Validation(t *testing.T) {
	h, _ := setup(t, memstore.New())

	rec := do(t, h, http.MethodPost, "/v1/inventory", `{"productId":"","productName":"Tee"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body domain.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "VALIDATION_ERROR", body.Category)
	assert.Equal(t, "Product ID and Name required", body.Message)

	rec = do(t, h, http.MethodPost, "/v1/inventory", `{bad json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/inventory", `{"productId":"A1","productName":"Tee","quantity":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body = domain.ErrorResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Contains(t, body.Message, "quantity")
}

func TestCreate_NumericQuantity(t *testing.T) {
	h, _ := setup(t, memstore.New())

	rec := do(t, h, http.MethodPost, "/v1/inventory", `{"productId":"A1","productName":"Tee","quantity":5}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.InventoryRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, 5, created.Quantity)
}

func TestAdjust(t *testing.T) {
	h, ctrl := setup(t, memstore.New())
	rec := do(t, h, http.MethodPost, "/v1/inventory", `{"productId":"A1","productName":"Tee","quantity":"5"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := ctrl.Records()[0].ID

	rec = do(t, h, http.MethodPost, "/v1/inventory/"+id+"/adjust", `{"quantity":5,"delta":-1}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 4, ctrl.Records()[0].Quantity)

	rec = do(t, h, http.MethodPost, "/v1/inventory/"+id+"/adjust", `{"quantity":5,"delta":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/inventory/missing/adjust", `{"quantity":1,"delta":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdjust_RequiresDisplayedQuantity(t *testing.T) {
	h, ctrl := setup(t, memstore.New())
	rec := do(t, h, http.MethodPost, "/v1/inventory", `{"productId":"A1","productName":"Tee","quantity":"50"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := ctrl.Records()[0].ID

	// Sem quantity o estoque não pode ser sobrescrito com 0 + delta.
	rec = do(t, h, http.MethodPost, "/v1/inventory/"+id+"/adjust", `{"delta":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body domain.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "VALIDATION_ERROR", body.Category)
	assert.Contains(t, body.Message, "quantity")
	assert.Equal(t, 50, ctrl.Records()[0].Quantity)

	rec = do(t, h, http.MethodPost, "/v1/inventory/"+id+"/adjust", `{"quantity":null,"delta":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 50, ctrl.Records()[0].Quantity)

	// Zero explícito é uma quantidade exibida válida.
	rec = do(t, h, http.MethodPost, "/v1/inventory/"+id+"/adjust", `{"quantity":0,"delta":1}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, ctrl.Records()[0].Quantity)
}

func TestExport(t *testing.T) {
	h, _ := setup(t, memstore.New())
	do(t, h, http.MethodPost, "/v1/inventory", `{"productId":"A1","productName":"Cap, wool","quantity":"2"}`)

	rec := do(t, h, http.MethodGet, "/v1/inventory/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="inventory.csv"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))

	lines := strings.Split(rec.Body.String(), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `"A1","Cap, wool","","",2,"2024-05-01T12:00:00.000Z","","","",""`, lines[1])
}

func TestExport_StoreFailure(t *testing.T) {
	h, _ := setup(t, readFailStore{Store: memstore.New()})

	rec := do(t, h, http.MethodGet, "/v1/inventory/export", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestArchive_NotConfigured(t *testing.T) {
	h, _ := setup(t, memstore.New())

	rec := do(t, h, http.MethodPost, "/v1/inventory/export/archive", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEvents_StreamsSnapshots(t *testing.T) {
	h, _ := setup(t, memstore.New())
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/inventory/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && event != "":
				return event, data
			}
		}
	}

	event, data := readEvent()
	assert.Equal(t, "snapshot", event)
	assert.Equal(t, "[]", data)

	rec := do(t, h, http.MethodPost, "/v1/inventory", `{"productId":"A1","productName":"Tee"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	event, data = readEvent()
	assert.Equal(t, "snapshot", event)
	var items []domain.InventoryRecord
	require.NoError(t, json.Unmarshal([]byte(data), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "A1", items[0].ProductID)
}
