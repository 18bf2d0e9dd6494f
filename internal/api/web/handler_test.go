package web_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gostocksync/internal/api/web"
	"gostocksync/internal/pkg/logger"
	"gostocksync/internal/repository/inventoryrepo"
	"gostocksync/internal/service/inventoryservice"
	"gostocksync/internal/store"
	"gostocksync/internal/store/memstore"
	"gostocksync/internal/viewmodel"
)

type createFailStore struct {
	*memstore.Store
}

func (createFailStore) Create(context.Context, string, store.Fields) (string, error) {
	return "", errors.New("quota exceeded")
}

func newPage(t *testing.T, s store.DocumentStore, mount bool) (http.Handler, *viewmodel.Controller) {
	t.Helper()
	log := logger.Nop()
	repo := inventoryrepo.NewInventoryRepository(s, "inventory", time.Second, log, nil)
	svc := inventoryservice.NewService(repo, inventoryservice.StrategyOverwrite, log)
	ctrl := viewmodel.NewController(repo, svc, log)
	if mount {
		require.NoError(t, ctrl.Mount(context.Background()))
		t.Cleanup(ctrl.Teardown)
	}
	r := chi.NewRouter()
	web.NewHandler(ctrl, log).Routes(r)
	return r, ctrl
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func post(h http.Handler, path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIndex_LoadingBeforeMount(t *testing.T) {
	h, _ := newPage(t, memstore.New(), false)

	rec := get(h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<p>Loading...</p>")
	assert.Contains(t, body, `name="productId" value="" placeholder="ProductId" type="text" required`)
	assert.Contains(t, body, `name="quantity" value="0" placeholder="Quantity" type="number"`)
	assert.NotContains(t, body, `name="lastUpdated"`)
	assert.Contains(t, body, "Download CSV")
}

func TestAdd_ValidationKeepsForm(t *testing.T) {
	h, ctrl := newPage(t, memstore.New(), true)

	rec := post(h, "/items", url.Values{"productId": {""}, "productName": {"Tee"}, "color": {"red"}})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<div class="alert" role="alert">Product ID and Name required</div>`)
	assert.Contains(t, body, `name="productName" value="Tee"`)
	assert.Contains(t, body, `name="color" value="red"`)
	assert.Empty(t, ctrl.Records())
}

func TestAdd_SuccessResetsFormAndShowsRow(t *testing.T) {
	h, ctrl := newPage(t, memstore.New(), true)

	rec := post(h, "/items", url.Values{"productId": {"A1"}, "productName": {"Tee"}, "quantity": {"0"}})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, `role="alert"`)
	assert.Contains(t, body, `name="productId" value=""`)
	assert.Contains(t, body, "<td>A1</td>")

	records := ctrl.Records()
	require.Len(t, records, 1)
	id := records[0].ID
	// quantity 0: o botão de decremento fica desabilitado.
	assert.Contains(t, body, `<input type="hidden" name="delta" value="-1"><button type="submit" disabled>-</button>`)

	rec = post(h, "/items/"+id+"/adjust", url.Values{"quantity": {"0"}, "delta": {"1"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, 1, ctrl.Records()[0].Quantity)

	table := get(h, "/items/table").Body.String()
	assert.Contains(t, table, `<input type="hidden" name="delta" value="-1"><button type="submit">-</button>`)
	assert.NotContains(t, table, "<html")
}

func TestAdd_StoreFailureShowsAlert(t *testing.T) {
	h, _ := newPage(t, createFailStore{Store: memstore.New()}, true)

	rec := post(h, "/items", url.Values{"productId": {"A1"}, "productName": {"Tee"}})
	body := rec.Body.String()
	assert.Contains(t, body, "Error adding item: quota exceeded")
	assert.Contains(t, body, `name="productId" value="A1"`)
}

func TestAdjust_UnknownIDShowsAlert(t *testing.T) {
	h, _ := newPage(t, memstore.New(), true)

	rec := post(h, "/items/missing/adjust", url.Values{"quantity": {"1"}, "delta": {"1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error updating quantity: ")
}

func TestAdjust_InvalidDisplayedQuantityShowsAlert(t *testing.T) {
	h, ctrl := newPage(t, memstore.New(), true)
	post(h, "/items", url.Values{"productId": {"A1"}, "productName": {"Tee"}, "quantity": {"50"}})
	records := ctrl.Records()
	require.Len(t, records, 1)
	id := records[0].ID

	cases := []url.Values{
		{"delta": {"1"}},
		{"quantity": {""}, "delta": {"1"}},
		{"quantity": {"abc"}, "delta": {"-1"}},
		{"quantity": {"50"}},
		{"quantity": {"50"}, "delta": {"x"}},
	}
	for _, values := range cases {
		rec := post(h, "/items/"+id+"/adjust", values)
		require.Equal(t, http.StatusOK, rec.Code, values.Encode())
		assert.Contains(t, rec.Body.String(), `<div class="alert" role="alert">Error updating quantity: `, values.Encode())
		assert.Equal(t, 50, ctrl.Records()[0].Quantity, values.Encode())
	}
}

func TestDownload(t *testing.T) {
	h, _ := newPage(t, memstore.New(), true)
	post(h, "/items", url.Values{"productId": {"A1"}, "productName": {"<b>Tee</b>"}})

	rec := get(h, "/inventory.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="inventory.csv"`, rec.Header().Get("Content-Disposition"))
	lines := strings.Split(rec.Body.String(), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], `"A1","<b>Tee</b>",`))
}

func TestTable_EscapesValues(t *testing.T) {
	h, _ := newPage(t, memstore.New(), true)
	post(h, "/items", url.Values{"productId": {"A1"}, "productName": {"<script>x</script>"}})

	table := get(h, "/items/table").Body.String()
	assert.NotContains(t, table, "<script>x</script>")
	assert.Contains(t, table, "&lt;script&gt;x&lt;/script&gt;")
}
