package inventoryrepo_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gostocksync/internal/domain"
	apperror "gostocksync/internal/errors"
	"gostocksync/internal/pkg/logger"
	"gostocksync/internal/pkg/metrics"
	"gostocksync/internal/repository/inventoryrepo"
	"gostocksync/internal/store"
	"gostocksync/internal/store/memstore"
)

// failingStore devolve o erro configurado em todas as escritas.
type failingStore struct {
	*memstore.Store
	err error
}

func (f *failingStore) Create(context.Context, string, store.Fields) (string, error) {
	return "", f.err
}

func (f *failingStore) Update(context.Context, string, string, store.Fields) error {
	return f.err
}

func newRepo(s store.DocumentStore) *inventoryrepo.InventoryRepository {
	return inventoryrepo.NewInventoryRepository(s, "inventory", time.Second, logger.Nop(), metrics.New(prometheus.NewRegistry()))
}

func TestCreateAndFindAll(t *testing.T) {
	repo := newRepo(memstore.New())
	ctx := context.Background()

	rec := domain.InventoryRecord{ProductID: "A1", ProductName: "Tee", Quantity: 3, LastUpdated: "2024-01-01T00:00:00.000Z"}
	id, err := repo.Create(ctx, rec)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	rec.ID = id
	assert.Equal(t, rec, all[0])
}

func TestSetQuantity_NotFound(t *testing.T) {
	repo := newRepo(memstore.New())

	err := repo.SetQuantity(context.Background(), "missing", 1, "2024-01-01T00:00:00.000Z")

	var notFound *apperror.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestIncrementQuantity(t *testing.T) {
	repo := newRepo(memstore.New())
	ctx := context.Background()

	id, err := repo.Create(ctx, domain.InventoryRecord{ProductID: "A1", ProductName: "Tee", Quantity: 5})
	require.NoError(t, err)

	require.NoError(t, repo.IncrementQuantity(ctx, id, -1, "t1"))
	require.NoError(t, repo.IncrementQuantity(ctx, id, -1, "t2"))

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, all[0].Quantity)
	assert.Equal(t, "t2", all[0].LastUpdated)
}

func TestStoreErrorsAreWrapped(t *testing.T) {
	cause := errors.New("permission denied")
	repo := newRepo(&failingStore{Store: memstore.New(), err: cause})

	_, err := repo.Create(context.Background(), domain.InventoryRecord{ProductID: "A1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "permission denied", apperror.Message(err))

	err = repo.SetQuantity(context.Background(), "x", 1, "t")
	assert.ErrorIs(t, err, cause)
}

func TestWatch_ConvertsSnapshots(t *testing.T) {
	s := memstore.New()
	repo := newRepo(s)
	ctx := context.Background()

	var mu sync.Mutex
	var snapshots [][]domain.InventoryRecord
	unsub, err := repo.Watch(ctx, func(records []domain.InventoryRecord) {
		mu.Lock()
		defer mu.Unlock()
		snapshots = append(snapshots, records)
	})
	require.NoError(t, err)
	defer unsub()

	_, err = repo.Create(ctx, domain.InventoryRecord{ProductID: "A1", ProductName: "Tee"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, snapshots, 2)
	assert.Empty(t, snapshots[0])
	require.Len(t, snapshots[1], 1)
	assert.Equal(t, "A1", snapshots[1][0].ProductID)
}

func TestDocumentToRecord_Coercion(t *testing.T) {
	rec := inventoryrepo.DocumentToRecord(store.Document{ID: "d1", Fields: store.Fields{
		domain.FieldProductID: "A1",
		domain.FieldQuantity:  "abc",
	}})
	assert.Equal(t, "d1", rec.ID)
	assert.Equal(t, 0, rec.Quantity)
	assert.Equal(t, "", rec.ProductName)

	rec = inventoryrepo.DocumentToRecord(store.Document{Fields: store.Fields{domain.FieldQuantity: 7.0}})
	assert.Equal(t, 7, rec.Quantity)
}

func TestRecordToFields_HasAllColumns(t *testing.T) {
	fields := inventoryrepo.RecordToFields(domain.InventoryRecord{ProductID: "A1", Quantity: 2})
	assert.Len(t, fields, len(domain.Fields))
	assert.Equal(t, 2, fields[domain.FieldQuantity])
	assert.Equal(t, "", fields[domain.FieldBrand])
}
