package inventoryrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gostocksync/internal/domain"
	apperror "gostocksync/internal/errors"
	"gostocksync/internal/pkg/logger"
	"gostocksync/internal/pkg/metrics"
	"gostocksync/internal/store"
)

// InventoryRepository traduz registros de inventário para documentos da coleção remota.
type InventoryRepository struct {
	Store      store.DocumentStore
	Collection string
	DBTimeout  time.Duration
	logger     logger.Logger
	metrics    *metrics.InventoryMetrics
}

// NewInventoryRepository cria e retorna uma nova instância do Repositório de Inventário.
// metrics pode ser nil.
func NewInventoryRepository(s store.DocumentStore, collection string, dbTimeout time.Duration, logger logger.Logger, m *metrics.InventoryMetrics) *InventoryRepository {
	return &InventoryRepository{
		Store:      s,
		Collection: collection,
		DBTimeout:  dbTimeout,
		logger:     logger,
		metrics:    m,
	}
}

// Create grava um novo documento com os dez campos e devolve o ID atribuído.
func (r *InventoryRepository) Create(ctx context.Context, rec domain.InventoryRecord) (string, error) {
	r.logger.Debug("Criando documento de inventário.", map[string]interface{}{"product_id": rec.ProductID})

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	start := time.Now()
	id, err := r.Store.Create(ctxTimeout, r.Collection, RecordToFields(rec))
	r.metrics.ObserveOperation("create", start, err)
	if err != nil {
		r.logger.Error("Falha ao criar documento de inventário.", err)
		return "", apperror.NewStoreError("Falha ao criar item", err)
	}

	r.logger.Info("Documento de inventário criado.", map[string]interface{}{"id": id, "product_id": rec.ProductID})
	return id, nil
}

// SetQuantity sobrescreve quantity e lastUpdated sem ler o valor atual.
func (r *InventoryRepository) SetQuantity(ctx context.Context, id string, quantity int, lastUpdated string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	start := time.Now()
	err := r.Store.Update(ctxTimeout, r.Collection, id, store.Fields{
		domain.FieldQuantity:    quantity,
		domain.FieldLastUpdated: lastUpdated,
	})
	r.metrics.ObserveOperation("update", start, err)
	if err != nil {
		return r.writeError("Falha ao atualizar quantidade", id, err)
	}

	r.logger.Debug("Quantidade sobrescrita.", map[string]interface{}{"id": id, "quantity": quantity})
	return nil
}

// IncrementQuantity soma delta no servidor (sem perda de atualização) e grava lastUpdated.
func (r *InventoryRepository) IncrementQuantity(ctx context.Context, id string, delta int, lastUpdated string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	start := time.Now()
	err := r.Store.Increment(ctxTimeout, r.Collection, id, domain.FieldQuantity, delta, store.Fields{
		domain.FieldLastUpdated: lastUpdated,
	})
	r.metrics.ObserveOperation("increment", start, err)
	if err != nil {
		return r.writeError("Falha ao incrementar quantidade", id, err)
	}

	r.logger.Debug("Quantidade incrementada.", map[string]interface{}{"id": id, "delta": delta})
	return nil
}

// FindAll lê a coleção inteira uma única vez.
func (r *InventoryRepository) FindAll(ctx context.Context) ([]domain.InventoryRecord, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	start := time.Now()
	docs, err := r.Store.ReadAll(ctxTimeout, r.Collection)
	r.metrics.ObserveOperation("read_all", start, err)
	if err != nil {
		r.logger.Error("Falha ao ler coleção de inventário.", err)
		return nil, apperror.NewStoreError("Falha ao ler inventário", err)
	}
	return DocumentsToRecords(docs), nil
}

// Watch assina a coleção. fn recebe o conteúdo completo convertido a cada mudança.
func (r *InventoryRepository) Watch(ctx context.Context, fn func([]domain.InventoryRecord)) (store.Unsubscribe, error) {
	start := time.Now()
	unsub, err := r.Store.Subscribe(ctx, r.Collection, func(docs []store.Document) {
		records := DocumentsToRecords(docs)
		r.metrics.ObserveSnapshot(len(records))
		fn(records)
	})
	r.metrics.ObserveOperation("subscribe", start, err)
	if err != nil {
		r.logger.Error("Falha ao assinar coleção de inventário.", err)
		return nil, apperror.NewStoreError("Falha ao assinar inventário", err)
	}
	return unsub, nil
}

func (r *InventoryRepository) writeError(msg, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		r.logger.Warn("Documento de inventário não encontrado.", map[string]interface{}{"id": id})
		return apperror.NewNotFoundError(fmt.Sprintf("Item %s não encontrado.", id))
	}
	r.logger.Error(msg+".", err)
	return apperror.NewStoreError(msg, err)
}

// RecordToFields monta o documento com os dez campos. Quantity é sempre numérico.
func RecordToFields(rec domain.InventoryRecord) store.Fields {
	fields := make(store.Fields, len(domain.Fields))
	for _, f := range domain.Fields {
		fields[f] = rec.Value(f)
	}
	return fields
}

// DocumentsToRecords converte um snapshot preservando a ordem do store.
func DocumentsToRecords(docs []store.Document) []domain.InventoryRecord {
	records := make([]domain.InventoryRecord, 0, len(docs))
	for _, d := range docs {
		records = append(records, DocumentToRecord(d))
	}
	return records
}

// DocumentToRecord lê um documento armazenado. Campos ausentes viram "" e
// quantity não numérica vira 0.
func DocumentToRecord(d store.Document) domain.InventoryRecord {
	qty, _ := store.AsInt(d.Fields[domain.FieldQuantity])
	return domain.InventoryRecord{
		ID:          d.ID,
		ProductID:   store.AsString(d.Fields[domain.FieldProductID]),
		ProductName: store.AsString(d.Fields[domain.FieldProductName]),
		Size:        store.AsString(d.Fields[domain.FieldSize]),
		Color:       store.AsString(d.Fields[domain.FieldColor]),
		Quantity:    qty,
		LastUpdated: store.AsString(d.Fields[domain.FieldLastUpdated]),
		Price:       store.AsString(d.Fields[domain.FieldPrice]),
		Category:    store.AsString(d.Fields[domain.FieldCategory]),
		Supplier:    store.AsString(d.Fields[domain.FieldSupplier]),
		Brand:       store.AsString(d.Fields[domain.FieldBrand]),
	}
}
