// Package viewmodel mantém o espelho local do inventário alimentado pelo
// listener do store e executa as ações disparadas pela interface.
package viewmodel

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"gostocksync/internal/domain"
	apperror "gostocksync/internal/errors"
	"gostocksync/internal/pkg/logger"
	"gostocksync/internal/store"
)

// Prefixos das notificações de falha remota.
const (
	MsgAddFailed    = "Error adding item: "
	MsgUpdateFailed = "Error updating quantity: "
	MsgExportFailed = "Error exporting inventory: "
)

// Notifier exibe um alerta ao usuário.
type Notifier interface {
	Notify(msg string)
}

// Alerts acumula as mensagens de uma requisição.
type Alerts struct {
	Messages []string
}

// Notify adiciona a mensagem.
func (a *Alerts) Notify(msg string) { a.Messages = append(a.Messages, msg) }

// Source é a origem do espelho (o repositório de inventário).
type Source interface {
	Watch(ctx context.Context, fn func([]domain.InventoryRecord)) (store.Unsubscribe, error)
}

// Actions são as mutações e a exportação (o serviço de inventário).
type Actions interface {
	AddRecord(ctx context.Context, form domain.ItemForm) (domain.InventoryRecord, error)
	AdjustQuantity(ctx context.Context, id string, displayed, delta int) error
	ExportCSV(ctx context.Context, w io.Writer) error
}

// Row é uma linha da tabela.
type Row struct {
	domain.InventoryRecord
	CanDecrement bool
}

// Controller é o estado da tela de inventário. O espelho local só muda
// quando chega um snapshot; as ações nunca o alteram diretamente.
type Controller struct {
	source  Source
	actions Actions
	logger  logger.Logger

	mu      sync.RWMutex
	records []domain.InventoryRecord
	loading bool
	mounted bool
	unsub   store.Unsubscribe

	fanMu    sync.Mutex
	watchers map[int]chan []domain.InventoryRecord
	nextID   int
}

// NewController cria o controller ainda desmontado.
func NewController(source Source, actions Actions, logger logger.Logger) *Controller {
	return &Controller{
		source:   source,
		actions:  actions,
		logger:   logger,
		loading:  true,
		watchers: make(map[int]chan []domain.InventoryRecord),
	}
}

// Mount assina a coleção. Chamadas repetidas não criam novas assinaturas.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return nil
	}
	c.mounted = true
	c.loading = true
	c.mu.Unlock()

	unsub, err := c.source.Watch(ctx, c.apply)
	if err != nil {
		c.mu.Lock()
		c.mounted = false
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.unsub = unsub
	c.mu.Unlock()
	c.logger.Info("Listener de inventário registrado.", nil)
	return nil
}

// Teardown cancela a assinatura e fecha os observadores. É idempotente.
func (c *Controller) Teardown() {
	c.mu.Lock()
	unsub := c.unsub
	c.unsub = nil
	c.mounted = false
	c.mu.Unlock()

	if unsub != nil {
		unsub()
		c.logger.Info("Listener de inventário removido.", nil)
	}

	c.fanMu.Lock()
	for id, ch := range c.watchers {
		close(ch)
		delete(c.watchers, id)
	}
	c.fanMu.Unlock()
}

// apply troca o espelho inteiro pelo snapshot recebido.
func (c *Controller) apply(records []domain.InventoryRecord) {
	c.mu.Lock()
	c.records = records
	c.loading = false
	c.mu.Unlock()

	c.fanMu.Lock()
	defer c.fanMu.Unlock()
	for _, ch := range c.watchers {
		offer(ch, copyRecords(records))
	}
}

// offer entrega o snapshot mais recente, descartando um anterior não lido.
func offer(ch chan []domain.InventoryRecord, records []domain.InventoryRecord) {
	select {
	case ch <- records:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- records:
	default:
	}
}

// Records devolve uma cópia do espelho local.
func (c *Controller) Records() []domain.InventoryRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyRecords(c.records)
}

// Loading é verdadeiro até o primeiro snapshot.
func (c *Controller) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Rows devolve as linhas da tabela. O decremento só é oferecido com quantity > 0.
func (c *Controller) Rows() []Row {
	records := c.Records()
	rows := make([]Row, len(records))
	for i, rec := range records {
		rows[i] = Row{InventoryRecord: rec, CanDecrement: rec.Quantity > 0}
	}
	return rows
}

// Watch devolve um canal com os próximos snapshots. Se o espelho já estiver
// carregado, o estado atual é entregue primeiro. cancel fecha o canal.
func (c *Controller) Watch() (<-chan []domain.InventoryRecord, func()) {
	ch := make(chan []domain.InventoryRecord, 1)

	c.fanMu.Lock()
	id := c.nextID
	c.nextID++
	c.watchers[id] = ch
	if !c.Loading() {
		ch <- c.Records()
	}
	c.fanMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.fanMu.Lock()
			defer c.fanMu.Unlock()
			if _, ok := c.watchers[id]; ok {
				delete(c.watchers, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Add envia o formulário. Em caso de sucesso o formulário volta ao padrão;
// em caso de erro o usuário é notificado e os valores são mantidos.
func (c *Controller) Add(ctx context.Context, form *Form, n Notifier) bool {
	_, err := c.actions.AddRecord(ctx, form.Values())
	if err != nil {
		var validationErr *apperror.ValidationError
		if errors.As(err, &validationErr) {
			n.Notify(validationErr.Error())
			return false
		}
		c.logger.Error("Falha ao adicionar item.", err)
		n.Notify(MsgAddFailed + apperror.Message(err))
		return false
	}
	form.Reset()
	return true
}

// AdjustQuantity aplica delta a partir da quantidade exibida na linha.
func (c *Controller) AdjustQuantity(ctx context.Context, id string, displayed, delta int, n Notifier) bool {
	if err := c.actions.AdjustQuantity(ctx, id, displayed, delta); err != nil {
		c.logger.Error("Falha ao atualizar quantidade.", err)
		n.Notify(MsgUpdateFailed + apperror.Message(err))
		return false
	}
	return true
}

// Download gera o CSV completo a partir do store (não do espelho local).
func (c *Controller) Download(ctx context.Context, n Notifier) ([]byte, bool) {
	var buf bytes.Buffer
	if err := c.actions.ExportCSV(ctx, &buf); err != nil {
		c.logger.Error("Falha ao exportar inventário.", err)
		n.Notify(MsgExportFailed + apperror.Message(err))
		return nil, false
	}
	return buf.Bytes(), true
}

func copyRecords(in []domain.InventoryRecord) []domain.InventoryRecord {
	if in == nil {
		return []domain.InventoryRecord{}
	}
	out := make([]domain.InventoryRecord, len(in))
	copy(out, in)
	return out
}
