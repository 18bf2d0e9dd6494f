package inventoryservice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"gostocksync/internal/csvexport"
	"gostocksync/internal/domain"
	apperror "gostocksync/internal/errors"
	"gostocksync/internal/pkg/logger"
)

// Strategy define como o ajuste de quantidade é gravado.
type Strategy string

const (
	// StrategyOverwrite grava displayed+delta sem ler o valor atual. Dois
	// ajustes concorrentes a partir do mesmo valor exibido perdem um deles.
	StrategyOverwrite Strategy = "overwrite"
	// StrategyIncrement soma delta no servidor.
	StrategyIncrement Strategy = "increment"
)

// Mensagem exibida quando os campos obrigatórios estão vazios.
const MsgRequiredFields = "Product ID and Name required"

// InventoryRepository define o contrato que o Serviço de Inventário espera da camada de Persistência.
type InventoryRepository interface {
	Create(ctx context.Context, rec domain.InventoryRecord) (string, error)
	SetQuantity(ctx context.Context, id string, quantity int, lastUpdated string) error
	IncrementQuantity(ctx context.Context, id string, delta int, lastUpdated string) error
	FindAll(ctx context.Context) ([]domain.InventoryRecord, error)
}

// Archiver guarda uma cópia da exportação fora do store (ex: S3).
type Archiver interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
}

// Service implementa as mutações e a exportação do inventário.
type Service struct {
	repo     InventoryRepository
	strategy Strategy
	logger   logger.Logger
	validate *validator.Validate
	now      func() time.Time

	archiver      Archiver
	archivePrefix string
}

// Option configura o Service.
type Option func(*Service)

// WithClock substitui o relógio usado em lastUpdated.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithArchiver habilita ArchiveExport.
func WithArchiver(a Archiver, prefix string) Option {
	return func(s *Service) {
		s.archiver = a
		s.archivePrefix = prefix
	}
}

// NewService cria e retorna uma nova instância do Serviço de Inventário.
func NewService(repo InventoryRepository, strategy Strategy, logger logger.Logger, opts ...Option) *Service {
	if strategy == "" {
		strategy = StrategyOverwrite
	}
	s := &Service{
		repo:     repo,
		strategy: strategy,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Timestamp devolve o instante atual no formato de lastUpdated.
func (s *Service) Timestamp() string {
	return s.now().UTC().Format(domain.LastUpdatedLayout)
}

// AddRecord cria um documento a partir do formulário.
func (s *Service) AddRecord(ctx context.Context, form domain.ItemForm) (domain.InventoryRecord, error) {
	if err := s.validate.Struct(form); err != nil {
		s.logger.Warn("Formulário de inclusão inválido.", map[string]interface{}{"product_id": form.ProductID})
		return domain.InventoryRecord{}, apperror.NewValidationError(MsgRequiredFields)
	}

	rec := domain.InventoryRecord{
		ProductID:   form.ProductID,
		ProductName: form.ProductName,
		Size:        form.Size,
		Color:       form.Color,
		Quantity:    CoerceQuantity(form.Quantity),
		LastUpdated: s.Timestamp(),
		Price:       form.Price,
		Category:    form.Category,
		Supplier:    form.Supplier,
		Brand:       form.Brand,
	}

	id, err := s.repo.Create(ctx, rec)
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	rec.ID = id

	s.logger.Info("Item de inventário adicionado.", map[string]interface{}{"id": id, "product_id": rec.ProductID, "quantity": rec.Quantity})
	return rec, nil
}

// AdjustQuantity aplica +1/-1 a partir da quantidade exibida. Não impede
// valores negativos; a interface é que esconde o decremento em zero.
func (s *Service) AdjustQuantity(ctx context.Context, id string, displayed, delta int) error {
	if err := s.validate.Var(delta, "oneof=-1 1"); err != nil {
		return apperror.NewValidationError("O ajuste (delta) deve ser +1 ou -1.")
	}
	if id == "" {
		return apperror.NewValidationError("O ID do item é obrigatório.")
	}

	lastUpdated := s.Timestamp()
	var err error
	switch s.strategy {
	case StrategyIncrement:
		err = s.repo.IncrementQuantity(ctx, id, delta, lastUpdated)
	default:
		err = s.repo.SetQuantity(ctx, id, displayed+delta, lastUpdated)
	}
	if err != nil {
		return err
	}

	s.logger.Debug("Quantidade ajustada.", map[string]interface{}{
		"id":        id,
		"displayed": displayed,
		"delta":     delta,
		"strategy":  string(s.strategy),
	})
	return nil
}

// ExportCSV lê a coleção inteira (sem usar o espelho local) e escreve o CSV em w.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) error {
	records, err := s.repo.FindAll(ctx)
	if err != nil {
		return err
	}
	if err := csvexport.Write(w, records); err != nil {
		return apperror.NewInternalError("Falha ao gerar CSV", err)
	}
	s.logger.Info("Inventário exportado.", map[string]interface{}{"records": len(records)})
	return nil
}

// ArchiveExport gera o CSV e grava uma cópia no arquivador configurado.
func (s *Service) ArchiveExport(ctx context.Context) (domain.ArchiveResult, error) {
	if s.archiver == nil {
		return domain.ArchiveResult{}, apperror.NewUnavailableError("arquivamento de exportações não configurado")
	}

	var buf bytes.Buffer
	if err := s.ExportCSV(ctx, &buf); err != nil {
		return domain.ArchiveResult{}, err
	}

	key := fmt.Sprintf("%sinventory-%s.csv", s.archivePrefix, s.now().UTC().Format("20060102T150405.000Z"))
	if err := s.archiver.Put(ctx, key, csvexport.ContentType, buf.Bytes()); err != nil {
		s.logger.Error("Falha ao arquivar exportação.", err)
		return domain.ArchiveResult{}, apperror.NewInternalError("Falha ao arquivar exportação", err)
	}

	s.logger.Info("Exportação arquivada.", map[string]interface{}{"key": key, "size": buf.Len()})
	return domain.ArchiveResult{Key: key, Size: buf.Len()}, nil
}

// CoerceQuantity converte o texto digitado: vazio ou inválido vira 0 e
// frações são truncadas em direção a zero.
func CoerceQuantity(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	if n, err := strconv.Atoi(text); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	// fora da faixa de int a conversão não é definida
	f = math.Trunc(f)
	if f >= float64(math.MaxInt) || f < float64(math.MinInt) {
		return 0
	}
	return int(f)
}
