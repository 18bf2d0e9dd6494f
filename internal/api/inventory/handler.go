package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"gostocksync/internal/csvexport"
	"gostocksync/internal/domain"
	apperror "gostocksync/internal/errors"
	"gostocksync/internal/pkg/logger"
)

// InventoryService define o contrato que o Handler espera da camada de Serviço.
type InventoryService interface {
	AddRecord(ctx context.Context, form domain.ItemForm) (domain.InventoryRecord, error)
	AdjustQuantity(ctx context.Context, id string, displayed, delta int) error
	ExportCSV(ctx context.Context, w io.Writer) error
	ArchiveExport(ctx context.Context) (domain.ArchiveResult, error)
}

// LiveView é o espelho local mantido pelo listener.
type LiveView interface {
	Loading() bool
	Records() []domain.InventoryRecord
	Watch() (<-chan []domain.InventoryRecord, func())
}

// Handler agrupa todos os métodos de Handler de inventário.
type Handler struct {
	Service  InventoryService
	View     LiveView
	Logger   logger.Logger
	validate *validator.Validate
}

// NewHandler cria uma nova instância do Handler, injetando o Service, o espelho e o Logger.
func NewHandler(svc InventoryService, view LiveView, log logger.Logger) *Handler {
	return &Handler{
		Service:  svc,
		View:     view,
		Logger:   log,
		validate: validator.New(),
	}
}

// Routes registra as rotas /v1/inventory no roteador informado.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.ListHandler)
	r.Post("/", h.CreateHandler)
	r.Post("/{id}/adjust", h.AdjustHandler)
	r.Get("/export", h.ExportHandler)
	r.Post("/export/archive", h.ArchiveHandler)
	r.Get("/events", h.EventsHandler)
}

// handleServiceResponse processa erros de serviço e envia respostas padronizadas ao cliente.
func (h *Handler) handleServiceResponse(w http.ResponseWriter, r *http.Request, data interface{}, err error, successStatus int) {
	if err == nil {
		if data == nil {
			w.WriteHeader(successStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(successStatus)
		if jsonErr := json.NewEncoder(w).Encode(data); jsonErr != nil {
			h.Logger.Error("Falha ao codificar JSON de resposta", jsonErr)
		}
		return
	}

	status, category, message := apperror.MapToHTTPStatus(err)

	if status >= 500 {
		h.Logger.Error(fmt.Sprintf("Erro de Servidor: %s", category), err)
	} else {
		h.Logger.Debug(fmt.Sprintf("Requisição rejeitada com status %d. Categoria: %s", status, category), map[string]interface{}{"path": r.URL.Path})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(domain.ErrorResponse{Code: status, Category: category, Message: message})
}

// ListHandler godoc
// @Summary      Inventário atual
// @Description  Devolve o espelho local mantido pelo listener. loading=true até o primeiro snapshot.
// @Tags         inventory
// @Produce      json
// @Success      200  {object}  domain.InventoryView
// @Router       /v1/inventory [get]
func (h *Handler) ListHandler(w http.ResponseWriter, r *http.Request) {
	view := domain.InventoryView{Loading: h.View.Loading(), Items: h.View.Records()}
	h.handleServiceResponse(w, r, view, nil, http.StatusOK)
}

// CreateHandler godoc
// @Summary      Adicionar item
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Param        body  body      domain.ItemForm  true  "productId e productName obrigatórios; quantity em texto ou número"
// @Success      201   {object}  domain.InventoryRecord
// @Failure      400   {object}  domain.ErrorResponse
// @Failure      500   {object}  domain.ErrorResponse
// @Router       /v1/inventory [post]
func (h *Handler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var form domain.ItemForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		msg := "Payload inválido. Verifique o formato JSON."
		if errors.Is(err, domain.ErrQuantityType) {
			msg = err.Error()
		}
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError(msg), http.StatusBadRequest)
		return
	}

	rec, err := h.Service.AddRecord(r.Context(), form)
	h.handleServiceResponse(w, r, rec, err, http.StatusCreated)
}

// AdjustHandler godoc
// @Summary      Ajustar quantidade (+1/-1)
// @Description  Grava quantity = quantidade exibida + delta. Ajustes concorrentes podem se sobrescrever.
// @Tags         inventory
// @Accept       json
// @Param        id    path  string                            true  "ID do documento"
// @Param        body  body  domain.QuantityAdjustmentRequest  true  "quantidade exibida e delta"
// @Success      204
// @Failure      400   {object}  domain.ErrorResponse
// @Failure      404   {object}  domain.ErrorResponse
// @Failure      500   {object}  domain.ErrorResponse
// @Router       /v1/inventory/{id}/adjust [post]
func (h *Handler) AdjustHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req domain.QuantityAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.handleServiceResponse(w, r, nil, adjustValidationError(err), http.StatusBadRequest)
		return
	}

	err := h.Service.AdjustQuantity(r.Context(), id, *req.Quantity, req.Delta)
	h.handleServiceResponse(w, r, nil, err, http.StatusNoContent)
}

// adjustValidationError traduz a falha do validator para a mensagem do campo.
func adjustValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 && fieldErrs[0].Field() == "Quantity" {
		return apperror.NewValidationError("quantity (quantidade exibida) é obrigatória")
	}
	return apperror.NewValidationError("delta deve ser -1 ou 1")
}

// ExportHandler godoc
// @Summary      Exportar inventory.csv
// @Description  Lê a coleção inteira uma vez e devolve o CSV como anexo.
// @Tags         inventory
// @Produce      text/csv
// @Success      200  {string}  string
// @Failure      500  {object}  domain.ErrorResponse
// @Router       /v1/inventory/export [get]
func (h *Handler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.Service.ExportCSV(r.Context(), &buf); err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	WriteCSV(w, buf.Bytes())
}

// ArchiveHandler godoc
// @Summary      Arquivar exportação no S3
// @Tags         inventory
// @Produce      json
// @Success      201  {object}  domain.ArchiveResult
// @Failure      500  {object}  domain.ErrorResponse
// @Failure      503  {object}  domain.ErrorResponse
// @Router       /v1/inventory/export/archive [post]
func (h *Handler) ArchiveHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.ArchiveExport(r.Context())
	h.handleServiceResponse(w, r, res, err, http.StatusCreated)
}

// EventsHandler godoc
// @Summary      Stream de snapshots (SSE)
// @Description  Cada mudança na coleção gera um evento "snapshot" com a lista completa.
// @Tags         inventory
// @Produce      text/event-stream
// @Success      200  {string}  string
// @Router       /v1/inventory/events [get]
func (h *Handler) EventsHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.handleServiceResponse(w, r, nil, apperror.NewInternalError("Streaming não suportado", nil), http.StatusOK)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	snapshots, cancel := h.View.Watch()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case records, open := <-snapshots:
			if !open {
				return
			}
			payload, err := json.Marshal(records)
			if err != nil {
				h.Logger.Error("Falha ao codificar snapshot.", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// WriteCSV envia o arquivo como download de inventory.csv.
func WriteCSV(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", csvexport.ContentType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, csvexport.FileName))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
