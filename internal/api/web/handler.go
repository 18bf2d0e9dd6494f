// Package web serve a página de inventário renderizada no servidor: formulário
// de inclusão, tabela com ajuste +1/-1 e download do CSV.
package web

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"gostocksync/internal/api/inventory"
	"gostocksync/internal/domain"
	"gostocksync/internal/pkg/logger"
	"gostocksync/internal/viewmodel"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// Page é o estado da tela (viewmodel.Controller).
type Page interface {
	Loading() bool
	Rows() []viewmodel.Row
	Add(ctx context.Context, form *viewmodel.Form, n viewmodel.Notifier) bool
	AdjustQuantity(ctx context.Context, id string, displayed, delta int, n viewmodel.Notifier) bool
	Download(ctx context.Context, n viewmodel.Notifier) ([]byte, bool)
}

// Handler agrupa os handlers da página.
type Handler struct {
	Page   Page
	Logger logger.Logger
}

// NewHandler cria o handler da página.
func NewHandler(page Page, log logger.Logger) *Handler {
	return &Handler{Page: page, Logger: log}
}

// Routes registra as rotas da página.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.IndexHandler)
	r.Post("/items", h.AddHandler)
	r.Post("/items/{id}/adjust", h.AdjustHandler)
	r.Get("/items/table", h.TableHandler)
	r.Get("/inventory.csv", h.DownloadHandler)
}

type input struct {
	Name        string
	Value       string
	Placeholder string
	Type        string
	Required    bool
}

type row struct {
	ID           string
	Quantity     int
	CanDecrement bool
	Cells        []string
}

type tableData struct {
	Loading bool
	Columns []string
	Rows    []row
}

type pageData struct {
	Alerts []string
	Inputs []input
	Table  tableData
}

// IndexHandler renderiza a página com o formulário vazio.
func (h *Handler) IndexHandler(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, viewmodel.NewForm(), nil)
}

// AddHandler envia o formulário. Em caso de erro a página volta com o alerta
// e os valores digitados.
func (h *Handler) AddHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusBadRequest, viewmodel.NewForm(), []string{"Formulário inválido."})
		return
	}

	form := viewmodel.NewForm()
	for _, field := range viewmodel.EditableFields {
		if values, ok := r.PostForm[field]; ok && len(values) > 0 {
			form.Set(field, values[0])
		}
	}

	alerts := &viewmodel.Alerts{}
	h.Page.Add(r.Context(), form, alerts)
	h.render(w, http.StatusOK, form, alerts.Messages)
}

// AdjustHandler aplica +1/-1 a partir da quantidade exibida na linha.
func (h *Handler) AdjustHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	alerts := &viewmodel.Alerts{}

	displayed, err := strconv.Atoi(r.PostFormValue("quantity"))
	if err != nil {
		alerts.Notify(viewmodel.MsgUpdateFailed + "quantidade exibida inválida")
		h.render(w, http.StatusOK, viewmodel.NewForm(), alerts.Messages)
		return
	}
	delta, err := strconv.Atoi(r.PostFormValue("delta"))
	if err != nil {
		alerts.Notify(viewmodel.MsgUpdateFailed + "delta inválido")
		h.render(w, http.StatusOK, viewmodel.NewForm(), alerts.Messages)
		return
	}

	if !h.Page.AdjustQuantity(r.Context(), id, displayed, delta, alerts) {
		h.render(w, http.StatusOK, viewmodel.NewForm(), alerts.Messages)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// TableHandler devolve só a tabela, usada pelo script da página a cada evento.
func (h *Handler) TableHandler(w http.ResponseWriter, r *http.Request) {
	h.execute(w, http.StatusOK, "table", h.table())
}

// DownloadHandler envia inventory.csv lido diretamente do store.
func (h *Handler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	alerts := &viewmodel.Alerts{}
	data, ok := h.Page.Download(r.Context(), alerts)
	if !ok {
		h.render(w, http.StatusOK, viewmodel.NewForm(), alerts.Messages)
		return
	}
	inventory.WriteCSV(w, data)
}

func (h *Handler) render(w http.ResponseWriter, status int, form *viewmodel.Form, alerts []string) {
	h.execute(w, status, "page", pageData{
		Alerts: alerts,
		Inputs: inputs(form),
		Table:  h.table(),
	})
}

func (h *Handler) execute(w http.ResponseWriter, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		h.Logger.Error("Falha ao renderizar template.", err)
		http.Error(w, "Erro ao renderizar página", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (h *Handler) table() tableData {
	data := tableData{Loading: h.Page.Loading(), Columns: domain.Fields}
	if data.Loading {
		return data
	}
	for _, r := range h.Page.Rows() {
		cells := make([]string, len(domain.Fields))
		for i, f := range domain.Fields {
			if f == domain.FieldQuantity {
				cells[i] = strconv.Itoa(r.Quantity)
				continue
			}
			cells[i], _ = r.Value(f).(string)
		}
		data.Rows = append(data.Rows, row{
			ID:           r.ID,
			Quantity:     r.Quantity,
			CanDecrement: r.CanDecrement,
			Cells:        cells,
		})
	}
	return data
}

func inputs(form *viewmodel.Form) []input {
	out := make([]input, 0, len(viewmodel.EditableFields))
	for _, f := range viewmodel.EditableFields {
		typ := "text"
		if f == domain.FieldQuantity || f == domain.FieldPrice {
			typ = "number"
		}
		out = append(out, input{
			Name:        f,
			Value:       form.Get(f),
			Placeholder: strings.ToUpper(f[:1]) + f[1:],
			Type:        typ,
			Required:    f == domain.FieldProductID || f == domain.FieldProductName,
		})
	}
	return out
}
