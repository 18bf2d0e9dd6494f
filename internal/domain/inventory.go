package domain

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Nomes dos campos de um documento de inventário, na ordem fixa usada pela
// tabela e pela exportação CSV.
const (
	FieldProductID   = "productId"
	FieldProductName = "productName"
	FieldSize        = "size"
	FieldColor       = "color"
	FieldQuantity    = "quantity"
	FieldLastUpdated = "lastUpdated"
	FieldPrice       = "price"
	FieldCategory    = "category"
	FieldSupplier    = "supplier"
	FieldBrand       = "brand"
)

// Fields é a lista ordenada das dez colunas do inventário.
var Fields = []string{
	FieldProductID, FieldProductName, FieldSize, FieldColor, FieldQuantity,
	FieldLastUpdated, FieldPrice, FieldCategory, FieldSupplier, FieldBrand,
}

// LastUpdatedLayout é o formato ISO-8601 (UTC, milissegundos) gravado em lastUpdated.
const LastUpdatedLayout = "2006-01-02T15:04:05.000Z"

// InventoryRecord representa um item de estoque (SKU) armazenado na coleção remota.
// O ID é atribuído pelo store na criação e nunca muda.
type InventoryRecord struct {
	ID          string `json:"id"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Size        string `json:"size"`
	Color       string `json:"color"`
	Quantity    int    `json:"quantity"`
	LastUpdated string `json:"lastUpdated"`
	Price       string `json:"price"`
	Category    string `json:"category"`
	Supplier    string `json:"supplier"`
	Brand       string `json:"brand"`
}

// Value retorna o valor do campo pelo nome do documento. Quantity é devolvido como int.
func (r InventoryRecord) Value(field string) interface{} {
	switch field {
	case FieldProductID:
		return r.ProductID
	case FieldProductName:
		return r.ProductName
	case FieldSize:
		return r.Size
	case FieldColor:
		return r.Color
	case FieldQuantity:
		return r.Quantity
	case FieldLastUpdated:
		return r.LastUpdated
	case FieldPrice:
		return r.Price
	case FieldCategory:
		return r.Category
	case FieldSupplier:
		return r.Supplier
	case FieldBrand:
		return r.Brand
	}
	return nil
}

// ItemForm é o payload do formulário de inclusão. Todos os campos chegam como texto,
// inclusive quantity (no JSON também aceito como número); lastUpdated nunca é
// informado pelo usuário.
type ItemForm struct {
	ProductID   string `json:"productId" validate:"required"`
	ProductName string `json:"productName" validate:"required"`
	Size        string `json:"size"`
	Color       string `json:"color"`
	Quantity    string `json:"quantity"`
	Price       string `json:"price"`
	Category    string `json:"category"`
	Supplier    string `json:"supplier"`
	Brand       string `json:"brand"`
}

// ErrQuantityType indica um quantity JSON que não é texto nem número.
var ErrQuantityType = errors.New("quantity deve ser texto ou número")

// UnmarshalJSON aceita quantity como texto ou como número JSON; o número é
// guardado com a grafia recebida.
func (f *ItemForm) UnmarshalJSON(data []byte) error {
	type plain ItemForm
	var aux struct {
		plain
		Quantity json.RawMessage `json:"quantity"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	quantity, err := quantityText(aux.Quantity)
	if err != nil {
		return err
	}
	*f = ItemForm(aux.plain)
	f.Quantity = quantity
	return nil
}

func quantityText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", ErrQuantityType
	}
	return n.String(), nil
}

// QuantityAdjustmentRequest é o payload de POST /v1/inventory/{id}/adjust.
// Quantity é o valor exibido no momento do clique; ausente é erro, não zero.
type QuantityAdjustmentRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
	Delta    int  `json:"delta" validate:"oneof=-1 1"`
}

// InventoryView é a resposta de GET /v1/inventory.
type InventoryView struct {
	Loading bool              `json:"loading"`
	Items   []InventoryRecord `json:"items"`
}

// ArchiveResult é a resposta de POST /v1/inventory/export/archive.
type ArchiveResult struct {
	Key  string `json:"key"`
	Size int    `json:"size"`
}
