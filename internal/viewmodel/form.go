package viewmodel

import (
	"fmt"

	"gostocksync/internal/domain"
)

// DefaultQuantity é o valor inicial do campo quantity no formulário.
const DefaultQuantity = "0"

// EditableFields são os campos do formulário, na ordem exibida. lastUpdated
// nunca é digitado pelo usuário.
var EditableFields = []string{
	domain.FieldProductID, domain.FieldProductName, domain.FieldSize, domain.FieldColor,
	domain.FieldQuantity, domain.FieldPrice, domain.FieldCategory, domain.FieldSupplier, domain.FieldBrand,
}

// Form guarda os valores pendentes do formulário de inclusão.
// O valor zero é equivalente a NewForm().
type Form struct {
	values map[string]string
}

// NewForm devolve um formulário com os valores padrão.
func NewForm() *Form {
	f := &Form{}
	f.Reset()
	return f
}

// FormFrom preenche um formulário a partir do payload recebido.
func FormFrom(item domain.ItemForm) *Form {
	f := NewForm()
	f.values[domain.FieldProductID] = item.ProductID
	f.values[domain.FieldProductName] = item.ProductName
	f.values[domain.FieldSize] = item.Size
	f.values[domain.FieldColor] = item.Color
	f.values[domain.FieldQuantity] = item.Quantity
	f.values[domain.FieldPrice] = item.Price
	f.values[domain.FieldCategory] = item.Category
	f.values[domain.FieldSupplier] = item.Supplier
	f.values[domain.FieldBrand] = item.Brand
	return f
}

// Reset volta todos os campos ao padrão: texto vazio e quantity "0".
func (f *Form) Reset() {
	f.values = make(map[string]string, len(EditableFields))
	for _, field := range EditableFields {
		f.values[field] = ""
	}
	f.values[domain.FieldQuantity] = DefaultQuantity
}

// Set altera um campo editável.
func (f *Form) Set(field, value string) error {
	if f.values == nil {
		f.Reset()
	}
	if _, ok := f.values[field]; !ok {
		return fmt.Errorf("campo %q não é editável", field)
	}
	f.values[field] = value
	return nil
}

// Get devolve o valor atual de um campo.
func (f *Form) Get(field string) string {
	if f.values == nil {
		f.Reset()
	}
	return f.values[field]
}

// Values devolve o payload correspondente ao formulário.
func (f *Form) Values() domain.ItemForm {
	return domain.ItemForm{
		ProductID:   f.Get(domain.FieldProductID),
		ProductName: f.Get(domain.FieldProductName),
		Size:        f.Get(domain.FieldSize),
		Color:       f.Get(domain.FieldColor),
		Quantity:    f.Get(domain.FieldQuantity),
		Price:       f.Get(domain.FieldPrice),
		Category:    f.Get(domain.FieldCategory),
		Supplier:    f.Get(domain.FieldSupplier),
		Brand:       f.Get(domain.FieldBrand),
	}
}
