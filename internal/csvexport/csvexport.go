// Package csvexport gera e lê o arquivo inventory.csv.
//
// Cada valor é escrito como literal JSON: textos sempre entre aspas, quantity
// diferente de zero como número puro, zero ou vazio como "". As linhas são
// separadas por \n, sem quebra de linha final.
package csvexport

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gostocksync/internal/domain"
)

const (
	// FileName é o nome sugerido para o download.
	FileName = "inventory.csv"
	// ContentType é o tipo MIME do arquivo exportado.
	ContentType = "text/csv"
)

// Header é a primeira linha do arquivo.
func Header() string {
	return strings.Join(domain.Fields, ",")
}

// Encode monta o arquivo completo em memória.
func Encode(records []domain.InventoryRecord) ([]byte, error) {
	lines := make([]string, 0, len(records)+1)
	lines = append(lines, Header())
	for _, rec := range records {
		line, err := encodeRow(rec)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return []byte(strings.Join(lines, "\n")), nil
}

// Write grava o arquivo em w.
func Write(w io.Writer, records []domain.InventoryRecord) error {
	data, err := Encode(records)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func encodeRow(rec domain.InventoryRecord) (string, error) {
	cells := make([]string, len(domain.Fields))
	for i, f := range domain.Fields {
		cell, err := encodeValue(rec.Value(f))
		if err != nil {
			return "", fmt.Errorf("campo %s: %w", f, err)
		}
		cells[i] = cell
	}
	return strings.Join(cells, ","), nil
}

func encodeValue(v interface{}) (string, error) {
	switch val := v.(type) {
	case int:
		if val == 0 {
			return `""`, nil
		}
		return strconv.Itoa(val), nil
	case string:
		return quote(val)
	}
	return quote("")
}

// quote escreve s como string JSON sem escapar <, > e &.
func quote(s string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Read interpreta um arquivo gerado por Write. O ID não é exportado, então os
// registros devolvidos vêm sem ID.
func Read(r io.Reader) ([]domain.InventoryRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("arquivo vazio")
	}
	columns := strings.Split(scanner.Text(), ",")

	var records []domain.InventoryRecord
	line := 1
	for scanner.Scan() {
		line++
		values, err := decodeRow(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("linha %d: %w", line, err)
		}
		if len(values) != len(columns) {
			return nil, fmt.Errorf("linha %d: esperado %d colunas, encontrado %d", line, len(columns), len(values))
		}
		var rec domain.InventoryRecord
		for i, col := range columns {
			setField(&rec, col, values[i])
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// decodeRow aproveita que a linha é uma sequência de literais JSON separados por vírgula.
func decodeRow(line string) ([]interface{}, error) {
	dec := json.NewDecoder(strings.NewReader("[" + line + "]"))
	dec.UseNumber()
	var values []interface{}
	if err := dec.Decode(&values); err != nil {
		return nil, err
	}
	return values, nil
}

func setField(rec *domain.InventoryRecord, field string, v interface{}) {
	text := ""
	switch val := v.(type) {
	case string:
		text = val
	case json.Number:
		text = val.String()
	}
	switch field {
	case domain.FieldProductID:
		rec.ProductID = text
	case domain.FieldProductName:
		rec.ProductName = text
	case domain.FieldSize:
		rec.Size = text
	case domain.FieldColor:
		rec.Color = text
	case domain.FieldQuantity:
		rec.Quantity, _ = strconv.Atoi(text)
	case domain.FieldLastUpdated:
		rec.LastUpdated = text
	case domain.FieldPrice:
		rec.Price = text
	case domain.FieldCategory:
		rec.Category = text
	case domain.FieldSupplier:
		rec.Supplier = text
	case domain.FieldBrand:
		rec.Brand = text
	}
}
