// Package store define o contrato do document store remoto: coleções nomeadas
// de documentos sem esquema, com escrita, leitura completa e assinatura de mudanças.
package store

import (
	"context"
	"errors"
)

// ErrNotFound é retornado por Update/Increment quando o documento não existe.
var ErrNotFound = errors.New("document not found")

// Fields é o conteúdo de um documento (sem esquema).
type Fields map[string]interface{}

// Document é um documento da coleção: identificador opaco + campos armazenados.
type Document struct {
	ID     string
	Fields Fields
}

// SnapshotFunc recebe o conteúdo completo e atual da coleção.
type SnapshotFunc func(docs []Document)

// Unsubscribe libera uma assinatura. Chamadas repetidas são seguras.
type Unsubscribe func()

// DocumentStore é o cliente do banco de documentos externo.
type DocumentStore interface {
	// Create grava um novo documento e devolve o ID atribuído pelo store.
	Create(ctx context.Context, collection string, fields Fields) (string, error)
	// Update sobrescreve apenas os campos informados.
	Update(ctx context.Context, collection, id string, fields Fields) error
	// Increment soma delta ao campo numérico de forma atômica no servidor e
	// grava os demais campos informados na mesma operação.
	Increment(ctx context.Context, collection, id, field string, delta int, fields Fields) error
	// ReadAll lê todos os documentos uma única vez, em ordem de criação.
	ReadAll(ctx context.Context, collection string) ([]Document, error)
	// Subscribe entrega o snapshot atual imediatamente e novamente após cada
	// criação ou alteração na coleção, até que Unsubscribe seja chamado.
	Subscribe(ctx context.Context, collection string, fn SnapshotFunc) (Unsubscribe, error)
	Close() error
}

// Clone copia os campos para que o chamador não compartilhe o mapa interno.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
