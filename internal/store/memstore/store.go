// Package memstore implementa store.DocumentStore em memória, com notificação
// síncrona dos assinantes. Usado em desenvolvimento e nos testes.
package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"gostocksync/internal/store"
)

type collection struct {
	order []string
	docs  map[string]store.Fields
}

type subscriber struct {
	collection string
	fn         store.SnapshotFunc
}

// Store guarda as coleções em mapas protegidos por mutex.
type Store struct {
	mu          sync.Mutex
	collections map[string]*collection
	subs        map[int]subscriber
	nextSub     int

	// notifyMu serializa as entregas para que cada assinante veja os snapshots em ordem.
	notifyMu sync.Mutex
}

// New cria um store vazio.
func New() *Store {
	return &Store{
		collections: make(map[string]*collection),
		subs:        make(map[int]subscriber),
	}
}

func (s *Store) coll(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]store.Fields)}
		s.collections[name] = c
	}
	return c
}

// Create grava o documento com um UUID novo.
func (s *Store) Create(ctx context.Context, name string, fields store.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.New().String()

	s.mu.Lock()
	c := s.coll(name)
	c.order = append(c.order, id)
	c.docs[id] = fields.Clone()
	s.mu.Unlock()

	s.notify(name)
	return id, nil
}

// Update sobrescreve os campos informados.
func (s *Store) Update(ctx context.Context, name, id string, fields store.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	doc, ok := s.coll(name).docs[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	for k, v := range fields {
		doc[k] = v
	}
	s.mu.Unlock()

	s.notify(name)
	return nil
}

// Increment soma delta ao campo sob o mesmo lock da escrita.
func (s *Store) Increment(ctx context.Context, name, id, field string, delta int, fields store.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	doc, ok := s.coll(name).docs[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	current, _ := store.AsInt(doc[field])
	doc[field] = current + delta
	for k, v := range fields {
		doc[k] = v
	}
	s.mu.Unlock()

	s.notify(name)
	return nil
}

// ReadAll devolve cópias dos documentos em ordem de criação.
func (s *Store) ReadAll(ctx context.Context, name string) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(name), nil
}

// Subscribe registra fn e entrega o snapshot atual antes de retornar.
// fn não deve escrever no próprio store: as entregas são serializadas.
func (s *Store) Subscribe(ctx context.Context, name string, fn store.SnapshotFunc) (store.Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	key := s.nextSub
	s.nextSub++
	s.subs[key] = subscriber{collection: name, fn: fn}
	docs := s.snapshotLocked(name)
	s.mu.Unlock()

	s.notifyMu.Lock()
	fn(docs)
	s.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, key)
			s.mu.Unlock()
		})
	}, nil
}

// Subscribers informa quantas assinaturas estão ativas.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close não tem recursos a liberar.
func (s *Store) Close() error { return nil }

func (s *Store) snapshotLocked(name string) []store.Document {
	c, ok := s.collections[name]
	if !ok {
		return []store.Document{}
	}
	docs := make([]store.Document, 0, len(c.order))
	for _, id := range c.order {
		docs = append(docs, store.Document{ID: id, Fields: c.docs[id].Clone()})
	}
	return docs
}

// notify entrega o snapshot atual a cada assinante da coleção, fora do lock de dados.
func (s *Store) notify(name string) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	docs := s.snapshotLocked(name)
	var fns []store.SnapshotFunc
	for _, sub := range s.subs {
		if sub.collection == name {
			fns = append(fns, sub.fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(cloneDocs(docs))
	}
}

func cloneDocs(docs []store.Document) []store.Document {
	out := make([]store.Document, len(docs))
	for i, d := range docs {
		out[i] = store.Document{ID: d.ID, Fields: d.Fields.Clone()}
	}
	return out
}
