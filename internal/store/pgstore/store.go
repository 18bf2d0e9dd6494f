// Package pgstore implementa store.DocumentStore sobre PostgreSQL: cada documento
// é uma linha JSONB e as mudanças são propagadas por LISTEN/NOTIFY (pq.Listener).
package pgstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"gostocksync/internal/pkg/logger"
	"gostocksync/internal/store"
)

// NotifyChannel é o canal usado pelo trigger notify_document_change.
const NotifyChannel = "document_changes"

// Store guarda documentos na tabela documents.
type Store struct {
	db           *sql.DB
	dsn          string
	logger       logger.Logger
	readTimeout  time.Duration
	pingInterval time.Duration
}

// New cria o store. O dsn é necessário porque cada assinatura abre sua própria
// conexão de LISTEN, fora do pool.
func New(db *sql.DB, dsn string, readTimeout time.Duration, log logger.Logger) *Store {
	if readTimeout <= 0 {
		readTimeout = 5 * time.Second
	}
	return &Store{
		db:           db,
		dsn:          dsn,
		logger:       log,
		readTimeout:  readTimeout,
		pingInterval: 90 * time.Second,
	}
}

// Create insere um documento com UUID novo.
func (s *Store) Create(ctx context.Context, collection string, fields store.Fields) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("serializar documento: %w", err)
	}
	id := uuid.New().String()

	const query = `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`
	if _, err := s.db.ExecContext(ctx, query, collection, id, string(data)); err != nil {
		return "", err
	}
	return id, nil
}

// Update mescla os campos informados no JSONB existente.
func (s *Store) Update(ctx context.Context, collection, id string, fields store.Fields) error {
	if _, err := uuid.Parse(id); err != nil {
		return store.ErrNotFound
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("serializar campos: %w", err)
	}

	const query = `
        UPDATE documents
        SET data = data || $3::jsonb, updated_at = now()
        WHERE collection = $1 AND id = $2`

	result, err := s.db.ExecContext(ctx, query, collection, id, string(data))
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// Increment soma delta ao campo dentro de um único UPDATE.
func (s *Store) Increment(ctx context.Context, collection, id, field string, delta int, fields store.Fields) error {
	if _, err := uuid.Parse(id); err != nil {
		return store.ErrNotFound
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("serializar campos: %w", err)
	}

	const query = `
        UPDATE documents
        SET data = (data || $4::jsonb)
                   || jsonb_build_object($3::text, (COALESCE((data->>$3::text)::numeric, 0) + $5)::bigint),
            updated_at = now()
        WHERE collection = $1 AND id = $2`

	result, err := s.db.ExecContext(ctx, query, collection, id, field, string(data), delta)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// ReadAll lê a coleção inteira em ordem de inserção.
func (s *Store) ReadAll(ctx context.Context, collection string) ([]store.Document, error) {
	const query = `SELECT id, data FROM documents WHERE collection = $1 ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []store.Document{}
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, fmt.Errorf("documento %s inválido: %w", id, err)
		}
		docs = append(docs, store.Document{ID: id, Fields: fields})
	}
	return docs, rows.Err()
}

// Subscribe abre um pq.Listener no canal de mudanças. Reconexões ficam a cargo
// do próprio Listener; após reconectar, o snapshot é relido por completo.
func (s *Store) Subscribe(ctx context.Context, collection string, fn store.SnapshotFunc) (store.Unsubscribe, error) {
	listener := pq.NewListener(s.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.Error("Evento de erro no listener do PostgreSQL.", err)
			return
		}
		if ev == pq.ListenerEventReconnected {
			s.logger.Info("Listener do PostgreSQL reconectado.", map[string]interface{}{"collection": collection})
		}
	})
	if err := listener.Listen(NotifyChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("LISTEN %s: %w", NotifyChannel, err)
	}

	docs, err := s.ReadAll(ctx, collection)
	if err != nil {
		listener.Close()
		return nil, err
	}
	fn(docs)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.listen(listener, collection, fn, done)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			listener.Close()
			wg.Wait()
		})
	}, nil
}

func (s *Store) listen(listener *pq.Listener, collection string, fn store.SnapshotFunc, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case n, ok := <-listener.Notify:
			if !ok {
				return
			}
			// n == nil sinaliza reconexão: notificações podem ter sido perdidas.
			if n != nil && n.Extra != collection {
				continue
			}
			select {
			case <-done:
				return
			default:
			}
			s.refresh(collection, fn)
		case <-ticker.C:
			go listener.Ping()
		}
	}
}

func (s *Store) refresh(collection string, fn store.SnapshotFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), s.readTimeout)
	defer cancel()

	docs, err := s.ReadAll(ctx, collection)
	if err != nil {
		s.logger.Error("Falha ao reler a coleção após notificação.", err)
		return
	}
	fn(docs)
}

// Close fecha o pool de conexões.
func (s *Store) Close() error {
	return s.db.Close()
}

func checkAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func decodeFields(raw []byte) (store.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	fields := store.Fields{}
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}
