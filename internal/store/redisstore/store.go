// Package redisstore implementa store.DocumentStore sobre Redis: um hash por
// documento, um sorted set como índice de criação e PUBLISH/SUBSCRIBE para
// notificar mudanças.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"gostocksync/internal/pkg/logger"
	"gostocksync/internal/store"
)

// Store usa o mesmo *redis.Client do cache.
type Store struct {
	rdb         *redis.Client
	logger      logger.Logger
	readTimeout time.Duration
}

// New cria o store sobre um cliente já conectado.
func New(rdb *redis.Client, readTimeout time.Duration, log logger.Logger) *Store {
	if readTimeout <= 0 {
		readTimeout = 5 * time.Second
	}
	return &Store{rdb: rdb, logger: log, readTimeout: readTimeout}
}

func seqKey(collection string) string      { return collection + ":seq" }
func indexKey(collection string) string    { return collection + ":docs" }
func docKey(collection, id string) string  { return collection + ":doc:" + id }
func channelName(collection string) string { return collection + ":changes" }

// Create grava o hash do documento e o registra no índice.
func (s *Store) Create(ctx context.Context, collection string, fields store.Fields) (string, error) {
	id := uuid.New().String()

	seq, err := s.rdb.Incr(ctx, seqKey(collection)).Result()
	if err != nil {
		return "", err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(fields) > 0 {
			pipe.HSet(ctx, docKey(collection, id), encodeFields(fields))
		}
		pipe.ZAdd(ctx, indexKey(collection), &redis.Z{Score: float64(seq), Member: id})
		return nil
	})
	if err != nil {
		return "", err
	}

	s.publish(ctx, collection, id)
	return id, nil
}

// Update sobrescreve os campos informados do hash.
func (s *Store) Update(ctx context.Context, collection, id string, fields store.Fields) error {
	if err := s.exists(ctx, collection, id); err != nil {
		return err
	}
	if len(fields) > 0 {
		if err := s.rdb.HSet(ctx, docKey(collection, id), encodeFields(fields)).Err(); err != nil {
			return err
		}
	}
	s.publish(ctx, collection, id)
	return nil
}

// Increment usa HINCRBY, atômico no servidor.
func (s *Store) Increment(ctx context.Context, collection, id, field string, delta int, fields store.Fields) error {
	if err := s.exists(ctx, collection, id); err != nil {
		return err
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, docKey(collection, id), field, int64(delta))
		if len(fields) > 0 {
			pipe.HSet(ctx, docKey(collection, id), encodeFields(fields))
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, collection, id)
	return nil
}

// ReadAll lê o índice e todos os hashes em um pipeline.
func (s *Store) ReadAll(ctx context.Context, collection string) ([]store.Document, error) {
	ids, err := s.rdb.ZRange(ctx, indexKey(collection), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	docs := make([]store.Document, 0, len(ids))
	if len(ids) == 0 {
		return docs, nil
	}

	cmds := make([]*redis.StringStringMapCmd, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, docKey(collection, id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, id := range ids {
		values, err := cmds[i].Result()
		if err != nil {
			return nil, err
		}
		fields := make(store.Fields, len(values))
		for k, v := range values {
			fields[k] = v
		}
		docs = append(docs, store.Document{ID: id, Fields: fields})
	}
	return docs, nil
}

// Subscribe assina o canal da coleção. O PubSub do go-redis reconecta sozinho.
func (s *Store) Subscribe(ctx context.Context, collection string, fn store.SnapshotFunc) (store.Unsubscribe, error) {
	pubsub := s.rdb.Subscribe(ctx, channelName(collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("SUBSCRIBE %s: %w", channelName(collection), err)
	}

	docs, err := s.ReadAll(ctx, collection)
	if err != nil {
		pubsub.Close()
		return nil, err
	}
	fn(docs)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ch := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				s.refresh(collection, fn)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
			wg.Wait()
		})
	}, nil
}

// Close encerra o cliente Redis.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) exists(ctx context.Context, collection, id string) error {
	err := s.rdb.ZScore(ctx, indexKey(collection), id).Err()
	if errors.Is(err, redis.Nil) {
		return store.ErrNotFound
	}
	return err
}

func (s *Store) publish(ctx context.Context, collection, id string) {
	if err := s.rdb.Publish(ctx, channelName(collection), id).Err(); err != nil {
		// A escrita já foi aplicada; só a notificação se perdeu.
		s.logger.Error("Falha ao publicar mudança no Redis.", err)
	}
}

func (s *Store) refresh(collection string, fn store.SnapshotFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), s.readTimeout)
	defer cancel()

	docs, err := s.ReadAll(ctx, collection)
	if err != nil {
		s.logger.Error("Falha ao reler a coleção após mensagem do Redis.", err)
		return
	}
	fn(docs)
}

// encodeFields converte os valores em texto: hashes do Redis só guardam strings.
func encodeFields(fields store.Fields) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = store.AsString(v)
	}
	return out
}
