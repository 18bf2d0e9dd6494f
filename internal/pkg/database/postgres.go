package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Driver pq para PostgreSQL (também fornece o pq.Listener usado pelo pgstore)
	_ "github.com/lib/pq"
)

// PoolOptions define os limites do connection pool.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// DefaultPoolOptions são os valores usados quando nada é configurado.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// NewPostgresDB inicializa e configura o pool de conexões com o PostgreSQL.
func NewPostgresDB(dataSourceName string, opts PoolOptions) (*sql.DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("falha ao abrir a conexão com o DB: %w", err)
	}

	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), opts.PingTimeout)
	defer cancel()

	// Garante que as credenciais e o servidor estão corretos
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("falha ao realizar o ping inicial no DB: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}

	return db, nil
}
