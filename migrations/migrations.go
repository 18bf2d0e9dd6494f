// Package migrations embute os arquivos SQL do goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// FS contém os arquivos de migração versionados.
//
//go:embed *.sql
var FS embed.FS

// Setup aponta o goose para os arquivos embutidos e o dialeto do PostgreSQL.
func Setup() error {
	goose.SetBaseFS(FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose: dialeto inválido: %w", err)
	}
	return nil
}

// Up aplica todas as migrações pendentes.
func Up(ctx context.Context, db *sql.DB) error {
	if err := Setup(); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}
