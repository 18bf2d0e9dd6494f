package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"gostocksync/config"
	"gostocksync/internal/pkg/database"
	"gostocksync/migrations"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️ Aviso: arquivo .env não encontrado. Usando apenas o ambiente do sistema: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("goose: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("goose: DATABASE_URL não definida")
	}

	verbose := flag.Bool("v", false, "log detalhado do goose")
	flag.Parse()

	opts := database.DefaultPoolOptions()
	opts.MaxOpenConns = 2
	opts.MaxIdleConns = 1
	db, err := database.NewPostgresDB(cfg.DatabaseURL, opts)
	if err != nil {
		log.Fatalf("goose: falha ao conectar ao DB: %v\n", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Fatalf("goose: falha ao fechar o DB: %v\n", err)
		}
	}()

	if !*verbose {
		goose.SetLogger(goose.NopLogger())
	}
	if err := migrations.Setup(); err != nil {
		log.Fatalf("goose: %v", err)
	}

	arguments := flag.Args()
	if len(arguments) == 0 {
		arguments = []string{"up"}
	}

	command := arguments[0]
	var args []string
	if len(arguments) > 1 {
		args = arguments[1:]
	}

	// Os arquivos vêm do embed.FS; "." é a raiz do FS.
	if err := goose.Run(command, db, ".", args...); err != nil {
		log.Fatalf("goose %v: %v", command, err)
	}

	fmt.Printf("goose %s success\n", command)
}
