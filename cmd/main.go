package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"gostocksync/config"
	"gostocksync/internal/pkg/blob"
	"gostocksync/internal/pkg/cache"
	"gostocksync/internal/pkg/database"
	"gostocksync/internal/pkg/logger"
	"gostocksync/internal/pkg/metrics"
	"gostocksync/internal/store"
	"gostocksync/internal/store/memstore"
	"gostocksync/internal/store/pgstore"
	"gostocksync/internal/store/redisstore"
	"gostocksync/migrations"

	"gostocksync/internal/api/inventory"
	"gostocksync/internal/api/router"
	"gostocksync/internal/api/web"
	"gostocksync/internal/repository/inventoryrepo"
	"gostocksync/internal/service/inventoryservice"
	"gostocksync/internal/viewmodel"
)

func main() {
	log.Println("⚡ Inicializando serviço GoStock Sync...")
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ Aviso: Arquivo .env não encontrado. Carregando configs apenas do ambiente do sistema.")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuração inválida: %v", err)
	}
	appLog := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogOutputFormat(), Service: "gostocksync"})
	appLog.Info("Configurações carregadas.", map[string]interface{}{
		"store":    cfg.StoreDriver,
		"strategy": cfg.AdjustStrategy,
		"env":      cfg.Environment,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Infraestrutura
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	storeMetrics := metrics.New(reg)

	var rdb *redis.Client
	if cfg.StoreDriver == config.StoreRedis || cfg.RateLimitEnabled {
		rdb, err = cache.Connect(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			appLog.Fatal("Falha ao conectar ao Redis.", err)
		}
		if cfg.StoreDriver != config.StoreRedis {
			// o redisstore fecha o cliente no docs.Close()
			defer rdb.Close()
		}
		appLog.Info("Conexão Redis estabelecida.", map[string]interface{}{"addr": cfg.RedisAddr})
	}

	docs, err := openStore(ctx, cfg, rdb, appLog)
	if err != nil {
		appLog.Fatal("Falha ao abrir o document store.", err)
	}
	defer docs.Close()

	// 2. Injeção de dependências: Repository -> Service -> Controller -> Handlers
	repo := inventoryrepo.NewInventoryRepository(docs, cfg.Collection, cfg.DBTimeout, appLog, storeMetrics)

	svcOpts := []inventoryservice.Option{}
	if cfg.ArchiveEnabled() {
		archiver, err := blob.NewS3Archiver(ctx, blob.Config{
			Bucket:    cfg.ExportS3Bucket,
			Region:    cfg.ExportS3Region,
			Endpoint:  cfg.ExportS3Endpoint,
			PathStyle: cfg.ExportS3PathStyle,
		})
		if err != nil {
			appLog.Fatal("Falha ao configurar o arquivamento S3.", err)
		}
		svcOpts = append(svcOpts, inventoryservice.WithArchiver(archiver, cfg.ExportS3Prefix))
		appLog.Info("Arquivamento de exportações habilitado.", map[string]interface{}{"bucket": cfg.ExportS3Bucket})
	}
	svc := inventoryservice.NewService(repo, inventoryservice.Strategy(cfg.AdjustStrategy), appLog, svcOpts...)

	ctrl := viewmodel.NewController(repo, svc, appLog)
	if err := ctrl.Mount(ctx); err != nil {
		appLog.Fatal("Falha ao registrar o listener de inventário.", err)
	}
	defer ctrl.Teardown()

	deps := router.Dependencies{
		Logger:    appLog,
		Inventory: inventory.NewHandler(svc, ctrl, appLog),
		Web:       web.NewHandler(ctrl, appLog),
		Gatherer:  reg,
	}
	if cfg.RateLimitEnabled {
		deps.RateLimit = &router.RateLimit{
			Client: cache.NewRedisClient(rdb),
			Limit:  cfg.RateLimitMaxRequests,
			Window: cfg.RateLimitPeriod,
		}
	}

	// 3. Servidor. Sem WriteTimeout: o stream SSE fica aberto.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		appLog.Info("Servidor ouvindo na porta", map[string]interface{}{"port": cfg.Port})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("Servidor falhou.", err)
		}
	}()

	<-ctx.Done()
	appLog.Info("Sinal de encerramento recebido. Desligando servidor...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Desligamento do servidor forçado.", err)
	}
	appLog.Info("Servidor encerrado com sucesso.", nil)
}

// openStore escolhe o backend conforme STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, rdb *redis.Client, log logger.Logger) (store.DocumentStore, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		opts := database.DefaultPoolOptions()
		opts.MaxOpenConns = cfg.DBMaxOpenConns
		opts.MaxIdleConns = cfg.DBMaxIdleConns
		db, err := database.NewPostgresDB(cfg.DatabaseURL, opts)
		if err != nil {
			return nil, err
		}
		if err := migrations.Up(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		log.Info("Conexão PostgreSQL estabelecida e migrações aplicadas.", nil)
		return pgstore.New(db, cfg.DatabaseURL, cfg.DBTimeout, log), nil
	case config.StoreRedis:
		return redisstore.New(rdb, cfg.DBTimeout, log), nil
	default:
		log.Warn("Usando store em memória; os dados não sobrevivem ao reinício.", nil)
		return memstore.New(), nil
	}
}
