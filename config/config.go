package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Drivers de document store suportados.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Estratégias de ajuste de quantidade.
const (
	AdjustOverwrite = "overwrite"
	AdjustIncrement = "increment"
)

// Config armazena todas as configurações do serviço.
type Config struct {
	// Geral
	Port            string        `envconfig:"PORT" default:"8080"`
	Environment     string        `envconfig:"ENV" default:"development"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`

	// Document store
	StoreDriver    string        `envconfig:"STORE_DRIVER" default:"memory"`
	Collection     string        `envconfig:"INVENTORY_COLLECTION" default:"inventory"`
	DBTimeout      time.Duration `envconfig:"DB_TIMEOUT" default:"5s"`
	AdjustStrategy string        `envconfig:"ADJUST_STRATEGY" default:"overwrite"`

	// PostgreSQL
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	DBMaxOpenConns int    `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	DBMaxIdleConns int    `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`

	// Redis (store e rate limit)
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Rate Limiting
	RateLimitEnabled     bool          `envconfig:"RATE_LIMIT_ENABLED" default:"false"`
	RateLimitMaxRequests int           `envconfig:"RATE_LIMIT_MAX_REQUESTS" default:"100"`
	RateLimitPeriod      time.Duration `envconfig:"RATE_LIMIT_PERIOD" default:"1m"`

	// Arquivo de exportações (S3)
	ExportS3Bucket    string `envconfig:"EXPORT_S3_BUCKET"`
	ExportS3Region    string `envconfig:"EXPORT_S3_REGION" default:"us-east-1"`
	ExportS3Endpoint  string `envconfig:"EXPORT_S3_ENDPOINT"`
	ExportS3PathStyle bool   `envconfig:"EXPORT_S3_PATH_STYLE" default:"false"`
	ExportS3Prefix    string `envconfig:"EXPORT_S3_PREFIX" default:"exports/"`
}

// Load lê as variáveis de ambiente e valida as combinações obrigatórias.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("falha ao ler configuração: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate verifica dependências entre variáveis.
func (c *Config) Validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case StoreMemory, StoreRedis:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL deve ser definida quando STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("STORE_DRIVER inválido: %q", c.StoreDriver)
	}

	c.AdjustStrategy = strings.ToLower(strings.TrimSpace(c.AdjustStrategy))
	if c.AdjustStrategy != AdjustOverwrite && c.AdjustStrategy != AdjustIncrement {
		return fmt.Errorf("ADJUST_STRATEGY inválida: %q", c.AdjustStrategy)
	}
	if c.Collection == "" {
		return fmt.Errorf("INVENTORY_COLLECTION não pode ser vazia")
	}
	if c.DBTimeout <= 0 {
		return fmt.Errorf("DB_TIMEOUT deve ser positivo")
	}
	return nil
}

// IsDev indica ambiente de desenvolvimento.
func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Environment, "development")
}

// LogOutputFormat devolve LOG_FORMAT ou, sem ele, "console" em desenvolvimento e "json" nos demais ambientes.
func (c *Config) LogOutputFormat() string {
	if format := strings.ToLower(strings.TrimSpace(c.LogFormat)); format != "" {
		return format
	}
	if c.IsDev() {
		return "console"
	}
	return "json"
}

// ArchiveEnabled indica se exportações podem ser arquivadas no S3.
func (c *Config) ArchiveEnabled() bool {
	return c.ExportS3Bucket != ""
}
