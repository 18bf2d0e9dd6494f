package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "gostocksync/docs" // registra a especificação Swagger

	"gostocksync/internal/api/inventory"
	"gostocksync/internal/api/web"
	"gostocksync/internal/pkg/cache"
	"gostocksync/internal/pkg/logger"
	"gostocksync/internal/pkg/middleware"
)

// RateLimit habilita o limitador por IP. Nil desliga.
type RateLimit struct {
	Client cache.Client
	Limit  int
	Window time.Duration
}

// Dependencies são os Handlers e recursos já inicializados pelo main.
type Dependencies struct {
	Logger    logger.Logger
	Inventory *inventory.Handler
	Web       *web.Handler
	Gatherer  prometheus.Gatherer
	RateLimit *RateLimit
}

// NewRouter configura e retorna o roteador HTTP principal.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(deps.Logger),
		middleware.RequestID,
		middleware.Logging(deps.Logger),
	)

	// --- Rotas operacionais (fora do rate limit) ---
	r.Get("/ping", PingHandler)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// --- Página e API de inventário ---
	r.Group(func(r chi.Router) {
		if rl := deps.RateLimit; rl != nil {
			r.Use(middleware.RateLimiter(rl.Client, rl.Limit, rl.Window, deps.Logger))
		}
		deps.Web.Routes(r)
		r.Route("/v1/inventory", deps.Inventory.Routes)
	})

	return r
}

// PingHandler é uma função utilitária para o health check.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}
