package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"gostocksync/internal/domain"
	"gostocksync/internal/pkg/logger"
)

// Recoverer transforma um panic no handler numa resposta 500 padronizada.
func Recoverer(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("Panic recuperado.", fmt.Errorf("panic: %v", rec))
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(domain.ErrorResponse{
						Code:     http.StatusInternalServerError,
						Category: "INTERNAL_ERROR",
						Message:  "Ocorreu um erro inesperado.",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
