package middleware

import (
	"net/http"

	"github.com/bollustrado/mortimmy/internal/logging"
)

const CorrelationIDHeader = "X-Correlation-ID"

func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithCorrelationID(r.Context(), r.Header.Get(CorrelationIDHeader))
		w.Header().Set(CorrelationIDHeader, logging.CorrelationID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
