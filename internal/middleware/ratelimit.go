package middleware

import (
	"encoding/json"
	"net/http"

	"golang.org/x/time/rate"

	"visionqa/internal/dto"
	"visionqa/internal/logger"
)

// RateLimit rejects requests with 429 once the limiter's budget is spent.
func RateLimit(limiter *rate.Limiter, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				logger.Warning("Rate limit exceeded for %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(dto.ErrorResponse{Detail: "Too many uploads, slow down"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
