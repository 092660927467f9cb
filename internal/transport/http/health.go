package http

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"habitat/internal/platform/redis"
	"habitat/internal/transport/http/shared"
)

type healthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// NewHealthHandler reports the state of every backing resource this instance
// was wired with. A nil db or cache means that resource is not configured and
// is skipped rather than reported unhealthy.
func NewHealthHandler(db *sql.DB, cache *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Components: map[string]string{}}
		if db != nil {
			resp.Components["postgres"] = "ok"
			if err := db.PingContext(ctx); err != nil {
				resp.Components["postgres"] = "unreachable"
				resp.Status = "degraded"
			}
		}
		if cache != nil {
			resp.Components["redis"] = "ok"
			if err := cache.Health(ctx); err != nil {
				resp.Components["redis"] = "unreachable"
				resp.Status = "degraded"
			}
		}

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		shared.WriteJSON(w, status, resp)
	}
}
