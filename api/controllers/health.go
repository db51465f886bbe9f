package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/bidhouse-backend/api/responses"
	"github.com/angelmondragon/bidhouse-backend/pkg/config"
	"github.com/angelmondragon/bidhouse-backend/pkg/logger"
	"github.com/angelmondragon/bidhouse-backend/pkg/types"
)

// Pinger is satisfied by the db and redis clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

const readyTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Bidhouse-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when every dependency answers a ping.
func HealthReady(cfg *config.Config, logg *logger.Logger, db Pinger, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Bidhouse-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		checks := map[string]Pinger{"database": db, "redis": cache}
		status := map[string]string{}
		ready := true
		for name, p := range checks {
			if p == nil {
				status[name] = "missing"
				ready = false
				continue
			}
			if err := p.Ping(ctx); err != nil {
				status[name] = "down"
				ready = false
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{"dependency": name, "error": err.Error()}), "health.ready.ping_failed")
				}
				continue
			}
			status[name] = "up"
		}
		if !ready {
			status["status"] = "unavailable"
			responses.WriteJSON(w, http.StatusServiceUnavailable, types.SuccessEnvelope{Data: status})
			return
		}
		status["status"] = "ready"
		responses.WriteSuccess(w, status)
	}
}
