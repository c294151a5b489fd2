package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crustohq/crusto-backend/pkg/config"
	"github.com/crustohq/crusto-backend/pkg/db"
	"github.com/crustohq/crusto-backend/pkg/logger"
	"github.com/crustohq/crusto-backend/pkg/redis"
)

const readinessTimeout = 5 * time.Second

// NewRouter builds the operational HTTP surface the worker binary exposes:
// liveness, readiness against the backing stores, and prometheus metrics.
func NewRouter(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", healthz(cfg))
	r.Get("/readyz", readyz(cfg, logg, dbP, redisP))
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func healthz(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"env":    cfg.App.Env,
		})
	}
}

func readyz(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		ready := true

		checks["db"] = "ok"
		if dbP == nil {
			checks["db"] = "unconfigured"
			ready = false
		} else if err := dbP.Ping(ctx); err != nil {
			logg.Error(ctx, "database readiness check failed", err)
			checks["db"] = "unavailable"
			ready = false
		}

		checks["redis"] = "ok"
		if redisP == nil {
			checks["redis"] = "unconfigured"
			ready = false
		} else if err := redisP.Ping(ctx); err != nil {
			logg.Error(ctx, "redis readiness check failed", err)
			checks["redis"] = "unavailable"
			ready = false
		}

		status := http.StatusOK
		state := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			state = "unavailable"
		}
		writeJSON(w, status, map[string]any{
			"status": state,
			"env":    cfg.App.Env,
			"checks": checks,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
