package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/SimelweN/rebooked-backend/api/responses"
	"github.com/SimelweN/rebooked-backend/pkg/config"
	"github.com/SimelweN/rebooked-backend/pkg/logger"
)

const envHeader = "X-Rebooked-Env"

// pinger is any dependency with a cheap connectivity probe.
type pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness only when every backing store answers a ping.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP pinger) http.HandlerFunc {
	checks := map[string]pinger{
		"database": dbP,
		"redis":    redisP,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		statuses := map[string]string{}
		healthy := true
		for name, dep := range checks {
			if dep == nil {
				statuses[name] = "not configured"
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				statuses[name] = "unreachable"
				healthy = false
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", name), "readiness probe failed", err)
				}
				continue
			}
			statuses[name] = "ok"
		}

		status := http.StatusOK
		label := "ready"
		if !healthy {
			status = http.StatusServiceUnavailable
			label = "degraded"
		}
		responses.WriteSuccessStatus(w, status, map[string]any{
			"status": label,
			"checks": statuses,
		})
	}
}
