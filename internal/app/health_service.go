package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/goveed/internal/config"
	"github.com/dokzlo13/goveed/internal/registry"
)

// HealthService provides HTTP health check and metrics endpoints.
type HealthService struct {
	cfg      *config.Config
	registry *registry.Registry
	server   *http.Server
}

// NewHealthService creates a new HealthService.
func NewHealthService(cfg *config.Config, reg *registry.Registry) *HealthService {
	return &HealthService{
		cfg:      cfg,
		registry: reg,
	}
}

// Start begins the health check server if enabled.
func (s *HealthService) Start(ctx context.Context) {
	if !s.cfg.Healthcheck.Enabled {
		return
	}

	go s.run(ctx)
}

// Handler returns the health, readiness and metrics routes.
func (s *HealthService) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Ready once at least one device is known
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		devices := s.registry.Len()
		status, code := "ready", http.StatusOK
		if devices == 0 {
			status, code = "no devices", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{"status": status, "devices": devices})
	})

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func (s *HealthService) run(ctx context.Context) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Healthcheck.GetHost(), s.cfg.Healthcheck.GetPort())

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	log.Info().Str("addr", addr).Msg("Starting health check server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Health check server shutdown error")
		}
	}()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Health check server error")
	}
}
