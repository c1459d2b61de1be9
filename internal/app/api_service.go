package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/goveed/internal/api"
	"github.com/dokzlo13/goveed/internal/config"
	"github.com/dokzlo13/goveed/internal/registry"
)

// APIService wraps the control API HTTP server.
type APIService struct {
	cfg    *config.Config
	server *api.Server
}

// NewAPIService creates a new APIService.
func NewAPIService(cfg *config.Config, reg *registry.Registry) *APIService {
	return &APIService{
		cfg:    cfg,
		server: api.NewServer(cfg.API.Host, cfg.API.Port, reg),
	}
}

// Start begins the API server if enabled.
func (s *APIService) Start(ctx context.Context) {
	if !s.cfg.API.Enabled {
		log.Debug().Msg("API server disabled")
		return
	}

	go func() {
		if err := s.server.Run(ctx, s.cfg.GetShutdownTimeout()); err != nil {
			log.Error().Err(err).Msg("API server error")
		}
	}()
}
