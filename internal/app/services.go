package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/goveed/internal/config"
	"github.com/dokzlo13/goveed/internal/db"
	"github.com/dokzlo13/goveed/internal/ledger"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger

	// High-level services
	Govee     *GoveeService
	LedgerSvc *LedgerService
	Lua       *LuaService
	MQTT      *MQTTService
	Health    *HealthService
	API       *APIService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	var err error
	s.Govee, err = NewGoveeService(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Ledger.Enabled {
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.DB = database
		s.Ledger = ledger.New(database.DB)
		s.LedgerSvc = NewLedgerService(cfg, s.Ledger)
	}

	if cfg.MQTT.Enabled {
		s.MQTT, err = NewMQTTService(cfg)
		if err != nil {
			s.Close()
			return nil, err
		}
	}

	if cfg.Script != "" {
		s.Lua = NewLuaService(cfg, s.Govee.Registry)
	}

	s.Health = NewHealthService(cfg, s.Govee.Registry)
	s.API = NewAPIService(cfg, s.Govee.Registry)

	return s, nil
}

// Start starts all services in the correct order.
// The onFatalError callback is called when a fatal error occurs (e.g., max restarts exceeded).
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	bus := s.Govee.Bus

	// Subscribers first so nothing published during startup is missed
	if s.LedgerSvc != nil {
		s.LedgerSvc.Subscribe(bus)
		s.LedgerSvc.Start(ctx)
	}
	if s.MQTT != nil {
		s.MQTT.Subscribe(bus)
	}

	// Load Lua script before starting worker
	if s.Lua != nil {
		if err := s.Lua.LoadScript(ctx); err != nil {
			return err
		}
		s.Lua.Start(ctx, bus)
	} else {
		log.Debug().Msg("No Lua script configured")
	}

	s.Govee.StartBackground(ctx, onFatalError)
	s.Health.Start(ctx)
	s.API.Start(ctx)

	return nil
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Govee != nil {
		s.Govee.Close()
	}
	if s.Lua != nil {
		s.Lua.Close()
	}
	if s.MQTT != nil {
		s.MQTT.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
