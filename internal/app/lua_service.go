package app

import (
	"context"

	"github.com/dokzlo13/goveed/internal/config"
	"github.com/dokzlo13/goveed/internal/eventbus"
	luart "github.com/dokzlo13/goveed/internal/lua"
	"github.com/dokzlo13/goveed/internal/registry"
)

// LuaService wraps the Lua runtime and provides thread-safe execution.
type LuaService struct {
	cfg     *config.Config
	Runtime *luart.Runtime
}

// NewLuaService creates a new LuaService.
func NewLuaService(cfg *config.Config, reg *registry.Registry) *LuaService {
	return &LuaService{
		cfg:     cfg,
		Runtime: luart.NewRuntime(reg),
	}
}

// LoadScript loads and executes the Lua script.
// Must be called before Start().
func (s *LuaService) LoadScript(ctx context.Context) error {
	return s.Runtime.LoadScript(ctx, s.cfg.Script)
}

// Start subscribes script handlers and begins the Lua worker goroutine.
func (s *LuaService) Start(ctx context.Context, bus *eventbus.Bus) {
	s.Runtime.Subscribe(bus)

	// This is the ONLY goroutine that touches Lua
	go s.Runtime.Run(ctx)
}

// Close closes the Lua runtime.
func (s *LuaService) Close() {
	if s.Runtime != nil {
		s.Runtime.Close()
	}
}
