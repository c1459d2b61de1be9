// Package lua runs user automation scripts against the device registry.
package lua

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/goveed/internal/eventbus"
	"github.com/dokzlo13/goveed/internal/lua/modules"
	"github.com/dokzlo13/goveed/internal/registry"
)

// ErrRuntimeClosed is returned when the Lua runtime is closed
var ErrRuntimeClosed = fmt.Errorf("lua runtime closed")

// LuaWork represents work to be executed on the Lua VM
// All Lua execution MUST go through this to ensure thread safety
type LuaWork func(ctx context.Context)

// Runtime manages the Lua VM with single-threaded execution
type Runtime struct {
	L        *lua.LState
	registry *registry.Registry

	goveeModule *modules.GoveeModule

	// Work queue for thread-safe Lua execution
	workQueue chan LuaWork

	// closing is closed when the runtime stops accepting work
	closing   chan struct{}
	closeOnce sync.Once

	// stopped is closed when Run returns
	running atomic.Bool
	stopped chan struct{}
}

// NewRuntime creates a new Lua runtime
func NewRuntime(reg *registry.Registry) *Runtime {
	r := &Runtime{
		L:         lua.NewState(),
		registry:  reg,
		workQueue: make(chan LuaWork, 100),
		closing:   make(chan struct{}),
		stopped:   make(chan struct{}),
	}

	r.registerModules()

	return r
}

// Close signals the runtime to stop accepting new work, waits for the worker
// to exit and closes the Lua state.
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		close(r.closing)
		// workQueue stays open so late senders never panic; Run exits on the closing signal.
		if r.running.Load() {
			<-r.stopped
		}
		r.L.Close()
	})
}

// Do queues work to be executed on the Lua VM (thread-safe, non-blocking)
// Returns false if the runtime is closing, queue is full, or context is cancelled.
func (r *Runtime) Do(ctx context.Context, work LuaWork) bool {
	select {
	case <-r.closing:
		log.Warn().Msg("Lua runtime closing, dropping work")
		return false
	case <-ctx.Done():
		log.Warn().Msg("Context cancelled, dropping Lua work")
		return false
	case r.workQueue <- work:
		return true
	default:
		log.Warn().Msg("Lua work queue full, dropping work")
		return false
	}
}

// DoSyncWithResult queues work, waits for space, and waits for the result.
func (r *Runtime) DoSyncWithResult(ctx context.Context, work func(context.Context) error) error {
	done := make(chan error, 1)
	wrappedWork := LuaWork(func(c context.Context) {
		done <- work(c)
	})

	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case r.workQueue <- wrappedWork:
	}

	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// registerModules registers all Lua modules
func (r *Runtime) registerModules() {
	logModule := modules.NewLogModule()
	r.L.PreloadModule("log", logModule.Loader)

	r.goveeModule = modules.NewGoveeModule(r.registry, func(fn func(*lua.LState)) bool {
		return r.Do(context.Background(), func(context.Context) { fn(r.L) })
	})
	r.L.PreloadModule("govee", r.goveeModule.Loader)
}

// Subscribe routes bus events to the handlers scripts registered.
func (r *Runtime) Subscribe(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.EventTypeStatus, r.goveeModule.HandleStatus)
}

// Run starts the Lua worker goroutine - this is the ONLY goroutine that touches Lua
// Exits when context is cancelled or runtime is closed.
func (r *Runtime) Run(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		return
	}
	defer close(r.stopped)

	for {
		select {
		case <-r.closing:
			return
		default:
		}

		select {
		case <-ctx.Done():
			r.drainQueue(ctx)
			return
		case <-r.closing:
			return
		case work := <-r.workQueue:
			r.executeWork(ctx, work)
		}
	}
}

// drainQueue processes any remaining work in the queue before exiting
func (r *Runtime) drainQueue(ctx context.Context) {
	for {
		select {
		case work := <-r.workQueue:
			r.executeWork(ctx, work)
		default:
			return
		}
	}
}

// executeWork runs a single work item with panic recovery
func (r *Runtime) executeWork(ctx context.Context, work LuaWork) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Msg("Lua work panicked - worker continuing")
		}
	}()
	// Modules read the context back through L.Context()
	r.L.SetContext(ctx)
	work(ctx)
}

// LoadScript loads and executes a Lua script (must be called before Run)
func (r *Runtime) LoadScript(ctx context.Context, path string) error {
	log.Info().Str("path", path).Msg("Loading Lua script")

	r.L.SetContext(ctx)
	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to execute Lua script: %w", err)
	}

	log.Info().Msg("Lua script loaded successfully")
	return nil
}
