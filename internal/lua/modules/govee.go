package modules

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/goveed/internal/color"
	"github.com/dokzlo13/goveed/internal/device"
	"github.com/dokzlo13/goveed/internal/eventbus"
	"github.com/dokzlo13/goveed/internal/registry"
)

// Dispatcher queues fn onto the Lua worker. It returns false if the work was dropped.
type Dispatcher func(fn func(L *lua.LState)) bool

// GoveeModule provides the govee Lua module: device listing, setters, fades and status
// callbacks.
type GoveeModule struct {
	registry *registry.Registry
	dispatch Dispatcher

	// Only touched from the Lua worker.
	statusHandlers []*lua.LFunction
}

// NewGoveeModule creates the module. dispatch runs callbacks on the Lua worker.
func NewGoveeModule(reg *registry.Registry, dispatch Dispatcher) *GoveeModule {
	return &GoveeModule{registry: reg, dispatch: dispatch}
}

// Loader is the module loader for Lua
func (m *GoveeModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "devices", L.NewFunction(m.devices))
	L.SetField(mod, "device", L.NewFunction(m.device))
	L.SetField(mod, "set_color", L.NewFunction(m.setColor))
	L.SetField(mod, "set_brightness", L.NewFunction(m.setBrightness))
	L.SetField(mod, "set_power", L.NewFunction(m.setPower))
	L.SetField(mod, "refresh", L.NewFunction(m.refresh))
	L.SetField(mod, "fade", L.NewFunction(m.fade))
	L.SetField(mod, "cancel_fade", L.NewFunction(m.cancelFade))
	L.SetField(mod, "on_status", L.NewFunction(m.onStatus))

	L.Push(mod)
	return 1
}

func ctxOf(L *lua.LState) context.Context {
	if ctx := L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// pushResult follows the Lua convention: true on success, nil plus message on failure.
func pushResult(L *lua.LState, err error) int {
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

func (m *GoveeModule) lookup(L *lua.LState) *device.Device {
	d, err := m.registry.Lookup(L.CheckString(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return nil
	}
	return d
}

func deviceTable(L *lua.LState, d *device.Device) *lua.LTable {
	st := d.State()
	return MapToLuaTable(L, map[string]any{
		"ip":         d.IP(),
		"id":         d.ID(),
		"sku":        d.SKU(),
		"color":      color.RGBToHex(st.Color),
		"kelvin":     st.ColorKelvin,
		"brightness": st.Brightness,
		"power":      st.Power.String(),
		"fading":     d.Fading(),
	})
}

// devices() - List known devices
func (m *GoveeModule) devices(L *lua.LState) int {
	tbl := L.NewTable()
	for i, d := range m.registry.All() {
		tbl.RawSetInt(i+1, deviceTable(L, d))
	}
	L.Push(tbl)
	return 1
}

// device(key) - Get one device by IP or id, nil if unknown
func (m *GoveeModule) device(L *lua.LState) int {
	d, err := m.registry.Lookup(L.CheckString(1))
	if err != nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(deviceTable(L, d))
	return 1
}

// colorSpec reads a color argument: a hex string, a kelvin number or a table with one of
// hex, rgb, hsl or kelvin.
func colorSpec(v lua.LValue) (device.ColorSpec, error) {
	switch val := v.(type) {
	case lua.LString:
		return device.Hex(string(val)), nil
	case lua.LNumber:
		return device.Kelvin(float64(val)), nil
	case *lua.LTable:
		var spec device.ColorSpec
		err := decodeLua(val, &spec)
		return spec, err
	}
	return device.ColorSpec{}, errors.New("color must be a string, number or table")
}

// set_color(key, color) - Set color immediately
func (m *GoveeModule) setColor(L *lua.LState) int {
	d := m.lookup(L)
	spec, err := colorSpec(L.CheckAny(2))
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}
	return pushResult(L, d.SetColor(ctxOf(L), spec))
}

// set_brightness(key, value) - Set brightness (0.0-1.0) immediately
func (m *GoveeModule) setBrightness(L *lua.LState) int {
	d := m.lookup(L)
	value := float64(L.CheckNumber(2))
	return pushResult(L, d.SetBrightness(ctxOf(L), value))
}

// set_power(key, on) - Switch a device on or off
func (m *GoveeModule) setPower(L *lua.LState) int {
	d := m.lookup(L)
	return pushResult(L, d.SetPower(ctxOf(L), L.CheckBool(2)))
}

// refresh(key) - Ask a device for its status; without key every device is asked
func (m *GoveeModule) refresh(L *lua.LState) int {
	if L.GetTop() == 0 {
		var errs []error
		for _, d := range m.registry.All() {
			errs = append(errs, d.UpdateValues(ctxOf(L)))
		}
		return pushResult(L, errors.Join(errs...))
	}
	d := m.lookup(L)
	return pushResult(L, d.UpdateValues(ctxOf(L)))
}

// fade(key, {color=..., brightness=..., time=ms}, [callback]) - Start a fade in the background.
// callback(err) runs on the Lua worker when the fade ends; err is nil on success.
func (m *GoveeModule) fade(L *lua.LState) int {
	d := m.lookup(L)

	var req device.FadeRequest
	if err := decodeLua(L.CheckTable(2), &req); err != nil {
		L.ArgError(2, err.Error())
		return 0
	}
	callback := L.OptFunction(3, nil)

	ctx := ctxOf(L)
	go func() {
		err := d.Fade(ctx, req)
		if err != nil && !errors.Is(err, device.ErrFadeCancelled) {
			log.Warn().Err(err).Str("device", d.IP()).Str("source", "lua").Msg("Fade failed")
		}
		if callback == nil {
			return
		}
		m.dispatch(func(L *lua.LState) {
			arg := lua.LValue(lua.LNil)
			if err != nil {
				arg = lua.LString(err.Error())
			}
			m.call(L, callback, arg)
		})
	}()

	L.Push(lua.LTrue)
	return 1
}

// cancel_fade(key, [reject]) - Stop the running fade; returns whether one was running
func (m *GoveeModule) cancelFade(L *lua.LState) int {
	d := m.lookup(L)
	reject := L.OptBool(2, false)
	L.Push(lua.LBool(d.CancelFade(reject)))
	return 1
}

// on_status(fn) - Register fn(device, changed) for every status notification
func (m *GoveeModule) onStatus(L *lua.LState) int {
	m.statusHandlers = append(m.statusHandlers, L.CheckFunction(1))
	return 0
}

// HandleStatus is an eventbus.Handler for EventTypeStatus. Callbacks run on the Lua worker.
func (m *GoveeModule) HandleStatus(e eventbus.Event) {
	change, ok := e.Payload.(eventbus.StatusChange)
	if !ok {
		return
	}
	d := m.registry.Get(e.Device)
	if d == nil {
		return
	}

	changed := make([]string, len(change.Changed))
	for i, f := range change.Changed {
		changed[i] = string(f)
	}

	m.dispatch(func(L *lua.LState) {
		for _, fn := range m.statusHandlers {
			m.call(L, fn, deviceTable(L, d), GoToLuaValue(L, changed))
		}
	})
}

func (m *GoveeModule) call(L *lua.LState, fn *lua.LFunction, args ...lua.LValue) {
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...); err != nil {
		log.Error().Err(err).Str("source", "lua").Msg("Lua callback failed")
	}
}
