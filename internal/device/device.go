// Package device mirrors the state of a single Govee light and drives it: immediate setters,
// status queries and eased fades.
package device

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dokzlo13/goveed/internal/color"
	"github.com/dokzlo13/goveed/internal/govee/protocol"
	"github.com/dokzlo13/goveed/internal/govee/transport"
)

// Power is the tri-state on/off belief about a device.
type Power int

const (
	PowerUnknown Power = iota
	PowerOff
	PowerOn
)

func (p Power) String() string {
	switch p {
	case PowerOn:
		return "on"
	case PowerOff:
		return "off"
	default:
		return "unknown"
	}
}

// Field names a state dimension in change notifications.
type Field string

const (
	FieldColor      Field = "color"
	FieldBrightness Field = "brightness"
	FieldPower      Field = "power"
)

// State is the local mirror of a device. Color and ColorKelvin are always kept consistent.
type State struct {
	Color       color.RGB `json:"color"`
	ColorKelvin int       `json:"colorKelvin"`
	Brightness  float64   `json:"brightness"`
	Power       Power     `json:"-"`
}

// IsOn reports the power state as the device reports it: 1 on, 0 off, -1 unknown.
func (s State) IsOn() int {
	switch s.Power {
	case PowerOn:
		return 1
	case PowerOff:
		return 0
	default:
		return -1
	}
}

// FadePhase is a step in a fade session's lifecycle.
type FadePhase string

const (
	FadeStarted   FadePhase = "started"
	FadeCompleted FadePhase = "completed"
	FadeCancelled FadePhase = "cancelled"
	FadeFailed    FadePhase = "failed"
)

// FadeEvent describes a fade session lifecycle change.
type FadeEvent struct {
	Session uuid.UUID
	Phase   FadePhase
	Request FadeRequest
	Elapsed time.Duration
	Err     error
}

// Notifier receives state changes. Calls may come from any goroutine.
type Notifier interface {
	StatusUpdated(d *Device, state State, changed []Field)
	FadeChanged(d *Device, event FadeEvent)
}

type nopNotifier struct{}

func (nopNotifier) StatusUpdated(*Device, State, []Field) {}
func (nopNotifier) FadeChanged(*Device, FadeEvent)       {}

// Timing holds the fixed delays of the protocol and the fade loop.
type Timing struct {
	Tick             time.Duration // fade loop period
	SettleMargin     time.Duration // subtracted from a fade's duration to get its loop time
	PrimeSettle      time.Duration // wait after the priming status query
	BrightnessSettle time.Duration // delay before a brightness change is announced
	FinalSettle      time.Duration // wait after the final exact set
}

// DefaultTiming returns the timings the device firmware was observed to need.
func DefaultTiming() Timing {
	return Timing{
		Tick:             30 * time.Millisecond,
		SettleMargin:     100 * time.Millisecond,
		PrimeSettle:      100 * time.Millisecond,
		BrightnessSettle: 100 * time.Millisecond,
		FinalSettle:      50 * time.Millisecond,
	}
}

// Option configures a Device.
type Option func(*Device)

// WithID sets the device id reported by discovery.
func WithID(id string) Option {
	return func(d *Device) { d.id = id }
}

// WithSKU sets the product model.
func WithSKU(sku string) Option {
	return func(d *Device) { d.sku = sku }
}

// WithNotifier sets the receiver of state change notifications.
func WithNotifier(n Notifier) Option {
	return func(d *Device) {
		if n != nil {
			d.notifier = n
		}
	}
}

// WithTiming overrides DefaultTiming.
func WithTiming(t Timing) Option {
	return func(d *Device) { d.timing = t }
}

// Device is one light on the LAN. Each Device owns its state mirror and at most one fade session.
type Device struct {
	ip  string
	id  string
	sku string

	transport transport.Transport
	notifier  Notifier
	timing    Timing

	mu    sync.RWMutex
	state State

	sessionMu sync.Mutex
	session   *session
}

// New creates a device reachable at ip through t.
func New(ip string, t transport.Transport, opts ...Option) *Device {
	d := &Device{
		ip:        ip,
		transport: t,
		notifier:  nopNotifier{},
		timing:    DefaultTiming(),
		state:     State{Brightness: 1, Color: color.RGB{R: 255, G: 255, B: 255}},
	}
	d.state.ColorKelvin = color.RGBToKelvin(d.state.Color)

	for _, opt := range opts {
		opt(d)
	}
	return d
}

// IP returns the device address.
func (d *Device) IP() string { return d.ip }

// ID returns the device id, empty if unknown.
func (d *Device) ID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.id
}

// SKU returns the product model, empty if unknown.
func (d *Device) SKU() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sku
}

// SetIdentity records the id and model learned from discovery.
func (d *Device) SetIdentity(id, sku string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id != "" {
		d.id = id
	}
	if sku != "" {
		d.sku = sku
	}
}

// State returns a copy of the mirrored state.
func (d *Device) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Fading reports whether a fade session is active.
func (d *Device) Fading() bool {
	d.sessionMu.Lock()
	defer d.sessionMu.Unlock()
	return d.session != nil
}

// ApplyStatus folds a devStatus reply into the mirror and announces the fields that changed.
// Reported brightness (0-100) is normalized to 0.0-1.0.
func (d *Device) ApplyStatus(reply protocol.StatusReply) {
	power := PowerOff
	if reply.OnOff == 1 {
		power = PowerOn
	}
	kelvin := reply.ColorTemInKelvin
	if kelvin <= 0 {
		kelvin = color.RGBToKelvin(reply.Color)
	}

	d.mu.Lock()
	prev := d.state
	d.state = State{
		Color:       reply.Color,
		ColorKelvin: kelvin,
		Brightness:  float64(reply.Brightness) / 100,
		Power:       power,
	}
	st := d.state
	d.mu.Unlock()

	var changed []Field
	if prev.Color != st.Color || prev.ColorKelvin != st.ColorKelvin {
		changed = append(changed, FieldColor)
	}
	if prev.Brightness != st.Brightness {
		changed = append(changed, FieldBrightness)
	}
	if prev.Power != st.Power {
		changed = append(changed, FieldPower)
	}
	if len(changed) > 0 {
		d.notifier.StatusUpdated(d, st, changed)
	}
}
