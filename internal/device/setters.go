package device

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dokzlo13/goveed/internal/color"
	"github.com/dokzlo13/goveed/internal/govee/protocol"
)

// SetColor sends spec to the device and, once the send returned, updates the mirror and
// announces FieldColor. A kelvin spec is sent as a temperature; the mirrored RGB is derived
// from it. Send failures are returned as-is and are not retried.
func (d *Device) SetColor(ctx context.Context, spec ColorSpec) error {
	target, err := spec.resolve()
	if err != nil {
		return err
	}

	env := protocol.ColorRGB(target.rgb)
	if target.isKelvin {
		env = protocol.ColorKelvin(target.kelvin)
	}
	if err := d.transport.Unicast(ctx, d.ip, env); err != nil {
		return err
	}

	d.mu.Lock()
	if target.isKelvin {
		d.state.ColorKelvin = int(math.Round(target.kelvin))
		d.state.Color = color.KelvinToRGB(target.kelvin)
	} else {
		d.state.Color = target.rgb
		d.state.ColorKelvin = color.RGBToKelvin(target.rgb)
	}
	st := d.state
	d.mu.Unlock()

	d.notifier.StatusUpdated(d, st, []Field{FieldColor})
	return nil
}

// SetBrightness sends value rounded to two decimals and updates the mirror once the send
// returned. FieldBrightness is announced after Timing.BrightnessSettle, not immediately.
func (d *Device) SetBrightness(ctx context.Context, value float64) error {
	if math.IsNaN(value) || value < 0 || value > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidBrightness, value)
	}
	bright := math.Round(value*100) / 100

	if err := d.transport.Unicast(ctx, d.ip, protocol.Brightness(bright)); err != nil {
		return err
	}

	d.mu.Lock()
	d.state.Brightness = bright
	d.mu.Unlock()

	time.AfterFunc(d.timing.BrightnessSettle, func() {
		d.notifier.StatusUpdated(d, d.State(), []Field{FieldBrightness})
	})
	return nil
}

// SetPower switches the device on or off.
func (d *Device) SetPower(ctx context.Context, on bool) error {
	if err := d.transport.Unicast(ctx, d.ip, protocol.Turn(on)); err != nil {
		return err
	}

	d.mu.Lock()
	if on {
		d.state.Power = PowerOn
	} else {
		d.state.Power = PowerOff
	}
	st := d.state
	d.mu.Unlock()

	d.notifier.StatusUpdated(d, st, []Field{FieldPower})
	return nil
}
