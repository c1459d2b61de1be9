package device

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/goveed/internal/color"
	"github.com/dokzlo13/goveed/internal/govee/protocol"
)

func TestSetColor_RGB(t *testing.T) {
	d, tr, n := newTestDevice(t)

	require.NoError(t, d.SetColor(context.Background(), RGB(255, 0, 0)))

	st := d.State()
	assert.Equal(t, color.RGB{R: 255}, st.Color)
	assert.Equal(t, color.RGBToKelvin(color.RGB{R: 255}), st.ColorKelvin)
	assert.InDelta(t, color.MinKelvin, st.ColorKelvin, 1)

	calls := tr.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "192.168.1.50", calls[0].ip)
	assert.Equal(t, protocol.ColorRGB(color.RGB{R: 255}), calls[0].env)

	// Color is announced as soon as the send returned.
	statuses := n.statusCalls()
	require.Len(t, statuses, 1)
	assert.Equal(t, []Field{FieldColor}, statuses[0].changed)
	assert.Equal(t, color.RGB{R: 255}, statuses[0].state.Color)
}

func TestSetColor_KelvinSendsTemperature(t *testing.T) {
	d, tr, _ := newTestDevice(t)

	require.NoError(t, d.SetColor(context.Background(), Kelvin(2700)))

	calls := tr.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, protocol.ColorKelvin(2700), calls[0].env)

	st := d.State()
	assert.Equal(t, 2700, st.ColorKelvin)
	assert.Equal(t, color.KelvinToRGB(2700), st.Color)
}

func TestSetColor_Precedence(t *testing.T) {
	d, tr, _ := newTestDevice(t)
	k := 4000.0
	spec := ColorSpec{Kelvin: &k, Hex: "#00ff00", RGB: &color.RGB{B: 255}}

	require.NoError(t, d.SetColor(context.Background(), spec))
	assert.Equal(t, protocol.ColorKelvin(4000), tr.calls()[0].env)

	spec.Kelvin = nil
	spec.HSL = &color.HSL{H: 0, S: 100, L: 50}
	require.NoError(t, d.SetColor(context.Background(), spec))
	assert.Equal(t, protocol.ColorRGB(color.RGB{G: 255}), tr.calls()[1].env, "hex beats hsl and rgb")

	spec.Hex = ""
	require.NoError(t, d.SetColor(context.Background(), spec))
	assert.Equal(t, protocol.ColorRGB(color.RGB{R: 255}), tr.calls()[2].env, "hsl beats rgb")
}

func TestSetColor_Invalid(t *testing.T) {
	d, tr, n := newTestDevice(t)
	before := d.State()

	err := d.SetColor(context.Background(), Hex("#12345"))
	assert.ErrorIs(t, err, color.ErrInvalidColorFormat)

	err = d.SetColor(context.Background(), ColorSpec{})
	assert.ErrorIs(t, err, ErrEmptyColorSpec)

	err = d.SetColor(context.Background(), Kelvin(math.NaN()))
	assert.ErrorIs(t, err, color.ErrInvalidColorFormat)

	assert.Empty(t, tr.calls())
	assert.Empty(t, n.statusCalls())
	assert.Equal(t, before, d.State())
}

func TestSetColor_SendFailureLeavesMirror(t *testing.T) {
	d, tr, n := newTestDevice(t)
	tr.err = errors.New("network is unreachable")
	before := d.State()

	err := d.SetColor(context.Background(), RGB(1, 2, 3))
	assert.EqualError(t, err, "network is unreachable")
	assert.Equal(t, before, d.State())
	assert.Empty(t, n.statusCalls())
}

func TestSetBrightness_RoundsAndDelaysNotification(t *testing.T) {
	d, tr, n := newTestDevice(t)

	require.NoError(t, d.SetBrightness(context.Background(), 0.456))

	assert.Equal(t, []float64{0.46}, tr.brightnessValues())
	assert.Equal(t, 0.46, d.State().Brightness)
	assert.Empty(t, n.statusCalls(), "brightness is announced after the settle delay")

	require.Eventually(t, func() bool { return len(n.statusCalls()) == 1 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, []Field{FieldBrightness}, n.statusCalls()[0].changed)
}

func TestSetBrightness_OutOfRange(t *testing.T) {
	d, tr, _ := newTestDevice(t)

	assert.ErrorIs(t, d.SetBrightness(context.Background(), 1.2), ErrInvalidBrightness)
	assert.ErrorIs(t, d.SetBrightness(context.Background(), -0.1), ErrInvalidBrightness)
	assert.ErrorIs(t, d.SetBrightness(context.Background(), math.NaN()), ErrInvalidBrightness)
	assert.Empty(t, tr.calls())
}

func TestSetPower(t *testing.T) {
	d, tr, n := newTestDevice(t)

	require.NoError(t, d.SetPower(context.Background(), true))
	assert.Equal(t, PowerOn, d.State().Power)
	assert.Equal(t, protocol.Turn(true), tr.calls()[0].env)
	assert.Equal(t, []Field{FieldPower}, n.statusCalls()[0].changed)
}

func TestUpdateValues(t *testing.T) {
	assert.ErrorIs(t, UpdateValues(context.Background(), nil, false), ErrNoDevice)
	assert.ErrorIs(t, UpdateValues(context.Background(), nil, true), ErrNoDevice)

	d, tr, _ := newTestDevice(t)
	require.NoError(t, d.UpdateValues(context.Background()))
	require.NoError(t, UpdateValues(context.Background(), d, true))

	calls := tr.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, sent{ip: "192.168.1.50", env: protocol.Status()}, calls[0])
	assert.Equal(t, sent{broadcast: true, env: protocol.Status()}, calls[1])
}

func TestApplyStatus(t *testing.T) {
	d, _, n := newTestDevice(t)

	d.ApplyStatus(protocol.StatusReply{OnOff: 1, Brightness: 35, Color: color.RGB{R: 10, G: 20, B: 30}})

	st := d.State()
	assert.Equal(t, PowerOn, st.Power)
	assert.Equal(t, 1, st.IsOn())
	assert.Equal(t, 0.35, st.Brightness)
	assert.Equal(t, color.RGBToKelvin(color.RGB{R: 10, G: 20, B: 30}), st.ColorKelvin)
	assert.ElementsMatch(t, []Field{FieldColor, FieldBrightness, FieldPower}, n.statusCalls()[0].changed)

	// Same report again changes nothing and stays quiet.
	d.ApplyStatus(protocol.StatusReply{OnOff: 1, Brightness: 35, Color: color.RGB{R: 10, G: 20, B: 30}})
	assert.Len(t, n.statusCalls(), 1)
}

func TestColorSpec_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, s ColorSpec)
	}{
		{
			name:  "kelvin_number",
			input: `{"kelvin":2700}`,
			check: func(t *testing.T, s ColorSpec) { assert.Equal(t, 2700.0, *s.Kelvin) },
		},
		{
			name:  "kelvin_string_with_unit",
			input: `{"kelvin":"6500K"}`,
			check: func(t *testing.T, s ColorSpec) { assert.Equal(t, 6500.0, *s.Kelvin) },
		},
		{
			name:  "kelvin_not_a_number",
			input: `{"kelvin":"warm"}`,
			check: func(t *testing.T, s ColorSpec) { assert.True(t, math.IsNaN(*s.Kelvin)) },
		},
		{
			name:  "rgb_array",
			input: `{"rgb":[255,128,0]}`,
			check: func(t *testing.T, s ColorSpec) { assert.Equal(t, color.RGB{R: 255, G: 128}, *s.RGB) },
		},
		{
			name:  "rgb_object",
			input: `{"rgb":{"r":1,"g":2,"b":3}}`,
			check: func(t *testing.T, s ColorSpec) { assert.Equal(t, color.RGB{R: 1, G: 2, B: 3}, *s.RGB) },
		},
		{
			name:  "hsl_array",
			input: `{"hsl":[120,100,50]}`,
			check: func(t *testing.T, s ColorSpec) { assert.Equal(t, color.HSL{H: 120, S: 100, L: 50}, *s.HSL) },
		},
		{
			name:  "hex",
			input: `{"hex":"#abcdef"}`,
			check: func(t *testing.T, s ColorSpec) { assert.Equal(t, "#abcdef", s.Hex) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s ColorSpec
			require.NoError(t, json.Unmarshal([]byte(tt.input), &s))
			tt.check(t, s)
		})
	}

	var s ColorSpec
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"rgb":[300,0,0]}`), &s), color.ErrInvalidColorFormat)
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"rgb":[1,2]}`), &s), color.ErrInvalidColorFormat)
}
