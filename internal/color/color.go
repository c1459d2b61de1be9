// Package color converts between the color representations accepted by Govee devices:
// hex strings, RGB triples, HSL triples and correlated color temperature in Kelvin.
package color

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidColorFormat is returned for malformed hex strings or out-of-range channel values.
var ErrInvalidColorFormat = errors.New("invalid color format")

// RGB is a color with 0-255 channels. The JSON shape matches the device's color payload.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// HSL is hue in degrees (0-360), saturation and lightness in percent (0-100).
type HSL struct {
	H float64 `json:"h"`
	S float64 `json:"s"`
	L float64 `json:"l"`
}

// String returns the color as #rrggbb
func (c RGB) String() string {
	return RGBToHex(c)
}

// HexToRGB parses "#rrggbb", "rrggbb", "#rgb" or "rgb".
func HexToRGB(hex string) (RGB, error) {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "#")

	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	case 6:
	default:
		return RGB{}, fmt.Errorf("%w: hex %q must have 3 or 6 digits", ErrInvalidColorFormat, hex)
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("%w: hex %q: %v", ErrInvalidColorFormat, hex, err)
	}

	return RGB{
		R: uint8(v >> 16),
		G: uint8(v >> 8 & 0xff),
		B: uint8(v & 0xff),
	}, nil
}

// RGBToHex formats c as lowercase #rrggbb
func RGBToHex(c RGB) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// NewRGB builds an RGB from integer channels, rejecting values outside 0-255.
func NewRGB(r, g, b int) (RGB, error) {
	for _, v := range [3]int{r, g, b} {
		if v < 0 || v > 255 {
			return RGB{}, fmt.Errorf("%w: channel value %d out of range", ErrInvalidColorFormat, v)
		}
	}
	return RGB{R: uint8(r), G: uint8(g), B: uint8(b)}, nil
}

// HSLToRGB converts hue/saturation/lightness to RGB.
func HSLToRGB(c HSL) (RGB, error) {
	if c.H < 0 || c.H > 360 || c.S < 0 || c.S > 100 || c.L < 0 || c.L > 100 {
		return RGB{}, fmt.Errorf("%w: hsl(%g, %g, %g) out of range", ErrInvalidColorFormat, c.H, c.S, c.L)
	}

	h := c.H / 360
	s := c.S / 100
	l := c.L / 100

	if s == 0 {
		v := to255(l)
		return RGB{R: v, G: v, B: v}, nil
	}

	var t2 float64
	if l < 0.5 {
		t2 = l * (1 + s)
	} else {
		t2 = l + s - l*s
	}
	t1 := 2*l - t2

	var out [3]uint8
	for i := 0; i < 3; i++ {
		t3 := h + 1.0/3.0*-float64(i-1)
		if t3 < 0 {
			t3++
		}
		if t3 > 1 {
			t3--
		}

		var v float64
		switch {
		case 6*t3 < 1:
			v = t1 + (t2-t1)*6*t3
		case 2*t3 < 1:
			v = t2
		case 3*t3 < 2:
			v = t1 + (t2-t1)*(2.0/3.0-t3)*6
		default:
			v = t1
		}
		out[i] = to255(v)
	}

	return RGB{R: out[0], G: out[1], B: out[2]}, nil
}

// RGBToHSL converts RGB to hue/saturation/lightness.
func RGBToHSL(c RGB) HSL {
	r := float64(c.R) / 255
	g := float64(c.G) / 255
	b := float64(c.B) / 255

	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	delta := max - min
	l := (max + min) / 2

	var h, s float64
	if delta != 0 {
		if l <= 0.5 {
			s = delta / (max + min)
		} else {
			s = delta / (2 - max - min)
		}

		switch max {
		case r:
			h = (g - b) / delta
		case g:
			h = 2 + (b-r)/delta
		default:
			h = 4 + (r-g)/delta
		}
		h = math.Mod(h*60+360, 360)
	}

	return HSL{H: h, S: s * 100, L: l * 100}
}

func to255(v float64) uint8 {
	return uint8(math.Round(clamp(v*255, 0, 255)))
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
