package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dokzlo13/goveed/internal/color"
)

// ColorSpec names a target color. Callers set exactly one variant; if several are set the
// first non-empty one in the order Kelvin, Hex, HSL, RGB wins. A zero Kelvin counts as unset.
type ColorSpec struct {
	Hex    string     `json:"hex,omitempty"`
	RGB    *color.RGB `json:"rgb,omitempty"`
	HSL    *color.HSL `json:"hsl,omitempty"`
	Kelvin *float64   `json:"kelvin,omitempty"`
}

// Kelvin is a convenience constructor for a temperature spec.
func Kelvin(k float64) ColorSpec {
	return ColorSpec{Kelvin: &k}
}

// Hex is a convenience constructor for a hex spec.
func Hex(h string) ColorSpec {
	return ColorSpec{Hex: h}
}

// RGB is a convenience constructor for an RGB spec.
func RGB(r, g, b uint8) ColorSpec {
	return ColorSpec{RGB: &color.RGB{R: r, G: g, B: b}}
}

// resolvedColor is a ColorSpec reduced to what goes on the wire.
type resolvedColor struct {
	rgb      color.RGB
	kelvin   float64
	isKelvin bool
}

func (s ColorSpec) hasKelvin() bool {
	return s.Kelvin != nil && *s.Kelvin != 0
}

func (s ColorSpec) resolve() (resolvedColor, error) {
	if s.hasKelvin() {
		k := *s.Kelvin
		if math.IsNaN(k) || math.IsInf(k, 0) || k < 0 {
			return resolvedColor{}, fmt.Errorf("%w: kelvin %v", color.ErrInvalidColorFormat, k)
		}
		return resolvedColor{kelvin: k, isKelvin: true}, nil
	}
	return s.resolveRGB()
}

// resolveRGB ignores the Kelvin variant.
func (s ColorSpec) resolveRGB() (resolvedColor, error) {
	switch {
	case s.Hex != "":
		c, err := color.HexToRGB(s.Hex)
		return resolvedColor{rgb: c}, err
	case s.HSL != nil:
		c, err := color.HSLToRGB(*s.HSL)
		return resolvedColor{rgb: c}, err
	case s.RGB != nil:
		return resolvedColor{rgb: *s.RGB}, nil
	}
	return resolvedColor{}, ErrEmptyColorSpec
}

// IsEmpty reports whether no variant is set.
func (s ColorSpec) IsEmpty() bool {
	return !s.hasKelvin() && s.Hex == "" && s.HSL == nil && s.RGB == nil
}

// String renders the winning variant for logs.
func (s ColorSpec) String() string {
	switch {
	case s.hasKelvin():
		return fmt.Sprintf("%gK", *s.Kelvin)
	case s.Hex != "":
		return s.Hex
	case s.HSL != nil:
		return fmt.Sprintf("hsl(%g,%g,%g)", s.HSL.H, s.HSL.S, s.HSL.L)
	case s.RGB != nil:
		return color.RGBToHex(*s.RGB)
	}
	return "none"
}

// UnmarshalJSON accepts rgb/hsl as three-element arrays or objects, and kelvin as a number or
// a string such as "2700K". A kelvin string that does not parse becomes NaN.
func (s *ColorSpec) UnmarshalJSON(b []byte) error {
	var raw struct {
		Hex    string          `json:"hex"`
		RGB    json.RawMessage `json:"rgb"`
		HSL    json.RawMessage `json:"hsl"`
		Kelvin json.RawMessage `json:"kelvin"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	out := ColorSpec{Hex: raw.Hex}

	if isSet(raw.RGB) {
		var c color.RGB
		var arr []int
		if err := json.Unmarshal(raw.RGB, &arr); err == nil {
			if len(arr) != 3 {
				return fmt.Errorf("%w: rgb needs 3 values", color.ErrInvalidColorFormat)
			}
			parsed, rgbErr := color.NewRGB(arr[0], arr[1], arr[2])
			if rgbErr != nil {
				return rgbErr
			}
			c = parsed
		} else if err := json.Unmarshal(raw.RGB, &c); err != nil {
			return fmt.Errorf("%w: rgb: %v", color.ErrInvalidColorFormat, err)
		}
		out.RGB = &c
	}

	if isSet(raw.HSL) {
		var c color.HSL
		var arr []float64
		if err := json.Unmarshal(raw.HSL, &arr); err == nil {
			if len(arr) != 3 {
				return fmt.Errorf("%w: hsl needs 3 values", color.ErrInvalidColorFormat)
			}
			c = color.HSL{H: arr[0], S: arr[1], L: arr[2]}
		} else if err := json.Unmarshal(raw.HSL, &c); err != nil {
			return fmt.Errorf("%w: hsl: %v", color.ErrInvalidColorFormat, err)
		}
		out.HSL = &c
	}

	if isSet(raw.Kelvin) {
		k := parseKelvin(raw.Kelvin)
		out.Kelvin = &k
	}

	*s = out
	return nil
}

// MarshalJSON drops a NaN kelvin, which encoding/json cannot represent.
func (s ColorSpec) MarshalJSON() ([]byte, error) {
	type alias ColorSpec
	a := alias(s)
	if a.Kelvin != nil && (math.IsNaN(*a.Kelvin) || math.IsInf(*a.Kelvin, 0)) {
		a.Kelvin = nil
	}
	return json.Marshal(a)
}

func isSet(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

func parseKelvin(raw json.RawMessage) float64 {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}

	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return math.NaN()
	}
	str = strings.TrimSuffix(strings.TrimSuffix(strings.TrimSpace(str), "K"), "k")
	f, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
