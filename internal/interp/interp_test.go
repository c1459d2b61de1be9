package interp

import (
	"math"
	"testing"
)

func TestLerp(t *testing.T) {
	tests := []struct {
		start, end, fraction, want float64
	}{
		{0, 10, 0, 0},
		{0, 10, 1, 10},
		{0, 10, 0.5, 5},
		{0.2, 0.8, 0.5, 0.5},
		{10, 0, 0.25, 7.5},
		{0, 10, 1.5, 15}, // not clamped
	}
	for _, tt := range tests {
		got := Lerp(tt.start, tt.end, tt.fraction)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Lerp(%v, %v, %v) = %v, want %v", tt.start, tt.end, tt.fraction, got, tt.want)
		}
	}
}

func TestLerp_MonotonicBetweenEndpoints(t *testing.T) {
	for _, pair := range [][2]float64{{0.2, 0.8}, {6500, 2700}, {-3, 3}} {
		a, b := pair[0], pair[1]
		prev := Lerp(a, b, 0)
		for i := 1; i <= 100; i++ {
			v := Lerp(a, b, float64(i)/100)
			if (b >= a && v < prev) || (b < a && v > prev) {
				t.Fatalf("Lerp(%v, %v, ·) not monotonic at step %d", a, b, i)
			}
			if v < math.Min(a, b)-1e-9 || v > math.Max(a, b)+1e-9 {
				t.Fatalf("Lerp(%v, %v, ·) = %v left the range", a, b, v)
			}
			prev = v
		}
	}
}

func TestLerpColor(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		fraction float64
		want     string
	}{
		{name: "start", a: "#ff0000", b: "#0000ff", fraction: 0, want: "#ff0000"},
		{name: "end", a: "#ff0000", b: "#0000ff", fraction: 1, want: "#0000ff"},
		{name: "middle", a: "#000000", b: "#ffffff", fraction: 0.5, want: "#808080"},
		{name: "no_hash", a: "102030", b: "102030", fraction: 0.3, want: "#102030"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LerpColor(tt.a, tt.b, tt.fraction)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("LerpColor(%q, %q, %v) = %q, want %q", tt.a, tt.b, tt.fraction, got, tt.want)
			}
		})
	}

	if _, err := LerpColor("#12", "#000000", 0.5); err == nil {
		t.Error("LerpColor with malformed hex should fail")
	}
}

func TestEaseProgress_Boundaries(t *testing.T) {
	if got := EaseProgress(0, 0, 1, 0, 1, 0.5); got != 0 {
		t.Errorf("EaseProgress(0) = %v, want 0", got)
	}
	if got := EaseProgress(1, 0, 1, 0, 1, 0.5); got != 1 {
		t.Errorf("EaseProgress(1) = %v, want 1", got)
	}
	if got := EaseProgress(-0.3, 0, 1, 0, 1, 0.5); got != 0 {
		t.Errorf("EaseProgress(-0.3) = %v, want 0", got)
	}
	if got := EaseProgress(7, 0, 1, 0, 1, 0.5); got != 1 {
		t.Errorf("EaseProgress(7) = %v, want 1", got)
	}
}

func TestEaseProgress_ReversedSourceRange(t *testing.T) {
	// Below the minimum maps to the endpoint paired with the minimum, which is sourceEnd here.
	if got := EaseProgress(-1, 1, 0, 10, 20, 0.5); got != 20 {
		t.Errorf("below reversed range = %v, want 20", got)
	}
	if got := EaseProgress(2, 1, 0, 10, 20, 0.5); got != 10 {
		t.Errorf("above reversed range = %v, want 10", got)
	}
}

func TestEaseProgress_NonDecreasing(t *testing.T) {
	for _, slope := range []float64{0.1, 0.5, 0.9} {
		prev := EaseProgress(0, 0, 1, 0, 1, slope)
		for i := 1; i <= 200; i++ {
			v := EaseProgress(float64(i)/200, 0, 1, 0, 1, slope)
			if v < prev-1e-12 {
				t.Fatalf("slope %v: decreased at step %d (%v < %v)", slope, i, v, prev)
			}
			prev = v
		}
	}
}

func TestEaseProgress_Slope(t *testing.T) {
	if got := EaseProgress(0.25, 0, 1, 0, 1, 0.5); math.Abs(got-0.25) > 1e-9 {
		t.Errorf("slope 0.5 should be linear, got %v at 0.25", got)
	}
	// Zero slope behaves like the default.
	if EaseProgress(0.3, 0, 1, 0, 1, 0) != EaseProgress(0.3, 0, 1, 0, 1, DefaultSlope) {
		t.Error("zero slope should fall back to DefaultSlope")
	}
	if EaseProgress(0.3, 0, 1, 0, 1, 0.1) >= EaseProgress(0.3, 0, 1, 0, 1, 0.9) {
		t.Error("a low slope should trail a high slope early in the range")
	}
}
