package color

import "math"

// Kelvin bounds searched by RGBToKelvin.
const (
	MinKelvin = 1000
	MaxKelvin = 40000

	kelvinEpsilon = 0.4
)

// KelvinToRGB approximates the color of a black body at the given temperature.
//
// The curve is Neil Bartlett's refit of Tanner Helland's approximation. It is lossy:
// KelvinToRGB followed by RGBToKelvin lands near, not on, the input temperature.
func KelvinToRGB(kelvin float64) RGB {
	t := kelvin / 100

	var r, g, b float64
	if t < 66 {
		r = 255

		g = t - 2
		g = -155.25485562709179 - 0.44596950469579133*g + 104.49216199393888*math.Log(g)

		if t <= 20 {
			b = 0
		} else {
			b = t - 10
			b = -254.76935184120902 + 0.8274096064007395*b + 115.67994401066147*math.Log(b)
		}
	} else {
		r = t - 55
		r = 351.97690566805693 + 0.114206453784165*r - 40.25366309332127*math.Log(r)

		g = t - 50
		g = 325.4494125711974 + 0.07943456536662342*g - 28.0852963507957*math.Log(g)

		b = 255
	}

	return RGB{
		R: channel(r),
		G: channel(g),
		B: channel(b),
	}
}

// RGBToKelvin estimates the correlated color temperature of c by binary search over
// [MinKelvin, MaxKelvin] on the blue/red ratio of KelvinToRGB.
func RGBToKelvin(c RGB) int {
	if c.R == 0 {
		// No red component: bluest end of the curve.
		return MaxKelvin
	}
	ratio := float64(c.B) / float64(c.R)

	min, max := float64(MinKelvin), float64(MaxKelvin)
	temperature := min
	for max-min > kelvinEpsilon {
		temperature = (max + min) / 2
		test := KelvinToRGB(temperature)
		if test.R == 0 || float64(test.B)/float64(test.R) >= ratio {
			max = temperature
		} else {
			min = temperature
		}
	}

	return int(math.Round(temperature))
}

func channel(v float64) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	return uint8(math.Round(clamp(v, 0, 255)))
}
