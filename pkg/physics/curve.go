package physics

// DefaultAmbientC is the ambient temperature assumed by the thermal model.
const DefaultAmbientC = 25.0

// MaxTempC is the hard ceiling of the thermal model.
const MaxTempC = 85.0

// Thermal model coefficients, per one-second tick.
const (
	heatPerLoad   = 0.08  // degrees gained per tick at full load
	coolPerDegree = 0.012 // fraction of the gap above ambient shed per tick
)

// PowerCurveMultiplier models a DC fast-charge curve as a multiplier in
// [0,1] over state of charge:
//
//	  0-20%: linear ramp 0.75 -> 1.0
//	 20-80%: plateau at 1.0
//	 80-90%: linear decay 1.0 -> 0.45
//	 90-95%: linear decay 0.45 -> 0.20
//	95-100%: linear decay 0.20 -> 0.05
//
// The curve is continuous at every breakpoint.
func PowerCurveMultiplier(soc float64) float64 {
	soc = clamp(soc, 0, 100)
	switch {
	case soc < 20:
		return lerp(soc, 0, 20, 0.75, 1.0)
	case soc <= 80:
		return 1.0
	case soc <= 90:
		return lerp(soc, 80, 90, 1.0, 0.45)
	case soc <= 95:
		return lerp(soc, 90, 95, 0.45, 0.20)
	default:
		return lerp(soc, 95, 100, 0.20, 0.05)
	}
}

// TemperatureDerating returns the thermal power multiplier in [0.2,1]:
// full power below 60 degrees, decaying to 0.6 at 75 and 0.2 at 85.
func TemperatureDerating(tempC float64) float64 {
	switch {
	case tempC < 60:
		return 1.0
	case tempC <= 75:
		return lerp(tempC, 60, 75, 1.0, 0.6)
	case tempC <= 85:
		return lerp(tempC, 75, 85, 0.6, 0.2)
	default:
		return 0.2
	}
}

// NextTemperature advances the connector temperature by one tick: it
// heats proportionally to the load fraction and cools proportionally to
// the gap above ambient. The result is clamped to [ambientC, MaxTempC].
func NextTemperature(current, powerKW, maxPowerKW, ambientC float64) float64 {
	load := 0.0
	if maxPowerKW > 0 {
		load = clamp(powerKW/maxPowerKW, 0, 1)
	}
	next := current + heatPerLoad*load - coolPerDegree*(current-ambientC)
	return clamp(next, ambientC, MaxTempC)
}

// lerp linearly interpolates y over [x0,x1] for x.
func lerp(x, x0, x1, y0, y1 float64) float64 {
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
