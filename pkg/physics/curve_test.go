package physics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPowerCurveMultiplier(t *testing.T) {
	tests := []struct {
		name string
		soc  float64
		want float64
	}{
		{"empty battery", 0, 0.75},
		{"mid ramp-up", 10, 0.875},
		{"plateau start", 20, 1.0},
		{"plateau middle", 50, 1.0},
		{"plateau end", 80, 1.0},
		{"taper start", 85, 0.725},
		{"taper knee", 90, 0.45},
		{"deep taper", 95, 0.20},
		{"nearly full", 97.5, 0.125},
		{"full", 100, 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PowerCurveMultiplier(tt.soc), 1e-9)
		})
	}
}

func TestPowerCurveMultiplierClampsOutOfRange(t *testing.T) {
	assert.InDelta(t, 0.75, PowerCurveMultiplier(-5), 1e-9)
	assert.InDelta(t, 0.05, PowerCurveMultiplier(120), 1e-9)
}

func TestTemperatureDerating(t *testing.T) {
	tests := []struct {
		name  string
		tempC float64
		want  float64
	}{
		{"ambient", 25, 1.0},
		{"warm", 59.9, 1.0},
		{"derating onset", 60, 1.0},
		{"first stage end", 75, 0.6},
		{"second stage middle", 80, 0.4},
		{"maximum", 85, 0.2},
		{"beyond maximum", 90, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, TemperatureDerating(tt.tempC), 1e-9)
		})
	}
}

func TestNextTemperatureHeatsUnderLoad(t *testing.T) {
	next := NextTemperature(25, 150, 150, DefaultAmbientC)
	assert.Greater(t, next, 25.0)
	assert.InDelta(t, 25+0.08, next, 1e-9)
}

func TestNextTemperatureCoolsWhenIdle(t *testing.T) {
	next := NextTemperature(50, 0, 150, DefaultAmbientC)
	assert.Less(t, next, 50.0)
}

func TestNextTemperatureNeverDropsBelowAmbient(t *testing.T) {
	temp := DefaultAmbientC
	for i := 0; i < 1000; i++ {
		temp = NextTemperature(temp, 0, 150, DefaultAmbientC)
	}
	assert.GreaterOrEqual(t, temp, DefaultAmbientC)
}

func TestNextTemperatureClampedAtMaximum(t *testing.T) {
	temp := 84.99
	for i := 0; i < 1000; i++ {
		temp = NextTemperature(temp, 150, 150, DefaultAmbientC)
		assert.LessOrEqual(t, temp, MaxTempC)
	}
}

func TestTemperatureReachesEquilibrium(t *testing.T) {
	// At full load heating (0.08/tick) balances cooling at
	// 25 + 0.08/0.012 degrees, well below the hard clamp.
	temp := DefaultAmbientC
	for i := 0; i < 100000; i++ {
		temp = NextTemperature(temp, 150, 150, DefaultAmbientC)
	}
	assert.InDelta(t, DefaultAmbientC+0.08/0.012, temp, 0.5)
	assert.Less(t, temp, MaxTempC)
}
