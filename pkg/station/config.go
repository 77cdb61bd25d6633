package station

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cpsim-project/ocppsim-go/pkg/log"
	"github.com/cpsim-project/ocppsim-go/pkg/physics"
)

// ChargeMode selects how power varies over a session.
type ChargeMode string

const (
	// ChargeModeLinear delivers constant power regardless of state of
	// charge. Useful for predictable test scenarios.
	ChargeModeLinear ChargeMode = "linear"

	// ChargeModeCurve follows the battery charging curve and applies
	// temperature derating.
	ChargeModeCurve ChargeMode = "curve"
)

// Config holds the full station configuration.
type Config struct {
	// StationID is the charging station identity towards the CSMS.
	StationID string

	// Vendor, Model, SerialNumber and FirmwareVersion are reported in
	// the boot notification.
	Vendor          string
	Model           string
	SerialNumber    string
	FirmwareVersion string

	// MaxPowerKW is the rated power per EVSE.
	MaxPowerKW float64

	// VoltageV is the nominal supply voltage, used to derive current
	// readings in meter values.
	VoltageV float64

	// BatteryCapacityKWh is the simulated vehicle battery capacity.
	BatteryCapacityKWh float64

	// ConnectorCount is the number of EVSEs.
	ConnectorCount int

	// ConnectorType is the connector standard of every EVSE.
	ConnectorType ConnectorType

	// ChargeMode selects linear or curve-following power delivery.
	ChargeMode ChargeMode

	// AmbientC is the ambient temperature for the thermal model.
	AmbientC float64

	// HeartbeatInterval is the heartbeat period. The CSMS may override
	// it in the boot notification response.
	HeartbeatInterval time.Duration

	// DefaultSocStart, DefaultSocEnd and DefaultDurationMinutes fill
	// session parameters the operator leaves unset.
	DefaultSocStart        float64
	DefaultSocEnd          float64
	DefaultDurationMinutes int

	// RampUpDelay is the Preparing phase length before charging begins.
	RampUpDelay time.Duration

	// SettleDelay is the Finishing phase length before returning to
	// Available.
	SettleDelay time.Duration

	// BootDelay is the simulated boot time between connecting and the
	// boot notification.
	BootDelay time.Duration

	// ResetDelay is the simulated reboot time for a CSMS reset.
	ResetDelay time.Duration

	// TickInterval is the metering loop period. Each tick advances the
	// simulation by one nominal second regardless of the interval.
	TickInterval time.Duration

	// MeterReportTicks is the number of ticks between meter value
	// reports to the CSMS.
	MeterReportTicks int

	// Logger receives operational log records.
	Logger *slog.Logger

	// ProtocolLogger records wire frames and state changes.
	ProtocolLogger log.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		StationID:              "CP001",
		Vendor:                 "cpsim",
		Model:                  "SIM-150",
		SerialNumber:           "SIM-0001",
		FirmwareVersion:        "1.0.0",
		MaxPowerKW:             150,
		VoltageV:               400,
		BatteryCapacityKWh:     60,
		ConnectorCount:         1,
		ConnectorType:          ConnectorCCS2,
		ChargeMode:             ChargeModeCurve,
		AmbientC:               physics.DefaultAmbientC,
		HeartbeatInterval:      5 * time.Minute,
		DefaultSocStart:        20,
		DefaultSocEnd:          80,
		DefaultDurationMinutes: 30,
		RampUpDelay:            3 * time.Second,
		SettleDelay:            2 * time.Second,
		BootDelay:              2 * time.Second,
		ResetDelay:             3 * time.Second,
		TickInterval:           time.Second,
		MeterReportTicks:       30,
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.StationID == "" {
		return fmt.Errorf("%w: station id is required", ErrInvalidConfig)
	}
	if c.MaxPowerKW <= 0 {
		return fmt.Errorf("%w: max power must be positive", ErrInvalidConfig)
	}
	if c.VoltageV <= 0 {
		return fmt.Errorf("%w: voltage must be positive", ErrInvalidConfig)
	}
	if c.BatteryCapacityKWh <= 0 {
		return fmt.Errorf("%w: battery capacity must be positive", ErrInvalidConfig)
	}
	if c.ConnectorCount < 1 {
		return fmt.Errorf("%w: at least one connector is required", ErrInvalidConfig)
	}
	if c.ChargeMode != ChargeModeLinear && c.ChargeMode != ChargeModeCurve {
		return fmt.Errorf("%w: unknown charge mode %q", ErrInvalidConfig, c.ChargeMode)
	}
	if c.DefaultSocStart < 0 || c.DefaultSocStart >= 100 {
		return fmt.Errorf("%w: default soc start out of range", ErrInvalidConfig)
	}
	if c.DefaultSocEnd <= c.DefaultSocStart || c.DefaultSocEnd > 100 {
		return fmt.Errorf("%w: default soc end out of range", ErrInvalidConfig)
	}
	if c.DefaultDurationMinutes < 1 {
		return fmt.Errorf("%w: default duration must be at least one minute", ErrInvalidConfig)
	}
	if c.MeterReportTicks < 1 {
		return fmt.Errorf("%w: meter report ticks must be positive", ErrInvalidConfig)
	}
	return nil
}

// fileConfig is the YAML schema of a station configuration file.
// Durations are plain integer seconds.
type fileConfig struct {
	StationID          string  `yaml:"stationId"`
	Vendor             string  `yaml:"vendor"`
	Model              string  `yaml:"model"`
	SerialNumber       string  `yaml:"serialNumber"`
	FirmwareVersion    string  `yaml:"firmwareVersion"`
	MaxPowerKW         float64 `yaml:"maxPowerKw"`
	VoltageV           float64 `yaml:"voltageV"`
	BatteryCapacityKWh float64 `yaml:"batteryCapacityKwh"`
	ConnectorCount     int     `yaml:"connectorCount"`
	ConnectorType      string  `yaml:"connectorType"`
	ChargeMode         string  `yaml:"chargeMode"`
	AmbientC           float64 `yaml:"ambientC"`
	HeartbeatSeconds   int     `yaml:"heartbeatSeconds"`
	SocStart           float64 `yaml:"socStart"`
	SocEnd             float64 `yaml:"socEnd"`
	DurationMinutes    int     `yaml:"durationMinutes"`
	RampUpSeconds      int     `yaml:"rampUpSeconds"`
	SettleSeconds      int     `yaml:"settleSeconds"`
	BootSeconds        int     `yaml:"bootSeconds"`
	ResetSeconds       int     `yaml:"resetSeconds"`
	MeterReportTicks   int     `yaml:"meterReportTicks"`
}

// LoadConfig reads a YAML configuration file and merges it over the
// defaults. Fields absent from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return config, fmt.Errorf("parse config: %w", err)
	}

	if fc.StationID != "" {
		config.StationID = fc.StationID
	}
	if fc.Vendor != "" {
		config.Vendor = fc.Vendor
	}
	if fc.Model != "" {
		config.Model = fc.Model
	}
	if fc.SerialNumber != "" {
		config.SerialNumber = fc.SerialNumber
	}
	if fc.FirmwareVersion != "" {
		config.FirmwareVersion = fc.FirmwareVersion
	}
	if fc.MaxPowerKW > 0 {
		config.MaxPowerKW = fc.MaxPowerKW
	}
	if fc.VoltageV > 0 {
		config.VoltageV = fc.VoltageV
	}
	if fc.BatteryCapacityKWh > 0 {
		config.BatteryCapacityKWh = fc.BatteryCapacityKWh
	}
	if fc.ConnectorCount > 0 {
		config.ConnectorCount = fc.ConnectorCount
	}
	if fc.ConnectorType != "" {
		config.ConnectorType = ConnectorType(fc.ConnectorType)
	}
	if fc.ChargeMode != "" {
		config.ChargeMode = ChargeMode(fc.ChargeMode)
	}
	if fc.AmbientC != 0 {
		config.AmbientC = fc.AmbientC
	}
	if fc.HeartbeatSeconds > 0 {
		config.HeartbeatInterval = time.Duration(fc.HeartbeatSeconds) * time.Second
	}
	if fc.SocStart > 0 {
		config.DefaultSocStart = fc.SocStart
	}
	if fc.SocEnd > 0 {
		config.DefaultSocEnd = fc.SocEnd
	}
	if fc.DurationMinutes > 0 {
		config.DefaultDurationMinutes = fc.DurationMinutes
	}
	if fc.RampUpSeconds > 0 {
		config.RampUpDelay = time.Duration(fc.RampUpSeconds) * time.Second
	}
	if fc.SettleSeconds > 0 {
		config.SettleDelay = time.Duration(fc.SettleSeconds) * time.Second
	}
	if fc.BootSeconds > 0 {
		config.BootDelay = time.Duration(fc.BootSeconds) * time.Second
	}
	if fc.ResetSeconds > 0 {
		config.ResetDelay = time.Duration(fc.ResetSeconds) * time.Second
	}
	if fc.MeterReportTicks > 0 {
		config.MeterReportTicks = fc.MeterReportTicks
	}

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// ConfigUpdate describes a partial runtime configuration change. Nil
// fields are left unchanged.
type ConfigUpdate struct {
	MaxPowerKW         *float64
	VoltageV           *float64
	BatteryCapacityKWh *float64
	ConnectorCount     *int
	ConnectorType      *ConnectorType
	ChargeMode         *ChargeMode
	DefaultSocStart    *float64
	DefaultSocEnd      *float64
	DefaultDuration    *int
	MeterReportTicks   *int
}

// electrical reports whether the update touches the electrical or
// connector configuration, which cannot change while connected.
func (u *ConfigUpdate) electrical() bool {
	return u.MaxPowerKW != nil || u.VoltageV != nil ||
		u.ConnectorCount != nil || u.ConnectorType != nil
}
