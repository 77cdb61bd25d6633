// Command cpsim is an interactive OCPP 2.0.1 charging station emulator.
//
// The emulator runs one simulated charging station with one or more
// EVSEs. It connects either to a real CSMS over WebSocket or to a
// built-in loopback CSMS that answers every call, and exposes an
// interactive console for starting sessions, injecting faults, and
// issuing CSMS-side commands.
//
// Usage:
//
//	cpsim [flags]
//
// Flags:
//
//	-config string     Configuration file path (YAML)
//	-endpoint string   CSMS WebSocket URL; empty uses the built-in CSMS
//	-station string    Station identity (default "CP001")
//	-connectors int    Number of EVSEs (default 1)
//	-mode string       Charge mode: curve, linear (default "curve")
//	-log-level string  Log level: debug, info, warn, error (default "info")
//	-log-file string   Protocol log file path (CBOR, empty disables)
//
// Examples:
//
//	# Run against the built-in CSMS
//	cpsim -station CP042 -connectors 2
//
//	# Connect to a real CSMS
//	cpsim -endpoint ws://csms.example:9000/ocpp -config station.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cpsim-project/ocppsim-go/cmd/cpsim/interactive"
	"github.com/cpsim-project/ocppsim-go/pkg/csms"
	"github.com/cpsim-project/ocppsim-go/pkg/log"
	"github.com/cpsim-project/ocppsim-go/pkg/station"
)

var flags struct {
	configFile string
	endpoint   string
	stationID  string
	connectors int
	mode       string
	logLevel   string
	logFile    string
}

func init() {
	flag.StringVar(&flags.configFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&flags.endpoint, "endpoint", "", "CSMS WebSocket URL; empty uses the built-in CSMS")
	flag.StringVar(&flags.stationID, "station", "", "Station identity")
	flag.IntVar(&flags.connectors, "connectors", 0, "Number of EVSEs")
	flag.StringVar(&flags.mode, "mode", "", "Charge mode: curve, linear")
	flag.StringVar(&flags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.logFile, "log-file", "", "Protocol log file path (CBOR, empty disables)")
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cpsim: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	config, err := loadConfig()
	if err != nil {
		return err
	}

	config.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(flags.logLevel),
	}))

	var fileLogger *log.FileLogger
	if flags.logFile != "" {
		fileLogger, err = log.NewFileLogger(flags.logFile)
		if err != nil {
			return fmt.Errorf("open protocol log: %w", err)
		}
		defer fileLogger.Close()
		config.ProtocolLogger = fileLogger
	}

	var (
		transport csms.Transport
		simulator *csms.Simulator
	)
	if flags.endpoint != "" {
		transport = csms.NewWebSocketClient(csms.WebSocketConfig{
			Endpoint:  flags.endpoint,
			StationID: config.StationID,
		})
	} else {
		simulator = csms.NewSimulator(csms.DefaultSimulatorConfig())
		transport = simulator
	}

	st, err := station.New(config, transport)
	if err != nil {
		return err
	}

	console, err := interactive.New(st, simulator)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := st.Connect(ctx); err != nil {
		config.Logger.Warn("initial connect failed", "err", err)
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	console.Run(ctx, cancel)

	if st.Connected() {
		if err := st.Disconnect(); err != nil {
			config.Logger.Warn("disconnect", "err", err)
		}
	}
	return nil
}

// loadConfig merges the config file and the command line, flags winning.
func loadConfig() (station.Config, error) {
	config := station.DefaultConfig()
	if flags.configFile != "" {
		var err error
		config, err = station.LoadConfig(flags.configFile)
		if err != nil {
			return config, err
		}
	}

	if flags.stationID != "" {
		config.StationID = flags.stationID
	}
	if flags.connectors > 0 {
		config.ConnectorCount = flags.connectors
	}
	if flags.mode != "" {
		config.ChargeMode = station.ChargeMode(flags.mode)
	}

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
