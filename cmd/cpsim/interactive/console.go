// Package interactive provides the interactive command-line interface
// for the cpsim charging station emulator.
package interactive

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/cpsim-project/ocppsim-go/pkg/csms"
	"github.com/cpsim-project/ocppsim-go/pkg/ocpp"
	"github.com/cpsim-project/ocppsim-go/pkg/station"
)

// Console handles interactive mode for cpsim.
type Console struct {
	station   *station.Station
	simulator *csms.Simulator
	rl        *readline.Instance

	// showTicks toggles per-tick telemetry output.
	showTicks bool
}

// New creates the interactive console. The simulator is nil when the
// station talks to a real CSMS; simulator-only commands then report as
// unavailable.
func New(st *station.Station, simulator *csms.Simulator) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "cpsim> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	c := &Console{
		station:   st,
		simulator: simulator,
		rl:        rl,
	}

	st.OnEvent(c.handleEvent)

	return c, nil
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "status", "st":
			c.cmdStatus()

		case "start":
			c.cmdStart(args)

		case "stop":
			c.cmdStop(args)

		case "fault":
			c.cmdFault(args)

		case "clear":
			c.cmdClear(args)

		case "avail":
			c.cmdAvail(args)

		case "connect":
			c.cmdConnect(ctx)

		case "disconnect":
			c.cmdDisconnect()

		case "set":
			c.cmdSet(args)

		case "ticks":
			c.showTicks = !c.showTicks
			fmt.Fprintf(c.rl.Stdout(), "Tick output: %v\n", c.showTicks)

		case "send":
			c.cmdSend(args)

		case "remote":
			c.cmdRemote(args)

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
Charging Station Commands:
  Sessions:
    start [evse] [socStart] [socEnd] [minutes]  - Start a charging session
    stop [evse]                                 - Stop the session
    status                                      - Show station and EVSE status
    ticks                                       - Toggle per-tick telemetry output

  Faults:
    fault <evse> <code> [info]  - Inject a fault (e.g. GroundFailure)
    clear <evse>                - Clear the fault

  Availability:
    avail <evse> on|off  - Make an EVSE operative or inoperative
    connect              - Connect to the CSMS
    disconnect           - Disconnect from the CSMS

  Configuration:
    set mode curve|linear     - Select the charge mode
    set power <kw>            - Set rated power (disconnected only)
    set battery <kwh>         - Set battery capacity

  Protocol:
    send <action> [json]  - Send a manual CALL to the CSMS

  CSMS Simulation (built-in CSMS only):
    remote start <evse> [token]  - RequestStartTransaction
    remote stop <txId>           - RequestStopTransaction
    remote reset [onidle]        - Reset
    remote avail <evse> on|off   - ChangeAvailability
    remote trigger <message>     - TriggerMessage

  General:
    help  - Show this help
    quit  - Exit`)
}

func (c *Console) cmdStatus() {
	out := c.rl.Stdout()

	connected := "disconnected"
	if c.station.Connected() {
		connected = "connected"
	}
	config := c.station.Config()

	fmt.Fprintln(out, "\nStation Status")
	fmt.Fprintln(out, "-------------------------------------------")
	fmt.Fprintf(out, "  Station ID:  %s\n", config.StationID)
	fmt.Fprintf(out, "  CSMS:        %s\n", connected)
	fmt.Fprintf(out, "  Charge Mode: %s\n", config.ChargeMode)
	fmt.Fprintf(out, "  Rated Power: %.0f kW\n", config.MaxPowerKW)
	fmt.Fprintf(out, "  Battery:     %.0f kWh\n", config.BatteryCapacityKWh)

	for _, snap := range c.station.Snapshots() {
		fmt.Fprintf(out, "\n  EVSE %d (%s): %s\n", snap.ID, snap.Connector, snap.Status)
		fmt.Fprintf(out, "    Temperature: %.1f C, Power: %.1f kW\n", snap.TemperatureC, snap.PowerKW)
		if snap.Session != nil {
			s := snap.Session
			fmt.Fprintf(out, "    Session %s: SoC %.1f%% (%.0f -> %.0f), %.2f kWh\n",
				shortID(s.TransactionID), s.Soc, s.SocStart, s.SocEnd, s.EnergyKWh)
		}
		if snap.Fault != nil {
			fmt.Fprintf(out, "    Fault: %s (%s)\n", snap.Fault.Code, snap.Fault.Info)
		}
	}
	fmt.Fprintln(out)
}

func (c *Console) cmdStart(args []string) {
	evseID := 1
	var params station.SessionParams
	var err error

	if len(args) > 0 {
		if evseID, err = strconv.Atoi(args[0]); err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid EVSE id: %v\n", err)
			return
		}
	}
	if len(args) > 1 {
		if params.SocStart, err = strconv.ParseFloat(args[1], 64); err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid SoC start: %v\n", err)
			return
		}
	}
	if len(args) > 2 {
		if params.SocEnd, err = strconv.ParseFloat(args[2], 64); err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid SoC end: %v\n", err)
			return
		}
	}
	if len(args) > 3 {
		minutes, err := strconv.Atoi(args[3])
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid duration: %v\n", err)
			return
		}
		params.DurationSeconds = minutes * 60
	}

	if err := c.station.StartSession(evseID, params); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Start failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Session starting on EVSE %d\n", evseID)
}

func (c *Console) cmdStop(args []string) {
	evseID := 1
	if len(args) > 0 {
		var err error
		if evseID, err = strconv.Atoi(args[0]); err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid EVSE id: %v\n", err)
			return
		}
	}

	if err := c.station.StopSession(evseID); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Stop failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Session stopped on EVSE %d\n", evseID)
}

func (c *Console) cmdFault(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: fault <evse> <code> [info]")
		fmt.Fprintln(c.rl.Stdout(), "Codes: GroundFailure, HighTemperature, OverCurrentFailure,")
		fmt.Fprintln(c.rl.Stdout(), "       PowerMeterFailure, EVCommunicationError, ConnectorLockFailure, InternalError")
		return
	}

	evseID, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid EVSE id: %v\n", err)
		return
	}
	info := strings.Join(args[2:], " ")

	if err := c.station.InjectFault(evseID, station.FaultCode(args[1]), info); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Fault injection failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Fault %s raised on EVSE %d\n", args[1], evseID)
}

func (c *Console) cmdClear(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: clear <evse>")
		return
	}
	evseID, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid EVSE id: %v\n", err)
		return
	}

	if err := c.station.ClearFault(evseID); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Clear failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Fault cleared on EVSE %d\n", evseID)
}

func (c *Console) cmdAvail(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: avail <evse> on|off")
		return
	}
	evseID, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid EVSE id: %v\n", err)
		return
	}

	if err := c.station.SetAvailability(evseID, args[1] == "on"); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Availability change failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "OK")
}

func (c *Console) cmdConnect(ctx context.Context) {
	if err := c.station.Connect(ctx); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Connect failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Connected")
}

func (c *Console) cmdDisconnect() {
	if err := c.station.Disconnect(); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Disconnect failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Disconnected")
}

func (c *Console) cmdSet(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: set mode|power|battery <value>")
		return
	}

	var update station.ConfigUpdate
	switch args[0] {
	case "mode":
		mode := station.ChargeMode(args[1])
		update.ChargeMode = &mode
	case "power":
		kw, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid power: %v\n", err)
			return
		}
		update.MaxPowerKW = &kw
	case "battery":
		kwh, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid capacity: %v\n", err)
			return
		}
		update.BatteryCapacityKWh = &kwh
	default:
		fmt.Fprintf(c.rl.Stdout(), "Unknown setting: %s\n", args[0])
		return
	}

	if err := c.station.UpdateConfig(update); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Update failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "OK")
}

// cmdSend sends a manually composed CALL, with an optional raw JSON
// payload, through the station's connection.
func (c *Console) cmdSend(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: send <action> [json]")
		return
	}

	var payload any
	if len(args) > 1 {
		raw := strings.Join(args[1:], " ")
		if !json.Valid([]byte(raw)) {
			fmt.Fprintln(c.rl.Stdout(), "Payload is not valid JSON")
			return
		}
		payload = json.RawMessage(raw)
	}

	id, err := c.station.SendCall(ocpp.Action(args[0]), payload)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Send failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "%s sent (id %s)\n", args[0], shortID(id))
}

// cmdRemote injects a CSMS-initiated command through the built-in CSMS.
func (c *Console) cmdRemote(args []string) {
	if c.simulator == nil {
		fmt.Fprintln(c.rl.Stdout(), "Remote commands require the built-in CSMS")
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: remote start|stop|reset|avail|trigger ...")
		return
	}

	var (
		action  ocpp.Action
		payload any
	)

	switch args[0] {
	case "start":
		if len(args) < 2 {
			fmt.Fprintln(c.rl.Stdout(), "Usage: remote start <evse> [token]")
			return
		}
		evseID, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid EVSE id: %v\n", err)
			return
		}
		token := "REMOTE"
		if len(args) > 2 {
			token = args[2]
		}
		action = ocpp.ActionRequestStartTransaction
		payload = ocpp.RequestStartTransactionRequest{
			EvseID:        evseID,
			RemoteStartID: int(time.Now().Unix() % 100000),
			IDToken:       ocpp.IDToken{IDToken: token, Type: "Central"},
		}

	case "stop":
		if len(args) < 2 {
			fmt.Fprintln(c.rl.Stdout(), "Usage: remote stop <txId>")
			return
		}
		action = ocpp.ActionRequestStopTransaction
		payload = ocpp.RequestStopTransactionRequest{TransactionID: args[1]}

	case "reset":
		resetType := ocpp.ResetImmediate
		if len(args) > 1 && strings.EqualFold(args[1], "onidle") {
			resetType = ocpp.ResetOnIdle
		}
		action = ocpp.ActionReset
		payload = ocpp.ResetRequest{Type: resetType}

	case "avail":
		if len(args) < 3 {
			fmt.Fprintln(c.rl.Stdout(), "Usage: remote avail <evse> on|off")
			return
		}
		evseID, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid EVSE id: %v\n", err)
			return
		}
		status := ocpp.OperationalStatusInoperative
		if args[2] == "on" {
			status = ocpp.OperationalStatusOperative
		}
		action = ocpp.ActionChangeAvailability
		payload = ocpp.ChangeAvailabilityRequest{
			OperationalStatus: status,
			Evse:              &ocpp.EVSEInfo{ID: evseID},
		}

	case "trigger":
		if len(args) < 2 {
			fmt.Fprintln(c.rl.Stdout(), "Usage: remote trigger BootNotification|Heartbeat|StatusNotification|MeterValues")
			return
		}
		action = ocpp.ActionTriggerMessage
		payload = ocpp.TriggerMessageRequest{RequestedMessage: ocpp.MessageTrigger(args[1])}

	default:
		fmt.Fprintf(c.rl.Stdout(), "Unknown remote command: %s\n", args[0])
		return
	}

	id, err := c.simulator.IssueCall(action, payload)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Issue failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "%s issued (id %s)\n", action, shortID(id))
}

// handleEvent displays station events above the prompt.
func (c *Console) handleEvent(event station.Event) {
	out := c.rl.Stdout()
	stamp := event.Timestamp.Format("15:04:05")

	switch event.Type {
	case station.EventConnected:
		fmt.Fprintf(out, "\n[%s] Connected to CSMS\n", stamp)

	case station.EventDisconnected:
		if event.Err != nil {
			fmt.Fprintf(out, "\n[%s] Connection lost: %v\n", stamp, event.Err)
		} else {
			fmt.Fprintf(out, "\n[%s] Disconnected\n", stamp)
		}

	case station.EventBootAccepted:
		fmt.Fprintf(out, "\n[%s] Boot accepted by CSMS\n", stamp)

	case station.EventStatusChanged:
		fmt.Fprintf(out, "\n[%s] EVSE %d: %s -> %s\n",
			stamp, event.EvseID, event.OldStatus, event.NewStatus)

	case station.EventSessionStarted:
		fmt.Fprintf(out, "\n[%s] EVSE %d: session %s started (SoC %.0f%% -> %.0f%%)\n",
			stamp, event.EvseID, shortID(event.Session.TransactionID),
			event.Session.SocStart, event.Session.SocEnd)

	case station.EventSessionStopped:
		fmt.Fprintf(out, "\n[%s] EVSE %d: session %s ended (%s, %.2f kWh, SoC %.1f%%)\n",
			stamp, event.EvseID, shortID(event.Session.TransactionID),
			event.StopReason, event.Session.EnergyKWh, event.Session.Soc)

	case station.EventMeterTick:
		if !c.showTicks {
			return
		}
		fmt.Fprintf(out, "\n[%s] EVSE %d: SoC %.1f%%, %.1f kW, %.2f kWh, %.1f C\n",
			stamp, event.EvseID, event.Session.Soc, event.PowerKW,
			event.Session.EnergyKWh, event.TemperatureC)

	case station.EventFaultRaised:
		fmt.Fprintf(out, "\n[%s] EVSE %d: FAULT %s (%s)\n",
			stamp, event.EvseID, event.Fault.Code, event.Fault.Info)

	case station.EventFaultCleared:
		fmt.Fprintf(out, "\n[%s] EVSE %d: fault %s cleared\n",
			stamp, event.EvseID, event.Fault.Code)

	case station.EventRemoteCommand:
		fmt.Fprintf(out, "\n[%s] CSMS command %s: %s\n",
			stamp, event.Command, event.CommandStatus)

	default:
		return
	}
	c.rl.Refresh()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
