// Command cpsim-log views and analyzes cpsim protocol log files.
//
// Log files are created by running cpsim with the -log-file flag.
//
// Usage:
//
//	cpsim-log <command> [flags] <file.clog>
//
// Commands:
//
//	view   View log file in human-readable format
//	stats  Show statistics about the log file
//
// Examples:
//
//	# View all events
//	cpsim-log view station.clog
//
//	# View only outgoing frames
//	cpsim-log view -direction out station.clog
//
//	# View only BootNotification traffic
//	cpsim-log view -action BootNotification station.clog
//
//	# Show statistics
//	cpsim-log stats station.clog
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/cpsim-project/ocppsim-go/pkg/log"
)

const usage = `cpsim-log - Protocol Log Analyzer

Usage:
  cpsim-log <command> [flags] <file.clog>

Commands:
  view   View log file in human-readable format
  stats  Show statistics about the log file

Use "cpsim-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	direction := fs.String("direction", "", "Filter by direction (in, out, internal)")
	category := fs.String("category", "", "Filter by category (message, state, error)")
	action := fs.String("action", "", "Filter frame events by OCPP action")
	station := fs.String("station", "", "Filter by station id")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		os.Exit(1)
	}

	filter := log.Filter{StationID: *station, Action: *action}

	if *direction != "" {
		d, err := parseDirection(*direction)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.Direction = &d
	}
	if *category != "" {
		c, err := parseCategory(*category)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.Category = &c
	}

	if err := view(fs.Arg(0), filter, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func view(path string, filter log.Filter, out io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		printEvent(out, event)
	}
}

func printEvent(out io.Writer, event log.Event) {
	stamp := event.Timestamp.Format("15:04:05.000")

	switch event.Category {
	case log.CategoryMessage:
		f := event.Frame
		detail := f.Action
		if f.ErrorCode != "" {
			detail = fmt.Sprintf("%s [%s]", detail, f.ErrorCode)
		}
		fmt.Fprintf(out, "%s %-3s %-10s %-24s %s (%d bytes)\n",
			stamp, event.Direction, messageTypeName(f.MessageType),
			detail, shortID(f.CorrelationID), f.Size)

	case log.CategoryState:
		sc := event.StateChange
		target := "station"
		if sc.EvseID != 0 {
			target = fmt.Sprintf("evse %d", sc.EvseID)
		}
		fmt.Fprintf(out, "%s     STATE      %s: %s -> %s (%s)\n",
			stamp, target, sc.OldState, sc.NewState, sc.Reason)

	case log.CategoryError:
		fmt.Fprintf(out, "%s %-3s ERROR      %s (%s)\n",
			stamp, event.Direction, event.Error.Message, event.Error.Context)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		os.Exit(1)
	}

	if err := stats(fs.Arg(0), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func stats(path string, out io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	var (
		total, frames, states, errors int
		bytesIn, bytesOut             int
		byAction                      = map[string]int{}
	)

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		total++

		switch event.Category {
		case log.CategoryMessage:
			frames++
			if event.Frame.Action != "" {
				byAction[event.Frame.Action]++
			}
			switch event.Direction {
			case log.DirectionIn:
				bytesIn += event.Frame.Size
			case log.DirectionOut:
				bytesOut += event.Frame.Size
			}
		case log.CategoryState:
			states++
		case log.CategoryError:
			errors++
		}
	}

	fmt.Fprintf(out, "Events:        %d\n", total)
	fmt.Fprintf(out, "  Frames:      %d (%d bytes in, %d bytes out)\n", frames, bytesIn, bytesOut)
	fmt.Fprintf(out, "  State:       %d\n", states)
	fmt.Fprintf(out, "  Errors:      %d\n", errors)

	if len(byAction) > 0 {
		actions := make([]string, 0, len(byAction))
		for a := range byAction {
			actions = append(actions, a)
		}
		sort.Strings(actions)
		fmt.Fprintln(out, "By action:")
		for _, a := range actions {
			fmt.Fprintf(out, "  %-24s %d\n", a, byAction[a])
		}
	}
	return nil
}

func parseDirection(s string) (log.Direction, error) {
	switch s {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	case "internal":
		return log.DirectionInternal, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

func parseCategory(s string) (log.Category, error) {
	switch s {
	case "message":
		return log.CategoryMessage, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("unknown category %q", s)
	}
}

func messageTypeName(t uint8) string {
	switch t {
	case 2:
		return "CALL"
	case 3:
		return "CALLRESULT"
	case 4:
		return "CALLERROR"
	default:
		return "UNKNOWN"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
