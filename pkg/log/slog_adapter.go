package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger. Useful for
// development when you want protocol activity on the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("station_id", event.StationID),
		slog.String("direction", event.Direction.String()),
		slog.String("category", event.Category.String()),
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Uint64("msg_type", uint64(event.Frame.MessageType)),
			slog.String("correlation_id", event.Frame.CorrelationID),
			slog.Int("size", event.Frame.Size),
		)
		if event.Frame.Action != "" {
			attrs = append(attrs, slog.String("action", event.Frame.Action))
		}
		if event.Frame.ErrorCode != "" {
			attrs = append(attrs, slog.String("error_code", event.Frame.ErrorCode))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.Int("evse_id", event.StateChange.EvseID),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
