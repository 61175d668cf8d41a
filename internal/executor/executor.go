// Package executor translates resolved operations into calendar capability
// calls.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/teemow/yoteibot/internal/calendar"
	"github.com/teemow/yoteibot/internal/intent"
	"github.com/teemow/yoteibot/internal/logging"
	"github.com/teemow/yoteibot/internal/resolver"
)

// Result is the outcome of executing a calendar operation. Capability
// failures become Success=false with a human-readable error; they never
// propagate past this boundary, because all downstream messaging depends on
// this shape.
type Result struct {
	Success bool
	EventID string
	Error   string
}

// Executor runs resolved operations against a calendar service.
type Executor struct {
	timeZone string
	logger   *slog.Logger
}

// New creates an executor. Events are written with the given IANA timezone.
func New(timeZone string, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{timeZone: timeZone, logger: logger}
}

// Execute performs the operation and reports the outcome.
func (e *Executor) Execute(ctx context.Context, cal calendar.Service, op *resolver.Operation) Result {
	start := time.Now()

	result := e.execute(ctx, cal, op)

	status := logging.StatusSuccess
	if !result.Success {
		status = logging.StatusError
	}
	e.logger.Info("calendar operation executed",
		logging.Action(string(op.Action)),
		logging.Status(status),
		slog.String(logging.KeyEventID, result.EventID),
		slog.Duration("duration", time.Since(start)),
	)

	return result
}

func (e *Executor) execute(ctx context.Context, cal calendar.Service, op *resolver.Operation) Result {
	switch op.Action {
	case intent.ActionCreate:
		created, err := cal.InsertEvent(ctx, e.input(op.Draft, false))
		if err != nil {
			return failure(err)
		}
		return Result{Success: true, EventID: created.ID}

	case intent.ActionUpdate:
		// A Meet link is only requested when the event does not already
		// carry one, to avoid duplicate links on update.
		hasLink := op.Matched != nil && op.Matched.MeetLink != ""
		updated, err := cal.UpdateEvent(ctx, op.TargetEventID, e.input(op.Draft, hasLink))
		if err != nil {
			return failure(err)
		}
		return Result{Success: true, EventID: updated.ID}

	case intent.ActionDelete:
		if err := cal.DeleteEvent(ctx, op.TargetEventID); err != nil {
			return failure(err)
		}
		return Result{Success: true, EventID: op.TargetEventID}

	default:
		return failure(fmt.Errorf("unknown action %q", op.Action))
	}
}

// input maps a draft onto the capability input. Attendee notifications are
// requested only when attendees are present on the final record.
func (e *Executor) input(draft *resolver.EventDraft, hasExistingLink bool) calendar.EventInput {
	return calendar.EventInput{
		Summary:         draft.Summary,
		Start:           draft.Start,
		End:             draft.End,
		TimeZone:        e.timeZone,
		Location:        draft.Location,
		Attendees:       draft.Attendees,
		AddMeetLink:     draft.Meet && !hasExistingLink,
		NotifyAttendees: len(draft.Attendees) > 0,
	}
}

func failure(err error) Result {
	return Result{Success: false, Error: err.Error()}
}
