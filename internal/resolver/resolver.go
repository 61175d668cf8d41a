// Package resolver locates the calendar event a user intent refers to and
// merges partial updates into a complete event write.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teemow/yoteibot/internal/calendar"
	"github.com/teemow/yoteibot/internal/intent"
	"github.com/teemow/yoteibot/internal/memory"
)

// EventLister is the read side of the calendar capability needed for
// candidate lookup.
type EventLister interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]calendar.Event, error)
}

// NotFoundError is returned when update/delete resolution finds no target.
type NotFoundError struct {
	Reason string
}

func (e *NotFoundError) Error() string {
	return e.Reason
}

// IsNotFound reports whether err is a resolution NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// EventDraft is the complete field set for an event write. For updates every
// field already carries the merged final value.
type EventDraft struct {
	Summary   string
	Start     time.Time
	End       time.Time
	Location  string
	Attendees []string

	// Meet indicates the final record should carry a meeting link. The
	// executor decides whether provider-side creation is actually needed.
	Meet bool
}

// Operation is a fully-specified, ready-to-execute calendar write.
type Operation struct {
	Action        intent.Action
	TargetEventID string          // update/delete
	Draft         *EventDraft     // create/update
	Matched       *calendar.Event // the selected candidate, nil for create
}

// Resolver turns validated intents into operations.
type Resolver struct {
	policy MatcherPolicy
	loc    *time.Location
}

// New creates a resolver with the given matcher policy and timezone.
func New(policy MatcherPolicy, loc *time.Location) *Resolver {
	return &Resolver{policy: policy, loc: loc}
}

// Resolve produces the operation for an intent. For update and delete it
// searches the full calendar day of the intent date, selects a target by
// priority (recent touch, exact time, name heuristic) and, for update,
// merges intent fields over the candidate's existing values.
func (r *Resolver) Resolve(ctx context.Context, cal EventLister, in *intent.CalendarIntent, mem *memory.Session) (*Operation, error) {
	switch in.Action {
	case intent.ActionCreate:
		return r.resolveCreate(in)
	case intent.ActionUpdate, intent.ActionDelete:
		return r.resolveExisting(ctx, cal, in, mem)
	default:
		return nil, fmt.Errorf("unknown action %q", in.Action)
	}
}

func (r *Resolver) resolveCreate(in *intent.CalendarIntent) (*Operation, error) {
	start, err := in.Start(r.loc)
	if err != nil {
		return nil, err
	}

	return &Operation{
		Action: intent.ActionCreate,
		Draft: &EventDraft{
			Summary:   in.EventName,
			Start:     start,
			End:       start.Add(in.Duration()),
			Location:  in.Location,
			Attendees: in.Attendees,
			Meet:      in.Conferencing == intent.ConferencingMeet,
		},
	}, nil
}

func (r *Resolver) resolveExisting(ctx context.Context, cal EventLister, in *intent.CalendarIntent, mem *memory.Session) (*Operation, error) {
	day, err := in.Day(r.loc)
	if err != nil {
		return nil, err
	}

	// The full calendar day, not just the requested hour: the user's date
	// reference may not exactly match the event time on re-lookup.
	candidates, err := cal.ListEvents(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("list candidate events: %w", err)
	}
	if len(candidates) == 0 {
		return nil, &NotFoundError{Reason: "no events on this date"}
	}

	target := r.selectTarget(candidates, in, mem)
	if target == nil {
		return nil, &NotFoundError{Reason: "no matching event"}
	}

	op := &Operation{
		Action:        in.Action,
		TargetEventID: target.ID,
		Matched:       target,
	}
	if in.Action == intent.ActionUpdate {
		draft, err := r.merge(in, target)
		if err != nil {
			return nil, err
		}
		op.Draft = draft
	}
	return op, nil
}

// selectTarget applies the target-selection priority, in order, first match
// wins:
//
//  1. the event touched on the previous turn, when its date matches and it
//     is still among the candidates,
//  2. exact start-time match (hour and minute),
//  3. summary match against the intent name or the generic-name policy.
func (r *Resolver) selectTarget(candidates []calendar.Event, in *intent.CalendarIntent, mem *memory.Session) *calendar.Event {
	if mem != nil && mem.LastTouchedEvent != nil && mem.LastTouchedEvent.Date == in.Date {
		for i := range candidates {
			if candidates[i].ID == mem.LastTouchedEvent.ID {
				return &candidates[i]
			}
		}
	}

	if in.Time != "" {
		if want, err := time.Parse(intent.TimeLayout, in.Time); err == nil {
			for i := range candidates {
				start := candidates[i].Start.In(r.loc)
				if start.Hour() == want.Hour() && start.Minute() == want.Minute() {
					return &candidates[i]
				}
			}
		}
	}

	for i := range candidates {
		if r.policy.MatchesSummary(candidates[i].Summary, in.EventName) {
			return &candidates[i]
		}
	}

	return nil
}

// merge builds the final event record: each field from the intent when
// present, otherwise the matched candidate's existing value.
func (r *Resolver) merge(in *intent.CalendarIntent, target *calendar.Event) (*EventDraft, error) {
	day, err := in.Day(r.loc)
	if err != nil {
		return nil, err
	}

	var start time.Time
	if in.Time != "" {
		start, err = in.Start(r.loc)
		if err != nil {
			return nil, err
		}
	} else {
		existing := target.Start.In(r.loc)
		start = day.Add(time.Duration(existing.Hour())*time.Hour + time.Duration(existing.Minute())*time.Minute)
	}

	duration := target.End.Sub(target.Start)
	if in.DurationMinutes > 0 {
		duration = time.Duration(in.DurationMinutes) * time.Minute
	}
	if duration <= 0 {
		duration = intent.DefaultDurationMinutes * time.Minute
	}

	summary := target.Summary
	if in.EventName != "" {
		summary = in.EventName
	}

	location := target.Location
	if in.Location != "" {
		location = in.Location
	}

	attendees := target.Attendees
	if len(in.Attendees) > 0 {
		attendees = in.Attendees
	}

	return &EventDraft{
		Summary:   summary,
		Start:     start,
		End:       start.Add(duration),
		Location:  location,
		Attendees: attendees,
		Meet:      in.Conferencing == intent.ConferencingMeet || target.MeetLink != "",
	}, nil
}
