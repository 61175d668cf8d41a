package calendar

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// EventInput represents the input for creating or updating a calendar event.
// Resolution has already merged partial updates, so every field carries the
// final desired value.
type EventInput struct {
	Summary   string
	Start     time.Time
	End       time.Time
	TimeZone  string
	Location  string
	Attendees []string

	// AddMeetLink requests provider-side creation of a Google Meet link.
	AddMeetLink bool

	// NotifyAttendees sends invitation updates to attendees.
	NotifyAttendees bool
}

// Event represents a calendar entry as returned by the provider.
type Event struct {
	ID        string
	Summary   string
	Location  string
	Start     time.Time
	End       time.Time
	Attendees []string
	MeetLink  string
}

// toEvent converts a Google Calendar event to an Event.
func toEvent(event *calendar.Event) Event {
	if event == nil {
		return Event{}
	}

	e := Event{
		ID:       event.Id,
		Summary:  event.Summary,
		Location: event.Location,
	}

	// Parse start time
	if event.Start != nil {
		if event.Start.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, event.Start.DateTime); err == nil {
				e.Start = t
			}
		} else if event.Start.Date != "" {
			if t, err := time.Parse("2006-01-02", event.Start.Date); err == nil {
				e.Start = t
			}
		}
	}

	// Parse end time
	if event.End != nil {
		if event.End.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, event.End.DateTime); err == nil {
				e.End = t
			}
		} else if event.End.Date != "" {
			if t, err := time.Parse("2006-01-02", event.End.Date); err == nil {
				e.End = t
			}
		}
	}

	for _, att := range event.Attendees {
		e.Attendees = append(e.Attendees, att.Email)
	}

	if event.ConferenceData != nil {
		for _, ep := range event.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				e.MeetLink = ep.Uri
				break
			}
		}
	}

	return e
}
