// Package calendar wraps the Google Calendar API as the calendar capability
// consumed by the resolver and executor.
package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/yoteibot/internal/google"
)

// Each user maps to exactly one Google identity; all operations target the
// primary calendar of the authorized account.
const calendarID = "primary"

// Service is the calendar capability: time-windowed reads and event writes.
// Implemented by Client; tests substitute fakes.
type Service interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]Event, error)
	InsertEvent(ctx context.Context, input EventInput) (*Event, error)
	UpdateEvent(ctx context.Context, eventID string, input EventInput) (*Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// Client wraps the Google Calendar service for a single user.
type Client struct {
	svc    *calendar.Service
	userID string
}

// NewClientForUser creates a Calendar client authorized as the given user.
// The OAuth token is retrieved from the provided token provider.
func NewClientForUser(ctx context.Context, provider google.TokenProvider, userID string) (*Client, error) {
	if provider == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}

	ts, err := provider.TokenSourceForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get Google OAuth token: %w", err)
	}

	client := oauth2.NewClient(ctx, ts)

	// Force HTTP/1.1 by disabling HTTP/2
	transport := client.Transport.(*oauth2.Transport)
	transport.Base = &http.Transport{
		ForceAttemptHTTP2: false,
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{svc: svc, userID: userID}, nil
}

// UserID returns the user this client is authorized as.
func (c *Client) UserID() string {
	return c.userID
}

// ListEvents lists events on the primary calendar within a time range,
// ordered by start time with recurring events expanded.
func (c *Client) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]Event, error) {
	result, err := c.svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	var events []Event
	for _, item := range result.Items {
		events = append(events, toEvent(item))
	}
	return events, nil
}

// InsertEvent creates a new event on the primary calendar.
func (c *Client) InsertEvent(ctx context.Context, input EventInput) (*Event, error) {
	event := buildEvent(input)

	call := c.svc.Events.Insert(calendarID, event).Context(ctx)
	if input.AddMeetLink {
		event.ConferenceData = newMeetRequest()
		call = call.ConferenceDataVersion(1)
	}
	call = call.SendUpdates(sendUpdates(input.NotifyAttendees))

	created, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	e := toEvent(created)
	return &e, nil
}

// UpdateEvent rewrites an existing event on the primary calendar. The input
// carries the complete merged field set; a Meet link is only requested when
// the event does not already have conference data.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, input EventInput) (*Event, error) {
	existing, err := c.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get existing event: %w", err)
	}

	merged := buildEvent(input)
	existing.Summary = merged.Summary
	existing.Start = merged.Start
	existing.End = merged.End
	existing.Location = merged.Location
	if len(merged.Attendees) > 0 {
		existing.Attendees = merged.Attendees
	}

	call := c.svc.Events.Update(calendarID, eventID, existing).Context(ctx)
	if input.AddMeetLink && existing.ConferenceData == nil {
		existing.ConferenceData = newMeetRequest()
		call = call.ConferenceDataVersion(1)
	}
	call = call.SendUpdates(sendUpdates(input.NotifyAttendees))

	updated, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	e := toEvent(updated)
	return &e, nil
}

// DeleteEvent removes an event from the primary calendar.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	if err := c.svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// buildEvent maps an EventInput onto the wire type.
func buildEvent(input EventInput) *calendar.Event {
	tz := input.TimeZone
	if tz == "" {
		tz = "UTC"
	}

	event := &calendar.Event{
		Summary:  input.Summary,
		Location: input.Location,
		Start: &calendar.EventDateTime{
			DateTime: input.Start.Format(time.RFC3339),
			TimeZone: tz,
		},
		End: &calendar.EventDateTime{
			DateTime: input.End.Format(time.RFC3339),
			TimeZone: tz,
		},
	}

	for _, email := range input.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}

	return event
}

// newMeetRequest builds the conference creation request for a Meet link.
func newMeetRequest() *calendar.ConferenceData {
	return &calendar.ConferenceData{
		CreateRequest: &calendar.CreateConferenceRequest{
			RequestId: uuid.NewString(),
			ConferenceSolutionKey: &calendar.ConferenceSolutionKey{
				Type: "hangoutsMeet",
			},
		},
	}
}

func sendUpdates(notify bool) string {
	if notify {
		return "all"
	}
	return "none"
}
