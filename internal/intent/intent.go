package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layouts for the date and time fields produced by interpretation.
// All values are absolute; relative terms ("tomorrow", "next week") are
// resolved before an intent reaches this package.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// DefaultDurationMinutes is used when a create intent omits a duration.
const DefaultDurationMinutes = 60

// Action is the calendar operation the user asked for.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Conferencing indicates whether a meeting link was requested.
type Conferencing string

const (
	ConferencingNone Conferencing = ""
	ConferencingMeet Conferencing = "meet"
)

// ErrIncomplete marks an interpretation that succeeded but is missing
// fields required for event creation. Callers turn this into a usage
// guidance reply rather than defaulting the missing values.
var ErrIncomplete = errors.New("incomplete calendar intent")

// CalendarIntent is the structured representation of a calendar request,
// produced from free text by the interpreter.
//
// Date is required for every action. Time, DurationMinutes and EventName are
// required for create; on update they are optional and mean "keep existing".
type CalendarIntent struct {
	Action          Action
	Date            string // YYYY-MM-DD
	Time            string // HH:mm, optional on update/delete
	DurationMinutes int    // optional, minutes
	EventName       string
	Location        string
	Attendees       []string
	Conferencing    Conferencing
}

// Validate checks structural validity and create-completeness.
// A create intent missing date, time or event name returns an error
// wrapping ErrIncomplete.
func (ci *CalendarIntent) Validate() error {
	switch ci.Action {
	case ActionCreate, ActionUpdate, ActionDelete:
	default:
		return fmt.Errorf("unknown action %q", ci.Action)
	}

	if ci.Date != "" {
		if _, err := time.Parse(DateLayout, ci.Date); err != nil {
			return fmt.Errorf("invalid date %q: %w", ci.Date, err)
		}
	}
	if ci.Time != "" {
		if _, err := time.Parse(TimeLayout, ci.Time); err != nil {
			return fmt.Errorf("invalid time %q: %w", ci.Time, err)
		}
	}

	if ci.Action == ActionCreate {
		if ci.Date == "" || ci.Time == "" || ci.EventName == "" {
			return fmt.Errorf("%w: create requires date, time and event name", ErrIncomplete)
		}
	}
	if ci.Date == "" {
		return fmt.Errorf("%w: missing date", ErrIncomplete)
	}

	return nil
}

// Start combines Date and Time into an absolute timestamp in the given
// location. Time must be present.
func (ci *CalendarIntent) Start(loc *time.Location) (time.Time, error) {
	if ci.Time == "" {
		return time.Time{}, fmt.Errorf("intent has no time")
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, ci.Date+" "+ci.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse start: %w", err)
	}
	return t, nil
}

// Day returns the calendar day of the intent in the given location,
// truncated to midnight.
func (ci *CalendarIntent) Day(loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, ci.Date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date: %w", err)
	}
	return d, nil
}

// Duration returns the requested duration, defaulting when omitted.
func (ci *CalendarIntent) Duration() time.Duration {
	if ci.DurationMinutes <= 0 {
		return DefaultDurationMinutes * time.Minute
	}
	return time.Duration(ci.DurationMinutes) * time.Minute
}

// wireIntent is the JSON contract with the language model. Field names
// follow the prompt; duration arrives as a number or a numeric string
// depending on the model's mood.
type wireIntent struct {
	Action    string        `json:"action"`
	Date      string        `json:"date"`
	Time      string        `json:"time"`
	Duration  flexibleInt   `json:"duration"`
	EventName string        `json:"eventName"`
	Location  string        `json:"location"`
	Attendees flexibleSlice `json:"attendees"`
	Link      string        `json:"link"`
}

// flexibleInt accepts a JSON number, a numeric string, or null.
type flexibleInt int

func (f *flexibleInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("duration is not a number: %s", s)
	}
	*f = flexibleInt(n)
	return nil
}

// flexibleSlice accepts a JSON array of strings, a single string, or null.
type flexibleSlice []string

func (f *flexibleSlice) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = nil
		return nil
	}
	if strings.HasPrefix(s, "[") {
		var out []string
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
		*f = out
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	if one == "" {
		*f = nil
		return nil
	}
	*f = []string{one}
	return nil
}

// Parse decodes a model response into a CalendarIntent and validates it.
func Parse(data []byte) (*CalendarIntent, error) {
	var w wireIntent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode intent: %w", err)
	}

	ci := &CalendarIntent{
		Action:          Action(strings.ToLower(strings.TrimSpace(w.Action))),
		Date:            strings.TrimSpace(w.Date),
		Time:            strings.TrimSpace(w.Time),
		DurationMinutes: int(w.Duration),
		EventName:       strings.TrimSpace(w.EventName),
		Location:        strings.TrimSpace(w.Location),
		Attendees:       w.Attendees,
		Conferencing:    parseConferencing(w.Link),
	}

	if err := ci.Validate(); err != nil {
		return nil, err
	}
	return ci, nil
}

// parseConferencing maps the model's link field to a Conferencing value.
// The original contract uses the literal "Google Meet".
func parseConferencing(link string) Conferencing {
	switch strings.ToLower(strings.TrimSpace(link)) {
	case "google meet", "meet", "hangoutsmeet":
		return ConferencingMeet
	}
	return ConferencingNone
}

// MarshalContext renders the intent as compact JSON for use as prior-turn
// grounding in the next interpretation call.
func (ci *CalendarIntent) MarshalContext() string {
	b, err := json.Marshal(struct {
		Action    Action   `json:"action"`
		Date      string   `json:"date"`
		Time      string   `json:"time,omitempty"`
		Duration  int      `json:"duration,omitempty"`
		EventName string   `json:"eventName,omitempty"`
		Location  string   `json:"location,omitempty"`
		Attendees []string `json:"attendees,omitempty"`
		Link      string   `json:"link,omitempty"`
	}{
		Action:    ci.Action,
		Date:      ci.Date,
		Time:      ci.Time,
		Duration:  ci.DurationMinutes,
		EventName: ci.EventName,
		Location:  ci.Location,
		Attendees: ci.Attendees,
		Link:      conferencingContext(ci.Conferencing),
	})
	if err != nil {
		return "{}"
	}
	return string(b)
}

func conferencingContext(c Conferencing) string {
	if c == ConferencingMeet {
		return "Google Meet"
	}
	return ""
}
