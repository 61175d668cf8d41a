package intent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *CalendarIntent
	}{
		{
			name:  "create with all fields",
			input: `{"action":"create","date":"2025-03-10","time":"15:00","duration":120,"eventName":"打ち合わせ"}`,
			expected: &CalendarIntent{
				Action:          ActionCreate,
				Date:            "2025-03-10",
				Time:            "15:00",
				DurationMinutes: 120,
				EventName:       "打ち合わせ",
			},
		},
		{
			name:  "duration as numeric string",
			input: `{"action":"create","date":"2025-03-10","time":"09:30","duration":"45","eventName":"standup"}`,
			expected: &CalendarIntent{
				Action:          ActionCreate,
				Date:            "2025-03-10",
				Time:            "09:30",
				DurationMinutes: 45,
				EventName:       "standup",
			},
		},
		{
			name:  "google meet link maps to conferencing",
			input: `{"action":"create","date":"2025-03-10","time":"15:00","eventName":"sync","link":"Google Meet","attendees":["a@x.com","b@x.com"]}`,
			expected: &CalendarIntent{
				Action:       ActionCreate,
				Date:         "2025-03-10",
				Time:         "15:00",
				EventName:    "sync",
				Attendees:    []string{"a@x.com", "b@x.com"},
				Conferencing: ConferencingMeet,
			},
		},
		{
			name:  "single attendee as plain string",
			input: `{"action":"create","date":"2025-03-10","time":"15:00","eventName":"1on1","attendees":"a@x.com"}`,
			expected: &CalendarIntent{
				Action:    ActionCreate,
				Date:      "2025-03-10",
				Time:      "15:00",
				EventName: "1on1",
				Attendees: []string{"a@x.com"},
			},
		},
		{
			name:  "update without time keeps existing",
			input: `{"action":"update","date":"2025-03-10","eventName":"ミーティング"}`,
			expected: &CalendarIntent{
				Action:    ActionUpdate,
				Date:      "2025-03-10",
				EventName: "ミーティング",
			},
		},
		{
			name:  "delete with time only",
			input: `{"action":"delete","date":"2025-03-10","time":"20:00"}`,
			expected: &CalendarIntent{
				Action: ActionDelete,
				Date:   "2025-03-10",
				Time:   "20:00",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		incomplete bool
	}{
		{
			name:       "create missing time",
			input:      `{"action":"create","date":"2025-03-10","eventName":"打ち合わせ"}`,
			incomplete: true,
		},
		{
			name:       "create missing event name",
			input:      `{"action":"create","date":"2025-03-10","time":"15:00"}`,
			incomplete: true,
		},
		{
			name:       "create missing date",
			input:      `{"action":"create","time":"15:00","eventName":"x"}`,
			incomplete: true,
		},
		{
			name:       "update missing date",
			input:      `{"action":"update","eventName":"x"}`,
			incomplete: true,
		},
		{
			name:  "unknown action",
			input: `{"action":"reschedule","date":"2025-03-10"}`,
		},
		{
			name:  "malformed date",
			input: `{"action":"delete","date":"March 10th"}`,
		},
		{
			name:  "not json",
			input: `sorry, I could not parse that`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			if tt.incomplete {
				assert.ErrorIs(t, err, ErrIncomplete)
			}
		})
	}
}

func TestStart(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	ci := &CalendarIntent{Action: ActionCreate, Date: "2025-03-10", Time: "15:00", EventName: "x"}
	start, err := ci.Start(loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 15, 0, 0, 0, loc), start)

	noTime := &CalendarIntent{Action: ActionUpdate, Date: "2025-03-10"}
	_, err = noTime.Start(loc)
	assert.Error(t, err)
}

func TestDurationDefault(t *testing.T) {
	ci := &CalendarIntent{}
	assert.Equal(t, 60*time.Minute, ci.Duration())

	ci.DurationMinutes = 120
	assert.Equal(t, 2*time.Hour, ci.Duration())
}

func TestMarshalContext(t *testing.T) {
	ci := &CalendarIntent{
		Action:       ActionCreate,
		Date:         "2025-03-10",
		Time:         "15:00",
		EventName:    "打ち合わせ",
		Conferencing: ConferencingMeet,
	}
	ctx := ci.MarshalContext()
	assert.Contains(t, ctx, `"action":"create"`)
	assert.Contains(t, ctx, `"link":"Google Meet"`)
	assert.NotContains(t, ctx, `"duration"`)
}
