package line

import "fmt"

// WebhookBody is the top-level webhook payload from the LINE Platform.
type WebhookBody struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// Event represents a single webhook event.
type Event struct {
	Type       string   `json:"type"` // "message", "follow", "unfollow", ...
	Timestamp  int64    `json:"timestamp"`
	ReplyToken string   `json:"replyToken,omitempty"`
	Source     Source   `json:"source"`
	Message    *Message `json:"message,omitempty"`
}

// Source identifies the origin of an event.
type Source struct {
	Type   string `json:"type"` // "user", "group", "room"
	UserID string `json:"userId,omitempty"`
}

// Message represents an incoming message.
type Message struct {
	ID   string `json:"id"`
	Type string `json:"type"` // "text", "image", "sticker", ...
	Text string `json:"text,omitempty"`
}

// IsTextMessage reports whether the event carries user text to process.
func (e Event) IsTextMessage() bool {
	return e.Type == "message" && e.Message != nil && e.Message.Type == "text" && e.Message.Text != ""
}

// replyRequest is the payload for the reply endpoint.
type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// LineError represents an error from a LINE Messaging API operation.
type LineError struct {
	// Op is the operation that failed (e.g., "reply")
	Op string

	// Err is the underlying error
	Err error
}

// Error implements the error interface
func (e *LineError) Error() string {
	return fmt.Sprintf("line %s: %v", e.Op, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *LineError) Unwrap() error {
	return e.Err
}
