package interpreter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/yoteibot/internal/intent"
)

// newTestInterpreter points the OpenAI client at a stub server that returns
// the given completion content, and captures the request for inspection.
func newTestInterpreter(t *testing.T, content string, capture *openai.ChatCompletionRequest) *OpenAIInterpreter {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: "assistant", Content: content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"

	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	i := NewOpenAIInterpreterWithConfig(cfg, "gpt-4o-mini", loc)
	i.now = func() time.Time { return time.Date(2025, 3, 9, 10, 0, 0, 0, loc) }
	return i
}

func TestInterpretParsesModelReply(t *testing.T) {
	var req openai.ChatCompletionRequest
	i := newTestInterpreter(t,
		`{"action":"create","date":"2025-03-10","time":"15:00","duration":120,"eventName":"打ち合わせ"}`,
		&req)

	got, err := i.Interpret(t.Context(), "明日の15時から2時間、打ち合わせ", nil)
	require.NoError(t, err)

	assert.Equal(t, intent.ActionCreate, got.Action)
	assert.Equal(t, "2025-03-10", got.Date)
	assert.Equal(t, "15:00", got.Time)
	assert.Equal(t, 120, got.DurationMinutes)
	assert.Equal(t, "打ち合わせ", got.EventName)

	// JSON-object response format is requested
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)

	// The system prompt resolves relative dates against the injected clock
	require.NotEmpty(t, req.Messages)
	system := req.Messages[0].Content
	assert.Contains(t, system, "2025年3月9日")
	assert.Contains(t, system, "「明日」は2025-03-10")
}

func TestInterpretIncludesPriorTurnContext(t *testing.T) {
	var req openai.ChatCompletionRequest
	i := newTestInterpreter(t,
		`{"action":"update","date":"2025-03-10","eventName":"キックオフ"}`,
		&req)

	prior := &PriorTurn{
		Text: "明日の15時から2時間、打ち合わせ",
		Intent: &intent.CalendarIntent{
			Action: intent.ActionCreate, Date: "2025-03-10", Time: "15:00",
			DurationMinutes: 120, EventName: "打ち合わせ",
		},
	}

	got, err := i.Interpret(t.Context(), "名前をキックオフに変えて", prior)
	require.NoError(t, err)
	assert.Equal(t, intent.ActionUpdate, got.Action)

	system := req.Messages[0].Content
	assert.Contains(t, system, "直前のメッセージ: 明日の15時から2時間、打ち合わせ")
	assert.Contains(t, system, `"eventName":"打ち合わせ"`)
}

func TestInterpretIncompleteCreate(t *testing.T) {
	i := newTestInterpreter(t, `{"action":"create","date":"2025-03-10"}`, nil)

	_, err := i.Interpret(t.Context(), "明日予定を入れて", nil)
	assert.ErrorIs(t, err, intent.ErrIncomplete)
}

func TestInterpretUnparseableReply(t *testing.T) {
	i := newTestInterpreter(t, `sorry, I cannot help with that`, nil)

	_, err := i.Interpret(t.Context(), "hello", nil)
	assert.ErrorIs(t, err, ErrInterpretation)
}

func TestInterpretTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"
	i := NewOpenAIInterpreterWithConfig(cfg, "gpt-4o-mini", time.UTC)

	_, err := i.Interpret(t.Context(), "hello", nil)
	assert.ErrorIs(t, err, ErrInterpretation)
}
