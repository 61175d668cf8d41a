// Package interpreter turns free-text messages into structured calendar
// intents using an OpenAI chat-completion call.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/teemow/yoteibot/internal/intent"
)

// ErrInterpretation marks a failed or unparseable language-understanding
// call, as opposed to a structurally valid but incomplete intent.
var ErrInterpretation = errors.New("interpretation failed")

// PriorTurn carries the previous turn's raw text and intent as grounding for
// referential follow-ups ("call it X instead", "make it an hour longer").
type PriorTurn struct {
	Text   string
	Intent *intent.CalendarIntent
}

// Interpreter produces a CalendarIntent from user text.
type Interpreter interface {
	Interpret(ctx context.Context, text string, prior *PriorTurn) (*intent.CalendarIntent, error)
}

// OpenAIInterpreter implements Interpreter against the OpenAI chat API.
type OpenAIInterpreter struct {
	client *openai.Client
	model  string
	loc    *time.Location

	// now is replaceable for tests; prompts embed the current date because
	// the model cannot infer "today" on its own.
	now func() time.Time
}

// NewOpenAIInterpreter creates an interpreter using the given API key and model.
func NewOpenAIInterpreter(apiKey, model string, loc *time.Location) *OpenAIInterpreter {
	return &OpenAIInterpreter{
		client: openai.NewClient(apiKey),
		model:  model,
		loc:    loc,
		now:    time.Now,
	}
}

// NewOpenAIInterpreterWithConfig creates an interpreter from a client config,
// allowing the base URL to be pointed at a test server.
func NewOpenAIInterpreterWithConfig(cfg openai.ClientConfig, model string, loc *time.Location) *OpenAIInterpreter {
	return &OpenAIInterpreter{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		loc:    loc,
		now:    time.Now,
	}
}

// Interpret sends the text to the model and parses the JSON reply into a
// validated CalendarIntent. Incomplete create intents surface as
// intent.ErrIncomplete; transport and decoding failures as ErrInterpretation.
func (i *OpenAIInterpreter) Interpret(ctx context.Context, text string, prior *PriorTurn) (*intent.CalendarIntent, error) {
	resp, err := i.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: i.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: i.systemPrompt(prior)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInterpretation, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", ErrInterpretation)
	}

	parsed, err := intent.Parse([]byte(resp.Choices[0].Message.Content))
	if err != nil {
		if errors.Is(err, intent.ErrIncomplete) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInterpretation, err)
	}

	return parsed, nil
}

// systemPrompt builds the instruction prompt. All relative date reasoning
// happens here, against the current date: the model emits absolute values
// and nothing downstream sees relative tokens.
func (i *OpenAIInterpreter) systemPrompt(prior *PriorTurn) string {
	today := i.now().In(i.loc)
	tomorrow := today.AddDate(0, 0, 1)

	prompt := fmt.Sprintf(`あなたはカレンダーアシスタントです。
現在の日付は%sです。
自然言語の予定リクエストを解析して、以下のJSON形式に変換してください：

{
  "action": "create" | "update" | "delete",
  "date": "YYYY-MM-DD形式の日付（今日の日付を基準に計算）",
  "time": "HH:mm形式の時刻",
  "duration": 分単位の数値（省略時は60）,
  "eventName": "イベント名",
  "location": "場所（指定がある場合のみ）",
  "attendees": ["ゲストのメールアドレス（指定がある場合のみ）"],
  "link": "Google Meet"（Meetリンクの要求がある場合のみ）
}

例：
入力: "明日の15時から2時間、打ち合わせ"
出力: {"action":"create","date":"%s","time":"15:00","duration":120,"eventName":"打ち合わせ"}

「今日」は%sを指します。
「明日」は%sを指します。
「来週」は7日後を指します。
既存の予定の変更・削除では、変更しない項目は省略してください。`,
		today.Format("2006年1月2日"),
		tomorrow.Format(intent.DateLayout),
		today.Format(intent.DateLayout),
		tomorrow.Format(intent.DateLayout),
	)

	if prior != nil && (prior.Text != "" || prior.Intent != nil) {
		prompt += "\n\n直前のやり取りを文脈として使ってください。「それ」「さっきの」などの指示語は直前の予定を指します。"
		if prior.Text != "" {
			prompt += fmt.Sprintf("\n直前のメッセージ: %s", prior.Text)
		}
		if prior.Intent != nil {
			prompt += fmt.Sprintf("\n直前の解析結果: %s", prior.Intent.MarshalContext())
		}
	}

	return prompt
}
