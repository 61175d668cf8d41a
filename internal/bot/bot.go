// Package bot drives the per-message pipeline: session gate, intent
// interpretation, event resolution, calendar execution, and the reply back
// to the user.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teemow/yoteibot/internal/calendar"
	"github.com/teemow/yoteibot/internal/executor"
	"github.com/teemow/yoteibot/internal/instrumentation"
	"github.com/teemow/yoteibot/internal/intent"
	"github.com/teemow/yoteibot/internal/interpreter"
	"github.com/teemow/yoteibot/internal/line"
	"github.com/teemow/yoteibot/internal/logging"
	"github.com/teemow/yoteibot/internal/memory"
	"github.com/teemow/yoteibot/internal/resolver"
	"github.com/teemow/yoteibot/internal/store"
)

// AuthCommand starts the Google OAuth flow. It bypasses the session gate, as
// it is the only message an unauthenticated user can meaningfully send.
const AuthCommand = "/auth"

// dedupWindow bounds how many recent message IDs are remembered for webhook
// redelivery suppression.
const dedupWindow = 1024

// Outcome labels for the message_turns_total metric.
const (
	outcomeExecuted            = "executed"
	outcomeDuplicate           = "duplicate"
	outcomeAuthCommand         = "auth_command"
	outcomeUnauthenticated     = "unauthenticated"
	outcomeIncomplete          = "incomplete"
	outcomeInterpretationError = "interpretation_error"
	outcomeNotFound            = "not_found"
	outcomeExecutionError      = "execution_error"
)

// Replier sends a text reply for a webhook event.
type Replier interface {
	ReplyText(ctx context.Context, replyToken, text string) error
}

// CalendarFactory builds a calendar service acting as the given user.
type CalendarFactory func(ctx context.Context, userID string) (calendar.Service, error)

// Config wires the bot's collaborators.
type Config struct {
	Credentials store.CredentialStore
	Interpreter interpreter.Interpreter
	Resolver    *resolver.Resolver
	Executor    *executor.Executor
	Memory      *memory.Store
	NewCalendar CalendarFactory
	AuthURL     func(userID string) string
	Replier     Replier
	Logger      *slog.Logger
	Metrics     *instrumentation.Metrics
	Location    *time.Location
}

// Bot processes LINE webhook events.
type Bot struct {
	creds       store.CredentialStore
	interp      interpreter.Interpreter
	resolver    *resolver.Resolver
	executor    *executor.Executor
	memory      *memory.Store
	newCalendar CalendarFactory
	authURL     func(userID string) string
	replier     Replier
	logger      *slog.Logger
	metrics     *instrumentation.Metrics
	loc         *time.Location
	recent      *dedup
}

// New creates a bot from the given configuration.
func New(cfg Config) (*Bot, error) {
	switch {
	case cfg.Credentials == nil:
		return nil, fmt.Errorf("credential store is required")
	case cfg.Interpreter == nil:
		return nil, fmt.Errorf("interpreter is required")
	case cfg.Resolver == nil:
		return nil, fmt.Errorf("resolver is required")
	case cfg.Executor == nil:
		return nil, fmt.Errorf("executor is required")
	case cfg.Memory == nil:
		return nil, fmt.Errorf("memory store is required")
	case cfg.NewCalendar == nil:
		return nil, fmt.Errorf("calendar factory is required")
	case cfg.AuthURL == nil:
		return nil, fmt.Errorf("auth URL builder is required")
	case cfg.Replier == nil:
		return nil, fmt.Errorf("replier is required")
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &instrumentation.Metrics{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	return &Bot{
		creds:       cfg.Credentials,
		interp:      cfg.Interpreter,
		resolver:    cfg.Resolver,
		executor:    cfg.Executor,
		memory:      cfg.Memory,
		newCalendar: cfg.NewCalendar,
		authURL:     cfg.AuthURL,
		replier:     cfg.Replier,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		loc:         cfg.Location,
		recent:      newDedup(dedupWindow),
	}, nil
}

// HandleEvents processes a webhook delivery. A failure in one event never
// prevents the remaining events from being handled.
func (b *Bot) HandleEvents(ctx context.Context, events []line.Event) {
	for _, ev := range events {
		b.handleEvent(ctx, ev)
	}
}

func (b *Bot) handleEvent(ctx context.Context, ev line.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic while handling event",
				logging.Operation("handle_event"),
				slog.Any("panic", r),
			)
		}
	}()

	if !ev.IsTextMessage() || ev.Source.UserID == "" {
		return
	}

	if !b.recent.observe(ev.Message.ID) {
		b.metrics.RecordMessageTurn(ctx, outcomeDuplicate)
		return
	}

	userID := ev.Source.UserID
	text := strings.TrimSpace(ev.Message.Text)

	logger := b.logger.With(logging.UserHash(userID))
	logger.Info("message received",
		logging.Operation("handle_message"),
		slog.Int("text_length", len(text)),
	)

	outcome := b.handleMessage(ctx, logger, userID, ev.ReplyToken, text)
	b.metrics.RecordMessageTurn(ctx, outcome)

	logger.Info("message handled",
		logging.Operation("handle_message"),
		slog.String("outcome", outcome),
	)
}

// handleMessage runs the pipeline for a single text message and returns the
// turn outcome label.
func (b *Bot) handleMessage(ctx context.Context, logger *slog.Logger, userID, replyToken, text string) string {
	if text == AuthCommand {
		b.reply(ctx, logger, replyToken, replyAuthLink(b.authURL(userID)))
		return outcomeAuthCommand
	}

	// Session gate: nothing is interpreted for users without credentials.
	if !b.creds.HasToken(ctx, userID) {
		b.reply(ctx, logger, replyToken, replyAuthRequired)
		return outcomeUnauthenticated
	}

	session, release := b.memory.Acquire(userID)
	defer release()

	in, err := b.interpret(ctx, text, session)
	if err != nil {
		if errors.Is(err, intent.ErrIncomplete) {
			b.reply(ctx, logger, replyToken, replyGuidance)
			return outcomeIncomplete
		}
		logger.Warn("interpretation failed",
			logging.Operation("interpret"),
			logging.Err(err),
		)
		b.reply(ctx, logger, replyToken, replyGuidance)
		return outcomeInterpretationError
	}

	// Persist the turn so follow-up messages can be interpreted against it.
	session.LastRawText = text
	session.LastIntent = in

	cal, err := b.newCalendar(ctx, userID)
	if err != nil {
		logger.Error("calendar client unavailable",
			logging.Operation("new_calendar"),
			logging.Err(err),
		)
		b.reply(ctx, logger, replyToken, replyFailure(in.Action, ""))
		return outcomeExecutionError
	}

	op, err := b.resolver.Resolve(ctx, cal, in, session)
	if err != nil {
		if resolver.IsNotFound(err) {
			b.reply(ctx, logger, replyToken, replyNotFound(in.Action))
			return outcomeNotFound
		}
		logger.Error("resolution failed",
			logging.Operation("resolve"),
			logging.Action(string(in.Action)),
			logging.Err(err),
		)
		b.reply(ctx, logger, replyToken, replyFailure(in.Action, ""))
		return outcomeExecutionError
	}

	execStart := time.Now()
	result := b.executor.Execute(ctx, cal, op)

	execStatus := logging.StatusSuccess
	if !result.Success {
		execStatus = logging.StatusError
	}
	b.metrics.RecordGoogleAPIOperation(ctx, "calendar", string(op.Action), execStatus, time.Since(execStart))

	if !result.Success {
		b.reply(ctx, logger, replyToken, replyFailure(op.Action, ""))
		return outcomeExecutionError
	}

	b.rememberOutcome(session, op, result)
	b.reply(ctx, logger, replyToken, b.successReply(op, in))
	return outcomeExecuted
}

// interpret calls the interpreter with the previous turn as grounding and
// records the attempt.
func (b *Bot) interpret(ctx context.Context, text string, session *memory.Session) (*intent.CalendarIntent, error) {
	var prior *interpreter.PriorTurn
	if session.LastIntent != nil {
		prior = &interpreter.PriorTurn{
			Text:   session.LastRawText,
			Intent: session.LastIntent,
		}
	}

	start := time.Now()
	in, err := b.interp.Interpret(ctx, text, prior)

	status := logging.StatusSuccess
	if err != nil {
		status = logging.StatusError
	}
	b.metrics.RecordInterpretation(ctx, status, time.Since(start))

	return in, err
}

// rememberOutcome updates the conversation memory after a successful write.
// Deletes clear the remembered event only when it was the one deleted, so an
// unrelated delete does not erase useful context.
func (b *Bot) rememberOutcome(session *memory.Session, op *resolver.Operation, result executor.Result) {
	switch op.Action {
	case intent.ActionCreate, intent.ActionUpdate:
		session.LastTouchedEvent = &memory.EventRef{
			ID:      result.EventID,
			Summary: op.Draft.Summary,
			Date:    op.Draft.Start.In(b.loc).Format(intent.DateLayout),
			Time:    op.Draft.Start.In(b.loc).Format(intent.TimeLayout),
		}
	case intent.ActionDelete:
		if session.LastTouchedEvent != nil && session.LastTouchedEvent.ID == op.TargetEventID {
			session.LastTouchedEvent = nil
		}
	}
}

// successReply builds the confirmation text for a completed operation.
func (b *Bot) successReply(op *resolver.Operation, in *intent.CalendarIntent) string {
	if op.Action == intent.ActionDelete {
		name := in.EventName
		date := in.Date
		tm := in.Time
		if op.Matched != nil {
			name = op.Matched.Summary
			date = op.Matched.Start.In(b.loc).Format(intent.DateLayout)
			tm = op.Matched.Start.In(b.loc).Format(intent.TimeLayout)
		}
		return replySuccess(op.Action, name, date, tm)
	}

	start := op.Draft.Start.In(b.loc)
	return replySuccess(op.Action, op.Draft.Summary, start.Format(intent.DateLayout), start.Format(intent.TimeLayout))
}

func (b *Bot) reply(ctx context.Context, logger *slog.Logger, replyToken, text string) {
	if err := b.replier.ReplyText(ctx, replyToken, text); err != nil {
		logger.Warn("reply failed",
			logging.Operation("reply"),
			logging.Err(err),
		)
	}
}
