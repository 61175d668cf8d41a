package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/yoteibot/internal/calendar"
	"github.com/teemow/yoteibot/internal/executor"
	"github.com/teemow/yoteibot/internal/intent"
	"github.com/teemow/yoteibot/internal/interpreter"
	"github.com/teemow/yoteibot/internal/line"
	"github.com/teemow/yoteibot/internal/memory"
	"github.com/teemow/yoteibot/internal/resolver"
	"github.com/teemow/yoteibot/internal/store"
)

type fakeCreds struct {
	authorized map[string]bool
}

func (f *fakeCreds) GetToken(_ context.Context, userID string) (*oauth2.Token, error) {
	if !f.authorized[userID] {
		return nil, store.ErrNotFound
	}
	return &oauth2.Token{AccessToken: "at"}, nil
}

func (f *fakeCreds) SetToken(_ context.Context, userID string, _ *oauth2.Token) error {
	f.authorized[userID] = true
	return nil
}

func (f *fakeCreds) HasToken(_ context.Context, userID string) bool {
	return f.authorized[userID]
}

type fakeInterp struct {
	calls  int
	priors []*interpreter.PriorTurn
	intent *intent.CalendarIntent
	err    error
}

func (f *fakeInterp) Interpret(_ context.Context, _ string, prior *interpreter.PriorTurn) (*intent.CalendarIntent, error) {
	f.calls++
	f.priors = append(f.priors, prior)
	if f.err != nil {
		return nil, f.err
	}
	return f.intent, nil
}

type fakeReplier struct {
	tokens []string
	texts  []string
}

func (f *fakeReplier) ReplyText(_ context.Context, replyToken, text string) error {
	f.tokens = append(f.tokens, replyToken)
	f.texts = append(f.texts, text)
	return nil
}

type fakeCal struct {
	events    []calendar.Event
	listErr   error
	insertErr error

	deletedID string
}

func (f *fakeCal) ListEvents(context.Context, time.Time, time.Time) ([]calendar.Event, error) {
	return f.events, f.listErr
}

func (f *fakeCal) InsertEvent(_ context.Context, input calendar.EventInput) (*calendar.Event, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	return &calendar.Event{ID: "new-1", Summary: input.Summary, Start: input.Start, End: input.End}, nil
}

func (f *fakeCal) UpdateEvent(_ context.Context, eventID string, input calendar.EventInput) (*calendar.Event, error) {
	return &calendar.Event{ID: eventID, Summary: input.Summary, Start: input.Start, End: input.End}, nil
}

func (f *fakeCal) DeleteEvent(_ context.Context, eventID string) error {
	f.deletedID = eventID
	return nil
}

type fixture struct {
	bot          *Bot
	creds        *fakeCreds
	interp       *fakeInterp
	replier      *fakeReplier
	cal          *fakeCal
	memory       *memory.Store
	factoryCalls int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	f := &fixture{
		creds:   &fakeCreds{authorized: map[string]bool{"U-auth": true}},
		interp:  &fakeInterp{},
		replier: &fakeReplier{},
		cal:     &fakeCal{},
		memory:  memory.NewStore(),
	}

	b, err := New(Config{
		Credentials: f.creds,
		Interpreter: f.interp,
		Resolver:    resolver.New(resolver.DefaultMatcherPolicy(), loc),
		Executor:    executor.New("Asia/Tokyo", nil),
		Memory:      f.memory,
		NewCalendar: func(context.Context, string) (calendar.Service, error) {
			f.factoryCalls++
			return f.cal, nil
		},
		AuthURL: func(userID string) string {
			return "https://accounts.example.com/consent?state=" + userID
		},
		Replier:  f.replier,
		Location: loc,
	})
	require.NoError(t, err)

	f.bot = b
	return f
}

func textEvent(userID, msgID, text string) line.Event {
	return line.Event{
		Type:       "message",
		ReplyToken: "rt-" + msgID,
		Source:     line.Source{Type: "user", UserID: userID},
		Message:    &line.Message{ID: msgID, Type: "text", Text: text},
	}
}

func createIntent() *intent.CalendarIntent {
	return &intent.CalendarIntent{
		Action:    intent.ActionCreate,
		Date:      "2025-03-10",
		Time:      "15:00",
		EventName: "打ち合わせ",
	}
}

func TestUnauthenticatedUserIsGated(t *testing.T) {
	f := newFixture(t)

	f.bot.HandleEvents(t.Context(), []line.Event{textEvent("U-stranger", "m1", "明日の15時から打ち合わせ")})

	require.Len(t, f.replier.texts, 1)
	assert.Contains(t, f.replier.texts[0], "連携が必要です")
	assert.Contains(t, f.replier.texts[0], "/auth")

	assert.Zero(t, f.interp.calls, "interpreter must not run for gated users")
	assert.Zero(t, f.factoryCalls)
}

func TestAuthCommandBypassesGate(t *testing.T) {
	f := newFixture(t)

	f.bot.HandleEvents(t.Context(), []line.Event{textEvent("U-stranger", "m1", "/auth")})

	require.Len(t, f.replier.texts, 1)
	assert.Contains(t, f.replier.texts[0], "https://accounts.example.com/consent?state=U-stranger")
	assert.Zero(t, f.interp.calls)
}

func TestIncompleteIntentRepliesGuidance(t *testing.T) {
	f := newFixture(t)
	f.interp.err = intent.ErrIncomplete

	f.bot.HandleEvents(t.Context(), []line.Event{textEvent("U-auth", "m1", "打ち合わせ")})

	require.Len(t, f.replier.texts, 1)
	assert.Contains(t, f.replier.texts[0], "「明日の15時から2時間、打ち合わせ」")
	assert.Zero(t, f.factoryCalls, "calendar must not be touched without a complete intent")
}

func TestCreateSuccess(t *testing.T) {
	f := newFixture(t)
	f.interp.intent = createIntent()

	f.bot.HandleEvents(t.Context(), []line.Event{textEvent("U-auth", "m1", "明日の15時から打ち合わせ")})

	require.Len(t, f.replier.texts, 1)
	assert.Equal(t, "✅ 「打ち合わせ」を2025-03-10 15:00からGoogleカレンダーに登録しました！", f.replier.texts[0])
	assert.Equal(t, []string{"rt-m1"}, f.replier.tokens)

	session, release := f.memory.Acquire("U-auth")
	defer release()
	require.NotNil(t, session.LastTouchedEvent)
	assert.Equal(t, "new-1", session.LastTouchedEvent.ID)
	assert.Equal(t, "打ち合わせ", session.LastTouchedEvent.Summary)
	assert.Equal(t, "2025-03-10", session.LastTouchedEvent.Date)
	assert.Equal(t, "15:00", session.LastTouchedEvent.Time)
	require.NotNil(t, session.LastIntent)
	assert.Equal(t, "明日の15時から打ち合わせ", session.LastRawText)
}

func TestSecondTurnCarriesPriorIntent(t *testing.T) {
	f := newFixture(t)
	f.interp.intent = createIntent()

	f.bot.HandleEvents(t.Context(), []line.Event{textEvent("U-auth", "m1", "明日の15時から打ち合わせ")})
	f.bot.HandleEvents(t.Context(), []line.Event{textEvent("U-auth", "m2", "やっぱり16時にして")})

	require.Len(t, f.interp.priors, 2)
	assert.Nil(t, f.interp.priors[0])
	require.NotNil(t, f.interp.priors[1])
	assert.Equal(t, "明日の15時から打ち合わせ", f.interp.priors[1].Text)
	assert.Equal(t, intent.ActionCreate, f.interp.priors[1].Intent.Action)
}

func TestUpdateNotFoundReply(t *testing.T) {
	f := newFixture(t)
	f.interp.intent = &intent.CalendarIntent{
		Action: intent.ActionUpdate,
		Date:   "2025-03-10",
		Time:   "16:00",
	}
	f.cal.events = nil // nothing on the calendar that day

	f.bot.HandleEvents(t.Context(), []line.Event{textEvent("U-auth", "m1", "明日の予定を16時にして")})

	require.Len(t, f.replier.texts, 1)
	assert.Contains(t, f.replier.texts[0], "❌ 予定の更新に失敗しました。")
	assert.Contains(t, f.replier.texts[0], "見つかりませんでした")
}

func TestDeleteClearsRememberedEvent(t *testing.T) {
	f := newFixture(t)
	loc := f.bot.loc
	start := time.Date(2025, 3, 10, 15, 0, 0, 0, loc)
	f.cal.events = []calendar.Event{{ID: "E1", Summary: "打ち合わせ", Start: start, End: start.Add(time.Hour)}}

	session, release := f.memory.Acquire("U-auth")
	session.LastTouchedEvent = &memory.EventRef{ID: "E1", Summary: "打ち合わせ", Date: "2025-03-10", Time: "15:00"}
	release()

	f.interp.intent = &intent.CalendarIntent{
		Action: intent.ActionDelete,
		Date:   "2025-03-10",
		Time:   "15:00",
	}

	f.bot.HandleEvents(t.Context(), []line.Event{textEvent("U-auth", "m1", "明日の打ち合わせは中止")})

	assert.Equal(t, "E1", f.cal.deletedID)
	require.Len(t, f.replier.texts, 1)
	assert.Equal(t, "✅ 「打ち合わせ」を2025-03-10 15:00からGoogleカレンダーに削除しました！", f.replier.texts[0])

	session, release = f.memory.Acquire("U-auth")
	defer release()
	assert.Nil(t, session.LastTouchedEvent, "deleting the remembered event clears it")
}

func TestExecutionFailureReply(t *testing.T) {
	f := newFixture(t)
	f.interp.intent = createIntent()
	f.cal.insertErr = assert.AnError

	f.bot.HandleEvents(t.Context(), []line.Event{textEvent("U-auth", "m1", "明日の15時から打ち合わせ")})

	require.Len(t, f.replier.texts, 1)
	assert.Contains(t, f.replier.texts[0], "❌ 予定の登録に失敗しました。")
	assert.Contains(t, f.replier.texts[0], "時間を置いて再度お試しください。")
}

func TestDuplicateMessageIgnored(t *testing.T) {
	f := newFixture(t)
	f.interp.intent = createIntent()

	ev := textEvent("U-auth", "m1", "明日の15時から打ち合わせ")
	f.bot.HandleEvents(t.Context(), []line.Event{ev})
	f.bot.HandleEvents(t.Context(), []line.Event{ev})

	assert.Equal(t, 1, f.interp.calls, "redelivered message must not be processed twice")
	assert.Len(t, f.replier.texts, 1)
}

func TestNonTextEventsSkipped(t *testing.T) {
	f := newFixture(t)

	f.bot.HandleEvents(t.Context(), []line.Event{
		{Type: "follow", Source: line.Source{Type: "user", UserID: "U-auth"}},
		{Type: "message", Source: line.Source{Type: "user", UserID: "U-auth"}, Message: &line.Message{ID: "m1", Type: "sticker"}},
	})

	assert.Zero(t, f.interp.calls)
	assert.Empty(t, f.replier.texts)
}

func TestDedupEviction(t *testing.T) {
	d := newDedup(2)

	assert.True(t, d.observe("a"))
	assert.True(t, d.observe("b"))
	assert.False(t, d.observe("a"))

	assert.True(t, d.observe("c"), "a should be evicted")
	assert.True(t, d.observe("a"))
	assert.True(t, d.observe("")) // empty IDs are never deduplicated
	assert.True(t, d.observe(""))
}
