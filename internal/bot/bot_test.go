package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/fishing-bot/internal/config"
	"serotonyl.ru/fishing-bot/internal/router"
)

type fakeAPI struct {
	mu          sync.Mutex
	sent        []*telego.SendMessageParams
	answered    []*telego.AnswerCallbackQueryParams
	preCheckout []*telego.AnswerPreCheckoutQueryParams
}

func (f *fakeAPI) SendMessage(_ context.Context, p *telego.SendMessageParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, p)
	return &telego.Message{}, nil
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, p *telego.AnswerCallbackQueryParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, p)
	return nil
}

func (f *fakeAPI) AnswerPreCheckoutQuery(_ context.Context, p *telego.AnswerPreCheckoutQueryParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preCheckout = append(f.preCheckout, p)
	return nil
}

// handlerFunc превращает функцию в Handler.
type handlerFunc func(ctx context.Context, ev router.Event) router.Response

func (h handlerFunc) Handle(ctx context.Context, ev router.Event) router.Response {
	return h(ctx, ev)
}

func testConfig() *config.Config {
	return &config.Config{
		BotMaxInflight:         4,
		RateLimitRequests:      100,
		RateLimitWindow:        time.Minute,
		FeaturePaymentsEnabled: true,
		PaymentPayload:         "coins_pack",
	}
}

func newTestBot(t *testing.T, cfg *config.Config, h handlerFunc) (*Bot, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	b := New(api, h, cfg)
	t.Cleanup(b.Close)
	return b, api
}

func textUpdate(id int, userID int64, text string) telego.Update {
	return telego.Update{
		UpdateID: id,
		Message: &telego.Message{
			MessageID: id,
			Chat:      telego.Chat{ID: userID, Type: "private"},
			From:      &telego.User{ID: userID, FirstName: "Иван", LastName: "Рыбаков"},
			Text:      text,
		},
	}
}

func TestMessageWithMenu(t *testing.T) {
	var got router.Event
	b, api := newTestBot(t, testConfig(), func(_ context.Context, ev router.Event) router.Response {
		got = ev
		return router.Response{Text: "привет", Menu: true}
	})

	b.HandleUpdate(context.Background(), textUpdate(1, 42, "/start"))

	assert.Equal(t, int64(42), got.PlayerID)
	assert.Equal(t, "Иван Рыбаков", got.DisplayName)
	assert.Equal(t, "/start", got.Text)
	assert.NotEmpty(t, got.ID)

	require.Len(t, api.sent, 1)
	assert.Equal(t, int64(42), api.sent[0].ChatID.ID)
	assert.Equal(t, "привет", api.sent[0].Text)
	kb, ok := api.sent[0].ReplyMarkup.(*telego.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.Len(t, kb.Keyboard, len(router.MenuLayout))
	assert.Equal(t, router.LabelCast, kb.Keyboard[0][0].Text)
}

func TestMessageIgnoredWithoutText(t *testing.T) {
	called := false
	b, api := newTestBot(t, testConfig(), func(context.Context, router.Event) router.Response {
		called = true
		return router.Response{Text: "x"}
	})

	b.HandleUpdate(context.Background(), textUpdate(1, 42, "   "))

	assert.False(t, called)
	assert.Empty(t, api.sent)
}

func TestCallbackAnsweredWithInlineKeyboard(t *testing.T) {
	b, api := newTestBot(t, testConfig(), func(_ context.Context, ev router.Event) router.Response {
		assert.Equal(t, "buy:wood", ev.ButtonData)
		return router.Response{
			Text:    "Нет монет",
			Buttons: [][]router.Button{{{Text: "Назад", Data: "act:shop"}}},
			Ack:     &router.Ack{Text: "Недостаточно монет", Alert: true},
		}
	})

	b.HandleUpdate(context.Background(), telego.Update{
		UpdateID: 2,
		CallbackQuery: &telego.CallbackQuery{
			ID:   "cb1",
			From: telego.User{ID: 7, Username: "fisher"},
			Data: "buy:wood",
		},
	})

	require.Len(t, api.answered, 1)
	assert.Equal(t, "cb1", api.answered[0].CallbackQueryID)
	assert.Equal(t, "Недостаточно монет", api.answered[0].Text)
	assert.True(t, api.answered[0].ShowAlert)

	require.Len(t, api.sent, 1)
	kb, ok := api.sent[0].ReplyMarkup.(*telego.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, "act:shop", kb.InlineKeyboard[0][0].CallbackData)
}

func TestCallbackAnsweredOnPanic(t *testing.T) {
	b, api := newTestBot(t, testConfig(), func(context.Context, router.Event) router.Response {
		panic("boom")
	})

	assert.NotPanics(t, func() {
		b.HandleUpdate(context.Background(), telego.Update{
			UpdateID:      3,
			CallbackQuery: &telego.CallbackQuery{ID: "cb2", From: telego.User{ID: 7}, Data: "act:cast"},
		})
	})
	require.Len(t, api.answered, 1)
	assert.Equal(t, "cb2", api.answered[0].CallbackQueryID)
	assert.Empty(t, api.sent)
}

func TestRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRequests = 1
	calls := 0
	b, api := newTestBot(t, cfg, func(context.Context, router.Event) router.Response {
		calls++
		return router.Response{Text: "ok"}
	})
	ctx := context.Background()

	b.HandleUpdate(ctx, textUpdate(1, 42, "/cast"))
	b.HandleUpdate(ctx, textUpdate(2, 42, "/cast"))
	b.HandleUpdate(ctx, telego.Update{
		UpdateID:      3,
		CallbackQuery: &telego.CallbackQuery{ID: "cb", From: telego.User{ID: 42}, Data: "act:cast"},
	})

	assert.Equal(t, 1, calls)
	require.Len(t, api.sent, 2)
	assert.Equal(t, slowDownText, api.sent[1].Text)
	require.Len(t, api.answered, 1)
	assert.Equal(t, slowDownText, api.answered[0].Text)
}

func TestSuccessfulPaymentBypassesRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRequests = 1
	var payments []*router.Payment
	b, _ := newTestBot(t, cfg, func(_ context.Context, ev router.Event) router.Response {
		payments = append(payments, ev.Payment)
		return router.Response{Text: "ok"}
	})
	ctx := context.Background()

	b.HandleUpdate(ctx, textUpdate(1, 9, "/cast"))
	upd := textUpdate(2, 9, "")
	upd.Message.SuccessfulPayment = &telego.SuccessfulPayment{Currency: "XTR", TotalAmount: 50, InvoicePayload: "coins_pack"}
	b.HandleUpdate(ctx, upd)

	require.Len(t, payments, 2)
	require.NotNil(t, payments[1])
	assert.Equal(t, router.Payment{Payload: "coins_pack", Currency: "XTR", TotalAmount: 50}, *payments[1])
}

func TestPreCheckout(t *testing.T) {
	b, api := newTestBot(t, testConfig(), nil)
	ctx := context.Background()

	b.HandleUpdate(ctx, telego.Update{PreCheckoutQuery: &telego.PreCheckoutQuery{ID: "p1", InvoicePayload: "coins_pack"}})
	b.HandleUpdate(ctx, telego.Update{PreCheckoutQuery: &telego.PreCheckoutQuery{ID: "p2", InvoicePayload: "other"}})

	require.Len(t, api.preCheckout, 2)
	assert.True(t, api.preCheckout[0].Ok)
	assert.False(t, api.preCheckout[1].Ok)
	assert.NotEmpty(t, api.preCheckout[1].ErrorMessage)
}

func TestChatFilterDenies(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedChatIDs = []int64{-100}
	b, api := newTestBot(t, cfg, func(context.Context, router.Event) router.Response {
		t.Fatal("событие из чужого чата не должно доходить до роутера")
		return router.Response{}
	})

	b.HandleUpdate(context.Background(), textUpdate(1, 42, "/start"))
	b.HandleUpdate(context.Background(), telego.Update{
		CallbackQuery: &telego.CallbackQuery{ID: "cb", From: telego.User{ID: 42}, Data: "act:cast"},
	})

	assert.Empty(t, api.sent)
	assert.Len(t, api.answered, 1, "нажатие всё равно подтверждается")
}

func TestRunDrainsUpdates(t *testing.T) {
	var mu sync.Mutex
	seen := map[int64]bool{}
	b, api := newTestBot(t, testConfig(), func(_ context.Context, ev router.Event) router.Response {
		mu.Lock()
		seen[ev.PlayerID] = true
		mu.Unlock()
		return router.Response{Text: "ok"}
	})

	updates := make(chan telego.Update, 10)
	for i := 1; i <= 10; i++ {
		updates <- textUpdate(i, int64(i), "/cast")
	}
	close(updates)

	b.Run(context.Background(), updates)

	assert.Len(t, seen, 10)
	assert.Len(t, api.sent, 10)
}
