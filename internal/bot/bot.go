// Package bot — транспорт Telegram: превращает апдейты в события роутера
// и отправляет ответы обратно (текст, кнопки, меню, ответ на нажатие).
package bot

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/fishing-bot/internal/bot/filters"
	"serotonyl.ru/fishing-bot/internal/bot/middleware"
	"serotonyl.ru/fishing-bot/internal/config"
	"serotonyl.ru/fishing-bot/internal/metrics"
	"serotonyl.ru/fishing-bot/internal/router"
)

// Ответ игроку, который шлёт события быстрее лимита.
const slowDownText = "🐢 Не так быстро! Рыба пугается."

// AllowedUpdates — типы апдейтов, которые бот запрашивает у Telegram.
var AllowedUpdates = []string{"message", "callback_query", "pre_checkout_query"}

// API — методы Telegram Bot API, которыми пользуется бот. *telego.Bot подходит.
type API interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error
	AnswerPreCheckoutQuery(ctx context.Context, params *telego.AnswerPreCheckoutQueryParams) error
}

// Handler — роутер игровых событий.
type Handler interface {
	Handle(ctx context.Context, ev router.Event) router.Response
}

// Bot — главная структура транспорта.
type Bot struct {
	api     API
	handler Handler

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter

	paymentsEnabled bool
	paymentPayload  string

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
	wg       sync.WaitGroup
}

// New создаёт бота.
func New(api API, handler Handler, cfg *config.Config) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:             api,
		handler:         handler,
		chatFilter:      filters.NewChatFilter(cfg.AllowedChatIDs),
		rateLimiter:     middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		paymentsEnabled: cfg.FeaturePaymentsEnabled,
		paymentPayload:  cfg.PaymentPayload,
		inflight:        make(chan struct{}, maxInFlight),
	}
}

// Run читает апдейты (long polling) до отмены ctx или закрытия канала
// и дожидается обработки уже взятых апдейтов.
func (b *Bot) Run(ctx context.Context, updates <-chan telego.Update) {
	log.WithField("max_inflight", cap(b.inflight)).Info("Бот запущен и ожидает сообщения...")
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			// лимит параллелизма
			select {
			case b.inflight <- struct{}{}:
			case <-ctx.Done():
				return
			}
			b.wg.Add(1)
			go func(upd telego.Update) {
				defer func() {
					<-b.inflight
					b.wg.Done()
				}()
				b.HandleUpdate(ctx, upd)
			}(update)
		}
	}
}

// Close освобождает фоновые ресурсы.
func (b *Bot) Close() {
	b.rateLimiter.Close()
}

// HandleUpdate обрабатывает один апдейт. Вызывается и из Run, и из вебхука.
func (b *Bot) HandleUpdate(ctx context.Context, update telego.Update) {
	defer middleware.RecoverFromPanic(update.UpdateID)

	metrics.UpdatesInFlight.Inc()
	defer metrics.UpdatesInFlight.Dec()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.PreCheckoutQuery != nil:
		b.handlePreCheckout(ctx, update.PreCheckoutQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *telego.Message) {
	if message.From == nil || message.From.IsBot {
		return
	}
	chatID := message.Chat.ID
	if !b.chatFilter.CheckAccess(chatID, message.From.ID) {
		return
	}

	ev := router.Event{
		ID:          uuid.NewString(),
		PlayerID:    message.From.ID,
		DisplayName: displayName(message.From),
		Text:        message.Text,
	}
	if sp := message.SuccessfulPayment; sp != nil {
		ev.Payment = &router.Payment{
			Payload:     sp.InvoicePayload,
			Currency:    sp.Currency,
			TotalAmount: sp.TotalAmount,
		}
	} else if strings.TrimSpace(message.Text) == "" {
		// стикеры, фото и служебные сообщения игру не касаются
		return
	}
	middleware.LogEvent(ev)

	// платёж уже списан, его нельзя терять из-за лимита
	if ev.Payment == nil && !b.rateLimiter.Allow(ev.PlayerID) {
		log.WithField("user_id", ev.PlayerID).Debug("rate limited")
		b.send(ctx, chatID, router.Response{Text: slowDownText})
		return
	}

	b.send(ctx, chatID, b.handler.Handle(ctx, ev))
}

func (b *Bot) handleCallback(ctx context.Context, query *telego.CallbackQuery) {
	// на нажатие отвечаем всегда, даже если ниже случится паника
	var ack *router.Ack
	defer func() {
		b.answerCallback(ctx, query.ID, ack)
	}()

	chatID := query.From.ID
	if query.Message != nil {
		chatID = query.Message.GetChat().ID
	}
	if !b.chatFilter.CheckAccess(chatID, query.From.ID) {
		return
	}

	ev := router.Event{
		ID:          uuid.NewString(),
		PlayerID:    query.From.ID,
		DisplayName: displayName(&query.From),
		ButtonData:  query.Data,
	}
	if ev.ButtonData == "" {
		return
	}
	middleware.LogEvent(ev)

	if !b.rateLimiter.Allow(ev.PlayerID) {
		ack = &router.Ack{Text: slowDownText}
		return
	}

	resp := b.handler.Handle(ctx, ev)
	ack = resp.Ack
	b.send(ctx, chatID, resp)
}

// handlePreCheckout подтверждает счёт, если это наш товар.
func (b *Bot) handlePreCheckout(ctx context.Context, query *telego.PreCheckoutQuery) {
	params := &telego.AnswerPreCheckoutQueryParams{
		PreCheckoutQueryID: query.ID,
		Ok:                 b.paymentsEnabled && query.InvoicePayload == b.paymentPayload,
	}
	if !params.Ok {
		params.ErrorMessage = "Этот товар сейчас недоступен."
	}

	logger := log.WithFields(log.Fields{
		"user_id":  query.From.ID,
		"payload":  query.InvoicePayload,
		"currency": query.Currency,
		"amount":   query.TotalAmount,
		"ok":       params.Ok,
	})
	logger.Info("Pre-checkout")

	if err := b.api.AnswerPreCheckoutQuery(ctx, params); err != nil {
		logger.WithError(err).Error("Ошибка ответа на pre-checkout")
	}
}

// displayName — @username, иначе имя и фамилия.
func displayName(u *telego.User) string {
	if u.Username != "" {
		return u.Username
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// send отправляет ответ роутера в чат.
func (b *Bot) send(ctx context.Context, chatID int64, resp router.Response) {
	if resp.Text == "" {
		return
	}
	msg := tu.Message(tu.ID(chatID), resp.Text)
	switch {
	case len(resp.Buttons) > 0:
		msg = msg.WithReplyMarkup(inlineKeyboard(resp.Buttons))
	case resp.Menu:
		msg = msg.WithReplyMarkup(menuKeyboard())
	}

	if _, err := b.api.SendMessage(ctx, msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

func (b *Bot) answerCallback(ctx context.Context, queryID string, ack *router.Ack) {
	params := tu.CallbackQuery(queryID)
	if ack != nil {
		params = params.WithText(ack.Text)
		if ack.Alert {
			params = params.WithShowAlert()
		}
	}
	if err := b.api.AnswerCallbackQuery(ctx, params); err != nil {
		log.WithError(err).WithField("callback_id", queryID).Warn("Ошибка ответа на нажатие кнопки")
	}
}

func inlineKeyboard(rows [][]router.Button) *telego.InlineKeyboardMarkup {
	kb := make([][]telego.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]telego.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tu.InlineKeyboardButton(btn.Text).WithCallbackData(btn.Data))
		}
		kb = append(kb, tu.InlineKeyboardRow(buttons...))
	}
	return tu.InlineKeyboard(kb...)
}

func menuKeyboard() *telego.ReplyKeyboardMarkup {
	rows := make([][]telego.KeyboardButton, 0, len(router.MenuLayout))
	for _, row := range router.MenuLayout {
		buttons := make([]telego.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tu.KeyboardButton(label))
		}
		rows = append(rows, tu.KeyboardRow(buttons...))
	}
	return tu.Keyboard(rows...).WithResizeKeyboard()
}
