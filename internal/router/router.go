package router

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/fishing-bot/internal/common"
	"serotonyl.ru/fishing-bot/internal/config"
	"serotonyl.ru/fishing-bot/internal/features/catalog"
	"serotonyl.ru/fishing-bot/internal/features/economy"
	"serotonyl.ru/fishing-bot/internal/metrics"
)

// Engine — операции экономики, нужные роутеру.
type Engine interface {
	EnsurePlayer(ctx context.Context, playerID int64, username string) error
	Cast(ctx context.Context, playerID int64) (*economy.CastResult, error)
	SellAll(ctx context.Context, playerID int64) (*economy.SaleResult, error)
	BuyRod(ctx context.Context, playerID int64, rodID string) (*economy.PurchaseResult, error)
	SetLocation(ctx context.Context, playerID int64, locationID string) (catalog.Location, error)
	GrantPromoCoins(ctx context.Context, playerID int64, amount int64) (int64, error)
	ClaimDaily(ctx context.Context, playerID int64, now time.Time) (*economy.DailyResult, error)

	Profile(ctx context.Context, playerID int64) (*economy.Player, error)
	Inventory(ctx context.Context, playerID int64) ([]economy.InventoryEntry, error)
	Quests(ctx context.Context, playerID int64) ([]economy.QuestView, error)
	Leaderboard(ctx context.Context, limit int) ([]economy.Player, error)

	Catalog() *catalog.Catalog
	Timezone() *time.Location
}

// Router — классификация события и вызов движка.
type Router struct {
	engine Engine

	leaderboardSize int
	dailyEnabled    bool
	paymentsEnabled bool
	paymentPayload  string
	paymentReward   int64

	now func() time.Time
}

// New создаёт роутер.
func New(engine Engine, cfg *config.Config) *Router {
	size := cfg.EconomyLeaderboardSize
	if size <= 0 {
		size = 10
	}
	return &Router{
		engine:          engine,
		leaderboardSize: size,
		dailyEnabled:    cfg.FeatureDailyEnabled,
		paymentsEnabled: cfg.FeaturePaymentsEnabled,
		paymentPayload:  cfg.PaymentPayload,
		paymentReward:   cfg.PaymentRewardCoins,
		now:             time.Now,
	}
}

// Handle обрабатывает одно событие и всегда возвращает ровно один ответ.
// Для событий от кнопок в ответе всегда есть Ack, в том числе при ошибке.
func (r *Router) Handle(ctx context.Context, ev Event) (resp Response) {
	cmd := Classify(ev)
	metrics.Intents.WithLabelValues(string(cmd.Intent)).Inc()

	logger := log.WithFields(log.Fields{
		"event_id": ev.ID,
		"user_id":  ev.PlayerID,
		"intent":   cmd.Intent,
	})
	logger.Debug("Событие распознано")

	if ev.IsButton() {
		defer func() {
			if resp.Ack == nil {
				resp.Ack = &Ack{}
			}
		}()
	}

	if err := r.engine.EnsurePlayer(ctx, ev.PlayerID, ev.DisplayName); err != nil {
		return r.fail(logger, ev, err)
	}

	resp, err := r.dispatch(ctx, ev, cmd)
	if err != nil {
		return r.fail(logger, ev, err)
	}
	return resp
}

func (r *Router) dispatch(ctx context.Context, ev Event, cmd Command) (Response, error) {
	id := ev.PlayerID

	switch cmd.Intent {
	case IntentStart:
		return renderStart(ev.DisplayName), nil

	case IntentCast:
		res, err := r.engine.Cast(ctx, id)
		if err != nil {
			return Response{}, err
		}
		return r.renderCast(res), nil

	case IntentShowInventory:
		items, err := r.engine.Inventory(ctx, id)
		if err != nil {
			return Response{}, err
		}
		return r.renderInventory(items), nil

	case IntentSellAll:
		res, err := r.engine.SellAll(ctx, id)
		if err != nil {
			return Response{}, err
		}
		return renderSale(res), nil

	case IntentOpenShop:
		p, err := r.engine.Profile(ctx, id)
		if err != nil {
			return Response{}, err
		}
		return r.renderShop(p), nil

	case IntentBuyRod:
		res, err := r.engine.BuyRod(ctx, id, cmd.Arg)
		if err != nil {
			return Response{}, err
		}
		return renderPurchase(res), nil

	case IntentShowLeaderboard:
		top, err := r.engine.Leaderboard(ctx, r.leaderboardSize)
		if err != nil {
			return Response{}, err
		}
		return renderLeaderboard(top), nil

	case IntentShowQuests:
		views, err := r.engine.Quests(ctx, id)
		if err != nil {
			return Response{}, err
		}
		return renderQuests(views), nil

	case IntentShowLocations:
		p, err := r.engine.Profile(ctx, id)
		if err != nil {
			return Response{}, err
		}
		return r.renderLocations(p), nil

	case IntentSetLocation:
		loc, err := r.engine.SetLocation(ctx, id, cmd.Arg)
		if err != nil {
			return Response{}, err
		}
		return renderLocationSet(loc), nil

	case IntentProfile:
		p, err := r.engine.Profile(ctx, id)
		if err != nil {
			return Response{}, err
		}
		return r.renderProfile(p), nil

	case IntentDaily:
		if !r.dailyEnabled {
			return Response{Text: "🎁 Ежедневный бонус временно отключён"}, nil
		}
		res, err := r.engine.ClaimDaily(ctx, id, r.now())
		if err != nil {
			return Response{}, err
		}
		return renderDaily(res), nil

	case IntentPayment:
		return r.handlePayment(ctx, ev)

	default:
		return renderUnknown(), nil
	}
}

// handlePayment начисляет монеты за подтверждённый платёж.
// Нераспознанный платёж логируется и отбрасывается, игрок получает нейтральный ответ.
func (r *Router) handlePayment(ctx context.Context, ev Event) (Response, error) {
	p := ev.Payment

	var perr *common.PaymentPayloadError
	switch {
	case !r.paymentsEnabled:
		perr = &common.PaymentPayloadError{Payload: p.Payload, Currency: p.Currency, Reason: "платежи отключены"}
	case p.Payload != r.paymentPayload:
		perr = &common.PaymentPayloadError{Payload: p.Payload, Currency: p.Currency, Reason: "неизвестный товар"}
	}
	if perr != nil {
		metrics.RouterErrors.WithLabelValues("payment_payload").Inc()
		log.WithError(perr).WithFields(log.Fields{
			"event_id": ev.ID,
			"user_id":  ev.PlayerID,
			"amount":   p.TotalAmount,
		}).Warn("Платёж отброшен")
		return Response{Text: "🧾 Платёж получен, но товар не распознан. Напиши администратору."}, nil
	}

	balance, err := r.engine.GrantPromoCoins(ctx, ev.PlayerID, r.paymentReward)
	if err != nil {
		return Response{}, err
	}
	return renderPayment(r.paymentReward, balance), nil
}

// fail превращает ошибку в одно понятное сообщение.
func (r *Router) fail(logger *log.Entry, ev Event, err error) Response {
	kind, text := describeError(err)
	metrics.RouterErrors.WithLabelValues(kind).Inc()

	entry := logger.WithError(err).WithField("kind", kind)
	if kind == "store_unavailable" {
		entry.Error("Ошибка обработки события")
	} else {
		entry.Debug("Действие отклонено")
	}

	resp := Response{Text: text}
	if ev.IsButton() {
		resp.Ack = &Ack{Text: text, Alert: kind == "insufficient_funds"}
	}
	return resp
}

func describeError(err error) (kind, text string) {
	switch {
	case errors.Is(err, common.ErrInsufficientFunds):
		return "insufficient_funds", "😕 Недостаточно монет. Продай улов и возвращайся!"
	case errors.Is(err, common.ErrInvalidInput):
		return "invalid_input", "🤔 Такого нет. Загляни в /shop или /locations."
	case errors.Is(err, common.ErrDailyAlreadyClaimed):
		return "daily_claimed", "⏳ Бонус уже получен сегодня. Приходи завтра!"
	case errors.Is(err, common.ErrNotFound):
		return "not_found", "Профиль не найден. Нажми /start."
	default:
		return "store_unavailable", "⚠️ Что-то пошло не так, попробуй ещё раз чуть позже."
	}
}
