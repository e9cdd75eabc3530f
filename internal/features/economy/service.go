// Package economy — service.go содержит игровую логику: заброс, продажа,
// покупка удочек, локации, квесты, ежедневный бонус и платёжные начисления.
//
// Каждое действие — одна транзакция хранилища, привязанная к игроку.
// Предусловия (баланс, корректный ID) проверяются до первой записи,
// поэтому отказ никогда не оставляет частичных изменений.
package economy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/fishing-bot/internal/common"
	"serotonyl.ru/fishing-bot/internal/config"
	"serotonyl.ru/fishing-bot/internal/features/catalog"
	"serotonyl.ru/fishing-bot/internal/features/loot"
	"serotonyl.ru/fishing-bot/internal/metrics"
)

// Service — движок экономики.
type Service struct {
	store    Store
	catalog  *catalog.Catalog
	resolver *loot.Resolver

	dailyBonus int64
	tz         *time.Location

	// Игроки, которых уже записали в БД: id → имя.
	// Повторный апсерт на каждое сообщение не нужен.
	known *expirable.LRU[int64, string]
}

// NewService создаёт движок экономики.
func NewService(store Store, cat *catalog.Catalog, resolver *loot.Resolver, cfg *config.Config) *Service {
	size := cfg.PlayerCacheSize
	if size <= 0 {
		size = 1
	}
	return &Service{
		store:      store,
		catalog:    cat,
		resolver:   resolver,
		dailyBonus: cfg.EconomyDailyBonus,
		tz:         common.LoadLocation(cfg.AppTimezone),
		known:      expirable.NewLRU[int64, string](size, nil, cfg.PlayerCacheTTL),
	}
}

// Catalog возвращает справочник, с которым работает движок.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// Timezone возвращает игровой часовой пояс.
func (s *Service) Timezone() *time.Location {
	return s.tz
}

// EnsurePlayer создаёт игрока при первом обращении.
// Повторный вызов ничего не меняет, кроме пустого имени на непустое.
func (s *Service) EnsurePlayer(ctx context.Context, playerID int64, username string) error {
	if name, ok := s.known.Get(playerID); ok && (username == "" || name == username) {
		return nil
	}

	p, err := s.store.EnsurePlayer(ctx, NewPlayer{
		ID:       playerID,
		Username: username,
		Rod:      s.catalog.DefaultRod,
		Location: s.catalog.DefaultLocation,
	})
	if err != nil {
		return storeErr(err)
	}
	s.known.Add(playerID, p.Username)
	return nil
}

// Cast — заброс удочки: разыгрывает улов в текущей локации игрока
// с бонусом экипированной удочки и кладёт рыбу в инвентарь.
// Монеты не меняются (кроме наград за квесты на улов).
func (s *Service) Cast(ctx context.Context, playerID int64) (*CastResult, error) {
	var res CastResult
	err := s.store.InTx(ctx, playerID, func(tx Tx) error {
		p, err := tx.LockPlayer(ctx)
		if err != nil {
			return err
		}

		catch := s.resolver.Draw(p.Location, s.catalog.RodBonus(p.Rod))
		if err := tx.AddItem(ctx, catch.Fish, catch.Quantity); err != nil {
			return err
		}

		xp := p.XP + catch.Quantity*s.catalog.Progression.XPPerFish
		level := s.catalog.LevelFor(xp)
		if err := tx.SetProgress(ctx, xp, level); err != nil {
			return err
		}

		completed, err := s.advanceQuests(ctx, tx, catalog.QuestKindCatch, catch.Quantity)
		if err != nil {
			return err
		}

		res = CastResult{
			Catch:     catch,
			Value:     catch.Value(),
			XPGained:  xp - p.XP,
			Level:     level,
			LevelUp:   level > p.Level,
			Completed: completed,
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}

	metrics.CastsTotal.WithLabelValues(res.Catch.Location).Inc()
	metrics.FishCaught.WithLabelValues(res.Catch.Fish).Add(float64(res.Catch.Quantity))
	s.observeQuests(res.Completed)

	log.WithFields(log.Fields{
		"user_id":  playerID,
		"location": res.Catch.Location,
		"fish":     res.Catch.Fish,
		"quantity": res.Catch.Quantity,
	}).Debug("Заброс")
	return &res, nil
}

// SellAll продаёт весь инвентарь по справочным ценам.
// Чтение, подсчёт, начисление и очистка — одна транзакция.
func (s *Service) SellAll(ctx context.Context, playerID int64) (*SaleResult, error) {
	var res SaleResult
	err := s.store.InTx(ctx, playerID, func(tx Tx) error {
		p, err := tx.LockPlayer(ctx)
		if err != nil {
			return err
		}

		items, err := tx.Inventory(ctx)
		if err != nil {
			return err
		}

		res = SaleResult{Balance: p.Coins}
		for _, it := range items {
			if it.Amount <= 0 {
				continue
			}
			price := s.catalog.PriceOf(it.Item)
			line := SoldItem{Item: it.Item, Amount: it.Amount, Price: price, Total: price * it.Amount}
			res.Items = append(res.Items, line)
			res.Total += line.Total
		}
		if len(items) == 0 {
			return nil
		}

		if err := tx.ClearInventory(ctx); err != nil {
			return err
		}
		if res.Total > 0 {
			if err := tx.AddCoins(ctx, res.Total); err != nil {
				return err
			}
		}
		res.Balance += res.Total

		completed, err := s.advanceQuests(ctx, tx, catalog.QuestKindSell, res.Total)
		if err != nil {
			return err
		}
		res.Completed = completed
		for _, c := range completed {
			res.Balance += c.Reward
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}

	if res.Total > 0 {
		metrics.CoinsCredited.WithLabelValues("sale").Add(float64(res.Total))
	}
	s.observeQuests(res.Completed)

	log.WithFields(log.Fields{
		"user_id": playerID,
		"items":   len(res.Items),
		"total":   res.Total,
	}).Info("Продажа улова")
	return &res, nil
}

// BuyRod покупает и экипирует удочку.
// Неизвестная удочка — ErrInvalidInput, нехватка монет — ErrInsufficientFunds.
// Повторная покупка своей же удочки разрешена и снова списывает цену.
func (s *Service) BuyRod(ctx context.Context, playerID int64, rodID string) (*PurchaseResult, error) {
	rod, ok := s.catalog.Rod(rodID)
	if !ok {
		metrics.Purchases.WithLabelValues("unknown", "invalid").Inc()
		return nil, fmt.Errorf("%w: удочка %q не найдена", common.ErrInvalidInput, rodID)
	}

	var res PurchaseResult
	err := s.store.InTx(ctx, playerID, func(tx Tx) error {
		p, err := tx.LockPlayer(ctx)
		if err != nil {
			return err
		}
		if p.Coins < rod.Price {
			return fmt.Errorf("%w: нужно %d, на счету %d", common.ErrInsufficientFunds, rod.Price, p.Coins)
		}

		if rod.Price > 0 {
			if err := tx.AddCoins(ctx, -rod.Price); err != nil {
				return err
			}
		}
		if err := tx.SetRod(ctx, rod.ID); err != nil {
			return err
		}
		if err := tx.AppendPurchase(ctx, rod.ID, rod.Price); err != nil {
			return err
		}

		completed, err := s.advanceQuests(ctx, tx, catalog.QuestKindBuy, 1)
		if err != nil {
			return err
		}

		res = PurchaseResult{Rod: rod, Balance: p.Coins - rod.Price, Completed: completed}
		for _, c := range completed {
			res.Balance += c.Reward
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrInsufficientFunds) {
			metrics.Purchases.WithLabelValues(rod.ID, "insufficient").Inc()
		}
		return nil, storeErr(err)
	}

	metrics.Purchases.WithLabelValues(rod.ID, "ok").Inc()
	if rod.Price > 0 {
		metrics.CoinsDebited.WithLabelValues("rod").Add(float64(rod.Price))
	}
	s.observeQuests(res.Completed)

	log.WithFields(log.Fields{
		"user_id": playerID,
		"rod":     rod.ID,
		"price":   rod.Price,
	}).Info("Покупка удочки")
	return &res, nil
}

// SetLocation меняет локацию игрока. Следующие забросы идут в ней.
func (s *Service) SetLocation(ctx context.Context, playerID int64, locationID string) (catalog.Location, error) {
	loc, ok := s.catalog.Location(locationID)
	if !ok {
		return catalog.Location{}, fmt.Errorf("%w: локация %q не найдена", common.ErrInvalidInput, locationID)
	}

	err := s.store.InTx(ctx, playerID, func(tx Tx) error {
		if _, err := tx.LockPlayer(ctx); err != nil {
			return err
		}
		return tx.SetLocation(ctx, loc.ID)
	})
	if err != nil {
		return catalog.Location{}, storeErr(err)
	}
	return loc, nil
}

// GrantQuestProgress увеличивает прогресс квеста на delta (не выше цели).
// Награда начисляется один раз, при первом достижении цели.
// Возвращает выданную награду или nil, если квест не завершился этим вызовом.
func (s *Service) GrantQuestProgress(ctx context.Context, playerID int64, questKey string, delta int64) (*QuestReward, error) {
	q, ok := s.catalog.Quest(questKey)
	if !ok {
		return nil, fmt.Errorf("%w: квест %q не найден", common.ErrInvalidInput, questKey)
	}
	if delta <= 0 {
		return nil, fmt.Errorf("%w: прогресс должен быть положительным", common.ErrInvalidInput)
	}

	var reward *QuestReward
	err := s.store.InTx(ctx, playerID, func(tx Tx) error {
		if _, err := tx.LockPlayer(ctx); err != nil {
			return err
		}
		r, err := s.applyQuest(ctx, tx, q, delta)
		reward = r
		return err
	})
	if err != nil {
		return nil, storeErr(err)
	}

	if reward != nil {
		s.observeQuests([]QuestReward{*reward})
	}
	return reward, nil
}

// GrantPromoCoins начисляет монеты за подтверждённый платёж.
// Дедупликации нет: повторное подтверждение начислит ещё раз.
func (s *Service) GrantPromoCoins(ctx context.Context, playerID int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: сумма должна быть положительной", common.ErrInvalidInput)
	}

	var balance int64
	err := s.store.InTx(ctx, playerID, func(tx Tx) error {
		p, err := tx.LockPlayer(ctx)
		if err != nil {
			return err
		}
		if err := tx.AddCoins(ctx, amount); err != nil {
			return err
		}
		balance = p.Coins + amount
		return nil
	})
	if err != nil {
		return 0, storeErr(err)
	}

	metrics.CoinsCredited.WithLabelValues("payment").Add(float64(amount))
	log.WithFields(log.Fields{
		"user_id": playerID,
		"amount":  amount,
	}).Info("Начисление за платёж")
	return balance, nil
}

// ClaimDaily выдаёт ежедневный бонус: раз в календарные сутки
// по игровому часовому поясу.
func (s *Service) ClaimDaily(ctx context.Context, playerID int64, now time.Time) (*DailyResult, error) {
	today := common.DateIn(now, s.tz)

	var res DailyResult
	err := s.store.InTx(ctx, playerID, func(tx Tx) error {
		p, err := tx.LockPlayer(ctx)
		if err != nil {
			return err
		}
		if p.LastDaily != nil && p.LastDaily.Format(time.DateOnly) == today.Format(time.DateOnly) {
			return common.ErrDailyAlreadyClaimed
		}

		if err := tx.SetLastDaily(ctx, today); err != nil {
			return err
		}
		if s.dailyBonus > 0 {
			if err := tx.AddCoins(ctx, s.dailyBonus); err != nil {
				return err
			}
		}
		res = DailyResult{Bonus: s.dailyBonus, Balance: p.Coins + s.dailyBonus}
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}

	metrics.CoinsCredited.WithLabelValues("daily").Add(float64(res.Bonus))
	return &res, nil
}

// Profile возвращает игрока (ErrNotFound, если его нет).
func (s *Service) Profile(ctx context.Context, playerID int64) (*Player, error) {
	p, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, storeErr(err)
	}
	return p, nil
}

// Inventory возвращает непустые позиции инвентаря.
func (s *Service) Inventory(ctx context.Context, playerID int64) ([]InventoryEntry, error) {
	items, err := s.store.GetInventory(ctx, playerID)
	if err != nil {
		return nil, storeErr(err)
	}
	out := items[:0]
	for _, it := range items {
		if it.Amount > 0 {
			out = append(out, it)
		}
	}
	return out, nil
}

// Quests возвращает все квесты справочника с прогрессом игрока.
func (s *Service) Quests(ctx context.Context, playerID int64) ([]QuestView, error) {
	rows, err := s.store.GetQuests(ctx, playerID)
	if err != nil {
		return nil, storeErr(err)
	}
	byKey := make(map[string]QuestProgress, len(rows))
	for _, r := range rows {
		byKey[r.QuestKey] = r
	}

	views := make([]QuestView, 0, len(s.catalog.Quests))
	for _, q := range s.catalog.Quests {
		r := byKey[q.ID]
		views = append(views, QuestView{Quest: q, Progress: r.Progress, Completed: r.Completed})
	}
	return views, nil
}

// Leaderboard — топ игроков по монетам.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]Player, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: лимит должен быть положительным", common.ErrInvalidInput)
	}
	top, err := s.store.TopPlayers(ctx, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return top, nil
}

// Purchases — последние покупки игрока, новые сверху.
func (s *Service) Purchases(ctx context.Context, playerID int64, limit int) ([]PurchaseRecord, error) {
	list, err := s.store.GetPurchases(ctx, playerID, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return list, nil
}

// Stats — сводка по экономике.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return st, nil
}

// PruneEmptyInventory удаляет нулевые строки инвентаря, оставшиеся от ручных правок.
func (s *Service) PruneEmptyInventory(ctx context.Context) (int64, error) {
	n, err := s.store.PruneEmptyInventory(ctx)
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

// advanceQuests продвигает все незавершённые квесты вида kind на delta
// внутри текущей транзакции и возвращает завершённые этим действием.
func (s *Service) advanceQuests(ctx context.Context, tx Tx, kind string, delta int64) ([]QuestReward, error) {
	if delta <= 0 {
		return nil, nil
	}
	var done []QuestReward
	for _, q := range s.catalog.QuestsOfKind(kind) {
		r, err := s.applyQuest(ctx, tx, q, delta)
		if err != nil {
			return nil, err
		}
		if r != nil {
			done = append(done, *r)
		}
	}
	return done, nil
}

// applyQuest — единственное место, где меняется прогресс квеста.
// Завершённый квест не трогаем: награда выдаётся ровно один раз.
func (s *Service) applyQuest(ctx context.Context, tx Tx, q catalog.Quest, delta int64) (*QuestReward, error) {
	cur, err := tx.Quest(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	if cur.Completed {
		return nil, nil
	}

	cur.QuestKey = q.ID
	// сравниваем с остатком, а не складываем: огромный delta переполнил бы int64
	if delta >= q.Target-cur.Progress {
		cur.Progress = q.Target
	} else {
		cur.Progress += delta
	}
	cur.Completed = cur.Progress >= q.Target
	if err := tx.SaveQuest(ctx, cur); err != nil {
		return nil, err
	}
	if !cur.Completed {
		return nil, nil
	}

	if q.Reward > 0 {
		if err := tx.AddCoins(ctx, q.Reward); err != nil {
			return nil, err
		}
	}
	return &QuestReward{Quest: q, Reward: q.Reward}, nil
}

func (s *Service) observeQuests(done []QuestReward) {
	for _, c := range done {
		metrics.QuestsCompleted.WithLabelValues(c.Quest.ID).Inc()
		if c.Reward > 0 {
			metrics.CoinsCredited.WithLabelValues("quest").Add(float64(c.Reward))
		}
	}
}

// storeErr оставляет игровые ошибки как есть, остальное — сбой хранилища.
func storeErr(err error) error {
	if err == nil || common.IsGameError(err) || errors.Is(err, common.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
}
