// Package admin — service.go проверяет токен и собирает ответы админ-интерфейса.
package admin

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/fishing-bot/internal/common"
	"serotonyl.ru/fishing-bot/internal/config"
	"serotonyl.ru/fishing-bot/internal/features/economy"
)

const (
	// Сколько неудачных попыток прощаем одному адресу за окно.
	maxFailedAttempts = 5
	attemptsWindow    = 15 * time.Minute

	purchasesInDump = 20
)

// Economy — запросы к экономике, нужные админке.
type Economy interface {
	Leaderboard(ctx context.Context, limit int) ([]economy.Player, error)
	Profile(ctx context.Context, playerID int64) (*economy.Player, error)
	Inventory(ctx context.Context, playerID int64) ([]economy.InventoryEntry, error)
	Purchases(ctx context.Context, playerID int64, limit int) ([]economy.PurchaseRecord, error)
}

// Service — админ-интерфейс.
type Service struct {
	econ      Economy
	token     string
	tokenHash string

	// адрес → число неудачных попыток; чтение и запись только под mu
	mu       sync.Mutex
	failures *expirable.LRU[string, int]
}

// NewService создаёт админ-сервис. Токен берётся из ADMIN_TOKEN или ADMIN_TOKEN_HASH.
func NewService(econ Economy, cfg *config.Config) *Service {
	return &Service{
		econ:      econ,
		token:     cfg.AdminToken,
		tokenHash: cfg.AdminTokenHash,
		failures:  expirable.NewLRU[string, int](1024, nil, attemptsWindow),
	}
}

// Authorize проверяет токен. После maxFailedAttempts неудач с одного
// адреса отвечает ErrTooManyAttempts до конца окна.
// Попытка засчитывается до сверки токена, при успехе возвращается:
// параллельные запросы не могут проскочить лимит.
func (s *Service) Authorize(c Caller) error {
	attempt, ok := s.reserveAttempt(c.Addr)
	if !ok {
		return common.ErrTooManyAttempts
	}

	if s.match(c.Token) {
		s.releaseAttempt(c.Addr)
		return nil
	}

	log.WithFields(log.Fields{
		"addr":     c.Addr,
		"attempts": attempt,
	}).Warn("Неверный токен администратора")
	return common.ErrForbidden
}

func (s *Service) reserveAttempt(addr string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, _ := s.failures.Get(addr)
	if n >= maxFailedAttempts {
		return n, false
	}
	s.failures.Add(addr, n+1)
	return n + 1, true
}

func (s *Service) releaseAttempt(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, _ := s.failures.Get(addr)
	if n <= 1 {
		s.failures.Remove(addr)
		return
	}
	s.failures.Add(addr, n-1)
}

func (s *Service) match(token string) bool {
	if token == "" {
		return false
	}
	if s.tokenHash != "" {
		return verifyArgon2id(token, s.tokenHash)
	}
	if s.token != "" {
		return verifyPlain(token, s.token)
	}
	// секрет не настроен — админка закрыта
	return false
}

// Leaderboard — топ игроков по монетам с местами.
func (s *Service) Leaderboard(ctx context.Context, c Caller, limit int) ([]LeaderboardEntry, error) {
	if err := s.Authorize(c); err != nil {
		return nil, err
	}

	top, err := s.econ.Leaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}

	out := make([]LeaderboardEntry, 0, len(top))
	for i, p := range top {
		out = append(out, LeaderboardEntry{
			Rank:     i + 1,
			UserID:   p.ID,
			Username: p.Username,
			Coins:    p.Coins,
		})
	}
	return out, nil
}

// UserDump — профиль, инвентарь и последние покупки игрока.
func (s *Service) UserDump(ctx context.Context, c Caller, playerID int64) (*UserDump, error) {
	if err := s.Authorize(c); err != nil {
		return nil, err
	}

	p, err := s.econ.Profile(ctx, playerID)
	if err != nil {
		return nil, err
	}
	items, err := s.econ.Inventory(ctx, playerID)
	if err != nil {
		return nil, err
	}
	purchases, err := s.econ.Purchases(ctx, playerID, purchasesInDump)
	if err != nil {
		return nil, err
	}

	dump := &UserDump{
		Profile: Profile{
			UserID:    p.ID,
			Username:  p.Username,
			Coins:     p.Coins,
			XP:        p.XP,
			Level:     p.Level,
			Rod:       p.Rod,
			Location:  p.Location,
			CreatedAt: p.CreatedAt,
		},
		Inventory: make([]Item, 0, len(items)),
		Purchases: make([]Purchase, 0, len(purchases)),
	}
	if p.LastDaily != nil {
		d := p.LastDaily.Format(time.DateOnly)
		dump.Profile.LastDaily = &d
	}
	for _, it := range items {
		dump.Inventory = append(dump.Inventory, Item{Item: it.Item, Amount: it.Amount})
	}
	for _, pr := range purchases {
		dump.Purchases = append(dump.Purchases, Purchase{ID: pr.ID, Item: pr.Item, Price: pr.Price, CreatedAt: pr.CreatedAt})
	}
	return dump, nil
}

