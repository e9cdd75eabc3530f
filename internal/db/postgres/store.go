package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/fishing-bot/internal/common"
	"serotonyl.ru/fishing-bot/internal/features/economy"
)

const playerColumns = `user_id, username, coins, xp, level, rod, last_daily, location, created_at`

var _ economy.Store = (*Store)(nil)

// Store — хранилище экономики в PostgreSQL.
// Операции над одним игроком сериализуются блокировкой строки users (FOR UPDATE).
type Store struct {
	pool *pgxpool.Pool
}

// NewStore создаёт хранилище поверх пула.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsurePlayer создаёт игрока или обновляет имя, если пришло непустое.
func (s *Store) EnsurePlayer(ctx context.Context, p economy.NewPlayer) (*economy.Player, error) {
	rows, err := s.pool.Query(ctx, `
		INSERT INTO users (user_id, username, rod, location)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET username = CASE WHEN EXCLUDED.username <> '' THEN EXCLUDED.username ELSE users.username END
		RETURNING `+playerColumns,
		p.ID, p.Username, p.Rod, p.Location,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания игрока: %w", err)
	}
	player, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[economy.Player])
	if err != nil {
		return nil, fmt.Errorf("ошибка создания игрока: %w", err)
	}
	return player, nil
}

// InTx выполняет fn в транзакции. Rollback после Commit — no-op.
func (s *Store) InTx(ctx context.Context, playerID int64, fn func(tx economy.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&playerTx{tx: tx, playerID: playerID}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// GetPlayer возвращает игрока или common.ErrNotFound.
func (s *Store) GetPlayer(ctx context.Context, playerID int64) (*economy.Player, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+playerColumns+` FROM users WHERE user_id = $1`, playerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения игрока: %w", err)
	}
	return collectPlayer(rows)
}

func (s *Store) GetInventory(ctx context.Context, playerID int64) ([]economy.InventoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, item, amount FROM inventory
		WHERE user_id = $1
		ORDER BY item
	`, playerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения инвентаря: %w", err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[economy.InventoryEntry])
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения инвентаря: %w", err)
	}
	return items, nil
}

func (s *Store) GetQuests(ctx context.Context, playerID int64) ([]economy.QuestProgress, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, quest_key, progress, completed FROM quests
		WHERE user_id = $1
		ORDER BY quest_key
	`, playerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения квестов: %w", err)
	}
	quests, err := pgx.CollectRows(rows, pgx.RowToStructByName[economy.QuestProgress])
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения квестов: %w", err)
	}
	return quests, nil
}

// GetPurchases возвращает последние покупки, новые сверху.
func (s *Store) GetPurchases(ctx context.Context, playerID int64, limit int) ([]economy.PurchaseRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, item, price, created_at FROM purchases
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения покупок: %w", err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[economy.PurchaseRecord])
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения покупок: %w", err)
	}
	return list, nil
}

// TopPlayers — по убыванию монет, при равенстве раньше зарегистрированные выше (seq).
func (s *Store) TopPlayers(ctx context.Context, limit int) ([]economy.Player, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+playerColumns+` FROM users
		ORDER BY coins DESC, seq
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения топа: %w", err)
	}
	top, err := pgx.CollectRows(rows, pgx.RowToStructByName[economy.Player])
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения топа: %w", err)
	}
	return top, nil
}

func (s *Store) Stats(ctx context.Context) (*economy.Stats, error) {
	var st economy.Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COALESCE(SUM(coins), 0)::BIGINT FROM users),
			(SELECT COUNT(*) FROM purchases)
	`).Scan(&st.Players, &st.CoinsInCirculation, &st.Purchases)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики: %w", err)
	}
	return &st, nil
}

func (s *Store) PruneEmptyInventory(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM inventory WHERE amount = 0`)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки инвентаря: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close закрывает пул.
func (s *Store) Close() {
	s.pool.Close()
}

func collectPlayer(rows pgx.Rows) (*economy.Player, error) {
	p, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[economy.Player])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения игрока: %w", err)
	}
	return p, nil
}
