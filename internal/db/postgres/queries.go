// Package postgres — queries.go содержит операции внутри транзакции игрока.
// Все запросы идут через один pgx.Tx; строка users заблокирована LockPlayer.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/fishing-bot/internal/features/economy"
)

type playerTx struct {
	tx       pgx.Tx
	playerID int64
}

// LockPlayer — SELECT ... FOR UPDATE: параллельные операции над этим
// игроком ждут, пока транзакция не завершится.
func (t *playerTx) LockPlayer(ctx context.Context) (*economy.Player, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+playerColumns+` FROM users WHERE user_id = $1 FOR UPDATE`, t.playerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка блокировки игрока: %w", err)
	}
	return collectPlayer(rows)
}

func (t *playerTx) AddCoins(ctx context.Context, delta int64) error {
	return t.exec(ctx, "изменения баланса",
		`UPDATE users SET coins = coins + $2 WHERE user_id = $1`, t.playerID, delta)
}

func (t *playerTx) SetProgress(ctx context.Context, xp int64, level int) error {
	return t.exec(ctx, "обновления опыта",
		`UPDATE users SET xp = $2, level = $3 WHERE user_id = $1`, t.playerID, xp, level)
}

func (t *playerTx) SetRod(ctx context.Context, rod string) error {
	return t.exec(ctx, "смены удочки",
		`UPDATE users SET rod = $2 WHERE user_id = $1`, t.playerID, rod)
}

func (t *playerTx) SetLocation(ctx context.Context, location string) error {
	return t.exec(ctx, "смены локации",
		`UPDATE users SET location = $2 WHERE user_id = $1`, t.playerID, location)
}

func (t *playerTx) SetLastDaily(ctx context.Context, day time.Time) error {
	return t.exec(ctx, "записи ежедневного бонуса",
		`UPDATE users SET last_daily = $2 WHERE user_id = $1`, t.playerID, day)
}

func (t *playerTx) AddItem(ctx context.Context, item string, amount int64) error {
	return t.exec(ctx, "добавления в инвентарь", `
		INSERT INTO inventory (user_id, item, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, item) DO UPDATE SET amount = inventory.amount + EXCLUDED.amount
	`, t.playerID, item, amount)
}

func (t *playerTx) Inventory(ctx context.Context) ([]economy.InventoryEntry, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT user_id, item, amount FROM inventory
		WHERE user_id = $1
		ORDER BY item
	`, t.playerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения инвентаря: %w", err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[economy.InventoryEntry])
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения инвентаря: %w", err)
	}
	return items, nil
}

func (t *playerTx) ClearInventory(ctx context.Context) error {
	return t.exec(ctx, "очистки инвентаря",
		`DELETE FROM inventory WHERE user_id = $1`, t.playerID)
}

func (t *playerTx) AppendPurchase(ctx context.Context, item string, price int64) error {
	return t.exec(ctx, "записи покупки",
		`INSERT INTO purchases (user_id, item, price) VALUES ($1, $2, $3)`, t.playerID, item, price)
}

func (t *playerTx) Quest(ctx context.Context, key string) (economy.QuestProgress, error) {
	q := economy.QuestProgress{PlayerID: t.playerID, QuestKey: key}
	err := t.tx.QueryRow(ctx, `
		SELECT progress, completed FROM quests
		WHERE user_id = $1 AND quest_key = $2
	`, t.playerID, key).Scan(&q.Progress, &q.Completed)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return q, fmt.Errorf("ошибка получения квеста: %w", err)
	}
	return q, nil
}

func (t *playerTx) SaveQuest(ctx context.Context, q economy.QuestProgress) error {
	return t.exec(ctx, "сохранения квеста", `
		INSERT INTO quests (user_id, quest_key, progress, completed)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, quest_key) DO UPDATE
		SET progress = EXCLUDED.progress, completed = EXCLUDED.completed
	`, t.playerID, q.QuestKey, q.Progress, q.Completed)
}

func (t *playerTx) exec(ctx context.Context, what, query string, args ...any) error {
	if _, err := t.tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("ошибка %s: %w", what, err)
	}
	return nil
}
