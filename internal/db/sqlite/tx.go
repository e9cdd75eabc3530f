package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"serotonyl.ru/fishing-bot/internal/features/economy"
)

type playerTx struct {
	tx       *sql.Tx
	playerID int64
}

// LockPlayer — обычный SELECT: соединение одно, транзакция и так единственная.
func (t *playerTx) LockPlayer(ctx context.Context) (*economy.Player, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM users WHERE user_id = ?`, t.playerID)
	return scanPlayer(row)
}

func (t *playerTx) AddCoins(ctx context.Context, delta int64) error {
	return t.exec(ctx, "изменения баланса",
		`UPDATE users SET coins = coins + ? WHERE user_id = ?`, delta, t.playerID)
}

func (t *playerTx) SetProgress(ctx context.Context, xp int64, level int) error {
	return t.exec(ctx, "обновления опыта",
		`UPDATE users SET xp = ?, level = ? WHERE user_id = ?`, xp, level, t.playerID)
}

func (t *playerTx) SetRod(ctx context.Context, rod string) error {
	return t.exec(ctx, "смены удочки",
		`UPDATE users SET rod = ? WHERE user_id = ?`, rod, t.playerID)
}

func (t *playerTx) SetLocation(ctx context.Context, location string) error {
	return t.exec(ctx, "смены локации",
		`UPDATE users SET location = ? WHERE user_id = ?`, location, t.playerID)
}

func (t *playerTx) SetLastDaily(ctx context.Context, day time.Time) error {
	return t.exec(ctx, "записи ежедневного бонуса",
		`UPDATE users SET last_daily = ? WHERE user_id = ?`, day.Format(time.DateOnly), t.playerID)
}

func (t *playerTx) AddItem(ctx context.Context, item string, amount int64) error {
	return t.exec(ctx, "добавления в инвентарь", `
		INSERT INTO inventory (user_id, item, amount)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, item) DO UPDATE SET amount = inventory.amount + excluded.amount
	`, t.playerID, item, amount)
}

func (t *playerTx) Inventory(ctx context.Context) ([]economy.InventoryEntry, error) {
	return queryInventory(ctx, t.tx, t.playerID)
}

func (t *playerTx) ClearInventory(ctx context.Context) error {
	return t.exec(ctx, "очистки инвентаря",
		`DELETE FROM inventory WHERE user_id = ?`, t.playerID)
}

func (t *playerTx) AppendPurchase(ctx context.Context, item string, price int64) error {
	return t.exec(ctx, "записи покупки",
		`INSERT INTO purchases (user_id, item, price) VALUES (?, ?, ?)`, t.playerID, item, price)
}

func (t *playerTx) Quest(ctx context.Context, key string) (economy.QuestProgress, error) {
	q := economy.QuestProgress{PlayerID: t.playerID, QuestKey: key}
	err := t.tx.QueryRowContext(ctx, `
		SELECT progress, completed FROM quests
		WHERE user_id = ? AND quest_key = ?
	`, t.playerID, key).Scan(&q.Progress, &q.Completed)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return q, fmt.Errorf("ошибка получения квеста: %w", err)
	}
	return q, nil
}

func (t *playerTx) SaveQuest(ctx context.Context, q economy.QuestProgress) error {
	return t.exec(ctx, "сохранения квеста", `
		INSERT INTO quests (user_id, quest_key, progress, completed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, quest_key) DO UPDATE
		SET progress = excluded.progress, completed = excluded.completed
	`, t.playerID, q.QuestKey, q.Progress, q.Completed)
}

func (t *playerTx) exec(ctx context.Context, what, query string, args ...any) error {
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("ошибка %s: %w", what, err)
	}
	return nil
}
