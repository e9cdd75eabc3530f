// Package economy — store.go описывает хранилище экономики.
// Реализации: internal/db/postgres (основная) и internal/db/sqlite.
package economy

import (
	"context"
	"time"
)

// NewPlayer — данные для создания игрока при первом обращении.
type NewPlayer struct {
	ID       int64
	Username string
	Rod      string
	Location string
}

// Store — постоянное хранилище экономики.
//
// Все мутации выполняются через InTx: транзакция привязана к одному игроку,
// и первым делом Tx.LockPlayer блокирует его строку. Поэтому операции над
// одним игроком сериализуются, а над разными — идут параллельно.
type Store interface {
	// EnsurePlayer создаёт игрока, если его нет. Непустое имя существующего
	// игрока пустым не перезаписывается. Возвращает актуальную запись.
	EnsurePlayer(ctx context.Context, p NewPlayer) (*Player, error)

	// InTx выполняет fn в одной транзакции. Ошибка fn откатывает транзакцию.
	InTx(ctx context.Context, playerID int64, fn func(tx Tx) error) error

	GetPlayer(ctx context.Context, playerID int64) (*Player, error)
	GetInventory(ctx context.Context, playerID int64) ([]InventoryEntry, error)
	GetQuests(ctx context.Context, playerID int64) ([]QuestProgress, error)
	GetPurchases(ctx context.Context, playerID int64, limit int) ([]PurchaseRecord, error)

	// TopPlayers — игроки по убыванию монет; при равенстве — в порядке регистрации.
	TopPlayers(ctx context.Context, limit int) ([]Player, error)
	Stats(ctx context.Context) (*Stats, error)

	// PruneEmptyInventory удаляет строки инвентаря с нулевым количеством.
	PruneEmptyInventory(ctx context.Context) (int64, error)

	Close()
}

// Tx — операции внутри транзакции одного игрока.
type Tx interface {
	// LockPlayer читает игрока с блокировкой строки (ErrNotFound, если его нет).
	LockPlayer(ctx context.Context) (*Player, error)

	// AddCoins меняет баланс на delta. Вызывающий проверяет, что баланс
	// не уйдёт в минус; хранилище дополнительно защищено CHECK (coins >= 0).
	AddCoins(ctx context.Context, delta int64) error
	SetProgress(ctx context.Context, xp int64, level int) error
	SetRod(ctx context.Context, rod string) error
	SetLocation(ctx context.Context, location string) error
	SetLastDaily(ctx context.Context, day time.Time) error

	AddItem(ctx context.Context, item string, amount int64) error
	Inventory(ctx context.Context) ([]InventoryEntry, error)
	ClearInventory(ctx context.Context) error

	AppendPurchase(ctx context.Context, item string, price int64) error

	// Quest возвращает прогресс; отсутствующая строка — нулевой прогресс.
	Quest(ctx context.Context, key string) (QuestProgress, error)
	SaveQuest(ctx context.Context, q QuestProgress) error
}
