// Package economy — игровая экономика: монеты, улов, удочки, квесты.
// models.go описывает записи хранилища и результаты игровых действий.
package economy

import (
	"time"

	"serotonyl.ru/fishing-bot/internal/features/catalog"
	"serotonyl.ru/fishing-bot/internal/features/loot"
)

// Player — профиль игрока (таблица users).
// Создаётся при первом обращении и никогда не удаляется.
type Player struct {
	ID        int64      `db:"user_id"`    // ID пользователя в чате
	Username  string     `db:"username"`   // Отображаемое имя (может быть пустым)
	Coins     int64      `db:"coins"`      // Баланс, никогда не отрицательный
	XP        int64      `db:"xp"`         // Опыт
	Level     int        `db:"level"`      // Уровень (1 + xp / xp_per_level)
	Rod       string     `db:"rod"`        // Экипированная удочка
	LastDaily *time.Time `db:"last_daily"` // Дата последнего ежедневного бонуса
	Location  string     `db:"location"`   // Текущая локация
	CreatedAt time.Time  `db:"created_at"`
}

// InventoryEntry — количество предмета у игрока (таблица inventory).
type InventoryEntry struct {
	PlayerID int64  `db:"user_id"`
	Item     string `db:"item"`
	Amount   int64  `db:"amount"`
}

// PurchaseRecord — строка журнала покупок (таблица purchases).
// Журнал только пополняется; игровая логика его не читает.
type PurchaseRecord struct {
	ID        int64     `db:"id"`
	PlayerID  int64     `db:"user_id"`
	Item      string    `db:"item"`
	Price     int64     `db:"price"`
	CreatedAt time.Time `db:"created_at"`
}

// QuestProgress — прогресс игрока по квесту (таблица quests).
type QuestProgress struct {
	PlayerID  int64  `db:"user_id"`
	QuestKey  string `db:"quest_key"`
	Progress  int64  `db:"progress"`
	Completed bool   `db:"completed"`
}

// Stats — сводка по экономике для мониторинга.
type Stats struct {
	Players            int64
	CoinsInCirculation int64
	Purchases          int64
}

// QuestReward — квест, выполненный в ходе действия, и выданная награда.
type QuestReward struct {
	Quest  catalog.Quest
	Reward int64
}

// QuestView — квест из справочника вместе с прогрессом игрока.
type QuestView struct {
	Quest     catalog.Quest
	Progress  int64
	Completed bool
}

// CastResult — итог заброса.
type CastResult struct {
	Catch     loot.Catch
	Value     int64 // базовая цена × количество
	XPGained  int64
	Level     int
	LevelUp   bool
	Completed []QuestReward
}

// SoldItem — строка чека продажи.
type SoldItem struct {
	Item   string
	Amount int64
	Price  int64
	Total  int64
}

// SaleResult — итог продажи всего улова.
type SaleResult struct {
	Items     []SoldItem
	Total     int64
	Balance   int64
	Completed []QuestReward
}

// PurchaseResult — итог покупки удочки.
type PurchaseResult struct {
	Rod       catalog.Rod
	Balance   int64
	Completed []QuestReward
}

// DailyResult — итог получения ежедневного бонуса.
type DailyResult struct {
	Bonus   int64
	Balance int64
}
