// Package admin — административные запросы только на чтение:
// топ игроков и полный дамп игрока. Доступ по общему секрету.
// models.go описывает ответы админ-интерфейса (JSON).
package admin

import "time"

// Caller — кто обращается к админ-интерфейсу.
type Caller struct {
	Addr  string // адрес клиента, для учёта неудачных попыток
	Token string
}

// LeaderboardEntry — строка топа.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Coins    int64  `json:"coins"`
}

// Profile — профиль игрока в дампе.
type Profile struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Coins     int64     `json:"coins"`
	XP        int64     `json:"xp"`
	Level     int       `json:"level"`
	Rod       string    `json:"rod"`
	Location  string    `json:"location"`
	LastDaily *string   `json:"last_daily"`
	CreatedAt time.Time `json:"created_at"`
}

// Item — позиция инвентаря.
type Item struct {
	Item   string `json:"item"`
	Amount int64  `json:"amount"`
}

// Purchase — строка журнала покупок.
type Purchase struct {
	ID        int64     `json:"id"`
	Item      string    `json:"item"`
	Price     int64     `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// UserDump — всё, что известно об игроке.
type UserDump struct {
	Profile   Profile    `json:"profile"`
	Inventory []Item     `json:"inventory"`
	Purchases []Purchase `json:"purchases"`
}
