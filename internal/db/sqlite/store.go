// Package sqlite — хранилище экономики в одном файле SQLite (modernc.org/sqlite,
// без cgo). Подходит для локального запуска и тестов.
//
// Пул ограничен одним соединением: транзакции выполняются строго по очереди,
// поэтому операции над одним игроком сериализуются без блокировок строк.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"serotonyl.ru/fishing-bot/internal/common"
	"serotonyl.ru/fishing-bot/internal/features/economy"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const playerColumns = `user_id, username, coins, xp, level, rod, last_daily, location, created_at`

var _ economy.Store = (*Store)(nil)

// Store — хранилище экономики в SQLite.
type Store struct {
	db *sql.DB
}

// Open открывает (или создаёт) базу и применяет миграции.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("не задан путь к базе SQLite")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ошибка создания каталога базы: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия SQLite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ошибка настройки SQLite (%s): %w", p, err)
		}
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.WithField("path", path).Info("База SQLite открыта")
	return &Store{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	dir, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("миграции не найдены: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, dir)
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}
	for _, r := range results {
		log.WithFields(log.Fields{
			"version":  r.Source.Version,
			"duration": r.Duration,
		}).Debug("Миграция SQLite применена")
	}
	return nil
}

func (s *Store) EnsurePlayer(ctx context.Context, p economy.NewPlayer) (*economy.Player, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, rod, location, seq)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM users))
		ON CONFLICT (user_id) DO UPDATE
		SET username = CASE WHEN excluded.username <> '' THEN excluded.username ELSE users.username END
	`, p.ID, p.Username, p.Rod, p.Location)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания игрока: %w", err)
	}
	return s.GetPlayer(ctx, p.ID)
}

// InTx выполняет fn в транзакции на единственном соединении.
func (s *Store) InTx(ctx context.Context, playerID int64, fn func(tx economy.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&playerTx{tx: tx, playerID: playerID}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

func (s *Store) GetPlayer(ctx context.Context, playerID int64) (*economy.Player, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM users WHERE user_id = ?`, playerID)
	return scanPlayer(row)
}

func (s *Store) GetInventory(ctx context.Context, playerID int64) ([]economy.InventoryEntry, error) {
	return queryInventory(ctx, s.db, playerID)
}

func (s *Store) GetQuests(ctx context.Context, playerID int64) ([]economy.QuestProgress, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, quest_key, progress, completed FROM quests
		WHERE user_id = ?
		ORDER BY quest_key
	`, playerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения квестов: %w", err)
	}
	defer rows.Close()

	var out []economy.QuestProgress
	for rows.Next() {
		var q economy.QuestProgress
		if err := rows.Scan(&q.PlayerID, &q.QuestKey, &q.Progress, &q.Completed); err != nil {
			return nil, fmt.Errorf("ошибка чтения квеста: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *Store) GetPurchases(ctx context.Context, playerID int64, limit int) ([]economy.PurchaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, item, price, created_at FROM purchases
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения покупок: %w", err)
	}
	defer rows.Close()

	var out []economy.PurchaseRecord
	for rows.Next() {
		var (
			r       economy.PurchaseRecord
			created string
		)
		if err := rows.Scan(&r.ID, &r.PlayerID, &r.Item, &r.Price, &created); err != nil {
			return nil, fmt.Errorf("ошибка чтения покупки: %w", err)
		}
		r.CreatedAt = parseTimestamp(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// TopPlayers — по убыванию монет; при равенстве по seq, то есть в порядке регистрации.
// user_id здесь алиас rowid, поэтому по нему порядок регистрации не восстановить.
func (s *Store) TopPlayers(ctx context.Context, limit int) ([]economy.Player, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+playerColumns+` FROM users
		ORDER BY coins DESC, seq
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения топа: %w", err)
	}
	defer rows.Close()

	var out []economy.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) Stats(ctx context.Context) (*economy.Stats, error) {
	var st economy.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COALESCE(SUM(coins), 0) FROM users),
			(SELECT COUNT(*) FROM purchases)
	`).Scan(&st.Players, &st.CoinsInCirculation, &st.Purchases)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики: %w", err)
	}
	return &st, nil
}

func (s *Store) PruneEmptyInventory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM inventory WHERE amount = 0`)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки инвентаря: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Close() {
	if err := s.db.Close(); err != nil {
		log.WithError(err).Warn("Ошибка закрытия SQLite")
	}
}

type scanner interface {
	Scan(dest ...any) error
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanPlayer(row scanner) (*economy.Player, error) {
	var (
		p         economy.Player
		lastDaily sql.NullString
		created   string
	)
	err := row.Scan(&p.ID, &p.Username, &p.Coins, &p.XP, &p.Level, &p.Rod, &lastDaily, &p.Location, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения игрока: %w", err)
	}
	if lastDaily.Valid {
		if d, err := time.Parse(time.DateOnly, lastDaily.String); err == nil {
			p.LastDaily = &d
		}
	}
	p.CreatedAt = parseTimestamp(created)
	return &p, nil
}

func queryInventory(ctx context.Context, q querier, playerID int64) ([]economy.InventoryEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT user_id, item, amount FROM inventory
		WHERE user_id = ?
		ORDER BY item
	`, playerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения инвентаря: %w", err)
	}
	defer rows.Close()

	var out []economy.InventoryEntry
	for rows.Next() {
		var it economy.InventoryEntry
		if err := rows.Scan(&it.PlayerID, &it.Item, &it.Amount); err != nil {
			return nil, fmt.Errorf("ошибка чтения инвентаря: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// CURRENT_TIMESTAMP в SQLite — "2006-01-02 15:04:05" в UTC.
func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.DateTime, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
