// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры;
// перед этим подхватывается .env, если он есть.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Режимы получения апдейтов.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Драйверы хранилища.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	// polling (как раньше) или webhook (POST /webhook)
	BotMode string `envconfig:"BOT_MODE" default:"polling"`
	// Публичный URL вебхука; если задан — регистрируем его в Telegram при старте
	WebhookURL    string `envconfig:"WEBHOOK_URL"`
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`
	// Пусто — бот отвечает в любом чате
	AllowedChatIDsRaw string  `envconfig:"ALLOWED_CHAT_IDS"`
	AllowedChatIDs    []int64 `envconfig:"-"` // заполним вручную

	// --- HTTP ---
	Port int `envconfig:"PORT" default:"8000"`

	// --- Database ---
	DBDriver string `envconfig:"DB_DRIVER" default:"postgres"`
	// В Docker дефолт "postgres" (имя сервиса в docker-compose), для локалки DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"fishing_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"data/game.db"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`
	CatalogPath string `envconfig:"CATALOG_PATH"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Admin ---
	// Достаточно одного: токен в открытом виде или его Argon2id-хеш (scripts/generate_hash.go)
	AdminToken     string `envconfig:"ADMIN_TOKEN"`
	AdminTokenHash string `envconfig:"ADMIN_TOKEN_HASH"`

	// --- Economy ---
	EconomyDailyBonus      int64         `envconfig:"ECONOMY_DAILY_BONUS" default:"25"`
	EconomyLeaderboardSize int           `envconfig:"ECONOMY_LEADERBOARD_SIZE" default:"10"`
	PlayerCacheSize        int           `envconfig:"PLAYER_CACHE_SIZE" default:"10000"`
	PlayerCacheTTL         time.Duration `envconfig:"PLAYER_CACHE_TTL" default:"10m"`

	// --- Payments ---
	PaymentPayload     string `envconfig:"PAYMENT_PAYLOAD" default:"coins_pack"`
	PaymentRewardCoins int64  `envconfig:"PAYMENT_REWARD_COINS" default:"500"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"20"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Feature Flags ---
	FeatureDailyEnabled    bool `envconfig:"FEATURE_DAILY_ENABLED" default:"true"`
	FeaturePaymentsEnabled bool `envconfig:"FEATURE_PAYMENTS_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Validate проверяет общие настройки (нужны и боту, и fishctl).
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres:
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH не задан")
		}
	default:
		return fmt.Errorf("DB_DRIVER должен быть %q или %q, получено %q", DriverPostgres, DriverSQLite, c.DBDriver)
	}
	if c.EconomyDailyBonus < 0 {
		return fmt.Errorf("ECONOMY_DAILY_BONUS должен быть >= 0")
	}
	if c.PaymentRewardCoins <= 0 {
		return fmt.Errorf("PAYMENT_REWARD_COINS должен быть > 0")
	}
	if c.EconomyLeaderboardSize <= 0 {
		return fmt.Errorf("ECONOMY_LEADERBOARD_SIZE должен быть > 0")
	}
	return nil
}

// ValidateBot проверяет настройки, без которых бот не запустится.
func (c *Config) ValidateBot() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN не задан")
	}
	if c.AdminToken == "" && c.AdminTokenHash == "" {
		return fmt.Errorf("нужен ADMIN_TOKEN или ADMIN_TOKEN_HASH")
	}
	switch c.BotMode {
	case ModePolling:
	case ModeWebhook:
		if c.WebhookURL == "" {
			return fmt.Errorf("BOT_MODE=webhook требует WEBHOOK_URL")
		}
	default:
		return fmt.Errorf("BOT_MODE должен быть %q или %q", ModePolling, ModeWebhook)
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	return nil
}

// Load читает .env (если есть) и переменные окружения.
func Load() (*Config, error) {
	// .env необязателен: в Docker переменные приходят из compose
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AllowedChatIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ALLOWED_CHAT_IDS parse: %w", err)
	}
	cfg.AllowedChatIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
