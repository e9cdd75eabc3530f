// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: хранилище, справочник, движок экономики, роутер,
// админка, транспорт Telegram, HTTP-сервер и планировщик.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/fishing-bot/internal/bot"
	"serotonyl.ru/fishing-bot/internal/config"
	"serotonyl.ru/fishing-bot/internal/db/postgres"
	"serotonyl.ru/fishing-bot/internal/db/sqlite"
	"serotonyl.ru/fishing-bot/internal/features/admin"
	"serotonyl.ru/fishing-bot/internal/features/catalog"
	"serotonyl.ru/fishing-bot/internal/features/economy"
	"serotonyl.ru/fishing-bot/internal/features/loot"
	"serotonyl.ru/fishing-bot/internal/jobs"
	"serotonyl.ru/fishing-bot/internal/router"
	"serotonyl.ru/fishing-bot/internal/server"
)

const shutdownTimeout = 10 * time.Second

// App содержит все компоненты приложения.
type App struct {
	cfg *config.Config

	Store     economy.Store
	Economy   *economy.Service
	Bot       *bot.Bot
	BotAPI    *telego.Bot
	Server    *server.Server
	Scheduler *jobs.Scheduler
}

// OpenStore открывает хранилище по DB_DRIVER и накатывает миграции.
func OpenStore(ctx context.Context, cfg *config.Config) (economy.Store, error) {
	if cfg.DBDriver == config.DriverSQLite {
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.WithField("path", cfg.SQLitePath).Info("Хранилище: SQLite")
		return store, nil
	}

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}
	log.WithField("host", cfg.DBHost).Info("Хранилище: PostgreSQL")
	return postgres.NewStore(pool), nil
}

// NewEconomy собирает движок экономики поверх открытого хранилища.
func NewEconomy(store economy.Store, cfg *config.Config) (*economy.Service, error) {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки справочника: %w", err)
	}
	log.WithFields(log.Fields{
		"rods":      len(cat.Rods),
		"locations": len(cat.Locations),
		"quests":    len(cat.Quests),
	}).Info("Справочник загружен")

	return economy.NewService(store, cat, loot.NewResolver(cat), cfg), nil
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.ValidateBot(); err != nil {
		return nil, err
	}

	// === 1. Хранилище ===
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// === 2. Экономика ===
	econ, err := NewEconomy(store, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	// === 3. Telegram Bot API ===
	botAPI, err := telego.NewBot(cfg.TelegramBotToken, telego.WithLogger(log.StandardLogger()))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	me, err := botAPI.GetMe(ctx)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("ошибка авторизации в Telegram: %w", err)
	}
	log.Infof("Авторизован как @%s", me.Username)

	// === 4. Роутер и транспорт ===
	b := bot.New(botAPI, router.New(econ, cfg), cfg)

	// === 5. HTTP: вебхук только в режиме webhook ===
	var updates server.UpdateHandler
	if cfg.BotMode == config.ModeWebhook {
		updates = b
	}
	srv := server.New(cfg, admin.NewService(econ, cfg), updates)

	// === 6. Планировщик задач ===
	scheduler := jobs.NewScheduler(econ, econ.Timezone())

	return &App{
		cfg:       cfg,
		Store:     store,
		Economy:   econ,
		Bot:       b,
		BotAPI:    botAPI,
		Server:    srv,
		Scheduler: scheduler,
	}, nil
}

// Run запускает планировщик, HTTP-сервер и приём апдейтов и блокируется
// до отмены ctx или падения сервера.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("ошибка запуска планировщика: %w", err)
	}
	defer a.Scheduler.Stop()

	serverErr := make(chan error, 1)
	go func() { serverErr <- a.Server.Start() }()

	botDone := make(chan struct{})
	if err := a.startUpdates(ctx, botDone); err != nil {
		cancel()
		a.stopServer()
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErr:
	}

	cancel()
	a.stopServer()
	<-botDone
	return runErr
}

// startUpdates включает polling или регистрирует вебхук.
func (a *App) startUpdates(ctx context.Context, done chan<- struct{}) error {
	if a.cfg.BotMode == config.ModeWebhook {
		maxConns := min(a.cfg.BotMaxInflight, 100)
		err := a.BotAPI.SetWebhook(ctx, &telego.SetWebhookParams{
			URL:            a.cfg.WebhookURL,
			SecretToken:    a.cfg.WebhookSecret,
			MaxConnections: maxConns,
			AllowedUpdates: bot.AllowedUpdates,
		})
		if err != nil {
			close(done)
			return fmt.Errorf("ошибка регистрации вебхука: %w", err)
		}
		log.WithField("url", a.cfg.WebhookURL).Info("Вебхук зарегистрирован")
		close(done)
		return nil
	}

	// вебхук, оставшийся от прошлого запуска, мешает getUpdates
	if err := a.BotAPI.DeleteWebhook(ctx, &telego.DeleteWebhookParams{}); err != nil {
		log.WithError(err).Warn("Не удалось снять вебхук")
	}
	updates, err := a.BotAPI.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        a.cfg.BotUpdateTimeoutSeconds,
		AllowedUpdates: bot.AllowedUpdates,
	})
	if err != nil {
		close(done)
		return fmt.Errorf("ошибка запуска polling: %w", err)
	}
	go func() {
		defer close(done)
		a.Bot.Run(ctx, updates)
	}()
	return nil
}

func (a *App) stopServer() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Server.Stop(ctx); err != nil {
		log.WithError(err).Warn("HTTP-сервер остановлен с ошибкой")
	}
}

// Close освобождает ресурсы.
func (a *App) Close() {
	a.Bot.Close()
	a.Store.Close()
}
