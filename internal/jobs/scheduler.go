// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ночная чистка инвентаря
// и ежечасное обновление сводных метрик.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/fishing-bot/internal/features/economy"
	"serotonyl.ru/fishing-bot/internal/metrics"
)

// Расписание задач.
const (
	pruneSpec = "0 4 * * *"
	statsSpec = "0 * * * *"
)

// Maintenance — обслуживающие операции экономики.
type Maintenance interface {
	PruneEmptyInventory(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*economy.Stats, error)
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron *cron.Cron
	econ Maintenance
}

// NewScheduler создаёт планировщик в часовом поясе игры.
func NewScheduler(econ Maintenance, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc)),
		econ: econ,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(pruneSpec, func() { s.PruneInventory(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(statsSpec, func() { s.RefreshStats(ctx) }); err != nil {
		return err
	}

	// метрики сразу, не дожидаясь первого часа
	s.RefreshStats(ctx)

	s.cron.Start()
	log.WithField("tz", s.cron.Location().String()).Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт выполняющиеся задачи.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

// PruneInventory удаляет нулевые строки инвентаря. Движок их не создаёт,
// они появляются только после ручных правок в БД.
func (s *Scheduler) PruneInventory(ctx context.Context) {
	n, err := s.econ.PruneEmptyInventory(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка чистки инвентаря")
		return
	}
	log.WithField("rows", n).Info("[CRON] Пустые строки инвентаря удалены")
}

// RefreshStats обновляет сводные метрики экономики.
func (s *Scheduler) RefreshStats(ctx context.Context) {
	st, err := s.econ.Stats(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка сбора статистики")
		return
	}
	metrics.PlayersTotal.Set(float64(st.Players))
	metrics.CoinsInCirculation.Set(float64(st.CoinsInCirculation))
	log.WithFields(log.Fields{
		"players":   st.Players,
		"coins":     st.CoinsInCirculation,
		"purchases": st.Purchases,
	}).Debug("[CRON] Статистика обновлена")
}
