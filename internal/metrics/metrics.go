// Package metrics — счётчики Prometheus для игровой экономики и бота.
// Отдаются по GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fishing_bot"

// Игровые действия
var (
	CastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "casts_total",
			Help:      "Количество забросов по локациям",
		},
		[]string{"location"},
	)

	FishCaught = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fish_caught_total",
			Help:      "Поймано рыбы по видам",
		},
		[]string{"fish"},
	)

	CoinsCredited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coins_credited_total",
			Help:      "Начислено монет по источникам",
		},
		[]string{"source"},
	)

	CoinsDebited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coins_debited_total",
			Help:      "Списано монет по назначению",
		},
		[]string{"reason"},
	)

	Purchases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchases_total",
			Help:      "Попытки покупки удочек по результату",
		},
		[]string{"rod", "result"},
	)

	QuestsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quests_completed_total",
			Help:      "Выполнено квестов",
		},
		[]string{"quest"},
	)
)

// Бот
var (
	Intents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Входящие события по распознанному намерению",
		},
		[]string{"intent"},
	)

	RouterErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "router_errors_total",
			Help:      "Ошибки обработки событий по виду",
		},
		[]string{"kind"},
	)

	UpdatesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "updates_in_flight",
			Help:      "Апдейты в обработке",
		},
	)
)

// Сводка, обновляется планировщиком
var (
	PlayersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "players",
			Help:      "Зарегистрированные игроки",
		},
	)

	CoinsInCirculation = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coins_in_circulation",
			Help:      "Сумма балансов всех игроков",
		},
	)
)
