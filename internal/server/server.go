// Package server — HTTP-сервер бота: вебхук Telegram, проверка живости,
// админ-запросы только на чтение и метрики Prometheus.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/mymmrac/telego"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/fishing-bot/internal/config"
	"serotonyl.ru/fishing-bot/internal/features/admin"
)

// maxBodyBytes — предел тела запроса вебхука.
const maxBodyBytes = 1 << 20

// Admin — админ-интерфейс, который сервер отдаёт по HTTP.
type Admin interface {
	Leaderboard(ctx context.Context, c admin.Caller, limit int) ([]admin.LeaderboardEntry, error)
	UserDump(ctx context.Context, c admin.Caller, playerID int64) (*admin.UserDump, error)
}

// UpdateHandler обрабатывает апдейт, пришедший через вебхук.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update telego.Update)
}

// Server — HTTP-сервер.
type Server struct {
	httpServer *http.Server
}

type handlers struct {
	admin         Admin
	updates       UpdateHandler
	webhookSecret string
	defaultLimit  int
	validate      *validator.Validate
}

// New собирает роутер. Если updates == nil, вебхук не монтируется (режим polling).
func New(cfg *config.Config, adm Admin, updates UpdateHandler) *Server {
	h := &handlers{
		admin:         adm,
		updates:       updates,
		webhookSecret: cfg.WebhookSecret,
		defaultLimit:  cfg.EconomyLeaderboardSize,
		validate:      validator.New(),
	}
	if h.defaultLimit <= 0 {
		h.defaultLimit = 10
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(recoverer)
	r.Use(loggingMiddleware)

	r.Get("/", handleHealthz)
	r.Get("/healthz", handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	if updates != nil {
		r.Post("/webhook", h.handleWebhook)
	}

	r.Route("/admin", func(r chi.Router) {
		r.Get("/leaderboard", h.handleLeaderboard)
		r.Get("/user/{id}", h.handleUserDump)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler возвращает корневой обработчик (для тестов и встраивания).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start слушает порт до вызова Stop.
func (s *Server) Start() error {
	log.WithField("addr", s.httpServer.Addr).Info("HTTP-сервер запускается")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ошибка HTTP-сервера: %w", err)
	}
	return nil
}

// Stop останавливает сервер, дожидаясь текущих запросов.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// statusWriter запоминает код ответа для лога.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
		w.ResponseWriter.WriteHeader(status)
	}
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/healthz") || strings.HasPrefix(r.URL.Path, "/metrics") {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		// query не пишем: там токен админки
		log.WithFields(log.Fields{
			"request_id":  middleware.GetReqID(r.Context()),
			"method":      r.Method,
			"path":        r.URL.Path,
			"remote_addr": r.RemoteAddr,
			"status":      sw.status,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("HTTP-запрос")
	})
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.WithFields(log.Fields{
					"component":  "http_recovery",
					"request_id": middleware.GetReqID(r.Context()),
					"panic":      fmt.Sprintf("%v", rec),
				}).Error("ПАНИКА в HTTP-обработчике — восстановлено")
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
