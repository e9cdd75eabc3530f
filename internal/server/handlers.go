package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/fishing-bot/internal/common"
	"serotonyl.ru/fishing-bot/internal/features/admin"
)

// secretHeader — заголовок, которым Telegram подписывает вызовы вебхука.
const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

type leaderboardQuery struct {
	Limit int `validate:"min=1,max=100"`
}

type userQuery struct {
	ID int64 `validate:"required"`
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret != "" {
		got := r.Header.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) != 1 {
			writeError(w, http.StatusUnauthorized, "bad secret token")
			return
		}
	}

	var update telego.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&update); err != nil {
		log.WithError(err).WithField("request_id", middleware.GetReqID(r.Context())).Warn("Не удалось разобрать апдейт вебхука")
		writeError(w, http.StatusBadRequest, "invalid update")
		return
	}

	// апдейт дорабатываем даже если Telegram оборвал соединение
	h.updates.HandleUpdate(context.WithoutCancel(r.Context()), update)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handlers) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := leaderboardQuery{Limit: h.defaultLimit}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		q.Limit = n
	}
	if err := h.validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
		return
	}

	top, err := h.admin.Leaderboard(r.Context(), callerFrom(r), q.Limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": top})
}

func (h *handlers) handleUserDump(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}
	if err := h.validate.Struct(userQuery{ID: id}); err != nil {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	dump, err := h.admin.UserDump(r.Context(), callerFrom(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dump)
}

// callerFrom достаёт токен из ?token= или заголовка X-Admin-Token.
func callerFrom(r *http.Request) admin.Caller {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("X-Admin-Token")
	}
	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return admin.Caller{Addr: addr, Token: token}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, common.ErrTooManyAttempts):
		writeError(w, http.StatusTooManyRequests, "too many attempts")
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, common.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid input")
	default:
		log.WithError(err).WithField("request_id", middleware.GetReqID(r.Context())).Error("Ошибка админ-запроса")
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
