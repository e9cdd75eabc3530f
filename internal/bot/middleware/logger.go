// Package middleware содержит промежуточные обработчики для логирования,
// восстановления после паники и rate-limiting.
package middleware

import (
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/fishing-bot/internal/router"
)

// maxLoggedRunes — сколько символов текста попадает в лог.
const maxLoggedRunes = 50

// LogEvent логирует входящее событие.
// Записывает: event_id, user_id, имя, текст или данные кнопки (обрезанные).
func LogEvent(ev router.Event) {
	fields := log.Fields{
		"event_id": ev.ID,
		"user_id":  ev.PlayerID,
		"username": ev.DisplayName,
	}
	switch {
	case ev.Payment != nil:
		fields["payment"] = ev.Payment.Payload
		fields["currency"] = ev.Payment.Currency
	case ev.IsButton():
		fields["button"] = ev.ButtonData
	default:
		fields["text"] = truncate(ev.Text, maxLoggedRunes)
	}
	log.WithFields(fields).Debug("Входящее событие")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
