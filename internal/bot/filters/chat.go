// Package filters решает, в каких чатах бот отвечает.
package filters

import (
	log "github.com/sirupsen/logrus"
)

// ChatFilter пропускает события только из разрешённых чатов.
// Пустой список разрешает все чаты.
type ChatFilter struct {
	allowed map[int64]struct{}
}

// NewChatFilter создаёт фильтр по списку ALLOWED_CHAT_IDS.
func NewChatFilter(allowedChatIDs []int64) *ChatFilter {
	f := &ChatFilter{allowed: make(map[int64]struct{}, len(allowedChatIDs))}
	for _, id := range allowedChatIDs {
		f.allowed[id] = struct{}{}
	}
	return f
}

// CheckAccess сообщает, можно ли обрабатывать событие из чата chatID.
func (f *ChatFilter) CheckAccess(chatID, userID int64) bool {
	if len(f.allowed) == 0 {
		return true
	}
	if _, ok := f.allowed[chatID]; ok {
		return true
	}

	log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   chatID,
		"user_id":   userID,
	}).Info("deny: chat not in ALLOWED_CHAT_IDS")
	return false
}
