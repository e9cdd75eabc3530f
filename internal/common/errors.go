// Package common — errors.go определяет ошибки, общие для всех модулей бота.
// Обработчики различают их через errors.Is/errors.As и отправляют
// игроку понятное сообщение.
package common

import (
	"errors"
	"fmt"
)

// Ошибки игровых действий
var (
	// ErrInvalidInput — неизвестная локация/удочка/квест или некорректная команда
	ErrInvalidInput = errors.New("некорректный ввод")
	// ErrInsufficientFunds — недостаточно монет для покупки
	ErrInsufficientFunds = errors.New("недостаточно монет")
	// ErrDailyAlreadyClaimed — ежедневный бонус уже получен сегодня
	ErrDailyAlreadyClaimed = errors.New("ежедневный бонус уже получен")
)

// Ошибки админ-интерфейса и хранилища
var (
	// ErrForbidden — неверный токен администратора
	ErrForbidden = errors.New("доступ запрещён")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток")
	// ErrNotFound — игрок не найден
	ErrNotFound = errors.New("не найдено")
	// ErrStoreUnavailable — временный сбой базы данных
	ErrStoreUnavailable = errors.New("хранилище недоступно")
)

// PaymentPayloadError — подтверждение платежа с нераспознанной нагрузкой.
// Такое подтверждение логируется и отбрасывается, запрос не падает.
type PaymentPayloadError struct {
	Payload  string
	Currency string
	Reason   string
}

func (e *PaymentPayloadError) Error() string {
	return fmt.Sprintf("некорректный платёж (payload=%q, currency=%s): %s", e.Payload, e.Currency, e.Reason)
}

// IsGameError сообщает, является ли ошибка ожидаемой ошибкой предметной области
// (а не сбоем инфраструктуры).
func IsGameError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrDailyAlreadyClaimed) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrTooManyAttempts) ||
		errors.Is(err, ErrNotFound)
}
