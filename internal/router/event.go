// Package router превращает входящее событие чата в игровое действие
// и возвращает описание ответа. Состояния между событиями не хранит:
// всё состояние живёт в хранилище экономики.
//
// Транспорт (Telegram) собирает Event из апдейта и рисует Response;
// форматов Telegram роутер не знает.
package router

// Event — нормализованное входящее событие.
type Event struct {
	ID          string // для корреляции логов
	PlayerID    int64
	DisplayName string
	Text        string   // текст сообщения (может быть пустым)
	ButtonData  string   // данные нажатой inline-кнопки (может быть пустым)
	Payment     *Payment // подтверждение платежа (может быть nil)
}

// IsButton сообщает, пришло ли событие от нажатия inline-кнопки.
func (e Event) IsButton() bool {
	return e.ButtonData != ""
}

// Payment — подтверждённый платёж.
type Payment struct {
	Payload     string
	Currency    string
	TotalAmount int
}

// Button — inline-кнопка ответа.
type Button struct {
	Text string
	Data string
}

// Ack — ответ на нажатие inline-кнопки (закрывает «часики» на кнопке).
// Отправляется отдельно от текста, в том числе при ошибке.
type Ack struct {
	Text  string
	Alert bool
}

// Response — описание ответа игроку.
type Response struct {
	Text    string
	Buttons [][]Button // inline-клавиатура под сообщением
	Menu    bool       // показать постоянное меню действий
	Ack     *Ack       // только для событий от кнопок
}
