package telegram

import "context"

// Button is one inline keyboard button carrying a callback token.
type Button struct {
	Text string
	Data string
}

// Keyboard is an inline keyboard, row by row.
type Keyboard struct {
	Rows [][]Button
}

// NewKeyboard builds a keyboard with one button per row.
func NewKeyboard(buttons ...Button) *Keyboard {
	kb := &Keyboard{}
	for _, b := range buttons {
		kb.Rows = append(kb.Rows, []Button{b})
	}
	return kb
}

// OutgoingMessage is a text message sent to one chat.
type OutgoingMessage struct {
	ChatID   int64
	Text     string
	HTML     bool
	Keyboard *Keyboard
}

// Messenger is the outbound side of the Telegram Bot API used by the bot.
// Implementations block until the API call completes.
type Messenger interface {
	Send(ctx context.Context, msg OutgoingMessage) (int, error)
	EditKeyboard(ctx context.Context, chatID int64, messageID int, kb *Keyboard) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Callback is an inline button press.
type Callback struct {
	ID        string
	Data      string
	MessageID int
}

// Update is an inbound message or callback, reduced to what the router needs.
type Update struct {
	ID       int
	ChatID   int64
	Username string
	Text     string
	Callback *Callback
}

// Kind labels the update for logs and metrics.
func (u Update) Kind() string {
	if u.Callback != nil {
		return "callback"
	}
	return "message"
}
