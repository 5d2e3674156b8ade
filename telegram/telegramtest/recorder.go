// Package telegramtest provides an in-memory telegram.Messenger for tests.
package telegramtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/camden-git/trustytail/telegram"
)

type Edit struct {
	ChatID    int64
	MessageID int
	Keyboard  *telegram.Keyboard
}

type Deletion struct {
	ChatID    int64
	MessageID int
}

type Answer struct {
	CallbackID string
	Text       string
}

// Recorder records every call and fails sends to chats listed in FailChats.
type Recorder struct {
	mu        sync.Mutex
	nextID    int
	FailChats map[int64]error

	Sent    []telegram.OutgoingMessage
	Edits   []Edit
	Deletes []Deletion
	Answers []Answer
}

func NewRecorder() *Recorder {
	return &Recorder{FailChats: make(map[int64]error)}
}

// FailSendsTo makes every Send to chatID return an error.
func (r *Recorder) FailSendsTo(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FailChats[chatID] = fmt.Errorf("telegram: Forbidden: bot was blocked by chat %d", chatID)
}

func (r *Recorder) Send(_ context.Context, msg telegram.OutgoingMessage) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.FailChats[msg.ChatID]; ok {
		return 0, err
	}
	r.nextID++
	r.Sent = append(r.Sent, msg)
	return r.nextID, nil
}

func (r *Recorder) EditKeyboard(_ context.Context, chatID int64, messageID int, kb *telegram.Keyboard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Edits = append(r.Edits, Edit{ChatID: chatID, MessageID: messageID, Keyboard: kb})
	return nil
}

func (r *Recorder) Delete(_ context.Context, chatID int64, messageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Deletes = append(r.Deletes, Deletion{ChatID: chatID, MessageID: messageID})
	return nil
}

func (r *Recorder) AnswerCallback(_ context.Context, callbackID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Answers = append(r.Answers, Answer{CallbackID: callbackID, Text: text})
	return nil
}

// SentTo returns the messages delivered to chatID in order.
func (r *Recorder) SentTo(chatID int64) []telegram.OutgoingMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []telegram.OutgoingMessage
	for _, m := range r.Sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// Messages returns a copy of every delivered message.
func (r *Recorder) Messages() []telegram.OutgoingMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]telegram.OutgoingMessage(nil), r.Sent...)
}

// Reset clears recorded calls but keeps failure settings.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = nil
	r.Edits = nil
	r.Deletes = nil
	r.Answers = nil
}

var _ telegram.Messenger = (*Recorder)(nil)
