package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const pollTimeoutSeconds = 60

// Client implements Messenger on top of the Bot API.
type Client struct {
	api *tgbotapi.BotAPI
	log *zap.Logger
}

// NewClient authenticates with the Bot API using token.
func NewClient(token string, log *zap.Logger) (*Client, error) {
	return NewClientWithEndpoint(token, tgbotapi.APIEndpoint, http.DefaultClient, log)
}

// NewClientWithEndpoint allows pointing the client at a different Bot API server.
// endpoint is a format string taking the token and the method name.
func NewClientWithEndpoint(token, endpoint string, httpClient *http.Client, log *zap.Logger) (*Client, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	log.Info("authorized on telegram", zap.String("bot", api.Self.UserName))
	return &Client{api: api, log: log}, nil
}

func toMarkup(kb *Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0)
	if kb != nil {
		for _, row := range kb.Rows {
			buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
		}
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (c *Client) Send(ctx context.Context, msg OutgoingMessage) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	out := tgbotapi.NewMessage(msg.ChatID, msg.Text)
	if msg.HTML {
		out.ParseMode = tgbotapi.ModeHTML
	}
	if msg.Keyboard != nil {
		out.ReplyMarkup = toMarkup(msg.Keyboard)
	}
	sent, err := c.api.Send(out)
	if err != nil {
		return 0, fmt.Errorf("failed to send message to chat %d: %w", msg.ChatID, err)
	}
	return sent.MessageID, nil
}

func (c *Client) EditKeyboard(ctx context.Context, chatID int64, messageID int, kb *Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, toMarkup(kb))
	if _, err := c.api.Request(edit); err != nil {
		return fmt.Errorf("failed to edit keyboard of message %d in chat %d: %w", messageID, chatID, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("failed to delete message %d in chat %d: %w", messageID, chatID, err)
	}
	return nil
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("failed to answer callback %s: %w", callbackID, err)
	}
	return nil
}

// SetWebhook registers url with Telegram. A non-empty secret is echoed back by
// Telegram in the X-Telegram-Bot-Api-Secret-Token header of every delivery.
func (c *Client) SetWebhook(url, secret string) error {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	if _, err := c.api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	return nil
}

// DeleteWebhook switches the bot back to getUpdates delivery.
func (c *Client) DeleteWebhook() error {
	if _, err := c.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}

// Poll long-polls getUpdates and hands every supported update to handle
// until ctx is cancelled.
func (c *Client) Poll(ctx context.Context, handle func(Update)) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds

	updates := c.api.GetUpdatesChan(u)
	defer c.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("stopped polling for updates")
			return nil
		case raw, ok := <-updates:
			if !ok {
				return errors.New("update channel closed")
			}
			if update, ok := FromAPIUpdate(raw); ok {
				handle(update)
			}
		}
	}
}

// DecodeWebhook parses a webhook delivery. ok is false for update types the bot ignores.
func (c *Client) DecodeWebhook(r *http.Request) (Update, bool, error) {
	raw, err := c.api.HandleUpdate(r)
	if err != nil {
		return Update{}, false, err
	}
	update, ok := FromAPIUpdate(*raw)
	return update, ok, nil
}

// FromAPIUpdate keeps messages and callback queries; other update types are dropped.
func FromAPIUpdate(raw tgbotapi.Update) (Update, bool) {
	switch {
	case raw.Message != nil:
		msg := raw.Message
		update := Update{
			ID:     raw.UpdateID,
			ChatID: msg.Chat.ID,
			Text:   msg.Text,
		}
		if msg.From != nil {
			update.Username = msg.From.UserName
		} else {
			update.Username = msg.Chat.UserName
		}
		return update, true

	case raw.CallbackQuery != nil:
		cq := raw.CallbackQuery
		update := Update{
			ID:       raw.UpdateID,
			Callback: &Callback{ID: cq.ID, Data: cq.Data},
		}
		if cq.From != nil {
			update.ChatID = cq.From.ID
			update.Username = cq.From.UserName
		}
		if cq.Message != nil {
			update.ChatID = cq.Message.Chat.ID
			update.Callback.MessageID = cq.Message.MessageID
		}
		return update, update.ChatID != 0
	}
	return Update{}, false
}
