package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/trustytail/dialogue"
	"github.com/camden-git/trustytail/services"
	"github.com/camden-git/trustytail/telegram"
)

// handlerFunc handles one update given the chat's current dialogue state and
// returns the next state. Returning dialogue.Idle resets the dialogue.
type handlerFunc func(ctx context.Context, u telegram.Update, args string, state dialogue.State) (dialogue.State, error)

// Router maps inbound messages and button presses to handlers and keeps the
// per-chat dialogue state in a Store.
type Router struct {
	owners    *services.OwnerService
	messenger telegram.Messenger
	dialogues dialogue.Store
	log       *zap.Logger
	now       func() time.Time

	commands  map[string]handlerFunc
	callbacks map[string]handlerFunc
}

func NewRouter(owners *services.OwnerService, messenger telegram.Messenger, dialogues dialogue.Store, log *zap.Logger) *Router {
	r := &Router{
		owners:    owners,
		messenger: messenger,
		dialogues: dialogues,
		log:       log,
		now:       time.Now,
	}

	r.commands = map[string]handlerFunc{
		"/start":              r.handleStart,
		"/help":               r.handleHelp,
		"/menu":               r.handleMenu,
		"/alive":              r.handleAlive,
		"/enable":             r.handleEnable,
		"/disable":            r.handleDisable,
		"/status":             r.handleStatus,
		"/emergency_info":     r.handleEmergencyInfo,
		"/set_emergency_text": r.handleSetEmergencyText,
		"/invite":             r.handleInvite,
		"/accept_invite":      r.handleAcceptInvite,
		"/contacts":           r.handleOwnerMenu,
		"/owners":             r.handleContactMenu,
		"/cancel":             r.handleCancel,
	}

	r.callbacks = map[string]handlerFunc{
		CallbackAlive:            r.callbackAlive,
		CallbackEnable:           r.callbackToggle(true),
		CallbackDisable:          r.callbackToggle(false),
		CallbackEmergencyInfo:    r.handleEmergencyInfo,
		CallbackAskEmergencyInfo: r.handleSetEmergencyText,
		CallbackAskInvite:        r.handleAcceptInvite,
		CallbackOwnerMenu:        r.handleOwnerMenu,
		CallbackContactMenu:      r.handleContactMenu,
		CallbackMainMenu:         r.handleMenu,
	}
	return r
}

// parseCommand splits "/cmd@bot_name some args" into "/cmd" and "some args".
func parseCommand(text string) (string, string) {
	cmd, args, _ := strings.Cut(strings.TrimSpace(text), " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), strings.TrimSpace(args)
}

// Handle processes one update end to end. The chat always gets a reply, a
// generic failure message when a handler fails.
func (r *Router) Handle(ctx context.Context, u telegram.Update) error {
	log := r.log.With(zap.Int64("chat_id", u.ChatID), zap.String("kind", u.Kind()))

	if err := r.owners.TouchProfile(ctx, u.ChatID, u.Username); err != nil {
		r.fail(ctx, u, log, err)
		return err
	}

	state, err := r.dialogues.Get(ctx, u.ChatID)
	if err != nil {
		log.Warn("failed to read dialogue state, assuming idle", zap.Error(err))
		state = dialogue.Idle
	}

	handler, args := r.route(u, state)
	next, err := handler(ctx, u, args, state)

	if u.Callback != nil {
		if ansErr := r.messenger.AnswerCallback(ctx, u.Callback.ID, ""); ansErr != nil {
			log.Warn("failed to answer callback", zap.Error(ansErr))
		}
	}

	if err != nil {
		r.fail(ctx, u, log, err)
		next = dialogue.Idle
	}
	if next != state {
		if setErr := r.dialogues.Set(ctx, u.ChatID, next); setErr != nil {
			log.Error("failed to store dialogue state", zap.Stringer("state", next), zap.Error(setErr))
			if err == nil {
				err = setErr
			}
		}
	}
	return err
}

func (r *Router) route(u telegram.Update, state dialogue.State) (handlerFunc, string) {
	if u.Callback != nil {
		if h, ok := r.callbacks[u.Callback.Data]; ok {
			return h, ""
		}
		return r.handleUnknown, ""
	}

	text := strings.TrimSpace(u.Text)
	if strings.HasPrefix(text, "/") {
		cmd, args := parseCommand(text)
		if h, ok := r.commands[cmd]; ok {
			return h, args
		}
		return r.handleUnknown, ""
	}

	switch state {
	case dialogue.WaitingEmergencyText:
		return r.receiveEmergencyText, text
	case dialogue.WaitingForInvite:
		return r.receiveInviteCode, text
	}
	return r.handleUnknown, ""
}

func (r *Router) fail(ctx context.Context, u telegram.Update, log *zap.Logger, err error) {
	log.Error("failed to handle update", zap.Error(err))
	if sendErr := r.reply(ctx, u.ChatID, textFailure, nil); sendErr != nil {
		log.Warn("failed to send failure notice", zap.Error(sendErr))
	}
}

func (r *Router) reply(ctx context.Context, chatID int64, text string, kb *telegram.Keyboard) error {
	_, err := r.messenger.Send(ctx, telegram.OutgoingMessage{
		ChatID:   chatID,
		Text:     text,
		HTML:     true,
		Keyboard: kb,
	})
	return err
}

func (r *Router) sendMainMenu(ctx context.Context, chatID int64) error {
	enabled, err := r.owners.IsMonitoringEnabled(ctx, chatID)
	if err != nil {
		return err
	}
	return r.reply(ctx, chatID, renderMainMenu(enabled), mainMenuKeyboard(enabled))
}

func (r *Router) handleStart(ctx context.Context, u telegram.Update, _ string, _ dialogue.State) (dialogue.State, error) {
	if err := r.owners.MarkAlive(ctx, u.ChatID, r.now()); err != nil {
		return dialogue.Idle, err
	}
	if err := r.reply(ctx, u.ChatID, textStart, nil); err != nil {
		return dialogue.Idle, err
	}
	return dialogue.Idle, r.sendMainMenu(ctx, u.ChatID)
}

func (r *Router) handleHelp(ctx context.Context, u telegram.Update, _ string, _ dialogue.State) (dialogue.State, error) {
	return dialogue.Idle, r.reply(ctx, u.ChatID, textHelp, nil)
}

func (r *Router) handleMenu(ctx context.Context, u telegram.Update, _ string, _ dialogue.State) (dialogue.State, error) {
	return dialogue.Idle, r.sendMainMenu(ctx, u.ChatID)
}

func (r *Router) handleAlive(ctx context.Context, u telegram.Update, _ string, _ dialogue.State) (dialogue.State, error) {
	if err := r.owners.MarkAlive(ctx, u.ChatID, r.now()); err != nil {
		return dialogue.Idle, err
	}
	return dialogue.Idle, r.reply(ctx, u.ChatID, textMarkedAlive, nil)
}

func (r *Router) setMonitoring(ctx context.Context, u telegram.Update, enabled bool) error {
	if err := r.owners.SetMonitoring(ctx, u.ChatID, enabled); err != nil {
		return err
	}
	if enabled {
		return r.reply(ctx, u.ChatID, textMonitoringEnabled, nil)
	}
	return r.reply(ctx, u.ChatID, textMonitoringDisabled, nil)
}

func (r *Router) handleEnable(ctx context.Context, u telegram.Update, _ string, _ dialogue.State) (dialogue.State, error) {
	return dialogue.Idle, r.setMonitoring(ctx, u, true)
}

func (r *Router) handleDisable(ctx context.Context, u telegram.Update, _ string, _ dialogue.State) (dialogue.State, error) {
	return dialogue.Idle, r.setMonitoring(ctx, u, false)
}

func (r *Router) handleStatus(ctx context.Context, u telegram.Update, _ string, _ dialogue.State) (dialogue.State, error) {
	status, err := r.owners.Status(ctx, u.ChatID)
	if err != nil {
		return dialogue.Idle, err
	}
	return dialogue.Idle, r.reply(ctx, u.ChatID, renderStatus(status), nil)
}

func (r *Router) handleEmergencyInfo(ctx context.Context, u telegram.Update, _ string, _ dialogue.State) (dialogue.State, error) {
	text, found, err := r.owners.EmergencyText(ctx, u.ChatID)
	if err != nil {
		return dialogue.Idle, err
	}
	return dialogue.Idle, r.reply(ctx, u.ChatID, renderEmergencyInfo(text, found), emergencyInfoKeyboard())
}

// handleSetEmergencyText saves inline arguments right away, otherwise asks for the text.
func (r *Router) handleSetEmergencyText(ctx context.Context, u telegram.Update, args string, state dialogue.State) (dialogue.State, error) {
	if args != "" {
		return r.receiveEmergencyText(ctx, u, args, state)
	}
	return dialogue.WaitingEmergencyText, r.reply(ctx, u.ChatID, textAskEmergencyText, nil)
}

func (r *Router) receiveEmergencyText(ctx context.Context, u telegram.Update, text string, _ dialogue.State) (dialogue.State, error) {
	err := r.owners.SetEmergencyText(ctx, u.ChatID, text)
	if errors.Is(err, services.ErrEmptyEmergencyText) {
		return dialogue.WaitingEmergencyText, r.reply(ctx, u.ChatID, textEmergencyTextEmpty, nil)
	}
	if err != nil {
		return dialogue.Idle, err
	}
	return dialogue.Idle, r.reply(ctx, u.ChatID, textEmergencyTextSaved, nil)
}

func (r *Router) handleInvite(ctx context.Context, u telegram.Update, _ string, _ dialogue.State) (dialogue.State, error) {
	code, err := r.owners.GetOrCreateInvite(ctx, u.ChatID)
	if err != nil {
		return dialogue.Idle, err
	}
	return dialogue.Idle, r.reply(ctx, u.ChatID, renderInvite(code), nil)
}

func (r *Router) handleAcceptInvite(ctx context.Context, u telegram.Update, args string, state dialogue.State) (dialogue.State, error) {
	if args != "" {
		return r.receiveInviteCode(ctx, u, args, state)
	}
	return dialogue.WaitingForInvite, r.reply(ctx, u.ChatID, textAskInvite, nil)
}

func (r *Router) receiveInviteCode(ctx context.Context, u telegram.Update, code string, _ dialogue.State) (dialogue.State, error) {
	primary, err := r.owners.RedeemInvite(ctx, code, u.ChatID)
	switch {
	case errors.Is(err, services.ErrInviteNotFound):
		return dialogue.Idle, r.reply(ctx, u.ChatID, textUnknownInvite, nil)
	case errors.Is(err, services.ErrAlreadyLinked):
		return dialogue.Idle, r.replyWithOwner(ctx, u.ChatID, primary, textInviteAlreadyLinked)
	case err != nil:
		return dialogue.Idle, err
	}
	r.log.Info("secondary owner linked", zap.Int64("chat_id", u.ChatID), zap.Int64("primary_chat_id", primary))
	return dialogue.Idle, r.replyWithOwner(ctx, u.ChatID, primary, textInviteAccepted)
}

func (r *Router) replyWithOwner(ctx context.Context, chatID, ownerChatID int64, format string) error {
	owner, err := r.owners.ContactFor(ctx, ownerChatID)
	if err != nil {
		return err
	}
	return r.reply(ctx, chatID, fmt.Sprintf(format, html.EscapeString(owner.Handle)), nil)
}

func (r *Router) handleOwnerMenu(ctx context.Context, u telegram.Update, _ string, _ dialogue.State) (dialogue.State, error) {
	contacts, err := r.owners.SecondaryContacts(ctx, u.ChatID)
	if err != nil {
		return dialogue.Idle, err
	}
	code, err := r.owners.GetOrCreateInvite(ctx, u.ChatID)
	if err != nil {
		return dialogue.Idle, err
	}
	return dialogue.Idle, r.reply(ctx, u.ChatID, renderOwnerMenu(contacts, code), ownerMenuKeyboard())
}

func (r *Router) handleContactMenu(ctx context.Context, u telegram.Update, _ string, _ dialogue.State) (dialogue.State, error) {
	owners, err := r.owners.PrimaryOwners(ctx, u.ChatID)
	if err != nil {
		return dialogue.Idle, err
	}
	return dialogue.Idle, r.reply(ctx, u.ChatID, renderContactMenu(owners), contactMenuKeyboard())
}

func (r *Router) handleCancel(ctx context.Context, u telegram.Update, _ string, _ dialogue.State) (dialogue.State, error) {
	return dialogue.Idle, r.reply(ctx, u.ChatID, textCancelled, nil)
}

func (r *Router) handleUnknown(ctx context.Context, u telegram.Update, _ string, _ dialogue.State) (dialogue.State, error) {
	if err := r.reply(ctx, u.ChatID, textNotUnderstood, nil); err != nil {
		return dialogue.Idle, err
	}
	return dialogue.Idle, r.sendMainMenu(ctx, u.ChatID)
}

// callbackAlive confirms liveness from the reminder button and removes the reminder.
func (r *Router) callbackAlive(ctx context.Context, u telegram.Update, _ string, _ dialogue.State) (dialogue.State, error) {
	if err := r.owners.MarkAlive(ctx, u.ChatID, r.now()); err != nil {
		return dialogue.Idle, err
	}
	if err := r.messenger.Delete(ctx, u.ChatID, u.Callback.MessageID); err != nil {
		r.log.Warn("failed to delete reminder", zap.Int64("chat_id", u.ChatID), zap.Error(err))
	}
	return dialogue.Idle, r.reply(ctx, u.ChatID, textMarkedAlive, nil)
}

// callbackToggle flips monitoring from the main menu and redraws its keyboard in place.
func (r *Router) callbackToggle(enabled bool) handlerFunc {
	return func(ctx context.Context, u telegram.Update, _ string, _ dialogue.State) (dialogue.State, error) {
		if err := r.owners.SetMonitoring(ctx, u.ChatID, enabled); err != nil {
			return dialogue.Idle, err
		}
		return dialogue.Idle, r.messenger.EditKeyboard(ctx, u.ChatID, u.Callback.MessageID, mainMenuKeyboard(enabled))
	}
}
