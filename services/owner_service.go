package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/facette/natsort"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/camden-git/trustytail/models"
	"github.com/camden-git/trustytail/repository"
)

const maxInviteAttempts = 5

var (
	ErrInviteNotFound     = errors.New("invite code not found")
	ErrAlreadyLinked      = errors.New("secondary owner already linked")
	ErrEmptyEmergencyText = errors.New("emergency text is empty")
	ErrInviteNotIssuable  = errors.New("could not issue a unique invite code")
)

// Contact is a linked chat rendered for display.
type Contact struct {
	ChatID int64  `json:"chat_id"`
	Handle string `json:"handle"`
}

// OwnerStatus is everything the bot knows about one chat.
type OwnerStatus struct {
	ChatID            int64      `json:"chat_id"`
	Registered        bool       `json:"registered"`
	Username          string     `json:"username,omitempty"`
	MonitoringEnabled bool       `json:"monitoring_enabled"`
	LastConfirmedAt   *time.Time `json:"last_confirmed_at,omitempty"`
	HasEmergencyText  bool       `json:"has_emergency_text"`
	SecondaryContacts []Contact  `json:"secondary_contacts"`
	PrimaryOwners     []Contact  `json:"primary_owners"`
}

// OwnerService implements the owner-facing operations shared by the bot and the admin API.
type OwnerService struct {
	repos           repository.Repositories
	log             *zap.Logger
	placeholderText string
}

// NewOwnerService creates a new owner service
func NewOwnerService(repos repository.Repositories, log *zap.Logger, placeholderText string) *OwnerService {
	return &OwnerService{
		repos:           repos,
		log:             log,
		placeholderText: placeholderText,
	}
}

// TouchProfile records the chat and its latest username.
func (s *OwnerService) TouchProfile(ctx context.Context, chatID int64, username string) error {
	if err := s.repos.Profiles.Upsert(ctx, chatID, username); err != nil {
		return fmt.Errorf("failed to upsert profile %d: %w", chatID, err)
	}
	return nil
}

// MarkAlive stores now as the chat's last liveness confirmation.
func (s *OwnerService) MarkAlive(ctx context.Context, chatID int64, now time.Time) error {
	if err := s.repos.Liveness.Upsert(ctx, chatID, now); err != nil {
		return fmt.Errorf("failed to mark chat %d alive: %w", chatID, err)
	}
	return nil
}

// SetMonitoring enables or disables the liveness sweeps for a chat.
func (s *OwnerService) SetMonitoring(ctx context.Context, chatID int64, enabled bool) error {
	if err := s.repos.Monitoring.SetEnabled(ctx, chatID, enabled); err != nil {
		return fmt.Errorf("failed to set monitoring for chat %d: %w", chatID, err)
	}
	return nil
}

// IsMonitoringEnabled reports false for chats that never configured monitoring.
func (s *OwnerService) IsMonitoringEnabled(ctx context.Context, chatID int64) (bool, error) {
	status, err := s.repos.Monitoring.FindByChatID(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("failed to load monitoring status for chat %d: %w", chatID, err)
	}
	return status != nil && status.Enabled, nil
}

// EmergencyText returns the stored text, or the placeholder and false when none is saved.
func (s *OwnerService) EmergencyText(ctx context.Context, chatID int64) (string, bool, error) {
	info, err := s.repos.EmergencyInfo.FindByChatID(ctx, chatID)
	if err != nil {
		return s.placeholderText, false, fmt.Errorf("failed to load emergency info for chat %d: %w", chatID, err)
	}
	if info == nil {
		return s.placeholderText, false, nil
	}
	return info.Text, true, nil
}

func (s *OwnerService) SetEmergencyText(ctx context.Context, chatID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyEmergencyText
	}
	if err := s.repos.EmergencyInfo.Upsert(ctx, chatID, text); err != nil {
		return fmt.Errorf("failed to save emergency info for chat %d: %w", chatID, err)
	}
	return nil
}

// GetOrCreateInvite returns the chat's invite code, issuing one on first use.
// A concurrent request that loses the unique chat_id race reads the winner's code;
// a collision on the code itself is retried with a fresh one.
func (s *OwnerService) GetOrCreateInvite(ctx context.Context, chatID int64) (string, error) {
	for attempt := 0; attempt < maxInviteAttempts; attempt++ {
		existing, err := s.repos.InviteCodes.FindByChatID(ctx, chatID)
		if err != nil {
			return "", fmt.Errorf("failed to look up invite code for chat %d: %w", chatID, err)
		}
		if existing != nil {
			return existing.Code, nil
		}

		invite := &models.InviteCode{ChatID: chatID}
		err = s.repos.InviteCodes.Create(ctx, invite)
		if err == nil {
			return invite.Code, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", fmt.Errorf("failed to create invite code for chat %d: %w", chatID, err)
		}
		s.log.Debug("invite code conflict, retrying", zap.Int64("chat_id", chatID), zap.Int("attempt", attempt+1))
	}
	return "", ErrInviteNotIssuable
}

// RedeemInvite links secondaryChatID to the owner of code and returns the owner's chat id.
// Redeeming a code for an existing link returns the owner with ErrAlreadyLinked.
func (s *OwnerService) RedeemInvite(ctx context.Context, code string, secondaryChatID int64) (int64, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, ErrInviteNotFound
	}

	invite, err := s.repos.InviteCodes.FindByCode(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("failed to look up invite code: %w", err)
	}
	if invite == nil {
		return 0, ErrInviteNotFound
	}

	created, err := s.repos.SecondaryOwner.Link(ctx, invite.ChatID, secondaryChatID)
	if err != nil {
		return 0, fmt.Errorf("failed to link chat %d to owner %d: %w", secondaryChatID, invite.ChatID, err)
	}
	if !created {
		return invite.ChatID, ErrAlreadyLinked
	}
	return invite.ChatID, nil
}

// SecondaryContacts lists the chats alerted when primaryChatID escalates.
func (s *OwnerService) SecondaryContacts(ctx context.Context, primaryChatID int64) ([]Contact, error) {
	links, err := s.repos.SecondaryOwner.ListByPrimary(ctx, primaryChatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list secondary owners of %d: %w", primaryChatID, err)
	}
	ids := make([]int64, 0, len(links))
	for _, link := range links {
		ids = append(ids, link.SecondaryOwnerChatID)
	}
	return s.contacts(ctx, ids)
}

// PrimaryOwners lists the owners that secondaryChatID backs up.
func (s *OwnerService) PrimaryOwners(ctx context.Context, secondaryChatID int64) ([]Contact, error) {
	links, err := s.repos.SecondaryOwner.ListBySecondary(ctx, secondaryChatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list primary owners of %d: %w", secondaryChatID, err)
	}
	ids := make([]int64, 0, len(links))
	for _, link := range links {
		ids = append(ids, link.PrimaryOwnerChatID)
	}
	return s.contacts(ctx, ids)
}

// ContactFor renders a single chat the way contact lists show it.
func (s *OwnerService) ContactFor(ctx context.Context, chatID int64) (Contact, error) {
	contacts, err := s.contacts(ctx, []int64{chatID})
	if err != nil {
		return Contact{ChatID: chatID}, err
	}
	return contacts[0], nil
}

func (s *OwnerService) contacts(ctx context.Context, chatIDs []int64) ([]Contact, error) {
	profiles, err := s.repos.Profiles.FindByChatIDs(ctx, chatIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load contact profiles: %w", err)
	}
	byChat := make(map[int64]*models.Profile, len(profiles))
	for i := range profiles {
		byChat[profiles[i].ChatID] = &profiles[i]
	}

	contacts := make([]Contact, 0, len(chatIDs))
	for _, id := range chatIDs {
		contacts = append(contacts, Contact{
			ChatID: id,
			Handle: byChat[id].Handle(fmt.Sprintf("#%d", id)),
		})
	}
	sort.SliceStable(contacts, func(i, j int) bool {
		return natsort.Compare(strings.ToLower(contacts[i].Handle), strings.ToLower(contacts[j].Handle))
	})
	return contacts, nil
}

// Status collects the monitoring flag, last confirmation and links of a chat.
func (s *OwnerService) Status(ctx context.Context, chatID int64) (*OwnerStatus, error) {
	status := &OwnerStatus{ChatID: chatID}

	profile, err := s.repos.Profiles.FindByChatID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %d: %w", chatID, err)
	}
	if profile != nil {
		status.Registered = true
		status.Username = profile.Username
	}

	if status.MonitoringEnabled, err = s.IsMonitoringEnabled(ctx, chatID); err != nil {
		return nil, err
	}

	event, err := s.repos.Liveness.FindByChatID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load liveness for chat %d: %w", chatID, err)
	}
	if event != nil {
		confirmedAt := event.ConfirmedAt.UTC()
		status.LastConfirmedAt = &confirmedAt
	}

	if _, status.HasEmergencyText, err = s.EmergencyText(ctx, chatID); err != nil {
		return nil, err
	}
	if status.SecondaryContacts, err = s.SecondaryContacts(ctx, chatID); err != nil {
		return nil, err
	}
	if status.PrimaryOwners, err = s.PrimaryOwners(ctx, chatID); err != nil {
		return nil, err
	}
	return status, nil
}
