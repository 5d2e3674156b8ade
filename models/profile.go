package models

import "time"

// Profile is one row per Telegram chat that has talked to the bot.
type Profile struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ChatID    int64     `json:"chat_id" gorm:"uniqueIndex;not null"`
	Username  string    `json:"username" gorm:"not null;default:''"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

// Handle renders the profile as a mention, or fallback when no username is known.
func (p *Profile) Handle(fallback string) string {
	if p == nil || p.Username == "" {
		return fallback
	}
	return "@" + p.Username
}
