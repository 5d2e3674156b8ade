package models

import "time"

// LivenessEvent holds the last time an owner confirmed being alive.
// Single row per chat, overwritten on every confirmation.
type LivenessEvent struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	ChatID      int64     `json:"chat_id" gorm:"uniqueIndex;not null"`
	ConfirmedAt time.Time `json:"confirmed_at" gorm:"not null;index"`
}

func (LivenessEvent) TableName() string {
	return "liveness_events"
}
