package models

import "time"

// EmergencyInfo is the owner-authored text delivered to secondary contacts.
type EmergencyInfo struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ChatID    int64     `json:"chat_id" gorm:"uniqueIndex;not null"`
	Text      string    `json:"text" gorm:"type:text;not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (EmergencyInfo) TableName() string {
	return "emergency_info"
}
