package models

import "time"

// MonitoringStatus records whether the liveness sweeps consider a chat at all.
type MonitoringStatus struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ChatID    int64     `json:"chat_id" gorm:"uniqueIndex;not null"`
	Enabled   bool      `json:"enabled" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (MonitoringStatus) TableName() string {
	return "monitoring_statuses"
}
