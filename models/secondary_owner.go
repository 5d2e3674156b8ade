package models

import "time"

// SecondaryOwnerLink connects an owner (primary) with a contact that is
// alerted on escalation (secondary). The pair is unique.
type SecondaryOwnerLink struct {
	ID                   uint      `json:"id" gorm:"primaryKey"`
	PrimaryOwnerChatID   int64     `json:"primary_owner_chat_id" gorm:"not null;index:idx_owner_pair,unique"`
	SecondaryOwnerChatID int64     `json:"secondary_owner_chat_id" gorm:"not null;index:idx_owner_pair,unique;index"`
	CreatedAt            time.Time `json:"created_at"`
}

func (SecondaryOwnerLink) TableName() string {
	return "secondary_owners"
}
