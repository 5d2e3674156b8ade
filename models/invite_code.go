package models

import (
	"time"

	"github.com/camden-git/trustytail/utils"
	"gorm.io/gorm"
)

// InviteCodeLength is the number of alphanumeric characters in a generated code.
const InviteCodeLength = 8

// InviteCode is the shareable secret an owner hands to a secondary contact.
// One code per owner chat; it is issued lazily and never rotated.
type InviteCode struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ChatID    int64     `json:"chat_id" gorm:"uniqueIndex;not null"`
	Code      string    `json:"code" gorm:"uniqueIndex;size:32;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate generates a random code if not provided.
func (ic *InviteCode) BeforeCreate(tx *gorm.DB) (err error) {
	if ic.Code == "" {
		ic.Code, err = utils.RandomAlphanumeric(InviteCodeLength)
	}
	return
}

func (InviteCode) TableName() string {
	return "invite_codes"
}
