package entities

import (
	"fmt"
	"net/url"
	"time"
)

// Profile identifies a member of the sharing group. Books are delivered over
// WhatsApp, so the number is what actually matters for fulfilment: it is
// required at signup and unique across the group.
type Profile struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         *uint     `gorm:"uniqueIndex" json:"user_id,omitempty"` // nullable: profiles may predate accounts
	User           *User     `gorm:"foreignKey:UserID" json:"-"`
	WhatsAppName   string    `gorm:"size:150" json:"whatsapp_name"`
	WhatsAppNumber string    `gorm:"uniqueIndex;size:20" json:"whatsapp_number"`
	AvatarKey      string    `gorm:"size:1024" json:"avatar_key,omitempty"`
	IsActive       bool      `gorm:"default:true" json:"is_active"`
	JoinedAt       time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// WhatsAppLink builds a wa.me deep link with a pre-filled message so an
// admin can open a chat with the member directly.
func (p *Profile) WhatsAppLink(message string) string {
	if p.WhatsAppNumber == "" {
		return ""
	}
	number := p.WhatsAppNumber
	if number[0] == '+' {
		number = number[1:]
	}
	link := fmt.Sprintf("https://wa.me/%s", number)
	if message != "" {
		link += "?text=" + url.QueryEscape(message)
	}
	return link
}
