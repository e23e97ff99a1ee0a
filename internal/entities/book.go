package entities

import (
	"time"
)

// Book is a catalog entry with a downloadable file attached. FileKey points
// into the file store and never changes after creation; CoverKey may be
// filled in later by cover resolution.
type Book struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Title         string     `gorm:"index;size:200" json:"title"`
	Author        string     `gorm:"index;size:100" json:"author"`
	ISBN          *string    `gorm:"uniqueIndex;size:13" json:"isbn,omitempty"`
	FileKey       string     `gorm:"size:1024" json:"file_key"`
	CoverKey      string     `gorm:"size:1024" json:"cover_key,omitempty"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	IsAvailable   bool       `gorm:"default:true" json:"is_available"`
	ViewCount     uint       `gorm:"default:0" json:"view_count"`
	DownloadCount uint       `gorm:"default:0" json:"download_count"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// HasCover reports whether a cover image has been attached.
func (b *Book) HasCover() bool {
	return b.CoverKey != ""
}
