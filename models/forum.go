package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	CategoryGeneral      = "GENERAL"
	CategoryStudy        = "STUDY"
	CategoryAnnouncement = "ANNOUNCEMENT"
	CategoryHelp         = "HELP"
	CategoryLostFound    = "LOST_FOUND"
)

func IsValidPostCategory(c string) bool {
	switch c {
	case CategoryGeneral, CategoryStudy, CategoryAnnouncement, CategoryHelp, CategoryLostFound:
		return true
	}
	return false
}

type Post struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	AuthorID     uint           `gorm:"not null;index" json:"author_id"`
	Author       *User          `gorm:"foreignKey:AuthorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"author,omitempty"`
	LibraryID    *uint          `gorm:"index" json:"library_id,omitempty"`
	Library      *Library       `gorm:"foreignKey:LibraryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"library,omitempty"`
	Title        string         `gorm:"type:varchar(200);not null" json:"title"`
	Content      string         `gorm:"type:text;not null" json:"content"`
	Category     string         `gorm:"type:varchar(20);not null;default:'GENERAL';index" json:"category"`
	Tags         datatypes.JSON `json:"tags"`
	ViewCount    int64          `gorm:"not null;default:0" json:"view_count"`
	LikeCount    int64          `gorm:"not null;default:0" json:"like_count"`
	CommentCount int64          `gorm:"not null;default:0" json:"comment_count"`
	IsPinned     bool           `gorm:"not null;default:false" json:"is_pinned"`
	Comments     []Comment      `gorm:"foreignKey:PostID" json:"comments,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (p *Post) GetTags() []string {
	return decodeStrings(p.Tags)
}

func (p *Post) SetTags(tags []string) error {
	raw, err := encodeStrings(tags)
	if err != nil {
		return err
	}
	p.Tags = raw
	return nil
}

type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	Post      *Post     `gorm:"foreignKey:PostID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	AuthorID  uint      `gorm:"not null" json:"author_id"`
	Author    *User     `gorm:"foreignKey:AuthorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"author,omitempty"`
	ParentID  *uint     `gorm:"index" json:"parent_id,omitempty"`
	Replies   []Comment `gorm:"foreignKey:ParentID" json:"replies,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PostLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_post_user_like" json:"post_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_post_user_like" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
