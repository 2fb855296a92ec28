package models

import "time"

// Comment is a reply to a post. Status stays false until a moderator approves it.
type Comment struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	PostID   uint      `gorm:"index;not null" json:"post_id"`
	AuthorID uint      `gorm:"index;not null" json:"author_id"`
	Text     string    `gorm:"type:text;not null" json:"text"`
	Date     time.Time `gorm:"autoCreateTime" json:"date"`
	Status   bool      `gorm:"not null;default:false" json:"status"`
	Author   User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
}

func (c Comment) String() string {
	return c.Text
}
