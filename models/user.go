package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User is an account that can author posts and comments. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	Username     string       `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email        string       `gorm:"size:255" json:"-"`
	PasswordHash string       `gorm:"size:255" json:"-"`
	IsSuperuser  bool         `gorm:"not null;default:false" json:"-"`
	Permissions  []Permission `gorm:"many2many:user_permissions;constraint:OnDelete:CASCADE;" json:"-"`
	CreatedAt    time.Time    `json:"-"`
	UpdatedAt    time.Time    `json:"-"`
}

// BeforeSave normalizes identity fields so lookups by username stay exact.
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return nil
}

// HasPerm reports whether the user holds the named permission.
// Superusers hold every permission. Permissions must be preloaded.
func (u *User) HasPerm(codename string) bool {
	if u == nil {
		return false
	}
	if u.IsSuperuser {
		return true
	}
	for _, p := range u.Permissions {
		if p.Codename == codename {
			return true
		}
	}
	return false
}
