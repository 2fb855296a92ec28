package models

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Permission codenames checked by the post views.
const (
	PermAddPost    = "posts.add_post"
	PermChangePost = "posts.change_post"
)

// Permission is a named capability that can be granted to users.
type Permission struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Codename string `gorm:"size:100;uniqueIndex;not null" json:"codename"`
	Name     string `gorm:"size:255" json:"name"`
}

// DefaultPermissions are created by migrations so they can be granted.
var DefaultPermissions = []Permission{
	{Codename: PermAddPost, Name: "Can add post"},
	{Codename: PermChangePost, Name: "Can change post"},
}

// All returns every model managed by migrations, parents first.
func All() []interface{} {
	return []interface{}{&User{}, &Permission{}, &Post{}, &Comment{}, &PageView{}}
}

// Grant gives user the named permissions. Every codename must already exist.
func Grant(db *gorm.DB, user *User, codenames ...string) error {
	if len(codenames) == 0 {
		return nil
	}
	var perms []Permission
	if err := db.Where("codename IN ?", codenames).Find(&perms).Error; err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}
	found := make(map[string]bool, len(perms))
	for _, p := range perms {
		found[p.Codename] = true
	}
	var missing []string
	for _, c := range codenames {
		if !found[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("unknown permissions: %s", strings.Join(missing, ", "))
	}
	if err := db.Model(user).Association("Permissions").Append(perms); err != nil {
		return fmt.Errorf("grant permissions to %s: %w", user.Username, err)
	}
	return nil
}
