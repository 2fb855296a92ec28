package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategory(t *testing.T) {
	assert.Len(t, Categories, 10)
	assert.Equal(t, CategoryTank, DefaultCategory)
	assert.True(t, CategorySpellmaster.Valid())
	assert.False(t, Category("bard").Valid())
	assert.False(t, Category("").Valid())
	assert.Equal(t, "Хилы", CategoryHeal.Label())
	assert.Equal(t, "bard", Category("bard").Label())
}

func TestPostString(t *testing.T) {
	p := Post{ID: 3, Name: "Need a healer", Description: "Тяжёлый рейд в субботу вечером"}
	assert.Equal(t, "Need a healer: Тяжёлый рейд в суббо", p.String())
	assert.Equal(t, "/posts/3", p.URL())

	short := Post{Name: "Smith", Description: "ore"}
	assert.Equal(t, "Smith: ore", short.String())
	assert.Equal(t, "ore", Comment{Text: "ore"}.String())
}

func TestHasPerm(t *testing.T) {
	var nobody *User
	assert.False(t, nobody.HasPerm(PermAddPost))

	u := &User{Permissions: []Permission{{Codename: PermAddPost}}}
	assert.True(t, u.HasPerm(PermAddPost))
	assert.False(t, u.HasPerm(PermChangePost))

	admin := &User{IsSuperuser: true}
	assert.True(t, admin.HasPerm(PermChangePost))
}
