package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Category tags a listing with the guild role or trade it is about.
type Category string

const (
	CategoryTank        Category = "tank"
	CategoryHeal        Category = "heal"
	CategoryDD          Category = "dd"
	CategoryBuyers      Category = "buyers"
	CategoryGildemaster Category = "gildemaster"
	CategoryQuest       Category = "quest"
	CategorySmith       Category = "smith"
	CategoryTanner      Category = "tanner"
	CategoryPotion      Category = "potion"
	CategorySpellmaster Category = "spellmaster"

	// DefaultCategory is used when a post is stored without an explicit category.
	DefaultCategory = CategoryTank
)

// CategoryChoice pairs a stored category value with its display label.
type CategoryChoice struct {
	Value Category `json:"value"`
	Label string   `json:"label"`
}

// Categories lists the closed set of categories in display order.
var Categories = []CategoryChoice{
	{CategoryTank, "Танки"},
	{CategoryHeal, "Хилы"},
	{CategoryDD, "ДД"},
	{CategoryBuyers, "Торговцы"},
	{CategoryGildemaster, "Гилдмастеры"},
	{CategoryQuest, "Квестгиверы"},
	{CategorySmith, "Кузнецы"},
	{CategoryTanner, "Кожевники"},
	{CategoryPotion, "Зельевары"},
	{CategorySpellmaster, "Мастера заклинаний"},
}

// Valid reports whether c belongs to the closed category set.
func (c Category) Valid() bool {
	_, ok := c.lookup()
	return ok
}

// Label returns the human readable name, or the raw value for unknown categories.
func (c Category) Label() string {
	if choice, ok := c.lookup(); ok {
		return choice.Label
	}
	return string(c)
}

func (c Category) lookup() (CategoryChoice, bool) {
	for _, choice := range Categories {
		if choice.Value == c {
			return choice, true
		}
	}
	return CategoryChoice{}, false
}

// Post is a classified listing authored by a user.
type Post struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AuthorID    uint      `gorm:"index;not null" json:"author_id"`
	Name        string    `gorm:"size:64;not null" json:"name"`
	NameFolded  string    `gorm:"size:255;index;not null;default:''" json:"-"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Category    Category  `gorm:"size:28;not null;default:'tank'" json:"category"`
	Created     time.Time `gorm:"autoCreateTime" json:"created"`
	Updated     time.Time `gorm:"autoUpdateTime" json:"updated"`
	Image       string    `gorm:"size:255;not null" json:"image"`
	Author      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Comments    []Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// FoldName is the case-folded form name searches compare against. Folding
// happens in Go because sqlite's LOWER only knows ASCII.
func FoldName(name string) string {
	return strings.ToLower(name)
}

// BeforeSave keeps NameFolded in step with Name.
func (p *Post) BeforeSave(tx *gorm.DB) error {
	p.NameFolded = FoldName(p.Name)
	return nil
}

// String renders the post name followed by the start of its description.
func (p Post) String() string {
	desc := []rune(p.Description)
	if len(desc) > 20 {
		desc = desc[:20]
	}
	return fmt.Sprintf("%s: %s", p.Name, string(desc))
}

// URL is the canonical detail path of the post.
func (p Post) URL() string {
	return fmt.Sprintf("/posts/%d", p.ID)
}
