// Package filters turns raw query parameters into record-matching query clauses.
package filters

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/guildboard/models"
)

// Filter narrows a record query. Implementations must never fail on bad
// input: values that do not parse are skipped.
type Filter interface {
	Apply(q *gorm.DB) *gorm.DB
}

// DateLayout is the accepted format of date filters.
const DateLayout = "2006-01-02"

// PostFilter supports name (case-insensitive substring), category (exact),
// author (user id) and created_after (date, exclusive).
type PostFilter struct {
	data    map[string]string
	applied map[string]interface{}

	name         string
	category     models.Category
	authorID     uint
	createdAfter time.Time
}

// State is the filterset as shown next to the listing.
type State struct {
	Data       map[string]string       `json:"data"`
	Applied    map[string]interface{}  `json:"applied"`
	Categories []models.CategoryChoice `json:"categories"`
}

// likeEscaper makes LIKE wildcards in user input match literally; '!' is the
// ESCAPE character because backslash quoting differs between drivers.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

var postFilterKeys = []string{"name", "category", "author", "created_after"}

// NewPostFilter reads the recognised keys of params. Unknown keys are ignored.
func NewPostFilter(params url.Values) *PostFilter {
	f := &PostFilter{data: map[string]string{}, applied: map[string]interface{}{}}
	for _, key := range postFilterKeys {
		if v, ok := params[key]; ok && len(v) > 0 {
			f.data[key] = v[0]
		}
	}

	if name := strings.TrimSpace(f.data["name"]); name != "" {
		f.name = name
		f.applied["name"] = name
	}
	if c := models.Category(strings.TrimSpace(f.data["category"])); c.Valid() {
		f.category = c
		f.applied["category"] = c
	}
	if id, err := strconv.ParseUint(strings.TrimSpace(f.data["author"]), 10, 64); err == nil && id > 0 {
		f.authorID = uint(id)
		f.applied["author"] = f.authorID
	}
	if t, err := time.Parse(DateLayout, strings.TrimSpace(f.data["created_after"])); err == nil {
		f.createdAfter = t
		f.applied["created_after"] = t.Format(DateLayout)
	}
	return f
}

// Apply adds one WHERE clause per applied filter.
func (f *PostFilter) Apply(q *gorm.DB) *gorm.DB {
	if f.name != "" {
		q = q.Where("posts.name_folded LIKE ? ESCAPE '!'", "%"+likeEscaper.Replace(models.FoldName(f.name))+"%")
	}
	if f.category != "" {
		q = q.Where("posts.category = ?", f.category)
	}
	if f.authorID != 0 {
		q = q.Where("posts.author_id = ?", f.authorID)
	}
	if !f.createdAfter.IsZero() {
		q = q.Where("posts.created > ?", f.createdAfter)
	}
	return q
}

// IsEmpty reports whether no filter is applied.
func (f *PostFilter) IsEmpty() bool {
	return len(f.applied) == 0
}

// State returns the raw and applied values for display.
func (f *PostFilter) State() State {
	return State{Data: f.data, Applied: f.applied, Categories: models.Categories}
}
