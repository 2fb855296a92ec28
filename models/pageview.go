package models

import "time"

// ViewDayLayout formats PageView.Day.
const ViewDayLayout = "2006-01-02"

// PageView counts successful GETs of one board path on one local day.
// Day is stored as text so every driver compares it the same way.
type PageView struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Day       string    `gorm:"size:10;uniqueIndex:idx_page_views_day_path;not null" json:"day"`
	Path      string    `gorm:"size:255;index;uniqueIndex:idx_page_views_day_path;not null" json:"path"`
	Count     int64     `gorm:"not null;default:0" json:"count"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ViewDay returns the PageView.Day bucket t falls into.
func ViewDay(t time.Time) string {
	return t.In(time.Local).Format(ViewDayLayout)
}
