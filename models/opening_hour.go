package models

import "time"

// DayNames maps day_of_week (0 = Sunday) to its display name.
var DayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

const (
	DefaultOpenTime  = "09:00"
	DefaultCloseTime = "21:00"
)

type OpeningHour struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LibraryID uint      `gorm:"not null;uniqueIndex:idx_library_day" json:"library_id"`
	DayOfWeek int       `gorm:"not null;uniqueIndex:idx_library_day" json:"day_of_week"`
	OpenTime  string    `gorm:"type:varchar(5);not null" json:"open_time"`
	CloseTime string    `gorm:"type:varchar(5);not null" json:"close_time"`
	IsClosed  bool      `gorm:"not null;default:false" json:"is_closed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultOpeningHours returns the seven rows a new library starts with.
func DefaultOpeningHours(libraryID uint) []OpeningHour {
	rows := make([]OpeningHour, 0, len(DayNames))
	for day := range DayNames {
		rows = append(rows, OpeningHour{
			LibraryID: libraryID,
			DayOfWeek: day,
			OpenTime:  DefaultOpenTime,
			CloseTime: DefaultCloseTime,
		})
	}
	return rows
}
