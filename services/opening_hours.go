package services

import (
	"fmt"
	"sort"

	"github.com/yeremiapane/library-seat-app/models"
	"github.com/yeremiapane/library-seat-app/utils"
)

// DaySchedule is the public shape of one weekday's opening hours.
type DaySchedule struct {
	Day       string `json:"day"`
	DayOfWeek int    `json:"day_of_week"`
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
	IsClosed  bool   `json:"is_closed"`
}

// OpeningHourInput is one entry of a weekly opening-hours replacement.
type OpeningHourInput struct {
	DayOfWeek int    `json:"day_of_week"`
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
	IsClosed  bool   `json:"is_closed"`
}

// TransformOpeningHours zips stored rows against Sunday..Saturday. Days
// without a row are reported as closed.
func TransformOpeningHours(rows []models.OpeningHour) []DaySchedule {
	byDay := make(map[int]models.OpeningHour, len(rows))
	for _, r := range rows {
		byDay[r.DayOfWeek] = r
	}

	out := make([]DaySchedule, 0, len(models.DayNames))
	for day, name := range models.DayNames {
		r, ok := byDay[day]
		if !ok {
			out = append(out, DaySchedule{Day: name, DayOfWeek: day, IsClosed: true})
			continue
		}
		out = append(out, DaySchedule{
			Day:       name,
			DayOfWeek: day,
			OpenTime:  r.OpenTime,
			CloseTime: r.CloseTime,
			IsClosed:  r.IsClosed,
		})
	}
	return out
}

// ValidateOpeningHours checks a full weekly schedule and returns the rows to
// store for libraryID, ordered by day.
func ValidateOpeningHours(libraryID uint, entries []OpeningHourInput) ([]models.OpeningHour, error) {
	if len(entries) != len(models.DayNames) {
		return nil, fmt.Errorf("%w: exactly %d days are required", ErrInvalidInput, len(models.DayNames))
	}

	seen := make(map[int]bool, len(entries))
	rows := make([]models.OpeningHour, 0, len(entries))
	for _, e := range entries {
		if e.DayOfWeek < 0 || e.DayOfWeek > 6 {
			return nil, fmt.Errorf("%w: day_of_week %d out of range", ErrInvalidInput, e.DayOfWeek)
		}
		if seen[e.DayOfWeek] {
			return nil, fmt.Errorf("%w: day_of_week %d given twice", ErrInvalidInput, e.DayOfWeek)
		}
		seen[e.DayOfWeek] = true

		openAt, closeAt := e.OpenTime, e.CloseTime
		if e.IsClosed {
			if openAt == "" {
				openAt = models.DefaultOpenTime
			}
			if closeAt == "" {
				closeAt = models.DefaultCloseTime
			}
		}
		openMin, err := utils.ClockMinutes(openAt)
		if err != nil {
			return nil, fmt.Errorf("%w: %s open_time: %v", ErrInvalidInput, models.DayNames[e.DayOfWeek], err)
		}
		closeMin, err := utils.ClockMinutes(closeAt)
		if err != nil {
			return nil, fmt.Errorf("%w: %s close_time: %v", ErrInvalidInput, models.DayNames[e.DayOfWeek], err)
		}
		if !e.IsClosed && openMin >= closeMin {
			return nil, fmt.Errorf("%w: %s open_time must be before close_time", ErrInvalidInput, models.DayNames[e.DayOfWeek])
		}

		rows = append(rows, models.OpeningHour{
			LibraryID: libraryID,
			DayOfWeek: e.DayOfWeek,
			OpenTime:  openAt,
			CloseTime: closeAt,
			IsClosed:  e.IsClosed,
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].DayOfWeek < rows[j].DayOfWeek })
	return rows, nil
}
