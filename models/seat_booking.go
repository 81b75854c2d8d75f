package models

import "time"

const (
	BookingConfirmed = "CONFIRMED"
	BookingCompleted = "COMPLETED"
	BookingCancelled = "CANCELLED"
	BookingNoShow    = "NO_SHOW"
)

type SeatBooking struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;index" json:"user_id"`
	User        *User      `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"user,omitempty"`
	LibraryID   uint       `gorm:"not null;index" json:"library_id"`
	Library     *Library   `gorm:"foreignKey:LibraryID;references:ID" json:"library,omitempty"`
	SeatID      uint       `gorm:"not null;index:idx_seat_date_status" json:"seat_id"`
	Seat        *Seat      `gorm:"foreignKey:SeatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"seat,omitempty"`
	BookingDate string     `gorm:"type:varchar(10);not null;index:idx_seat_date_status" json:"date"`
	StartTime   string     `gorm:"type:varchar(5);not null" json:"start_time"`
	EndTime     string     `gorm:"type:varchar(5);not null" json:"end_time"`
	Status      string     `gorm:"type:varchar(20);not null;default:'CONFIRMED';index:idx_seat_date_status" json:"status"`
	Notes       string     `gorm:"type:varchar(500)" json:"notes"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CanTransitionTo reports whether the booking may move to next.
// Only CONFIRMED bookings change state; every other status is terminal.
func (b *SeatBooking) CanTransitionTo(next string) bool {
	if b.Status != BookingConfirmed {
		return false
	}
	switch next {
	case BookingCompleted, BookingCancelled, BookingNoShow:
		return true
	}
	return false
}
