package models

import (
	"time"

	"gorm.io/datatypes"
)

type SeatType struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	LibraryID   uint           `gorm:"not null;uniqueIndex:idx_library_seat_type" json:"library_id"`
	Name        string         `gorm:"type:varchar(100);not null;uniqueIndex:idx_library_seat_type" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Amenities   datatypes.JSON `json:"amenities"`
	IsActive    bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (st *SeatType) GetAmenities() []string {
	return decodeStrings(st.Amenities)
}

func (st *SeatType) SetAmenities(items []string) error {
	raw, err := encodeStrings(items)
	if err != nil {
		return err
	}
	st.Amenities = raw
	return nil
}

type Seat struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	LibraryID  uint      `gorm:"not null;uniqueIndex:idx_library_seat_number" json:"library_id"`
	Library    *Library  `gorm:"foreignKey:LibraryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	SeatTypeID uint      `gorm:"not null;index" json:"seat_type_id"`
	SeatType   *SeatType `gorm:"foreignKey:SeatTypeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"seat_type,omitempty"`
	SeatNumber string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_library_seat_number" json:"seat_number"`
	Notes      string    `gorm:"type:varchar(255)" json:"notes"`
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
