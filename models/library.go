package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// MaxLibraryImages caps the gallery size of a library profile.
const MaxLibraryImages = 10

type Library struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	OwnerID      uint           `gorm:"not null;uniqueIndex" json:"owner_id"`
	Owner        *User          `gorm:"foreignKey:OwnerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"owner,omitempty"`
	Name         string         `gorm:"type:varchar(255);not null" json:"name"`
	Description  string         `gorm:"type:text" json:"description"`
	Address      string         `gorm:"type:varchar(500);not null" json:"address"`
	City         string         `gorm:"type:varchar(100);not null;index" json:"city"`
	State        string         `gorm:"type:varchar(100)" json:"state"`
	Pincode      string         `gorm:"type:varchar(12)" json:"pincode"`
	Email        string         `gorm:"type:varchar(255)" json:"email"`
	Phone        string         `gorm:"type:varchar(20)" json:"phone"`
	Images       datatypes.JSON `json:"images"`
	Amenities    datatypes.JSON `json:"amenities"`
	IsActive     bool           `gorm:"not null;default:true;index" json:"is_active"`
	OpeningHours []OpeningHour  `gorm:"foreignKey:LibraryID" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// GetImages decodes the stored gallery. A malformed column yields an empty slice.
func (l *Library) GetImages() []string {
	return decodeStrings(l.Images)
}

func (l *Library) SetImages(urls []string) error {
	raw, err := encodeStrings(urls)
	if err != nil {
		return err
	}
	l.Images = raw
	return nil
}

func (l *Library) GetAmenities() []string {
	return decodeStrings(l.Amenities)
}

func (l *Library) SetAmenities(items []string) error {
	raw, err := encodeStrings(items)
	if err != nil {
		return err
	}
	l.Amenities = raw
	return nil
}

func decodeStrings(raw datatypes.JSON) []string {
	out := []string{}
	if len(raw) == 0 {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return []string{}
	}
	return out
}

func encodeStrings(items []string) (datatypes.JSON, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
