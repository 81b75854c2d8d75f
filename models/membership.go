package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	MembershipPending   = "PENDING"
	MembershipActive    = "ACTIVE"
	MembershipExpired   = "EXPIRED"
	MembershipCancelled = "CANCELLED"
)

type MembershipPlan struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	LibraryID    uint           `gorm:"not null;index" json:"library_id"`
	Library      *Library       `gorm:"foreignKey:LibraryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"library,omitempty"`
	Name         string         `gorm:"type:varchar(100);not null" json:"name"`
	Description  string         `gorm:"type:text" json:"description"`
	Price        float64        `gorm:"type:decimal(10,2);not null;default:0" json:"price"`
	DurationDays int            `gorm:"not null" json:"duration_days"`
	HoursPerDay  int            `gorm:"not null;default:0" json:"hours_per_day"`
	Features     datatypes.JSON `json:"features"`
	IsActive     bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (p *MembershipPlan) GetFeatures() []string {
	return decodeStrings(p.Features)
}

func (p *MembershipPlan) SetFeatures(items []string) error {
	raw, err := encodeStrings(items)
	if err != nil {
		return err
	}
	p.Features = raw
	return nil
}

type Membership struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"not null;index" json:"user_id"`
	User      *User           `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"user,omitempty"`
	LibraryID uint            `gorm:"not null;index" json:"library_id"`
	Library   *Library        `gorm:"foreignKey:LibraryID;references:ID" json:"library,omitempty"`
	PlanID    uint            `gorm:"not null" json:"plan_id"`
	Plan      *MembershipPlan `gorm:"foreignKey:PlanID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"plan,omitempty"`
	StartDate string          `gorm:"type:varchar(10)" json:"start_date"`
	EndDate   string          `gorm:"type:varchar(10);index" json:"end_date"`
	Status    string          `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	PaymentID *uint           `json:"payment_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
