package models

import (
	"time"
)

const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
	PaymentFailed    = "FAILED"
	PaymentRefunded  = "REFUNDED"
)

const (
	PaymentMethodCash   = "CASH"
	PaymentMethodOnline = "ONLINE"
)

// Payment represents a membership purchase
type Payment struct {
	ID           uint        `json:"id" gorm:"primaryKey"`
	UserID       uint        `json:"user_id" gorm:"not null;index"`
	User         *User       `json:"user,omitempty" gorm:"foreignKey:UserID"`
	LibraryID    uint        `json:"library_id" gorm:"not null;index"`
	MembershipID *uint       `json:"membership_id,omitempty"`
	Membership   *Membership `json:"membership,omitempty" gorm:"foreignKey:MembershipID"`
	Amount       float64     `json:"amount" gorm:"type:decimal(10,2);not null"`
	Method       string      `json:"method" gorm:"type:varchar(20);not null;default:'CASH'"`
	Status       string      `json:"status" gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Reference    string      `json:"reference" gorm:"type:varchar(64);uniqueIndex"` // order id sent to the gateway
	GatewayToken string      `json:"gateway_token,omitempty" gorm:"type:varchar(255)"`
	RedirectURL  string      `json:"redirect_url,omitempty" gorm:"type:varchar(512)"`
	PaidAt       *time.Time  `json:"paid_at"`
	VerifiedBy   *uint       `json:"verified_by"` // admin who confirmed a cash payment
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
