package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/yeremiapane/library-seat-app/models"
	"github.com/yeremiapane/library-seat-app/utils"
)

// CreateNotification stores an in-app notification.
func CreateNotification(ctx context.Context, db *gorm.DB, userID uint, title, message, kind string) (*models.Notification, error) {
	n := models.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    kind,
	}
	if err := db.WithContext(ctx).Create(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// Notify is the best-effort form used by background flows. Errors are logged.
func Notify(ctx context.Context, db *gorm.DB, userID uint, title, message, kind string) {
	if _, err := CreateNotification(ctx, db, userID, title, message, kind); err != nil {
		utils.ErrorLogger.Printf("Failed to create notification for user %d: %v", userID, err)
	}
}
