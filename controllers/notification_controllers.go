package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/library-seat-app/models"
	"github.com/yeremiapane/library-seat-app/services"
	"github.com/yeremiapane/library-seat-app/utils"
)

type NotificationController struct {
	DB *gorm.DB
}

func NewNotificationController(db *gorm.DB) *NotificationController {
	return &NotificationController{DB: db}
}

// GetMyNotifications lists the caller's notifications, newest first.
func (nc *NotificationController) GetMyNotifications(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	page := utils.ParsePage(c, utils.DefaultPageOpts)
	q := nc.DB.Model(&models.Notification{}).Where("user_id = ?", userID)
	if c.Query("unread") == "true" {
		q = q.Where("is_read = ?", false)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	var unread int64
	if err := nc.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&unread).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	notifs := []models.Notification{}
	if err := q.Order("created_at DESC, id DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&notifs).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notifications retrieved", gin.H{
		"items":        notifs,
		"unread_count": unread,
		"pagination":   utils.NewPageMeta(page, total),
	})
}

func (nc *NotificationController) MarkAsRead(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "notif_id")
	if !ok {
		return
	}
	res := nc.DB.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := nc.DB.Model(&models.Notification{}).Where("id = ? AND user_id = ?", id, userID).Count(&count).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		if count == 0 {
			utils.RespondError(c, http.StatusNotFound, errors.New("notification not found"))
			return
		}
	}
	utils.RespondJSON(c, http.StatusOK, "Notification marked as read", gin.H{"id": id})
}

func (nc *NotificationController) MarkAllAsRead(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	res := nc.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, res.Error)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All notifications marked as read", gin.H{"updated": res.RowsAffected})
}

func (nc *NotificationController) DeleteNotification(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "notif_id")
	if !ok {
		return
	}
	res := nc.DB.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Notification{})
	if res.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.RespondError(c, http.StatusNotFound, errors.New("notification not found"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification deleted", gin.H{"id": id})
}

// CreateNotification -> one user, or every active user when user_id is omitted
func (nc *NotificationController) CreateNotification(c *gin.Context) {
	var body struct {
		UserID  *uint  `json:"user_id"`
		Title   string `json:"title" binding:"max=100"`
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	title := strings.TrimSpace(body.Title)
	message := strings.TrimSpace(body.Message)
	if message == "" {
		utils.RespondError(c, http.StatusBadRequest, errors.New("message is required"))
		return
	}

	ctx := c.Request.Context()
	if body.UserID != nil {
		var count int64
		if err := nc.DB.Model(&models.User{}).Where("id = ?", *body.UserID).Count(&count).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		if count == 0 {
			utils.RespondError(c, http.StatusNotFound, errors.New("user not found"))
			return
		}
		notif, err := services.CreateNotification(ctx, nc.DB, *body.UserID, title, message, models.NotifSystem)
		if err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		utils.RespondJSON(c, http.StatusCreated, "Notification created", gin.H{"recipients": 1, "notification": notif})
		return
	}

	var ids []uint
	if err := nc.DB.Model(&models.User{}).Where("is_active = ?", true).Pluck("id", &ids).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	notifs := make([]models.Notification, 0, len(ids))
	for _, id := range ids {
		notifs = append(notifs, models.Notification{UserID: id, Title: title, Message: message, Type: models.NotifSystem})
	}
	if len(notifs) > 0 {
		if err := nc.DB.CreateInBatches(&notifs, 200).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
	}
	utils.InfoLogger.Printf("Broadcast notification sent to %d users", len(notifs))
	utils.RespondJSON(c, http.StatusCreated, "Notification broadcast", gin.H{"recipients": len(notifs)})
}
