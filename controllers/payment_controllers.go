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

type PaymentController struct {
	DB          *gorm.DB
	Memberships *services.MembershipService
}

func NewPaymentController(db *gorm.DB, memberships *services.MembershipService) *PaymentController {
	return &PaymentController{DB: db, Memberships: memberships}
}

func (pc *PaymentController) GetAllPayments(c *gin.Context) {
	lib := ownLibrary(c, pc.DB)
	if lib == nil {
		return
	}
	page := utils.ParsePage(c, utils.AdminPageOpts)
	q := pc.DB.Model(&models.Payment{}).Where("library_id = ?", lib.ID)
	if status := strings.ToUpper(c.Query("status")); status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	payments := []models.Payment{}
	if err := q.Preload("User").Preload("Membership.Plan").
		Order("created_at DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&payments).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payments retrieved", gin.H{
		"items":      payments,
		"pagination": utils.NewPageMeta(page, total),
	})
}

func (pc *PaymentController) GetPaymentByID(c *gin.Context) {
	lib := ownLibrary(c, pc.DB)
	if lib == nil {
		return
	}
	id, ok := parseIDParam(c, "payment_id")
	if !ok {
		return
	}
	var payment models.Payment
	if err := pc.DB.Preload("User").Preload("Membership.Plan").
		Where("id = ? AND library_id = ?", id, lib.ID).
		First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, services.ErrPaymentNotFound)
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment retrieved", payment)
}

// VerifyPayment confirms a cash payment received at the desk.
func (pc *PaymentController) VerifyPayment(c *gin.Context) {
	lib := ownLibrary(c, pc.DB)
	if lib == nil {
		return
	}
	id, ok := parseIDParam(c, "payment_id")
	if !ok {
		return
	}
	payment, err := pc.Memberships.VerifyPayment(c.Request.Context(), lib.ID, id, lib.OwnerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment verified", payment)
}

// HandlePaymentCallback receives Midtrans HTTP notifications.
func (pc *PaymentController) HandlePaymentCallback(c *gin.Context) {
	var n services.GatewayNotification
	if err := c.ShouldBindJSON(&n); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if err := pc.Memberships.HandleNotification(c.Request.Context(), n); err != nil {
		utils.ErrorLogger.Printf("Payment notification %s (%s) rejected: %v", n.OrderID, n.TransactionStatus, err)
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification processed", gin.H{"order_id": n.OrderID})
}
