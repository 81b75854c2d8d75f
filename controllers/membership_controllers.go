package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/library-seat-app/models"
	"github.com/yeremiapane/library-seat-app/services"
	"github.com/yeremiapane/library-seat-app/utils"
)

type MembershipController struct {
	DB          *gorm.DB
	Memberships *services.MembershipService
}

func NewMembershipController(db *gorm.DB, memberships *services.MembershipService) *MembershipController {
	return &MembershipController{DB: db, Memberships: memberships}
}

func (mc *MembershipController) Purchase(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req struct {
		PlanID        uint   `json:"plan_id" binding:"required"`
		PaymentMethod string `json:"payment_method" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	method := strings.ToUpper(strings.TrimSpace(req.PaymentMethod))
	result, err := mc.Memberships.Purchase(c.Request.Context(), userID, req.PlanID, method)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Membership created", result)
}

func (mc *MembershipController) MyMemberships(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	memberships := []models.Membership{}
	if err := mc.DB.Preload("Plan").Preload("Library").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&memberships).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Memberships retrieved", memberships)
}

func (mc *MembershipController) ListLibraryMemberships(c *gin.Context) {
	lib := ownLibrary(c, mc.DB)
	if lib == nil {
		return
	}
	page := utils.ParsePage(c, utils.AdminPageOpts)
	q := mc.DB.Model(&models.Membership{}).Where("library_id = ?", lib.ID)
	if status := strings.ToUpper(c.Query("status")); status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	memberships := []models.Membership{}
	if err := q.Preload("User").Preload("Plan").
		Order("created_at DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&memberships).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Memberships retrieved", gin.H{
		"items":      memberships,
		"pagination": utils.NewPageMeta(page, total),
	})
}

func (mc *MembershipController) CancelMembership(c *gin.Context) {
	lib := ownLibrary(c, mc.DB)
	if lib == nil {
		return
	}
	id, ok := parseIDParam(c, "membership_id")
	if !ok {
		return
	}
	membership, err := mc.Memberships.CancelMembership(c.Request.Context(), lib.ID, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Membership cancelled", membership)
}
