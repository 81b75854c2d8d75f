package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/library-seat-app/models"
	"github.com/yeremiapane/library-seat-app/utils"
)

type MembershipPlanController struct {
	DB         *gorm.DB
	Invalidate CacheInvalidator
}

func NewMembershipPlanController(db *gorm.DB, invalidate CacheInvalidator) *MembershipPlanController {
	return &MembershipPlanController{DB: db, Invalidate: invalidate}
}

type planRequest struct {
	Name         *string  `json:"name" binding:"omitempty,max=100"`
	Description  *string  `json:"description"`
	Price        *float64 `json:"price" binding:"omitempty,min=0"`
	DurationDays *int     `json:"duration_days" binding:"omitempty,min=1,max=366"`
	HoursPerDay  *int     `json:"hours_per_day" binding:"omitempty,min=0,max=24"`
	Features     []string `json:"features"`
	IsActive     *bool    `json:"is_active"`
}

func (r planRequest) validate(creating bool) error {
	if creating {
		if r.Name == nil || r.Price == nil || r.DurationDays == nil {
			return errors.New("name, price and duration_days are required")
		}
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return errors.New("name cannot be empty")
	}
	if r.Price != nil && *r.Price < 0 {
		return errors.New("price cannot be negative")
	}
	if r.DurationDays != nil && (*r.DurationDays < 1 || *r.DurationDays > 366) {
		return errors.New("duration_days must be between 1 and 366")
	}
	if r.HoursPerDay != nil && (*r.HoursPerDay < 0 || *r.HoursPerDay > 24) {
		return errors.New("hours_per_day must be between 0 and 24")
	}
	return nil
}

func (r planRequest) apply(plan *models.MembershipPlan) error {
	if r.Name != nil {
		plan.Name = strings.TrimSpace(*r.Name)
	}
	if r.Description != nil {
		plan.Description = strings.TrimSpace(*r.Description)
	}
	if r.Price != nil {
		plan.Price = *r.Price
	}
	if r.DurationDays != nil {
		plan.DurationDays = *r.DurationDays
	}
	if r.HoursPerDay != nil {
		plan.HoursPerDay = *r.HoursPerDay
	}
	if r.IsActive != nil {
		plan.IsActive = *r.IsActive
	}
	if r.Features != nil || plan.Features == nil {
		return plan.SetFeatures(r.Features)
	}
	return nil
}

// ListPublicPlans returns the active plans of an active library.
func (pc *MembershipPlanController) ListPublicPlans(c *gin.Context) {
	libraryID, ok := parseIDParam(c, "library_id")
	if !ok {
		return
	}
	var lib models.Library
	if err := pc.DB.Where("id = ? AND is_active = ?", libraryID, true).First(&lib).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, errors.New("library not found"))
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	plans := []models.MembershipPlan{}
	if err := pc.DB.Where("library_id = ? AND is_active = ?", libraryID, true).
		Order("price ASC").Find(&plans).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Plans retrieved", plans)
}

func (pc *MembershipPlanController) ListPlans(c *gin.Context) {
	lib := ownLibrary(c, pc.DB)
	if lib == nil {
		return
	}
	plans := []models.MembershipPlan{}
	if err := pc.DB.Where("library_id = ?", lib.ID).Order("created_at DESC").Find(&plans).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Plans retrieved", plans)
}

func (pc *MembershipPlanController) CreatePlan(c *gin.Context) {
	lib := ownLibrary(c, pc.DB)
	if lib == nil {
		return
	}
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if err := req.validate(true); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	plan := models.MembershipPlan{LibraryID: lib.ID, IsActive: true}
	if err := req.apply(&plan); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if err := pc.DB.Create(&plan).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.InfoLogger.Printf("Library %d: plan %q created", lib.ID, plan.Name)
	pc.Invalidate.run(c)
	utils.RespondJSON(c, http.StatusCreated, "Plan created", plan)
}

func (pc *MembershipPlanController) findPlan(c *gin.Context, libraryID uint) *models.MembershipPlan {
	id, ok := parseIDParam(c, "plan_id")
	if !ok {
		return nil
	}
	var plan models.MembershipPlan
	if err := pc.DB.Where("id = ? AND library_id = ?", id, libraryID).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, errors.New("plan not found"))
			return nil
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return nil
	}
	return &plan
}

func (pc *MembershipPlanController) GetPlan(c *gin.Context) {
	lib := ownLibrary(c, pc.DB)
	if lib == nil {
		return
	}
	if plan := pc.findPlan(c, lib.ID); plan != nil {
		utils.RespondJSON(c, http.StatusOK, "Plan retrieved", plan)
	}
}

func (pc *MembershipPlanController) UpdatePlan(c *gin.Context) {
	lib := ownLibrary(c, pc.DB)
	if lib == nil {
		return
	}
	plan := pc.findPlan(c, lib.ID)
	if plan == nil {
		return
	}
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if err := req.validate(false); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if err := req.apply(plan); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if err := pc.DB.Save(plan).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	pc.Invalidate.run(c)
	utils.RespondJSON(c, http.StatusOK, "Plan updated", plan)
}

// DeletePlan deactivates the plan; memberships keep referencing it.
func (pc *MembershipPlanController) DeletePlan(c *gin.Context) {
	lib := ownLibrary(c, pc.DB)
	if lib == nil {
		return
	}
	plan := pc.findPlan(c, lib.ID)
	if plan == nil {
		return
	}
	if err := pc.DB.Model(plan).Update("is_active", false).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	pc.Invalidate.run(c)
	utils.RespondJSON(c, http.StatusOK, "Plan deactivated", gin.H{"id": plan.ID})
}
