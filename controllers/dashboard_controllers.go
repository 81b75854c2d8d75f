package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/library-seat-app/services"
	"github.com/yeremiapane/library-seat-app/utils"
)

type DashboardController struct {
	DB        *gorm.DB
	Dashboard *services.DashboardService
}

func NewDashboardController(db *gorm.DB, dashboard *services.DashboardService) *DashboardController {
	return &DashboardController{DB: db, Dashboard: dashboard}
}

func (dc *DashboardController) AdminStats(c *gin.Context) {
	lib := ownLibrary(c, dc.DB)
	if lib == nil {
		return
	}
	stats, err := dc.Dashboard.AdminStats(c.Request.Context(), lib.ID)
	if err != nil {
		utils.ErrorLogger.Printf("Dashboard stats for library %d failed: %v", lib.ID, err)
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Dashboard stats retrieved", stats)
}

func (dc *DashboardController) PlatformStats(c *gin.Context) {
	stats, err := dc.Dashboard.PlatformStats(c.Request.Context())
	if err != nil {
		utils.ErrorLogger.Printf("Platform stats failed: %v", err)
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Platform stats retrieved", stats)
}
