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

type SuperAdminController struct {
	DB         *gorm.DB
	Invalidate CacheInvalidator
}

func NewSuperAdminController(db *gorm.DB, invalidate CacheInvalidator) *SuperAdminController {
	return &SuperAdminController{DB: db, Invalidate: invalidate}
}

// ListLibraries returns every library, active or not, with its owner.
func (sc *SuperAdminController) ListLibraries(c *gin.Context) {
	page := utils.ParsePage(c, utils.AdminPageOpts)
	q := sc.DB.Model(&models.Library{})
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q = q.Where("LOWER(name) LIKE ? ESCAPE '!'", utils.ContainsPattern(search))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	libraries := []models.Library{}
	if err := q.Preload("Owner").
		Order("created_at DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&libraries).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Libraries retrieved", gin.H{
		"items":      libraries,
		"pagination": utils.NewPageMeta(page, total),
	})
}

func (sc *SuperAdminController) UpdateLibraryStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "library_id")
	if !ok {
		return
	}
	var req struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var lib models.Library
	if err := sc.DB.First(&lib, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, errors.New("library not found"))
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if err := sc.DB.Model(&lib).Update("is_active", *req.IsActive).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	lib.IsActive = *req.IsActive
	sc.Invalidate.run(c)

	utils.InfoLogger.Printf("Library %d is_active set to %t", lib.ID, *req.IsActive)
	utils.RespondJSON(c, http.StatusOK, "Library status updated", lib)
}

func (sc *SuperAdminController) ListUsers(c *gin.Context) {
	page := utils.ParsePage(c, utils.AdminPageOpts)
	q := sc.DB.Model(&models.User{})
	if role := strings.ToUpper(c.Query("role")); role != "" {
		q = q.Where("role = ?", role)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := utils.ContainsPattern(search)
		q = q.Where("LOWER(name) LIKE ? ESCAPE '!' OR LOWER(email) LIKE ? ESCAPE '!'", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	users := []models.User{}
	if err := q.Order("created_at DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&users).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Users retrieved", gin.H{
		"items":      users,
		"pagination": utils.NewPageMeta(page, total),
	})
}

func (sc *SuperAdminController) UpdateUser(c *gin.Context) {
	id, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}
	var req struct {
		Role     *string `json:"role"`
		IsActive *bool   `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var user models.User
	if err := sc.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, errors.New("user not found"))
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if self, _ := currentUserID(c); self == user.ID {
		utils.RespondError(c, http.StatusBadRequest, errors.New("you cannot change your own account here"))
		return
	}

	updates := map[string]interface{}{}
	if req.Role != nil {
		role := strings.ToUpper(strings.TrimSpace(*req.Role))
		if !models.IsValidRole(role) {
			utils.RespondError(c, http.StatusBadRequest, errors.New("role must be USER, ADMIN or SUPER_ADMIN"))
			return
		}
		updates["role"] = role
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("nothing to update"))
		return
	}
	if err := sc.DB.Model(&user).Updates(updates).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if err := sc.DB.First(&user, user.ID).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "User updated", user)
}
