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

type SeatTypeController struct {
	DB         *gorm.DB
	Invalidate CacheInvalidator
}

func NewSeatTypeController(db *gorm.DB, invalidate CacheInvalidator) *SeatTypeController {
	return &SeatTypeController{DB: db, Invalidate: invalidate}
}

type seatTypeItem struct {
	models.SeatType
	SeatCount int64 `json:"seat_count"`
}

func (sc *SeatTypeController) nameTaken(libraryID uint, name string, exceptID uint) (bool, error) {
	var count int64
	q := sc.DB.Model(&models.SeatType{}).Where("library_id = ? AND LOWER(name) = ?", libraryID, strings.ToLower(name))
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

func (sc *SeatTypeController) ListSeatTypes(c *gin.Context) {
	lib := ownLibrary(c, sc.DB)
	if lib == nil {
		return
	}

	var types []models.SeatType
	if err := sc.DB.Where("library_id = ?", lib.ID).Order("name ASC").Find(&types).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	var counts []struct {
		SeatTypeID uint
		Total      int64
	}
	if err := sc.DB.Model(&models.Seat{}).
		Select("seat_type_id, COUNT(*) AS total").
		Where("library_id = ? AND is_active = ?", lib.ID, true).
		Group("seat_type_id").Scan(&counts).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	byType := make(map[uint]int64, len(counts))
	for _, row := range counts {
		byType[row.SeatTypeID] = row.Total
	}

	items := make([]seatTypeItem, 0, len(types))
	for _, t := range types {
		items = append(items, seatTypeItem{SeatType: t, SeatCount: byType[t.ID]})
	}
	utils.RespondJSON(c, http.StatusOK, "Seat types retrieved", items)
}

func (sc *SeatTypeController) CreateSeatType(c *gin.Context) {
	lib := ownLibrary(c, sc.DB)
	if lib == nil {
		return
	}
	var req struct {
		Name        string   `json:"name" binding:"required,max=100"`
		Description string   `json:"description"`
		Amenities   []string `json:"amenities"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		utils.RespondError(c, http.StatusBadRequest, errors.New("name is required"))
		return
	}
	taken, err := sc.nameTaken(lib.ID, name, 0)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if taken {
		utils.RespondError(c, http.StatusConflict, errors.New("a seat type with this name already exists"))
		return
	}

	seatType := models.SeatType{
		LibraryID:   lib.ID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		IsActive:    true,
	}
	if err := seatType.SetAmenities(req.Amenities); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if err := sc.DB.Create(&seatType).Error; err != nil {
		if isDuplicateKey(err) {
			utils.RespondError(c, http.StatusConflict, errors.New("a seat type with this name already exists"))
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	sc.Invalidate.run(c)
	utils.RespondJSON(c, http.StatusCreated, "Seat type created", seatType)
}

func (sc *SeatTypeController) findSeatType(c *gin.Context, libraryID uint) *models.SeatType {
	id, ok := parseIDParam(c, "seat_type_id")
	if !ok {
		return nil
	}
	var seatType models.SeatType
	if err := sc.DB.Where("id = ? AND library_id = ?", id, libraryID).First(&seatType).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, errors.New("seat type not found"))
			return nil
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return nil
	}
	return &seatType
}

func (sc *SeatTypeController) UpdateSeatType(c *gin.Context) {
	lib := ownLibrary(c, sc.DB)
	if lib == nil {
		return
	}
	seatType := sc.findSeatType(c, lib.ID)
	if seatType == nil {
		return
	}
	var req struct {
		Name        *string  `json:"name" binding:"omitempty,max=100"`
		Description *string  `json:"description"`
		Amenities   []string `json:"amenities"`
		IsActive    *bool    `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := trimmed(req.Name)
		if name == "" {
			utils.RespondError(c, http.StatusBadRequest, errors.New("name cannot be empty"))
			return
		}
		taken, err := sc.nameTaken(lib.ID, name, seatType.ID)
		if err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		if taken {
			utils.RespondError(c, http.StatusConflict, errors.New("a seat type with this name already exists"))
			return
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = trimmed(req.Description)
	}
	if req.Amenities != nil {
		if err := seatType.SetAmenities(req.Amenities); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
		updates["amenities"] = seatType.Amenities
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) > 0 {
		if err := sc.DB.Model(seatType).Updates(updates).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
	}
	if err := sc.DB.First(seatType, seatType.ID).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	sc.Invalidate.run(c)
	utils.RespondJSON(c, http.StatusOK, "Seat type updated", seatType)
}

// DeleteSeatType removes an unused seat type and deactivates one that
// seats still reference.
func (sc *SeatTypeController) DeleteSeatType(c *gin.Context) {
	lib := ownLibrary(c, sc.DB)
	if lib == nil {
		return
	}
	seatType := sc.findSeatType(c, lib.ID)
	if seatType == nil {
		return
	}

	var seats int64
	if err := sc.DB.Model(&models.Seat{}).Where("seat_type_id = ?", seatType.ID).Count(&seats).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if seats == 0 {
		if err := sc.DB.Delete(seatType).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		sc.Invalidate.run(c)
		utils.RespondJSON(c, http.StatusOK, "Seat type deleted", gin.H{"id": seatType.ID, "deleted": true})
		return
	}

	if err := sc.DB.Model(seatType).Update("is_active", false).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	sc.Invalidate.run(c)
	utils.RespondJSON(c, http.StatusOK, "Seat type deactivated", gin.H{"id": seatType.ID, "deleted": false})
}
