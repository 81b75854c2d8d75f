package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/library-seat-app/models"
	"github.com/yeremiapane/library-seat-app/services"
	"github.com/yeremiapane/library-seat-app/utils"
)

const maxBulkSeats = 200

type SeatController struct {
	DB         *gorm.DB
	Bookings   *services.BookingService
	Invalidate CacheInvalidator
}

func NewSeatController(db *gorm.DB, bookings *services.BookingService, invalidate CacheInvalidator) *SeatController {
	return &SeatController{DB: db, Bookings: bookings, Invalidate: invalidate}
}

// ensureIdle answers 409 when the seat still has upcoming confirmed bookings.
func (sc *SeatController) ensureIdle(c *gin.Context, seatID uint) bool {
	busy, err := sc.Bookings.HasFutureBookings(c.Request.Context(), seatID)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return false
	}
	if busy {
		utils.RespondError(c, http.StatusConflict, errors.New("seat has upcoming confirmed bookings"))
		return false
	}
	return true
}

// seatTypeOf checks that the seat type exists in the same library.
func (sc *SeatController) seatTypeOf(c *gin.Context, libraryID, seatTypeID uint) bool {
	var count int64
	if err := sc.DB.Model(&models.SeatType{}).Where("id = ? AND library_id = ?", seatTypeID, libraryID).Count(&count).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return false
	}
	if count == 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("seat type does not belong to your library"))
		return false
	}
	return true
}

func (sc *SeatController) ListSeats(c *gin.Context) {
	lib := ownLibrary(c, sc.DB)
	if lib == nil {
		return
	}

	q := sc.DB.Preload("SeatType").Where("library_id = ?", lib.ID)
	seatTypeID, ok, err := parseUintQuery(c, "seat_type_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if ok {
		q = q.Where("seat_type_id = ?", seatTypeID)
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("active must be true or false"))
			return
		}
		q = q.Where("is_active = ?", active)
	}

	seats := []models.Seat{}
	if err := q.Order("seat_number ASC").Find(&seats).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Seats retrieved", seats)
}

func (sc *SeatController) CreateSeat(c *gin.Context) {
	lib := ownLibrary(c, sc.DB)
	if lib == nil {
		return
	}
	var req struct {
		SeatNumber string `json:"seat_number" binding:"required,max=20"`
		SeatTypeID uint   `json:"seat_type_id" binding:"required"`
		Notes      string `json:"notes" binding:"max=255"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	number := strings.TrimSpace(req.SeatNumber)
	if number == "" {
		utils.RespondError(c, http.StatusBadRequest, errors.New("seat_number is required"))
		return
	}
	if !sc.seatTypeOf(c, lib.ID, req.SeatTypeID) {
		return
	}

	seat := models.Seat{
		LibraryID:  lib.ID,
		SeatTypeID: req.SeatTypeID,
		SeatNumber: number,
		Notes:      strings.TrimSpace(req.Notes),
		IsActive:   true,
	}
	if err := sc.DB.Create(&seat).Error; err != nil {
		if isDuplicateKey(err) {
			utils.RespondError(c, http.StatusConflict, fmt.Errorf("seat %s already exists", number))
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if err := sc.DB.Preload("SeatType").First(&seat, seat.ID).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	sc.Invalidate.run(c)
	utils.RespondJSON(c, http.StatusCreated, "Seat created", seat)
}

// BulkCreateSeats creates prefix+start .. prefix+(start+count-1), skipping
// numbers that already exist.
func (sc *SeatController) BulkCreateSeats(c *gin.Context) {
	lib := ownLibrary(c, sc.DB)
	if lib == nil {
		return
	}
	var req struct {
		Prefix     string `json:"prefix" binding:"max=10"`
		Start      int    `json:"start" binding:"min=0"`
		Count      int    `json:"count" binding:"required,min=1"`
		SeatTypeID uint   `json:"seat_type_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Count > maxBulkSeats {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("count cannot exceed %d", maxBulkSeats))
		return
	}
	if !sc.seatTypeOf(c, lib.ID, req.SeatTypeID) {
		return
	}

	prefix := strings.TrimSpace(req.Prefix)
	numbers := make([]string, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		numbers = append(numbers, prefix+strconv.Itoa(req.Start+i))
	}

	var existing []string
	if err := sc.DB.Model(&models.Seat{}).
		Where("library_id = ? AND seat_number IN ?", lib.ID, numbers).
		Pluck("seat_number", &existing).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	skip := make(map[string]bool, len(existing))
	for _, n := range existing {
		skip[n] = true
	}

	seats := make([]models.Seat, 0, len(numbers))
	for _, n := range numbers {
		if skip[n] {
			continue
		}
		seats = append(seats, models.Seat{
			LibraryID:  lib.ID,
			SeatTypeID: req.SeatTypeID,
			SeatNumber: n,
			IsActive:   true,
		})
	}
	if len(seats) > 0 {
		if err := sc.DB.Create(&seats).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		sc.Invalidate.run(c)
	}

	utils.InfoLogger.Printf("Library %d: bulk created %d seats (%d skipped)", lib.ID, len(seats), len(existing))
	utils.RespondJSON(c, http.StatusCreated, "Seats created", gin.H{
		"created": len(seats),
		"skipped": existing,
		"seats":   seats,
	})
}

func (sc *SeatController) findSeat(c *gin.Context, libraryID uint) *models.Seat {
	id, ok := parseIDParam(c, "seat_id")
	if !ok {
		return nil
	}
	var seat models.Seat
	if err := sc.DB.Where("id = ? AND library_id = ?", id, libraryID).First(&seat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, errors.New("seat not found"))
			return nil
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return nil
	}
	return &seat
}

func (sc *SeatController) UpdateSeat(c *gin.Context) {
	lib := ownLibrary(c, sc.DB)
	if lib == nil {
		return
	}
	seat := sc.findSeat(c, lib.ID)
	if seat == nil {
		return
	}
	var req struct {
		SeatNumber *string `json:"seat_number" binding:"omitempty,max=20"`
		SeatTypeID *uint   `json:"seat_type_id"`
		Notes      *string `json:"notes" binding:"omitempty,max=255"`
		IsActive   *bool   `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	updates := map[string]interface{}{}
	if req.SeatNumber != nil {
		number := trimmed(req.SeatNumber)
		if number == "" {
			utils.RespondError(c, http.StatusBadRequest, errors.New("seat_number cannot be empty"))
			return
		}
		updates["seat_number"] = number
	}
	if req.SeatTypeID != nil {
		if !sc.seatTypeOf(c, lib.ID, *req.SeatTypeID) {
			return
		}
		updates["seat_type_id"] = *req.SeatTypeID
	}
	if req.Notes != nil {
		updates["notes"] = trimmed(req.Notes)
	}
	if req.IsActive != nil {
		if !*req.IsActive && seat.IsActive && !sc.ensureIdle(c, seat.ID) {
			return
		}
		updates["is_active"] = *req.IsActive
	}
	if len(updates) > 0 {
		if err := sc.DB.Model(seat).Updates(updates).Error; err != nil {
			if isDuplicateKey(err) {
				utils.RespondError(c, http.StatusConflict, errors.New("seat number already exists"))
				return
			}
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		sc.Invalidate.run(c)
	}
	if err := sc.DB.Preload("SeatType").First(seat, seat.ID).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Seat updated", seat)
}

// DeleteSeat deactivates a seat that has no upcoming confirmed bookings.
func (sc *SeatController) DeleteSeat(c *gin.Context) {
	lib := ownLibrary(c, sc.DB)
	if lib == nil {
		return
	}
	seat := sc.findSeat(c, lib.ID)
	if seat == nil {
		return
	}

	if !sc.ensureIdle(c, seat.ID) {
		return
	}
	if err := sc.DB.Model(seat).Update("is_active", false).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	sc.Invalidate.run(c)
	utils.RespondJSON(c, http.StatusOK, "Seat deactivated", gin.H{"id": seat.ID})
}

// Availability is the member-facing seat grid for a date and time window.
func (sc *SeatController) Availability(c *gin.Context) {
	libraryID, ok := parseIDParam(c, "library_id")
	if !ok {
		return
	}
	seats, err := sc.Bookings.Availability(c.Request.Context(), libraryID,
		c.Query("date"), c.Query("start_time"), c.Query("end_time"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Seat availability retrieved", seats)
}
