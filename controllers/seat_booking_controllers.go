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

type SeatBookingController struct {
	DB       *gorm.DB
	Bookings *services.BookingService
}

func NewSeatBookingController(db *gorm.DB, bookings *services.BookingService) *SeatBookingController {
	return &SeatBookingController{DB: db, Bookings: bookings}
}

func (bc *SeatBookingController) CreateBooking(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req struct {
		SeatID    uint   `json:"seat_id" binding:"required"`
		Date      string `json:"date" binding:"required,datestr"`
		StartTime string `json:"start_time" binding:"required,hhmm"`
		EndTime   string `json:"end_time" binding:"required,hhmm"`
		Notes     string `json:"notes" binding:"max=500"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	booking, err := bc.Bookings.Book(c.Request.Context(), services.BookingRequest{
		UserID:    userID,
		SeatID:    req.SeatID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Notes:     strings.TrimSpace(req.Notes),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Booking confirmed", booking)
}

func (bc *SeatBookingController) MyBookings(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	q := bc.DB.Preload("Seat.SeatType").Preload("Library").Where("user_id = ?", userID)
	if status := strings.ToUpper(c.Query("status")); status != "" {
		q = q.Where("status = ?", status)
	}
	if from := c.Query("from"); from != "" {
		if !utils.IsValidDate(from) {
			utils.RespondError(c, http.StatusBadRequest, errors.New("from must be YYYY-MM-DD"))
			return
		}
		q = q.Where("booking_date >= ?", from)
	}
	if to := c.Query("to"); to != "" {
		if !utils.IsValidDate(to) {
			utils.RespondError(c, http.StatusBadRequest, errors.New("to must be YYYY-MM-DD"))
			return
		}
		q = q.Where("booking_date <= ?", to)
	}

	bookings := []models.SeatBooking{}
	if err := q.Order("booking_date DESC, start_time DESC").Find(&bookings).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Bookings retrieved", bookings)
}

func (bc *SeatBookingController) CancelBooking(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "booking_id")
	if !ok {
		return
	}
	booking, err := bc.Bookings.Cancel(c.Request.Context(), userID, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Booking cancelled", booking)
}

func (bc *SeatBookingController) ListLibraryBookings(c *gin.Context) {
	lib := ownLibrary(c, bc.DB)
	if lib == nil {
		return
	}
	page := utils.ParsePage(c, utils.AdminPageOpts)

	q := bc.DB.Model(&models.SeatBooking{}).Where("library_id = ?", lib.ID)
	if date := c.Query("date"); date != "" {
		if !utils.IsValidDate(date) {
			utils.RespondError(c, http.StatusBadRequest, errors.New("date must be YYYY-MM-DD"))
			return
		}
		q = q.Where("booking_date = ?", date)
	}
	if status := strings.ToUpper(c.Query("status")); status != "" {
		q = q.Where("status = ?", status)
	}
	seatID, ok, err := parseUintQuery(c, "seat_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if ok {
		q = q.Where("seat_id = ?", seatID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	bookings := []models.SeatBooking{}
	if err := q.Preload("User").Preload("Seat").
		Order("booking_date DESC, start_time ASC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&bookings).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Bookings retrieved", gin.H{
		"items":      bookings,
		"pagination": utils.NewPageMeta(page, total),
	})
}

func (bc *SeatBookingController) UpdateBookingStatus(c *gin.Context) {
	lib := ownLibrary(c, bc.DB)
	if lib == nil {
		return
	}
	id, ok := parseIDParam(c, "booking_id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	booking, err := bc.Bookings.UpdateStatus(c.Request.Context(), lib.ID, id, strings.ToUpper(strings.TrimSpace(req.Status)))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Booking status updated", booking)
}
