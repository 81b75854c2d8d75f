package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/library-seat-app/hub"
	"github.com/yeremiapane/library-seat-app/models"
	"github.com/yeremiapane/library-seat-app/utils"
)

var tracer = otel.Tracer("github.com/yeremiapane/library-seat-app/services")

type BookingRules struct {
	MaxAdvanceDays int
	MaxHours       int
}

var DefaultBookingRules = BookingRules{MaxAdvanceDays: 7, MaxHours: 12}

type BookingRequest struct {
	UserID    uint
	SeatID    uint
	Date      string
	StartTime string
	EndTime   string
	Notes     string
}

// SeatAvailability is one row of the availability grid.
type SeatAvailability struct {
	ID         uint             `json:"id"`
	SeatNumber string           `json:"seat_number"`
	SeatType   *models.SeatType `json:"seat_type,omitempty"`
	Available  bool             `json:"available"`
}

type BookingService struct {
	db     *gorm.DB
	rules  BookingRules
	events Publisher
	hub    *hub.Hub
	Now    func() time.Time
}

func NewBookingService(db *gorm.DB, rules BookingRules, events Publisher, h *hub.Hub) *BookingService {
	if events == nil {
		events = NoopPublisher{}
	}
	return &BookingService{db: db, rules: rules, events: events, hub: h, Now: time.Now}
}

// Book validates and stores a seat booking. The seat row is locked while
// the overlap checks and the insert run, so two requests for the same seat
// cannot both succeed.
func (s *BookingService) Book(ctx context.Context, req BookingRequest) (*models.SeatBooking, error) {
	ctx, span := tracer.Start(ctx, "BookingService.Book")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("seat.id", int64(req.SeatID)),
		attribute.String("booking.date", req.Date),
	)

	startMin, endMin, err := s.validateWindow(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	var seat models.Seat
	if err := s.db.WithContext(ctx).Preload("Library").First(&seat, req.SeatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSeatNotFound
		}
		return nil, err
	}
	if !seat.IsActive {
		return nil, ErrSeatInactive
	}
	if seat.Library == nil || !seat.Library.IsActive {
		return nil, ErrLibraryInactive
	}

	if err := s.checkOpeningHours(ctx, seat.LibraryID, req.Date, startMin, endMin); err != nil {
		return nil, err
	}

	membership, err := s.ActiveMembership(ctx, req.UserID, seat.LibraryID, req.Date)
	if err != nil {
		return nil, err
	}
	if membership.Plan != nil && membership.Plan.HoursPerDay > 0 {
		used, err := s.bookedMinutes(ctx, req.UserID, seat.LibraryID, req.Date)
		if err != nil {
			return nil, err
		}
		if used+(endMin-startMin) > membership.Plan.HoursPerDay*60 {
			return nil, fmt.Errorf("%w (%d hours per day)", ErrDailyHoursExceeded, membership.Plan.HoursPerDay)
		}
	}

	booking := models.SeatBooking{
		UserID:      req.UserID,
		LibraryID:   seat.LibraryID,
		SeatID:      seat.ID,
		BookingDate: req.Date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Status:      models.BookingConfirmed,
		Notes:       req.Notes,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.Seat
		q := tx
		if tx.Dialector.Name() != "sqlite" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&locked, seat.ID).Error; err != nil {
			return err
		}

		var clash int64
		if err := tx.Model(&models.SeatBooking{}).
			Where("seat_id = ? AND booking_date = ? AND status = ?", seat.ID, req.Date, models.BookingConfirmed).
			Where("start_time < ? AND end_time > ?", req.EndTime, req.StartTime).
			Count(&clash).Error; err != nil {
			return err
		}
		if clash > 0 {
			return ErrSeatUnavailable
		}

		if err := tx.Model(&models.SeatBooking{}).
			Where("user_id = ? AND booking_date = ? AND status = ?", req.UserID, req.Date, models.BookingConfirmed).
			Where("start_time < ? AND end_time > ?", req.EndTime, req.StartTime).
			Count(&clash).Error; err != nil {
			return err
		}
		if clash > 0 {
			return ErrUserBookingOverlap
		}

		return tx.Create(&booking).Error
	})
	if err != nil {
		if !errors.Is(err, ErrSeatUnavailable) && !errors.Is(err, ErrUserBookingOverlap) {
			span.RecordError(err)
			utils.ErrorLogger.Printf("Failed to create booking for seat %d: %v", seat.ID, err)
		}
		return nil, err
	}

	booking.Seat = &seat
	utils.InfoLogger.Printf("Booking %d confirmed: seat %s on %s %s-%s", booking.ID, seat.SeatNumber, booking.BookingDate, booking.StartTime, booking.EndTime)

	Notify(ctx, s.db, req.UserID, "Booking confirmed",
		fmt.Sprintf("Seat %s is booked on %s from %s to %s.", seat.SeatNumber, booking.BookingDate, booking.StartTime, booking.EndTime),
		models.NotifBooking)
	publishEvent(ctx, s.events, EventBookingConfirmed, booking)
	s.hub.Broadcast(booking.LibraryID, hub.EventBookingCreated, booking)
	s.hub.BroadcastDashboardUpdate(booking.LibraryID)

	return &booking, nil
}

func (s *BookingService) validateWindow(date, start, end string) (int, int, error) {
	if !utils.IsValidDate(date) {
		return 0, 0, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	startMin, err := utils.ClockMinutes(start)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: start_time must be HH:MM", ErrInvalidInput)
	}
	endMin, err := utils.ClockMinutes(end)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: end_time must be HH:MM", ErrInvalidInput)
	}
	if startMin >= endMin {
		return 0, 0, fmt.Errorf("%w: start_time must be before end_time", ErrInvalidInput)
	}
	if s.rules.MaxHours > 0 && endMin-startMin > s.rules.MaxHours*60 {
		return 0, 0, fmt.Errorf("%w: a booking cannot exceed %d hours", ErrInvalidInput, s.rules.MaxHours)
	}

	now := s.Now()
	today := utils.FormatDate(now)
	if date < today {
		return 0, 0, fmt.Errorf("%w: cannot book a date in the past", ErrInvalidInput)
	}
	if date == today && startMin < now.Hour()*60+now.Minute() {
		return 0, 0, fmt.Errorf("%w: start_time has already passed", ErrInvalidInput)
	}
	maxDate, _ := utils.AddDays(today, s.rules.MaxAdvanceDays)
	if date > maxDate {
		return 0, 0, fmt.Errorf("%w: bookings open at most %d days in advance", ErrInvalidInput, s.rules.MaxAdvanceDays)
	}
	return startMin, endMin, nil
}

func (s *BookingService) checkOpeningHours(ctx context.Context, libraryID uint, date string, startMin, endMin int) error {
	day, err := utils.ParseDate(date)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var hours models.OpeningHour
	err = s.db.WithContext(ctx).
		Where("library_id = ? AND day_of_week = ?", libraryID, int(day.Weekday())).
		First(&hours).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrLibraryClosed
	}
	if err != nil {
		return err
	}
	if hours.IsClosed {
		return ErrLibraryClosed
	}

	openMin, err := utils.ClockMinutes(hours.OpenTime)
	if err != nil {
		return err
	}
	closeMin, err := utils.ClockMinutes(hours.CloseTime)
	if err != nil {
		return err
	}
	if startMin < openMin || endMin > closeMin {
		return fmt.Errorf("%w (%s-%s)", ErrOutsideOpeningHours, hours.OpenTime, hours.CloseTime)
	}
	return nil
}

// ActiveMembership returns the ACTIVE membership of userID at libraryID
// whose date range covers date.
func (s *BookingService) ActiveMembership(ctx context.Context, userID, libraryID uint, date string) (*models.Membership, error) {
	var m models.Membership
	err := s.db.WithContext(ctx).Preload("Plan").
		Where("user_id = ? AND library_id = ? AND status = ?", userID, libraryID, models.MembershipActive).
		Where("start_date <= ? AND end_date >= ?", date, date).
		Order("end_date DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveMembership
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *BookingService) bookedMinutes(ctx context.Context, userID, libraryID uint, date string) (int, error) {
	var bookings []models.SeatBooking
	if err := s.db.WithContext(ctx).
		Select("start_time", "end_time").
		Where("user_id = ? AND library_id = ? AND booking_date = ? AND status = ?", userID, libraryID, date, models.BookingConfirmed).
		Find(&bookings).Error; err != nil {
		return 0, err
	}

	total := 0
	for _, b := range bookings {
		start, err1 := utils.ClockMinutes(b.StartTime)
		end, err2 := utils.ClockMinutes(b.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		total += end - start
	}
	return total, nil
}

// Cancel lets a user cancel their own booking before it starts.
func (s *BookingService) Cancel(ctx context.Context, userID, bookingID uint) (*models.SeatBooking, error) {
	var booking models.SeatBooking
	if err := s.db.WithContext(ctx).Preload("Seat").First(&booking, bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if booking.UserID != userID {
		return nil, ErrNotBookingOwner
	}
	if !booking.CanTransitionTo(models.BookingCancelled) {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidTransition, booking.Status)
	}

	now := s.Now()
	today := utils.FormatDate(now)
	if booking.BookingDate < today || (booking.BookingDate == today && booking.StartTime <= utils.FormatClock(now)) {
		return nil, ErrBookingStarted
	}

	booking.Status = models.BookingCancelled
	booking.CancelledAt = &now
	if err := s.db.WithContext(ctx).Model(&booking).Updates(map[string]interface{}{
		"status":       booking.Status,
		"cancelled_at": now,
	}).Error; err != nil {
		return nil, err
	}

	Notify(ctx, s.db, booking.UserID, "Booking cancelled",
		fmt.Sprintf("Your booking on %s from %s to %s was cancelled.", booking.BookingDate, booking.StartTime, booking.EndTime),
		models.NotifBooking)
	publishEvent(ctx, s.events, EventBookingCancelled, booking)
	s.hub.Broadcast(booking.LibraryID, hub.EventBookingCancelled, booking)
	s.hub.BroadcastDashboardUpdate(booking.LibraryID)
	return &booking, nil
}

// UpdateStatus is the library admin transition out of CONFIRMED.
func (s *BookingService) UpdateStatus(ctx context.Context, libraryID, bookingID uint, status string) (*models.SeatBooking, error) {
	switch status {
	case models.BookingCompleted, models.BookingNoShow, models.BookingCancelled:
	default:
		return nil, fmt.Errorf("%w: status must be COMPLETED, NO_SHOW or CANCELLED", ErrInvalidInput)
	}

	var booking models.SeatBooking
	if err := s.db.WithContext(ctx).
		Where("id = ? AND library_id = ?", bookingID, libraryID).
		First(&booking).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if !booking.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidTransition, booking.Status)
	}

	updates := map[string]interface{}{"status": status}
	if status == models.BookingCancelled {
		now := s.Now()
		booking.CancelledAt = &now
		updates["cancelled_at"] = now
	}
	booking.Status = status
	if err := s.db.WithContext(ctx).Model(&booking).Updates(updates).Error; err != nil {
		return nil, err
	}

	key := EventBookingStatusChanged
	if status == models.BookingCancelled {
		key = EventBookingCancelled
	}
	Notify(ctx, s.db, booking.UserID, "Booking updated",
		fmt.Sprintf("Your booking on %s from %s to %s is now %s.", booking.BookingDate, booking.StartTime, booking.EndTime, status),
		models.NotifBooking)
	publishEvent(ctx, s.events, key, booking)
	s.hub.Broadcast(booking.LibraryID, hub.EventBookingStatus, booking)
	s.hub.BroadcastDashboardUpdate(booking.LibraryID)
	return &booking, nil
}

// Availability lists every active seat of a library and whether it is free
// for the given window.
func (s *BookingService) Availability(ctx context.Context, libraryID uint, date, start, end string) ([]SeatAvailability, error) {
	ctx, span := tracer.Start(ctx, "BookingService.Availability")
	defer span.End()

	if !utils.IsValidDate(date) || !utils.IsValidClock(start) || !utils.IsValidClock(end) {
		return nil, fmt.Errorf("%w: date (YYYY-MM-DD), start_time and end_time (HH:MM) are required", ErrInvalidInput)
	}
	if start >= end {
		return nil, fmt.Errorf("%w: start_time must be before end_time", ErrInvalidInput)
	}

	var library models.Library
	if err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", libraryID, true).First(&library).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLibraryNotFound
		}
		return nil, err
	}

	var seats []models.Seat
	if err := s.db.WithContext(ctx).Preload("SeatType").
		Where("library_id = ? AND is_active = ?", libraryID, true).
		Order("seat_number ASC").
		Find(&seats).Error; err != nil {
		return nil, err
	}

	var taken []uint
	if err := s.db.WithContext(ctx).Model(&models.SeatBooking{}).
		Where("library_id = ? AND booking_date = ? AND status = ?", libraryID, date, models.BookingConfirmed).
		Where("start_time < ? AND end_time > ?", end, start).
		Distinct().Pluck("seat_id", &taken).Error; err != nil {
		return nil, err
	}
	busy := make(map[uint]bool, len(taken))
	for _, id := range taken {
		busy[id] = true
	}

	out := make([]SeatAvailability, 0, len(seats))
	for _, seat := range seats {
		out = append(out, SeatAvailability{
			ID:         seat.ID,
			SeatNumber: seat.SeatNumber,
			SeatType:   seat.SeatType,
			Available:  !busy[seat.ID],
		})
	}
	return out, nil
}

// CompleteEnded marks CONFIRMED bookings whose end time has passed as COMPLETED.
func (s *BookingService) CompleteEnded(ctx context.Context) (int64, error) {
	now := s.Now()
	today := utils.FormatDate(now)
	res := s.db.WithContext(ctx).Model(&models.SeatBooking{}).
		Where("status = ?", models.BookingConfirmed).
		Where("booking_date < ? OR (booking_date = ? AND end_time <= ?)", today, today, utils.FormatClock(now)).
		Update("status", models.BookingCompleted)
	return res.RowsAffected, res.Error
}

// HasFutureBookings reports whether a seat still has CONFIRMED bookings
// that have not ended yet.
func (s *BookingService) HasFutureBookings(ctx context.Context, seatID uint) (bool, error) {
	now := s.Now()
	today := utils.FormatDate(now)
	var count int64
	err := s.db.WithContext(ctx).Model(&models.SeatBooking{}).
		Where("seat_id = ? AND status = ?", seatID, models.BookingConfirmed).
		Where("booking_date > ? OR (booking_date = ? AND end_time > ?)", today, today, utils.FormatClock(now)).
		Count(&count).Error
	return count > 0, err
}
