package services

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")

	ErrSeatNotFound        = errors.New("seat not found")
	ErrSeatInactive        = errors.New("seat is not active")
	ErrLibraryNotFound     = errors.New("library not found")
	ErrLibraryInactive     = errors.New("library is not active")
	ErrLibraryClosed       = errors.New("library is closed on this day")
	ErrOutsideOpeningHours = errors.New("booking is outside opening hours")
	ErrNoActiveMembership  = errors.New("no active membership for this library on the booking date")
	ErrDailyHoursExceeded  = errors.New("daily booking hours of the membership plan exceeded")
	ErrSeatUnavailable     = errors.New("seat is already booked for the selected time")
	ErrUserBookingOverlap  = errors.New("you already have a booking overlapping the selected time")

	ErrBookingNotFound   = errors.New("booking not found")
	ErrNotBookingOwner   = errors.New("booking belongs to another user")
	ErrInvalidTransition = errors.New("status change not allowed")
	ErrBookingStarted    = errors.New("booking has already started")

	ErrPlanNotFound       = errors.New("membership plan not found")
	ErrPlanInactive       = errors.New("membership plan is not available")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrPaymentFinal       = errors.New("payment already processed")
	ErrGatewayUnavailable = errors.New("online payment is not configured")
	ErrInvalidSignature   = errors.New("invalid notification signature")
)
