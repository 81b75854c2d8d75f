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

var (
	ErrNoPermission = &CustomError{"You do not have permission"}
	ErrNoLibrary    = &CustomError{"You have not created a library yet"}
)

type CustomError struct {
	Message string
}

func (e *CustomError) Error() string {
	return e.Message
}

func currentUserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}

func currentRole(c *gin.Context) string {
	v, _ := c.Get("role")
	role, _ := v.(string)
	return role
}

// mustUserID writes 401 and returns false when the context carries no user.
func mustUserID(c *gin.Context) (uint, bool) {
	id, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
	}
	return id, ok
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid %s", name))
		return 0, false
	}
	return uint(id), true
}

func parseUintQuery(c *gin.Context, name string) (uint, bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s", name)
	}
	return uint(id), true, nil
}

// ownLibrary loads the library owned by the authenticated admin. It writes
// the error response itself and returns nil when there is none.
func ownLibrary(c *gin.Context, db *gorm.DB) *models.Library {
	userID, ok := mustUserID(c)
	if !ok {
		return nil
	}
	var library models.Library
	if err := db.WithContext(c.Request.Context()).Where("owner_id = ?", userID).First(&library).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, ErrNoLibrary)
			return nil
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return nil
	}
	return &library
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}

// respondServiceError maps service sentinel errors onto HTTP statuses.
func respondServiceError(c *gin.Context, err error) {
	utils.RespondError(c, serviceErrorStatus(err), err)
}

func serviceErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrSeatInactive),
		errors.Is(err, services.ErrLibraryInactive),
		errors.Is(err, services.ErrLibraryClosed),
		errors.Is(err, services.ErrOutsideOpeningHours),
		errors.Is(err, services.ErrDailyHoursExceeded),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrBookingStarted),
		errors.Is(err, services.ErrPlanInactive),
		errors.Is(err, services.ErrGatewayUnavailable),
		errors.Is(err, services.ErrPaymentFinal),
		errors.Is(err, services.ErrUnsupportedImage):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNoActiveMembership),
		errors.Is(err, services.ErrNotBookingOwner),
		errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrInvalidSignature):
		return http.StatusForbidden
	case errors.Is(err, services.ErrSeatNotFound),
		errors.Is(err, services.ErrLibraryNotFound),
		errors.Is(err, services.ErrBookingNotFound),
		errors.Is(err, services.ErrPlanNotFound),
		errors.Is(err, services.ErrMembershipNotFound),
		errors.Is(err, services.ErrPaymentNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrSeatUnavailable),
		errors.Is(err, services.ErrUserBookingOverlap):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
