package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeremiapane/library-seat-app/config"
	"github.com/yeremiapane/library-seat-app/database"
	"github.com/yeremiapane/library-seat-app/hub"
	"github.com/yeremiapane/library-seat-app/models"
	"github.com/yeremiapane/library-seat-app/router"
	"github.com/yeremiapane/library-seat-app/services"
	"github.com/yeremiapane/library-seat-app/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// TestEndToEndIntegration walks the main flow:
// 1. an admin registers and sets up a library with seats and a plan
// 2. a member buys the plan with cash and the admin verifies the payment
// 3. the member books a seat while the admin dashboard listens live
// 4. the seat shows as taken and the dashboard counts the booking
func TestEndToEndIntegration(t *testing.T) {
	db := setupTestDB(t)
	liveHub := hub.NewHub()
	r := router.SetupRouter(router.Deps{
		Config: config.Config{UploadDir: t.TempDir()},
		DB:     db,
		Hub:    liveHub,
	})

	adminToken := registerAndLogin(t, r, "owner@reading.test", models.RoleAdmin)
	libraryID, seatID, planID := createLibraryTest(t, r, adminToken)

	memberToken := registerAndLogin(t, r, "member@reading.test", "")
	paymentID := purchaseMembershipTest(t, r, memberToken, planID)
	verifyPaymentTest(t, r, adminToken, paymentID)

	srv := httptest.NewServer(r)
	defer srv.Close()
	ws := dialLiveFeed(t, srv, adminToken)
	defer ws.Close()
	require.Eventually(t, func() bool { return liveHub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	date := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	bookingID := bookSeatTest(t, r, memberToken, seatID, date)
	expectLiveEvent(t, ws, hub.EventBookingCreated)

	checkAvailabilityTest(t, r, memberToken, libraryID, seatID, date)
	checkDashboardTest(t, r, adminToken)

	cancelBookingTest(t, r, memberToken, bookingID)
	expectLiveEvent(t, ws, hub.EventBookingCancelled)
}

func TestNewStorageLocal(t *testing.T) {
	dir := t.TempDir()
	store, err := newStorage(config.Config{StorageDriver: "local", UploadDir: dir, PublicBaseURL: "http://cdn.test"})
	require.NoError(t, err)
	local, ok := store.(*services.LocalStorage)
	require.True(t, ok)
	assert.Equal(t, dir, local.Dir)

	_, err = newStorage(config.Config{StorageDriver: "oss"})
	assert.Error(t, err, "oss needs credentials")
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		log.Fatalf("failed to open in-memory sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func call(t *testing.T, r http.Handler, method, path, token string, body interface{}) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp apiResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w.Code, resp
}

func registerAndLogin(t *testing.T, r http.Handler, email, role string) string {
	body := map[string]string{"name": strings.Split(email, "@")[0], "email": email, "password": "secret123"}
	if role != "" {
		body["role"] = role
	}
	code, resp := call(t, r, http.MethodPost, "/auth/register", "", body)
	require.Equal(t, http.StatusCreated, code, resp.Message)

	code, resp = call(t, r, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": "secret123"})
	require.Equal(t, http.StatusOK, code, resp.Message)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	return data.Token
}

func createLibraryTest(t *testing.T, r http.Handler, token string) (libraryID, seatID, planID uint) {
	code, resp := call(t, r, http.MethodPost, "/api/admin/library", token, map[string]interface{}{
		"name": "Lakeside Study Centre", "address": "12 Lake Road", "city": "Bhopal",
	})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var lib models.Library
	require.NoError(t, json.Unmarshal(resp.Data, &lib))

	code, resp = call(t, r, http.MethodPost, "/api/admin/seat-types", token, map[string]interface{}{"name": "Open Desk"})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var st models.SeatType
	require.NoError(t, json.Unmarshal(resp.Data, &st))

	code, resp = call(t, r, http.MethodPost, "/api/admin/seats", token, map[string]interface{}{"seat_number": "D1", "seat_type_id": st.ID})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var seat models.Seat
	require.NoError(t, json.Unmarshal(resp.Data, &seat))

	code, resp = call(t, r, http.MethodPost, "/api/admin/plans", token, map[string]interface{}{
		"name": "Weekly", "price": 400, "duration_days": 7, "hours_per_day": 6,
	})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var plan models.MembershipPlan
	require.NoError(t, json.Unmarshal(resp.Data, &plan))

	return lib.ID, seat.ID, plan.ID
}

func purchaseMembershipTest(t *testing.T, r http.Handler, token string, planID uint) uint {
	code, resp := call(t, r, http.MethodPost, "/api/memberships", token, map[string]interface{}{"plan_id": planID, "payment_method": "CASH"})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var result services.PurchaseResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, models.PaymentPending, result.Payment.Status)
	return result.Payment.ID
}

func verifyPaymentTest(t *testing.T, r http.Handler, token string, paymentID uint) {
	code, resp := call(t, r, http.MethodPost, fmt.Sprintf("/api/admin/payments/%d/verify", paymentID), token, nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	var payment models.Payment
	require.NoError(t, json.Unmarshal(resp.Data, &payment))
	assert.Equal(t, models.PaymentCompleted, payment.Status)
}

func dialLiveFeed(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return ws
}

// expectLiveEvent reads until the wanted event arrives; dashboard updates
// are interleaved with it.
func expectLiveEvent(t *testing.T, ws *websocket.Conn, event string) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg hub.Message
		require.NoError(t, ws.ReadJSON(&msg))
		if msg.Event == event {
			return
		}
	}
}

func bookSeatTest(t *testing.T, r http.Handler, token string, seatID uint, date string) uint {
	code, resp := call(t, r, http.MethodPost, "/api/bookings", token, map[string]interface{}{
		"seat_id": seatID, "date": date, "start_time": "09:00", "end_time": "13:00",
	})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var booking models.SeatBooking
	require.NoError(t, json.Unmarshal(resp.Data, &booking))
	assert.Equal(t, models.BookingConfirmed, booking.Status)

	// the plan allows 6 hours a day
	code, resp = call(t, r, http.MethodPost, "/api/bookings", token, map[string]interface{}{
		"seat_id": seatID, "date": date, "start_time": "14:00", "end_time": "17:00",
	})
	assert.Equal(t, http.StatusBadRequest, code, resp.Message)
	return booking.ID
}

func checkAvailabilityTest(t *testing.T, r http.Handler, token string, libraryID, seatID uint, date string) {
	path := fmt.Sprintf("/libraries/%d/seats/availability?date=%s&start_time=12:00&end_time=14:00", libraryID, date)
	code, resp := call(t, r, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	var grid []services.SeatAvailability
	require.NoError(t, json.Unmarshal(resp.Data, &grid))
	require.Len(t, grid, 1)
	assert.Equal(t, seatID, grid[0].ID)
	assert.False(t, grid[0].Available)
}

func checkDashboardTest(t *testing.T, r http.Handler, token string) {
	code, resp := call(t, r, http.MethodGet, "/api/admin/dashboard/stats", token, nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	var stats services.AdminDashboardStats
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, int64(1), stats.TotalSeats)
	assert.Equal(t, int64(1), stats.ActiveMembers)
	assert.Equal(t, 400.0, stats.TotalRevenue)
	assert.Equal(t, int64(1), stats.BookingsByStatus[models.BookingConfirmed])
}

func cancelBookingTest(t *testing.T, r http.Handler, token string, bookingID uint) {
	code, resp := call(t, r, http.MethodPatch, fmt.Sprintf("/api/bookings/%d/cancel", bookingID), token, nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
}
