package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
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
)

const testServerKey = "SB-Mid-server-test"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testApp struct {
	t         *testing.T
	db        *gorm.DB
	router    *gin.Engine
	uploadDir string
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.SeedSuperAdmin(db, "root@library.test", "rootpass"))

	h := hub.NewHub()
	gateway := services.NewMidtransGateway(testServerKey, "sandbox")
	uploadDir := t.TempDir()
	cfg := config.Config{
		UploadDir:     uploadDir,
		PublicBaseURL: "http://localhost:8080",
		CORSOrigins:   []string{"http://localhost:3000"},
		JWTSecret:     "controllers-test-secret",
	}
	r := router.SetupRouter(router.Deps{
		Config:      cfg,
		DB:          db,
		Hub:         h,
		Memberships: services.NewMembershipService(db, gateway, nil, h),
		Google:      fakeGoogle{},
	})
	return &testApp{t: t, db: db, router: r, uploadDir: uploadDir}
}

type fakeGoogle struct{}

func (fakeGoogle) Verify(idToken string) (*services.GoogleIdentity, error) {
	if idToken != "good-token" {
		return nil, fmt.Errorf("invalid id token")
	}
	return &services.GoogleIdentity{Subject: "g-123", Email: "Reader@Gmail.com", Name: "G Reader"}, nil
}

func (a *testApp) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func decode(t *testing.T, raw json.RawMessage, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, dst))
}

func (a *testApp) login(email, password string) (string, uint) {
	a.t.Helper()
	w, env := a.do(http.MethodPost, "/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	decode(a.t, env.Data, &data)
	return data.Token, data.User.ID
}

func (a *testApp) register(name, email, role string) (string, uint) {
	a.t.Helper()
	body := gin.H{"name": name, "email": email, "password": "secret123"}
	if role != "" {
		body["role"] = role
	}
	w, _ := a.do(http.MethodPost, "/auth/register", "", body)
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return a.login(email, "secret123")
}

type librarySetup struct {
	AdminToken string
	AdminID    uint
	LibraryID  uint
	SeatTypeID uint
	SeatIDs    []uint
	PlanID     uint
}

func (a *testApp) setupLibrary() librarySetup {
	a.t.Helper()
	var s librarySetup
	s.AdminToken, s.AdminID = a.register("Owner", "owner@library.test", models.RoleAdmin)

	w, env := a.do(http.MethodPost, "/api/admin/library", s.AdminToken, gin.H{
		"name": "Central Reading Hall", "address": "1 MG Road", "city": "Pune", "amenities": []string{"wifi", "ac"},
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var lib struct {
		ID           uint                   `json:"id"`
		OpeningHours []services.DaySchedule `json:"opening_hours"`
	}
	decode(a.t, env.Data, &lib)
	require.Len(a.t, lib.OpeningHours, 7)
	s.LibraryID = lib.ID

	w, env = a.do(http.MethodPost, "/api/admin/seat-types", s.AdminToken, gin.H{"name": "Cabin", "amenities": []string{"lamp"}})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var st models.SeatType
	decode(a.t, env.Data, &st)
	s.SeatTypeID = st.ID

	w, env = a.do(http.MethodPost, "/api/admin/seats/bulk", s.AdminToken, gin.H{
		"prefix": "A", "start": 1, "count": 3, "seat_type_id": st.ID,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var bulk struct {
		Created int           `json:"created"`
		Seats   []models.Seat `json:"seats"`
	}
	decode(a.t, env.Data, &bulk)
	require.Equal(a.t, 3, bulk.Created)
	for _, seat := range bulk.Seats {
		s.SeatIDs = append(s.SeatIDs, seat.ID)
	}

	w, env = a.do(http.MethodPost, "/api/admin/plans", s.AdminToken, gin.H{
		"name": "Monthly", "price": 1500, "duration_days": 30, "hours_per_day": 0, "features": []string{"wifi"},
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var plan models.MembershipPlan
	decode(a.t, env.Data, &plan)
	s.PlanID = plan.ID
	return s
}

// purchaseCash buys the plan and returns the pending payment.
func (a *testApp) purchaseCash(token string, planID uint) services.PurchaseResult {
	a.t.Helper()
	w, env := a.do(http.MethodPost, "/api/memberships", token, gin.H{"plan_id": planID, "payment_method": "cash"})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var res services.PurchaseResult
	decode(a.t, env.Data, &res)
	return res
}

// activeMember registers a user whose cash membership the admin has verified.
func (a *testApp) activeMember(s librarySetup, name, email string) (string, uint) {
	a.t.Helper()
	token, id := a.register(name, email, "")
	res := a.purchaseCash(token, s.PlanID)
	w, _ := a.do(http.MethodPost, fmt.Sprintf("/api/admin/payments/%d/verify", res.Payment.ID), s.AdminToken, nil)
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	return token, id
}

func weekSchedule(openAt, closeAt string) []gin.H {
	week := make([]gin.H, 0, 7)
	for day := 0; day < 7; day++ {
		week = append(week, gin.H{"day_of_week": day, "open_time": openAt, "close_time": closeAt})
	}
	return week
}

func tomorrow() string {
	return time.Now().AddDate(0, 0, 1).Format("2006-01-02")
}

func TestPing(t *testing.T) {
	app := newTestApp(t)
	w, _ := app.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestRegisterAndLogin(t *testing.T) {
	app := newTestApp(t)

	w, _ := app.do(http.MethodPost, "/auth/register", "", gin.H{"name": "Asha", "email": "Asha@Example.com", "password": "secret123"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env := app.do(http.MethodPost, "/auth/register", "", gin.H{"name": "Asha 2", "email": "asha@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, env.Success)

	w, _ = app.do(http.MethodPost, "/auth/register", "", gin.H{"name": "X", "email": "x@example.com", "password": "secret123", "role": "SUPER_ADMIN"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = app.do(http.MethodPost, "/auth/register", "", gin.H{"name": "X", "email": "x@example.com", "password": "secret123", "phone": "12"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = app.do(http.MethodPost, "/auth/login", "", gin.H{"email": "asha@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, id := app.login("asha@example.com", "secret123")
	assert.NotEmpty(t, token)

	w, env = app.do(http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var user models.User
	decode(t, env.Data, &user)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "asha@example.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NotContains(t, w.Body.String(), "password\":\"$2")

	w, env = app.do(http.MethodPatch, "/api/profile", token, gin.H{"name": "Asha K", "phone": "+919876543210"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, env.Data, &user)
	assert.Equal(t, "Asha K", user.Name)

	w, _ = app.do(http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = app.do(http.MethodGet, "/api/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGoogleLogin(t *testing.T) {
	app := newTestApp(t)

	w, _ := app.do(http.MethodPost, "/auth/google", "", gin.H{"id_token": "bad"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := app.do(http.MethodPost, "/auth/google", "", gin.H{"id_token": "good-token"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		User models.User `json:"user"`
	}
	decode(t, env.Data, &data)
	assert.Equal(t, "reader@gmail.com", data.User.Email)

	// second sign-in resolves the same account
	w, env = app.do(http.MethodPost, "/auth/google", "", gin.H{"id_token": "good-token"})
	require.Equal(t, http.StatusOK, w.Code)
	var again struct {
		User models.User `json:"user"`
	}
	decode(t, env.Data, &again)
	assert.Equal(t, data.User.ID, again.User.ID)

	// password login is refused for Google-only accounts
	w, _ = app.do(http.MethodPost, "/auth/login", "", gin.H{"email": "reader@gmail.com", "password": "whatever"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLibraryAdministration(t *testing.T) {
	app := newTestApp(t)
	s := app.setupLibrary()

	w, _ := app.do(http.MethodPost, "/api/admin/library", s.AdminToken, gin.H{"name": "Second", "address": "x", "city": "y"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = app.do(http.MethodPost, "/api/admin/seats", s.AdminToken, gin.H{"seat_number": "A1", "seat_type_id": s.SeatTypeID})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env := app.do(http.MethodPost, "/api/admin/seats/bulk", s.AdminToken, gin.H{"prefix": "A", "start": 3, "count": 2, "seat_type_id": s.SeatTypeID})
	require.Equal(t, http.StatusCreated, w.Code)
	var bulk struct {
		Created int      `json:"created"`
		Skipped []string `json:"skipped"`
	}
	decode(t, env.Data, &bulk)
	assert.Equal(t, 1, bulk.Created)
	assert.Equal(t, []string{"A3"}, bulk.Skipped)

	w, _ = app.do(http.MethodPost, "/api/admin/seats", s.AdminToken, gin.H{"seat_number": "Z1", "seat_type_id": 9999})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	week := weekSchedule("08:00", "20:00")
	week[0] = gin.H{"day_of_week": 0, "is_closed": true}
	w, env = app.do(http.MethodPut, "/api/admin/library/opening-hours", s.AdminToken, week)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var hours []services.DaySchedule
	decode(t, env.Data, &hours)
	require.Len(t, hours, 7)
	assert.True(t, hours[0].IsClosed)
	assert.Equal(t, "08:00", hours[1].OpenTime)

	w, _ = app.do(http.MethodPut, "/api/admin/library/opening-hours", s.AdminToken, week[:2])
	assert.Equal(t, http.StatusBadRequest, w.Code, "partial week")

	week[3] = gin.H{"day_of_week": 3, "open_time": "20:00", "close_time": "08:00"}
	w, _ = app.do(http.MethodPut, "/api/admin/library/opening-hours", s.AdminToken, week)
	assert.Equal(t, http.StatusBadRequest, w.Code, "closing before opening")

	w, env = app.do(http.MethodGet, fmt.Sprintf("/libraries/%d", s.LibraryID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "Central Reading Hall")

	w, env = app.do(http.MethodGet, "/libraries?city=pune", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []struct {
			ID           uint     `json:"id"`
			SeatCount    int64    `json:"seat_count"`
			MinPlanPrice *float64 `json:"min_plan_price"`
		} `json:"items"`
	}
	decode(t, env.Data, &list)
	require.Len(t, list.Items, 1)
	assert.Equal(t, int64(4), list.Items[0].SeatCount)
	require.NotNil(t, list.Items[0].MinPlanPrice)
	assert.Equal(t, 1500.0, *list.Items[0].MinPlanPrice)

	w, env = app.do(http.MethodGet, fmt.Sprintf("/libraries/%d/plans", s.LibraryID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var plans []models.MembershipPlan
	decode(t, env.Data, &plans)
	assert.Len(t, plans, 1)

	w, _ = app.do(http.MethodDelete, fmt.Sprintf("/api/admin/plans/%d", s.PlanID), s.AdminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, env = app.do(http.MethodGet, fmt.Sprintf("/libraries/%d/plans", s.LibraryID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, env.Data, &plans)
	assert.Empty(t, plans)
}

func TestRoleChecks(t *testing.T) {
	app := newTestApp(t)
	userToken, _ := app.register("Reader", "reader@library.test", "")

	w, _ := app.do(http.MethodGet, "/api/admin/library", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = app.do(http.MethodGet, "/api/admin/library", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = app.do(http.MethodGet, "/api/super-admin/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	adminToken, _ := app.register("Owner", "owner2@library.test", models.RoleAdmin)
	w, _ = app.do(http.MethodGet, "/api/admin/library", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMembershipAndBookingFlow(t *testing.T) {
	app := newTestApp(t)
	s := app.setupLibrary()
	memberToken, _ := app.register("Member", "member@library.test", "")
	date := tomorrow()

	booking := gin.H{"seat_id": s.SeatIDs[0], "date": date, "start_time": "10:00", "end_time": "12:00"}

	w, _ := app.do(http.MethodPost, "/api/bookings", memberToken, booking)
	assert.Equal(t, http.StatusForbidden, w.Code, "booking without membership")

	res := app.purchaseCash(memberToken, s.PlanID)
	assert.Equal(t, models.MembershipPending, res.Membership.Status)
	assert.Equal(t, models.PaymentPending, res.Payment.Status)
	assert.Equal(t, 1500.0, res.Payment.Amount)

	w, _ = app.do(http.MethodPost, "/api/bookings", memberToken, booking)
	assert.Equal(t, http.StatusForbidden, w.Code, "pending membership does not cover bookings")

	w, env := app.do(http.MethodGet, "/api/admin/payments?status=pending", s.AdminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var payments struct {
		Items []models.Payment `json:"items"`
	}
	decode(t, env.Data, &payments)
	require.Len(t, payments.Items, 1)

	w, env = app.do(http.MethodPost, fmt.Sprintf("/api/admin/payments/%d/verify", res.Payment.ID), s.AdminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var paid models.Payment
	decode(t, env.Data, &paid)
	assert.Equal(t, models.PaymentCompleted, paid.Status)
	require.NotNil(t, paid.Membership)
	assert.Equal(t, models.MembershipActive, paid.Membership.Status)

	w, _ = app.do(http.MethodPost, fmt.Sprintf("/api/admin/payments/%d/verify", res.Payment.ID), s.AdminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "payment already final")

	w, env = app.do(http.MethodPost, "/api/bookings", memberToken, booking)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.SeatBooking
	decode(t, env.Data, &created)
	assert.Equal(t, models.BookingConfirmed, created.Status)
	assert.Equal(t, date, created.BookingDate)

	w, _ = app.do(http.MethodPost, "/api/bookings", memberToken, gin.H{"seat_id": s.SeatIDs[1], "date": date, "start_time": "11:00", "end_time": "13:00"})
	assert.Equal(t, http.StatusConflict, w.Code, "member cannot hold two seats at once")

	otherToken, _ := app.register("Other", "other@library.test", "")
	other := app.purchaseCash(otherToken, s.PlanID)
	w, _ = app.do(http.MethodPost, fmt.Sprintf("/api/admin/payments/%d/verify", other.Payment.ID), s.AdminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = app.do(http.MethodPost, "/api/bookings", otherToken, gin.H{"seat_id": s.SeatIDs[0], "date": date, "start_time": "11:00", "end_time": "12:30"})
	assert.Equal(t, http.StatusConflict, w.Code, "seat already taken")
	w, _ = app.do(http.MethodPost, "/api/bookings", otherToken, gin.H{"seat_id": s.SeatIDs[0], "date": date, "start_time": "12:00", "end_time": "13:00"})
	assert.Equal(t, http.StatusCreated, w.Code, "back-to-back bookings are allowed")

	w, _ = app.do(http.MethodPost, "/api/bookings", memberToken, gin.H{"seat_id": s.SeatIDs[2], "date": date, "start_time": "10:00", "end_time": "25:00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = app.do(http.MethodGet, fmt.Sprintf("/libraries/%d/seats/availability?date=%s&start_time=10:30&end_time=11:30", s.LibraryID, date), memberToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var grid []services.SeatAvailability
	decode(t, env.Data, &grid)
	require.Len(t, grid, 3)
	for _, seat := range grid {
		assert.Equal(t, seat.ID != s.SeatIDs[0], seat.Available, seat.SeatNumber)
	}

	w, _ = app.do(http.MethodDelete, fmt.Sprintf("/api/admin/seats/%d", s.SeatIDs[0]), s.AdminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "seat with future bookings")

	w, env = app.do(http.MethodGet, "/api/bookings/me?status=confirmed", memberToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []models.SeatBooking
	decode(t, env.Data, &mine)
	require.Len(t, mine, 1)

	w, _ = app.do(http.MethodPatch, fmt.Sprintf("/api/bookings/%d/cancel", created.ID), otherToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = app.do(http.MethodPatch, fmt.Sprintf("/api/bookings/%d/cancel", created.ID), memberToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var cancelled models.SeatBooking
	decode(t, env.Data, &cancelled)
	assert.Equal(t, models.BookingCancelled, cancelled.Status)

	w, env = app.do(http.MethodGet, "/api/admin/bookings?date="+date, s.AdminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var adminList struct {
		Items []models.SeatBooking `json:"items"`
	}
	decode(t, env.Data, &adminList)
	assert.Len(t, adminList.Items, 2)

	w, env = app.do(http.MethodGet, "/api/admin/dashboard/stats", s.AdminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats services.AdminDashboardStats
	decode(t, env.Data, &stats)
	assert.Equal(t, int64(3), stats.TotalSeats)
	assert.Equal(t, int64(2), stats.ActiveMembers)
	assert.Equal(t, 3000.0, stats.TotalRevenue)
	assert.Equal(t, "₹3,000.00", stats.TotalRevenueFormatted)

	w, env = app.do(http.MethodGet, "/api/notifications?unread=true", memberToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var inbox struct {
		Items       []models.Notification `json:"items"`
		UnreadCount int64                 `json:"unread_count"`
	}
	decode(t, env.Data, &inbox)
	assert.GreaterOrEqual(t, inbox.UnreadCount, int64(2))

	w, _ = app.do(http.MethodPatch, fmt.Sprintf("/api/notifications/%d/read", inbox.Items[0].ID), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = app.do(http.MethodPatch, fmt.Sprintf("/api/notifications/%d/read", inbox.Items[0].ID), memberToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = app.do(http.MethodPatch, "/api/notifications/read-all", memberToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, env = app.do(http.MethodGet, "/api/notifications?unread=true", memberToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, env.Data, &inbox)
	assert.Zero(t, inbox.UnreadCount)
	assert.Empty(t, inbox.Items)
}

func TestMembershipCancellation(t *testing.T) {
	app := newTestApp(t)
	s := app.setupLibrary()
	memberToken, _ := app.register("Member", "member@library.test", "")
	res := app.purchaseCash(memberToken, s.PlanID)

	w, _ := app.do(http.MethodPost, "/api/memberships", memberToken, gin.H{"plan_id": s.PlanID, "payment_method": "BITCOIN"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = app.do(http.MethodPost, "/api/memberships", memberToken, gin.H{"plan_id": 9999, "payment_method": "CASH"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env := app.do(http.MethodPatch, fmt.Sprintf("/api/admin/memberships/%d/cancel", res.Membership.ID), s.AdminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var m models.Membership
	decode(t, env.Data, &m)
	assert.Equal(t, models.MembershipCancelled, m.Status)

	w, env = app.do(http.MethodGet, "/api/memberships/me", memberToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []models.Membership
	decode(t, env.Data, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, models.MembershipCancelled, mine[0].Status)
}

func TestPaymentCallback(t *testing.T) {
	app := newTestApp(t)
	s := app.setupLibrary()
	memberToken, _ := app.register("Member", "member@library.test", "")
	res := app.purchaseCash(memberToken, s.PlanID)

	notification := gin.H{
		"order_id":           res.Payment.Reference,
		"status_code":        "200",
		"gross_amount":       "1500.00",
		"transaction_status": "settlement",
		"signature_key":      "forged",
	}
	w, _ := app.do(http.MethodPost, "/payments/callback", "", notification)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	notification["signature_key"] = services.SignNotification(res.Payment.Reference, "200", "1500.00", testServerKey)
	w, _ = app.do(http.MethodPost, "/payments/callback", "", notification)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// redelivery of the same notification is acknowledged
	w, _ = app.do(http.MethodPost, "/payments/callback", "", notification)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := app.do(http.MethodGet, fmt.Sprintf("/api/admin/payments/%d", res.Payment.ID), s.AdminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var payment models.Payment
	decode(t, env.Data, &payment)
	assert.Equal(t, models.PaymentCompleted, payment.Status)
	assert.NotNil(t, payment.PaidAt)

	unknown := gin.H{
		"order_id":           "MEM-unknown",
		"status_code":        "200",
		"gross_amount":       "1.00",
		"transaction_status": "settlement",
		"signature_key":      services.SignNotification("MEM-unknown", "200", "1.00", testServerKey),
	}
	w, _ = app.do(http.MethodPost, "/payments/callback", "", unknown)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestForum(t *testing.T) {
	app := newTestApp(t)
	authorToken, _ := app.register("Author", "author@library.test", "")
	readerToken, _ := app.register("Reader", "reader@library.test", "")

	w, _ := app.do(http.MethodPost, "/api/forum/posts", authorToken, gin.H{"title": "Hi", "content": "too short title"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := app.do(http.MethodPost, "/api/forum/posts", authorToken, gin.H{
		"title": "Quiet hours at Central", "content": "Is the silent zone enforced after 8pm?", "tags": []string{"quiet", "evening"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var post models.Post
	decode(t, env.Data, &post)
	assert.Equal(t, "GENERAL", post.Category)

	w, _ = app.do(http.MethodPatch, fmt.Sprintf("/api/forum/posts/%d", post.ID), readerToken, gin.H{"title": "Hijacked title"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = app.do(http.MethodPost, fmt.Sprintf("/api/forum/posts/%d/comments", post.ID), readerToken, gin.H{"content": "Yes, strictly."})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var comment models.Comment
	decode(t, env.Data, &comment)

	w, env = app.do(http.MethodPost, fmt.Sprintf("/api/forum/posts/%d/comments", post.ID), authorToken, gin.H{"content": "Thanks!", "parent_id": comment.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reply models.Comment
	decode(t, env.Data, &reply)

	w, _ = app.do(http.MethodPost, fmt.Sprintf("/api/forum/posts/%d/comments", post.ID), readerToken, gin.H{"content": "nested", "parent_id": reply.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code, "replies are one level deep")

	w, env = app.do(http.MethodPost, fmt.Sprintf("/api/forum/posts/%d/like", post.ID), readerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var like struct {
		Liked     bool  `json:"liked"`
		LikeCount int64 `json:"like_count"`
	}
	decode(t, env.Data, &like)
	assert.True(t, like.Liked)
	assert.Equal(t, int64(1), like.LikeCount)

	w, env = app.do(http.MethodPost, fmt.Sprintf("/api/forum/posts/%d/like", post.ID), readerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, env.Data, &like)
	assert.False(t, like.Liked)
	assert.Equal(t, int64(0), like.LikeCount)

	w, env = app.do(http.MethodGet, fmt.Sprintf("/forum/posts/%d", post.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail models.Post
	decode(t, env.Data, &detail)
	assert.Equal(t, int64(2), detail.CommentCount)
	assert.Equal(t, int64(1), detail.ViewCount)
	require.Len(t, detail.Comments, 1)

	w, env = app.do(http.MethodDelete, fmt.Sprintf("/api/forum/comments/%d", comment.ID), readerToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var removed struct {
		Removed int64 `json:"removed"`
	}
	decode(t, env.Data, &removed)
	assert.Equal(t, int64(2), removed.Removed)

	rootToken, _ := app.login("root@library.test", "rootpass")
	w, env = app.do(http.MethodPatch, fmt.Sprintf("/api/super-admin/forum/posts/%d/pin", post.ID), rootToken, gin.H{"is_pinned": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, env.Data, &detail)
	assert.True(t, detail.IsPinned)

	w, _ = app.do(http.MethodDelete, fmt.Sprintf("/api/forum/posts/%d", post.ID), readerToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = app.do(http.MethodDelete, fmt.Sprintf("/api/forum/posts/%d", post.ID), authorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = app.do(http.MethodGet, fmt.Sprintf("/forum/posts/%d", post.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSuperAdmin(t *testing.T) {
	app := newTestApp(t)
	s := app.setupLibrary()
	_, readerID := app.register("Reader", "reader@library.test", "")
	rootToken, rootID := app.login("root@library.test", "rootpass")

	w, env := app.do(http.MethodGet, "/api/super-admin/users?role=USER", rootToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users struct {
		Items []models.User `json:"items"`
	}
	decode(t, env.Data, &users)
	require.Len(t, users.Items, 1)
	assert.Equal(t, readerID, users.Items[0].ID)

	w, _ = app.do(http.MethodPatch, fmt.Sprintf("/api/super-admin/users/%d", rootID), rootToken, gin.H{"is_active": false})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = app.do(http.MethodPatch, fmt.Sprintf("/api/super-admin/users/%d", readerID), rootToken, gin.H{"is_active": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated models.User
	decode(t, env.Data, &updated)
	assert.False(t, updated.IsActive)
	w, _ = app.do(http.MethodPost, "/auth/login", "", gin.H{"email": "reader@library.test", "password": "secret123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = app.do(http.MethodPost, "/api/super-admin/notifications", rootToken, gin.H{"title": "Maintenance", "message": "Downtime tonight"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sent struct {
		Recipients int `json:"recipients"`
	}
	decode(t, env.Data, &sent)
	assert.Equal(t, 2, sent.Recipients, "active users other than disabled ones")

	w, _ = app.do(http.MethodPatch, fmt.Sprintf("/api/super-admin/libraries/%d/status", s.LibraryID), rootToken, gin.H{"is_active": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, env = app.do(http.MethodGet, "/libraries", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []json.RawMessage `json:"items"`
	}
	decode(t, env.Data, &list)
	assert.Empty(t, list.Items)

	w, env = app.do(http.MethodGet, "/api/super-admin/dashboard/stats", rootToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats services.PlatformStats
	decode(t, env.Data, &stats)
	assert.Equal(t, int64(1), stats.TotalLibraries)
	assert.Equal(t, int64(0), stats.ActiveLibraries)
	assert.Equal(t, int64(3), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.UsersByRole[models.RoleSuperAdmin])
}
