package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeremiapane/library-seat-app/database"
	"github.com/yeremiapane/library-seat-app/models"
)

// fixedNow is Monday 2026-03-02 08:00 UTC.
var fixedNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

type fixture struct {
	Owner   models.User
	Member  models.User
	Library models.Library
	Type    models.SeatType
	Seats   []models.Seat
	Plan    models.MembershipPlan
}

var userSeq int

func createUser(t *testing.T, db *gorm.DB, role string) models.User {
	t.Helper()
	userSeq++
	u := models.User{
		Name:     fmt.Sprintf("User %d", userSeq),
		Email:    fmt.Sprintf("user%d@example.com", userSeq),
		Password: "x",
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

// seedLibrary creates an active library open 09:00-21:00 every day with
// two seats and a 30 day plan capped at hoursPerDay.
func seedLibrary(t *testing.T, db *gorm.DB, hoursPerDay int) fixture {
	t.Helper()
	f := fixture{
		Owner:  createUser(t, db, models.RoleAdmin),
		Member: createUser(t, db, models.RoleUser),
	}
	f.Library = models.Library{OwnerID: f.Owner.ID, Name: "Central", Address: "1 Main St", City: "Pune", IsActive: true}
	require.NoError(t, db.Create(&f.Library).Error)
	hours := models.DefaultOpeningHours(f.Library.ID)
	require.NoError(t, db.Create(&hours).Error)

	f.Type = models.SeatType{LibraryID: f.Library.ID, Name: "Quiet", IsActive: true}
	require.NoError(t, db.Create(&f.Type).Error)
	for _, n := range []string{"A1", "A2"} {
		seat := models.Seat{LibraryID: f.Library.ID, SeatTypeID: f.Type.ID, SeatNumber: n, IsActive: true}
		require.NoError(t, db.Create(&seat).Error)
		f.Seats = append(f.Seats, seat)
	}

	f.Plan = models.MembershipPlan{LibraryID: f.Library.ID, Name: "Monthly", Price: 1500, DurationDays: 30, HoursPerDay: hoursPerDay, IsActive: true}
	require.NoError(t, db.Create(&f.Plan).Error)
	return f
}

func activateMember(t *testing.T, db *gorm.DB, f fixture, userID uint, start, end string) models.Membership {
	t.Helper()
	m := models.Membership{UserID: userID, LibraryID: f.Library.ID, PlanID: f.Plan.ID, StartDate: start, EndDate: end, Status: models.MembershipActive}
	require.NoError(t, db.Create(&m).Error)
	return m
}
