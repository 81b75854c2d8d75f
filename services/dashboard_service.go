package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yeremiapane/library-seat-app/models"
	"github.com/yeremiapane/library-seat-app/utils"
)

type AdminDashboardStats struct {
	TotalSeats            int64                `json:"total_seats"`
	ActiveSeats           int64                `json:"active_seats"`
	SeatTypes             int64                `json:"seat_types"`
	TodayBookings         int64                `json:"today_bookings"`
	CurrentlyOccupied     int64                `json:"currently_occupied"`
	OccupancyRate         int64                `json:"occupancy_rate"`
	ActiveMembers         int64                `json:"active_members"`
	PendingPayments       int64                `json:"pending_payments"`
	TotalRevenue          float64              `json:"total_revenue"`
	MonthRevenue          float64              `json:"month_revenue"`
	TotalRevenueFormatted string               `json:"total_revenue_formatted"`
	MonthRevenueFormatted string               `json:"month_revenue_formatted"`
	BookingsByStatus      map[string]int64     `json:"bookings_by_status"`
	RecentBookings        []models.SeatBooking `json:"recent_bookings"`
}

type LibraryRevenue struct {
	LibraryID        uint    `json:"library_id"`
	Name             string  `json:"name"`
	Revenue          float64 `json:"revenue"`
	RevenueFormatted string  `json:"revenue_formatted"`
}

type PlatformStats struct {
	TotalLibraries        int64            `json:"total_libraries"`
	ActiveLibraries       int64            `json:"active_libraries"`
	TotalUsers            int64            `json:"total_users"`
	UsersByRole           map[string]int64 `json:"users_by_role"`
	TotalBookings         int64            `json:"total_bookings"`
	TodayBookings         int64            `json:"today_bookings"`
	ActiveMemberships     int64            `json:"active_memberships"`
	TotalRevenue          float64          `json:"total_revenue"`
	MonthRevenue          float64          `json:"month_revenue"`
	TotalRevenueFormatted string           `json:"total_revenue_formatted"`
	MonthRevenueFormatted string           `json:"month_revenue_formatted"`
	TopLibraries          []LibraryRevenue `json:"top_libraries"`
}

type statusCount struct {
	Label string
	Total int64
}

type DashboardService struct {
	db  *gorm.DB
	Now func() time.Time
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db, Now: time.Now}
}

func (s *DashboardService) count(ctx context.Context, model interface{}, dest *int64, query string, args ...interface{}) func() error {
	return func() error {
		q := s.db.WithContext(ctx).Model(model)
		if query != "" {
			q = q.Where(query, args...)
		}
		return q.Count(dest).Error
	}
}

func (s *DashboardService) revenue(ctx context.Context, dest *float64, since *time.Time, libraryID uint) func() error {
	return func() error {
		q := s.db.WithContext(ctx).Model(&models.Payment{}).Where("status = ?", models.PaymentCompleted)
		if libraryID != 0 {
			q = q.Where("library_id = ?", libraryID)
		}
		if since != nil {
			q = q.Where("paid_at >= ?", *since)
		}
		return q.Select("COALESCE(SUM(amount), 0)").Scan(dest).Error
	}
}

// AdminStats aggregates the dashboard of one library. Independent counts
// run concurrently.
func (s *DashboardService) AdminStats(ctx context.Context, libraryID uint) (*AdminDashboardStats, error) {
	ctx, span := tracer.Start(ctx, "DashboardService.AdminStats")
	defer span.End()

	now := s.Now()
	today := utils.FormatDate(now)
	clock := utils.FormatClock(now)
	monthStart := utils.MonthStart(now)

	stats := &AdminDashboardStats{BookingsByStatus: map[string]int64{}}
	var byStatus []statusCount

	g, gctx := errgroup.WithContext(ctx)
	g.Go(s.count(gctx, &models.Seat{}, &stats.TotalSeats, "library_id = ?", libraryID))
	g.Go(s.count(gctx, &models.Seat{}, &stats.ActiveSeats, "library_id = ? AND is_active = ?", libraryID, true))
	g.Go(s.count(gctx, &models.SeatType{}, &stats.SeatTypes, "library_id = ? AND is_active = ?", libraryID, true))
	g.Go(s.count(gctx, &models.SeatBooking{}, &stats.TodayBookings,
		"library_id = ? AND booking_date = ? AND status <> ?", libraryID, today, models.BookingCancelled))
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&models.SeatBooking{}).
			Where("library_id = ? AND booking_date = ? AND status = ?", libraryID, today, models.BookingConfirmed).
			Where("start_time <= ? AND end_time > ?", clock, clock).
			Distinct("seat_id").Count(&stats.CurrentlyOccupied).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&models.Membership{}).
			Where("library_id = ? AND status = ? AND start_date <= ? AND end_date >= ?", libraryID, models.MembershipActive, today, today).
			Distinct("user_id").Count(&stats.ActiveMembers).Error
	})
	g.Go(s.count(gctx, &models.Payment{}, &stats.PendingPayments, "library_id = ? AND status = ?", libraryID, models.PaymentPending))
	g.Go(s.revenue(gctx, &stats.TotalRevenue, nil, libraryID))
	g.Go(s.revenue(gctx, &stats.MonthRevenue, &monthStart, libraryID))
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&models.SeatBooking{}).
			Select("status AS label, COUNT(*) AS total").
			Where("library_id = ?", libraryID).
			Group("status").
			Scan(&byStatus).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).
			Preload("User").Preload("Seat").
			Where("library_id = ?", libraryID).
			Order("created_at DESC").Limit(5).
			Find(&stats.RecentBookings).Error
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	for _, status := range []string{models.BookingConfirmed, models.BookingCompleted, models.BookingCancelled, models.BookingNoShow} {
		stats.BookingsByStatus[status] = 0
	}
	for _, row := range byStatus {
		stats.BookingsByStatus[row.Label] = row.Total
	}
	stats.OccupancyRate = OccupancyRate(stats.CurrentlyOccupied, stats.ActiveSeats)
	stats.TotalRevenueFormatted = utils.FormatCurrencyINR(stats.TotalRevenue)
	stats.MonthRevenueFormatted = utils.FormatCurrencyINR(stats.MonthRevenue)
	return stats, nil
}

// OccupancyRate is floor(occupied*100/active), 0 without seats.
func OccupancyRate(occupied, active int64) int64 {
	if active <= 0 {
		return 0
	}
	return occupied * 100 / active
}

// PlatformStats aggregates the super admin dashboard across all libraries.
func (s *DashboardService) PlatformStats(ctx context.Context) (*PlatformStats, error) {
	ctx, span := tracer.Start(ctx, "DashboardService.PlatformStats")
	defer span.End()

	now := s.Now()
	today := utils.FormatDate(now)
	monthStart := utils.MonthStart(now)

	stats := &PlatformStats{UsersByRole: map[string]int64{}}
	var byRole []statusCount

	g, gctx := errgroup.WithContext(ctx)
	g.Go(s.count(gctx, &models.Library{}, &stats.TotalLibraries, ""))
	g.Go(s.count(gctx, &models.Library{}, &stats.ActiveLibraries, "is_active = ?", true))
	g.Go(s.count(gctx, &models.User{}, &stats.TotalUsers, ""))
	g.Go(s.count(gctx, &models.SeatBooking{}, &stats.TotalBookings, ""))
	g.Go(s.count(gctx, &models.SeatBooking{}, &stats.TodayBookings, "booking_date = ? AND status <> ?", today, models.BookingCancelled))
	g.Go(s.count(gctx, &models.Membership{}, &stats.ActiveMemberships, "status = ?", models.MembershipActive))
	g.Go(s.revenue(gctx, &stats.TotalRevenue, nil, 0))
	g.Go(s.revenue(gctx, &stats.MonthRevenue, &monthStart, 0))
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&models.User{}).
			Select("role AS label, COUNT(*) AS total").
			Group("role").
			Scan(&byRole).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Table("payments").
			Select("payments.library_id AS library_id, libraries.name AS name, COALESCE(SUM(payments.amount), 0) AS revenue").
			Joins("JOIN libraries ON libraries.id = payments.library_id").
			Where("payments.status = ?", models.PaymentCompleted).
			Group("payments.library_id, libraries.name").
			Order("revenue DESC").
			Limit(5).
			Scan(&stats.TopLibraries).Error
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	for _, role := range []string{models.RoleUser, models.RoleAdmin, models.RoleSuperAdmin} {
		stats.UsersByRole[role] = 0
	}
	for _, row := range byRole {
		stats.UsersByRole[row.Label] = row.Total
	}
	if stats.TopLibraries == nil {
		stats.TopLibraries = []LibraryRevenue{}
	}
	for i := range stats.TopLibraries {
		stats.TopLibraries[i].RevenueFormatted = utils.FormatCurrencyINR(stats.TopLibraries[i].Revenue)
	}
	stats.TotalRevenueFormatted = utils.FormatCurrencyINR(stats.TotalRevenue)
	stats.MonthRevenueFormatted = utils.FormatCurrencyINR(stats.MonthRevenue)
	return stats, nil
}
