package router

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yeremiapane/library-seat-app/config"
	"github.com/yeremiapane/library-seat-app/controllers"
	"github.com/yeremiapane/library-seat-app/hub"
	"github.com/yeremiapane/library-seat-app/middlewares"
	"github.com/yeremiapane/library-seat-app/models"
	"github.com/yeremiapane/library-seat-app/services"
	"github.com/yeremiapane/library-seat-app/utils"
)

// Deps carries everything the HTTP layer needs. Only DB is required; nil
// services are built with defaults.
type Deps struct {
	Config      config.Config
	DB          *gorm.DB
	Redis       *redis.Client
	Hub         *hub.Hub
	Bookings    *services.BookingService
	Memberships *services.MembershipService
	Dashboard   *services.DashboardService
	Images      *services.ImageUploader
	Google      services.IDTokenVerifier
}

func (d *Deps) defaults() {
	if d.Hub == nil {
		d.Hub = hub.NewHub()
	}
	if d.Bookings == nil {
		d.Bookings = services.NewBookingService(d.DB, services.DefaultBookingRules, nil, d.Hub)
	}
	if d.Memberships == nil {
		d.Memberships = services.NewMembershipService(d.DB, nil, nil, d.Hub)
	}
	if d.Dashboard == nil {
		d.Dashboard = services.NewDashboardService(d.DB)
	}
	if d.Images == nil {
		dir := d.Config.UploadDir
		if dir == "" {
			dir = filepath.Join("public", "uploads")
		}
		store, err := services.NewLocalStorage(dir, d.Config.PublicBaseURL)
		if err != nil {
			utils.ErrorLogger.Printf("Local storage unavailable: %v", err)
			store = &services.LocalStorage{Dir: dir, BaseURL: d.Config.PublicBaseURL}
		}
		d.Images = services.NewImageUploader(store)
	}
	if d.Google == nil {
		d.Google = services.GoogleVerifier{ClientID: d.Config.GoogleClientID}
	}
}

func SetupRouter(deps Deps) *gin.Engine {
	deps.defaults()
	utils.RegisterValidators()

	cfg := deps.Config
	db := deps.DB

	r := gin.New()
	r.Use(middlewares.Recovery())
	r.Use(middlewares.Tracing(cfg.ServiceName))
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(cfg.CORSOrigins))
	r.Use(middlewares.NewRateLimiter(cfg.RateLimit, deps.Redis))

	if local, ok := deps.Images.Store.(*services.LocalStorage); ok {
		r.Static("/uploads", local.Dir)
	}

	invalidate := func(ctx context.Context) {
		middlewares.InvalidateCache(ctx, deps.Redis, cfg.Cache.Prefix)
	}
	cache := middlewares.NewRedisCache(cfg.Cache, deps.Redis)
	accounts := middlewares.DBAccountLookup(db)

	// Inisialisasi controller
	authCtrl := controllers.NewAuthController(db, deps.Google)
	libraryCtrl := controllers.NewLibraryController(db, deps.Images, invalidate)
	seatTypeCtrl := controllers.NewSeatTypeController(db, invalidate)
	seatCtrl := controllers.NewSeatController(db, deps.Bookings, invalidate)
	planCtrl := controllers.NewMembershipPlanController(db, invalidate)
	membershipCtrl := controllers.NewMembershipController(db, deps.Memberships)
	paymentCtrl := controllers.NewPaymentController(db, deps.Memberships)
	bookingCtrl := controllers.NewSeatBookingController(db, deps.Bookings)
	dashboardCtrl := controllers.NewDashboardController(db, deps.Dashboard)
	superAdminCtrl := controllers.NewSuperAdminController(db, invalidate)
	forumCtrl := controllers.NewForumController(db)
	notificationCtrl := controllers.NewNotificationController(db)
	liveCtrl := controllers.NewLiveController(db, deps.Hub, cfg.CORSOrigins)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	public := r.Group("/auth")
	public.Use(middlewares.NewStrictRateLimiter(cfg.RateLimit, deps.Redis))
	{
		public.POST("/register", authCtrl.Register)
		public.POST("/login", authCtrl.Login)
	}
	r.POST("/auth/google", authCtrl.GoogleLogin)

	r.GET("/libraries", cache, libraryCtrl.ListLibraries)
	r.GET("/libraries/:library_id", cache, libraryCtrl.GetLibrary)
	r.GET("/libraries/:library_id/plans", planCtrl.ListPublicPlans)
	r.GET("/libraries/:library_id/seats/availability", middlewares.AuthMiddleware(false, accounts), seatCtrl.Availability)

	r.GET("/forum/posts", forumCtrl.ListPosts)
	r.GET("/forum/posts/:post_id", forumCtrl.GetPost)

	payments := r.Group("/payments")
	payments.Use(middlewares.PaymentSecurityHeaders(), middlewares.LogPaymentRequest())
	payments.POST("/callback", paymentCtrl.HandlePaymentCallback)

	r.GET("/ws", middlewares.AuthMiddleware(true, accounts), liveCtrl.Handle)

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	api := r.Group("/api")
	api.Use(middlewares.AuthMiddleware(false, accounts))
	{
		api.POST("/auth/logout", authCtrl.Logout)
		api.GET("/profile", authCtrl.GetProfile)
		api.PATCH("/profile", authCtrl.UpdateProfile)

		api.POST("/memberships", middlewares.PaymentSecurityHeaders(), middlewares.LogPaymentRequest(), membershipCtrl.Purchase)
		api.GET("/memberships/me", membershipCtrl.MyMemberships)

		api.POST("/bookings", bookingCtrl.CreateBooking)
		api.GET("/bookings/me", bookingCtrl.MyBookings)
		api.PATCH("/bookings/:booking_id/cancel", bookingCtrl.CancelBooking)

		api.POST("/forum/posts", forumCtrl.CreatePost)
		api.PATCH("/forum/posts/:post_id", forumCtrl.UpdatePost)
		api.DELETE("/forum/posts/:post_id", forumCtrl.DeletePost)
		api.POST("/forum/posts/:post_id/comments", forumCtrl.CreateComment)
		api.POST("/forum/posts/:post_id/like", forumCtrl.ToggleLike)
		api.DELETE("/forum/comments/:comment_id", forumCtrl.DeleteComment)

		api.GET("/notifications", notificationCtrl.GetMyNotifications)
		api.PATCH("/notifications/read-all", notificationCtrl.MarkAllAsRead)
		api.PATCH("/notifications/:notif_id/read", notificationCtrl.MarkAsRead)
		api.DELETE("/notifications/:notif_id", notificationCtrl.DeleteNotification)
	}

	// LIBRARY ADMIN
	admin := api.Group("/admin")
	admin.Use(middlewares.RequireRoles(models.RoleAdmin))
	{
		admin.POST("/library", libraryCtrl.CreateLibrary)
		admin.GET("/library", libraryCtrl.GetMyLibrary)
		admin.PATCH("/library", libraryCtrl.UpdateMyLibrary)
		admin.PUT("/library/opening-hours", libraryCtrl.UpdateOpeningHours)
		admin.PUT("/library/images", libraryCtrl.UpdateImages)

		admin.GET("/seat-types", seatTypeCtrl.ListSeatTypes)
		admin.POST("/seat-types", seatTypeCtrl.CreateSeatType)
		admin.PATCH("/seat-types/:seat_type_id", seatTypeCtrl.UpdateSeatType)
		admin.DELETE("/seat-types/:seat_type_id", seatTypeCtrl.DeleteSeatType)

		admin.GET("/seats", seatCtrl.ListSeats)
		admin.POST("/seats", seatCtrl.CreateSeat)
		admin.POST("/seats/bulk", seatCtrl.BulkCreateSeats)
		admin.PATCH("/seats/:seat_id", seatCtrl.UpdateSeat)
		admin.DELETE("/seats/:seat_id", seatCtrl.DeleteSeat)

		admin.GET("/plans", planCtrl.ListPlans)
		admin.POST("/plans", planCtrl.CreatePlan)
		admin.GET("/plans/:plan_id", planCtrl.GetPlan)
		admin.PATCH("/plans/:plan_id", planCtrl.UpdatePlan)
		admin.DELETE("/plans/:plan_id", planCtrl.DeletePlan)

		admin.GET("/memberships", membershipCtrl.ListLibraryMemberships)
		admin.PATCH("/memberships/:membership_id/cancel", membershipCtrl.CancelMembership)

		admin.GET("/payments", paymentCtrl.GetAllPayments)
		admin.GET("/payments/:payment_id", paymentCtrl.GetPaymentByID)
		admin.POST("/payments/:payment_id/verify", middlewares.LogPaymentRequest(), paymentCtrl.VerifyPayment)

		admin.GET("/bookings", bookingCtrl.ListLibraryBookings)
		admin.PATCH("/bookings/:booking_id/status", bookingCtrl.UpdateBookingStatus)

		admin.GET("/dashboard/stats", dashboardCtrl.AdminStats)
	}

	// SUPER ADMIN
	superAdmin := api.Group("/super-admin")
	superAdmin.Use(middlewares.RequireRoles(models.RoleSuperAdmin))
	{
		superAdmin.GET("/dashboard/stats", dashboardCtrl.PlatformStats)
		superAdmin.GET("/libraries", superAdminCtrl.ListLibraries)
		superAdmin.PATCH("/libraries/:library_id/status", superAdminCtrl.UpdateLibraryStatus)
		superAdmin.GET("/users", superAdminCtrl.ListUsers)
		superAdmin.PATCH("/users/:user_id", superAdminCtrl.UpdateUser)
		superAdmin.PATCH("/forum/posts/:post_id/pin", forumCtrl.PinPost)
		superAdmin.POST("/notifications", notificationCtrl.CreateNotification)
	}

	return r
}
