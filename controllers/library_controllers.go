package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/library-seat-app/models"
	"github.com/yeremiapane/library-seat-app/services"
	"github.com/yeremiapane/library-seat-app/utils"
)

// CacheInvalidator drops cached public responses after a write.
type CacheInvalidator func(ctx context.Context)

func (inv CacheInvalidator) run(c *gin.Context) {
	if inv != nil {
		inv(c.Request.Context())
	}
}

type LibraryController struct {
	DB         *gorm.DB
	Images     *services.ImageUploader
	Invalidate CacheInvalidator
}

func NewLibraryController(db *gorm.DB, images *services.ImageUploader, invalidate CacheInvalidator) *LibraryController {
	return &LibraryController{DB: db, Images: images, Invalidate: invalidate}
}

type libraryListItem struct {
	models.Library
	SeatCount    int64    `json:"seat_count"`
	MinPlanPrice *float64 `json:"min_plan_price"`
}

type libraryDetail struct {
	models.Library
	OpeningHours []services.DaySchedule  `json:"opening_hours"`
	SeatTypes    []models.SeatType       `json:"seat_types"`
	Plans        []models.MembershipPlan `json:"plans"`
	SeatCount    int64                   `json:"seat_count"`
}

type libraryRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Address     *string  `json:"address"`
	City        *string  `json:"city"`
	State       *string  `json:"state"`
	Pincode     *string  `json:"pincode"`
	Email       *string  `json:"email"`
	Phone       *string  `json:"phone"`
	Amenities   []string `json:"amenities"`
}

func (r libraryRequest) validate(creating bool) error {
	required := map[string]*string{"name": r.Name, "address": r.Address, "city": r.City}
	for _, field := range []string{"name", "address", "city"} {
		v := required[field]
		if (creating && v == nil) || (v != nil && strings.TrimSpace(*v) == "") {
			return fmt.Errorf("%s is required", field)
		}
	}
	if email := trimmed(r.Email); email != "" && !utils.IsValidEmail(email) {
		return errors.New("invalid email address")
	}
	if phone := trimmed(r.Phone); phone != "" && !utils.IsValidPhone(phone) {
		return errors.New("invalid phone number")
	}
	return nil
}

func (r libraryRequest) apply(lib *models.Library) error {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&lib.Name, r.Name)
	set(&lib.Description, r.Description)
	set(&lib.Address, r.Address)
	set(&lib.City, r.City)
	set(&lib.State, r.State)
	set(&lib.Pincode, r.Pincode)
	set(&lib.Email, r.Email)
	set(&lib.Phone, r.Phone)
	if r.Amenities != nil {
		return lib.SetAmenities(r.Amenities)
	}
	return nil
}

// ListLibraries is the public directory of active libraries.
func (lc *LibraryController) ListLibraries(c *gin.Context) {
	page := utils.ParsePage(c, utils.DefaultPageOpts)

	q := lc.DB.Model(&models.Library{}).Where("is_active = ?", true)
	if city := strings.TrimSpace(c.Query("city")); city != "" {
		q = q.Where("LOWER(city) = ?", strings.ToLower(city))
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q = q.Where("LOWER(name) LIKE ? ESCAPE '!'", utils.ContainsPattern(search))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	var libraries []models.Library
	if err := q.Order("name ASC").Offset(page.Offset()).Limit(page.Limit).Find(&libraries).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	ids := make([]uint, 0, len(libraries))
	for _, l := range libraries {
		ids = append(ids, l.ID)
	}

	var seatCounts []struct {
		LibraryID uint
		Total     int64
	}
	var minPrices []struct {
		LibraryID uint
		MinPrice  float64
	}
	if len(ids) > 0 {
		if err := lc.DB.Model(&models.Seat{}).
			Select("library_id, COUNT(*) AS total").
			Where("library_id IN ? AND is_active = ?", ids, true).
			Group("library_id").Scan(&seatCounts).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		if err := lc.DB.Model(&models.MembershipPlan{}).
			Select("library_id, MIN(price) AS min_price").
			Where("library_id IN ? AND is_active = ?", ids, true).
			Group("library_id").Scan(&minPrices).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
	}
	seatsBy := make(map[uint]int64, len(seatCounts))
	for _, row := range seatCounts {
		seatsBy[row.LibraryID] = row.Total
	}
	priceBy := make(map[uint]float64, len(minPrices))
	for _, row := range minPrices {
		priceBy[row.LibraryID] = row.MinPrice
	}

	items := make([]libraryListItem, 0, len(libraries))
	for _, l := range libraries {
		item := libraryListItem{Library: l, SeatCount: seatsBy[l.ID]}
		if p, ok := priceBy[l.ID]; ok {
			price := p
			item.MinPlanPrice = &price
		}
		items = append(items, item)
	}

	utils.RespondJSON(c, http.StatusOK, "Libraries retrieved", gin.H{
		"items":      items,
		"pagination": utils.NewPageMeta(page, total),
	})
}

func (lc *LibraryController) loadDetail(ctx context.Context, lib models.Library, activeOnly bool) (*libraryDetail, error) {
	db := lc.DB.WithContext(ctx)

	var hours []models.OpeningHour
	if err := db.Where("library_id = ?", lib.ID).Order("day_of_week ASC").Find(&hours).Error; err != nil {
		return nil, err
	}

	seatTypes := []models.SeatType{}
	stQuery := db.Where("library_id = ?", lib.ID)
	if activeOnly {
		stQuery = stQuery.Where("is_active = ?", true)
	}
	if err := stQuery.Order("name ASC").Find(&seatTypes).Error; err != nil {
		return nil, err
	}

	plans := []models.MembershipPlan{}
	planQuery := db.Where("library_id = ?", lib.ID)
	if activeOnly {
		planQuery = planQuery.Where("is_active = ?", true)
	}
	if err := planQuery.Order("price ASC").Find(&plans).Error; err != nil {
		return nil, err
	}

	var seatCount int64
	if err := db.Model(&models.Seat{}).Where("library_id = ? AND is_active = ?", lib.ID, true).Count(&seatCount).Error; err != nil {
		return nil, err
	}

	return &libraryDetail{
		Library:      lib,
		OpeningHours: services.TransformOpeningHours(hours),
		SeatTypes:    seatTypes,
		Plans:        plans,
		SeatCount:    seatCount,
	}, nil
}

func (lc *LibraryController) GetLibrary(c *gin.Context) {
	id, ok := parseIDParam(c, "library_id")
	if !ok {
		return
	}
	var lib models.Library
	if err := lc.DB.Where("id = ? AND is_active = ?", id, true).First(&lib).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, errors.New("library not found"))
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	detail, err := lc.loadDetail(c.Request.Context(), lib, true)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Library retrieved", detail)
}

// CreateLibrary creates the caller's library together with its default
// opening hours.
func (lc *LibraryController) CreateLibrary(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req libraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if err := req.validate(true); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var existing int64
	if err := lc.DB.Model(&models.Library{}).Where("owner_id = ?", userID).Count(&existing).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if existing > 0 {
		utils.RespondError(c, http.StatusConflict, errors.New("you already own a library"))
		return
	}

	lib := models.Library{OwnerID: userID, IsActive: true}
	if err := req.apply(&lib); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if lib.Images == nil {
		_ = lib.SetImages(nil)
	}
	if lib.Amenities == nil {
		_ = lib.SetAmenities(nil)
	}

	err := lc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&lib).Error; err != nil {
			return err
		}
		hours := models.DefaultOpeningHours(lib.ID)
		return tx.Create(&hours).Error
	})
	if err != nil {
		if isDuplicateKey(err) {
			utils.RespondError(c, http.StatusConflict, errors.New("you already own a library"))
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("Library %d created by user %d", lib.ID, userID)
	lc.Invalidate.run(c)

	detail, err := lc.loadDetail(c.Request.Context(), lib, false)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Library created", detail)
}

func (lc *LibraryController) GetMyLibrary(c *gin.Context) {
	lib := ownLibrary(c, lc.DB)
	if lib == nil {
		return
	}
	detail, err := lc.loadDetail(c.Request.Context(), *lib, false)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Library retrieved", detail)
}

func (lc *LibraryController) UpdateMyLibrary(c *gin.Context) {
	lib := ownLibrary(c, lc.DB)
	if lib == nil {
		return
	}
	var req libraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if err := req.validate(false); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if err := req.apply(lib); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if err := lc.DB.Model(lib).Updates(map[string]interface{}{
		"name":        lib.Name,
		"description": lib.Description,
		"address":     lib.Address,
		"city":        lib.City,
		"state":       lib.State,
		"pincode":     lib.Pincode,
		"email":       lib.Email,
		"phone":       lib.Phone,
		"amenities":   lib.Amenities,
	}).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	lc.Invalidate.run(c)

	detail, err := lc.loadDetail(c.Request.Context(), *lib, false)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Library updated", detail)
}

// UpdateOpeningHours replaces the full weekly schedule.
func (lc *LibraryController) UpdateOpeningHours(c *gin.Context) {
	lib := ownLibrary(c, lc.DB)
	if lib == nil {
		return
	}
	var entries []services.OpeningHourInput
	if err := c.ShouldBindJSON(&entries); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	rows, err := services.ValidateOpeningHours(lib.ID, entries)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	err = lc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("library_id = ?", lib.ID).Delete(&models.OpeningHour{}).Error; err != nil {
			return err
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	lc.Invalidate.run(c)

	utils.RespondJSON(c, http.StatusOK, "Opening hours updated", services.TransformOpeningHours(rows))
}

// UpdateImages uploads new gallery images and removes the ones listed in
// removed_images. Nothing is written when an upload fails.
func (lc *LibraryController) UpdateImages(c *gin.Context) {
	lib := ownLibrary(c, lc.DB)
	if lib == nil {
		return
	}
	if lc.Images == nil {
		utils.RespondError(c, http.StatusInternalServerError, errors.New("image storage is not configured"))
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var removed []string
	if raw := strings.TrimSpace(c.PostForm("removed_images")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &removed); err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("removed_images must be a JSON array of URLs"))
			return
		}
	}
	removeSet := make(map[string]bool, len(removed))
	for _, u := range removed {
		removeSet[u] = true
	}

	current := lib.GetImages()
	kept := make([]string, 0, len(current))
	var toDelete []string
	for _, u := range current {
		if removeSet[u] {
			toDelete = append(toDelete, u)
			continue
		}
		kept = append(kept, u)
	}

	files := form.File["images"]
	if len(kept)+len(files) > models.MaxLibraryImages {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("a library can have at most %d images", models.MaxLibraryImages))
		return
	}

	ctx := c.Request.Context()
	uploaded, err := lc.Images.UploadAll(ctx, fmt.Sprintf("libraries/%d", lib.ID), files)
	if err != nil {
		utils.ErrorLogger.Printf("Image upload failed for library %d: %v", lib.ID, err)
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrInvalidInput) || errors.Is(err, services.ErrUnsupportedImage) {
			status = http.StatusBadRequest
		}
		utils.RespondError(c, status, err)
		return
	}

	final := append(kept, uploaded...)
	if err := lib.SetImages(final); err != nil {
		lc.Images.DeleteAll(ctx, uploaded)
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if err := lc.DB.Model(lib).Update("images", lib.Images).Error; err != nil {
		lc.Images.DeleteAll(ctx, uploaded)
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	lc.Images.DeleteAll(ctx, toDelete)
	lc.Invalidate.run(c)

	utils.RespondJSON(c, http.StatusOK, "Library images updated", gin.H{
		"images": final,
	})
}
