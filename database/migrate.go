package database

import (
	"errors"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yeremiapane/library-seat-app/models"
	"github.com/yeremiapane/library-seat-app/utils"
)

// Models lists every table managed by AutoMigrate, parents first.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Library{},
		&models.OpeningHour{},
		&models.SeatType{},
		&models.Seat{},
		&models.MembershipPlan{},
		&models.Payment{},
		&models.Membership{},
		&models.SeatBooking{},
		&models.Post{},
		&models.Comment{},
		&models.PostLike{},
		&models.Notification{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		utils.ErrorLogger.Printf("Failed to migrate database: %v", err)
		return err
	}
	utils.InfoLogger.Println("Database migrated successfully")
	return nil
}

// ExecuteSQLFile runs the statements of an optional SQL file separated by
// ";". A missing file is not an error. Failing statements are logged and
// skipped so re-running against an existing schema is harmless.
func ExecuteSQLFile(db *gorm.DB, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	executed := 0
	for _, stmt := range splitStatements(string(raw)) {
		if err := db.Exec(stmt).Error; err != nil {
			utils.ErrorLogger.Printf("Error executing statement: %v\nStatement: %s", err, stmt)
			continue
		}
		executed++
	}
	utils.InfoLogger.Printf("Executed %d statement(s) from %s", executed, path)
	return nil
}

func splitStatements(sql string) []string {
	var out []string
	for _, stmt := range strings.Split(sql, ";") {
		lines := make([]string, 0)
		for _, line := range strings.Split(stmt, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			lines = append(lines, trimmed)
		}
		if len(lines) > 0 {
			out = append(out, strings.Join(lines, " "))
		}
	}
	return out
}

// SeedSuperAdmin creates the platform operator account once. Empty
// credentials disable seeding.
func SeedSuperAdmin(db *gorm.DB, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := models.User{
		Name:     "Super Admin",
		Email:    email,
		Password: string(hashed),
		Role:     models.RoleSuperAdmin,
		IsActive: true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	utils.InfoLogger.Printf("Seeded super admin %s", email)
	return nil
}
