package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yeremiapane/library-seat-app/models"
	"github.com/yeremiapane/library-seat-app/services"
	"github.com/yeremiapane/library-seat-app/utils"
)

var errInvalidCredentials = errors.New("invalid credentials")

type AuthController struct {
	DB     *gorm.DB
	Google services.IDTokenVerifier
}

func NewAuthController(db *gorm.DB, google services.IDTokenVerifier) *AuthController {
	return &AuthController{DB: db, Google: google}
}

func (ac *AuthController) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required,max=255"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
		Phone    string `json:"phone" binding:"omitempty,phone"`
		Role     string `json:"role" binding:"omitempty,oneof=USER ADMIN"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var count int64
	if err := ac.DB.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if count > 0 {
		utils.RespondError(c, http.StatusConflict, errors.New("email is already registered"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	user := models.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Phone:    req.Phone,
		Password: string(hashed),
		Role:     req.Role,
		IsActive: true,
	}
	if err := ac.DB.Create(&user).Error; err != nil {
		if isDuplicateKey(err) {
			utils.RespondError(c, http.StatusConflict, errors.New("email is already registered"))
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("New user registered: %s (role=%s)", user.Email, user.Role)
	utils.RespondJSON(c, http.StatusCreated, "User registered", gin.H{
		"user_id": user.ID,
	})
}

func (ac *AuthController) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var user models.User
	if err := ac.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(input.Email))).First(&user).Error; err != nil {
		utils.RespondError(c, http.StatusUnauthorized, errInvalidCredentials)
		return
	}
	if user.Password == "" {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("this account uses Google sign-in"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		utils.RespondError(c, http.StatusUnauthorized, errInvalidCredentials)
		return
	}
	if !user.IsActive {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("account is disabled"))
		return
	}

	ac.respondWithToken(c, &user, "Login successful")
}

func (ac *AuthController) GoogleLogin(c *gin.Context) {
	var input struct {
		IDToken string `json:"id_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if ac.Google == nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("google sign-in is not configured"))
		return
	}

	identity, err := ac.Google.Verify(input.IDToken)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}
	email := strings.ToLower(identity.Email)

	var user models.User
	err = ac.DB.Where("google_sub = ?", identity.Subject).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ac.DB.Where("email = ?", email).First(&user).Error
		switch {
		case err == nil:
			sub := identity.Subject
			user.GoogleSub = &sub
			err = ac.DB.Model(&user).Update("google_sub", sub).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			sub := identity.Subject
			name := identity.Name
			if name == "" {
				name = strings.Split(email, "@")[0]
			}
			user = models.User{
				Name:      name,
				Email:     email,
				GoogleSub: &sub,
				Role:      models.RoleUser,
				IsActive:  true,
			}
			err = ac.DB.Create(&user).Error
			if err == nil {
				utils.InfoLogger.Printf("New user registered via Google: %s", user.Email)
			}
		}
	}
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if !user.IsActive {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("account is disabled"))
		return
	}

	ac.respondWithToken(c, &user, "Login successful")
}

func (ac *AuthController) respondWithToken(c *gin.Context, user *models.User, message string) {
	token, err := utils.GenerateToken(user.ID, user.Role)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.InfoLogger.Printf("Login successful for user: %s, role: %s", user.Email, user.Role)
	utils.RespondJSON(c, http.StatusOK, message, gin.H{
		"token": token,
		"user":  user,
	})
}

func (ac *AuthController) Logout(c *gin.Context) {
	token := c.GetString("token")
	until := time.Now().Add(24 * time.Hour)
	if v, ok := c.Get("claims"); ok {
		if claims, ok := v.(*utils.CustomClaims); ok && claims.ExpiresAt != nil {
			until = claims.ExpiresAt.Time
		}
	}
	utils.BlacklistToken(token, until)
	utils.RespondJSON(c, http.StatusOK, "Logged out", nil)
}

func (ac *AuthController) GetProfile(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var user models.User
	if err := ac.DB.First(&user, userID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Profile data retrieved successfully", user)
}

func (ac *AuthController) UpdateProfile(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req struct {
		Name     *string `json:"name" binding:"omitempty,max=255"`
		Phone    *string `json:"phone" binding:"omitempty,phone"`
		Password *string `json:"password" binding:"omitempty,min=6"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var user models.User
	if err := ac.DB.First(&user, userID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := trimmed(req.Name)
		if name == "" {
			utils.RespondError(c, http.StatusBadRequest, errors.New("name cannot be empty"))
			return
		}
		updates["name"] = name
	}
	if req.Phone != nil {
		updates["phone"] = trimmed(req.Phone)
	}
	if req.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		updates["password"] = string(hashed)
	}
	if len(updates) > 0 {
		if err := ac.DB.Model(&user).Updates(updates).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
	}
	if err := ac.DB.First(&user, userID).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Profile updated", user)
}
