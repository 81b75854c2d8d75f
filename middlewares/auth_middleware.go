package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/library-seat-app/models"
	"github.com/yeremiapane/library-seat-app/utils"
)

// Context keys set by AuthMiddleware.
const (
	CtxUserID = "user_id"
	CtxRole   = "role"
	CtxToken  = "token"
	CtxClaims = "claims"
)

var (
	errAccountNotFound = errors.New("account no longer exists")
	errAccountDisabled = errors.New("account is disabled")
)

// AccountLookup returns the stored role and active flag of a user.
type AccountLookup func(ctx context.Context, userID uint) (role string, active bool, err error)

// DBAccountLookup reads the account from the users table.
func DBAccountLookup(db *gorm.DB) AccountLookup {
	return func(ctx context.Context, userID uint) (string, bool, error) {
		var user models.User
		err := db.WithContext(ctx).Select("id", "role", "is_active").First(&user, userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, errAccountNotFound
		}
		if err != nil {
			return "", false, err
		}
		return user.Role, user.IsActive, nil
	}
}

// AuthMiddleware accepts "Authorization: Bearer <jwt>". When allowQuery is
// true a ?token= query parameter is accepted as well (browsers cannot set
// headers on WebSocket handshakes).
//
// With a lookup, the role placed in the context comes from the account and
// disabled accounts are rejected, so role changes apply to live tokens.
func AuthMiddleware(allowQuery bool, lookup AccountLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		if header := c.GetHeader("Authorization"); header != "" {
			if !strings.HasPrefix(header, "Bearer ") {
				utils.AbortWithError(c, http.StatusUnauthorized, errors.New("invalid token format"))
				return
			}
			tokenString = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		} else if allowQuery {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			utils.AbortWithError(c, http.StatusUnauthorized, errors.New("authorization token missing"))
			return
		}

		claims, err := utils.ValidateToken(tokenString)
		if err != nil {
			utils.AbortWithError(c, http.StatusUnauthorized, err)
			return
		}

		role := claims.Role
		if lookup != nil {
			stored, active, err := lookup(c.Request.Context(), claims.UserID)
			switch {
			case errors.Is(err, errAccountNotFound):
				utils.AbortWithError(c, http.StatusUnauthorized, err)
				return
			case err != nil:
				utils.AbortWithError(c, http.StatusInternalServerError, err)
				return
			case !active:
				utils.AbortWithError(c, http.StatusUnauthorized, errAccountDisabled)
				return
			}
			role = stored
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxRole, role)
		c.Set(CtxToken, tokenString)
		c.Set(CtxClaims, claims)
		c.Next()
	}
}
