package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"github.com/yeremiapane/library-seat-app/hub"
	"github.com/yeremiapane/library-seat-app/models"
	"github.com/yeremiapane/library-seat-app/utils"
)

type LiveController struct {
	DB       *gorm.DB
	Hub      *hub.Hub
	upgrader websocket.Upgrader
}

// NewLiveController accepts upgrades from the given origins; "*" allows any.
func NewLiveController(db *gorm.DB, h *hub.Hub, origins []string) *LiveController {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &LiveController{
		DB:  db,
		Hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// Handle upgrades dashboard clients. Admins receive their own library's
// events; super admins receive everything.
func (lc *LiveController) Handle(c *gin.Context) {
	var libraryID uint
	switch currentRole(c) {
	case models.RoleSuperAdmin:
	case models.RoleAdmin:
		lib := ownLibrary(c, lc.DB)
		if lib == nil {
			return
		}
		libraryID = lib.ID
	default:
		utils.RespondError(c, http.StatusForbidden, errors.New("live feed is available to library admins only"))
		return
	}

	ws, err := lc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	role := currentRole(c)
	lc.Hub.RegisterClient(ws, role, libraryID)
	utils.InfoLogger.Printf("Live client connected (role=%s, library=%d)", role, libraryID)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	lc.Hub.UnregisterClient(ws)
	utils.InfoLogger.Printf("Live client disconnected (role=%s, library=%d)", role, libraryID)
}
