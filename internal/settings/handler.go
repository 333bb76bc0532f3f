package settings

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tuning-backend/internal/shared/server/respond"
)

// Handler exposes the read side of the configuration store.
type Handler struct {
	Reader Reader
}

// NewHandler constructs a Handler.
func NewHandler(r Reader) *Handler {
	return &Handler{Reader: r}
}

// RegisterRoutes attaches settings routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/profiles/:profileId/settings", h.list)
}

func (h *Handler) list(c *gin.Context) {
	profileID := strings.TrimSpace(c.Param("profileId"))
	if profileID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "profileId is required", nil)
		return
	}
	out, err := h.Reader.ListByProfile(c.Request.Context(), profileID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list settings", nil)
		return
	}
	respond.OK(c, gin.H{"profileId": profileID, "settings": out})
}
