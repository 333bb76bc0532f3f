package feedback

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tuning-backend/internal/shared/server/respond"
	"tuning-backend/internal/shared/timewindow"
)

// Handler exposes the metrics aggregator over HTTP.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches aggregate routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/metrics/aggregate", h.aggregate)
}

func (h *Handler) aggregate(c *gin.Context) {
	w, err := timewindow.Parse(c.Query("from"), c.Query("to"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_window", err.Error(), gin.H{"from": c.Query("from"), "to": c.Query("to")})
		return
	}

	agg, err := h.Svc.Aggregate(c.Request.Context(), w)
	if err != nil {
		if errors.Is(err, timewindow.ErrInvalidWindow) {
			respond.Error(c, http.StatusBadRequest, "invalid_window", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to aggregate feedback", nil)
		return
	}

	respond.OK(c, gin.H{
		"window":      w,
		"feedback":    agg.Feedback,
		"refinements": agg.Refinements,
		"tags":        agg.Tags,
		"byCategory":  agg.ByCategory,
	})
}
