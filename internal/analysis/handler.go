package analysis

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tuning-backend/internal/proposals"
	"tuning-backend/internal/shared/server/middleware"
	"tuning-backend/internal/shared/server/respond"
	"tuning-backend/internal/shared/timewindow"
)

// Handler exposes analysis runs over HTTP.
type Handler struct {
	Svc              *Service
	DefaultProfileID string
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, defaultProfileID string) *Handler {
	return &Handler{Svc: svc, DefaultProfileID: defaultProfileID}
}

// RegisterRoutes attaches analysis routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analysis/run", h.run)
}

type runRequest struct {
	ProfileID string `json:"profileId"`
	Window    struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"window"`
	DryRun bool `json:"dryRun"`
}

type runResponse struct {
	Proposal *proposals.Proposal `json:"proposal"`
	Reason   string              `json:"reason,omitempty"`
}

func (h *Handler) run(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	w, err := timewindow.Parse(req.Window.From, req.Window.To)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_window", err.Error(), nil)
		return
	}
	profileID := req.ProfileID
	if profileID == "" {
		profileID = h.DefaultProfileID
	}

	res, err := h.Svc.Run(c.Request.Context(), RunRequest{
		ProfileID: profileID,
		Window:    w,
		DryRun:    req.DryRun,
		CreatedBy: middleware.UserIDFromContext(c),
	})
	if err != nil {
		switch {
		case errors.Is(err, timewindow.ErrInvalidWindow):
			respond.Error(c, http.StatusBadRequest, "invalid_window", err.Error(), nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrAnalysisInFlight):
			respond.Error(c, http.StatusConflict, "analysis_in_flight", "an analysis for this profile and window is already running", nil)
		case errors.Is(err, ErrAnalysisTimeout):
			respond.Error(c, http.StatusGatewayTimeout, "analysis_timeout", err.Error(), nil)
		case errors.Is(err, ErrAnalyzer):
			respond.Error(c, http.StatusBadGateway, "analyzer_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "analysis failed", nil)
		}
		return
	}
	if res.Proposal != nil {
		c.Set(middleware.ProposalIDKey, res.Proposal.ID)
	}
	c.JSON(http.StatusOK, runResponse{Proposal: res.Proposal, Reason: res.Reason})
}
