package proposals

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tuning-backend/internal/settings"
	"tuning-backend/internal/shared/server/middleware"
	"tuning-backend/internal/shared/server/respond"
	"tuning-backend/internal/shared/timewindow"
)

// AuditReader lists the setting writes made on behalf of a proposal.
type AuditReader interface {
	ListAudit(ctx context.Context, proposalID string) ([]settings.AuditEntry, error)
}

// Handler wires proposal HTTP routes to the store and review session.
type Handler struct {
	Svc    *Service
	Review *Review
	Audit  AuditReader
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, review *Review, audit AuditReader) *Handler {
	return &Handler{Svc: svc, Review: review, Audit: audit}
}

// RegisterRoutes attaches proposal routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/proposals", h.list)
	rg.GET("/proposals/:id", h.get)
	rg.PATCH("/proposals/:id", h.patch)
	rg.GET("/proposals/:id/audit", h.audit)
}

func (h *Handler) list(c *gin.Context) {
	f := Filter{
		Status:    Status(strings.TrimSpace(c.Query("status"))),
		ProfileID: strings.TrimSpace(c.Query("profileId")),
	}
	var ok bool
	if f.Limit, ok = queryInt(c, "limit"); !ok {
		return
	}
	if f.Offset, ok = queryInt(c, "offset"); !ok {
		return
	}

	out, err := h.Svc.ListByStatus(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"proposals": out})
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.ProposalIDKey, id)

	var selected []int
	if raw := strings.TrimSpace(c.Query("selected")); raw != "" {
		parsed, err := parseIndices(raw)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "selected must be a comma separated list of indices", nil)
			return
		}
		selected = parsed
	}

	p, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"proposal": p, "review": BuildView(p, selected)})
}

type patchRequest struct {
	Status                  string `json:"status"`
	Apply                   bool   `json:"apply"`
	SelectedRecommendations []int  `json:"selectedRecommendations"`
	ExpectedStatus          string `json:"expectedStatus"`
	DryRun                  bool   `json:"dryRun"`
}

func (h *Handler) patch(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.ProposalIDKey, id)

	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	status, ok := ParseStatus(strings.TrimSpace(req.Status))
	if !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "status must be accepted, rejected or applied", gin.H{"status": req.Status})
		return
	}
	kind, ok := DecisionFromStatus(status)
	if !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "status must be accepted, rejected or applied", gin.H{"status": req.Status})
		return
	}
	var expected Status
	if raw := strings.TrimSpace(req.ExpectedStatus); raw != "" {
		if expected, ok = ParseStatus(raw); !ok {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unknown expectedStatus", gin.H{"expectedStatus": raw})
			return
		}
	}

	out, err := h.Review.Decide(c.Request.Context(), id, Decision{
		Kind:           kind,
		Selected:       req.SelectedRecommendations,
		Apply:          req.Apply,
		DryRun:         req.DryRun,
		ExpectedStatus: expected,
		ReviewerID:     middleware.UserIDFromContext(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.StatusTransitionKey, string(out.Previous)+"->"+string(out.Proposal.Status))

	body := gin.H{"proposal": out.Proposal}
	if out.Applied != nil {
		body["applied"] = out.Applied
	}
	respond.OK(c, body)
}

func (h *Handler) audit(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.ProposalIDKey, id)

	if _, err := h.Svc.Get(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	entries, err := h.Audit.ListAudit(c.Request.Context(), id)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list audit entries", nil)
		return
	}
	respond.OK(c, gin.H{"proposalId": id, "entries": entries})
}

func writeError(c *gin.Context, err error) {
	var stateErr *StateError
	var selErr *SelectionError
	var changeErr *ChangeError

	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "proposal not found", gin.H{"proposalId": c.Param("id")})
	case errors.As(err, &stateErr) && errors.Is(err, ErrStaleProposal):
		respond.Error(c, http.StatusConflict, "stale_proposal", err.Error(), stateErr.Details())
	case errors.As(err, &stateErr):
		respond.Error(c, http.StatusConflict, "invalid_proposal_state", err.Error(), stateErr.Details())
	case errors.As(err, &selErr) && errors.Is(err, ErrEmptySelection):
		respond.Error(c, http.StatusBadRequest, "empty_selection", err.Error(), selErr.Details())
	case errors.As(err, &selErr) && errors.Is(err, ErrDuplicateIndex):
		respond.Error(c, http.StatusBadRequest, "duplicate_index", err.Error(), selErr.Details())
	case errors.As(err, &selErr):
		respond.Error(c, http.StatusBadRequest, "index_out_of_range", err.Error(), selErr.Details())
	case errors.As(err, &changeErr) && errors.Is(err, ErrNoopChange):
		respond.Error(c, http.StatusConflict, "noop_change", err.Error(), changeErr.Details())
	case errors.As(err, &changeErr):
		respond.Error(c, http.StatusConflict, "setting_drift", err.Error(), changeErr.Details())
	case errors.Is(err, timewindow.ErrInvalidWindow):
		respond.Error(c, http.StatusBadRequest, "invalid_window", err.Error(), nil)
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidRecommendation):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "proposal operation failed", nil)
	}
}

func queryInt(c *gin.Context, key string) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", key+" must be a non-negative integer", nil)
		return 0, false
	}
	return v, true
}

func parseIndices(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
