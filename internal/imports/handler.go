package imports

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tuning-backend/internal/shared/server/middleware"
	"tuning-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the import registry.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches read and submit routes. Deletion is registered
// separately so it can sit behind an admin check.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/imports", h.submit)
	rg.GET("/imports", h.list)
	rg.GET("/imports/:id", h.get)
}

// RegisterAdminRoutes attaches the administrative delete route.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.DELETE("/imports/:id", h.delete)
}

type submitRequest struct {
	Content  string `json:"content"`
	Filename string `json:"filename"`
	Source   string `json:"source"`
}

func (h *Handler) submit(c *gin.Context) {
	if h.Svc.MaxBytes > 0 {
		// Leave headroom for the JSON envelope and multipart framing.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Svc.MaxBytes*2+1<<20)
	}

	req, ok := h.readSubmit(c)
	if !ok {
		return
	}

	rec, err := h.Svc.Submit(c.Request.Context(), SubmitRequest{
		Content:   req.content,
		Filename:  req.filename,
		Source:    req.source,
		CreatedBy: middleware.UserIDFromContext(c),
	})
	if err != nil {
		var dup *DuplicateError
		var failed *FailedError
		switch {
		case errors.As(err, &dup):
			c.Set(middleware.ImportIDKey, dup.Existing.ID)
			respond.Error(c, http.StatusConflict, "duplicate_import", "content was already imported", gin.H{"existingImport": dup.Existing})
		case errors.As(err, &failed):
			c.Set(middleware.ImportIDKey, failed.Record.ID)
			respond.Error(c, http.StatusUnprocessableEntity, "import_failed", failed.Err.Error(), gin.H{"importRecord": failed.Record})
		case errors.Is(err, ErrTooLarge):
			respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", err.Error(), nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to import content", nil)
		}
		return
	}

	c.Set(middleware.ImportIDKey, rec.ID)
	respond.Created(c, gin.H{"importRecord": rec})
}

type submission struct {
	content  []byte
	filename string
	source   string
}

// readSubmit accepts a JSON body or a multipart upload with a "file" field.
func (h *Handler) readSubmit(c *gin.Context) (submission, bool) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
			return submission{}, false
		}
		file, err := fileHeader.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
			return submission{}, false
		}
		defer file.Close()
		content, err := io.ReadAll(file)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
			return submission{}, false
		}
		return submission{content: content, filename: fileHeader.Filename, source: c.PostForm("source")}, true
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", nil)
			return submission{}, false
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return submission{}, false
	}
	return submission{content: []byte(req.Content), filename: req.Filename, source: req.Source}, true
}

func (h *Handler) list(c *gin.Context) {
	limit, err := optionalInt(c.Query("limit"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "limit must be an integer", nil)
		return
	}
	offset, err := optionalInt(c.Query("offset"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "offset must be an integer", nil)
		return
	}
	out, err := h.Svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list imports", nil)
		return
	}
	respond.OK(c, gin.H{"imports": out})
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.ImportIDKey, id)
	rec, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		writeLookupError(c, err)
		return
	}
	respond.OK(c, gin.H{"importRecord": rec})
}

func (h *Handler) delete(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.ImportIDKey, id)
	if err := h.Svc.Delete(c.Request.Context(), id, middleware.UserIDFromContext(c)); err != nil {
		writeLookupError(c, err)
		return
	}
	respond.NoContent(c)
}

func writeLookupError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		respond.Error(c, http.StatusNotFound, "not_found", "import not found", gin.H{"importId": c.Param("id")})
		return
	}
	respond.Error(c, http.StatusInternalServerError, "internal_error", "import lookup failed", nil)
}

func optionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
