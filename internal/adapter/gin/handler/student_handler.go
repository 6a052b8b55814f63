package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"student-service/internal/usecase/student"
	pkgerrors "student-service/pkg/errors"
	"student-service/pkg/logger"
)

// Pagination response headers of GET /students.
const (
	HeaderTotalCount = "X-Total-Count"
	HeaderTotalPages = "X-Total-Pages"
	HeaderPage       = "X-Page"
	HeaderPageSize   = "X-Page-Size"
)

// StudentHandler handles HTTP requests for student operations
type StudentHandler struct {
	uc        student.Usecase
	log       *zap.Logger
	photoPath string
}

// NewStudentHandler creates a new StudentHandler. photoPath is the route
// prefix used to build photo URLs, e.g. "/api/v1/students".
func NewStudentHandler(uc student.Usecase, log *zap.Logger, photoPath string) *StudentHandler {
	return &StudentHandler{
		uc:        uc,
		log:       log,
		photoPath: photoPath,
	}
}

// StudentForm is the body of POST and PUT requests. It binds from
// multipart or urlencoded forms as well as JSON. dateOfBirth is accepted
// as an alias of dob.
type StudentForm struct {
	Name        string `form:"name" json:"name"`
	Email       string `form:"email" json:"email"`
	DOB         string `form:"dob" json:"dob"`
	DateOfBirth string `form:"dateOfBirth" json:"dateOfBirth"`
}

func (f StudentForm) dateOfBirth() string {
	if f.DOB != "" {
		return f.DOB
	}
	return f.DateOfBirth
}

// StudentResponse represents the HTTP response for student data
type StudentResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	DateOfBirth string `json:"dateOfBirth"`
	Photo       string `json:"photo,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (h *StudentHandler) toResponse(s *student.StudentResponse) StudentResponse {
	resp := StudentResponse{
		ID:          s.ID,
		Name:        s.Name,
		Email:       s.Email,
		DateOfBirth: s.DateOfBirth,
		Photo:       s.Photo,
	}
	if s.Photo != "" {
		resp.PhotoURL = fmt.Sprintf("%s/%d/photo", h.photoPath, s.ID)
	}
	return resp
}

// CreateStudent handles POST /students
func (h *StudentHandler) CreateStudent(c *gin.Context) {
	log := logger.WithContext(c.Request.Context(), h.log)

	var form StudentForm
	if err := c.ShouldBind(&form); err != nil {
		log.Warn("invalid create student request", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	photo, cleanup, err := photoUpload(c)
	if err != nil {
		log.Warn("invalid photo upload", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "photo could not be read",
		})
		return
	}
	defer cleanup()

	resp, err := h.uc.CreateStudent(c.Request.Context(), student.CreateStudentRequest{
		Name:        form.Name,
		Email:       form.Email,
		DateOfBirth: form.dateOfBirth(),
		Photo:       photo,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.toResponse(resp))
}

// GetStudent handles GET /students/:id
func (h *StudentHandler) GetStudent(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	resp, err := h.uc.GetStudent(c.Request.Context(), student.GetStudentRequest{ID: id})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.toResponse(resp))
}

// GetPhoto handles GET /students/:id/photo
func (h *StudentHandler) GetPhoto(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	photo, err := h.uc.GetPhoto(c.Request.Context(), student.GetStudentRequest{ID: id})
	if err != nil {
		h.handleError(c, err)
		return
	}
	defer photo.Content.Close()

	c.DataFromReader(http.StatusOK, -1, photo.ContentType, photo.Content, map[string]string{
		"Cache-Control":          "private, max-age=300",
		"X-Content-Type-Options": "nosniff",
	})
}

// UpdateStudent handles PUT /students/:id
func (h *StudentHandler) UpdateStudent(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	log := logger.WithContext(c.Request.Context(), h.log)

	var form StudentForm
	if err := c.ShouldBind(&form); err != nil {
		log.Warn("invalid update student request", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	photo, cleanup, err := photoUpload(c)
	if err != nil {
		log.Warn("invalid photo upload", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "photo could not be read",
		})
		return
	}
	defer cleanup()

	resp, err := h.uc.UpdateStudent(c.Request.Context(), student.UpdateStudentRequest{
		ID:          id,
		Name:        form.Name,
		Email:       form.Email,
		DateOfBirth: form.dateOfBirth(),
		Photo:       photo,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.toResponse(resp))
}

// DeleteStudent handles DELETE /students/:id
func (h *StudentHandler) DeleteStudent(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	if err := h.uc.DeleteStudent(c.Request.Context(), student.DeleteStudentRequest{ID: id}); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListStudents handles GET /students
func (h *StudentHandler) ListStudents(c *gin.Context) {
	page, err := queryInt(c, "page", 0)
	if err != nil {
		h.badQuery(c, "page", err)
		return
	}
	size, err := queryInt(c, "size", 10)
	if err != nil {
		h.badQuery(c, "size", err)
		return
	}

	resp, err := h.uc.ListStudents(c.Request.Context(), student.ListStudentsRequest{
		Name:          c.Query("name"),
		Email:         c.Query("email"),
		Page:          page,
		Size:          size,
		SortField:     c.Query("sortField"),
		SortDirection: c.Query("sortDirection"),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	students := make([]StudentResponse, len(resp.Students))
	for i := range resp.Students {
		students[i] = h.toResponse(&resp.Students[i])
	}

	if p := resp.Pagination; p != nil {
		c.Header(HeaderTotalCount, strconv.FormatInt(p.Total, 10))
		c.Header(HeaderTotalPages, strconv.FormatInt(p.TotalPages, 10))
		c.Header(HeaderPage, strconv.FormatInt(p.Page, 10))
		c.Header(HeaderPageSize, strconv.FormatInt(p.Size, 10))
	}

	c.JSON(http.StatusOK, students)
}

// parseID reads the :id path parameter and writes a 400 when it is not a
// positive integer.
func (h *StudentHandler) parseID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		logger.WithContext(c.Request.Context(), h.log).Warn("invalid student id", zap.String("id", idStr))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Student ID must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

func (h *StudentHandler) badQuery(c *gin.Context, name string, err error) {
	logger.WithContext(c.Request.Context(), h.log).Warn("invalid query parameter", zap.String("param", name), zap.Error(err))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Message: fmt.Sprintf("%s must be an integer", name),
	})
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, name string, def int64) (int64, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

// photoUpload extracts the optional "photo" file part. The returned
// cleanup closes the opened part and is always safe to call.
func photoUpload(c *gin.Context) (*student.PhotoUpload, func(), error) {
	noop := func() {}

	fh, err := c.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, err
	}

	f, err := fh.Open()
	if err != nil {
		return nil, noop, err
	}

	return &student.PhotoUpload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Content:  f,
	}, func() { _ = f.Close() }, nil
}

// handleError converts usecase errors to HTTP responses.
func (h *StudentHandler) handleError(c *gin.Context, err error) {
	log := logger.WithContext(c.Request.Context(), h.log)
	kind, status := pkgerrors.Kind(err)

	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
		c.JSON(status, ErrorResponse{
			Error:   kind,
			Message: "An internal error occurred",
		})
		return
	}

	log.Info("request rejected", zap.String("path", c.FullPath()), zap.String("kind", kind), zap.Error(err))
	c.JSON(status, ErrorResponse{
		Error:   kind,
		Message: err.Error(),
	})
}
