package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domain "student-service/internal/domain/student"
	usecase "student-service/internal/usecase/student"
	pkgerrors "student-service/pkg/errors"
)

// MockStudentUsecase is a mock implementation of student.Usecase
type MockStudentUsecase struct {
	mock.Mock
}

func (m *MockStudentUsecase) CreateStudent(ctx context.Context, req usecase.CreateStudentRequest) (*usecase.StudentResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.StudentResponse), args.Error(1)
}

func (m *MockStudentUsecase) UpdateStudent(ctx context.Context, req usecase.UpdateStudentRequest) (*usecase.StudentResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.StudentResponse), args.Error(1)
}

func (m *MockStudentUsecase) DeleteStudent(ctx context.Context, req usecase.DeleteStudentRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockStudentUsecase) GetStudent(ctx context.Context, req usecase.GetStudentRequest) (*usecase.StudentResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.StudentResponse), args.Error(1)
}

func (m *MockStudentUsecase) ListStudents(ctx context.Context, req usecase.ListStudentsRequest) (*usecase.ListStudentsResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.ListStudentsResponse), args.Error(1)
}

func (m *MockStudentUsecase) GetPhoto(ctx context.Context, req usecase.GetStudentRequest) (*usecase.PhotoResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.PhotoResponse), args.Error(1)
}

func setupTest(t *testing.T) (*gin.Engine, *MockStudentUsecase) {
	gin.SetMode(gin.TestMode)
	mockUsecase := new(MockStudentUsecase)
	h := NewStudentHandler(mockUsecase, zaptest.NewLogger(t), "/api/v1/students")

	r := gin.New()
	r.POST("/students", h.CreateStudent)
	r.GET("/students", h.ListStudents)
	r.GET("/students/:id", h.GetStudent)
	r.GET("/students/:id/photo", h.GetPhoto)
	r.PUT("/students/:id", h.UpdateStudent)
	r.DELETE("/students/:id", h.DeleteStudent)

	t.Cleanup(func() { mockUsecase.AssertExpectations(t) })
	return r, mockUsecase
}

func multipartBody(t *testing.T, fields map[string]string, photoName string, photo []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if photoName != "" {
		part, err := w.CreateFormFile("photo", photoName)
		require.NoError(t, err)
		_, err = part.Write(photo)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

var jo = &usecase.StudentResponse{ID: 1, Name: "Jo", Email: "jo@x.com", DateOfBirth: "1990-01-01"}

func TestCreateStudent(t *testing.T) {
	t.Run("Multipart Without Photo", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		mockUsecase.On("CreateStudent", mock.Anything, mock.MatchedBy(func(req usecase.CreateStudentRequest) bool {
			return req.Name == "Jo" && req.Email == "jo@x.com" && req.DateOfBirth == "1990-01-01" && req.Photo == nil
		})).Return(jo, nil)

		body, contentType := multipartBody(t, map[string]string{"name": "Jo", "email": "jo@x.com", "dob": "1990-01-01"}, "", nil)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/students", body)
		req.Header.Set("Content-Type", contentType)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp StudentResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(1), resp.ID)
		assert.Equal(t, "1990-01-01", resp.DateOfBirth)
		assert.NotContains(t, w.Body.String(), "photoUrl")
	})

	t.Run("Multipart With Photo", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		mockUsecase.On("CreateStudent", mock.Anything, mock.MatchedBy(func(req usecase.CreateStudentRequest) bool {
			if req.Photo == nil || req.Photo.Filename != "jo.png" || req.Photo.Size != 4 {
				return false
			}
			data, _ := io.ReadAll(req.Photo.Content)
			return string(data) == "\x89PNG"
		})).Return(&usecase.StudentResponse{ID: 1, Name: "Jo", Email: "jo@x.com", DateOfBirth: "1990-01-01", Photo: "1_jo.png"}, nil)

		body, contentType := multipartBody(t, map[string]string{"name": "Jo", "email": "jo@x.com", "dob": "1990-01-01"}, "jo.png", []byte("\x89PNG"))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/students", body)
		req.Header.Set("Content-Type", contentType)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp StudentResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "1_jo.png", resp.Photo)
		assert.Equal(t, "/api/v1/students/1/photo", resp.PhotoURL)
	})

	t.Run("Urlencoded With DateOfBirth Alias", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		mockUsecase.On("CreateStudent", mock.Anything, mock.MatchedBy(func(req usecase.CreateStudentRequest) bool {
			return req.DateOfBirth == "1990-01-01"
		})).Return(jo, nil)

		form := url.Values{"name": {"Jo"}, "email": {"jo@x.com"}, "dateOfBirth": {"1990-01-01"}}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/students", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("JSON Body", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		mockUsecase.On("CreateStudent", mock.Anything, mock.MatchedBy(func(req usecase.CreateStudentRequest) bool {
			return req.Name == "Jo" && req.DateOfBirth == "1990-01-01"
		})).Return(jo, nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/students", strings.NewReader(`{"name":"Jo","email":"jo@x.com","dob":"1990-01-01"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		r, _ := setupTest(t)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/students", strings.NewReader("invalid json"))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation_error", decodeError(t, w).Error)
	})

	t.Run("Validation Error", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		mockUsecase.On("CreateStudent", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewValidationError("", "Email must be a valid email"))

		form := url.Values{"name": {"Jo"}, "email": {"nope"}, "dob": {"1990-01-01"}}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/students", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, "validation_error", resp.Error)
		assert.Contains(t, resp.Message, "Email must be a valid email")
	})

	t.Run("Email Conflict", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		mockUsecase.On("CreateStudent", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewAlreadyExistsError("student", "Email jo@x.com already taken"))

		form := url.Values{"name": {"Jo"}, "email": {"jo@x.com"}, "dob": {"1990-01-01"}}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/students", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "already_exists", decodeError(t, w).Error)
	})

	t.Run("Internal Error Hides Detail", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		mockUsecase.On("CreateStudent", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewInternalError("failed to create student", errors.New("pq: password authentication failed")))

		form := url.Values{"name": {"Jo"}, "email": {"jo@x.com"}, "dob": {"1990-01-01"}}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/students", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "password")
	})
}

func TestGetStudent(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("GetStudent", mock.Anything, usecase.GetStudentRequest{ID: 1}).Return(jo, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/students/1", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":1,"name":"Jo","email":"jo@x.com","dateOfBirth":"1990-01-01"}`, w.Body.String())
	})

	t.Run("Not Found", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("GetStudent", mock.Anything, usecase.GetStudentRequest{ID: 9}).
			Return(nil, pkgerrors.NewNotFoundError("student", "Student with ID 9 not found"))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/students/9", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, "not_found", resp.Error)
		assert.Equal(t, "Student with ID 9 not found", resp.Message)
	})

	t.Run("Invalid ID", func(t *testing.T) {
		for _, id := range []string{"abc", "0", "-4"} {
			r, _ := setupTest(t)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/students/"+id, nil))

			assert.Equal(t, http.StatusBadRequest, w.Code, id)
			assert.Equal(t, "invalid_id", decodeError(t, w).Error, id)
		}
	})
}

func TestGetPhoto(t *testing.T) {
	t.Run("Streams Content", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("GetPhoto", mock.Anything, usecase.GetStudentRequest{ID: 1}).Return(&usecase.PhotoResponse{
			ContentType: "image/png",
			Content:     io.NopCloser(strings.NewReader("png-bytes")),
		}, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/students/1/photo", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Equal(t, "png-bytes", w.Body.String())
	})

	t.Run("No Photo", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("GetPhoto", mock.Anything, usecase.GetStudentRequest{ID: 1}).
			Return(nil, pkgerrors.NewNotFoundError("photo", "Student with ID 1 has no photo"))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/students/1/photo", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUpdateStudent(t *testing.T) {
	t.Run("Partial Update", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("UpdateStudent", mock.Anything, mock.MatchedBy(func(req usecase.UpdateStudentRequest) bool {
			return req.ID == 1 && req.Email == "new@x.com" && req.Name == "" && req.DateOfBirth == "" && req.Photo == nil
		})).Return(&usecase.StudentResponse{ID: 1, Name: "Jo", Email: "new@x.com", DateOfBirth: "1990-01-01"}, nil)

		form := url.Values{"email": {"new@x.com"}}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/students/1", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp StudentResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "new@x.com", resp.Email)
	})

	t.Run("Invalid ID", func(t *testing.T) {
		r, _ := setupTest(t)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/students/x", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Not Found", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("UpdateStudent", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewNotFoundError("student", "Student with ID 5 not found"))

		form := url.Values{"name": {"X"}}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/students/5", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestDeleteStudent(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("DeleteStudent", mock.Anything, usecase.DeleteStudentRequest{ID: 1}).Return(nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/students/1", nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("Not Found", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("DeleteStudent", mock.Anything, usecase.DeleteStudentRequest{ID: 2}).
			Return(pkgerrors.NewNotFoundError("student", "Student with ID 2 not found"))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/students/2", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListStudents(t *testing.T) {
	t.Run("Query Parameters And Headers", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("ListStudents", mock.Anything, usecase.ListStudentsRequest{
			Name:          "ann",
			Email:         "school",
			Page:          2,
			Size:          5,
			SortField:     "dateOfBirth",
			SortDirection: "desc",
		}).Return(&usecase.ListStudentsResponse{
			Students:   []usecase.StudentResponse{*jo},
			Pagination: domain.NewPagination(11, 2, 5),
		}, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
			"/students?name=ann&email=school&page=2&size=5&sortField=dateOfBirth&sortDirection=desc", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "11", w.Header().Get(HeaderTotalCount))
		assert.Equal(t, "3", w.Header().Get(HeaderTotalPages))
		assert.Equal(t, "2", w.Header().Get(HeaderPage))
		assert.Equal(t, "5", w.Header().Get(HeaderPageSize))

		var resp []StudentResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp, 1)
		assert.Equal(t, "Jo", resp[0].Name)
	})

	t.Run("Empty Result Is Array", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("ListStudents", mock.Anything, usecase.ListStudentsRequest{Page: 0, Size: 10}).
			Return(&usecase.ListStudentsResponse{Students: []usecase.StudentResponse{}, Pagination: domain.NewPagination(0, 0, 10)}, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/students", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "[]", w.Body.String())
	})

	t.Run("Non Numeric Page", func(t *testing.T) {
		r, _ := setupTest(t)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/students?page=first", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeError(t, w).Message, "page must be an integer")
	})

	t.Run("Unknown Sort Field", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("ListStudents", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewValidationError("sortField", `cannot sort by "password"`))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/students?sortField=password", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Healthy", func(t *testing.T) {
		r := gin.New()
		r.GET("/health", NewHealthHandler("student-service", map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
		}).Health)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"healthy","service":"student-service","checks":{"database":"ok"}}`, w.Body.String())
	})

	t.Run("Dependency Down", func(t *testing.T) {
		r := gin.New()
		r.GET("/health", NewHealthHandler("student-service", map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		}).Health)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"redis":"connection refused"`)
	})
}
