package students

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/report-card/internal/auth"
	"github.com/yourusername/report-card/internal/models"
)

type stubLister struct {
	list    []*models.Student
	student *models.Student
	found   bool
	err     error
}

func (s *stubLister) List(ctx context.Context, user *models.User) ([]*models.Student, error) {
	return s.list, s.err
}

func (s *stubLister) Get(ctx context.Context, user *models.User, id int64) (*models.Student, error) {
	return s.student, s.err
}

func (s *stubLister) ListByClass(ctx context.Context, user *models.User, classID int64) ([]*models.Student, bool, error) {
	return s.list, s.found, s.err
}

// injectUser はテスト用に認証済みユーザーをコンテキストへ載せるミドルウェアです。
func injectUser(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(auth.ContextUserKey, user)
		c.Next()
	}
}

func testUser() *models.User {
	return &models.User{ID: 1, Role: models.RoleFormTeacher, SchoolID: 1}
}

func TestListHandlerSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubLister{list: []*models.Student{
		{ID: 100, StudentNo: "S100", FirstName: "Hana", LastName: "Sato", SchoolID: 1, ClassID: 10},
	}}

	router := gin.New()
	router.GET("/api/v1/students", injectUser(testUser()), ListHandler(service))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/students", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Students []*models.Student `json:"students"`
		Total    int               `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload.Total != 1 || len(payload.Students) != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Students[0].StudentNo != "S100" {
		t.Fatalf("unexpected student: %+v", payload.Students[0])
	}
}

func TestListHandlerEmptyListIsArray(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/v1/students", injectUser(testUser()), ListHandler(&stubLister{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/students", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if string(payload["students"]) != "[]" {
		t.Fatalf("expected empty array, got %s", payload["students"])
	}
}

func TestListHandlerUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/v1/students", ListHandler(&stubLister{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/students", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestGetHandlerNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/v1/students/:id", injectUser(testUser()), GetHandler(&stubLister{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/students/999", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["code"] != "NOT_FOUND" {
		t.Fatalf("unexpected code: %s", payload["code"])
	}
}

func TestGetHandlerNonNumericID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/v1/students/:id", injectUser(testUser()), GetHandler(&stubLister{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/students/abc", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestGetHandlerStoreError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/v1/students/:id", injectUser(testUser()), GetHandler(&stubLister{err: errors.New("db down")}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/students/100", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestClassStudentsHandlerInaccessibleClass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/v1/classes/:id/students", injectUser(testUser()), ClassStudentsHandler(&stubLister{found: false}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/classes/11/students", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestClassStudentsHandlerEmptyClass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/v1/classes/:id/students", injectUser(testUser()), ClassStudentsHandler(&stubLister{found: true}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/classes/10/students", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var payload struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload.Total != 0 {
		t.Fatalf("unexpected total: %d", payload.Total)
	}
}
