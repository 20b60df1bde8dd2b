package grades

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/report-card/internal/auth"
	"github.com/yourusername/report-card/internal/models"
)

type stubGradeService struct {
	grades   []*models.Grade
	summary  *Summary
	subjects []*models.Subject
	found    bool
	err      error
}

func (s *stubGradeService) ListForStudent(ctx context.Context, user *models.User, studentID, termID int64) ([]*models.Grade, bool, error) {
	return s.grades, s.found, s.err
}

func (s *stubGradeService) Update(ctx context.Context, user *models.User, studentID, termID int64, entries []Entry) ([]*models.Grade, bool, error) {
	return s.grades, s.found, s.err
}

func (s *stubGradeService) Summarize(ctx context.Context, user *models.User, studentID, termID int64) (*Summary, bool, error) {
	return s.summary, s.found, s.err
}

func (s *stubGradeService) ListSubjects(ctx context.Context) ([]*models.Subject, error) {
	return s.subjects, s.err
}

func injectUser(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(auth.ContextUserKey, user)
		c.Next()
	}
}

func testUser() *models.User {
	return &models.User{ID: 1, Role: models.RoleFormTeacher, SchoolID: 1}
}

func TestListHandlerInvalidTermQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/students/:id/grades", injectUser(testUser()), ListHandler(&stubGradeService{found: true}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students/100/grades?term_id=abc", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestListHandlerInaccessibleStudent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/students/:id/grades", injectUser(testUser()), ListHandler(&stubGradeService{found: false}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students/200/grades", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestUpdateHandlerSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubGradeService{
		found: true,
		grades: []*models.Grade{
			{ID: 1, StudentID: 100, TermID: 1, SubjectID: 1, Score: 88},
		},
	}

	router := gin.New()
	router.PUT("/students/:id/grades", injectUser(testUser()), UpdateHandler(service))

	body := bytes.NewBufferString(`{"termId":1,"grades":[{"subjectId":1,"score":88}]}`)
	req := httptest.NewRequest(http.MethodPut, "/students/100/grades", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Grades []*models.Grade `json:"grades"`
		Total  int             `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload.Total != 1 || payload.Grades[0].Score != 88 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestUpdateHandlerMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.PUT("/students/:id/grades", injectUser(testUser()), UpdateHandler(&stubGradeService{found: true}))

	req := httptest.NewRequest(http.MethodPut, "/students/100/grades", bytes.NewBufferString("not-json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["code"] != "INVALID_REQUEST" {
		t.Fatalf("unexpected code: %s", payload["code"])
	}
}

func TestUpdateHandlerInvalidScore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubGradeService{
		found: true,
		err:   &Error{Code: "INVALID_SCORE", Message: "スコアは 0 から 100 の範囲で指定してください。"},
	}

	router := gin.New()
	router.PUT("/students/:id/grades", injectUser(testUser()), UpdateHandler(service))

	body := bytes.NewBufferString(`{"termId":1,"grades":[{"subjectId":1,"score":150}]}`)
	req := httptest.NewRequest(http.MethodPut, "/students/100/grades", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["code"] != "INVALID_SCORE" {
		t.Fatalf("unexpected code: %s", payload["code"])
	}
}

func TestSummaryHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubGradeService{
		found: true,
		summary: &Summary{
			StudentID: 100,
			TermID:    1,
			Grades:    []*models.Grade{{ID: 1, Score: 90}},
			Average:   90,
			Band:      "Outstanding",
		},
	}

	router := gin.New()
	router.GET("/students/:id/grades/summary", injectUser(testUser()), SummaryHandler(service))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students/100/grades/summary?term_id=1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var payload Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload.Band != "Outstanding" || payload.Average != 90 {
		t.Fatalf("unexpected summary: %+v", payload)
	}
}

func TestSubjectsHandlerUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/subjects", SubjectsHandler(&stubGradeService{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/subjects", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}
