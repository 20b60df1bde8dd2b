package reports

import (
	"bytes"
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

type stubPreparer struct {
	manifest  *Manifest
	found     bool
	err       error
	discarded []string
}

func (s *stubPreparer) Prepare(ctx context.Context, user *models.User, studentID, termID int64) (*Manifest, bool, error) {
	return s.manifest, s.found, s.err
}

func (s *stubPreparer) DiscardJob(jobID string) error {
	s.discarded = append(s.discarded, jobID)
	return nil
}

type stubScheduler struct {
	jobIDs []string
	err    error
}

func (s *stubScheduler) Schedule(ctx context.Context, jobID string, ownerID, schoolID int64) error {
	if s.err != nil {
		return s.err
	}
	s.jobIDs = append(s.jobIDs, jobID)
	return nil
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

func postGenerate(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/reports/generate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGenerateHandlerAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	preparer := &stubPreparer{manifest: &Manifest{JobID: "job-123"}, found: true}
	scheduler := &stubScheduler{}

	router := gin.New()
	router.POST("/reports/generate", injectUser(testUser()), GenerateHandler(preparer, scheduler))

	rec := postGenerate(router, `{"studentId":100,"termId":1}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["jobId"] != "job-123" {
		t.Fatalf("unexpected jobId: %s", payload["jobId"])
	}
	if len(scheduler.jobIDs) != 1 || scheduler.jobIDs[0] != "job-123" {
		t.Fatalf("job was not scheduled: %+v", scheduler.jobIDs)
	}
}

func TestGenerateHandlerNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/reports/generate", injectUser(testUser()), GenerateHandler(&stubPreparer{found: false}, &stubScheduler{}))

	rec := postGenerate(router, `{"studentId":200,"termId":1}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestGenerateHandlerMissingFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/reports/generate", injectUser(testUser()), GenerateHandler(&stubPreparer{found: true}, &stubScheduler{}))

	rec := postGenerate(router, `{"studentId":100}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestGenerateHandlerNoGrades(t *testing.T) {
	gin.SetMode(gin.TestMode)
	preparer := &stubPreparer{found: true, err: &Error{Code: "NO_GRADES", Message: "この学期の成績が登録されていません。"}}
	router := gin.New()
	router.POST("/reports/generate", injectUser(testUser()), GenerateHandler(preparer, &stubScheduler{}))

	rec := postGenerate(router, `{"studentId":100,"termId":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["code"] != "NO_GRADES" {
		t.Fatalf("unexpected code: %s", payload["code"])
	}
}

func TestGenerateHandlerScheduleFailureDiscardsJob(t *testing.T) {
	gin.SetMode(gin.TestMode)
	preparer := &stubPreparer{manifest: &Manifest{JobID: "job-9"}, found: true}
	scheduler := &stubScheduler{err: errors.New("queue down")}

	router := gin.New()
	router.POST("/reports/generate", injectUser(testUser()), GenerateHandler(preparer, scheduler))

	rec := postGenerate(router, `{"studentId":100,"termId":1}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if len(preparer.discarded) != 1 || preparer.discarded[0] != "job-9" {
		t.Fatalf("workspace was not discarded: %+v", preparer.discarded)
	}
}

func TestGenerateHandlerUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/reports/generate", GenerateHandler(&stubPreparer{found: true}, &stubScheduler{}))

	rec := postGenerate(router, `{"studentId":100,"termId":1}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}
