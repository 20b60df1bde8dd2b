package grades

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/yourusername/report-card/internal/auth"
	"github.com/yourusername/report-card/internal/models"
)

// GradeService は成績の参照と更新ができるサービスが実装します。
type GradeService interface {
	ListForStudent(ctx context.Context, user *models.User, studentID, termID int64) ([]*models.Grade, bool, error)
	Update(ctx context.Context, user *models.User, studentID, termID int64, entries []Entry) ([]*models.Grade, bool, error)
	Summarize(ctx context.Context, user *models.User, studentID, termID int64) (*Summary, bool, error)
	ListSubjects(ctx context.Context) ([]*models.Subject, error)
}

type updateRequest struct {
	TermID int64   `json:"termId" binding:"required"`
	Grades []Entry `json:"grades" binding:"required"`
}

// ListHandler は GET /students/:id/grades のハンドラーを返します。
// クエリ term_id で学期を絞り込めます（省略時は全学期）。
func ListHandler(svc GradeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			respondUnauthenticated(c)
			return
		}

		studentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			respondNotFound(c)
			return
		}
		termID, err := optionalTermID(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_REQUEST",
				"message": "term_id は整数で指定してください。",
			})
			return
		}

		list, found, err := svc.ListForStudent(c.Request.Context(), user, studentID, termID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		if !found {
			respondNotFound(c)
			return
		}
		if list == nil {
			list = []*models.Grade{}
		}
		c.JSON(http.StatusOK, gin.H{"grades": list, "total": len(list)})
	}
}

// UpdateHandler は PUT /students/:id/grades のハンドラーを返します。
func UpdateHandler(svc GradeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			respondUnauthenticated(c)
			return
		}

		studentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			respondNotFound(c)
			return
		}

		var req updateRequest
		if err := c.ShouldBindWith(&req, binding.JSON); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_REQUEST",
				"message": "リクエストの形式が正しくありません。",
			})
			return
		}

		list, found, err := svc.Update(c.Request.Context(), user, studentID, req.TermID, req.Grades)
		if err != nil {
			respondWithError(c, err)
			return
		}
		if !found {
			respondNotFound(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{"grades": list, "total": len(list)})
	}
}

// SummaryHandler は GET /students/:id/grades/summary のハンドラーを返します。
func SummaryHandler(svc GradeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			respondUnauthenticated(c)
			return
		}

		studentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			respondNotFound(c)
			return
		}
		termID, err := optionalTermID(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_REQUEST",
				"message": "term_id は整数で指定してください。",
			})
			return
		}

		summary, found, err := svc.Summarize(c.Request.Context(), user, studentID, termID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		if !found {
			respondNotFound(c)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// SubjectsHandler は GET /subjects のハンドラーを返します。
func SubjectsHandler(svc GradeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := auth.CurrentUser(c); !ok {
			respondUnauthenticated(c)
			return
		}

		list, err := svc.ListSubjects(c.Request.Context())
		if err != nil {
			respondWithError(c, err)
			return
		}
		if list == nil {
			list = []*models.Subject{}
		}
		c.JSON(http.StatusOK, gin.H{"subjects": list, "total": len(list)})
	}
}

func optionalTermID(c *gin.Context) (int64, error) {
	raw := c.Query("term_id")
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func respondWithError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}

func respondUnauthenticated(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"code":    "UNAUTHORIZED",
		"message": "認証が必要です",
	})
}

func respondNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"code":    "NOT_FOUND",
		"message": "指定されたリソースは見つかりません",
	})
}
