package reports

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/yourusername/report-card/internal/auth"
	"github.com/yourusername/report-card/internal/models"
)

// Preparer は帳票ジョブの準備と破棄ができるサービスが実装します。
type Preparer interface {
	Prepare(ctx context.Context, user *models.User, studentID, termID int64) (*Manifest, bool, error)
	DiscardJob(jobID string) error
}

// JobScheduler はジョブを非同期キューに投入するためのインターフェースです。
type JobScheduler interface {
	Schedule(ctx context.Context, jobID string, ownerID, schoolID int64) error
}

type generateRequest struct {
	StudentID int64 `json:"studentId" binding:"required"`
	TermID    int64 `json:"termId" binding:"required"`
}

// GenerateHandler は POST /reports/generate のハンドラーを返します。
// 準備が成功するとジョブをキューへ投入し、202 とジョブ ID を返します。
func GenerateHandler(svc Preparer, scheduler JobScheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "認証が必要です",
			})
			return
		}

		var req generateRequest
		if err := c.ShouldBindWith(&req, binding.JSON); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_REQUEST",
				"message": "studentId と termId を指定してください。",
			})
			return
		}

		manifest, found, err := svc.Prepare(c.Request.Context(), user, req.StudentID, req.TermID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "NOT_FOUND",
				"message": "指定されたリソースは見つかりません",
			})
			return
		}

		if err := scheduler.Schedule(c.Request.Context(), manifest.JobID, user.ID, user.SchoolID); err != nil {
			if cleanupErr := svc.DiscardJob(manifest.JobID); cleanupErr != nil {
				err = fmt.Errorf("%w (cleanup failed: %v)", err, cleanupErr)
			}
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"jobId": manifest.JobID})
	}
}

func respondWithError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "リクエストがキャンセルされました。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}
