package achievements

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/report-card/internal/auth"
	"github.com/yourusername/report-card/internal/models"
)

// Suggester はサジェストを生成できるサービスが実装します。
type Suggester interface {
	Suggest(ctx context.Context, user *models.User, studentID, termID int64) (*Result, bool, error)
}

// SuggestHandler は GET /students/:id/achievements/suggestions のハンドラーを返します。
// クエリ term_id で対象の学期を指定します（必須）。
func SuggestHandler(svc Suggester) gin.HandlerFunc {
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
		termID, err := strconv.ParseInt(c.Query("term_id"), 10, 64)
		if err != nil || termID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_REQUEST",
				"message": "term_id は正の整数で指定してください。",
			})
			return
		}

		result, found, err := svc.Suggest(c.Request.Context(), user, studentID, termID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "サーバー内部でエラーが発生しました。",
			})
			return
		}
		if !found {
			respondNotFound(c)
			return
		}
		c.JSON(http.StatusOK, result)
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
