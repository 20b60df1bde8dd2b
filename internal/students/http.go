package students

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/report-card/internal/auth"
	"github.com/yourusername/report-card/internal/models"
)

// Lister は生徒の参照ができるサービスが実装します。
type Lister interface {
	List(ctx context.Context, user *models.User) ([]*models.Student, error)
	Get(ctx context.Context, user *models.User, id int64) (*models.Student, error)
	ListByClass(ctx context.Context, user *models.User, classID int64) ([]*models.Student, bool, error)
}

// ListHandler は GET /students のハンドラーを返します。
func ListHandler(svc Lister) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			respondUnauthenticated(c)
			return
		}

		list, err := svc.List(c.Request.Context(), user)
		if err != nil {
			respondInternalError(c)
			return
		}
		if list == nil {
			list = []*models.Student{}
		}
		c.JSON(http.StatusOK, gin.H{"students": list, "total": len(list)})
	}
}

// GetHandler は GET /students/:id のハンドラーを返します。
// 存在しない生徒とアクセス権の無い生徒は同じ 404 になります。
func GetHandler(svc Lister) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			respondUnauthenticated(c)
			return
		}

		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			respondNotFound(c)
			return
		}

		student, err := svc.Get(c.Request.Context(), user, id)
		if err != nil {
			respondInternalError(c)
			return
		}
		if student == nil {
			respondNotFound(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{"student": student})
	}
}

// ClassStudentsHandler は GET /classes/:id/students のハンドラーを返します。
func ClassStudentsHandler(svc Lister) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			respondUnauthenticated(c)
			return
		}

		classID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			respondNotFound(c)
			return
		}

		list, found, err := svc.ListByClass(c.Request.Context(), user, classID)
		if err != nil {
			respondInternalError(c)
			return
		}
		if !found {
			respondNotFound(c)
			return
		}
		if list == nil {
			list = []*models.Student{}
		}
		c.JSON(http.StatusOK, gin.H{"students": list, "total": len(list)})
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

func respondInternalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "INTERNAL_ERROR",
		"message": "サーバー内部でエラーが発生しました。",
	})
}
