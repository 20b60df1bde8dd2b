package school

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/report-card/internal/auth"
	"github.com/yourusername/report-card/internal/models"
)

// Directory はクラスと学期の参照ができるサービスが実装します。
type Directory interface {
	ListClasses(ctx context.Context, user *models.User) ([]*models.Class, error)
	GetClass(ctx context.Context, user *models.User, id int64) (*models.Class, error)
	ListTerms(ctx context.Context, user *models.User) ([]*models.Term, error)
}

// ClassesHandler は GET /classes のハンドラーを返します。
func ClassesHandler(svc Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			respondUnauthenticated(c)
			return
		}

		list, err := svc.ListClasses(c.Request.Context(), user)
		if err != nil {
			respondInternalError(c)
			return
		}
		if list == nil {
			list = []*models.Class{}
		}
		c.JSON(http.StatusOK, gin.H{"classes": list, "total": len(list)})
	}
}

// ClassHandler は GET /classes/:id のハンドラーを返します。
func ClassHandler(svc Directory) gin.HandlerFunc {
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

		class, err := svc.GetClass(c.Request.Context(), user, id)
		if err != nil {
			respondInternalError(c)
			return
		}
		if class == nil {
			respondNotFound(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{"class": class})
	}
}

// TermsHandler は GET /terms のハンドラーを返します。
func TermsHandler(svc Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			respondUnauthenticated(c)
			return
		}

		list, err := svc.ListTerms(c.Request.Context(), user)
		if err != nil {
			respondInternalError(c)
			return
		}
		if list == nil {
			list = []*models.Term{}
		}
		c.JSON(http.StatusOK, gin.H{"terms": list, "total": len(list)})
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
