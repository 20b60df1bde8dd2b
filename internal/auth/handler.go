package auth

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/yourusername/report-card/internal/config"
)

const (
	// SessionCookieName はセッショントークンを保持するクッキー名です。
	SessionCookieName = "session_id"
	// CSRFCookieName はCSRFトークンを保持するクッキー名です。
	CSRFCookieName = "csrf_token"

	csrfHeader = "X-CSRF-Token"
)

// Handler は認証系エンドポイントのハンドラーをまとめた構造体です。
type Handler struct {
	svc    *Service
	cfg    *config.Config
	maxAge int
}

// NewHandler は認証ハンドラーを作成します。
func NewHandler(svc *Service, cfg *config.Config) *Handler {
	return &Handler{
		svc:    svc,
		cfg:    cfg,
		maxAge: cfg.SessionExpireMinutes * 60,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login は POST /auth/login のハンドラーです。
// 認証に成功すると session_id と csrf_token の2つのクッキーを発行します。
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindWith(&req, binding.JSON); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "email と password を JSON で送ってください",
		})
		return
	}

	user, err := h.svc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました。",
		})
		return
	}
	if user == nil {
		// 未知のメールアドレスとパスワード不一致を区別しない
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    "INVALID_CREDENTIALS",
			"message": "メールアドレスまたはパスワードが正しくありません",
		})
		return
	}

	session, err := h.svc.CreateSession(c.Request.Context(), user, ClientMeta{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "SESSION_CREATE_FAILED",
			"message": "セッションの作成に失敗しました",
		})
		return
	}

	h.setSessionCookies(c, session.Token, session.CSRFToken)
	c.Header(csrfHeader, session.CSRFToken)
	c.JSON(http.StatusOK, gin.H{"user": user.PublicProfile()})
}

// Logout は POST /auth/logout のハンドラーです。
// セッションの有無にかかわらず成功し、両クッキーを破棄します。
func (h *Handler) Logout(c *gin.Context) {
	if token, err := c.Cookie(SessionCookieName); err == nil && token != "" {
		if _, err := h.svc.DeleteSession(c.Request.Context(), token); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "セッションの削除に失敗しました",
			})
			return
		}
	}

	h.clearSessionCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "ログアウトしました"})
}

// LogoutAll は POST /auth/logout-all のハンドラーです。
// 現在のユーザーが保持する全セッションを破棄し、件数を返します。
func (h *Handler) LogoutAll(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	count, err := h.svc.DeleteUserSessions(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "セッションの削除に失敗しました",
		})
		return
	}

	h.clearSessionCookies(c)
	c.JSON(http.StatusOK, gin.H{
		"message":      fmt.Sprintf("%d 件のセッションからログアウトしました", count),
		"revokedCount": count,
	})
}

// Me は GET /auth/me のハンドラーです。有効なセッションがなければ 401 を返します。
func (h *Handler) Me(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.PublicProfile()})
}

// Status は GET /auth/status のハンドラーです。
// クッキーの状態にかかわらずエラーにはなりません。
func (h *Handler) Status(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          user.PublicProfile(),
	})
}

// CleanupSessions は POST /auth/cleanup-sessions のハンドラーです。
// 期限切れセッションの掃除を即時実行し、削除件数を返します。
func (h *Handler) CleanupSessions(c *gin.Context) {
	count, err := h.svc.CleanupExpiredSessions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "セッションの掃除に失敗しました",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      fmt.Sprintf("%d 件の期限切れセッションを削除しました", count),
		"deletedCount": count,
	})
}

func (h *Handler) setSessionCookies(c *gin.Context, sessionToken, csrfToken string) {
	secure := h.cfg.GinMode == gin.ReleaseMode
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, sessionToken, h.maxAge, "/", "", secure, true)
	c.SetCookie(CSRFCookieName, csrfToken, h.maxAge, "/", "", secure, true)
}

func (h *Handler) clearSessionCookies(c *gin.Context) {
	clearSessionCookies(c, h.cfg.GinMode == gin.ReleaseMode)
}

func clearSessionCookies(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", secure, true)
	c.SetCookie(CSRFCookieName, "", -1, "/", "", secure, true)
}

// respondUnauthenticated は未認証系の失敗を一律同じ応答にします。
// トークンの不存在・期限切れ・不正形式を呼び出し側が区別できないようにします。
func respondUnauthenticated(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    "UNAUTHORIZED",
		"message": "認証が必要です",
	})
}
