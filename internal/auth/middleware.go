package auth

import (
	"log"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/report-card/internal/config"
	"github.com/yourusername/report-card/internal/models"
)

const (
	// ContextUserKey はリクエストコンテキストに格納するユーザーのキーです。
	ContextUserKey = "auth.user"
	// ContextSessionKey はリクエストコンテキストに格納するセッションのキーです。
	ContextSessionKey = "auth.session"
)

// CurrentUser はリクエストコンテキストから認証済みユーザーを取り出します。
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

// CurrentSession はリクエストコンテキストからセッションを取り出します。
func CurrentSession(c *gin.Context) (*models.Session, bool) {
	v, ok := c.Get(ContextSessionKey)
	if !ok {
		return nil, false
	}
	session, ok := v.(*models.Session)
	return session, ok
}

// SessionMiddleware は各リクエストのセッション解決を担うミドルウェアです。
// リクエスト数のカウンターを保持し、一定間隔で期限切れセッションを掃除します。
// カウンターはこのインスタンスが所有するプロセスローカルな状態です。
type SessionMiddleware struct {
	svc           *Service
	logger        *log.Logger
	sweepInterval uint64
	strictBinding bool
	secureCookies bool
	requestCount  atomic.Uint64
}

// NewSessionMiddleware はセッションミドルウェアを作成します。
func NewSessionMiddleware(svc *Service, cfg *config.Config, logger *log.Logger) *SessionMiddleware {
	if logger == nil {
		logger = log.Default()
	}
	return &SessionMiddleware{
		svc:           svc,
		logger:        logger,
		sweepInterval: uint64(cfg.SessionSweepInterval),
		strictBinding: cfg.SessionStrictBinding,
		secureCookies: cfg.GinMode == gin.ReleaseMode,
	}
}

// Handler はミドルウェア本体を返します。
// クッキーのトークンを解決し、有効ならユーザーとセッションをコンテキストへ載せて
// セッションを延長します。無効なトークンが提示されていた場合は両クッキーを
// 破棄するよう応答に指示し、汚れたクッキーが残り続けないようにします。
func (m *SessionMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		count := m.requestCount.Add(1)

		token, err := c.Cookie(SessionCookieName)
		if err != nil || token == "" {
			// 未認証のまま処理を続ける
			c.Next()
			m.maybeSweep(c, count)
			return
		}

		session, user, err := m.svc.GetSessionWithUser(c.Request.Context(), token)
		if err != nil {
			// ストア障害は読み取り経路のためサーバーエラーとして伝播する
			m.logger.Printf("session resolution failed: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "サーバー内部でエラーが発生しました。",
			})
			return
		}

		if session == nil {
			// トークンは提示されたが無効だった。クッキーを消させる。
			clearSessionCookies(c, m.secureCookies)
			c.Next()
			m.maybeSweep(c, count)
			return
		}

		if rejected := m.checkClientBinding(c, session, user); rejected {
			m.maybeSweep(c, count)
			return
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextSessionKey, session)

		// 静的アセットへのアクセスでは無意味な書き込みを避けるため延長しない
		if !isStaticResource(c.Request.URL.Path) {
			if err := m.svc.ExtendSession(c.Request.Context(), token); err != nil {
				m.logger.Printf("failed to extend session: %v", err)
			}
		}

		c.Next()
		m.maybeSweep(c, count)
	}
}

// checkClientBinding はセッション作成時に記録した IP/User-Agent と現在の値を比較します。
// 既定では不一致を盗難シグナルとしてログに残すだけで、リクエストは通します。
// strictBinding が有効な場合は未認証として拒否します。
func (m *SessionMiddleware) checkClientBinding(c *gin.Context, session *models.Session, user *models.User) bool {
	mismatch := false

	if session.IPAddress != "" && session.IPAddress != c.ClientIP() {
		m.logger.Printf("session ip mismatch user=%d stored=%s current=%s",
			user.ID, session.IPAddress, c.ClientIP())
		mismatch = true
	}
	if session.UserAgent != "" && session.UserAgent != c.Request.UserAgent() {
		m.logger.Printf("session user-agent mismatch user=%d", user.ID)
		mismatch = true
	}

	if mismatch && m.strictBinding {
		clearSessionCookies(c, m.secureCookies)
		respondUnauthenticated(c)
		return true
	}
	return false
}

// maybeSweep は sweepInterval 件に1回、期限切れセッションを掃除します。
// ベストエフォートであり、失敗してもリクエスト自体は失敗させません。
func (m *SessionMiddleware) maybeSweep(c *gin.Context, count uint64) {
	if m.sweepInterval == 0 || count%m.sweepInterval != 0 {
		return
	}
	deleted, err := m.svc.CleanupExpiredSessions(c.Request.Context())
	if err != nil {
		m.logger.Printf("session sweep failed: %v", err)
		return
	}
	if deleted > 0 {
		m.logger.Printf("session sweep removed %d expired sessions", deleted)
	}
}

// RequireAuth は認証済みユーザーを要求するミドルウェアを返します。
// SessionMiddleware より後段に配置します。
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			respondUnauthenticated(c)
			return
		}
		c.Next()
	}
}

var staticSuffixes = []string{
	".css", ".js", ".ico", ".png", ".jpg", ".jpeg", ".gif", ".svg",
	".woff", ".woff2", ".ttf", ".eot",
}

// isStaticResource は静的アセットへのリクエストかどうかを判定します。
func isStaticResource(path string) bool {
	if strings.HasPrefix(path, "/static/") || strings.HasPrefix(path, "/assets/") {
		return true
	}
	if path == "/favicon.ico" || path == "/robots.txt" {
		return true
	}
	for _, suffix := range staticSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}
