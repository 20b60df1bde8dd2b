package auth

import (
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/report-card/internal/config"
)

// csrfFormField はフォーム送信でCSRFトークンを運ぶフィールド名です。
const csrfFormField = "csrf_token"

// csrfExemptPaths はCSRF検証を免除するパスの接頭辞です。
// ログインはセッション生成前のため対象外、ヘルスチェックとドキュメントは状態を変えません。
var csrfExemptPaths = []string{
	"/health",
	"/docs",
	"/api/v1/auth/login",
}

// CSRFGuard は状態変更系リクエストに対するダブルサブミット方式のCSRF検証です。
//
// 比較の基準値は常にセッションに保存されたサーバー側のトークンです。クライアントは
// ヘッダー（推奨）またはフォームフィールドで一致する値を提示し、どちらも無い場合のみ
// クッキーをフォールバックとして使います。クッキー同士の比較だけで済ませないのは、
// クッキーを注入できる攻撃者に対して防御にならないためです。
type CSRFGuard struct {
	svc          *Service
	logger       *log.Logger
	refererCheck bool
	allowedHosts map[string]struct{}
}

// NewCSRFGuard はCSRFガードを作成します。
// Referer 検証が有効な場合、CORS許可オリジンのホストを許可リストとして使います。
func NewCSRFGuard(svc *Service, cfg *config.Config, logger *log.Logger) *CSRFGuard {
	if logger == nil {
		logger = log.Default()
	}

	allowed := map[string]struct{}{
		"localhost": {},
		"127.0.0.1": {},
	}
	for _, origin := range strings.Split(cfg.CORSAllowedOrigins, ",") {
		if u, err := url.Parse(strings.TrimSpace(origin)); err == nil && u.Hostname() != "" {
			allowed[u.Hostname()] = struct{}{}
		}
	}

	return &CSRFGuard{
		svc:          svc,
		logger:       logger,
		refererCheck: cfg.RefererCheck,
		allowedHosts: allowed,
	}
}

// Handler はミドルウェア本体を返します。
func (g *CSRFGuard) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.requiresProtection(c) {
			c.Next()
			return
		}

		sessionToken, err := c.Cookie(SessionCookieName)
		if err != nil || sessionToken == "" {
			respondUnauthenticated(c)
			return
		}

		presented := g.presentedToken(c)
		if presented == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "CSRF_MISSING",
				"message": "CSRF トークンが必要です",
			})
			return
		}

		valid, err := g.svc.ValidateCSRFToken(c.Request.Context(), sessionToken, presented)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "サーバー内部でエラーが発生しました。",
			})
			return
		}
		if !valid {
			// 不一致の原因を切り分ける: セッション自体が無効なら未認証として扱う
			session, err := g.svc.GetSession(c.Request.Context(), sessionToken)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":    "INTERNAL_ERROR",
					"message": "サーバー内部でエラーが発生しました。",
				})
				return
			}
			if session == nil {
				respondUnauthenticated(c)
				return
			}
			g.logger.Printf("invalid csrf token for %s %s", c.Request.Method, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "CSRF_INVALID",
				"message": "CSRF トークンが一致しません",
			})
			return
		}

		if g.refererCheck && !g.refererAllowed(c) {
			g.logger.Printf("referer rejected for %s %s", c.Request.Method, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "CSRF_REFERER_REJECTED",
				"message": "Referer が許可されていません",
			})
			return
		}

		c.Next()
	}
}

// requiresProtection は検証対象のリクエストかどうかを判定します。
// 対象は非免除パスへの状態変更メソッドで、かつセッションクッキーを
// 提示している場合のみです（未認証の呼び出し側には偽造すべきものがまだ無い）。
func (g *CSRFGuard) requiresProtection(c *gin.Context) bool {
	if isSafeMethod(c.Request.Method) {
		return false
	}

	path := c.Request.URL.Path
	for _, exempt := range csrfExemptPaths {
		if strings.HasPrefix(path, exempt) {
			return false
		}
	}

	token, err := c.Cookie(SessionCookieName)
	return err == nil && token != ""
}

// presentedToken はヘッダー → フォーム → クッキーの優先順でトークンを取り出します。
func (g *CSRFGuard) presentedToken(c *gin.Context) string {
	if token := c.GetHeader(csrfHeader); token != "" {
		return token
	}
	if strings.Contains(c.ContentType(), "application/x-www-form-urlencoded") {
		if token := c.PostForm(csrfFormField); token != "" {
			return token
		}
	}
	if token, err := c.Cookie(CSRFCookieName); err == nil {
		return token
	}
	return ""
}

func (g *CSRFGuard) refererAllowed(c *gin.Context) bool {
	referer := c.GetHeader("Referer")
	if referer == "" {
		return false
	}
	u, err := url.Parse(referer)
	if err != nil {
		return false
	}
	_, ok := g.allowedHosts[u.Hostname()]
	return ok
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
