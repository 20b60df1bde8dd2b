// Package auth はセッションベースの認証・CSRF保護を提供します。
package auth

import (
	"context"
	"crypto/subtle"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/report-card/internal/models"
)

// UserStore はユーザーの検索ができるストアが実装します。
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// SessionStore はセッションレコードの永続化ができるストアが実装します。
// Get は期限切れのレコードもそのまま返し、有効性の判定は Service が行います。
type SessionStore interface {
	Insert(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, token string) (*models.Session, error)
	UpdateExpiry(ctx context.Context, token string, expiresAt time.Time) error
	Delete(ctx context.Context, token string) (bool, error)
	DeleteAllForUser(ctx context.Context, userID int64) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ClientMeta はセッション作成時に記録するクライアント情報です。
type ClientMeta struct {
	UserAgent string
	IPAddress string
}

// Service は認証とセッション管理をまとめた構造体です。
type Service struct {
	users    UserStore
	sessions SessionStore
	ttl      time.Duration
	now      func() time.Time
}

// NewService は認証サービスを作成します。
func NewService(users UserStore, sessions SessionStore, ttl time.Duration) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Authenticate はメールアドレスとパスワードでユーザーを認証します。
// ユーザーが存在しない場合もパスワード不一致の場合も、区別せず nil を返します。
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) != nil {
		return nil, nil
	}
	return user, nil
}

// CreateSession はユーザーの新しいセッションを作成します。
// セッショントークンと CSRF トークンは互いに独立なランダム値です。
func (s *Service) CreateSession(ctx context.Context, user *models.User, meta ClientMeta) (*models.Session, error) {
	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}
	csrfToken, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &models.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.ttl),
		CSRFToken: csrfToken,
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		CreatedAt: now,
	}

	if err := s.sessions.Insert(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession はトークンで有効なセッションを検索します。
// 不明なトークンと期限切れはどちらも nil を返し、期限切れのレコードは
// 読み取りの副作用としてその場で削除します。
func (s *Service) GetSession(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, nil
	}
	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	if s.now().After(session.ExpiresAt) {
		if _, err := s.sessions.Delete(ctx, token); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return session, nil
}

// GetSessionWithUser は有効なセッションと所有ユーザーを返します。
// ユーザーが既に存在しない孤児セッションは削除し、nil を返します。
func (s *Service) GetSessionWithUser(ctx context.Context, token string) (*models.Session, *models.User, error) {
	session, err := s.GetSession(ctx, token)
	if err != nil || session == nil {
		return nil, nil, err
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		if _, err := s.sessions.Delete(ctx, token); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}
	return session, user, nil
}

// ExtendSession は有効なセッションの期限を now + TTL に更新します（スライディングウィンドウ）。
// 無効なトークンに対しては何もしません。
func (s *Service) ExtendSession(ctx context.Context, token string) error {
	session, err := s.GetSession(ctx, token)
	if err != nil || session == nil {
		return err
	}
	return s.sessions.UpdateExpiry(ctx, token, s.now().Add(s.ttl))
}

// DeleteSession はセッションを削除します。冪等で、レコードが存在した場合のみ true を返します。
func (s *Service) DeleteSession(ctx context.Context, token string) (bool, error) {
	return s.sessions.Delete(ctx, token)
}

// DeleteUserSessions は指定ユーザーの全セッションを削除し、件数を返します（全端末ログアウト）。
func (s *Service) DeleteUserSessions(ctx context.Context, userID int64) (int64, error) {
	return s.sessions.DeleteAllForUser(ctx, userID)
}

// CleanupExpiredSessions は期限切れの全セッションを削除し、件数を返します。
func (s *Service) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.now())
}

// ValidateCSRFToken はセッションに保存された CSRF トークンと提示された値を比較します。
// セッションが無効な場合は常に false です。
func (s *Service) ValidateCSRFToken(ctx context.Context, sessionToken, csrfToken string) (bool, error) {
	session, err := s.GetSession(ctx, sessionToken)
	if err != nil {
		return false, err
	}
	if session == nil {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(session.CSRFToken), []byte(csrfToken)) == 1, nil
}
