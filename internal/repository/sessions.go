package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/yourusername/report-card/internal/models"
)

// SessionRepository はセッションテーブルへのアクセスを提供します。
// 有効期限の判定はここでは行わず、呼び出し側（auth.Service）が常に
// expires_at と現在時刻を比較します。
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository は SessionRepository を作成します。
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Insert はセッションレコードを保存します。
func (r *SessionRepository) Insert(ctx context.Context, s *models.Session) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO user_sessions (token, user_id, expires_at, csrf_token, user_agent, ip_address)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, s.Token, s.UserID, s.ExpiresAt, s.CSRFToken, nullable(s.UserAgent), nullable(s.IPAddress))
	return err
}

// Get はトークンでセッションを検索します。見つからない場合は nil を返します。
// 期限切れのレコードもそのまま返します。
func (r *SessionRepository) Get(ctx context.Context, token string) (*models.Session, error) {
	var (
		s         models.Session
		userAgent sql.NullString
		ipAddress sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
        SELECT token, user_id, expires_at, csrf_token, user_agent, ip_address, created_at
        FROM user_sessions
        WHERE token = $1
    `, token).Scan(&s.Token, &s.UserID, &s.ExpiresAt, &s.CSRFToken, &userAgent, &ipAddress, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.UserAgent = userAgent.String
	s.IPAddress = ipAddress.String
	return &s, nil
}

// UpdateExpiry はセッションの有効期限を更新します。
func (r *SessionRepository) UpdateExpiry(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE user_sessions SET expires_at = $2 WHERE token = $1
    `, token, expiresAt)
	return err
}

// Delete はセッションを削除します。レコードが存在した場合のみ true を返します。
func (r *SessionRepository) Delete(ctx context.Context, token string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE token = $1`, token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteAllForUser は指定ユーザーの全セッションを削除し、件数を返します。
func (r *SessionRepository) DeleteAllForUser(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpired は now より前に期限切れとなった全セッションを削除し、件数を返します。
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
