package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/report-card/internal/models"
)

type fakeUserStore struct {
	users map[int64]*models.User
}

func (s *fakeUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (s *fakeUserStore) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return s.users[id], nil
}

type fakeSessionStore struct {
	sessions map[string]*models.Session
	failNext error
}

func (s *fakeSessionStore) Insert(ctx context.Context, session *models.Session) error {
	if err := s.takeErr(); err != nil {
		return err
	}
	clone := *session
	s.sessions[session.Token] = &clone
	return nil
}

func (s *fakeSessionStore) Get(ctx context.Context, token string) (*models.Session, error) {
	if err := s.takeErr(); err != nil {
		return nil, err
	}
	session, ok := s.sessions[token]
	if !ok {
		return nil, nil
	}
	clone := *session
	return &clone, nil
}

func (s *fakeSessionStore) UpdateExpiry(ctx context.Context, token string, expiresAt time.Time) error {
	if err := s.takeErr(); err != nil {
		return err
	}
	if session, ok := s.sessions[token]; ok {
		session.ExpiresAt = expiresAt
	}
	return nil
}

func (s *fakeSessionStore) Delete(ctx context.Context, token string) (bool, error) {
	if err := s.takeErr(); err != nil {
		return false, err
	}
	if _, ok := s.sessions[token]; !ok {
		return false, nil
	}
	delete(s.sessions, token)
	return true, nil
}

func (s *fakeSessionStore) DeleteAllForUser(ctx context.Context, userID int64) (int64, error) {
	if err := s.takeErr(); err != nil {
		return 0, err
	}
	var count int64
	for token, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, token)
			count++
		}
	}
	return count, nil
}

func (s *fakeSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := s.takeErr(); err != nil {
		return 0, err
	}
	var count int64
	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, token)
			count++
		}
	}
	return count, nil
}

func (s *fakeSessionStore) takeErr() error {
	err := s.failNext
	s.failNext = nil
	return err
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return string(hash)
}

func newTestService(t *testing.T) (*Service, *fakeUserStore, *fakeSessionStore) {
	t.Helper()
	users := &fakeUserStore{users: map[int64]*models.User{
		1: {
			ID:             1,
			Email:          "teacher@example.com",
			HashedPassword: hashPassword(t, "correct-password"),
			Role:           models.RoleFormTeacher,
			SchoolID:       1,
		},
	}}
	sessions := &fakeSessionStore{sessions: map[string]*models.Session{}}
	return NewService(users, sessions, 30*time.Minute), users, sessions
}

func TestAuthenticateSuccess(t *testing.T) {
	svc, _, _ := newTestService(t)

	user, err := svc.Authenticate(context.Background(), "teacher@example.com", "correct-password")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if user == nil || user.ID != 1 {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestAuthenticateFailuresIndistinguishable(t *testing.T) {
	svc, _, _ := newTestService(t)

	// 未知のメールアドレスとパスワード不一致はどちらも (nil, nil)
	unknown, err := svc.Authenticate(context.Background(), "nobody@example.com", "whatever")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	wrongPass, err := svc.Authenticate(context.Background(), "teacher@example.com", "wrong")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if unknown != nil || wrongPass != nil {
		t.Fatalf("expected nil for both failures: %v %v", unknown, wrongPass)
	}
}

func TestCreateSessionIndependentTokens(t *testing.T) {
	svc, users, _ := newTestService(t)

	session, err := svc.CreateSession(context.Background(), users.users[1], ClientMeta{
		UserAgent: "test-agent",
		IPAddress: "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	if session.Token == "" || session.CSRFToken == "" {
		t.Fatal("expected both tokens to be set")
	}
	if session.Token == session.CSRFToken {
		t.Fatal("session and CSRF tokens must be independent")
	}
	if session.UserAgent != "test-agent" || session.IPAddress != "10.0.0.1" {
		t.Fatalf("client meta not recorded: %+v", session)
	}
}

func TestGetSessionExpiredIsDeletedOnRead(t *testing.T) {
	svc, users, sessions := newTestService(t)

	session, err := svc.CreateSession(context.Background(), users.users[1], ClientMeta{})
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	// 時計を TTL より先へ進める
	svc.now = func() time.Time { return time.Now().Add(31 * time.Minute) }

	got, err := svc.GetSession(context.Background(), session.Token)
	if err != nil {
		t.Fatalf("GetSession returned error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected expired session to be invalid, got %+v", got)
	}
	if _, still := sessions.sessions[session.Token]; still {
		t.Fatal("expired session should be deleted on read")
	}
}

func TestExtendSessionSlidesExpiry(t *testing.T) {
	svc, users, sessions := newTestService(t)

	session, err := svc.CreateSession(context.Background(), users.users[1], ClientMeta{})
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	originalExpiry := sessions.sessions[session.Token].ExpiresAt

	svc.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	if err := svc.ExtendSession(context.Background(), session.Token); err != nil {
		t.Fatalf("ExtendSession returned error: %v", err)
	}

	extended := sessions.sessions[session.Token].ExpiresAt
	if !extended.After(originalExpiry) {
		t.Fatalf("expiry did not slide forward: %v -> %v", originalExpiry, extended)
	}
}

func TestExtendSessionUnknownTokenIsNoop(t *testing.T) {
	svc, _, _ := newTestService(t)

	if err := svc.ExtendSession(context.Background(), "unknown-token"); err != nil {
		t.Fatalf("expected no error for unknown token, got %v", err)
	}
}

func TestGetSessionWithUserPurgesOrphan(t *testing.T) {
	svc, users, sessions := newTestService(t)

	session, err := svc.CreateSession(context.Background(), users.users[1], ClientMeta{})
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	// ユーザーを消して孤児セッションにする
	delete(users.users, 1)

	gotSession, gotUser, err := svc.GetSessionWithUser(context.Background(), session.Token)
	if err != nil {
		t.Fatalf("GetSessionWithUser returned error: %v", err)
	}
	if gotSession != nil || gotUser != nil {
		t.Fatal("expected orphan session to resolve to nothing")
	}
	if _, still := sessions.sessions[session.Token]; still {
		t.Fatal("orphan session should be purged")
	}
}

func TestDeleteUserSessionsCountsAll(t *testing.T) {
	svc, users, _ := newTestService(t)

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateSession(context.Background(), users.users[1], ClientMeta{}); err != nil {
			t.Fatalf("CreateSession returned error: %v", err)
		}
	}

	count, err := svc.DeleteUserSessions(context.Background(), 1)
	if err != nil {
		t.Fatalf("DeleteUserSessions returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("unexpected revoked count: %d", count)
	}
}

func TestCleanupExpiredSessions(t *testing.T) {
	svc, users, sessions := newTestService(t)

	live, err := svc.CreateSession(context.Background(), users.users[1], ClientMeta{})
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	expired, err := svc.CreateSession(context.Background(), users.users[1], ClientMeta{})
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	sessions.sessions[expired.Token].ExpiresAt = time.Now().Add(-time.Minute)

	count, err := svc.CleanupExpiredSessions(context.Background())
	if err != nil {
		t.Fatalf("CleanupExpiredSessions returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("unexpected deleted count: %d", count)
	}
	if _, ok := sessions.sessions[live.Token]; !ok {
		t.Fatal("live session must survive the sweep")
	}
}

func TestValidateCSRFToken(t *testing.T) {
	svc, users, _ := newTestService(t)

	session, err := svc.CreateSession(context.Background(), users.users[1], ClientMeta{})
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	ok, err := svc.ValidateCSRFToken(context.Background(), session.Token, session.CSRFToken)
	if err != nil || !ok {
		t.Fatalf("expected valid token to match: ok=%v err=%v", ok, err)
	}

	ok, err = svc.ValidateCSRFToken(context.Background(), session.Token, "forged")
	if err != nil || ok {
		t.Fatalf("expected forged token to fail: ok=%v err=%v", ok, err)
	}

	ok, err = svc.ValidateCSRFToken(context.Background(), "unknown", session.CSRFToken)
	if err != nil || ok {
		t.Fatalf("expected unknown session to fail: ok=%v err=%v", ok, err)
	}
}

func TestGetSessionStoreFailurePropagates(t *testing.T) {
	svc, _, sessions := newTestService(t)
	sessions.failNext = errors.New("db down")

	if _, err := svc.GetSession(context.Background(), "any"); err == nil {
		t.Fatal("expected store failure to propagate")
	}
}
