package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"vorbereitung/api/internal/config"
	"vorbereitung/api/internal/models"
	"vorbereitung/api/internal/repository"
	"vorbereitung/api/internal/security"
)

// stubUserStore keeps users in a map keyed by lowercase email.
type stubUserStore struct {
	byEmail map[string]models.User
	created []models.User
}

func newStubUserStore(users ...models.User) *stubUserStore {
	s := &stubUserStore{byEmail: make(map[string]models.User)}
	for _, u := range users {
		s.byEmail[u.Email] = u
	}
	return s
}

func (s *stubUserStore) Create(_ context.Context, user models.User) error {
	if _, ok := s.byEmail[user.Email]; ok {
		return repository.ErrEmailTaken
	}
	s.byEmail[user.Email] = user
	s.created = append(s.created, user)
	return nil
}

func (s *stubUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	u, ok := s.byEmail[email]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (s *stubUserStore) GetByID(_ context.Context, id string) (models.User, error) {
	for _, u := range s.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (s *stubUserStore) Update(_ context.Context, id string, upd repository.UserUpdate) error {
	for email, u := range s.byEmail {
		if u.ID != id {
			continue
		}
		if upd.Name != nil {
			u.Name = *upd.Name
		}
		if upd.Surname != nil {
			u.Surname = *upd.Surname
		}
		if upd.Phone != nil {
			u.Phone = upd.Phone
		}
		if upd.IsActive != nil {
			u.IsActive = *upd.IsActive
		}
		if upd.AccessB1 != nil {
			u.AccessB1 = *upd.AccessB1
		}
		if upd.AccessB2 != nil {
			u.AccessB2 = *upd.AccessB2
		}
		if upd.DeviceLimit != nil {
			u.DeviceLimit = *upd.DeviceLimit
		}
		if upd.Email != nil {
			delete(s.byEmail, email)
			u.Email = *upd.Email
		}
		s.byEmail[u.Email] = u
		return nil
	}
	return repository.ErrUserNotFound
}

func (s *stubUserStore) UpdatePassword(_ context.Context, id string, hash []byte) error {
	for email, u := range s.byEmail {
		if u.ID == id {
			u.PasswordHash = hash
			s.byEmail[email] = u
			return nil
		}
	}
	return repository.ErrUserNotFound
}

func (s *stubUserStore) Delete(_ context.Context, id string) error {
	for email, u := range s.byEmail {
		if u.ID == id {
			delete(s.byEmail, email)
			return nil
		}
	}
	return repository.ErrUserNotFound
}

// stubSessionStore records sessions in memory.
type stubSessionStore struct {
	sessions  []models.Session
	destroyed []string
}

func (s *stubSessionStore) Create(_ context.Context, session models.Session) error {
	s.sessions = append(s.sessions, session)
	return nil
}

func (s *stubSessionStore) FindByToken(_ context.Context, token string) (models.Session, error) {
	for _, sess := range s.sessions {
		if sess.Token == token {
			return sess, nil
		}
	}
	return models.Session{}, repository.ErrSessionNotFound
}

func (s *stubSessionStore) Destroy(_ context.Context, token string) error {
	s.destroyed = append(s.destroyed, token)
	for i, sess := range s.sessions {
		if sess.Token == token {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			break
		}
	}
	return nil
}

func (s *stubSessionStore) DestroyAll(_ context.Context, userID string) error {
	kept := s.sessions[:0]
	for _, sess := range s.sessions {
		if sess.UserID != userID {
			kept = append(kept, sess)
		}
	}
	s.sessions = kept
	return nil
}

func (s *stubSessionStore) CountDistinctDevices(_ context.Context, userID string) (int, error) {
	seen := make(map[string]struct{})
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			seen[sess.DeviceFingerprint] = struct{}{}
		}
	}
	return len(seen), nil
}

func (s *stubSessionStore) DeviceFingerprintExists(_ context.Context, userID, fingerprint string) (bool, error) {
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.DeviceFingerprint == fingerprint {
			return true, nil
		}
	}
	return false, nil
}

// stubLimiter is a fixed-window limiter without the clock.
type stubLimiter struct {
	max    int
	counts map[string]int
	err    error
}

func newStubLimiter(max int) *stubLimiter {
	return &stubLimiter{max: max, counts: make(map[string]int)}
}

func (l *stubLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.counts[key]++
	return l.counts[key] <= l.max, nil
}

func (l *stubLimiter) Reset(_ context.Context, key string) error {
	delete(l.counts, key)
	return nil
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Environment: "test",
		Auth: config.AuthConfig{
			BcryptCost:       bcrypt.MinCost,
			MinPasswordLen:   8,
			MaxLoginAttempts: 5,
		},
	}
}

func mustHash(t *testing.T, password string) []byte {
	t.Helper()
	hash, err := security.HashPassword(password, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func activeUser(t *testing.T, email string, deviceLimit int) models.User {
	t.Helper()
	return models.User{
		ID:           "user-" + email,
		Name:         "Mina",
		Surname:      "Tester",
		Email:        email,
		PasswordHash: mustHash(t, "correct horse"),
		Role:         models.UserRoleUser,
		IsActive:     true,
		AccessB1:     true,
		DeviceLimit:  deviceLimit,
	}
}

func newAuthService(users *stubUserStore, sessions *stubSessionStore, limiter LoginLimiter) *AuthService {
	return NewAuthService(users, sessions, limiter, testConfig(), zerolog.Nop())
}

func TestLoginSucceedsAndIssuesSession(t *testing.T) {
	users := newStubUserStore(activeUser(t, "mina@example.com", 1))
	sessions := &stubSessionStore{}
	svc := newAuthService(users, sessions, newStubLimiter(5))

	result, err := svc.Login(context.Background(), LoginInput{
		Email:     "Mina@Example.com",
		Password:  "correct horse",
		IPAddress: "10.0.0.1",
		UserAgent: "test-agent",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if len(result.Token) != 64 {
		t.Fatalf("token length = %d, want 64 hex chars", len(result.Token))
	}
	if result.User.Email != "mina@example.com" {
		t.Errorf("user email = %q", result.User.Email)
	}
	if len(sessions.sessions) != 1 {
		t.Fatalf("sessions stored = %d, want 1", len(sessions.sessions))
	}
	want := security.DeviceFingerprint("10.0.0.1", "test-agent")
	if sessions.sessions[0].DeviceFingerprint != want {
		t.Errorf("fingerprint mismatch")
	}
}

func TestLoginBadPasswordAndUnknownEmailLookAlike(t *testing.T) {
	users := newStubUserStore(activeUser(t, "mina@example.com", 1))
	svc := newAuthService(users, &stubSessionStore{}, newStubLimiter(5))

	_, errWrongPass := svc.Login(context.Background(), LoginInput{
		Email: "mina@example.com", Password: "nope", IPAddress: "1.2.3.4",
	})
	_, errNoUser := svc.Login(context.Background(), LoginInput{
		Email: "ghost@example.com", Password: "nope", IPAddress: "1.2.3.4",
	})

	if !errors.Is(errWrongPass, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v", errWrongPass)
	}
	if !errors.Is(errNoUser, ErrInvalidCredentials) {
		t.Errorf("unknown email error = %v", errNoUser)
	}
}

func TestLoginPendingAccountRejected(t *testing.T) {
	pending := activeUser(t, "pending@example.com", 1)
	pending.IsActive = false
	svc := newAuthService(newStubUserStore(pending), &stubSessionStore{}, newStubLimiter(5))

	_, err := svc.Login(context.Background(), LoginInput{
		Email: "pending@example.com", Password: "correct horse", IPAddress: "1.2.3.4",
	})
	if !errors.Is(err, ErrPendingApproval) {
		t.Fatalf("error = %v, want ErrPendingApproval", err)
	}
}

func TestLoginRateLimitAfterMaxAttempts(t *testing.T) {
	users := newStubUserStore(activeUser(t, "mina@example.com", 1))
	limiter := newStubLimiter(5)
	svc := newAuthService(users, &stubSessionStore{}, limiter)

	input := LoginInput{Email: "mina@example.com", Password: "nope", IPAddress: "9.9.9.9"}
	for i := 0; i < 5; i++ {
		if _, err := svc.Login(context.Background(), input); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d error = %v, want ErrInvalidCredentials", i+1, err)
		}
	}

	// Sixth attempt is blocked before credentials are even checked.
	input.Password = "correct horse"
	if _, err := svc.Login(context.Background(), input); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}

	// A different IP is unaffected.
	other := input
	other.IPAddress = "8.8.8.8"
	if _, err := svc.Login(context.Background(), other); err != nil {
		t.Fatalf("login from fresh ip failed: %v", err)
	}
}

func TestLoginResetsLimiterOnSuccess(t *testing.T) {
	users := newStubUserStore(activeUser(t, "mina@example.com", 1))
	limiter := newStubLimiter(5)
	svc := newAuthService(users, &stubSessionStore{}, limiter)

	bad := LoginInput{Email: "mina@example.com", Password: "nope", IPAddress: "9.9.9.9"}
	for i := 0; i < 4; i++ {
		_, _ = svc.Login(context.Background(), bad)
	}

	good := bad
	good.Password = "correct horse"
	if _, err := svc.Login(context.Background(), good); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if limiter.counts["9.9.9.9"] != 0 {
		t.Errorf("counter after success = %d, want 0", limiter.counts["9.9.9.9"])
	}
}

func TestLoginFailsOpenWhenLimiterUnavailable(t *testing.T) {
	users := newStubUserStore(activeUser(t, "mina@example.com", 1))
	limiter := newStubLimiter(5)
	limiter.err = errors.New("redis down")
	svc := newAuthService(users, &stubSessionStore{}, limiter)

	_, err := svc.Login(context.Background(), LoginInput{
		Email: "mina@example.com", Password: "correct horse", IPAddress: "1.2.3.4",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
}

func TestLoginDeviceLimitBlocksNewDevice(t *testing.T) {
	user := activeUser(t, "mina@example.com", 1)
	users := newStubUserStore(user)
	sessions := &stubSessionStore{}
	svc := newAuthService(users, sessions, newStubLimiter(100))

	first := LoginInput{
		Email: "mina@example.com", Password: "correct horse",
		IPAddress: "10.0.0.1", UserAgent: "laptop",
	}
	if _, err := svc.Login(context.Background(), first); err != nil {
		t.Fatalf("first login failed: %v", err)
	}

	// Second device pushes past the limit of one.
	second := first
	second.UserAgent = "phone"
	if _, err := svc.Login(context.Background(), second); !errors.Is(err, ErrDeviceLimitExceeded) {
		t.Fatalf("error = %v, want ErrDeviceLimitExceeded", err)
	}
}

func TestLoginKnownDeviceBypassesLimit(t *testing.T) {
	user := activeUser(t, "mina@example.com", 1)
	users := newStubUserStore(user)
	sessions := &stubSessionStore{}
	svc := newAuthService(users, sessions, newStubLimiter(100))

	input := LoginInput{
		Email: "mina@example.com", Password: "correct horse",
		IPAddress: "10.0.0.1", UserAgent: "laptop",
	}
	if _, err := svc.Login(context.Background(), input); err != nil {
		t.Fatalf("first login failed: %v", err)
	}

	// Same device again: the fingerprint is already counted, so the login
	// succeeds even though the account sits at its limit.
	if _, err := svc.Login(context.Background(), input); err != nil {
		t.Fatalf("repeat login failed: %v", err)
	}
	if len(sessions.sessions) != 2 {
		t.Errorf("sessions = %d, want 2", len(sessions.sessions))
	}
}

func TestLoginDeviceSlotFreedAfterLogout(t *testing.T) {
	user := activeUser(t, "mina@example.com", 1)
	users := newStubUserStore(user)
	sessions := &stubSessionStore{}
	svc := newAuthService(users, sessions, newStubLimiter(100))

	laptop := LoginInput{
		Email: "mina@example.com", Password: "correct horse",
		IPAddress: "10.0.0.1", UserAgent: "laptop",
	}
	result, err := svc.Login(context.Background(), laptop)
	if err != nil {
		t.Fatalf("laptop login failed: %v", err)
	}

	phone := laptop
	phone.UserAgent = "phone"
	if _, err := svc.Login(context.Background(), phone); !errors.Is(err, ErrDeviceLimitExceeded) {
		t.Fatalf("phone login error = %v, want ErrDeviceLimitExceeded", err)
	}

	if err := svc.Logout(context.Background(), result.Token); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	if _, err := svc.Login(context.Background(), phone); err != nil {
		t.Fatalf("phone login after logout failed: %v", err)
	}
}

func TestAdminLoginSkipsDeviceLimit(t *testing.T) {
	admin := activeUser(t, "admin@example.com", 1)
	admin.Role = models.UserRoleAdmin
	users := newStubUserStore(admin)
	sessions := &stubSessionStore{}
	svc := newAuthService(users, sessions, newStubLimiter(100))

	input := LoginInput{
		Email: "admin@example.com", Password: "correct horse",
		IPAddress: "10.0.0.1", UserAgent: "laptop",
	}
	if _, err := svc.AdminLogin(context.Background(), input); err != nil {
		t.Fatalf("admin login failed: %v", err)
	}

	input.UserAgent = "phone"
	if _, err := svc.AdminLogin(context.Background(), input); err != nil {
		t.Fatalf("admin login from second device failed: %v", err)
	}
}

func TestAdminLoginRejectsRegularUser(t *testing.T) {
	user := activeUser(t, "mina@example.com", 1)
	svc := newAuthService(newStubUserStore(user), &stubSessionStore{}, newStubLimiter(100))

	_, err := svc.AdminLogin(context.Background(), LoginInput{
		Email: "mina@example.com", Password: "correct horse", IPAddress: "1.2.3.4",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("error = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterCreatesPendingAccount(t *testing.T) {
	users := newStubUserStore()
	svc := newAuthService(users, &stubSessionStore{}, newStubLimiter(100))

	public, err := svc.Register(context.Background(), RegisterInput{
		Name:     " Mina ",
		Surname:  "Tester",
		Email:    "  New@Example.COM ",
		Password: "long enough secret",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if public.Email != "new@example.com" {
		t.Errorf("email = %q, want lowercase trimmed", public.Email)
	}
	if public.Name != "Mina" {
		t.Errorf("name = %q, want trimmed", public.Name)
	}

	stored := users.created[0]
	if stored.IsActive {
		t.Error("new account must start inactive")
	}
	if stored.AccessB1 || stored.AccessB2 {
		t.Error("new account must start without level access")
	}
	if stored.DeviceLimit != 1 {
		t.Errorf("device limit = %d, want 1", stored.DeviceLimit)
	}
	if !security.VerifyPassword("long enough secret", stored.PasswordHash) {
		t.Error("stored hash does not verify")
	}
}

func TestRegisterDuplicateEmailCaseInsensitive(t *testing.T) {
	users := newStubUserStore(activeUser(t, "mina@example.com", 1))
	svc := newAuthService(users, &stubSessionStore{}, newStubLimiter(100))

	_, err := svc.Register(context.Background(), RegisterInput{
		Name: "Other", Surname: "Person", Email: "MINA@example.com", Password: "another secret",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("error = %v, want ErrEmailTaken", err)
	}
}

func TestLogoutWithEmptyTokenIsNoop(t *testing.T) {
	sessions := &stubSessionStore{}
	svc := newAuthService(newStubUserStore(), sessions, newStubLimiter(100))

	if err := svc.Logout(context.Background(), ""); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if len(sessions.destroyed) != 0 {
		t.Error("empty token must not reach the store")
	}
}
