package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"vorbereitung/api/internal/config"
	"vorbereitung/api/internal/ids"
	"vorbereitung/api/internal/models"
	"vorbereitung/api/internal/repository"
	"vorbereitung/api/internal/security"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password;
	// callers must not be able to tell which.
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrPendingApproval     = errors.New("account pending approval")
	ErrDeviceLimitExceeded = errors.New("device limit exceeded")
	ErrRateLimited         = errors.New("too many login attempts")
	ErrEmailTaken          = repository.ErrEmailTaken
)

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	Update(ctx context.Context, id string, upd repository.UserUpdate) error
	UpdatePassword(ctx context.Context, id string, hash []byte) error
	Delete(ctx context.Context, id string) error
}

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	FindByToken(ctx context.Context, token string) (models.Session, error)
	Destroy(ctx context.Context, token string) error
	DestroyAll(ctx context.Context, userID string) error
	CountDistinctDevices(ctx context.Context, userID string) (int, error)
	DeviceFingerprintExists(ctx context.Context, userID, fingerprint string) (bool, error)
}

// LoginLimiter throttles login attempts per client IP. It is best effort:
// when the backend is unavailable the workflow fails open.
type LoginLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

type AuthService struct {
	users    UserStore
	sessions SessionStore
	limiter  LoginLimiter
	cfg      *config.AppConfig
	log      zerolog.Logger
}

func NewAuthService(users UserStore, sessions SessionStore, limiter LoginLimiter, cfg *config.AppConfig, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		limiter:  limiter,
		cfg:      cfg,
		log:      log,
	}
}

// PublicUser is the projection handed to clients. The password hash never
// crosses this boundary.
type PublicUser struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Surname  string          `json:"surname"`
	Email    string          `json:"email"`
	Phone    *string         `json:"phone,omitempty"`
	Role     models.UserRole `json:"role"`
	AccessB1 bool            `json:"access_b1"`
	AccessB2 bool            `json:"access_b2"`
}

func Project(user models.User) PublicUser {
	return PublicUser{
		ID:       user.ID,
		Name:     user.Name,
		Surname:  user.Surname,
		Email:    user.Email,
		Phone:    user.Phone,
		Role:     user.Role,
		AccessB1: user.AccessB1,
		AccessB2: user.AccessB2,
	}
}

type RegisterInput struct {
	Name     string
	Surname  string
	Email    string
	Password string
	Phone    string
}

// Register creates a pending account. Activation, access flags and the
// device limit are an administrator's call.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (PublicUser, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return PublicUser{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return PublicUser{}, err
	}

	hash, err := security.HashPassword(input.Password, s.cfg.Auth.BcryptCost)
	if err != nil {
		return PublicUser{}, err
	}

	user := models.User{
		ID:           ids.New(),
		Name:         strings.TrimSpace(input.Name),
		Surname:      strings.TrimSpace(input.Surname),
		Email:        email,
		PasswordHash: hash,
		Role:         models.UserRoleUser,
		IsActive:     false,
		DeviceLimit:  1,
	}
	if phone := strings.TrimSpace(input.Phone); phone != "" {
		user.Phone = &phone
	}

	// The unique index settles concurrent duplicate registrations; the
	// pre-check above only gives the common case a cleaner path.
	if err := s.users.Create(ctx, user); err != nil {
		return PublicUser{}, err
	}

	s.log.Info().Str("user_id", user.ID).Msg("user registered, pending approval")
	return Project(user), nil
}

type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

type LoginResult struct {
	Token string
	User  PublicUser
}

// Login runs the full workflow: rate limit, credentials, active flag,
// device limit, session issue. Reason codes are sentinel errors; the
// handler maps them to generic client messages.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	if allowed, err := s.limiter.Allow(ctx, input.IPAddress); err != nil {
		s.log.Warn().Err(err).Msg("login rate limiter unavailable, failing open")
	} else if !allowed {
		return LoginResult{}, ErrRateLimited
	}

	user, err := s.verifyCredentials(ctx, input.Email, input.Password)
	if err != nil {
		return LoginResult{}, err
	}

	if !user.IsActive {
		return LoginResult{}, ErrPendingApproval
	}

	fingerprint := security.DeviceFingerprint(input.IPAddress, input.UserAgent)
	known, err := s.sessions.DeviceFingerprintExists(ctx, user.ID, fingerprint)
	if err != nil {
		return LoginResult{}, err
	}
	if !known {
		// Two near-simultaneous logins from new devices can both pass this
		// check; the overshoot is one device and self-corrects on cleanup.
		count, err := s.sessions.CountDistinctDevices(ctx, user.ID)
		if err != nil {
			return LoginResult{}, err
		}
		if DeviceLimitExceeded(count, user.DeviceLimit) {
			return LoginResult{}, ErrDeviceLimitExceeded
		}
	}

	token, err := s.issueSession(ctx, user, fingerprint, input.IPAddress, input.UserAgent)
	if err != nil {
		return LoginResult{}, err
	}

	if err := s.limiter.Reset(ctx, input.IPAddress); err != nil {
		s.log.Warn().Err(err).Msg("rate limit reset failed")
	}

	s.log.Info().Str("user_id", user.ID).Str("fingerprint", fingerprint).Msg("login succeeded")
	return LoginResult{Token: token, User: Project(user)}, nil
}

// AdminLogin authenticates an administrator. It stays reachable during
// maintenance and skips the device limit, so a locked-out admin can always
// get back in to turn maintenance off.
func (s *AuthService) AdminLogin(ctx context.Context, input LoginInput) (LoginResult, error) {
	if allowed, err := s.limiter.Allow(ctx, input.IPAddress); err != nil {
		s.log.Warn().Err(err).Msg("login rate limiter unavailable, failing open")
	} else if !allowed {
		return LoginResult{}, ErrRateLimited
	}

	user, err := s.verifyCredentials(ctx, input.Email, input.Password)
	if err != nil {
		return LoginResult{}, err
	}
	if user.Role != models.UserRoleAdmin {
		return LoginResult{}, ErrInvalidCredentials
	}

	fingerprint := security.DeviceFingerprint(input.IPAddress, input.UserAgent)
	token, err := s.issueSession(ctx, user, fingerprint, input.IPAddress, input.UserAgent)
	if err != nil {
		return LoginResult{}, err
	}

	if err := s.limiter.Reset(ctx, input.IPAddress); err != nil {
		s.log.Warn().Err(err).Msg("rate limit reset failed")
	}

	s.log.Info().Str("user_id", user.ID).Msg("admin login succeeded")
	return LoginResult{Token: token, User: Project(user)}, nil
}

// Logout destroys one session. Destroying an already-gone token is fine.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Destroy(ctx, token)
}

func (s *AuthService) verifyCredentials(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}
	if !security.VerifyPassword(password, user.PasswordHash) {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) issueSession(ctx context.Context, user models.User, fingerprint, ip, userAgent string) (string, error) {
	token, err := security.GenerateSessionToken()
	if err != nil {
		return "", err
	}

	session := models.Session{
		Token:             token,
		UserID:            user.ID,
		DeviceFingerprint: fingerprint,
		IPAddress:         ip,
		UserAgent:         userAgent,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", err
	}
	return token, nil
}
