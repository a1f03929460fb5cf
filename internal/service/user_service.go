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

var ErrWrongPassword = errors.New("current password is incorrect")

type QuizResultStore interface {
	DeleteByUser(ctx context.Context, userID string) error
}

// UserService handles profile self-service and the admin account
// operations that go beyond a single repository call.
type UserService struct {
	users    UserStore
	sessions SessionStore
	results  QuizResultStore
	cfg      *config.AppConfig
	log      zerolog.Logger
}

func NewUserService(users UserStore, sessions SessionStore, results QuizResultStore, cfg *config.AppConfig, log zerolog.Logger) *UserService {
	return &UserService{
		users:    users,
		sessions: sessions,
		results:  results,
		cfg:      cfg,
		log:      log,
	}
}

type ProfileUpdate struct {
	Name    *string
	Surname *string
	Email   *string
	Phone   *string
}

// UpdateProfile applies a whitelisted partial update. Passwords never go
// through this path.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input ProfileUpdate) (PublicUser, error) {
	upd := repository.UserUpdate{
		Name:    trimmed(input.Name),
		Surname: trimmed(input.Surname),
		Phone:   trimmed(input.Phone),
	}
	if input.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*input.Email))
		if other, err := s.users.FindByEmail(ctx, email); err == nil && other.ID != userID {
			return PublicUser{}, ErrEmailTaken
		} else if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return PublicUser{}, err
		}
		upd.Email = &email
	}

	if upd.Empty() {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return PublicUser{}, err
		}
		return Project(user), nil
	}

	if err := s.users.Update(ctx, userID, upd); err != nil {
		return PublicUser{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return PublicUser{}, err
	}
	return Project(user), nil
}

// ChangePassword verifies the current password before storing a new hash.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !security.VerifyPassword(current, user.PasswordHash) {
		return ErrWrongPassword
	}

	hash, err := security.HashPassword(next, s.cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, hash)
}

type AdminCreateInput struct {
	Name        string
	Surname     string
	Email       string
	Password    string
	Phone       string
	Role        models.UserRole
	IsActive    bool
	AccessB1    bool
	AccessB2    bool
	DeviceLimit int
}

// AdminCreate builds an account on an administrator's behalf. Unlike
// self-registration it may start active and carry access grants.
func (s *UserService) AdminCreate(ctx context.Context, input AdminCreateInput) (models.User, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return models.User{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, err
	}

	hash, err := security.HashPassword(input.Password, s.cfg.Auth.BcryptCost)
	if err != nil {
		return models.User{}, err
	}

	role := input.Role
	if role != models.UserRoleAdmin {
		role = models.UserRoleUser
	}
	limit := input.DeviceLimit
	if limit < 1 {
		limit = 1
	}

	user := models.User{
		ID:           ids.New(),
		Name:         strings.TrimSpace(input.Name),
		Surname:      strings.TrimSpace(input.Surname),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     input.IsActive,
		AccessB1:     input.AccessB1,
		AccessB2:     input.AccessB2,
		DeviceLimit:  limit,
	}
	if phone := strings.TrimSpace(input.Phone); phone != "" {
		user.Phone = &phone
	}

	if err := s.users.Create(ctx, user); err != nil {
		return models.User{}, err
	}

	s.log.Info().Str("user_id", user.ID).Str("role", string(role)).Msg("admin created user")
	return user, nil
}

// AdminDelete removes the account and everything it owns: live sessions
// and recorded quiz results.
func (s *UserService) AdminDelete(ctx context.Context, userID string) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}
	if err := s.sessions.DestroyAll(ctx, userID); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("destroy sessions after delete failed")
	}
	if err := s.results.DeleteByUser(ctx, userID); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("delete quiz results after delete failed")
	}

	s.log.Info().Str("user_id", userID).Msg("user deleted")
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
