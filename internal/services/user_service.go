package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"inkwell/internal/models"
	"inkwell/internal/utils"
)

const minPasswordLength = 6

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdate changes only the fields that are non-nil.
type ProfileUpdate struct {
	Username *string `json:"username"`
	PhotoURL *string `json:"photo_url"`
	Bio      *string `json:"bio"`
}

// GoogleProfile is the subset of the Google userinfo response used to sign in.
type GoogleProfile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	Picture       string `json:"picture"`
}

type UserService struct {
	users UserStore
	log   *zap.Logger
	now   func() time.Time
}

func NewUserService(users UserStore, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users: users,
		log:   logger.Named("users"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return nil, fmt.Errorf("%w: email address is malformed", ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = strings.Split(email, "@")[0]
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	return s.createUser(ctx, username, email, in.Password, "", "")
}

func (s *UserService) createUser(ctx context.Context, username, email, password, googleID, photo string) (*models.User, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: hash,
		PhotoURL: photo,
		Role:     models.RoleUser,
		Status:   models.UserStatusNormal,
		GoogleID: googleID,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		s.log.Error("create user failed", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user registered", zap.Uint("user_id", user.ID))
	return user, nil
}

// Authenticate checks email and password. Banned accounts cannot sign in.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	refreshPunishment(ctx, s.users, user, s.now(), s.log)
	if user.Status == models.UserStatusBanned {
		return nil, ErrUserBanned
	}
	return user, nil
}

// LoginWithGoogle finds the account bound to the Google id, links an account
// with the same email, or creates a new one.
func (s *UserService) LoginWithGoogle(ctx context.Context, p GoogleProfile) (*models.User, error) {
	if p.ID == "" || !p.VerifiedEmail {
		return nil, fmt.Errorf("%w: google email is not verified", ErrInvalidInput)
	}
	email := strings.ToLower(p.Email)

	user, err := s.users.GetUserByGoogleID(ctx, p.ID)
	if errors.Is(err, ErrUserNotFound) {
		user, err = s.users.GetUserByEmail(ctx, email)
		if err == nil && user.GoogleID == "" {
			user.GoogleID = p.ID
			if user.PhotoURL == "" {
				user.PhotoURL = p.Picture
			}
			if err := s.users.UpdateUser(ctx, user); err != nil {
				return nil, fmt.Errorf("link google account: %w", err)
			}
		}
	}

	if errors.Is(err, ErrUserNotFound) {
		username := p.GivenName
		if username == "" {
			username = strings.Split(email, "@")[0]
		}
		// random password, the account signs in through Google
		password, err := utils.RandomToken(24)
		if err != nil {
			return nil, err
		}
		return s.createUser(ctx, username, email, password, p.ID, p.Picture)
	}
	if err != nil {
		return nil, err
	}

	refreshPunishment(ctx, s.users, user, s.now(), s.log)
	if user.Status == models.UserStatusBanned {
		return nil, ErrUserBanned
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetUser(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, actor *models.User, in ProfileUpdate) (*models.User, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}

	user, err := s.users.GetUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if name == "" || len([]rune(name)) > 50 {
			return nil, fmt.Errorf("%w: username must be 1-50 characters", ErrInvalidInput)
		}
		user.Username = name
	}
	if in.PhotoURL != nil {
		user.PhotoURL = strings.TrimSpace(*in.PhotoURL)
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if len([]rune(bio)) > 200 {
			return nil, fmt.Errorf("%w: bio is limited to 200 characters", ErrInvalidInput)
		}
		user.Bio = bio
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

// ChangeRole sets a user's role and records who changed it.
func (s *UserService) ChangeRole(ctx context.Context, actor *models.User, userID uint, role models.Role, reason string) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !models.ValidRole(role) {
		return nil, ErrInvalidRole
	}
	if actor.ID == userID {
		return nil, ErrSelfRoleChange
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		return user, nil
	}

	audit := &models.RoleChangeAudit{
		UserID:    userID,
		ChangedBy: actor.ID,
		OldRole:   user.Role,
		NewRole:   role,
		Reason:    strings.TrimSpace(reason),
		CreatedAt: s.now(),
	}
	if err := s.users.ChangeRole(ctx, userID, role, audit); err != nil {
		s.log.Error("change role failed", zap.Uint("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("change role: %w", err)
	}

	s.log.Info("role changed",
		zap.Uint("user_id", userID),
		zap.String("from", string(audit.OldRole)),
		zap.String("to", string(role)),
		zap.Uint("admin_id", actor.ID),
	)
	user.Role = role
	return user, nil
}

func (s *UserService) ListRoleAudits(ctx context.Context, actor *models.User, userID uint) ([]models.RoleChangeAudit, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.users.ListRoleAudits(ctx, userID)
}

// Punish mutes or bans a user for days, or indefinitely when days <= 0.
// Status normal lifts any punishment.
func (s *UserService) Punish(ctx context.Context, actor *models.User, userID uint, status, days int) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if status < models.UserStatusNormal || status > models.UserStatusBanned {
		return nil, fmt.Errorf("%w: unknown account status %d", ErrInvalidInput, status)
	}
	if actor.ID == userID {
		return nil, fmt.Errorf("%w: admins cannot punish themselves", ErrInvalidInput)
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Status = status
	user.PunishExpires = nil
	if status != models.UserStatusNormal && days > 0 {
		expires := s.now().AddDate(0, 0, days)
		user.PunishExpires = &expires
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("punish user: %w", err)
	}
	s.log.Info("user punished", zap.Uint("user_id", userID), zap.Int("status", status), zap.Int("days", days))
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, actor *models.User, limit, offset int) ([]models.User, int64, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, 0, err
	}
	return s.users.ListUsers(ctx, limit, offset)
}

// refreshPunishment lifts a mute or ban whose expiry has passed.
func refreshPunishment(ctx context.Context, users UserStore, u *models.User, now time.Time, log *zap.Logger) {
	if u.Status == models.UserStatusNormal || u.PunishExpires == nil || now.Before(*u.PunishExpires) {
		return
	}
	u.Status = models.UserStatusNormal
	u.PunishExpires = nil
	if err := users.UpdateUser(ctx, u); err != nil {
		log.Warn("lift expired punishment failed", zap.Uint("user_id", u.ID), zap.Error(err))
	}
}

// ensureCanPost rejects muted and banned accounts.
func ensureCanPost(ctx context.Context, users UserStore, u *models.User, now time.Time, log *zap.Logger) error {
	refreshPunishment(ctx, users, u, now, log)
	switch u.Status {
	case models.UserStatusBanned:
		return ErrUserBanned
	case models.UserStatusMuted:
		return ErrUserMuted
	}
	return nil
}
