package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	apperrors "focusify/internal/errors"
	xlog "focusify/internal/log"
	"focusify/internal/model"
	"focusify/internal/repository"
)

const minPasswordLength = 6

type AuthService struct {
	userRepo     *repository.UserRepository
	pomodoroRepo *repository.PomodoroRepository
	jwtSecret    []byte
	tokenTTL     time.Duration
	now          func() time.Time
	logger       zerolog.Logger
}

type AuthOption func(*AuthService)

// WithAuthClock overrides the time source used for token issue and expiry.
func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

func WithAuthLogger(logger zerolog.Logger) AuthOption {
	return func(s *AuthService) { s.logger = logger }
}

func NewAuthService(
	userRepo *repository.UserRepository,
	pomodoroRepo *repository.PomodoroRepository,
	jwtSecret string,
	tokenTTL time.Duration,
	opts ...AuthOption,
) *AuthService {
	s := &AuthService{
		userRepo:     userRepo,
		pomodoroRepo: pomodoroRepo,
		jwtSecret:    []byte(jwtSecret),
		tokenTTL:     tokenTTL,
		now:          time.Now,
		logger:       xlog.WithComponent("auth"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type AuthResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Register creates the account together with its pomodoro state row, so a
// fresh user can call the timer endpoints immediately.
func (s *AuthService) Register(ctx context.Context, email, password string) (*AuthResult, *apperrors.APIError) {
	normalizedEmail := normalizeEmail(email)
	if normalizedEmail == "" {
		return nil, apperrors.BadRequest("invalid_email", "email is required")
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.BadRequest("invalid_password", "password must be at least 6 characters")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("hash password failed")
		return nil, apperrors.Internal("failed to secure password")
	}

	now := s.now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        normalizedEmail,
		PasswordHash: string(passwordHash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.userRepo.Create(ctx, &user)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperrors.Conflict("email_exists", "email already registered", nil)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("create user failed")
		return nil, apperrors.Internal("failed to create user")
	}

	if err := s.pomodoroRepo.CreateInitialState(ctx, user.ID); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("create pomodoro state failed")
		return nil, apperrors.Internal("failed to initialize user state")
	}
	s.logger.Info().Str("user_id", user.ID).Msg("user registered")

	return s.result(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, *apperrors.APIError) {
	normalizedEmail := normalizeEmail(email)
	if normalizedEmail == "" || password == "" {
		return nil, apperrors.BadRequest("invalid_credentials", "email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, normalizedEmail)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Unauthorized("invalid email or password")
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("query user failed")
		return nil, apperrors.Internal("failed to query user")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, apperrors.Unauthorized("invalid email or password")
	}

	if apiErr := s.ensureState(ctx, user.ID); apiErr != nil {
		return nil, apiErr
	}
	return s.result(*user)
}

// Me returns the account behind an authenticated request.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, *apperrors.APIError) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("user_not_found", "user not found")
	}
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("query user failed")
		return nil, apperrors.Internal("failed to query user")
	}
	public := user.Public()
	return &public, nil
}

func (s *AuthService) ParseToken(tokenString string) (string, *apperrors.APIError) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(*jwt.Token) (interface{}, error) { return s.jwtSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return "", apperrors.Unauthorized("invalid token")
	}
	if claims.Subject == "" {
		return "", apperrors.Unauthorized("invalid token subject")
	}
	return claims.Subject, nil
}

// ensureState recreates a missing pomodoro_states row for accounts that
// predate it or lost it to a manual cleanup.
func (s *AuthService) ensureState(ctx context.Context, userID string) *apperrors.APIError {
	_, err := s.pomodoroRepo.GetVersion(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("query pomodoro state failed")
		return apperrors.Internal("failed to load user state")
	}
	if err := s.pomodoroRepo.CreateInitialState(ctx, userID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("recreate pomodoro state failed")
		return apperrors.Internal("failed to initialize user state")
	}
	s.logger.Warn().Str("user_id", userID).Msg("pomodoro state recreated")
	return nil
}

func (s *AuthService) result(user model.User) (*AuthResult, *apperrors.APIError) {
	token, apiErr := s.issueToken(user.ID)
	if apiErr != nil {
		return nil, apiErr
	}
	return &AuthResult{Token: token, User: user.Public()}, nil
}

func (s *AuthService) issueToken(userID string) (string, *apperrors.APIError) {
	now := s.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		s.logger.Error().Err(err).Msg("sign token failed")
		return "", apperrors.Internal("failed to sign token")
	}
	return signed, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
