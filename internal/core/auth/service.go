package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/frostdev-ops/telemetry-backend-go/internal/database/models"
	"github.com/frostdev-ops/telemetry-backend-go/internal/database/repositories"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

var (
	ErrLoginTaken         = errors.New("login already exists")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters long", minPasswordLength)
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserNotFound       = errors.New("user not found")
)

// Config holds token settings
type Config struct {
	JWTSecret   string
	TokenExpiry time.Duration
	Issuer      string
}

// Service handles authentication business logic
type Service struct {
	userRepo repositories.UserRepository
	cfg      Config
	logger   *logrus.Logger
	now      func() time.Time
}

// NewService creates a new authentication service
func NewService(userRepo repositories.UserRepository, cfg Config, logger *logrus.Logger) *Service {
	if cfg.TokenExpiry <= 0 {
		cfg.TokenExpiry = 24 * time.Hour
	}
	return &Service{
		userRepo: userRepo,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Credentials is a login/password pair
type Credentials struct {
	Login    string `json:"login" form:"username"`
	Username string `json:"username"`
	Password string `json:"password" form:"password"`
}

// LoginName returns the login, accepting the OAuth2-style username field too
func (c Credentials) LoginName() string {
	if c.Login != "" {
		return c.Login
	}
	return c.Username
}

// TokenResponse represents a login response
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// UserInfo represents user information for responses
type UserInfo struct {
	ID        int64     `json:"id"`
	Login     string    `json:"login"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenClaims represents JWT token claims
type TokenClaims struct {
	UserID int64  `json:"user_id"`
	Login  string `json:"login"`
	jwt.RegisteredClaims
}

// Register creates a new user account
func (s *Service) Register(ctx context.Context, creds Credentials) (*UserInfo, error) {
	login := creds.LoginName()
	if login == "" {
		return nil, fmt.Errorf("login is required")
	}
	if len(creds.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.WithError(err).Error("Failed to hash password")
		return nil, fmt.Errorf("failed to process password")
	}

	user := &models.User{
		Login:        login,
		PasswordHash: string(hashedPassword),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrLoginTaken
		}
		s.logger.WithError(err).Errorf("Failed to create user: %s", login)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"login":   user.Login,
	}).Info("User registered successfully")

	return toUserInfo(user), nil
}

// Login authenticates a user and returns a signed JWT
func (s *Service) Login(ctx context.Context, creds Credentials) (*TokenResponse, error) {
	login := creds.LoginName()

	user, err := s.userRepo.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.logger.WithField("login", login).Warn("Login attempt with non-existent login")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		s.logger.WithFields(logrus.Fields{
			"user_id": user.ID,
			"login":   user.Login,
		}).Warn("Login attempt with incorrect password")
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	expiresAt := now.Add(s.cfg.TokenExpiry)
	claims := &TokenClaims{
		UserID: user.ID,
		Login:  user.Login,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.cfg.Issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		s.logger.WithError(err).Error("Failed to sign JWT token")
		return nil, fmt.Errorf("failed to generate token")
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"login":   user.Login,
	}).Info("User logged in successfully")

	return &TokenResponse{
		AccessToken: tokenString,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
	}, nil
}

// ValidateToken parses a token and returns its claims
func (s *Service) ValidateToken(tokenString string) (*TokenClaims, error) {
	return ParseToken(tokenString, s.cfg.JWTSecret)
}

// ParseToken validates an HS256 token signed with secret
func ParseToken(tokenString, secret string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GetUserByID retrieves user information by ID
func (s *Service) GetUserByID(ctx context.Context, userID int64) (*UserInfo, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return toUserInfo(user), nil
}

func toUserInfo(user *models.User) *UserInfo {
	return &UserInfo{
		ID:        user.ID,
		Login:     user.Login,
		CreatedAt: user.CreatedAt,
	}
}
