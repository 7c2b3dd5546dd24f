package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/earlywake/backend/models"
	"github.com/earlywake/backend/utils"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (p Principal) IsAdmin() bool { return p.Role == utils.RoleAdmin }

// AuthService validates credentials and issues bearer tokens.
type AuthService struct {
	db     *gorm.DB
	secret string
	ttl    time.Duration
}

func NewAuthService(db *gorm.DB, secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &AuthService{db: db, secret: secret, ttl: ttl}
}

func (s *AuthService) ValidateAdmin(ctx context.Context, username, password string) (*models.Admin, error) {
	var admin models.Admin
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).Take(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(admin.Password, password) {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	return &admin, nil
}

// ValidateUser looks a participant up by username. Participants sign in without a password.
func (s *AuthService) ValidateUser(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: unknown user", ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// IssueToken signs a bearer token for p.
func (s *AuthService) IssueToken(p Principal) (string, error) {
	return utils.GenerateToken(s.secret, p.ID, p.Username, p.Role, s.ttl)
}

// Logout revokes a token until it would have expired.
func (s *AuthService) Logout(token string) error {
	claims, err := utils.ParseToken(s.secret, token)
	if err != nil {
		return fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	expiresAt := time.Now().Add(s.ttl)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	utils.BlacklistToken(token, expiresAt)
	return nil
}

// EnsureAdmin creates the admin account when it does not exist yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return false, nil
	}
	db := s.db.WithContext(ctx)

	var n int64
	if err := db.Model(&models.Admin{}).Where("username = ?", username).Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}
	if err := db.Create(&models.Admin{Username: username, Password: hash}).Error; err != nil {
		return false, storeError(err, "admin "+username)
	}
	return true, nil
}
