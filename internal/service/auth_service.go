package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/cems-project/cems-api/internal/models"
	"github.com/cems-project/cems-api/pkg/config"
	appErrors "github.com/cems-project/cems-api/pkg/errors"
	"github.com/cems-project/cems-api/pkg/mailer"
)

type userStore interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByContact(ctx context.Context, contact string) (*models.User, error)
	CreateGuest(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id int64, ts time.Time) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string, updatedAt time.Time) error
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID int64) error
}

// AuthService issues JWT access tokens with rotating refresh tokens, and runs
// the OTP-based guest login flow.
type AuthService struct {
	users    userStore
	otps     otpStore
	notifier mailer.Notifier
	jwtCfg   config.JWTConfig
	guestCfg config.GuestConfig
	logger   *zap.Logger
}

// NewAuthService constructs the service.
func NewAuthService(users userStore, otps otpStore, notifier mailer.Notifier, jwtCfg config.JWTConfig, guestCfg config.GuestConfig, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:    users,
		otps:     otps,
		notifier: notifier,
		jwtCfg:   jwtCfg,
		guestCfg: guestCfg,
		logger:   logger,
	}
}

// Login authenticates by email and password.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, appErrors.ErrInactiveAccount
	}
	return s.issueTokens(ctx, user, req.IP, req.UserAgent)
}

// RefreshToken rotates a refresh token for a new access/refresh pair.
func (s *AuthService) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.LoginResponse, error) {
	stored, err := s.users.FindRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid refresh token")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load refresh token")
	}
	if stored.Revoked || time.Now().After(stored.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token expired or revoked")
	}

	user, err := s.users.FindByID(ctx, stored.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load user")
	}
	if !user.Active {
		return nil, appErrors.ErrInactiveAccount
	}

	if err := s.users.RevokeRefreshToken(ctx, stored.ID, time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "rotate refresh token")
	}
	return s.issueTokens(ctx, user, req.IP, req.UserAgent)
}

// Logout revokes one refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	stored, err := s.users.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load refresh token")
	}
	if stored.Revoked {
		return nil
	}
	if err := s.users.RevokeRefreshToken(ctx, stored.ID, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "revoke refresh token")
	}
	return nil
}

// ChangePassword verifies the old password and replaces it. All existing
// refresh tokens are revoked so stolen sessions die with the old password.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, req models.ChangePasswordRequest) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrInvalidCredentials, "old password is incorrect")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "hash password")
	}
	if err := s.users.UpdatePassword(ctx, userID, string(hash), time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update password")
	}
	if err := s.users.RevokeUserRefreshTokens(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "revoke sessions")
	}
	return nil
}

// RequestGuestOTP sends a one-time code to the contact address.
func (s *AuthService) RequestGuestOTP(ctx context.Context, req models.GuestOTPRequest) error {
	if !s.guestCfg.Enabled {
		return appErrors.Clone(appErrors.ErrForbidden, "guest login is disabled")
	}
	contact := strings.ToLower(strings.TrimSpace(req.Contact))
	if contact == "" {
		return appErrors.Clone(appErrors.ErrValidation, "contact is required")
	}

	code, err := generateOTP(s.guestCfg.OTPLength)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "generate otp")
	}
	if err := s.otps.Set(ctx, contact, code, s.guestCfg.OTPTTL); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store otp")
	}

	body := fmt.Sprintf("Your guest login code is %s. It expires in %s.", code, s.guestCfg.OTPTTL)
	if err := s.notifier.Notify(ctx, contact, "Guest Login Code", body); err != nil {
		s.logger.Error("otp delivery failed", zap.String("contact", contact), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "deliver otp")
	}

	s.logger.Info("guest otp issued", zap.String("contact", contact))
	return nil
}

// VerifyGuestOTP exchanges a valid code for guest tokens, creating the guest
// account on first login.
func (s *AuthService) VerifyGuestOTP(ctx context.Context, req models.GuestVerifyRequest) (*models.LoginResponse, error) {
	if !s.guestCfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "guest login is disabled")
	}
	contact := strings.ToLower(strings.TrimSpace(req.Contact))

	stored, err := s.otps.Get(ctx, contact)
	if err != nil {
		if errors.Is(err, ErrOTPNotFound) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "code is invalid or expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load otp")
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(req.Code)) != 1 {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "code is invalid or expired")
	}
	if err := s.otps.Del(ctx, contact); err != nil {
		s.logger.Warn("otp cleanup failed", zap.String("contact", contact), zap.Error(err))
	}

	user, err := s.users.FindByContact(ctx, contact)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load user")
		}
		user = guestAccount(contact)
		if err := s.users.CreateGuest(ctx, user); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create guest")
		}
	}
	if !user.Active {
		return nil, appErrors.ErrInactiveAccount
	}
	return s.issueTokens(ctx, user, "", "")
}

// ValidateToken parses and verifies an access token.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtCfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	return claims, nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User, ip, userAgent string) (*models.LoginResponse, error) {
	now := time.Now().UTC()
	access, err := s.generateAccessToken(user, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sign access token")
	}

	refresh := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     uuid.NewString() + uuid.NewString(),
		ExpiresAt: now.Add(s.jwtCfg.RefreshExpiration),
		CreatedAt: now,
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := s.users.CreateRefreshToken(ctx, refresh); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store refresh token")
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("last login update failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	email := ""
	if user.Email != nil {
		email = *user.Email
	}
	return &models.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		ExpiresIn:    int64(s.jwtCfg.Expiration.Seconds()),
		IssuedAt:     now,
		User: models.UserInfo{
			ID:       user.ID,
			Email:    email,
			FullName: user.FullName,
			Role:     user.Role,
		},
	}, nil
}

func (s *AuthService) generateAccessToken(user *models.User, now time.Time) (string, error) {
	email := ""
	if user.Email != nil {
		email = *user.Email
	}
	claims := models.JWTClaims{
		UserID:   user.ID,
		Role:     user.Role,
		Email:    email,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.jwtCfg.Issuer,
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtCfg.Expiration)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtCfg.Secret))
}

func guestAccount(contact string) *models.User {
	user := &models.User{
		Username: contact,
		FullName: "Guest",
	}
	if strings.Contains(contact, "@") {
		user.Email = &contact
	} else {
		user.MobileNumber = &contact
	}
	return user
}

// generateOTP returns a numeric code of the requested length (minimum 4).
func generateOTP(length int) (string, error) {
	if length < 4 {
		length = 6
	}
	const digits = "0123456789"
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = digits[int(buf[i])%len(digits)]
	}
	return string(buf), nil
}
