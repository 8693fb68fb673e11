package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"go-bank-sync/config"
	"go-bank-sync/logger"
	"go-bank-sync/model"
	"go-bank-sync/repository"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	otpTTL         = 5 * time.Minute
	otpMaxAttempts = 3
	pinHashCost    = 10
)

var (
	ErrOTPNotRequested = errors.New("OTP not requested or expired")
	ErrOTPInvalid      = errors.New("invalid or expired OTP")
	ErrOTPTooManyTries = errors.New("too many attempts, please request a new OTP")
)

func getJwtKey() []byte {
	return []byte(config.AppConfig.JWT.SecretKey)
}

// HashPIN hashes a 4-digit account PIN for storage.
func HashPIN(pin string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(pin), pinHashCost)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to hash PIN")
		return "", err
	}
	return string(bytes), err
}

// CheckPINHash verifies a sender-supplied PIN against the stored hash.
// This is the same comparison used at account link time.
func CheckPINHash(pin, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin))
	return err == nil
}

// GenerateJWT issues a 24h token carrying the verified identity. The ledger
// engine trusts this identity and never re-derives it.
func GenerateJWT(user *model.User) (string, error) {
	expirationTime := time.Now().Add(24 * time.Hour)

	claims := &model.AppClaims{
		UserID:      user.ID,
		PhoneNumber: user.PhoneNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expirationTime),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(getJwtKey())
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", user.ID).Error("Failed to sign JWT")
		return "", fmt.Errorf("failed to sign token string: %w", err)
	}

	return tokenString, nil
}

// IOTPStore is the narrow contract the auth flow needs from its OTP backend.
// Backed by Redis in production so codes expire server-side.
type IOTPStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Incr(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, keys ...string) error
}

// AuthService implements the OTP login glue. It is deliberately thin: the
// core only consumes the verified user id this service puts in the token.
type AuthService struct {
	userRepo repository.IUserRepository
	otpStore IOTPStore
}

func NewAuthService(userRepo repository.IUserRepository, otpStore IOTPStore) *AuthService {
	return &AuthService{userRepo: userRepo, otpStore: otpStore}
}

func otpKey(phoneNumber string) string      { return "otp:" + phoneNumber }
func otpTriesKey(phoneNumber string) string { return "otp_tries:" + phoneNumber }

// RequestOTP generates and stores a 6-digit code for the phone number.
// Delivery is an external collaborator concern; the code is returned so the
// transport layer can hand it to the SMS gateway.
func (s *AuthService) RequestOTP(ctx context.Context, phoneNumber string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("could not generate OTP: %w", err)
	}
	otp := fmt.Sprintf("%06d", n.Int64()+100000)

	if err := s.otpStore.Set(ctx, otpKey(phoneNumber), otp, otpTTL); err != nil {
		return "", fmt.Errorf("could not store OTP: %w", err)
	}
	if err := s.otpStore.Del(ctx, otpTriesKey(phoneNumber)); err != nil {
		logger.Log.WithError(err).Warn("Failed to reset OTP attempt counter")
	}

	logger.Log.WithField("phone_number", phoneNumber).Info("OTP generated")
	return otp, nil
}

// VerifyOTP checks the submitted code and, on success, finds or registers
// the user and issues a token.
func (s *AuthService) VerifyOTP(ctx context.Context, phoneNumber, otp string) (*model.User, string, error) {
	stored, err := s.otpStore.Get(ctx, otpKey(phoneNumber))
	if err != nil {
		return nil, "", ErrOTPNotRequested
	}

	tries, err := s.otpStore.Incr(ctx, otpTriesKey(phoneNumber))
	if err != nil {
		return nil, "", fmt.Errorf("could not track OTP attempts: %w", err)
	}
	if tries > otpMaxAttempts {
		s.otpStore.Del(ctx, otpKey(phoneNumber), otpTriesKey(phoneNumber))
		return nil, "", ErrOTPTooManyTries
	}

	if stored != otp {
		return nil, "", ErrOTPInvalid
	}

	s.otpStore.Del(ctx, otpKey(phoneNumber), otpTriesKey(phoneNumber))

	user, err := s.userRepo.GetUserByPhone(phoneNumber)
	if err == sql.ErrNoRows {
		user = &model.User{ID: uuid.NewString(), PhoneNumber: phoneNumber}
		if err := s.userRepo.CreateUser(user); err != nil {
			return nil, "", fmt.Errorf("could not register user: %w", err)
		}
		logger.Log.WithField("user_id", user.ID).Info("Registered new user")
	} else if err != nil {
		return nil, "", fmt.Errorf("could not load user: %w", err)
	}

	token, err := GenerateJWT(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}
