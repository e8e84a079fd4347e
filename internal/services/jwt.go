package services

import (
	"fmt"
	"time"

	"github.com/sabalioglu/vidgen/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// JWTService містить логіку для роботи з access токенами провайдера
type JWTService interface {
	ParseAccessToken(tokenString string) (*AccessTokenClaims, error)
	ExpiryFromToken(tokenString string) (time.Time, error)
	IssueAccessToken(identity *models.Identity, ttl time.Duration) (string, time.Time, error)
}

// AccessTokenClaims представляє claims access token (формат Supabase)
type AccessTokenClaims struct {
	Email        string                 `json:"email"`
	Role         string                 `json:"role"`
	SessionID    string                 `json:"session_id,omitempty"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// jwtService реалізація JWTService
type jwtService struct {
	secret []byte
}

// NewJWTService створює новий JWT сервіс. Без секрету токени парсяться без перевірки підпису.
func NewJWTService(secret string) JWTService {
	return &jwtService{
		secret: []byte(secret),
	}
}

// ParseAccessToken парсить access token і перевіряє підпис якщо є секрет
func (j *jwtService) ParseAccessToken(tokenString string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}

	if len(j.secret) == 0 {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
			return nil, fmt.Errorf("failed to parse access token: %w", err)
		}
		return claims, nil
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("failed to validate access token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid access token")
	}

	return claims, nil
}

// ExpiryFromToken повертає час закінчення з claim exp
func (j *jwtService) ExpiryFromToken(tokenString string) (time.Time, error) {
	claims, err := j.ParseAccessToken(tokenString)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("access token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}

// IssueAccessToken генерує HS256 access token (локальний режим)
func (j *jwtService) IssueAccessToken(identity *models.Identity, ttl time.Duration) (string, time.Time, error) {
	if len(j.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("jwt secret is required to issue tokens")
	}

	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := AccessTokenClaims{
		Email:        identity.Email,
		Role:         "authenticated",
		UserMetadata: identity.Metadata,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    identity.ID,
		"expires_at": expiresAt,
	}).Debug("Issued local access token")

	return signed, expiresAt, nil
}
