package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/sabalioglu/vidgen/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// localUser користувач локального режиму
type localUser struct {
	identity     models.Identity
	passwordHash []byte
}

// refreshEntry запис refresh token в пам'яті
type refreshEntry struct {
	UserID    string
	ExpiresAt time.Time
}

// localAuthClient реалізація AuthClient для локальної розробки і тестів.
// Користувачі живуть в пам'яті процесу, токени підписуються HS256.
type localAuthClient struct {
	users       map[string]*localUser // email -> user
	refresh     map[string]*refreshEntry
	mutex       sync.RWMutex
	tokens      JWTService
	accessTTL   time.Duration
	refreshTTL  time.Duration
	autoConfirm bool
}

// NewLocalAuthClient створює локальний auth клієнт
func NewLocalAuthClient(tokens JWTService, accessTTL, refreshTTL time.Duration, autoConfirm bool) AuthClient {
	client := &localAuthClient{
		users:       make(map[string]*localUser),
		refresh:     make(map[string]*refreshEntry),
		tokens:      tokens,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		autoConfirm: autoConfirm,
	}

	// Запускаємо горутину для очищення застарілих refresh токенів
	go client.cleanupRoutine()

	return client
}

// SignUp реєструє нового користувача
func (l *localAuthClient) SignUp(_ context.Context, email, password string, metadata map[string]interface{}) (*models.Identity, *models.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, nil, NewAuthError(ErrCodeValidation, "Unable to validate email address: invalid format")
	}
	if len(password) < minPasswordLength {
		return nil, nil, NewAuthError(ErrCodeValidation, fmt.Sprintf("Password should be at least %d characters", minPasswordLength))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	l.mutex.Lock()
	if _, exists := l.users[email]; exists {
		l.mutex.Unlock()
		return nil, nil, NewAuthError(ErrCodeDuplicateRegistration, "User already registered")
	}
	user := &localUser{
		identity: models.Identity{
			ID:        uuid.NewString(),
			Email:     email,
			Metadata:  metadata,
			CreatedAt: time.Now().UTC(),
		},
		passwordHash: hashed,
	}
	l.users[email] = user
	l.mutex.Unlock()

	logrus.WithFields(logrus.Fields{
		"user_id": user.identity.ID,
		"email":   email,
	}).Info("Local user registered")

	identity := user.identity
	if !l.autoConfirm {
		return &identity, nil, nil
	}

	session, err := l.issueSession(&identity)
	if err != nil {
		return nil, nil, err
	}
	return &identity, session, nil
}

// SignInWithPassword перевіряє пароль і видає сесію
func (l *localAuthClient) SignInWithPassword(_ context.Context, email, password string) (*models.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	l.mutex.RLock()
	user, exists := l.users[email]
	l.mutex.RUnlock()

	if !exists {
		return nil, NewAuthError(ErrCodeInvalidCredentials, "Invalid login credentials")
	}
	if err := bcrypt.CompareHashAndPassword(user.passwordHash, []byte(password)); err != nil {
		return nil, NewAuthError(ErrCodeInvalidCredentials, "Invalid login credentials")
	}

	identity := user.identity
	return l.issueSession(&identity)
}

// RefreshSession обмінює одноразовий refresh token на нову сесію
func (l *localAuthClient) RefreshSession(_ context.Context, refreshToken string) (*models.Session, error) {
	l.mutex.Lock()
	entry, exists := l.refresh[refreshToken]
	if exists {
		delete(l.refresh, refreshToken)
	}
	l.mutex.Unlock()

	if !exists || time.Now().After(entry.ExpiresAt) {
		return nil, NewAuthError(ErrCodeInvalidCredentials, "Invalid Refresh Token")
	}

	user := l.userByID(entry.UserID)
	if user == nil {
		return nil, NewAuthError(ErrCodeInvalidCredentials, "User not found")
	}
	identity := user.identity
	return l.issueSession(&identity)
}

// SignOut відкликає всі refresh токени користувача
func (l *localAuthClient) SignOut(_ context.Context, accessToken string) error {
	claims, err := l.tokens.ParseAccessToken(accessToken)
	if err != nil {
		return NewAuthError(ErrCodeProvider, "invalid access token")
	}

	l.mutex.Lock()
	revoked := 0
	for token, entry := range l.refresh {
		if entry.UserID == claims.Subject {
			delete(l.refresh, token)
			revoked++
		}
	}
	l.mutex.Unlock()

	logrus.WithFields(logrus.Fields{
		"user_id": claims.Subject,
		"revoked": revoked,
	}).Info("Local user signed out")
	return nil
}

// GetUser повертає користувача за дійсним access token
func (l *localAuthClient) GetUser(_ context.Context, accessToken string) (*models.Identity, error) {
	claims, err := l.tokens.ParseAccessToken(accessToken)
	if err != nil {
		return nil, NewAuthError(ErrCodeInvalidCredentials, "invalid access token")
	}
	if claims.ExpiresAt != nil && time.Now().After(claims.ExpiresAt.Time) {
		return nil, NewAuthError(ErrCodeInvalidCredentials, "access token expired")
	}

	user := l.userByID(claims.Subject)
	if user == nil {
		return nil, NewAuthError(ErrCodeInvalidCredentials, "User not found")
	}
	identity := user.identity
	return &identity, nil
}

func (l *localAuthClient) issueSession(identity *models.Identity) (*models.Session, error) {
	accessToken, expiresAt, err := l.tokens.IssueAccessToken(identity, l.accessTTL)
	if err != nil {
		return nil, WrapAuthError(err, ErrCodeProvider, "failed to issue access token")
	}

	refreshToken, err := generateRefreshToken()
	if err != nil {
		return nil, WrapAuthError(err, ErrCodeProvider, "failed to issue refresh token")
	}

	l.mutex.Lock()
	l.refresh[refreshToken] = &refreshEntry{
		UserID:    identity.ID,
		ExpiresAt: time.Now().Add(l.refreshTTL),
	}
	l.mutex.Unlock()

	return &models.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(l.accessTTL.Seconds()),
		ExpiresAt:    expiresAt.Unix(),
		User:         identity,
	}, nil
}

func (l *localAuthClient) userByID(id string) *localUser {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	for _, user := range l.users {
		if user.identity.ID == id {
			return user
		}
	}
	return nil
}

// CleanupExpiredTokens видаляє застарілі refresh токени
func (l *localAuthClient) CleanupExpiredTokens() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := time.Now()
	cleaned := 0

	for token, entry := range l.refresh {
		if now.After(entry.ExpiresAt) {
			delete(l.refresh, token)
			cleaned++
		}
	}

	if cleaned > 0 {
		logrus.WithField("cleaned_count", cleaned).Info("Cleaned up expired refresh tokens")
	}
}

// cleanupRoutine періодично очищає застарілі refresh токени
func (l *localAuthClient) cleanupRoutine() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		l.CleanupExpiredTokens()
	}
}

func generateRefreshToken() (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return hex.EncodeToString(randomBytes), nil
}
