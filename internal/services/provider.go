package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sabalioglu/vidgen/internal/metrics"
	"github.com/sabalioglu/vidgen/internal/models"

	"github.com/sirupsen/logrus"
)

type authListener struct {
	id       int
	callback AuthStateCallback
}

// authProvider клієнт провайдера для одного відвідувача.
// Сесія зберігається в SessionStorage під ключем відвідувача.
type authProvider struct {
	client        AuthClient
	storage       SessionStorage
	tokens        JWTService
	key           string
	refreshMargin time.Duration

	// verified користувач збереженої сесії підтверджений провайдером
	verified bool

	// opMu серіалізує операції і розсилку подій
	opMu sync.Mutex

	listenersMu sync.Mutex
	listeners   []authListener
	nextID      int
}

// NewAuthProvider створює клієнт провайдера для ключа сховища
func NewAuthProvider(client AuthClient, storage SessionStorage, tokens JWTService, key string, refreshMargin time.Duration) AuthProvider {
	return &authProvider{
		client:        client,
		storage:       storage,
		tokens:        tokens,
		key:           key,
		refreshMargin: refreshMargin,
	}
}

// OnAuthStateChange підписує callback на події автентифікації
func (p *authProvider) OnAuthStateChange(callback AuthStateCallback) func() {
	p.listenersMu.Lock()
	p.nextID++
	id := p.nextID
	p.listeners = append(p.listeners, authListener{id: id, callback: callback})
	p.listenersMu.Unlock()

	return func() {
		p.listenersMu.Lock()
		defer p.listenersMu.Unlock()
		for i, l := range p.listeners {
			if l.id == id {
				p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
				return
			}
		}
	}
}

// GetSession повертає збережену сесію, оновлюючи токен якщо потрібно
func (p *authProvider) GetSession(ctx context.Context) (*models.Session, error) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	session, err := p.storage.Load(ctx, p.key)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	p.fillExpiry(session)
	if !session.NeedsRefresh(time.Now(), p.refreshMargin) {
		return p.verifyStored(ctx, session)
	}

	logrus.WithFields(logrus.Fields{
		"key":        p.key,
		"expires_at": session.Expiry(),
	}).Debug("Access token expired, refreshing")

	if session.RefreshToken == "" {
		p.dropSession(ctx)
		return nil, nil
	}

	refreshed, err := p.client.RefreshSession(ctx, session.RefreshToken)
	if err != nil {
		if authErr, ok := AsAuthError(err); ok && authErr.Code != ErrCodeProvider {
			logrus.WithError(err).WithField("key", p.key).Info("Refresh token rejected, signing out")
			p.dropSession(ctx)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	p.fillExpiry(refreshed)
	if err := p.storage.Save(ctx, p.key, refreshed); err != nil {
		return nil, fmt.Errorf("failed to save refreshed session: %w", err)
	}
	p.verified = true
	p.emit(models.AuthEventTokenRefreshed, refreshed)

	return refreshed, nil
}

// SignUp реєструє користувача; подія SIGNED_IN тільки якщо провайдер видав сесію
func (p *authProvider) SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*models.Identity, *models.Session, error) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	identity, session, err := p.client.SignUp(ctx, email, password, metadata)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return identity, nil, nil
	}

	if err := p.install(ctx, session); err != nil {
		return nil, nil, err
	}
	return identity, session, nil
}

// SignInWithPassword виконує вхід і зберігає сесію
func (p *authProvider) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	session, err := p.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := p.install(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// SignOut завжди видаляє локальну сесію; повертає помилку провайдера якщо була
func (p *authProvider) SignOut(ctx context.Context) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	var remoteErr error
	session, err := p.storage.Load(ctx, p.key)
	if err != nil {
		logrus.WithError(err).WithField("key", p.key).Warn("Failed to load session for sign out")
	}
	if session != nil && session.AccessToken != "" {
		remoteErr = p.client.SignOut(ctx, session.AccessToken)
	}

	p.dropSession(ctx)
	return remoteErr
}

// verifyStored перевіряє у провайдера користувача сесії, відновленої зі сховища.
// Відкликаний токен або видалений користувач дають вихід; збій провайдера
// залишає сесію до наступної перевірки.
func (p *authProvider) verifyStored(ctx context.Context, session *models.Session) (*models.Session, error) {
	if p.verified {
		return session, nil
	}

	identity, err := p.client.GetUser(ctx, session.AccessToken)
	if err != nil {
		if authErr, ok := AsAuthError(err); ok && authErr.Code != ErrCodeProvider {
			logrus.WithError(err).WithField("key", p.key).Info("Stored session rejected by provider, signing out")
			p.dropSession(ctx)
			return nil, nil
		}
		logrus.WithError(err).WithField("key", p.key).Warn("Could not verify stored session")
		return session, nil
	}

	p.verified = true
	if identity != nil {
		session.User = identity
		if err := p.storage.Save(ctx, p.key, session); err != nil {
			logrus.WithError(err).WithField("key", p.key).Warn("Failed to save verified session")
		}
	}
	return session, nil
}

func (p *authProvider) install(ctx context.Context, session *models.Session) error {
	p.fillExpiry(session)
	if err := p.storage.Save(ctx, p.key, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	p.verified = true
	p.emit(models.AuthEventSignedIn, session)
	return nil
}

func (p *authProvider) dropSession(ctx context.Context) {
	p.verified = false
	if err := p.storage.Delete(ctx, p.key); err != nil {
		logrus.WithError(err).WithField("key", p.key).Warn("Failed to delete stored session")
	}
	p.emit(models.AuthEventSignedOut, nil)
}

// fillExpiry бере exp з JWT якщо провайдер не повернув expires_at
func (p *authProvider) fillExpiry(session *models.Session) {
	if session.ExpiresAt != 0 || p.tokens == nil {
		return
	}
	expiry, err := p.tokens.ExpiryFromToken(session.AccessToken)
	if err != nil {
		logrus.WithError(err).Debug("Could not read access token expiry")
		return
	}
	session.ExpiresAt = expiry.Unix()
}

// emit викликає підписників у порядку підписки; викликається під opMu
func (p *authProvider) emit(event models.AuthEvent, session *models.Session) {
	p.listenersMu.Lock()
	listeners := make([]authListener, len(p.listeners))
	copy(listeners, p.listeners)
	p.listenersMu.Unlock()

	metrics.RecordAuthEvent(string(event))
	logrus.WithFields(logrus.Fields{
		"key":       p.key,
		"event":     event,
		"listeners": len(listeners),
	}).Debug("Auth state changed")

	for _, l := range listeners {
		l.callback(event, session)
	}
}
