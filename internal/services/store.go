package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sabalioglu/vidgen/internal/metrics"
	"github.com/sabalioglu/vidgen/internal/models"

	"github.com/sirupsen/logrus"
)

// SessionState знімок стану сховища сесії
type SessionState struct {
	User        *models.Identity
	Profile     *models.Profile
	AccessToken string
	Loading     bool
}

// SignUpResult результат реєстрації
type SignUpResult struct {
	Identity *models.Identity
	// ConfirmationRequired провайдер не видав сесію (потрібне підтвердження email)
	ConfirmationRequired bool
}

// SessionStore тримає поточного користувача, його профіль і прапор loading.
// Синхронізується з подіями AuthProvider.
//
// Кожне завантаження профілю отримує номер при видачі. Результат застосовується
// тільки якщо номер більший за останній застосований і користувач не змінився.
// Очищення користувача робить недійсними всі завантаження в дорозі.
type SessionStore struct {
	provider     AuthProvider
	profiles     ProfileRepository
	fetchTimeout time.Duration

	initOnce    sync.Once
	unsubscribe func()

	mu          sync.Mutex
	user        *models.Identity
	profile     *models.Profile
	accessToken string
	loading     bool
	issued      uint64
	applied     uint64
	inflight    int
	changed     chan struct{}
}

// profileFetch параметри одного завантаження профілю
type profileFetch struct {
	seq         uint64
	userID      string
	accessToken string
}

// NewSessionStore створює сховище в стані loading
func NewSessionStore(provider AuthProvider, profiles ProfileRepository, fetchTimeout time.Duration) *SessionStore {
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	return &SessionStore{
		provider:     provider,
		profiles:     profiles,
		fetchTimeout: fetchTimeout,
		loading:      true,
		changed:      make(chan struct{}),
	}
}

// Initialize підписується на події провайдера і один раз перевіряє сесію.
// loading знімається після перевірки, не чекаючи профіль.
func (s *SessionStore) Initialize(ctx context.Context) {
	s.initOnce.Do(func() {
		s.unsubscribe = s.provider.OnAuthStateChange(s.handleAuthEvent)

		session, err := s.provider.GetSession(ctx)
		if err != nil {
			logrus.WithError(err).Warn("Initial session check failed")
		}

		s.mu.Lock()
		var fetch *profileFetch
		if session != nil && session.User != nil {
			fetch = s.installLocked(session)
		}
		s.loading = false
		s.notifyLocked()
		s.mu.Unlock()

		if fetch != nil {
			go s.fetchInBackground(*fetch)
		}
	})
}

// markAnonymous знімає loading без перевірки сесії.
// Використовується для відвідувачів без cookie: сесії в них бути не може.
func (s *SessionStore) markAnonymous() {
	s.initOnce.Do(func() {
		s.mu.Lock()
		s.loading = false
		s.notifyLocked()
		s.mu.Unlock()
	})
}

// Close відписується від провайдера
func (s *SessionStore) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// handleAuthEvent обробляє подію провайдера; викликається в порядку емісії
func (s *SessionStore) handleAuthEvent(event models.AuthEvent, session *models.Session) {
	logrus.WithField("event", event).Debug("Session store received auth event")

	s.mu.Lock()
	if session == nil || session.User == nil {
		s.clearLocked()
		s.mu.Unlock()
		return
	}
	fetch := s.installLocked(session)
	s.mu.Unlock()

	go s.fetchInBackground(*fetch)
}

// RefreshProfile синхронно перезавантажує профіль поточного користувача
func (s *SessionStore) RefreshProfile(ctx context.Context) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return nil
	}
	fetch := s.beginFetchLocked()
	s.mu.Unlock()

	return s.fetchProfile(ctx, fetch)
}

// SignIn виконує вхід через провайдера
func (s *SessionStore) SignIn(ctx context.Context, email, password string) error {
	session, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		metrics.RecordAuthAttempt("sign_in", outcomeOf(err))
		logrus.WithError(err).WithField("email", email).Warn("Sign in failed")
		return err
	}
	metrics.RecordAuthAttempt("sign_in", "success")

	s.ensureInstalled(session)
	logrus.WithField("user_id", session.User.ID).Info("User signed in")
	return nil
}

// SignUp реєструє користувача і створює рядок профілю з початковими кредитами
func (s *SessionStore) SignUp(ctx context.Context, email, password, name string) (*SignUpResult, error) {
	var metadata map[string]interface{}
	if name != "" {
		metadata = map[string]interface{}{"name": name}
	}

	identity, session, err := s.provider.SignUp(ctx, email, password, metadata)
	if err != nil {
		metrics.RecordAuthAttempt("sign_up", outcomeOf(err))
		logrus.WithError(err).WithField("email", email).Warn("Sign up failed")
		return nil, err
	}
	metrics.RecordAuthAttempt("sign_up", "success")

	result := &SignUpResult{Identity: identity, ConfirmationRequired: session == nil}
	if identity == nil {
		return result, nil
	}

	insertCtx := ctx
	if session != nil {
		insertCtx = WithAccessToken(ctx, session.AccessToken)
	}
	if err := s.profiles.CreateProfile(insertCtx, identity.ID, identity.Email); err != nil {
		logrus.WithError(err).WithField("user_id", identity.ID).Error("Failed to create profile")
	}

	if session != nil {
		s.ensureInstalled(session)
		if err := s.RefreshProfile(ctx); err != nil {
			logrus.WithError(err).WithField("user_id", identity.ID).Warn("Profile refresh after sign up failed")
		}
	}

	return result, nil
}

// SignOut завжди очищає локальний стан; помилка провайдера тільки логується
func (s *SessionStore) SignOut(ctx context.Context) error {
	s.mu.Lock()
	userID := ""
	if s.user != nil {
		userID = s.user.ID
	}
	s.mu.Unlock()

	err := s.provider.SignOut(ctx)
	if err != nil {
		metrics.RecordAuthAttempt("sign_out", "error")
		logrus.WithError(err).WithField("user_id", userID).Error("❌ Remote sign out failed, clearing local session anyway")
	} else {
		metrics.RecordAuthAttempt("sign_out", "success")
		logrus.WithField("user_id", userID).Info("✅ User signed out")
	}

	s.mu.Lock()
	s.clearLocked()
	s.mu.Unlock()

	return err
}

// Snapshot повертає узгоджену копію стану
func (s *SessionStore) Snapshot() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := SessionState{
		AccessToken: s.accessToken,
		Loading:     s.loading,
	}
	if s.user != nil {
		user := *s.user
		state.User = &user
	}
	if s.profile != nil {
		profile := *s.profile
		state.Profile = &profile
	}
	return state
}

// AwaitProfile чекає поки не залишиться завантажень профілю в дорозі
func (s *SessionStore) AwaitProfile(ctx context.Context) SessionState {
	for {
		s.mu.Lock()
		idle := s.inflight == 0 && !s.loading
		changed := s.changed
		s.mu.Unlock()

		if idle {
			return s.Snapshot()
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return s.Snapshot()
		}
	}
}

// ensureInstalled встановлює сесію якщо провайдер не надіслав подію
func (s *SessionStore) ensureInstalled(session *models.Session) {
	if session == nil || session.User == nil {
		return
	}

	s.mu.Lock()
	if s.user != nil && s.user.ID == session.User.ID {
		s.accessToken = session.AccessToken
		s.mu.Unlock()
		return
	}
	fetch := s.installLocked(session)
	s.mu.Unlock()

	go s.fetchInBackground(*fetch)
}

// installLocked встановлює користувача; профіль скидається при зміні користувача
func (s *SessionStore) installLocked(session *models.Session) *profileFetch {
	if s.user == nil || s.user.ID != session.User.ID {
		s.profile = nil
	}
	user := *session.User
	s.user = &user
	s.accessToken = session.AccessToken
	s.notifyLocked()

	fetch := s.beginFetchLocked()
	return &fetch
}

// clearLocked атомарно очищає користувача, токен і профіль
func (s *SessionStore) clearLocked() {
	s.user = nil
	s.profile = nil
	s.accessToken = ""
	s.applied = s.issued
	s.notifyLocked()
}

func (s *SessionStore) beginFetchLocked() profileFetch {
	s.issued++
	s.inflight++
	return profileFetch{
		seq:         s.issued,
		userID:      s.user.ID,
		accessToken: s.accessToken,
	}
}

func (s *SessionStore) fetchInBackground(fetch profileFetch) {
	ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
	defer cancel()

	if err := s.fetchProfile(ctx, fetch); err != nil && !errors.Is(err, ErrProfileNotFound) {
		logrus.WithError(err).WithField("user_id", fetch.userID).Warn("Background profile fetch failed")
	}
}

// fetchProfile завантажує профіль і застосовує результат якщо він не застарів
func (s *SessionStore) fetchProfile(ctx context.Context, fetch profileFetch) error {
	profile, err := s.profiles.GetProfile(WithAccessToken(ctx, fetch.accessToken), fetch.userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.inflight--
	defer s.notifyLocked()

	if fetch.seq <= s.applied || s.user == nil || s.user.ID != fetch.userID {
		metrics.RecordProfileFetch("stale")
		logrus.WithFields(logrus.Fields{
			"user_id": fetch.userID,
			"seq":     fetch.seq,
			"applied": s.applied,
		}).Debug("Discarding stale profile response")
		return err
	}

	s.applied = fetch.seq
	if err != nil {
		s.profile = nil
		metrics.RecordProfileFetch("error")
		logrus.WithError(err).WithField("user_id", fetch.userID).Info("Profile not available")
		return err
	}

	s.profile = profile
	metrics.RecordProfileFetch("applied")
	logrus.WithFields(logrus.Fields{
		"user_id": fetch.userID,
		"credits": profile.Credits,
	}).Debug("Profile loaded")
	return nil
}

// notifyLocked будить усіх хто чекає в AwaitProfile
func (s *SessionStore) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func outcomeOf(err error) string {
	if authErr, ok := AsAuthError(err); ok {
		return string(authErr.Code)
	}
	return "error"
}
