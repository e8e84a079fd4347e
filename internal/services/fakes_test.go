package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/sabalioglu/vidgen/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertInvalidCredentials(t *testing.T, err error) {
	t.Helper()
	authErr, ok := AsAuthError(err)
	require.True(t, ok, "expected AuthError, got %v", err)
	assert.Equal(t, ErrCodeInvalidCredentials, authErr.Code)
}

// fakeAuthClient AuthClient з користувачами в пам'яті
type fakeAuthClient struct {
	mu sync.Mutex

	passwords       map[string]string
	signUpNoSession bool
	signOutErr      error
	refreshErr      error
	getUserErr      error
	signOutCalls    int
	refreshCalls    int
	getUserCalls    int
}

func newFakeAuthClient() *fakeAuthClient {
	return &fakeAuthClient{passwords: make(map[string]string)}
}

func (f *fakeAuthClient) addUser(email, password string) {
	f.mu.Lock()
	f.passwords[email] = password
	f.mu.Unlock()
}

func fakeSession(email string) *models.Session {
	return &models.Session{
		AccessToken:  "access-" + email,
		RefreshToken: "refresh-" + email,
		TokenType:    "bearer",
		User:         &models.Identity{ID: "id-" + email, Email: email},
	}
}

func (f *fakeAuthClient) SignUp(_ context.Context, email, password string, metadata map[string]interface{}) (*models.Identity, *models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.passwords[email]; exists {
		return nil, nil, NewAuthError(ErrCodeDuplicateRegistration, "User already registered")
	}
	f.passwords[email] = password

	session := fakeSession(email)
	session.User.Metadata = metadata
	if f.signUpNoSession {
		return session.User, nil, nil
	}
	return session.User, session, nil
}

func (f *fakeAuthClient) SignInWithPassword(_ context.Context, email, password string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if stored, ok := f.passwords[email]; !ok || stored != password {
		return nil, NewAuthError(ErrCodeInvalidCredentials, "Invalid login credentials")
	}
	return fakeSession(email), nil
}

func (f *fakeAuthClient) RefreshSession(_ context.Context, refreshToken string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	session := fakeSession("refreshed@example.com")
	session.RefreshToken = refreshToken + "-next"
	return session, nil
}

func (f *fakeAuthClient) SignOut(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	return f.signOutErr
}

// GetUser відновлює користувача з токена виду access-<email>
func (f *fakeAuthClient) GetUser(_ context.Context, accessToken string) (*models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.getUserCalls++
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	email := strings.TrimPrefix(accessToken, "access-")
	return &models.Identity{ID: "id-" + email, Email: email}, nil
}

// gatedProfiles ProfileRepository, де кожен виклик можна затримати до закриття gate
type gatedProfiles struct {
	mu        sync.Mutex
	calls     int
	gates     map[int]chan struct{}
	responses map[int]*models.Profile
	created   []string
	tokens    []string
	started   chan int
}

func newGatedProfiles() *gatedProfiles {
	return &gatedProfiles{
		gates:     make(map[int]chan struct{}),
		responses: make(map[int]*models.Profile),
		started:   make(chan int, 16),
	}
}

// hold затримує виклик з номером idx; повертає функцію що його відпускає
func (g *gatedProfiles) hold(idx int) func() {
	gate := make(chan struct{})
	g.mu.Lock()
	g.gates[idx] = gate
	g.mu.Unlock()
	return func() { close(gate) }
}

func (g *gatedProfiles) respond(idx int, profile *models.Profile) {
	g.mu.Lock()
	g.responses[idx] = profile
	g.mu.Unlock()
}

func (g *gatedProfiles) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	g.mu.Lock()
	idx := g.calls
	g.calls++
	gate := g.gates[idx]
	response := g.responses[idx]
	g.tokens = append(g.tokens, AccessTokenFromContext(ctx))
	g.mu.Unlock()

	g.started <- idx

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if response == nil {
		return nil, ErrProfileNotFound
	}
	profile := *response
	profile.ID = userID
	return &profile, nil
}

func (g *gatedProfiles) CreateProfile(_ context.Context, userID, _ string) error {
	g.mu.Lock()
	g.created = append(g.created, userID)
	g.mu.Unlock()
	return nil
}

func (g *gatedProfiles) Ping(context.Context) error {
	return nil
}

func (g *gatedProfiles) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
