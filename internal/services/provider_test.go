package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sabalioglu/vidgen/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	event   models.AuthEvent
	session *models.Session
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) callback(event models.AuthEvent, session *models.Session) {
	r.mu.Lock()
	r.events = append(r.events, recordedEvent{event: event, session: session})
	r.mu.Unlock()
}

func (r *eventRecorder) names() []models.AuthEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]models.AuthEvent, 0, len(r.events))
	for _, e := range r.events {
		names = append(names, e.event)
	}
	return names
}

func TestAuthProvider_SignInEmitsSignedIn(t *testing.T) {
	client := newFakeAuthClient()
	client.addUser("a@b.co", "secret1")
	storage := NewMemorySessionStorage()
	provider := NewAuthProvider(client, storage, nil, "vis_1", time.Minute)

	recorder := &eventRecorder{}
	provider.OnAuthStateChange(recorder.callback)

	session, err := provider.SignInWithPassword(context.Background(), "a@b.co", "secret1")

	require.NoError(t, err)
	assert.Equal(t, []models.AuthEvent{models.AuthEventSignedIn}, recorder.names())

	stored, err := storage.Load(context.Background(), "vis_1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, session.AccessToken, stored.AccessToken)
}

func TestAuthProvider_ListenersCalledInSubscriptionOrder(t *testing.T) {
	client := newFakeAuthClient()
	client.addUser("a@b.co", "secret1")
	provider := NewAuthProvider(client, NewMemorySessionStorage(), nil, "vis_1", time.Minute)

	var order []string
	provider.OnAuthStateChange(func(models.AuthEvent, *models.Session) { order = append(order, "first") })
	provider.OnAuthStateChange(func(models.AuthEvent, *models.Session) { order = append(order, "second") })

	_, err := provider.SignInWithPassword(context.Background(), "a@b.co", "secret1")

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestAuthProvider_Unsubscribe(t *testing.T) {
	client := newFakeAuthClient()
	client.addUser("a@b.co", "secret1")
	provider := NewAuthProvider(client, NewMemorySessionStorage(), nil, "vis_1", time.Minute)

	recorder := &eventRecorder{}
	unsubscribe := provider.OnAuthStateChange(recorder.callback)
	unsubscribe()

	_, err := provider.SignInWithPassword(context.Background(), "a@b.co", "secret1")

	require.NoError(t, err)
	assert.Empty(t, recorder.names())
}

func TestAuthProvider_SignInFailureEmitsNothing(t *testing.T) {
	client := newFakeAuthClient()
	provider := NewAuthProvider(client, NewMemorySessionStorage(), nil, "vis_1", time.Minute)
	recorder := &eventRecorder{}
	provider.OnAuthStateChange(recorder.callback)

	_, err := provider.SignInWithPassword(context.Background(), "nobody@b.co", "secret1")

	assertInvalidCredentials(t, err)
	assert.Empty(t, recorder.names())
}

func TestAuthProvider_SignUpWithoutSessionEmitsNothing(t *testing.T) {
	client := newFakeAuthClient()
	client.signUpNoSession = true
	provider := NewAuthProvider(client, NewMemorySessionStorage(), nil, "vis_1", time.Minute)
	recorder := &eventRecorder{}
	provider.OnAuthStateChange(recorder.callback)

	identity, session, err := provider.SignUp(context.Background(), "new@b.co", "secret1", nil)

	require.NoError(t, err)
	assert.NotNil(t, identity)
	assert.Nil(t, session)
	assert.Empty(t, recorder.names())
}

func TestAuthProvider_SignOutDropsSessionOnRemoteError(t *testing.T) {
	client := newFakeAuthClient()
	client.addUser("a@b.co", "secret1")
	client.signOutErr = errors.New("boom")
	storage := NewMemorySessionStorage()
	provider := NewAuthProvider(client, storage, nil, "vis_1", time.Minute)
	recorder := &eventRecorder{}
	provider.OnAuthStateChange(recorder.callback)

	_, err := provider.SignInWithPassword(context.Background(), "a@b.co", "secret1")
	require.NoError(t, err)

	err = provider.SignOut(context.Background())

	assert.EqualError(t, err, "boom")
	assert.Equal(t, []models.AuthEvent{models.AuthEventSignedIn, models.AuthEventSignedOut}, recorder.names())
	stored, _ := storage.Load(context.Background(), "vis_1")
	assert.Nil(t, stored)
}

func TestAuthProvider_SignOutWithoutSessionSkipsRemoteCall(t *testing.T) {
	client := newFakeAuthClient()
	provider := NewAuthProvider(client, NewMemorySessionStorage(), nil, "vis_1", time.Minute)

	require.NoError(t, provider.SignOut(context.Background()))
	assert.Zero(t, client.signOutCalls)
}

func TestAuthProvider_GetSessionWithoutStoredSession(t *testing.T) {
	provider := NewAuthProvider(newFakeAuthClient(), NewMemorySessionStorage(), nil, "vis_1", time.Minute)

	session, err := provider.GetSession(context.Background())

	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestAuthProvider_GetSessionVerifiesRestoredUserOnce(t *testing.T) {
	storage := NewMemorySessionStorage()
	stored := fakeSession("a@b.co")
	stored.User.Metadata = map[string]interface{}{"name": "stale"}
	require.NoError(t, storage.Save(context.Background(), "vis_1", stored))

	client := newFakeAuthClient()
	provider := NewAuthProvider(client, storage, nil, "vis_1", time.Minute)

	session, err := provider.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "id-a@b.co", session.User.ID)
	assert.Nil(t, session.User.Metadata, "user is taken from the provider")

	_, err = provider.GetSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, client.getUserCalls)
}

func TestAuthProvider_GetSessionRevokedUserSignsOut(t *testing.T) {
	storage := NewMemorySessionStorage()
	require.NoError(t, storage.Save(context.Background(), "vis_1", fakeSession("a@b.co")))

	client := newFakeAuthClient()
	client.getUserErr = &AuthError{Code: ErrCodeInvalidCredentials, Message: "invalid JWT", Status: 401}
	provider := NewAuthProvider(client, storage, nil, "vis_1", time.Minute)
	recorder := &eventRecorder{}
	provider.OnAuthStateChange(recorder.callback)

	session, err := provider.GetSession(context.Background())

	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Equal(t, []models.AuthEvent{models.AuthEventSignedOut}, recorder.names())
	stored, _ := storage.Load(context.Background(), "vis_1")
	assert.Nil(t, stored)
}

func TestAuthProvider_GetSessionKeepsSessionWhenVerificationUnavailable(t *testing.T) {
	storage := NewMemorySessionStorage()
	require.NoError(t, storage.Save(context.Background(), "vis_1", fakeSession("a@b.co")))

	client := newFakeAuthClient()
	client.getUserErr = NewAuthError(ErrCodeProvider, "auth provider unreachable")
	provider := NewAuthProvider(client, storage, nil, "vis_1", time.Minute)

	session, err := provider.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "a@b.co", session.User.Email)

	// наступний виклик перевіряє ще раз
	client.mu.Lock()
	client.getUserErr = nil
	client.mu.Unlock()
	_, err = provider.GetSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, client.getUserCalls)
}

func TestAuthProvider_SignedInSessionIsNotReverified(t *testing.T) {
	client := newFakeAuthClient()
	client.addUser("a@b.co", "secret1")
	provider := NewAuthProvider(client, NewMemorySessionStorage(), nil, "vis_1", time.Minute)

	_, err := provider.SignInWithPassword(context.Background(), "a@b.co", "secret1")
	require.NoError(t, err)
	session, err := provider.GetSession(context.Background())

	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Zero(t, client.getUserCalls)
}

func TestAuthProvider_GetSessionFillsExpiryFromToken(t *testing.T) {
	tokens := NewJWTService("test-secret")
	identity := &models.Identity{ID: "u1", Email: "a@b.co"}
	token, expiresAt, err := tokens.IssueAccessToken(identity, time.Hour)
	require.NoError(t, err)

	storage := NewMemorySessionStorage()
	require.NoError(t, storage.Save(context.Background(), "vis_1", &models.Session{AccessToken: token, RefreshToken: "r1", User: identity}))
	client := newFakeAuthClient()
	provider := NewAuthProvider(client, storage, tokens, "vis_1", time.Minute)

	session, err := provider.GetSession(context.Background())

	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, expiresAt.Unix(), session.ExpiresAt)
	assert.Zero(t, client.refreshCalls)
}

func TestAuthProvider_GetSessionRefreshesExpiringToken(t *testing.T) {
	storage := NewMemorySessionStorage()
	expiring := fakeSession("a@b.co")
	expiring.ExpiresAt = time.Now().Add(10 * time.Second).Unix()
	require.NoError(t, storage.Save(context.Background(), "vis_1", expiring))

	client := newFakeAuthClient()
	provider := NewAuthProvider(client, storage, nil, "vis_1", time.Minute)
	recorder := &eventRecorder{}
	provider.OnAuthStateChange(recorder.callback)

	session, err := provider.GetSession(context.Background())

	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "refresh-a@b.co-next", session.RefreshToken)
	assert.Equal(t, 1, client.refreshCalls)
	assert.Equal(t, []models.AuthEvent{models.AuthEventTokenRefreshed}, recorder.names())

	stored, _ := storage.Load(context.Background(), "vis_1")
	assert.Equal(t, "refresh-a@b.co-next", stored.RefreshToken)
}

func TestAuthProvider_GetSessionRejectedRefreshSignsOut(t *testing.T) {
	storage := NewMemorySessionStorage()
	expired := fakeSession("a@b.co")
	expired.ExpiresAt = time.Now().Add(-time.Hour).Unix()
	require.NoError(t, storage.Save(context.Background(), "vis_1", expired))

	client := newFakeAuthClient()
	client.refreshErr = NewAuthError(ErrCodeInvalidCredentials, "Invalid Refresh Token")
	provider := NewAuthProvider(client, storage, nil, "vis_1", time.Minute)
	recorder := &eventRecorder{}
	provider.OnAuthStateChange(recorder.callback)

	session, err := provider.GetSession(context.Background())

	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Equal(t, []models.AuthEvent{models.AuthEventSignedOut}, recorder.names())
	stored, _ := storage.Load(context.Background(), "vis_1")
	assert.Nil(t, stored)
}

func TestAuthProvider_GetSessionRefreshProviderError(t *testing.T) {
	storage := NewMemorySessionStorage()
	expired := fakeSession("a@b.co")
	expired.ExpiresAt = time.Now().Add(-time.Hour).Unix()
	require.NoError(t, storage.Save(context.Background(), "vis_1", expired))

	client := newFakeAuthClient()
	client.refreshErr = NewAuthError(ErrCodeProvider, "upstream down")
	provider := NewAuthProvider(client, storage, nil, "vis_1", time.Minute)

	session, err := provider.GetSession(context.Background())

	require.Error(t, err)
	assert.Nil(t, session)
	stored, _ := storage.Load(context.Background(), "vis_1")
	assert.NotNil(t, stored, "session is kept for a later retry")
}

func TestJWTService_ParseRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTService("secret-a")
	token, _, err := issuer.IssueAccessToken(&models.Identity{ID: "u1", Email: "a@b.co"}, time.Hour)
	require.NoError(t, err)

	_, err = NewJWTService("secret-b").ParseAccessToken(token)
	assert.Error(t, err)

	claims, err := NewJWTService("").ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "a@b.co", claims.Email)
}

func TestJWTService_IssueRequiresSecret(t *testing.T) {
	_, _, err := NewJWTService("").IssueAccessToken(&models.Identity{ID: "u1"}, time.Hour)
	assert.Error(t, err)
}
