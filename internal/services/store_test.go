package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sabalioglu/vidgen/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVisitorKey = "vis_test"

type storeFixture struct {
	client   *fakeAuthClient
	storage  SessionStorage
	profiles *gatedProfiles
	store    *SessionStore
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()

	client := newFakeAuthClient()
	storage := NewMemorySessionStorage()
	profiles := newGatedProfiles()
	provider := NewAuthProvider(client, storage, nil, testVisitorKey, time.Minute)
	store := NewSessionStore(provider, profiles, time.Second)
	t.Cleanup(store.Close)

	return &storeFixture{
		client:   client,
		storage:  storage,
		profiles: profiles,
		store:    store,
	}
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func waitStarted(t *testing.T, profiles *gatedProfiles) int {
	t.Helper()
	select {
	case idx := <-profiles.started:
		return idx
	case <-time.After(2 * time.Second):
		t.Fatal("profile fetch was not started")
		return -1
	}
}

func TestSessionStore_LoadingUntilInitialized(t *testing.T) {
	f := newStoreFixture(t)

	assert.True(t, f.store.Snapshot().Loading)

	f.store.Initialize(context.Background())

	state := f.store.Snapshot()
	assert.False(t, state.Loading)
	assert.Nil(t, state.User)
	assert.Nil(t, state.Profile)
	assert.Zero(t, f.profiles.callCount())
}

func TestSessionStore_InitializeRestoresStoredSession(t *testing.T) {
	f := newStoreFixture(t)
	f.profiles.respond(0, &models.Profile{Credits: 3})
	require.NoError(t, f.storage.Save(context.Background(), testVisitorKey, fakeSession("kept@example.com")))

	f.store.Initialize(context.Background())

	state := f.store.Snapshot()
	assert.False(t, state.Loading)
	require.NotNil(t, state.User)
	assert.Equal(t, "kept@example.com", state.User.Email)

	state = f.store.AwaitProfile(waitCtx(t))
	require.NotNil(t, state.Profile)
	assert.Equal(t, 3, state.Profile.Credits)
	assert.Equal(t, "id-kept@example.com", state.Profile.ID)
}

func TestSessionStore_LoadingClearsBeforeProfileArrives(t *testing.T) {
	f := newStoreFixture(t)
	release := f.profiles.hold(0)
	f.profiles.respond(0, &models.Profile{Credits: 5})
	require.NoError(t, f.storage.Save(context.Background(), testVisitorKey, fakeSession("slow@example.com")))

	f.store.Initialize(context.Background())
	waitStarted(t, f.profiles)

	state := f.store.Snapshot()
	assert.False(t, state.Loading)
	assert.NotNil(t, state.User)
	assert.Nil(t, state.Profile)

	release()
	state = f.store.AwaitProfile(waitCtx(t))
	require.NotNil(t, state.Profile)
	assert.Equal(t, 5, state.Profile.Credits)
}

func TestSessionStore_SignInLoadsProfileWithUserToken(t *testing.T) {
	f := newStoreFixture(t)
	f.client.addUser("a@b.co", "secret1")
	f.profiles.respond(0, &models.Profile{Credits: 5})
	f.store.Initialize(context.Background())

	require.NoError(t, f.store.SignIn(context.Background(), "a@b.co", "secret1"))

	state := f.store.AwaitProfile(waitCtx(t))
	require.NotNil(t, state.User)
	assert.Equal(t, "id-a@b.co", state.User.ID)
	assert.Equal(t, "access-a@b.co", state.AccessToken)
	require.NotNil(t, state.Profile)
	assert.Equal(t, 5, state.Profile.Credits)
	assert.Equal(t, []string{"access-a@b.co"}, f.profiles.tokens)
}

func TestSessionStore_SignInInvalidCredentials(t *testing.T) {
	f := newStoreFixture(t)
	f.client.addUser("a@b.co", "secret1")
	f.store.Initialize(context.Background())

	err := f.store.SignIn(context.Background(), "a@b.co", "wrong")

	require.Error(t, err)
	assertInvalidCredentials(t, err)
	assert.Equal(t, "Invalid email or password", AuthErrorMessage(err))
	assert.Nil(t, f.store.Snapshot().User)
}

func TestSessionStore_StaleProfileResponseDiscarded(t *testing.T) {
	f := newStoreFixture(t)
	f.client.addUser("a@b.co", "secret1")
	f.store.Initialize(context.Background())

	releaseFirst := f.profiles.hold(0)
	f.profiles.respond(0, &models.Profile{Credits: 5})
	f.profiles.respond(1, &models.Profile{Credits: 4})

	require.NoError(t, f.store.SignIn(context.Background(), "a@b.co", "secret1"))
	require.Equal(t, 0, waitStarted(t, f.profiles))

	// Пізніше видане завантаження завершується першим
	require.NoError(t, f.store.RefreshProfile(context.Background()))
	require.Equal(t, 4, f.store.Snapshot().Profile.Credits)

	releaseFirst()
	state := f.store.AwaitProfile(waitCtx(t))

	require.NotNil(t, state.Profile)
	assert.Equal(t, 4, state.Profile.Credits)
}

func TestSessionStore_SignOutDiscardsInflightFetch(t *testing.T) {
	f := newStoreFixture(t)
	f.client.addUser("a@b.co", "secret1")
	f.store.Initialize(context.Background())

	release := f.profiles.hold(0)
	f.profiles.respond(0, &models.Profile{Credits: 5})

	require.NoError(t, f.store.SignIn(context.Background(), "a@b.co", "secret1"))
	waitStarted(t, f.profiles)

	require.NoError(t, f.store.SignOut(context.Background()))
	release()

	state := f.store.AwaitProfile(waitCtx(t))
	assert.Nil(t, state.User)
	assert.Nil(t, state.Profile)
	assert.Empty(t, state.AccessToken)
}

func TestSessionStore_UserSwitchDiscardsPreviousUsersProfile(t *testing.T) {
	f := newStoreFixture(t)
	f.client.addUser("a@b.co", "secret1")
	f.client.addUser("c@d.co", "secret2")
	f.store.Initialize(context.Background())

	releaseA := f.profiles.hold(0)
	f.profiles.respond(0, &models.Profile{Credits: 1})
	f.profiles.respond(1, &models.Profile{Credits: 9})

	require.NoError(t, f.store.SignIn(context.Background(), "a@b.co", "secret1"))
	waitStarted(t, f.profiles)

	require.NoError(t, f.store.SignIn(context.Background(), "c@d.co", "secret2"))
	waitStarted(t, f.profiles)
	releaseA()

	state := f.store.AwaitProfile(waitCtx(t))
	require.NotNil(t, state.User)
	assert.Equal(t, "id-c@d.co", state.User.ID)
	require.NotNil(t, state.Profile)
	assert.Equal(t, "id-c@d.co", state.Profile.ID)
	assert.Equal(t, 9, state.Profile.Credits)
}

func TestSessionStore_SignOutClearsStateWhenProviderFails(t *testing.T) {
	f := newStoreFixture(t)
	f.client.addUser("a@b.co", "secret1")
	f.profiles.respond(0, &models.Profile{Credits: 5})
	f.store.Initialize(context.Background())
	require.NoError(t, f.store.SignIn(context.Background(), "a@b.co", "secret1"))
	f.store.AwaitProfile(waitCtx(t))

	f.client.signOutErr = errors.New("network unreachable")
	err := f.store.SignOut(context.Background())

	require.Error(t, err)
	state := f.store.Snapshot()
	assert.Nil(t, state.User)
	assert.Nil(t, state.Profile)
	assert.Empty(t, state.AccessToken)

	stored, loadErr := f.storage.Load(context.Background(), testVisitorKey)
	require.NoError(t, loadErr)
	assert.Nil(t, stored)
}

func TestSessionStore_SignUpCreatesProfile(t *testing.T) {
	client := newFakeAuthClient()
	profiles := NewMemoryProfileRepository()
	provider := NewAuthProvider(client, NewMemorySessionStorage(), nil, testVisitorKey, time.Minute)
	store := NewSessionStore(provider, profiles, time.Second)
	t.Cleanup(store.Close)
	store.Initialize(context.Background())

	result, err := store.SignUp(context.Background(), "new@example.com", "secret1", "Nadia")

	require.NoError(t, err)
	assert.False(t, result.ConfirmationRequired)
	assert.Equal(t, "Nadia", result.Identity.DisplayName())

	state := store.AwaitProfile(waitCtx(t))
	require.NotNil(t, state.Profile)
	assert.Equal(t, models.DefaultCredits, state.Profile.Credits)
	assert.False(t, state.Profile.TelegramConnected)
	assert.NotEmpty(t, state.Profile.TelegramConnectionKey)
}

func TestSessionStore_SignUpWithoutSessionNeedsConfirmation(t *testing.T) {
	f := newStoreFixture(t)
	f.client.signUpNoSession = true
	f.store.Initialize(context.Background())

	result, err := f.store.SignUp(context.Background(), "confirm@example.com", "secret1", "")

	require.NoError(t, err)
	assert.True(t, result.ConfirmationRequired)
	assert.Nil(t, f.store.Snapshot().User)
	assert.Equal(t, []string{"id-confirm@example.com"}, f.profiles.created)
}

func TestSessionStore_SignUpDuplicate(t *testing.T) {
	f := newStoreFixture(t)
	f.client.addUser("taken@example.com", "secret1")
	f.store.Initialize(context.Background())

	_, err := f.store.SignUp(context.Background(), "taken@example.com", "secret1", "")

	authErr, ok := AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeDuplicateRegistration, authErr.Code)
	assert.Empty(t, f.profiles.created)
}

func TestSessionStore_MissingProfileLeavesUserSignedIn(t *testing.T) {
	f := newStoreFixture(t)
	f.client.addUser("a@b.co", "secret1")
	f.store.Initialize(context.Background())
	require.NoError(t, f.store.SignIn(context.Background(), "a@b.co", "secret1"))

	err := f.store.RefreshProfile(context.Background())

	assert.ErrorIs(t, err, ErrProfileNotFound)
	state := f.store.AwaitProfile(waitCtx(t))
	assert.NotNil(t, state.User)
	assert.Nil(t, state.Profile)
}

func TestSessionStore_RefreshProfileWithoutUser(t *testing.T) {
	f := newStoreFixture(t)
	f.store.Initialize(context.Background())

	assert.NoError(t, f.store.RefreshProfile(context.Background()))
	assert.Zero(t, f.profiles.callCount())
}

func TestSessionStore_AwaitProfileHonorsContext(t *testing.T) {
	f := newStoreFixture(t)
	f.client.addUser("a@b.co", "secret1")
	f.store.Initialize(context.Background())
	release := f.profiles.hold(0)
	defer release()

	require.NoError(t, f.store.SignIn(context.Background(), "a@b.co", "secret1"))
	waitStarted(t, f.profiles)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	state := f.store.AwaitProfile(ctx)

	assert.NotNil(t, state.User)
	assert.Nil(t, state.Profile)
}

// jitterProfiles відповідає профілем запитаного користувача з випадковою затримкою
type jitterProfiles struct {
	calls atomic.Int64
}

func (j *jitterProfiles) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	j.calls.Add(1)
	select {
	case <-time.After(time.Duration(rand.Intn(500)) * time.Microsecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &models.Profile{ID: userID, Credits: 5}, nil
}

func (j *jitterProfiles) CreateProfile(context.Context, string, string) error { return nil }

func (j *jitterProfiles) Ping(context.Context) error { return nil }

func TestSessionStore_ProfileNeverOutlivesUser(t *testing.T) {
	client := newFakeAuthClient()
	client.addUser("a@b.co", "secret1")
	client.addUser("b@b.co", "secret1")
	profiles := &jitterProfiles{}
	store := NewSessionStore(NewAuthProvider(client, NewMemorySessionStorage(), nil, testVisitorKey, time.Minute), profiles, time.Second)
	t.Cleanup(store.Close)
	store.Initialize(context.Background())

	var violations atomic.Int64
	check := func() {
		state := store.Snapshot()
		switch {
		case state.User == nil && state.Profile != nil:
			violations.Add(1)
		case state.User != nil && state.Profile != nil && state.Profile.ID != state.User.ID:
			violations.Add(1)
		}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := 0; i < 200; i++ {
			email := "a@b.co"
			if i%2 == 1 {
				email = "b@b.co"
			}
			assert.NoError(t, store.SignIn(context.Background(), email, "secret1"))
			check()
			if i%3 != 0 {
				assert.NoError(t, store.SignOut(context.Background()))
				check()
			}
		}
	}()

	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				_ = store.RefreshProfile(context.Background())
				check()
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				check()
			}
		}
	}()

	wg.Wait()

	assert.Zero(t, violations.Load())
	assert.Positive(t, profiles.calls.Load())

	require.NoError(t, store.SignOut(context.Background()))
	state := store.Snapshot()
	assert.Nil(t, state.User)
	assert.Nil(t, state.Profile)

	require.NoError(t, store.SignIn(context.Background(), "b@b.co", "secret1"))
	state = store.AwaitProfile(waitCtx(t))
	require.NotNil(t, state.Profile)
	assert.Equal(t, "id-b@b.co", state.Profile.ID)
}
