package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVisitorManager(storage SessionStorage, ttl time.Duration) VisitorManager {
	return NewVisitorManager(VisitorManagerConfig{
		TTL:           ttl,
		AuthClient:    newFakeAuthClient(),
		Storage:       storage,
		Profiles:      NewMemoryProfileRepository(),
		RefreshMargin: time.Minute,
		FetchTimeout:  time.Second,
	})
}

func TestVisitorManager_GeneratesIDForUnknownCookie(t *testing.T) {
	manager := newTestVisitorManager(NewMemorySessionStorage(), time.Hour)

	visitor, err := manager.GetOrCreate(context.Background(), "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(visitor.ID, "vis_"))
	assert.Len(t, visitor.ID, len("vis_")+64)
	assert.False(t, visitor.Store.Snapshot().Loading)
	assert.Equal(t, 1, manager.Count())

	other, err := manager.GetOrCreate(context.Background(), "forged-id")
	require.NoError(t, err)
	assert.NotEqual(t, "forged-id", other.ID)
	assert.Equal(t, 2, manager.Count())
}

func TestVisitorManager_TransientVisitorIsNotRegistered(t *testing.T) {
	storage := NewMemorySessionStorage()
	// сесія під порожнім ключем не повинна підхоплюватись
	require.NoError(t, storage.Save(context.Background(), "", fakeSession("a@b.co")))
	manager := newTestVisitorManager(storage, time.Hour)

	for i := 0; i < 50; i++ {
		visitor := manager.NewTransient()
		assert.True(t, visitor.Transient())
		assert.Empty(t, visitor.ID)

		state := visitor.Store.Snapshot()
		assert.False(t, state.Loading)
		assert.Nil(t, state.User)
		visitor.Store.Close()
	}

	assert.Zero(t, manager.Count())

	registered, err := manager.GetOrCreate(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, registered.Transient())
	assert.Equal(t, 1, manager.Count())
}

func TestVisitorManager_ReturnsSameVisitor(t *testing.T) {
	manager := newTestVisitorManager(NewMemorySessionStorage(), time.Hour)

	first, err := manager.GetOrCreate(context.Background(), "")
	require.NoError(t, err)
	second, err := manager.GetOrCreate(context.Background(), first.ID)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Same(t, first, manager.Get(first.ID))
	assert.Nil(t, manager.Get(""))
}

func TestVisitorManager_RestoresStoredSession(t *testing.T) {
	storage := NewMemorySessionStorage()
	require.NoError(t, storage.Save(context.Background(), "vis_known", fakeSession("a@b.co")))
	manager := newTestVisitorManager(storage, time.Hour)

	visitor, err := manager.GetOrCreate(context.Background(), "vis_known")
	require.NoError(t, err)

	assert.Equal(t, "vis_known", visitor.ID)
	state := visitor.Store.Snapshot()
	require.NotNil(t, state.User)
	assert.Equal(t, "a@b.co", state.User.Email)
}

func TestVisitorManager_DeleteDropsStoredSession(t *testing.T) {
	storage := NewMemorySessionStorage()
	require.NoError(t, storage.Save(context.Background(), "vis_gone", fakeSession("a@b.co")))
	manager := newTestVisitorManager(storage, time.Hour)
	_, err := manager.GetOrCreate(context.Background(), "vis_gone")
	require.NoError(t, err)

	manager.Delete("vis_gone")

	assert.Nil(t, manager.Get("vis_gone"))
	assert.Zero(t, manager.Count())
	stored, err := storage.Load(context.Background(), "vis_gone")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestVisitorManager_ExpiredVisitors(t *testing.T) {
	manager := newTestVisitorManager(NewMemorySessionStorage(), 20*time.Millisecond)
	visitor, err := manager.GetOrCreate(context.Background(), "")
	require.NoError(t, err)
	_, err = manager.GetOrCreate(context.Background(), "")
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	assert.Nil(t, manager.Get(visitor.ID))
	manager.CleanupExpiredVisitors()
	assert.Zero(t, manager.Count())
}

func TestVisitor_TakeMessagesClears(t *testing.T) {
	visitor := &Visitor{}
	visitor.SetFlash("Welcome back!")
	visitor.SetAlert("Checkout failed")

	flash, alert := visitor.TakeMessages()
	assert.Equal(t, "Welcome back!", flash)
	assert.Equal(t, "Checkout failed", alert)

	flash, alert = visitor.TakeMessages()
	assert.Empty(t, flash)
	assert.Empty(t, alert)
}
