package services

import (
	"context"
	"sync"
	"time"

	"github.com/sabalioglu/vidgen/internal/models"
)

// MemoryProfileRepository зберігає профілі в пам'яті (локальний режим, тести)
type MemoryProfileRepository struct {
	profiles map[string]models.Profile
	mutex    sync.RWMutex
}

// NewMemoryProfileRepository створює in-memory репозиторій профілів
func NewMemoryProfileRepository() *MemoryProfileRepository {
	return &MemoryProfileRepository{
		profiles: make(map[string]models.Profile),
	}
}

// GetProfile повертає копію профілю
func (m *MemoryProfileRepository) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	m.mutex.RLock()
	profile, exists := m.profiles[userID]
	m.mutex.RUnlock()

	if !exists {
		return nil, ErrProfileNotFound
	}
	return &profile, nil
}

// CreateProfile створює профіль якщо його ще немає
func (m *MemoryProfileRepository) CreateProfile(_ context.Context, userID, email string) error {
	key, err := models.NewTelegramConnectionKey()
	if err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.profiles[userID]; exists {
		return nil
	}
	m.profiles[userID] = models.Profile{
		ID:                    userID,
		Email:                 email,
		Credits:               models.DefaultCredits,
		TelegramConnectionKey: key,
		CreatedAt:             time.Now().UTC(),
	}
	return nil
}

// Put записує профіль як є (імітує зовнішні зміни: покупки, Telegram)
func (m *MemoryProfileRepository) Put(profile models.Profile) {
	m.mutex.Lock()
	m.profiles[profile.ID] = profile
	m.mutex.Unlock()
}

// Ping завжди успішний
func (m *MemoryProfileRepository) Ping(context.Context) error {
	return nil
}
