package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/sabalioglu/vidgen/internal/metrics"

	"github.com/sirupsen/logrus"
)

const visitorIDPrefix = "vis_"

// Visitor стан одного браузера: сховище сесії, навігація і flash повідомлення
type Visitor struct {
	ID        string
	Store     *SessionStore
	Navigator *Navigator
	CreatedAt time.Time

	transient bool

	mu        sync.Mutex
	expiresAt time.Time
	flash     string
	alert     string
}

// SetFlash зберігає повідомлення для показу на наступній сторінці
func (v *Visitor) SetFlash(message string) {
	v.mu.Lock()
	v.flash = message
	v.mu.Unlock()
}

// SetAlert зберігає помилку для показу через alert()
func (v *Visitor) SetAlert(message string) {
	v.mu.Lock()
	v.alert = message
	v.mu.Unlock()
}

// TakeMessages повертає і видаляє flash і alert повідомлення
func (v *Visitor) TakeMessages() (flash, alert string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	flash, alert = v.flash, v.alert
	v.flash, v.alert = "", ""
	return flash, alert
}

// Transient true для відвідувача, який живе один запит і не зареєстрований у менеджері
func (v *Visitor) Transient() bool {
	return v.transient
}

func (v *Visitor) touch(ttl time.Duration) {
	v.mu.Lock()
	v.expiresAt = time.Now().Add(ttl)
	v.mu.Unlock()
}

func (v *Visitor) expired(now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return now.After(v.expiresAt)
}

// VisitorManagerConfig залежності для створення відвідувачів
type VisitorManagerConfig struct {
	TTL           time.Duration
	AuthClient    AuthClient
	Storage       SessionStorage
	Tokens        JWTService
	Profiles      ProfileRepository
	RefreshMargin time.Duration
	FetchTimeout  time.Duration
}

// visitorManager реалізація VisitorManager (in-memory)
type visitorManager struct {
	visitors map[string]*Visitor
	mutex    sync.RWMutex
	cfg      VisitorManagerConfig
}

// NewVisitorManager створює менеджер відвідувачів
func NewVisitorManager(cfg VisitorManagerConfig) VisitorManager {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	manager := &visitorManager{
		visitors: make(map[string]*Visitor),
		cfg:      cfg,
	}

	// Запускаємо горутину для очищення застарілих відвідувачів
	go manager.cleanupRoutine()

	return manager
}

// GetOrCreate повертає відвідувача або створює нового.
// Новий відвідувач ініціалізує своє сховище сесії до повернення.
func (vm *visitorManager) GetOrCreate(ctx context.Context, visitorID string) (*Visitor, error) {
	if visitor := vm.Get(visitorID); visitor != nil {
		return visitor, nil
	}

	if !strings.HasPrefix(visitorID, visitorIDPrefix) {
		id, err := generateVisitorID()
		if err != nil {
			return nil, err
		}
		visitorID = id
	}

	vm.mutex.Lock()
	visitor, exists := vm.visitors[visitorID]
	if !exists {
		provider := NewAuthProvider(vm.cfg.AuthClient, vm.cfg.Storage, vm.cfg.Tokens, visitorID, vm.cfg.RefreshMargin)
		visitor = &Visitor{
			ID:        visitorID,
			Store:     NewSessionStore(provider, vm.cfg.Profiles, vm.cfg.FetchTimeout),
			Navigator: NewNavigator(),
			CreatedAt: time.Now(),
		}
		vm.visitors[visitorID] = visitor
	}
	visitor.touch(vm.cfg.TTL)
	count := len(vm.visitors)
	vm.mutex.Unlock()

	if !exists {
		logrus.WithFields(logrus.Fields{
			"visitor_id": visitorID,
			"visitors":   count,
		}).Info("Visitor created")
		metrics.SetActiveVisitors(count)
	}

	visitor.Store.Initialize(ctx)
	return visitor, nil
}

// NewTransient створює відвідувача без id і без реєстрації.
// Він обслуговує запити без cookie, які нічого не змінюють, тож
// боти і health-перевірки не заповнюють менеджер.
func (vm *visitorManager) NewTransient() *Visitor {
	provider := NewAuthProvider(vm.cfg.AuthClient, vm.cfg.Storage, vm.cfg.Tokens, "", vm.cfg.RefreshMargin)
	visitor := &Visitor{
		Store:     NewSessionStore(provider, vm.cfg.Profiles, vm.cfg.FetchTimeout),
		Navigator: NewNavigator(),
		CreatedAt: time.Now(),
		transient: true,
	}
	visitor.Store.markAnonymous()
	return visitor
}

// Get повертає активного відвідувача або nil
func (vm *visitorManager) Get(visitorID string) *Visitor {
	if visitorID == "" {
		return nil
	}

	vm.mutex.RLock()
	visitor, exists := vm.visitors[visitorID]
	vm.mutex.RUnlock()

	if !exists {
		return nil
	}

	// Перевіряємо чи не прострочений відвідувач
	if visitor.expired(time.Now()) {
		vm.Delete(visitorID)
		return nil
	}

	visitor.touch(vm.cfg.TTL)
	return visitor
}

// Delete видаляє відвідувача разом зі збереженою сесією провайдера
func (vm *visitorManager) Delete(visitorID string) {
	vm.mutex.Lock()
	visitor, exists := vm.visitors[visitorID]
	if exists {
		delete(vm.visitors, visitorID)
	}
	count := len(vm.visitors)
	vm.mutex.Unlock()

	if !exists {
		return
	}
	vm.release(visitor)
	metrics.SetActiveVisitors(count)

	logrus.WithField("visitor_id", visitorID).Info("Visitor deleted")
}

// CleanupExpiredVisitors видаляє застарілих відвідувачів
func (vm *visitorManager) CleanupExpiredVisitors() {
	now := time.Now()
	var expired []*Visitor

	vm.mutex.Lock()
	for id, visitor := range vm.visitors {
		if visitor.expired(now) {
			delete(vm.visitors, id)
			expired = append(expired, visitor)
		}
	}
	count := len(vm.visitors)
	vm.mutex.Unlock()

	for _, visitor := range expired {
		vm.release(visitor)
	}
	metrics.SetActiveVisitors(count)

	if len(expired) > 0 {
		logrus.WithField("cleaned_count", len(expired)).Info("Cleaned up expired visitors")
	}
}

// Count повертає кількість відвідувачів у пам'яті
func (vm *visitorManager) Count() int {
	vm.mutex.RLock()
	defer vm.mutex.RUnlock()
	return len(vm.visitors)
}

func (vm *visitorManager) release(visitor *Visitor) {
	visitor.Store.Close()
	if vm.cfg.Storage == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := vm.cfg.Storage.Delete(ctx, visitor.ID); err != nil {
		logrus.WithError(err).WithField("visitor_id", visitor.ID).Warn("Failed to drop visitor session")
	}
}

// cleanupRoutine періодично очищає застарілих відвідувачів
func (vm *visitorManager) cleanupRoutine() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		vm.CleanupExpiredVisitors()
	}
}

// generateVisitorID генерує унікальний ID відвідувача
func generateVisitorID() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return visitorIDPrefix + hex.EncodeToString(bytes), nil
}
