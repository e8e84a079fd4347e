package services

import (
	"context"

	"github.com/sabalioglu/vidgen/internal/models"
)

// AuthClient інтерфейс для stateless викликів auth провайдера
type AuthClient interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*models.Identity, *models.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*models.Identity, error)
}

// AuthStateCallback викликається при кожній зміні стану автентифікації
type AuthStateCallback func(event models.AuthEvent, session *models.Session)

// AuthProvider інтерфейс клієнта провайдера для одного відвідувача
type AuthProvider interface {
	GetSession(ctx context.Context) (*models.Session, error)
	OnAuthStateChange(callback AuthStateCallback) (unsubscribe func())
	SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*models.Identity, *models.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	SignOut(ctx context.Context) error
}

// SessionStorage інтерфейс для збереження сесії провайдера
type SessionStorage interface {
	Load(ctx context.Context, key string) (*models.Session, error)
	Save(ctx context.Context, key string, session *models.Session) error
	Delete(ctx context.Context, key string) error
}

// ProfileRepository інтерфейс для роботи з таблицею profiles
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	CreateProfile(ctx context.Context, userID, email string) error
	Ping(ctx context.Context) error
}

// CheckoutService інтерфейс для обміну price id на URL оплати
type CheckoutService interface {
	Initiate(ctx context.Context, req CheckoutSessionRequest) (string, error)
	Pending(visitorID, priceID string) bool
}

// Catalog інтерфейс каталогу продуктів
type Catalog interface {
	All() []models.Product
	ByPriceID(priceID string) (models.Product, bool)
}

// VisitorManager інтерфейс для управління відвідувачами
type VisitorManager interface {
	GetOrCreate(ctx context.Context, visitorID string) (*Visitor, error)
	NewTransient() *Visitor
	Get(visitorID string) *Visitor
	Delete(visitorID string)
	CleanupExpiredVisitors()
	Count() int
}
