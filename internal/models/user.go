package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DefaultCredits кількість кредитів нового профілю
const DefaultCredits = 5

// Identity представляє користувача зовнішнього auth провайдера
type Identity struct {
	ID        string                 `json:"id"`
	Email     string                 `json:"email"`
	Metadata  map[string]interface{} `json:"user_metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// DisplayName повертає ім'я з метаданих або email
func (i *Identity) DisplayName() string {
	if i == nil {
		return ""
	}
	if name, ok := i.Metadata["name"].(string); ok && name != "" {
		return name
	}
	return i.Email
}

// Profile представляє профіль користувача (таблиця profiles)
type Profile struct {
	ID                    string    `gorm:"primaryKey;type:uuid" json:"id"`
	Email                 string    `gorm:"not null;size:255" json:"email"`
	Credits               int       `gorm:"not null" json:"credits"`
	TelegramConnected     bool      `gorm:"not null" json:"telegram_connected"`
	TelegramConnectionKey string    `gorm:"uniqueIndex;size:64" json:"telegram_connection_key"`
	CreatedAt             time.Time `json:"created_at"`
}

// TableName явно задає ім'я таблиці для GORM
func (Profile) TableName() string {
	return "profiles"
}

// BeforeCreate генерує одноразовий ключ підключення Telegram
func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.TelegramConnectionKey != "" {
		return nil
	}
	key, err := NewTelegramConnectionKey()
	if err != nil {
		return err
	}
	p.TelegramConnectionKey = key
	return nil
}

// ShortID повертає перші 8 символів ID для відображення
func (p *Profile) ShortID() string {
	if len(p.ID) <= 8 {
		return p.ID
	}
	return p.ID[:8]
}

// HasCredits перевіряє чи є кредити для генерації відео
func (p *Profile) HasCredits() bool {
	return p != nil && p.Credits > 0
}

// NewTelegramConnectionKey генерує ключ для команди /start
func NewTelegramConnectionKey() (string, error) {
	bytes := make([]byte, 12)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate telegram key: %w", err)
	}
	return "tg_" + hex.EncodeToString(bytes), nil
}
