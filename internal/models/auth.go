package models

import "time"

// AuthEvent представляє тип події зміни стану автентифікації
type AuthEvent string

const (
	AuthEventSignedIn       AuthEvent = "SIGNED_IN"
	AuthEventSignedOut      AuthEvent = "SIGNED_OUT"
	AuthEventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// Session представляє сесію зовнішнього auth провайдера
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at,omitempty"` // unix seconds
	User         *Identity `json:"user"`
}

// Expiry повертає час закінчення access token (нульовий час якщо невідомо)
func (s *Session) Expiry() time.Time {
	if s == nil || s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

// NeedsRefresh перевіряє чи токен прострочений з урахуванням запасу
func (s *Session) NeedsRefresh(now time.Time, margin time.Duration) bool {
	expiry := s.Expiry()
	if expiry.IsZero() {
		return false
	}
	return !now.Add(margin).Before(expiry)
}

// LoginRequest представляє запит на вхід через email/password
type LoginRequest struct {
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required"`
}

// SignUpRequest представляє запит на реєстрацію
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name,omitempty"`
}

// SignUpForm форма реєстрації на сторінці, пароль вводиться двічі
type SignUpForm struct {
	Email           string `form:"email" binding:"required,email"`
	Password        string `form:"password" binding:"required,min=6"`
	ConfirmPassword string `form:"confirm_password" binding:"required"`
	Name            string `form:"name"`
}

// SessionSnapshot представляє стан сесії відвідувача для API
type SessionSnapshot struct {
	User         *Identity `json:"user"`
	Profile      *Profile  `json:"profile"`
	Loading      bool      `json:"loading"`
	Page         Page      `json:"page"`
	RenderedPage Page      `json:"rendered_page"`
	SessionID    string    `json:"session_id,omitempty"`
}
