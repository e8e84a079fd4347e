package services

import (
	"errors"
	"fmt"
)

// ErrorCode представляє код помилки автентифікації
type ErrorCode string

const (
	ErrCodeInvalidCredentials    ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeDuplicateRegistration ErrorCode = "DUPLICATE_REGISTRATION"
	ErrCodeValidation            ErrorCode = "VALIDATION_ERROR"
	ErrCodeProvider              ErrorCode = "PROVIDER_ERROR"
)

var (
	// ErrProfileNotFound профіль для користувача ще не створено
	ErrProfileNotFound = errors.New("profile not found")
	// ErrNotAuthenticated немає access token для виклику
	ErrNotAuthenticated = errors.New("you must be logged in to make a purchase")
	// ErrCheckoutInProgress checkout для цієї ціни вже виконується
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	// ErrMissingCheckoutURL відповідь checkout не містить url
	ErrMissingCheckoutURL = errors.New("no checkout URL received")
	// ErrUnknownPage невідома сторінка навігації
	ErrUnknownPage = errors.New("unknown page")
	// ErrUnknownProduct невідомий price id
	ErrUnknownProduct = errors.New("unknown product")
)

// AuthError представляє типизовану помилку auth провайдера
type AuthError struct {
	Code    ErrorCode
	Message string
	Status  int
	Cause   error
}

// Error повертає рядкове представлення помилки
func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap повертає причину помилки
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// UserMessage повертає коротке повідомлення для відображення користувачу
func (e *AuthError) UserMessage() string {
	switch e.Code {
	case ErrCodeInvalidCredentials:
		return "Invalid email or password"
	case ErrCodeDuplicateRegistration:
		return "An account with this email already exists"
	case ErrCodeValidation:
		if e.Message != "" {
			return e.Message
		}
		return "Please check the entered data"
	default:
		return "Something went wrong. Please try again"
	}
}

// NewAuthError створює нову помилку автентифікації
func NewAuthError(code ErrorCode, message string) *AuthError {
	return &AuthError{Code: code, Message: message}
}

// WrapAuthError обгортає помилку провайдера
func WrapAuthError(err error, code ErrorCode, message string) *AuthError {
	return &AuthError{Code: code, Message: message, Cause: err}
}

// AsAuthError приводить помилку до AuthError
func AsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// AuthErrorMessage повертає повідомлення для користувача для будь-якої помилки
func AuthErrorMessage(err error) string {
	if authErr, ok := AsAuthError(err); ok {
		return authErr.UserMessage()
	}
	return "Something went wrong. Please try again"
}

// CheckoutError помилка відповіді checkout endpoint (не 2xx)
type CheckoutError struct {
	Status int
	Body   string
}

// Error повертає рядкове представлення помилки
func (e *CheckoutError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}
