package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sabalioglu/vidgen/internal/build"
	"github.com/sabalioglu/vidgen/internal/models"

	"github.com/sirupsen/logrus"
)

// gotrueErrorResponse покриває обидва формати помилок GoTrue
type gotrueErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

// gotrueSessionResponse відповідь token/signup endpoint
type gotrueSessionResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	TokenType    string           `json:"token_type"`
	ExpiresIn    int64            `json:"expires_in"`
	ExpiresAt    int64            `json:"expires_at"`
	User         *models.Identity `json:"user"`
}

// gotrueClient реалізація AuthClient для Supabase GoTrue REST API
type gotrueClient struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// NewGoTrueClient створює клієнт для <supabase_url>/auth/v1
func NewGoTrueClient(supabaseURL, anonKey string, timeout time.Duration) AuthClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &gotrueClient{
		baseURL: strings.TrimSuffix(supabaseURL, "/") + "/auth/v1",
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SignUp реєструє нового користувача
func (g *gotrueClient) SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*models.Identity, *models.Session, error) {
	payload := map[string]interface{}{
		"email":    email,
		"password": password,
	}
	if len(metadata) > 0 {
		payload["data"] = metadata
	}

	body, err := g.post(ctx, "/signup", payload, "")
	if err != nil {
		return nil, nil, err
	}

	var resp gotrueSessionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, WrapAuthError(err, ErrCodeProvider, "failed to parse signup response")
	}

	// Без автопідтвердження GoTrue повертає тільки користувача
	if resp.AccessToken == "" {
		var identity models.Identity
		if err := json.Unmarshal(body, &identity); err != nil {
			return nil, nil, WrapAuthError(err, ErrCodeProvider, "failed to parse signup user")
		}
		logrus.WithField("user_id", identity.ID).Info("User signed up, email confirmation pending")
		return &identity, nil, nil
	}

	session := toSession(&resp)
	logrus.WithField("user_id", session.User.ID).Info("User signed up with active session")
	return session.User, session, nil
}

// SignInWithPassword виконує вхід через email/password
func (g *gotrueClient) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	body, err := g.post(ctx, "/token?grant_type=password", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	if err != nil {
		return nil, err
	}
	return decodeSession(body)
}

// RefreshSession обмінює refresh token на нову сесію
func (g *gotrueClient) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	body, err := g.post(ctx, "/token?grant_type=refresh_token", map[string]string{
		"refresh_token": refreshToken,
	}, "")
	if err != nil {
		return nil, err
	}
	return decodeSession(body)
}

// SignOut завершує сесію на стороні провайдера
func (g *gotrueClient) SignOut(ctx context.Context, accessToken string) error {
	_, err := g.post(ctx, "/logout", nil, accessToken)
	return err
}

// GetUser отримує користувача за access token
func (g *gotrueClient) GetUser(ctx context.Context, accessToken string) (*models.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user request: %w", err)
	}
	g.setHeaders(req, accessToken)

	body, err := g.do(req)
	if err != nil {
		return nil, err
	}

	var identity models.Identity
	if err := json.Unmarshal(body, &identity); err != nil {
		return nil, WrapAuthError(err, ErrCodeProvider, "failed to parse user response")
	}
	return &identity, nil
}

func (g *gotrueClient) post(ctx context.Context, path string, payload interface{}, accessToken string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	g.setHeaders(req, accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return g.do(req)
}

func (g *gotrueClient) setHeaders(req *http.Request, accessToken string) {
	req.Header.Set("apikey", g.anonKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", build.UserAgent())
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	} else if g.anonKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.anonKey)
	}
}

func (g *gotrueClient) do(req *http.Request) ([]byte, error) {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, WrapAuthError(err, ErrCodeProvider, "auth provider unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapAuthError(err, ErrCodeProvider, "failed to read auth response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logrus.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"path":        req.URL.Path,
		}).Warn("Auth provider returned error")
		return nil, classifyGoTrueError(resp.StatusCode, body)
	}

	return body, nil
}

// classifyGoTrueError відрізняє невірні облікові дані від інших помилок
func classifyGoTrueError(status int, body []byte) *AuthError {
	var payload gotrueErrorResponse
	_ = json.Unmarshal(body, &payload)

	message := firstNonEmpty(payload.ErrorDescription, payload.Msg, payload.Message, payload.Error, strings.TrimSpace(string(body)))
	lower := strings.ToLower(message)

	code := ErrCodeProvider
	switch {
	case payload.ErrorCode == "invalid_credentials" || payload.Error == "invalid_grant" ||
		strings.Contains(lower, "invalid login credentials"):
		code = ErrCodeInvalidCredentials
	// токен відкликано або користувача видалено
	case payload.ErrorCode == "bad_jwt" || payload.ErrorCode == "session_not_found" || payload.ErrorCode == "user_not_found" ||
		status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = ErrCodeInvalidCredentials
	case payload.ErrorCode == "user_already_exists" || payload.ErrorCode == "email_exists" ||
		strings.Contains(lower, "already registered"):
		code = ErrCodeDuplicateRegistration
	case payload.ErrorCode == "weak_password" || payload.ErrorCode == "validation_failed" ||
		(status == http.StatusUnprocessableEntity && payload.ErrorCode == ""):
		code = ErrCodeValidation
	}

	return &AuthError{Code: code, Message: message, Status: status}
}

func decodeSession(body []byte) (*models.Session, error) {
	var resp gotrueSessionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, WrapAuthError(err, ErrCodeProvider, "failed to parse session response")
	}
	if resp.AccessToken == "" || resp.User == nil {
		return nil, NewAuthError(ErrCodeProvider, "auth provider returned an empty session")
	}
	return toSession(&resp), nil
}

func toSession(resp *gotrueSessionResponse) *models.Session {
	session := &models.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		ExpiresIn:    resp.ExpiresIn,
		ExpiresAt:    resp.ExpiresAt,
		User:         resp.User,
	}
	if session.ExpiresAt == 0 && session.ExpiresIn > 0 {
		session.ExpiresAt = time.Now().Add(time.Duration(session.ExpiresIn) * time.Second).Unix()
	}
	return session
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
