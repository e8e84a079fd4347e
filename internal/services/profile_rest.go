package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sabalioglu/vidgen/internal/build"
	"github.com/sabalioglu/vidgen/internal/models"

	"github.com/sirupsen/logrus"
)

const pgrstObjectMediaType = "application/vnd.pgrst.object+json"

// restProfileRepository працює з таблицею profiles через PostgREST
type restProfileRepository struct {
	baseURL    string
	anonKey    string
	table      string
	httpClient *http.Client
}

// NewRESTProfileRepository створює репозиторій для <supabase_url>/rest/v1
func NewRESTProfileRepository(supabaseURL, anonKey, table string, timeout time.Duration) ProfileRepository {
	if table == "" {
		table = "profiles"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &restProfileRepository{
		baseURL: strings.TrimSuffix(supabaseURL, "/") + "/rest/v1",
		anonKey: anonKey,
		table:   table,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetProfile отримує профіль за id користувача
func (r *restProfileRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	query := url.Values{}
	query.Set("id", "eq."+userID)
	query.Set("select", "*")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.tableURL()+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile request: %w", err)
	}
	r.setHeaders(ctx, req)
	req.Header.Set("Accept", pgrstObjectMediaType)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile response: %w", err)
	}

	// single object запит повертає 406 коли рядків немає
	if resp.StatusCode == http.StatusNotAcceptable || resp.StatusCode == http.StatusNotFound {
		return nil, ErrProfileNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile request failed: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var profile models.Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return &profile, nil
}

// CreateProfile вставляє рядок профілю; дублікат не є помилкою
func (r *restProfileRepository) CreateProfile(ctx context.Context, userID, email string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"id":      userID,
		"email":   email,
		"credits": models.DefaultCredits,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tableURL(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create insert request: %w", err)
	}
	r.setHeaders(ctx, req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		logrus.WithField("user_id", userID).Info("Profile already exists, skipping insert")
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("profile insert failed: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"credits": models.DefaultCredits,
	}).Info("Profile created")
	return nil
}

// Ping перевіряє доступність PostgREST
func (r *restProfileRepository) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, r.tableURL()+"?select=id&limit=1", nil)
	if err != nil {
		return fmt.Errorf("failed to create ping request: %w", err)
	}
	r.setHeaders(ctx, req)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("profile store unreachable: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("profile store unhealthy: HTTP %d", resp.StatusCode)
	}
	return nil
}

func (r *restProfileRepository) tableURL() string {
	return r.baseURL + "/" + r.table
}

// setHeaders використовує токен користувача з контексту для RLS
func (r *restProfileRepository) setHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("apikey", r.anonKey)
	req.Header.Set("User-Agent", build.UserAgent())

	bearer := AccessTokenFromContext(ctx)
	if bearer == "" {
		bearer = r.anonKey
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
}
