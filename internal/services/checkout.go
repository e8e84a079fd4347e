package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sabalioglu/vidgen/internal/build"
	"github.com/sabalioglu/vidgen/internal/metrics"
	"github.com/sabalioglu/vidgen/internal/models"

	"github.com/sirupsen/logrus"
)

// CheckoutSessionRequest параметри обміну price id на URL оплати
type CheckoutSessionRequest struct {
	VisitorID   string
	AccessToken string
	PriceID     string
	ProductName string
	Mode        models.CheckoutMode
	// Origin корінь додатку, куди провайдер оплати поверне користувача
	Origin string
}

// checkoutPayload тіло запиту до checkout функції
type checkoutPayload struct {
	PriceID    string              `json:"price_id"`
	SuccessURL string              `json:"success_url"`
	CancelURL  string              `json:"cancel_url"`
	Mode       models.CheckoutMode `json:"mode"`
}

// checkoutReply відповідь checkout функції
type checkoutReply struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// checkoutService реалізація CheckoutService
type checkoutService struct {
	endpoint   string
	anonKey    string
	httpClient *http.Client

	mutex   sync.Mutex
	pending map[string]struct{}
}

// NewCheckoutService створює клієнт serverless checkout функції
func NewCheckoutService(endpoint, anonKey string, timeout time.Duration) CheckoutService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &checkoutService{
		endpoint: endpoint,
		anonKey:  anonKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		pending: make(map[string]struct{}),
	}
}

// Initiate повертає URL сторінки оплати. Без токена мережевий виклик не робиться.
func (c *checkoutService) Initiate(ctx context.Context, req CheckoutSessionRequest) (string, error) {
	if req.AccessToken == "" {
		metrics.RecordCheckout("unauthenticated")
		return "", ErrNotAuthenticated
	}

	key := req.VisitorID + "|" + req.PriceID
	c.mutex.Lock()
	if _, busy := c.pending[key]; busy {
		c.mutex.Unlock()
		return "", ErrCheckoutInProgress
	}
	c.pending[key] = struct{}{}
	c.mutex.Unlock()

	defer func() {
		c.mutex.Lock()
		delete(c.pending, key)
		c.mutex.Unlock()
	}()

	logger := logrus.WithFields(logrus.Fields{
		"visitor_id": req.VisitorID,
		"price_id":   req.PriceID,
		"product":    req.ProductName,
	})
	logger.Info("Starting checkout")

	checkoutURL, err := c.exchange(ctx, req)
	if err != nil {
		metrics.RecordCheckout("error")
		logger.WithError(err).Error("Checkout failed")
		return "", err
	}

	metrics.RecordCheckout("redirect")
	logger.WithField("url", checkoutURL).Info("Redirecting to checkout")
	return checkoutURL, nil
}

// Pending перевіряє чи виконується checkout для відвідувача і ціни
func (c *checkoutService) Pending(visitorID, priceID string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	_, busy := c.pending[visitorID+"|"+priceID]
	return busy
}

func (c *checkoutService) exchange(ctx context.Context, req CheckoutSessionRequest) (string, error) {
	mode := req.Mode
	if mode == "" {
		mode = models.CheckoutModePayment
	}
	origin := strings.TrimSuffix(req.Origin, "/")

	body, err := json.Marshal(checkoutPayload{
		PriceID:    req.PriceID,
		SuccessURL: origin + "?success=true&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  origin + "?canceled=true",
		Mode:       mode,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal checkout request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create checkout request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", build.UserAgent())
	if c.anonKey != "" {
		httpReq.Header.Set("apikey", c.anonKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("checkout request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read checkout response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &CheckoutError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var reply checkoutReply
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return "", fmt.Errorf("failed to parse checkout response: %w", err)
	}
	if reply.Error != "" {
		return "", errors.New(reply.Error)
	}
	if reply.URL == "" {
		return "", ErrMissingCheckoutURL
	}

	return reply.URL, nil
}

// CheckoutFailureMessage формує текст alert для помилки checkout
func CheckoutFailureMessage(productName string, err error) string {
	if errors.Is(err, ErrNotAuthenticated) {
		return "You must be logged in to make a purchase."
	}
	return fmt.Sprintf("Failed to start checkout for %s. Error: %s. Please try again later.", productName, err.Error())
}
