package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/sabalioglu/vidgen/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const visitorContextKey = "visitor"

// CookieOptions параметри cookie відвідувача
type CookieOptions struct {
	Name     string
	Secret   string
	Secure   bool
	HTTPOnly bool
	MaxAge   time.Duration
}

// VisitorMiddleware знаходить або створює відвідувача за підписаною cookie
func VisitorMiddleware(manager services.VisitorManager, opts CookieOptions) gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		visitorID := ""
		if raw, err := c.Cookie(opts.Name); err == nil {
			if id, ok := VerifyVisitorCookie(raw, opts.Secret); ok {
				visitorID = id
			} else {
				logrus.WithField("path", c.Request.URL.Path).Warn("Invalid visitor cookie signature")
			}
		}

		// без cookie читання обслуговує тимчасовий відвідувач, cookie не видається
		if visitorID == "" && readOnlyMethod(c.Request.Method) {
			visitor := manager.NewTransient()
			defer visitor.Store.Close()

			c.Set(visitorContextKey, visitor)
			c.Next()
			return
		}

		visitor, err := manager.GetOrCreate(c.Request.Context(), visitorID)
		if err != nil {
			logrus.WithError(err).Error("Failed to create visitor")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":             "server_error",
				"error_description": "Failed to create visitor session",
			})
			return
		}

		// Оновлюємо cookie при кожному запиті (sliding expiry)
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(opts.Name, SignVisitorID(visitor.ID, opts.Secret), int(opts.MaxAge.Seconds()), "/", "", opts.Secure, opts.HTTPOnly)

		c.Set(visitorContextKey, visitor)
		c.Next()
	})
}

func readOnlyMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// GetVisitor витягує відвідувача з контексту
func GetVisitor(c *gin.Context) (*services.Visitor, bool) {
	value, exists := c.Get(visitorContextKey)
	if !exists {
		return nil, false
	}

	visitor, ok := value.(*services.Visitor)
	return visitor, ok
}

// SignVisitorID повертає значення cookie: id.hmac
func SignVisitorID(id, secret string) string {
	return id + "." + visitorSignature(id, secret)
}

// VerifyVisitorCookie перевіряє підпис і повертає id відвідувача
func VerifyVisitorCookie(value, secret string) (string, bool) {
	idx := strings.LastIndex(value, ".")
	if idx <= 0 {
		return "", false
	}
	id, signature := value[:idx], value[idx+1:]
	if !hmac.Equal([]byte(signature), []byte(visitorSignature(id, secret))) {
		return "", false
	}
	return id, true
}

func visitorSignature(id, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(id))
	return hex.EncodeToString(mac.Sum(nil))
}
