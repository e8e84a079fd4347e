package handlers

import (
	"fmt"
	"net/http"

	"github.com/sabalioglu/vidgen/internal/middleware"
	"github.com/sabalioglu/vidgen/internal/models"
	"github.com/sabalioglu/vidgen/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AuthHandler містить handlers для форм входу, реєстрації і виходу
type AuthHandler struct{}

// NewAuthHandler створює новий AuthHandler
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// Login обробляє форму входу
func (h *AuthHandler) Login(c *gin.Context) {
	logrus.Info("🔐 Login request")

	visitor, ok := middleware.GetVisitor(c)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	var req models.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		logrus.WithError(err).Warn("Invalid login request")
		visitor.SetAlert("Please enter a valid email and password")
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	if err := visitor.Store.SignIn(c.Request.Context(), req.Email, req.Password); err != nil {
		visitor.SetAlert(services.AuthErrorMessage(err))
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	page := visitor.Navigator.AfterSignIn()
	logrus.WithFields(logrus.Fields{
		"visitor_id": visitor.ID,
		"page":       page,
	}).Info("Login successful")

	c.Redirect(http.StatusSeeOther, "/")
}

// SignUp обробляє форму реєстрації
func (h *AuthHandler) SignUp(c *gin.Context) {
	logrus.Info("📝 Sign up request")

	visitor, ok := middleware.GetVisitor(c)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	var req models.SignUpForm
	if err := c.ShouldBind(&req); err != nil {
		logrus.WithError(err).Warn("Invalid sign up request")
		visitor.SetAlert("Please enter a valid email and a password of at least 6 characters")
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	if req.ConfirmPassword != req.Password {
		visitor.SetAlert("Passwords do not match")
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	result, err := visitor.Store.SignUp(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		visitor.SetAlert(services.AuthErrorMessage(err))
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	if result.ConfirmationRequired {
		_ = visitor.Navigator.Navigate(models.PageLogin)
		visitor.SetFlash("Check your email to confirm your account, then sign in.")
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	visitor.Navigator.AfterSignIn()
	visitor.SetFlash(fmt.Sprintf("Welcome to AI VideoGen! You have %d free credits.", models.DefaultCredits))
	c.Redirect(http.StatusSeeOther, "/")
}

// Logout завершує сесію; локальний стан очищується навіть при помилці провайдера
func (h *AuthHandler) Logout(c *gin.Context) {
	logrus.Info("🚪 Logout request")

	visitor, ok := middleware.GetVisitor(c)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	_ = visitor.Store.SignOut(c.Request.Context())
	_ = visitor.Navigator.Navigate(models.PageHome)

	c.Redirect(http.StatusSeeOther, "/")
}
