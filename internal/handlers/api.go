package handlers

import (
	"errors"
	"net/http"

	"github.com/sabalioglu/vidgen/internal/middleware"
	"github.com/sabalioglu/vidgen/internal/models"
	"github.com/sabalioglu/vidgen/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// APIHandler містить handlers для JSON API
type APIHandler struct {
	catalog   services.Catalog
	checkout  services.CheckoutService
	publicURL string
}

// NewAPIHandler створює новий APIHandler
func NewAPIHandler(catalog services.Catalog, checkout services.CheckoutService, publicURL string) *APIHandler {
	return &APIHandler{
		catalog:   catalog,
		checkout:  checkout,
		publicURL: publicURL,
	}
}

// Session повертає стан сесії відвідувача
// @Summary Session
// @Description Повертає користувача, профіль і стан навігації відвідувача
// @Tags session
// @Produce json
// @Success 200 {object} models.SessionSnapshot
// @Router /api/v1/session [get]
func (h *APIHandler) Session(c *gin.Context) {
	visitor, ok := visitorOrAbort(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, snapshotOf(visitor))
}

// Products повертає каталог продуктів
// @Summary Products
// @Description Повертає список продуктів для покупки
// @Tags checkout
// @Produce json
// @Success 200 {array} models.Product
// @Router /api/v1/products [get]
func (h *APIHandler) Products(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.All())
}

// Navigate змінює сторінку відвідувача
// @Summary Navigate
// @Description Переходить на сторінку; закриті сторінки без входу показують login
// @Tags session
// @Accept json
// @Produce json
// @Param request body models.NavigateRequest true "Сторінка"
// @Success 200 {object} models.SessionSnapshot
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/navigate [post]
func (h *APIHandler) Navigate(c *gin.Context) {
	visitor, ok := visitorOrAbort(c)
	if !ok {
		return
	}

	var req models.NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Missing page",
		})
		return
	}

	if err := visitor.Navigator.Navigate(req.Page); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "unknown_page",
			"error_description": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, snapshotOf(visitor))
}

// Login виконує вхід
// @Summary Login
// @Description Вхід через email/password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Облікові дані"
// @Success 200 {object} models.SessionSnapshot
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/v1/auth/login [post]
func (h *APIHandler) Login(c *gin.Context) {
	visitor, ok := visitorOrAbort(c)
	if !ok {
		return
	}

	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Missing or invalid email/password",
		})
		return
	}

	if err := visitor.Store.SignIn(c.Request.Context(), req.Email, req.Password); err != nil {
		writeAuthError(c, err)
		return
	}
	visitor.Navigator.AfterSignIn()

	c.JSON(http.StatusOK, snapshotOf(visitor))
}

// SignUp реєструє користувача
// @Summary Sign up
// @Description Реєстрація через email/password; створює профіль з початковими кредитами
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.SignUpRequest true "Дані реєстрації"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/auth/signup [post]
func (h *APIHandler) SignUp(c *gin.Context) {
	visitor, ok := visitorOrAbort(c)
	if !ok {
		return
	}

	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Missing or invalid email/password",
		})
		return
	}

	result, err := visitor.Store.SignUp(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeAuthError(c, err)
		return
	}
	if !result.ConfirmationRequired {
		visitor.Navigator.AfterSignIn()
	}

	c.JSON(http.StatusOK, gin.H{
		"confirmation_required": result.ConfirmationRequired,
		"session":               snapshotOf(visitor),
	})
}

// Logout завершує сесію
// @Summary Logout
// @Description Завершує сесію; локальний стан очищується навіть при помилці провайдера
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/auth/logout [post]
func (h *APIHandler) Logout(c *gin.Context) {
	visitor, ok := visitorOrAbort(c)
	if !ok {
		return
	}

	response := gin.H{"message": "Logout successful"}
	if err := visitor.Store.SignOut(c.Request.Context()); err != nil {
		response["warning"] = "remote sign out failed, local session cleared"
	}
	_ = visitor.Navigator.Navigate(models.PageHome)

	c.JSON(http.StatusOK, response)
}

// RefreshProfile перезавантажує профіль
// @Summary Refresh profile
// @Description Перезавантажує профіль поточного користувача
// @Tags session
// @Produce json
// @Success 200 {object} models.SessionSnapshot
// @Router /api/v1/profile/refresh [post]
func (h *APIHandler) RefreshProfile(c *gin.Context) {
	visitor, ok := visitorOrAbort(c)
	if !ok {
		return
	}

	if err := visitor.Store.RefreshProfile(c.Request.Context()); err != nil {
		logrus.WithError(err).WithField("visitor_id", visitor.ID).Warn("Profile refresh failed")
	}
	c.JSON(http.StatusOK, snapshotOf(visitor))
}

// Checkout створює checkout сесію
// @Summary Checkout
// @Description Обмінює price id на URL сторінки оплати
// @Tags checkout
// @Accept json
// @Produce json
// @Param request body models.CheckoutRequest true "Price ID"
// @Success 200 {object} models.CheckoutResponse
// @Failure 401 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 502 {object} map[string]interface{}
// @Router /api/v1/checkout [post]
func (h *APIHandler) Checkout(c *gin.Context) {
	visitor, ok := visitorOrAbort(c)
	if !ok {
		return
	}

	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Missing price_id",
		})
		return
	}

	checkoutURL, err := initiateCheckout(c, h.catalog, h.checkout, h.publicURL, visitor, req.PriceID)
	if err != nil {
		status := http.StatusBadGateway
		code := "checkout_failed"
		switch {
		case errors.Is(err, services.ErrNotAuthenticated):
			status, code = http.StatusUnauthorized, "unauthorized"
		case errors.Is(err, services.ErrUnknownProduct):
			status, code = http.StatusNotFound, "unknown_product"
		case errors.Is(err, services.ErrCheckoutInProgress):
			status, code = http.StatusConflict, "checkout_in_progress"
		}
		c.JSON(status, gin.H{
			"error":             code,
			"error_description": checkoutAlert(h.catalog, req.PriceID, err),
		})
		return
	}

	c.JSON(http.StatusOK, models.CheckoutResponse{URL: checkoutURL})
}

func visitorOrAbort(c *gin.Context) (*services.Visitor, bool) {
	visitor, ok := middleware.GetVisitor(c)
	if !ok {
		logrus.Error("Visitor missing from context")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "Visitor session unavailable",
		})
		return nil, false
	}
	return visitor, true
}

func snapshotOf(visitor *services.Visitor) models.SessionSnapshot {
	state := visitor.Store.Snapshot()
	nav := visitor.Navigator.State()
	return models.SessionSnapshot{
		User:         state.User,
		Profile:      state.Profile,
		Loading:      state.Loading,
		Page:         nav.Page,
		RenderedPage: visitor.Navigator.Rendered(state.User),
		SessionID:    nav.SessionID,
	}
}

func writeAuthError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	code := "server_error"
	if authErr, ok := services.AsAuthError(err); ok {
		switch authErr.Code {
		case services.ErrCodeInvalidCredentials:
			status, code = http.StatusUnauthorized, "invalid_grant"
		case services.ErrCodeDuplicateRegistration:
			status, code = http.StatusConflict, "user_already_exists"
		case services.ErrCodeValidation:
			status, code = http.StatusBadRequest, "validation_failed"
		}
	}
	c.JSON(status, gin.H{
		"error":             code,
		"error_description": services.AuthErrorMessage(err),
	})
}
