package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sabalioglu/vidgen/internal/middleware"
	"github.com/sabalioglu/vidgen/internal/models"
	"github.com/sabalioglu/vidgen/internal/services"
	"github.com/sabalioglu/vidgen/internal/views"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PageOptions налаштування сторінок
type PageOptions struct {
	// PublicURL корінь додатку для success/cancel URL; порожній - береться з запиту
	PublicURL string
	BotName   string
	// DashboardWait скільки чекати профіль перед показом "Loading your dashboard..."
	DashboardWait time.Duration
}

// PageHandler містить handlers для HTML сторінок
type PageHandler struct {
	catalog  services.Catalog
	checkout services.CheckoutService
	opts     PageOptions
}

// NewPageHandler створює новий PageHandler
func NewPageHandler(catalog services.Catalog, checkout services.CheckoutService, opts PageOptions) *PageHandler {
	if opts.DashboardWait <= 0 {
		opts.DashboardWait = 2 * time.Second
	}
	return &PageHandler{
		catalog:  catalog,
		checkout: checkout,
		opts:     opts,
	}
}

// Index рендерить поточну сторінку відвідувача.
// Кожен GET / це одне завантаження: параметри checkout розбираються тут.
func (h *PageHandler) Index(c *gin.Context) {
	visitor, ok := middleware.GetVisitor(c)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	cleanURL, stripped := visitor.Navigator.ApplyEntryURL(c.Request.URL)
	flash, alert := visitor.TakeMessages()

	data := views.PageData{
		Flash:   flash,
		Error:   alert,
		BotName: h.opts.BotName,
	}
	if stripped {
		data.CleanURL = cleanURL
	}

	snapshot := visitor.Store.Snapshot()
	if snapshot.Loading {
		data.Title = "Loading..."
		data.RefreshSeconds = 1
		c.HTML(http.StatusOK, "loading", data)
		return
	}

	state := visitor.Navigator.State()
	page := visitor.Navigator.Rendered(snapshot.User)
	data.Page = page
	data.Requested = state.Page
	data.Products = h.productViews(visitor.ID)

	switch page {
	case models.PageSuccess:
		if err := visitor.Store.RefreshProfile(c.Request.Context()); err != nil {
			logrus.WithError(err).WithField("visitor_id", visitor.ID).Warn("Profile refresh after purchase failed")
		}
		snapshot = visitor.Store.Snapshot()
		data.Title = "Payment Successful"
		data.SessionID = state.SessionID
		data.PurchasedProduct = h.purchasedProductName()

	case models.PageDashboard:
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.opts.DashboardWait)
		snapshot = visitor.Store.AwaitProfile(ctx)
		cancel()
		if snapshot.Profile == nil {
			data.Title = "Loading your dashboard..."
			data.User = snapshot.User
			data.RefreshSeconds = 2
			c.HTML(http.StatusOK, "loading", data)
			return
		}
		data.Title = "Dashboard"

	case models.PageLogin:
		data.Title = "Sign in"
	case models.PageSignUp:
		data.Title = "Sign up"
	}

	data.User = snapshot.User
	data.Profile = snapshot.Profile

	logrus.WithFields(logrus.Fields{
		"visitor_id": visitor.ID,
		"requested":  state.Page,
		"rendered":   page,
	}).Debug("Rendering page")

	c.HTML(http.StatusOK, string(page), data)
}

// Navigate змінює сторінку відвідувача
func (h *PageHandler) Navigate(c *gin.Context) {
	visitor, ok := middleware.GetVisitor(c)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	var req models.NavigateRequest
	if err := c.ShouldBind(&req); err != nil {
		visitor.SetAlert("Unknown page")
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	if err := visitor.Navigator.Navigate(req.Page); err != nil {
		logrus.WithField("page", req.Page).Warn("Navigation to unknown page")
		visitor.SetAlert("Unknown page")
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// RefreshProfile перезавантажує профіль і повертає на поточну сторінку
func (h *PageHandler) RefreshProfile(c *gin.Context) {
	visitor, ok := middleware.GetVisitor(c)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	if err := visitor.Store.RefreshProfile(c.Request.Context()); err != nil {
		logrus.WithError(err).WithField("visitor_id", visitor.ID).Warn("Manual profile refresh failed")
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// Purchase обмінює price id на URL оплати і перенаправляє туди
func (h *PageHandler) Purchase(c *gin.Context) {
	visitor, ok := middleware.GetVisitor(c)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	var req models.CheckoutRequest
	if err := c.ShouldBind(&req); err != nil {
		visitor.SetAlert("Please choose a product")
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	checkoutURL, err := initiateCheckout(c, h.catalog, h.checkout, h.opts.PublicURL, visitor, req.PriceID)
	if err != nil {
		visitor.SetAlert(checkoutAlert(h.catalog, req.PriceID, err))
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	c.Redirect(http.StatusSeeOther, checkoutURL)
}

func (h *PageHandler) productViews(visitorID string) []views.ProductView {
	products := h.catalog.All()
	items := make([]views.ProductView, 0, len(products))
	for _, p := range products {
		items = append(items, views.ProductView{
			Product: p,
			Pending: h.checkout.Pending(visitorID, p.PriceID),
		})
	}
	return items
}

// purchasedProductName провайдер оплати не повідомляє продукт, показуємо основний
func (h *PageHandler) purchasedProductName() string {
	products := h.catalog.All()
	if len(products) == 0 {
		return ""
	}
	return products[0].Name
}

func initiateCheckout(c *gin.Context, catalog services.Catalog, checkout services.CheckoutService, publicURL string, visitor *services.Visitor, priceID string) (string, error) {
	product, found := catalog.ByPriceID(priceID)
	if !found {
		return "", services.ErrUnknownProduct
	}

	snapshot := visitor.Store.Snapshot()
	return checkout.Initiate(c.Request.Context(), services.CheckoutSessionRequest{
		VisitorID:   visitor.ID,
		AccessToken: snapshot.AccessToken,
		PriceID:     product.PriceID,
		ProductName: product.Name,
		Mode:        product.Mode,
		Origin:      requestOrigin(c, publicURL),
	})
}

func checkoutAlert(catalog services.Catalog, priceID string, err error) string {
	if errors.Is(err, services.ErrUnknownProduct) {
		return "Unknown product"
	}
	name := priceID
	if product, found := catalog.ByPriceID(priceID); found {
		name = product.Name
	}
	return services.CheckoutFailureMessage(name, err)
}

// requestOrigin повертає scheme://host додатку
func requestOrigin(c *gin.Context, publicURL string) string {
	if publicURL != "" {
		return publicURL
	}
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}
