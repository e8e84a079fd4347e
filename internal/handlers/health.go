package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/sabalioglu/vidgen/internal/build"
	"github.com/sabalioglu/vidgen/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HealthHandler містить handlers для health check
type HealthHandler struct {
	profiles services.ProfileRepository
	visitors services.VisitorManager
}

// NewHealthHandler створює новий HealthHandler
func NewHealthHandler(profiles services.ProfileRepository, visitors services.VisitorManager) *HealthHandler {
	return &HealthHandler{
		profiles: profiles,
		visitors: visitors,
	}
}

// Health повертає статус здоров'я сервісу
// @Summary Health Check
// @Description Повертає статус здоров'я сервісу і сховища профілів
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	response := gin.H{
		"status":   "healthy",
		"service":  build.Service,
		"build":    build.Info(),
		"visitors": h.visitors.Count(),
	}

	if err := h.profiles.Ping(ctx); err != nil {
		logrus.WithError(err).Warn("Profile store health check failed")
		status = http.StatusServiceUnavailable
		response["status"] = "degraded"
		response["profiles"] = err.Error()
	}

	c.JSON(status, response)
	logrus.Debug("Health check performed")
}
