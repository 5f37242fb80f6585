package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agilasoft/logistics-sub000/internal/application"
	"github.com/agilasoft/logistics-sub000/pkg/api"
	"github.com/agilasoft/logistics-sub000/pkg/logging"
)

// CapacityHandlers exposes capacity validation and usage refresh
type CapacityHandlers struct {
	service *application.CapacityService
	logger  *logging.Logger
}

// NewCapacityHandlers creates a new CapacityHandlers
func NewCapacityHandlers(service *application.CapacityService, logger *logging.Logger) *CapacityHandlers {
	return &CapacityHandlers{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers capacity routes on the router
func (h *CapacityHandlers) RegisterRoutes(router *gin.RouterGroup) {
	capacity := router.Group("/capacity")
	{
		capacity.POST("/validate", h.Validate)
		capacity.POST("/locations/refresh", h.RefreshAll)
		capacity.POST("/locations/:code/refresh", h.RefreshLocation)
		capacity.POST("/handling-units/:code/refresh", h.RefreshHandlingUnit)
	}
}

// Validate checks a hypothetical placement against a location's capacity
func (h *CapacityHandlers) Validate(c *gin.Context) {
	var cmd application.ValidateCapacityCommand
	if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
		respondError(c, h.logger, appErr)
		return
	}

	result, err := h.service.ValidateStorageCapacity(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RefreshAll sweeps every location, rebuilding usage snapshots
func (h *CapacityHandlers) RefreshAll(c *gin.Context) {
	result, err := h.service.RefreshAllLocations(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RefreshLocation rebuilds one location's usage snapshot
func (h *CapacityHandlers) RefreshLocation(c *gin.Context) {
	if err := h.service.RefreshLocation(c.Request.Context(), c.Param("code")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": c.Param("code")})
}

// RefreshHandlingUnit rebuilds one handling unit's usage snapshot
func (h *CapacityHandlers) RefreshHandlingUnit(c *gin.Context) {
	if err := h.service.RefreshHandlingUnit(c.Request.Context(), c.Param("code")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": c.Param("code")})
}
