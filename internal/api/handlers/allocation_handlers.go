package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agilasoft/logistics-sub000/internal/application"
	"github.com/agilasoft/logistics-sub000/pkg/logging"
)

// AllocationHandlers exposes the per-job-type allocation runs
type AllocationHandlers struct {
	service *application.AllocationService
	logger  *logging.Logger
}

// NewAllocationHandlers creates a new AllocationHandlers
func NewAllocationHandlers(service *application.AllocationService, logger *logging.Logger) *AllocationHandlers {
	return &AllocationHandlers{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers allocation routes on the router
func (h *AllocationHandlers) RegisterRoutes(router *gin.RouterGroup) {
	jobs := router.Group("/jobs")
	{
		jobs.POST("/:jobId/allocate/pick", h.AllocatePick)
		jobs.POST("/:jobId/allocate/putaway", h.AllocatePutaway)
		jobs.POST("/:jobId/allocate/move", h.AllocateMove)
		jobs.POST("/:jobId/allocate/vas", h.AllocateVAS)
		jobs.POST("/:jobId/allocate/stocktake", h.AllocateStocktake)
	}
}

// AllocatePick rebuilds a pick job's planned items
func (h *AllocationHandlers) AllocatePick(c *gin.Context) {
	result, err := h.service.AllocatePick(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AllocatePutaway rebuilds a putaway job's planned items
func (h *AllocationHandlers) AllocatePutaway(c *gin.Context) {
	result, err := h.service.AllocatePutaway(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AllocateMove rebuilds a move job's planned item pairs
func (h *AllocationHandlers) AllocateMove(c *gin.Context) {
	result, err := h.service.AllocateMove(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AllocateVAS rebuilds a VAS job's planned items through BOM expansion
func (h *AllocationHandlers) AllocateVAS(c *gin.Context) {
	result, err := h.service.AllocateVAS(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AllocateStocktake rebuilds a stocktake job's adjustment items
func (h *AllocationHandlers) AllocateStocktake(c *gin.Context) {
	result, err := h.service.AllocateStocktake(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
