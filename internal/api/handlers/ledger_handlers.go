package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agilasoft/logistics-sub000/internal/application"
	"github.com/agilasoft/logistics-sub000/internal/domain"
	"github.com/agilasoft/logistics-sub000/pkg/logging"
)

// LedgerHandlers exposes read-only ledger queries
type LedgerHandlers struct {
	service *application.LedgerService
	logger  *logging.Logger
}

// NewLedgerHandlers creates a new LedgerHandlers
func NewLedgerHandlers(service *application.LedgerService, logger *logging.Logger) *LedgerHandlers {
	return &LedgerHandlers{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers ledger routes on the router
func (h *LedgerHandlers) RegisterRoutes(router *gin.RouterGroup) {
	ledger := router.Group("/ledger")
	{
		ledger.GET("/entries", h.EntriesForKey)
		ledger.GET("/jobs/:jobId", h.EntriesForJob)
		ledger.GET("/items/:item/balances", h.ItemBalances)
		ledger.GET("/locations/:code/balances", h.LocationBalances)
		ledger.GET("/handling-units/:code/balances", h.HandlingUnitBalances)
	}
}

// EntriesForKey returns the verified movement history of one stock key
func (h *LedgerHandlers) EntriesForKey(c *gin.Context) {
	key := domain.LedgerKey{
		Item:         c.Query("item"),
		Location:     c.Query("location"),
		HandlingUnit: c.Query("handlingUnit"),
		Batch:        c.Query("batch"),
		Serial:       c.Query("serial"),
	}
	if key.Item == "" || key.Location == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item and location query parameters are required"})
		return
	}

	entries, err := h.service.EntriesForKey(c.Request.Context(), key)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// EntriesForJob returns every entry a job has posted
func (h *LedgerHandlers) EntriesForJob(c *gin.Context) {
	entries, err := h.service.EntriesForJob(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// ItemBalances returns an item's positive balances grouped by key
func (h *LedgerHandlers) ItemBalances(c *gin.Context) {
	balances, err := h.service.ItemBalances(c.Request.Context(), c.Param("item"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balances": balances})
}

// LocationBalances returns the positive balances held at a location
func (h *LedgerHandlers) LocationBalances(c *gin.Context) {
	balances, err := h.service.LocationBalances(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balances": balances})
}

// HandlingUnitBalances returns the positive balances on a handling unit
func (h *LedgerHandlers) HandlingUnitBalances(c *gin.Context) {
	balances, err := h.service.HandlingUnitBalances(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balances": balances})
}
