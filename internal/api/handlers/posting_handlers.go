package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agilasoft/logistics-sub000/internal/application"
	"github.com/agilasoft/logistics-sub000/pkg/api"
	"github.com/agilasoft/logistics-sub000/pkg/logging"
)

// PostingHandlers exposes the movement posting phases
type PostingHandlers struct {
	service *application.PostingService
	logger  *logging.Logger
}

// NewPostingHandlers creates a new PostingHandlers
func NewPostingHandlers(service *application.PostingService, logger *logging.Logger) *PostingHandlers {
	return &PostingHandlers{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers posting routes on the router
func (h *PostingHandlers) RegisterRoutes(router *gin.RouterGroup) {
	jobs := router.Group("/jobs")
	{
		jobs.POST("/:jobId/post/receiving", h.phase(h.service.PostReceiving))
		jobs.POST("/:jobId/post/pick", h.phase(h.service.PostPick))
		jobs.POST("/:jobId/post/putaway", h.phase(h.service.PostPutaway))
		jobs.POST("/:jobId/post/release", h.phase(h.service.PostRelease))
		jobs.POST("/:jobId/post/vas-pick", h.phase(h.service.PostVASPick))
		jobs.POST("/:jobId/post/vas", h.phase(h.service.PostVAS))
		jobs.POST("/:jobId/post/vas-putaway", h.phase(h.service.PostVASPutaway))
		jobs.POST("/:jobId/post/move", h.phase(h.service.PostMove))
		jobs.POST("/:jobId/post/stocktake", h.phase(h.service.PostStocktake))
		jobs.POST("/:jobId/post/scan", h.PostByScan)
	}
}

type phaseFunc func(ctx context.Context, cmd application.PostJobCommand) (*application.PostingResultDTO, error)

// phase adapts one whole-phase posting call into a handler. The body is
// optional; it may carry a posting reason.
func (h *PostingHandlers) phase(post phaseFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		cmd := application.PostJobCommand{JobID: c.Param("jobId")}
		if c.Request.ContentLength > 0 {
			var body struct {
				Reason string `json:"reason"`
			}
			if err := c.ShouldBindJSON(&body); err != nil {
				respondError(c, h.logger, err)
				return
			}
			cmd.Reason = body.Reason
		}

		result, err := post(c.Request.Context(), cmd)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// PostByScan posts rows matched by scanned identifiers
func (h *PostingHandlers) PostByScan(c *gin.Context) {
	var cmd application.ScanPostCommand
	if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
		respondError(c, h.logger, appErr)
		return
	}
	cmd.JobID = c.Param("jobId")

	result, err := h.service.PostItemsByScan(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
