package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/agilasoft/logistics-sub000/internal/domain"
	apperrors "github.com/agilasoft/logistics-sub000/pkg/errors"
	"github.com/agilasoft/logistics-sub000/pkg/logging"
)

// respondError maps service errors onto HTTP responses. Domain sentinels get
// their canonical status; anything unrecognized is an internal error.
func respondError(c *gin.Context, logger *logging.Logger, err error) {
	appErr := classify(err)
	if appErr.HTTPStatus >= 500 {
		logger.WithContext(c.Request.Context()).WithError(err).Error("request failed",
			"path", c.FullPath())
	}
	c.JSON(appErr.HTTPStatus, gin.H{
		"error":   appErr.Code,
		"message": appErr.Message,
		"details": appErr.Details,
	})
}

func classify(err error) *apperrors.AppError {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}

	switch {
	case errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrLocationNotFound),
		errors.Is(err, domain.ErrHUNotFound),
		errors.Is(err, domain.ErrBOMNotFound),
		errors.Is(err, domain.ErrScanUnresolved):
		return apperrors.ErrNotFound(err.Error())
	case errors.Is(err, domain.ErrScopeViolation):
		return apperrors.ErrScopeViolation(err.Error())
	case errors.Is(err, domain.ErrStatusViolation):
		return apperrors.ErrStatusViolation(err.Error())
	case errors.Is(err, domain.ErrCapacityViolation),
		errors.Is(err, domain.ErrNegativeBalance):
		return apperrors.ErrCapacityViolation(err.Error())
	case errors.Is(err, domain.ErrAnchoringConflict):
		return apperrors.ErrAnchoringConflict(err.Error())
	case errors.Is(err, domain.ErrNothingToPost),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrZeroDelta):
		return apperrors.ErrBadRequest(err.Error())
	case errors.Is(err, domain.ErrBrokenChain):
		return apperrors.ErrConflict(err.Error())
	default:
		return apperrors.FromError(err)
	}
}
