package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cupgame-wallet/internal/svcerr"
	"cupgame-wallet/pkg/common"
)

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case svcerr.IsValidation(err):
		return http.StatusBadRequest
	case svcerr.IsNotFound(err):
		return http.StatusNotFound
	case svcerr.IsConflict(err):
		return http.StatusConflict
	case svcerr.IsLockTimeout(err):
		return http.StatusLocked
	case svcerr.IsUpstream(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage hides storage details from callers.
func clientMessage(err error) string {
	if svcerr.IsPersistence(err) || !svcerr.IsDomain(err) {
		return "internal error"
	}
	return err.Error()
}

func respondError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, common.NewErrorResponse(clientMessage(err), nil, status))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
}
