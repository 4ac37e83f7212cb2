// Package handlers implements the HTTP endpoints of the orgwarden API.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/MacJediWizard/orgwarden/internal/errs"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// StatusFor maps an error code to an HTTP status.
func StatusFor(err error) int {
	switch errs.Code(err) {
	case "":
		return http.StatusOK
	case errs.EConflict:
		return http.StatusConflict
	case errs.EInvalid:
		return http.StatusBadRequest
	case errs.ENotFound:
		return http.StatusNotFound
	case errs.EUnauthorized:
		return http.StatusUnauthorized
	case errs.EForbidden:
		return http.StatusForbidden
	case errs.EUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error body. Coded errors expose their
// message; internal errors are logged and replaced by fallback.
func respondError(c *gin.Context, logger zerolog.Logger, err error, fallback string) {
	status := StatusFor(err)
	msg := errs.Message(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Msg(fallback)
		if status == http.StatusInternalServerError || msg == "" {
			msg = fallback
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	c.JSON(status, gin.H{"error": msg})
}

// pathID parses a numeric path parameter, answering 400 when it is not one.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
