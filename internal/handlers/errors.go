package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"schoolhouse/api/internal/middleware"
	"schoolhouse/api/internal/repository"
	"schoolhouse/api/internal/service"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrInvalidMediaSignature):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrLoginLocked):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	}

	switch service.KindOf(err) {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindNotAuthorized:
		return http.StatusForbidden
	case service.KindInvariant:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": code, "message": text}. Internal errors are
// logged and never shown to the client.
func (h HandlerSet) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().
			Err(err).
			Str("request_id", middleware.RequestIDFrom(c)).
			Str("route", c.FullPath()).
			Msg("request failed")
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal_error"})
		return
	}

	body := gin.H{"error": service.CodeOf(err)}
	var svcErr *service.Error
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		body["message"] = svcErr.Message
	}
	zerolog.Ctx(c.Request.Context()).Debug().Err(err).Int("status", status).Msg("request rejected")
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failure", "message": err.Error()})
}

// actor returns the authenticated user id. Routes calling it sit behind Auth.
func actor(c *gin.Context) string {
	user, _ := middleware.CurrentUser(c)
	return user.ID
}

// page reads ?page=&perPage= with the same bounds as the repositories.
func page(c *gin.Context) repository.Page {
	limit := 50
	offset := 0

	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 1 {
			offset = (v - 1) * limit
		}
	}
	return repository.Page{Limit: limit, Offset: offset}
}

func queryBool(c *gin.Context, name string) bool {
	v, err := strconv.ParseBool(c.Query(name))
	return err == nil && v
}
