package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/reclaim/backend/internal/services/complaint"
	"github.com/reclaim/backend/internal/store"
)

// respondError maps domain errors to status codes. Anything unrecognised is
// logged and reported as an opaque 500.
func respondError(c *gin.Context, err error) {
	status, message := classifyError(err)
	if status == http.StatusInternalServerError || status == http.StatusBadGateway {
		log.Printf("Error handling %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": message})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Resource not found"
	case errors.Is(err, store.ErrAlreadyExists):
		return http.StatusConflict, "Resource already exists"
	case errors.Is(err, complaint.ErrForbidden):
		return http.StatusForbidden, "User does not have enough privileges"
	case errors.Is(err, complaint.ErrAlreadyApproved),
		errors.Is(err, complaint.ErrAlreadyCancelled),
		errors.Is(err, complaint.ErrInvalidTransition),
		errors.Is(err, complaint.ErrMissingIBAN),
		errors.Is(err, complaint.ErrUnsupportedPhoto),
		errors.Is(err, complaint.ErrInvalidComplaint):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, complaint.ErrUploadFailed):
		return http.StatusBadGateway, complaint.ErrUploadFailed.Error()
	case errors.Is(err, complaint.ErrGatewayUnavailable):
		return http.StatusBadGateway, complaint.ErrGatewayUnavailable.Error()
	}
	return http.StatusInternalServerError, "Internal server error"
}

// parseID reads a numeric path parameter
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// parsePage reads the skip cursor and the page size
func parsePage(c *gin.Context) (store.Query, bool) {
	var q store.Query

	if raw := c.Query("skip"); raw != "" {
		skip, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "skip must be a non-negative integer"})
			return q, false
		}
		q.Skip = uint(skip)
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 || limit > store.MaxLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 0 and " + strconv.Itoa(store.MaxLimit)})
			return q, false
		}
		q = q.WithLimit(limit)
	}

	return q, true
}
