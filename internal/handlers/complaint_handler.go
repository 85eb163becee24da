package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/reclaim/backend/internal/middleware"
	"github.com/reclaim/backend/internal/models"
	"github.com/reclaim/backend/internal/services/complaint"
	"github.com/reclaim/backend/internal/store"
	"github.com/shopspring/decimal"
)

// maxPhotoSize caps the size of an uploaded complaint photo
const maxPhotoSize = 10 << 20

// ComplaintService is the complaint lifecycle
type ComplaintService interface {
	CreateComplaint(ctx context.Context, complainer *models.User, in complaint.CreateInput) (*models.Complaint, error)
	ApproveComplaint(ctx context.Context, approver *models.User, id uint) (*models.Complaint, error)
	RejectComplaint(ctx context.Context, approver *models.User, id uint) (*models.Complaint, error)
	DeleteComplaint(ctx context.Context, admin *models.User, id uint) error
	ListComplaints(ctx context.Context, user *models.User, q store.Query) ([]models.Complaint, error)
}

// ComplaintHandler handles complaint requests
type ComplaintHandler struct {
	complaints ComplaintService
}

// NewComplaintHandler creates a new complaint handler
func NewComplaintHandler(complaints ComplaintService) *ComplaintHandler {
	return &ComplaintHandler{complaints: complaints}
}

// List lists the complaints visible to the caller
func (h *ComplaintHandler) List(c *gin.Context) {
	q, ok := parsePage(c)
	if !ok {
		return
	}
	if raw := c.Query("status"); raw != "" {
		status := models.ComplaintStatus(strings.ToLower(raw))
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown complaint status"})
			return
		}
		q = q.WithStatus(status)
	}

	complaints, err := h.complaints.ListComplaints(c.Request.Context(), middleware.CurrentUser(c), q)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, complaints)
}

// Create files a complaint from a multipart form
func (h *ComplaintHandler) Create(c *gin.Context) {
	amount, err := decimal.NewFromString(strings.TrimSpace(c.PostForm("amount")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a decimal number"})
		return
	}

	photo, contentType, err := readPhoto(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.complaints.CreateComplaint(c.Request.Context(), middleware.CurrentUser(c), complaint.CreateInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Amount:      amount,
		Photo:       photo,
		ContentType: contentType,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// Approve approves a pending complaint
func (h *ComplaintHandler) Approve(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	updated, err := h.complaints.ApproveComplaint(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// Reject rejects a pending complaint
func (h *ComplaintHandler) Reject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	updated, err := h.complaints.RejectComplaint(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// Delete deletes a complaint
func (h *ComplaintHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.complaints.DeleteComplaint(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// readPhoto reads the photo part of the form and works out its content type
func readPhoto(c *gin.Context) ([]byte, string, error) {
	header, err := c.FormFile("photo")
	if err != nil {
		return nil, "", fmt.Errorf("photo is required")
	}
	if header.Size > maxPhotoSize {
		return nil, "", fmt.Errorf("photo exceeds %d bytes", maxPhotoSize)
	}

	file, err := header.Open()
	if err != nil {
		return nil, "", fmt.Errorf("photo could not be read")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxPhotoSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("photo could not be read")
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}
