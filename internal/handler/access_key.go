package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/grantforge/backend/internal/model"
	"github.com/grantforge/backend/internal/repository"
	"github.com/grantforge/backend/internal/service"
	"k8s.io/klog/v2"
)

// AccessKeyHandler manages API access keys. The routes share the API's
// key auth, so the first key has to be minted before auth is enabled.
type AccessKeyHandler struct {
	service service.AccessKeyService
}

func NewAccessKeyHandler(service service.AccessKeyService) *AccessKeyHandler {
	return &AccessKeyHandler{service: service}
}

func (h *AccessKeyHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/access-keys", h.List)
	router.POST("/access-keys", h.Create)
	router.PATCH("/access-keys/:id/status", h.UpdateStatus)
	router.DELETE("/access-keys/:id", h.Delete)
}

type CreateAccessKeyRequest struct {
	Name string `json:"name" binding:"required"`
}

type UpdateAccessKeyStatusRequest struct {
	Status string `json:"status" binding:"required"` // enabled/disabled
}

// AccessKeyResponse is the masked view of a key. The plaintext appears
// only in the create response.
type AccessKeyResponse struct {
	ID           uint       `json:"id"`
	Name         string     `json:"name"`
	Key          string     `json:"key"`
	Status       string     `json:"status"`
	RequestCount int        `json:"request_count"`
	LastUsedAt   *time.Time `json:"last_used_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Create mints a new access key. The plaintext key is returned here and
// never again; only its hash is stored.
func (h *AccessKeyHandler) Create(c *gin.Context) {
	var req CreateAccessKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		klog.V(6).Infof("create access key: invalid request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	accessKey, plaintext, err := h.service.Create(c.Request.Context(), &service.CreateAccessKeyRequest{Name: req.Name})
	if err != nil {
		if errors.Is(err, service.ErrDuplicateKeyName) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		klog.Errorf("create access key failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"key":        plaintext,
		"access_key": h.toResponse(accessKey),
	})
}

// List returns every key, masked.
func (h *AccessKeyHandler) List(c *gin.Context) {
	accessKeys, err := h.service.List(c.Request.Context())
	if err != nil {
		klog.Errorf("list access keys failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	responses := make([]*AccessKeyResponse, 0, len(accessKeys))
	for _, accessKey := range accessKeys {
		responses = append(responses, h.toResponse(accessKey))
	}

	c.JSON(http.StatusOK, gin.H{"data": responses, "total": len(responses)})
}

func (h *AccessKeyHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseKeyID(c)
	if !ok {
		return
	}

	var req UpdateAccessKeyStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		klog.V(6).Infof("update access key status: invalid request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			klog.Errorf("update access key status failed: id=%d, error=%v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "status updated"})
}

// Delete revokes a key permanently.
func (h *AccessKeyHandler) Delete(c *gin.Context) {
	id, ok := parseKeyID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		klog.Errorf("delete access key failed: id=%d, error=%v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func parseKeyID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func (h *AccessKeyHandler) toResponse(accessKey *model.AccessKey) *AccessKeyResponse {
	return &AccessKeyResponse{
		ID:           accessKey.ID,
		Name:         accessKey.Name,
		Key:          accessKey.MaskedKey(),
		Status:       accessKey.Status,
		RequestCount: accessKey.RequestCount,
		LastUsedAt:   accessKey.LastUsedAt,
		CreatedAt:    accessKey.CreatedAt,
		UpdatedAt:    accessKey.UpdatedAt,
	}
}
