package handler

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/grantforge/backend/internal/model"
	"github.com/grantforge/backend/internal/repository"
	"github.com/grantforge/backend/internal/service"
	"gorm.io/gorm"
)

func setupAccessKeyRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	if err := db.AutoMigrate(&model.AccessKey{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	svc := service.NewAccessKeyService(repository.NewAccessKeyRepository(db), "handler-salt")
	handler := NewAccessKeyHandler(svc)

	router := gin.New()
	handler.RegisterRoutes(router.Group("/api"))
	return router
}

func TestAccessKeyHandlerCreate(t *testing.T) {
	router := setupAccessKeyRouter(t)

	w := doRequest(t, router, http.MethodPost, "/api/access-keys", gin.H{"name": "ci-pipeline"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Key       string            `json:"key"`
		AccessKey AccessKeyResponse `json:"access_key"`
	}
	decodeBody(t, w, &resp)
	if !strings.HasPrefix(resp.Key, "gf_") {
		t.Errorf("plaintext key = %q, want gf_ prefix", resp.Key)
	}
	if resp.AccessKey.Name != "ci-pipeline" || resp.AccessKey.Status != "enabled" {
		t.Errorf("access_key = %+v", resp.AccessKey)
	}
	if resp.AccessKey.Key == resp.Key || !strings.Contains(resp.AccessKey.Key, "***") {
		t.Errorf("stored view should be masked, got %q", resp.AccessKey.Key)
	}
}

func TestAccessKeyHandlerCreateRequiresName(t *testing.T) {
	router := setupAccessKeyRouter(t)

	w := doRequest(t, router, http.MethodPost, "/api/access-keys", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestAccessKeyHandlerCreateDuplicateName(t *testing.T) {
	router := setupAccessKeyRouter(t)

	if w := doRequest(t, router, http.MethodPost, "/api/access-keys", gin.H{"name": "ci"}); w.Code != http.StatusCreated {
		t.Fatalf("first create: expected 201, got %d", w.Code)
	}
	w := doRequest(t, router, http.MethodPost, "/api/access-keys", gin.H{"name": "ci"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAccessKeyHandlerListNeverLeaksPlaintext(t *testing.T) {
	router := setupAccessKeyRouter(t)

	created := doRequest(t, router, http.MethodPost, "/api/access-keys", gin.H{"name": "ci"})
	var minted struct {
		Key string `json:"key"`
	}
	decodeBody(t, created, &minted)

	w := doRequest(t, router, http.MethodGet, "/api/access-keys", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Data  []AccessKeyResponse `json:"data"`
		Total int                 `json:"total"`
	}
	decodeBody(t, w, &resp)
	if resp.Total != 1 || len(resp.Data) != 1 {
		t.Fatalf("expected 1 key, got %+v", resp)
	}
	if strings.Contains(w.Body.String(), minted.Key) {
		t.Errorf("plaintext key leaked into list response")
	}
}

func TestAccessKeyHandlerUpdateStatus(t *testing.T) {
	router := setupAccessKeyRouter(t)

	created := doRequest(t, router, http.MethodPost, "/api/access-keys", gin.H{"name": "ci"})
	var minted struct {
		AccessKey AccessKeyResponse `json:"access_key"`
	}
	decodeBody(t, created, &minted)
	path := fmt.Sprintf("/api/access-keys/%d/status", minted.AccessKey.ID)

	if w := doRequest(t, router, http.MethodPatch, path, gin.H{"status": "disabled"}); w.Code != http.StatusOK {
		t.Fatalf("disable: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := doRequest(t, router, http.MethodPatch, path, gin.H{"status": "paused"}); w.Code != http.StatusBadRequest {
		t.Errorf("bogus status: expected 400, got %d", w.Code)
	}
	if w := doRequest(t, router, http.MethodPatch, "/api/access-keys/abc/status", gin.H{"status": "enabled"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %d", w.Code)
	}
	if w := doRequest(t, router, http.MethodPatch, "/api/access-keys/999/status", gin.H{"status": "enabled"}); w.Code != http.StatusNotFound {
		t.Errorf("unknown id: expected 404, got %d", w.Code)
	}
}

func TestAccessKeyHandlerDelete(t *testing.T) {
	router := setupAccessKeyRouter(t)

	created := doRequest(t, router, http.MethodPost, "/api/access-keys", gin.H{"name": "ci"})
	var minted struct {
		AccessKey AccessKeyResponse `json:"access_key"`
	}
	decodeBody(t, created, &minted)
	path := fmt.Sprintf("/api/access-keys/%d", minted.AccessKey.ID)

	if w := doRequest(t, router, http.MethodDelete, path, nil); w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}
	if w := doRequest(t, router, http.MethodDelete, path, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", w.Code)
	}
}
