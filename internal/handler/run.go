package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/grantforge/backend/internal/repository"
	"github.com/grantforge/backend/internal/service"
	"github.com/grantforge/backend/internal/service/agency"
	"github.com/grantforge/backend/internal/service/orchestrator"
	"github.com/grantforge/backend/internal/service/statemachine"
	"k8s.io/klog/v2"
)

// RunHandler serves the generation run API. Runs are addressed by their
// public UUID, never by the database row id.
type RunHandler struct {
	service *service.RunService
}

func NewRunHandler(service *service.RunService) *RunHandler {
	return &RunHandler{service: service}
}

// Create starts a new generation run and returns it in queued state.
func (h *RunHandler) Create(c *gin.Context) {
	var req service.CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		klog.V(6).Infof("create run: invalid request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		klog.Errorf("create run failed: agency=%s, error=%v", req.Agency, err)
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, run)
}

// List returns recent runs, newest first.
func (h *RunHandler) List(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	runs, err := h.service.List(c.Request.Context(), limit)
	if err != nil {
		klog.Errorf("list runs failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": runs, "total": len(runs)})
}

func (h *RunHandler) Get(c *gin.Context) {
	run, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, run)
}

func (h *RunHandler) Cancel(c *gin.Context) {
	if err := h.service.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		klog.Errorf("cancel run failed: id=%s, error=%v", c.Param("id"), err)
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "run canceled"})
}

// Proposal returns the assembled proposal for a completed run.
func (h *RunHandler) Proposal(c *gin.Context) {
	proposal, _, err := h.service.Proposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, proposal)
}

// ProposalMarkdown downloads the proposal as a markdown document.
func (h *RunHandler) ProposalMarkdown(c *gin.Context) {
	proposal, run, err := h.service.Proposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+service.ExportFilename(run)+`"`)
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(service.RenderMarkdown(proposal, run)))
}

// Validate reruns the quality checks against the stored proposal.
func (h *RunHandler) Validate(c *gin.Context) {
	report, err := h.service.ValidateStored(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// Usage returns the run's LLM usage ledger with per-section and
// per-operation rollups.
func (h *RunHandler) Usage(c *gin.Context) {
	records, summary, err := h.service.Usage(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records, "summary": summary})
}

// QueueStatus reports orchestrator queue depth and worker occupancy.
func (h *RunHandler) QueueStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.QueueStatus())
}

// CleanupStuck fails runs that exceeded the processing timeout.
func (h *RunHandler) CleanupStuck(c *gin.Context) {
	timeout := 30 * time.Minute
	if t := c.Query("timeout"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	affected, err := h.service.CleanupStuckRuns(c.Request.Context(), timeout)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "cleanup completed",
		"affected": affected,
		"timeout":  timeout.String(),
	})
}

// statusForError maps service errors onto HTTP statuses. Unknown errors
// stay 500.
func statusForError(err error) int {
	var configErr *agency.ConfigurationError
	var transitionErr *statemachine.InvalidStateTransitionError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidRequest), errors.As(err, &configErr):
		return http.StatusBadRequest
	case errors.As(err, &transitionErr):
		return http.StatusConflict
	case errors.Is(err, orchestrator.ErrQueueFull), errors.Is(err, orchestrator.ErrOrchestratorStopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
