package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/grantforge/backend/internal/service/agency"
	"k8s.io/klog/v2"
)

// AgencyHandler serves the agency requirement templates.
type AgencyHandler struct {
	service *agency.Service
}

func NewAgencyHandler(service *agency.Service) *AgencyHandler {
	return &AgencyHandler{service: service}
}

// AgencySummary is the list-view projection of one agency template.
type AgencySummary struct {
	Code           string `json:"code"`
	Agency         string `json:"agency"`
	Program        string `json:"program"`
	FundingAmount  int    `json:"funding_amount"`
	DurationMonths int    `json:"duration_months"`
	Description    string `json:"description"`
	SectionsCount  int    `json:"sections_count"`
}

// List returns a summary of every supported agency.
func (h *AgencyHandler) List(c *gin.Context) {
	summaries := make([]AgencySummary, 0, len(agency.Supported))
	for _, code := range agency.Supported {
		req, err := h.service.Load(string(code))
		if err != nil {
			klog.Errorf("load agency template failed: code=%s, error=%v", code, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		summaries = append(summaries, AgencySummary{
			Code:           string(code),
			Agency:         req.Agency,
			Program:        req.Program,
			FundingAmount:  req.FundingAmount,
			DurationMonths: req.DurationMonths,
			Description:    req.Description,
			SectionsCount:  len(req.Sections),
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": summaries, "total": len(summaries)})
}

// Get returns the full requirements for one agency code.
func (h *AgencyHandler) Get(c *gin.Context) {
	req, err := h.service.Load(c.Param("code"))
	if err != nil {
		var configErr *agency.ConfigurationError
		if errors.As(err, &configErr) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		klog.Errorf("load agency template failed: code=%s, error=%v", c.Param("code"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": string(req.Code), "requirements": req})
}
