package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mtss-api/internal/models"
	"github.com/noah-isme/mtss-api/internal/service"
	"github.com/noah-isme/mtss-api/pkg/response"
)

type progressService interface {
	Upsert(ctx context.Context, actor models.Actor, req service.UpsertProgressRequest) (*models.ProgressEntry, error)
	ListForStudent(ctx context.Context, tenantID, studentID string, query service.ListProgressQuery) ([]models.ProgressEntry, error)
	Delete(ctx context.Context, tenantID, id string) error
	SummaryForIntervention(ctx context.Context, tenantID, interventionID string) (*models.ProgressSummary, error)
}

// ProgressHandler exposes the weekly progress ledger.
type ProgressHandler struct {
	service progressService
}

// NewProgressHandler builds a new handler.
func NewProgressHandler(service progressService) *ProgressHandler {
	return &ProgressHandler{service: service}
}

// Upsert godoc
// @Summary Record the weekly progress entry for an intervention
// @Description Any date inside the week is accepted; a second entry for the same week replaces the first.
// @Tags Progress
// @Accept json
// @Produce json
// @Param payload body service.UpsertProgressRequest true "Progress payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /progress [post]
func (h *ProgressHandler) Upsert(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.UpsertProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "progress"))
		return
	}
	entry, err := h.service.Upsert(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// ListForStudent godoc
// @Summary List a student's progress entries, newest week first
// @Tags Progress
// @Produce json
// @Param id path string true "Student ID"
// @Param interventionId query string false "Intervention filter"
// @Param startDate query string false "Inclusive lower bound (YYYY-MM-DD)"
// @Param endDate query string false "Inclusive upper bound (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/progress [get]
func (h *ProgressHandler) ListForStudent(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	query := service.ListProgressQuery{
		InterventionID: c.Query("interventionId"),
		StartDate:      c.Query("startDate"),
		EndDate:        c.Query("endDate"),
	}
	entries, err := h.service.ListForStudent(c.Request.Context(), actor.TenantID, c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Delete godoc
// @Summary Delete a progress entry
// @Tags Progress
// @Param id path string true "Progress entry ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /progress/{id} [delete]
func (h *ProgressHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor.TenantID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Summary godoc
// @Summary Aggregate ledger statistics for an intervention
// @Tags Progress
// @Produce json
// @Param id path string true "Intervention ID"
// @Success 200 {object} response.Envelope
// @Router /interventions/{id}/progress/summary [get]
func (h *ProgressHandler) Summary(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	summary, err := h.service.SummaryForIntervention(c.Request.Context(), actor.TenantID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
