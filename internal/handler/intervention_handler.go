package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mtss-api/internal/models"
	"github.com/noah-isme/mtss-api/internal/service"
	"github.com/noah-isme/mtss-api/pkg/response"
)

type interventionService interface {
	Create(ctx context.Context, tenantID, studentID string, req service.CreateInterventionRequest) (*models.Intervention, error)
	Get(ctx context.Context, tenantID, id string) (*models.Intervention, error)
	ListForStudent(ctx context.Context, tenantID, studentID, status string) ([]models.Intervention, error)
	UpdateStatus(ctx context.Context, tenantID, id string, req service.UpdateInterventionStatusRequest) (*models.Intervention, error)
}

// InterventionHandler exposes intervention endpoints.
type InterventionHandler struct {
	service interventionService
}

// NewInterventionHandler builds a new handler.
func NewInterventionHandler(service interventionService) *InterventionHandler {
	return &InterventionHandler{service: service}
}

// Create godoc
// @Summary Start an intervention for a student
// @Tags Interventions
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.CreateInterventionRequest true "Intervention payload"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/interventions [post]
func (h *InterventionHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.CreateInterventionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "intervention"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), actor.TenantID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// ListForStudent godoc
// @Summary List a student's interventions
// @Tags Interventions
// @Produce json
// @Param id path string true "Student ID"
// @Param status query string false "active, completed or discontinued"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/interventions [get]
func (h *InterventionHandler) ListForStudent(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := h.service.ListForStudent(c.Request.Context(), actor.TenantID, c.Param("id"), c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get an intervention
// @Tags Interventions
// @Produce json
// @Param id path string true "Intervention ID"
// @Success 200 {object} response.Envelope
// @Router /interventions/{id} [get]
func (h *InterventionHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	item, err := h.service.Get(c.Request.Context(), actor.TenantID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// UpdateStatus godoc
// @Summary Change an intervention's status
// @Tags Interventions
// @Accept json
// @Produce json
// @Param id path string true "Intervention ID"
// @Param payload body service.UpdateInterventionStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /interventions/{id}/status [patch]
func (h *InterventionHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.UpdateInterventionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "status"))
		return
	}
	item, err := h.service.UpdateStatus(c.Request.Context(), actor.TenantID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}
