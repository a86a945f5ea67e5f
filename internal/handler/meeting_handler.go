package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mtss-api/internal/models"
	"github.com/noah-isme/mtss-api/internal/service"
	"github.com/noah-isme/mtss-api/pkg/response"
)

type meetingService interface {
	Create(ctx context.Context, actor models.Actor, req service.CreateMeetingRequest) (*models.Meeting, error)
	Get(ctx context.Context, tenantID, id string) (*models.Meeting, error)
	ListForStudent(ctx context.Context, tenantID, studentID string) ([]models.Meeting, error)
}

// MeetingHandler exposes MTSS team meeting endpoints.
type MeetingHandler struct {
	service meetingService
}

// NewMeetingHandler builds a new handler.
func NewMeetingHandler(service meetingService) *MeetingHandler {
	return &MeetingHandler{service: service}
}

// Create godoc
// @Summary Record a meeting with its intervention reviews
// @Tags Meetings
// @Accept json
// @Produce json
// @Param payload body service.CreateMeetingRequest true "Meeting payload"
// @Success 201 {object} response.Envelope
// @Router /meetings [post]
func (h *MeetingHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.CreateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "meeting"))
		return
	}
	meeting, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Params = append(c.Params, gin.Param{Key: "id", Value: meeting.ID})
	response.Created(c, meeting)
}

// Get godoc
// @Summary Get a meeting
// @Tags Meetings
// @Produce json
// @Param id path string true "Meeting ID"
// @Success 200 {object} response.Envelope
// @Router /meetings/{id} [get]
func (h *MeetingHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	meeting, err := h.service.Get(c.Request.Context(), actor.TenantID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meeting, nil)
}

// ListForStudent godoc
// @Summary List a student's meetings
// @Tags Meetings
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/meetings [get]
func (h *MeetingHandler) ListForStudent(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	meetings, err := h.service.ListForStudent(c.Request.Context(), actor.TenantID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meetings, nil)
}
