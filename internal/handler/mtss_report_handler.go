package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mtss-api/internal/models"
	"github.com/noah-isme/mtss-api/internal/service"
	"github.com/noah-isme/mtss-api/pkg/response"
)

type missingLogService interface {
	Report(ctx context.Context, tenantID string) (*models.MissingLogReport, bool, error)
	ReportForDate(ctx context.Context, tenantID, date string) (*models.MissingLogReport, bool, error)
}

type referralService interface {
	Candidates(ctx context.Context, tenantID string) ([]models.ReferralCandidate, bool, error)
	Monitored(ctx context.Context, tenantID string) ([]models.MonitoredStudent, bool, error)
	StartMonitoring(ctx context.Context, actor models.Actor, studentID string, req service.StartMonitoringRequest) (*models.Student, error)
	StopMonitoring(ctx context.Context, tenantID, studentID string) (*models.Student, error)
}

// MTSSReportHandler serves the coordinator reports and the monitoring workflow.
type MTSSReportHandler struct {
	missing  missingLogService
	referral referralService
}

// NewMTSSReportHandler constructs the handler.
func NewMTSSReportHandler(missing missingLogService, referral referralService) *MTSSReportHandler {
	return &MTSSReportHandler{missing: missing, referral: referral}
}

// MissingLogs godoc
// @Summary Active interventions without an entry for the week
// @Tags Reports
// @Produce json
// @Param week query string false "Any date in the target week (defaults to the current week)"
// @Success 200 {object} response.Envelope
// @Router /reports/missing-logs [get]
func (h *MTSSReportHandler) MissingLogs(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var (
		report *models.MissingLogReport
		hit    bool
		err    error
	)
	if week := strings.TrimSpace(c.Query("week")); week != "" {
		report, hit, err = h.missing.ReportForDate(c.Request.Context(), actor.TenantID, week)
	} else {
		report, hit, err = h.missing.Report(c.Request.Context(), actor.TenantID)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, report, hit)
}

// ReferralCandidates godoc
// @Summary Tier-1 students matching an escalation rule
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/referral-candidates [get]
func (h *MTSSReportHandler) ReferralCandidates(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	candidates, hit, err := h.referral.Candidates(c.Request.Context(), actor.TenantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, candidates, hit)
}

// MonitoredStudents godoc
// @Summary Students held in the monitoring state
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/monitored-students [get]
func (h *MTSSReportHandler) MonitoredStudents(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	students, hit, err := h.referral.Monitored(c.Request.Context(), actor.TenantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, students, hit)
}

// StartMonitoring godoc
// @Summary Move a referral candidate into monitoring
// @Tags Monitoring
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.StartMonitoringRequest false "Monitoring notes"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/monitoring [post]
func (h *MTSSReportHandler) StartMonitoring(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.StartMonitoringRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, bindError(err, "monitoring"))
			return
		}
	}
	student, err := h.referral.StartMonitoring(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// StopMonitoring godoc
// @Summary Remove a student from monitoring
// @Tags Monitoring
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/monitoring [delete]
func (h *MTSSReportHandler) StopMonitoring(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	student, err := h.referral.StopMonitoring(c.Request.Context(), actor.TenantID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}
