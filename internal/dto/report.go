package dto

import (
	"time"

	"github.com/noah-isme/mtss-api/internal/models"
)

// ReportRequest captures the POST /exports payload.
type ReportRequest struct {
	Type           models.ReportType   `json:"type" binding:"required" validate:"required"`
	Format         models.ReportFormat `json:"format" binding:"required" validate:"required"`
	StudentID      *string             `json:"studentId,omitempty"`
	InterventionID *string             `json:"interventionId,omitempty"`
	StartDate      *string             `json:"startDate,omitempty"`
	EndDate        *string             `json:"endDate,omitempty"`
	Week           *string             `json:"week,omitempty"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Type     models.ReportType   `json:"type"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID         string              `json:"id"`
	Type       models.ReportType   `json:"type"`
	Status     models.ReportStatus `json:"status"`
	Progress   int                 `json:"progress"`
	ResultURL  *string             `json:"resultUrl,omitempty"`
	Error      *string             `json:"error,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
	FinishedAt *time.Time          `json:"finishedAt,omitempty"`
}
