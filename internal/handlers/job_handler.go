package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/models"
)

const (
	// SessionIDHeader scopes every submission to a session
	SessionIDHeader = "Session-Id"
	// RequestIDHeader makes a submission idempotent; its value becomes the job id
	RequestIDHeader = "X-Request-Id"

	maxBodyBytes = 16 << 20
)

// JobService submits and reads jobs
type JobService interface {
	Submit(ctx context.Context, requestID string, jobType models.JobType, metadata models.JobMetadata) (*models.Job, bool, error)
	Status(ctx context.Context, id string) (*models.Job, error)
}

// GenerateRequest is the body of POST /api/generate
type GenerateRequest struct {
	Type          string `json:"type" validate:"required,report_type"`
	CustomerID    string `json:"customer_id" validate:"max=200"`
	OpportunityID string `json:"opportunity_id" validate:"max=200"`
	SectionTitle  string `json:"section_title" validate:"required,max=200"`
}

// RefineRequest is the body of POST /api/refine
type RefineRequest struct {
	Type          string `json:"type" validate:"required,report_type"`
	CustomerID    string `json:"customer_id" validate:"max=200"`
	OpportunityID string `json:"opportunity_id" validate:"max=200"`
	SectionTitle  string `json:"section_title" validate:"required,max=200"`
	OriginalText  string `json:"original_text" validate:"required,base64"`
	Prompt        string `json:"prompt" validate:"required"`
}

// JobStatusData describes a job that has not finished
type JobStatusData struct {
	JobID   string `json:"job_id"`
	JobType string `json:"job_type"`
	Status  string `json:"status"`
}

// JobResultData is the data payload of a completed job
type JobResultData struct {
	JobID string `json:"job_id"`
	*models.JobResult
}

// JobHandler serves section job submission and polling
type JobHandler struct {
	jobs      JobService
	validate  *validator.Validate
	logger    arbor.ILogger
	startedAt time.Time
}

func NewJobHandler(jobs JobService, reports ReportTypes, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		jobs:      jobs,
		validate:  newValidator(reports),
		logger:    logger,
		startedAt: time.Now(),
	}
}

// GenerateHandler queues a GENERATE job
// POST /api/generate
func (h *JobHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req GenerateRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.submit(w, r, models.JobTypeGenerate, models.JobMetadata{
		SessionID:     sessionID,
		CustomerID:    req.CustomerID,
		OpportunityID: req.OpportunityID,
		ReportType:    req.Type,
		SectionTitle:  req.SectionTitle,
	})
}

// RefineHandler queues a REFINE job
// POST /api/refine
func (h *JobHandler) RefineHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req RefineRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.submit(w, r, models.JobTypeRefine, models.JobMetadata{
		SessionID:     sessionID,
		CustomerID:    req.CustomerID,
		OpportunityID: req.OpportunityID,
		ReportType:    req.Type,
		SectionTitle:  req.SectionTitle,
		OriginalText:  req.OriginalText,
		UserPrompt:    req.Prompt,
	})
}

// GetJobHandler returns the current state of a job
// GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	job, err := h.jobs.Status(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", id).Msg("Failed to read job")
		WriteError(w, http.StatusInternalServerError, models.ErrCodeInternal, "Failed to read job")
		return
	}
	if job == nil {
		WriteEnvelope(w, http.StatusNotFound, StatusError, "Job not found", ErrorData{
			JobID:     id,
			ErrorCode: models.ErrCodeJobNotFound,
			Message:   "Job not found",
		})
		return
	}

	writeJob(w, http.StatusOK, job)
}

// HealthHandler reports liveness
// GET /api/health
func (h *JobHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	WriteEnvelope(w, http.StatusOK, StatusOK, "healthy", map[string]interface{}{
		"version":            common.CurrentBuild(),
		"uptime_seconds":     int64(time.Since(h.startedAt).Seconds()),
		"background_started": common.GetGoroutineCount(),
	})
}

func (h *JobHandler) submit(w http.ResponseWriter, r *http.Request, jobType models.JobType, metadata models.JobMetadata) {
	requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))

	job, existed, err := h.jobs.Submit(r.Context(), requestID, jobType, metadata)
	if err != nil {
		if job != nil {
			// Created but rejected by the worker queue
			WriteEnvelope(w, http.StatusServiceUnavailable, StatusError, "Job could not be queued", failureData(job))
			return
		}
		h.logger.Error().Err(err).Str("request_id", requestID).Msg("Failed to submit job")
		WriteError(w, http.StatusInternalServerError, models.ErrCodeInternal, "Failed to submit job")
		return
	}

	if existed {
		if !job.Status.IsTerminal() {
			WriteEnvelope(w, http.StatusAccepted, StatusBusy, "Job is still processing", statusData(job))
			return
		}
		writeJob(w, http.StatusOK, job)
		return
	}

	WriteEnvelope(w, http.StatusAccepted, StatusProcessing, "Job accepted", statusData(job))
}

func (h *JobHandler) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := strings.TrimSpace(r.Header.Get(SessionIDHeader))
	if sessionID == "" {
		WriteError(w, http.StatusBadRequest, models.ErrCodeBadRequest, "Session-Id header is required")
		return "", false
	}
	return sessionID, true
}

// decode parses and validates a JSON body, writing 400 or 422 on failure
func (h *JobHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, models.ErrCodeBadRequest, "Invalid JSON body", err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		WriteError(w, http.StatusUnprocessableEntity, models.ErrCodeValidation, "Validation failed", validationDetails(err)...)
		return false
	}
	return true
}

// writeJob maps a job onto the processing, ready or error envelope
func writeJob(w http.ResponseWriter, statusCode int, job *models.Job) {
	switch job.Status {
	case models.JobStatusCompleted:
		WriteEnvelope(w, statusCode, StatusReady, "Section ready", JobResultData{JobID: job.ID, JobResult: job.Result})
	case models.JobStatusFailed:
		WriteEnvelope(w, statusCode, StatusError, "Job failed", failureData(job))
	default:
		WriteEnvelope(w, statusCode, StatusProcessing, "Job is processing", statusData(job))
	}
}

func statusData(job *models.Job) JobStatusData {
	return JobStatusData{JobID: job.ID, JobType: string(job.Type), Status: string(job.Status)}
}

func failureData(job *models.Job) ErrorData {
	data := ErrorData{JobID: job.ID, ErrorCode: models.ErrCodeInternal, Message: "Job failed"}
	if job.Error != nil {
		data.ErrorCode = job.Error.Code
		data.Message = job.Error.Message
	}
	return data
}
