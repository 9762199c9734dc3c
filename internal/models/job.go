// -----------------------------------------------------------------------
// Job - Asynchronously tracked unit of section work
// -----------------------------------------------------------------------

package models

import (
	"errors"
	"fmt"
	"time"
)

// JobType is the closed set of work a job can perform
type JobType string

const (
	JobTypeGenerate JobType = "GENERATE"
	JobTypeRefine   JobType = "REFINE"
)

// Valid reports whether t is a known job type
func (t JobType) Valid() bool {
	return t == JobTypeGenerate || t == JobTypeRefine
}

// JobStatus is the lifecycle state of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// IsTerminal returns true for COMPLETED and FAILED
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ErrInvalidTransition is returned when a status change leaves the
// PENDING -> PROCESSING -> COMPLETED|FAILED path.
var ErrInvalidTransition = errors.New("invalid job status transition")

// JobError is the structured failure descriptor exposed to callers
type JobError struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// JobMetadata holds the caller-supplied parameters needed to execute a job
type JobMetadata struct {
	SessionID     string `json:"session_id"`
	CustomerID    string `json:"customer_id"`
	OpportunityID string `json:"opportunity_id"`
	ReportType    string `json:"type"`
	SectionTitle  string `json:"section_title"`
	OriginalText  string `json:"original_text,omitempty"` // base64, REFINE only
	UserPrompt    string `json:"user_prompt,omitempty"`   // REFINE only
}

// JobResult is the success payload of a completed job.
// GeneratedSection is set for GENERATE, RefinedSection for REFINE; both are base64 text.
type JobResult struct {
	CustomerID       string `json:"customer_id"`
	OpportunityID    string `json:"opportunity_id"`
	SectionTitle     string `json:"section_title"`
	GeneratedSection string `json:"generated_section,omitempty"`
	RefinedSection   string `json:"refined_section,omitempty"`
}

// Job is the durable record of one submission.
// Result and Error are mutually exclusive and only set once the job is terminal.
type Job struct {
	ID        string      `json:"job_id"`
	Type      JobType     `json:"job_type"`
	Status    JobStatus   `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Result    *JobResult  `json:"result,omitempty"`
	Error     *JobError   `json:"error,omitempty"`
	Metadata  JobMetadata `json:"metadata"`
}

// NewJob creates a PENDING job
func NewJob(id string, jobType JobType, metadata JobMetadata) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        id,
		Type:      jobType,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  metadata,
	}
}

// Start moves a PENDING job to PROCESSING
func (j *Job) Start() error {
	if j.Status != JobStatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobStatusProcessing)
	}
	j.Status = JobStatusProcessing
	j.touch()
	return nil
}

// Complete moves a PROCESSING job to COMPLETED with its result
func (j *Job) Complete(result *JobResult) error {
	if j.Status != JobStatusProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobStatusCompleted)
	}
	j.Status = JobStatusCompleted
	j.Result = result
	j.Error = nil
	j.touch()
	return nil
}

// Fail moves a PROCESSING job to FAILED with a structured error
func (j *Job) Fail(code, message string) error {
	if j.Status != JobStatusProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobStatusFailed)
	}
	j.Status = JobStatusFailed
	j.Result = nil
	j.Error = &JobError{Code: code, Message: message}
	j.touch()
	return nil
}

// touch keeps UpdatedAt strictly increasing even when the clock does not advance
func (j *Job) touch() {
	now := time.Now().UTC()
	if !now.After(j.UpdatedAt) {
		now = j.UpdatedAt.Add(time.Nanosecond)
	}
	j.UpdatedAt = now
}

// Clone returns a deep copy so stores never share records with callers
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.Result != nil {
		r := *j.Result
		c.Result = &r
	}
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	return &c
}
