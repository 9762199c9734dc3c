// -----------------------------------------------------------------------
// Job dispatcher - Submits jobs to the worker pool and drives their lifecycle
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/interfaces"
	"github.com/ternarybob/quill/internal/models"
	"github.com/ternarybob/quill/internal/services/sections"
	"github.com/ternarybob/quill/internal/storage/errs"
	"github.com/ternarybob/quill/internal/worker"
)

// ErrUnknownJobType is returned for a job type outside GENERATE and REFINE
var ErrUnknownJobType = errors.New("unknown job type")

// Queue accepts work for asynchronous execution without blocking
type Queue interface {
	Submit(id string, task worker.Task) error
}

// Pipeline advances and persists session checkpoints
type Pipeline interface {
	Prepare(ctx context.Context, sessionID, customerID, opportunityID string) (*models.SessionState, error)
	Load(ctx context.Context, sessionID string) (*models.SessionState, error)
	Commit(ctx context.Context, state *models.SessionState, delta *models.SessionDelta) (*models.SessionState, error)
}

// SectionWriter produces section text from a prepared session
type SectionWriter interface {
	Generate(ctx context.Context, state *models.SessionState, req sections.GenerateRequest) (*sections.GenerateOutput, *models.SessionDelta, error)
	Refine(ctx context.Context, state *models.SessionState, req sections.RefineRequest) (*sections.RefineOutput, error)
}

// Dispatcher owns job submission and the PENDING -> PROCESSING -> COMPLETED|FAILED protocol
type Dispatcher struct {
	store    interfaces.JobStorage
	queue    Queue
	pipeline Pipeline
	sections SectionWriter
	events   interfaces.EventPublisher
	locks    *sessionLocks
	logger   arbor.ILogger
}

func NewDispatcher(
	store interfaces.JobStorage,
	queue Queue,
	pipeline Pipeline,
	sections SectionWriter,
	events interfaces.EventPublisher,
	logger arbor.ILogger,
) *Dispatcher {
	return &Dispatcher{
		store:    store,
		queue:    queue,
		pipeline: pipeline,
		sections: sections,
		events:   events,
		locks:    newSessionLocks(),
		logger:   logger,
	}
}

// Submit creates a job and enqueues it. When requestID names an existing job that
// job is returned with existed=true and nothing is enqueued. A full queue fails
// the job immediately and returns it alongside the error.
func (d *Dispatcher) Submit(ctx context.Context, requestID string, jobType models.JobType, metadata models.JobMetadata) (*models.Job, bool, error) {
	if !jobType.Valid() {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}

	var (
		job *models.Job
		err error
	)
	if requestID != "" {
		if existing, err := d.store.Get(ctx, requestID); err != nil {
			return nil, false, fmt.Errorf("failed to look up job %s: %w", requestID, err)
		} else if existing != nil {
			return existing, true, nil
		}

		job, err = d.store.CreateWithID(ctx, requestID, jobType, metadata)
		if errors.Is(err, errs.ErrJobExists) {
			// Lost a race with a concurrent submission of the same id
			if existing, getErr := d.store.Get(ctx, requestID); getErr == nil && existing != nil {
				return existing, true, nil
			}
		}
	} else {
		job, err = d.store.Create(ctx, jobType, metadata)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create job: %w", err)
	}

	jobID := job.ID
	if err := d.queue.Submit(jobID, func(ctx context.Context) { d.Run(ctx, jobID) }); err != nil {
		d.logger.Warn().Err(err).Str("job_id", jobID).Msg("Job rejected by worker queue")
		failed := d.finish(ctx, job, nil, fmt.Errorf("job could not be queued: %w", err))
		return failed, false, err
	}

	d.logger.Info().
		Str("job_id", jobID).
		Str("job_type", string(jobType)).
		Str("session_id", metadata.SessionID).
		Msg("Job submitted")

	return job, false, nil
}

// Status reads the job record. It returns nil when the job is unknown or expired.
func (d *Dispatcher) Status(ctx context.Context, id string) (*models.Job, error) {
	return d.store.Get(ctx, id)
}

// Run executes one job to a terminal state. Unknown or already started jobs are ignored.
func (d *Dispatcher) Run(ctx context.Context, id string) {
	job, err := d.store.Get(ctx, id)
	if err != nil || job == nil {
		d.logger.Debug().Err(err).Str("job_id", id).Msg("Job not found, nothing to run")
		return
	}

	if err := job.Start(); err != nil {
		d.logger.Debug().Err(err).Str("job_id", id).Msg("Job not pending, skipping")
		return
	}
	if err := d.store.Update(ctx, job); err != nil {
		d.logger.Error().Err(err).Str("job_id", id).Msg("Failed to persist job start")
		return
	}
	d.emit(ctx, interfaces.EventJobProcessing, job)

	started := time.Now()
	result, runErr := d.executeSafely(ctx, job)
	d.finish(ctx, job, result, runErr)

	d.logger.Info().
		Str("job_id", id).
		Str("job_type", string(job.Type)).
		Str("status", string(job.Status)).
		Dur("duration", time.Since(started)).
		Msg("Job finished")
}

// finish moves job to its terminal state and persists it. A PENDING job is started first.
func (d *Dispatcher) finish(ctx context.Context, job *models.Job, result *models.JobResult, runErr error) *models.Job {
	if job.Status == models.JobStatusPending {
		if err := job.Start(); err != nil {
			d.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to start job")
			return job
		}
	}

	event := interfaces.EventJobCompleted
	var err error
	if runErr != nil {
		event = interfaces.EventJobFailed
		d.logger.Error().Err(runErr).Str("job_id", job.ID).Msg("Job failed")
		err = job.Fail(models.ErrCodeInternal, runErr.Error())
	} else {
		err = job.Complete(result)
	}
	if err != nil {
		d.logger.Error().Err(err).Str("job_id", job.ID).Msg("Invalid job transition")
		return job
	}

	if err := d.store.Update(ctx, job); err != nil {
		d.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to persist job result")
	}
	d.emit(ctx, event, job)
	return job
}

// executeSafely converts a panic in job code into an error
func (d *Dispatcher) executeSafely(ctx context.Context, job *models.Job) (result *models.JobResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Str("job_id", job.ID).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", common.GetStackTrace()).
				Msg("PANIC RECOVERED in job execution")
			result = nil
			err = fmt.Errorf("internal error while processing job")
		}
	}()
	return d.execute(ctx, job)
}

func (d *Dispatcher) execute(ctx context.Context, job *models.Job) (*models.JobResult, error) {
	switch job.Type {
	case models.JobTypeGenerate:
		return d.runGenerate(ctx, job)
	case models.JobTypeRefine:
		return d.runRefine(ctx, job)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobType, job.Type)
	}
}

func (d *Dispatcher) runGenerate(ctx context.Context, job *models.Job) (*models.JobResult, error) {
	meta := job.Metadata
	unlock := d.locks.Lock(meta.SessionID)
	defer unlock()

	state, err := d.pipeline.Prepare(ctx, meta.SessionID, meta.CustomerID, meta.OpportunityID)
	if err != nil {
		return nil, fmt.Errorf("session pipeline: %w", err)
	}

	out, delta, err := d.sections.Generate(ctx, state, sections.GenerateRequest{
		ReportType:   meta.ReportType,
		SectionTitle: meta.SectionTitle,
	})
	if err != nil {
		return nil, fmt.Errorf("section generation: %w", err)
	}

	if _, err := d.pipeline.Commit(ctx, state, delta); err != nil {
		return nil, err
	}

	return &models.JobResult{
		CustomerID:       meta.CustomerID,
		OpportunityID:    meta.OpportunityID,
		SectionTitle:     meta.SectionTitle,
		GeneratedSection: base64.StdEncoding.EncodeToString([]byte(out.Content)),
	}, nil
}

func (d *Dispatcher) runRefine(ctx context.Context, job *models.Job) (*models.JobResult, error) {
	meta := job.Metadata
	unlock := d.locks.Lock(meta.SessionID)
	defer unlock()

	state, err := d.pipeline.Load(ctx, meta.SessionID)
	if err != nil {
		return nil, err
	}

	out, err := d.sections.Refine(ctx, state, sections.RefineRequest{
		ReportType:   meta.ReportType,
		SectionTitle: meta.SectionTitle,
		OriginalText: meta.OriginalText,
		UserPrompt:   meta.UserPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("section refinement: %w", err)
	}

	return &models.JobResult{
		CustomerID:     meta.CustomerID,
		OpportunityID:  meta.OpportunityID,
		SectionTitle:   meta.SectionTitle,
		RefinedSection: base64.StdEncoding.EncodeToString([]byte(out.Content)),
	}, nil
}

// emit publishes a lifecycle event. Failures are logged and never reach the job.
func (d *Dispatcher) emit(ctx context.Context, eventType string, job *models.Job) {
	event := interfaces.JobEvent{
		Type:      eventType,
		JobID:     job.ID,
		JobType:   string(job.Type),
		SessionID: job.Metadata.SessionID,
		Status:    string(job.Status),
		Timestamp: job.UpdatedAt,
	}
	if job.Error != nil {
		event.ErrorCode = job.Error.Code
	}
	if err := d.events.Publish(ctx, event); err != nil {
		d.logger.Warn().Err(err).Str("job_id", job.ID).Str("event", eventType).Msg("Failed to publish job event")
	}
}
