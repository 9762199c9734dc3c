package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJob_HappyPathTransitions(t *testing.T) {
	job := NewJob("job-1", JobTypeGenerate, JobMetadata{SessionID: "s1"})
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Nil(t, job.Result)
	assert.Nil(t, job.Error)

	require.NoError(t, job.Start())
	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.Nil(t, job.Result)
	assert.Nil(t, job.Error)

	require.NoError(t, job.Complete(&JobResult{SectionTitle: "Executive Summary"}))
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.NotNil(t, job.Result)
	assert.Nil(t, job.Error)
	assert.True(t, job.UpdatedAt.After(job.CreatedAt))
}

func TestJob_Fail(t *testing.T) {
	job := NewJob("job-1", JobTypeRefine, JobMetadata{})
	require.NoError(t, job.Start())
	require.NoError(t, job.Fail(ErrCodeInternal, "boom"))

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Nil(t, job.Result)
	require.NotNil(t, job.Error)
	assert.Equal(t, ErrCodeInternal, job.Error.Code)
	assert.Equal(t, "boom", job.Error.Message)
}

func TestJob_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(j *Job)
		apply func(j *Job) error
	}{
		{"complete from pending", func(j *Job) {}, func(j *Job) error { return j.Complete(&JobResult{}) }},
		{"fail from pending", func(j *Job) {}, func(j *Job) error { return j.Fail(ErrCodeInternal, "x") }},
		{"start twice", func(j *Job) { _ = j.Start() }, func(j *Job) error { return j.Start() }},
		{"complete after fail", func(j *Job) { _ = j.Start(); _ = j.Fail(ErrCodeInternal, "x") }, func(j *Job) error { return j.Complete(&JobResult{}) }},
		{"fail after complete", func(j *Job) { _ = j.Start(); _ = j.Complete(&JobResult{}) }, func(j *Job) error { return j.Fail(ErrCodeInternal, "x") }},
		{"restart after complete", func(j *Job) { _ = j.Start(); _ = j.Complete(&JobResult{}) }, func(j *Job) error { return j.Start() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewJob("job-1", JobTypeGenerate, JobMetadata{})
			tt.setup(job)
			before := *job

			err := tt.apply(job)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, before.Status, job.Status, "status must not change on a rejected transition")
		})
	}
}

func TestJob_CloneIsIndependent(t *testing.T) {
	job := NewJob("job-1", JobTypeGenerate, JobMetadata{SessionID: "s1"})
	require.NoError(t, job.Start())
	require.NoError(t, job.Complete(&JobResult{SectionTitle: "A"}))

	clone := job.Clone()
	clone.Result.SectionTitle = "B"
	assert.Equal(t, "A", job.Result.SectionTitle)
}
