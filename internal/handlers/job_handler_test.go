package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/models"
)

type fakeJobs struct {
	jobs      map[string]*models.Job
	submitted []models.JobMetadata
	submitErr error
	rejectJob bool
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: make(map[string]*models.Job)}
}

func (f *fakeJobs) Submit(ctx context.Context, requestID string, jobType models.JobType, metadata models.JobMetadata) (*models.Job, bool, error) {
	if f.submitErr != nil {
		return nil, false, f.submitErr
	}
	if job, ok := f.jobs[requestID]; ok && requestID != "" {
		return job, true, nil
	}
	id := requestID
	if id == "" {
		id = "job-generated"
	}
	job := models.NewJob(id, jobType, metadata)
	if f.rejectJob {
		_ = job.Start()
		_ = job.Fail(models.ErrCodeInternal, "job could not be queued: worker queue full")
		f.jobs[id] = job
		return job, false, errors.New("worker queue full")
	}
	f.jobs[id] = job
	f.submitted = append(f.submitted, metadata)
	return job, false, nil
}

func (f *fakeJobs) Status(ctx context.Context, id string) (*models.Job, error) {
	return f.jobs[id], nil
}

type fakeReports map[string]bool

func (r fakeReports) HasReportType(t string) bool { return r[t] }

type response struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func newTestMux(jobs JobService) *http.ServeMux {
	h := NewJobHandler(jobs, fakeReports{"feasibility-report": true}, arbor.NewLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/generate", h.GenerateHandler)
	mux.HandleFunc("POST /api/refine", h.RefineHandler)
	mux.HandleFunc("GET /api/jobs/{id}", h.GetJobHandler)
	mux.HandleFunc("GET /api/health", h.HealthHandler)
	return mux
}

func do(t *testing.T, mux http.Handler, method, path string, body interface{}, headers map[string]string) (int, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

func generateBody() map[string]string {
	return map[string]string{
		"type":           "feasibility-report",
		"customer_id":    "cust-1",
		"opportunity_id": "opp-1",
		"section_title":  "Executive Summary",
	}
}

var session = map[string]string{SessionIDHeader: "s1"}

func TestGenerate_Accepted(t *testing.T) {
	jobs := newFakeJobs()
	code, resp := do(t, newTestMux(jobs), http.MethodPost, "/api/generate", generateBody(), session)

	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, StatusProcessing, resp.Status)
	assert.Equal(t, "job-generated", resp.Data["job_id"])
	require.Len(t, jobs.submitted, 1)
	assert.Equal(t, "s1", jobs.submitted[0].SessionID)
	assert.Equal(t, "Executive Summary", jobs.submitted[0].SectionTitle)
}

func TestGenerate_MissingSessionID(t *testing.T) {
	code, resp := do(t, newTestMux(newFakeJobs()), http.MethodPost, "/api/generate", generateBody(), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, models.ErrCodeBadRequest, resp.Data["error_code"])
}

func TestGenerate_ValidationErrors(t *testing.T) {
	body := generateBody()
	body["type"] = "annual-report"
	delete(body, "section_title")

	code, resp := do(t, newTestMux(newFakeJobs()), http.MethodPost, "/api/generate", body, session)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, models.ErrCodeValidation, resp.Data["error_code"])

	details, ok := resp.Data["details"].([]interface{})
	require.True(t, ok)
	assert.Contains(t, details, `type: unknown report type "annual-report"`)
	assert.Contains(t, details, "section_title: is required")
}

func TestGenerate_MalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewBufferString("{not json"))
	req.Header.Set(SessionIDHeader, "s1")
	rec := httptest.NewRecorder()
	newTestMux(newFakeJobs()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerate_IdempotentResubmission(t *testing.T) {
	jobs := newFakeJobs()
	mux := newTestMux(jobs)
	headers := map[string]string{SessionIDHeader: "s1", RequestIDHeader: "req-1"}

	code, resp := do(t, mux, http.MethodPost, "/api/generate", generateBody(), headers)
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "req-1", resp.Data["job_id"])

	code, resp = do(t, mux, http.MethodPost, "/api/generate", generateBody(), headers)
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, StatusBusy, resp.Status)
	assert.Len(t, jobs.submitted, 1)

	job := jobs.jobs["req-1"]
	require.NoError(t, job.Start())
	require.NoError(t, job.Complete(&models.JobResult{SectionTitle: "Executive Summary", GeneratedSection: "dGV4dA=="}))

	code, resp = do(t, mux, http.MethodPost, "/api/generate", generateBody(), headers)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusReady, resp.Status)
	assert.Equal(t, "dGV4dA==", resp.Data["generated_section"])
}

func TestGenerate_QueueFull(t *testing.T) {
	jobs := newFakeJobs()
	jobs.rejectJob = true

	code, resp := do(t, newTestMux(jobs), http.MethodPost, "/api/generate", generateBody(), session)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, models.ErrCodeInternal, resp.Data["error_code"])
	assert.Equal(t, "job-generated", resp.Data["job_id"])
}

func TestGenerate_StoreFailure(t *testing.T) {
	jobs := newFakeJobs()
	jobs.submitErr = errors.New("disk full")

	code, resp := do(t, newTestMux(jobs), http.MethodPost, "/api/generate", generateBody(), session)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, models.ErrCodeInternal, resp.Data["error_code"])
	assert.NotContains(t, resp.Message, "disk full")
}

func TestRefine_RequiresBase64(t *testing.T) {
	body := map[string]string{
		"type":          "feasibility-report",
		"section_title": "Executive Summary",
		"original_text": "not base64!",
		"prompt":        "shorter",
	}
	code, resp := do(t, newTestMux(newFakeJobs()), http.MethodPost, "/api/refine", body, session)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, resp.Data["details"], "original_text: must be base64 encoded")
}

func TestRefine_Accepted(t *testing.T) {
	jobs := newFakeJobs()
	body := map[string]string{
		"type":          "feasibility-report",
		"section_title": "Executive Summary",
		"original_text": base64.StdEncoding.EncodeToString([]byte("original")),
		"prompt":        "shorter",
	}
	code, resp := do(t, newTestMux(jobs), http.MethodPost, "/api/refine", body, session)
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, string(models.JobTypeRefine), resp.Data["job_type"])
	require.Len(t, jobs.submitted, 1)
	assert.Equal(t, "shorter", jobs.submitted[0].UserPrompt)
	assert.Empty(t, jobs.submitted[0].CustomerID)
}

func TestGetJob_States(t *testing.T) {
	jobs := newFakeJobs()
	mux := newTestMux(jobs)

	pending := models.NewJob("p", models.JobTypeGenerate, models.JobMetadata{})
	jobs.jobs["p"] = pending

	failed := models.NewJob("f", models.JobTypeRefine, models.JobMetadata{})
	require.NoError(t, failed.Start())
	require.NoError(t, failed.Fail(models.ErrCodeInternal, "session not initialized"))
	jobs.jobs["f"] = failed

	done := models.NewJob("d", models.JobTypeRefine, models.JobMetadata{})
	require.NoError(t, done.Start())
	require.NoError(t, done.Complete(&models.JobResult{CustomerID: "c", SectionTitle: "Scope", RefinedSection: "cmVmaW5lZA=="}))
	jobs.jobs["d"] = done

	code, resp := do(t, mux, http.MethodGet, "/api/jobs/p", nil, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusProcessing, resp.Status)
	assert.Equal(t, "PENDING", resp.Data["status"])

	code, resp = do(t, mux, http.MethodGet, "/api/jobs/f", nil, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, models.ErrCodeInternal, resp.Data["error_code"])
	assert.Equal(t, "session not initialized", resp.Data["message"])

	code, resp = do(t, mux, http.MethodGet, "/api/jobs/d", nil, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusReady, resp.Status)
	assert.Equal(t, "d", resp.Data["job_id"])
	assert.Equal(t, "cmVmaW5lZA==", resp.Data["refined_section"])
	assert.NotContains(t, resp.Data, "generated_section")
}

func TestGetJob_NotFound(t *testing.T) {
	code, resp := do(t, newTestMux(newFakeJobs()), http.MethodGet, "/api/jobs/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, models.ErrCodeJobNotFound, resp.Data["error_code"])
	assert.Equal(t, "missing", resp.Data["job_id"])
}

func TestHealth(t *testing.T) {
	code, resp := do(t, newTestMux(newFakeJobs()), http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusOK, resp.Status)
	assert.Contains(t, resp.Data, "version")
}
