// Package handlers implements the HTTP API surface for submitting and
// tracking decode jobs.
package handlers

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jmylchreest/dvrtsdecode/internal/database"
	"github.com/jmylchreest/dvrtsdecode/internal/decodejob"
	"github.com/jmylchreest/dvrtsdecode/internal/models"
)

// DecodeJobHandler handles decode job submission and status API endpoints.
type DecodeJobHandler struct {
	service *decodejob.Service
	jobs    *database.JobRepository
}

// NewDecodeJobHandler creates a new decode job handler.
func NewDecodeJobHandler(service *decodejob.Service, jobs *database.JobRepository) *DecodeJobHandler {
	return &DecodeJobHandler{service: service, jobs: jobs}
}

// Register registers the decode job routes with the Huma API.
func (h *DecodeJobHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "submitDecodeJob",
		Method:      "POST",
		Path:        "/api/v1/jobs",
		Summary:     "Submit a decode job",
		Description: "Decodes a DVR container file at source_path into a transport stream at the configured sink, synchronously, and returns the completed job record.",
		Tags:        []string{"Jobs"},
	}, h.SubmitJob)

	huma.Register(api, huma.Operation{
		OperationID: "getDecodeJob",
		Method:      "GET",
		Path:        "/api/v1/jobs/{id}",
		Summary:     "Get decode job status",
		Description: "Returns the history record for a single decode job by ID.",
		Tags:        []string{"Jobs"},
	}, h.GetJob)

	huma.Register(api, huma.Operation{
		OperationID: "listDecodeJobs",
		Method:      "GET",
		Path:        "/api/v1/jobs",
		Summary:     "List decode jobs",
		Description: "Returns the most recent decode job history records, newest first.",
		Tags:        []string{"Jobs"},
	}, h.ListJobs)
}

// Submit types

// SubmitJobInput is the input for submitting a decode job.
type SubmitJobInput struct {
	Body struct {
		SourcePath string `json:"source_path" doc:"Path to the DVR container file to decode"`
		Dest       string `json:"dest" doc:"Sink destination: a local output path for the file sink, or an object key for the S3 sink"`
	}
}

// SubmitJobOutput is the output for submitting a decode job.
type SubmitJobOutput struct {
	Body *models.DecodeJob
}

// SubmitJob runs a decode job to completion and returns its history record.
// The decode pipeline has no notion of a background queue (spec.md's
// external interface is a synchronous library call); this endpoint blocks
// for the duration of the decode.
func (h *DecodeJobHandler) SubmitJob(ctx context.Context, input *SubmitJobInput) (*SubmitJobOutput, error) {
	if input.Body.SourcePath == "" {
		return nil, huma.Error400BadRequest("source_path is required")
	}
	if input.Body.Dest == "" {
		return nil, huma.Error400BadRequest("dest is required")
	}

	job, err := h.service.Submit(ctx, input.Body.SourcePath, input.Body.Dest)
	if job == nil {
		return nil, huma.Error500InternalServerError("failed to submit decode job", err)
	}

	return &SubmitJobOutput{Body: job}, nil
}

// Get types

// GetJobInput is the input for fetching a decode job by ID.
type GetJobInput struct {
	ID string `path:"id" doc:"Decode job ULID"`
}

// GetJobOutput is the output for fetching a decode job by ID.
type GetJobOutput struct {
	Body *models.DecodeJob
}

// GetJob returns the history record for one decode job.
func (h *DecodeJobHandler) GetJob(ctx context.Context, input *GetJobInput) (*GetJobOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid job id", err)
	}

	job, err := h.jobs.Get(ctx, id)
	if err != nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("decode job %s not found", input.ID))
	}

	return &GetJobOutput{Body: job}, nil
}

// List types

// ListJobsInput is the input for listing decode jobs.
type ListJobsInput struct {
	Limit int `query:"limit" doc:"Maximum number of records to return" default:"50"`
}

// ListJobsOutput is the output for listing decode jobs.
type ListJobsOutput struct {
	Body struct {
		Jobs []*models.DecodeJob `json:"jobs"`
	}
}

// ListJobs returns the most recent decode job history records.
func (h *DecodeJobHandler) ListJobs(ctx context.Context, input *ListJobsInput) (*ListJobsOutput, error) {
	jobs, err := h.jobs.List(ctx, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list decode jobs", err)
	}

	return &ListJobsOutput{
		Body: struct {
			Jobs []*models.DecodeJob `json:"jobs"`
		}{Jobs: jobs},
	}, nil
}
