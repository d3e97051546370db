package server

import "github.com/google/uuid"

// HTTPError is the error envelope returned by the server.
type HTTPError struct {
	Detail string `json:"detail"`
}

// AnalyzeRequest submits a policy URL for analysis.
type AnalyzeRequest struct {
	URL     string         `json:"url" validate:"required,url"`
	Options map[string]any `json:"options"`
}

// AnalyzeResponse acknowledges a submitted analysis job.
type AnalyzeResponse struct {
	JobID                uuid.UUID `json:"job_id"`
	Status               string    `json:"status"`
	EstimatedTimeSeconds int       `json:"estimated_time_seconds"`
}

// JobResponse reports the cached status of a job.
type JobResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status string    `json:"status"`
}

// CompareResponse is returned by the comparison endpoint.
type CompareResponse struct {
	Message    string      `json:"message"`
	SummaryIDs []uuid.UUID `json:"summary_ids"`
}

// RootResponse describes the API.
type RootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Docs    string `json:"docs"`
}

// HealthResponse reports backend connectivity.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
	Redis    string `json:"redis,omitempty"`
	Error    string `json:"error,omitempty"`
}
