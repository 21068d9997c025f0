package models

// JobStatus is the lifecycle state of a decode job record.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// DecodeJob is one attempt to decode a container file into a transport
// stream, recorded for history/audit purposes.
type DecodeJob struct {
	BaseModel

	SourcePath     string    `gorm:"not null" json:"source_path"`
	SinkDescriptor string    `gorm:"not null" json:"sink_descriptor"` // e.g. "file:///out.ts" or "s3://bucket/key"
	Status         JobStatus `gorm:"not null;index" json:"status"`

	StartedAt   *Time `json:"started_at,omitempty"`
	CompletedAt *Time `json:"completed_at,omitempty"`
	DurationMs  int64 `json:"duration_ms"`

	PacketsIn  int    `json:"packets_in"`
	PacketsOut int    `json:"packets_out"`
	Rejected   int    `json:"rejected"`
	FailureKind string `json:"failure_kind,omitempty"`
	Error       string `json:"error,omitempty"`
}

// TableName overrides GORM's pluralised default.
func (DecodeJob) TableName() string {
	return "decode_jobs"
}

// Validate checks required fields before a DecodeJob is persisted.
func (j *DecodeJob) Validate() error {
	if j.SourcePath == "" {
		return ErrSourcePathRequired
	}
	if j.SinkDescriptor == "" {
		return ErrSinkDescriptorRequired
	}
	switch j.Status {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
	default:
		return ErrInvalidJobStatus
	}
	return nil
}

// MarkRunning transitions the job to running and stamps the start time.
func (j *DecodeJob) MarkRunning() {
	now := Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
}

// MarkCompleted transitions the job to completed and records final stats.
func (j *DecodeJob) MarkCompleted(packetsIn, packetsOut, rejected int) {
	now := Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.PacketsIn = packetsIn
	j.PacketsOut = packetsOut
	j.Rejected = rejected
	if j.StartedAt != nil {
		j.DurationMs = now.Sub(*j.StartedAt).Milliseconds()
	}
}

// MarkFailed transitions the job to failed and records the failure kind and error.
func (j *DecodeJob) MarkFailed(failureKind string, err error) {
	now := Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.FailureKind = failureKind
	if err != nil {
		j.Error = err.Error()
	}
	if j.StartedAt != nil {
		j.DurationMs = now.Sub(*j.StartedAt).Milliseconds()
	}
}

// IsFinished reports whether the job has reached a terminal status.
func (j *DecodeJob) IsFinished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
