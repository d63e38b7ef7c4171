package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of an effect job.
type JobStatus string

// Job status constants
const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Result metadata keys written by the worker.
const (
	MetaProviderResponse = "provider_response"
	MetaProviderText     = "provider_text"
	MetaPromptUsed       = "prompt_used"
	MetaEffectType       = "effect_type"
	MetaProvider         = "provider"
	MetaModel            = "model"
	MetaAttempts         = "attempts"
	MetaMock             = "mock"
	MetaMimeType         = "mime_type"
)

// Job is one attempt to apply an effect to an upload.
type Job struct {
	ID             string     `db:"id"`
	UploadID       string     `db:"upload_id"`
	EffectID       string     `db:"effect_id"`
	UserID         *string    `db:"user_id"`
	Status         JobStatus  `db:"status"`
	ProcessingTime float64    `db:"processing_time"`
	ErrorDetail    *string    `db:"error_detail"`
	ResultKey      *string    `db:"result_key"`
	ResultMetadata Metadata   `db:"result_metadata"`
	QuotaMonth     *string    `db:"quota_month"`
	QuotaReserved  bool       `db:"quota_reserved"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
	StartedAt      *time.Time `db:"started_at"`
	CompletedAt    *time.Time `db:"completed_at"`
}

// Metadata is free-form result data stored as a JSON document.
type Metadata map[string]any

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported metadata type %T", src)
	}
	if len(raw) == 0 {
		*m = Metadata{}
		return nil
	}
	out := Metadata{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("unmarshal metadata: %w", err)
	}
	*m = out
	return nil
}

// JobHandle is returned to the submitter; it is the only way to observe a job.
type JobHandle struct {
	JobID  string    `json:"job_id"`
	Status JobStatus `json:"status"`
}

// JobStatusView is the caller-visible projection of a job.
type JobStatusView struct {
	JobID                 string    `json:"job_id"`
	Status                JobStatus `json:"status"`
	EffectName            string    `json:"effect_name"`
	ResultURL             string    `json:"result_url,omitempty"`
	ProcessingTimeSeconds *float64  `json:"processing_time_seconds,omitempty"`
	ErrorDetail           string    `json:"error_detail,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}
