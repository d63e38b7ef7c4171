package dto

import "time"

type ApplyEffectRequest struct {
	EffectID string `json:"effect_id" binding:"required"`
}

type ListJobsRequest struct {
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListEffectsRequest struct {
	Category string `form:"category"`
}

type UploadDTO struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	MimeType         string    `json:"mime_type"`
	FileSize         int64     `json:"file_size"`
	ImageWidth       int       `json:"image_width"`
	ImageHeight      int       `json:"image_height"`
	CreatedAt        time.Time `json:"created_at"`
}

type JobSummaryDTO struct {
	JobID       string     `json:"job_id"`
	EffectID    string     `json:"effect_id"`
	UploadID    string     `json:"upload_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type ListJobsResponse struct {
	Jobs       []JobSummaryDTO `json:"jobs"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type UsageDTO struct {
	UserID             string `json:"user_id"`
	Month              string `json:"month"`
	IsPremium          bool   `json:"is_premium"`
	EffectsUsed        int    `json:"effects_used"`
	PremiumEffectsUsed int    `json:"premium_effects_used"`
	EffectsInFlight    int    `json:"effects_in_flight"`
	MonthlyLimit       *int   `json:"monthly_limit"`
	Remaining          *int   `json:"remaining"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}
