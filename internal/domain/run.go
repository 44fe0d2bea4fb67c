package domain

import "time"

// RunStatus represents the status of a caption run.
// Values include RunStatusRunning, RunStatusCompleted, and RunStatusFailed.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// CaptionRun is the journal record of one invocation over a directory.
type CaptionRun struct {
	ID             string      `gorm:"type:text;primaryKey" json:"id"`
	Root           string      `gorm:"type:text;not null" json:"root"`
	Model          ModelKind   `gorm:"type:text;not null;index" json:"model"`
	Mode           CaptionMode `gorm:"type:text;not null" json:"mode"`
	Status         RunStatus   `gorm:"default:running" json:"status"`
	TotalItems     int         `gorm:"default:0" json:"total_items"`
	ProcessedItems int         `gorm:"default:0" json:"processed_items"`
	SkippedItems   int         `gorm:"default:0" json:"skipped_items"`
	FailedItems    int         `gorm:"default:0" json:"failed_items"`
	StartedAt      *time.Time  `json:"started_at,omitempty"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
	ErrorLog       string      `json:"error_log,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// TableName returns the database table name for CaptionRun.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (CaptionRun) TableName() string {
	return "caption_runs"
}
