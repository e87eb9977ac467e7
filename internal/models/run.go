package models

import "time"

// Run status values.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// AcquisitionRun records one acquisition against a provider: when it ran,
// where the snapshot landed and how it ended.
type AcquisitionRun struct {
	BaseModel
	// CorrelationID ties log lines and artifacts to this run.
	CorrelationID string `gorm:"type:varchar(36);index" json:"correlation_id"`
	ServerKey     string `gorm:"type:varchar(255);index;not null" json:"server_key"`
	SnapshotDir   string `gorm:"type:varchar(512)" json:"snapshot_dir"`
	Status        string `gorm:"type:varchar(16);not null;default:running" json:"status"`
	StartedAt     time.Time
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	ArtifactCount int        `json:"artifact_count"`
	WarningCount  int        `json:"warning_count"`
	// Error holds the failure reason for failed runs.
	Error string `gorm:"type:text" json:"error,omitempty"`
}

// TableName overrides the GORM table name.
func (AcquisitionRun) TableName() string {
	return "acquisition_runs"
}

// Duration returns the elapsed run time, or zero while still running.
func (r *AcquisitionRun) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
