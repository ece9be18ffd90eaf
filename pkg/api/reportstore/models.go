package reportstore

import (
	"time"
)

// Snapshot is an indexed billing report. The headline figures are
// denormalized into columns for cheap listing queries while the full
// report document is retained as a JSON payload.
type Snapshot struct {
	ID               string     `gorm:"primaryKey" json:"id"`
	GeneratedAt      time.Time  `gorm:"index;not null" json:"generated_at"`
	Path             string     `gorm:"not null" json:"path"`
	TotalChecks      int        `json:"total_checks"`
	TotalWorkflows   int        `json:"total_workflows"`
	TotalRuns        int        `json:"total_runs"`
	BillableCount    int        `json:"billable_count"`
	UsageCount       int        `json:"usage_count"`
	IncludeMissingQC bool       `json:"include_missing_qc"`
	Payload          string     `gorm:"type:text" json:"-"`
	FileModTime      time.Time  `json:"-"`
	IndexedAt        time.Time  `gorm:"not null" json:"indexed_at"`
	ReindexedAt      *time.Time `json:"reindexed_at,omitempty"`
}
