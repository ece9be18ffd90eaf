// Package dataset defines the three laboratory record sets this tool
// analyzes (quality-check events, workflow definitions, processing
// runs) and loads them from CSV exports. Records are immutable once
// loaded; every downstream view is a fresh projection.
package dataset

import "time"

// QCStatus is the disposition of a quality check. An absent value is a
// first-class state, never coerced to pass or fail.
type QCStatus string

const (
	QCPass    QCStatus = "pass"
	QCFail    QCStatus = "fail"
	QCMissing QCStatus = "missing"
)

// Outcome is the terminal state of a processing run.
type Outcome string

const (
	OutcomeFinished Outcome = "finished"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// CheckRecord is one quality-check event. It belongs to exactly one run
// by RunID and references a workflow only transitively through that run.
type CheckRecord struct {
	RunID      string
	Timestamp  time.Time
	QCStatus   QCStatus
	SampleType string
}

// WorkflowRecord is one workflow definition. The environment is never
// stored on the record; it is derived from WorkflowName at join time.
type WorkflowRecord struct {
	WorkflowID   string
	WorkflowName string
	WorkflowType string
	CreatedAt    time.Time
}

// RunRecord is one execution of a workflow. WorkflowID is parsed out of
// the composite identifier column in the export (token before the first
// whitespace). A run with an empty RunID cannot participate in any
// billing or usage computation.
type RunRecord struct {
	RunID        string
	WorkflowID   string
	WorkflowName string
	Outcome      Outcome
	StartTime    time.Time
	StopTime     time.Time
}

// Dataset bundles the three record sets loaded for one analysis
// invocation.
type Dataset struct {
	Checks    []CheckRecord
	Workflows []WorkflowRecord
	Runs      []RunRecord
}
