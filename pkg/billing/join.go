// Package billing builds the denormalized record view and derives the
// two canonical subsets every downstream computation works from:
// "billable" (what the customer is invoiced for) and "usage" (what
// customer-activity analysis counts). Both definitions live here and
// only here.
package billing

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/genolytics/labmetrics/pkg/dataset"
	"github.com/genolytics/labmetrics/pkg/environment"
)

// JoinedRecord is one quality-check event enriched with its run and,
// through the run's workflow id, its workflow definition.
//
// The environment appears twice on purpose: once derived from the
// workflow definition's name and once from the name duplicated onto the
// run. The two raw name sources can disagree, so both are retained.
// Billing decisions use the run-side value.
type JoinedRecord struct {
	// Check fields.
	RunID      string
	Timestamp  time.Time
	QCStatus   dataset.QCStatus
	SampleType string

	// Run fields.
	WorkflowID      string
	RunWorkflowName string
	Outcome         dataset.Outcome
	StartTime       time.Time
	StopTime        time.Time

	// Workflow fields; zero when the run's workflow id did not resolve.
	WorkflowName      string
	WorkflowType      string
	WorkflowCreatedAt time.Time
	WorkflowResolved  bool

	// Independently derived environment columns.
	EnvFromWorkflowName environment.Label
	EnvFromRunName      environment.Label
}

// JoinStats counts records excluded during the join. Dropped records
// are expected data-quality noise, not errors, but the counts are kept
// observable for auditing.
type JoinStats struct {
	DroppedChecks int `json:"dropped_checks"`
	DroppedRuns   int `json:"dropped_runs"`
}

// Join merges the three record sets into one denormalized view.
//
// Runs with no run id are excluded before anything else; a run whose
// composite workflow id cell was null is treated the same way, as
// having no run id. Checks whose run id does not resolve are dropped
// silently. The run→workflow join is a left join: a run whose workflow
// id does not resolve keeps zero workflow fields and an unknown
// workflow-side environment.
func Join(
	log logrus.FieldLogger,
	ds *dataset.Dataset,
) ([]JoinedRecord, JoinStats) {
	var stats JoinStats

	workflowsByID := make(map[string]dataset.WorkflowRecord, len(ds.Workflows))
	for _, wf := range ds.Workflows {
		workflowsByID[wf.WorkflowID] = wf
	}

	runsByID := make(map[string]dataset.RunRecord, len(ds.Runs))

	for _, run := range ds.Runs {
		// An empty WorkflowID means the composite id cell was null, which
		// marks the run as having no usable id at all. Distinct from an id
		// that simply fails to resolve to a workflow definition.
		if run.RunID == "" || run.WorkflowID == "" {
			stats.DroppedRuns++

			continue
		}

		runsByID[run.RunID] = run
	}

	rows := make([]JoinedRecord, 0, len(ds.Checks))

	for _, check := range ds.Checks {
		run, ok := runsByID[check.RunID]
		if !ok {
			stats.DroppedChecks++

			continue
		}

		row := JoinedRecord{
			RunID:               check.RunID,
			Timestamp:           check.Timestamp,
			QCStatus:            check.QCStatus,
			SampleType:          check.SampleType,
			WorkflowID:          run.WorkflowID,
			RunWorkflowName:     run.WorkflowName,
			Outcome:             run.Outcome,
			StartTime:           run.StartTime,
			StopTime:            run.StopTime,
			EnvFromRunName:      environment.Infer(run.WorkflowName),
			EnvFromWorkflowName: environment.Unknown,
		}

		if wf, ok := workflowsByID[run.WorkflowID]; ok {
			row.WorkflowName = wf.WorkflowName
			row.WorkflowType = wf.WorkflowType
			row.WorkflowCreatedAt = wf.CreatedAt
			row.WorkflowResolved = true
			row.EnvFromWorkflowName = environment.Infer(wf.WorkflowName)
		}

		rows = append(rows, row)
	}

	if stats.DroppedChecks > 0 || stats.DroppedRuns > 0 {
		log.WithField("dropped_checks", stats.DroppedChecks).
			WithField("dropped_runs", stats.DroppedRuns).
			Warn("Join dropped records with unresolved identifiers")
	}

	return rows, stats
}
