package billing

import (
	"github.com/genolytics/labmetrics/pkg/dataset"
	"github.com/genolytics/labmetrics/pkg/environment"
)

// Options control billing policy variance that used to be hard-coded
// divergently across report call sites.
type Options struct {
	// IncludeMissingQC extends billable to checks with a missing QC
	// disposition. The canonical (conservative) definition leaves this
	// false: pass only.
	IncludeMissingQC bool
}

// Billable returns the subset of rows counted for invoicing: live
// environment (run-side), finished outcome, passing quality check.
//
// This is the single source of truth for "billable". Components that
// need billable rows call this; nothing re-implements the predicate.
func Billable(rows []JoinedRecord, opts Options) []JoinedRecord {
	out := make([]JoinedRecord, 0, len(rows))

	for _, row := range rows {
		if !isFinishedLive(row) {
			continue
		}

		if row.QCStatus == dataset.QCPass ||
			(opts.IncludeMissingQC && row.QCStatus == dataset.QCMissing) {
			out = append(out, row)
		}
	}

	return out
}

// Usage returns the subset counted for customer-activity analysis:
// live environment and finished outcome, regardless of QC disposition
// and sample type. Billable is always a subset of usage.
func Usage(rows []JoinedRecord) []JoinedRecord {
	out := make([]JoinedRecord, 0, len(rows))

	for _, row := range rows {
		if isFinishedLive(row) {
			out = append(out, row)
		}
	}

	return out
}

// isFinishedLive is the shared live+finished predicate. The run-side
// environment drives it; the workflow-side value is retained on the row
// for auditing only.
func isFinishedLive(row JoinedRecord) bool {
	return row.EnvFromRunName == environment.Live &&
		row.Outcome == dataset.OutcomeFinished
}
