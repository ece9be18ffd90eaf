package billing

import (
	"github.com/genolytics/labmetrics/pkg/dataset"
)

// SensitivityReport quantifies how the missing-QC policy changes the
// billable subset.
type SensitivityReport struct {
	// NoData is set when there are no finished live rows at all; every
	// other field is zero in that case.
	NoData bool `json:"no_data"`

	// Partition of the finished-live set by QC disposition.
	TotalFinishedLive int     `json:"total_finished_live"`
	PassCount         int     `json:"pass_count"`
	FailCount         int     `json:"fail_count"`
	MissingCount      int     `json:"missing_count"`
	PassPct           float64 `json:"pass_pct"`
	FailPct           float64 `json:"fail_pct"`
	MissingPct        float64 `json:"missing_pct"`

	// Inclusive counts pass plus missing; conservative is the canonical
	// billable definition (pass only).
	InclusiveCount    int     `json:"inclusive_count"`
	ConservativeCount int     `json:"conservative_count"`
	Difference        int     `json:"difference"`
	PctImpact         float64 `json:"pct_impact"`

	Monthly []MonthlySensitivity `json:"monthly"`
}

// MonthlySensitivity compares the two billable variants for one
// calendar month of check timestamps.
type MonthlySensitivity struct {
	Month        dataset.Month `json:"-"`
	MonthKey     string        `json:"month"`
	Inclusive    int           `json:"inclusive"`
	Conservative int           `json:"conservative"`
	Difference   int           `json:"difference"`
}

// AnalyzeQCSensitivity partitions the finished-live set by QC status
// and compares the inclusive (pass ∪ missing) billable variant against
// the conservative one (pass only).
func AnalyzeQCSensitivity(rows []JoinedRecord) *SensitivityReport {
	finishedLive := Usage(rows)
	if len(finishedLive) == 0 {
		return &SensitivityReport{NoData: true}
	}

	report := &SensitivityReport{
		TotalFinishedLive: len(finishedLive),
	}

	inclusiveMonthly := make(map[dataset.Month]int)
	conservativeMonthly := make(map[dataset.Month]int)

	for _, row := range finishedLive {
		switch row.QCStatus {
		case dataset.QCPass:
			report.PassCount++
		case dataset.QCFail:
			report.FailCount++
		case dataset.QCMissing:
			report.MissingCount++
		}

		if row.Timestamp.IsZero() {
			continue
		}

		month := dataset.MonthOf(row.Timestamp)

		if row.QCStatus == dataset.QCPass || row.QCStatus == dataset.QCMissing {
			inclusiveMonthly[month]++
		}

		if row.QCStatus == dataset.QCPass {
			conservativeMonthly[month]++
		}
	}

	total := float64(report.TotalFinishedLive)
	report.PassPct = float64(report.PassCount) / total * 100
	report.FailPct = float64(report.FailCount) / total * 100
	report.MissingPct = float64(report.MissingCount) / total * 100

	report.InclusiveCount = report.PassCount + report.MissingCount
	report.ConservativeCount = report.PassCount
	report.Difference = report.InclusiveCount - report.ConservativeCount

	if report.InclusiveCount > 0 {
		report.PctImpact = float64(report.Difference) /
			float64(report.InclusiveCount) * 100
	}

	months := make(map[dataset.Month]struct{}, len(inclusiveMonthly))
	for m := range inclusiveMonthly {
		months[m] = struct{}{}
	}

	for m := range conservativeMonthly {
		months[m] = struct{}{}
	}

	for _, m := range dataset.SortMonths(months) {
		report.Monthly = append(report.Monthly, MonthlySensitivity{
			Month:        m,
			MonthKey:     m.String(),
			Inclusive:    inclusiveMonthly[m],
			Conservative: conservativeMonthly[m],
			Difference:   inclusiveMonthly[m] - conservativeMonthly[m],
		})
	}

	return report
}
