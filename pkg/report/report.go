// Package report assembles the billing and customer-health analysis
// into one artifact: a JSON report (consumed by the API layer), a
// markdown summary, and rendered terminal tables.
package report

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/genolytics/labmetrics/pkg/billing"
	"github.com/genolytics/labmetrics/pkg/dataset"
	"github.com/genolytics/labmetrics/pkg/health"
)

// Options select the billing policy and optional drilldowns for one
// report build.
type Options struct {
	// IncludeMissingQC selects the inclusive billable policy for the
	// headline counts. The sensitivity section always compares both
	// policies regardless.
	IncludeMissingQC bool

	// BreakdownSampleType, when set, adds a per-workflow drilldown for
	// that sample type over the billable subset.
	BreakdownSampleType string

	// Now anchors workflow-age computations. Zero means time.Now.
	Now time.Time
}

// SampleTypeCount is one entry of the billable sample-type distribution.
type SampleTypeCount struct {
	SampleType string `json:"sample_type"`
	Count      int    `json:"count"`
}

// Report is the complete analysis artifact for one dataset.
type Report struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`

	TotalChecks    int               `json:"total_checks"`
	TotalWorkflows int               `json:"total_workflows"`
	TotalRuns      int               `json:"total_runs"`
	Join           billing.JoinStats `json:"join"`

	IncludeMissingQC bool `json:"include_missing_qc"`
	BillableCount    int  `json:"billable_count"`
	UsageCount       int  `json:"usage_count"`

	MonthlyBillable []billing.MonthlyCount `json:"monthly_billable"`
	SampleTypes     []SampleTypeCount      `json:"sample_types"`

	SampleTypeDrilldown *billing.SampleTypeBreakdown `json:"sample_type_drilldown,omitempty"`
	Sensitivity         *billing.SensitivityReport   `json:"sensitivity"`
	Health              *health.Metrics              `json:"health"`
}

// Build runs the full classification and aggregation pipeline over a
// loaded dataset. It is a pure function of its inputs apart from the
// generated report id.
func Build(log logrus.FieldLogger, ds *dataset.Dataset, opts Options) *Report {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	rows, joinStats := billing.Join(log, ds)

	billable := billing.Billable(rows, billing.Options{
		IncludeMissingQC: opts.IncludeMissingQC,
	})
	usage := billing.Usage(rows)

	r := &Report{
		ID:               uuid.NewString(),
		GeneratedAt:      now,
		TotalChecks:      len(ds.Checks),
		TotalWorkflows:   len(ds.Workflows),
		TotalRuns:        len(ds.Runs),
		Join:             joinStats,
		IncludeMissingQC: opts.IncludeMissingQC,
		BillableCount:    len(billable),
		UsageCount:       len(usage),
		MonthlyBillable:  monthlyCounts(billable),
		SampleTypes:      sampleTypeDistribution(billable),
		Sensitivity:      billing.AnalyzeQCSensitivity(rows),
		Health:           health.Calculate(usage, ds.Runs, ds.Workflows, now),
	}

	if opts.BreakdownSampleType != "" {
		r.SampleTypeDrilldown = billing.BreakdownBySampleType(
			billable, opts.BreakdownSampleType,
		)
	}

	log.WithField("billable", r.BillableCount).
		WithField("usage", r.UsageCount).
		WithField("churn_risk", r.Health.ChurnRisk.RiskLevel).
		Info("Report built")

	return r
}

// monthlyCounts buckets rows by check-timestamp month.
func monthlyCounts(rows []billing.JoinedRecord) []billing.MonthlyCount {
	byMonth := make(map[dataset.Month]int)

	for _, row := range rows {
		if row.Timestamp.IsZero() {
			continue
		}

		byMonth[dataset.MonthOf(row.Timestamp)]++
	}

	out := make([]billing.MonthlyCount, 0, len(byMonth))
	for _, m := range dataset.SortMonths(byMonth) {
		out = append(out, billing.MonthlyCount{
			Month:    m,
			MonthKey: m.String(),
			Count:    byMonth[m],
		})
	}

	return out
}

// sampleTypeDistribution tallies billable rows per sample type,
// largest first.
func sampleTypeDistribution(billable []billing.JoinedRecord) []SampleTypeCount {
	counts := make(map[string]int)
	for _, row := range billable {
		counts[row.SampleType]++
	}

	out := make([]SampleTypeCount, 0, len(counts))
	for st, c := range counts {
		out = append(out, SampleTypeCount{SampleType: st, Count: c})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}

		return out[i].SampleType < out[j].SampleType
	})

	return out
}
