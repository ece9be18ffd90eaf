package billing

import (
	"sort"
	"time"

	"github.com/genolytics/labmetrics/pkg/dataset"
)

// SampleTypeBreakdown drills into the billable subset for one sample
// type. It answers "which workflows are processing this material, and
// since when" — the question a billing dispute over an unexpected
// sample type starts with.
type SampleTypeBreakdown struct {
	SampleType string `json:"sample_type"`
	Total      int    `json:"total"`

	Workflows []WorkflowSampleStats `json:"workflows"`
	Timeline  []MonthlyCount        `json:"timeline"`
}

// WorkflowSampleStats summarizes one workflow's share of a sample type.
type WorkflowSampleStats struct {
	WorkflowName string    `json:"workflow_name"`
	WorkflowType string    `json:"workflow_type,omitempty"`
	Count        int       `json:"count"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
}

// MonthlyCount is a generic month/count pair used across reports.
type MonthlyCount struct {
	Month    dataset.Month `json:"-"`
	MonthKey string        `json:"month"`
	Count    int           `json:"count"`
}

// BreakdownBySampleType computes the drilldown over an already-filtered
// billable subset. The caller decides which billable policy produced it.
func BreakdownBySampleType(billable []JoinedRecord, sampleType string) *SampleTypeBreakdown {
	breakdown := &SampleTypeBreakdown{SampleType: sampleType}

	perWorkflow := make(map[string]*WorkflowSampleStats)
	timeline := make(map[dataset.Month]int)

	for _, row := range billable {
		if row.SampleType != sampleType {
			continue
		}

		breakdown.Total++

		name := row.RunWorkflowName

		stats, ok := perWorkflow[name]
		if !ok {
			stats = &WorkflowSampleStats{
				WorkflowName: name,
				WorkflowType: row.WorkflowType,
				FirstSeen:    row.Timestamp,
				LastSeen:     row.Timestamp,
			}
			perWorkflow[name] = stats
		}

		stats.Count++

		if !row.Timestamp.IsZero() {
			if stats.FirstSeen.IsZero() || row.Timestamp.Before(stats.FirstSeen) {
				stats.FirstSeen = row.Timestamp
			}

			if row.Timestamp.After(stats.LastSeen) {
				stats.LastSeen = row.Timestamp
			}

			timeline[dataset.MonthOf(row.Timestamp)]++
		}
	}

	for _, stats := range perWorkflow {
		breakdown.Workflows = append(breakdown.Workflows, *stats)
	}

	// Largest contributors first; name breaks ties deterministically.
	sort.Slice(breakdown.Workflows, func(i, j int) bool {
		if breakdown.Workflows[i].Count != breakdown.Workflows[j].Count {
			return breakdown.Workflows[i].Count > breakdown.Workflows[j].Count
		}

		return breakdown.Workflows[i].WorkflowName < breakdown.Workflows[j].WorkflowName
	})

	for _, m := range dataset.SortMonths(timeline) {
		breakdown.Timeline = append(breakdown.Timeline, MonthlyCount{
			Month:    m,
			MonthKey: m.String(),
			Count:    timeline[m],
		})
	}

	return breakdown
}
