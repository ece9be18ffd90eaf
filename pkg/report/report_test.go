package report_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genolytics/labmetrics/pkg/dataset"
	"github.com/genolytics/labmetrics/pkg/report"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

// testDataset builds a small dataset with two live runs that have QC
// verdicts across two months, one test-environment run, and one failed
// live run.
func testDataset() *dataset.Dataset {
	april := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	may := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)

	return &dataset.Dataset{
		Workflows: []dataset.WorkflowRecord{
			{
				WorkflowID:   "wf-1",
				WorkflowName: "[LIVE] Oncology Panel",
				WorkflowType: "panel",
				CreatedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			},
			{
				WorkflowID:   "wf-2",
				WorkflowName: "[TEST] Dev Pipeline",
				WorkflowType: "dev",
				CreatedAt:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		Runs: []dataset.RunRecord{
			{
				RunID: "run-1", WorkflowID: "wf-1",
				WorkflowName: "[LIVE] Oncology Panel",
				Outcome:      dataset.OutcomeFinished,
				StartTime:    april,
			},
			{
				RunID: "run-2", WorkflowID: "wf-1",
				WorkflowName: "[LIVE] Oncology Panel",
				Outcome:      dataset.OutcomeFinished,
				StartTime:    may,
			},
			{
				RunID: "run-3", WorkflowID: "wf-2",
				WorkflowName: "[TEST] Dev Pipeline",
				Outcome:      dataset.OutcomeFinished,
				StartTime:    may,
			},
			{
				RunID: "run-4", WorkflowID: "wf-1",
				WorkflowName: "[LIVE] Oncology Panel",
				Outcome:      dataset.OutcomeFailed,
				StartTime:    may,
			},
		},
		Checks: []dataset.CheckRecord{
			{RunID: "run-1", Timestamp: april.Add(time.Hour), QCStatus: dataset.QCPass, SampleType: "blood"},
			{RunID: "run-2", Timestamp: may.Add(time.Hour), QCStatus: dataset.QCPass, SampleType: "saliva"},
			{RunID: "run-2", Timestamp: may.Add(2 * time.Hour), QCStatus: dataset.QCMissing, SampleType: "blood"},
			{RunID: "run-3", Timestamp: may.Add(time.Hour), QCStatus: dataset.QCPass, SampleType: "blood"},
			{RunID: "run-4", Timestamp: may.Add(time.Hour), QCStatus: dataset.QCPass, SampleType: "blood"},
		},
	}
}

func TestBuild(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	r := report.Build(testLogger(), testDataset(), report.Options{Now: now})

	require.NotNil(t, r)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, now, r.GeneratedAt)

	assert.Equal(t, 5, r.TotalChecks)
	assert.Equal(t, 2, r.TotalWorkflows)
	assert.Equal(t, 4, r.TotalRuns)

	// Conservative policy: only live finished runs with a QC pass.
	assert.Equal(t, 2, r.BillableCount)
	assert.Equal(t, 3, r.UsageCount)
	assert.False(t, r.IncludeMissingQC)

	require.Len(t, r.MonthlyBillable, 2)
	assert.Equal(t, "2025-04", r.MonthlyBillable[0].MonthKey)
	assert.Equal(t, 1, r.MonthlyBillable[0].Count)
	assert.Equal(t, "2025-05", r.MonthlyBillable[1].MonthKey)
	assert.Equal(t, 1, r.MonthlyBillable[1].Count)

	require.Len(t, r.SampleTypes, 2)
	assert.Equal(t, "blood", r.SampleTypes[0].SampleType)

	require.NotNil(t, r.Sensitivity)
	assert.Equal(t, 3, r.Sensitivity.TotalFinishedLive)
	assert.Equal(t, 3, r.Sensitivity.InclusiveCount)
	assert.Equal(t, 2, r.Sensitivity.ConservativeCount)
	assert.Equal(t, 1, r.Sensitivity.Difference)

	require.NotNil(t, r.Health)
	assert.Nil(t, r.SampleTypeDrilldown)
}

func TestBuild_InclusivePolicy(t *testing.T) {
	r := report.Build(testLogger(), testDataset(), report.Options{
		IncludeMissingQC: true,
		Now:              time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})

	assert.True(t, r.IncludeMissingQC)
	assert.Equal(t, 3, r.BillableCount)
	assert.Equal(t, 3, r.UsageCount)
}

func TestBuild_Drilldown(t *testing.T) {
	r := report.Build(testLogger(), testDataset(), report.Options{
		BreakdownSampleType: "blood",
		Now:                 time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})

	require.NotNil(t, r.SampleTypeDrilldown)
	assert.Equal(t, "blood", r.SampleTypeDrilldown.SampleType)
	assert.Equal(t, 1, r.SampleTypeDrilldown.Total)
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")

	r := report.Build(testLogger(), testDataset(), report.Options{
		Now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})

	jsonPath, err := report.Write(testLogger(), r, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report-"+r.ID+".json"), jsonPath)

	// The JSON document round-trips.
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)

	var decoded report.Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, r.ID, decoded.ID)
	assert.Equal(t, r.BillableCount, decoded.BillableCount)

	// The markdown summary is written alongside.
	mdPath := filepath.Join(dir, "report-"+r.ID+".md")
	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Billing & Health Report")
}
