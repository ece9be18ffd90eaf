package report

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/genolytics/labmetrics/pkg/health"
)

// RenderSensitivityTable writes the monthly inclusive-vs-conservative
// comparison to w as a terminal table.
func RenderSensitivityTable(w io.Writer, r *Report) {
	if r.Sensitivity == nil || r.Sensitivity.NoData {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("QC Sensitivity (monthly)")
	t.AppendHeader(table.Row{"Month", "Include Missing", "Exclude Missing", "Difference"})

	for _, m := range r.Sensitivity.Monthly {
		t.AppendRow(table.Row{m.MonthKey, m.Inclusive, m.Conservative, m.Difference})
	}

	t.AppendFooter(table.Row{
		"Total",
		r.Sensitivity.InclusiveCount,
		r.Sensitivity.ConservativeCount,
		r.Sensitivity.Difference,
	})
	t.Render()
}

// RenderHealthTable writes the health dashboard to w.
func RenderHealthTable(w io.Writer, m *health.Metrics) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Customer Health")
	t.AppendHeader(table.Row{"Indicator", "Value"})

	t.AppendRow(table.Row{"Churn risk", string(m.ChurnRisk.RiskLevel)})
	t.AppendRow(table.Row{"Latest MoM change", fmtPct(m.ChurnRisk.LatestMoMChangePct)})
	t.AppendRow(table.Row{"Workflow utilization", fmtPct(m.Engagement.WorkflowUtilizationPct)})
	t.AppendRow(table.Row{"Workflow diversity", fmtFloat(m.Engagement.WorkflowDiversityIndex)})
	t.AppendRow(table.Row{"Growth trajectory", string(m.Growth.Trajectory)})
	t.AppendRow(table.Row{"Operational status", string(m.OperationalHealth.Status)})
	t.AppendRow(table.Row{"Latest success rate", fmtPct(m.OperationalHealth.LatestSuccessRate)})
	t.AppendRow(table.Row{"Concentration risk", string(m.Concentration.Risk)})
	t.AppendRow(table.Row{"Maturity", string(m.Maturity.Level)})
	t.Render()
}

// RenderMonthlyUsageTable writes the monthly usage aggregates to w.
func RenderMonthlyUsageTable(w io.Writer, m *health.Metrics) {
	if len(m.MonthlyUsage) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Monthly Usage")
	t.AppendHeader(table.Row{"Month", "Samples", "Runs", "Workflows", "MoM"})

	for _, mu := range m.MonthlyUsage {
		t.AppendRow(table.Row{
			mu.MonthKey, mu.Samples, mu.UniqueRuns, mu.UniqueWorkflows,
			fmtPct(mu.MoMChangePct),
		})
	}

	t.Render()
}
