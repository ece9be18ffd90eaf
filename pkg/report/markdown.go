package report

import (
	"fmt"
	"strings"

	"github.com/genolytics/labmetrics/pkg/health"
)

// GenerateMarkdown renders the report as a markdown summary suitable
// for sharing in an account review.
func GenerateMarkdown(r *Report) string {
	var sb strings.Builder

	sb.Grow(4096)

	writeTitle(&sb, r)
	writeDatasetOverview(&sb, r)
	writeBillingSummary(&sb, r)
	writeSensitivity(&sb, r)
	writeHealthDashboard(&sb, r.Health)
	writeDrilldown(&sb, r)

	return sb.String()
}

func writeTitle(sb *strings.Builder, r *Report) {
	fmt.Fprintf(sb, "# Billing & Health Report: %s\n\n", r.ID)
	fmt.Fprintf(sb, "Generated: %s\n\n",
		r.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
}

func writeDatasetOverview(sb *strings.Builder, r *Report) {
	sb.WriteString("## Dataset\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|---|---|\n")
	fmt.Fprintf(sb, "| QC checks | %d |\n", r.TotalChecks)
	fmt.Fprintf(sb, "| Workflows | %d |\n", r.TotalWorkflows)
	fmt.Fprintf(sb, "| Runs | %d |\n", r.TotalRuns)

	if r.Join.DroppedChecks > 0 {
		fmt.Fprintf(sb, "| Checks dropped (unresolved run id) | %d |\n",
			r.Join.DroppedChecks)
	}

	if r.Join.DroppedRuns > 0 {
		fmt.Fprintf(sb, "| Runs dropped (no run id) | %d |\n",
			r.Join.DroppedRuns)
	}

	sb.WriteString("\n")
}

func writeBillingSummary(sb *strings.Builder, r *Report) {
	sb.WriteString("## Billing Summary\n\n")

	policy := "conservative (pass QC only)"
	if r.IncludeMissingQC {
		policy = "inclusive (pass + missing QC)"
	}

	fmt.Fprintf(sb, "Policy: %s\n\n", policy)
	fmt.Fprintf(sb, "- Billable samples: %d\n", r.BillableCount)
	fmt.Fprintf(sb, "- Usage samples (live, finished): %d\n\n", r.UsageCount)

	if len(r.MonthlyBillable) > 0 {
		sb.WriteString("| Month | Billable |\n")
		sb.WriteString("|---|---|\n")

		for _, m := range r.MonthlyBillable {
			fmt.Fprintf(sb, "| %s | %d |\n", m.MonthKey, m.Count)
		}

		sb.WriteString("\n")
	}

	if len(r.SampleTypes) > 0 {
		sb.WriteString("| Sample Type | Count |\n")
		sb.WriteString("|---|---|\n")

		for _, st := range r.SampleTypes {
			fmt.Fprintf(sb, "| %s | %d |\n", st.SampleType, st.Count)
		}

		sb.WriteString("\n")
	}
}

func writeSensitivity(sb *strings.Builder, r *Report) {
	sb.WriteString("## QC Sensitivity\n\n")

	s := r.Sensitivity
	if s == nil || s.NoData {
		sb.WriteString("No finished live runs — no data.\n\n")

		return
	}

	fmt.Fprintf(sb, "In finished live runs (%d samples):\n\n", s.TotalFinishedLive)
	fmt.Fprintf(sb, "- pass: %d (%.2f%%)\n", s.PassCount, s.PassPct)
	fmt.Fprintf(sb, "- fail: %d (%.2f%%)\n", s.FailCount, s.FailPct)
	fmt.Fprintf(sb, "- missing: %d (%.2f%%)\n\n", s.MissingCount, s.MissingPct)

	fmt.Fprintf(sb, "Inclusive billable: %d, conservative billable: %d — "+
		"%d samples (%.2f%%) hinge on the missing-QC policy.\n\n",
		s.InclusiveCount, s.ConservativeCount, s.Difference, s.PctImpact)

	if len(s.Monthly) > 0 {
		sb.WriteString("| Month | Include Missing | Exclude Missing | Difference |\n")
		sb.WriteString("|---|---|---|---|\n")

		for _, m := range s.Monthly {
			fmt.Fprintf(sb, "| %s | %d | %d | %d |\n",
				m.MonthKey, m.Inclusive, m.Conservative, m.Difference)
		}

		sb.WriteString("\n")
	}
}

func writeHealthDashboard(sb *strings.Builder, m *health.Metrics) {
	sb.WriteString("## Customer Health\n\n")
	sb.WriteString("| Indicator | Value |\n")
	sb.WriteString("|---|---|\n")

	fmt.Fprintf(sb, "| Churn risk | %s |\n", m.ChurnRisk.RiskLevel)
	fmt.Fprintf(sb, "| Consecutive monthly declines | %d |\n",
		m.ChurnRisk.ConsecutiveMonthlyDeclines)
	fmt.Fprintf(sb, "| Latest MoM change | %s |\n",
		fmtPct(m.ChurnRisk.LatestMoMChangePct))
	fmt.Fprintf(sb, "| Workflow utilization | %s |\n",
		fmtPct(m.Engagement.WorkflowUtilizationPct))
	fmt.Fprintf(sb, "| Workflow diversity | %s |\n",
		fmtFloat(m.Engagement.WorkflowDiversityIndex))
	fmt.Fprintf(sb, "| Growth trajectory | %s |\n", m.Growth.Trajectory)
	fmt.Fprintf(sb, "| Recent growth | %s |\n",
		fmtPct(m.Growth.RecentGrowthPct))
	fmt.Fprintf(sb, "| Operational status | %s |\n",
		m.OperationalHealth.Status)
	fmt.Fprintf(sb, "| Latest success rate | %s |\n",
		fmtPct(m.OperationalHealth.LatestSuccessRate))
	fmt.Fprintf(sb, "| Concentration risk | %s |\n", m.Concentration.Risk)
	fmt.Fprintf(sb, "| Top workflow share | %s |\n",
		fmtPct(m.Concentration.TopWorkflowPct))
	fmt.Fprintf(sb, "| Maturity | %s |\n", m.Maturity.Level)
	fmt.Fprintf(sb, "| Avg workflow age | %s days |\n",
		fmtFloat(m.Maturity.AvgWorkflowAgeDays))
	sb.WriteString("\n")
}

func writeDrilldown(sb *strings.Builder, r *Report) {
	d := r.SampleTypeDrilldown
	if d == nil {
		return
	}

	fmt.Fprintf(sb, "## Sample Type Drilldown: %s\n\n", d.SampleType)

	if d.Total == 0 {
		sb.WriteString("No billable samples of this type.\n")

		return
	}

	fmt.Fprintf(sb, "%d billable samples across %d workflows.\n\n",
		d.Total, len(d.Workflows))

	sb.WriteString("| Workflow | Count | First Seen | Last Seen |\n")
	sb.WriteString("|---|---|---|---|\n")

	for _, wf := range d.Workflows {
		fmt.Fprintf(sb, "| %s | %d | %s | %s |\n",
			wf.WorkflowName, wf.Count,
			wf.FirstSeen.Format("2006-01-02"),
			wf.LastSeen.Format("2006-01-02"))
	}

	sb.WriteString("\n")
}

// fmtPct formats a nullable percentage; "n/a" when the underlying
// denominator was empty.
func fmtPct(v *float64) string {
	if v == nil {
		return "n/a"
	}

	return fmt.Sprintf("%.2f%%", *v)
}

func fmtFloat(v *float64) string {
	if v == nil {
		return "n/a"
	}

	return fmt.Sprintf("%.2f", *v)
}
