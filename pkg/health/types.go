// Package health computes customer-health indicators from the usage
// subset plus the live-environment run and workflow populations. Every
// metric is a pure function of its inputs; ratios with an empty
// denominator are nil, never zero and never a panic.
package health

import "github.com/genolytics/labmetrics/pkg/dataset"

// RiskLevel classifies churn and concentration risk.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "HIGH"
	RiskMedium RiskLevel = "MEDIUM"
	RiskLow    RiskLevel = "LOW"
)

// Trajectory classifies growth acceleration.
type Trajectory string

const (
	TrajectoryAccelerating     Trajectory = "ACCELERATING"
	TrajectoryDecelerating     Trajectory = "DECELERATING"
	TrajectoryStable           Trajectory = "STABLE"
	TrajectoryInsufficientData Trajectory = "INSUFFICIENT_DATA"
)

// OperationalStatus classifies the latest run success rate.
type OperationalStatus string

const (
	StatusHealthy  OperationalStatus = "HEALTHY"
	StatusWarning  OperationalStatus = "WARNING"
	StatusCritical OperationalStatus = "CRITICAL"
	StatusUnknown  OperationalStatus = "UNKNOWN"
)

// MaturityLevel classifies the average age of active workflows.
type MaturityLevel string

const (
	MaturityMature  MaturityLevel = "MATURE"
	MaturityGrowing MaturityLevel = "GROWING"
	MaturityNew     MaturityLevel = "NEW"
	MaturityUnknown MaturityLevel = "UNKNOWN"
)

// Metrics bundles the six independent metric groups plus the monthly
// usage aggregates the trend reports are drawn from.
type Metrics struct {
	ChurnRisk         ChurnRisk         `json:"churn_risk"`
	Engagement        Engagement        `json:"engagement"`
	Growth            Growth            `json:"growth"`
	OperationalHealth OperationalHealth `json:"operational_health"`
	Concentration     Concentration     `json:"concentration"`
	Maturity          Maturity          `json:"maturity"`
	MonthlyUsage      []MonthlyUsage    `json:"monthly_usage"`
}

// MonthlyUsage aggregates the usage subset for one calendar month.
type MonthlyUsage struct {
	Month           dataset.Month `json:"-"`
	MonthKey        string        `json:"month"`
	Samples         int           `json:"samples"`
	UniqueRuns      int           `json:"unique_runs"`
	UniqueWorkflows int           `json:"unique_workflows"`
	MoMChangePct    *float64      `json:"mom_change_pct"`
}

// ChurnRisk captures shrinking-usage signals.
type ChurnRisk struct {
	ConsecutiveMonthlyDeclines int       `json:"consecutive_monthly_declines"`
	LatestMoMChangePct         *float64  `json:"latest_mom_change_pct"`
	ThreeMonthTrend            *float64  `json:"three_month_trend"`
	RiskLevel                  RiskLevel `json:"risk_level"`
}

// Engagement captures how broadly the workflow catalog is exercised.
type Engagement struct {
	ActiveWorkflows        int      `json:"active_workflows"`
	TotalWorkflows         int      `json:"total_workflows"`
	WorkflowUtilizationPct *float64 `json:"workflow_utilization_pct"`
	WorkflowDiversityIndex *float64 `json:"workflow_diversity_index"`
	AvgSamplesPerWorkflow  *float64 `json:"avg_samples_per_workflow"`
}

// Growth captures usage velocity and its second derivative.
type Growth struct {
	RecentGrowthPct    *float64   `json:"recent_growth_pct"`
	OverallGrowthPct   *float64   `json:"overall_growth_pct"`
	GrowthAcceleration *float64   `json:"growth_acceleration"`
	Trajectory         Trajectory `json:"growth_trajectory"`
}

// OperationalHealth captures run success rates over the raw live run
// population. Usage contains finished runs only by construction, so
// this group re-buckets from the run records to see failures.
type OperationalHealth struct {
	LatestSuccessRate *float64          `json:"latest_success_rate"`
	AvgSuccessRate    *float64          `json:"avg_success_rate"`
	SuccessRateTrend  *float64          `json:"success_rate_trend"`
	TotalFailedRuns   int               `json:"total_failed_runs"`
	TotalCanceledRuns int               `json:"total_canceled_runs"`
	Status            OperationalStatus `json:"operational_status"`
	Monthly           []MonthlySuccess  `json:"monthly"`
}

// MonthlySuccess is the per-month run outcome tally.
type MonthlySuccess struct {
	Month       dataset.Month `json:"-"`
	MonthKey    string        `json:"month"`
	TotalRuns   int           `json:"total_runs"`
	Finished    int           `json:"finished"`
	Failed      int           `json:"failed"`
	Canceled    int           `json:"canceled"`
	SuccessRate float64       `json:"success_rate"`
}

// Concentration captures dependence on the top workflows.
type Concentration struct {
	TopWorkflowPct   *float64  `json:"top_workflow_pct"`
	Top3WorkflowsPct *float64  `json:"top_3_workflows_pct"`
	Risk             RiskLevel `json:"concentration_risk"`
	WorkflowCount    int       `json:"workflow_count"`
}

// Maturity captures the age profile of the active workflow set.
type Maturity struct {
	AvgWorkflowAgeDays   *float64      `json:"avg_workflow_age_days"`
	NewWorkflows         int           `json:"new_workflows_count"`
	EstablishedWorkflows int           `json:"established_workflows_count"`
	Level                MaturityLevel `json:"maturity_level"`
}
