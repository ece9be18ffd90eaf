package health

import (
	"sort"
	"time"

	"github.com/genolytics/labmetrics/pkg/billing"
	"github.com/genolytics/labmetrics/pkg/dataset"
	"github.com/genolytics/labmetrics/pkg/environment"
)

// Age thresholds (days) for the maturity classification.
const (
	newWorkflowAgeDays    = 30
	matureAvgAgeDays      = 90
	growingAvgAgeDays     = 30
	accelerationThreshold = 0.05
)

// Calculate computes all six metric groups.
//
// usage is the canonical usage subset (live + finished). runs and
// workflows are the raw populations; the live subsets needed for
// denominators are derived here from their own workflow names. now
// anchors workflow-age computations so results are deterministic.
func Calculate(
	usage []billing.JoinedRecord,
	runs []dataset.RunRecord,
	workflows []dataset.WorkflowRecord,
	now time.Time,
) *Metrics {
	liveWorkflows := make([]dataset.WorkflowRecord, 0, len(workflows))

	for _, wf := range workflows {
		if environment.Infer(wf.WorkflowName) == environment.Live {
			liveWorkflows = append(liveWorkflows, wf)
		}
	}

	liveRuns := make([]dataset.RunRecord, 0, len(runs))

	for _, run := range runs {
		if environment.Infer(run.WorkflowName) == environment.Live {
			liveRuns = append(liveRuns, run)
		}
	}

	monthly := monthlyUsage(usage)
	perWorkflow := usageByWorkflow(usage)

	return &Metrics{
		ChurnRisk:         churnRisk(monthly),
		Engagement:        engagement(usage, perWorkflow, len(liveWorkflows)),
		Growth:            growth(monthly),
		OperationalHealth: operationalHealth(liveRuns),
		Concentration:     concentration(perWorkflow, len(usage)),
		Maturity:          maturity(usage, liveWorkflows, now),
		MonthlyUsage:      monthly,
	}
}

// monthlyUsage buckets the usage subset by check-timestamp month and
// derives month-over-month percent changes. Records without a timestamp
// never reach a monthly aggregation.
func monthlyUsage(usage []billing.JoinedRecord) []MonthlyUsage {
	type bucket struct {
		samples   int
		runs      map[string]struct{}
		workflows map[string]struct{}
	}

	buckets := make(map[dataset.Month]*bucket)

	for _, row := range usage {
		if row.Timestamp.IsZero() {
			continue
		}

		m := dataset.MonthOf(row.Timestamp)

		b, ok := buckets[m]
		if !ok {
			b = &bucket{
				runs:      make(map[string]struct{}),
				workflows: make(map[string]struct{}),
			}
			buckets[m] = b
		}

		b.samples++
		b.runs[row.RunID] = struct{}{}
		b.workflows[row.RunWorkflowName] = struct{}{}
	}

	months := dataset.SortMonths(buckets)
	out := make([]MonthlyUsage, 0, len(months))

	for i, m := range months {
		b := buckets[m]

		entry := MonthlyUsage{
			Month:           m,
			MonthKey:        m.String(),
			Samples:         b.samples,
			UniqueRuns:      len(b.runs),
			UniqueWorkflows: len(b.workflows),
		}

		if i > 0 {
			prev := buckets[months[i-1]].samples
			entry.MoMChangePct = pctChange(prev, b.samples)
		}

		out = append(out, entry)
	}

	return out
}

// usageByWorkflow counts usage rows per workflow name.
func usageByWorkflow(usage []billing.JoinedRecord) map[string]int {
	counts := make(map[string]int)
	for _, row := range usage {
		counts[row.RunWorkflowName]++
	}

	return counts
}

// churnRisk counts consecutive trailing monthly declines, walking
// backward from the most recent month and stopping at the first
// non-negative change.
func churnRisk(monthly []MonthlyUsage) ChurnRisk {
	risk := ChurnRisk{RiskLevel: RiskLow}

	declines := 0

	for i := len(monthly) - 1; i >= 1; i-- {
		change := monthly[i].MoMChangePct
		if change == nil || *change >= 0 {
			break
		}

		declines++
	}

	risk.ConsecutiveMonthlyDeclines = declines

	if len(monthly) > 0 {
		risk.LatestMoMChangePct = monthly[len(monthly)-1].MoMChangePct
	}

	if len(monthly) >= 6 {
		var head, tail float64
		for i := 0; i < 3; i++ {
			head += float64(monthly[i].Samples)
			tail += float64(monthly[len(monthly)-3+i].Samples)
		}

		trend := tail/3 - head/3
		risk.ThreeMonthTrend = &trend
	}

	latest := risk.LatestMoMChangePct

	switch {
	case declines >= 2 || (latest != nil && *latest < -20):
		risk.RiskLevel = RiskHigh
	case declines >= 1 || (latest != nil && *latest < -10):
		risk.RiskLevel = RiskMedium
	}

	return risk
}

// engagement measures workflow catalog utilization and spread.
func engagement(
	usage []billing.JoinedRecord,
	perWorkflow map[string]int,
	totalLiveWorkflows int,
) Engagement {
	eng := Engagement{
		ActiveWorkflows: len(perWorkflow),
		TotalWorkflows:  totalLiveWorkflows,
	}

	if totalLiveWorkflows > 0 {
		util := float64(eng.ActiveWorkflows) / float64(totalLiveWorkflows) * 100
		eng.WorkflowUtilizationPct = &util
	}

	if len(usage) > 0 {
		// Herfindahl-type index: 1 − Σ(share²). Zero when all usage sits
		// in one workflow, approaching one for an even spread.
		var sumSquares float64

		total := float64(len(usage))
		for _, count := range perWorkflow {
			share := float64(count) / total
			sumSquares += share * share
		}

		diversity := 1 - sumSquares
		eng.WorkflowDiversityIndex = &diversity
	}

	if eng.ActiveWorkflows > 0 {
		avg := float64(len(usage)) / float64(eng.ActiveWorkflows)
		eng.AvgSamplesPerWorkflow = &avg
	}

	return eng
}

// growth derives velocity between the most recent months and the
// acceleration between the last two computable month-over-month rates.
// Acceleration is expressed as a fractional rate difference, matching
// the ±0.05 trajectory thresholds.
func growth(monthly []MonthlyUsage) Growth {
	g := Growth{Trajectory: TrajectoryInsufficientData}

	if len(monthly) < 2 {
		return g
	}

	last := monthly[len(monthly)-1].Samples
	prev := monthly[len(monthly)-2].Samples
	g.RecentGrowthPct = pctChange(prev, last)

	first := monthly[0].Samples
	g.OverallGrowthPct = pctChange(first, last)

	if len(monthly) >= 3 {
		rates := make([]float64, 0, len(monthly)-1)

		for i := 1; i < len(monthly); i++ {
			p := monthly[i-1].Samples
			if p == 0 {
				continue
			}

			rates = append(rates, float64(monthly[i].Samples)/float64(p)-1)
		}

		if len(rates) >= 2 {
			accel := rates[len(rates)-1] - rates[len(rates)-2]
			g.GrowthAcceleration = &accel
		}
	}

	switch {
	case g.GrowthAcceleration == nil:
		g.Trajectory = TrajectoryInsufficientData
	case *g.GrowthAcceleration > accelerationThreshold:
		g.Trajectory = TrajectoryAccelerating
	case *g.GrowthAcceleration < -accelerationThreshold:
		g.Trajectory = TrajectoryDecelerating
	default:
		g.Trajectory = TrajectoryStable
	}

	return g
}

// operationalHealth buckets the raw live run population by start month
// and computes per-month success rates.
func operationalHealth(liveRuns []dataset.RunRecord) OperationalHealth {
	oh := OperationalHealth{Status: StatusUnknown}

	buckets := make(map[dataset.Month]*MonthlySuccess)

	for _, run := range liveRuns {
		if run.StartTime.IsZero() {
			continue
		}

		m := dataset.MonthOf(run.StartTime)

		b, ok := buckets[m]
		if !ok {
			b = &MonthlySuccess{Month: m, MonthKey: m.String()}
			buckets[m] = b
		}

		b.TotalRuns++

		switch run.Outcome {
		case dataset.OutcomeFinished:
			b.Finished++
		case dataset.OutcomeFailed:
			b.Failed++
		case dataset.OutcomeCanceled:
			b.Canceled++
		}
	}

	if len(buckets) == 0 {
		return oh
	}

	months := dataset.SortMonths(buckets)

	var rateSum float64

	for _, m := range months {
		b := buckets[m]
		b.SuccessRate = float64(b.Finished) / float64(b.TotalRuns) * 100
		rateSum += b.SuccessRate

		oh.TotalFailedRuns += b.Failed
		oh.TotalCanceledRuns += b.Canceled
		oh.Monthly = append(oh.Monthly, *b)
	}

	latest := oh.Monthly[len(oh.Monthly)-1].SuccessRate
	oh.LatestSuccessRate = &latest

	avg := rateSum / float64(len(oh.Monthly))
	oh.AvgSuccessRate = &avg

	if len(oh.Monthly) >= 2 {
		trend := latest - oh.Monthly[len(oh.Monthly)-2].SuccessRate
		oh.SuccessRateTrend = &trend
	}

	switch {
	case latest >= 90:
		oh.Status = StatusHealthy
	case latest >= 80:
		oh.Status = StatusWarning
	default:
		oh.Status = StatusCritical
	}

	return oh
}

// concentration measures dependence on the heaviest-used workflows.
func concentration(perWorkflow map[string]int, totalUsage int) Concentration {
	conc := Concentration{
		Risk:          RiskLow,
		WorkflowCount: len(perWorkflow),
	}

	if totalUsage == 0 || len(perWorkflow) == 0 {
		return conc
	}

	counts := make([]int, 0, len(perWorkflow))
	for _, c := range perWorkflow {
		counts = append(counts, c)
	}

	sort.Sort(sort.Reverse(sort.IntSlice(counts)))

	total := float64(totalUsage)

	top1 := float64(counts[0]) / total * 100
	conc.TopWorkflowPct = &top1

	top3Sum := 0
	for i := 0; i < len(counts) && i < 3; i++ {
		top3Sum += counts[i]
	}

	top3 := float64(top3Sum) / total * 100
	conc.Top3WorkflowsPct = &top3

	switch {
	case top1 > 50:
		conc.Risk = RiskHigh
	case top1 > 30:
		conc.Risk = RiskMedium
	}

	return conc
}

// maturity profiles the age of workflows active in usage.
func maturity(
	usage []billing.JoinedRecord,
	liveWorkflows []dataset.WorkflowRecord,
	now time.Time,
) Maturity {
	mat := Maturity{Level: MaturityUnknown}

	activeNames := make(map[string]struct{}, len(usage))
	for _, row := range usage {
		activeNames[row.RunWorkflowName] = struct{}{}
	}

	var (
		ageSum float64
		aged   int
	)

	for _, wf := range liveWorkflows {
		if _, active := activeNames[wf.WorkflowName]; !active {
			continue
		}

		if wf.CreatedAt.IsZero() {
			continue
		}

		ageDays := now.Sub(wf.CreatedAt).Hours() / 24
		ageSum += ageDays
		aged++

		if ageDays < newWorkflowAgeDays {
			mat.NewWorkflows++
		} else {
			mat.EstablishedWorkflows++
		}
	}

	if aged == 0 {
		return mat
	}

	avg := ageSum / float64(aged)
	mat.AvgWorkflowAgeDays = &avg

	switch {
	case avg > matureAvgAgeDays:
		mat.Level = MaturityMature
	case avg > growingAvgAgeDays:
		mat.Level = MaturityGrowing
	default:
		mat.Level = MaturityNew
	}

	return mat
}

// pctChange returns the percent change from prev to cur, or nil when
// prev is zero.
func pctChange(prev, cur int) *float64 {
	if prev == 0 {
		return nil
	}

	change := (float64(cur)/float64(prev) - 1) * 100

	return &change
}
