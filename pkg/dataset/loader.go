package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"
)

// Column names expected in the CSV exports. They match the upstream LIMS
// export headers verbatim.
const (
	colRunID             = "RUN_ID"
	colTimestamp         = "TIMESTAMP"
	colQCCheck           = "QC_CHECK"
	colSampleType        = "SAMPLE_TYPE"
	colWorkflowID        = "WORKFLOW_ID"
	colWorkflowName      = "WORKFLOW_NAME"
	colWorkflowType      = "WORKFLOW_TYPE"
	colWorkflowTimestamp = "WORKFLOW_TIMESTAMP"
	colID                = "ID"
	colOutcome           = "OUTCOME"
	colStartTime         = "START_TIME"
	colStopTime          = "STOP_TIME"
)

// timestampLayouts are tried in order when parsing timestamp cells.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Paths locates the three CSV exports for one analysis invocation.
type Paths struct {
	Checks    string
	Workflows string
	Runs      string
}

// Load reads all three record sets. Schema validation is fail-fast: a
// missing column or an unparsable cell aborts the load.
func Load(log logrus.FieldLogger, paths Paths) (*Dataset, error) {
	checks, err := LoadChecks(log, paths.Checks)
	if err != nil {
		return nil, fmt.Errorf("loading checks: %w", err)
	}

	workflows, err := LoadWorkflows(log, paths.Workflows)
	if err != nil {
		return nil, fmt.Errorf("loading workflows: %w", err)
	}

	runs, err := LoadRuns(log, paths.Runs)
	if err != nil {
		return nil, fmt.Errorf("loading runs: %w", err)
	}

	var totalBytes int64

	for _, p := range []string{paths.Checks, paths.Workflows, paths.Runs} {
		if info, err := os.Stat(p); err == nil {
			totalBytes += info.Size()
		}
	}

	log.WithField("checks", len(checks)).
		WithField("workflows", len(workflows)).
		WithField("runs", len(runs)).
		WithField("size", units.HumanSize(float64(totalBytes))).
		Info("Loaded dataset")

	return &Dataset{Checks: checks, Workflows: workflows, Runs: runs}, nil
}

// LoadChecks reads the quality-check events table.
func LoadChecks(log logrus.FieldLogger, path string) ([]CheckRecord, error) {
	tbl, err := readTable(log, path, "checks",
		[]string{colRunID, colTimestamp, colQCCheck, colSampleType})
	if err != nil {
		return nil, err
	}

	checks := make([]CheckRecord, 0, len(tbl.rows))

	for i, row := range tbl.rows {
		ts, err := tbl.parseTime(row, i, colTimestamp)
		if err != nil {
			return nil, err
		}

		checks = append(checks, CheckRecord{
			RunID:      tbl.cell(row, colRunID),
			Timestamp:  ts,
			QCStatus:   parseQCStatus(tbl.cell(row, colQCCheck)),
			SampleType: strings.ToLower(tbl.cell(row, colSampleType)),
		})
	}

	return checks, nil
}

// LoadWorkflows reads the workflow definitions table.
func LoadWorkflows(log logrus.FieldLogger, path string) ([]WorkflowRecord, error) {
	tbl, err := readTable(log, path, "workflows",
		[]string{colWorkflowID, colWorkflowName, colWorkflowType, colWorkflowTimestamp})
	if err != nil {
		return nil, err
	}

	workflows := make([]WorkflowRecord, 0, len(tbl.rows))

	for i, row := range tbl.rows {
		createdAt, err := tbl.parseTime(row, i, colWorkflowTimestamp)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, WorkflowRecord{
			WorkflowID:   tbl.cell(row, colWorkflowID),
			WorkflowName: tbl.cell(row, colWorkflowName),
			WorkflowType: tbl.cell(row, colWorkflowType),
			CreatedAt:    createdAt,
		})
	}

	return workflows, nil
}

// LoadRuns reads the processing runs table. The WORKFLOW_ID column holds
// a composite identifier; the workflow id proper is the token before the
// first whitespace character.
func LoadRuns(log logrus.FieldLogger, path string) ([]RunRecord, error) {
	tbl, err := readTable(log, path, "runs",
		[]string{colID, colWorkflowID, colWorkflowName, colOutcome, colStartTime, colStopTime})
	if err != nil {
		return nil, err
	}

	runs := make([]RunRecord, 0, len(tbl.rows))

	for i, row := range tbl.rows {
		start, err := tbl.parseTime(row, i, colStartTime)
		if err != nil {
			return nil, err
		}

		stop, err := tbl.parseTime(row, i, colStopTime)
		if err != nil {
			return nil, err
		}

		runs = append(runs, RunRecord{
			RunID:        tbl.cell(row, colID),
			WorkflowID:   ParseCompositeWorkflowID(tbl.cell(row, colWorkflowID)),
			WorkflowName: tbl.cell(row, colWorkflowName),
			Outcome:      Outcome(strings.ToLower(tbl.cell(row, colOutcome))),
			StartTime:    start,
			StopTime:     stop,
		})
	}

	return runs, nil
}

// ParseCompositeWorkflowID extracts the workflow id from a composite
// identifier cell: the token before the first whitespace, or the whole
// string when it contains none.
func ParseCompositeWorkflowID(composite string) string {
	trimmed := strings.TrimSpace(composite)
	if trimmed == "" {
		return ""
	}

	if idx := strings.IndexFunc(trimmed, isSpace); idx >= 0 {
		return trimmed[:idx]
	}

	return trimmed
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t'
}

// parseQCStatus maps a raw cell to the three-state QC disposition. An
// empty cell is "missing", a first-class state.
func parseQCStatus(raw string) QCStatus {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return QCMissing
	}

	return QCStatus(trimmed)
}

// table is a parsed CSV file with a validated header.
type table struct {
	name    string
	columns map[string]int
	rows    [][]string
}

// readTable parses a CSV file and validates that all required columns
// are present before any row is interpreted.
func readTable(
	log logrus.FieldLogger,
	path string,
	name string,
	required []string,
) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s table: %w", name, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s table: %w", name, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("table %q: file is empty, expected a header row", name)
	}

	columns := make(map[string]int, len(records[0]))
	for i, col := range records[0] {
		columns[strings.TrimSpace(col)] = i
	}

	for _, col := range required {
		if _, ok := columns[col]; !ok {
			return nil, &MissingColumnError{Table: name, Column: col}
		}
	}

	if info, err := f.Stat(); err == nil {
		log.WithField("table", name).
			WithField("rows", len(records)-1).
			WithField("size", units.HumanSize(float64(info.Size()))).
			Debug("Loaded table")
	}

	return &table{name: name, columns: columns, rows: records[1:]}, nil
}

// cell returns the trimmed value of a column in a row, or "" when the
// row is short.
func (t *table) cell(row []string, column string) string {
	idx := t.columns[column]
	if idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}

// parseTime parses a timestamp cell. An empty cell yields the zero
// time; anything else must match one of the accepted layouts.
func (t *table) parseTime(row []string, rowIdx int, column string) (time.Time, error) {
	raw := t.cell(row, column)
	if raw == "" {
		return time.Time{}, nil
	}

	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}

	return time.Time{}, &ValueError{
		Table:  t.name,
		Column: column,
		Row:    rowIdx + 2, // 1-based, counting the header row
		Err:    fmt.Errorf("unrecognized timestamp %q", raw),
	}
}
