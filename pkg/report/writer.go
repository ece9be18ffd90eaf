package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/genolytics/labmetrics/pkg/fsutil"
)

// Write persists the JSON report and its markdown summary under dir.
// Filenames embed the report id so successive analyses never clobber
// each other; the indexer picks up every report-*.json it finds.
func Write(
	log logrus.FieldLogger,
	r *Report,
	dir string,
	owner *fsutil.Owner,
) (string, error) {
	if err := owner.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating reports directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}

	jsonPath := filepath.Join(dir, fmt.Sprintf("report-%s.json", r.ID))
	if err := owner.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", fmt.Errorf("writing report json: %w", err)
	}

	mdPath := filepath.Join(dir, fmt.Sprintf("report-%s.md", r.ID))
	if err := owner.WriteFile(mdPath, []byte(GenerateMarkdown(r)), 0o644); err != nil {
		return "", fmt.Errorf("writing report markdown: %w", err)
	}

	log.WithField("path", jsonPath).Info("Report written")

	return jsonPath, nil
}
