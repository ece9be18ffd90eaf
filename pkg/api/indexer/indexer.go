// Package indexer is a background service that scans the reports
// directory and maintains report snapshots in the report store.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/genolytics/labmetrics/pkg/api/reportstore"
	"github.com/genolytics/labmetrics/pkg/report"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// defaultConcurrency is the number of reports parsed in parallel when
// no explicit concurrency value is configured.
const defaultConcurrency = 4

const (
	reportPrefix = "report-"
	reportSuffix = ".json"
)

// Indexer periodically scans the reports directory and upserts report
// snapshots into the store.
type Indexer interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Indexer = (*indexer)(nil)

type indexer struct {
	log         logrus.FieldLogger
	store       reportstore.Store
	reportsDir  string
	interval    time.Duration
	concurrency int
	done        chan struct{}
	wg          sync.WaitGroup
	dbMu        sync.Mutex // serializes DB writes to avoid SQLite contention
}

// NewIndexer creates a new background indexer.
func NewIndexer(
	log logrus.FieldLogger,
	store reportstore.Store,
	reportsDir string,
	interval time.Duration,
	concurrency int,
) Indexer {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &indexer{
		log:         log.WithField("component", "indexer"),
		store:       store,
		reportsDir:  reportsDir,
		interval:    interval,
		concurrency: concurrency,
		done:        make(chan struct{}),
	}
}

// Start launches a background goroutine that runs an immediate indexing
// pass and then ticks at the configured interval. The first pass is
// asynchronous so the caller (the API server) is not blocked.
func (idx *indexer) Start(ctx context.Context) error {
	idx.log.WithFields(logrus.Fields{
		"reports_dir": idx.reportsDir,
		"interval":    idx.interval.String(),
		"concurrency": idx.concurrency,
	}).Info("Starting indexer")

	idx.wg.Add(1)

	go func() {
		defer idx.wg.Done()

		// Run one pass immediately.
		idx.runPass(ctx)

		ticker := time.NewTicker(idx.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				idx.runPass(ctx)
			case <-idx.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop signals the indexer goroutine to stop and waits for it.
func (idx *indexer) Stop() error {
	close(idx.done)
	idx.wg.Wait()

	idx.log.Info("Indexer stopped")

	return nil
}

// runPass executes one full indexing pass over the reports directory.
func (idx *indexer) runPass(ctx context.Context) {
	start := time.Now()

	if err := idx.indexReportsDir(ctx); err != nil {
		idx.log.WithError(err).Warn("Indexing pass failed")

		return
	}

	idx.log.WithField("duration", time.Since(start).Round(time.Millisecond)).
		Debug("Indexing pass completed")
}

// reportTask names one report file that needs to be (re)indexed.
type reportTask struct {
	id             string
	path           string
	modTime        time.Time
	alreadyIndexed bool
}

// indexReportsDir discovers report files, compares them against the
// indexed state, and parses new or changed files with a bounded worker
// pool.
func (idx *indexer) indexReportsDir(ctx context.Context) error {
	entries, err := os.ReadDir(idx.reportsDir)
	if err != nil {
		return fmt.Errorf("reading reports directory: %w", err)
	}

	indexed, err := idx.store.ListIndexed(ctx)
	if err != nil {
		return fmt.Errorf("listing indexed snapshots: %w", err)
	}

	var tasks []reportTask

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasPrefix(name, reportPrefix) ||
			!strings.HasSuffix(name, reportSuffix) {
			continue
		}

		id := strings.TrimSuffix(strings.TrimPrefix(name, reportPrefix), reportSuffix)
		if id == "" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		modTime, alreadyIndexed := indexed[id]
		if alreadyIndexed && !info.ModTime().After(modTime) {
			continue
		}

		tasks = append(tasks, reportTask{
			id:             id,
			path:           filepath.Join(idx.reportsDir, name),
			modTime:        info.ModTime(),
			alreadyIndexed: alreadyIndexed,
		})
	}

	idx.log.WithFields(logrus.Fields{
		"files":   len(entries),
		"indexed": len(indexed),
		"pending": len(tasks),
	}).Debug("Scanned reports directory")

	if len(tasks) == 0 {
		return nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(idx.concurrency)

	var count atomic.Int64

	for _, task := range tasks {
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			case <-idx.done:
				return nil
			default:
			}

			if err := idx.indexReport(gCtx, task); err != nil {
				idx.log.WithError(err).
					WithField("report_id", task.id).
					Warn("Failed to index report")

				return nil //nolint:nilerr // log and continue
			}

			action := "indexed"
			if task.alreadyIndexed {
				action = "reindexed"
			}

			idx.log.WithField("report_id", task.id).
				WithField("action", action).
				Info("Indexed report")

			count.Add(1)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("indexing reports: %w", err)
	}

	if n := count.Load(); n > 0 {
		idx.log.WithField("count", n).Info("Reports indexed")
	}

	return nil
}

// indexReport parses a single report file and upserts its snapshot.
func (idx *indexer) indexReport(ctx context.Context, task reportTask) error {
	data, err := os.ReadFile(task.path)
	if err != nil {
		return fmt.Errorf("reading report file: %w", err)
	}

	var r report.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("parsing report file: %w", err)
	}

	now := time.Now().UTC()

	snap := &reportstore.Snapshot{
		ID:               task.id,
		GeneratedAt:      r.GeneratedAt,
		Path:             task.path,
		TotalChecks:      r.TotalChecks,
		TotalWorkflows:   r.TotalWorkflows,
		TotalRuns:        r.TotalRuns,
		BillableCount:    r.BillableCount,
		UsageCount:       r.UsageCount,
		IncludeMissingQC: r.IncludeMissingQC,
		Payload:          string(data),
		FileModTime:      task.modTime,
		IndexedAt:        now,
	}

	if task.alreadyIndexed {
		snap.ReindexedAt = &now
	}

	// Serialize DB writes to avoid SQLite BUSY errors under concurrency.
	idx.dbMu.Lock()
	defer idx.dbMu.Unlock()

	if err := idx.store.UpsertSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("upserting snapshot: %w", err)
	}

	return nil
}
