// Package reportstore persists indexed report snapshots in a SQL
// database so the API can serve them without touching the reports
// directory on every request.
package reportstore

import (
	"context"
	"fmt"
	"time"

	"github.com/genolytics/labmetrics/pkg/config"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store provides persistence for report snapshots.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	UpsertSnapshot(ctx context.Context, snap *Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*Snapshot, error)
	ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error)
	LatestSnapshot(ctx context.Context) (*Snapshot, error)
	ListIndexed(ctx context.Context) (map[string]time.Time, error)
	DeleteSnapshot(ctx context.Context, id string) error
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.APIDatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new Store backed by the configured database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.APIDatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "reportstore"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var (
		dialector gorm.Dialector
		err       error
	)

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	s.db, err = gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	if err := s.db.WithContext(ctx).AutoMigrate(
		&Snapshot{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("Database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// UpsertSnapshot inserts or replaces a snapshot by report ID.
func (s *store) UpsertSnapshot(ctx context.Context, snap *Snapshot) error {
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(snap).Error; err != nil {
		return fmt.Errorf("upserting snapshot: %w", err)
	}

	return nil
}

// GetSnapshot returns a snapshot by report ID.
func (s *store) GetSnapshot(
	ctx context.Context, id string,
) (*Snapshot, error) {
	var snap Snapshot
	if err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&snap).Error; err != nil {
		return nil, fmt.Errorf("getting snapshot %q: %w", id, err)
	}

	return &snap, nil
}

// ListSnapshots returns snapshots ordered newest first. A limit of
// zero or less returns all snapshots.
func (s *store) ListSnapshots(
	ctx context.Context, limit int,
) ([]Snapshot, error) {
	q := s.db.WithContext(ctx).
		Omit("payload").
		Order("generated_at DESC")

	if limit > 0 {
		q = q.Limit(limit)
	}

	var snaps []Snapshot
	if err := q.Find(&snaps).Error; err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	return snaps, nil
}

// LatestSnapshot returns the most recently generated snapshot.
func (s *store) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	if err := s.db.WithContext(ctx).
		Order("generated_at DESC").
		First(&snap).Error; err != nil {
		return nil, fmt.Errorf("getting latest snapshot: %w", err)
	}

	return &snap, nil
}

// ListIndexed returns the file modification time recorded for every
// indexed snapshot, keyed by report ID. The indexer uses it to skip
// files that have not changed since the last pass.
func (s *store) ListIndexed(
	ctx context.Context,
) (map[string]time.Time, error) {
	var rows []struct {
		ID          string
		FileModTime time.Time
	}

	if err := s.db.WithContext(ctx).
		Model(&Snapshot{}).
		Select("id", "file_mod_time").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing indexed snapshots: %w", err)
	}

	indexed := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		indexed[r.ID] = r.FileModTime
	}

	return indexed, nil
}

// DeleteSnapshot removes a snapshot by report ID.
func (s *store) DeleteSnapshot(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&Snapshot{}).Error; err != nil {
		return fmt.Errorf("deleting snapshot %q: %w", id, err)
	}

	return nil
}
