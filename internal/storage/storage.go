// Package storage persists runs and their per-tick samples through gorm, on
// SQLite (in memory with on-demand dumps, or a file) or Postgres.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cxd309/vehicle-emulator/internal/config"
	"github.com/cxd309/vehicle-emulator/internal/telemetry"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrDisabled is returned by Open when the storage type is "none".
var ErrDisabled = errors.New("storage disabled")

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

const defaultBatchSize = 500

// Store wraps the database connection.
type Store struct {
	DB        *gorm.DB
	dialect   string
	memory    bool
	batchSize int
	logger    *zap.Logger
}

// Open connects to the backend selected by cfg and migrates the schema.
func Open(cfg config.StorageConfig, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{dialect: cfg.Type, batchSize: cfg.BatchSize, logger: log}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}

	var err error
	switch cfg.Type {
	case config.StorageSQLite:
		s.memory = cfg.Path == ""
		s.DB, err = openSQLite(cfg.Path, s.batchSize)
	case config.StoragePostgres:
		s.DB, err = openPostgres(cfg.DSN, s.batchSize)
	case config.StorageNone, "":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", cfg.Type, err)
	}

	if err := s.DB.AutoMigrate(Models...); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	log.Info("Storage ready", zap.String("type", cfg.Type), zap.Bool("memory", s.memory))
	return s, nil
}

func openPostgres(dsn string, batch int) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        batch,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// openSQLite opens path, or a private in-memory database when path is empty.
func openSQLite(path string, batch int) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        batch,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	// one connection serialises writers and keeps a memory database alive
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA cache_size = -32000;",
		"PRAGMA temp_store = MEMORY;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}
	return db, nil
}

// CreateRun inserts the run row. An empty ID is filled with a new UUID.
func (s *Store) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Params == nil {
		run.Params = []byte("{}")
	}
	if err := s.DB.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("creating run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun records the final step count and distance of a run.
func (s *Store) FinishRun(ctx context.Context, id string, steps int, distance float64) error {
	res := s.DB.WithContext(ctx).Model(&Run{}).Where("id = ?", id).Updates(map[string]interface{}{
		"steps":       steps,
		"distance":    distance,
		"finished_at": sql.NullTime{Time: time.Now(), Valid: true},
	})
	if res.Error != nil {
		return fmt.Errorf("finishing run %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// GetRun loads a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	var run Run
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// Runs lists every run, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	var runs []Run
	err := s.DB.WithContext(ctx).Order("created_at desc").Find(&runs).Error
	return runs, err
}

// LoadSamples returns the records of a run in time order.
func (s *Store) LoadSamples(ctx context.Context, runID string) ([]telemetry.Record, error) {
	var rows []Sample
	if err := s.DB.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("time asc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading samples for %s: %w", runID, err)
	}
	out := make([]telemetry.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.Record()
		if err != nil {
			return nil, fmt.Errorf("decoding sample %d: %w", row.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// DeleteRun removes a run and all its samples.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", id).Delete(&Sample{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&Run{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil
	})
}

// Dump vacuums a SQLite database into the file at path, replacing it.
func (s *Store) Dump(path string) error {
	if s.dialect != config.StorageSQLite {
		return fmt.Errorf("dump is only supported for sqlite, not %s", s.dialect)
	}
	if path == "" {
		return errors.New("sqlite file path not set")
	}
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("error removing existing DB file: %w", err)
		}
	}

	start := time.Now()
	if err := s.DB.Exec("VACUUM INTO 'file:" + path + "';").Error; err != nil {
		return fmt.Errorf("error dumping DB to disk: %w", err)
	}
	s.logger.Debug("Dumped DB to disk", zap.String("path", path), zap.Duration("duration", time.Since(start)))
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Sink buffers records for one run and writes them in batches.
type Sink struct {
	store *Store
	mu    sync.Mutex
	buf   []Sample
}

// Sink returns a telemetry sink writing into the samples table.
func (s *Store) Sink() *Sink {
	return &Sink{store: s, buf: make([]Sample, 0, s.batchSize)}
}

// Write implements telemetry.Sink.
func (k *Sink) Write(ctx context.Context, r telemetry.Record) error {
	row, err := sampleFromRecord(r)
	if err != nil {
		return fmt.Errorf("encoding sample: %w", err)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.buf = append(k.buf, row)
	if len(k.buf) >= k.store.batchSize {
		return k.flushLocked(ctx)
	}
	return nil
}

// Flush implements telemetry.Sink.
func (k *Sink) Flush(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.flushLocked(ctx)
}

func (k *Sink) flushLocked(ctx context.Context) error {
	if len(k.buf) == 0 {
		return nil
	}
	if err := k.store.DB.WithContext(ctx).CreateInBatches(k.buf, k.store.batchSize).Error; err != nil {
		return fmt.Errorf("writing %d samples: %w", len(k.buf), err)
	}
	// gorm writes generated IDs back into the slice, so it cannot be reused
	k.buf = make([]Sample, 0, k.store.batchSize)
	return nil
}
