package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/JustinTDCT/onlineTracker/model"
	"github.com/JustinTDCT/onlineTracker/pkg/utils"
)

var (
	ErrTransient = errors.New("transient storage error")
	ErrNotFound  = errors.New("record not found")
)

const (
	writeAttempts = 3
	writeBackoff  = 100 * time.Millisecond
)

// Store is the gorm implementation of every storage interface the services depend on.
type Store struct {
	db    *gorm.DB
	cache *cache.Cache
	log   *zap.Logger
}

// Open connects to driver/dsn and migrates the schema.
func Open(driver, dsn string, debug bool, log *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case model.DatabaseDriverPostgres:
		dialector = postgres.Open(dsn)
	case model.DatabaseDriverSQLite, "":
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	gormLogger := logger.Default.LogMode(logger.Silent)
	if debug {
		gormLogger = logger.Default.LogMode(logger.Info)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		CreateBatchSize: 200,
		Logger:          gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if dialector.Name() == "sqlite" {
		// one writer; parallel connections only produce "database is locked"
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db, log)
}

// ensureDir creates the parent directory of a file backed sqlite dsn.
func ensureDir(dsn string) error {
	if strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, ":memory:") {
		return nil
	}
	path, _, _ := strings.Cut(dsn, "?")
	if dir := filepath.Dir(path); dir != "." {
		return os.MkdirAll(dir, 0o750)
	}
	return nil
}

func New(db *gorm.DB, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	err := db.AutoMigrate(model.Monitor{}, model.StatusRecord{}, model.ProbeAttempt{},
		model.AlertRecord{}, model.Setting{}, model.Agent{}, model.PendingAgent{}, model.PushReceiver{})
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{
		db:    db,
		cache: cache.New(settingsTTL, time.Minute),
		log:   log.With(zap.String("component", "store")),
	}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// IsTransient reports whether a failed operation is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "busy")
}

// write runs fn in a transaction, retrying transient failures.
func (s *Store) write(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	err := utils.Retry(ctx, writeAttempts, writeBackoff, IsTransient, func() error {
		return s.db.WithContext(ctx).Transaction(fn)
	})
	switch {
	case err == nil:
		return nil
	case IsTransient(err):
		s.log.Warn("write gave up after retries", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
