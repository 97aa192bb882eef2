// Package catalog is the authoritative relational store of morphemes,
// composite entities and field requests.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store is the catalog contract used by the resolver, router, mirror and
// mutation service.
type Store interface {
	MatchToken(ctx context.Context, token string) (*Morpheme, error)
	SearchMorphemes(ctx context.Context, query string, limit int) ([]Morpheme, error)
	SearchComposites(ctx context.Context, query string, limit int) ([]CompositeEntity, error)

	GetMorpheme(ctx context.Context, id int64) (*Morpheme, error)
	MorphemesByIDs(ctx context.Context, ids []int64) ([]Morpheme, error)
	ListMorphemes(ctx context.Context, offset, limit int) ([]Morpheme, int64, error)
	EachMorpheme(ctx context.Context, pageSize int, fn func([]Morpheme) error) error
	CountMorphemes(ctx context.Context) (int64, error)
	CreateMorpheme(ctx context.Context, m *Morpheme) error
	CreateMorphemes(ctx context.Context, ms []Morpheme) error
	UpdateMorpheme(ctx context.Context, m *Morpheme) (*Morpheme, error)
	DeleteMorpheme(ctx context.Context, id int64) (*Morpheme, error)
	DeleteAllMorphemes(ctx context.Context) ([]string, error)

	GetComposite(ctx context.Context, id int64) (*CompositeEntity, error)
	ListComposites(ctx context.Context, offset, limit int) ([]CompositeEntity, int64, error)
	EachComposite(ctx context.Context, pageSize int, fn func([]CompositeEntity) error) error
	CountComposites(ctx context.Context) (int64, error)
	CreateComposite(ctx context.Context, c *CompositeEntity) error
	UpdateComposite(ctx context.Context, c *CompositeEntity) error
	DeleteComposite(ctx context.Context, id int64) error
	DeleteAllComposites(ctx context.Context) (int64, error)

	CreateFieldRequest(ctx context.Context, r *FieldRequest) error
	ListFieldRequests(ctx context.Context, openOnly bool, limit int) ([]FieldRequest, error)
	CompleteFieldRequest(ctx context.Context, id int64) error
	CountOpenFieldRequests(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Config configures the database connection.
type Config struct {
	Driver          string // postgres or sqlite
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// GormStore implements Store on gorm.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ Store = (*GormStore)(nil)

// Open connects to the database and optionally migrates the schema.
func Open(cfg Config, logger *zap.Logger) (*GormStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: unknown driver %q", ErrValidation, cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(zap.NewStdLog(logger.Named("gorm")), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := &GormStore{db: db, logger: logger}
	if cfg.AutoMigrate {
		if err := s.Migrate(); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}
	return s, nil
}

// Migrate creates or updates the schema.
func (s *GormStore) Migrate() error {
	if err := s.db.AutoMigrate(&Morpheme{}, &CompositeEntity{}, &FieldRequest{}); err != nil {
		return fmt.Errorf("catalog migrate: %w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return classify("ping", err)
	}
	return classify("ping", sqlDB.PingContext(ctx))
}

// Close closes the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// likePattern builds a case-insensitive substring pattern for LIKE ... ESCAPE '\'.
func likePattern(q string) string {
	q = strings.ToLower(q)
	q = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(q)
	return "%" + q + "%"
}

func clampLimit(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}
