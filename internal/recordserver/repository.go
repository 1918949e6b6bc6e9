package recordserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"calixo/internal/domain"
)

// DefaultRecordKey is the single row the desktop client reads and writes.
const DefaultRecordKey = "default"

// RecordRow stores one tracking record as a JSON document.
type RecordRow struct {
	Key       string `gorm:"primaryKey;size:64"`
	Data      string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (RecordRow) TableName() string { return "tracking_records" }

// Repository persists the tracking record.
type Repository interface {
	Load(ctx context.Context) (domain.TrackingRecord, bool, error)
	Save(ctx context.Context, record domain.TrackingRecord) error
	Ping(ctx context.Context) error
}

// OpenDatabase connects to postgres when the DSN looks like one and falls
// back to a sqlite file (or ":memory:") otherwise.
func OpenDatabase(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "calixo-records.db"
	}
	var dialector gorm.Dialector
	if isPostgresDSN(dsn) {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func isPostgresDSN(dsn string) bool {
	lower := strings.ToLower(dsn)
	return strings.HasPrefix(lower, "postgres://") ||
		strings.HasPrefix(lower, "postgresql://") ||
		strings.Contains(lower, "host=")
}

// GormRepository keeps the record under a single key.
type GormRepository struct {
	db  *gorm.DB
	key string
}

// NewGormRepository migrates the schema and returns a repository bound to key.
func NewGormRepository(db *gorm.DB, key string) (*GormRepository, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if err := db.AutoMigrate(&RecordRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate records: %w", err)
	}
	if strings.TrimSpace(key) == "" {
		key = DefaultRecordKey
	}
	return &GormRepository{db: db, key: key}, nil
}

func (r *GormRepository) Load(ctx context.Context) (domain.TrackingRecord, bool, error) {
	var row RecordRow
	err := r.db.WithContext(ctx).Where(&RecordRow{Key: r.key}).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewTrackingRecord(), false, nil
	}
	if err != nil {
		return domain.TrackingRecord{}, false, err
	}
	var record domain.TrackingRecord
	if err := json.Unmarshal([]byte(row.Data), &record); err != nil {
		return domain.TrackingRecord{}, false, fmt.Errorf("decode stored record: %w", err)
	}
	record.Normalize()
	return record, true, nil
}

func (r *GormRepository) Save(ctx context.Context, record domain.TrackingRecord) error {
	record.Normalize()
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	row := RecordRow{Key: r.key, Data: string(data), UpdatedAt: time.Now().UTC()}
	return r.db.WithContext(ctx).Save(&row).Error
}

func (r *GormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
