package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/age-gate/internal/retry"
)

// AgeCheckLog represents a persisted age check.
type AgeCheckLog struct {
	ID               uint      `gorm:"primaryKey"`
	CheckID          string    `gorm:"column:check_id;uniqueIndex;size:64"`
	SessionID        string    `gorm:"column:session_id;index;size:64"`
	Owner            string    `gorm:"column:owner;index;size:64"`
	Secure           bool      `gorm:"column:secure"`
	LevelOfAssurance string    `gorm:"column:level_of_assurance;size:16"`
	Age              *float64  `gorm:"column:age"`
	Granted          bool      `gorm:"column:granted"`
	Failed           bool      `gorm:"column:failed"`
	Details          string    `gorm:"column:details;type:text"`
	SHA1Hash         string    `gorm:"column:sha1_hash;index;size:40"`
	LatencyMs        int64     `gorm:"column:latency_ms"`
	CreatedAt        time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (AgeCheckLog) TableName() string {
	return "age_check_logs"
}

// MetricsAggregation holds raw aggregates over all checks.
type MetricsAggregation struct {
	TotalCount       int64
	GrantedCount     int64
	FailedCount      int64
	AverageAge       float64
	AverageLatencyMs float64
}

// AgeCheckRepository provides persistence APIs for age checks.
type AgeCheckRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	retry  retry.Policy
}

// NewAgeCheckRepository creates a new repository instance.
func NewAgeCheckRepository(db *gorm.DB, logger *zap.Logger) *AgeCheckRepository {
	policy := retry.Default()
	policy.Final = func(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }
	return &AgeCheckRepository{
		db:     db,
		logger: logger.Named("age_check_repository"),
		retry:  policy,
	}
}

// AutoMigrate ensures the schema is available.
func (r *AgeCheckRepository) AutoMigrate(ctx context.Context) error {
	return r.executeWithRetry(ctx, "repository.auto_migrate", "", func() error {
		return r.db.WithContext(ctx).AutoMigrate(&AgeCheckLog{})
	})
}

// SaveLog persists an age check.
func (r *AgeCheckRepository) SaveLog(ctx context.Context, log *AgeCheckLog) error {
	return r.executeWithRetry(ctx, "repository.save_log", log.CheckID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindByCheckIDAndOwner retrieves a check matching the id and owner.
func (r *AgeCheckRepository) FindByCheckIDAndOwner(ctx context.Context, checkID, owner string) (*AgeCheckLog, error) {
	var log AgeCheckLog
	err := r.executeWithRetry(ctx, "repository.find_check", checkID, func() error {
		return r.db.WithContext(ctx).First(&log, "check_id = ? AND owner = ?", checkID, owner).Error
	})
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// FindDuplicatesByHash lists the owner's other checks made with the same image.
func (r *AgeCheckRepository) FindDuplicatesByHash(ctx context.Context, owner, hash, excludeCheckID string) ([]*AgeCheckLog, error) {
	var logs []*AgeCheckLog
	err := r.executeWithRetry(ctx, "repository.find_duplicates", excludeCheckID, func() error {
		return r.db.WithContext(ctx).
			Where("owner = ? AND sha1_hash = ? AND check_id <> ?", owner, hash, excludeCheckID).
			Order("created_at DESC").
			Find(&logs).Error
	})
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// AggregateMetrics computes totals and averages over all checks.
func (r *AgeCheckRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var row struct {
		TotalCount       int64
		GrantedCount     int64
		FailedCount      int64
		AverageAge       *float64
		AverageLatencyMs *float64
	}
	err := r.executeWithRetry(ctx, "repository.aggregate_metrics", "", func() error {
		return r.db.WithContext(ctx).
			Model(&AgeCheckLog{}).
			Select("COUNT(*) AS total_count, " +
				"COALESCE(SUM(CASE WHEN granted THEN 1 ELSE 0 END), 0) AS granted_count, " +
				"COALESCE(SUM(CASE WHEN failed THEN 1 ELSE 0 END), 0) AS failed_count, " +
				"AVG(age) AS average_age, " +
				"AVG(latency_ms) AS average_latency_ms").
			Scan(&row).Error
	})
	if err != nil {
		return nil, err
	}

	agg := &MetricsAggregation{
		TotalCount:   row.TotalCount,
		GrantedCount: row.GrantedCount,
		FailedCount:  row.FailedCount,
	}
	if row.AverageAge != nil {
		agg.AverageAge = *row.AverageAge
	}
	if row.AverageLatencyMs != nil {
		agg.AverageLatencyMs = *row.AverageLatencyMs
	}
	return agg, nil
}

func (r *AgeCheckRepository) executeWithRetry(ctx context.Context, operation, checkID string, fn func() error) error {
	return r.retry.Do(ctx, r.logger, operation, checkID, fn)
}
