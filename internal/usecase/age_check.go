package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/age-gate/internal/logging"
	"github.com/example/age-gate/internal/repository"
	"github.com/example/age-gate/internal/retry"
	"github.com/example/age-gate/internal/session"
)

const resultTTL = 5 * time.Minute

// AgeCheckRepository defines the persistence operations needed by the use case.
type AgeCheckRepository interface {
	SaveLog(ctx context.Context, log *repository.AgeCheckLog) error
	FindByCheckIDAndOwner(ctx context.Context, checkID, owner string) (*repository.AgeCheckLog, error)
	FindDuplicatesByHash(ctx context.Context, owner, hash, excludeCheckID string) ([]*repository.AgeCheckLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// AgeCheckUseCase records settled checks and serves them back.
type AgeCheckUseCase struct {
	repo   AgeCheckRepository
	cache  Cache
	logger *zap.Logger
	retry  retry.Policy
}

type cachedCheck struct {
	CheckID          string    `json:"check_id"`
	SessionID        string    `json:"session_id"`
	Owner            string    `json:"owner"`
	Secure           bool      `json:"secure"`
	LevelOfAssurance string    `json:"level_of_assurance,omitempty"`
	Age              *float64  `json:"age,omitempty"`
	Granted          bool      `json:"granted"`
	Failed           bool      `json:"failed"`
	Details          string    `json:"details"`
	Hash             string    `json:"sha1_hash"`
	LatencyMs        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// DuplicateReport lists earlier checks made with the same image.
type DuplicateReport struct {
	Check      *repository.AgeCheckLog
	Duplicates []*repository.AgeCheckLog
}

// NewAgeCheckUseCase constructs a new use case instance.
func NewAgeCheckUseCase(repo AgeCheckRepository, cache Cache, logger *zap.Logger) *AgeCheckUseCase {
	policy := retry.Default()
	policy.Final = func(err error) bool { return errors.Is(err, redis.Nil) }
	return &AgeCheckUseCase{
		repo:   repo,
		cache:  cache,
		logger: logger.Named("age_check_usecase"),
		retry:  policy,
	}
}

// Record persists a settled check and caches it for quick lookups.
func (uc *AgeCheckUseCase) Record(ctx context.Context, check session.Check) error {
	opLogger := logging.WithOperation(uc.logger, "usecase.record_check", check.ID)

	log := &repository.AgeCheckLog{
		CheckID:          check.ID,
		SessionID:        check.SessionID,
		Owner:            check.Owner,
		Secure:           check.Secure,
		LevelOfAssurance: string(check.Level),
		Age:              check.Age,
		Granted:          check.Granted,
		Failed:           check.Failed,
		Details:          check.Detail,
		SHA1Hash:         check.ImageFingerprint,
		LatencyMs:        check.Latency.Milliseconds(),
		CreatedAt:        check.CreatedAt,
	}
	if err := uc.repo.SaveLog(ctx, log); err != nil {
		wrapped := logging.NewOperationError("usecase.save_log", check.ID, err)
		opLogger.Error("failed to persist age check", zap.Error(wrapped))
		return wrapped
	}

	serialized, err := json.Marshal(toCached(log))
	if err != nil {
		opLogger.Error("failed to serialize age check", zap.Error(err))
		return err
	}

	if err := uc.withRedisRetry(ctx, check.ID, "cache.set.result", func() error {
		return uc.cache.Set(ctx, resultKey(check.ID), string(serialized), resultTTL)
	}); err != nil {
		opLogger.Warn("failed to cache age check", zap.Error(err))
		return err
	}
	return nil
}

// GetResult retrieves a check from the cache or loads it from persistence.
func (uc *AgeCheckUseCase) GetResult(ctx context.Context, owner, checkID string) (*repository.AgeCheckLog, error) {
	if cached, err := uc.withRedisGet(ctx, checkID, "cache.get.result", resultKey(checkID)); err == nil {
		var payload cachedCheck
		if err := json.Unmarshal([]byte(cached), &payload); err != nil {
			logging.WithOperation(uc.logger, "usecase.get_result", checkID).Warn("failed to decode cached result", zap.Error(err))
		} else if payload.Owner == owner {
			return fromCached(payload), nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(uc.logger, "usecase.get_result", checkID).Warn("failed to read cache", zap.Error(err))
	}

	return uc.repo.FindByCheckIDAndOwner(ctx, checkID, owner)
}

// GetDuplicateReport finds other checks by the same owner made with the same image.
func (uc *AgeCheckUseCase) GetDuplicateReport(ctx context.Context, owner, checkID string) (*DuplicateReport, error) {
	log, err := uc.repo.FindByCheckIDAndOwner(ctx, checkID, owner)
	if err != nil {
		return nil, err
	}

	duplicates, err := uc.repo.FindDuplicatesByHash(ctx, owner, log.SHA1Hash, log.CheckID)
	if err != nil {
		return nil, err
	}
	return &DuplicateReport{Check: log, Duplicates: duplicates}, nil
}

func resultKey(checkID string) string {
	return fmt.Sprintf("age_check:%s", checkID)
}

func toCached(log *repository.AgeCheckLog) cachedCheck {
	return cachedCheck{
		CheckID:          log.CheckID,
		SessionID:        log.SessionID,
		Owner:            log.Owner,
		Secure:           log.Secure,
		LevelOfAssurance: log.LevelOfAssurance,
		Age:              log.Age,
		Granted:          log.Granted,
		Failed:           log.Failed,
		Details:          log.Details,
		Hash:             log.SHA1Hash,
		LatencyMs:        log.LatencyMs,
		CreatedAt:        log.CreatedAt,
	}
}

func fromCached(c cachedCheck) *repository.AgeCheckLog {
	return &repository.AgeCheckLog{
		CheckID:          c.CheckID,
		SessionID:        c.SessionID,
		Owner:            c.Owner,
		Secure:           c.Secure,
		LevelOfAssurance: c.LevelOfAssurance,
		Age:              c.Age,
		Granted:          c.Granted,
		Failed:           c.Failed,
		Details:          c.Details,
		SHA1Hash:         c.Hash,
		LatencyMs:        c.LatencyMs,
		CreatedAt:        c.CreatedAt,
	}
}

func (uc *AgeCheckUseCase) withRedisRetry(ctx context.Context, checkID, operation string, fn func() error) error {
	return uc.retry.Do(ctx, uc.logger, operation, checkID, fn)
}

func (uc *AgeCheckUseCase) withRedisGet(ctx context.Context, checkID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withRedisRetry(ctx, checkID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}
