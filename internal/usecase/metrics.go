package usecase

import "context"

// MetricsSummary represents aggregated age check insights.
type MetricsSummary struct {
	TotalChecks      int64   `json:"total_checks"`
	GrantedChecks    int64   `json:"granted_checks"`
	DeniedChecks     int64   `json:"denied_checks"`
	FailedChecks     int64   `json:"failed_checks"`
	GrantRate        float64 `json:"grant_rate"`
	AverageAge       float64 `json:"average_age"`
	AverageLatencyMs float64 `json:"average_latency_ms"`
}

// GetMetricsSummary aggregates age check metrics from persisted logs. The
// grant rate is computed over checks that produced an estimate.
func (uc *AgeCheckUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalChecks:      aggregation.TotalCount,
		GrantedChecks:    aggregation.GrantedCount,
		FailedChecks:     aggregation.FailedCount,
		DeniedChecks:     aggregation.TotalCount - aggregation.GrantedCount - aggregation.FailedCount,
		AverageAge:       aggregation.AverageAge,
		AverageLatencyMs: aggregation.AverageLatencyMs,
	}

	if estimated := aggregation.TotalCount - aggregation.FailedCount; estimated > 0 {
		summary.GrantRate = float64(aggregation.GrantedCount) / float64(estimated)
	}
	return summary, nil
}
