package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/riskdesk/internal/auth"
	jobmetrics "github.com/odyssey-erp/riskdesk/internal/jobs"
	"github.com/odyssey-erp/riskdesk/internal/overview"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ErrNoServiceCredential reports that the worker has no credential to load with.
var ErrNoServiceCredential = errors.New("overview warm: service credential unavailable")

// Warmer loads (and thereby caches) the portfolio overview.
type Warmer interface {
	Load(ctx context.Context, cred auth.Credential) (overview.Overview, error)
}

// OverviewWarmJob pre-populates the overview cache so the first dashboard
// load after a write or expiry does not pay for a full scan.
type OverviewWarmJob struct {
	Warmer     Warmer
	Credential func() (auth.Credential, error)
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	Timeout    time.Duration
}

// NewOverviewWarmJob wires dependencies for the warm handler.
func NewOverviewWarmJob(warmer Warmer, credential func() (auth.Credential, error), logger *slog.Logger, metrics *jobmetrics.Metrics) *OverviewWarmJob {
	return &OverviewWarmJob{
		Warmer:     warmer,
		Credential: credential,
		Logger:     logger,
		Metrics:    metrics,
		Timeout:    30 * time.Second,
	}
}

// Handle processes overview warm tasks.
func (j *OverviewWarmJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Warmer == nil {
		return errors.New("overview warm: handler not configured")
	}
	var payload OverviewWarmPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskOverviewWarm)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("reason", payload.Reason))
	start := time.Now()

	cred, err := j.credential()
	if err != nil {
		resultErr = err
		logger.Error("overview warm credential", slog.Any("error", err))
		return resultErr
	}

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	ov, err := j.Warmer.Load(ctx, cred)
	if err != nil {
		resultErr = err
		logger.Error("overview warm load", slog.Any("error", err))
		return resultErr
	}
	j.metrics().SetRecords(TaskOverviewWarm, ov.Total)
	logger.Info("overview warmed", slog.Int("requests", ov.Total), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *OverviewWarmJob) credential() (auth.Credential, error) {
	if j.Credential == nil {
		return auth.Credential{}, ErrNoServiceCredential
	}
	cred, err := j.Credential()
	if err != nil {
		return auth.Credential{}, err
	}
	if !cred.Valid() {
		return auth.Credential{}, ErrNoServiceCredential
	}
	return cred, nil
}

func (j *OverviewWarmJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOverviewWarm))
	}
	return slog.Default().With(slog.String("job", TaskOverviewWarm))
}

func (j *OverviewWarmJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
