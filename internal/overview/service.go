// Package overview computes the portfolio-wide charts over every request,
// independent of the listing filter.
package overview

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/riskdesk/internal/auth"
	"github.com/odyssey-erp/riskdesk/internal/compliance"
	"github.com/odyssey-erp/riskdesk/internal/listcache"
)

// Overview is the aggregate view of all requests.
type Overview struct {
	Total       int                        `json:"total"`
	ByStatus    []compliance.CategoryCount `json:"by_status"`
	ByRisk      []compliance.CategoryCount `json:"by_risk"`
	GeneratedAt time.Time                  `json:"generated_at"`
}

// Loader is the slice of compliance.Source the service needs.
type Loader interface {
	AllRequests(ctx context.Context, cred auth.Credential) ([]compliance.RequestRecord, error)
}

// DefaultLoadTimeout bounds a shared load once no caller owns it.
const DefaultLoadTimeout = 30 * time.Second

// Service builds overviews, sharing cached results between callers.
type Service struct {
	loader      Loader
	cache       *listcache.Cache
	logger      *slog.Logger
	now         func() time.Time
	loadTimeout time.Duration
	group       singleflight.Group
}

// NewService constructs a Service. cache may be nil.
func NewService(loader Loader, cache *listcache.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{loader: loader, cache: cache, logger: logger, now: time.Now, loadTimeout: DefaultLoadTimeout}
}

// Build aggregates records.
func Build(records []compliance.RequestRecord, now time.Time) Overview {
	return Overview{
		Total:       len(records),
		ByStatus:    compliance.AggregateByStatus(records),
		ByRisk:      compliance.AggregateByRiskBucket(records),
		GeneratedAt: now.UTC(),
	}
}

// Load returns the overview, from cache when possible. The credential is
// checked locally first so a cached result is never served to an expired
// session. Concurrent callers share one load, which outlives the caller
// that started it; each caller stops waiting when its own ctx ends.
func (s *Service) Load(ctx context.Context, cred auth.Credential) (Overview, error) {
	if !cred.Valid() || cred.Expired(s.now()) {
		return Overview{}, compliance.ErrAuthExpired
	}
	key, err := s.cache.BuildKey(ctx, "overview", "all")
	if err != nil {
		s.logger.Warn("overview cache key", slog.Any("error", err))
		key = "overview:all"
	}
	resultChan := s.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()
		var out Overview
		err := s.cache.FetchJSON(loadCtx, key, &out, func(ctx context.Context) (interface{}, error) {
			records, err := s.loader.AllRequests(ctx, cred)
			if err != nil {
				return nil, err
			}
			return Build(records, s.now()), nil
		})
		return out, err
	})
	select {
	case <-ctx.Done():
		return Overview{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return Overview{}, fmt.Errorf("overview: load: %w", res.Err)
		}
		return res.Val.(Overview), nil
	}
}

// Invalidate drops cached overviews after a write.
func (s *Service) Invalidate(ctx context.Context) error {
	if err := s.cache.Bump(ctx); err != nil {
		return fmt.Errorf("overview: invalidate: %w", err)
	}
	return nil
}
