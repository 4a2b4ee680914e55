package overview

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/riskdesk/internal/auth"
	"github.com/odyssey-erp/riskdesk/internal/compliance"
	"github.com/odyssey-erp/riskdesk/internal/listcache"
)

type countingLoader struct {
	calls     atomic.Int32
	cancelled atomic.Bool
	records   []compliance.RequestRecord
	err       error
	gate      chan struct{}
}

func (l *countingLoader) AllRequests(ctx context.Context, _ auth.Credential) ([]compliance.RequestRecord, error) {
	l.calls.Add(1)
	if l.gate != nil {
		<-l.gate
	}
	if ctx.Err() != nil {
		l.cancelled.Store(true)
		return nil, ctx.Err()
	}
	return l.records, l.err
}

var cred = auth.Credential{Token: "tok"}

func sampleRecords() []compliance.RequestRecord {
	return []compliance.RequestRecord{
		{ID: "1", Status: compliance.StatusPending, RiskScore: 10},
		{ID: "2", Status: compliance.StatusApproved, RiskScore: 45},
		{ID: "3", Status: compliance.StatusPending, RiskScore: 80},
		{ID: "4", Status: compliance.StatusRejected, RiskScore: 95},
	}
}

func newCache(t *testing.T) *listcache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return listcache.New(client, time.Minute)
}

func TestBuild(t *testing.T) {
	ov := Build(sampleRecords(), time.Unix(0, 0))
	assert.Equal(t, 4, ov.Total)
	assert.Equal(t, []compliance.CategoryCount{
		{Label: "pending", Value: 2},
		{Label: "approved", Value: 1},
		{Label: "rejected", Value: 1},
	}, ov.ByStatus)
	assert.Equal(t, []compliance.CategoryCount{
		{Label: "Low", Value: 1},
		{Label: "Medium", Value: 1},
		{Label: "High", Value: 2},
	}, ov.ByRisk)
}

func TestLoadServesRepeatsFromRedis(t *testing.T) {
	loader := &countingLoader{records: sampleRecords()}
	svc := NewService(loader, newCache(t), nil)
	ctx := context.Background()

	first, err := svc.Load(ctx, cred)
	require.NoError(t, err)
	second, err := svc.Load(ctx, cred)
	require.NoError(t, err)
	assert.Equal(t, first.ByRisk, second.ByRisk)
	assert.EqualValues(t, 1, loader.calls.Load())

	require.NoError(t, svc.Invalidate(ctx))
	_, err = svc.Load(ctx, cred)
	require.NoError(t, err)
	assert.EqualValues(t, 2, loader.calls.Load())
}

func TestLoadCollapsesConcurrentCallers(t *testing.T) {
	loader := &countingLoader{records: sampleRecords(), gate: make(chan struct{})}
	svc := NewService(loader, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ov, err := svc.Load(context.Background(), cred)
			assert.NoError(t, err)
			assert.Equal(t, 4, ov.Total)
		}()
	}
	require.Eventually(t, func() bool { return loader.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(loader.gate)
	wg.Wait()
	assert.EqualValues(t, 1, loader.calls.Load())
}

func TestLoadSurvivesFirstCallerCancel(t *testing.T) {
	loader := &countingLoader{records: sampleRecords(), gate: make(chan struct{})}
	svc := NewService(loader, nil, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Load(firstCtx, cred)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return loader.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan Overview, 1)
	go func() {
		ov, err := svc.Load(context.Background(), cred)
		assert.NoError(t, err)
		second <- ov
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(loader.gate)

	select {
	case ov := <-second:
		assert.Equal(t, 4, ov.Total)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller never received the shared load")
	}
	assert.False(t, loader.cancelled.Load())
	assert.EqualValues(t, 1, loader.calls.Load())
}

func TestLoadRejectsExpiredCredential(t *testing.T) {
	loader := &countingLoader{records: sampleRecords()}
	svc := NewService(loader, nil, nil)

	_, err := svc.Load(context.Background(), auth.Credential{})
	assert.ErrorIs(t, err, compliance.ErrAuthExpired)

	expired := auth.Credential{Token: "t", ExpiresAt: time.Now().Add(-time.Minute)}
	_, err = svc.Load(context.Background(), expired)
	assert.ErrorIs(t, err, compliance.ErrAuthExpired)
	assert.Zero(t, loader.calls.Load())
}

func TestLoadPropagatesSourceErrors(t *testing.T) {
	loader := &countingLoader{err: errors.New("down")}
	svc := NewService(loader, newCache(t), nil)
	_, err := svc.Load(context.Background(), cred)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
}
