package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/futsal-booking/internal/config"
	"github.com/iliyamo/futsal-booking/internal/service"
)

type countingSweeper struct{ runs atomic.Int32 }

func (c *countingSweeper) SweepPending(ctx context.Context, now time.Time) (service.SweepReport, error) {
	c.runs.Add(1)
	return service.SweepReport{}, nil
}

func TestSchedulerRunsSweep(t *testing.T) {
	sw := &countingSweeper{}
	s, err := Start(config.ReconcileConfig{Interval: 20 * time.Millisecond}, sw, zap.NewNop())
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return sw.runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Shutdown())

	after := sw.runs.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, sw.runs.Load())
}
