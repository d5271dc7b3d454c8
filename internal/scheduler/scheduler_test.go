package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavendermoon/villa-pms/internal/common/metrics"
)

type fakeExpirer struct {
	calls   atomic.Int32
	lastTTL atomic.Int64
	err     error
}

func (f *fakeExpirer) ExpireStalePending(_ context.Context, ttl time.Duration, batch int) (int, error) {
	f.calls.Add(1)
	f.lastTTL.Store(int64(ttl))
	if batch != expireBatchSize {
		return 0, errors.New("unexpected batch size")
	}
	return 1, f.err
}

type fakeRooms struct {
	counts map[string]int64
	err    error
}

func (f *fakeRooms) CountByStatus(context.Context) (map[string]int64, error) {
	return f.counts, f.err
}

func TestScheduler_RunsImmediatelyAndOnTick(t *testing.T) {
	s := NewScheduler(nil)
	var runs atomic.Int32
	s.AddTask("count", 20*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	stopped := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, runs.Load())

	// 重复 Stop 不阻塞
	s.Stop()
}

func TestScheduler_FailingTaskKeepsRunning(t *testing.T) {
	s := NewScheduler(nil)
	var runs atomic.Int32
	s.AddTask("flaky", 10*time.Millisecond, func(context.Context) error {
		if runs.Add(1) == 1 {
			panic("boom")
		}
		return errors.New("still failing")
	})

	s.Start()
	defer s.Stop()
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_TaskTimeout(t *testing.T) {
	s := NewScheduler(nil)
	s.SetTaskTimeout(10 * time.Millisecond)

	done := make(chan error, 1)
	s.AddTask("slow", time.Hour, func(ctx context.Context) error {
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	})

	s.Start()
	defer s.Stop()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("task was not cancelled")
	}
}

func TestScheduler_IgnoresNonPositiveInterval(t *testing.T) {
	s := NewScheduler(nil)
	s.AddTask("never", 0, func(context.Context) error { return nil })
	assert.Empty(t, s.Tasks())
}

func TestSetupTasks(t *testing.T) {
	expirer := &fakeExpirer{}
	h := NewTaskHandler(expirer, nil, nil, 24*time.Hour)

	s := NewScheduler(nil)
	SetupTasks(s, h, 15*time.Minute)
	require.Len(t, s.Tasks(), 2)
	assert.Equal(t, "ExpirePendingReservations", s.Tasks()[0].Name)
	assert.Equal(t, 15*time.Minute, s.Tasks()[0].Interval)

	// TTL 为 0 时不注册过期任务
	s = NewScheduler(nil)
	SetupTasks(s, NewTaskHandler(expirer, nil, nil, 0), 15*time.Minute)
	require.Len(t, s.Tasks(), 1)
	assert.Equal(t, "RefreshRoomGauge", s.Tasks()[0].Name)
}

func TestTaskHandler_ExpirePendingReservations(t *testing.T) {
	expirer := &fakeExpirer{}
	h := NewTaskHandler(expirer, nil, nil, 90*time.Minute)

	require.NoError(t, h.ExpirePendingReservations(context.Background()))
	assert.Equal(t, int32(1), expirer.calls.Load())
	assert.Equal(t, int64(90*time.Minute), expirer.lastTTL.Load())

	expirer.err = errors.New("db down")
	assert.Error(t, h.ExpirePendingReservations(context.Background()))
}

func TestTaskHandler_RefreshRoomGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New("test", reg)
	rooms := &fakeRooms{counts: map[string]int64{"available": 5, "occupied": 2}}
	h := NewTaskHandler(&fakeExpirer{}, rooms, m, time.Hour)

	require.NoError(t, h.RefreshRoomGauge(context.Background()))
	n, err := testutil.GatherAndCount(reg, "test_rooms_by_status")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rooms.err = errors.New("db down")
	assert.Error(t, h.RefreshRoomGauge(context.Background()))

	// 未配置指标时跳过
	assert.NoError(t, NewTaskHandler(&fakeExpirer{}, rooms, nil, time.Hour).RefreshRoomGauge(context.Background()))
}
