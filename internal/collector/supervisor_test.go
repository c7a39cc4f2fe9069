package collector

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbctool/sbctool/internal/errors"
	"github.com/sbctool/sbctool/internal/logger"
	"github.com/sbctool/sbctool/internal/telemetry"
	transporttest "github.com/sbctool/sbctool/internal/transport/testing"
)

// countingRunner emits one entry per wakeup.
type countingRunner struct {
	runs atomic.Int32
}

func (r *countingRunner) Run(ctx context.Context, out chan<- telemetry.Update, refresh <-chan struct{}) error {
	for {
		r.runs.Add(1)
		if !emit(ctx, out, telemetry.Logs(telemetry.LogEntry{Message: "tick"})) {
			return nil
		}
		if !sleep(ctx, time.Hour, refresh) {
			return nil
		}
	}
}

// stuckRunner ignores cancellation.
type stuckRunner struct {
	release chan struct{}
}

func (r *stuckRunner) Run(context.Context, chan<- telemetry.Update, <-chan struct{}) error {
	<-r.release
	return nil
}

func TestSupervisor_RefreshWakesEveryRunner(t *testing.T) {
	a, b := &countingRunner{}, &countingRunner{}
	s := NewSupervisorFor(logger.Noop(), time.Second, a, b)
	s.Start(context.Background())
	defer s.Stop()

	chans := s.Updates()
	require.Len(t, chans, 2)
	for _, ch := range chans {
		receive(t, ch)
	}

	s.Refresh()
	for _, ch := range chans {
		receive(t, ch)
	}
	assert.Equal(t, int32(2), a.runs.Load())
	assert.Equal(t, int32(2), b.runs.Load())
}

func TestSupervisor_StopClosesChannels(t *testing.T) {
	s := NewSupervisorFor(logger.Noop(), time.Second, &countingRunner{})
	s.Start(context.Background())

	ch := s.Updates()[0]
	receive(t, ch)

	require.NoError(t, s.Stop())

	select {
	case <-s.Done():
	default:
		t.Fatal("Done should be closed after Stop")
	}
	_, open := <-ch
	assert.False(t, open)
}

func TestSupervisor_StopIsBounded(t *testing.T) {
	stuck := &stuckRunner{release: make(chan struct{})}
	defer close(stuck.release)

	s := NewSupervisorFor(logger.Noop(), 20*time.Millisecond, stuck)
	s.Start(context.Background())

	start := time.Now()
	err := s.Stop()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTransport))
	assert.Less(t, time.Since(start), time.Second)
}

func TestSupervisor_StopBeforeStart(t *testing.T) {
	s := NewSupervisorFor(logger.Noop(), time.Second, &countingRunner{})
	assert.NoError(t, s.Stop())
}

func TestSupervisor_ParentCancelStopsRunners(t *testing.T) {
	session := transporttest.Android()
	ctx, cancel := context.WithCancel(context.Background())

	s := NewSupervisor(session, testOptions(), time.Second)
	s.Start(ctx)
	receive(t, s.Updates()[0]) // start banner

	cancel()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("collectors did not stop")
	}
}
