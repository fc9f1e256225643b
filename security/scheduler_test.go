package security_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qollective/qollective-go/security"
)

type countingFlusher struct {
	calls int32
	err   error
}

func (f *countingFlusher) Flush() error {
	atomic.AddInt32(&f.calls, 1)
	return f.err
}

func TestMaintenanceSchedulerStartsAndStopsCleanly(t *testing.T) {
	flusher := &countingFlusher{}
	sched := security.NewMaintenanceScheduler(nil, flusher, nil)
	require.NotNil(t, sched)

	require.NoError(t, sched.Start())
	sched.Stop()
}

func TestMaintenanceSchedulerWithNoJobsStartsCleanly(t *testing.T) {
	sched := security.NewMaintenanceScheduler(nil, nil, nil)
	require.NoError(t, sched.Start())
	sched.Stop()
}

func TestCountingFlusherPropagatesError(t *testing.T) {
	flusher := &countingFlusher{err: errors.New("boom")}
	err := flusher.Flush()
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&flusher.calls))
}
