package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/rca/internal/errors"
	"github.com/crimson-sun/rca/internal/model"
)

func fakeSampler(cpuPct float64, cpuErr error, memPct float64, memErr error, procs []model.ProcessSample) *Sampler {
	s := NewSampler(WithTopProcesses(2))
	s.cpuPercent = func(context.Context, time.Duration) (float64, error) { return cpuPct, cpuErr }
	s.memPercent = func(context.Context) (float64, error) { return memPct, memErr }
	s.processes = func(context.Context) ([]model.ProcessSample, error) { return procs, nil }
	s.now = func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }
	return s
}

func TestSampleKeepsTopProcesses(t *testing.T) {
	procs := []model.ProcessSample{
		{PID: 10, Name: "idle", CPUPct: 0.1},
		{PID: 20, Name: "java", CPUPct: 88, MemPct: 40},
		{PID: 30, Name: "postgres", CPUPct: 12, MemPct: 20},
		{PID: 5, Name: "twin", CPUPct: 12, MemPct: 20},
	}
	sig, err := fakeSampler(97, nil, 91.5, nil, procs).Sample(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 97.0, sig.CPUPct)
	assert.Equal(t, 91.5, sig.MemPct)
	assert.Equal(t, time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC), sig.SampledAt)
	require.Len(t, sig.PerProcess, 2)
	assert.Equal(t, "java", sig.PerProcess[0].Name)
	assert.Equal(t, int32(5), sig.PerProcess[1].PID)
}

func TestSamplePartialFailure(t *testing.T) {
	sig, err := fakeSampler(0, errors.New("no /proc/stat"), 50, nil, nil).Sample(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sig.CPUPct)
	assert.Equal(t, 50.0, sig.MemPct)
}

func TestSampleTotalFailure(t *testing.T) {
	_, err := fakeSampler(0, errors.New("cpu"), 0, errors.New("mem"), nil).Sample(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCollaboratorUnavailable(err))
}

func TestSampleLiveHost(t *testing.T) {
	if testing.Short() {
		t.Skip("reads the live host")
	}
	sig, err := NewSampler(WithInterval(50*time.Millisecond), WithTopProcesses(3)).Sample(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sig.MemPct, 0.0)
	assert.LessOrEqual(t, len(sig.PerProcess), 3)
}
