package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vinayakanadinni99/ETL-Finance/model"
	"github.com/vinayakanadinni99/ETL-Finance/pipeline"
)

type mockRunner struct {
	runFunc func(ctx context.Context) (*pipeline.Report, error)
	calls   atomic.Int32
}

func (m *mockRunner) Run(ctx context.Context) (*pipeline.Report, error) {
	m.calls.Add(1)
	return m.runFunc(ctx)
}

func getTestLogger(buffer *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buffer, nil))
}

func TestNew(t *testing.T) {
	runner := &mockRunner{}

	s, err := New(runner, getTestLogger(&bytes.Buffer{}), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultSpec, s.Spec)
	assert.Len(t, s.Cron.Entries(), 1)

	_, err = New(runner, getTestLogger(&bytes.Buffer{}), "0 6 * * 1-5")
	assert.NoError(t, err)

	_, err = New(runner, getTestLogger(&bytes.Buffer{}), "every day please")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `register pipeline job "every day please"`)
}

func TestRunNow(t *testing.T) {
	var logs bytes.Buffer
	runner := &mockRunner{runFunc: func(context.Context) (*pipeline.Report, error) {
		return &pipeline.Report{Symbol: "IBM", RowsLoaded: 100}, nil
	}}

	s, err := New(runner, getTestLogger(&logs), DefaultSpec)
	require.NoError(t, err)

	report, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, report.RowsLoaded)
	assert.Contains(t, logs.String(), "Pipeline run succeeded")
}

func TestRunNow_FailureIsLoggedWithKind(t *testing.T) {
	var logs bytes.Buffer
	runner := &mockRunner{runFunc: func(context.Context) (*pipeline.Report, error) {
		return &pipeline.Report{Symbol: "IBM"}, &model.UpstreamError{Field: "Note", Message: "slow down"}
	}}

	s, err := New(runner, getTestLogger(&logs), DefaultSpec)
	require.NoError(t, err)

	_, err = s.RunNow(context.Background())
	assert.ErrorIs(t, err, model.ErrUpstream)
	assert.Contains(t, logs.String(), "Pipeline run failed")
	assert.Contains(t, logs.String(), "kind=UpstreamError")
}

func TestScheduler_TriggersRuns(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for cron ticks")
	}

	runner := &mockRunner{runFunc: func(context.Context) (*pipeline.Report, error) {
		return &pipeline.Report{}, nil
	}}

	s, err := New(runner, getTestLogger(&bytes.Buffer{}), "@every 1s")
	require.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool { return runner.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	<-s.Stop().Done()
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for cron ticks")
	}

	release := make(chan struct{})
	runner := &mockRunner{runFunc: func(context.Context) (*pipeline.Report, error) {
		<-release
		return nil, errors.New("released")
	}}

	s, err := New(runner, getTestLogger(&bytes.Buffer{}), "@every 1s")
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, 3*time.Second, 50*time.Millisecond)

	// further ticks fire while the first run is blocked
	time.Sleep(2200 * time.Millisecond)
	assert.Equal(t, int32(1), runner.calls.Load())

	close(release)
	<-s.Stop().Done()
}
