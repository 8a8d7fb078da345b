package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bollustrado/mortimmy/internal/logging"
)

func TestManager_RunsOnIntervalAndStopsOnCancel(t *testing.T) {
	var runs atomic.Int32
	m := NewManager()
	m.Register("tick", 10*time.Millisecond, func(ctx context.Context, logger logging.InternalLogger) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	m.Wait()

	stopped := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, runs.Load(), "no runs after Wait returned")
}

func TestManager_CancelAbortsInFlightRun(t *testing.T) {
	started := make(chan struct{})
	var sawCancel atomic.Bool

	m := NewManager()
	m.Register("block", 0, func(ctx context.Context, logger logging.InternalLogger) error {
		close(started)
		<-ctx.Done()
		sawCancel.Store(true)
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	require.NoError(t, m.Trigger("block"))

	<-started
	cancel()
	m.Wait()

	assert.True(t, sawCancel.Load())
	status := m.ListStatus()
	require.Len(t, status, 1)
	assert.Contains(t, status[0].LastResult, "failed")
}

func TestManager_TriggerUnknownTask(t *testing.T) {
	m := NewManager()
	m.Start(context.Background())

	err := m.Trigger("missing")
	var notFound TaskNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "missing", notFound.Name)
}

func TestManager_TriggerBeforeStart(t *testing.T) {
	m := NewManager()
	m.Register("noop", 0, func(ctx context.Context, logger logging.InternalLogger) error { return nil })

	assert.ErrorIs(t, m.Trigger("noop"), ErrNotStarted)
}

func TestManager_KeepsTaskLogs(t *testing.T) {
	m := NewManager()
	done := make(chan struct{})
	m.Register("chatty", 0, func(ctx context.Context, logger logging.InternalLogger) error {
		defer close(done)
		logger.Info("hello %s", "world")
		return nil
	})
	m.Start(context.Background())
	require.NoError(t, m.Trigger("chatty"))
	<-done
	m.Wait()

	logs, err := m.GetLogs("chatty")
	require.NoError(t, err)

	var messages []string
	for _, entry := range logs {
		messages = append(messages, entry.Message)
	}
	assert.Contains(t, messages, "hello world")
}
