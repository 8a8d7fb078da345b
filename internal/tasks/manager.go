package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const MaxLogsPerTask = 1000

// Manager runs registered tasks on their interval until its context is cancelled.
type Manager struct {
	tasks sync.Map

	mu      sync.Mutex
	ctx     context.Context
	started bool
	wg      sync.WaitGroup
}

func NewManager() *Manager {
	return &Manager{}
}

// Register adds a task. Tasks with a positive interval are scheduled once the
// manager is started; registering after Start schedules immediately.
func (m *Manager) Register(name string, interval time.Duration, fn TaskFunc) {
	task := &RunnableTask{
		Name:         name,
		Interval:     interval,
		Handler:      fn,
		Logs:         make([]LogEntry, 0),
		registeredAt: time.Now(),
	}
	m.tasks.Store(name, task)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started && interval > 0 {
		m.goLocked(func(ctx context.Context) { m.scheduler(ctx, task) })
	}
}

// Start schedules every interval task. Runs stop when ctx is cancelled; use Wait to
// join them.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.ctx = ctx
	m.started = true

	m.tasks.Range(func(_, value any) bool {
		task := value.(*RunnableTask)
		if task.Interval > 0 {
			m.goLocked(func(ctx context.Context) { m.scheduler(ctx, task) })
		}
		return true
	})
}

// Wait blocks until all schedulers and triggered runs have returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Trigger runs a task out of schedule. The run is bound to the manager's context.
func (m *Manager) Trigger(name string) error {
	t, ok := m.tasks.Load(name)
	if !ok {
		return TaskNotFoundError{Name: name}
	}
	task := t.(*RunnableTask)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return ErrNotStarted
	}
	m.goLocked(task.Run)
	return nil
}

func (m *Manager) ListStatus() []TaskStatus {
	var list []TaskStatus
	m.tasks.Range(func(key, value any) bool {
		task := value.(*RunnableTask)
		list = append(list, task.Status())
		return true
	})
	return list
}

func (m *Manager) GetLogs(name string) ([]LogEntry, error) {
	t, ok := m.tasks.Load(name)
	if !ok {
		return nil, TaskNotFoundError{Name: name}
	}
	task := t.(*RunnableTask)
	return task.GetLogs(), nil
}

// goLocked starts fn tracked by the wait group. m.mu must be held.
func (m *Manager) goLocked(fn func(ctx context.Context)) {
	ctx := m.ctx
	if ctx.Err() != nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn(ctx)
	}()
}

func (m *Manager) scheduler(ctx context.Context, task *RunnableTask) {
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("task", task.Name).Msg("scheduler stopped")
			return
		case <-ticker.C:
			task.Run(ctx)
		}
	}
}
