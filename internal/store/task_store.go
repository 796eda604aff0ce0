// Package store holds the canonical task, sprint and retrospective
// collections. Every mutation is written through to the persistence adapter
// before subscribers are told about it.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/internal/persist"
)

const collectionTasks = "tasks"

// TaskStore owns the task collection.
type TaskStore struct {
	mu      sync.RWMutex
	tasks   []domain.Task
	adapter *persist.Adapter
	broker  *broker[[]domain.Task]
	opts    options
}

func NewTaskStore(adapter *persist.Adapter, opts ...Option) *TaskStore {
	return &TaskStore{
		adapter: adapter,
		broker:  newBroker[[]domain.Task](),
		opts:    buildOptions(opts),
	}
}

// Restore replaces the collection with the persisted snapshot. When no
// snapshot exists the seed is installed and written back.
func (s *TaskStore) Restore(ctx context.Context, seed []domain.Task) error {
	tasks, found, err := persist.Load[domain.Task](ctx, s.adapter, persist.KeyTasks)
	if err != nil {
		return err
	}

	s.broker.begin(s.mu.Lock)
	if found {
		s.tasks = tasks
		s.opts.metrics.CollectionSize(collectionTasks, len(s.tasks))
		s.broker.handoff(s.mu.Unlock, s.snapshotLocked())
		return nil
	}

	s.tasks = append([]domain.Task(nil), seed...)
	s.opts.logger.Info("no task snapshot found, seeding", zap.Int("tasks", len(seed)))
	err = s.persistLocked(ctx, "restore")
	s.broker.handoff(s.mu.Unlock, s.snapshotLocked())
	return err
}

// Subscribe registers fn to receive a copy of the collection after every change.
func (s *TaskStore) Subscribe(fn func([]domain.Task)) (unsubscribe func()) {
	return s.broker.subscribe(fn)
}

// AddTask creates a task with a fresh id and status todo. Invalid input is
// rejected without touching the collection. A persistence error is returned
// alongside the created task; the task stays in memory.
func (s *TaskStore) AddTask(ctx context.Context, in domain.TaskInput) (domain.Task, error) {
	if err := in.Validate(); err != nil {
		return domain.Task{}, err
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}

	s.broker.begin(s.mu.Lock)
	task := domain.Task{
		ID:          s.uniqueIDLocked(),
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate,
		Priority:    in.Priority,
		Status:      domain.StatusTodo,
		SprintID:    in.SprintID,
	}
	s.tasks = append(s.tasks, task)
	err := s.persistLocked(ctx, "add")
	s.broker.handoff(s.mu.Unlock, s.snapshotLocked())
	return task, err
}

// UpdateTask replaces the task with the same id. An unknown id is a no-op
// and reports false.
func (s *TaskStore) UpdateTask(ctx context.Context, task domain.Task) (bool, error) {
	if err := task.Validate(); err != nil {
		return false, err
	}

	s.broker.begin(s.mu.Lock)
	idx := s.indexLocked(task.ID)
	if idx < 0 {
		s.broker.abort(s.mu.Unlock)
		return false, nil
	}
	s.tasks[idx] = task
	err := s.persistLocked(ctx, "update")
	s.broker.handoff(s.mu.Unlock, s.snapshotLocked())
	return true, err
}

// DeleteTask removes the task with id. Deleting an unknown id is a no-op.
func (s *TaskStore) DeleteTask(ctx context.Context, id string) (bool, error) {
	s.broker.begin(s.mu.Lock)
	idx := s.indexLocked(id)
	if idx < 0 {
		s.broker.abort(s.mu.Unlock)
		return false, nil
	}
	s.tasks = append(s.tasks[:idx:idx], s.tasks[idx+1:]...)
	err := s.persistLocked(ctx, "delete")
	s.broker.handoff(s.mu.Unlock, s.snapshotLocked())
	return true, err
}

// Tasks returns a copy of the whole collection.
func (s *TaskStore) Tasks() []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Task looks a single task up by id.
func (s *TaskStore) Task(id string) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexLocked(id); idx >= 0 {
		return s.tasks[idx], true
	}
	return domain.Task{}, false
}

func (s *TaskStore) TasksByStatus(status domain.TaskStatus) []domain.Task {
	return s.filter(func(t *domain.Task) bool { return t.Status == status })
}

func (s *TaskStore) TasksBySprint(sprintID string) []domain.Task {
	return s.filter(func(t *domain.Task) bool { return t.SprintID == sprintID })
}

// UpcomingTasks returns open tasks due between now and now+days, both ends
// inclusive. Overdue tasks are not upcoming.
func (s *TaskStore) UpcomingTasks(days int) []domain.Task {
	now := s.opts.now()
	until := now.AddDate(0, 0, days)
	return s.filter(func(t *domain.Task) bool {
		return !t.IsCompleted() && t.DueWithin(now, until)
	})
}

// CountByStatus returns the number of tasks in every status.
func (s *TaskStore) CountByStatus() map[domain.TaskStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[domain.TaskStatus]int, 3)
	for _, st := range domain.Statuses() {
		counts[st] = 0
	}
	for i := range s.tasks {
		counts[s.tasks[i].Status]++
	}
	return counts
}

// Now exposes the store clock so derived views agree with the queries.
func (s *TaskStore) Now() time.Time {
	return s.opts.now()
}

func (s *TaskStore) filter(keep func(*domain.Task) bool) []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Task, 0, len(s.tasks))
	for i := range s.tasks {
		if keep(&s.tasks[i]) {
			out = append(out, s.tasks[i])
		}
	}
	return out
}

func (s *TaskStore) indexLocked(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *TaskStore) uniqueIDLocked() string {
	return uniqueID(s.opts.newID, func(id string) bool { return s.indexLocked(id) >= 0 })
}

func (s *TaskStore) snapshotLocked() []domain.Task {
	return append(make([]domain.Task, 0, len(s.tasks)), s.tasks...)
}

func (s *TaskStore) persistLocked(ctx context.Context, op string) error {
	s.opts.metrics.Mutation(collectionTasks, op)
	s.opts.metrics.CollectionSize(collectionTasks, len(s.tasks))
	err := persist.Save(ctx, s.adapter, persist.KeyTasks, s.tasks)
	if err != nil {
		s.opts.metrics.PersistFailed(collectionTasks)
		if !errors.Is(err, persist.ErrPersistFailed) {
			s.opts.logger.Error("unexpected persistence error", zap.Error(err))
		}
	}
	return err
}
