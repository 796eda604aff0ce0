package store

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/internal/persist"
)

const (
	collectionSprints        = "sprints"
	collectionRetrospectives = "retrospectives"
)

// TaskSource is the slice of TaskStore the sprint store reads for progress.
type TaskSource interface {
	TasksBySprint(sprintID string) []domain.Task
}

// SprintChange is published after any sprint or retrospective mutation.
type SprintChange struct {
	Sprints        []domain.Sprint
	Retrospectives []domain.Retrospective
}

// SprintStore owns sprints and the append-only retrospective log.
type SprintStore struct {
	mu      sync.RWMutex
	sprints []domain.Sprint
	retros  []domain.Retrospective
	tasks   TaskSource
	adapter *persist.Adapter
	broker  *broker[SprintChange]
	opts    options
}

func NewSprintStore(adapter *persist.Adapter, tasks TaskSource, opts ...Option) *SprintStore {
	return &SprintStore{
		adapter: adapter,
		tasks:   tasks,
		broker:  newBroker[SprintChange](),
		opts:    buildOptions(opts),
	}
}

// Restore loads both snapshots, seeding whichever is missing.
func (s *SprintStore) Restore(ctx context.Context, sprints []domain.Sprint, retros []domain.Retrospective) error {
	loadedSprints, sprintsFound, err := persist.Load[domain.Sprint](ctx, s.adapter, persist.KeySprints)
	if err != nil {
		return err
	}
	loadedRetros, retrosFound, err := persist.Load[domain.Retrospective](ctx, s.adapter, persist.KeyRetrospectives)
	if err != nil {
		return err
	}

	s.broker.begin(s.mu.Lock)
	var errs []error
	if sprintsFound {
		s.sprints = loadedSprints
	} else {
		s.sprints = append([]domain.Sprint(nil), sprints...)
		s.opts.logger.Info("no sprint snapshot found, seeding", zap.Int("sprints", len(sprints)))
		errs = append(errs, s.persistSprintsLocked(ctx, "restore"))
	}
	if retrosFound {
		s.retros = loadedRetros
	} else {
		s.retros = append([]domain.Retrospective(nil), retros...)
		errs = append(errs, s.persistRetrosLocked(ctx, "restore"))
	}
	s.broker.handoff(s.mu.Unlock, s.changeLocked())
	return errors.Join(errs...)
}

func (s *SprintStore) Subscribe(fn func(SprintChange)) (unsubscribe func()) {
	return s.broker.subscribe(fn)
}

// AddSprint appends sprint, assigning an id when the caller left it empty.
func (s *SprintStore) AddSprint(ctx context.Context, sprint domain.Sprint) (domain.Sprint, error) {
	if err := sprint.Validate(); err != nil {
		return domain.Sprint{}, err
	}
	if sprint.Tasks == nil {
		sprint.Tasks = []string{}
	}

	s.broker.begin(s.mu.Lock)
	if sprint.ID == "" || s.sprintIndexLocked(sprint.ID) >= 0 {
		sprint.ID = uniqueID(s.opts.newID, func(id string) bool { return s.sprintIndexLocked(id) >= 0 })
	}
	s.sprints = append(s.sprints, sprint)
	err := s.persistSprintsLocked(ctx, "add")
	s.broker.handoff(s.mu.Unlock, s.changeLocked())
	return sprint, err
}

// UpdateSprint replaces the sprint with the same id; unknown ids are ignored.
func (s *SprintStore) UpdateSprint(ctx context.Context, sprint domain.Sprint) (bool, error) {
	if sprint.ID == "" {
		return false, domain.Invalid("id", "required")
	}
	if err := sprint.Validate(); err != nil {
		return false, err
	}
	if sprint.Tasks == nil {
		sprint.Tasks = []string{}
	}

	s.broker.begin(s.mu.Lock)
	idx := s.sprintIndexLocked(sprint.ID)
	if idx < 0 {
		s.broker.abort(s.mu.Unlock)
		return false, nil
	}
	s.sprints[idx] = sprint
	err := s.persistSprintsLocked(ctx, "update")
	s.broker.handoff(s.mu.Unlock, s.changeLocked())
	return true, err
}

// DeleteSprint removes the sprint. Tasks pointing at it keep their sprintId.
func (s *SprintStore) DeleteSprint(ctx context.Context, id string) (bool, error) {
	s.broker.begin(s.mu.Lock)
	idx := s.sprintIndexLocked(id)
	if idx < 0 {
		s.broker.abort(s.mu.Unlock)
		return false, nil
	}
	s.sprints = append(s.sprints[:idx:idx], s.sprints[idx+1:]...)
	err := s.persistSprintsLocked(ctx, "delete")
	s.broker.handoff(s.mu.Unlock, s.changeLocked())
	return true, err
}

// AddRetrospective appends a retrospective stamped with the store clock.
// There is no update or delete.
func (s *SprintStore) AddRetrospective(ctx context.Context, in domain.RetrospectiveInput) (domain.Retrospective, error) {
	if err := in.Validate(); err != nil {
		return domain.Retrospective{}, err
	}

	s.broker.begin(s.mu.Lock)
	retro := domain.Retrospective{
		ID: uniqueID(s.opts.newID, func(id string) bool {
			for i := range s.retros {
				if s.retros[i].ID == id {
					return true
				}
			}
			return false
		}),
		SprintID:  in.SprintID,
		WentWell:  in.WentWell,
		ToImprove: in.ToImprove,
		CreatedAt: s.opts.now().UTC(),
	}
	s.retros = append(s.retros, retro)
	err := s.persistRetrosLocked(ctx, "add")
	s.broker.handoff(s.mu.Unlock, s.changeLocked())
	return retro, err
}

func (s *SprintStore) Sprints() []domain.Sprint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSprints(s.sprints)
}

func (s *SprintStore) Sprint(id string) (domain.Sprint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.sprintIndexLocked(id); idx >= 0 {
		return cloneSprint(s.sprints[idx]), true
	}
	return domain.Sprint{}, false
}

// CompletedSprints lists sprints whose end date has passed; these are the
// ones offered for a retrospective.
func (s *SprintStore) CompletedSprints() []domain.Sprint {
	now := s.opts.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Sprint, 0, len(s.sprints))
	for i := range s.sprints {
		if s.sprints[i].Ended(now) {
			out = append(out, cloneSprint(s.sprints[i]))
		}
	}
	return out
}

func (s *SprintStore) Retrospectives() []domain.Retrospective {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(make([]domain.Retrospective, 0, len(s.retros)), s.retros...)
}

func (s *SprintStore) RetrospectivesBySprint(sprintID string) []domain.Retrospective {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Retrospective, 0)
	for i := range s.retros {
		if s.retros[i].SprintID == sprintID {
			out = append(out, s.retros[i])
		}
	}
	return out
}

// Progress is the completed fraction of tasks whose sprintId matches, 0 for none.
func (s *SprintStore) Progress(sprintID string) float64 {
	if s.tasks == nil {
		return 0
	}
	return domain.Progress(s.tasks.TasksBySprint(sprintID))
}

func (s *SprintStore) sprintIndexLocked(id string) int {
	for i := range s.sprints {
		if s.sprints[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *SprintStore) changeLocked() SprintChange {
	return SprintChange{
		Sprints:        cloneSprints(s.sprints),
		Retrospectives: append(make([]domain.Retrospective, 0, len(s.retros)), s.retros...),
	}
}

func (s *SprintStore) persistSprintsLocked(ctx context.Context, op string) error {
	s.opts.metrics.Mutation(collectionSprints, op)
	s.opts.metrics.CollectionSize(collectionSprints, len(s.sprints))
	if err := persist.Save(ctx, s.adapter, persist.KeySprints, s.sprints); err != nil {
		s.opts.metrics.PersistFailed(collectionSprints)
		return err
	}
	return nil
}

func (s *SprintStore) persistRetrosLocked(ctx context.Context, op string) error {
	s.opts.metrics.Mutation(collectionRetrospectives, op)
	s.opts.metrics.CollectionSize(collectionRetrospectives, len(s.retros))
	if err := persist.Save(ctx, s.adapter, persist.KeyRetrospectives, s.retros); err != nil {
		s.opts.metrics.PersistFailed(collectionRetrospectives)
		return err
	}
	return nil
}

func cloneSprint(sp domain.Sprint) domain.Sprint {
	sp.Tasks = append([]string{}, sp.Tasks...)
	return sp
}

func cloneSprints(in []domain.Sprint) []domain.Sprint {
	out := make([]domain.Sprint, len(in))
	for i := range in {
		out[i] = cloneSprint(in[i])
	}
	return out
}
