// Package memory keeps giveaways in process memory. State is lost on exit.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository"
)

// State is the complete store content. Map keys are giveaway ids and encode
// as JSON strings.
type State struct {
	NextID   int64                                `json:"next_id"`
	Active   map[int64]*models.Giveaway           `json:"active"`
	Archive  map[int64]*models.Giveaway           `json:"archive"`
	Counters map[int64]*models.EngagementCounters `json:"counters"`
}

func emptyState() State {
	return State{
		Active:   make(map[int64]*models.Giveaway),
		Archive:  make(map[int64]*models.Giveaway),
		Counters: make(map[int64]*models.EngagementCounters),
	}
}

type Store struct {
	mu    sync.RWMutex
	state State
}

func New() *Store {
	return &Store{state: emptyState()}
}

// NewFromState builds a store around previously saved state.
func NewFromState(s State) *Store {
	st := emptyState()
	st.NextID = s.NextID
	for id, g := range s.Active {
		st.Active[id] = g
		st.NextID = max(st.NextID, id)
	}
	for id, g := range s.Archive {
		st.Archive[id] = g
		st.NextID = max(st.NextID, id)
	}
	for id, c := range s.Counters {
		st.Counters[id] = c
	}
	return &Store{state: st}
}

// Snapshot returns a deep copy of the state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := emptyState()
	out.NextID = s.state.NextID
	for id, g := range s.state.Active {
		out.Active[id] = g.Clone()
	}
	for id, g := range s.state.Archive {
		out.Archive[id] = g.Clone()
	}
	for id, c := range s.state.Counters {
		cc := *c
		out.Counters[id] = &cc
	}
	return out
}

// Restore replaces the whole state with st.
func (s *Store) Restore(st State) {
	fresh := NewFromState(st)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = fresh.state
}

func (s *Store) Create(_ context.Context, g *models.Giveaway) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.NextID++
	g.ID = s.state.NextID
	s.state.Active[g.ID] = g.Clone()
	return nil
}

func (s *Store) GetByID(_ context.Context, id int64) (*models.Giveaway, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.state.Active[id]
	if !ok {
		return nil, repository.ErrGiveawayNotFound
	}
	return g.Clone(), nil
}

func (s *Store) Update(_ context.Context, g *models.Giveaway) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.Active[g.ID]; !ok {
		return repository.ErrGiveawayNotFound
	}
	s.state.Active[g.ID] = g.Clone()
	return nil
}

func (s *Store) SetForcedWinner(_ context.Context, id int64, userID snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.state.Active[id]
	if !ok {
		return repository.ErrGiveawayNotFound
	}
	if g.Status != models.StatusCounting {
		return repository.ErrNotCounting
	}
	g.ForcedWinner = &userID
	g.UpdatedAt = time.Now()
	return nil
}

func (s *Store) BeginResolution(_ context.Context, id int64, at time.Time) (*models.Giveaway, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.state.Active[id]
	if !ok {
		return nil, repository.ErrGiveawayNotFound
	}
	if g.Status.IsTerminal() {
		return nil, repository.ErrNotCounting
	}
	g.Status = models.StatusResolving
	g.UpdatedAt = at
	return g.Clone(), nil
}

func (s *Store) Remove(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.state.Active, id)
	delete(s.state.Counters, id)
	return nil
}

func (s *Store) ListActive(_ context.Context) ([]*models.Giveaway, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sorted(s.state.Active, 0), nil
}

func (s *Store) Archive(_ context.Context, g *models.Giveaway) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Archive[g.ID] = g.Clone()
	return nil
}

func (s *Store) GetArchived(_ context.Context, id int64) (*models.Giveaway, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.state.Archive[id]
	if !ok {
		return nil, repository.ErrGiveawayNotFound
	}
	return g.Clone(), nil
}

func (s *Store) ListArchived(_ context.Context, guildID snowflake.ID) ([]*models.Giveaway, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sorted(s.state.Archive, guildID), nil
}

func (s *Store) PruneArchive(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, g := range s.state.Archive {
		if repository.Archivable(g, before) {
			delete(s.state.Archive, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) SaveCounters(_ context.Context, id int64, c models.EngagementCounters) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Counters[id] = &c
	return nil
}

func (s *Store) LoadCounters(_ context.Context, id int64) (*models.EngagementCounters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.state.Counters[id]
	if !ok {
		return nil, repository.ErrCountersNotFound
	}
	cc := *c
	return &cc, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func sorted(m map[int64]*models.Giveaway, guildID snowflake.ID) []*models.Giveaway {
	out := make([]*models.Giveaway, 0, len(m))
	for _, g := range m {
		if guildID != 0 && g.GuildID != guildID {
			continue
		}
		out = append(out, g.Clone())
	}
	slices.SortFunc(out, func(a, b *models.Giveaway) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}
