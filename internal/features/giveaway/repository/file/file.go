// Package file persists giveaways to a single JSON file. The whole state is
// written back after every mutation.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository/memory"
)

type Store struct {
	path string
	// serializes mutation+save pairs so the file never lags behind a newer write
	mu  sync.Mutex
	mem *memory.Store
}

// Open loads path. A missing file is treated as an empty store.
func Open(path string) (*Store, error) {
	state := memory.State{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	case len(data) > 0:
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	return &Store{path: path, mem: memory.NewFromState(state)}, nil
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.mem.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// mutate applies fn and writes the state back. When the write fails the
// in-memory state is rolled back so it never runs ahead of the file.
func (s *Store) mutate(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.mem.Snapshot()
	if err := fn(); err != nil {
		return err
	}
	if err := s.save(); err != nil {
		s.mem.Restore(before)
		return err
	}
	return nil
}

func (s *Store) Create(ctx context.Context, g *models.Giveaway) error {
	return s.mutate(func() error { return s.mem.Create(ctx, g) })
}

func (s *Store) GetByID(ctx context.Context, id int64) (*models.Giveaway, error) {
	return s.mem.GetByID(ctx, id)
}

func (s *Store) Update(ctx context.Context, g *models.Giveaway) error {
	return s.mutate(func() error { return s.mem.Update(ctx, g) })
}

func (s *Store) SetForcedWinner(ctx context.Context, id int64, userID snowflake.ID) error {
	return s.mutate(func() error { return s.mem.SetForcedWinner(ctx, id, userID) })
}

func (s *Store) BeginResolution(ctx context.Context, id int64, at time.Time) (*models.Giveaway, error) {
	var g *models.Giveaway
	err := s.mutate(func() error {
		var err error
		g, err = s.mem.BeginResolution(ctx, id, at)
		return err
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Store) Remove(ctx context.Context, id int64) error {
	return s.mutate(func() error { return s.mem.Remove(ctx, id) })
}

func (s *Store) ListActive(ctx context.Context) ([]*models.Giveaway, error) {
	return s.mem.ListActive(ctx)
}

func (s *Store) Archive(ctx context.Context, g *models.Giveaway) error {
	return s.mutate(func() error { return s.mem.Archive(ctx, g) })
}

func (s *Store) GetArchived(ctx context.Context, id int64) (*models.Giveaway, error) {
	return s.mem.GetArchived(ctx, id)
}

func (s *Store) ListArchived(ctx context.Context, guildID snowflake.ID) ([]*models.Giveaway, error) {
	return s.mem.ListArchived(ctx, guildID)
}

func (s *Store) PruneArchive(ctx context.Context, before time.Time) (int, error) {
	var n int
	err := s.mutate(func() error {
		var err error
		n, err = s.mem.PruneArchive(ctx, before)
		return err
	})
	return n, err
}

func (s *Store) SaveCounters(ctx context.Context, id int64, c models.EngagementCounters) error {
	return s.mutate(func() error { return s.mem.SaveCounters(ctx, id, c) })
}

func (s *Store) LoadCounters(ctx context.Context, id int64) (*models.EngagementCounters, error) {
	return s.mem.LoadCounters(ctx, id)
}

// Ping checks that the directory holding the file is still writable.
func (s *Store) Ping(context.Context) error {
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}
