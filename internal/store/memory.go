package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/grokvideo/backend/internal/models"
)

// Memory is a mutex-guarded in-process Store with the same observable
// semantics as Postgres. It backs the tests.
type Memory struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		accounts: map[string]*models.Account{},
		now:      time.Now,
	}
}

var _ Store = (*Memory)(nil)

func clone(a *models.Account) *models.Account {
	c := *a
	if a.MachineID != nil {
		v := *a.MachineID
		c.MachineID = &v
	}
	if a.VideoLimit != nil {
		v := *a.VideoLimit
		c.VideoLimit = &v
	}
	return &c
}

func (s *Memory) GetByUsername(_ context.Context, username string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[username]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(a), nil
}

func (s *Memory) List(_ context.Context) ([]*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		list = append(list, clone(a))
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].Username < list[j].Username
	})
	return list, nil
}

func (s *Memory) Upsert(_ context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := clone(a)
	row.IsActive = true
	row.VideosUsed = 0
	if prev, ok := s.accounts[a.Username]; ok {
		row.CreatedAt = prev.CreatedAt
	} else {
		row.CreatedAt = s.now()
	}
	s.accounts[a.Username] = row
	a.CreatedAt = row.CreatedAt
	return nil
}

func (s *Memory) Patch(_ context.Context, username string, p AccountPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[username]
	if !ok {
		return nil
	}
	if p.Password != nil {
		a.Password = *p.Password
	}
	if p.Plan != nil {
		a.Plan = *p.Plan
	}
	if p.ExpiresAt != nil {
		a.ExpiresAt = *p.ExpiresAt
	}
	if p.IsActive != nil {
		a.IsActive = *p.IsActive
	}
	if p.MachineID != nil {
		v := *p.MachineID
		a.MachineID = &v
	}
	if p.VideoLimit != nil {
		v := *p.VideoLimit
		a.VideoLimit = &v
	}
	if p.ResetMachine {
		a.MachineID = nil
	}
	if p.ResetUsage {
		a.VideosUsed = 0
	}
	return nil
}

func (s *Memory) Delete(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, username)
	return nil
}

func (s *Memory) BindMachine(_ context.Context, username, machineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[username]
	if !ok || a.MachineID != nil {
		return nil
	}
	v := machineID
	a.MachineID = &v
	return nil
}

func (s *Memory) AddUsage(_ context.Context, username string, count int) (int, *int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[username]
	if !ok {
		return 0, nil, ErrNotFound
	}
	a.VideosUsed += count
	var limit *int
	if a.VideoLimit != nil {
		v := *a.VideoLimit
		limit = &v
	}
	return a.VideosUsed, limit, nil
}
