package license

import (
	"context"
	"errors"
	"time"

	"github.com/grokvideo/backend/internal/store"
)

var (
	// ErrInvalidCredentials is returned when no row matches username and
	// password exactly.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned when the account is administratively
	// deactivated.
	ErrAccountLocked = errors.New("account locked")
	// ErrMachineMismatch is returned when the account is bound to a
	// different machine.
	ErrMachineMismatch = errors.New("machine mismatch")
)

// Denial reasons surfaced by CheckEntitlement. The check endpoint reports
// these as expired=true rather than as HTTP errors, so a running desktop
// client downgrades gracefully instead of crashing on a 4xx.
const (
	DenyNone    = ""
	DenyLocked  = "locked"
	DenyMachine = "machine"
)

// Snapshot is the account state returned to the desktop client.
type Snapshot struct {
	Username   string
	Plan       string
	ExpiresAt  string
	VideoLimit *int
	VideosUsed int
}

// Entitlement is the result of a /check call.
type Entitlement struct {
	OK      bool
	Expired bool
	Deny    string
	Snapshot
}

// Quota is the result of a /check-limit call.
type Quota struct {
	CanGenerate bool
	VideoLimit  *int
	VideosUsed  int
	Remaining   *int
}

// Service implements the account ledger operations used by the desktop
// client.
type Service struct {
	store store.Store
	today func() string // "YYYY-MM-DD" in UTC, overridable in tests
}

func NewService(st store.Store) *Service {
	return &Service{
		store: st,
		today: func() string { return time.Now().UTC().Format("2006-01-02") },
	}
}

func snapshotOf(username, plan, expiresAt string, limit *int, used int) Snapshot {
	return Snapshot{Username: username, Plan: plan, ExpiresAt: expiresAt, VideoLimit: limit, VideosUsed: used}
}

// Authenticate verifies the credentials and, when the account has no bound
// machine yet, binds the supplied machine id (first writer wins). Expiry
// and quota exhaustion are surfaced as data, not as failures.
func (s *Service) Authenticate(ctx context.Context, username, password, machineID string) (*Snapshot, error) {
	a, err := s.store.GetByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if a.Password != password {
		return nil, ErrInvalidCredentials
	}
	if !a.IsActive {
		return nil, ErrAccountLocked
	}
	if machineID != "" && a.MachineID != nil && *a.MachineID != machineID {
		return nil, ErrMachineMismatch
	}
	if machineID != "" && a.MachineID == nil {
		if err := s.store.BindMachine(ctx, username, machineID); err != nil {
			return nil, err
		}
	}
	snap := snapshotOf(a.Username, a.Plan, a.ExpiresAt, a.VideoLimit, a.VideosUsed)
	return &snap, nil
}

// CheckEntitlement reports whether the subscription is currently usable.
// Locked accounts and machine mismatches are reported as expired, never as
// errors, and the check never binds a machine. Returns store.ErrNotFound
// for an unknown username.
func (s *Service) CheckEntitlement(ctx context.Context, username, machineID string) (*Entitlement, error) {
	a, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	e := &Entitlement{Snapshot: snapshotOf(a.Username, a.Plan, a.ExpiresAt, a.VideoLimit, a.VideosUsed)}
	if !a.IsActive {
		e.Expired = true
		e.Deny = DenyLocked
		return e, nil
	}
	if machineID != "" && a.MachineID != nil && *a.MachineID != machineID {
		e.Expired = true
		e.Deny = DenyMachine
		return e, nil
	}
	e.Expired = a.ExpiredAt(s.today())
	e.OK = !e.Expired
	return e, nil
}

// CheckQuota reports whether the account may generate another video.
// Returns store.ErrNotFound or ErrAccountLocked.
func (s *Service) CheckQuota(ctx context.Context, username string) (*Quota, error) {
	a, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !a.IsActive {
		return nil, ErrAccountLocked
	}
	return &Quota{
		CanGenerate: a.CanGenerate(),
		VideoLimit:  a.VideoLimit,
		VideosUsed:  a.VideosUsed,
		Remaining:   a.Remaining(),
	}, nil
}

// RecordUsage increments videos_used by count (minimum 1) and returns the
// new counter. Quota is advisory at this level: recording past the limit
// succeeds, callers are expected to CheckQuota first. Returns
// store.ErrNotFound for an unknown username.
func (s *Service) RecordUsage(ctx context.Context, username string, count int) (used int, limit *int, err error) {
	if count < 1 {
		count = 1
	}
	return s.store.AddUsage(ctx, username, count)
}
