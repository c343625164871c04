package store

import (
	"context"
	"errors"

	"github.com/grokvideo/backend/internal/models"
)

// ErrNotFound is returned when no account row matches the username.
var ErrNotFound = errors.New("account not found")

// AccountPatch is a partial update. Pointer fields are applied only when
// non-nil; the Reset flags clear their column regardless of the pointers.
type AccountPatch struct {
	Password     *string
	Plan         *string
	ExpiresAt    *string
	IsActive     *bool
	MachineID    *string
	VideoLimit   *int
	ResetMachine bool
	ResetUsage   bool
}

// Empty reports whether the patch would change nothing.
func (p AccountPatch) Empty() bool {
	return p.Password == nil && p.Plan == nil && p.ExpiresAt == nil &&
		p.IsActive == nil && p.MachineID == nil && p.VideoLimit == nil &&
		!p.ResetMachine && !p.ResetUsage
}

// Store is the account ledger persistence contract.
type Store interface {
	// GetByUsername returns the account or ErrNotFound.
	GetByUsername(ctx context.Context, username string) (*models.Account, error)

	// List returns all accounts, newest created_at first.
	List(ctx context.Context) ([]*models.Account, error)

	// Upsert inserts the account or replaces an existing row with the same
	// username. A replaced row keeps its created_at but is reactivated and
	// its videos_used is reset to zero.
	Upsert(ctx context.Context, a *models.Account) error

	// Patch applies the non-empty parts of p. Patching a missing row is not
	// an error; it affects zero rows.
	Patch(ctx context.Context, username string, p AccountPatch) error

	// Delete removes the row. Deleting a missing row is not an error.
	Delete(ctx context.Context, username string) error

	// BindMachine sets machine_id only if it is currently unset
	// (first-writer-wins, single conditional write). Binding an already
	// bound or missing row affects zero rows and is not an error.
	BindMachine(ctx context.Context, username, machineID string) error

	// AddUsage atomically increments videos_used by count and returns the
	// new counter and the current limit. Returns ErrNotFound for a missing
	// row.
	AddUsage(ctx context.Context, username string, count int) (used int, limit *int, err error)
}
