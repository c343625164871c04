package models

import "time"

// Plan names accepted by the admin API. Anything else is stored as-is but
// gets no default quota.
const (
	PlanTrial     = "trial"
	PlanBasic     = "basic"
	PlanPremium   = "premium"
	PlanUnlimited = "unlimited"
)

// defaultVideoLimits maps a plan to the quota applied when an admin creates
// an account without an explicit video_limit. -1 means unlimited.
var defaultVideoLimits = map[string]int{
	PlanTrial:     10,
	PlanBasic:     50,
	PlanPremium:   200,
	PlanUnlimited: -1,
}

// DefaultVideoLimit returns the per-plan default quota and whether the plan
// is known.
func DefaultVideoLimit(plan string) (int, bool) {
	limit, ok := defaultVideoLimits[plan]
	return limit, ok
}

// Account is one subscriber row in app_users. The username is the primary
// key; there is no surrogate id.
type Account struct {
	Username   string    `json:"username"`
	Password   string    `json:"-"`
	Plan       string    `json:"plan"`
	ExpiresAt  string    `json:"expires_at"` // "YYYY-MM-DD", empty = never expires
	IsActive   bool      `json:"is_active"`
	MachineID  *string   `json:"machine_id"`
	VideoLimit *int      `json:"video_limit"` // nil or negative = unlimited
	VideosUsed int       `json:"videos_used"`
	CreatedAt  time.Time `json:"created_at"`
}

// Unlimited reports whether the account has no quota ceiling.
func (a *Account) Unlimited() bool {
	return a.VideoLimit == nil || *a.VideoLimit < 0
}

// CanGenerate reports whether the account has quota left.
func (a *Account) CanGenerate() bool {
	return a.Unlimited() || a.VideosUsed < *a.VideoLimit
}

// Remaining returns the videos left before the quota is reached, clipped at
// zero. nil when the account is unlimited.
func (a *Account) Remaining() *int {
	if a.Unlimited() {
		return nil
	}
	left := *a.VideoLimit - a.VideosUsed
	if left < 0 {
		left = 0
	}
	return &left
}

// ExpiredAt reports whether the subscription is past its end date on the
// given "YYYY-MM-DD" day. Lexical comparison is exact for ISO dates.
func (a *Account) ExpiredAt(today string) bool {
	return a.ExpiresAt != "" && a.ExpiresAt < today
}
