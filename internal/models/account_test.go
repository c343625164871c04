package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestQuotaArithmetic(t *testing.T) {
	cases := []struct {
		name        string
		limit       *int
		used        int
		canGenerate bool
		remaining   *int
	}{
		{"nil limit is unlimited", nil, 999999, true, nil},
		{"negative limit is unlimited", intPtr(-1), 42, true, nil},
		{"under limit", intPtr(50), 3, true, intPtr(47)},
		{"at limit", intPtr(50), 50, false, intPtr(0)},
		{"over limit clips remaining at zero", intPtr(50), 60, false, intPtr(0)},
		{"zero limit blocks immediately", intPtr(0), 0, false, intPtr(0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := Account{VideoLimit: tc.limit, VideosUsed: tc.used}
			assert.Equal(t, tc.canGenerate, a.CanGenerate())
			if tc.remaining == nil {
				assert.Nil(t, a.Remaining())
			} else {
				assert.Equal(t, *tc.remaining, *a.Remaining())
			}
		})
	}
}

func TestExpiredAt(t *testing.T) {
	assert.False(t, (&Account{ExpiresAt: ""}).ExpiredAt("2025-06-15"), "empty date never expires")
	assert.False(t, (&Account{ExpiresAt: "2025-06-15"}).ExpiredAt("2025-06-15"), "expires at end of its last day")
	assert.True(t, (&Account{ExpiresAt: "2025-06-14"}).ExpiredAt("2025-06-15"))
	assert.False(t, (&Account{ExpiresAt: "2026-01-01"}).ExpiredAt("2025-06-15"))
}

func TestDefaultVideoLimit(t *testing.T) {
	cases := map[string]int{
		PlanTrial:     10,
		PlanBasic:     50,
		PlanPremium:   200,
		PlanUnlimited: -1,
	}
	for plan, want := range cases {
		got, ok := DefaultVideoLimit(plan)
		assert.True(t, ok, plan)
		assert.Equal(t, want, got, plan)
	}
	_, ok := DefaultVideoLimit("custom")
	assert.False(t, ok)
}
