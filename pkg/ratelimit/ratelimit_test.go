package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalLimiterEnforcesBudget(t *testing.T) {
	l := NewLocalLimiter()
	ctx := context.Background()

	// Burst equals the hourly budget, so the first N requests pass.
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(ctx, "patient", "u-1", 5), "request %d within budget", i)
	}
	assert.False(t, l.Allow(ctx, "patient", "u-1", 5), "budget exhausted")
}

func TestLocalLimiterIsPerUser(t *testing.T) {
	l := NewLocalLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		l.Allow(ctx, "patient", "u-1", 3)
	}
	assert.False(t, l.Allow(ctx, "patient", "u-1", 3))
	assert.True(t, l.Allow(ctx, "patient", "u-2", 3), "another user has their own budget")
}

func TestLocalLimiterZeroBudgetMeansUnlimited(t *testing.T) {
	l := NewLocalLimiter()
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow(ctx, "admin", "u-1", 0))
	}
}
