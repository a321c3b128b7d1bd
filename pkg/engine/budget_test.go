package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBudgetDeadlines(t *testing.T) {
	now := time.Now()

	t.Run("fresh budget has room", func(t *testing.T) {
		b := NewBudget(now, time.Hour, 10*time.Minute)
		assert.False(t, b.RunExpired())
		assert.False(t, b.TaskExpired(nil))
		assert.Positive(t, b.Remaining())
	})

	t.Run("run deadline", func(t *testing.T) {
		b := NewBudget(now.Add(-2*time.Hour), time.Hour, 10*time.Minute)
		assert.True(t, b.RunExpired())
		assert.Equal(t, time.Duration(0), b.Remaining())
	})

	t.Run("task deadline", func(t *testing.T) {
		b := NewBudget(now, time.Hour, 10*time.Minute)
		old := now.Add(-15 * time.Minute)
		assert.True(t, b.TaskExpired(&old))
		recent := now.Add(-time.Minute)
		assert.False(t, b.TaskExpired(&recent))
	})
}
