package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.Equal(t, 1, rl.GetRemaining("10.0.0.1"))
	now = now.Add(10 * time.Second)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.Equal(t, 0, rl.GetRemaining("10.0.0.1"))

	// Другой адрес считается отдельно
	assert.True(t, rl.Allow("10.0.0.2"))

	// Первый запрос выйдет из окна через минуту после него
	assert.Equal(t, now.Add(50*time.Second), rl.GetResetTime("10.0.0.1"))

	now = now.Add(51 * time.Second)
	assert.Equal(t, 1, rl.GetRemaining("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, now, rl.GetResetTime("10.0.0.1"))
	assert.Equal(t, 2, rl.Limit())
}
