package wait

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntilSucceeds(t *testing.T) {
	calls := 0
	err := Until(func() (bool, error) {
		calls++
		return calls >= 3, nil
	}, DefaultOptions().WithStrategy(NewFixedStrategy(time.Millisecond)))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestUntilMaxRetries(t *testing.T) {
	err := Until(func() (bool, error) {
		return false, nil
	}, DefaultOptions().WithMaxRetries(3).WithStrategy(NewFixedStrategy(time.Millisecond)))
	assert.ErrorIs(t, err, ErrMaxRetriesReached)
}

func TestExponentialBackoffGrows(t *testing.T) {
	s := NewExponentialBackoffStrategy(10*time.Millisecond, 2, time.Second, false)
	first, _ := s.Next()
	second, _ := s.Next()
	third, _ := s.Next()
	assert.Equal(t, 10*time.Millisecond, first)
	assert.Equal(t, 20*time.Millisecond, second)
	assert.Equal(t, 40*time.Millisecond, third)

	s.Reset()
	again, _ := s.Next()
	assert.Equal(t, 10*time.Millisecond, again)
}

func TestExponentialBackoffCap(t *testing.T) {
	s := NewExponentialBackoffStrategy(time.Second, 10, 2*time.Second, false)
	s.Next()
	capped, _ := s.Next()
	assert.Equal(t, 2*time.Second, capped)
}
