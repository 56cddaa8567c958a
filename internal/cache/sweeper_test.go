package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeperEvictsExpiredEntries(t *testing.T) {
	c := New(Config{MaxEntries: 10, TTL: 10 * time.Millisecond}, quietLogger())
	c.Put(keyFor(1), testRecords(1))
	c.Put(keyFor(2), testRecords(1))

	s := NewSweeper(c, 20*time.Millisecond, quietLogger())
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return c.Stats().Entries == 0
	}, time.Second, 10*time.Millisecond)
}

func TestSweeperDefaultInterval(t *testing.T) {
	s := NewSweeper(New(DefaultConfig(), quietLogger()), 0, quietLogger())
	assert.Equal(t, time.Minute, s.interval)
}
