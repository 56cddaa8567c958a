package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/industryvis/historian/internal/apperr"
)

func TestSourceTestConnection(t *testing.T) {
	dialer := &fakeDialer{}
	pool := NewPool(dialer, testPoolConfig(), quietLogger())
	defer pool.Close()

	source := NewHistorianSource(pool, NewDefaultProfile(), quietLogger())

	require.NoError(t, source.TestConnection(context.Background()))

	state := pool.State()
	assert.Equal(t, 1, state.IdleConnections, "probe connection should be returned to the pool")
}

func TestSourceTestConnectionDiscardsBrokenProbe(t *testing.T) {
	dialer := &fakeDialer{}
	pool := NewPool(dialer, testPoolConfig(), quietLogger())
	defer pool.Close()

	source := NewHistorianSource(pool, NewDefaultProfile(), quietLogger())

	// First acquire dials a healthy connection; break it once idle.
	require.NoError(t, source.TestConnection(context.Background()))
	dialer.conns[0].pingErr = errors.New("server went away")

	// The broken idle connection fails pool validation, a fresh dial
	// replaces it and the probe succeeds.
	require.NoError(t, source.TestConnection(context.Background()))
	assert.Equal(t, 2, dialer.dialed())
}

type fakeStringRows struct {
	values []string
	pos    int
	err    error
}

func (r *fakeStringRows) Next() bool {
	if r.pos >= len(r.values) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeStringRows) Scan(dest ...interface{}) error {
	*dest[0].(*string) = r.values[r.pos-1]
	return nil
}

func (r *fakeStringRows) Err() error { return r.err }

func TestScanStrings(t *testing.T) {
	rows := &fakeStringRows{values: []string{"a", "b"}}

	out, err := scanStrings(rows)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestScanStringsIterationError(t *testing.T) {
	rows := &fakeStringRows{values: []string{"a"}, err: errors.New("broken pipe")}

	_, err := scanStrings(rows)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindQuery))
}
