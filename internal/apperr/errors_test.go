package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConfig, KindOf(New(KindConfig, "bad")))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := New(KindPool, "exhausted")
	outer := fmt.Errorf("while querying: %w", inner)

	assert.True(t, Is(outer, KindPool))
	assert.Equal(t, KindPool, KindOf(outer))
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(KindQuery, cause, "query %q failed", "SELECT 1")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "query error")
	assert.Contains(t, err.Error(), `query "SELECT 1" failed`)
	assert.Contains(t, err.Error(), "root cause")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(KindConnection, "refused")))
	assert.True(t, IsRetryable(New(KindPool, "exhausted")))
	assert.False(t, IsRetryable(New(KindValidation, "bad input")))
	assert.False(t, IsRetryable(New(KindQuery, "syntax")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestConnectionWithHint(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"sqlserver missing db", errors.New("mssql: error 4060: cannot open database"), "does not exist"},
		{"postgres missing db", errors.New(`pq: SQLSTATE 3D000`), "does not exist"},
		{"sqlserver bad login", errors.New("Login failed for user 'x' (18456)"), "login failed"},
		{"postgres bad login", errors.New("pq: password authentication failed for user"), "login failed"},
		{"refused", errors.New("dial tcp 10.0.0.1:1433: connection refused"), "unreachable"},
		{"dns", errors.New("dial tcp: lookup db: no such host"), "unreachable"},
		{"timeout", errors.New("read tcp: i/o timeout"), "unreachable"},
		{"unclassified", errors.New("something odd"), `database "Runtime" failed`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ConnectionWithHint(tc.err, "Runtime")
			require.NotNil(t, err)
			assert.Equal(t, KindConnection, err.Kind)
			assert.Contains(t, err.Error(), tc.want)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "pool", KindPool.String())
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "internal", KindInternal.String())
}
