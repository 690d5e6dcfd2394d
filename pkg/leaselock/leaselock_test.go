package leaselock

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T, ttl time.Duration) (*Locker, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return New(mock, ttl), mock
}

func expectAcquire(mock pgxmock.PgxPoolIface, key string, ttlMs int64, granted bool) {
	rows := pgxmock.NewRows([]string{"lock_key"})
	if granted {
		rows.AddRow(key)
	}
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO app_locks")).
		WithArgs(key, pgxmock.AnyArg(), ttlMs).
		WillReturnRows(rows)
}

func expectRelease(mock pgxmock.PgxPoolIface, key string) {
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM app_locks")).
		WithArgs(key, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
}

func TestGraphKey(t *testing.T) {
	assert.Equal(t, "graph:42", GraphKey(42))
}

func TestNewDefaultsTTL(t *testing.T) {
	l := New(nil, 0)
	assert.Equal(t, DefaultTTL, l.ttl)
}

func TestHoldGraphRunsAndReleases(t *testing.T) {
	l, mock := newLocker(t, time.Minute)
	expectAcquire(mock, "graph:1", 60000, true)
	expectRelease(mock, "graph:1")

	ran := false
	err := l.HoldGraph(context.Background(), 1, func(ctx context.Context) error {
		ran = true
		return ctx.Err()
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHoldGraphBusy(t *testing.T) {
	l, mock := newLocker(t, time.Minute)
	expectAcquire(mock, "graph:1", 60000, false)

	err := l.HoldGraph(context.Background(), 1, func(ctx context.Context) error {
		t.Fatal("fn must not run without the lease")
		return nil
	})
	assert.ErrorIs(t, err, ErrBusy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHoldGraphReturnsFnError(t *testing.T) {
	l, mock := newLocker(t, time.Minute)
	expectAcquire(mock, "graph:2", 60000, true)
	expectRelease(mock, "graph:2")

	boom := errors.New("boom")
	err := l.HoldGraph(context.Background(), 2, func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHoldGraphCancelsWhenTakenOver(t *testing.T) {
	l, mock := newLocker(t, 100*time.Millisecond)
	expectAcquire(mock, "graph:3", 100, true)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE app_locks")).
		WithArgs("graph:3", pgxmock.AnyArg(), int64(100)).
		WillReturnRows(pgxmock.NewRows([]string{"lock_key"}))
	expectRelease(mock, "graph:3")

	err := l.HoldGraph(context.Background(), 3, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-time.After(2 * time.Second):
			return errors.New("lease was not lost")
		}
	})
	assert.ErrorIs(t, err, ErrLost)
	assert.NoError(t, mock.ExpectationsWereMet())
}
