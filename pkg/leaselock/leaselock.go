// Package leaselock keeps destructive graph work to one server or worker
// instance at a time. A lease is a row in app_locks that expires unless its
// holder keeps extending it.
package leaselock

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/osintbuddy/backend/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultTTL is how long a lease survives without being extended.
const DefaultTTL = 2 * time.Minute

var (
	// ErrBusy means another holder has the lease.
	ErrBusy = errors.New("lease busy")
	// ErrLost means the lease expired or was taken over while held.
	ErrLost = errors.New("lease lost")
)

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Locker hands out leases on graph rows.
type Locker struct {
	db  dbConn
	ttl time.Duration
}

// New returns a Locker on a pool or connection. A ttl of zero uses
// DefaultTTL.
func New(db dbConn, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Locker{db: db, ttl: ttl}
}

// GraphKey is the lease key of one graph row.
func GraphKey(graphID int64) string {
	return "graph:" + strconv.FormatInt(graphID, 10)
}

// HoldGraph runs fn while holding the lease on the graph row. It fails with
// ErrBusy without running fn when someone else holds it. The ctx given to fn
// is cancelled with ErrLost as its cause if the lease cannot be extended.
func (l *Locker) HoldGraph(ctx context.Context, graphID int64, fn func(ctx context.Context) error) error {
	key := GraphKey(graphID)
	token, err := gonanoid.New()
	if err != nil {
		return err
	}

	var got string
	err = l.db.QueryRow(ctx, acquireSQL, key, token, l.ttl.Milliseconds()).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrBusy
	}
	if err != nil {
		return err
	}

	held, cancel := context.WithCancelCause(ctx)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		l.extend(held, cancel, key, token)
	}()

	defer func() {
		cancel(context.Canceled)
		<-stopped
		if _, err := l.db.Exec(context.WithoutCancel(ctx), releaseSQL, key, token); err != nil {
			logger.Warn("[Lock] Failed to release lease", "key", key, "err", err)
		}
	}()
	return fn(held)
}

// extend pushes the expiry forward every half ttl until ctx ends. Transient
// errors are tolerated as long as the last good extension has not expired.
func (l *Locker) extend(ctx context.Context, cancel context.CancelCauseFunc, key, token string) {
	t := time.NewTicker(l.ttl / 2)
	defer t.Stop()

	expires := time.Now().Add(l.ttl)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		extendCtx, done := context.WithTimeout(ctx, l.ttl/4)
		var got string
		err := l.db.QueryRow(extendCtx, extendSQL, key, token, l.ttl.Milliseconds()).Scan(&got)
		done()
		switch {
		case err == nil:
			expires = time.Now().Add(l.ttl)
		case errors.Is(err, pgx.ErrNoRows):
			logger.Warn("[Lock] Lease taken over", "key", key)
			cancel(ErrLost)
			return
		case ctx.Err() != nil:
			return
		case time.Now().After(expires):
			logger.Warn("[Lock] Lease expired", "key", key, "err", err)
			cancel(ErrLost)
			return
		default:
			logger.Debug("[Lock] Lease extension failed", "key", key, "err", err)
		}
	}
}

// acquire takes a free or expired lease; a holder may re-take its own.
const acquireSQL = `
INSERT INTO app_locks AS l (lock_key, locked_by, expires_at)
VALUES ($1, $2, now() + $3::bigint * interval '1 millisecond')
ON CONFLICT (lock_key) DO UPDATE
   SET locked_by = EXCLUDED.locked_by, expires_at = EXCLUDED.expires_at
 WHERE l.expires_at < now() OR l.locked_by = EXCLUDED.locked_by
RETURNING lock_key`

const extendSQL = `
UPDATE app_locks
   SET expires_at = now() + $3::bigint * interval '1 millisecond'
 WHERE lock_key = $1 AND locked_by = $2
RETURNING lock_key`

const releaseSQL = `DELETE FROM app_locks WHERE lock_key = $1 AND locked_by = $2`
