package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hotelguru/hotelguru/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so queries can
// be shared between standalone reads and transactional re-checks.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// lockTimeoutSQL bounds how long a transaction may wait on a row lock.
// A contended transition then fails with 55P03 and surfaces as the
// retryable Busy error instead of blocking the caller.
const lockTimeoutSQL = `SET LOCAL lock_timeout = '3s'`

func setLockTimeout(ctx context.Context, q querier) error {
	_, err := q.Exec(ctx, lockTimeoutSQL)
	return err
}

// mapBusy converts serialization failures, deadlocks and lock timeouts
// into the retryable Busy error. Everything else passes through.
func mapBusy(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return fmt.Errorf("%w: %s", domain.ErrBusy, pgErr.Message)
		}
	}
	return err
}

func activeStatusStrings() []string {
	out := make([]string, 0, len(domain.ActiveStatuses))
	for _, s := range domain.ActiveStatuses {
		out = append(out, string(s))
	}
	return out
}

const overlapQuery = `
SELECT EXISTS (
	SELECT 1
	FROM reservations r
	JOIN reservation_rooms rr ON rr.reservation_id = r.id
	WHERE rr.room_id = $1
	  AND r.status = ANY($2)
	  AND r.start_date < $3
	  AND r.end_date > $4
	  AND r.id <> $5
)`

// hasOverlap reports whether any reservation in an active status claims
// the room for an interval intersecting [start, end). excludeID skips a
// reservation being re-checked against itself; pass 0 to exclude none.
func hasOverlap(ctx context.Context, q querier, roomID int64, start, end time.Time, excludeID int64) (bool, error) {
	var overlap bool
	err := q.QueryRow(ctx, overlapQuery, roomID, activeStatusStrings(), end, start, excludeID).Scan(&overlap)
	if err != nil {
		return true, mapBusy(err)
	}
	return overlap, nil
}

// invoiceAmountQuery derives the authoritative invoice total: nightly
// price of every assigned room times billable nights (minimum one),
// plus the price of every attached service line item.
const invoiceAmountQuery = `
SELECT
	(SELECT COALESCE(SUM(rm.price_cents), 0)
	 FROM reservation_rooms rr
	 JOIN rooms rm ON rm.id = rr.room_id
	 WHERE rr.reservation_id = r.id) * GREATEST(1, r.end_date - r.start_date)
	+
	(SELECT COALESCE(SUM(s.price_cents), 0)
	 FROM invoices i
	 JOIN invoice_services isv ON isv.invoice_id = i.id
	 JOIN services s ON s.id = isv.service_id
	 WHERE i.reservation_id = r.id)
FROM reservations r
WHERE r.id = $1`

func invoiceAmountCents(ctx context.Context, q querier, reservationID int64) (int64, error) {
	var amount int64
	err := q.QueryRow(ctx, invoiceAmountQuery, reservationID).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: reservation %d", domain.ErrNotFound, reservationID)
	}
	if err != nil {
		return 0, mapBusy(err)
	}
	return amount, nil
}
