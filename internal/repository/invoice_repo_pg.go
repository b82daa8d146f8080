package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hotelguru/hotelguru/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type InvoiceRepository interface {
	GetOrCreate(ctx context.Context, reservationID int64) (*domain.Invoice, error)
	GetByReservation(ctx context.Context, reservationID int64) (*domain.Invoice, error)
	AttachServices(ctx context.Context, invoiceID int64, serviceIDs []int64) (*domain.Invoice, error)
	Recompute(ctx context.Context, reservationID int64) (int64, error)
}

type PGInvoiceRepository struct {
	db *pgxpool.Pool
}

func NewInvoiceRepository(db *pgxpool.Pool) InvoiceRepository {
	return &PGInvoiceRepository{db: db}
}

const invoiceColumns = `id, number, reservation_id, amount_cents, status, issue_date, created_at, updated_at`

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var inv domain.Invoice
	var status string
	if err := row.Scan(&inv.ID, &inv.Number, &inv.ReservationID, &inv.AmountCents, &status, &inv.IssueDate, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseInvoiceStatus(status)
	if err != nil {
		return nil, err
	}
	inv.Status = parsed
	return &inv, nil
}

// GetOrCreate returns the reservation's invoice, creating a zero-amount
// Live one if none exists yet. Idempotent under concurrency: the unique
// constraint on reservation_id makes the insert a no-op for the loser.
func (r *PGInvoiceRepository) GetOrCreate(ctx context.Context, reservationID int64) (*domain.Invoice, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reservations WHERE id=$1)`, reservationID).Scan(&exists); err != nil {
		return nil, mapBusy(err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: reservation %d", domain.ErrNotFound, reservationID)
	}

	if _, err := r.db.Exec(ctx, `INSERT INTO invoices (number, reservation_id, amount_cents, status, issue_date)
		VALUES ($1, $2, 0, $3, CURRENT_DATE)
		ON CONFLICT (reservation_id) DO NOTHING`,
		uuid.NewString(), reservationID, domain.InvoiceStatusLive); err != nil {
		return nil, mapBusy(err)
	}
	return r.GetByReservation(ctx, reservationID)
}

func (r *PGInvoiceRepository) GetByReservation(ctx context.Context, reservationID int64) (*domain.Invoice, error) {
	row := r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE reservation_id=$1`, reservationID)
	inv, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: invoice for reservation %d", domain.ErrNotFound, reservationID)
	}
	if err != nil {
		return nil, mapBusy(err)
	}
	if err := r.loadServices(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// AttachServices appends the given line items and recomputes the amount
// in one transaction, so the line-item set and the amount never diverge.
// Callers pass only ids that are not yet attached; the Live-status and
// duplicate checks are still re-verified under the transaction.
func (r *PGInvoiceRepository) AttachServices(ctx context.Context, invoiceID int64, serviceIDs []int64) (*domain.Invoice, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, mapBusy(err)
	}
	defer tx.Rollback(ctx)

	if err := setLockTimeout(ctx, tx); err != nil {
		return nil, mapBusy(err)
	}

	row := tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1 FOR UPDATE`, invoiceID)
	inv, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: invoice %d", domain.ErrNotFound, invoiceID)
	}
	if err != nil {
		return nil, mapBusy(err)
	}
	if !inv.Mutable() {
		return nil, fmt.Errorf("%w: invoice is %s", domain.ErrInvalidState, inv.Status)
	}

	for _, serviceID := range serviceIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO invoice_services (invoice_id, service_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, invoiceID, serviceID); err != nil {
			return nil, mapBusy(err)
		}
	}

	amount, err := invoiceAmountCents(ctx, tx, inv.ReservationID)
	if err != nil {
		return nil, err
	}

	row = tx.QueryRow(ctx, `UPDATE invoices SET amount_cents=$1, updated_at=now() WHERE id=$2 RETURNING `+invoiceColumns,
		amount, invoiceID)
	updated, err := scanInvoice(row)
	if err != nil {
		return nil, mapBusy(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, mapBusy(err)
	}

	if err := r.loadServices(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Recompute rewrites the amount from the authoritative derivation. Safe
// to call repeatedly; without intervening mutation the result is stable.
func (r *PGInvoiceRepository) Recompute(ctx context.Context, reservationID int64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, mapBusy(err)
	}
	defer tx.Rollback(ctx)

	if err := setLockTimeout(ctx, tx); err != nil {
		return 0, mapBusy(err)
	}

	amount, err := invoiceAmountCents(ctx, tx, reservationID)
	if err != nil {
		return 0, err
	}
	cmd, err := tx.Exec(ctx, `UPDATE invoices SET amount_cents=$1, updated_at=now() WHERE reservation_id=$2`, amount, reservationID)
	if err != nil {
		return 0, mapBusy(err)
	}
	if cmd.RowsAffected() == 0 {
		return 0, fmt.Errorf("%w: invoice for reservation %d", domain.ErrNotFound, reservationID)
	}
	return amount, mapBusy(tx.Commit(ctx))
}

func (r *PGInvoiceRepository) loadServices(ctx context.Context, inv *domain.Invoice) error {
	rows, err := r.db.Query(ctx, `SELECT s.id, s.name, s.price_cents, s.deleted
		FROM invoice_services isv
		JOIN services s ON s.id = isv.service_id
		WHERE isv.invoice_id = $1
		ORDER BY s.id`, inv.ID)
	if err != nil {
		return mapBusy(err)
	}
	defer rows.Close()

	inv.Services = inv.Services[:0]
	for rows.Next() {
		var svc domain.Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.PriceCents, &svc.Deleted); err != nil {
			return err
		}
		inv.Services = append(inv.Services, svc)
	}
	return rows.Err()
}

var _ InvoiceRepository = (*PGInvoiceRepository)(nil)
