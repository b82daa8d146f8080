package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hotelguru/hotelguru/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReservationRepository interface {
	Create(ctx context.Context, reservation *domain.Reservation, roomIDs []int64) error
	GetByID(ctx context.Context, id int64) (*domain.Reservation, error)
	ListAll(ctx context.Context) ([]domain.Reservation, error)
	SearchByRoom(ctx context.Context, roomNumber int) ([]domain.Reservation, error)
	SearchByGuest(ctx context.Context, guestID int64) ([]domain.Reservation, error)
	HasOverlap(ctx context.Context, roomID int64, start, end time.Time, excludeReservationID int64) (bool, error)
	Confirm(ctx context.Context, id int64) (*domain.Reservation, error)
	UpdateStatus(ctx context.Context, id int64, from, to domain.ReservationStatus) (*domain.Reservation, error)
	Cancel(ctx context.Context, id int64) (*domain.Reservation, error)
	FinalizeCheckOut(ctx context.Context, id int64) (*domain.Reservation, *domain.Invoice, error)
	ExpireDependingBefore(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error)
}

type PGReservationRepository struct {
	db *pgxpool.Pool
}

func NewReservationRepository(db *pgxpool.Pool) ReservationRepository {
	return &PGReservationRepository{db: db}
}

const reservationColumns = `id, guest_id, start_date, end_date, reservation_date, status, created_at, updated_at`

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var r domain.Reservation
	var status string
	if err := row.Scan(&r.ID, &r.GuestID, &r.StartDate, &r.EndDate, &r.ReservationDate, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseReservationStatus(status)
	if err != nil {
		return nil, err
	}
	r.Status = parsed
	return &r, nil
}

// serializableTx runs fn inside a serializable transaction so that the
// overlap check and the write it guards can never be interleaved with a
// competing booking.
func (r *PGReservationRepository) serializableTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return mapBusy(err)
	}
	defer tx.Rollback(ctx)

	if err := setLockTimeout(ctx, tx); err != nil {
		return mapBusy(err)
	}
	if err := fn(tx); err != nil {
		return mapBusy(err)
	}
	return mapBusy(tx.Commit(ctx))
}

// lockRooms takes row locks on the given rooms, serializing competing
// bookings for the same rooms even before the overlap check runs.
func lockRooms(ctx context.Context, tx pgx.Tx, roomIDs []int64) error {
	rows, err := tx.Query(ctx, `SELECT id FROM rooms WHERE id = ANY($1) ORDER BY id FOR UPDATE`, roomIDs)
	if err != nil {
		return err
	}
	defer rows.Close()

	locked := 0
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		locked++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if locked != len(roomIDs) {
		return fmt.Errorf("%w: one or more rooms", domain.ErrNotFound)
	}
	return nil
}

func (r *PGReservationRepository) Create(ctx context.Context, reservation *domain.Reservation, roomIDs []int64) error {
	return r.serializableTx(ctx, func(tx pgx.Tx) error {
		if err := lockRooms(ctx, tx, roomIDs); err != nil {
			return err
		}

		for _, roomID := range roomIDs {
			overlap, err := hasOverlap(ctx, tx, roomID, reservation.StartDate, reservation.EndDate, 0)
			if err != nil {
				return err
			}
			if overlap {
				return fmt.Errorf("%w: room %d is already reserved for part of %s - %s",
					domain.ErrConflict, roomID,
					reservation.StartDate.Format(time.DateOnly), reservation.EndDate.Format(time.DateOnly))
			}
		}

		reservation.Status = domain.StatusDepending
		err := tx.QueryRow(ctx, `INSERT INTO reservations (guest_id, start_date, end_date, reservation_date, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at, updated_at`,
			reservation.GuestID, reservation.StartDate, reservation.EndDate, reservation.ReservationDate, reservation.Status).
			Scan(&reservation.ID, &reservation.CreatedAt, &reservation.UpdatedAt)
		if err != nil {
			return err
		}

		for _, roomID := range roomIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO reservation_rooms (reservation_id, room_id) VALUES ($1, $2)`,
				reservation.ID, roomID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PGReservationRepository) GetByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	row := r.db.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id=$1`, id)
	res, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: reservation %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, mapBusy(err)
	}
	if err := r.loadRooms(ctx, []*domain.Reservation{res}); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *PGReservationRepository) ListAll(ctx context.Context) ([]domain.Reservation, error) {
	return r.queryReservations(ctx, `SELECT `+reservationColumns+` FROM reservations ORDER BY start_date DESC`)
}

func (r *PGReservationRepository) SearchByRoom(ctx context.Context, roomNumber int) ([]domain.Reservation, error) {
	return r.queryReservations(ctx, `SELECT `+reservationColumns+` FROM reservations
		WHERE id IN (
			SELECT rr.reservation_id FROM reservation_rooms rr
			JOIN rooms rm ON rm.id = rr.room_id
			WHERE rm.number = $1
		)
		ORDER BY start_date DESC`, roomNumber)
}

func (r *PGReservationRepository) SearchByGuest(ctx context.Context, guestID int64) ([]domain.Reservation, error) {
	return r.queryReservations(ctx, `SELECT `+reservationColumns+` FROM reservations
		WHERE guest_id = $1 AND status = ANY($2)
		ORDER BY start_date DESC`, guestID, activeStatusStrings())
}

func (r *PGReservationRepository) queryReservations(ctx context.Context, sql string, args ...any) ([]domain.Reservation, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapBusy(err)
	}
	defer rows.Close()

	reservations := make([]domain.Reservation, 0)
	var refs []*domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, mapBusy(err)
	}
	for i := range reservations {
		refs = append(refs, &reservations[i])
	}
	if err := r.loadRooms(ctx, refs); err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *PGReservationRepository) loadRooms(ctx context.Context, reservations []*domain.Reservation) error {
	if len(reservations) == 0 {
		return nil
	}
	byID := make(map[int64]*domain.Reservation, len(reservations))
	ids := make([]int64, 0, len(reservations))
	for _, res := range reservations {
		byID[res.ID] = res
		ids = append(ids, res.ID)
	}

	rows, err := r.db.Query(ctx, `SELECT rr.reservation_id, rm.id, rm.number, rm.room_type, rm.price_cents, rm.description, rm.out_of_service, rm.created_at, rm.updated_at
		FROM reservation_rooms rr
		JOIN rooms rm ON rm.id = rr.room_id
		WHERE rr.reservation_id = ANY($1)
		ORDER BY rm.number`, ids)
	if err != nil {
		return mapBusy(err)
	}
	defer rows.Close()

	for rows.Next() {
		var reservationID int64
		var room domain.Room
		if err := rows.Scan(&reservationID, &room.ID, &room.Number, &room.Type, &room.PriceCents, &room.Description, &room.OutOfService, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return err
		}
		if res, ok := byID[reservationID]; ok {
			res.Rooms = append(res.Rooms, room)
		}
	}
	return rows.Err()
}

func (r *PGReservationRepository) HasOverlap(ctx context.Context, roomID int64, start, end time.Time, excludeReservationID int64) (bool, error) {
	return hasOverlap(ctx, r.db, roomID, start, end, excludeReservationID)
}

// Confirm moves a Depending reservation to Success after re-checking
// every assigned room for overlaps, excluding the reservation itself.
func (r *PGReservationRepository) Confirm(ctx context.Context, id int64) (*domain.Reservation, error) {
	var confirmed *domain.Reservation
	err := r.serializableTx(ctx, func(tx pgx.Tx) error {
		res, roomIDs, err := lockReservation(ctx, tx, id)
		if err != nil {
			return err
		}
		if res.Status != domain.StatusDepending {
			return fmt.Errorf("%w: cannot confirm reservation in status %s", domain.ErrInvalidState, res.Status)
		}
		if len(roomIDs) == 0 {
			return fmt.Errorf("%w: reservation %d has no rooms assigned", domain.ErrValidation, id)
		}
		if err := lockRooms(ctx, tx, roomIDs); err != nil {
			return err
		}
		for _, roomID := range roomIDs {
			overlap, err := hasOverlap(ctx, tx, roomID, res.StartDate, res.EndDate, id)
			if err != nil {
				return err
			}
			if overlap {
				return fmt.Errorf("%w: room %d was reserved while this reservation was pending", domain.ErrConflict, roomID)
			}
		}
		confirmed, err = updateStatusTx(ctx, tx, id, domain.StatusSuccess)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := r.loadRooms(ctx, []*domain.Reservation{confirmed}); err != nil {
		return nil, err
	}
	return confirmed, nil
}

// UpdateStatus performs a guarded transition: the write only happens if
// the reservation is still in the expected source status.
func (r *PGReservationRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.ReservationStatus) (*domain.Reservation, error) {
	var updated *domain.Reservation
	err := r.serializableTx(ctx, func(tx pgx.Tx) error {
		res, _, err := lockReservation(ctx, tx, id)
		if err != nil {
			return err
		}
		if res.Status != from {
			return fmt.Errorf("%w: expected status %s, found %s", domain.ErrInvalidState, from, res.Status)
		}
		updated, err = updateStatusTx(ctx, tx, id, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := r.loadRooms(ctx, []*domain.Reservation{updated}); err != nil {
		return nil, err
	}
	return updated, nil
}

// Cancel moves a Depending or Success reservation to Canceled and forces
// its invoice, if one exists, to Canceled in the same transaction.
func (r *PGReservationRepository) Cancel(ctx context.Context, id int64) (*domain.Reservation, error) {
	var canceled *domain.Reservation
	err := r.serializableTx(ctx, func(tx pgx.Tx) error {
		res, _, err := lockReservation(ctx, tx, id)
		if err != nil {
			return err
		}
		if res.Status != domain.StatusDepending && res.Status != domain.StatusSuccess {
			return fmt.Errorf("%w: cannot cancel reservation in status %s", domain.ErrInvalidState, res.Status)
		}
		if _, err := tx.Exec(ctx, `UPDATE invoices SET status=$1, updated_at=now() WHERE reservation_id=$2`,
			domain.InvoiceStatusCanceled, id); err != nil {
			return err
		}
		canceled, err = updateStatusTx(ctx, tx, id, domain.StatusCanceled)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := r.loadRooms(ctx, []*domain.Reservation{canceled}); err != nil {
		return nil, err
	}
	return canceled, nil
}

// FinalizeCheckOut is the atomic check-out unit: status CheckedIn →
// CheckedOut, invoice created if absent, amount recomputed, invoice
// closed and room maintenance flags cleared. Any failure rolls the whole
// unit back; a CheckedOut reservation without a finalized invoice can
// never be observed.
func (r *PGReservationRepository) FinalizeCheckOut(ctx context.Context, id int64) (*domain.Reservation, *domain.Invoice, error) {
	var (
		checkedOut *domain.Reservation
		invoice    *domain.Invoice
	)
	err := r.serializableTx(ctx, func(tx pgx.Tx) error {
		res, roomIDs, err := lockReservation(ctx, tx, id)
		if err != nil {
			return err
		}
		if res.Status != domain.StatusCheckedIn {
			return fmt.Errorf("%w: cannot check out reservation in status %s", domain.ErrInvalidState, res.Status)
		}

		if _, err := tx.Exec(ctx, `INSERT INTO invoices (number, reservation_id, amount_cents, status, issue_date)
			VALUES ($1, $2, 0, $3, CURRENT_DATE)
			ON CONFLICT (reservation_id) DO NOTHING`,
			uuid.NewString(), id, domain.InvoiceStatusLive); err != nil {
			return err
		}

		amount, err := invoiceAmountCents(ctx, tx, id)
		if err != nil {
			return err
		}

		row := tx.QueryRow(ctx, `UPDATE invoices SET amount_cents=$1, status=$2, updated_at=now()
			WHERE reservation_id=$3
			RETURNING `+invoiceColumns, amount, domain.InvoiceStatusClosed, id)
		invoice, err = scanInvoice(row)
		if err != nil {
			return err
		}

		if len(roomIDs) > 0 {
			if _, err := tx.Exec(ctx, `UPDATE rooms SET out_of_service=false, updated_at=now() WHERE id = ANY($1)`, roomIDs); err != nil {
				return err
			}
		}

		checkedOut, err = updateStatusTx(ctx, tx, id, domain.StatusCheckedOut)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if err := r.loadRooms(ctx, []*domain.Reservation{checkedOut}); err != nil {
		return nil, nil, err
	}
	return checkedOut, invoice, nil
}

// ExpireDependingBefore lapses Depending reservations created before the
// cutoff, releasing the rooms they held.
func (r *PGReservationRepository) ExpireDependingBefore(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error) {
	rows, err := r.db.Query(ctx, `UPDATE reservations SET status=$1, updated_at=now()
		WHERE status=$2 AND created_at <= $3
		RETURNING `+reservationColumns,
		domain.StatusExpired, domain.StatusDepending, cutoff)
	if err != nil {
		return nil, mapBusy(err)
	}
	defer rows.Close()

	var expired []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, *res)
	}
	return expired, rows.Err()
}

// lockReservation reads the reservation and its room ids under a row
// lock, so concurrent transitions on the same reservation serialize.
func lockReservation(ctx context.Context, tx pgx.Tx, id int64) (*domain.Reservation, []int64, error) {
	row := tx.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id=$1 FOR UPDATE`, id)
	res, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: reservation %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err := tx.Query(ctx, `SELECT room_id FROM reservation_rooms WHERE reservation_id=$1 ORDER BY room_id`, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var roomIDs []int64
	for rows.Next() {
		var roomID int64
		if err := rows.Scan(&roomID); err != nil {
			return nil, nil, err
		}
		roomIDs = append(roomIDs, roomID)
	}
	return res, roomIDs, rows.Err()
}

func updateStatusTx(ctx context.Context, tx pgx.Tx, id int64, to domain.ReservationStatus) (*domain.Reservation, error) {
	row := tx.QueryRow(ctx, `UPDATE reservations SET status=$1, updated_at=now() WHERE id=$2 RETURNING `+reservationColumns, to, id)
	return scanReservation(row)
}

var _ ReservationRepository = (*PGReservationRepository)(nil)
