package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hotelguru/hotelguru/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogRepository reads the room, service and guest catalogs. The
// reservation engine never writes to them except for the out-of-service
// flag cleared on check-out, which lives in the checkout transaction.
type CatalogRepository interface {
	GetGuest(ctx context.Context, id int64) (*domain.Guest, error)
	RoomsByNumbers(ctx context.Context, numbers []int) ([]domain.Room, error)
	FindAvailableRooms(ctx context.Context, start, end *time.Time) ([]domain.Room, error)
	ListActiveServices(ctx context.Context, ids []int64) ([]domain.Service, error)
}

type PGCatalogRepository struct {
	db *pgxpool.Pool
}

func NewCatalogRepository(db *pgxpool.Pool) CatalogRepository {
	return &PGCatalogRepository{db: db}
}

const roomColumns = `id, number, room_type, price_cents, description, out_of_service, created_at, updated_at`

func scanRoom(row pgx.Row) (*domain.Room, error) {
	var rm domain.Room
	if err := row.Scan(&rm.ID, &rm.Number, &rm.Type, &rm.PriceCents, &rm.Description, &rm.OutOfService, &rm.CreatedAt, &rm.UpdatedAt); err != nil {
		return nil, err
	}
	return &rm, nil
}

func (r *PGCatalogRepository) GetGuest(ctx context.Context, id int64) (*domain.Guest, error) {
	row := r.db.QueryRow(ctx, `SELECT id, name, email, phone FROM guests WHERE id=$1`, id)
	var g domain.Guest
	err := row.Scan(&g.ID, &g.Name, &g.Email, &g.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: guest %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, mapBusy(err)
	}
	return &g, nil
}

// RoomsByNumbers resolves room numbers to rooms. Every requested number
// must exist; a missing one fails the whole lookup.
func (r *PGCatalogRepository) RoomsByNumbers(ctx context.Context, numbers []int) ([]domain.Room, error) {
	rows, err := r.db.Query(ctx, `SELECT `+roomColumns+` FROM rooms WHERE number = ANY($1) ORDER BY number`, numbers)
	if err != nil {
		return nil, mapBusy(err)
	}
	defer rows.Close()

	found := make(map[int]bool, len(numbers))
	rooms := make([]domain.Room, 0, len(numbers))
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		found[rm.Number] = true
		rooms = append(rooms, *rm)
	}
	if err := rows.Err(); err != nil {
		return nil, mapBusy(err)
	}

	for _, number := range numbers {
		if !found[number] {
			return nil, fmt.Errorf("%w: room %d", domain.ErrNotFound, number)
		}
	}
	return rooms, nil
}

// FindAvailableRooms lists rooms that are in service and, when a date
// range is given, free of overlapping active reservations for it.
func (r *PGCatalogRepository) FindAvailableRooms(ctx context.Context, start, end *time.Time) ([]domain.Room, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if start != nil && end != nil {
		rows, err = r.db.Query(ctx, `SELECT `+roomColumns+` FROM rooms
			WHERE NOT out_of_service
			  AND id NOT IN (
				SELECT rr.room_id
				FROM reservation_rooms rr
				JOIN reservations res ON res.id = rr.reservation_id
				WHERE res.status = ANY($1)
				  AND res.start_date < $2
				  AND res.end_date > $3
			  )
			ORDER BY number`, activeStatusStrings(), *end, *start)
	} else {
		rows, err = r.db.Query(ctx, `SELECT `+roomColumns+` FROM rooms WHERE NOT out_of_service ORDER BY number`)
	}
	if err != nil {
		return nil, mapBusy(err)
	}
	defer rows.Close()

	rooms := make([]domain.Room, 0)
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *rm)
	}
	return rooms, rows.Err()
}

// ListActiveServices returns the non-deleted services among ids. Callers
// compare the result against the request to reject invalid ids.
func (r *PGCatalogRepository) ListActiveServices(ctx context.Context, ids []int64) ([]domain.Service, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, price_cents, deleted FROM services
		WHERE id = ANY($1) AND NOT deleted
		ORDER BY id`, ids)
	if err != nil {
		return nil, mapBusy(err)
	}
	defer rows.Close()

	services := make([]domain.Service, 0, len(ids))
	for rows.Next() {
		var svc domain.Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.PriceCents, &svc.Deleted); err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

var _ CatalogRepository = (*PGCatalogRepository)(nil)
