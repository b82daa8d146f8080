package domain

import "time"

// Room is a bookable resource. OutOfService is a maintenance marker set
// by staff; it is independent of interval occupancy, which is derived
// from overlapping reservations only.
type Room struct {
	ID           int64
	Number       int
	Type         string
	PriceCents   int64
	Description  string
	OutOfService bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Service is a catalog entry for an ad-hoc charge (breakfast, parking).
// Deleted entries stay in the catalog for old invoices but cannot be
// attached to new ones.
type Service struct {
	ID         int64
	Name       string
	PriceCents int64
	Deleted    bool
}
