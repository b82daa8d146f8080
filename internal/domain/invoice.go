package domain

import (
	"fmt"
	"time"
)

type InvoiceStatus string

const (
	InvoiceStatusLive     InvoiceStatus = "Live"
	InvoiceStatusClosed   InvoiceStatus = "Closed"
	InvoiceStatusCanceled InvoiceStatus = "Canceled"
)

func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	switch InvoiceStatus(s) {
	case InvoiceStatusLive, InvoiceStatusClosed, InvoiceStatusCanceled:
		return InvoiceStatus(s), nil
	}
	return "", fmt.Errorf("%w: unknown invoice status %q", ErrValidation, s)
}

// Invoice is the monetary ledger attached one-to-one to a reservation.
// AmountCents is derived state: it always equals room price × nights for
// every assigned room plus the price of every attached service.
type Invoice struct {
	ID            int64
	Number        string
	ReservationID int64
	AmountCents   int64
	Status        InvoiceStatus
	IssueDate     time.Time
	Services      []Service
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Mutable reports whether line items may still be attached.
func (i *Invoice) Mutable() bool {
	return i.Status == InvoiceStatusLive
}

// ServiceIDs returns the ids of all attached service line items.
func (i *Invoice) ServiceIDs() []int64 {
	ids := make([]int64, 0, len(i.Services))
	for _, s := range i.Services {
		ids = append(ids, s.ID)
	}
	return ids
}
