package invoice

import (
	"context"
	"fmt"
	"strings"

	"github.com/hotelguru/hotelguru/internal/domain"
	"github.com/hotelguru/hotelguru/internal/repository"
	"github.com/sirupsen/logrus"
)

type InvoiceUseCase interface {
	GetOrCreate(ctx context.Context, reservationID int64) (*domain.Invoice, error)
	GetByReservation(ctx context.Context, reservationID int64) (*domain.Invoice, error)
	Recompute(ctx context.Context, reservationID int64) (int64, error)
	AttachServices(ctx context.Context, reservationID int64, serviceIDs []int64) (*domain.Invoice, error)
}

// Catalog is the service-catalog lookup the ledger validates attach
// requests against.
type Catalog interface {
	ListActiveServices(ctx context.Context, ids []int64) ([]domain.Service, error)
}

type InvoiceService struct {
	invoices repository.InvoiceRepository
	catalog  Catalog
}

func NewInvoiceService(invoices repository.InvoiceRepository, catalog Catalog) *InvoiceService {
	return &InvoiceService{invoices: invoices, catalog: catalog}
}

// GetOrCreate returns the reservation's invoice, creating a zero-amount
// Live one on first need. Idempotent.
func (s *InvoiceService) GetOrCreate(ctx context.Context, reservationID int64) (*domain.Invoice, error) {
	return s.invoices.GetOrCreate(ctx, reservationID)
}

func (s *InvoiceService) GetByReservation(ctx context.Context, reservationID int64) (*domain.Invoice, error) {
	return s.invoices.GetByReservation(ctx, reservationID)
}

// Recompute rederives the amount from the assigned rooms, the date span
// and the attached services. Calling it twice without intervening
// mutation yields the same amount.
func (s *InvoiceService) Recompute(ctx context.Context, reservationID int64) (int64, error) {
	return s.invoices.Recompute(ctx, reservationID)
}

// AttachServices validates the whole batch against the catalog and
// appends the line items not yet attached. All-or-nothing: a single
// unknown or deleted id rejects the batch; a batch where every id is
// already attached fails with NoChange.
func (s *InvoiceService) AttachServices(ctx context.Context, reservationID int64, serviceIDs []int64) (*domain.Invoice, error) {
	invoice, err := s.invoices.GetOrCreate(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if !invoice.Mutable() {
		return nil, fmt.Errorf("%w: invoice is %s", domain.ErrInvalidState, invoice.Status)
	}

	requested := dedupe(serviceIDs)
	active, err := s.catalog.ListActiveServices(ctx, requested)
	if err != nil {
		return nil, err
	}
	found := make(map[int64]bool, len(active))
	for _, svc := range active {
		found[svc.ID] = true
	}
	var missing []string
	for _, id := range requested {
		if !found[id] {
			missing = append(missing, fmt.Sprintf("%d", id))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: unknown or deleted service id(s): %s", domain.ErrInvalidService, strings.Join(missing, ", "))
	}

	attached := make(map[int64]bool, len(invoice.Services))
	for _, svc := range invoice.Services {
		attached[svc.ID] = true
	}
	delta := make([]int64, 0, len(requested))
	for _, id := range requested {
		if !attached[id] {
			delta = append(delta, id)
		}
	}
	if len(delta) == 0 {
		return nil, fmt.Errorf("%w: all requested services are already on the invoice", domain.ErrNoChange)
	}

	updated, err := s.invoices.AttachServices(ctx, invoice.ID, delta)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"invoice_id":   updated.ID,
		"added":        len(delta),
		"amount_cents": updated.AmountCents,
	}).Info("invoice line items added")
	return updated, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

var _ InvoiceUseCase = (*InvoiceService)(nil)
