package rooms

import (
	"context"
	"fmt"
	"time"

	"github.com/hotelguru/hotelguru/internal/domain"
	"github.com/hotelguru/hotelguru/internal/repository"
)

type RoomUseCase interface {
	FindAvailable(ctx context.Context, start, end *time.Time) ([]domain.Room, error)
}

type Cache interface {
	GetAvailableRooms(ctx context.Context, key string) ([]domain.Room, error)
	SetAvailableRooms(ctx context.Context, key string, rooms []domain.Room) error
}

type RoomService struct {
	catalog repository.CatalogRepository
	cache   Cache
}

func NewRoomService(catalog repository.CatalogRepository, cache Cache) *RoomService {
	return &RoomService{catalog: catalog, cache: cache}
}

// FindAvailable lists in-service rooms, optionally narrowed to those
// free of overlapping active reservations for [start, end). Listings
// are served cache-aside with a short TTL; the store stays the source
// of truth for the booking paths.
func (s *RoomService) FindAvailable(ctx context.Context, start, end *time.Time) ([]domain.Room, error) {
	if start != nil && end != nil && !start.Before(*end) {
		return nil, fmt.Errorf("%w: start date must be before end date", domain.ErrValidation)
	}

	key := cacheKey(start, end)
	if s.cache != nil {
		if cached, err := s.cache.GetAvailableRooms(ctx, key); err == nil && cached != nil {
			return cached, nil
		}
	}

	rooms, err := s.catalog.FindAvailableRooms(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetAvailableRooms(ctx, key, rooms)
	}
	return rooms, nil
}

func cacheKey(start, end *time.Time) string {
	if start == nil || end == nil {
		return "all"
	}
	return start.Format(time.DateOnly) + ":" + end.Format(time.DateOnly)
}

var _ RoomUseCase = (*RoomService)(nil)
