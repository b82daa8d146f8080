package email

import (
	"context"

	"github.com/hotelguru/hotelguru/internal/kafka"
	"github.com/sirupsen/logrus"
)

// Sender delivers guest notifications for reservation events. The
// transport is a log sink for now; the worker only depends on Send.
type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(ctx context.Context, event kafka.ReservationEvent) error {
	logrus.WithFields(logrus.Fields{
		"guest_id":       event.GuestID,
		"reservation_id": event.ReservationID,
		"event":          event.Type,
		"rooms":          event.RoomNumbers,
	}).Info("notify guest")
	return nil
}
