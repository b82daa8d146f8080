package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hotelguru/hotelguru/config"
	"github.com/hotelguru/hotelguru/internal/email"
	"github.com/hotelguru/hotelguru/internal/kafka"
	"github.com/hotelguru/hotelguru/internal/repository"
	"github.com/hotelguru/hotelguru/internal/service/invoice"
	"github.com/hotelguru/hotelguru/internal/service/reservation"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// The worker consumes reservation notifications for guest delivery and
// periodically expires Depending reservations that were never confirmed.
func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		logrus.WithError(err).Fatal("connect postgres")
	}
	defer pool.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	reservationRepo := repository.NewReservationRepository(pool)
	invoiceRepo := repository.NewInvoiceRepository(pool)
	catalogRepo := repository.NewCatalogRepository(pool)

	invoiceService := invoice.NewInvoiceService(invoiceRepo, catalogRepo)
	reservationService := reservation.NewReservationService(
		reservationRepo,
		catalogRepo,
		invoiceService,
		nil,
		producer,
		cfg.Kafka.ReservationsTopic,
		time.Duration(cfg.Reservation.RoomLockTTLSeconds)*time.Second,
		time.Duration(cfg.Reservation.HoldTTLHours)*time.Hour,
		reservation.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
	)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	sender := email.NewSender()

	go func() {
		if err := consumer.Consume(ctx, sender.Send); err != nil {
			logrus.WithError(err).Info("consumer stopped")
		}
	}()

	sweep := time.NewTicker(time.Duration(cfg.Worker.ExpirationSweepMinutes) * time.Minute)
	defer sweep.Stop()

	for {
		select {
		case <-sweep.C:
			expired, err := reservationService.ExpireStale(ctx)
			if err != nil {
				logrus.WithError(err).Error("expire stale reservations")
				continue
			}
			if len(expired) > 0 {
				logrus.WithField("count", len(expired)).Info("expired stale reservations")
			}
		case <-ctx.Done():
			logrus.Info("shutting down")
			return
		}
	}
}
