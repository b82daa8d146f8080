package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/hotelguru/hotelguru/api"
	"github.com/hotelguru/hotelguru/config"
	"github.com/hotelguru/hotelguru/internal/bootstrap"
	"github.com/hotelguru/hotelguru/internal/cache"
	"github.com/hotelguru/hotelguru/internal/kafka"
	"github.com/hotelguru/hotelguru/internal/repository"
	"github.com/hotelguru/hotelguru/internal/service/invoice"
	"github.com/hotelguru/hotelguru/internal/service/reservation"
	"github.com/hotelguru/hotelguru/internal/service/rooms"
	"github.com/hotelguru/hotelguru/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}

	if err := runMigrations(cfg); err != nil {
		logrus.WithError(err).Fatal("apply migrations")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		logrus.WithError(err).Fatal("connect postgres")
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Reservation.RoomsCacheTTL)*time.Second)
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
		redisCache,
		producer,
		cfg.Kafka.ReservationsTopic,
		time.Duration(cfg.Reservation.RoomLockTTLSeconds)*time.Second,
		time.Duration(cfg.Reservation.HoldTTLHours)*time.Hour,
		reservation.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
	)
	roomService := rooms.NewRoomService(catalogRepo, redisCache)

	reservationHandler := api.NewReservationHandler(reservationService, invoiceService)
	roomHandler := api.NewRoomHandler(roomService)

	if err := bootstrap.Run(ctx, cfg, reservationHandler, roomHandler); err != nil {
		logrus.WithError(err).Fatal("server error")
	}
}

func runMigrations(cfg *config.Config) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.Database.URL())
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
