package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Reservation ReservationConfig `yaml:"reservation"`
	Worker      WorkerConfig      `yaml:"worker"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode" envconfig:"SSL_MODE"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// URL is the connection string form used by the migration runner.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("pgx5://%s:%s@%s:%d/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	ReservationsTopic  string   `yaml:"reservations_topic" envconfig:"RESERVATIONS_TOPIC"`
	NotificationsTopic string   `yaml:"notifications_topic" envconfig:"NOTIFICATIONS_TOPIC"`
	GroupID            string   `yaml:"group_id" envconfig:"GROUP_ID"`
}

type ReservationConfig struct {
	// HoldTTLHours bounds how long a Depending reservation may stay
	// unconfirmed before the worker expires it.
	HoldTTLHours int `yaml:"hold_ttl_hours" envconfig:"HOLD_TTL_HOURS"`
	// RoomLockTTLSeconds is the lifetime of the per-room advisory hold
	// taken while a booking transaction runs.
	RoomLockTTLSeconds int `yaml:"room_lock_ttl_seconds" envconfig:"ROOM_LOCK_TTL_SECONDS"`
	RoomsCacheTTL      int `yaml:"rooms_cache_ttl_seconds" envconfig:"ROOMS_CACHE_TTL_SECONDS"`
}

type WorkerConfig struct {
	ExpirationSweepMinutes int `yaml:"expiration_sweep_minutes" envconfig:"EXPIRATION_SWEEP_MINUTES"`
}

// LoadConfig reads the YAML file, then applies HOTELGURU_* environment
// overrides on top of it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := envconfig.Process("hotelguru", &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills the durations the engine cannot run without; a
// zero sweep interval or TTL would otherwise break the ticker and the
// holds.
func (c *Config) applyDefaults() {
	if c.Worker.ExpirationSweepMinutes <= 0 {
		c.Worker.ExpirationSweepMinutes = 15
	}
	if c.Reservation.HoldTTLHours <= 0 {
		c.Reservation.HoldTTLHours = 48
	}
	if c.Reservation.RoomLockTTLSeconds <= 0 {
		c.Reservation.RoomLockTTLSeconds = 30
	}
	if c.Reservation.RoomsCacheTTL <= 0 {
		c.Reservation.RoomsCacheTTL = 60
	}
}
