package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config captures all tunable parameters for the dispatcher process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type Config struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr         string
	RedisPassword     string
	VehicleMembersKey string
	CourierMembersKey string

	KafkaBrokers      []string
	KafkaInboundTopic string
	KafkaOutboundTopic string
	KafkaGroup        string

	AMQPURL string

	PGDSN         string
	RunMigrations bool

	OfferInterval     time.Duration
	TickInterval      time.Duration
	MembershipRefresh time.Duration

	LogLevel string
}

func defaultConfig() Config {
	return Config{
		HTTPAddr:           ":8080",
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       10 * time.Second,
		IdleTimeout:        120 * time.Second,
		ShutdownTimeout:    15 * time.Second,
		VehicleMembersKey:  "members:vehicle",
		CourierMembersKey:  "members:courier",
		KafkaInboundTopic:  "dispatch-inbound",
		KafkaOutboundTopic: "dispatch-outbound",
		KafkaGroup:         "fleet-dispatch",
		OfferInterval:      30 * time.Second,
		TickInterval:       time.Second,
		MembershipRefresh:  time.Minute,
		LogLevel:           "info",
	}
}

func Load() (Config, error) {
	cfg := defaultConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.VehicleMembersKey, "VEHICLE_MEMBERS_KEY")
	setStringFromEnv(&cfg.CourierMembersKey, "COURIER_MEMBERS_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaInboundTopic, "KAFKA_INBOUND_TOPIC")
	setStringFromEnv(&cfg.KafkaOutboundTopic, "KAFKA_OUTBOUND_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")

	cfg.AMQPURL = strings.TrimSpace(os.Getenv("AMQP_URL"))

	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	setDurationFromEnv(&cfg.OfferInterval, "OFFER_INTERVAL", &errs)
	setDurationFromEnv(&cfg.TickInterval, "TICK_INTERVAL", &errs)
	setDurationFromEnv(&cfg.MembershipRefresh, "MEMBERSHIP_REFRESH_INTERVAL", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.OfferInterval <= 0 {
		errs = append(errs, fmt.Errorf("OFFER_INTERVAL must be > 0"))
	}
	if cfg.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("TICK_INTERVAL must be > 0"))
	}
	if cfg.MembershipRefresh <= 0 {
		errs = append(errs, fmt.Errorf("MEMBERSHIP_REFRESH_INTERVAL must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
