package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/iap/store"
	"github.com/xraph/iap/store/memory"
	"github.com/xraph/iap/store/mongo"
	"github.com/xraph/iap/store/redis"
	"github.com/xraph/iap/validator"
)

// Config is read from the environment, after loading a .env file when one
// exists.
type Config struct {
	Log       Log
	HTTP      HTTPServer
	Store     Store     `envPrefix:"STORE_"`
	Validator Validator `envPrefix:"IAP_"`
	Webhook   Webhook   `envPrefix:"WEBHOOK_"`

	NATSURL     string `env:"NATS_URL"`
	CatalogFile string `env:"CATALOG_FILE"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

func (h HTTPServer) Addr() string { return h.Host + ":" + h.Port }

type Store struct {
	Driver        string `env:"DRIVER" envDefault:"memory"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"iap"`
	MongoURI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"iap"`
}

type Validator struct {
	AppName     string        `env:"APP_NAME"`
	PublicKey   string        `env:"PUBLIC_KEY"`
	BaseURL     string        `env:"VALIDATOR_URL" envDefault:"https://validator.iaptic.com"`
	IOSBundleID string        `env:"IOS_BUNDLE_ID"`
	Timeout     time.Duration `env:"VALIDATOR_TIMEOUT" envDefault:"30s"`
}

func (v Validator) config() validator.Config {
	return validator.Config{
		AppName:     v.AppName,
		PublicKey:   v.PublicKey,
		BaseURL:     v.BaseURL,
		IOSBundleID: v.IOSBundleID,
		Timeout:     v.Timeout,
	}
}

type Webhook struct {
	Path     string `env:"PATH" envDefault:"/iap/webhook"`
	Password string `env:"PASSWORD"`
}

func newLogger(cfg Log) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openStore opens the backend selected by STORE_DRIVER and migrates it.
func openStore(ctx context.Context, cfg Store) (store.Store, error) {
	var s store.Store
	switch cfg.Driver {
	case "", "memory":
		s = memory.New()
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		s = redis.New(rdb, redis.WithPrefix(cfg.RedisPrefix))
	case "mongo":
		ms, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		s = ms
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("ping %s store: %w", cfg.Driver, err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate %s store: %w", cfg.Driver, err)
	}
	return s, nil
}
