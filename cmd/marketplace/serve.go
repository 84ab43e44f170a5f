package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/agromarket/internal/catalog"
	"github.com/fjod/agromarket/internal/checkout"
	"github.com/fjod/agromarket/internal/client"
	"github.com/fjod/agromarket/internal/config"
	"github.com/fjod/agromarket/internal/domain"
	"github.com/fjod/agromarket/internal/events"
	"github.com/fjod/agromarket/internal/feed"
	apihttp "github.com/fjod/agromarket/internal/http"
	"github.com/fjod/agromarket/internal/identity"
	"github.com/fjod/agromarket/internal/logging"
	"github.com/fjod/agromarket/internal/payment"
	"github.com/fjod/agromarket/internal/remote"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	shutdownTimeout   = 10 * time.Second
	visitorTTL        = 10 * time.Minute
	limiterSweepEvery = time.Minute
)

type publisher interface {
	checkout.Publisher
	Close() error
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the marketplace HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Usage: "override AGRO_HTTP_PORT"},
			&cli.StringFlag{Name: "backend", Usage: "override AGRO_STORE_BACKEND (memory or mongo)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			return serve(c.Context, cfg)
		},
	}
}

func newLogger(cfg config.Log) *logrus.Logger {
	log := logging.New(cfg)
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(log.GetLevel())
	return log
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := newLogger(cfg.Log)

	in, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.Close()

	// Feeds
	principals := remote.NewPrincipals(in.redis, cfg.Auth.PrincipalTTL)
	principalCh := feed.NewChannel[string]("principals", principals, log)
	defer principalCh.Close()
	profileCh := feed.NewChannel[*domain.Session]("profiles",
		remote.NewRecordFeed[domain.Session](in.repo, in.notifier, remote.Profiles), log)
	defer profileCh.Close()
	productCh := feed.NewChannel[[]domain.ProductRecord]("products",
		remote.NewCollectionFeed[domain.ProductRecord](in.repo, in.notifier, remote.Products, remote.ProductOwnerField), log)
	defer productCh.Close()

	shared := catalog.NewSync(productCh, catalog.Options{PublishedOnly: true}, catalog.Defaults{
		Rating: cfg.Pricing.DefaultProductRating,
	}, log)
	if err := shared.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start catalog feed")
	}
	defer shared.Close()

	// Payments and events
	var status payment.StatusSource = payment.RandomStatus{}
	if cfg.Payment.AlwaysSucceed {
		status = payment.AlwaysSucceed{}
	}
	gateway := payment.NewBreakerGateway(
		payment.NewSimulatedGateway(cfg.Payment.Delay, status, log),
		payment.BreakerOptions{
			ConsecutiveFailures: cfg.Payment.BreakerFailures,
			OpenTimeout:         cfg.Payment.BreakerOpenTimeout,
			ChargeTimeout:       cfg.Payment.ChargeTimeout,
		}, log)

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	var consumers sync.WaitGroup

	var pub publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		pub = events.NewKafkaPublisher(log, cfg.Kafka.Topic, cfg.Kafka.Brokers...)

		consumer := events.NewOrderConsumer(in.store, log, cfg.Kafka.Topic, cfg.Kafka.GroupID, cfg.Kafka.Brokers...)
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			defer consumer.Close()
			consumer.Run(consumerCtx)
		}()
	} else {
		log.Warn("AGRO_KAFKA_BROKERS not set, checkout events are not published")
	}
	defer func() {
		if err := pub.Close(); err != nil {
			log.WithError(err).Warn("failed to close publisher")
		}
	}()

	registry := client.NewRegistry(client.Deps{
		Principals: principalCh,
		Profiles:   profileCh,
		Products:   productCh,
		Gateway:    gateway,
		Publisher:  pub,
		Pricing: client.Pricing{
			CommissionRate:       cfg.Pricing.CommissionRate,
			DefaultProductRating: cfg.Pricing.DefaultProductRating,
			Currency:             cfg.Pricing.Currency,
		},
		Log: log,
	}, client.Options{
		IdleTimeout:     cfg.Clients.IdleTimeout,
		CleanupInterval: cfg.Clients.CleanupInterval,
	})
	defer registry.Close()

	limiter := apihttp.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst, visitorTTL)
	go limiter.Run(consumerCtx, limiterSweepEvery)

	handler := apihttp.NewHandler(apihttp.HandlerDeps{
		Workspaces: registry,
		Catalog:    shared,
		Identity: identity.NewService(in.store, principals, identity.Options{
			RegistrationRating: cfg.Pricing.RegistrationRating,
			BcryptCost:         cfg.Auth.BcryptCost,
		}, log),
		Listing: catalog.NewListing(in.store, cfg.Pricing.DefaultListingLocation, log),
		Tokens:  identity.NewTokens(cfg.Auth.Secret, cfg.Auth.TokenTTL),
		Log:     log,
	}, cfg.HTTP.RequestTimeout)

	router := apihttp.NewRouter(handler, apihttp.RouterOptions{
		RequestTimeout: cfg.HTTP.RequestTimeout,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Limiter:        limiter,
		Log:            log,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      otelhttp.NewHandler(router, "marketplace"),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("marketplace API starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return errors.Wrap(err, "server error")
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	stopConsumer()
	consumers.Wait()
	log.Info("server exited")
	return nil
}
