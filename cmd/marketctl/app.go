package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/jrsteele09/go-vehicle-market/account"
	"github.com/jrsteele09/go-vehicle-market/admin"
	"github.com/jrsteele09/go-vehicle-market/api"
	"github.com/jrsteele09/go-vehicle-market/catalog"
	"github.com/jrsteele09/go-vehicle-market/credentials"
	"github.com/jrsteele09/go-vehicle-market/credentials/filerepo"
	"github.com/jrsteele09/go-vehicle-market/credentials/redisrepo"
	credentialsrepofake "github.com/jrsteele09/go-vehicle-market/credentials/repofake"
	"github.com/jrsteele09/go-vehicle-market/internal/config"
	"github.com/jrsteele09/go-vehicle-market/metrics"
	"github.com/jrsteele09/go-vehicle-market/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// app holds everything a command needs. It is built once per invocation.
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	client   *api.Client
	session  *session.Manager
	catalog  *catalog.Catalog
	admin    *admin.Console
	account  *account.Service
	out      printer
	closers  []func() error
}

func newApp(ctx context.Context, cfg config.Config, format string, stdout io.Writer) (*app, error) {
	logger, err := newLogger(cfg.GetLogLevel())
	if err != nil {
		return nil, err
	}
	out, err := newPrinter(format, stdout)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry(), out: out}
	collectors := metrics.New(a.registry)

	a.client, err = api.New(cfg.GetAPIBaseURL(), transportOptions(cfg, logger, collectors)...)
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}

	repo, err := a.credentialRepo()
	if err != nil {
		return nil, err
	}
	a.session, err = session.NewManager(a.client, repo,
		session.WithLogger(logger),
		session.WithMetrics(collectors),
		session.WithRefreshInterval(cfg.GetRefreshInterval()),
		session.WithExpiryLeeway(cfg.GetExpiryLeeway()),
	)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		a.session.Close()
		return nil
	})

	a.catalog = catalog.New(a.client, cfg.GetMediaBaseURL(), catalog.WithAuthorizer(a.session))
	a.admin = admin.New(a.client, a.session, a.catalog)
	a.account = account.New(a.client)

	switch err := a.session.Restore(ctx); {
	case errors.Is(err, session.ErrSessionExpired):
		logger.Info().Msg("Saved session expired, sign in again")
	case err != nil:
		logger.Warn().Err(err).Msg("Could not restore the saved session")
	}
	return a, nil
}

func transportOptions(cfg config.TransportConfig, logger zerolog.Logger, m *metrics.Collectors) []api.Option {
	opts := []api.Option{
		api.WithLogger(logger),
		api.WithMetrics(m),
		api.WithRateLimit(cfg.GetRateLimit(), cfg.GetRateBurst()),
		api.WithHTTPClient(&http.Client{Timeout: cfg.GetHTTPTimeout()}),
	}
	if cfg.GetBreakerTimeout() > 0 {
		breaker := api.DefaultBreakerConfig("market-api")
		breaker.Timeout = cfg.GetBreakerTimeout()
		breaker.MinRequests = cfg.GetBreakerMinRequests()
		breaker.FailureRatio = cfg.GetBreakerFailureRatio()
		opts = append(opts, api.WithBreaker(breaker))
	}
	return opts
}

func (a *app) credentialRepo() (credentials.Repo, error) {
	switch a.cfg.GetCredentialStore() {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: a.cfg.GetRedisAddr()})
		a.closers = append(a.closers, rdb.Close)
		return redisrepo.New(rdb, a.cfg.GetRedisPrefix()), nil
	case "memory":
		return credentialsrepofake.NewFakeCredentialsRepo(), nil
	default:
		repo, err := filerepo.New(a.cfg.GetDataFolder(), filerepo.WithPassphrase(a.cfg.GetCredentialPassphrase()))
		if err != nil {
			return nil, err
		}
		a.logger.Debug().Str("path", repo.Path()).Msg("Using credential file")
		return repo, nil
	}
}

// close releases the session and the store, in reverse order of creation.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn().Err(err).Msg("Close failed")
		}
	}
}

// dumpMetrics writes the collected series in the prometheus text format.
func (a *app) dumpMetrics(w io.Writer) error {
	families, err := a.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("log level: %w", err)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().Timestamp().Logger()
	log.Logger = logger
	return logger, nil
}
