package main

import (
	"errors"
	"fmt"

	"github.com/Adwaitkp/primaspot/pkg/browser"
	"github.com/Adwaitkp/primaspot/pkg/config"
	"github.com/Adwaitkp/primaspot/pkg/instagram"
	"github.com/Adwaitkp/primaspot/pkg/logger"
	"github.com/Adwaitkp/primaspot/pkg/ratelimit"
	"github.com/Adwaitkp/primaspot/pkg/scraper"
	"github.com/Adwaitkp/primaspot/pkg/session"
	"github.com/Adwaitkp/primaspot/pkg/storage"
)

// app is the wired service shared by serve, scrape and status
type app struct {
	cfg         *config.Config
	store       *storage.Store
	pool        *session.Pool
	coordinator *scraper.Coordinator
	logger      logger.Logger
}

func newApp(cfg *config.Config) (*app, error) {
	log := logger.GetLogger()

	store, err := storage.Open(cfg.Database.Path,
		storage.WithBusyTimeout(cfg.Database.BusyTimeout),
		storage.WithRetryAttempts(cfg.Database.RetryAttempts),
		storage.WithLogger(log.WithField("component", "storage")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	factory, err := browser.NewFactory(browser.Options{
		Driver:            cfg.Browser.Driver,
		RemoteURL:         cfg.Browser.RemoteURL,
		Headless:          cfg.Browser.Headless,
		UserAgent:         cfg.Browser.UserAgent,
		NavigationTimeout: cfg.Scrape.NavigationTimeout,
		SettleDelay:       cfg.Scrape.SettleDelay,
		Logger:            log.WithField("component", "browser"),
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	pool := session.New(factory, session.Config{
		Size:     cfg.Browser.Sessions,
		MaxQueue: cfg.Browser.MaxQueue,
		MaxWait:  cfg.Browser.MaxWait,
		Logger:   log.WithField("component", "session"),
	})

	bind := instagram.Binder(instagram.AdapterOptions{
		NavigationTimeout: cfg.Scrape.NavigationTimeout,
		Limiter:           ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize),
		Logger:            log.WithField("component", "instagram"),
	})

	coordinator := scraper.New(scraper.Deps{
		Profiles: store,
		Posts:    store.Posts(),
		Reels:    store.Reels(),
		Pool:     pool,
		Bind: func(s browser.Session) scraper.SourceAdapter {
			return bind(s)
		},
		Config: cfg.Scrape,
		Logger: log.WithField("component", "scraper"),
	})

	return &app{
		cfg:         cfg,
		store:       store,
		pool:        pool,
		coordinator: coordinator,
		logger:      log,
	}, nil
}

// Close releases browser sessions before the database
func (a *app) Close() error {
	return errors.Join(a.pool.Close(), a.store.Close())
}
