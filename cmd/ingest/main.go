package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	_ "time/tzdata"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/couchcryptid/incident-ingest-service/internal/adapter/browser"
	"github.com/couchcryptid/incident-ingest-service/internal/adapter/google"
	"github.com/couchcryptid/incident-ingest-service/internal/adapter/httpadapter"
	"github.com/couchcryptid/incident-ingest-service/internal/adapter/imap"
	kafkaadapter "github.com/couchcryptid/incident-ingest-service/internal/adapter/kafka"
	"github.com/couchcryptid/incident-ingest-service/internal/adapter/logsink"
	mongoadapter "github.com/couchcryptid/incident-ingest-service/internal/adapter/mongo"
	"github.com/couchcryptid/incident-ingest-service/internal/adapter/postgres"
	"github.com/couchcryptid/incident-ingest-service/internal/adapter/screenshot"
	"github.com/couchcryptid/incident-ingest-service/internal/config"
	"github.com/couchcryptid/incident-ingest-service/internal/domain"
	"github.com/couchcryptid/incident-ingest-service/internal/inbox"
	"github.com/couchcryptid/incident-ingest-service/internal/observability"
	"github.com/couchcryptid/incident-ingest-service/internal/pipeline"
	"github.com/couchcryptid/incident-ingest-service/internal/retry"
	"github.com/couchcryptid/incident-ingest-service/internal/scraper"
)

// sink is the union of what both producers write to.
type sink interface {
	pipeline.RecordLoader
	inbox.ReportSink
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out, err := openSink(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open sink", "sink", cfg.Sink, "error", err)
		os.Exit(1)
	}
	logger.Info("sink ready", "sink", cfg.Sink)

	retrier := retry.New(retry.DefaultPolicy(), logger, retry.WithMetrics(metrics))

	// Initialize geocoder (feature-flagged via GOOGLE_MAPS_API_KEY / GEOCODE_ENABLED).
	var geocoder domain.Geocoder
	if cfg.GeocodeEnabled {
		client := google.NewClient(cfg.GoogleAPIKey, cfg.GeocodeLanguage, cfg.GeocodeTimeout, retrier, metrics, logger)
		cached, err := google.NewCachedGeocoder(client, cfg.GeocodeCacheSize, metrics)
		if err != nil {
			logger.Error("failed to create geocoder cache", "error", err)
			os.Exit(1)
		}
		geocoder = cached
		metrics.GeocodeEnabled.Set(1)
		logger.Info("google geocoding enabled", "cache_size", cfg.GeocodeCacheSize, "timeout", cfg.GeocodeTimeout)
	} else {
		logger.Info("google geocoding disabled")
	}

	var (
		ready   observability.Readiness
		workers sync.WaitGroup
	)

	if cfg.ScraperEnabled {
		s, err := newScraper(ctx, cfg, retrier, metrics, logger)
		if err != nil {
			logger.Error("failed to configure scraper", "error", err)
			os.Exit(1)
		}
		p := pipeline.New(s, out, logger, metrics, cfg.ScrapeInterval)
		ready = append(ready, p)

		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	} else {
		logger.Info("scraper disabled")
	}

	if cfg.MailEnabled {
		mailbox := imap.NewMailbox(imap.Config{
			Addr:               cfg.IMAPAddr(),
			Username:           cfg.IMAPUser,
			Password:           cfg.IMAPPass,
			TLS:                cfg.IMAPTLS,
			InsecureSkipVerify: cfg.IMAPInsecureSkipVerify,
		}, logger)
		listener := inbox.NewListener(mailbox, out, inbox.NewReportTransformer(geocoder, logger), cfg.MailSender, metrics, logger)
		ready = append(ready, listener)

		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := listener.Run(ctx); err != nil {
				logger.Error("mail listener stopped", "error", err)
			}
		}()
	} else {
		logger.Warn("mail ingestion disabled: IMAP_HOST, IMAP_USER and IMAP_PASS are required")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	done := make(chan struct{})
	go func() {
		workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("producers did not stop before shutdown timeout")
	}

	if err := out.Close(); err != nil {
		logger.Error("sink close error", "error", err)
	}

	logger.Info("shutdown complete")
}

func openSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sink, error) {
	switch cfg.Sink {
	case config.SinkKafka:
		return kafkaadapter.NewWriter(cfg, logger), nil
	case config.SinkPostgres:
		store, err := postgres.Open(cfg.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	case config.SinkMongo:
		return mongoadapter.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	default:
		return logsink.New(logger), nil
	}
}

func newScraper(ctx context.Context, cfg *config.Config, retrier *retry.Executor, metrics *observability.Metrics, logger *slog.Logger) (*scraper.Scraper, error) {
	var engine scraper.Browser
	switch cfg.ScraperEngine {
	case config.EngineColly:
		engine = browser.NewHTTP(cfg.UserAgent, cfg.NavigationTimeout)
	default:
		engine = browser.NewChrome(cfg.UserAgent, cfg.NavigationTimeout, cfg.ChromePath)
	}

	opts := []scraper.Option{
		scraper.WithLocation(cfg.Location),
		scraper.WithMaxArticles(cfg.MaxArticles),
		scraper.WithDetailDelay(cfg.DetailDelay),
		scraper.WithRecencyDays(cfg.RecencyDays),
		scraper.WithReadabilityFallback(cfg.ReadabilityFallback),
	}

	if cfg.SourcesFile != "" {
		sources, err := scraper.LoadSources(cfg.SourcesFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, scraper.WithSources(sources...))
		logger.Info("scrape sources loaded", "file", cfg.SourcesFile, "count", len(sources))
	}

	switch {
	case cfg.ScreenshotDir != "":
		store, err := screenshot.NewDirStore(cfg.ScreenshotDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, scraper.WithScreenshotStore(store))
	case cfg.ScreenshotS3Bucket != "":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		opts = append(opts, scraper.WithScreenshotStore(screenshot.NewS3Store(awsCfg, cfg.ScreenshotS3Bucket, "screenshots")))
	}

	logger.Info("scraper enabled", "engine", cfg.ScraperEngine, "interval", cfg.ScrapeInterval, "max_articles", cfg.MaxArticles)
	return scraper.New(engine, retrier, metrics, logger, opts...), nil
}
