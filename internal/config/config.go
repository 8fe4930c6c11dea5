package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Sink names accepted by SINK.
const (
	SinkLog      = "log"
	SinkKafka    = "kafka"
	SinkPostgres = "postgres"
	SinkMongo    = "mongo"
)

// Scraper engines accepted by SCRAPER_ENGINE.
const (
	EngineChromedp = "chromedp"
	EngineColly    = "colly"
)

// DefaultMailSender is the fire bureau address whose notices are ingested.
const DefaultMailSender = "fukushosaigai@m119.city.fukuoka.lg.jp"

// DefaultUserAgent identifies the scraper as a desktop browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	Location        *time.Location

	// Mailbox configuration. MailEnabled is false when host or credentials
	// are missing.
	IMAPHost               string
	IMAPPort               int
	IMAPUser               string
	IMAPPass               string
	IMAPTLS                bool
	IMAPInsecureSkipVerify bool
	MailSender             string
	MailEnabled            bool

	// Google geocoding configuration.
	GoogleAPIKey     string
	GeocodeEnabled   bool
	GeocodeTimeout   time.Duration
	GeocodeCacheSize int
	GeocodeLanguage  string

	// Scraper configuration.
	ScraperEnabled      bool
	ScraperEngine       string
	ScrapeInterval      time.Duration
	SourcesFile         string
	MaxArticles         int
	DetailDelay         time.Duration
	NavigationTimeout   time.Duration
	UserAgent           string
	ChromePath          string
	ReadabilityFallback bool
	RecencyDays         int
	ScreenshotDir       string
	ScreenshotS3Bucket  string

	// Sink configuration.
	Sink              string
	KafkaBrokers      []string
	KafkaNewsTopic    string
	KafkaReportsTopic string
	PostgresDSN       string
	MongoURI          string
	MongoDatabase     string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(sharedcfg.EnvOrDefault("TIMEZONE", "Asia/Tokyo"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	geocodeTimeout, err := parseDuration("GEOCODE_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	scrapeInterval, err := parseDuration("SCRAPE_INTERVAL", "1h")
	if err != nil {
		return nil, err
	}
	detailDelay, err := parseDuration("SCRAPER_DETAIL_DELAY", "1s")
	if err != nil {
		return nil, err
	}
	navTimeout, err := parseDuration("SCRAPER_NAV_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}

	imapPort, err := parsePositiveInt("IMAP_PORT", 993)
	if err != nil {
		return nil, err
	}
	maxArticles, err := parsePositiveInt("SCRAPER_MAX_ARTICLES", 10)
	if err != nil {
		return nil, err
	}
	recencyDays, err := parsePositiveInt("SCRAPER_RECENCY_DAYS", 1)
	if err != nil {
		return nil, err
	}
	geocodeCacheSize, err := parsePositiveInt("GEOCODE_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	imapTLS, err := parseBool("IMAP_TLS", true)
	if err != nil {
		return nil, err
	}
	imapInsecure, err := parseBool("IMAP_INSECURE_SKIP_VERIFY", false)
	if err != nil {
		return nil, err
	}
	scraperEnabled, err := parseBool("SCRAPER_ENABLED", true)
	if err != nil {
		return nil, err
	}
	readability, err := parseBool("SCRAPER_READABILITY_FALLBACK", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		Location:        loc,

		IMAPHost:               os.Getenv("IMAP_HOST"),
		IMAPPort:               imapPort,
		IMAPUser:               os.Getenv("IMAP_USER"),
		IMAPPass:               os.Getenv("IMAP_PASS"),
		IMAPTLS:                imapTLS,
		IMAPInsecureSkipVerify: imapInsecure,
		MailSender:             sharedcfg.EnvOrDefault("MAIL_SENDER", DefaultMailSender),

		GoogleAPIKey:     os.Getenv("GOOGLE_MAPS_API_KEY"),
		GeocodeTimeout:   geocodeTimeout,
		GeocodeCacheSize: geocodeCacheSize,
		GeocodeLanguage:  sharedcfg.EnvOrDefault("GEOCODE_LANGUAGE", "ja"),

		ScraperEnabled:      scraperEnabled,
		ScraperEngine:       strings.ToLower(sharedcfg.EnvOrDefault("SCRAPER_ENGINE", EngineChromedp)),
		ScrapeInterval:      scrapeInterval,
		SourcesFile:         os.Getenv("SCRAPER_SOURCES_FILE"),
		MaxArticles:         maxArticles,
		DetailDelay:         detailDelay,
		NavigationTimeout:   navTimeout,
		UserAgent:           sharedcfg.EnvOrDefault("SCRAPER_USER_AGENT", DefaultUserAgent),
		ChromePath:          os.Getenv("CHROME_PATH"),
		ReadabilityFallback: readability,
		RecencyDays:         recencyDays,
		ScreenshotDir:       os.Getenv("SCREENSHOT_DIR"),
		ScreenshotS3Bucket:  os.Getenv("SCREENSHOT_S3_BUCKET"),

		Sink:              strings.ToLower(sharedcfg.EnvOrDefault("SINK", SinkLog)),
		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaNewsTopic:    sharedcfg.EnvOrDefault("KAFKA_NEWS_TOPIC", "news-records"),
		KafkaReportsTopic: sharedcfg.EnvOrDefault("KAFKA_REPORTS_TOPIC", "disaster-reports"),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDatabase:     sharedcfg.EnvOrDefault("MONGO_DATABASE", "incidents"),
	}

	cfg.MailEnabled = cfg.IMAPHost != "" && cfg.IMAPUser != "" && cfg.IMAPPass != ""
	cfg.GeocodeEnabled = cfg.GoogleAPIKey != ""
	if v := os.Getenv("GEOCODE_ENABLED"); v != "" {
		// A key is still required; the flag can only switch geocoding off.
		cfg.GeocodeEnabled = cfg.GeocodeEnabled && v == "true"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IMAPAddr returns the host:port of the mailbox server.
func (c *Config) IMAPAddr() string {
	return fmt.Sprintf("%s:%d", c.IMAPHost, c.IMAPPort)
}

func (c *Config) validate() error {
	switch c.ScraperEngine {
	case EngineChromedp, EngineColly:
	default:
		return fmt.Errorf("invalid SCRAPER_ENGINE %q: must be %s or %s", c.ScraperEngine, EngineChromedp, EngineColly)
	}

	switch c.Sink {
	case SinkLog:
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when SINK is kafka")
		}
		if c.KafkaNewsTopic == "" || c.KafkaReportsTopic == "" {
			return errors.New("KAFKA_NEWS_TOPIC and KAFKA_REPORTS_TOPIC are required when SINK is kafka")
		}
	case SinkPostgres:
		if c.PostgresDSN == "" {
			return errors.New("SINK is postgres but POSTGRES_DSN is not set")
		}
	case SinkMongo:
		if c.MongoURI == "" {
			return errors.New("SINK is mongo but MONGO_URI is not set")
		}
	default:
		return fmt.Errorf("invalid SINK %q", c.Sink)
	}

	if c.ScreenshotDir != "" && c.ScreenshotS3Bucket != "" {
		return errors.New("SCREENSHOT_DIR and SCREENSHOT_S3_BUCKET are mutually exclusive")
	}
	return nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}
