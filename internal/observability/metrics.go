package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "incident_ingest"

// Metrics holds the Prometheus counters, histograms, and gauges for both
// producers and their collaborators.
type Metrics struct {
	PipelineRunning prometheus.Gauge
	RecordsLoaded   prometheus.Counter
	LoadErrors      prometheus.Counter

	// Scrape metrics.
	ScrapeRuns       *prometheus.CounterVec // labels: outcome={success,failed}
	ScrapeDuration   prometheus.Histogram
	ArticlesListed   prometheus.Counter
	ArticlesEnriched *prometheus.CounterVec // labels: result={detail,fallback}
	BatchSize        prometheus.Histogram

	// Mail metrics.
	MailboxConnected prometheus.Gauge
	MailCycles       prometheus.Counter
	MailMessages     *prometheus.CounterVec // labels: outcome={saved,parse_error,sink_error}

	// Retry metrics.
	RetryAttempts *prometheus.CounterVec // labels: operation

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the scrape pipeline is active, 0 when shut down.",
		}),
		RecordsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_loaded_total",
			Help:      "Total news records written to the sink.",
		}),
		LoadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_errors_total",
			Help:      "Total failed sink writes for news records.",
		}),
		ScrapeRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_runs_total",
			Help:      "Scrape runs by outcome.",
		}, []string{"outcome"}),
		ScrapeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scrape_duration_seconds",
			Help:      "Duration of a complete listing and enrichment run.",
			Buckets:   []float64{1, 5, 10, 20, 30, 60, 120, 300},
		}),
		ArticlesListed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_listed_total",
			Help:      "Listing candidates kept after the recency filter.",
		}),
		ArticlesEnriched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_enriched_total",
			Help:      "Articles promoted to records by body source.",
		}, []string{"result"}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of records produced per scrape run.",
			Buckets:   []float64{0, 1, 5, 10, 20, 30, 40, 60},
		}),
		MailboxConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mailbox_connected",
			Help:      "1 while the mailbox connection is ready.",
		}),
		MailCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mail_fetch_cycles_total",
			Help:      "Completed mailbox fetch cycles.",
		}),
		MailMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mail_messages_total",
			Help:      "Alert mails processed by outcome.",
		}, []string{"outcome"}),
		RetryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Retries scheduled after a failed attempt, by operation.",
		}, []string{"operation"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Geocoding API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when geocoding enrichment is enabled, 0 otherwise.",
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.PipelineRunning,
		m.RecordsLoaded,
		m.LoadErrors,
		m.ScrapeRuns,
		m.ScrapeDuration,
		m.ArticlesListed,
		m.ArticlesEnriched,
		m.BatchSize,
		m.MailboxConnected,
		m.MailCycles,
		m.MailMessages,
		m.RetryAttempts,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
