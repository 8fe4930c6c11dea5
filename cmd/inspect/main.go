// Command inspect runs the offline extraction steps of the ingest service
// against saved files and prints what they produce as JSON. It is used to
// check selectors against a captured page and to replay alert mails.
//
// Usage:
//
//	go run ./cmd/inspect -listing latest.html [-sources sources.yaml]
//	go run ./cmd/inspect -article 1001.html [-article-url URL -readability]
//	go run ./cmd/inspect -mail alert.eml [-geocode]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/couchcryptid/incident-ingest-service/internal/adapter/google"
	"github.com/couchcryptid/incident-ingest-service/internal/domain"
	"github.com/couchcryptid/incident-ingest-service/internal/inbox"
	"github.com/couchcryptid/incident-ingest-service/internal/observability"
	"github.com/couchcryptid/incident-ingest-service/internal/retry"
	"github.com/couchcryptid/incident-ingest-service/internal/scraper"
	"github.com/jonboulle/clockwork"
)

type options struct {
	listing     string
	sources     string
	now         string
	timezone    string
	article     string
	articleURL  string
	readability bool
	mail        string
	geocode     bool
}

func main() {
	var o options
	flag.StringVar(&o.listing, "listing", "", "saved listing page to extract candidates from")
	flag.StringVar(&o.sources, "sources", "", "YAML sources file; the first source's selectors are used")
	flag.StringVar(&o.now, "now", "", "reference time (RFC3339) for the recency window; defaults to the current time")
	flag.StringVar(&o.timezone, "tz", "Asia/Tokyo", "time zone for listing timestamps and the recency window")
	flag.StringVar(&o.article, "article", "", "saved article page to extract the body from")
	flag.StringVar(&o.articleURL, "article-url", "", "original URL of -article, used by -readability")
	flag.BoolVar(&o.readability, "readability", false, "use the readability fallback when the body selector finds nothing")
	flag.StringVar(&o.mail, "mail", "", "RFC 5322 message file to turn into a disaster report")
	flag.BoolVar(&o.geocode, "geocode", false, "geocode the mail address with GOOGLE_MAPS_API_KEY")
	flag.Parse()

	if o.listing == "" && o.article == "" && o.mail == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(context.Background(), o, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(1)
	}
}

// listingOutput is printed for -listing.
type listingOutput struct {
	Cutoff     time.Time                 `json:"cutoff"`
	Extracted  int                       `json:"extracted"`
	Skipped    int                       `json:"skipped"`
	Candidates []domain.ArticleCandidate `json:"candidates"`
}

// articleOutput is printed for -article.
type articleOutput struct {
	Body   string `json:"body"`
	Method string `json:"method"`
}

func run(ctx context.Context, o options, w io.Writer) error {
	loc, err := time.LoadLocation(o.timezone)
	if err != nil {
		return fmt.Errorf("load time zone: %w", err)
	}
	now := time.Now()
	if o.now != "" {
		if now, err = time.Parse(time.RFC3339, o.now); err != nil {
			return fmt.Errorf("parse -now: %w", err)
		}
	}
	// Record IDs and ingestion stamps derive from the domain clock.
	domain.SetClock(clockwork.NewFakeClockAt(now))
	defer domain.SetClock(nil)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	if o.listing != "" {
		out, err := inspectListing(o, now, loc)
		if err != nil {
			return err
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	if o.article != "" {
		out, err := inspectArticle(o)
		if err != nil {
			return err
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	if o.mail != "" {
		out, err := inspectMail(ctx, o)
		if err != nil {
			return err
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	return nil
}

func source(path string) (scraper.Source, error) {
	if path == "" {
		return scraper.DefaultSource(), nil
	}
	sources, err := scraper.LoadSources(path)
	if err != nil {
		return scraper.Source{}, err
	}
	return sources[0], nil
}

func inspectListing(o options, now time.Time, loc *time.Location) (listingOutput, error) {
	src, err := source(o.sources)
	if err != nil {
		return listingOutput{}, err
	}
	page, err := os.ReadFile(o.listing)
	if err != nil {
		return listingOutput{}, err
	}

	res, err := scraper.ExtractCandidates(string(page), src, now, loc)
	if err != nil {
		return listingOutput{}, err
	}
	cutoff := domain.RecencyCutoff(now, loc, 1)
	return listingOutput{
		Cutoff:     cutoff,
		Extracted:  len(res.Candidates),
		Skipped:    res.Skipped,
		Candidates: domain.FilterRecent(res.Candidates, cutoff),
	}, nil
}

func inspectArticle(o options) (articleOutput, error) {
	src, err := source(o.sources)
	if err != nil {
		return articleOutput{}, err
	}
	page, err := os.ReadFile(o.article)
	if err != nil {
		return articleOutput{}, err
	}

	body, err := scraper.ExtractArticleBody(string(page), src.Selectors)
	if err != nil {
		return articleOutput{}, err
	}
	if body != "" || !o.readability {
		return articleOutput{Body: body, Method: "selector"}, nil
	}

	body, err = scraper.ExtractReadableText(string(page), o.articleURL)
	if err != nil {
		return articleOutput{}, err
	}
	return articleOutput{Body: body, Method: "readability"}, nil
}

func inspectMail(ctx context.Context, o options) (domain.DisasterReport, error) {
	f, err := os.Open(o.mail)
	if err != nil {
		return domain.DisasterReport{}, err
	}
	defer f.Close()

	mail, err := inbox.ParseMessage(f)
	if err != nil {
		return domain.DisasterReport{}, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	report := domain.NewDisasterReport(mail.From, mail.Subject, mail.Text, mail.Date)
	if !o.geocode {
		return report, nil
	}

	key := os.Getenv("GOOGLE_MAPS_API_KEY")
	if key == "" {
		return domain.DisasterReport{}, errors.New("-geocode requires GOOGLE_MAPS_API_KEY")
	}
	metrics := observability.NewMetricsForTesting()
	client := google.NewClient(key, "ja", 5*time.Second, retry.New(retry.DefaultPolicy(), logger), metrics, logger)
	return domain.EnrichReportWithGeocoding(ctx, report, client, logger), nil
}
