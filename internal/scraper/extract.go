package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/couchcryptid/incident-ingest-service/internal/domain"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

var (
	// brRe matches line-break tags in any of their HTML spellings.
	brRe = regexp.MustCompile(`(?i)<br\s*/?>`)

	// tagRe matches any remaining markup tag.
	tagRe = regexp.MustCompile(`<[^>]*>`)

	// newlinesRe collapses runs of newlines, including blank-looking lines.
	newlinesRe = regexp.MustCompile(`\n[ \t\r\n]*\n|\n+`)

	// whitespaceRe collapses horizontal whitespace in readability output.
	whitespaceRe = regexp.MustCompile(`[ \t]+`)
)

// ListingResult is the outcome of reading one listing page.
type ListingResult struct {
	Candidates []domain.ArticleCandidate
	// Skipped counts rows whose timestamp could not be parsed.
	Skipped int
}

// ExtractCandidates reads every listing row in page. Relative links and
// image sources are resolved against the source base URL. Rows without a
// timestamp are stamped with now; rows with an unparsable timestamp are
// skipped.
func ExtractCandidates(page string, src Source, now time.Time, loc *time.Location) (ListingResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return ListingResult{}, fmt.Errorf("parse listing: %w", err)
	}
	base, err := url.Parse(src.BaseURL)
	if err != nil {
		return ListingResult{}, fmt.Errorf("parse base url: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}

	sel := src.Selectors
	var res ListingResult
	doc.Find(sel.Item).Each(func(_ int, row *goquery.Selection) {
		published := now
		if dt, ok := row.Find(sel.Time).First().Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
			t, err := dateparse.ParseIn(strings.TrimSpace(dt), loc)
			if err != nil {
				res.Skipped++
				return
			}
			published = t
		}

		title := collapseSpace(row.Find(sel.Title).First().Text())
		href, _ := row.Find(sel.Link).First().Attr("href")
		img, _ := row.Find(sel.Image).First().Attr("src")

		res.Candidates = append(res.Candidates, domain.ArticleCandidate{
			Title:       title,
			URL:         resolve(base, href),
			ImageURL:    resolve(base, img),
			PublishedAt: published,
			Description: title,
			SourceName:  src.Name,
		})
	})
	return res, nil
}

// ExtractArticleBody returns the article text from a detail page: each
// paragraph inside the body container, with ads removed, <br> turned into
// newlines, tags stripped, entities decoded and newline runs collapsed.
// Non-empty paragraphs are joined by a blank line. An empty string means
// nothing usable was found.
func ExtractArticleBody(page string, sel Selectors) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse article: %w", err)
	}

	container := doc.Find(sel.Body)
	if sel.Ads != "" {
		container.Find(sel.Ads).Remove()
	}

	var paragraphs []string
	container.Find(sel.Paragraph).Each(func(_ int, p *goquery.Selection) {
		inner, err := p.Html()
		if err != nil {
			return
		}
		if text := cleanParagraph(inner); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	return strings.Join(paragraphs, "\n\n"), nil
}

// ExtractReadableText runs readability over a detail page and returns its
// main text, for pages whose markup does not match the selectors.
func ExtractReadableText(page, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	article, err := readability.FromReader(strings.NewReader(page), u)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return "", fmt.Errorf("parse readable content: %w", err)
	}
	doc.Find("script, style, figure, aside").Remove()

	text := whitespaceRe.ReplaceAllString(doc.Text(), " ")
	text = newlinesRe.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text), nil
}

func cleanParagraph(inner string) string {
	text := brRe.ReplaceAllString(inner, "\n")
	text = tagRe.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = newlinesRe.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}
