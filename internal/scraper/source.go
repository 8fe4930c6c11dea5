package scraper

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Selectors locates listing and article fields in a source's markup.
type Selectors struct {
	Item      string `yaml:"item"`
	Title     string `yaml:"title"`
	Link      string `yaml:"link"`
	Time      string `yaml:"time"`
	Image     string `yaml:"image"`
	Body      string `yaml:"body"`
	Paragraph string `yaml:"paragraph"`
	Ads       string `yaml:"ads"`
}

// Source describes one news site: where its listing pages live and how to
// read them.
type Source struct {
	Name        string    `yaml:"name"`
	BaseURL     string    `yaml:"base_url"`
	ListingURLs []string  `yaml:"listing_urls"`
	Selectors   Selectors `yaml:"selectors"`
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

// DefaultSource is the RKB毎日放送 latest-news listing, pages 1 to 3.
func DefaultSource() Source {
	return Source{
		Name:    "RKB毎日放送",
		BaseURL: "https://newsdig.tbs.co.jp",
		ListingURLs: []string{
			"https://newsdig.tbs.co.jp/list/rkb/latest",
			"https://newsdig.tbs.co.jp/list/rkb/latest?page=2",
			"https://newsdig.tbs.co.jp/list/rkb/latest?page=3",
		},
		Selectors: defaultSelectors(),
	}
}

func defaultSelectors() Selectors {
	return Selectors{
		Item:      "article.m-article-row",
		Title:     "h3.m-article-content__title",
		Link:      "a.m-article-inner",
		Time:      "time",
		Image:     "img",
		Body:      ".article-body",
		Paragraph: "p",
		Ads:       ".insert_ads",
	}
}

// LoadSources reads source definitions from a YAML file. Selectors left
// empty inherit the defaults.
func LoadSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}
	if len(f.Sources) == 0 {
		return nil, errors.New("sources file defines no sources")
	}

	for i := range f.Sources {
		s := &f.Sources[i]
		if s.Name == "" || s.BaseURL == "" || len(s.ListingURLs) == 0 {
			return nil, fmt.Errorf("source %d: name, base_url and listing_urls are required", i)
		}
		s.Selectors = s.Selectors.withDefaults()
	}
	return f.Sources, nil
}

func (s Selectors) withDefaults() Selectors {
	d := defaultSelectors()
	if s.Item == "" {
		s.Item = d.Item
	}
	if s.Title == "" {
		s.Title = d.Title
	}
	if s.Link == "" {
		s.Link = d.Link
	}
	if s.Time == "" {
		s.Time = d.Time
	}
	if s.Image == "" {
		s.Image = d.Image
	}
	if s.Body == "" {
		s.Body = d.Body
	}
	if s.Paragraph == "" {
		s.Paragraph = d.Paragraph
	}
	if s.Ads == "" {
		s.Ads = d.Ads
	}
	return s
}
