package tools

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"

	"github.com/atelier-ai/atelier/internal/log"
)

const maxScrapeContentLen = 8000

// ScraperConfig tunes the page scraper.
type ScraperConfig struct {
	Parallelism int
	Delay       time.Duration
	Timeout     time.Duration
}

// Scraper fetches a page and extracts its readable main content.
type Scraper struct {
	cfg    ScraperConfig
	logger log.Logger
}

// NewScraper creates a scraper with the given limits.
func NewScraper(cfg ScraperConfig, logger log.Logger) *Scraper {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Scraper{cfg: cfg, logger: logger}
}

// Fetch downloads the page and returns its title and extracted main text.
func (s *Scraper) Fetch(ctx context.Context, pageURL string) (title, content string, err error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", "", fmt.Errorf("invalid url %q", pageURL)
	}

	var body []byte
	c := colly.NewCollector(colly.MaxDepth(1))
	c.SetRequestTimeout(s.cfg.Timeout)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: s.cfg.Parallelism,
		Delay:       s.cfg.Delay,
	}); err != nil {
		return "", "", fmt.Errorf("configure scraper limits: %w", err)
	}
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})

	if err := c.Visit(parsed.String()); err != nil {
		return "", "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	if len(body) == 0 {
		return "", "", fmt.Errorf("empty response from %s", pageURL)
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		s.logger.Warn("readability extraction failed, falling back to raw parse", "url", pageURL, "error", err)
		return fallbackExtract(body)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return fallbackExtract(body)
	}
	return article.Title, truncateContent(text), nil
}

// fallbackExtract pulls the title and body text directly from the DOM when
// readability cannot find an article.
func fallbackExtract(body []byte) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("parse page: %w", err)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	text := strings.TrimSpace(doc.Find("body").Text())
	if text == "" {
		return title, "", fmt.Errorf("no readable content")
	}
	return title, truncateContent(text), nil
}

func truncateContent(s string) string {
	runes := []rune(s)
	if len(runes) <= maxScrapeContentLen {
		return s
	}
	return string(runes[:maxScrapeContentLen]) + "..."
}

// ScrapePageInput is the argument set of the scrape_page tool.
type ScrapePageInput struct {
	URL string `json:"url" jsonschema:"the page URL to fetch and extract"`
}

// NewScrapePageTool creates the page extraction tool.
func NewScrapePageTool(scraper *Scraper) (Tool, error) {
	return New("scrape_page",
		"Fetch a web page and extract its readable main content. Use after web_search to read a promising result in full.",
		KindGeneral,
		func(ctx context.Context, in ScrapePageInput) (string, error) {
			title, content, err := scraper.Fetch(ctx, in.URL)
			if err != nil {
				return "", err
			}
			var b strings.Builder
			fmt.Fprintf(&b, "📄 %s\n🔗 %s\n\n%s\n", title, in.URL, content)
			return b.String(), nil
		})
}
