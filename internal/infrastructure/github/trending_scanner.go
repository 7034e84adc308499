package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ScoutRadar/internal/domain"
	"ScoutRadar/internal/scanner"
)

// TrendingScanner scrapes the trending page, which has no API equivalent.
type TrendingScanner struct {
	pageURL string
	client  *http.Client
	now     func() time.Time
}

var _ scanner.Scanner = (*TrendingScanner)(nil)

// NewTrendingScanner wires an HTTP client; a nil client gets a sane timeout.
func NewTrendingScanner(pageURL string, client *http.Client) *TrendingScanner {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &TrendingScanner{pageURL: pageURL, client: client, now: time.Now}
}

// Name identifies the strategy inside the registry.
func (t *TrendingScanner) Name() domain.SourceStrategy {
	return domain.StrategyTrending
}

// Scan fetches the trending page, optionally narrowed to a language via the
// source query, and extracts repository entries. Listed repos are trending on
// today's activity, so they carry the scan time as their activity timestamp.
func (t *TrendingScanner) Scan(ctx context.Context, source domain.TrackedSource) ([]domain.Repo, error) {
	pageURL := t.pageURL
	if source.Query != "" {
		pageURL = strings.TrimSuffix(pageURL, "/") + "/" + url.PathEscape(source.Query)
	}

	doc, err := t.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("trending %s: %w", source.Name, err)
	}

	scannedAt := t.now().UTC().Format(time.RFC3339)

	var repos []domain.Repo
	doc.Find("article.Box-row").Each(func(i int, row *goquery.Selection) {
		repo, ok := parseTrendingRow(row)
		if !ok {
			return
		}
		repo.PushedAt = scannedAt
		repos = append(repos, repo)
	})

	return repos, nil
}

func (t *TrendingScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "ScoutRadar/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trending page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func parseTrendingRow(row *goquery.Selection) (domain.Repo, bool) {
	link := row.Find("h2 a").First()
	href, ok := link.Attr("href")
	if !ok {
		return domain.Repo{}, false
	}
	fullName := strings.Trim(href, "/")
	if fullName == "" {
		return domain.Repo{}, false
	}

	description := strings.TrimSpace(row.Find("p").First().Text())
	language := strings.TrimSpace(row.Find("[itemprop=programmingLanguage]").First().Text())

	stars := 0
	starsText := strings.TrimSpace(row.Find("a[href$=\"/stargazers\"]").First().Text())
	starsText = strings.ReplaceAll(starsText, ",", "")
	if n, err := strconv.Atoi(starsText); err == nil {
		stars = n
	}

	return domain.Repo{
		ID:          "trending:" + fullName,
		FullName:    fullName,
		Description: description,
		Stars:       stars,
		Language:    language,
		URL:         "https://github.com/" + fullName,
	}, true
}
