// Package fetcher retrieves single tender pages from the tendly.eu listing
// site and extracts the structured fields the generator needs.
package fetcher

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/tendly/social-pipeline/internal/model"
)

var (
	procurementIDExpr = regexp.MustCompile(`/tender/(\d+)`)
	costDigitsExpr    = regexp.MustCompile(`[^\d.]`)
)

// ExtractProcurementID pulls the numeric procurement ID out of a tender URL.
// URL format: https://tendly.eu/[locale/]tender/{id}-{slug}
func ExtractProcurementID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: parse url %s", rawURL)
	}
	m := procurementIDExpr.FindStringSubmatch(u.Path)
	if m == nil {
		return "", eris.Errorf("fetcher: cannot extract procurement ID from %s", rawURL)
	}
	return m[1], nil
}

// TendlyFetcher fetches and parses tender pages over plain HTTP.
type TendlyFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewTendly wires an HTTP client with the given timeout and a request rate
// limit. The limiter keeps single-URL runs and future batch scrapes from
// hammering the listing site.
func NewTendly(timeout time.Duration, perSec float64) *TendlyFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if perSec <= 0 {
		perSec = 1
	}
	return &TendlyFetcher{
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
	}
}

// Fetch downloads a tender page and extracts its structured fields.
func (f *TendlyFetcher) Fetch(ctx context.Context, pageURL string) (*model.Tender, error) {
	procurementID, err := ExtractProcurementID(pageURL)
	if err != nil {
		return nil, err
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: build request %s", pageURL)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: get %s", pageURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("fetcher: get %s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse %s", pageURL)
	}

	t := parseTenderDocument(doc, pageURL, procurementID)
	if t.Title == "" {
		return nil, eris.Errorf("fetcher: no tender content found at %s", pageURL)
	}
	return t, nil
}

func parseTenderDocument(doc *goquery.Document, pageURL, procurementID string) *model.Tender {
	t := &model.Tender{
		ProcurementID: procurementID,
		Title:         text(doc, ".td-header-title"),
		Description:   text(doc, ".td-description-text"),
		DocumentURL:   pageURL,
		DiscoveredAt:  time.Now().UTC(),
	}

	var budgetRaw, cpvID string
	doc.Find(".td-meta-item").Each(func(_ int, item *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(item.Find(".td-meta-label").Text()))
		value := strings.TrimSpace(item.Find(".td-meta-value, .td-meta-value-mono").First().Text())
		if value == "" {
			return
		}
		switch label {
		case "organization":
			t.Organization = value
		case "value":
			budgetRaw = value
		case "cpv code":
			cpvID = value
		case "category":
			t.Category = value
		case "reference":
			t.ReferenceNr = value
		}
	})

	if deadline := text(doc, ".td-deadline-date"); deadline != "" {
		if parsed, err := time.Parse("2006-01-02", deadline); err == nil {
			t.Deadline = &parsed
		}
	}

	t.Budget = budgetRaw
	if cost := parseCost(budgetRaw); cost != nil {
		t.EstimatedCost = cost
	}
	if cpvID != "" {
		t.CPVCodes = []string{cpvID}
	}
	if t.ReferenceNr == "" {
		// Last path segment is {id}-{slug}; good enough as a reference.
		if u, err := url.Parse(pageURL); err == nil {
			segs := strings.Split(strings.Trim(u.Path, "/"), "/")
			t.ReferenceNr = segs[len(segs)-1]
		}
	}
	return t
}

func text(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

// parseCost extracts a numeric cost from a budget string like "EUR 1,234,567".
func parseCost(value string) *float64 {
	if value == "" {
		return nil
	}
	digits := costDigitsExpr.ReplaceAllString(strings.ReplaceAll(value, ",", ""), "")
	cost, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return nil
	}
	return &cost
}
