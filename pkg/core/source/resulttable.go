package source

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"quarter_metrics/pkg/core/indicators"
	"quarter_metrics/pkg/models"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// httpDoer lets tests inject a transport.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ResultsTableSource is the primary adapter: a plain HTTP GET against a
// known-good results page followed by structured-table extraction.
type ResultsTableSource struct {
	// URLTemplate receives the escaped company identifier, e.g.
	// "https://example.com/company/%s/consolidated/".
	URLTemplate string
	Client      httpDoer
	UserAgent   string
}

var (
	_ Source     = (*ResultsTableSource)(nil)
	_ URLFetcher = (*ResultsTableSource)(nil)
)

func (s *ResultsTableSource) Name() models.DataSource { return models.SourceResultsTable }

// Fetch resolves the company's results-page URL from the template and
// extracts its quarterly table.
func (s *ResultsTableSource) Fetch(ctx context.Context, company string, quarterCount int) ([]models.QuarterRecord, error) {
	if s.URLTemplate == "" {
		return nil, NewFetchError(NotConfigured, s.Name(), fmt.Errorf("no results page URL template"))
	}
	pageURL := fmt.Sprintf(s.URLTemplate, url.PathEscape(strings.TrimSpace(company)))
	return s.FetchURL(ctx, pageURL, quarterCount)
}

// FetchURL extracts the quarterly results table from an arbitrary page.
// Also used by the orchestrator with AI-resolved URL hints.
func (s *ResultsTableSource) FetchURL(ctx context.Context, pageURL string, quarterCount int) ([]models.QuarterRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, NewFetchError(ParseFailure, s.Name(), err)
	}
	ua := s.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, NewFetchError(NetworkFailure, s.Name(), err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		kind := ParseFailure
		if res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests {
			kind = NetworkFailure
		}
		return nil, NewFetchError(kind, s.Name(), fmt.Errorf("results page returned status %d", res.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, NewFetchError(ParseFailure, s.Name(), err)
	}
	records, err := ExtractQuarterTable(doc)
	if err != nil {
		return nil, NewFetchError(ParseFailure, s.Name(), err)
	}
	return LatestQuarters(records, quarterCount), nil
}

// ExtractQuarterTable locates the quarterly results table in a document and
// returns one raw QuarterRecord per period column. The table is detected by
// the presence of known indicator row labels, never by position.
func ExtractQuarterTable(doc *goquery.Document) ([]models.QuarterRecord, error) {
	grid := findQuarterGrid(doc)
	if grid == nil {
		return nil, fmt.Errorf("no table with recognizable quarterly indicator rows")
	}

	header := grid[0]
	body := grid[1:]

	// Column 1 may be a trend/sparkline column on some page variants.
	// Probe it: if any row's first candidate cell parses as a plausible
	// number it is real data, otherwise skip it. Known fragility - the
	// probe is the only signal the page variants give us.
	offset := 1
	if !columnLooksNumeric(body, 1) && columnLooksNumeric(body, 2) {
		offset = 2
	}

	var records []models.QuarterRecord
	for col := offset; col < len(header); col++ {
		label := strings.TrimSpace(header[col])
		if label == "" {
			continue
		}
		rec := models.QuarterRecord{
			NativePeriodLabel: label,
			RawIndicators:     models.IndicatorMap{},
		}
		for _, row := range body {
			if len(row) == 0 || col >= len(row) {
				continue
			}
			name := indicators.Normalize(row[0])
			if name == "" {
				continue
			}
			value, ok := parseCell(row[col])
			if !ok {
				continue
			}
			rec.RawIndicators[name] = value
		}
		if len(rec.RawIndicators) > 0 {
			records = append(records, rec)
		}
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("quarterly table matched but yielded no period columns")
	}
	log.Printf("[ResultsTable] extracted %d quarter columns, %d indicator rows", len(records), len(body))
	return records, nil
}

// findQuarterGrid scans every table and returns the cell grid of the one
// with the most recognized indicator row labels (at least two).
func findQuarterGrid(doc *goquery.Document) [][]string {
	var best [][]string
	bestScore := 0

	doc.Find("table").Each(func(i int, table *goquery.Selection) {
		var grid [][]string
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			var cells []string
			row.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, strings.TrimSpace(cell.Text()))
			})
			if len(cells) > 0 {
				grid = append(grid, cells)
			}
		})
		if len(grid) < 2 {
			return
		}

		score := 0
		for _, row := range grid[1:] {
			if indicators.Known(row[0]) {
				score++
			}
		}
		if score >= 2 && score > bestScore {
			best = grid
			bestScore = score
		}
	})

	return best
}

// columnLooksNumeric probes whether any body cell in the column parses as
// a plausible number.
func columnLooksNumeric(body [][]string, col int) bool {
	for _, row := range body {
		if col >= len(row) {
			continue
		}
		if v, ok := parseCell(row[col]); ok && v != nil {
			return true
		}
	}
	return false
}

// parseCell converts one table cell. It returns (nil, true) for explicit
// "not available" placeholders, (value, true) for numbers - tolerating
// thousands separators, parenthesized negatives, and trailing percent
// signs - and (nil, false) for anything else.
func parseCell(text string) (*float64, bool) {
	t := strings.TrimSpace(text)
	switch strings.ToLower(t) {
	case "", "-", "--", "na", "n.a.", "n/a", "nil", "not declared", "not available":
		return nil, true
	}

	neg := false
	if strings.HasPrefix(t, "(") && strings.HasSuffix(t, ")") {
		neg = true
		t = t[1 : len(t)-1]
	}
	t = strings.ReplaceAll(t, ",", "")
	t = strings.TrimSuffix(t, "%")
	t = strings.TrimSpace(strings.TrimPrefix(t, "₹"))

	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return nil, false
	}
	if neg {
		v = -v
	}
	return &v, true
}
