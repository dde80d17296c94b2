package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"quarter_metrics/pkg/models"
)

// MarketsPageSource is the secondary adapter: an independently structured
// results page that renders its tables with JavaScript, reachable only via
// a per-company direct URL from configuration.
type MarketsPageSource struct {
	Renderer Renderer
	// URLs maps company identifiers to direct results-page URLs. A company
	// without an entry makes this adapter fail fast with NotConfigured -
	// the orchestrator skips the step without any network call.
	URLs map[string]string
}

var (
	_ Source = (*MarketsPageSource)(nil)
	_ Gated  = (*MarketsPageSource)(nil)
)

func (s *MarketsPageSource) Name() models.DataSource { return models.SourceMarketsPage }

// Configured reports whether a direct URL exists for the company.
func (s *MarketsPageSource) Configured(company string) bool {
	return s.directURL(company) != ""
}

// Fetch renders the company's configured page and extracts its quarterly
// table.
func (s *MarketsPageSource) Fetch(ctx context.Context, company string, quarterCount int) ([]models.QuarterRecord, error) {
	pageURL := s.directURL(company)
	if pageURL == "" {
		return nil, NewFetchError(NotConfigured, s.Name(), fmt.Errorf("no direct URL configured for %q", company))
	}

	html, err := s.Renderer.Render(ctx, pageURL)
	if err != nil {
		return nil, NewFetchError(NetworkFailure, s.Name(), err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, NewFetchError(ParseFailure, s.Name(), err)
	}
	records, err := ExtractQuarterTable(doc)
	if err != nil {
		return nil, NewFetchError(ParseFailure, s.Name(), err)
	}
	return LatestQuarters(records, quarterCount), nil
}

func (s *MarketsPageSource) directURL(company string) string {
	if s.URLs == nil {
		return ""
	}
	if u, ok := s.URLs[company]; ok {
		return u
	}
	// Config keys are matched case-insensitively; company lists come from
	// user input.
	lower := strings.ToLower(strings.TrimSpace(company))
	for k, u := range s.URLs {
		if strings.ToLower(strings.TrimSpace(k)) == lower {
			return u
		}
	}
	return ""
}
