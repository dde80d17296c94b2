// Package source implements the three data-source adapters tried by the
// fallback orchestrator, behind one common fetch contract.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"quarter_metrics/pkg/core/fiscal"
	"quarter_metrics/pkg/core/indicators"
	"quarter_metrics/pkg/models"
)

// ErrorKind classifies adapter failures for the orchestrator's step-advance
// and retry decisions.
type ErrorKind string

const (
	// NotConfigured: no source URL exists for this company/step. Fail fast,
	// no network call.
	NotConfigured ErrorKind = "not_configured"
	// NetworkFailure: timeout, connection reset, bad gateway. Retryable
	// within the same adapter.
	NetworkFailure ErrorKind = "network_failure"
	// ParseFailure: document or payload malformed. Never retried locally.
	ParseFailure ErrorKind = "parse_failure"
	// NoMeaningfulData: the adapter succeeded technically but its output
	// failed the meaningful-data predicate.
	NoMeaningfulData ErrorKind = "no_meaningful_data"
	// AllSourcesExhausted: terminal, company-level.
	AllSourcesExhausted ErrorKind = "all_sources_exhausted"
)

// FetchError is the tagged failure every adapter returns.
type FetchError struct {
	Kind   ErrorKind
	Source models.DataSource
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %v", e.Source, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s [%s]", e.Source, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError wraps err with a kind and the adapter it came from.
func NewFetchError(kind ErrorKind, src models.DataSource, err error) *FetchError {
	return &FetchError{Kind: kind, Source: src, Err: err}
}

// KindOf extracts the ErrorKind from an error chain. Unclassified errors
// count as parse failures: they escalate without local retry.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ParseFailure
}

// Retryable reports whether the failure may be retried within the same
// adapter attempt loop.
func Retryable(err error) bool {
	return KindOf(err) == NetworkFailure
}

// Source is the common contract of every adapter in the fallback chain.
type Source interface {
	Name() models.DataSource
	// Fetch returns raw per-quarter indicator maps for a company, newest
	// periods first, capped at quarterCount.
	Fetch(ctx context.Context, company string, quarterCount int) ([]models.QuarterRecord, error)
}

// URLFetcher is the extra capability of table-parsing adapters: extract
// quarters from an arbitrary results-page URL. The orchestrator uses it
// with the AI adapter's resolved-URL hint.
type URLFetcher interface {
	FetchURL(ctx context.Context, url string, quarterCount int) ([]models.QuarterRecord, error)
}

// Gated is implemented by adapters that can be unavailable for a company
// altogether, letting the orchestrator skip the step instead of failing it.
type Gated interface {
	Configured(company string) bool
}

// URLResolver is the AI adapter's secondary capability: look up a results
// page URL for a company name.
type URLResolver interface {
	ResolveSourceURL(ctx context.Context, company string) (string, error)
}

// HasMeaningfulData is the single acceptance gate for adapter output: at
// least one quarter must carry a non-placeholder value under any recognized
// revenue or net-profit key. It deliberately does not require all
// indicators to be present.
func HasMeaningfulData(quarters []models.QuarterRecord) bool {
	for _, q := range quarters {
		if q.RawIndicators.First(indicators.RevenueKeys...) != nil {
			return true
		}
		if q.RawIndicators.First(indicators.NetProfitKeys...) != nil {
			return true
		}
	}
	return false
}

// LatestQuarters sorts records newest-first by canonical period and caps
// the slice at n. Records whose labels never parsed keep their relative
// order at the tail.
func LatestQuarters(records []models.QuarterRecord, n int) []models.QuarterRecord {
	sorted := make([]models.QuarterRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		qi, yi, oki := fiscal.ParseCanonical(fiscal.ToCanonicalPeriod(sorted[i].NativePeriodLabel))
		qj, yj, okj := fiscal.ParseCanonical(fiscal.ToCanonicalPeriod(sorted[j].NativePeriodLabel))
		if oki != okj {
			return oki
		}
		if yi != yj {
			return yi > yj
		}
		return qi > qj
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
