// Package models defines the shared domain records for the quarterly
// results acquisition pipeline.
package models

import "time"

// IndicatorMap maps canonical indicator names to reported numeric values.
// A key holding nil records an explicit "not available" placeholder from the
// source; an absent key means the source never reported that line item.
// After normalization the map never contains raw source-specific labels.
type IndicatorMap map[string]*float64

// First returns the value of the first key present with a non-nil value,
// honoring the given preference order.
func (m IndicatorMap) First(keys ...string) *float64 {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// QuarterRecord is one quarter of raw and derived figures for a company.
// It is created raw by a source adapter, enriched by the period mapper and
// the calculator, and immutable thereafter.
type QuarterRecord struct {
	NativePeriodLabel string       `json:"native_period_label"`
	CanonicalPeriod   string       `json:"canonical_period"` // e.g. "Q2'26"
	RawIndicators     IndicatorMap `json:"raw_indicators"`
	Derived           *Metrics     `json:"derived,omitempty"`
	Issues            []ValidationIssue `json:"issues,omitempty"`
}

// Metrics holds the fixed set of derived metrics. Every field is either a
// finite number or nil (absent) — never NaN.
type Metrics struct {
	Revenue      *float64 `json:"revenue,omitempty"`
	Contribution *float64 `json:"contribution,omitempty"`
	OpEBITDA     *float64 `json:"op_ebitda,omitempty"`
	OpEBITDAPct  *float64 `json:"op_ebitda_pct,omitempty"`
	OpEBIT       *float64 `json:"op_ebit,omitempty"`
	OpEBITPct    *float64 `json:"op_ebit_pct,omitempty"`
	OpPBT        *float64 `json:"op_pbt,omitempty"`
	PBT          *float64 `json:"pbt,omitempty"`
}

// Severity classifies a ValidationIssue.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ValidationIssue is informational metadata attached to a calculated
// quarter. It never blocks output.
type ValidationIssue struct {
	Metric   string   `json:"metric"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// DataSource identifies which adapter in the fallback chain supplied the
// winning data for a company.
type DataSource string

const (
	SourceResultsTable DataSource = "results_table"
	SourceMarketsPage  DataSource = "markets_page"
	SourceAIExtraction DataSource = "ai_extraction"
)

// CompanyResult is the sole artifact handed to downstream consumers. It is
// only constructed when at least one adapter returned meaningful data.
type CompanyResult struct {
	CompanyName    string          `json:"company_name"`
	DataSourceUsed DataSource      `json:"data_source_used"`
	Quarters       []QuarterRecord `json:"quarters"`
}

// CompanyStatus is the per-company run state.
type CompanyStatus string

const (
	StatusPending    CompanyStatus = "pending"
	StatusProcessing CompanyStatus = "processing"
	StatusCompleted  CompanyStatus = "completed"
	StatusFailed     CompanyStatus = "failed"
)

// CompanyProgress is the mutable per-company run state observed by the
// surrounding job layer. The orchestrator is its single writer.
type CompanyProgress struct {
	Company          string        `json:"company"`
	Status           CompanyStatus `json:"status"`
	Stage            string        `json:"stage"`
	ActiveSource     DataSource    `json:"active_source,omitempty"`
	FallbackStep     int           `json:"fallback_step"`
	Percent          int           `json:"percent"`
	StartedAt        time.Time     `json:"started_at,omitempty"`
	ElapsedSeconds   float64       `json:"elapsed_seconds"`
	EstimatedSeconds float64       `json:"estimated_seconds"`
	LogLines         []string      `json:"log_lines,omitempty"`
}

// CompanyError records a company whose sources were all exhausted.
type CompanyError struct {
	Company   string    `json:"company"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// RunResult is the outcome of one pipeline run. Success is true iff at
// least one company completed.
type RunResult struct {
	RunID   string          `json:"run_id"`
	Results []CompanyResult `json:"results"`
	Errors  []CompanyError  `json:"errors"`
	Success bool            `json:"success"`
}
