package pipeline

import (
	"context"
	"testing"
	"time"

	"quarter_metrics/pkg/core/indicators"
	"quarter_metrics/pkg/core/source"
	"quarter_metrics/pkg/models"
)

func fp(v float64) *float64 { return &v }

func goodQuarters() []models.QuarterRecord {
	return []models.QuarterRecord{
		{
			NativePeriodLabel: "Sep '25",
			RawIndicators: models.IndicatorMap{
				indicators.TotalIncomeFromOperations: fp(500),
				indicators.NetProfit:                 fp(40),
			},
		},
	}
}

// placeholderQuarters parse fine but fail the meaningful-data gate.
func placeholderQuarters() []models.QuarterRecord {
	return []models.QuarterRecord{
		{
			NativePeriodLabel: "Sep '25",
			RawIndicators: models.IndicatorMap{
				indicators.NetSales:  nil,
				indicators.NetProfit: nil,
			},
		},
	}
}

// stubSource scripts one adapter's behavior and counts its calls.
type stubSource struct {
	name       models.DataSource
	records    []models.QuarterRecord
	errs       []error // consumed one per call; nil entry means success
	calls      int
	configured *bool // nil means always configured
	hintURL    string
}

func (s *stubSource) Name() models.DataSource { return s.name }

func (s *stubSource) Fetch(ctx context.Context, company string, quarterCount int) ([]models.QuarterRecord, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return s.records, nil
}

func (s *stubSource) Configured(company string) bool {
	if s.configured == nil {
		return true
	}
	return *s.configured
}

func (s *stubSource) ResolveSourceURL(ctx context.Context, company string) (string, error) {
	return s.hintURL, nil
}

type stubFetcher struct {
	records []models.QuarterRecord
	urls    []string
}

func (f *stubFetcher) FetchURL(ctx context.Context, url string, quarterCount int) ([]models.QuarterRecord, error) {
	f.urls = append(f.urls, url)
	return f.records, nil
}

func netErr(src models.DataSource) error {
	return source.NewFetchError(source.NetworkFailure, src, context.DeadlineExceeded)
}

func parseErr(src models.DataSource) error {
	return source.NewFetchError(source.ParseFailure, src, context.Canceled)
}

// newTestOrchestrator wires stubs with sleeping disabled and returns the
// recorded sleep durations.
func newTestOrchestrator(chain []source.Source, hint source.URLFetcher, opts Options) (*Orchestrator, *[]time.Duration) {
	o := New(chain, hint, nil, opts)
	var slept []time.Duration
	o.sleep = func(d time.Duration) { slept = append(slept, d) }
	return o, &slept
}

func TestRunFallbackOrdering(t *testing.T) {
	// Step 1 returns only placeholders, so step 2 must win and step 3 must
	// never be consulted.
	a := &stubSource{name: models.SourceResultsTable, records: placeholderQuarters()}
	b := &stubSource{name: models.SourceMarketsPage, records: goodQuarters()}
	c := &stubSource{name: models.SourceAIExtraction, records: goodQuarters()}

	o, _ := newTestOrchestrator([]source.Source{a, b, c}, nil, Options{CompanyDelay: -1})
	result := o.Run(context.Background(), []string{"ACME Ltd"})

	if !result.Success || len(result.Results) != 1 {
		t.Fatalf("run failed: success=%v results=%d errors=%v", result.Success, len(result.Results), result.Errors)
	}
	if got := result.Results[0].DataSourceUsed; got != models.SourceMarketsPage {
		t.Errorf("data source used = %s, want %s", got, models.SourceMarketsPage)
	}
	if c.calls != 0 {
		t.Errorf("third adapter called %d times after second succeeded", c.calls)
	}
	if got := result.Results[0].Quarters[0].CanonicalPeriod; got != "Q2'26" {
		t.Errorf("canonical period = %q, want Q2'26", got)
	}
}

func TestRunSkipsUnconfiguredStep(t *testing.T) {
	off := false
	a := &stubSource{name: models.SourceResultsTable, errs: []error{parseErr(models.SourceResultsTable)}}
	b := &stubSource{name: models.SourceMarketsPage, configured: &off}
	c := &stubSource{name: models.SourceAIExtraction, records: goodQuarters()}

	o, _ := newTestOrchestrator([]source.Source{a, b, c}, nil, Options{CompanyDelay: -1})
	result := o.Run(context.Background(), []string{"ACME Ltd"})

	if len(result.Results) != 1 {
		t.Fatalf("expected success via third adapter, got errors %v", result.Errors)
	}
	if b.calls != 0 {
		t.Errorf("unconfigured adapter fetched %d times, want 0", b.calls)
	}
	if got := result.Results[0].DataSourceUsed; got != models.SourceAIExtraction {
		t.Errorf("data source used = %s, want %s", got, models.SourceAIExtraction)
	}
}

func TestRunRetriesOnlyNetworkFailures(t *testing.T) {
	// Two network failures then success: two backoff sleeps, doubling.
	a := &stubSource{
		name:    models.SourceResultsTable,
		records: goodQuarters(),
		errs:    []error{netErr(models.SourceResultsTable), netErr(models.SourceResultsTable), nil},
	}
	base := 100 * time.Millisecond
	o, slept := newTestOrchestrator([]source.Source{a}, nil, Options{
		RetryAttempts:  3,
		RetryBaseDelay: base,
		CompanyDelay:   -1,
	})
	result := o.Run(context.Background(), []string{"ACME Ltd"})

	if len(result.Results) != 1 {
		t.Fatalf("expected success on third attempt, got errors %v", result.Errors)
	}
	if a.calls != 3 {
		t.Errorf("fetch calls = %d, want 3", a.calls)
	}
	if len(*slept) != 2 || (*slept)[0] != base || (*slept)[1] != 2*base {
		t.Errorf("backoff sleeps = %v, want [%s %s]", *slept, base, 2*base)
	}

	// Parse failures advance the chain immediately, no retry.
	b := &stubSource{
		name: models.SourceResultsTable,
		errs: []error{parseErr(models.SourceResultsTable), nil},
	}
	o, slept = newTestOrchestrator([]source.Source{b}, nil, Options{
		RetryAttempts:  3,
		RetryBaseDelay: base,
		CompanyDelay:   -1,
	})
	o.Run(context.Background(), []string{"ACME Ltd"})
	if b.calls != 1 {
		t.Errorf("parse failure retried: %d calls", b.calls)
	}
	if len(*slept) != 0 {
		t.Errorf("parse failure slept: %v", *slept)
	}
}

func TestRunFailureIsolation(t *testing.T) {
	// The middle company exhausts every source; its neighbors still finish.
	chain := []source.Source{sourceFunc(func(ctx context.Context, company string, n int) ([]models.QuarterRecord, error) {
		if company == "Broken Ltd" {
			return nil, parseErr(models.SourceResultsTable)
		}
		return goodQuarters(), nil
	})}

	o, _ := newTestOrchestrator(chain, nil, Options{CompanyDelay: -1})
	result := o.Run(context.Background(), []string{"First Ltd", "Broken Ltd", "Third Ltd"})

	if len(result.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(result.Results))
	}
	if len(result.Errors) != 1 || result.Errors[0].Company != "Broken Ltd" {
		t.Fatalf("errors = %v, want one for Broken Ltd", result.Errors)
	}
	if !result.Success {
		t.Error("run with partial success reported Success=false")
	}
	if result.Errors[0].Error == "" || result.Errors[0].Timestamp.IsZero() {
		t.Error("company error missing text or timestamp")
	}
}

// sourceFunc adapts a bare fetch function to the Source interface.
type sourceFunc func(ctx context.Context, company string, quarterCount int) ([]models.QuarterRecord, error)

func (f sourceFunc) Name() models.DataSource { return models.SourceResultsTable }
func (f sourceFunc) Fetch(ctx context.Context, company string, quarterCount int) ([]models.QuarterRecord, error) {
	return f(ctx, company, quarterCount)
}

func TestRunResolvedURLLastResort(t *testing.T) {
	// Every chain step fails; the final step resolves a URL and the hint
	// fetcher supplies the winning table.
	a := &stubSource{name: models.SourceResultsTable, errs: []error{parseErr(models.SourceResultsTable)}}
	c := &stubSource{
		name:    models.SourceAIExtraction,
		errs:    []error{parseErr(models.SourceAIExtraction)},
		hintURL: "https://example.com/results/acme",
	}
	hint := &stubFetcher{records: goodQuarters()}

	o, _ := newTestOrchestrator([]source.Source{a, c}, hint, Options{CompanyDelay: -1})
	result := o.Run(context.Background(), []string{"ACME Ltd"})

	if len(result.Results) != 1 {
		t.Fatalf("expected resolved-URL rescue, got errors %v", result.Errors)
	}
	if len(hint.urls) != 1 || hint.urls[0] != "https://example.com/results/acme" {
		t.Errorf("hint fetcher saw urls %v", hint.urls)
	}
}

func TestRunAllSourcesExhausted(t *testing.T) {
	a := &stubSource{name: models.SourceResultsTable, errs: []error{parseErr(models.SourceResultsTable)}}

	o, _ := newTestOrchestrator([]source.Source{a}, nil, Options{CompanyDelay: -1})
	result := o.Run(context.Background(), []string{"ACME Ltd"})

	if result.Success || len(result.Errors) != 1 {
		t.Fatalf("expected a wholly failed run, got %+v", result)
	}
}

func TestRunTestModeLimitsToFirstCompany(t *testing.T) {
	a := &stubSource{name: models.SourceResultsTable, records: goodQuarters()}

	o, _ := newTestOrchestrator([]source.Source{a}, nil, Options{TestMode: true, CompanyDelay: -1})
	result := o.Run(context.Background(), []string{"First Ltd", "Second Ltd"})

	if len(result.Results) != 1 || result.Results[0].CompanyName != "First Ltd" {
		t.Fatalf("test mode processed %v", result.Results)
	}
	if a.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", a.calls)
	}
}

func TestRunQuarterSelection(t *testing.T) {
	records := []models.QuarterRecord{
		{NativePeriodLabel: "Sep '25", RawIndicators: models.IndicatorMap{indicators.NetSales: fp(500)}},
		{NativePeriodLabel: "Jun '25", RawIndicators: models.IndicatorMap{indicators.NetSales: fp(480)}},
		{NativePeriodLabel: "Mar '25", RawIndicators: models.IndicatorMap{indicators.NetSales: fp(470)}},
	}
	a := &stubSource{name: models.SourceResultsTable, records: records}

	// Only Q2 of FY26 (Sep '25) survives the selection.
	o, _ := newTestOrchestrator([]source.Source{a}, nil, Options{
		Quarters:     []int{2},
		FiscalYears:  []int{26},
		CompanyDelay: -1,
	})
	result := o.Run(context.Background(), []string{"ACME Ltd"})

	quarters := result.Results[0].Quarters
	if len(quarters) != 1 || quarters[0].CanonicalPeriod != "Q2'26" {
		t.Fatalf("selection kept %+v, want only Q2'26", quarters)
	}
	if quarters[0].Derived == nil || quarters[0].Derived.Revenue == nil || *quarters[0].Derived.Revenue != 500 {
		t.Error("derived metrics missing on selected quarter")
	}
}

func TestRunInterCompanyDelay(t *testing.T) {
	a := &stubSource{name: models.SourceResultsTable, records: goodQuarters()}

	delay := 2 * time.Second
	o, slept := newTestOrchestrator([]source.Source{a}, nil, Options{CompanyDelay: delay})
	o.Run(context.Background(), []string{"First Ltd", "Second Ltd", "Third Ltd"})

	// One pause before each company after the first.
	if len(*slept) != 2 {
		t.Fatalf("sleeps = %v, want exactly 2 company pauses", *slept)
	}
	for _, d := range *slept {
		if d != delay {
			t.Errorf("pause = %s, want %s", d, delay)
		}
	}
}

func TestRunPublishesProgress(t *testing.T) {
	a := &stubSource{name: models.SourceResultsTable, records: goodQuarters()}
	sink := &MemorySink{}

	o := New([]source.Source{a}, nil, sink, Options{CompanyDelay: -1})
	o.sleep = func(time.Duration) {}
	o.Run(context.Background(), []string{"ACME Ltd"})

	progress, logs := sink.Snapshot()
	if len(progress) != 1 {
		t.Fatalf("progress entries = %d, want 1", len(progress))
	}
	p := progress[0]
	if p.Status != models.StatusCompleted || p.Percent != 100 {
		t.Errorf("final progress = %+v, want completed at 100%%", p)
	}
	if p.ActiveSource != models.SourceResultsTable {
		t.Errorf("active source = %s", p.ActiveSource)
	}
	if len(logs) == 0 || len(p.LogLines) == 0 {
		t.Error("no log lines published")
	}
	if sink.Updates() == 0 {
		t.Error("sink never updated")
	}
}

func TestRunCancelledContext(t *testing.T) {
	a := &stubSource{name: models.SourceResultsTable, records: goodQuarters()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o, _ := newTestOrchestrator([]source.Source{a}, nil, Options{CompanyDelay: -1})
	result := o.Run(ctx, []string{"First Ltd", "Second Ltd"})

	if a.calls != 0 {
		t.Errorf("cancelled run still fetched %d times", a.calls)
	}
	if result.Success {
		t.Error("cancelled run reported success")
	}
}
