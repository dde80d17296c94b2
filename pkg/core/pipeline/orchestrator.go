// Package pipeline drives the three-tier source fallback chain per company
// and assembles the run result.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quarter_metrics/pkg/core/fiscal"
	"quarter_metrics/pkg/core/metrics"
	"quarter_metrics/pkg/core/source"
	"quarter_metrics/pkg/models"
)

// Options tunes one pipeline run.
type Options struct {
	Quarters     []int // requested quarter numbers, subset of 1..4
	FiscalYears  []int // requested fiscal years (two- or four-digit)
	QuarterCount int   // trailing quarters to request from each adapter
	TestMode     bool  // limit processing to the first company

	RetryAttempts  int           // per adapter call, default 3
	RetryBaseDelay time.Duration // doubles each attempt, default 1.5s
	CompanyDelay   time.Duration // pause between companies, default 2s
}

// Orchestrator runs companies strictly sequentially through the fallback
// chain. It is the single writer of the progress and log state.
type Orchestrator struct {
	chain       []source.Source
	hintFetcher source.URLFetcher
	sink        ProgressSink
	opts        Options

	progress []models.CompanyProgress
	logLines []string

	// injected for tests
	sleep func(time.Duration)
	now   func() time.Time
}

// New builds an orchestrator. chain is tried strictly in order; hintFetcher
// parses AI-resolved URL hints on the final step and may be nil.
func New(chain []source.Source, hintFetcher source.URLFetcher, sink ProgressSink, opts Options) *Orchestrator {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 1500 * time.Millisecond
	}
	if opts.CompanyDelay < 0 {
		opts.CompanyDelay = 0
	} else if opts.CompanyDelay == 0 {
		opts.CompanyDelay = 2 * time.Second
	}
	return &Orchestrator{
		chain:       chain,
		hintFetcher: hintFetcher,
		sink:        sink,
		opts:        opts,
		sleep:       time.Sleep,
		now:         time.Now,
	}
}

// Run processes the companies one at a time and always completes: failed
// companies are logged and recorded, never fatal to the run.
func (o *Orchestrator) Run(ctx context.Context, companies []string) *models.RunResult {
	if o.opts.TestMode && len(companies) > 1 {
		companies = companies[:1]
	}

	result := &models.RunResult{RunID: uuid.NewString()}
	o.progress = make([]models.CompanyProgress, len(companies))
	for i, c := range companies {
		o.progress[i] = models.CompanyProgress{Company: c, Status: models.StatusPending}
	}
	o.logf(-1, "run %s started for %d companies", result.RunID, len(companies))

	for i, company := range companies {
		if err := ctx.Err(); err != nil {
			// The smallest cancellable unit is a whole company.
			o.logf(-1, "run cancelled before %s: %v", company, err)
			break
		}
		if i > 0 && o.opts.CompanyDelay > 0 {
			// Fixed pause between companies to respect third-party rate
			// limits.
			o.sleep(o.opts.CompanyDelay)
		}

		res, err := o.processCompany(ctx, i, company)
		if err != nil {
			o.progress[i].Status = models.StatusFailed
			o.progress[i].Stage = err.Error()
			o.logf(i, "failed: %v", err)
			result.Errors = append(result.Errors, models.CompanyError{
				Company:   company,
				Error:     err.Error(),
				Timestamp: o.now(),
			})
			continue
		}
		result.Results = append(result.Results, *res)
	}

	result.Success = len(result.Results) > 0
	o.logf(-1, "run %s finished: %d succeeded, %d failed", result.RunID, len(result.Results), len(result.Errors))
	return result
}

// processCompany walks the fallback chain: first adapter whose output
// passes the meaningful-data predicate wins, no merging across sources.
func (o *Orchestrator) processCompany(ctx context.Context, idx int, company string) (*models.CompanyResult, error) {
	o.progress[idx].Status = models.StatusProcessing
	o.progress[idx].StartedAt = o.now()
	o.logf(idx, "processing started")

	var lastErr error
	for i, src := range o.chain {
		step := i + 1
		if gated, ok := src.(source.Gated); ok && !gated.Configured(company) {
			// Skipped, not failed: no network call is ever attempted.
			o.logf(idx, "step %d (%s): not configured, skipping", step, src.Name())
			continue
		}

		o.setStage(idx, step, src.Name(), fmt.Sprintf("fetching from %s", src.Name()), 5+30*(step-1))
		records, err := o.fetchWithRetry(ctx, idx, src, company)
		if err == nil && !source.HasMeaningfulData(records) {
			err = source.NewFetchError(source.NoMeaningfulData, src.Name(),
				fmt.Errorf("no revenue or net profit figure in any quarter"))
		}
		if err == nil {
			return o.complete(idx, company, src.Name(), records), nil
		}
		lastErr = err
		o.logf(idx, "step %d (%s) failed: %v", step, src.Name(), err)

		// Last resort on the final step: ask the AI adapter for a results
		// page URL and run the table parser against it.
		if step == len(o.chain) {
			if res := o.tryResolvedURL(ctx, idx, src, company); res != nil {
				return res, nil
			}
		}
	}

	return nil, source.NewFetchError(source.AllSourcesExhausted, "", lastErr)
}

func (o *Orchestrator) tryResolvedURL(ctx context.Context, idx int, src source.Source, company string) *models.CompanyResult {
	resolver, ok := src.(source.URLResolver)
	if !ok || o.hintFetcher == nil {
		return nil
	}
	url, err := resolver.ResolveSourceURL(ctx, company)
	if err != nil || url == "" {
		return nil
	}
	o.logf(idx, "trying resolved results page %s", url)
	records, err := o.hintFetcher.FetchURL(ctx, url, o.opts.QuarterCount)
	if err != nil || !source.HasMeaningfulData(records) {
		o.logf(idx, "resolved page yielded nothing usable")
		return nil
	}
	return o.complete(idx, company, src.Name(), records)
}

// fetchWithRetry retries a single adapter with exponential backoff, but
// only for network failures; parse and predicate failures escalate
// immediately to the step-advance.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, idx int, src source.Source, company string) ([]models.QuarterRecord, error) {
	var lastErr error
	for attempt := 1; attempt <= o.opts.RetryAttempts; attempt++ {
		records, err := src.Fetch(ctx, company, o.opts.QuarterCount)
		if err == nil {
			return records, nil
		}
		lastErr = err
		if !source.Retryable(err) || attempt == o.opts.RetryAttempts {
			break
		}
		delay := o.opts.RetryBaseDelay * (1 << (attempt - 1))
		o.logf(idx, "%s attempt %d/%d failed (%v), retrying in %s",
			src.Name(), attempt, o.opts.RetryAttempts, err, delay)
		o.sleep(delay)
	}
	return nil, lastErr
}

// complete maps periods, applies the requested selection, derives metrics,
// and marks the company done.
func (o *Orchestrator) complete(idx int, company string, src models.DataSource, records []models.QuarterRecord) *models.CompanyResult {
	var quarters []models.QuarterRecord
	for _, rec := range records {
		rec.CanonicalPeriod = fiscal.ToCanonicalPeriod(rec.NativePeriodLabel)
		if len(o.opts.Quarters) > 0 && len(o.opts.FiscalYears) > 0 &&
			!fiscal.IsSelected(rec.CanonicalPeriod, o.opts.Quarters, o.opts.FiscalYears) {
			continue
		}
		derived, issues := metrics.Calculate(rec.RawIndicators)
		rec.Derived = &derived
		rec.Issues = issues
		quarters = append(quarters, rec)
	}

	o.progress[idx].Status = models.StatusCompleted
	o.progress[idx].ActiveSource = src
	o.progress[idx].Percent = 100
	o.progress[idx].Stage = fmt.Sprintf("completed via %s (%d quarters)", src, len(quarters))
	o.touchTimers(idx)
	o.logf(idx, "completed via %s with %d quarters in selection", src, len(quarters))

	return &models.CompanyResult{
		CompanyName:    company,
		DataSourceUsed: src,
		Quarters:       quarters,
	}
}

func (o *Orchestrator) setStage(idx, step int, src models.DataSource, stage string, percent int) {
	o.progress[idx].FallbackStep = step
	o.progress[idx].ActiveSource = src
	o.progress[idx].Stage = stage
	o.progress[idx].Percent = percent
	o.touchTimers(idx)
	o.logf(idx, "step %d: %s", step, stage)
}

func (o *Orchestrator) touchTimers(idx int) {
	p := &o.progress[idx]
	if p.StartedAt.IsZero() {
		return
	}
	p.ElapsedSeconds = o.now().Sub(p.StartedAt).Seconds()
	if p.Percent > 0 {
		p.EstimatedSeconds = p.ElapsedSeconds * 100 / float64(p.Percent)
	}
}

// logf appends a timestamped line to the run log (and, for idx >= 0, to
// that company's progress) and pushes a snapshot to the sink.
func (o *Orchestrator) logf(idx int, format string, args ...interface{}) {
	line := fmt.Sprintf("%s %s", o.now().Format("15:04:05"), fmt.Sprintf(format, args...))
	if idx >= 0 {
		line = fmt.Sprintf("%s [%s] %s", o.now().Format("15:04:05"), o.progress[idx].Company,
			fmt.Sprintf(format, args...))
		o.progress[idx].LogLines = append(o.progress[idx].LogLines, line)
	}
	o.logLines = append(o.logLines, line)
	o.emit()
}

func (o *Orchestrator) emit() {
	if o.sink == nil {
		return
	}
	o.sink.Update(o.progress, o.logLines)
}
