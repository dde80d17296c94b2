package source

import (
	"context"
	"strings"
	"testing"

	"quarter_metrics/pkg/core/indicators"
	"quarter_metrics/pkg/core/llm"
)

type cannedProvider struct {
	response string
	usage    llm.Usage
	err      error
	prompts  []string
}

func (p *cannedProvider) Complete(_ context.Context, messages []llm.Message) (string, llm.Usage, error) {
	for _, m := range messages {
		if m.Role == "user" {
			p.prompts = append(p.prompts, m.Content)
		}
	}
	return p.response, p.usage, p.err
}

func TestAIFetchParsesFencedTruncatedJSON(t *testing.T) {
	// Prose around the payload, a code fence, and a response cut off by a
	// token limit: the bracket-balancing repair must recover both
	// quarters and drop the incomplete trailing pair.
	provider := &cannedProvider{response: "Sure - here are the figures:\n```json\n" +
		`{"company": "ACME", "quarters": [
  {"period": "Q2'26", "indicators": {"Total Income From Operations": 22697, "Net Profit": 3470, "Employees Cost": null}},
  {"period": "Q1'26", "indicators": {"Total Income From Operations": 21050, "Interest": 4`}

	src := &AIExtractionSource{Provider: provider, Periods: []string{"Q2'26", "Q1'26"}}
	records, err := src.Fetch(context.Background(), "ACME", 4)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d quarters, want 2", len(records))
	}
	if records[0].NativePeriodLabel != "Q2'26" {
		t.Errorf("newest-first ordering broken: %q", records[0].NativePeriodLabel)
	}
	if v := records[0].RawIndicators[indicators.TotalIncomeFromOperations]; v == nil || *v != 22697 {
		t.Errorf("income = %v", v)
	}
	// Explicit null stays an unavailable marker.
	if v, ok := records[0].RawIndicators[indicators.EmployeesCost]; !ok || v != nil {
		t.Errorf("null indicator not preserved as placeholder: %v %v", v, ok)
	}
	if !HasMeaningfulData(records) {
		t.Error("payload should pass the meaningful-data predicate")
	}

	// The request must name the exact canonical quarters.
	if len(provider.prompts) == 0 || !strings.Contains(provider.prompts[0], "Q2'26") ||
		!strings.Contains(provider.prompts[0], "Q1'26") {
		t.Errorf("extraction prompt does not name requested quarters: %q", provider.prompts)
	}
}

func TestAIFetchParseFailure(t *testing.T) {
	provider := &cannedProvider{response: "I could not locate results for this company."}
	src := &AIExtractionSource{Provider: provider, Periods: []string{"Q2'26"}}

	_, err := src.Fetch(context.Background(), "ACME", 4)
	if KindOf(err) != ParseFailure {
		t.Errorf("kind = %v, want parse_failure", KindOf(err))
	}
	if Retryable(err) {
		t.Error("parse failures must never retry locally")
	}
}

func TestResolveSourceURL(t *testing.T) {
	src := &AIExtractionSource{Provider: &cannedProvider{response: `{"url": "https://markets.example.com/acme/results"}`}}
	url, err := src.ResolveSourceURL(context.Background(), "ACME")
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://markets.example.com/acme/results" {
		t.Errorf("url = %q", url)
	}

	src = &AIExtractionSource{Provider: &cannedProvider{response: `{"url": null}`}}
	url, err = src.ResolveSourceURL(context.Background(), "ACME")
	if err != nil || url != "" {
		t.Errorf("unknown URL should yield empty string without error, got %q %v", url, err)
	}
}
