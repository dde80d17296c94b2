package source

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	"quarter_metrics/pkg/core/indicators"
	"quarter_metrics/pkg/core/llm"
	"quarter_metrics/pkg/core/utils"
	"quarter_metrics/pkg/models"
)

const aiSystemPrompt = `You are a financial data assistant. You report quarterly standalone/consolidated results for listed companies from public filings.
You must answer with a single JSON object and nothing else, following this schema exactly:
{
  "company": "string",
  "quarters": [
    {
      "period": "string, the fiscal quarter label exactly as requested, e.g. Q2'26",
      "indicators": { "line item name": number or null }
    }
  ]
}
Rules:
1. Use null for any figure that was not declared. Never invent values.
2. Report figures in the company's filing unit (typically INR crores).
3. Include at minimum revenue and net profit line items when declared.`

// AIExtractionSource is the tertiary adapter: it asks a language-model
// completion service for the exact canonical fiscal quarters needed and
// parses a JSON payload out of the free-text answer.
type AIExtractionSource struct {
	Provider llm.Provider
	// Periods are the canonical quarter labels the extraction request
	// names, newest first.
	Periods []string
}

var (
	_ Source      = (*AIExtractionSource)(nil)
	_ URLResolver = (*AIExtractionSource)(nil)
)

// aiQuarter is the strongly-typed shape the loosely-typed model output is
// validated against after parse.
type aiQuarter struct {
	Period     string              `json:"period"`
	Indicators map[string]*float64 `json:"indicators"`
}

type aiPayload struct {
	Company  string      `json:"company"`
	Quarters []aiQuarter `json:"quarters"`
}

func (s *AIExtractionSource) Name() models.DataSource { return models.SourceAIExtraction }

// Fetch asks the model for the named quarters and converts the repaired,
// validated payload into raw QuarterRecords.
func (s *AIExtractionSource) Fetch(ctx context.Context, company string, quarterCount int) ([]models.QuarterRecord, error) {
	periods := s.Periods
	if quarterCount > 0 && len(periods) > quarterCount {
		periods = periods[:quarterCount]
	}
	if len(periods) == 0 {
		return nil, NewFetchError(NotConfigured, s.Name(), fmt.Errorf("no fiscal quarters requested"))
	}

	userPrompt := fmt.Sprintf(`Report the quarterly results of %q for exactly these fiscal quarters: %s.
Return ONLY the JSON object.`, company, strings.Join(periods, ", "))

	text, usage, err := s.Provider.Complete(ctx, []llm.Message{
		{Role: "system", Content: aiSystemPrompt},
		{Role: "user", Content: userPrompt},
	})
	if err != nil {
		return nil, NewFetchError(NetworkFailure, s.Name(), err)
	}
	log.Printf("[AIExtract] %s: completion used %d tokens (%d prompt / %d completion)",
		company, usage.TotalTokens, usage.PromptTokens, usage.CompletionTokens)

	var payload aiPayload
	if err := utils.SmartParse(utils.ExtractJSONBlock(text), &payload); err != nil {
		return nil, NewFetchError(ParseFailure, s.Name(), err)
	}

	records, err := payload.toRecords()
	if err != nil {
		return nil, NewFetchError(ParseFailure, s.Name(), err)
	}
	return LatestQuarters(records, quarterCount), nil
}

// toRecords validates the parsed payload field by field, rejecting
// anything that does not match the expected shape.
func (p *aiPayload) toRecords() ([]models.QuarterRecord, error) {
	if len(p.Quarters) == 0 {
		return nil, fmt.Errorf("model payload carried no quarters")
	}
	var records []models.QuarterRecord
	for i, q := range p.Quarters {
		if strings.TrimSpace(q.Period) == "" {
			return nil, fmt.Errorf("quarter %d has no period label", i)
		}
		rec := models.QuarterRecord{
			NativePeriodLabel: strings.TrimSpace(q.Period),
			RawIndicators:     models.IndicatorMap{},
		}
		for label, value := range q.Indicators {
			if strings.TrimSpace(label) == "" {
				continue
			}
			if value != nil && (math.IsNaN(*value) || math.IsInf(*value, 0)) {
				return nil, fmt.Errorf("quarter %q carries a non-finite value for %q", q.Period, label)
			}
			rec.RawIndicators[indicators.Normalize(label)] = value
		}
		if len(rec.RawIndicators) == 0 {
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("model payload carried no usable indicator maps")
	}
	return records, nil
}

// ResolveSourceURL asks the model for the company's results-page URL. An
// empty string means the model knows of none; that is not an error.
func (s *AIExtractionSource) ResolveSourceURL(ctx context.Context, company string) (string, error) {
	text, _, err := s.Provider.Complete(ctx, []llm.Message{
		{Role: "system", Content: `Answer with a single JSON object: {"url": "..."} - the public quarterly-results page URL for the company, or {"url": null} if unknown.`},
		{Role: "user", Content: fmt.Sprintf("Quarterly results page URL for %q?", company)},
	})
	if err != nil {
		return "", NewFetchError(NetworkFailure, s.Name(), err)
	}

	var resolved struct {
		URL *string `json:"url"`
	}
	if err := utils.SmartParse(utils.ExtractJSONBlock(text), &resolved); err != nil {
		return "", NewFetchError(ParseFailure, s.Name(), err)
	}
	if resolved.URL == nil || !strings.HasPrefix(*resolved.URL, "http") {
		return "", nil
	}
	return *resolved.URL, nil
}
