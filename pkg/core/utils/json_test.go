package utils

import "testing"

type payload struct {
	Company string             `json:"company"`
	Values  map[string]float64 `json:"values"`
}

func TestExtractJSONBlock(t *testing.T) {
	text := "Here is the extraction you asked for:\n```json\n{\"company\":\"ACME\"}\n```\nLet me know if you need anything else."
	if got := ExtractJSONBlock(text); got != `{"company":"ACME"}` {
		t.Errorf("ExtractJSONBlock = %q", got)
	}
}

func TestSmartParseTruncated(t *testing.T) {
	// Output cut mid-value; repair must balance the brackets.
	input := `{"company": "ACME", "values": {"Net Sales": 1200.5, "Interest": 4`

	var p payload
	if err := SmartParse(ExtractJSONBlock(input), &p); err != nil {
		t.Fatalf("SmartParse failed on truncated output: %v", err)
	}
	if p.Company != "ACME" {
		t.Errorf("company = %q, want ACME", p.Company)
	}
	if p.Values["Net Sales"] != 1200.5 {
		t.Errorf("Net Sales = %v, want 1200.5", p.Values["Net Sales"])
	}
}

func TestSmartParseGarbage(t *testing.T) {
	var p payload
	if err := SmartParse("the filing was not located", &p); err == nil {
		t.Error("expected an error for non-JSON output")
	}
}
