package fiscal

import (
	"strings"
	"testing"
)

func TestToCanonicalPeriod(t *testing.T) {
	cases := map[string]string{
		// Sep 2025 sits in Q2 of the fiscal year ending Mar 2026.
		"Sep '25":       "Q2'26",
		"Sep 2025":      "Q2'26",
		"September '25": "Q2'26",
		// Mar 2025 closes Q4 of FY25.
		"Mar '25": "Q4'25",
		"Jun '24": "Q1'25",
		"Dec '24": "Q3'25",
		"Jan '26": "Q4'26",
		// Already canonical: returned as-is.
		"Q2'26": "Q2'26",
	}
	for in, want := range cases {
		if got := ToCanonicalPeriod(in); got != want {
			t.Errorf("ToCanonicalPeriod(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToCanonicalPeriodUnparseable(t *testing.T) {
	for _, label := range []string{"TTM", "H1 2025", "Trailing 12M", ""} {
		if got := ToCanonicalPeriod(label); got != label {
			t.Errorf("unparseable label %q changed to %q", label, got)
		}
	}
}

func TestIsSelected(t *testing.T) {
	quarters := []int{1, 2}
	years := []int{26}

	if !IsSelected("Q2'26", quarters, years) {
		t.Error("Q2'26 should be selected for quarters {1,2} years {26}")
	}
	if IsSelected("Q3'26", quarters, years) {
		t.Error("Q3'26 quarter outside selection")
	}
	if IsSelected("Q1'25", quarters, years) {
		t.Error("Q1'25 fiscal year outside selection")
	}
	// Four-digit requested years match their two-digit canonical form.
	if !IsSelected("Q1'26", []int{1}, []int{2026}) {
		t.Error("four-digit fiscal year 2026 should match Q1'26")
	}
	// Labels that never parsed cannot match an active selection.
	if IsSelected("TTM", quarters, years) {
		t.Error("unparseable label matched selection")
	}
}

func TestRequestedPeriods(t *testing.T) {
	got := RequestedPeriods([]int{1, 2}, []int{25, 26})
	want := "Q2'26 Q1'26 Q2'25 Q1'25"
	if strings.Join(got, " ") != want {
		t.Errorf("RequestedPeriods = %v, want %q", got, want)
	}
}
