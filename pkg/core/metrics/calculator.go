// Package metrics computes the fixed set of derived quarterly metrics from
// normalized raw indicators.
package metrics

import (
	"fmt"
	"math"

	"quarter_metrics/pkg/core/indicators"
	"quarter_metrics/pkg/models"
)

// pbtTolerance is the allowed gap, in the source's reporting unit, between
// the computed PBT and an independently reported pre-tax figure before a
// reconciliation warning is raised.
const pbtTolerance = 1.0

// Calculate derives the metric set from a normalized indicator map.
//
// Formulas are applied in a fixed order and each short-circuits to absent
// (never zero, never an error value) when a required antecedent is missing.
// Explicit "not available" placeholders count as absent except where a
// formula documents a zero default. Returned issues are informational only.
func Calculate(raw models.IndicatorMap) (models.Metrics, []models.ValidationIssue) {
	var m models.Metrics
	var issues []models.ValidationIssue

	addIssue := func(metric string, severity models.Severity, format string, args ...interface{}) {
		issues = append(issues, models.ValidationIssue{
			Metric:   metric,
			Message:  fmt.Sprintf(format, args...),
			Severity: severity,
		})
	}

	// Contribution = TotalIncomeFromOperations - PurchaseOfTradedGoods(0)
	//              - IncreaseDecreaseInStocks(0).
	// The optional subtrahends default to zero; the income figure never does.
	income := raw.First(indicators.TotalIncomeFromOperations)
	if income != nil {
		c := *income - orZero(raw.First(indicators.PurchaseOfTradedGoods)) -
			orZero(raw.First(indicators.IncreaseDecreaseInStocks))
		m.Contribution = &c
	} else {
		addIssue("Contribution", models.SeverityError,
			"Total Income From Operations not reported; Contribution cannot be derived")
	}

	// Op. EBITDA = Contribution - EmployeesCost - OtherExpenses, falling
	// back to a directly reported operating profit when the cost lines are
	// incomplete.
	empCost := raw.First(indicators.EmployeesCost)
	otherExp := raw.First(indicators.OtherExpenses)
	switch {
	case m.Contribution != nil && empCost != nil && otherExp != nil:
		v := *m.Contribution - *empCost - *otherExp
		m.OpEBITDA = &v
	case raw.First(indicators.OperatingProfit) != nil:
		v := *raw.First(indicators.OperatingProfit)
		m.OpEBITDA = &v
	default:
		addIssue("Op. EBITDA", models.SeverityError,
			"cost lines incomplete and no reported operating profit to fall back on")
	}

	// Op. EBIT = Op. EBITDA - Depreciation.
	dep := raw.First(indicators.Depreciation)
	if m.OpEBITDA != nil && dep != nil {
		v := *m.OpEBITDA - *dep
		m.OpEBIT = &v
	} else {
		addIssue("Op. EBIT", models.SeverityWarning, "Op. EBITDA or Depreciation missing")
	}

	// Op. PBT = Op. EBIT - Interest.
	interest := raw.First(indicators.Interest)
	if m.OpEBIT != nil && interest != nil {
		v := *m.OpEBIT - *interest
		m.OpPBT = &v
	} else {
		addIssue("Op. PBT", models.SeverityWarning, "Op. EBIT or Interest missing")
	}

	// PBT = Op. PBT + OtherIncome, falling back to the reported pre-tax
	// figure when the chain broke upstream.
	otherIncome := raw.First(indicators.OtherIncome)
	reportedPBT := raw.First(indicators.ProfitBeforeTax)
	derivedPBT := false
	switch {
	case m.OpPBT != nil && otherIncome != nil:
		v := *m.OpPBT + *otherIncome
		m.PBT = &v
		derivedPBT = true
	case reportedPBT != nil:
		v := *reportedPBT
		m.PBT = &v
	default:
		addIssue("PBT", models.SeverityError,
			"Op. PBT chain incomplete and no reported pre-tax profit available")
	}

	// Revenue = first present value in preference order.
	if rev := raw.First(indicators.RevenueKeys...); rev != nil {
		v := *rev
		m.Revenue = &v
	}

	// Percentages only when Revenue is present and non-zero: a zero or
	// absent denominator silently omits the percentage.
	if m.Revenue != nil && *m.Revenue != 0 {
		if m.OpEBITDA != nil {
			v := 100 * *m.OpEBITDA / *m.Revenue
			m.OpEBITDAPct = &v
		}
		if m.OpEBIT != nil {
			v := 100 * *m.OpEBIT / *m.Revenue
			m.OpEBITPct = &v
		}
	}

	// Cross-validation: a reported pre-tax figure that disagrees with the
	// computed PBT by more than the tolerance is flagged, never corrected.
	if derivedPBT && reportedPBT != nil && math.Abs(*m.PBT-*reportedPBT) > pbtTolerance {
		addIssue("PBT", models.SeverityWarning,
			"computed PBT %.2f differs from reported pre-tax profit %.2f by more than %.0f",
			*m.PBT, *reportedPBT, pbtTolerance)
	}

	return m, issues
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
