// Package indicators maps free-text line-item labels from any source into
// canonical indicator names.
package indicators

import "strings"

// Canonical indicator names. Sources report these under many spellings; the
// rest of the pipeline only ever sees the canonical form.
const (
	NetSales                   = "Net Sales"
	TotalIncomeFromOperations  = "Total Income From Operations"
	ConsumptionOfRawMaterials  = "Consumption of Raw Materials"
	PurchaseOfTradedGoods      = "Purchase of Traded Goods"
	IncreaseDecreaseInStocks   = "Increase/Decrease in Stocks"
	EmployeesCost              = "Employees Cost"
	OtherExpenses              = "Other Expenses"
	Depreciation               = "Depreciation"
	Interest                   = "Interest"
	OtherIncome                = "Other Income"
	OperatingProfit            = "Operating Profit"
	ProfitBeforeTax            = "P/L Before Tax"
	Tax                        = "Tax"
	NetProfit                  = "Net Profit"
	EquityCapital              = "Equity Capital"
	EPS                        = "Basic EPS"
	InterestEarned             = "Interest Earned"
	InterestExpended           = "Interest Expended"
	OperatingExpenses          = "Operating Expenses"
	ProvisionsAndContingencies = "Provisions And Contingencies"
)

// RevenueKeys is the preference order used wherever "revenue" is looked up:
// net-sales style keys win over the total-income fallback, and banks report
// interest earned as their top line.
var RevenueKeys = []string{NetSales, TotalIncomeFromOperations, InterestEarned}

// NetProfitKeys lists the keys accepted as a bottom-line figure.
var NetProfitKeys = []string{NetProfit}

// synonyms keys are lowercased with whitespace collapsed. The table covers
// the general corporate and the banking/financial-services vocabularies.
var synonyms = map[string]string{
	// general corporates
	"net sales":                                NetSales,
	"net sales/income from operations":         NetSales,
	"net sales / income from operations":       NetSales,
	"revenue":                                  NetSales,
	"sales":                                    NetSales,
	"total income from operations":             TotalIncomeFromOperations,
	"revenue from operations":                  TotalIncomeFromOperations,
	"income from operations":                   TotalIncomeFromOperations,
	"total income":                             TotalIncomeFromOperations,
	"consumption of raw materials":             ConsumptionOfRawMaterials,
	"cost of materials consumed":               ConsumptionOfRawMaterials,
	"purchase of traded goods":                 PurchaseOfTradedGoods,
	"purchases of stock-in-trade":              PurchaseOfTradedGoods,
	"purchase of stock in trade":               PurchaseOfTradedGoods,
	"increase/decrease in stocks":              IncreaseDecreaseInStocks,
	"increase / decrease in stocks":            IncreaseDecreaseInStocks,
	"changes in inventories":                   IncreaseDecreaseInStocks,
	"changes in inventories of finished goods": IncreaseDecreaseInStocks,
	"employees cost":                           EmployeesCost,
	"employee cost":                            EmployeesCost,
	"employee benefit expenses":                EmployeesCost,
	"employee benefits expense":                EmployeesCost,
	"staff cost":                               EmployeesCost,
	"other expenses":                           OtherExpenses,
	"other expenditure":                        OtherExpenses,
	"depreciation":                             Depreciation,
	"depreciation and amortisation":            Depreciation,
	"depreciation & amortisation expenses":     Depreciation,
	"depreciation, depletion and amortisation": Depreciation,
	"interest":                                 Interest,
	"finance costs":                            Interest,
	"finance cost":                             Interest,
	"other income":                             OtherIncome,
	"operating profit":                         OperatingProfit,
	"p/l before tax":                           ProfitBeforeTax,
	"profit before tax":                        ProfitBeforeTax,
	"pbt":                                      ProfitBeforeTax,
	"p/l before int., excpt. items & tax":      ProfitBeforeTax,
	"tax":                                      Tax,
	"tax expense":                              Tax,
	"net profit":                               NetProfit,
	"net profit/(loss) for the period":         NetProfit,
	"profit after tax":                         NetProfit,
	"net profit after tax":                     NetProfit,
	"p/l after tax from ordinary activities":   NetProfit,
	"equity capital":                           EquityCapital,
	"equity share capital":                     EquityCapital,
	"basic eps":                                EPS,
	"eps in rs":                                EPS,
	"basic eps (rs.)":                          EPS,

	// banking / financial services
	"interest earned":                InterestEarned,
	"interest/discount on advances":  InterestEarned,
	"total interest earned":          InterestEarned,
	"interest expended":              InterestExpended,
	"interest expense":               InterestExpended,
	"operating expenses":             OperatingExpenses,
	"operating expense":              OperatingExpenses,
	"provisions and contingencies":   ProvisionsAndContingencies,
	"provisions & contingencies":     ProvisionsAndContingencies,
	"provisions (other than tax) and contingencies": ProvisionsAndContingencies,
	"operating profit before provisions":            OperatingProfit,
}

// Normalize maps a free-text line-item label to its canonical indicator
// name. Lookup is case-insensitive and whitespace-collapsing. Unknown
// labels pass through unchanged so novel source vocabulary stays visible
// for debugging instead of being dropped.
func Normalize(label string) string {
	key := strings.ToLower(collapse(label))
	if canonical, ok := synonyms[key]; ok {
		return canonical
	}
	return collapse(label)
}

// Known reports whether a label resolves to a canonical indicator.
func Known(label string) bool {
	_, ok := synonyms[strings.ToLower(collapse(label))]
	return ok
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func init() {
	// Canonical names must survive a second Normalize pass unchanged.
	for _, c := range []string{
		NetSales, TotalIncomeFromOperations, ConsumptionOfRawMaterials,
		PurchaseOfTradedGoods, IncreaseDecreaseInStocks, EmployeesCost,
		OtherExpenses, Depreciation, Interest, OtherIncome, OperatingProfit,
		ProfitBeforeTax, Tax, NetProfit, EquityCapital, EPS, InterestEarned,
		InterestExpended, OperatingExpenses, ProvisionsAndContingencies,
	} {
		synonyms[strings.ToLower(c)] = c
	}
}
