package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"quarter_metrics/pkg/core/config"
	"quarter_metrics/pkg/core/fiscal"
	"quarter_metrics/pkg/core/llm"
	"quarter_metrics/pkg/core/pipeline"
	"quarter_metrics/pkg/core/source"
	"quarter_metrics/pkg/core/store"
	"quarter_metrics/pkg/models"
)

func main() {
	companiesFlag := flag.String("companies", "", "comma-separated company names (required)")
	quartersFlag := flag.String("quarters", "1,2,3,4", "comma-separated fiscal quarter numbers")
	yearsFlag := flag.String("years", "", "comma-separated fiscal years, e.g. 25,26 (required)")
	configFlag := flag.String("config", "pipeline.yaml", "path to the pipeline config file")
	testFlag := flag.Bool("test", false, "process only the first company")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, assuming environment variables are set.")
	}

	companies := splitList(*companiesFlag)
	if len(companies) == 0 {
		log.Fatal("Error: -companies is required.")
	}
	quarters, err := splitInts(*quartersFlag)
	if err != nil {
		log.Fatalf("Error: bad -quarters value: %v", err)
	}
	years, err := splitInts(*yearsFlag)
	if err != nil || len(years) == 0 {
		log.Fatal("Error: -years is required, e.g. -years 25,26")
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Println("🚀 Quarterly Results Pipeline Starting...")
	fmt.Printf("📋 %d companies, quarters %v, fiscal years %v\n", len(companies), quarters, years)

	chain, hintFetcher := buildChain(cfg, provider, quarters, years)

	var sink pipeline.ProgressSink = &pipeline.MemorySink{}
	var repo *store.RunRepo
	if cfg.PersistResults {
		if err := store.InitDB(context.Background()); err != nil {
			log.Fatalf("Error: persistence requested but database unavailable: %v", err)
		}
		defer store.Close()
		repo = store.NewRunRepo()
		sink = &store.ProgressWriter{JobID: uuid.NewString()}
	}

	orch := pipeline.New(chain, hintFetcher, sink, pipeline.Options{
		Quarters:       quarters,
		FiscalYears:    years,
		QuarterCount:   cfg.QuarterCount,
		TestMode:       *testFlag,
		RetryAttempts:  cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay(),
		CompanyDelay:   cfg.CompanyDelay(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := orch.Run(ctx, companies)

	printReport(result)

	if repo != nil {
		if err := repo.SaveRun(context.Background(), result); err != nil {
			log.Printf("Warning: failed to persist run: %v", err)
		} else {
			fmt.Printf("💾 Run %s saved.\n", result.RunID)
		}
	}

	if !result.Success {
		os.Exit(1)
	}
}

// buildProvider selects the extraction model backend from config.
func buildProvider(cfg *config.Config) (llm.Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "deepseek", "":
		return &llm.DeepSeekProvider{Model: cfg.Model}, nil
	case "gemini":
		return &llm.GeminiProvider{Model: cfg.Model}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want deepseek or gemini)", cfg.Provider)
	}
}

// buildChain assembles the fallback chain in its fixed order. The primary
// table source doubles as the fetcher for AI-resolved URL hints.
func buildChain(cfg *config.Config, provider llm.Provider, quarters, years []int) ([]source.Source, source.URLFetcher) {
	primary := &source.ResultsTableSource{URLTemplate: cfg.PrimaryURLTemplate}
	markets := &source.MarketsPageSource{
		Renderer: &source.ChromeRenderer{WaitDelay: cfg.RenderWait()},
		URLs:     cfg.MarketsURLs,
	}
	ai := &source.AIExtractionSource{
		Provider: provider,
		Periods:  fiscal.RequestedPeriods(quarters, years),
	}
	return []source.Source{primary, markets, ai}, primary
}

func printReport(result *models.RunResult) {
	fmt.Printf("\n===== Run %s =====\n", result.RunID)
	for _, company := range result.Results {
		fmt.Printf("\n🏢 %s (via %s)\n", company.CompanyName, company.DataSourceUsed)
		for _, q := range company.Quarters {
			fmt.Printf("  %s\n", q.CanonicalPeriod)
			d := q.Derived
			if d == nil {
				continue
			}
			printMetric("Revenue", d.Revenue)
			printMetric("Contribution", d.Contribution)
			printMetric("Op. EBITDA", d.OpEBITDA)
			printPct("Op. EBITDA %", d.OpEBITDAPct)
			printMetric("Op. EBIT", d.OpEBIT)
			printPct("Op. EBIT %", d.OpEBITPct)
			printMetric("Op. PBT", d.OpPBT)
			printMetric("PBT", d.PBT)
			for _, issue := range q.Issues {
				fmt.Printf("    ⚠️  [%s] %s: %s\n", issue.Severity, issue.Metric, issue.Message)
			}
		}
	}
	for _, failure := range result.Errors {
		fmt.Printf("\n❌ %s: %s\n", failure.Company, failure.Error)
	}
	fmt.Printf("\n✅ %d succeeded, %d failed\n", len(result.Results), len(result.Errors))
}

func printMetric(name string, v *float64) {
	if v == nil {
		fmt.Printf("    %-14s n/a\n", name)
		return
	}
	fmt.Printf("    %-14s %.2f\n", name, *v)
}

func printPct(name string, v *float64) {
	if v == nil {
		return
	}
	fmt.Printf("    %-14s %.1f%%\n", name, *v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitInts(s string) ([]int, error) {
	var out []int
	for _, part := range splitList(s) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", part)
		}
		out = append(out, n)
	}
	return out, nil
}
