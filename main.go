package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cie-ledger/internal/accounting"
	"cie-ledger/internal/invoices"
	ledgerapp "cie-ledger/internal/ledger/application"
	ledger "cie-ledger/internal/ledger/domain"
	"cie-ledger/internal/ledger/infrastructure/sqlite"
	"cie-ledger/internal/ledger/infrastructure/xlsx"
	"cie-ledger/internal/observability/metrics"
	"cie-ledger/internal/reconcile"
)

const usage = `usage: cie-ledger <command> [flags]

commands:
  import-bt <file.xlsx>   merge a low-tension invoice file into the ledger
  import-ht <file.xlsx>   merge a high-tension invoice file into the ledger
  check-bt <file.xlsx>    reconcile a low-tension file without merging
  check-ht <file.xlsx>    reconcile a high-tension file without merging
  add-site                register a site in the ledger
  validate-suppl          merge a pending supplementary invoice
  generate                build the journal for a period
  status                  show ledger contents
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)
	metrics.Init()

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Printf("metrics listener error: %v", err)
			}
		}()
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatalf("store error: %v", err)
	}
	ctx := context.Background()
	loaded, err := store.Load(ctx)
	if err != nil {
		logger.Fatalf("load error: %v", err)
	}
	logger.Printf("ledger loaded from %s: %d rows", loaded.Source, len(store.Rows()))

	switch os.Args[1] {
	case "import-bt":
		err = runImport(ctx, cfg, logger, store, invoices.SourceBT, os.Args[2:])
	case "import-ht":
		err = runImport(ctx, cfg, logger, store, invoices.SourceHT, os.Args[2:])
	case "check-bt":
		err = runCheck(cfg, logger, store, invoices.SourceBT, os.Args[2:])
	case "check-ht":
		err = runCheck(cfg, logger, store, invoices.SourceHT, os.Args[2:])
	case "add-site":
		err = runAddSite(ctx, logger, store, os.Args[2:])
	case "validate-suppl":
		err = runValidateSuppl(ctx, logger, store, os.Args[2:])
	case "generate":
		err = runGenerate(cfg, logger, store, os.Args[2:])
	case "status":
		err = runStatus(logger, store)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Fatalf("%s error: %v", os.Args[1], err)
	}
}

func openStore(cfg config, logger *log.Logger) (*ledgerapp.Store, error) {
	for _, dir := range []string{filepath.Dir(cfg.SnapshotPath), filepath.Dir(cfg.BackupPath), cfg.ExportDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	snapshot, err := sqlite.NewSnapshotStore(cfg.SnapshotPath)
	if err != nil {
		return nil, err
	}
	backup, err := xlsx.NewBackupStore(cfg.BackupPath)
	if err != nil {
		return nil, err
	}
	return ledgerapp.NewStore(snapshot, backup, logger)
}

func readBatch(source, path string) (*invoices.Batch, error) {
	if source == invoices.SourceHT {
		return invoices.ReadHT(path)
	}
	return invoices.ReadBT(path)
}

func runImport(ctx context.Context, cfg config, logger *log.Logger, store *ledgerapp.Store, source string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("import-%s: invoice file required", source)
	}
	batch, err := readBatch(source, args[0])
	if err != nil {
		return err
	}
	for _, issue := range batch.RowIssues {
		logger.Printf("import %s: %s", source, issue)
	}

	merger, err := invoices.NewMerger(logger)
	if err != nil {
		return err
	}
	next, result, err := merger.Merge(store.Rows(), batch)
	if err != nil {
		return err
	}
	store.Replace(next)
	if err := store.Save(ctx); err != nil {
		return err
	}

	logger.Printf("period %s: %d rows added, %d updated, %d duplicates collapsed",
		result.Period, result.RowsAdded, result.RowsUpdated, result.DuplicatesCollapsed)
	if result.Stats.NormalRaw != result.Stats.NormalCumulated {
		logger.Printf("cumulated %d normal lines into %d",
			result.Stats.NormalRaw, result.Stats.NormalCumulated)
	}
	for _, row := range result.PendingManual {
		logger.Printf("pending supplementary: %s %.0f FCFA (validate with a supplementary period)",
			row.Identifier, row.Amount)
	}
	if len(result.Unmatched) > 0 {
		report := reconcile.Report{Period: result.Period, Tension: batch.Tension, Unmatched: result.Unmatched}
		path := filepath.Join(cfg.ExportDir, fmt.Sprintf("non_enregistrees_%s.xlsx", source))
		if err := writeUnmatched(report, path); err != nil {
			return err
		}
		logger.Printf("%d unregistered sites written to %s", len(result.Unmatched), path)
	}
	return nil
}

func runCheck(cfg config, logger *log.Logger, store *ledgerapp.Store, source string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("check-%s: invoice file required", source)
	}
	batch, err := readBatch(source, args[0])
	if err != nil {
		return err
	}
	report, err := reconcile.Detect(batch, store.Rows())
	if err != nil {
		return err
	}

	logger.Printf("period %s %s: %d matched (%.0f FCFA), %d unmatched (%.0f FCFA), %d pending (%.0f FCFA)",
		report.Period, report.Tension,
		len(report.Matched), report.MatchedTotal,
		len(report.Unmatched), report.UnmatchedTotal,
		len(report.PendingManual), report.PendingTotal)
	if !report.CoherenceOK {
		logger.Printf("COHERENCE BROKEN: %.2f FCFA difference between file total and partition", report.Difference)
	}
	if report.LedgerWarning {
		logger.Printf("warning: %.0f FCFA gap against recorded ledger total (%.0f FCFA)",
			report.LedgerGap, report.LedgerTotal)
	}

	if len(report.Unmatched) > 0 {
		path := filepath.Join(cfg.ExportDir, fmt.Sprintf("non_enregistrees_%s.xlsx", source))
		if err := writeUnmatched(report, path); err != nil {
			return err
		}
		logger.Printf("unregistered rows written to %s", path)
	}
	pdf, err := reconcile.BuildReportPDF(report)
	if err != nil {
		return err
	}
	pdfPath := filepath.Join(cfg.ExportDir, fmt.Sprintf("controle_%s.pdf", source))
	if err := os.WriteFile(pdfPath, pdf, 0o644); err != nil {
		return err
	}
	logger.Printf("reconciliation report written to %s", pdfPath)
	return nil
}

func writeUnmatched(report reconcile.Report, path string) error {
	data, err := reconcile.BuildUnmatchedXLSX(report)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func runAddSite(ctx context.Context, logger *log.Logger, store *ledgerapp.Store, args []string) error {
	fs := flag.NewFlagSet("add-site", flag.ExitOnError)
	var params ledger.RowParams
	fs.StringVar(&params.Identifier, "identifiant", "", "site identifier (required)")
	fs.StringVar(&params.SiteName, "site", "", "site name")
	fs.StringVar(&params.Tension, "tension", ledger.TensionLow, "BASSE or HAUTE")
	fs.StringVar(&params.Period, "periode", "", "invoice period MM/YYYY (required)")
	fs.StringVar(&params.UnitCode, "unite", "", "unit code")
	fs.StringVar(&params.RegionCode, "region", "", "region code")
	fs.StringVar(&params.AgencyCode, "agence", "", "agency code")
	fs.StringVar(&params.Status, "statut", "", "ACTIF or INACTIF, defaults to ACTIF")
	fs.StringVar(&params.ExpenseAccount, "compte", "", "expense account, defaults to "+ledger.DefaultExpenseAccount)
	fs.Float64Var(&params.Amount, "montant", 0, "invoice amount FCFA")
	fs.Float64Var(&params.Consumption, "conso", 0, "consumption kWh")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if params.Identifier == "" || params.Period == "" {
		return fmt.Errorf("add-site: -identifiant and -periode are required")
	}
	period, err := canonicalPeriod(params.Period)
	if err != nil {
		return fmt.Errorf("add-site: period %q: %w", params.Period, err)
	}
	params.Period = period

	row, err := store.AddRow(ctx, params)
	if err != nil {
		return err
	}
	logger.Printf("site %s registered for %s (%s)", row.Identifier, row.Period, row.Tension)
	return nil
}

// canonicalPeriod accepts either the raw YYYYMM form or the canonical
// MM/YYYY form.
func canonicalPeriod(raw string) (string, error) {
	period, err := ledger.NormalizePeriod(raw)
	if err != nil {
		if strings.Contains(raw, "/") {
			return raw, nil
		}
		return "", err
	}
	return period, nil
}

func runValidateSuppl(ctx context.Context, logger *log.Logger, store *ledgerapp.Store, args []string) error {
	fs := flag.NewFlagSet("validate-suppl", flag.ExitOnError)
	identifier := fs.String("identifiant", "", "site identifier (required)")
	amount := fs.Float64("montant", 0, "invoice amount FCFA")
	conso := fs.Float64("conso", 0, "consumption kWh")
	period := fs.String("periode", "", "invoice period MM/YYYY (required)")
	suppl := fs.String("periode-suppl", "", "complemented period MM/YYYY (required)")
	tension := fs.String("tension", ledger.TensionHigh, "BASSE or HAUTE")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *identifier == "" || *period == "" || *suppl == "" {
		return fmt.Errorf("validate-suppl: -identifiant, -periode and -periode-suppl are required")
	}
	invoicePeriod, err := canonicalPeriod(*period)
	if err != nil {
		return fmt.Errorf("validate-suppl: period %q: %w", *period, err)
	}
	supplPeriod, err := canonicalPeriod(*suppl)
	if err != nil {
		return fmt.Errorf("validate-suppl: supplementary period %q: %w", *suppl, err)
	}

	merger, err := invoices.NewMerger(logger)
	if err != nil {
		return err
	}
	row := invoices.BatchRow{
		Identifier:  ledger.NormalizeIdentifier(*identifier),
		Amount:      *amount,
		Consumption: *conso,
		Period:      invoicePeriod,
	}
	next, ok := merger.MergeSupplementary(store.Rows(), row, supplPeriod, *tension)
	if !ok {
		return fmt.Errorf("validate-suppl: identifier %s is not in the ledger", row.Identifier)
	}
	store.Replace(next)
	if err := store.Save(ctx); err != nil {
		return err
	}
	logger.Printf("supplementary invoice %s %s merged (complements %s, %.0f FCFA)",
		row.Identifier, invoicePeriod, supplPeriod, *amount)
	return nil
}

func runGenerate(cfg config, logger *log.Logger, store *ledgerapp.Store, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	period := fs.String("periode", "", "period MM/YYYY (required)")
	tension := fs.String("tension", "ALL", "BT, HT or ALL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *period == "" {
		return fmt.Errorf("generate: -periode is required")
	}

	var tensions []string
	switch strings.ToUpper(*tension) {
	case "BT":
		tensions = []string{ledger.TensionLow}
	case "HT":
		tensions = []string{ledger.TensionHigh}
	case "ALL":
		tensions = []string{ledger.TensionLow, ledger.TensionHigh}
	default:
		return fmt.Errorf("generate: unknown tension %q", *tension)
	}

	for _, t := range tensions {
		result := accounting.Generate(store.Rows(), *period, t)
		if len(result.Entries) == 0 {
			logger.Printf("no entries for %s %s", *period, t)
			continue
		}
		data, err := accounting.BuildJournalXLSX(result)
		if err != nil {
			return err
		}
		label := "bt"
		if t == ledger.TensionHigh {
			label = "ht"
		}
		path := filepath.Join(cfg.ExportDir,
			fmt.Sprintf("piece_comptable_%s_%s.xlsx", label, strings.ReplaceAll(*period, "/", "-")))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		logger.Printf("%s %s: %d entries, %.0f FCFA, written to %s",
			*period, t, len(result.Entries), result.Total, path)
		if result.InactiveExcluded > 0 {
			logger.Printf("%d inactive sites excluded", result.InactiveExcluded)
		}
	}
	return nil
}

func runStatus(logger *log.Logger, store *ledgerapp.Store) error {
	table := store.Rows()
	logger.Printf("%d rows, %d sites", len(table), len(table.Identifiers()))
	for _, period := range table.Periods() {
		logger.Printf("  %s: BT %.0f FCFA, HT %.0f FCFA", period,
			table.TotalAmount(period, ledger.TensionLow),
			table.TotalAmount(period, ledger.TensionHigh))
	}
	return nil
}
