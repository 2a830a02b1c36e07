package invoices

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	ledger "cie-ledger/internal/ledger/domain"
)

// Required columns per source.
var (
	btRequired = []string{"Référence Contrat", "Montant facture TTC", "Période Facture sur date fact"}
	htRequired = []string{"refraccord", "montfact", "Periode_Emission_Bordereau"}
)

// Optional columns.
const (
	btConsumption   = "KWH Facturé"
	htConsumption   = "conso"
	htTypeCode      = "typefact"
	htSubscribed    = "PSABON"
	htReached       = "PSATTEINTE"
	htSupplementary = "date_suppl"
)

var errNoPeriod = errors.New("invoices: no invoice period detected in file")

// ReadBT loads a low-tension invoice file.
func ReadBT(path string) (*Batch, error) {
	headers, rows, err := readFirstSheet(path)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(headers, btRequired); err != nil {
		return nil, err
	}
	batch := &Batch{Source: SourceBT, Tension: ledger.TensionLow}
	for i, cells := range rows {
		identifier := ledger.NormalizeIdentifier(cell(cells, headers["Référence Contrat"]))
		if identifier == "" {
			continue
		}
		row := BatchRow{
			Identifier:  identifier,
			Amount:      parseNumber(cell(cells, headers["Montant facture TTC"])),
			Consumption: parseNumber(cellOpt(cells, headers, btConsumption)),
		}
		row.Period = parsePeriod(batch, i, cell(cells, headers["Période Facture sur date fact"]))
		batch.Rows = append(batch.Rows, row)
	}
	if err := detectPeriod(batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// ReadHT loads a high-tension invoice file.
func ReadHT(path string) (*Batch, error) {
	headers, rows, err := readFirstSheet(path)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(headers, htRequired); err != nil {
		return nil, err
	}
	batch := &Batch{Source: SourceHT, Tension: ledger.TensionHigh}
	_, batch.HasTypeColumn = headers[htTypeCode]
	_, batch.HasSupplementaryColumn = headers[htSupplementary]
	_, hasSubscribed := headers[htSubscribed]
	_, hasReached := headers[htReached]
	batch.HasPowerColumns = hasSubscribed || hasReached

	for i, cells := range rows {
		identifier := ledger.NormalizeIdentifier(cell(cells, headers["refraccord"]))
		if identifier == "" {
			continue
		}
		row := BatchRow{
			Identifier:      identifier,
			Amount:          parseNumber(cell(cells, headers["montfact"])),
			Consumption:     parseNumber(cellOpt(cells, headers, htConsumption)),
			TypeCode:        strings.TrimSpace(cellOpt(cells, headers, htTypeCode)),
			SubscribedPower: parseNumber(cellOpt(cells, headers, htSubscribed)),
			ReachedPower:    parseNumber(cellOpt(cells, headers, htReached)),
		}
		row.Period = parsePeriod(batch, i, cell(cells, headers["Periode_Emission_Bordereau"]))
		if batch.HasSupplementaryColumn {
			if raw := strings.TrimSpace(cellOpt(cells, headers, htSupplementary)); raw != "" {
				suppl, err := ledger.NormalizePeriod(raw)
				if err != nil {
					batch.RowIssues = append(batch.RowIssues,
						fmt.Sprintf("row %d: unparseable supplementary period %q", i+2, raw))
				}
				row.SupplementaryPeriod = suppl
			}
		}
		batch.Rows = append(batch.Rows, row)
	}
	if err := detectPeriod(batch); err != nil {
		return nil, err
	}
	return batch, nil
}

func readFirstSheet(path string) (map[string]int, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("invoices: open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("invoices: %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("invoices: read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("invoices: %s is empty", path)
	}
	headers := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		name = strings.TrimSpace(name)
		if name != "" {
			headers[name] = i
		}
	}
	return headers, rows[1:], nil
}

func requireColumns(headers map[string]int, required []string) error {
	var missing []string
	for _, name := range required {
		if _, ok := headers[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	available := make([]string, 0, len(headers))
	for name := range headers {
		available = append(available, name)
	}
	sort.Strings(available)
	return &MissingColumnsError{Missing: missing, Available: available}
}

func parsePeriod(batch *Batch, rowIdx int, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	period, err := ledger.NormalizePeriod(raw)
	if err != nil {
		batch.RowIssues = append(batch.RowIssues,
			fmt.Sprintf("row %d: unparseable period %q", rowIdx+2, raw))
	}
	return period
}

// detectPeriod fixes the batch period from the first row that carries one.
func detectPeriod(batch *Batch) error {
	for _, row := range batch.Rows {
		if row.Period != "" {
			batch.Period = row.Period
			return nil
		}
	}
	return errNoPeriod
}

func cell(cells []string, idx int) string {
	if idx < len(cells) {
		return cells[idx]
	}
	return ""
}

func cellOpt(cells []string, headers map[string]int, name string) string {
	idx, ok := headers[name]
	if !ok {
		return ""
	}
	return cell(cells, idx)
}

// parseNumber coerces garbled numerics to zero rather than failing the import.
func parseNumber(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	raw = strings.ReplaceAll(raw, " ", "")
	raw = strings.ReplaceAll(raw, ",", ".")
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return f
}
