package xlsx

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	ledger "cie-ledger/internal/ledger/domain"
)

const backupSheet = "Base_Centrale"

// Canonical backup columns, in sheet order.
var backupColumns = []string{
	"UC", "CODE RED", "CODE AGCE", "SITES", "IDENTIFIANT",
	"TENSION", "DATE", "CONSO", "MONTANT", "DATE_COMPLEMENTAIRE", "STATUT",
	"PSABON", "PSATTEINTE", "COMPTE_CHARGE",
}

// Legacy header names accepted on read, mapped to canonical columns.
// CORRESPONDANCE is handled separately: it feeds SITES only when the SITES
// column is entirely empty.
var legacyHeaders = map[string]string{
	"CODE AGENCE": "CODE AGCE",
	"REFERENCE":   "IDENTIFIANT",
}

// BackupStore mirrors the ledger into a human-readable spreadsheet. The
// mirror is best-effort on write; on read it is the second-tier fallback
// behind the binary snapshot.
type BackupStore struct {
	path string
}

// NewBackupStore constructs a store for the given file path.
func NewBackupStore(path string) (*BackupStore, error) {
	if path == "" {
		return nil, errors.New("backup store: empty path")
	}
	return &BackupStore{path: path}, nil
}

// Path returns the backup file path.
func (s *BackupStore) Path() string { return s.path }

// Exists reports whether the backup file is present.
func (s *BackupStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Write renders the table onto one sheet, blank-filling every cell.
func (s *BackupStore) Write(table ledger.Table) error {
	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", backupSheet)

	for i, header := range backupColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(backupSheet, cell, header); err != nil {
			return fmt.Errorf("backup store: header: %w", err)
		}
	}
	for rowIdx, row := range table {
		values := []interface{}{
			row.UnitCode, row.RegionCode, row.AgencyCode, row.SiteName,
			row.Identifier, row.Tension, row.Period,
			row.Consumption, row.Amount, row.SupplementaryPeriod, row.Status,
			row.SubscribedPower, row.ReachedPower, row.ExpenseAccount,
		}
		for colIdx, value := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(backupSheet, cell, value); err != nil {
				return fmt.Errorf("backup store: cell: %w", err)
			}
		}
	}
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("backup store: save: %w", err)
	}
	return nil
}

// Read loads the backup, remapping legacy column names onto the canonical
// schema and filling still-missing columns with their defaults. Identifiers
// are renormalized and the expense account is kept textual.
func (s *BackupStore) Read() (ledger.Table, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("backup store: open: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("backup store: rows: %w", err)
	}
	if len(rows) == 0 {
		return ledger.Table{}, nil
	}

	cols := map[string]int{}
	for i, header := range rows[0] {
		name := strings.TrimSpace(header)
		if canonical, ok := legacyHeaders[name]; ok {
			if _, taken := cols[canonical]; !taken {
				cols[canonical] = i
			}
			continue
		}
		if name != "" {
			if _, taken := cols[name]; !taken {
				cols[name] = i
			}
		}
	}

	// CORRESPONDANCE replaces SITES only when SITES carries no value at all.
	if corrIdx, hasCorr := cols["CORRESPONDANCE"]; hasCorr {
		sitesIdx, hasSites := cols["SITES"]
		if !hasSites || columnEmpty(rows[1:], sitesIdx) {
			cols["SITES"] = corrIdx
		}
	}

	table := make(ledger.Table, 0, len(rows)-1)
	for _, raw := range rows[1:] {
		get := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(raw) {
				return ""
			}
			return strings.TrimSpace(raw[idx])
		}
		identifier := ledger.NormalizeIdentifier(get("IDENTIFIANT"))
		if identifier == "" && rowEmpty(raw) {
			continue
		}
		status := get("STATUT")
		if status == "" {
			status = ledger.StatusActive
		}
		account := get("COMPTE_CHARGE")
		if account == "" {
			account = ledger.DefaultExpenseAccount
		}
		table = append(table, ledger.Row{
			UnitCode:            get("UC"),
			RegionCode:          get("CODE RED"),
			AgencyCode:          get("CODE AGCE"),
			SiteName:            get("SITES"),
			Identifier:          identifier,
			Tension:             get("TENSION"),
			Period:              get("DATE"),
			Consumption:         parseNumber(get("CONSO")),
			Amount:              parseNumber(get("MONTANT")),
			SupplementaryPeriod: get("DATE_COMPLEMENTAIRE"),
			Status:              status,
			SubscribedPower:     parseNumber(get("PSABON")),
			ReachedPower:        parseNumber(get("PSATTEINTE")),
			ExpenseAccount:      account,
		})
	}
	return table, nil
}

func columnEmpty(rows [][]string, idx int) bool {
	for _, row := range rows {
		if idx < len(row) && strings.TrimSpace(row[idx]) != "" {
			return false
		}
	}
	return true
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// parseNumber coerces a cell to a float, treating garbage as 0 so one bad
// cell never aborts a load.
func parseNumber(s string) float64 {
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
