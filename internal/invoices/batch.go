package invoices

import (
	"fmt"
	"strings"

	ledger "cie-ledger/internal/ledger/domain"
)

// Batch sources.
const (
	SourceBT = "bt"
	SourceHT = "ht"
)

// BatchRow is one normalized line from an uploaded invoice file.
type BatchRow struct {
	Identifier          string // canonical
	Amount              float64
	Consumption         float64
	Period              string // canonical MM/YYYY
	TypeCode            string // raw source code: E0, E1, E5, other, or ""
	SubscribedPower     float64
	ReachedPower        float64
	SupplementaryPeriod string // canonical, from the supplementary-date column
}

// Type maps the row onto the invoice subtype. A negative amount is always a
// credit note, matching how ledger rows derive their subtype, so typeless
// batches route negative lines to the credit path too. Unknown codes are
// handled as normal emissions.
func (r BatchRow) Type() ledger.InvoiceType {
	if r.Amount < 0 {
		return ledger.TypeCreditNote
	}
	switch strings.ToUpper(strings.TrimSpace(r.TypeCode)) {
	case "E1":
		return ledger.TypeSupplementary
	case "E5":
		return ledger.TypeCreditNote
	default:
		return ledger.TypeNormal
	}
}

// Batch is a normalized invoice file ready to merge.
type Batch struct {
	Source  string // SourceBT or SourceHT
	Tension string
	Period  string // first non-empty canonical period in the file
	Rows    []BatchRow

	HasTypeColumn          bool // typefact present: E0/E1/E5 routing active
	HasPowerColumns        bool // PSABON/PSATTEINTE present
	HasSupplementaryColumn bool // date_suppl present: supplementary auto-merge active

	// RowIssues collects non-fatal per-row problems (unparseable periods,
	// coerced numerics) for the import summary.
	RowIssues []string
}

// TotalAmount sums the raw amounts over all batch rows.
func (b *Batch) TotalAmount() float64 {
	var total float64
	for _, row := range b.Rows {
		total += row.Amount
	}
	return total
}

// MissingColumnsError aborts a batch load, naming both the missing required
// columns and everything the file actually carries.
type MissingColumnsError struct {
	Missing   []string
	Available []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("invoices: missing required columns: %s (available: %s)",
		strings.Join(e.Missing, ", "), strings.Join(e.Available, ", "))
}
