// Package accounting turns ledger rows into the 17-column journal entries
// the finance system ingests.
package accounting

import (
	"time"

	ledger "cie-ledger/internal/ledger/domain"
	"cie-ledger/internal/observability/metrics"
)

// Fixed values required by the downstream journal format.
const (
	SenseDebit  = "D"
	PaymentCode = "4200"
)

// EntryColumns is the journal layout, in export order.
var EntryColumns = []string{
	"CODE AGENCE",
	"COMPTE DE CHARGES",
	"SENS",
	"MONTANT",
	"CODE PAYT Lib 1-5",
	"CODE CHARGE Lib 6-10",
	"TYPE DEP Lib 11",
	"MATR OBJ Lib 12-19",
	"LIBELLE COMPLEMENTAIRE",
	"CODE AG",
	"SENS_",
	"MONTANT_",
	"CODE FOURNISSEUR",
	"FOURNISSEUR",
	"CONTREPARTIE",
	"LIB COMPLEMENTAIRE",
	"IDENTIFIANT",
}

// Entry is one journal line. Fields the downstream format leaves blank are
// kept so the export renders all 17 columns.
type Entry struct {
	AgencyCode     string
	ExpenseAccount string
	Sense          string
	Amount         float64
	PaymentCode    string
	ChargeCode     string
	ExpenseType    string
	ObjectRef      string
	Label          string
	AgencyCode2    string
	Sense2         string
	Amount2        string
	SupplierCode   string
	Supplier       string
	Counterpart    string
	ExtraLabel     string
	Identifier     string
}

// Values returns the entry fields in EntryColumns order.
func (e Entry) Values() []any {
	return []any{
		e.AgencyCode, e.ExpenseAccount, e.Sense, e.Amount, e.PaymentCode,
		e.ChargeCode, e.ExpenseType, e.ObjectRef, e.Label, e.AgencyCode2,
		e.Sense2, e.Amount2, e.SupplierCode, e.Supplier, e.Counterpart,
		e.ExtraLabel, e.Identifier,
	}
}

// GenerateResult carries the journal entries plus what was filtered out.
type GenerateResult struct {
	Period           string
	Tension          string // empty means both tension classes
	Entries          []Entry
	Total            float64
	InactiveExcluded int
}

// Generate builds journal entries for every ledger row of the period,
// optionally restricted to one tension class. Inactive sites are excluded
// and their count surfaced so the operator sees the filtering.
func Generate(table ledger.Table, period, tension string) GenerateResult {
	start := time.Now()
	result := GenerateResult{Period: period, Tension: tension}

	for _, row := range table {
		if row.Period != period {
			continue
		}
		if tension != "" && row.Tension != tension {
			continue
		}
		if row.Status == ledger.StatusInactive {
			result.InactiveExcluded++
			continue
		}
		account := row.ExpenseAccount
		if account == "" {
			account = ledger.DefaultExpenseAccount
		}
		result.Entries = append(result.Entries, Entry{
			AgencyCode:     row.AgencyCode,
			ExpenseAccount: account,
			Sense:          SenseDebit,
			Amount:         row.Amount,
			PaymentCode:    PaymentCode,
			Label:          entryLabel(row),
			Identifier:     row.Identifier,
		})
		result.Total += row.Amount
	}

	metrics.ObserveGenerate(metrics.ResultSuccess, time.Since(start))
	return result
}

// entryLabel builds the narrative line: tension prefix, invoice period, site
// name, plus the origin period for supplementary invoices.
func entryLabel(row ledger.Row) string {
	prefix := "CIE HT"
	if row.Tension == ledger.TensionLow {
		prefix = "CIE BT"
	}
	label := prefix + " " + row.Period + " " + row.SiteName
	if row.SupplementaryPeriod != "" {
		label += " COMPLEMENTAIRE " + row.SupplementaryPeriod
	}
	return label
}
