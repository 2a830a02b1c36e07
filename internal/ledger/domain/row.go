package ledger

const (
	TensionLow  = "BASSE"
	TensionHigh = "HAUTE"
)

const (
	StatusActive   = "ACTIF"
	StatusInactive = "INACTIF"
)

// DefaultExpenseAccount is the accounting charge account applied when a site
// has no explicit account. Kept as text so the leading digits survive
// spreadsheet round trips.
const DefaultExpenseAccount = "62183464"

// InvoiceType is the invoice subtype code carried by HT batch files.
type InvoiceType string

const (
	TypeNormal        InvoiceType = "E0"
	TypeSupplementary InvoiceType = "E1"
	TypeCreditNote    InvoiceType = "E5"
)

// Row is one ledger record: a site billed for a period under one invoice
// subtype. A normal, a supplementary and a credit-note row may coexist for
// the same site and period.
type Row struct {
	UnitCode            string
	RegionCode          string
	AgencyCode          string
	SiteName            string
	Identifier          string
	Tension             string
	Period              string
	Consumption         float64
	Amount              float64
	SupplementaryPeriod string
	Status              string
	SubscribedPower     float64
	ReachedPower        float64
	ExpenseAccount      string
}

// Type derives the invoice subtype from the row content: negative amount is a
// credit note, a filled supplementary period marks a supplementary invoice,
// anything else is a normal emission.
func (r Row) Type() InvoiceType {
	if r.Amount < 0 {
		return TypeCreditNote
	}
	if r.SupplementaryPeriod != "" {
		return TypeSupplementary
	}
	return TypeNormal
}

// Discriminant qualifies the (identifier, period) key so that the three
// subtypes never collapse into each other during dedup or upsert.
func (r Row) Discriminant() string {
	switch r.Type() {
	case TypeCreditNote:
		return "E5"
	case TypeSupplementary:
		return "E1_" + r.SupplementaryPeriod
	default:
		return "E0"
	}
}

// Key is the full uniqueness key of a row.
func (r Row) Key() string {
	return r.Identifier + "|" + r.Period + "|" + r.Discriminant()
}

// RowParams carries the named fields accepted by NewRow.
type RowParams struct {
	UnitCode            string
	RegionCode          string
	AgencyCode          string
	SiteName            string
	Identifier          string
	Tension             string
	Period              string
	Consumption         float64
	Amount              float64
	SupplementaryPeriod string
	Status              string
	SubscribedPower     float64
	ReachedPower        float64
	ExpenseAccount      string
}

// NewRow builds a ledger row from named fields, normalizing the identifier
// and applying defaults for status and expense account.
func NewRow(p RowParams) (Row, error) {
	identifier := NormalizeIdentifier(p.Identifier)
	if identifier == "" {
		return Row{}, ErrEmptyIdentifier
	}
	if p.Tension != TensionLow && p.Tension != TensionHigh {
		return Row{}, ErrInvalidTension
	}
	status := p.Status
	if status == "" {
		status = StatusActive
	}
	account := p.ExpenseAccount
	if account == "" {
		account = DefaultExpenseAccount
	}
	return Row{
		UnitCode:            p.UnitCode,
		RegionCode:          p.RegionCode,
		AgencyCode:          p.AgencyCode,
		SiteName:            p.SiteName,
		Identifier:          identifier,
		Tension:             p.Tension,
		Period:              p.Period,
		Consumption:         p.Consumption,
		Amount:              p.Amount,
		SupplementaryPeriod: p.SupplementaryPeriod,
		Status:              status,
		SubscribedPower:     p.SubscribedPower,
		ReachedPower:        p.ReachedPower,
		ExpenseAccount:      account,
	}, nil
}
