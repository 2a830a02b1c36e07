package reconcile

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// BuildUnmatchedXLSX renders the unregistered invoice rows for the accounting
// team to review and onboard.
func BuildUnmatchedXLSX(report Report) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "Factures_Non_Enregistrees"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"IDENTIFIANT", "PERIODE", "TYPE", "MONTANT", "CONSO", "DATE_COMPLEMENTAIRE"}
	for i, name := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, name)
	}
	for i, row := range report.Unmatched {
		values := []any{row.Identifier, row.Period, row.TypeCode, row.Amount, row.Consumption, row.SupplementaryPeriod}
		for j, v := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReportPDF renders a one-page reconciliation summary.
func BuildReportPDF(report Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Controle des factures CIE")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Periode: %s", report.Period))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Tension: %s", report.Tension))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Genere: %s", time.Now().Format("02/01/2006 15:04")))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("Total fichier: %.0f FCFA", report.BatchTotal))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Enregistrees: %d lignes, %.0f FCFA", len(report.Matched), report.MatchedTotal))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Non enregistrees: %d lignes, %.0f FCFA", len(report.Unmatched), report.UnmatchedTotal))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Complementaires en attente: %d lignes, %.0f FCFA", len(report.PendingManual), report.PendingTotal))
	pdf.Ln(8)

	if report.CoherenceOK {
		pdf.Cell(0, 6, "Coherence: OK")
	} else {
		pdf.Cell(0, 6, fmt.Sprintf("Coherence: ECART DE %.2f FCFA", report.Difference))
	}
	pdf.Ln(5)
	if report.LedgerWarning {
		pdf.Cell(0, 6, fmt.Sprintf("Avertissement: ecart de %.0f FCFA avec la base (%.0f FCFA enregistres)",
			report.LedgerGap, report.LedgerTotal))
		pdf.Ln(5)
	}

	if len(report.Unmatched) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(50, 6, "Identifiant", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Type", "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, "Montant", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, row := range report.Unmatched {
			code := row.TypeCode
			if code == "" {
				code = "E0"
			}
			pdf.CellFormat(50, 6, row.Identifier, "1", 0, "C", false, 0, "")
			pdf.CellFormat(30, 6, code, "1", 0, "C", false, 0, "")
			pdf.CellFormat(50, 6, fmt.Sprintf("%.0f", row.Amount), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
