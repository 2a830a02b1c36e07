package accounting

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	ledger "cie-ledger/internal/ledger/domain"
)

const (
	journalSheet  = "Piece_Comptable"
	headerRow     = 7
	amountColumn  = 4 // MONTANT
	amount2Column = 12
	labelColumn   = 9
	label2Column  = 16
)

// Per-tension color theme: title band, column header band, subtitle text.
type theme struct {
	title, columns, subtitle string
}

func themeFor(tension string) theme {
	if tension == ledger.TensionHigh {
		return theme{title: "C65911", columns: "ED7D31", subtitle: "C65911"}
	}
	return theme{title: "2F5597", columns: "4472C4", subtitle: "2F5597"}
}

var columnWidths = map[string]float64{
	"CODE AGENCE":            15,
	"COMPTE DE CHARGES":      20,
	"SENS":                   10,
	"MONTANT":                18,
	"CODE PAYT Lib 1-5":      18,
	"CODE CHARGE Lib 6-10":   18,
	"TYPE DEP Lib 11":        15,
	"MATR OBJ Lib 12-19":     18,
	"LIBELLE COMPLEMENTAIRE": 50,
	"CODE AG":                12,
	"SENS_":                  10,
	"MONTANT_":               18,
	"CODE FOURNISSEUR":       18,
	"FOURNISSEUR":            25,
	"CONTREPARTIE":           20,
	"LIB COMPLEMENTAIRE":     30,
	"IDENTIFIANT":            20,
}

// BuildJournalXLSX renders the journal in the layout the finance team files:
// title band, edition date and totals, the 17 columns from row 7, and a recap
// line after the data.
func BuildJournalXLSX(result GenerateResult) ([]byte, error) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", journalSheet)
	colors := themeFor(result.Tension)
	editedAt := time.Now().Format("02/01/2006 15:04")

	lastCol, err := excelize.ColumnNumberToName(len(EntryColumns))
	if err != nil {
		return nil, err
	}

	titleStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{colors.title}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Size: 16, Color: "FFFFFF", Family: "Calibri"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}
	subtitleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: colors.subtitle, Family: "Calibri"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}
	infoStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 10, Family: "Calibri"},
	})
	if err != nil {
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{colors.columns}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Size: 10, Color: "FFFFFF", Family: "Calibri"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    thinBorder(),
	})
	if err != nil {
		return nil, err
	}
	cellStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 10, Family: "Calibri"},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
		Border:    thinBorder(),
	})
	if err != nil {
		return nil, err
	}
	amountFmt := "#,##0"
	amountStyle, err := f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Size: 10, Family: "Calibri"},
		Alignment:    &excelize.Alignment{Horizontal: "right", Vertical: "center"},
		Border:       thinBorder(),
		CustomNumFmt: &amountFmt,
	})
	if err != nil {
		return nil, err
	}
	labelStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 10, Family: "Calibri"},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center", WrapText: true},
		Border:    thinBorder(),
	})
	if err != nil {
		return nil, err
	}
	recapStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"F2F2F2"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Size: 11, Family: "Calibri"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    mediumBorder(),
	})
	if err != nil {
		return nil, err
	}

	_ = f.MergeCell(journalSheet, "A1", lastCol+"2")
	_ = f.SetCellValue(journalSheet, "A1", "COMPAGNIE IVOIRIENNE D'ELECTRICITE (CIE)")
	_ = f.SetCellStyle(journalSheet, "A1", lastCol+"2", titleStyle)
	_ = f.SetRowHeight(journalSheet, 1, 25)
	_ = f.SetRowHeight(journalSheet, 2, 25)

	subtitle := "PIECE COMPTABLE"
	switch result.Tension {
	case ledger.TensionLow:
		subtitle += " BASSE TENSION (BT)"
	case ledger.TensionHigh:
		subtitle += " HAUTE TENSION (HT)"
	}
	_ = f.MergeCell(journalSheet, "A3", lastCol+"3")
	_ = f.SetCellValue(journalSheet, "A3", subtitle)
	_ = f.SetCellStyle(journalSheet, "A3", lastCol+"3", subtitleStyle)
	_ = f.SetRowHeight(journalSheet, 3, 20)

	_ = f.SetCellValue(journalSheet, "A4", "Date d'edition:")
	_ = f.SetCellValue(journalSheet, "B4", editedAt)
	_ = f.SetCellValue(journalSheet, "D4", "Montant Total:")
	_ = f.SetCellValue(journalSheet, "E4", formatAmount(result.Total))
	_ = f.SetCellValue(journalSheet, "A5", "Nombre de lignes:")
	_ = f.SetCellValue(journalSheet, "B5", len(result.Entries))
	_ = f.SetCellStyle(journalSheet, "A4", "A5", infoStyle)
	_ = f.SetCellStyle(journalSheet, "D4", "D4", infoStyle)
	_ = f.SetRowHeight(journalSheet, 6, 5)

	for i, name := range EntryColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, headerRow)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(journalSheet, cell, name)
		col, _ := excelize.ColumnNumberToName(i + 1)
		width := columnWidths[name]
		if width == 0 {
			width = 15
		}
		_ = f.SetColWidth(journalSheet, col, col, width)
	}
	headerLast, _ := excelize.CoordinatesToCellName(len(EntryColumns), headerRow)
	_ = f.SetCellStyle(journalSheet, "A"+strconv.Itoa(headerRow), headerLast, headerStyle)
	_ = f.SetRowHeight(journalSheet, headerRow, 30)

	for i, entry := range result.Entries {
		rowNum := headerRow + 1 + i
		for j, value := range entry.Values() {
			cell, err := excelize.CoordinatesToCellName(j+1, rowNum)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(journalSheet, cell, value)
			switch j + 1 {
			case amountColumn, amount2Column:
				_ = f.SetCellStyle(journalSheet, cell, cell, amountStyle)
			case labelColumn, label2Column:
				_ = f.SetCellStyle(journalSheet, cell, cell, labelStyle)
			default:
				_ = f.SetCellStyle(journalSheet, cell, cell, cellStyle)
			}
		}
	}

	recapRow := headerRow + len(result.Entries) + 2
	_ = f.SetCellValue(journalSheet, "A"+strconv.Itoa(recapRow), "Date d'edition:")
	_ = f.SetCellValue(journalSheet, "B"+strconv.Itoa(recapRow), editedAt)
	_ = f.SetCellValue(journalSheet, "D"+strconv.Itoa(recapRow), "MONTANT TOTAL:")
	_ = f.SetCellValue(journalSheet, "E"+strconv.Itoa(recapRow), formatAmount(result.Total))
	for _, col := range []string{"A", "B", "D", "E"} {
		cell := col + strconv.Itoa(recapRow)
		_ = f.SetCellStyle(journalSheet, cell, cell, recapStyle)
	}
	_ = f.SetRowHeight(journalSheet, recapRow, 25)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func thinBorder() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
}

func mediumBorder() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "000000", Style: 2},
		{Type: "right", Color: "000000", Style: 2},
		{Type: "top", Color: "000000", Style: 2},
		{Type: "bottom", Color: "000000", Style: 2},
	}
}

// formatAmount renders a CFA amount with thousands separators, no decimals.
func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	if neg {
		out = append([]byte{'-'}, out...)
	}
	return fmt.Sprintf("%s FCFA", out)
}
