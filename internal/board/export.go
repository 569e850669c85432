package board

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Órdenes"

var exportHeader = []string{"Orden", "Usuario", "Fecha", "Tipo", "Estado", "Artículos", "Total"}

// Export writes the filtered board as an XLSX workbook.
func (b *Board) Export(w io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}
	for i, h := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return fmt.Errorf("export: header: %w", err)
		}
	}

	for r, o := range b.Filtered() {
		c := NewCard(o)
		date := ""
		if !c.OrderDate.IsZero() {
			date = c.OrderDate.Format("2006-01-02 15:04")
		}
		total, _ := c.Total.Float64()
		row := []any{c.ID, c.UserName, date, c.Facet, c.StatusLabel, c.Items, total}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("export: row %d: %w", r+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write: %w", err)
	}
	return nil
}
