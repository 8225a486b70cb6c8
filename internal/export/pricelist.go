package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"livemenu/internal/models"
	"livemenu/internal/pricing"
)

const priceListSheet = "Price List"

// PriceList names the workbook for the given day.
func (n Naming) PriceList(at time.Time) string {
	return fmt.Sprintf("%s_Price_List_%s.xlsx", n.product(), at.Format("2006-01-02"))
}

// PriceListWorkbook writes the flat price list of snap as an xlsx file.
func PriceListWorkbook(snap models.Snapshot, generatedAt time.Time) ([]byte, error) {
	rows := pricing.Rows(snap)
	width := pricing.MaxCells(rows)
	header := pricing.Header(width)

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(priceListSheet)
	if err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	// Заголовок с датой формирования
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	_ = f.SetCellValue(priceListSheet, "A1", "Price list as of "+generatedAt.Format("02.01.2006 15:04"))
	_ = f.MergeCell(priceListSheet, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(priceListSheet, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, title := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(priceListSheet, cell, title)
		_ = f.SetCellStyle(priceListSheet, cell, cell, headerStyle)
	}

	for r, row := range rows {
		for c, value := range row.Values(width) {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+3)
			_ = f.SetCellValue(priceListSheet, cell, value)
		}
	}

	_ = f.SetColWidth(priceListSheet, "A", "B", 28)
	_ = f.SetColWidth(priceListSheet, "C", "C", 36)
	_ = f.SetColWidth(priceListSheet, "D", "D", 24)
	if width > 0 {
		_ = f.SetColWidth(priceListSheet, "E", lastCol, 16)
	}
	_ = f.SetPanes(priceListSheet, &excelize.Panes{Freeze: true, YSplit: 2, TopLeftCell: "A3", ActivePane: "bottomLeft"})

	// Удаляем стандартный лист
	_ = f.DeleteSheet("Sheet1")

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("error writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}
