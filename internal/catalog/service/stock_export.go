package service

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

var priceChangeHeaders = []string{
	"Product ID", "Product", "SKU", "Old price", "New price", "Change %", "Direction",
}

// ExportPriceChanges 导出价格变动为xlsx
func ExportPriceChanges(report *StockSyncReport, at time.Time) (*excelize.File, string, error) {
	f := excelize.NewFile()
	sheet := "Price changes"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, "", fmt.Errorf("rename sheet: %w", err)
	}

	// 表头样式: 加粗
	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, h := range priceChangeHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for rowIdx, pc := range report.PriceChanges {
		row := rowIdx + 2
		oldPrice, _ := pc.OldPrice.Float64()
		newPrice, _ := pc.NewPrice.Float64()
		percent, _ := pc.PercentChange.Float64()
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), pc.ProductID)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), pc.Product)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), pc.SKU)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), oldPrice)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), newPrice)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), percent)
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), pc.Direction)
	}

	// 底部汇总行
	summaryRow := len(report.PriceChanges) + 3
	summaryStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow), "Total")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", summaryRow), report.Total)
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow+1), "Updated")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", summaryRow+1), report.Updated)
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow+2), "Discontinued")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", summaryRow+2), report.Discontinued)
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow+3), "Errors")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", summaryRow+3), len(report.Errors))
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("A%d", summaryRow+3), summaryStyle)

	colWidths := []float64{12, 40, 24, 12, 12, 10, 12}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("price_changes_%s.xlsx", at.Format("20060102_150405"))
	return f, filename, nil
}
