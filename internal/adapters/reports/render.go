package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"inventario/internal/core"
	"inventario/pkg/domain"
)

// Kind selects which table an export renders.
type Kind string

const (
	KindInventory Kind = "inventory"
	KindHistory   Kind = "history"
)

// Valid reports whether k is a known export kind.
func (k Kind) Valid() bool { return k == KindInventory || k == KindHistory }

// Format is an artifact encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// Valid reports whether f is a supported format.
func (f Format) Valid() bool { return f == FormatXLSX || f == FormatCSV }

// ContentType returns the media type of f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

var (
	inventoryColumns = []string{"id", "name", "serial_number", "category", "status", "location", "rack"}
	historyColumns   = []string{"id", "date", "user_email", "destination", "items_summary", "device_info"}
)

// table is the tabular form shared by every renderer.
type table struct {
	sheet   string
	columns []string
	rows    [][]any
}

func buildTable(kind Kind, inv core.Inventory) (table, error) {
	switch kind {
	case KindInventory:
		return inventoryTable(inv), nil
	case KindHistory:
		return historyTable(inv), nil
	default:
		return table{}, fmt.Errorf("unknown export kind %s", kind)
	}
}

// inventoryTable lists every item, racks first followed by their children,
// with derived status and effective location.
func inventoryTable(inv core.Inventory) table {
	t := table{sheet: "Inventario", columns: inventoryColumns}
	byID := make(map[int64]domain.Equipment, len(inv.Equipment))
	for _, item := range inv.Equipment {
		byID[item.ID] = item
	}
	add := func(item domain.Equipment) {
		rack := ""
		if item.ParentID != nil {
			rack = byID[*item.ParentID].Name
		}
		t.rows = append(t.rows, []any{
			item.ID,
			item.Name,
			item.SerialNumber,
			string(item.Category),
			string(domain.DisplayStatus(inv.Equipment, item)),
			domain.EffectiveLocation(inv.Equipment, item),
			rack,
		})
	}
	for _, item := range domain.TopLevel(inv.Equipment, nil) {
		add(item)
		for _, child := range domain.ChildrenOf(inv.Equipment, item.ID) {
			add(child)
		}
	}
	// orphans whose rack vanished still get a row
	for _, item := range inv.Equipment {
		if item.ParentID != nil {
			if _, ok := byID[*item.ParentID]; !ok {
				add(item)
			}
		}
	}
	return t
}

func historyTable(inv core.Inventory) table {
	t := table{sheet: "Historial", columns: historyColumns}
	for _, rec := range inv.History {
		t.rows = append(t.rows, []any{
			rec.ID,
			rec.Date.UTC().Format(time.RFC3339),
			rec.UserEmail,
			rec.Destination,
			rec.ItemsSummary,
			rec.DeviceInfo,
		})
	}
	return t
}

func render(format Format, t table) ([]byte, error) {
	switch format {
	case FormatCSV:
		return renderCSV(t)
	case FormatXLSX:
		return renderXLSX(t)
	default:
		return nil, fmt.Errorf("unsupported export format %s", format)
	}
}

func renderCSV(t table) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(t.columns); err != nil {
		return nil, err
	}
	for _, row := range t.rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = formatValue(v)
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderXLSX(t table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", t.sheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}
	for col, name := range t.columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(t.sheet, cell, name); err != nil {
			return nil, err
		}
	}
	for r, row := range t.rows {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(t.sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	last, err := excelize.CoordinatesToCellName(len(t.columns), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(t.sheet, "A1", last, bold); err != nil {
		return nil, err
	}
	if err := f.SetPanes(t.sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprint(val)
	}
}
