package rab

import (
	"context"
	"io"

	"SIKON-backend/internal/platform/xlsx"
)

// Export writes the project's budget lines and a per-category summary as an XLSX workbook.
func (s *Service) Export(ctx context.Context, actor Actor, f Filter, w io.Writer) error {
	list, err := s.List(ctx, actor, f)
	if err != nil {
		return err
	}
	sum, err := s.Summary(ctx, actor, f.ProjectID)
	if err != nil {
		return err
	}

	items := xlsx.Sheet{
		Name:   "RAB",
		Header: []string{"No", "Category", "Type", "Description", "Unit", "Quantity", "Unit price", "Total", "Status", "Notes"},
		Widths: map[int]float64{2: 20, 4: 40, 7: 16, 8: 18, 10: 40},
	}
	for i, it := range list.Items {
		notes := ""
		if it.Notes != nil {
			notes = *it.Notes
		}
		items.Rows = append(items.Rows, []any{
			i + 1, it.Category, it.ItemType, it.Description, it.Unit, it.Quantity, it.UnitPrice, it.TotalPrice, it.Status, notes,
		})
	}
	items.Rows = append(items.Rows, []any{"", "", "", "", "", "", "Grand total", list.GrandTotal})

	summary := xlsx.Sheet{
		Name:   "Summary",
		Header: []string{"Category", "Items", "Total"},
		Widths: map[int]float64{1: 24, 3: 18},
	}
	for _, c := range sum.ByCategory {
		summary.Rows = append(summary.Rows, []any{c.Category, c.Count, c.Total})
	}
	summary.Rows = append(summary.Rows,
		[]any{"All", sum.ItemCount, sum.GrandTotal},
		[]any{"Approved", sum.ByStatus[StatusApproved].Count, sum.ApprovedTotal},
	)
	return xlsx.Write(w, items, summary)
}
