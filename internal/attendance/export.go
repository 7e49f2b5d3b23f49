package attendance

import (
	"context"
	"io"

	"SIKON-backend/internal/platform/xlsx"
)

// maxExportRows caps a single export.
const maxExportRows = 10000

// ExportHistory writes the filtered history as an XLSX workbook.
func (s *Service) ExportHistory(ctx context.Context, actor Actor, q HistoryQuery, w io.Writer) error {
	f, err := s.filter(actor, q)
	if err != nil {
		return err
	}
	f.Limit, f.Offset = maxExportRows, 0

	recs, _, err := s.store.ListRecords(ctx, f)
	if err != nil {
		return err
	}

	sh := xlsx.Sheet{
		Name: "Attendance",
		Header: []string{"Date", "Username", "Full name", "Project", "Location", "Clock in", "Clock out",
			"Status", "Late (min)", "Early leave (min)", "Work (min)", "Valid location", "Notes"},
		Widths: map[int]float64{1: 12, 3: 24, 4: 24, 5: 20, 6: 18, 7: 18, 13: 40},
	}
	for i := range recs {
		r := &recs[i]
		clockOut, work := "", any("")
		if r.ClockOut.Valid {
			clockOut = r.ClockOut.Time.In(s.loc).Format("2006-01-02 15:04")
		}
		if r.WorkMinutes.Valid {
			work = r.WorkMinutes.Int64
		}
		sh.Rows = append(sh.Rows, []any{
			r.AttendanceDate, r.Username, r.FullName, r.ProjectName, r.LocationName.String,
			r.ClockIn.In(s.loc).Format("2006-01-02 15:04"), clockOut,
			r.Status, r.LateMinutes, r.EarlyLeaveMinutes, work, r.IsValidLocation, r.Notes.String,
		})
	}
	return xlsx.Write(w, sh)
}
