package schedule

import (
	"context"
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/arnavshah/workforce-api/pkg/models"
)

const exportSheet = "Schedule"

// Export writes the readable assignments in [q.From, q.To] as a spreadsheet
// with one row per employee and one column per date.
func (s *Service) Export(ctx context.Context, p models.Principal, q AssignmentQuery, w io.Writer) error {
	dates, err := models.DateRange(q.From, q.To)
	if err != nil {
		return models.InvariantViolation(err.Error())
	}
	if len(dates) > MaxPeriodDays {
		return models.InvariantViolation("export period is too long")
	}
	rows, err := s.Assignments(ctx, p, q)
	if err != nil {
		return err
	}
	shifts, err := s.Shifts(ctx)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(shifts))
	for _, sh := range shifts {
		names[sh.ID] = sh.Name
	}

	byEmployee := make(map[string]map[string]string)
	var order []string
	for _, a := range rows {
		if byEmployee[a.EmployeeID] == nil {
			byEmployee[a.EmployeeID] = make(map[string]string)
			order = append(order, a.EmployeeID)
		}
		label := names[a.ShiftID]
		if label == "" {
			label = a.ShiftID
		}
		byEmployee[a.EmployeeID][a.Date] = label
	}
	emps, err := s.store.EmployeesByID(ctx, order)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return errors.Wrap(err, "rename sheet")
	}

	header := []interface{}{"Employee ID", "Name", "Division", "Department"}
	for _, d := range dates {
		header = append(header, d)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return errors.Wrap(err, "write header")
	}

	// rows arrive ordered by date first, so sort employees by id here
	sort.Strings(order)
	for i, id := range order {
		row := []interface{}{id, "", "", ""}
		if e := emps[id]; e != nil {
			if e.User != nil {
				row[1] = e.User.FullName
			}
			row[2] = e.DivisionID
			row[3] = e.Dept()
		}
		for _, d := range dates {
			row = append(row, byEmployee[id][d])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "cell name")
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return errors.Wrapf(err, "write row %s", id)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "write spreadsheet")
	}
	return nil
}
