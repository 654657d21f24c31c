package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/opsdesk-io/opsdesk/modules/core/domain/aggregates/user"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/aggregates/schedule"
	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

var ErrExportRangeInvalid = serrors.Validation("EXPORT_RANGE_INVALID", "export range must span at least one day")

const rosterSheet = "Roster"

// ExportService renders a per-day on-call roster as an Excel workbook.
type ExportService struct {
	schedules schedule.Repository
	resolver  *OnCallService
	users     user.Repository
}

func NewExportService(
	schedules schedule.Repository,
	resolver *OnCallService,
	users user.Repository,
) *ExportService {
	return &ExportService{
		schedules: schedules,
		resolver:  resolver,
		users:     users,
	}
}

// RosterWorkbook resolves the on-call assignment for each local day in
// [from, to] at noon schedule time and writes one row per day.
func (s *ExportService) RosterWorkbook(ctx context.Context, scheduleID uuid.UUID, from, to time.Time) (*excelize.File, error) {
	if to.Before(from) {
		return nil, ErrExportRangeInvalid
	}

	sched, err := s.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(sched.Timezone())
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), rosterSheet); err != nil {
		return nil, err
	}
	headers := []string{"Date", "On-call", "Email", "Source"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(rosterSheet, cell, h); err != nil {
			return nil, err
		}
	}

	start := from.In(loc)
	day := time.Date(start.Year(), start.Month(), start.Day(), 12, 0, 0, 0, loc)
	rowNum := 2
	for !day.After(to.In(loc)) {
		assignment, err := s.resolver.WhoIsOnCall(ctx, scheduleID, day)
		if err != nil {
			return nil, err
		}

		name := assignment.UserID.String()
		email := ""
		if u, uErr := s.users.GetByID(ctx, assignment.UserID); uErr == nil && !u.IsZero() {
			name = u.DisplayName()
			email = u.Email()
		}

		row := []any{day.Format("2006-01-02"), name, email, string(assignment.Source)}
		for i, v := range row {
			cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(rosterSheet, cell, v); err != nil {
				return nil, err
			}
		}
		rowNum++
		day = day.AddDate(0, 0, 1)
	}

	f.SetActiveSheet(0)
	return f, nil
}

// RosterFilename builds the download name for a schedule export.
func RosterFilename(scheduleName string, from, to time.Time) string {
	return fmt.Sprintf("roster-%s-%s-%s.xlsx", scheduleName, from.Format("20060102"), to.Format("20060102"))
}
