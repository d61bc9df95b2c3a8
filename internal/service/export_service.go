package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/innovators/mlms/mlms-backend/internal/repository/storage"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

const (
	scheduleSheet = "Schedule"
	summarySheet  = "Summary"

	// ExportLinkExpiry is how long an uploaded export link stays valid
	ExportLinkExpiry = 48 * time.Hour
)

var ErrExportStorageNotConfigured = errors.New("export storage not configured")

// ScheduleExport is a rendered workbook
type ScheduleExport struct {
	FileName string
	Data     []byte
}

// ExportService renders loan schedules as XLSX workbooks
type ExportService struct {
	loanRepo domain.LoanRepository
	storage  storage.ObjectRepository
}

// NewExportService creates a new ExportService. objects may be nil.
func NewExportService(loanRepo domain.LoanRepository, objects storage.ObjectRepository) *ExportService {
	return &ExportService{
		loanRepo: loanRepo,
		storage:  objects,
	}
}

// CanUpload reports whether exports can be stored and linked
func (s *ExportService) CanUpload() bool {
	return s.storage != nil
}

// ExportSchedule renders the workbook for a stored loan
func (s *ExportService) ExportSchedule(id int32) (*ScheduleExport, error) {
	loan, err := s.loanRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	data, err := BuildScheduleWorkbook(loan)
	if err != nil {
		return nil, err
	}

	return &ScheduleExport{
		FileName: fmt.Sprintf("loan_%d_schedule_%s.xlsx", loan.ID, time.Now().UTC().Format("20060102_150405")),
		Data:     data,
	}, nil
}

// UploadSchedule renders the workbook, stores it and returns a temporary link
func (s *ExportService) UploadSchedule(ctx context.Context, id int32) (string, error) {
	if !s.CanUpload() {
		return "", ErrExportStorageNotConfigured
	}

	export, err := s.ExportSchedule(id)
	if err != nil {
		return "", err
	}

	objectPath := storage.ObjectPath("loans", id, "exports", "schedule", ".xlsx")
	key, err := s.storage.Upload(ctx, objectPath, bytes.NewReader(export.Data), storage.ContentTypeXLSX, int64(len(export.Data)))
	if err != nil {
		return "", fmt.Errorf("failed to upload export: %w", err)
	}

	url, err := s.storage.PresignedURL(ctx, key, ExportLinkExpiry)
	if err != nil {
		return "", fmt.Errorf("failed to sign export link: %w", err)
	}

	log.Info().Int32("loan_id", id).Str("key", key).Msg("Schedule export uploaded")
	return url, nil
}

// BuildScheduleWorkbook writes the installment table and a loan summary sheet
func BuildScheduleWorkbook(loan *domain.Loan) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), scheduleSheet)
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}

	_ = f.SetDocProps(&excelize.DocProperties{
		Title:   fmt.Sprintf("Loan %d repayment schedule", loan.ID),
		Creator: "mlms",
	})

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return nil, err
	}

	headers := []interface{}{"#", "Due Date", "Principal", "Interest", "Amount"}
	if err := f.SetSheetRow(scheduleSheet, "A1", &headers); err != nil {
		return nil, err
	}
	_ = f.SetCellStyle(scheduleSheet, "A1", "E1", headerStyle)

	row := 2
	for _, inst := range loan.Installments {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []interface{}{
			inst.Number,
			inst.DueDate.Format(domain.DateLayout),
			inst.Principal.InexactFloat64(),
			inst.Interest.InexactFloat64(),
			inst.Amount.InexactFloat64(),
		}
		if err := f.SetSheetRow(scheduleSheet, cell, &values); err != nil {
			return nil, err
		}
		row++
	}

	summary := SummarizeSchedule(loan.Installments)
	totalCell, _ := excelize.CoordinatesToCellName(1, row)
	totals := []interface{}{
		"Total",
		"",
		summary.TotalPrincipal.InexactFloat64(),
		summary.TotalInterest.InexactFloat64(),
		summary.TotalAmount.InexactFloat64(),
	}
	if err := f.SetSheetRow(scheduleSheet, totalCell, &totals); err != nil {
		return nil, err
	}
	endCell, _ := excelize.CoordinatesToCellName(5, row)
	_ = f.SetCellStyle(scheduleSheet, "C2", endCell, moneyStyle)
	_ = f.SetCellStyle(scheduleSheet, totalCell, totalCell, headerStyle)
	_ = f.SetColWidth(scheduleSheet, "B", "E", 14)

	summaryRows := [][]interface{}{
		{"Loan ID", loan.ID},
		{"Client ID", loan.ClientID},
		{"Status", string(loan.Status)},
		{"Loan Type", loan.LoanType},
		{"Account", string(loan.Account)},
		{"Principal", loan.Terms.Principal.InexactFloat64()},
		{"Interest Rate (%)", loan.Terms.InterestRate.InexactFloat64()},
		{"Interest Method", string(loan.Terms.InterestMethod)},
		{"Interest Cycle", string(loan.Terms.InterestCycle)},
		{"Repayment Cycle", string(loan.Terms.RepaymentCycle)},
		{"Duration", fmt.Sprintf("%d %s", loan.Terms.Duration, loan.Terms.DurationUnit)},
		{"Release Date", loan.Terms.StartDate.Format(domain.DateLayout)},
		{"Total Interest", loan.TotalInterest.InexactFloat64()},
		{"Deductible Fees", loan.DeductibleFees.InexactFloat64()},
		{"Added Fees", loan.AddedFees.InexactFloat64()},
		{"Disbursed Amount", loan.DisbursedAmount.InexactFloat64()},
		{"Total Repayable", loan.TotalRepayable.InexactFloat64()},
	}
	for i, values := range summaryRows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &values); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 20)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
