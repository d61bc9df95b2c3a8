package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/innovators/mlms/mlms-backend/internal/repository/storage"
	"github.com/innovators/mlms/mlms-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func storedLoan(t *testing.T) (*testutil.MockLoanRepository, *domain.Loan) {
	t.Helper()
	svc, repo, _ := newLoanFixture()
	data := validLoanData()
	data.Terms.Duration = 3
	data.Terms.RepaymentCycle = domain.RepaymentMonthly

	loan, err := svc.AddLoan(data)
	require.NoError(t, err)
	return repo, loan
}

func TestExportSchedule_Workbook(t *testing.T) {
	repo, loan := storedLoan(t)
	svc := NewExportService(repo, nil)

	export, err := svc.ExportSchedule(loan.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(export.FileName, "loan_1_schedule_"))
	assert.True(t, strings.HasSuffix(export.FileName, ".xlsx"))

	f, err := excelize.OpenReader(bytes.NewReader(export.Data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Schedule")
	require.NoError(t, err)
	require.Len(t, rows, 5) // header, 3 installments, totals

	assert.Equal(t, []string{"#", "Due Date", "Principal", "Interest", "Amount"}, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "2024-02-15", rows[1][1])
	assert.Equal(t, "2024-04-15", rows[3][1])
	assert.Equal(t, "Total", rows[4][0])
	assert.Contains(t, rows[4][4], "1100")

	status, err := f.GetCellValue("Summary", "B3")
	require.NoError(t, err)
	assert.Equal(t, "Processing", status)
}

func TestExportSchedule_NotFound(t *testing.T) {
	svc := NewExportService(testutil.NewMockLoanRepository(), nil)

	_, err := svc.ExportSchedule(9)
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
}

func TestUploadSchedule(t *testing.T) {
	repo, loan := storedLoan(t)
	objects := testutil.NewMockObjectRepository()
	svc := NewExportService(repo, objects)

	url, err := svc.UploadSchedule(context.Background(), loan.ID)
	require.NoError(t, err)

	keys := objects.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "loans/1/exports/"))
	assert.True(t, strings.HasSuffix(keys[0], "_schedule.xlsx"))
	assert.Equal(t, storage.ContentTypeXLSX, objects.ContentTypes[keys[0]])
	assert.Contains(t, url, keys[0])
}

func TestUploadSchedule_NotConfigured(t *testing.T) {
	repo, loan := storedLoan(t)
	svc := NewExportService(repo, nil)

	assert.False(t, svc.CanUpload())
	_, err := svc.UploadSchedule(context.Background(), loan.ID)
	assert.ErrorIs(t, err, ErrExportStorageNotConfigured)
}
