package handler

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/innovators/mlms/mlms-backend/internal/repository/storage"
	"github.com/innovators/mlms/mlms-backend/internal/service"
	"github.com/innovators/mlms/mlms-backend/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const createLoanBody = `{
	"clientId": 1,
	"status": "processing",
	"account": "Mobile Money",
	"principal": "1000",
	"duration": 1,
	"durationUnit": "month",
	"interestRate": "10",
	"interestMethod": "flat",
	"interestCycle": "Once",
	"repaymentCycle": "Once",
	"startDate": "2024-01-15",
	"fees": [
		{"name": "Processing", "type": "Fixed Amount", "value": "50", "isDeductible": true},
		{"name": "Insurance", "type": "Percentage Based", "value": "2"}
	]
}`

type loanFixture struct {
	handler   *LoanHandler
	loans     *testutil.MockLoanRepository
	objects   *testutil.MockObjectRepository
	publisher *testutil.MockEventPublisher
}

func newLoanFixture(withStorage bool) *loanFixture {
	loans := testutil.NewMockLoanRepository()
	clients := testutil.NewMockClientRepository()
	clients.AddClient(&domain.Client{ID: 1, Name: "Ayesha", RiskLevel: domain.RiskLow})
	publisher := &testutil.MockEventPublisher{}

	loanService := service.NewLoanService(loans, clients)
	loanService.SetEventPublisher(publisher)

	f := &loanFixture{loans: loans, publisher: publisher}
	var exports *service.ExportService
	if withStorage {
		f.objects = testutil.NewMockObjectRepository()
		exports = service.NewExportService(loans, f.objects)
	} else {
		exports = service.NewExportService(loans, nil)
	}
	f.handler = NewLoanHandler(loanService, exports)
	return f
}

func (f *loanFixture) createLoan(t *testing.T, e *echo.Echo) LoanResponse {
	t.Helper()
	c, rec := newJSONContext(e, http.MethodPost, "/api/v1/loans", createLoanBody)
	require.NoError(t, f.handler.CreateLoan(c))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[LoanResponse](t, rec)
}

func TestCreateLoan_Success(t *testing.T) {
	e := echo.New()
	f := newLoanFixture(false)

	resp := f.createLoan(t, e)

	assert.Equal(t, int32(1), resp.ID)
	assert.Equal(t, "Processing", resp.Status)
	assert.Equal(t, "Personal", resp.LoanType)
	assert.Equal(t, "Mobile Money", resp.Account)
	assert.Equal(t, "Months", resp.DurationUnit)
	assert.Equal(t, "Flat Interest", resp.InterestMethod)
	assert.Equal(t, "1000.00", resp.Principal)
	assert.Equal(t, 1, resp.Installments)
	require.NotNil(t, resp.MaturityDate)
	assert.Equal(t, "2024-02-15", *resp.MaturityDate)
	assert.Equal(t, "100.00", resp.TotalInterest)
	assert.Equal(t, "50.00", resp.DeductibleFees)
	assert.Equal(t, "20.00", resp.AddedFees)
	assert.Equal(t, "950.00", resp.DisbursedAmount)
	assert.Equal(t, "1120.00", resp.TotalRepayable)
	require.Len(t, resp.Fees, 2)
	assert.NotEmpty(t, resp.Fees[0].ID)

	assert.Equal(t, []string{"loan.created"}, f.publisher.Types())
}

func TestCreateLoan_UnknownClient(t *testing.T) {
	e := echo.New()
	f := newLoanFixture(false)

	body := strings.Replace(createLoanBody, `"clientId": 1`, `"clientId": 99`, 1)
	c, rec := newJSONContext(e, http.MethodPost, "/api/v1/loans", body)

	require.NoError(t, f.handler.CreateLoan(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, f.loans.Loans)
}

func TestCreateLoan_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		from, to  string
		wantField string
	}{
		{"missing borrower", `"clientId": 1`, `"clientId": 0`, "clientId"},
		{"unknown account", `"Mobile Money"`, `"Cheque"`, "account"},
		{"unknown status", `"processing"`, `"pending"`, "status"},
		{"zero principal", `"principal": "1000"`, `"principal": "0"`, "amount"},
		{"negative fee", `"value": "50"`, `"value": "-50"`, "value"},
		{"zero duration", `"duration": 1`, `"duration": 0`, "duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			f := newLoanFixture(false)

			body := strings.Replace(createLoanBody, tt.from, tt.to, 1)
			c, rec := newJSONContext(e, http.MethodPost, "/api/v1/loans", body)

			require.NoError(t, f.handler.CreateLoan(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, problemFields(t, rec), tt.wantField)
			assert.Empty(t, f.loans.Loans)
		})
	}
}

func TestGetLoans_Filters(t *testing.T) {
	e := echo.New()
	f := newLoanFixture(false)
	f.createLoan(t, e)
	f.createLoan(t, e)

	c, rec := newJSONContext(e, http.MethodPatch, "/api/v1/loans/2/status", `{"status": "active"}`)
	require.NoError(t, f.handler.UpdateLoanStatus(withParams(c, "id", "2")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Active", decodeBody[LoanResponse](t, rec).Status)

	c, rec = newJSONContext(e, http.MethodGet, "/api/v1/loans?status=Active", "")
	require.NoError(t, f.handler.GetLoans(c))
	require.Equal(t, http.StatusOK, rec.Code)
	active := decodeBody[[]LoanResponse](t, rec)
	require.Len(t, active, 1)
	assert.Equal(t, int32(2), active[0].ID)

	c, rec = newJSONContext(e, http.MethodGet, "/api/v1/loans?status=all&clientId=1", "")
	require.NoError(t, f.handler.GetLoans(c))
	assert.Len(t, decodeBody[[]LoanResponse](t, rec), 2)

	c, rec = newJSONContext(e, http.MethodGet, "/api/v1/loans?status=pending", "")
	require.NoError(t, f.handler.GetLoans(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, []string{"loan.created", "loan.created", "loan.updated"}, f.publisher.Types())
}

func TestUpdateLoanStatus_NotFound(t *testing.T) {
	e := echo.New()
	f := newLoanFixture(false)

	c, rec := newJSONContext(e, http.MethodPatch, "/api/v1/loans/5/status", `{"status": "Denied"}`)
	require.NoError(t, f.handler.UpdateLoanStatus(withParams(c, "id", "5")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetLoanSchedule(t *testing.T) {
	e := echo.New()
	f := newLoanFixture(false)
	f.createLoan(t, e)

	c, rec := newJSONContext(e, http.MethodGet, "/api/v1/loans/1/schedule", "")
	require.NoError(t, f.handler.GetSchedule(withParams(c, "id", "1")))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[ScheduleResponse](t, rec)
	require.Len(t, resp.Installments, 1)
	assert.Equal(t, "1100.00", resp.Installments[0].Amount)
	assert.Equal(t, "1120.00", resp.TotalRepayable)
	assert.Equal(t, "950.00", resp.Fees.Disbursed)

	c, rec = newJSONContext(e, http.MethodGet, "/api/v1/loans/2/schedule", "")
	require.NoError(t, f.handler.GetSchedule(withParams(c, "id", "2")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportSchedule_Streams(t *testing.T) {
	e := echo.New()
	f := newLoanFixture(false)
	f.createLoan(t, e)

	c, rec := newJSONContext(e, http.MethodGet, "/api/v1/loans/1/schedule/export", "")
	require.NoError(t, f.handler.ExportSchedule(withParams(c, "id", "1")))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, storage.ContentTypeXLSX, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "loan_1_schedule_")

	wb, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer wb.Close()
	amount, err := wb.GetCellValue("Schedule", "E2")
	require.NoError(t, err)
	assert.Equal(t, "1100.00", amount)
}

func TestExportSchedule_Upload(t *testing.T) {
	e := echo.New()

	t.Run("storage not configured", func(t *testing.T) {
		f := newLoanFixture(false)
		f.createLoan(t, e)

		c, rec := newJSONContext(e, http.MethodGet, "/api/v1/loans/1/schedule/export?upload=true", "")
		require.NoError(t, f.handler.ExportSchedule(withParams(c, "id", "1")))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("uploads and links", func(t *testing.T) {
		f := newLoanFixture(true)
		f.createLoan(t, e)

		c, rec := newJSONContext(e, http.MethodGet, "/api/v1/loans/1/schedule/export?upload=true", "")
		require.NoError(t, f.handler.ExportSchedule(withParams(c, "id", "1")))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		link := decodeBody[ExportLinkResponse](t, rec)
		assert.True(t, strings.HasPrefix(link.URL, "https://storage.test/loans/1/exports/"), link.URL)
		assert.NotEmpty(t, link.ExpiresAt)
		require.Len(t, f.objects.Keys(), 1)
		assert.Equal(t, storage.ContentTypeXLSX, f.objects.ContentTypes[f.objects.Keys()[0]])
	})
}
