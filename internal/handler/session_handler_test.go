package handler

import (
	"net/http"
	"testing"

	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/innovators/mlms/mlms-backend/internal/service"
	"github.com/innovators/mlms/mlms-backend/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionFixture struct {
	handler *SessionHandler
	loans   *testutil.MockLoanRepository
	scorer  *testutil.MockRiskScorer
}

func newSessionFixture() *sessionFixture {
	loans := testutil.NewMockLoanRepository()
	clients := testutil.NewMockClientRepository()
	clients.AddClient(&domain.Client{ID: 1, Name: "Ayesha", RiskLevel: domain.RiskLow})
	scorer := &testutil.MockRiskScorer{Score: 0.25}

	sessions := service.NewSessionService(
		testutil.NewMockSessionRepository(),
		service.NewLoanService(loans, clients),
		clients,
		scorer,
	)
	return &sessionFixture{handler: NewSessionHandler(sessions), loans: loans, scorer: scorer}
}

func (f *sessionFixture) create(t *testing.T, e *echo.Echo) SessionResponse {
	t.Helper()
	c, rec := newJSONContext(e, http.MethodPost, "/api/v1/sessions", "")
	require.NoError(t, f.handler.CreateSession(c))
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeBody[SessionResponse](t, rec)
}

func (f *sessionFixture) setView(t *testing.T, e *echo.Echo, id, view string) SessionResponse {
	t.Helper()
	c, rec := newJSONContext(e, http.MethodPut, "/api/v1/sessions/"+id+"/view", `{"view": "`+view+`"}`)
	require.NoError(t, f.handler.SetView(withParams(c, "id", id)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody[SessionResponse](t, rec)
}

func TestSession_AddLoanFlow(t *testing.T) {
	e := echo.New()
	f := newSessionFixture()

	session := f.create(t, e)
	assert.Equal(t, "welcome", session.View)
	assert.Equal(t, "Processing", session.Form.Status)
	assert.Empty(t, session.Fees)

	session = f.setView(t, e, session.ID, "addLoan")
	assert.Equal(t, "addLoan", session.View)
	assert.Equal(t, "loans", session.NavSection)

	c, rec := newJSONContext(e, http.MethodPut, "/api/v1/sessions/"+session.ID+"/fields", `{"fields": {
		"clientId": "1",
		"amount": "1000",
		"releaseDate": "2024-01-15",
		"duration": "1",
		"durationPeriod": "months",
		"interestMethod": "flat",
		"interestRate": "10",
		"interestCycle": "once",
		"repaymentCycle": "once",
		"account": "mobile money"
	}}`)
	require.NoError(t, f.handler.SetFields(withParams(c, "id", session.ID)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	session = decodeBody[SessionResponse](t, rec)
	assert.Equal(t, int32(1), session.Form.ClientID)
	assert.Equal(t, "Months", session.Form.DurationPeriod)
	assert.Equal(t, "Mobile Money", session.Form.Account)

	c, rec = newJSONContext(e, http.MethodPost, "/api/v1/sessions/"+session.ID+"/fees",
		`{"name": "Processing", "type": "fixed", "value": "50", "isDeductible": true}`)
	require.NoError(t, f.handler.AddFee(withParams(c, "id", session.ID)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	added := decodeBody[AddFeeResponse](t, rec)
	assert.Equal(t, "Fixed Amount", added.Fee.Type)
	require.Len(t, added.Session.Fees, 1)

	c, rec = newJSONContext(e, http.MethodPost, "/api/v1/sessions/"+session.ID+"/risk-score", "")
	require.NoError(t, f.handler.RequestRiskScore(withParams(c, "id", session.ID)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	scored := decodeBody[SessionResponse](t, rec)
	require.NotNil(t, scored.RiskLevel)
	assert.Equal(t, "Low", *scored.RiskLevel)
	assert.Equal(t, 1, f.scorer.Calls())

	c, rec = newJSONContext(e, http.MethodGet, "/api/v1/sessions/"+session.ID+"/schedule", "")
	require.NoError(t, f.handler.PreviewSchedule(withParams(c, "id", session.ID)))
	require.Equal(t, http.StatusOK, rec.Code)
	preview := decodeBody[ScheduleResponse](t, rec)
	require.Len(t, preview.Installments, 1)
	assert.Equal(t, "2024-02-15", preview.Installments[0].DueDate)
	assert.Equal(t, "950.00", preview.Fees.Disbursed)

	c, rec = newJSONContext(e, http.MethodPost, "/api/v1/sessions/"+session.ID+"/submit", "")
	require.NoError(t, f.handler.Submit(withParams(c, "id", session.ID)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	submitted := decodeBody[SubmitResponse](t, rec)
	assert.Equal(t, "loans", submitted.Session.View)
	assert.Empty(t, submitted.Session.Fees)
	assert.Nil(t, submitted.Session.RiskLevel)
	assert.Equal(t, "1100.00", submitted.Loan.TotalRepayable)
	assert.Equal(t, "1000.00", submitted.Loan.Principal)
	assert.Equal(t, "Mobile Money", submitted.Loan.Account)
	assert.Len(t, f.loans.Loans, 1)
}

func TestSession_FormActionsRequireAddLoanView(t *testing.T) {
	e := echo.New()
	f := newSessionFixture()
	session := f.create(t, e)

	c, rec := newJSONContext(e, http.MethodPut, "/api/v1/sessions/"+session.ID+"/fields", `{"fields": {"amount": "500"}}`)
	require.NoError(t, f.handler.SetFields(withParams(c, "id", session.ID)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	c, rec = newJSONContext(e, http.MethodPost, "/api/v1/sessions/"+session.ID+"/submit", "")
	require.NoError(t, f.handler.Submit(withParams(c, "id", session.ID)))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, f.loans.Loans)
}

func TestSession_SetFieldsValidation(t *testing.T) {
	e := echo.New()
	f := newSessionFixture()
	session := f.create(t, e)
	f.setView(t, e, session.ID, "addLoan")

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"empty edit", `{"fields": {}}`, "fields"},
		{"unknown field", `{"fields": {"colour": "red"}}`, "field"},
		{"bad amount", `{"fields": {"amount": "lots"}}`, "amount"},
		{"bad period", `{"fields": {"durationPeriod": "fortnights"}}`, "durationPeriod"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newJSONContext(e, http.MethodPut, "/api/v1/sessions/"+session.ID+"/fields", tt.body)
			require.NoError(t, f.handler.SetFields(withParams(c, "id", session.ID)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, []string{tt.wantField}, problemFields(t, rec))
		})
	}

	// Rejected edits leave the form untouched
	c, rec := newJSONContext(e, http.MethodGet, "/api/v1/sessions/"+session.ID, "")
	require.NoError(t, f.handler.GetSession(withParams(c, "id", session.ID)))
	assert.Equal(t, "0", decodeBody[SessionResponse](t, rec).Form.Amount)
}

func TestSession_NotFound(t *testing.T) {
	e := echo.New()
	f := newSessionFixture()

	c, rec := newJSONContext(e, http.MethodGet, "/api/v1/sessions/missing", "")
	require.NoError(t, f.handler.GetSession(withParams(c, "id", "missing")))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = newJSONContext(e, http.MethodPut, "/api/v1/sessions/missing/view", `{"view": "dashboard"}`)
	require.NoError(t, f.handler.SetView(withParams(c, "id", "missing")))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = newJSONContext(e, http.MethodDelete, "/api/v1/sessions/missing", "")
	require.NoError(t, f.handler.DeleteSession(withParams(c, "id", "missing")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSession_RemoveFee(t *testing.T) {
	e := echo.New()
	f := newSessionFixture()
	session := f.create(t, e)
	f.setView(t, e, session.ID, "addLoan")

	c, rec := newJSONContext(e, http.MethodPost, "/api/v1/sessions/"+session.ID+"/fees",
		`{"name": "Insurance", "type": "percentage", "value": "2"}`)
	require.NoError(t, f.handler.AddFee(withParams(c, "id", session.ID)))
	require.Equal(t, http.StatusCreated, rec.Code)
	feeID := decodeBody[AddFeeResponse](t, rec).Fee.ID

	c, rec = newJSONContext(e, http.MethodDelete, "/api/v1/sessions/"+session.ID+"/fees/nope", "")
	require.NoError(t, f.handler.RemoveFee(withParams(c, "id", session.ID, "feeId", "nope")))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = newJSONContext(e, http.MethodDelete, "/api/v1/sessions/"+session.ID+"/fees/"+feeID, "")
	require.NoError(t, f.handler.RemoveFee(withParams(c, "id", session.ID, "feeId", feeID)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[SessionResponse](t, rec).Fees)
}

func TestSession_AddFeeValidation(t *testing.T) {
	e := echo.New()
	f := newSessionFixture()
	session := f.create(t, e)
	f.setView(t, e, session.ID, "addLoan")

	c, rec := newJSONContext(e, http.MethodPost, "/api/v1/sessions/"+session.ID+"/fees",
		`{"name": "Processing", "type": "flat rate", "value": "50"}`)
	require.NoError(t, f.handler.AddFee(withParams(c, "id", session.ID)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"type"}, problemFields(t, rec))
}

func TestSession_CancelAndDelete(t *testing.T) {
	e := echo.New()
	f := newSessionFixture()
	session := f.create(t, e)
	f.setView(t, e, session.ID, "addLoan")

	c, rec := newJSONContext(e, http.MethodPost, "/api/v1/sessions/"+session.ID+"/cancel", "")
	require.NoError(t, f.handler.Cancel(withParams(c, "id", session.ID)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dashboard", decodeBody[SessionResponse](t, rec).View)

	c, rec = newJSONContext(e, http.MethodDelete, "/api/v1/sessions/"+session.ID, "")
	require.NoError(t, f.handler.DeleteSession(withParams(c, "id", session.ID)))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	c, rec = newJSONContext(e, http.MethodGet, "/api/v1/sessions/"+session.ID, "")
	require.NoError(t, f.handler.GetSession(withParams(c, "id", session.ID)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSession_RiskScoreWithoutBorrower(t *testing.T) {
	e := echo.New()
	f := newSessionFixture()
	session := f.create(t, e)
	f.setView(t, e, session.ID, "addLoan")

	c, rec := newJSONContext(e, http.MethodPost, "/api/v1/sessions/"+session.ID+"/risk-score", "")
	require.NoError(t, f.handler.RequestRiskScore(withParams(c, "id", session.ID)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"clientId"}, problemFields(t, rec))
	assert.Zero(t, f.scorer.Calls())
}
