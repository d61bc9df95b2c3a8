package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/innovators/mlms/mlms-backend/internal/testutil"
	"github.com/innovators/mlms/mlms-backend/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type sessionFixture struct {
	svc       *SessionService
	repo      *testutil.MockSessionRepository
	loans     *testutil.MockLoanRepository
	scorer    *testutil.MockRiskScorer
	publisher *testutil.MockEventPublisher
}

func newSessionFixture() *sessionFixture {
	repo := testutil.NewMockSessionRepository()
	loans := testutil.NewMockLoanRepository()
	clients := testutil.NewMockClientRepository()
	clients.AddClient(&domain.Client{ID: 1, Name: "Ayesha", RiskLevel: domain.RiskLow})
	clients.AddClient(&domain.Client{ID: 2, Name: "Bilal", RiskLevel: domain.RiskLow})
	scorer := &testutil.MockRiskScorer{Score: 0.65}
	publisher := &testutil.MockEventPublisher{}

	svc := NewSessionService(repo, NewLoanService(loans, clients), clients, scorer)
	svc.SetEventPublisher(publisher)
	svc.now = func() time.Time { return time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC) }

	return &sessionFixture{svc: svc, repo: repo, loans: loans, scorer: scorer, publisher: publisher}
}

// onLoanForm creates a session and opens the add-loan view
func (f *sessionFixture) onLoanForm(t *testing.T) string {
	t.Helper()
	session, err := f.svc.CreateSession()
	require.NoError(t, err)
	_, err = f.svc.SetView(session.ID, "addLoan")
	require.NoError(t, err)
	return session.ID
}

func TestCreateSession(t *testing.T) {
	f := newSessionFixture()

	session, err := f.svc.CreateSession()
	require.NoError(t, err)

	assert.NotEmpty(t, session.ID)
	assert.Equal(t, domain.ViewWelcome, session.View)
	assert.Equal(t, domain.LoanProcessing, session.Form.Status)
	assert.Equal(t, "2024-03-10", session.Form.ReleaseDate.Format(domain.DateLayout))
	assert.Equal(t, 1, session.Form.Duration)
	assert.Empty(t, session.Fees)

	stored, err := f.svc.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, stored.ID)
}

func TestSetView(t *testing.T) {
	f := newSessionFixture()
	session, _ := f.svc.CreateSession()

	updated, err := f.svc.SetView(session.ID, "LoanRequests")
	require.NoError(t, err)
	assert.Equal(t, domain.ViewLoanRequests, updated.View)

	_, err = f.svc.SetView(session.ID, "casino")
	assert.ErrorIs(t, err, domain.ErrInvalidView)

	_, err = f.svc.SetView("missing", "dashboard")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	events := f.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "session:"+session.ID, events[0].Topic)
	assert.Equal(t, "session.updated", events[0].Event.Type)
}

func TestSetView_EnteringLoanFormResetsIt(t *testing.T) {
	f := newSessionFixture()
	id := f.onLoanForm(t)

	_, err := f.svc.SetField(id, domain.FieldAmount, "5000")
	require.NoError(t, err)

	// staying on the form keeps the input
	same, err := f.svc.SetView(id, "addLoan")
	require.NoError(t, err)
	assert.Equal(t, "5000", same.Form.Amount.String())

	_, err = f.svc.SetView(id, "dashboard")
	require.NoError(t, err)
	reopened, err := f.svc.SetView(id, "addLoan")
	require.NoError(t, err)
	assert.True(t, reopened.Form.Amount.IsZero())
}

func TestSetField(t *testing.T) {
	f := newSessionFixture()
	id := f.onLoanForm(t)

	tests := []struct {
		field   string
		value   string
		wantErr error
	}{
		{domain.FieldAmount, "1200", nil},
		{domain.FieldDurationPeriod, "months", nil},
		{domain.FieldDuration, "6", nil},
		{domain.FieldInterestMethod, "reducing balance", nil},
		{domain.FieldRepaymentCycle, "MONTHLY", nil},
		{domain.FieldInterestRate, "abc", domain.ErrInvalidAmount},
		{domain.FieldRepaymentCycle, "fortnightly", domain.ErrInvalidRepaymentCycle},
		{"favouriteColour", "blue", domain.ErrUnknownField},
	}

	for _, tt := range tests {
		_, err := f.svc.SetField(id, tt.field, tt.value)
		if tt.wantErr == nil {
			require.NoError(t, err, tt.field)
		} else {
			assert.ErrorIs(t, err, tt.wantErr, tt.field)
		}
	}

	session, err := f.svc.GetSession(id)
	require.NoError(t, err)
	assert.Equal(t, "1200", session.Form.Amount.String())
	assert.Equal(t, 6, session.Form.Duration)
	assert.Equal(t, domain.ReducingBalance, session.Form.InterestMethod)
	assert.Equal(t, domain.RepaymentMonthly, session.Form.RepaymentCycle)
}

func TestSetField_RequiresLoanForm(t *testing.T) {
	f := newSessionFixture()
	session, _ := f.svc.CreateSession()

	_, err := f.svc.SetField(session.ID, domain.FieldAmount, "100")
	assert.ErrorIs(t, err, domain.ErrNotOnLoanForm)
}

func TestSetFields_AllOrNothing(t *testing.T) {
	f := newSessionFixture()
	id := f.onLoanForm(t)

	_, err := f.svc.SetFields(id, map[string]string{
		domain.FieldAmount:   "900",
		domain.FieldDuration: "x",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)

	session, _ := f.svc.GetSession(id)
	assert.True(t, session.Form.Amount.IsZero())
}

func TestFees(t *testing.T) {
	f := newSessionFixture()
	id := f.onLoanForm(t)

	_, fee, err := f.svc.AddFee(id, AddFeeInput{Name: "Processing", Kind: "fixed", Value: "50", Deductible: true})
	require.NoError(t, err)
	assert.Equal(t, domain.FeeFixedAmount, fee.Kind)

	session, second, err := f.svc.AddFee(id, AddFeeInput{Name: "Insurance", Kind: "Percentage Based", Value: "2"})
	require.NoError(t, err)
	require.Len(t, session.Fees, 2)

	_, _, err = f.svc.AddFee(id, AddFeeInput{Name: "", Kind: "fixed", Value: "1"})
	assert.ErrorIs(t, err, domain.ErrFeeNameEmpty)
	_, _, err = f.svc.AddFee(id, AddFeeInput{Name: "Odd", Kind: "barter", Value: "1"})
	assert.ErrorIs(t, err, domain.ErrInvalidFeeKind)
	_, _, err = f.svc.AddFee(id, AddFeeInput{Name: "Odd", Kind: "fixed", Value: "-1"})
	assert.ErrorIs(t, err, domain.ErrFeeValueNegative)

	session, err = f.svc.RemoveFee(id, fee.ID)
	require.NoError(t, err)
	require.Len(t, session.Fees, 1)
	assert.Equal(t, second.ID, session.Fees[0].ID)

	_, err = f.svc.RemoveFee(id, fee.ID)
	assert.ErrorIs(t, err, domain.ErrFeeNotFound)
}

func TestSessionPreviewSchedule(t *testing.T) {
	f := newSessionFixture()
	id := f.onLoanForm(t)

	empty, err := f.svc.PreviewSchedule(id)
	require.NoError(t, err)
	assert.Empty(t, empty.Installments)

	_, err = f.svc.SetFields(id, map[string]string{
		domain.FieldAmount:         "1200",
		domain.FieldDuration:       "6",
		domain.FieldRepaymentCycle: "monthly",
	})
	require.NoError(t, err)
	_, _, err = f.svc.AddFee(id, AddFeeInput{Name: "Stamp", Kind: "fixed", Value: "30"})
	require.NoError(t, err)

	preview, err := f.svc.PreviewSchedule(id)
	require.NoError(t, err)
	require.Len(t, preview.Installments, 6)
	assert.Equal(t, "200.00", preview.Installments[0].Amount.StringFixed(2))
	assert.Equal(t, "1230.00", preview.TotalRepayable.StringFixed(2))
	assert.Equal(t, "2024-04-10", preview.Installments[0].DueDate.Format(domain.DateLayout))
}

func TestRequestRiskScore(t *testing.T) {
	f := newSessionFixture()
	id := f.onLoanForm(t)

	_, err := f.svc.RequestRiskScore(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrLoanClientRequired)

	_, err = f.svc.SetField(id, domain.FieldClientID, "1")
	require.NoError(t, err)

	session, err := f.svc.RequestRiskScore(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, session.RiskScore)
	assert.Equal(t, 0.65, *session.RiskScore)
	assert.Equal(t, domain.RiskHigh, *session.RiskLevel)
	assert.Equal(t, 0, f.svc.PendingRiskRequests())

	// changing the borrower clears the stale score
	session, err = f.svc.SetField(id, domain.FieldClientID, "2")
	require.NoError(t, err)
	assert.Nil(t, session.RiskScore)
}

func TestRequestRiskScore_CancelledByNavigation(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	f := newSessionFixture()
	f.scorer.Block = true
	f.scorer.Started = make(chan struct{})
	id := f.onLoanForm(t)
	_, err := f.svc.SetField(id, domain.FieldClientID, "1")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.RequestRiskScore(context.Background(), id)
		done <- err
	}()

	select {
	case <-f.scorer.Started:
	case <-time.After(time.Second):
		t.Fatal("risk request did not start")
	}

	_, err = f.svc.SetView(id, "dashboard")
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrRiskRequestCancelled)
	case <-time.After(time.Second):
		t.Fatal("risk request was not cancelled")
	}

	session, _ := f.svc.GetSession(id)
	assert.Nil(t, session.RiskScore)
	assert.Equal(t, 0, f.svc.PendingRiskRequests())
}

func TestRequestRiskScore_Timeout(t *testing.T) {
	f := newSessionFixture()
	f.scorer.Block = true
	f.svc.SetRiskTimeout(20 * time.Millisecond)
	id := f.onLoanForm(t)
	_, err := f.svc.SetField(id, domain.FieldClientID, "1")
	require.NoError(t, err)

	_, err = f.svc.RequestRiskScore(context.Background(), id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubmit(t *testing.T) {
	f := newSessionFixture()
	id := f.onLoanForm(t)
	_, err := f.svc.SetFields(id, map[string]string{
		domain.FieldClientID:       "1",
		domain.FieldAmount:         "1000",
		domain.FieldInterestRate:   "10",
		domain.FieldAccount:        "mobile money",
		domain.FieldRepaymentCycle: "once",
	})
	require.NoError(t, err)

	session, loan, err := f.svc.Submit(id)
	require.NoError(t, err)

	assert.Equal(t, domain.ViewLoans, session.View)
	assert.Equal(t, domain.ViewLoans, session.View.NavSection())
	assert.True(t, session.Form.Amount.IsZero())
	assert.Equal(t, domain.AccountMobileMoney, loan.Account)
	assert.Equal(t, "1100.00", loan.TotalRepayable.StringFixed(2))
	assert.Len(t, f.loans.Loans, 1)

	types := f.publisher.Types()
	assert.Equal(t, "session.submitted", types[len(types)-1])
}

func TestSubmit_InvalidKeepsForm(t *testing.T) {
	f := newSessionFixture()
	id := f.onLoanForm(t)

	_, _, err := f.svc.Submit(id)
	assert.ErrorIs(t, err, domain.ErrLoanClientRequired)

	_, err = f.svc.SetField(id, domain.FieldClientID, "1")
	require.NoError(t, err)
	_, _, err = f.svc.Submit(id)
	assert.ErrorIs(t, err, domain.ErrPrincipalInvalid)

	session, _ := f.svc.GetSession(id)
	assert.Equal(t, domain.ViewAddLoan, session.View)
	assert.Equal(t, int32(1), session.Form.ClientID)
	assert.Empty(t, f.loans.Loans)
}

func TestCancel(t *testing.T) {
	f := newSessionFixture()
	id := f.onLoanForm(t)

	session, err := f.svc.Cancel(id)
	require.NoError(t, err)
	assert.Equal(t, domain.ViewDashboard, session.View)
}

func TestDeleteSession_DisconnectsSubscribers(t *testing.T) {
	f := newSessionFixture()
	id := f.onLoanForm(t)

	require.NoError(t, f.svc.DeleteSession(id))
	assert.Equal(t, []string{websocket.SessionTopic(id)}, f.publisher.ClosedTopics())

	assert.ErrorIs(t, f.svc.DeleteSession(id), domain.ErrSessionNotFound)
	assert.Len(t, f.publisher.ClosedTopics(), 1)
}

func TestSessionSaveError(t *testing.T) {
	f := newSessionFixture()
	id := f.onLoanForm(t)
	saveErr := errors.New("redis unavailable")
	f.repo.SaveErr = saveErr

	_, err := f.svc.SetView(id, "reports")
	assert.ErrorIs(t, err, saveErr)
}
