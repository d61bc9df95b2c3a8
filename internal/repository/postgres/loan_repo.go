package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const loanColumns = `id, client_id, status, loan_type, account, principal, duration, duration_unit,
	interest_rate, interest_method, interest_cycle, repayment_cycle, start_date, total_interest,
	deductible_fees, added_fees, disbursed_amount, total_repayable, created_at, updated_at`

// LoanRepository implements domain.LoanRepository using PostgreSQL
type LoanRepository struct {
	pool *pgxpool.Pool
}

// NewLoanRepository creates a new LoanRepository
func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

// Create atomically inserts the loan, its fees and its installments
func (r *LoanRepository) Create(loan *domain.Loan) (*domain.Loan, error) {
	ctx := context.Background()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	args, err := loanArgs(loan)
	if err != nil {
		return nil, err
	}

	// 1. Insert the loan
	created, err := scanLoan(tx.QueryRow(ctx, `
		INSERT INTO loans (client_id, status, loan_type, account, principal, duration, duration_unit,
			interest_rate, interest_method, interest_cycle, repayment_cycle, start_date, total_interest,
			deductible_fees, added_fees, disbursed_amount, total_repayable)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING `+loanColumns, args...))
	if err != nil {
		return nil, err
	}

	// 2. Insert fees and installments in one round trip
	batch := &pgx.Batch{}
	for i, fee := range loan.Fees {
		value, err := decimalToPgNumeric(fee.Value)
		if err != nil {
			return nil, err
		}
		batch.Queue(`INSERT INTO loan_fees (id, loan_id, position, name, kind, value, deductible)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			fee.ID, created.ID, i, fee.Name, string(fee.Kind), value, fee.Deductible)
	}
	for _, inst := range loan.Installments {
		principal, err := decimalToPgNumeric(inst.Principal)
		if err != nil {
			return nil, err
		}
		interest, err := decimalToPgNumeric(inst.Interest)
		if err != nil {
			return nil, err
		}
		amount, err := decimalToPgNumeric(inst.Amount)
		if err != nil {
			return nil, err
		}
		batch.Queue(`INSERT INTO loan_installments (loan_id, number, due_date, principal, interest, amount)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			created.ID, inst.Number, dateToPg(inst.DueDate), principal, interest, amount)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("failed to store loan details: %w", err)
		}
	}

	// 3. Commit
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	created.Fees = append([]domain.Fee{}, loan.Fees...)
	created.Installments = append([]domain.Installment{}, loan.Installments...)
	return created, nil
}

func loanArgs(loan *domain.Loan) ([]interface{}, error) {
	principal, err := decimalToPgNumeric(loan.Terms.Principal)
	if err != nil {
		return nil, err
	}
	rate, err := decimalToPgNumeric(loan.Terms.InterestRate)
	if err != nil {
		return nil, err
	}
	totalInterest, err := decimalToPgNumeric(loan.TotalInterest)
	if err != nil {
		return nil, err
	}
	deductible, err := decimalToPgNumeric(loan.DeductibleFees)
	if err != nil {
		return nil, err
	}
	added, err := decimalToPgNumeric(loan.AddedFees)
	if err != nil {
		return nil, err
	}
	disbursed, err := decimalToPgNumeric(loan.DisbursedAmount)
	if err != nil {
		return nil, err
	}
	repayable, err := decimalToPgNumeric(loan.TotalRepayable)
	if err != nil {
		return nil, err
	}

	return []interface{}{
		loan.ClientID,
		string(loan.Status),
		loan.LoanType,
		string(loan.Account),
		principal,
		loan.Terms.Duration,
		string(loan.Terms.DurationUnit),
		rate,
		string(loan.Terms.InterestMethod),
		string(loan.Terms.InterestCycle),
		string(loan.Terms.RepaymentCycle),
		dateToPg(loan.Terms.StartDate),
		totalInterest,
		deductible,
		added,
		disbursed,
		repayable,
	}, nil
}

func scanLoan(row pgx.Row) (*domain.Loan, error) {
	var (
		l                                       domain.Loan
		status, account, unit                   string
		method, iCycle, rCycle                  string
		principal, rate, interest               pgtype.Numeric
		deductible, added, disbursed, repayable pgtype.Numeric
		start                                   pgtype.Date
	)
	err := row.Scan(
		&l.ID, &l.ClientID, &status, &l.LoanType, &account, &principal, &l.Terms.Duration, &unit,
		&rate, &method, &iCycle, &rCycle, &start, &interest,
		&deductible, &added, &disbursed, &repayable, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Status = domain.LoanStatus(status)
	l.Account = domain.DisbursementAccount(account)
	l.Terms.Principal = pgNumericToDecimal(principal)
	l.Terms.DurationUnit = domain.DurationUnit(unit)
	l.Terms.InterestRate = pgNumericToDecimal(rate)
	l.Terms.InterestMethod = domain.InterestMethod(method)
	l.Terms.InterestCycle = domain.InterestCycle(iCycle)
	l.Terms.RepaymentCycle = domain.RepaymentCycle(rCycle)
	l.Terms.StartDate = pgDateToTime(start)
	l.TotalInterest = pgNumericToDecimal(interest)
	l.DeductibleFees = pgNumericToDecimal(deductible)
	l.AddedFees = pgNumericToDecimal(added)
	l.DisbursedAmount = pgNumericToDecimal(disbursed)
	l.TotalRepayable = pgNumericToDecimal(repayable)
	l.Fees = []domain.Fee{}
	l.Installments = []domain.Installment{}
	return &l, nil
}

// GetByID retrieves a loan with its fees and installments
func (r *LoanRepository) GetByID(id int32) (*domain.Loan, error) {
	ctx := context.Background()
	loan, err := scanLoan(r.pool.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}

	if err := r.loadDetails(ctx, []*domain.Loan{loan}); err != nil {
		return nil, err
	}
	return loan, nil
}

// GetAll returns loans matching the filter, newest first
func (r *LoanRepository) GetAll(filter domain.LoanFilter) ([]*domain.Loan, error) {
	ctx := context.Background()

	var (
		conds []string
		args  []interface{}
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ClientID != 0 {
		args = append(args, filter.ClientID)
		conds = append(conds, fmt.Sprintf("client_id = $%d", len(args)))
	}

	query := `SELECT ` + loanColumns + ` FROM loans`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loans := make([]*domain.Loan, 0)
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadDetails(ctx, loans); err != nil {
		return nil, err
	}
	return loans, nil
}

// loadDetails fills fees and installments for the given loans
func (r *LoanRepository) loadDetails(ctx context.Context, loans []*domain.Loan) error {
	if len(loans) == 0 {
		return nil
	}

	byID := make(map[int32]*domain.Loan, len(loans))
	ids := make([]int32, len(loans))
	for i, l := range loans {
		byID[l.ID] = l
		ids[i] = l.ID
	}

	feeRows, err := r.pool.Query(ctx, `
		SELECT loan_id, id, name, kind, value, deductible
		FROM loan_fees WHERE loan_id = ANY($1) ORDER BY loan_id, position`, ids)
	if err != nil {
		return err
	}
	for feeRows.Next() {
		var (
			loanID int32
			fee    domain.Fee
			kind   string
			value  pgtype.Numeric
		)
		if err := feeRows.Scan(&loanID, &fee.ID, &fee.Name, &kind, &value, &fee.Deductible); err != nil {
			feeRows.Close()
			return err
		}
		fee.Kind = domain.FeeKind(kind)
		fee.Value = pgNumericToDecimal(value)
		if l, ok := byID[loanID]; ok {
			l.Fees = append(l.Fees, fee)
		}
	}
	feeRows.Close()
	if err := feeRows.Err(); err != nil {
		return err
	}

	instRows, err := r.pool.Query(ctx, `
		SELECT loan_id, number, due_date, principal, interest, amount
		FROM loan_installments WHERE loan_id = ANY($1) ORDER BY loan_id, number`, ids)
	if err != nil {
		return err
	}
	defer instRows.Close()
	for instRows.Next() {
		var (
			loanID                      int32
			inst                        domain.Installment
			due                         pgtype.Date
			principal, interest, amount pgtype.Numeric
		)
		if err := instRows.Scan(&loanID, &inst.Number, &due, &principal, &interest, &amount); err != nil {
			return err
		}
		inst.DueDate = pgDateToTime(due)
		inst.Principal = pgNumericToDecimal(principal)
		inst.Interest = pgNumericToDecimal(interest)
		inst.Amount = pgNumericToDecimal(amount)
		if l, ok := byID[loanID]; ok {
			l.Installments = append(l.Installments, inst)
		}
	}
	return instRows.Err()
}

// UpdateStatus changes a loan's status
func (r *LoanRepository) UpdateStatus(id int32, status domain.LoanStatus) (*domain.Loan, error) {
	ctx := context.Background()
	tag, err := r.pool.Exec(ctx, `UPDATE loans SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrLoanNotFound
	}
	return r.GetByID(id)
}
