package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/innovators/mlms/mlms-backend/internal/service"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	labelStyle  = lipgloss.NewStyle().Bold(true)
)

type scheduleOptions struct {
	principal      string
	duration       int
	unit           string
	rate           string
	method         string
	interestCycle  string
	repaymentCycle string
	start          string
	fees           []string
}

func newScheduleCmd() *cobra.Command {
	opts := scheduleOptions{}

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the repayment schedule for a set of loan terms",
		Example: `  mlmsctl schedule --principal 50000 --duration 6 --unit months --rate 3 \
    --method reducing --interest-cycle monthly --repayment-cycle monthly \
    --fee "Processing:fixed:500:deductible"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			terms, fees, err := opts.parse()
			if err != nil {
				return err
			}
			preview := service.NewLoanService(nil, nil).PreviewSchedule(terms, fees)
			fmt.Fprint(cmd.OutOrStdout(), renderSchedule(preview))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.principal, "principal", "", "loan amount")
	f.IntVar(&opts.duration, "duration", 1, "loan duration")
	f.StringVar(&opts.unit, "unit", "months", "duration unit: days, weeks, months, years")
	f.StringVar(&opts.rate, "rate", "0", "interest rate in percent per interest cycle")
	f.StringVar(&opts.method, "method", "flat", "interest method: flat or reducing")
	f.StringVar(&opts.interestCycle, "interest-cycle", "once", "interest cycle: once, monthly, yearly")
	f.StringVar(&opts.repaymentCycle, "repayment-cycle", "once", "repayment cycle: once, daily, weekly, monthly")
	f.StringVar(&opts.start, "start", time.Now().UTC().Format(domain.DateLayout), "release date (YYYY-MM-DD)")
	f.StringArrayVar(&opts.fees, "fee", nil, `fee as "name:fixed|percentage:value[:deductible]", repeatable`)
	_ = cmd.MarkFlagRequired("principal")

	return cmd
}

func (o scheduleOptions) parse() (domain.LoanTerms, []domain.Fee, error) {
	var (
		terms domain.LoanTerms
		err   error
	)

	if terms.Principal, err = decimal.NewFromString(o.principal); err != nil {
		return terms, nil, fmt.Errorf("--principal: %w", err)
	}
	if terms.InterestRate, err = decimal.NewFromString(o.rate); err != nil {
		return terms, nil, fmt.Errorf("--rate: %w", err)
	}
	terms.Duration = o.duration
	if terms.DurationUnit, err = domain.ParseDurationUnit(o.unit); err != nil {
		return terms, nil, fmt.Errorf("--unit: %w", err)
	}
	if terms.InterestMethod, err = domain.ParseInterestMethod(o.method); err != nil {
		return terms, nil, fmt.Errorf("--method: %w", err)
	}
	if terms.InterestCycle, err = domain.ParseInterestCycle(o.interestCycle); err != nil {
		return terms, nil, fmt.Errorf("--interest-cycle: %w", err)
	}
	if terms.RepaymentCycle, err = domain.ParseRepaymentCycle(o.repaymentCycle); err != nil {
		return terms, nil, fmt.Errorf("--repayment-cycle: %w", err)
	}
	if terms.StartDate, err = time.Parse(domain.DateLayout, o.start); err != nil {
		return terms, nil, fmt.Errorf("--start must be YYYY-MM-DD: %w", err)
	}

	fees := make([]domain.Fee, 0, len(o.fees))
	for _, raw := range o.fees {
		fee, err := parseFee(raw)
		if err != nil {
			return terms, nil, fmt.Errorf("--fee %q: %w", raw, err)
		}
		fees = append(fees, fee)
	}
	return terms, fees, nil
}

// parseFee reads "name:kind:value" with an optional ":deductible" suffix
func parseFee(raw string) (domain.Fee, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return domain.Fee{}, fmt.Errorf("expected name:kind:value[:deductible]")
	}

	kind, err := domain.ParseFeeKind(parts[1])
	if err != nil {
		return domain.Fee{}, err
	}
	value, err := decimal.NewFromString(strings.TrimSpace(parts[2]))
	if err != nil {
		return domain.Fee{}, fmt.Errorf("invalid value: %w", err)
	}

	fee := domain.Fee{Name: strings.TrimSpace(parts[0]), Kind: kind, Value: value}
	if len(parts) == 4 {
		switch strings.ToLower(strings.TrimSpace(parts[3])) {
		case "deductible", "d":
			fee.Deductible = true
		default:
			if fee.Deductible, err = strconv.ParseBool(parts[3]); err != nil {
				return domain.Fee{}, fmt.Errorf("invalid deductible flag %q", parts[3])
			}
		}
	}
	return fee, fee.Validate()
}

func renderSchedule(p service.SchedulePreview) string {
	if len(p.Installments) == 0 {
		return "No installments: the terms do not produce a schedule.\n"
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "Due Date", "Principal", "Interest", "Amount").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col >= 2:
				return numberStyle
			default:
				return cellStyle
			}
		})

	for _, inst := range p.Installments {
		t.Row(
			strconv.Itoa(inst.Number),
			inst.DueDate.Format(domain.DateLayout),
			inst.Principal.StringFixed(2),
			inst.Interest.StringFixed(2),
			inst.Amount.StringFixed(2),
		)
	}
	t.Row("", "Total", p.Summary.TotalPrincipal.StringFixed(2), p.Summary.TotalInterest.StringFixed(2), p.Summary.TotalAmount.StringFixed(2))

	var sb strings.Builder
	sb.WriteString(t.Render())
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%s %s\n", labelStyle.Render("Deductible fees:"), p.Fees.Deductible.StringFixed(2))
	fmt.Fprintf(&sb, "%s %s\n", labelStyle.Render("Added fees:     "), p.Fees.Added.StringFixed(2))
	fmt.Fprintf(&sb, "%s %s\n", labelStyle.Render("Disbursed:      "), p.Fees.Disbursed.StringFixed(2))
	fmt.Fprintf(&sb, "%s %s\n", labelStyle.Render("Total repayable:"), p.TotalRepayable.StringFixed(2))
	return sb.String()
}
