package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/innovators/mlms/mlms-backend/internal/config"
	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/innovators/mlms/mlms-backend/internal/repository/postgres"
	"github.com/innovators/mlms/mlms-backend/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// newAdviceService wires the generator for a command. A missing credential is not an error:
// the service answers with the not-configured message instead.
func newAdviceService(ctx context.Context, newGenerator generatorFactory) (*service.AdviceService, error) {
	cfg, err := config.LoadAI()
	if err != nil {
		return nil, err
	}
	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize text generator: %w", err)
	}
	if gen == nil {
		log.Debug().Msg("GEMINI_API_KEY not set")
	}
	return service.NewAdviceService(gen, cfg.Model, cfg.Timeout), nil
}

// printAdvice renders generated markdown, or prints the fixed message when nothing was generated
func printAdvice(w io.Writer, text string, err error, plain bool) error {
	if err != nil {
		var aiErr *service.AIProviderError
		if !errors.As(err, &aiErr) {
			return err
		}
		log.Debug().Err(err).Msg("advice unavailable")
		_, werr := fmt.Fprintln(w, aiErr.Message())
		return werr
	}

	if plain {
		_, werr := fmt.Fprintln(w, text)
		return werr
	}

	renderer, rerr := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if rerr != nil {
		return rerr
	}
	out, rerr := renderer.Render(text)
	if rerr != nil {
		return rerr
	}
	_, werr := fmt.Fprint(w, out)
	return werr
}

type explainRiskOptions struct {
	name           string
	previousLoans  int32
	missedPayments int32
	cnicVerified   bool
	score          float64
	plain          bool
}

func newExplainRiskCmd(newGenerator generatorFactory) *cobra.Command {
	opts := explainRiskOptions{}

	cmd := &cobra.Command{
		Use:   "explain-risk",
		Short: "Explain a client's default-risk score in plain language",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			client := &domain.Client{
				Name:           opts.name,
				PreviousLoans:  opts.previousLoans,
				MissedPayments: opts.missedPayments,
				CNICVerified:   opts.cnicVerified,
			}
			if err := client.Validate(); err != nil {
				return err
			}

			// Without an explicit score, use the built-in scorer
			if cmd.Flags().Changed("score") {
				if opts.score < 0 || opts.score > 1 {
					return domain.ErrRiskScoreOutOfRange
				}
				client.RiskScore = opts.score
			} else {
				score, err := service.HeuristicRiskScorer{}.ComputeRiskScore(ctx, client)
				if err != nil {
					return err
				}
				client.RiskScore = score
			}
			client.RiskLevel = domain.ScoreToRiskLevel(client.RiskScore)
			log.Debug().Float64("score", client.RiskScore).Str("level", string(client.RiskLevel)).Msg("scored client")

			advice, err := newAdviceService(ctx, newGenerator)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %.1f%% (%s)\n\n", labelStyle.Render("Risk score:"), client.RiskScore*100, client.RiskLevel)
			text, err := advice.ExplainRisk(ctx, client)
			return printAdvice(out, text, err, opts.plain)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.name, "name", "", "client name")
	f.Int32Var(&opts.previousLoans, "previous-loans", 0, "number of previous loans")
	f.Int32Var(&opts.missedPayments, "missed-payments", 0, "missed payments on past loans")
	f.BoolVar(&opts.cnicVerified, "cnic-verified", false, "national ID has been verified")
	f.Float64Var(&opts.score, "score", 0, "risk score between 0 and 1 (computed when omitted)")
	f.BoolVar(&opts.plain, "plain", false, "print raw markdown")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

type suggestOptions struct {
	total       int
	active      int
	highRisk    int
	defaultRate string
	fromDB      bool
	plain       bool
}

func newSuggestCmd(newGenerator generatorFactory) *cobra.Command {
	opts := suggestOptions{}

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest portfolio improvements from loan and client metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var (
				snap domain.PortfolioSnapshot
				err  error
			)
			if opts.fromDB {
				snap, err = snapshotFromDatabase(ctx)
			} else {
				snap, err = opts.snapshot()
			}
			if err != nil {
				return err
			}

			advice, err := newAdviceService(ctx, newGenerator)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %d total, %d active, %d high-risk clients, %s%% defaulted\n\n",
				labelStyle.Render("Portfolio:"), snap.TotalLoans, snap.ActiveLoans, snap.HighRiskClients, snap.DefaultRate.StringFixed(2))
			text, err := advice.GenerateSuggestions(ctx, snap)
			return printAdvice(out, text, err, opts.plain)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.total, "total", 0, "total number of loans")
	f.IntVar(&opts.active, "active", 0, "number of active loans")
	f.IntVar(&opts.highRisk, "high-risk", 0, "number of high-risk clients")
	f.StringVar(&opts.defaultRate, "default-rate", "0", "loan default rate in percent")
	f.BoolVar(&opts.fromDB, "from-db", false, "compute the metrics from DATABASE_URL instead of flags")
	f.BoolVar(&opts.plain, "plain", false, "print raw markdown")
	cmd.MarkFlagsMutuallyExclusive("from-db", "total")

	return cmd
}

func (o suggestOptions) snapshot() (domain.PortfolioSnapshot, error) {
	if o.total < 0 || o.active < 0 || o.highRisk < 0 {
		return domain.PortfolioSnapshot{}, errors.New("counts must be non-negative")
	}
	if o.active > o.total {
		return domain.PortfolioSnapshot{}, errors.New("--active cannot exceed --total")
	}
	rate, err := decimal.NewFromString(o.defaultRate)
	if err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("--default-rate: %w", err)
	}
	if rate.LessThan(decimal.Zero) || rate.GreaterThan(decimal.NewFromInt(100)) {
		return domain.PortfolioSnapshot{}, errors.New("--default-rate must be between 0 and 100")
	}
	return domain.PortfolioSnapshot{
		TotalLoans:      o.total,
		ActiveLoans:     o.active,
		HighRiskClients: o.highRisk,
		DefaultRate:     rate.Round(2),
	}, nil
}

func snapshotFromDatabase(ctx context.Context) (domain.PortfolioSnapshot, error) {
	cfg, err := config.Load()
	if err != nil {
		return domain.PortfolioSnapshot{}, err
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	portfolio := service.NewPortfolioService(postgres.NewLoanRepository(pool), postgres.NewClientRepository(pool))
	return portfolio.Snapshot(ctx)
}
