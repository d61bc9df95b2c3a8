package service

import (
	"context"
	"fmt"

	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"golang.org/x/sync/errgroup"
)

// PortfolioService aggregates loans and clients into dashboard figures
type PortfolioService struct {
	loanRepo   domain.LoanRepository
	clientRepo domain.ClientRepository
}

// NewPortfolioService creates a new PortfolioService
func NewPortfolioService(loanRepo domain.LoanRepository, clientRepo domain.ClientRepository) *PortfolioService {
	return &PortfolioService{
		loanRepo:   loanRepo,
		clientRepo: clientRepo,
	}
}

// Snapshot loads loans and clients concurrently and summarizes them
func (s *PortfolioService) Snapshot(ctx context.Context) (domain.PortfolioSnapshot, error) {
	var (
		loans   []*domain.Loan
		clients []*domain.Client
	)

	if err := ctx.Err(); err != nil {
		return domain.PortfolioSnapshot{}, err
	}

	var g errgroup.Group
	g.Go(func() error {
		var err error
		loans, err = s.loanRepo.GetAll(domain.LoanFilter{})
		if err != nil {
			return fmt.Errorf("failed to load loans: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		clients, err = s.clientRepo.GetAll()
		if err != nil {
			return fmt.Errorf("failed to load clients: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return domain.PortfolioSnapshot{}, err
	}
	return domain.NewPortfolioSnapshot(loans, clients), nil
}
