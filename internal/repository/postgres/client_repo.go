package postgres

import (
	"context"
	"errors"

	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const clientColumns = `id, name, phone, previous_loans, missed_payments, cnic_verified,
	risk_score, risk_level, cnic_document_key, created_at, updated_at`

// ClientRepository implements domain.ClientRepository using PostgreSQL
type ClientRepository struct {
	pool *pgxpool.Pool
}

// NewClientRepository creates a new ClientRepository
func NewClientRepository(pool *pgxpool.Pool) *ClientRepository {
	return &ClientRepository{pool: pool}
}

func scanClient(row pgx.Row) (*domain.Client, error) {
	var (
		c        domain.Client
		phone    pgtype.Text
		level    string
		document pgtype.Text
	)
	err := row.Scan(
		&c.ID, &c.Name, &phone, &c.PreviousLoans, &c.MissedPayments, &c.CNICVerified,
		&c.RiskScore, &level, &document, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Phone = pgTextToPtr(phone)
	c.RiskLevel = domain.RiskLevel(level)
	c.CNICDocumentKey = pgTextToPtr(document)
	return &c, nil
}

// Create inserts a new client
func (r *ClientRepository) Create(client *domain.Client) (*domain.Client, error) {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO clients (name, phone, previous_loans, missed_payments, cnic_verified, risk_score, risk_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+clientColumns,
		client.Name, optionalText(client.Phone), client.PreviousLoans, client.MissedPayments,
		client.CNICVerified, client.RiskScore, string(client.RiskLevel),
	)
	return scanClient(row)
}

// GetByID retrieves a client by ID
func (r *ClientRepository) GetByID(id int32) (*domain.Client, error) {
	ctx := context.Background()
	client, err := scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrClientNotFound
		}
		return nil, err
	}
	return client, nil
}

// GetAll returns every client ordered by ID
func (r *ClientRepository) GetAll() ([]*domain.Client, error) {
	ctx := context.Background()
	rows, err := r.pool.Query(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := make([]*domain.Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// UpdateRisk stores a risk score and level
func (r *ClientRepository) UpdateRisk(id int32, score float64, level domain.RiskLevel) (*domain.Client, error) {
	ctx := context.Background()
	client, err := scanClient(r.pool.QueryRow(ctx, `
		UPDATE clients SET risk_score = $2, risk_level = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+clientColumns,
		id, score, string(level),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrClientNotFound
		}
		return nil, err
	}
	return client, nil
}

// SetCNICDocumentKey stores the object key of the client's CNIC scan
func (r *ClientRepository) SetCNICDocumentKey(id int32, key string) (*domain.Client, error) {
	ctx := context.Background()
	client, err := scanClient(r.pool.QueryRow(ctx, `
		UPDATE clients SET cnic_document_key = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+clientColumns,
		id, key,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrClientNotFound
		}
		return nil, err
	}
	return client, nil
}
