package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"thinktact/internal/domain"
)

// LeadRepository define el contrato de persistencia para leads de la waitlist.
type LeadRepository interface {
	Create(ctx context.Context, lead domain.Lead) error
	CountByEmail(ctx context.Context, email string) (int, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Lead, error)
}

// PgLeadRepository implementa LeadRepository usando pgxpool.
type PgLeadRepository struct {
	pool *pgxpool.Pool
}

func NewPgLeadRepository(pool *pgxpool.Pool) *PgLeadRepository {
	return &PgLeadRepository{pool: pool}
}

func (r *PgLeadRepository) Create(ctx context.Context, lead domain.Lead) error {
	const query = `
		INSERT INTO waitlist_leads (id, email, job, source, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		lead.ID,
		lead.Email,
		lead.Job,
		lead.Source,
		lead.CreatedAt,
	)
	return err
}

func (r *PgLeadRepository) CountByEmail(ctx context.Context, email string) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM waitlist_leads
		WHERE lower(email) = lower($1)
	`
	var n int
	if err := r.pool.QueryRow(ctx, query, email).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PgLeadRepository) ListRecent(ctx context.Context, limit int) ([]domain.Lead, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, email, job, source, created_at
		FROM waitlist_leads
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []domain.Lead
	for rows.Next() {
		var l domain.Lead
		if err := rows.Scan(&l.ID, &l.Email, &l.Job, &l.Source, &l.CreatedAt); err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}
