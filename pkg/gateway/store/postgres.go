package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Postgres stores audit records in PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to databaseURL and applies pending migrations.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (p *Postgres) RecordSubmission(ctx context.Context, s Submission) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO sentinel_submissions (session_id, model, policy_version, generation, config, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.SessionID, s.Model, s.PolicyVersion, int64(s.Generation), s.Config, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (p *Postgres) RecordIntervention(ctx context.Context, i Intervention) error {
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO sentinel_interventions (session_id, intervention_id, model, policy_version, format, text, interrupted, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		i.SessionID, i.InterventionID, i.Model, i.PolicyVersion, i.Format, i.Text, i.Interrupted, i.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert intervention: %w", err)
	}
	return nil
}

func (p *Postgres) ListInterventions(ctx context.Context, sessionID string) ([]Intervention, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT session_id, intervention_id, model, policy_version, format, text, interrupted, created_at
		 FROM sentinel_interventions
		 WHERE session_id = $1
		 ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query interventions: %w", err)
	}
	defer rows.Close()

	out := make([]Intervention, 0)
	for rows.Next() {
		var i Intervention
		if err := rows.Scan(&i.SessionID, &i.InterventionID, &i.Model, &i.PolicyVersion, &i.Format, &i.Text, &i.Interrupted, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan intervention: %w", err)
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interventions: %w", err)
	}
	return out, nil
}

func (p *Postgres) Close() {
	if p == nil || p.pool == nil {
		return
	}
	p.pool.Close()
}
