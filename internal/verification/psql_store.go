package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/contenthub/internal/telemetry/tracing"
	"github.com/2beens/contenthub/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

type PsqlStore struct {
	db *pgxpool.Pool
}

func NewPsqlStore(db *pgxpool.Pool) *PsqlStore {
	return &PsqlStore{
		db: db,
	}
}

// Create upserts on the unique admin_id, so concurrent logins of one admin leave a single row:
// the last writer's code.
func (s *PsqlStore) Create(ctx context.Context, adminID, code string, expiresAt time.Time) (_ *Code, err error) {
	ctx, span := tracing.Start(ctx, "repo.verification.create")
	defer func() { tracing.EndSpan(span, err) }()
	span.SetAttributes(attribute.String("admin.id", adminID))

	var superseded bool
	err = s.db.QueryRow(
		ctx,
		`INSERT INTO verification_code (admin_id, code, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (admin_id) DO UPDATE
			SET code = EXCLUDED.code, expires_at = EXCLUDED.expires_at, created_at = now()
		RETURNING (xmax <> 0);`,
		adminID, code, expiresAt,
	).Scan(&superseded)
	if err != nil {
		if pkg.IsForeignKeyViolationError(err) {
			return nil, ErrUnknownAdmin
		}
		return nil, fmt.Errorf("upsert code: %w", err)
	}
	span.SetAttributes(attribute.Bool("code.superseded", superseded))

	return &Code{
		AdminID:   adminID,
		Code:      code,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *PsqlStore) Consume(ctx context.Context, adminID, code string, now time.Time) (_ *Code, err error) {
	ctx, span := tracing.Start(ctx, "repo.verification.consume")
	defer func() { tracing.EndSpan(span, err) }()
	span.SetAttributes(attribute.String("admin.id", adminID))

	// single statement: two concurrent consumers cannot both get the row
	var c Code
	err = s.db.QueryRow(
		ctx,
		`DELETE FROM verification_code
		WHERE admin_id = $1 AND code = $2 AND expires_at > $3
		RETURNING admin_id, code, expires_at;`,
		adminID, code, now,
	).Scan(&c.AdminID, &c.Code, &c.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("consume code: %w", err)
	}

	return &c, nil
}

func (s *PsqlStore) DeleteExpired(ctx context.Context, now time.Time) (_ int64, err error) {
	ctx, span := tracing.Start(ctx, "repo.verification.deleteExpired")
	defer func() { tracing.EndSpan(span, err) }()

	tag, err := s.db.Exec(ctx, `DELETE FROM verification_code WHERE expires_at <= $1;`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired codes: %w", err)
	}
	return tag.RowsAffected(), nil
}
