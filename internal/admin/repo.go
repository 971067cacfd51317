package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/contenthub/internal/telemetry/tracing"
	"github.com/2beens/contenthub/pkg"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrAdminNotFound = errors.New("admin not found")
	ErrAdminExists   = errors.New("admin with this email already exists")
)

type Repo struct {
	db *pgxpool.Pool
	// ability to inject id generator and clock (for unit and dev testing)
	NewIDFunc func() string
	NowFunc   func() time.Time
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db:        db,
		NewIDFunc: uuid.NewString,
		NowFunc:   time.Now,
	}
}

func (r *Repo) Add(ctx context.Context, a *Admin) (_ *Admin, err error) {
	ctx, span := tracing.Start(ctx, "repo.admin.add")
	defer func() { tracing.EndSpan(span, err) }()

	a.Email = NormalizeEmail(a.Email)
	if a.Email == "" || a.PasswordHash == "" {
		return nil, errors.New("admin email or password hash empty")
	}
	if a.ID == "" {
		a.ID = r.NewIDFunc()
	}
	if a.Role == "" {
		a.Role = RoleAdmin
	}
	now := r.NowFunc()
	a.CreatedAt, a.UpdatedAt = now, now

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO admin (id, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6);`,
		a.ID, a.Email, a.PasswordHash, a.Role, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return nil, ErrAdminExists
		}
		return nil, fmt.Errorf("insert admin: %w", err)
	}

	return a, nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (_ *Admin, err error) {
	ctx, span := tracing.Start(ctx, "repo.admin.getByEmail")
	defer func() { tracing.EndSpan(span, err) }()

	row := r.db.QueryRow(
		ctx,
		`SELECT id, email, password_hash, role, created_at, updated_at
		FROM admin WHERE email = $1;`,
		NormalizeEmail(email),
	)
	return scanAdmin(row)
}

func (r *Repo) GetByID(ctx context.Context, id string) (_ *Admin, err error) {
	ctx, span := tracing.Start(ctx, "repo.admin.getByID")
	defer func() { tracing.EndSpan(span, err) }()
	span.SetAttributes(attribute.String("admin.id", id))

	row := r.db.QueryRow(
		ctx,
		`SELECT id, email, password_hash, role, created_at, updated_at
		FROM admin WHERE id = $1;`,
		id,
	)
	return scanAdmin(row)
}

func (r *Repo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) (err error) {
	ctx, span := tracing.Start(ctx, "repo.admin.updatePasswordHash")
	defer func() { tracing.EndSpan(span, err) }()

	if passwordHash == "" {
		return errors.New("password hash empty")
	}

	tag, err := r.db.Exec(
		ctx,
		`UPDATE admin SET password_hash = $1, updated_at = $2 WHERE id = $3;`,
		passwordHash, r.NowFunc(), id,
	)
	if err != nil {
		return fmt.Errorf("update admin password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAdminNotFound
	}

	return nil
}

func (r *Repo) List(ctx context.Context) (_ []Admin, err error) {
	ctx, span := tracing.Start(ctx, "repo.admin.list")
	defer func() { tracing.EndSpan(span, err) }()

	rows, err := r.db.Query(
		ctx,
		`SELECT id, email, password_hash, role, created_at, updated_at
		FROM admin ORDER BY created_at;`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var admins []Admin
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		admins = append(admins, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return admins, nil
}

func scanAdmin(row pgx.Row) (*Admin, error) {
	var a Admin
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("scan admin: %w", err)
	}
	return &a, nil
}
