package vendors

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines vendor data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetByCode(ctx context.Context, code string) (Vendor, error)
	List(ctx context.Context, district string, limit, offset int) ([]Vendor, error)
}

// TxRepository defines vendor operations inside a transaction. Code
// generation counts and inserts under one transaction so serials
// never collide.
type TxRepository interface {
	CountByCombination(ctx context.Context, district, businessType string, year int) (int, error)
	Insert(ctx context.Context, v Vendor) error
	UpdateContact(ctx context.Context, code string, phone, email string) error
}

var _ Repository = (*pgRepository)(nil)
var _ TxRepository = (*pgTxRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the Postgres-backed vendor repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx, &pgTxRepository{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const vendorColumns = `code, name, district, business_type, registration_year, contact_phone, contact_email, created_at, updated_at`

func scanVendor(row pgx.Row) (Vendor, error) {
	var v Vendor
	err := row.Scan(&v.Code, &v.Name, &v.District, &v.BusinessType, &v.RegistrationYear, &v.ContactPhone, &v.ContactEmail, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vendor{}, ErrVendorNotFound
	}
	if err != nil {
		return Vendor{}, err
	}
	return v, nil
}

func (r *pgRepository) GetByCode(ctx context.Context, code string) (Vendor, error) {
	return scanVendor(r.pool.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE code = $1`, code))
}

func (r *pgRepository) List(ctx context.Context, district string, limit, offset int) ([]Vendor, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + vendorColumns + ` FROM vendors`
	args := []any{}
	if district != "" {
		query += ` WHERE district = $1 ORDER BY code LIMIT $2 OFFSET $3`
		args = append(args, district, limit, offset)
	} else {
		query += ` ORDER BY code LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgTxRepository) CountByCombination(ctx context.Context, district, businessType string, year int) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM vendors WHERE district = $1 AND business_type = $2 AND registration_year = $3`,
		district, businessType, year).Scan(&count)
	return count, err
}

func (r *pgTxRepository) Insert(ctx context.Context, v Vendor) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO vendors (code, name, district, business_type, registration_year, contact_phone, contact_email, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())`,
		v.Code, v.Name, v.District, v.BusinessType, v.RegistrationYear, v.ContactPhone, v.ContactEmail)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return ErrDuplicateCode
		}
		return err
	}
	return nil
}

func (r *pgTxRepository) UpdateContact(ctx context.Context, code, phone, email string) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE vendors SET contact_phone = $2, contact_email = $3, updated_at = now() WHERE code = $1`,
		code, phone, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVendorNotFound
	}
	return nil
}
