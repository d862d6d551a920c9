package repository

import (
	"context"

	"github.com/spec-kit/identity-service/internal/domain"
)

// IdentityRepository defines persistence access for registered identities.
type IdentityRepository interface {
	Create(ctx context.Context, identity domain.Identity) (domain.Identity, error)
	Update(ctx context.Context, identity domain.Identity) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (domain.Identity, error)
}

type identityRepository struct {
	db DBTX
}

// NewIdentityRepository returns a Postgres-backed implementation.
func NewIdentityRepository(db DBTX) IdentityRepository {
	return &identityRepository{db: db}
}

const identityColumns = `id, email, password_hash, role, created_at, updated_at`

func (r *identityRepository) Create(ctx context.Context, identity domain.Identity) (domain.Identity, error) {
	const query = `
        INSERT INTO identities (id, email, password_hash, role)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		identity.ID,
		identity.Email,
		identity.PasswordHash,
		string(identity.Role),
	).Scan(&identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		return domain.Identity{}, translate(err)
	}
	return identity, nil
}

func (r *identityRepository) Update(ctx context.Context, identity domain.Identity) error {
	const query = `
        UPDATE identities SET password_hash=$1, role=$2, updated_at=NOW()
        WHERE id=$3`

	cmd, err := r.db.Exec(ctx, query, identity.PasswordHash, string(identity.Role), identity.ID)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *identityRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM identities WHERE id=$1`, id)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *identityRepository) GetByID(ctx context.Context, id string) (domain.Identity, error) {
	return r.scanOne(ctx, `SELECT `+identityColumns+` FROM identities WHERE id=$1`, id)
}

func (r *identityRepository) GetByEmail(ctx context.Context, email string) (domain.Identity, error) {
	return r.scanOne(ctx, `SELECT `+identityColumns+` FROM identities WHERE LOWER(email)=LOWER($1)`, email)
}

func (r *identityRepository) scanOne(ctx context.Context, query string, arg any) (domain.Identity, error) {
	var (
		identity domain.Identity
		role     string
	)
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&identity.ID,
		&identity.Email,
		&identity.PasswordHash,
		&role,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	); err != nil {
		return domain.Identity{}, translate(err)
	}
	identity.Role = domain.Role(role)
	return identity, nil
}
