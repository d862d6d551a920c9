package repository

import (
	"context"

	"github.com/spec-kit/identity-service/internal/domain"
)

// ResourceRepository defines persistence access for generic resources.
type ResourceRepository interface {
	GetAll(ctx context.Context) ([]domain.Resource, error)
	GetByID(ctx context.Context, id string) (domain.Resource, error)
	Create(ctx context.Context, resource domain.Resource) (domain.Resource, error)
	Update(ctx context.Context, resource domain.Resource) error
	Delete(ctx context.Context, id string) error
}

type resourceRepository struct {
	db DBTX
}

// NewResourceRepository returns a Postgres-backed implementation.
func NewResourceRepository(db DBTX) ResourceRepository {
	return &resourceRepository{db: db}
}

func (r *resourceRepository) GetAll(ctx context.Context) ([]domain.Resource, error) {
	const query = `
        SELECT id, name, created_at, updated_at
        FROM resources ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var resources []domain.Resource
	for rows.Next() {
		var res domain.Resource
		if err := rows.Scan(&res.ID, &res.Name, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, err
		}
		resources = append(resources, res)
	}
	return resources, rows.Err()
}

func (r *resourceRepository) GetByID(ctx context.Context, id string) (domain.Resource, error) {
	const query = `
        SELECT id, name, created_at, updated_at
        FROM resources WHERE id=$1`

	var res domain.Resource
	if err := r.db.QueryRow(ctx, query, id).Scan(&res.ID, &res.Name, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return domain.Resource{}, translate(err)
	}
	return res, nil
}

func (r *resourceRepository) Create(ctx context.Context, resource domain.Resource) (domain.Resource, error) {
	const query = `
        INSERT INTO resources (id, name)
        VALUES ($1, $2)
        RETURNING created_at, updated_at`

	if err := r.db.QueryRow(ctx, query, resource.ID, resource.Name).
		Scan(&resource.CreatedAt, &resource.UpdatedAt); err != nil {
		return domain.Resource{}, translate(err)
	}
	return resource, nil
}

func (r *resourceRepository) Update(ctx context.Context, resource domain.Resource) error {
	const query = `
        UPDATE resources SET name=$1, updated_at=NOW()
        WHERE id=$2`

	cmd, err := r.db.Exec(ctx, query, resource.Name, resource.ID)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *resourceRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM resources WHERE id=$1`, id)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
