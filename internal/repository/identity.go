package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/basmalabs/storefront/internal/domain/auth"
)

const (
	identityColumns = `id, name, email, role, api_key_hash`

	findByKeyHashSQL = `SELECT ` + identityColumns + ` FROM users WHERE api_key_hash = $1`
	findByEmailSQL   = `SELECT ` + identityColumns + ` FROM users WHERE email = $1`
)

var _ auth.Directory = (*IdentityRepository)(nil)

// IdentityRepository implements auth.Directory backed by the users table.
type IdentityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository returns an IdentityRepository that uses the given
// pool.
func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// FindByKeyHash resolves the identity owning the given API key hash.
func (r *IdentityRepository) FindByKeyHash(ctx context.Context, hash string) (*auth.Identity, error) {
	return r.findOne(ctx, findByKeyHashSQL, hash)
}

// FindByEmail resolves an identity by email address.
func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	return r.findOne(ctx, findByEmailSQL, email)
}

func (r *IdentityRepository) findOne(ctx context.Context, sql string, arg any) (*auth.Identity, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("looking up identity: %w", err)
	}

	id, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (auth.Identity, error) {
		var i auth.Identity
		err := row.Scan(&i.ID, &i.Name, &i.Email, &i.Role, &i.KeyHash)
		return i, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUnknownIdentity
		}
		return nil, fmt.Errorf("looking up identity: %w", err)
	}
	return &id, nil
}
