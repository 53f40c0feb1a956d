package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AdminRepository 管理員名單 (admins 資料表)
type AdminRepository interface {
	Add(ctx context.Context, identity string) error
	Remove(ctx context.Context, identity string) error
	Exists(ctx context.Context, identity string) (bool, error)
	List(ctx context.Context) ([]string, error)
}

type AdminRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewAdminRepository(pool *pgxpool.Pool) AdminRepository {
	return &AdminRepositoryImpl{
		pool: pool,
	}
}

// 身分一律以小寫比對
func normalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

func (r *AdminRepositoryImpl) Add(ctx context.Context, identity string) error {
	query := `
		INSERT INTO admins (identity)
		VALUES ($1)
		ON CONFLICT (identity) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, normalizeIdentity(identity))
	return err
}

func (r *AdminRepositoryImpl) Remove(ctx context.Context, identity string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM admins WHERE identity = $1`, normalizeIdentity(identity))
	return err
}

func (r *AdminRepositoryImpl) Exists(ctx context.Context, identity string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM admins WHERE identity = $1)`,
		normalizeIdentity(identity),
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *AdminRepositoryImpl) List(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT identity FROM admins ORDER BY identity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	identities := make([]string, 0)
	for rows.Next() {
		var identity string
		if err := rows.Scan(&identity); err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return identities, nil
}
