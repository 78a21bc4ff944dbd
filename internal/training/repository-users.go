package training

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shamoevthomas/forceapp/internal/sqlite"
)

// sqliteUserRepository implements userRepository.
type sqliteUserRepository struct {
	baseRepository
}

func newSQLiteUserRepository(db *sqlite.Database, logger *slog.Logger) *sqliteUserRepository {
	return &sqliteUserRepository{
		baseRepository: newBaseRepository(db, logger),
	}
}

// Create inserts a user and returns its id.
func (r *sqliteUserRepository) Create(ctx context.Context, displayName string) (int, error) {
	var id int
	if err := r.db.ReadWrite.QueryRowContext(ctx, `
		INSERT INTO users (display_name) VALUES (?) RETURNING id`, displayName).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

func (r *sqliteUserRepository) Exists(ctx context.Context, id int) (bool, error) {
	var exists bool
	if err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("query user: %w", err)
	}
	return exists, nil
}
