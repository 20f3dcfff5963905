package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sentryops/bypassguard/internal/domain/models"
	"github.com/sentryops/bypassguard/internal/domain/ports"
)

// userRepository implements the UserRepository interface using PostgreSQL
type userRepository struct {
	db sqlx.ExtContext
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db sqlx.ExtContext) ports.UserRepository {
	return &userRepository{db: db}
}

// GetByID retrieves a user by id
func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, name, email, role, phone FROM users WHERE id = $1`

	var user models.User
	err := sqlx.GetContext(ctx, r.db, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// ListApprovers retrieves every user whose role grants validation rights
func (r *userRepository) ListApprovers(ctx context.Context) ([]*models.User, error) {
	query := `SELECT id, name, email, role, phone FROM users WHERE role IN ($1, $2, $3) ORDER BY id`

	var users []*models.User
	err := sqlx.SelectContext(ctx, r.db, &users, query,
		models.RoleSupervisor, models.RoleDirector, models.RoleAdministrator)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvers: %w", err)
	}

	return users, nil
}
