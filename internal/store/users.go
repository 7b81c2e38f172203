package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"experimenter/internal/experiments"
	"experimenter/internal/services"
)

// GetOrCreateUser returns the user for email, creating it on first sight.
func (s *Store) GetOrCreateUser(ctx context.Context, email string) (experiments.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return experiments.User{}, services.Wrap(services.ErrValidation, "store", "get or create user", "email is required", nil)
	}
	if _, err := s.execWithRetry(ctx,
		"INSERT INTO users (email, created_at) VALUES (?, ?) ON CONFLICT(email) DO NOTHING",
		email, formatTime(s.now()),
	); err != nil {
		return experiments.User{}, fmt.Errorf("insert user: %w", err)
	}
	return s.GetUserByEmail(ctx, email)
}

// GetUserByEmail looks a user up by email, ignoring case.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (experiments.User, error) {
	var user experiments.User
	err := s.db.QueryRowContext(ensureContext(ctx), "SELECT id, email FROM users WHERE email = ?", strings.TrimSpace(email)).
		Scan(&user.ID, &user.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return experiments.User{}, notFound("user", email)
	}
	if err != nil {
		return experiments.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetUser looks a user up by id.
func (s *Store) GetUser(ctx context.Context, id int64) (experiments.User, error) {
	var user experiments.User
	err := s.db.QueryRowContext(ensureContext(ctx), "SELECT id, email FROM users WHERE id = ?", id).Scan(&user.ID, &user.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return experiments.User{}, notFound("user", id)
	}
	if err != nil {
		return experiments.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// ListOwners returns users that own at least one experiment, for filter choices.
func (s *Store) ListOwners(ctx context.Context) ([]experiments.User, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT DISTINCT u.id, u.email
FROM users u JOIN experiments e ON e.owner_id = u.id
ORDER BY u.email`)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	defer rows.Close()

	var users []experiments.User
	for rows.Next() {
		var user experiments.User
		if err := rows.Scan(&user.ID, &user.Email); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
