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

// CreateProject inserts a project, deriving its slug from name.
func (s *Store) CreateProject(ctx context.Context, name string) (experiments.Project, error) {
	name = strings.TrimSpace(name)
	slug := experiments.Slugify(name)
	if name == "" || slug == "" {
		return experiments.Project{}, services.Wrap(services.ErrValidation, "store", "create project", "project name is required", nil)
	}
	res, err := s.execWithRetry(ctx,
		"INSERT INTO projects (name, slug, created_at) VALUES (?, ?, ?)",
		name, slug, formatTime(s.now()),
	)
	if isUniqueViolation(err) {
		return experiments.Project{}, services.Wrap(services.ErrValidation, "store", "create project",
			fmt.Sprintf("project %q already exists", name), err)
	}
	if err != nil {
		return experiments.Project{}, fmt.Errorf("insert project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return experiments.Project{}, fmt.Errorf("project id: %w", err)
	}
	return experiments.Project{ID: id, Name: name, Slug: slug}, nil
}

// UpsertProject creates the project with slug or renames the existing one.
func (s *Store) UpsertProject(ctx context.Context, name, slug string) (experiments.Project, error) {
	name = strings.TrimSpace(name)
	slug = strings.TrimSpace(slug)
	if slug == "" {
		slug = experiments.Slugify(name)
	}
	if name == "" || slug == "" {
		return experiments.Project{}, services.Wrap(services.ErrValidation, "store", "upsert project", "project name is required", nil)
	}
	if _, err := s.execWithRetry(ctx, `INSERT INTO projects (name, slug, created_at) VALUES (?, ?, ?)
ON CONFLICT(slug) DO UPDATE SET name = excluded.name`,
		name, slug, formatTime(s.now()),
	); err != nil {
		if isUniqueViolation(err) {
			return experiments.Project{}, services.Wrap(services.ErrValidation, "store", "upsert project",
				fmt.Sprintf("project name %q is used by another slug", name), err)
		}
		return experiments.Project{}, fmt.Errorf("upsert project: %w", err)
	}
	return s.GetProjectBySlug(ctx, slug)
}

// ListProjects returns every project ordered by name.
func (s *Store) ListProjects(ctx context.Context) ([]experiments.Project, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT id, name, slug FROM projects ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []experiments.Project
	for rows.Next() {
		var p experiments.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Slug); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetProject looks a project up by id.
func (s *Store) GetProject(ctx context.Context, id int64) (experiments.Project, error) {
	return s.getProject(ctx, "id = ?", id)
}

// GetProjectBySlug looks a project up by slug.
func (s *Store) GetProjectBySlug(ctx context.Context, slug string) (experiments.Project, error) {
	return s.getProject(ctx, "slug = ?", slug)
}

func (s *Store) getProject(ctx context.Context, where string, arg any) (experiments.Project, error) {
	var p experiments.Project
	err := s.db.QueryRowContext(ensureContext(ctx), "SELECT id, name, slug FROM projects WHERE "+where, arg).
		Scan(&p.ID, &p.Name, &p.Slug)
	if errors.Is(err, sql.ErrNoRows) {
		return experiments.Project{}, notFound("project", arg)
	}
	if err != nil {
		return experiments.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}
