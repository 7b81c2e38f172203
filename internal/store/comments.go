package store

import (
	"context"
	"database/sql"
	"fmt"

	"experimenter/internal/experiments"
)

// AddComment stores c and fills in its id and creation time.
func (s *Store) AddComment(ctx context.Context, c *experiments.Comment) error {
	if c.CreatedOn.IsZero() {
		c.CreatedOn = s.now()
	}
	res, err := s.execWithRetry(ctx,
		"INSERT INTO experiment_comments (experiment_id, section, text, created_by_id, created_on) VALUES (?, ?, ?, ?, ?)",
		c.ExperimentID, c.Section, c.Text, c.CreatedByID, formatTime(c.CreatedOn),
	)
	if err != nil {
		return fmt.Errorf("add comment: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("comment id: %w", err)
	}
	return nil
}

// CommentsBySection groups the comments of experimentID by section, oldest first.
func (s *Store) CommentsBySection(ctx context.Context, experimentID int64) (map[string][]experiments.Comment, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT c.id, c.experiment_id, c.section, c.text, c.created_by_id, u.email, c.created_on
FROM experiment_comments c JOIN users u ON u.id = c.created_by_id
WHERE c.experiment_id = ?
ORDER BY c.created_on, c.id`, experimentID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	sections := make(map[string][]experiments.Comment)
	for rows.Next() {
		var (
			c       experiments.Comment
			created sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.ExperimentID, &c.Section, &c.Text, &c.CreatedByID, &c.CreatedByEmail, &created); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.CreatedOn = parseTime(created.String)
		sections[c.Section] = append(sections[c.Section], c)
	}
	return sections, rows.Err()
}
