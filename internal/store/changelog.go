package store

import (
	"context"
	"database/sql"
	"fmt"

	"experimenter/internal/experiments"
)

const changeColumns = "c.id, c.experiment_id, c.changed_on, c.changed_by_id, u.email, c.old_status, c.new_status, c.message"

func scanChange(scanner rowScanner) (experiments.ChangeLog, error) {
	var (
		c         experiments.ChangeLog
		changedOn string
		oldStatus sql.NullString
		newStatus string
	)
	if err := scanner.Scan(&c.ID, &c.ExperimentID, &changedOn, &c.ChangedByID, &c.ChangedByEmail, &oldStatus, &newStatus, &c.Message); err != nil {
		return experiments.ChangeLog{}, err
	}
	c.ChangedOn = parseTime(changedOn)
	c.OldStatus = experiments.Status(oldStatus.String)
	c.NewStatus = experiments.Status(newStatus)
	return c, nil
}

func insertChange(ctx context.Context, tx *sql.Tx, c experiments.ChangeLog) (experiments.ChangeLog, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO experiment_changelog (experiment_id, changed_on, changed_by_id, old_status, new_status, message) VALUES (?, ?, ?, ?, ?, ?)",
		c.ExperimentID, formatTime(c.ChangedOn), c.ChangedByID, nullableString(string(c.OldStatus)), string(c.NewStatus), c.Message,
	)
	if err != nil {
		return experiments.ChangeLog{}, err
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return experiments.ChangeLog{}, err
	}
	return c, nil
}

// RecordChange appends c verbatim, without touching the experiment row. It
// backs imports of historical data. A zero ChangedOn records the current time.
func (s *Store) RecordChange(ctx context.Context, c experiments.ChangeLog) (experiments.ChangeLog, error) {
	if c.ChangedOn.IsZero() {
		c.ChangedOn = s.now()
	}
	var saved experiments.ChangeLog
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		saved, err = insertChange(ctx, tx, c)
		return err
	})
	if err != nil {
		return experiments.ChangeLog{}, fmt.Errorf("record change: %w", err)
	}
	return saved, nil
}

// ListChanges returns the changelog of experimentID, oldest first.
func (s *Store) ListChanges(ctx context.Context, experimentID int64) ([]experiments.ChangeLog, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT "+changeColumns+" FROM experiment_changelog c JOIN users u ON u.id = c.changed_by_id WHERE c.experiment_id = ? ORDER BY c.changed_on, c.id",
		experimentID)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	defer rows.Close()

	var changes []experiments.ChangeLog
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}
