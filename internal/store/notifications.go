package store

import (
	"context"
	"database/sql"
	"fmt"

	"experimenter/internal/experiments"
)

// CreateNotification queues message for userID.
func (s *Store) CreateNotification(ctx context.Context, userID int64, message string) (experiments.Notification, error) {
	now := s.now()
	res, err := s.execWithRetry(ctx,
		"INSERT INTO notifications (user_id, message, read, created_on) VALUES (?, ?, 0, ?)",
		userID, message, formatTime(now),
	)
	if err != nil {
		return experiments.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return experiments.Notification{}, fmt.Errorf("notification id: %w", err)
	}
	return experiments.Notification{ID: id, UserID: userID, Message: message, CreatedOn: now}, nil
}

// UnreadNotifications lists the unread notifications of userID, oldest first.
func (s *Store) UnreadNotifications(ctx context.Context, userID int64) ([]experiments.Notification, error) {
	return s.listNotifications(ctx, userID, true)
}

// ListNotifications lists every notification of userID, oldest first.
func (s *Store) ListNotifications(ctx context.Context, userID int64) ([]experiments.Notification, error) {
	return s.listNotifications(ctx, userID, false)
}

func (s *Store) listNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]experiments.Notification, error) {
	query := "SELECT id, user_id, message, read, created_on FROM notifications WHERE user_id = ?"
	if unreadOnly {
		query += " AND read = 0"
	}
	query += " ORDER BY created_on, id"
	rows, err := s.db.QueryContext(ensureContext(ctx), query, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func scanNotifications(rows *sql.Rows) ([]experiments.Notification, error) {
	var out []experiments.Notification
	for rows.Next() {
		var (
			n       experiments.Notification
			read    int
			created string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &read, &created); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Read = read != 0
		n.CreatedOn = parseTime(created)
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationsRead flags ids as read.
func (s *Store) MarkNotificationsRead(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.execWithRetry(ctx,
		"UPDATE notifications SET read = 1 WHERE id IN ("+makePlaceholders(len(ids))+")",
		int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}

// PopUnreadNotifications returns the unread notifications of userID and
// marks them read in the same transaction.
func (s *Store) PopUnreadNotifications(ctx context.Context, userID int64) ([]experiments.Notification, error) {
	var out []experiments.Notification
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			"SELECT id, user_id, message, read, created_on FROM notifications WHERE user_id = ? AND read = 0 ORDER BY created_on, id",
			userID)
		if err != nil {
			return err
		}
		out, err = scanNotifications(rows)
		rows.Close()
		if err != nil || len(out) == 0 {
			return err
		}
		ids := make([]int64, 0, len(out))
		for _, n := range out {
			ids = append(ids, n.ID)
		}
		_, err = tx.ExecContext(ctx, "UPDATE notifications SET read = 1 WHERE id IN ("+makePlaceholders(len(ids))+")", int64Args(ids)...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("pop notifications: %w", err)
	}
	return out, nil
}

// CountNotifications returns the total and unread notification counts for userID.
func (s *Store) CountNotifications(ctx context.Context, userID int64) (total, unread int, err error) {
	err = s.db.QueryRowContext(ensureContext(ctx),
		"SELECT COUNT(1), COALESCE(SUM(CASE WHEN read = 0 THEN 1 ELSE 0 END), 0) FROM notifications WHERE user_id = ?",
		userID).Scan(&total, &unread)
	if err != nil {
		return 0, 0, fmt.Errorf("count notifications: %w", err)
	}
	return total, unread, nil
}
