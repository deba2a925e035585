package store

import (
	"database/sql"
	"time"
)

// InsertNotification writes a new notification record.
func (db *DB) InsertNotification(n *Notification) error {
	if n.CreatedAt == 0 {
		n.CreatedAt = time.Now().UnixMilli()
	}
	_, err := db.Exec(`
		INSERT INTO notifications
			(id, organization_id, type, recipient_phone, message, status,
			 error_message, metadata, created_at, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Org, n.Type, n.RecipientPhone, n.Message, n.Status,
		n.ErrorMessage, metadataOrDefault(n.Metadata), n.CreatedAt, n.SentAt)
	return err
}

func metadataOrDefault(m string) string {
	if m == "" {
		return "{}"
	}
	return m
}

// MarkNotificationResponded records an inbound reply against a
// previously sent notification.
func (db *DB) MarkNotificationResponded(id, responseBody string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE notifications
		SET status = ?, response_body = ?, responded_at = ?
		WHERE id = ?`,
		StatusResponded, responseBody, now, id)
	return err
}

// LatestOpenNotification returns the most recent pending or sent
// notification for a recipient phone, used to match inbound replies.
func (db *DB) LatestOpenNotification(org, phone string) (*Notification, error) {
	row := db.QueryRow(`
		SELECT id, organization_id, type, recipient_phone, message, status,
		       error_message, metadata, response_body, created_at, sent_at, responded_at
		FROM notifications
		WHERE organization_id = ? AND recipient_phone = ? AND status IN (?, ?)
		ORDER BY created_at DESC LIMIT 1`,
		org, phone, StatusPending, StatusSent)

	var n Notification
	err := row.Scan(&n.ID, &n.Org, &n.Type, &n.RecipientPhone, &n.Message,
		&n.Status, &n.ErrorMessage, &n.Metadata, &n.ResponseBody,
		&n.CreatedAt, &n.SentAt, &n.RespondedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// NotificationCounts returns how many notifications were sent and how
// many are still pending for an organization. Feeds the status endpoint.
func (db *DB) NotificationCounts(org string) (sent, pending int, err error) {
	row := db.QueryRow(`
		SELECT
			COUNT(CASE WHEN status IN (?, ?) THEN 1 END),
			COUNT(CASE WHEN status = ? THEN 1 END)
		FROM notifications WHERE organization_id = ?`,
		StatusSent, StatusResponded, StatusPending, org)
	err = row.Scan(&sent, &pending)
	return sent, pending, err
}

// ListNotifications returns recent notifications for an organization,
// newest first.
func (db *DB) ListNotifications(org string, limit int) ([]Notification, error) {
	rows, err := db.Query(`
		SELECT id, organization_id, type, recipient_phone, message, status,
		       error_message, metadata, response_body, created_at, sent_at, responded_at
		FROM notifications
		WHERE organization_id = ?
		ORDER BY created_at DESC LIMIT ?`, org, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.Org, &n.Type, &n.RecipientPhone, &n.Message,
			&n.Status, &n.ErrorMessage, &n.Metadata, &n.ResponseBody,
			&n.CreatedAt, &n.SentAt, &n.RespondedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
