package store

import "database/sql"

// UpsertInvoice inserts or replaces an invoice record synced from the
// dashboard. The reminder flag pair is preserved on update: it belongs
// to the notification pipeline, not the sync.
func (db *DB) UpsertInvoice(i *Invoice) error {
	_, err := db.Exec(`
		INSERT INTO invoices
			(id, organization_id, number, customer_name, customer_phone,
			 amount_cents, balance_cents, due_date, status,
			 reminder_sent, reminder_sent_at, max_reminder_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			number = excluded.number,
			customer_name = excluded.customer_name,
			customer_phone = excluded.customer_phone,
			amount_cents = excluded.amount_cents,
			balance_cents = excluded.balance_cents,
			due_date = excluded.due_date,
			status = excluded.status,
			max_reminder_date = excluded.max_reminder_date`,
		i.ID, i.Org, i.Number, i.CustomerName, i.CustomerPhone,
		i.AmountCents, i.BalanceCents, i.DueDate, i.Status,
		boolToInt(i.ReminderSent), i.ReminderSentAt, i.MaxReminderDate)
	return err
}

// DueInvoiceReminders selects invoices eligible for a reminder at `now`:
// overdue with an outstanding balance, non-terminal status, outside the
// cooldown window measured against reminder_sent_at (not created_at),
// and not past their optional max reminder date.
func (db *DB) DueInvoiceReminders(org string, now, cooldown int64, limit int) ([]Invoice, error) {
	rows, err := db.Query(`
		SELECT id, organization_id, number, customer_name, customer_phone,
		       amount_cents, balance_cents, due_date, status,
		       reminder_sent, reminder_sent_at, max_reminder_date
		FROM invoices
		WHERE organization_id = ?
		  AND balance_cents > 0
		  AND due_date < ?
		  AND status NOT IN (?, ?)
		  AND customer_phone != ''
		  AND (reminder_sent = 0 OR reminder_sent_at <= ?)
		  AND (max_reminder_date = 0 OR ? <= max_reminder_date)
		ORDER BY due_date ASC
		LIMIT ?`,
		org, now, InvoicePaid, InvoiceCancelled, now-cooldown, now, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Invoice
	for rows.Next() {
		var i Invoice
		var reminded int
		if err := rows.Scan(&i.ID, &i.Org, &i.Number, &i.CustomerName,
			&i.CustomerPhone, &i.AmountCents, &i.BalanceCents, &i.DueDate,
			&i.Status, &reminded, &i.ReminderSentAt, &i.MaxReminderDate); err != nil {
			return nil, err
		}
		i.ReminderSent = reminded != 0
		out = append(out, i)
	}
	return out, rows.Err()
}

// GetInvoice fetches one invoice by id, nil when absent.
func (db *DB) GetInvoice(org, id string) (*Invoice, error) {
	row := db.QueryRow(`
		SELECT id, organization_id, number, customer_name, customer_phone,
		       amount_cents, balance_cents, due_date, status,
		       reminder_sent, reminder_sent_at, max_reminder_date
		FROM invoices
		WHERE organization_id = ? AND id = ?`, org, id)

	var i Invoice
	var reminded int
	err := row.Scan(&i.ID, &i.Org, &i.Number, &i.CustomerName,
		&i.CustomerPhone, &i.AmountCents, &i.BalanceCents, &i.DueDate,
		&i.Status, &reminded, &i.ReminderSentAt, &i.MaxReminderDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	i.ReminderSent = reminded != 0
	return &i, nil
}

// MarkInvoiceReminded flips the invoice's idempotency flag pair after a
// successful dispatch.
func (db *DB) MarkInvoiceReminded(id string, at int64) error {
	_, err := db.Exec(`UPDATE invoices SET reminder_sent = 1, reminder_sent_at = ? WHERE id = ?`, at, id)
	return err
}

// OverdueInvoiceTotals returns the count and summed balance of overdue,
// unpaid invoices. Feeds the daily summary message.
func (db *DB) OverdueInvoiceTotals(org string, now int64) (count int, balanceCents int64, err error) {
	err = db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(balance_cents), 0) FROM invoices
		WHERE organization_id = ?
		  AND balance_cents > 0
		  AND due_date < ?
		  AND status NOT IN (?, ?)`,
		org, now, InvoicePaid, InvoiceCancelled).Scan(&count, &balanceCents)
	return count, balanceCents, err
}
