package store

// UpsertTrip inserts or replaces a trip record synced from the dashboard.
func (db *DB) UpsertTrip(t *Trip) error {
	_, err := db.Exec(`
		INSERT INTO trips
			(id, organization_id, driver_name, driver_phone, origin, destination,
			 scheduled_at, status, notified, notified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			driver_name = excluded.driver_name,
			driver_phone = excluded.driver_phone,
			origin = excluded.origin,
			destination = excluded.destination,
			scheduled_at = excluded.scheduled_at,
			status = excluded.status`,
		t.ID, t.Org, t.DriverName, t.DriverPhone, t.Origin, t.Destination,
		t.ScheduledAt, t.Status, boolToInt(t.Notified), t.NotifiedAt)
	return err
}

// UnnotifiedTrips selects scheduled trips whose driver has not been
// notified yet. Trips without a driver phone are skipped at the query so
// the sweep never burns batch slots on them.
func (db *DB) UnnotifiedTrips(org string, limit int) ([]Trip, error) {
	rows, err := db.Query(`
		SELECT id, organization_id, driver_name, driver_phone, origin,
		       destination, scheduled_at, status, notified, notified_at
		FROM trips
		WHERE organization_id = ?
		  AND notified = 0
		  AND status = 'scheduled'
		  AND driver_phone != ''
		ORDER BY scheduled_at ASC
		LIMIT ?`, org, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Trip
	for rows.Next() {
		var t Trip
		var notified int
		if err := rows.Scan(&t.ID, &t.Org, &t.DriverName, &t.DriverPhone,
			&t.Origin, &t.Destination, &t.ScheduledAt, &t.Status,
			&notified, &t.NotifiedAt); err != nil {
			return nil, err
		}
		t.Notified = notified != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

// MarkTripNotified flips the trip's idempotency flag after a successful
// dispatch. The flag is the only guard against re-notifying the driver
// on the next sweep.
func (db *DB) MarkTripNotified(id string, at int64) error {
	_, err := db.Exec(`UPDATE trips SET notified = 1, notified_at = ? WHERE id = ?`, at, id)
	return err
}

// CountTripsScheduledBetween counts trips scheduled inside [from, to).
func (db *DB) CountTripsScheduledBetween(org string, from, to int64) (int, error) {
	var n int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM trips
		WHERE organization_id = ? AND scheduled_at >= ? AND scheduled_at < ?`,
		org, from, to).Scan(&n)
	return n, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
