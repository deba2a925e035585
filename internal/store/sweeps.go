package store

// InsertSweepRun writes the audit summary for one batch sweep.
func (db *DB) InsertSweepRun(r *SweepRun) error {
	res, err := db.Exec(`
		INSERT INTO sweep_runs
			(organization_id, kind, processed, sent, failed, errors, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Org, r.Kind, r.Processed, r.Sent, r.Failed, r.Errors, r.StartedAt, r.FinishedAt)
	if err != nil {
		return err
	}
	r.ID, _ = res.LastInsertId()
	return nil
}

// ListSweepRuns returns recent sweep summaries, newest first.
func (db *DB) ListSweepRuns(org string, limit int) ([]SweepRun, error) {
	rows, err := db.Query(`
		SELECT id, organization_id, kind, processed, sent, failed, errors, started_at, finished_at
		FROM sweep_runs
		WHERE organization_id = ?
		ORDER BY started_at DESC LIMIT ?`, org, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []SweepRun
	for rows.Next() {
		var r SweepRun
		if err := rows.Scan(&r.ID, &r.Org, &r.Kind, &r.Processed, &r.Sent,
			&r.Failed, &r.Errors, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
