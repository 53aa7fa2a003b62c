package main

import (
	"database/sql"
	"fmt"
	"time"
)

// sqliteStore keeps the run ledger: one row per processing run plus a
// per-file breakdown. Extracted coordinates themselves are never
// stored, only counts and the issued identifier range.
type sqliteStore struct {
	db *sql.DB
}

func (s *sqliteStore) init() error {
	for _, q := range []string{
		"create table if not exists runs (id integer primary key, city text not null, status text not null, message text, files integer, statements integer, first_id integer, last_id integer, created_at text not null)",
		"create table if not exists run_files (run_id integer not null, file text not null, ok integer not null, reason text)",
		"create index if not exists run_files_run_id on run_files(run_id)",
	} {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

type runRecord struct {
	id         int64
	city       string
	status     string
	message    string
	files      int
	statements int
	firstID    int
	lastID     int
	createdAt  string
}

func (r runRecord) String() string {
	return fmt.Sprintf("%d %s %s: %d file(s), %d statement(s), ids %d-%d", r.id, r.createdAt, r.city, r.files, r.statements, r.firstID, r.lastID)
}

func (s *sqliteStore) recordRun(res *runResult) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	lastID := res.nextID - 1
	r, err := tx.Exec("insert into runs (city, status, message, files, statements, first_id, last_id, created_at) values (?, ?, ?, ?, ?, ?, ?, ?)",
		res.city, res.status, res.message, len(res.outcomes), res.statements(), res.firstID, lastID, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	runID, err := r.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, o := range res.outcomes {
		ok := 0
		if o.ok {
			ok = 1
		}
		if _, err := tx.Exec("insert into run_files (run_id, file, ok, reason) values (?, ?, ?, ?)",
			runID, o.file, ok, o.reason,
		); err != nil {
			return 0, err
		}
	}

	return runID, tx.Commit()
}

func (s *sqliteStore) listRuns() ([]runRecord, error) {
	rows, err := s.db.Query("select id, city, status, message, files, statements, first_id, last_id, created_at from runs order by id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []runRecord
	for rows.Next() {
		var rec runRecord
		var message sql.NullString
		if err := rows.Scan(&rec.id, &rec.city, &rec.status, &message, &rec.files, &rec.statements, &rec.firstID, &rec.lastID, &rec.createdAt); err != nil {
			return nil, err
		}
		rec.message = message.String
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

func (s *sqliteStore) runFiles(runID int64) ([]fileOutcome, error) {
	rows, err := s.db.Query("select file, ok, reason from run_files where run_id=?", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outs []fileOutcome
	for rows.Next() {
		var o fileOutcome
		var ok int
		var reason sql.NullString
		if err := rows.Scan(&o.file, &ok, &reason); err != nil {
			return nil, err
		}
		o.ok = ok == 1
		o.reason = reason.String
		outs = append(outs, o)
	}

	return outs, rows.Err()
}
