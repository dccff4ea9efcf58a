package backfill

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Progress tracks which days have been imported so an interrupted backfill
// resumes without re-querying completed days.
type Progress struct {
	db *sql.DB
}

// OpenProgress opens (or creates) the SQLite progress database at
// dir/progress.db.
func OpenProgress(dir string) (*Progress, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating progress dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "progress.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening progress db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS completed_days (
		day          TEXT PRIMARY KEY,
		points       INTEGER NOT NULL DEFAULT 0,
		completed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating progress table: %w", err)
	}

	return &Progress{db: db}, nil
}

// IsCompleted reports whether a day (YYYY-MM-DD) has been imported.
func (p *Progress) IsCompleted(day string) (bool, error) {
	var count int
	err := p.db.QueryRow(
		`SELECT COUNT(*) FROM completed_days WHERE day = ?`, day,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkCompleted records that a day was imported with the given point count.
func (p *Progress) MarkCompleted(day string, points int) error {
	_, err := p.db.Exec(
		`INSERT OR REPLACE INTO completed_days (day, points) VALUES (?, ?)`,
		day, points,
	)
	return err
}

// CompletedDays returns all completed days sorted ascending.
func (p *Progress) CompletedDays() ([]string, error) {
	rows, err := p.db.Query(`SELECT day FROM completed_days ORDER BY day`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var days []string
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, rows.Err()
}

// TotalPoints returns the sum of points across all completed days.
func (p *Progress) TotalPoints() (int, error) {
	var total int
	err := p.db.QueryRow(
		`SELECT COALESCE(SUM(points), 0) FROM completed_days`,
	).Scan(&total)
	return total, err
}

// CompletedCount returns the number of completed days.
func (p *Progress) CompletedCount() (int, error) {
	var count int
	err := p.db.QueryRow(`SELECT COUNT(*) FROM completed_days`).Scan(&count)
	return count, err
}

// CompletionTimes returns the timestamps of the first and most recent
// completions, or zero times when nothing has been imported yet.
func (p *Progress) CompletionTimes() (first, last time.Time, err error) {
	var firstStr, lastStr sql.NullString
	err = p.db.QueryRow(
		`SELECT MIN(completed_at), MAX(completed_at) FROM completed_days`,
	).Scan(&firstStr, &lastStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if firstStr.Valid {
		first, err = parseSQLiteTime(firstStr.String)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if lastStr.Valid {
		last, err = parseSQLiteTime(lastStr.String)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return first, last, nil
}

// parseSQLiteTime parses CURRENT_TIMESTAMP values ("2006-01-02 15:04:05",
// stored in UTC).
func parseSQLiteTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Reset deletes all recorded progress.
func (p *Progress) Reset() error {
	_, err := p.db.Exec(`DELETE FROM completed_days`)
	return err
}

// Close closes the progress database.
func (p *Progress) Close() error {
	return p.db.Close()
}
