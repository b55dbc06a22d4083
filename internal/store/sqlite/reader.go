package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"meanrev-systemv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to SQLite for warm-up backfill and replay.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadTicks reads ticks for an instrument after a Unix timestamp (0 = all).
// Results are ordered by timestamp ascending for correct replay order.
func (r *Reader) ReadTicks(venue, symbol string, afterTS int64) ([]model.Tick, error) {
	rows, err := r.db.Query(`
		SELECT symbol, venue, ts, price
		FROM ticks
		WHERE venue = ? AND symbol = ? AND ts > ?
		ORDER BY ts ASC
	`, venue, symbol, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query ticks: %w", err)
	}
	defer rows.Close()

	var ticks []model.Tick
	for rows.Next() {
		var t model.Tick
		var tsUnix int64
		if err := rows.Scan(&t.Symbol, &t.Venue, &tsUnix, &t.Price); err != nil {
			return nil, fmt.Errorf("sqlite scan ticks: %w", err)
		}
		t.TickTS = time.Unix(tsUnix, 0).UTC()
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}

// ReadLastTicks reads the most recent n ticks for an instrument in ascending
// time order. Used to rebuild the indicator window on startup.
func (r *Reader) ReadLastTicks(venue, symbol string, n int) ([]model.Tick, error) {
	rows, err := r.db.Query(`
		SELECT symbol, venue, ts, price FROM (
			SELECT symbol, venue, ts, price
			FROM ticks
			WHERE venue = ? AND symbol = ?
			ORDER BY ts DESC
			LIMIT ?
		) ORDER BY ts ASC
	`, venue, symbol, n)
	if err != nil {
		return nil, fmt.Errorf("sqlite query last ticks: %w", err)
	}
	defer rows.Close()

	var ticks []model.Tick
	for rows.Next() {
		var t model.Tick
		var tsUnix int64
		if err := rows.Scan(&t.Symbol, &t.Venue, &tsUnix, &t.Price); err != nil {
			return nil, fmt.Errorf("sqlite scan last ticks: %w", err)
		}
		t.TickTS = time.Unix(tsUnix, 0).UTC()
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
