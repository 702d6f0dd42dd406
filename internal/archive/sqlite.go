package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000

	// Fixed width so timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// SQLiteRepository implements Repository on the messages table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Insert writes records in one transaction. Duplicate IDs are ignored.
func (r *SQLiteRepository) Insert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning archive insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO messages
		 (id, protocol, endpoint, type, topic, content, format, qos, retain, size, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing archive insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if !rec.Protocol.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidProtocol, rec.Protocol)
		}
		var qos any
		if rec.QoS != nil {
			qos = int64(*rec.QoS)
		}
		_, err := stmt.ExecContext(ctx,
			rec.ID, string(rec.Protocol), rec.Endpoint, rec.Type,
			nullableString(rec.Topic), rec.Content, nullableString(rec.Format),
			qos, boolToInt(rec.Retain), rec.Size,
			rec.Timestamp.UTC().Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("inserting archive record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing archive insert: %w", err)
	}
	return nil
}

// List returns records matching the filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Record, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Protocol != "" {
		if !filter.Protocol.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProtocol, filter.Protocol)
		}
		conditions = append(conditions, "protocol = ?")
		args = append(args, string(filter.Protocol))
	}
	if filter.Endpoint != "" {
		conditions = append(conditions, "endpoint = ?")
		args = append(args, filter.Endpoint)
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, protocol, endpoint, type, topic, content, format, qos, retain, size, timestamp
		 FROM messages %s ORDER BY timestamp DESC, rowid DESC LIMIT ? OFFSET ?`, where)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, filter.Limit)
	for rows.Next() {
		var (
			rec           Record
			protocol      string
			topic, format sql.NullString
			qos           sql.NullInt64
			retain        int64
			timestamp     string
		)
		if err := rows.Scan(&rec.ID, &protocol, &rec.Endpoint, &rec.Type, &topic,
			&rec.Content, &format, &qos, &retain, &rec.Size, &timestamp); err != nil {
			return nil, fmt.Errorf("scanning archive record: %w", err)
		}
		rec.Protocol = Protocol(protocol)
		rec.Topic = topic.String
		rec.Format = format.String
		rec.Retain = retain != 0
		if qos.Valid {
			q := byte(qos.Int64) //nolint:gosec // stored from a byte
			rec.QoS = &q
		}
		rec.Timestamp, err = time.Parse(timeLayout, timestamp)
		if err != nil {
			return nil, fmt.Errorf("parsing archive timestamp %q: %w", timestamp, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating archive: %w", err)
	}
	return records, nil
}

// Count returns the number of records, optionally for one protocol.
func (r *SQLiteRepository) Count(ctx context.Context, protocol Protocol) (int, error) {
	query := "SELECT COUNT(*) FROM messages"
	var args []any
	if protocol != "" {
		query += " WHERE protocol = ?"
		args = append(args, string(protocol))
	}
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting archive: %w", err)
	}
	return n, nil
}

// Prune deletes records older than the cutoff and returns how many went.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM messages WHERE timestamp < ?",
		olderThan.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("pruning archive: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning archive: %w", err)
	}
	return n, nil
}

// nullableString maps "" to NULL for nullable TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
