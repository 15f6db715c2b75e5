package analytics

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Schema creation is idempotent so any writer can open the store first.
const createTable = `
CREATE TABLE IF NOT EXISTS events (
	id            TEXT PRIMARY KEY,
	timestamp     TEXT NOT NULL,
	type          TEXT NOT NULL,
	user_id       TEXT,
	device_id     TEXT,
	user_agent    TEXT,
	referrer      TEXT,
	ip            TEXT,
	language      TEXT,
	question      TEXT,
	answer        TEXT,
	response_ms   INTEGER
);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events (timestamp);
`

const insertEvent = `
INSERT INTO events (
	id, timestamp, type, user_id, device_id, user_agent,
	referrer, ip, language, question, answer, response_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLiteSink appends events to a local sqlite database.
type SQLiteSink struct {
	db *sql.DB
}

func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening analytics store: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing analytics schema: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Record(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx, insertEvent,
		event.ID,
		event.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		event.Type,
		event.UserID,
		event.DeviceID,
		event.UserAgent,
		event.Referrer,
		event.IP,
		event.Language,
		event.Question,
		event.Answer,
		event.ResponseTime.Milliseconds(),
	)
	return err
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
