package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pkg/errors"

	"github.com/Arkyalys/YouTubeEvent/internal/core"
)

const journalSchema = `CREATE TABLE IF NOT EXISTS events (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  kind TEXT NOT NULL,
  at TEXT NOT NULL,
  video_id TEXT NOT NULL DEFAULT '',
  payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS events_kind_at ON events(kind, at);`

const defaultListLimit = 100

// journalPragmas keep inserts from the event fanout and reads from the
// HTTP API from blocking each other.
var journalPragmas = []string{
	`PRAGMA journal_mode=wal;`,
	`PRAGMA synchronous=NORMAL;`,
	`PRAGMA busy_timeout=5000;`,
}

// Journal records engagement and connection events in sqlite. Chat
// messages pass through unrecorded; they are delivered live only.
type Journal struct {
	db *sql.DB
}

func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	for _, pragma := range journalPragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "apply %s", strings.TrimSuffix(pragma, ";"))
		}
	}
	if _, err := db.Exec(journalSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

func (j *Journal) Ping() error { return j.db.Ping() }

func (j *Journal) Publish(ev core.Event) error {
	if ev.Kind == core.EventChatMessage {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	const q = `INSERT INTO events (kind, at, video_id, payload) VALUES (?, ?, ?, ?);`
	_, err = j.db.Exec(q, string(ev.Kind), ev.At.UTC().Format(time.RFC3339Nano), ev.VideoID, string(payload))
	return errors.Wrap(err, "insert event")
}

// Query filters journal reads. Zero value lists the most recent events
// of every kind.
type Query struct {
	Kinds   []core.EventKind
	VideoID string
	Since   *time.Time
	Limit   int
}

func (j *Journal) CountEvents(ctx context.Context, q Query) (int64, error) {
	query, args := buildEventQuery(q, true)
	var n int64
	if err := j.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count events")
	}
	return n, nil
}

// ListEvents returns matching events, newest first.
func (j *Journal) ListEvents(ctx context.Context, q Query) ([]core.Event, error) {
	query, args := buildEventQuery(q, false)
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list events")
	}
	defer rows.Close()

	var out []core.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		var ev core.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, errors.Wrap(err, "decode event")
		}
		out = append(out, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate events")
	}
	return out, nil
}

func buildEventQuery(q Query, count bool) (string, []any) {
	var builder strings.Builder
	if count {
		builder.WriteString("SELECT COUNT(*) FROM events")
	} else {
		builder.WriteString("SELECT payload FROM events")
	}

	var (
		conditions []string
		args       []any
	)

	if len(q.Kinds) > 0 {
		placeholders := make([]string, 0, len(q.Kinds))
		for _, k := range q.Kinds {
			placeholders = append(placeholders, "?")
			args = append(args, string(k))
		}
		conditions = append(conditions, fmt.Sprintf("kind IN (%s)", strings.Join(placeholders, ",")))
	}

	if q.VideoID != "" {
		conditions = append(conditions, "video_id = ?")
		args = append(args, q.VideoID)
	}

	if q.Since != nil {
		conditions = append(conditions, "at >= ?")
		args = append(args, q.Since.UTC().Format(time.RFC3339Nano))
	}

	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}

	if !count {
		builder.WriteString(" ORDER BY seq DESC LIMIT ?")
		limit := q.Limit
		if limit <= 0 {
			limit = defaultListLimit
		}
		args = append(args, limit)
	}

	builder.WriteString(";")
	return builder.String(), args
}
