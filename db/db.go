package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	apperrors "github.com/nijaru/yt-vision/errors"
	"github.com/nijaru/yt-vision/models"
)

var ErrNotFound = errors.New("task not found")

// Record is the tracked state of one task.
type Record struct {
	ID        string          `json:"id"`
	SourceURL string          `json:"source_url"`
	Interval  float64         `json:"interval"`
	State     models.State    `json:"state"`
	Stage     string          `json:"stage,omitempty"`
	Kind      string          `json:"kind,omitempty"`
	Error     string          `json:"error,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Tracker keeps task progress in sqlite so the HTTP surface can report it.
type Tracker struct {
	db *sql.DB
}

// Open connects to dsn and creates the schema. A file DSN gets its parent
// directory created first.
func Open(dsn string) (*Tracker, error) {
	logrus.WithField("dsn", dsn).Info("Initializing task tracker")

	memory := strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
	if !memory {
		path := strings.TrimPrefix(strings.SplitN(dsn, "?", 2)[0], "file:")
		if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
			return nil, errors.Wrap(err, "create directory for database")
		}
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	if memory {
		// A shared in-memory database lives only while a connection is open.
		conn.SetConnMaxLifetime(0)
	} else {
		conn.SetConnMaxLifetime(30 * time.Minute)
	}

	_, err = conn.Exec(`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		interval REAL NOT NULL,
		state TEXT NOT NULL,
		stage TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		result TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "create tasks table")
	}

	return &Tracker{db: conn}, nil
}

func (t *Tracker) Close() error {
	return t.db.Close()
}

// Create inserts the task row. Creating an id that already exists is a no-op.
func (t *Tracker) Create(ctx context.Context, task *models.Task) error {
	now := time.Now().UTC()
	return t.exec(ctx,
		"INSERT INTO tasks (id, url, interval, state, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING",
		task.ID, task.SourceURL, task.Interval, string(task.State), task.CreatedAt, now,
	)
}

func (t *Tracker) SetState(ctx context.Context, id string, state models.State) error {
	return t.exec(ctx,
		"UPDATE tasks SET state = ?, updated_at = ? WHERE id = ?",
		string(state), time.Now().UTC(), id,
	)
}

func (t *Tracker) Complete(ctx context.Context, id string, result *models.AnalysisResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "marshal result")
	}
	return t.exec(ctx,
		"UPDATE tasks SET state = ?, result = ?, updated_at = ? WHERE id = ?",
		string(models.StateCompleted), string(body), time.Now().UTC(), id,
	)
}

// Fail records the failure stage and cause along with any partial result.
func (t *Tracker) Fail(ctx context.Context, id string, cause error) error {
	var (
		stage, kind string
		partial     sql.NullString
	)
	message := cause.Error()
	if pe, ok := apperrors.As(cause); ok {
		stage, kind, message = pe.Stage, string(pe.Kind), pe.Message
		if pe.Partial != nil {
			body, err := json.Marshal(pe.Partial)
			if err != nil {
				return errors.Wrap(err, "marshal partial result")
			}
			partial = sql.NullString{String: string(body), Valid: true}
		}
	}

	return t.exec(ctx,
		"UPDATE tasks SET state = ?, stage = ?, kind = ?, error = ?, result = ?, updated_at = ? WHERE id = ?",
		string(models.StateFailed), stage, kind, message, partial, time.Now().UTC(), id,
	)
}

func (t *Tracker) Get(ctx context.Context, id string) (*Record, error) {
	var (
		r      Record
		state  string
		result sql.NullString
	)
	err := t.db.QueryRowContext(ctx,
		"SELECT id, url, interval, state, stage, kind, error, result, created_at, updated_at FROM tasks WHERE id = ?", id,
	).Scan(&r.ID, &r.SourceURL, &r.Interval, &state, &r.Stage, &r.Kind, &r.Error, &result, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "query task")
	}

	r.State = models.State(state)
	if result.Valid {
		r.Result = json.RawMessage(result.String)
	}
	return &r, nil
}

func (t *Tracker) exec(ctx context.Context, query string, args ...any) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "prepare statement")
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, args...); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "execute statement")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}
