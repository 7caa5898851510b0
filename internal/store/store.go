// Package store persists editor snapshots in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/errors"
	"github.com/felixgeelhaar/timeline/internal/log"
	"github.com/felixgeelhaar/timeline/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	name      TEXT PRIMARY KEY,
	saved_at  TEXT NOT NULL,
	expanded  TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS tasks (
	project      TEXT NOT NULL,
	position     INTEGER NOT NULL,
	id           TEXT NOT NULL,
	name         TEXT NOT NULL DEFAULT '',
	parent_id    TEXT NOT NULL DEFAULT '',
	order_index  INTEGER NOT NULL,
	start_at     TEXT NOT NULL,
	end_at       TEXT NOT NULL,
	progress     INTEGER NOT NULL DEFAULT 0,
	kind         TEXT NOT NULL DEFAULT '',
	accepts      TEXT,
	PRIMARY KEY (project, id)
);
CREATE TABLE IF NOT EXISTS rules (
	project   TEXT NOT NULL,
	task_id   TEXT NOT NULL,
	position  INTEGER NOT NULL,
	type      TEXT NOT NULL,
	date      TEXT NOT NULL,
	end_date  TEXT NOT NULL DEFAULT '',
	active    INTEGER NOT NULL,
	implicit  INTEGER NOT NULL,
	PRIMARY KEY (project, task_id, position)
);
CREATE TABLE IF NOT EXISTS dependencies (
	project      TEXT NOT NULL,
	position     INTEGER NOT NULL,
	id           TEXT NOT NULL,
	predecessor  TEXT NOT NULL,
	successor    TEXT NOT NULL,
	type         TEXT NOT NULL,
	lag_ns       INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (project, id)
);
`

// ProjectInfo summarizes a stored project.
type ProjectInfo struct {
	Name         string    `json:"name"`
	SavedAt      time.Time `json:"saved_at"`
	Tasks        int       `json:"tasks"`
	Dependencies int       `json:"dependencies"`
}

// SQLiteStore persists snapshots in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	log *log.Logger
	now func() time.Time
}

// Open opens (or creates) the database at path and ensures the schema
// exists. The caller is responsible for calling Close.
func Open(path string, logger *log.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreFailed, "create store directory", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Sprintf("open sqlite %s", path), err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "create schema", err)
	}
	return &SQLiteStore{db: db, log: logger.WithComponent("store"), now: time.Now}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// SaveSnapshot replaces everything stored under project with snap in one
// transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, project string, snap model.Snapshot) error {
	if project == "" {
		return errors.New(errors.ErrCodeStoreFailed, "project name is required")
	}
	expanded, err := json.Marshal(snap.ExpandedRows)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "encode expanded rows", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := purge(ctx, tx, project); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO projects (name, saved_at, expanded) VALUES (?,?,?)`,
		project, formatTime(s.now().UTC()), string(expanded)); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "insert project", err)
	}

	for i, t := range snap.Tasks {
		var accepts any
		if t.AcceptedChildKinds != nil {
			data, _ := json.Marshal(t.AcceptedChildKinds)
			accepts = string(data)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tasks
				(project, position, id, name, parent_id, order_index, start_at, end_at, progress, kind, accepts)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			project, i, string(t.ID), t.Name, string(t.ParentID), t.OrderIndex,
			formatTime(t.Start), formatTime(t.End), t.Progress, string(t.Kind), accepts,
		); err != nil {
			return errors.Wrap(errors.ErrCodeStoreFailed, fmt.Sprintf("insert task %s", t.ID), err)
		}
		for j, r := range t.Rules {
			end := ""
			if !r.EndDate.IsZero() {
				end = formatTime(r.EndDate)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO rules (project, task_id, position, type, date, end_date, active, implicit)
				VALUES (?,?,?,?,?,?,?,?)`,
				project, string(t.ID), j, string(r.Type), formatTime(r.Date), end, r.Active, r.Implicit,
			); err != nil {
				return errors.Wrap(errors.ErrCodeStoreFailed, fmt.Sprintf("insert rule of %s", t.ID), err)
			}
		}
	}

	for i, d := range snap.Dependencies {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dependencies (project, position, id, predecessor, successor, type, lag_ns)
			VALUES (?,?,?,?,?,?,?)`,
			project, i, string(d.ID), string(d.PredecessorID), string(d.SuccessorID), string(d.Type), int64(d.Lag),
		); err != nil {
			return errors.Wrap(errors.ErrCodeStoreFailed, fmt.Sprintf("insert dependency %s", d.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "commit snapshot", err)
	}
	s.log.Info("snapshot stored", "project", project, "tasks", len(snap.Tasks), "dependencies", len(snap.Dependencies))
	return nil
}

// LoadSnapshot reads the snapshot stored under project.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, project string) (model.Snapshot, error) {
	var snap model.Snapshot
	var expanded string
	err := s.db.QueryRowContext(ctx, `SELECT expanded FROM projects WHERE name = ?`, project).Scan(&expanded)
	if err == sql.ErrNoRows {
		return snap, errors.Newf(errors.ErrCodeFileNotFound, "project %q not found in store", project).
			WithSuggestion("Run 'timeline store list' to see stored projects")
	}
	if err != nil {
		return snap, errors.Wrap(errors.ErrCodeStoreFailed, "read project", err)
	}
	if err := json.Unmarshal([]byte(expanded), &snap.ExpandedRows); err != nil {
		return snap, errors.Wrap(errors.ErrCodeFileUnmarshal, "decode expanded rows", err)
	}

	rules, err := s.loadRules(ctx, project)
	if err != nil {
		return snap, err
	}
	if snap.Tasks, err = s.loadTasks(ctx, project, rules); err != nil {
		return snap, err
	}
	if snap.Dependencies, err = s.loadDependencies(ctx, project); err != nil {
		return snap, err
	}
	return snap, nil
}

func (s *SQLiteStore) loadTasks(ctx context.Context, project string, rules map[domain.TaskID][]model.Rule) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, parent_id, order_index, start_at, end_at, progress, kind, accepts
		FROM tasks WHERE project = ? ORDER BY position`, project)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "list tasks", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var t model.Task
		var id, parent, start, end, kind string
		var accepts sql.NullString
		if err := rows.Scan(&id, &t.Name, &parent, &t.OrderIndex, &start, &end, &t.Progress, &kind, &accepts); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreFailed, "scan task", err)
		}
		t.ID, t.ParentID, t.Kind = domain.TaskID(id), domain.TaskID(parent), domain.TaskKind(kind)
		if t.Start, err = parseTime(start); err != nil {
			return nil, err
		}
		if t.End, err = parseTime(end); err != nil {
			return nil, err
		}
		if accepts.Valid {
			t.AcceptedChildKinds = []domain.TaskKind{}
			if err := json.Unmarshal([]byte(accepts.String), &t.AcceptedChildKinds); err != nil {
				return nil, errors.Wrap(errors.ErrCodeFileUnmarshal, fmt.Sprintf("decode accepted kinds of %s", id), err)
			}
		}
		t.Rules = rules[t.ID]
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "list tasks", err)
	}
	return tasks, nil
}

func (s *SQLiteStore) loadRules(ctx context.Context, project string) (map[domain.TaskID][]model.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, type, date, end_date, active, implicit
		FROM rules WHERE project = ? ORDER BY task_id, position`, project)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "list rules", err)
	}
	defer rows.Close()

	out := make(map[domain.TaskID][]model.Rule)
	for rows.Next() {
		var taskID, typ, date, end string
		var r model.Rule
		if err := rows.Scan(&taskID, &typ, &date, &end, &r.Active, &r.Implicit); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreFailed, "scan rule", err)
		}
		r.Type = domain.RuleType(typ)
		if r.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		if end != "" {
			if r.EndDate, err = parseTime(end); err != nil {
				return nil, err
			}
		}
		out[domain.TaskID(taskID)] = append(out[domain.TaskID(taskID)], r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "list rules", err)
	}
	return out, nil
}

func (s *SQLiteStore) loadDependencies(ctx context.Context, project string) ([]model.Dependency, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, predecessor, successor, type, lag_ns
		FROM dependencies WHERE project = ? ORDER BY position`, project)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "list dependencies", err)
	}
	defer rows.Close()

	var deps []model.Dependency
	for rows.Next() {
		var id, pred, succ, typ string
		var lag int64
		if err := rows.Scan(&id, &pred, &succ, &typ, &lag); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreFailed, "scan dependency", err)
		}
		deps = append(deps, model.Dependency{
			ID:            domain.DependencyID(id),
			PredecessorID: domain.TaskID(pred),
			SuccessorID:   domain.TaskID(succ),
			Type:          domain.DependencyType(typ),
			Lag:           time.Duration(lag),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "list dependencies", err)
	}
	return deps, nil
}

// Projects lists every stored project by name.
func (s *SQLiteStore) Projects(ctx context.Context) ([]ProjectInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.name, p.saved_at,
			(SELECT COUNT(*) FROM tasks t WHERE t.project = p.name),
			(SELECT COUNT(*) FROM dependencies d WHERE d.project = p.name)
		FROM projects p ORDER BY p.name`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "list projects", err)
	}
	defer rows.Close()

	var out []ProjectInfo
	for rows.Next() {
		var info ProjectInfo
		var saved string
		if err := rows.Scan(&info.Name, &saved, &info.Tasks, &info.Dependencies); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreFailed, "scan project", err)
		}
		if info.SavedAt, err = parseTime(saved); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "list projects", err)
	}
	return out, nil
}

// DeleteProject removes everything stored under project.
func (s *SQLiteStore) DeleteProject(ctx context.Context, project string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if err := purge(ctx, tx, project); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "commit delete", err)
	}
	return nil
}

func purge(ctx context.Context, tx *sql.Tx, project string) error {
	for _, table := range []string{"rules", "dependencies", "tasks"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE project = ?", project); err != nil {
			return errors.Wrap(errors.ErrCodeStoreFailed, "clear "+table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM projects WHERE name = ?", project); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "clear project", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Wrap(errors.ErrCodeFileUnmarshal, fmt.Sprintf("invalid stored time %q", s), err)
	}
	return t, nil
}
