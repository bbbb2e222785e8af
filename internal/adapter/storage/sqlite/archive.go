package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"

	"github.com/cinescribe/cinescribe/internal/domain"
	"github.com/cinescribe/cinescribe/internal/port"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Archive stores finished screenplays in a SQLite database so they
// outlive job expiry.
type Archive struct {
	db *sql.DB
}

var _ port.ScriptArchive = (*Archive)(nil)

var hookOnce sync.Once

func registerHook() {
	hookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			pragmas := []string{
				"PRAGMA journal_mode = WAL",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA synchronous = NORMAL",
				"PRAGMA foreign_keys = ON",
			}
			for _, p := range pragmas {
				if _, err := conn.ExecContext(context.Background(), p, nil); err != nil {
					return fmt.Errorf("execute %s: %w", p, err)
				}
			}
			return nil
		})
	})
}

func NewArchive(dataDir string) (*Archive, error) {
	registerHook()

	dbPath := filepath.Join(dataDir, "cinescribe.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection for SQLite (WAL allows concurrent reads but only one writer)
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) Save(ctx context.Context, script port.ArchivedScript) error {
	createdAt := script.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO scripts (job_id, title, platform, duration_seconds, script, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id) DO UPDATE SET
			title = excluded.title,
			platform = excluded.platform,
			duration_seconds = excluded.duration_seconds,
			script = excluded.script`,
		script.JobID, script.Title, script.Platform, script.DurationSeconds,
		script.Script, createdAt.Unix())
	if err != nil {
		return fmt.Errorf("save script %s: %w", script.JobID, err)
	}
	return nil
}

func (a *Archive) Get(ctx context.Context, jobID string) (*port.ArchivedScript, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT job_id, title, platform, duration_seconds, script, created_at
		FROM scripts WHERE job_id = ?`, jobID)

	script, err := scanScript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get script %s: %w", jobID, err)
	}
	return script, nil
}

func (a *Archive) List(ctx context.Context, limit int) ([]port.ArchivedScript, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT job_id, title, platform, duration_seconds, script, created_at
		FROM scripts ORDER BY created_at DESC, job_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var scripts []port.ArchivedScript
	for rows.Next() {
		script, err := scanScript(rows)
		if err != nil {
			return nil, fmt.Errorf("list scripts: %w", err)
		}
		scripts = append(scripts, *script)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	return scripts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanScript(row scanner) (*port.ArchivedScript, error) {
	var script port.ArchivedScript
	var createdAt int64
	if err := row.Scan(&script.JobID, &script.Title, &script.Platform,
		&script.DurationSeconds, &script.Script, &createdAt); err != nil {
		return nil, err
	}
	script.CreatedAt = time.Unix(createdAt, 0)
	return &script, nil
}
