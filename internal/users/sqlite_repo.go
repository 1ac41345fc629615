package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	_ "modernc.org/sqlite"

	"github.com/2beens/exercisetracker/internal/exlog"
	"github.com/2beens/exercisetracker/internal/telemetry/tracing"
)

// SQLiteRepo is a single-file store, for running the service without postgres.
type SQLiteRepo struct {
	db *sql.DB
}

// NewSQLiteRepo opens (or creates) the database at dbPath and ensures the schema.
// Use ":memory:" for a throwaway database.
func NewSQLiteRepo(ctx context.Context, dbPath string) (*SQLiteRepo, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite allows a single writer; one connection also keeps ":memory:" a single database
	db.SetMaxOpenConns(1)

	repo := &SQLiteRepo{db: db}
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create tracker schema: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepo) CreateUser(ctx context.Context, username string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sqlite.users.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if username == "" {
		return nil, ErrUsernameRequired
	}

	u := &User{
		ID:       uuid.NewString(),
		Username: username,
		Log:      []exlog.Exercise{},
	}
	span.SetAttributes(attribute.String("user.id", u.ID))

	if _, err := r.db.ExecContext(
		ctx,
		`INSERT INTO tracker_user (id, username, exercise_count, created_at) VALUES (?, ?, 0, ?)`,
		u.ID, u.Username, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *SQLiteRepo) ListUsers(ctx context.Context) (_ []Summary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sqlite.users.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.QueryContext(ctx, `SELECT id, username FROM tracker_user ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Username); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (r *SQLiteRepo) GetUser(ctx context.Context, id string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sqlite.users.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", id))

	u := &User{ID: id}
	err = r.db.QueryRowContext(
		ctx,
		`SELECT username, exercise_count FROM tracker_user WHERE id = ?`,
		id,
	).Scan(&u.Username, &u.Count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, userNotFound(id)
	}
	if err != nil {
		return nil, err
	}

	if u.Log, err = sqliteLoadLog(ctx, r.db, id); err != nil {
		return nil, err
	}

	return u, nil
}

func (r *SQLiteRepo) SaveAppend(ctx context.Context, user *User) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sqlite.users.saveappend")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", user.ID), attribute.Int("pending", len(user.pending)))

	if len(user.pending) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var newCount int
	err = tx.QueryRowContext(
		ctx,
		`UPDATE tracker_user SET exercise_count = exercise_count + ? WHERE id = ? RETURNING exercise_count`,
		len(user.pending), user.ID,
	).Scan(&newCount)
	if errors.Is(err, sql.ErrNoRows) {
		return userNotFound(user.ID)
	}
	if err != nil {
		return fmt.Errorf("increment count: %w", err)
	}

	firstSeq := newCount - len(user.pending)
	for i, e := range user.pending {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO tracker_exercise (user_id, seq, description, duration, date) VALUES (?, ?, ?, ?, ?)`,
			user.ID, firstSeq+i, e.Description, e.Duration, e.Date.String(),
		); err != nil {
			return fmt.Errorf("insert exercise: %w", err)
		}
	}

	// other appends may have landed since the user was loaded
	exercises, err := sqliteLoadLog(ctx, tx, user.ID)
	if err != nil {
		return fmt.Errorf("reload log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	user.pending = nil
	user.Count = newCount
	user.Log = exercises
	return nil
}

// sqliteQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqliteQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func sqliteLoadLog(ctx context.Context, q sqliteQuerier, id string) ([]exlog.Exercise, error) {
	rows, err := q.QueryContext(
		ctx,
		`SELECT description, duration, date FROM tracker_exercise WHERE user_id = ? ORDER BY seq`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exercises := []exlog.Exercise{}
	for rows.Next() {
		var e exlog.Exercise
		var date string
		if err := rows.Scan(&e.Description, &e.Duration, &date); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		if e.Date, err = exlog.ParseDate(date); err != nil {
			return nil, fmt.Errorf("stored exercise date for user %s: %w", id, err)
		}
		exercises = append(exercises, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return exercises, nil
}
