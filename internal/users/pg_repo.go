package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/exercisetracker/internal/exlog"
	"github.com/2beens/exercisetracker/internal/telemetry/tracing"
)

type PgRepo struct {
	db *pgxpool.Pool
}

func NewPgRepo(db *pgxpool.Pool) *PgRepo {
	return &PgRepo{
		db: db,
	}
}

func (r *PgRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create tracker schema: %w", err)
	}
	return nil
}

func (r *PgRepo) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *PgRepo) CreateUser(ctx context.Context, username string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.create")
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

	if _, err := r.db.Exec(
		ctx,
		`INSERT INTO tracker_user (id, username, exercise_count, created_at) VALUES ($1, $2, 0, $3);`,
		u.ID, u.Username, time.Now(),
	); err != nil {
		return nil, err
	}

	return u, nil
}

func (r *PgRepo) ListUsers(ctx context.Context) (_ []Summary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`
			SELECT
				id, username
			FROM tracker_user
			ORDER BY created_at, id;`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var id uuid.UUID
		var username string
		if err := rows.Scan(&id, &username); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		summaries = append(summaries, Summary{
			ID:       id.String(),
			Username: username,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

func (r *PgRepo) GetUser(ctx context.Context, id string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", id))

	// ids are uuids, anything else can't exist
	userUUID, err := uuid.Parse(id)
	if err != nil {
		return nil, userNotFound(id)
	}

	u := &User{ID: userUUID.String()}
	err = r.db.QueryRow(
		ctx,
		`SELECT username, exercise_count FROM tracker_user WHERE id = $1;`,
		userUUID,
	).Scan(&u.Username, &u.Count)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, userNotFound(id)
	}
	if err != nil {
		return nil, err
	}

	if u.Log, err = pgLoadLog(ctx, r.db, userUUID); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("log.count", len(u.Log)))
	return u, nil
}

func (r *PgRepo) SaveAppend(ctx context.Context, user *User) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.saveappend")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", user.ID), attribute.Int("pending", len(user.pending)))

	if len(user.pending) == 0 {
		return nil
	}

	userUUID, err := uuid.Parse(user.ID)
	if err != nil {
		return userNotFound(user.ID)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		// no-op after a successful commit
		_ = tx.Rollback(ctx)
	}()

	// the update locks the user row until commit, so concurrent appends queue up here
	var newCount int
	err = tx.QueryRow(
		ctx,
		`UPDATE tracker_user SET exercise_count = exercise_count + $2 WHERE id = $1 RETURNING exercise_count;`,
		userUUID, len(user.pending),
	).Scan(&newCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return userNotFound(user.ID)
	}
	if err != nil {
		return fmt.Errorf("increment count: %w", err)
	}

	firstSeq := newCount - len(user.pending)
	for i, e := range user.pending {
		if _, err := tx.Exec(
			ctx,
			`INSERT INTO tracker_exercise (user_id, seq, description, duration, date) VALUES ($1, $2, $3, $4, $5);`,
			userUUID, firstSeq+i, e.Description, e.Duration, e.Date.Time(),
		); err != nil {
			return fmt.Errorf("insert exercise: %w", err)
		}
	}

	// other appends may have landed since the user was loaded
	exercises, err := pgLoadLog(ctx, tx, userUUID)
	if err != nil {
		return fmt.Errorf("reload log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	user.pending = nil
	user.Count = newCount
	user.Log = exercises
	return nil
}

// pgQuerier is satisfied by both the pool and a transaction.
type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func pgLoadLog(ctx context.Context, q pgQuerier, userUUID uuid.UUID) ([]exlog.Exercise, error) {
	rows, err := q.Query(
		ctx,
		`
			SELECT
				description, duration, date
			FROM tracker_exercise
			WHERE user_id = $1
			ORDER BY seq;`,
		userUUID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exercises := []exlog.Exercise{}
	for rows.Next() {
		var description string
		var duration int
		var date time.Time
		if err := rows.Scan(&description, &duration, &date); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		exercises = append(exercises, exlog.Exercise{
			Description: description,
			Duration:    duration,
			Date:        exlog.NewDate(date),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return exercises, nil
}
