package users

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/exercisetracker/internal/events"
	"github.com/2beens/exercisetracker/internal/exlog"
	"github.com/2beens/exercisetracker/internal/telemetry/tracing"
)

type eventPublisher interface {
	PublishExerciseLogged(ctx context.Context, event events.ExerciseLogged) error
}

// AppendInput is an exercise submission as received from the client, unparsed.
type AppendInput struct {
	UserID      string
	Description string
	Duration    string
	Date        string
}

// ExerciseRecord is the response to a successful append.
type ExerciseRecord struct {
	ID          string `json:"_id"`
	Username    string `json:"username"`
	Description string `json:"description"`
	Duration    int    `json:"duration"`
	Date        string `json:"date"`
}

// LogResponse is the response to a log query. Count is the size of the whole
// log, while Log holds only the entries matching the query.
type LogResponse struct {
	ID       string             `json:"_id"`
	Username string             `json:"username"`
	Count    int                `json:"count"`
	Log      []exlog.Projection `json:"log"`
}

type Service struct {
	store     Store
	publisher eventPublisher
	now       func() time.Time
}

func NewService(store Store, publisher eventPublisher) *Service {
	if publisher == nil {
		publisher = events.NoopProducer{}
	}
	return &Service{
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *Service) CreateUser(ctx context.Context, username string) (_ *Summary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.users.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if username == "" {
		return nil, ErrUsernameRequired
	}

	user, err := s.store.CreateUser(ctx, username)
	if err != nil {
		return nil, storeErr(err)
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	summary := user.Summary()
	return &summary, nil
}

func (s *Service) ListUsers(ctx context.Context) (_ []Summary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.users.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	summaries, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	if summaries == nil {
		summaries = []Summary{}
	}
	return summaries, nil
}

// AppendExercise validates the submission and, if valid, appends it to the user's log.
// Nothing is written when validation fails or the user does not exist.
func (s *Service) AppendExercise(ctx context.Context, input AppendInput) (_ *ExerciseRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.users.append")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", input.UserID))

	exercise, err := exlog.ValidateExercise(input.Description, input.Duration, input.Date)
	if err != nil {
		return nil, err
	}

	user, err := s.getUser(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	user.Append(exercise)
	if err := s.store.SaveAppend(ctx, user); err != nil {
		return nil, storeErr(err)
	}

	log.Debugf("exercise appended for user [%s]: %s, %d min, %s", user.ID, exercise.Description, exercise.Duration, exercise.Date)

	s.publish(ctx, user, exercise)

	return &ExerciseRecord{
		ID:          user.ID,
		Username:    user.Username,
		Description: exercise.Description,
		Duration:    exercise.Duration,
		Date:        exercise.Date.Display(),
	}, nil
}

// QueryLog returns the user's log filtered by q.
func (s *Service) QueryLog(ctx context.Context, userID string, q exlog.Query) (_ *LogResponse, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.users.log")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("from", q.From),
		attribute.String("to", q.To),
		attribute.String("limit", q.Limit),
	)

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	filtered := exlog.Filter(user.Log, q)
	span.SetAttributes(attribute.Int("log.total", len(user.Log)), attribute.Int("log.returned", len(filtered)))

	return &LogResponse{
		ID:       user.ID,
		Username: user.Username,
		Count:    len(user.Log),
		Log:      filtered,
	}, nil
}

func (s *Service) getUser(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, userNotFound(id)
	}
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if user == nil {
		return nil, userNotFound(id)
	}
	return user, nil
}

func (s *Service) publish(ctx context.Context, user *User, exercise exlog.Exercise) {
	event := events.ExerciseLogged{
		UserID:      user.ID,
		Username:    user.Username,
		Description: exercise.Description,
		DurationMin: exercise.Duration,
		Date:        exercise.Date.String(),
		LogCount:    user.Count,
		OccurredAt:  s.now().UTC(),
	}
	if err := s.publisher.PublishExerciseLogged(ctx, event); err != nil {
		// the append is already committed
		log.Errorf("publish exercise logged for user [%s]: %s", user.ID, err)
	}
}

// storeErr tags a store error as a store failure, unless it already carries a
// more specific kind (not found, missing username).
func storeErr(err error) error {
	if errors.Is(err, exlog.ErrNotFound) || errors.Is(err, ErrUsernameRequired) {
		return err
	}
	var se *exlog.StoreError
	if errors.As(err, &se) {
		return err
	}
	return exlog.NewStoreError(err)
}
