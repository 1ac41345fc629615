package users_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/2beens/exercisetracker/internal/events"
	"github.com/2beens/exercisetracker/internal/exlog"
	"github.com/2beens/exercisetracker/internal/users"
)

type recordingPublisher struct {
	events []events.ExerciseLogged
	err    error
}

func (p *recordingPublisher) PublishExerciseLogged(_ context.Context, event events.ExerciseLogged) error {
	p.events = append(p.events, event)
	return p.err
}

func mustDate(t *testing.T, text string) exlog.Date {
	t.Helper()
	d, err := exlog.ParseDate(text)
	require.NoError(t, err)
	return d
}

func TestService_AppendExercise(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	publisher := &recordingPublisher{}
	service := users.NewService(store, publisher)

	stored := &users.User{
		ID:       "u1",
		Username: "fcc_test",
		Count:    1,
		Log: []exlog.Exercise{
			{Description: "swim", Duration: 20, Date: mustDate(t, "2023-12-30")},
		},
	}
	store.EXPECT().GetUser(gomock.Any(), "u1").Return(stored, nil)
	store.EXPECT().SaveAppend(gomock.Any(), stored).DoAndReturn(
		func(_ context.Context, u *users.User) error {
			assert.Equal(t, 2, u.Count)
			require.Len(t, u.Log, 2)
			assert.Equal(t, "run", u.Log[1].Description)
			assert.Len(t, u.Pending(), 1)
			return nil
		},
	)

	record, err := service.AppendExercise(context.Background(), users.AppendInput{
		UserID:      "u1",
		Description: "run",
		Duration:    "30.9",
		Date:        "2024-01-01",
	})
	require.NoError(t, err)
	assert.Equal(t, &users.ExerciseRecord{
		ID:          "u1",
		Username:    "fcc_test",
		Description: "run",
		Duration:    30,
		Date:        "Mon Jan 01 2024",
	}, record)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, "u1", publisher.events[0].UserID)
	assert.Equal(t, "2024-01-01", publisher.events[0].Date)
	assert.Equal(t, 2, publisher.events[0].LogCount)
}

func TestService_AppendExercise_PublishFailureIgnored(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	service := users.NewService(store, &recordingPublisher{err: errors.New("kafka down")})

	store.EXPECT().GetUser(gomock.Any(), "u1").Return(&users.User{ID: "u1", Username: "x"}, nil)
	store.EXPECT().SaveAppend(gomock.Any(), gomock.Any()).Return(nil)

	record, err := service.AppendExercise(context.Background(), users.AppendInput{
		UserID: "u1", Description: "run", Duration: "10", Date: "2024-02-29",
	})
	require.NoError(t, err)
	assert.Equal(t, "Thu Feb 29 2024", record.Date)
}

func TestService_AppendExercise_ValidationBeforeStore(t *testing.T) {
	testCases := []struct {
		name        string
		input       users.AppendInput
		expectedErr error
	}{
		{
			name:        "NonNumericDuration",
			input:       users.AppendInput{UserID: "u1", Description: "run", Duration: "abc", Date: "2024-01-01"},
			expectedErr: exlog.ErrInvalidDuration,
		},
		{
			name:        "MissingDate",
			input:       users.AppendInput{UserID: "u1", Description: "run", Duration: "10"},
			expectedErr: exlog.ErrInvalidDate,
		},
		{
			name:        "ImpossibleDate",
			input:       users.AppendInput{UserID: "u1", Description: "run", Duration: "10", Date: "2023-02-30"},
			expectedErr: exlog.ErrInvalidDate,
		},
		{
			name:        "EmptyDescription",
			input:       users.AppendInput{UserID: "u1", Duration: "10", Date: "2024-01-01"},
			expectedErr: exlog.ErrInvalidDescription,
		},
		{
			name:        "DurationCheckedFirst",
			input:       users.AppendInput{UserID: "missing", Duration: "x", Date: "bad"},
			expectedErr: exlog.ErrInvalidDuration,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			// no store calls expected
			store := NewMockStore(ctrl)
			publisher := &recordingPublisher{}
			service := users.NewService(store, publisher)

			record, err := service.AppendExercise(context.Background(), tc.input)
			assert.Nil(t, record)
			assert.ErrorIs(t, err, tc.expectedErr)
			assert.True(t, exlog.IsValidation(err))
			assert.Empty(t, publisher.events)
		})
	}
}

func TestService_AppendExercise_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	service := users.NewService(store, nil)

	store.EXPECT().GetUser(gomock.Any(), "nope").Return(nil, fmt.Errorf("user [nope]: %w", exlog.ErrNotFound))

	_, err := service.AppendExercise(context.Background(), users.AppendInput{
		UserID: "nope", Description: "run", Duration: "10", Date: "2024-01-01",
	})
	assert.ErrorIs(t, err, exlog.ErrNotFound)
	assert.Equal(t, exlog.KindNotFound, exlog.KindOf(err))

	// a store returning no user and no error is still not found
	store.EXPECT().GetUser(gomock.Any(), "ghost").Return(nil, nil)
	_, err = service.AppendExercise(context.Background(), users.AppendInput{
		UserID: "ghost", Description: "run", Duration: "10", Date: "2024-01-01",
	})
	assert.ErrorIs(t, err, exlog.ErrNotFound)

	// empty id never reaches the store
	_, err = service.AppendExercise(context.Background(), users.AppendInput{
		Description: "run", Duration: "10", Date: "2024-01-01",
	})
	assert.ErrorIs(t, err, exlog.ErrNotFound)
}

func TestService_AppendExercise_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	publisher := &recordingPublisher{}
	service := users.NewService(store, publisher)

	store.EXPECT().GetUser(gomock.Any(), "u1").Return(&users.User{ID: "u1", Username: "x"}, nil)
	store.EXPECT().SaveAppend(gomock.Any(), gomock.Any()).Return(errors.New("connection reset by peer"))

	_, err := service.AppendExercise(context.Background(), users.AppendInput{
		UserID: "u1", Description: "run", Duration: "10", Date: "2024-01-01",
	})
	require.Error(t, err)
	assert.Equal(t, exlog.KindStoreFailure, exlog.KindOf(err))
	// passed through verbatim
	assert.Equal(t, "connection reset by peer", err.Error())
	assert.Empty(t, publisher.events)

	store.EXPECT().GetUser(gomock.Any(), "u2").Return(nil, errors.New("timeout"))
	_, err = service.AppendExercise(context.Background(), users.AppendInput{
		UserID: "u2", Description: "run", Duration: "10", Date: "2024-01-01",
	})
	assert.Equal(t, exlog.KindStoreFailure, exlog.KindOf(err))
	assert.Equal(t, "timeout", exlog.Message(err))
}

func TestService_QueryLog(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	service := users.NewService(store, nil)

	user := &users.User{
		ID:       "u1",
		Username: "fcc_test",
		Count:    3,
		Log: []exlog.Exercise{
			{Description: "a", Duration: 10, Date: mustDate(t, "2023-01-05")},
			{Description: "b", Duration: 20, Date: mustDate(t, "2023-01-01")},
			{Description: "c", Duration: 30, Date: mustDate(t, "2023-01-10")},
		},
	}
	store.EXPECT().GetUser(gomock.Any(), "u1").Return(user, nil).Times(3)

	resp, err := service.QueryLog(context.Background(), "u1", exlog.Query{})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Count)
	assert.Len(t, resp.Log, 3)
	assert.Equal(t, "b", resp.Log[1].Description)

	resp, err = service.QueryLog(context.Background(), "u1", exlog.Query{From: "2023-01-02", To: "2023-01-09"})
	require.NoError(t, err)
	// count is the total, not the filtered length
	assert.Equal(t, 3, resp.Count)
	require.Len(t, resp.Log, 1)
	assert.Equal(t, exlog.Projection{Description: "a", Duration: 10, Date: "Thu Jan 05 2023"}, resp.Log[0])

	resp, err = service.QueryLog(context.Background(), "u1", exlog.Query{Limit: "2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, []string{resp.Log[0].Description, resp.Log[1].Description})
}

func TestService_QueryLog_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	service := users.NewService(store, nil)

	store.EXPECT().GetUser(gomock.Any(), "nope").Return(nil, fmt.Errorf("user [nope]: %w", exlog.ErrNotFound))
	_, err := service.QueryLog(context.Background(), "nope", exlog.Query{})
	assert.Equal(t, exlog.KindNotFound, exlog.KindOf(err))
}

func TestService_CreateAndListUsers(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	service := users.NewService(store, nil)

	_, err := service.CreateUser(context.Background(), "")
	assert.ErrorIs(t, err, users.ErrUsernameRequired)

	store.EXPECT().CreateUser(gomock.Any(), "fcc_test").Return(&users.User{ID: "u1", Username: "fcc_test"}, nil)
	summary, err := service.CreateUser(context.Background(), "fcc_test")
	require.NoError(t, err)
	assert.Equal(t, &users.Summary{ID: "u1", Username: "fcc_test"}, summary)

	store.EXPECT().ListUsers(gomock.Any()).Return(nil, nil)
	list, err := service.ListUsers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	store.EXPECT().ListUsers(gomock.Any()).Return(nil, errors.New("db gone"))
	_, err = service.ListUsers(context.Background())
	assert.Equal(t, exlog.KindStoreFailure, exlog.KindOf(err))
}
