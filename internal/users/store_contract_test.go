package users

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/exercisetracker/internal/exlog"
)

func testDate(t *testing.T, text string) exlog.Date {
	t.Helper()
	d, err := exlog.ParseDate(text)
	require.NoError(t, err)
	return d
}

// testStoreContract runs the behaviour every Store implementation has to share.
func testStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("CreateAndList", func(t *testing.T) {
		_, err := store.CreateUser(ctx, "")
		require.ErrorIs(t, err, ErrUsernameRequired)

		alice, err := store.CreateUser(ctx, "alice")
		require.NoError(t, err)
		require.NotEmpty(t, alice.ID)
		assert.Equal(t, "alice", alice.Username)
		assert.Zero(t, alice.Count)
		assert.Empty(t, alice.Log)

		bob, err := store.CreateUser(ctx, "bob")
		require.NoError(t, err)
		assert.NotEqual(t, alice.ID, bob.ID)

		list, err := store.ListUsers(ctx)
		require.NoError(t, err)
		assert.Contains(t, list, alice.Summary())
		assert.Contains(t, list, bob.Summary())
	})

	t.Run("GetUnknown", func(t *testing.T) {
		_, err := store.GetUser(ctx, uuid.NewString())
		assert.ErrorIs(t, err, exlog.ErrNotFound)
		_, err = store.GetUser(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, exlog.ErrNotFound)
	})

	t.Run("SaveAppend", func(t *testing.T) {
		created, err := store.CreateUser(ctx, "carol")
		require.NoError(t, err)

		user, err := store.GetUser(ctx, created.ID)
		require.NoError(t, err)
		// nothing pending, nothing written
		require.NoError(t, store.SaveAppend(ctx, user))

		user.Append(exlog.Exercise{Description: "run", Duration: 30, Date: testDate(t, "2024-01-10")})
		user.Append(exlog.Exercise{Description: "swim", Duration: 45, Date: testDate(t, "2023-12-31")})
		require.NoError(t, store.SaveAppend(ctx, user))
		assert.Empty(t, user.Pending())
		assert.Equal(t, 2, user.Count)

		reloaded, err := store.GetUser(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, reloaded.Count)
		require.Len(t, reloaded.Log, 2)
		// insertion order, not date order
		assert.Equal(t, "run", reloaded.Log[0].Description)
		assert.Equal(t, "2024-01-10", reloaded.Log[0].Date.String())
		assert.Equal(t, 45, reloaded.Log[1].Duration)
		assert.Equal(t, "2023-12-31", reloaded.Log[1].Date.String())
	})

	t.Run("SaveAppendUnknown", func(t *testing.T) {
		ghost := &User{ID: uuid.NewString(), Username: "ghost"}
		ghost.Append(exlog.Exercise{Description: "run", Duration: 1, Date: testDate(t, "2024-01-01")})
		assert.ErrorIs(t, store.SaveAppend(ctx, ghost), exlog.ErrNotFound)
	})

	t.Run("SaveAppendStaleUser", func(t *testing.T) {
		created, err := store.CreateUser(ctx, "erin")
		require.NoError(t, err)

		// both loaded before either append is saved
		first, err := store.GetUser(ctx, created.ID)
		require.NoError(t, err)
		second, err := store.GetUser(ctx, created.ID)
		require.NoError(t, err)

		first.Append(exlog.Exercise{Description: "row", Duration: 10, Date: testDate(t, "2024-02-01")})
		require.NoError(t, store.SaveAppend(ctx, first))

		second.Append(exlog.Exercise{Description: "bike", Duration: 20, Date: testDate(t, "2024-02-02")})
		require.NoError(t, store.SaveAppend(ctx, second))

		assert.Equal(t, 2, second.Count)
		require.Len(t, second.Log, second.Count)
		assert.Equal(t, "row", second.Log[0].Description)
		assert.Equal(t, "bike", second.Log[1].Description)
	})

	t.Run("ConcurrentAppends", func(t *testing.T) {
		created, err := store.CreateUser(ctx, "dave")
		require.NoError(t, err)

		const appends = 20
		date := testDate(t, "2024-03-01")
		var wg sync.WaitGroup
		errs := make(chan error, appends)
		for i := 0; i < appends; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				user, err := store.GetUser(ctx, created.ID)
				if err != nil {
					errs <- err
					return
				}
				user.Append(exlog.Exercise{Description: "lap", Duration: i + 1, Date: date})
				if err := store.SaveAppend(ctx, user); err != nil {
					errs <- err
					return
				}
				if user.Count != len(user.Log) {
					errs <- fmt.Errorf("saved user count %d, log length %d", user.Count, len(user.Log))
					return
				}
				errs <- nil
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		user, err := store.GetUser(ctx, created.ID)
		require.NoError(t, err)
		// no append lost, count matches the log
		assert.Equal(t, appends, user.Count)
		assert.Len(t, user.Log, appends)
	})
}
