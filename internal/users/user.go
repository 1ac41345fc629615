package users

import (
	"slices"

	"github.com/2beens/exercisetracker/internal/exlog"
)

type User struct {
	ID       string           `json:"_id"`
	Username string           `json:"username"`
	Count    int              `json:"count"`
	Log      []exlog.Exercise `json:"log"`

	// appended in memory, not yet persisted
	pending []exlog.Exercise
}

// Summary is the list-view of a user, without the log.
type Summary struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

func (u *User) Summary() Summary {
	return Summary{
		ID:       u.ID,
		Username: u.Username,
	}
}

// Append adds the exercise to the end of the log and bumps the count.
// The change is kept pending until a store saves the user.
func (u *User) Append(e exlog.Exercise) {
	u.Log = append(u.Log, e)
	u.Count++
	u.pending = append(u.pending, e)
}

// Pending returns the exercises appended since the user was loaded or last saved.
func (u *User) Pending() []exlog.Exercise {
	return slices.Clone(u.pending)
}

func (u *User) clone() *User {
	return &User{
		ID:       u.ID,
		Username: u.Username,
		Count:    u.Count,
		Log:      slices.Clone(u.Log),
	}
}
