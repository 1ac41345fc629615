package users

const postgresSchema = `
CREATE TABLE IF NOT EXISTS tracker_user
(
    id             UUID PRIMARY KEY,
    username       VARCHAR     NOT NULL,
    exercise_count INTEGER     NOT NULL DEFAULT 0,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tracker_exercise
(
    user_id     UUID    NOT NULL REFERENCES tracker_user (id) ON DELETE CASCADE,
    seq         INTEGER NOT NULL,
    description TEXT    NOT NULL,
    duration    INTEGER NOT NULL CHECK (duration > 0),
    date        DATE    NOT NULL,
    PRIMARY KEY (user_id, seq)
);

CREATE INDEX IF NOT EXISTS ix_tracker_user_created_at ON tracker_user USING btree (created_at);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tracker_user (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL,
  exercise_count INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tracker_exercise (
  user_id TEXT NOT NULL REFERENCES tracker_user (id) ON DELETE CASCADE,
  seq INTEGER NOT NULL,
  description TEXT NOT NULL,
  duration INTEGER NOT NULL CHECK (duration > 0),
  date TEXT NOT NULL,
  PRIMARY KEY (user_id, seq)
);
`
