package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/ceylonhomes/valuation-api/internal/model"
)

// SQLiteStore implements Store on a local file, for development and the
// one-shot analyze command.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the sqlite database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "valuation.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// The sqlite driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	plan          TEXT NOT NULL DEFAULT 'free',
	analyses_used INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS queries (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id),
	query_text TEXT NOT NULL,
	features   TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS responses (
	id         TEXT PRIMARY KEY,
	query_id   TEXT NOT NULL REFERENCES queries(id) ON DELETE CASCADE,
	result     TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback (
	id          TEXT PRIMARY KEY,
	response_id TEXT NOT NULL REFERENCES responses(id) ON DELETE CASCADE,
	user_id     TEXT NOT NULL REFERENCES users(id),
	is_positive BOOLEAN NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	UNIQUE (response_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_queries_user_id ON queries(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_responses_query_id ON responses(query_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return eris.Wrap(s.db.Close(), "sqlite: close")
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	var plan string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, plan, analyses_used, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &plan, &u.AnalysesUsed, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get user %s", id)
	}
	u.Plan = model.Plan(plan)
	return &u, nil
}

func (s *SQLiteStore) EnsureUser(ctx context.Context, id, email string, plan model.Plan) (*model.User, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, plan, analyses_used, created_at) VALUES (?, ?, ?, 0, ?)
		 ON CONFLICT (id) DO NOTHING`,
		id, email, string(plan), time.Now().UTC(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: ensure user %s", id)
	}
	return s.GetUser(ctx, id)
}

func (s *SQLiteStore) IncrementUsage(ctx context.Context, userID string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	limit := model.PlanLimits[user.Plan]

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET analyses_used = analyses_used + 1 WHERE id = ? AND analyses_used < ?`,
		userID, limit,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment usage %s", userID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrQuotaExceeded
	}
	return nil
}

func (s *SQLiteStore) SaveQuery(ctx context.Context, userID, queryText string, features model.Features) (*model.Query, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	featuresJSON, err := json.Marshal(features)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal features")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO queries (id, user_id, query_text, features, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, queryText, string(featuresJSON), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert query")
	}

	return &model.Query{ID: id, UserID: userID, QueryText: queryText, Features: features, CreatedAt: now}, nil
}

func (s *SQLiteStore) SaveResponse(ctx context.Context, queryID string, result model.AnalysisResult) (*model.Response, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal result")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO responses (id, query_id, result, created_at) VALUES (?, ?, ?, ?)`,
		id, queryID, string(resultJSON), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert response")
	}

	return &model.Response{ID: id, QueryID: queryID, Result: result, CreatedAt: now}, nil
}

func (s *SQLiteStore) GetQuery(ctx context.Context, id string) (*model.Query, error) {
	var q model.Query
	var featuresJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, query_text, features, created_at FROM queries WHERE id = ?`, id,
	).Scan(&q.ID, &q.UserID, &q.QueryText, &featuresJSON, &q.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get query %s", id)
	}
	if err := json.Unmarshal([]byte(featuresJSON), &q.Features); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal features")
	}
	return &q, nil
}

func (s *SQLiteStore) GetResponse(ctx context.Context, queryID string) (*model.Response, error) {
	var r model.Response
	var resultJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, query_id, result, created_at FROM responses WHERE query_id = ? ORDER BY created_at DESC LIMIT 1`,
		queryID,
	).Scan(&r.ID, &r.QueryID, &resultJSON, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get response for %s", queryID)
	}
	if err := json.Unmarshal([]byte(resultJSON), &r.Result); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal result")
	}
	return &r, nil
}

func (s *SQLiteStore) ListHistory(ctx context.Context, userID string, limit, offset int) ([]model.HistoryItem, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT q.id, q.query_text, q.created_at, EXISTS(SELECT 1 FROM responses r WHERE r.query_id = q.id)
		 FROM queries q WHERE q.user_id = ? ORDER BY q.created_at DESC LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list history %s", userID)
	}
	defer rows.Close()

	var items []model.HistoryItem
	for rows.Next() {
		var item model.HistoryItem
		if err := rows.Scan(&item.ID, &item.QueryText, &item.CreatedAt, &item.HasResponse); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan history row")
		}
		items = append(items, item)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: iterate history")
}

func (s *SQLiteStore) SaveFeedback(ctx context.Context, responseID, userID string, isPositive bool) (*model.Feedback, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, response_id, user_id, is_positive, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (response_id, user_id) DO UPDATE SET is_positive = excluded.is_positive`,
		uuid.New().String(), responseID, userID, isPositive, time.Now().UTC(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: save feedback for %s", responseID)
	}

	var fb model.Feedback
	err = s.db.QueryRowContext(ctx,
		`SELECT id, response_id, user_id, is_positive, created_at FROM feedback WHERE response_id = ? AND user_id = ?`,
		responseID, userID,
	).Scan(&fb.ID, &fb.ResponseID, &fb.UserID, &fb.IsPositive, &fb.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get feedback for %s", responseID)
	}
	return &fb, nil
}

func (s *SQLiteStore) DeleteQuery(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM queries WHERE id = ? AND user_id = ?`, id, userID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete query %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
