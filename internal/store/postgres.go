package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/ceylonhomes/valuation-api/internal/model"
)

// Pool is the pgxpool surface the store uses, satisfied by both
// *pgxpool.Pool and pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// preparedStatements lists queries to prepare on each new connection for
// the hot request path.
var preparedStatements = map[string]string{
	"insert_query":    `INSERT INTO queries (id, user_id, query_text, features, created_at) VALUES ($1, $2, $3, $4, $5)`,
	"insert_response": `INSERT INTO responses (id, query_id, result, created_at) VALUES ($1, $2, $3, $4)`,
	"get_query":       `SELECT id, user_id, query_text, features, created_at FROM queries WHERE id = $1`,
	"get_response":    `SELECT id, query_id, result, created_at FROM responses WHERE query_id = $1 ORDER BY created_at DESC LIMIT 1`,
	"get_user":        `SELECT id, email, plan, analyses_used, created_at FROM users WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	plan          TEXT NOT NULL DEFAULT 'free',
	analyses_used INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS queries (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id),
	query_text TEXT NOT NULL,
	features   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS responses (
	id         TEXT PRIMARY KEY,
	query_id   TEXT NOT NULL REFERENCES queries(id) ON DELETE CASCADE,
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS feedback (
	id          TEXT PRIMARY KEY,
	response_id TEXT NOT NULL REFERENCES responses(id) ON DELETE CASCADE,
	user_id     TEXT NOT NULL REFERENCES users(id),
	is_positive BOOLEAN NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (response_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_queries_user_id ON queries(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_responses_query_id ON responses(query_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	var plan string
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, plan, analyses_used, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &plan, &u.AnalysesUsed, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get user %s", id)
	}
	u.Plan = model.Plan(plan)
	return &u, nil
}

func (s *PostgresStore) EnsureUser(ctx context.Context, id, email string, plan model.Plan) (*model.User, error) {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, plan, analyses_used, created_at) VALUES ($1, $2, $3, 0, $4)
		 ON CONFLICT (id) DO NOTHING`,
		id, email, string(plan), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: ensure user %s", id)
	}
	return s.GetUser(ctx, id)
}

func (s *PostgresStore) IncrementUsage(ctx context.Context, userID string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	limit := model.PlanLimits[user.Plan]

	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET analyses_used = analyses_used + 1 WHERE id = $1 AND analyses_used < $2`,
		userID, limit,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment usage %s", userID)
	}
	if tag.RowsAffected() == 0 {
		return ErrQuotaExceeded
	}
	return nil
}

func (s *PostgresStore) SaveQuery(ctx context.Context, userID, queryText string, features model.Features) (*model.Query, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	featuresJSON, err := json.Marshal(features)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal features")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO queries (id, user_id, query_text, features, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, userID, queryText, featuresJSON, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert query")
	}

	return &model.Query{
		ID:        id,
		UserID:    userID,
		QueryText: queryText,
		Features:  features,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) SaveResponse(ctx context.Context, queryID string, result model.AnalysisResult) (*model.Response, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal result")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO responses (id, query_id, result, created_at) VALUES ($1, $2, $3, $4)`,
		id, queryID, resultJSON, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert response")
	}

	return &model.Response{ID: id, QueryID: queryID, Result: result, CreatedAt: now}, nil
}

func (s *PostgresStore) GetQuery(ctx context.Context, id string) (*model.Query, error) {
	var q model.Query
	var featuresJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, query_text, features, created_at FROM queries WHERE id = $1`, id,
	).Scan(&q.ID, &q.UserID, &q.QueryText, &featuresJSON, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get query %s", id)
	}
	if err := json.Unmarshal(featuresJSON, &q.Features); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal features")
	}
	return &q, nil
}

func (s *PostgresStore) GetResponse(ctx context.Context, queryID string) (*model.Response, error) {
	var r model.Response
	var resultJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, query_id, result, created_at FROM responses WHERE query_id = $1 ORDER BY created_at DESC LIMIT 1`,
		queryID,
	).Scan(&r.ID, &r.QueryID, &resultJSON, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get response for %s", queryID)
	}
	if err := json.Unmarshal(resultJSON, &r.Result); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal result")
	}
	return &r, nil
}

func (s *PostgresStore) ListHistory(ctx context.Context, userID string, limit, offset int) ([]model.HistoryItem, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT q.id, q.query_text, q.created_at, EXISTS(SELECT 1 FROM responses r WHERE r.query_id = q.id)
		 FROM queries q WHERE q.user_id = $1 ORDER BY q.created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list history %s", userID)
	}
	defer rows.Close()

	var items []model.HistoryItem
	for rows.Next() {
		var item model.HistoryItem
		if err := rows.Scan(&item.ID, &item.QueryText, &item.CreatedAt, &item.HasResponse); err != nil {
			return nil, eris.Wrap(err, "postgres: scan history row")
		}
		items = append(items, item)
	}
	return items, eris.Wrap(rows.Err(), "postgres: iterate history")
}

func (s *PostgresStore) SaveFeedback(ctx context.Context, responseID, userID string, isPositive bool) (*model.Feedback, error) {
	fb := model.Feedback{
		ResponseID: responseID,
		UserID:     userID,
		IsPositive: isPositive,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO feedback (id, response_id, user_id, is_positive, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (response_id, user_id) DO UPDATE SET is_positive = EXCLUDED.is_positive
		 RETURNING id, created_at`,
		uuid.New().String(), responseID, userID, isPositive, time.Now().UTC(),
	).Scan(&fb.ID, &fb.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: save feedback for %s", responseID)
	}
	return &fb, nil
}

func (s *PostgresStore) DeleteQuery(ctx context.Context, id, userID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM queries WHERE id = $1 AND user_id = $2`, id, userID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete query %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
