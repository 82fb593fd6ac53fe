// Package store persists users, queries, and analysis responses behind
// one interface with postgres and sqlite backends.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/ceylonhomes/valuation-api/internal/config"
	"github.com/ceylonhomes/valuation-api/internal/model"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = eris.New("store: not found")

// ErrQuotaExceeded is returned by IncrementUsage when the user's plan
// quota is exhausted.
var ErrQuotaExceeded = eris.New("store: analysis quota exceeded")

// Store defines the persistence interface for the valuation service.
type Store interface {
	// Users
	GetUser(ctx context.Context, id string) (*model.User, error)
	EnsureUser(ctx context.Context, id, email string, plan model.Plan) (*model.User, error)
	// IncrementUsage transactionally consumes one analysis from the
	// user's quota, failing with ErrQuotaExceeded at the plan limit.
	IncrementUsage(ctx context.Context, userID string) error

	// Queries and responses (append-only history)
	SaveQuery(ctx context.Context, userID, queryText string, features model.Features) (*model.Query, error)
	SaveResponse(ctx context.Context, queryID string, result model.AnalysisResult) (*model.Response, error)
	GetQuery(ctx context.Context, id string) (*model.Query, error)
	GetResponse(ctx context.Context, queryID string) (*model.Response, error)
	ListHistory(ctx context.Context, userID string, limit, offset int) ([]model.HistoryItem, error)
	DeleteQuery(ctx context.Context, id, userID string) error

	// SaveFeedback upserts a user's rating of a response, keyed on
	// (response, user); a repeat submission replaces the rating.
	SaveFeedback(ctx context.Context, responseID, userID string, isPositive bool) (*model.Feedback, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open builds the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	case "sqlite":
		return NewSQLite(cfg.SQLitePath)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
