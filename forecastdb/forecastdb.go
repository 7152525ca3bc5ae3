// Package forecastdb answers cache misses by running configured SQL against Postgres.
package forecastdb

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/krisalay/forecast-cache/config"
	"github.com/krisalay/forecast-cache/types"
)

// Open connects a pool and checks the database is reachable.
func Open(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

type queryFunc func(ctx context.Context, sql string, args ...any) ([]byte, error)

// Source runs route SQL and returns the rows as one JSON array.
type Source struct {
	query queryFunc
}

// NewSource wraps a pool.
func NewSource(pool *pgxpool.Pool) *Source {
	return &Source{
		query: func(ctx context.Context, sql string, args ...any) ([]byte, error) {
			var out []byte
			err := pool.QueryRow(ctx, sql, args...).Scan(&out)
			return out, err
		},
	}
}

// WrapJSON turns a SELECT into one that yields its rows as a single JSON array.
func WrapJSON(sql string) string {
	return "SELECT coalesce(json_agg(q), '[]'::json) FROM (" + sql + ") q"
}

// QueryJSON runs sql and returns its rows encoded as a JSON array ("[]" when empty).
func (s *Source) QueryJSON(ctx context.Context, sql string, args ...any) ([]byte, error) {
	out, err := s.query(ctx, WrapJSON(sql), args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return out, nil
}

/*
Bind resolves route params against a request.

"path:<name>" reads r.PathValue(name), "query:<name>" reads the first
query value. A missing or empty value binds as NULL so the SQL can
COALESCE it to a default.
*/
func Bind(route config.Route, r *http.Request) ([]any, error) {
	args := make([]any, 0, len(route.Params))
	q := r.URL.Query()

	for _, p := range route.Params {
		source, name, err := config.ParseParam(p)
		if err != nil {
			return nil, err
		}

		var v string
		switch source {
		case "path":
			v = r.PathValue(name)
		case "query":
			v = q.Get(name)
		}

		if v == "" {
			args = append(args, nil)
		} else {
			args = append(args, v)
		}
	}
	return args, nil
}

// Compute builds the callback the coordinator runs on a miss for this request.
func (s *Source) Compute(route config.Route, r *http.Request) (types.ComputeFunc, error) {
	args, err := Bind(route, r)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, _ string) ([]byte, error) {
		return s.QueryJSON(ctx, route.SQL, args...)
	}, nil
}
