package calllog

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// LogSink writes calls to the structured log. Used when no database is configured.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Save(_ context.Context, c Call) error {
	s.Logger.Info("api call",
		zap.Stringer("call_id", c.ID),
		zap.String("url", c.URL),
		zap.String("client_id", c.ClientID),
		zap.String("route", c.Route),
		zap.Time("requested_at", c.RequestedAt),
	)
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS api_request (
	uuid UUID PRIMARY KEY,
	url TEXT NOT NULL,
	client_id TEXT NOT NULL,
	route TEXT NOT NULL,
	created_utc TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// PGSink inserts calls into the api_request table.
type PGSink struct {
	Pool *pgxpool.Pool
}

// EnsureSchema creates api_request if it does not exist.
func (s PGSink) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schema)
	return err
}

func (s PGSink) Save(ctx context.Context, c Call) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO api_request (uuid, url, client_id, route, created_utc)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.URL, c.ClientID, c.Route, c.RequestedAt,
	)
	return err
}
