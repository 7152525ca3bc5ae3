// Package calllog records every admitted API call for auditing.
package calllog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Call is one admitted request.
type Call struct {
	ID          uuid.UUID
	URL         string
	ClientID    string
	Route       string
	RequestedAt time.Time
}

// NewCall stamps a call with a fresh random ID.
func NewCall(url, clientID, route string, at time.Time) Call {
	return Call{
		ID:          uuid.New(),
		URL:         url,
		ClientID:    clientID,
		Route:       route,
		RequestedAt: at,
	}
}

// Sink is where recorded calls end up (log, database, ...).
type Sink interface {
	Save(ctx context.Context, c Call) error
}

/*
Recorder is what the gateway talks to.
The gateway does not care whether recording is synchronous or queued.
*/
type Recorder interface {
	Record(ctx context.Context, c Call)
	Close()
}
