// Package gateway is the HTTP front of the cache: it identifies the client,
// applies admission control, fingerprints the request and serves the
// resolved payload.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/krisalay/forecast-cache/api"
	"github.com/krisalay/forecast-cache/calllog"
	"github.com/krisalay/forecast-cache/ratelimit"
	"github.com/krisalay/forecast-cache/types"
)

// ComputeBuilder turns an admitted request into the callback run on a cache miss.
type ComputeBuilder func(r *http.Request) (types.ComputeFunc, error)

// Route is one cached endpoint.
type Route struct {
	// Pattern is a net/http ServeMux pattern, e.g. "GET /v0/solar/GB/gsp/{gsp_id}/forecast".
	Pattern string
	Tier    types.Tier
	Compute ComputeBuilder
}

// Options are the optional parts of a Gateway.
type Options struct {
	Clock      clockwork.Clock
	Logger     *zap.Logger
	TrustProxy bool

	// Gatherer, when set, is served on GET /metrics.
	Gatherer prometheus.Gatherer
}

// Gateway wires requests to the admitter, the call log and the resolver.
type Gateway struct {
	mux      *http.ServeMux
	resolver api.Resolver
	admitter api.Admitter
	recorder calllog.Recorder
	clock    clockwork.Clock
	logger   *zap.Logger

	trustProxy bool
}

// New creates a gateway with /health (and /metrics when a gatherer is given) registered.
func New(resolver api.Resolver, admitter api.Admitter, recorder calllog.Recorder, opts Options) *Gateway {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	g := &Gateway{
		mux:        http.NewServeMux(),
		resolver:   resolver,
		admitter:   admitter,
		recorder:   recorder,
		clock:      opts.Clock,
		logger:     opts.Logger,
		trustProxy: opts.TrustProxy,
	}

	g.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Gatherer != nil {
		g.mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return g
}

// Handle registers a cached route. Registering the same pattern twice panics, like ServeMux.
func (g *Gateway) Handle(rt Route) {
	g.mux.HandleFunc(rt.Pattern, g.serve(rt, wildcards(rt.Pattern)))
}

// Handler returns the mux wrapped in the middleware chain.
func (g *Gateway) Handler() http.Handler {
	var h http.Handler = g.mux

	// Requests pass through request ID, access log, recover, then process time.
	h = processTimeMiddleware(h)
	h = recoverMiddleware(g.logger)(h)
	h = loggingMiddleware(g.logger)(h)
	h = requestIDMiddleware(h)

	return h
}

func (g *Gateway) serve(rt Route, names []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := ClientIP(r, g.trustProxy)

		// Denied calls stop here: nothing is recorded, resolved or computed.
		d := g.admitter.Decide(client, rt.Tier)
		setRateHeaders(w, d)
		if !d.Allowed {
			g.logger.Info("rate limited",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("client_id", client),
				zap.String("tier", string(rt.Tier)),
				zap.Duration("retry_after", d.RetryAfter),
			)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d)))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		g.recorder.Record(r.Context(), calllog.NewCall(r.URL.String(), client, rt.Pattern, g.clock.Now()))

		compute, err := rt.Compute(r)
		if err != nil {
			g.logger.Error("building computation failed",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("route", rt.Pattern),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		key := Fingerprint(rt.Pattern, r.URL.Path, pathValues(r, names), r.URL.Query())
		res, err := g.resolver.Resolve(r.Context(), key, compute)
		if err != nil {
			g.writeResolveError(w, r, key, err)
			return
		}

		age := g.clock.Now().Sub(res.ComputedAt)
		if age < 0 {
			age = 0
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", res.Status.String())
		w.Header().Set("Age", strconv.Itoa(int(age.Seconds())))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(res.Value)
	}
}

func (g *Gateway) writeResolveError(w http.ResponseWriter, r *http.Request, key string, err error) {
	log := g.logger.With(
		zap.String("request_id", RequestID(r.Context())),
		zap.String("key", key),
		zap.Error(err),
	)

	switch {
	case r.Context().Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		// The client is gone; nobody is left to read a response.
		log.Debug("client went away while waiting")
	case errors.Is(err, types.ErrQueryTimeout):
		log.Warn("query wait exhausted")
		writeError(w, http.StatusServiceUnavailable, "forecast is being computed, try again shortly")
	case errors.Is(err, types.ErrComputationFailed):
		log.Error("computation failed")
		writeError(w, http.StatusBadGateway, "upstream computation failed")
	default:
		log.Error("resolve failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func setRateHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	if d.Limit <= 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

// retryAfterSeconds rounds up so a client honoring it never retries early.
func retryAfterSeconds(d ratelimit.Decision) int {
	s := int(math.Ceil(d.RetryAfter.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
