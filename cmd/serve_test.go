package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/krisalay/forecast-cache/config"
	"github.com/krisalay/forecast-cache/types"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

func TestServeStopsOnCancelledContext(t *testing.T) {
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := serve(ctx, cfg, zaptest.NewLogger(t)); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
}

func TestServeRejectsRoutesWithoutDatabase(t *testing.T) {
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.Routes = []config.Route{{
		Pattern: "GET /v0/solar/GB/national/forecast",
		Tier:    types.TierStandard,
		SQL:     "SELECT 1",
	}}

	err := serve(context.Background(), cfg, zaptest.NewLogger(t))
	if !errors.Is(err, types.ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestServeAnswersHealthUntilCancelled(t *testing.T) {
	cfg := config.Default()
	cfg.Addr = freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, zaptest.NewLogger(t)) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get("http://" + cfg.Addr + "/health")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200 from /health, got %d", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(shutdownTimeout + 5*time.Second):
		t.Fatalf("serve did not return after cancel")
	}
}
