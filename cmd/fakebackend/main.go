// fakebackend serves an in-memory execution backend for local development
// and E2E tests.
// Usage: go run ./cmd/fakebackend
package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/zohaib704-ai/Code-sphere/internal/upstream/upstreamtest"
)

func main() {
	addr := ":2000"
	if v := os.Getenv("FAKEBACKEND_LISTEN_ADDR"); v != "" {
		addr = v
	}

	backend := upstreamtest.New()
	if token := os.Getenv("FAKEBACKEND_TOKEN"); token != "" {
		backend.RequireToken(token)
	}
	if v := os.Getenv("FAKEBACKEND_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("invalid FAKEBACKEND_DELAY: %v", err)
		}
		backend.SetDelay(d)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("fakebackend: starting", "addr", addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
