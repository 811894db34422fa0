package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/seantiz/taskroute/internal/backend"
	"github.com/seantiz/taskroute/internal/backend/simulated"
	"github.com/seantiz/taskroute/internal/catalog"
	"github.com/seantiz/taskroute/internal/classifier"
	"github.com/seantiz/taskroute/internal/engine"
	"github.com/seantiz/taskroute/internal/planner"
	"github.com/seantiz/taskroute/internal/platform"
	"github.com/seantiz/taskroute/internal/router"
	"github.com/seantiz/taskroute/internal/store"
)

const testTask = "Train an AI model with real-time streaming data and strict security compliance"

type testServerOptions struct {
	tick      time.Duration
	failSteps map[string]bool
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWith(t, testServerOptions{tick: time.Millisecond})
}

func newTestServerWith(t *testing.T, opts testServerOptions) *Server {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	platforms := platform.NewRegistry()
	if err := cat.Populate(platforms); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	cls, err := classifier.New(cat.Heuristics, logger)
	if err != nil {
		t.Fatalf("classifier.New: %v", err)
	}

	backends := backend.NewRegistry()
	backends.SetDefault(simulated.New(simulated.Config{
		Tick:      opts.tick,
		Increment: 50,
		FailSteps: opts.failSteps,
	}, logger))

	eng := engine.NewEngine(engine.Deps{
		Store:      s,
		Platforms:  platforms,
		Classifier: cls,
		Router:     router.New(),
		Planner:    planner.New(planner.Config{}),
		Backends:   backends,
		Logger:     logger,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		eng.Shutdown(ctx)
	})

	return NewServer(":0", eng, platforms, backends, logger)
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t)
	srv.Router().Get("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/test")
	if err != nil {
		t.Fatalf("GET /test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestPanicRecovery(t *testing.T) {
	srv := newTestServer(t)
	srv.Router().Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/panic")
	if err != nil {
		t.Fatalf("GET /panic: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	req, _ := http.NewRequest("OPTIONS", ts.URL+"/v1/platforms/e2b/telemetry", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "PATCH")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	defer resp.Body.Close()

	if v := resp.Header.Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", v, "*")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	srv := newTestServer(t)
	srv.addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
