package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seantiz/taskroute/internal/api"
	"github.com/seantiz/taskroute/internal/backend"
	"github.com/seantiz/taskroute/internal/backend/simulated"
	"github.com/seantiz/taskroute/internal/catalog"
	"github.com/seantiz/taskroute/internal/classifier"
	"github.com/seantiz/taskroute/internal/engine"
	"github.com/seantiz/taskroute/internal/model"
	"github.com/seantiz/taskroute/internal/planner"
	"github.com/seantiz/taskroute/internal/platform"
	"github.com/seantiz/taskroute/internal/router"
	"github.com/seantiz/taskroute/internal/store"
)

const task = "Train an AI model with real-time streaming data and strict security compliance"

// inferenceBackend serves managed-inference steps and counts its calls.
type inferenceBackend struct {
	delay time.Duration
	calls atomic.Int64
}

func (b *inferenceBackend) Execute(ctx context.Context, spec backend.StepSpec) (backend.StepResult, error) {
	b.calls.Add(1)
	spec.ReportProgress(30)
	select {
	case <-time.After(b.delay):
	case <-ctx.Done():
		return backend.StepResult{}, ctx.Err()
	}
	spec.ReportProgress(100)
	return backend.StepResult{
		Output:    "inference step " + spec.StepID + " done",
		Cost:      0.02,
		DurationS: b.delay.Seconds(),
	}, nil
}

func (b *inferenceBackend) Capabilities() backend.Capabilities {
	return backend.Capabilities{Name: "stub-inference", Categories: []string{model.CategoryManagedInference}}
}

// stack is a full taskroute deployment behind an httptest server.
type stack struct {
	ts        *httptest.Server
	eng       *engine.Engine
	inference *inferenceBackend
}

func newStack(t *testing.T, dbPath string) *stack {
	t.Helper()

	s, err := store.NewSQLiteStore(dbPath)
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

	inference := &inferenceBackend{delay: 20 * time.Millisecond}
	backends := backend.NewRegistry()
	backends.Register(model.CategoryManagedInference, inference)
	backends.SetDefault(simulated.New(simulated.Config{Tick: 5 * time.Millisecond, Increment: 25}, logger))

	eng := engine.NewEngine(engine.Deps{
		Store:      s,
		Platforms:  platforms,
		Classifier: cls,
		Router:     router.New(),
		Planner:    planner.New(planner.Config{}),
		Backends:   backends,
		Logger:     logger,
	})
	srv := api.NewServer(":0", eng, platforms, backends, logger)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		eng.Shutdown(ctx)
	})

	return &stack{ts: ts, eng: eng, inference: inference}
}

func (s *stack) url() string { return s.ts.URL }

func (s *stack) submit(t *testing.T) map[string]any {
	t.Helper()
	resp, err := http.Post(s.url()+"/v1/workflows", "application/json",
		strings.NewReader(`{"description":"`+task+`"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want 202\nbody: %s", resp.StatusCode, b)
	}
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return result
}

func (s *stack) getJSON(t *testing.T, path string, v any) int {
	t.Helper()
	resp, err := http.Get(s.url() + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return resp.StatusCode
}

func (s *stack) pollStatus(t *testing.T, id, expected string, timeout time.Duration) map[string]any {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var wf map[string]any
		s.getJSON(t, "/v1/workflows/"+id, &wf)
		if wf["status"] == expected {
			return wf
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("workflow %s did not reach %q within %v", id, expected, timeout)
	return nil
}

type sseEvent struct {
	Type string
	Data string
}

// readSSEEvents reads named SSE events until the stream closes.
func readSSEEvents(t *testing.T, resp *http.Response) []sseEvent {
	t.Helper()
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var events []sseEvent
	var current sseEvent
	for scanner.Scan() {
		line := scanner.Text()
		if et, ok := strings.CutPrefix(line, "event: "); ok {
			current.Type = et
		} else if data, ok := strings.CutPrefix(line, "data: "); ok {
			current.Data = data
		} else if line == "" && current.Data != "" {
			events = append(events, current)
			current = sseEvent{}
		}
	}
	return events
}
