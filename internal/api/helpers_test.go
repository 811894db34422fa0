package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/seantiz/taskroute/internal/model"
)

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func submit(t *testing.T, baseURL string) *model.WorkflowExecution {
	t.Helper()
	resp := postJSON(t, baseURL+"/v1/workflows", taskRequest{Description: testTask})
	if resp.StatusCode != http.StatusAccepted {
		resp.Body.Close()
		t.Fatalf("submit status = %d, want 202", resp.StatusCode)
	}
	return decodeBody[*model.WorkflowExecution](t, resp)
}

// waitForStatus polls the engine until the workflow reaches the expected status.
func waitForStatus(t *testing.T, srv *Server, id, expected string) *model.WorkflowExecution {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w, err := srv.engine.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if w.Status == expected {
			return w
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("workflow %s did not reach status %q", id, expected)
	return nil
}

func waitDone(t *testing.T, srv *Server, id string) {
	t.Helper()
	select {
	case <-srv.engine.Done(id):
	case <-time.After(5 * time.Second):
		t.Fatalf("workflow %s not done", id)
	}
}
