package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seantiz/taskroute/internal/model"
)

func wsURL(base, id string) string {
	return "ws" + strings.TrimPrefix(base, "http") + "/v1/workflows/" + id + "/ws"
}

func TestWebSocketStreamsUntilClose(t *testing.T) {
	srv := newTestServerWith(t, testServerOptions{tick: 10 * time.Millisecond})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wf := submit(t, ts.URL)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, wf.ID), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var (
		frames int
		last   model.WorkflowExecution
	)
	for {
		var snap model.WorkflowExecution
		err := conn.ReadJSON(&snap)
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("ReadJSON: %v", err)
			}
			break
		}
		frames++
		last = snap
	}

	if frames == 0 {
		t.Fatal("no snapshots received before close")
	}
	if last.ID != wf.ID {
		t.Errorf("snapshot id = %q, want %q", last.ID, wf.ID)
	}
	if last.Status != model.WorkflowCompleted {
		t.Errorf("final status = %q, want completed", last.Status)
	}
}

func TestWebSocketUnknownWorkflow(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "nope"), nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("handshake response = %v, want 404", resp)
	}
}
