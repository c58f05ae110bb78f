package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/snippets/backend/internal/library"
)

type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, reader *bufio.Reader) sseEvent {
	t.Helper()
	var event sseEvent
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("failed to read event stream: %v", err)
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if event.name != "" {
				return event
			}
		case strings.HasPrefix(line, "event:"):
			event.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			event.data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
}

func TestEventStreamDeliversLibraryChanges(t *testing.T) {
	ts := newTestServer(t, false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.server.URL+"/api/events?access_token="+ts.token, http.NoBody)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("failed to open event stream: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", response.StatusCode)
	}
	if contentType := response.Header.Get("Content-Type"); !strings.HasPrefix(contentType, "text/event-stream") {
		t.Fatalf("unexpected content type %q", contentType)
	}

	reader := bufio.NewReader(response.Body)
	if first := readEvent(t, reader); first.name != eventHeartbeat {
		t.Fatalf("expected an initial heartbeat, got %q", first.name)
	}

	if status, body := ts.do(t, http.MethodPost, "/api/components", componentRequestPayload{ID: "live", Name: "Live", HTML: "<p>live</p>"}); status != http.StatusCreated {
		t.Fatalf("create failed: %d %s", status, body)
	}

	event := readEvent(t, reader)
	if event.name != EventLibraryChanged {
		t.Fatalf("unexpected event name %q", event.name)
	}
	var payload changeEventPayload
	if err := json.Unmarshal([]byte(event.data), &payload); err != nil {
		t.Fatalf("failed to decode event payload %q: %v", event.data, err)
	}
	if len(payload.Kinds) != 1 || payload.Kinds[0] != library.ChangeKindComponents {
		t.Fatalf("unexpected kinds %v", payload.Kinds)
	}
	if len(payload.IDs) != 1 || payload.IDs[0] != "live" {
		t.Fatalf("unexpected ids %v", payload.IDs)
	}
	if payload.Timestamp == 0 || payload.Source != eventSourceBackend {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestEventStreamRejectsMissingToken(t *testing.T) {
	ts := newTestServer(t, false)

	response, err := http.Get(ts.server.URL + "/api/events")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d, want %d", response.StatusCode, http.StatusUnauthorized)
	}
}
