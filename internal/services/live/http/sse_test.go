package http

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	phttp "mural/internal/platform/net/http"
	bdomain "mural/internal/services/board/domain"
	"mural/internal/services/live/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

func newStreamServer(t *testing.T, notes ...bdomain.Note) (*httptest.Server, *service.Hub) {
	t.Helper()

	hub := service.NewHub(zerolog.Nop(), 8)
	hub.BindSnapshot(func(context.Context) ([]bdomain.Note, error) {
		return notes, nil
	})

	mux := chi.NewMux()
	Register(phttp.AdaptChi(mux), hub)

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		hub.Stop()
		srv.Close()
	})
	return srv, hub
}

// readFrame consumes one SSE frame and returns its field lines
func readFrame(t *testing.T, br *bufio.Reader) []string {
	t.Helper()
	var lines []string
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			t.Fatalf("stream read: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		if line == "" {
			if len(lines) > 0 {
				return lines
			}
			continue
		}
		lines = append(lines, line)
	}
}

func frameField(lines []string, field string) string {
	for _, l := range lines {
		if strings.HasPrefix(l, field+": ") {
			return strings.TrimPrefix(l, field+": ")
		}
	}
	return ""
}

func TestStreamSnapshotThenEvents(t *testing.T) {
	srv, hub := newStreamServer(t, bdomain.Note{
		ID:         "n-1",
		ColorIndex: 4,
		Format:     "audio/webm",
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(time.Minute),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("want event stream content type, got %q", ct)
	}

	br := bufio.NewReader(res.Body)

	snap := readFrame(t, br)
	if frameField(snap, "event") != "snapshot" {
		t.Fatalf("first frame must be the snapshot, got %v", snap)
	}
	if data := frameField(snap, "data"); !strings.Contains(data, `"n-1"`) {
		t.Fatalf("snapshot missing seeded note: %s", data)
	}
	if frameField(snap, "id") == "" {
		t.Fatalf("frames carry a sequence id, got %v", snap)
	}

	hub.NoteCreated(bdomain.Note{ID: "n-2", ColorIndex: 1, Format: "audio/ogg"})
	created := readFrame(t, br)
	if frameField(created, "event") != "created" {
		t.Fatalf("want created frame, got %v", created)
	}
	if data := frameField(created, "data"); !strings.Contains(data, `"payload_ref"`) {
		t.Fatalf("created frame must carry the wire view: %s", data)
	}

	hub.NoteDeleted("n-2")
	deleted := readFrame(t, br)
	if frameField(deleted, "event") != "deleted" {
		t.Fatalf("want deleted frame, got %v", deleted)
	}
	if data := frameField(deleted, "data"); !strings.Contains(data, `"n-2"`) {
		t.Fatalf("deleted frame carries the id: %s", data)
	}
}

func TestStreamDisconnectDetachesSession(t *testing.T) {
	srv, hub := newStreamServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer res.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.SessionCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("session never attached")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	deadline = time.Now().Add(2 * time.Second)
	for hub.SessionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session not detached after client disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStreamRefusedWhenHubStopped(t *testing.T) {
	srv, hub := newStreamServer(t)
	hub.Stop()

	res, err := srv.Client().Get(srv.URL + "/events")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("want 503 from a stopped hub, got %d", res.StatusCode)
	}
}
