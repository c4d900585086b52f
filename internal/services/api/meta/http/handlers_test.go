package http

import (
	stdctx "context"
	"encoding/json"
	stderrs "errors"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	phttp "mural/internal/platform/net/http"

	"github.com/go-chi/chi/v5"
)

type okPinger struct{}

func (okPinger) Ping(stdctx.Context) error { return nil }

type failPinger struct{}

func (failPinger) Ping(stdctx.Context) error { return stderrs.New("connection refused") }

func newMetaServer(t *testing.T, d Deps) *httptest.Server {
	t.Helper()
	mux := chi.NewMux()
	Register(phttp.AdaptChi(mux), d)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, srv *httptest.Server, path string, out any) int {
	t.Helper()
	res, err := srv.Client().Get(srv.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return res.StatusCode
}

func TestHealth(t *testing.T) {
	srv := newMetaServer(t, Deps{ServiceName: "mural-api", StartedAt: time.Now()})

	var body HealthResponse
	if code := getJSON(t, srv, "/health", &body); code != stdhttp.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !body.OK || body.Service != "mural-api" {
		t.Fatalf("health = %+v", body)
	}
}

func TestReadyAllSkippedWhenNoBackends(t *testing.T) {
	srv := newMetaServer(t, Deps{ServiceName: "mural-api", StartedAt: time.Now()})

	var body ReadyResponse
	if code := getJSON(t, srv, "/ready", &body); code != stdhttp.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body.Status != "ok" || len(body.Checks) != 3 {
		t.Fatalf("ready = %+v", body)
	}
	for _, c := range body.Checks {
		if c.Status != "skipped" {
			t.Fatalf("check %s = %q, want skipped", c.Name, c.Status)
		}
	}
}

func TestReadyDegradedOnFailingBackend(t *testing.T) {
	srv := newMetaServer(t, Deps{
		ServiceName: "mural-api",
		StartedAt:   time.Now(),
		PG:          okPinger{},
		RD:          failPinger{},
	})

	var body ReadyResponse
	getJSON(t, srv, "/ready", &body)
	if body.Status != "degraded" {
		t.Fatalf("status = %q, want degraded", body.Status)
	}
	byName := map[string]ReadyCheck{}
	for _, c := range body.Checks {
		byName[c.Name] = c
	}
	if byName["pg"].Status != "ok" {
		t.Fatalf("pg = %+v", byName["pg"])
	}
	if byName["redis"].Status != "fail" || byName["redis"].Error == "" {
		t.Fatalf("redis = %+v", byName["redis"])
	}
	if byName["clickhouse"].Status != "skipped" {
		t.Fatalf("clickhouse = %+v", byName["clickhouse"])
	}
}

func TestVersionAndService(t *testing.T) {
	started := time.Now().Add(-time.Minute)
	srv := newMetaServer(t, Deps{ServiceName: "mural-api", StartedAt: started})

	var info struct {
		Service string `json:"service"`
	}
	if code := getJSON(t, srv, "/version", &info); code != stdhttp.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if info.Service == "" {
		t.Fatal("version must carry the service name")
	}

	var svc ServiceResponse
	getJSON(t, srv, "/service", &svc)
	if svc.Name != "mural-api" || svc.Uptime < 59 {
		t.Fatalf("service = %+v", svc)
	}
}
